package scrape

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shareHeader = []string{
	"種類",
	"発行可能株式総数（株）",
	"事業年度末現在<br/>発行数（株）<br/>（2020年3月31日）",
	"提出日現在発行数（株）<br/>（2020年6月26日）",
	"上場金融商品取引所名",
}

func TestExtractShareCount(t *testing.T) {
	// Issued-shares table: total row 3, issued column 2.
	html := pageHTML(sectionHTML(sharesKeyword, tableHTML("", [][]string{
		shareHeader,
		{"普通株式", "40,000,000", "15,560,000", "15,560,000", "東京証券取引所"},
		{"", "", "", "", ""},
		{"計", "40,000,000", "15,560,000", "15,560,000", "－"},
	})))
	m := parseFragment(t, sharesKeyword, html)

	got, err := ExtractShareCount(m)
	require.NoError(t, err)
	assert.Equal(t, ShareCount{Value: "15,560,000", Row: 3, Column: 2}, got)
}

func TestExtractShareCount_QuarterlyHeader(t *testing.T) {
	html := pageHTML(sectionHTML(sharesKeyword, tableHTML("", [][]string{
		{"種類", "第2四半期会計期間末現在発行数（株）", "提出日現在発行数（株）"},
		{"普通株式", "8,000,000", "8,000,000"},
		{"合計", "8,000,000", "8,000,000"},
	})))
	m := parseFragment(t, sharesKeyword, html)

	got, err := ExtractShareCount(m)
	require.NoError(t, err)
	assert.Equal(t, "8,000,000", got.Value)
	assert.Equal(t, 2, got.Row)
	assert.Equal(t, 1, got.Column)
}

func TestExtractShareCount_Errors(t *testing.T) {
	tests := []struct {
		name    string
		rows    [][]string
		wantErr error
	}{
		{
			name:    "no table",
			rows:    nil,
			wantErr: ErrShareTableNotFound,
		},
		{
			name:    "issued marker missing",
			rows:    [][]string{{"種類", "発行可能株式総数"}, {"計", "100"}},
			wantErr: ErrIssuedMarkerNotFound,
		},
		{
			name:    "total marker missing",
			rows:    [][]string{shareHeader, {"普通株式", "1", "2", "3", "x"}},
			wantErr: ErrTotalMarkerNotFound,
		},
		{
			name: "total marker in two rows",
			rows: [][]string{
				shareHeader,
				{"計", "1", "2", "3", "x"},
				{"合計", "1", "2", "3", "x"},
			},
			wantErr: ErrAmbiguousMarker,
		},
		{
			name: "issued marker in two columns",
			rows: [][]string{
				{"種類", "事業年度末現在発行数", "当期末現在発行数"},
				{"計", "1", "2"},
			},
			wantErr: ErrAmbiguousMarker,
		},
		{
			name:    "intersection out of range",
			rows:    [][]string{shareHeader, {"計", "1"}},
			wantErr: ErrShareCellMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Match
			if tt.rows != nil {
				m = parseFragment(t, sharesKeyword, pageHTML(sectionHTML(sharesKeyword, tableHTML("", tt.rows))))
			}
			_, err := ExtractShareCount(m)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.True(t, IsDataQuality(err))
		})
	}
}

func TestIsTotalMarker_ExcludesAccountingPeriod(t *testing.T) {
	assert.True(t, isTotalMarker("計"))
	assert.True(t, isTotalMarker("合計"))
	assert.False(t, isTotalMarker("当事業年度末（会計期間）"))
	assert.False(t, isTotalMarker("普通株式"))
}
