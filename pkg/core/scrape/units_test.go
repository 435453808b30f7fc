package scrape

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectUnit(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   Unit
		wantOK bool
	}{
		{"thousand full-width colon", "（単位：千円）", UnitThousand, true},
		{"thousand ascii colon", "単位:千円", UnitThousand, true},
		{"thousand ideographic space", "単位　千円", UnitThousand, true},
		{"thousand amount header", "金額（千円）", UnitThousand, true},
		{"thousand english", "(In Thousands of Yen)", 0, false},
		{"thousand english exact", "Amounts (in thousands)", UnitThousand, true},
		{"million full-width colon", "（単位：百万円）", UnitMillion, true},
		{"million ascii colon", "単位:百万円", UnitMillion, true},
		{"million ideographic space", "単位　百万円", UnitMillion, true},
		{"million bracket only", "（百万円）", UnitMillion, true},
		{"million english", "(in millions)", UnitMillion, true},
		{"thousand wins over million", "単位：百万円 ... 単位：千円", UnitThousand, true},
		{"no marker", "単位：円", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectUnit([]Table{{Text: tt.text}})
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectUnit_NeverReturnsDefault(t *testing.T) {
	unit, ok := DetectUnit(nil)
	assert.False(t, ok)
	assert.Zero(t, unit)
}

func TestResolveUnit_Unrecognized(t *testing.T) {
	_, err := ResolveUnit(bsKeyword, []Table{{Text: "売上高 100"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnrecognizedUnit))
	assert.True(t, IsDataQuality(err))

	var unitErr *UnitError
	require.True(t, errors.As(err, &unitErr))
	assert.Equal(t, bsKeyword, unitErr.Keyword)
}
