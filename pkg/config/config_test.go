package config

import (
	"os"
	"path/filepath"
	"testing"

	"filing_valuation/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_ShippedFile(t *testing.T) {
	cfg, err := Load("../../config/pipeline.yaml")
	require.NoError(t, err)

	keywords, err := cfg.KeywordsByKind()
	require.NoError(t, err)
	for _, kind := range models.AllKinds {
		assert.NotEmpty(t, keywords[kind], kind.Name())
	}
	assert.Equal(t, "jpcrp_cor:BalanceSheetTextBlock", keywords[models.KindBalanceSheet][0].Keyword)
	assert.Equal(t, models.KindBalanceSheet, keywords[models.KindBalanceSheet][0].Kind)
	assert.Contains(t, cfg.DocumentTypes(), models.DocTypeQuarterlyReport)

	// IFRS blocks are tried after every Japanese-GAAP block of the same kind.
	ifrs := map[models.StatementKind]string{
		models.KindBalanceSheet:    "jpigp_cor:CondensedQuarterlyConsolidatedStatementOfFinancialPositionIFRSTextBlock",
		models.KindIncomeStatement: "jpigp_cor:CondensedYearToQuarterEndConsolidatedStatementOfProfitOrLossIFRSTextBlock",
	}
	for kind, keyword := range ifrs {
		var found bool
		for _, kw := range keywords[kind] {
			if kw.Keyword == keyword {
				found = true
				continue
			}
			for _, other := range keywords[kind] {
				if other.Keyword == keyword {
					assert.Less(t, kw.Priority, other.Priority, kw.Keyword)
				}
			}
		}
		assert.True(t, found, keyword)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Paths.DocumentSubdir, cfg.Paths.DocumentSubdir)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "paths:\n  decode_root: /srv/decode\n")
	t.Setenv("DECODE_ROOT", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/decode", cfg.Paths.DecodeRoot)
	assert.Equal(t, "honbun", cfg.Paths.BodyFileMarker)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: sqlite\n  dsn: local.db\n")
	t.Setenv("DATABASE_URL", "postgres://localhost/filings")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("HTTP_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/filings", cfg.Database.DSN)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "keywords: [\n"},
		{"unknown kind", "keywords:\n  cash_flow:\n    - keyword: x\n"},
		{"empty keyword", "keywords:\n  balance_sheet:\n    - priority: 1\n"},
		{"bad weight", "valuation:\n  business_value_weight: ten\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestKeywordsByKind_DefaultPriority(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse([]byte(`
keywords:
  share_count:
    - keyword: fallback
    - keyword: primary
      priority: 1
`), &cfg))

	keywords, err := cfg.KeywordsByKind()
	require.NoError(t, err)
	got := keywords[models.KindShareCount]
	require.Len(t, got, 2)
	assert.Equal(t, DefaultKeywordPriority, got[0].Priority)
	assert.Equal(t, 1, got[1].Priority)
}

func TestValuationParams(t *testing.T) {
	cfg := Default()
	cfg.Valuation.CurrentRatioFactor = "1.5"
	p, err := cfg.ValuationParams()
	require.NoError(t, err)
	assert.Equal(t, "10", p.BusinessValueWeight.String())
	assert.Equal(t, "1.5", p.CurrentRatioFactor.String())
}
