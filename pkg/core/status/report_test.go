package status

import (
	"testing"
	"time"

	"filing_valuation/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time { return time.Date(2020, 6, d, 0, 0, 0, 0, time.UTC) }

func TestBuildReport(t *testing.T) {
	partial := decodedFiling("S2")
	partial.SubmitDate = day(26)
	partial.Status = partial.Status.
		With(models.StageBalanceSheet, models.StatusPartial).
		With(models.StageIncomeStatement, models.StatusDone).
		With(models.StageShares, models.StatusError)
	partial.Notes = map[models.Stage]models.StageNote{
		models.StageBalanceSheet: {Diagnostic: "no value for 流動資産合計", Path: "/d/b_honbun.htm"},
		models.StageShares:       {Diagnostic: "total marker matched at positions [3 5]"},
	}

	failedEarlier := decodedFiling("S1")
	failedEarlier.SubmitDate = day(25)
	failedEarlier.Status = failedEarlier.Status.With(models.StageDecode, models.StatusError)

	removed := decodedFiling("S0")
	removed.SubmitDate = day(25)
	removed.Removed = true
	removed.Status = removed.Status.With(models.StageBalanceSheet, models.StatusError)

	healthy := decodedFiling("S3")
	healthy.SubmitDate = day(26)

	r := BuildReport([]models.Filing{partial, healthy, removed, failedEarlier}, day(25), day(26), day(27))

	require.Len(t, r.Items, 3)
	assert.Equal(t, 2, r.Filings)
	assert.Equal(t, 1, r.Partial)
	assert.Equal(t, 2, r.Errors)

	assert.Equal(t, "S1", r.Items[0].DocumentID)
	assert.Equal(t, models.StageDecode, r.Items[0].Stage)
	assert.Equal(t, "S2", r.Items[1].DocumentID)
	assert.Equal(t, models.StageBalanceSheet, r.Items[1].Stage)
	assert.Equal(t, "PARTIAL", r.Items[1].Status)
	assert.Equal(t, "no value for 流動資産合計", r.Items[1].Diagnostic)
	assert.Equal(t, models.StageShares, r.Items[2].Stage)
}

func TestReport_Render(t *testing.T) {
	f := decodedFiling("S9")
	f.SubmitDate = day(26)
	f.DocumentTypeCode = models.DocTypeQuarterlyReport
	f.Status = f.Status.With(models.StageShares, models.StatusError)
	f.Notes = map[models.Stage]models.StageNote{
		models.StageShares: {Diagnostic: "a|b"},
	}
	r := BuildReport([]models.Filing{f}, day(26), day(26), day(27))

	md := r.Markdown()
	assert.Contains(t, md, "| 2020-06-26 | S9 | E00001 | 四半期報告書 | ns | ERROR | a\\|b |")

	html, err := r.HTML()
	require.NoError(t, err)
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>S9</td>")
}

func TestReport_Empty(t *testing.T) {
	r := BuildReport(nil, day(1), day(2), day(3))
	assert.NotNil(t, r.Items)
	assert.Contains(t, r.Markdown(), "Nothing to review.")
}
