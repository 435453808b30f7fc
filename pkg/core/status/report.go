package status

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"filing_valuation/pkg/models"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// AttentionItem is one stage an operator has to look at.
type AttentionItem struct {
	DocumentID       string                  `json:"document_id"`
	FilerCode        string                  `json:"filer_code"`
	DocumentTypeCode models.DocumentTypeCode `json:"document_type_code"`
	SubmitDate       time.Time               `json:"submit_date"`
	Stage            models.Stage            `json:"stage"`
	Status           string                  `json:"status"`
	Diagnostic       string                  `json:"diagnostic,omitempty"`
	Path             string                  `json:"path,omitempty"`
}

// Report lists every PARTIAL or ERROR stage of the filings in a date range.
type Report struct {
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	GeneratedAt time.Time       `json:"generated_at"`
	Filings     int             `json:"filings"`
	Partial     int             `json:"partial"`
	Errors      int             `json:"errors"`
	Items       []AttentionItem `json:"items"`
}

// BuildReport collects attention items. Removed filings are skipped.
func BuildReport(filings []models.Filing, from, to, now time.Time) Report {
	r := Report{From: from, To: to, GeneratedAt: now, Items: []AttentionItem{}}

	seen := make(map[string]bool)
	for _, f := range filings {
		if f.Removed {
			continue
		}
		for _, stage := range models.AllStages {
			st := f.Status.Get(stage)
			if !st.NeedsAttention() {
				continue
			}
			seen[f.DocumentID] = true
			if st == models.StatusPartial {
				r.Partial++
			} else {
				r.Errors++
			}
			note := f.Note(stage)
			r.Items = append(r.Items, AttentionItem{
				DocumentID:       f.DocumentID,
				FilerCode:        f.FilerCode,
				DocumentTypeCode: f.DocumentTypeCode,
				SubmitDate:       f.SubmitDate,
				Stage:            stage,
				Status:           st.String(),
				Diagnostic:       note.Diagnostic,
				Path:             note.Path,
			})
		}
	}
	r.Filings = len(seen)

	order := make(map[models.Stage]int, len(models.AllStages))
	for i, s := range models.AllStages {
		order[s] = i
	}
	sort.SliceStable(r.Items, func(i, j int) bool {
		a, b := r.Items[i], r.Items[j]
		if !a.SubmitDate.Equal(b.SubmitDate) {
			return a.SubmitDate.Before(b.SubmitDate)
		}
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		return order[a.Stage] < order[b.Stage]
	})
	return r
}

// Markdown renders the report as a Markdown document.
func (r Report) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Filings needing attention\n\n")
	fmt.Fprintf(&sb, "Submitted %s to %s. %d filings, %d partial, %d error.\n\n",
		r.From.Format(models.DateLayout), r.To.Format(models.DateLayout), r.Filings, r.Partial, r.Errors)

	if len(r.Items) == 0 {
		sb.WriteString("Nothing to review.\n")
		return sb.String()
	}

	sb.WriteString("| Submitted | Document | Filer | Type | Stage | Status | Diagnostic | File |\n")
	sb.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, it := range r.Items {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			it.SubmitDate.Format(models.DateLayout),
			it.DocumentID,
			it.FilerCode,
			it.DocumentTypeCode.Name(),
			it.Stage,
			it.Status,
			escapeCell(it.Diagnostic),
			escapeCell(it.Path),
		)
	}
	return sb.String()
}

// HTML renders the Markdown form through goldmark with GFM tables.
func (r Report) HTML() (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(r.Markdown()), &buf); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
