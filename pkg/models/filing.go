// Package models holds the persisted entities shared by the extraction and valuation pipeline.
package models

import (
	"fmt"
	"time"
)

// =============================================================================
// STAGE STATUS
// =============================================================================

// StageStatus is the progress flag of one pipeline stage for one filing.
// The codes are the values written to the store.
type StageStatus string

const (
	StatusNotStarted StageStatus = "0"
	StatusDone       StageStatus = "1"
	StatusPartial    StageStatus = "5" // scraped, but a value turned out to be unusable
	StatusError      StageStatus = "9"
)

// ParseStageStatus converts a stored code back to a StageStatus.
func ParseStageStatus(code string) (StageStatus, error) {
	switch s := StageStatus(code); s {
	case StatusNotStarted, StatusDone, StatusPartial, StatusError:
		return s, nil
	}
	return "", fmt.Errorf("unknown stage status code %q", code)
}

func (s StageStatus) String() string {
	switch s {
	case StatusNotStarted:
		return "NOT_STARTED"
	case StatusDone:
		return "DONE"
	case StatusPartial:
		return "PARTIAL"
	case StatusError:
		return "ERROR"
	}
	return "UNKNOWN(" + string(s) + ")"
}

// NeedsAttention reports whether an operator should look at a stage in this state.
func (s StageStatus) NeedsAttention() bool {
	return s == StatusPartial || s == StatusError
}

// Stage identifies one step of the per-filing pipeline.
type Stage string

const (
	StageDownload        Stage = "download"
	StageDecode          Stage = "decode"
	StageBalanceSheet    Stage = "bs"
	StageIncomeStatement Stage = "pl"
	StageShares          Stage = "ns"
)

// AllStages lists every stage in pipeline order.
var AllStages = []Stage{StageDownload, StageDecode, StageBalanceSheet, StageIncomeStatement, StageShares}

// ScrapeStages lists the stages that read the decoded documents.
var ScrapeStages = []Stage{StageBalanceSheet, StageIncomeStatement, StageShares}

// Kind returns the statement kind a scrape stage produces.
func (s Stage) Kind() (StatementKind, bool) {
	switch s {
	case StageBalanceSheet:
		return KindBalanceSheet, true
	case StageIncomeStatement:
		return KindIncomeStatement, true
	case StageShares:
		return KindShareCount, true
	}
	return "", false
}

// =============================================================================
// STATUS VECTOR
// =============================================================================

// StatusVector is the per-filing state: one flag per stage.
// Values are copied on every change; mutate through With.
type StatusVector struct {
	Download        StageStatus `json:"download"`
	Decode          StageStatus `json:"decode"`
	BalanceSheet    StageStatus `json:"bs"`
	IncomeStatement StageStatus `json:"pl"`
	Shares          StageStatus `json:"ns"`
}

// NewStatusVector returns a vector with every stage NOT_STARTED.
func NewStatusVector() StatusVector {
	return StatusVector{
		Download:        StatusNotStarted,
		Decode:          StatusNotStarted,
		BalanceSheet:    StatusNotStarted,
		IncomeStatement: StatusNotStarted,
		Shares:          StatusNotStarted,
	}
}

// Get returns the flag for a stage.
func (v StatusVector) Get(stage Stage) StageStatus {
	switch stage {
	case StageDownload:
		return v.Download
	case StageDecode:
		return v.Decode
	case StageBalanceSheet:
		return v.BalanceSheet
	case StageIncomeStatement:
		return v.IncomeStatement
	case StageShares:
		return v.Shares
	}
	return ""
}

// With returns a copy of the vector with one stage replaced.
func (v StatusVector) With(stage Stage, status StageStatus) StatusVector {
	switch stage {
	case StageDownload:
		v.Download = status
	case StageDecode:
		v.Decode = status
	case StageBalanceSheet:
		v.BalanceSheet = status
	case StageIncomeStatement:
		v.IncomeStatement = status
	case StageShares:
		v.Shares = status
	}
	return v
}

// ScrapeDone reports whether all three scrape stages finished successfully.
func (v StatusVector) ScrapeDone() bool {
	return v.BalanceSheet == StatusDone && v.IncomeStatement == StatusDone && v.Shares == StatusDone
}

// Decoded reports whether the collaborator stages left readable files on disk.
func (v StatusVector) Decoded() bool {
	return v.Download == StatusDone && v.Decode == StatusDone
}

// =============================================================================
// FILING
// =============================================================================

// UnknownPeriod marks a filing whose fiscal period could not be determined.
// Store keys must be non-null, so this date stands in for "unknown".
var UnknownPeriod = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// StageNote carries the document path and diagnostic recorded with a stage outcome.
type StageNote struct {
	Path       string    `json:"path,omitempty"`
	Diagnostic string    `json:"diagnostic,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Filing is one disclosed report.
type Filing struct {
	DocumentID       string              `json:"document_id"`
	FilerCode        string              `json:"filer_code"`
	CompanyCode      string              `json:"company_code,omitempty"`
	DocumentTypeCode DocumentTypeCode    `json:"document_type_code"`
	QuarterType      QuarterType         `json:"quarter_type"`
	PeriodStart      time.Time           `json:"period_start"`
	PeriodEnd        time.Time           `json:"period_end"`
	SubmitDate       time.Time           `json:"submit_date"`
	Status           StatusVector        `json:"status"`
	Notes            map[Stage]StageNote `json:"notes,omitempty"`
	Removed          bool                `json:"removed"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// HasKnownPeriod reports whether the fiscal period end was determined.
func (f Filing) HasKnownPeriod() bool {
	return !f.PeriodEnd.IsZero() && !f.PeriodEnd.Equal(UnknownPeriod)
}

// Note returns the recorded note for a stage (zero value when absent).
func (f Filing) Note(stage Stage) StageNote {
	if f.Notes == nil {
		return StageNote{}
	}
	return f.Notes[stage]
}

// FactKey builds the store key for one subject of this filing.
func (f Filing) FactKey(kind StatementKind, subjectID string) FactKey {
	return FactKey{
		FilerCode:        f.FilerCode,
		Kind:             kind,
		SubjectID:        subjectID,
		PeriodEnd:        f.PeriodEnd,
		DocumentTypeCode: f.DocumentTypeCode,
		SubmitDate:       f.SubmitDate,
	}
}

func (f Filing) String() string {
	return fmt.Sprintf("%s(filer=%s type=%s period=%s submitted=%s)",
		f.DocumentID, f.FilerCode, f.DocumentTypeCode,
		f.PeriodEnd.Format(DateLayout), f.SubmitDate.Format(DateLayout))
}

// DateLayout is the date format used for keys, paths and stored text dates.
const DateLayout = "2006-01-02"

// =============================================================================
// DOCUMENT TYPE / QUARTER
// =============================================================================

// DocumentTypeCode is the registry's document type.
type DocumentTypeCode string

const (
	DocTypeAnnualReport           DocumentTypeCode = "120"
	DocTypeAmendedAnnualReport    DocumentTypeCode = "130"
	DocTypeQuarterlyReport        DocumentTypeCode = "140"
	DocTypeAmendedQuarterlyReport DocumentTypeCode = "150"
	DocTypeSemiAnnualReport       DocumentTypeCode = "160"
	DocTypeAmendedSemiAnnual      DocumentTypeCode = "170"
)

var documentTypeNames = map[DocumentTypeCode]string{
	DocTypeAnnualReport:           "有価証券報告書",
	DocTypeAmendedAnnualReport:    "訂正有価証券報告書",
	DocTypeQuarterlyReport:        "四半期報告書",
	DocTypeAmendedQuarterlyReport: "訂正四半期報告書",
	DocTypeSemiAnnualReport:       "半期報告書",
	DocTypeAmendedSemiAnnual:      "訂正半期報告書",
}

// Name returns the registry's display name, or the code itself when unknown.
func (c DocumentTypeCode) Name() string {
	if n, ok := documentTypeNames[c]; ok {
		return n
	}
	return string(c)
}

// IsQuarterly reports whether the document covers a quarter rather than a full year.
func (c DocumentTypeCode) IsQuarterly() bool {
	return c == DocTypeQuarterlyReport || c == DocTypeAmendedQuarterlyReport
}

// QuarterType is the quarter a quarterly report covers. Zero means "not a quarter".
type QuarterType int

const (
	QuarterOther QuarterType = 0
	Quarter1     QuarterType = 1
	Quarter2     QuarterType = 2
	Quarter3     QuarterType = 3
	Quarter4     QuarterType = 4
)

// Weight is the number of quarters the reported figures accumulate.
func (q QuarterType) Weight() (int64, bool) {
	if q >= Quarter1 && q <= Quarter4 {
		return int64(q), true
	}
	return 0, false
}
