package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StatementKind identifies which statement a fact was read from.
type StatementKind string

const (
	KindBalanceSheet    StatementKind = "1"
	KindIncomeStatement StatementKind = "2"
	KindShareCount      StatementKind = "4"
)

// AllKinds lists the statement kinds the pipeline scrapes.
var AllKinds = []StatementKind{KindBalanceSheet, KindIncomeStatement, KindShareCount}

// ParseStatementKind accepts the stored code or the lower-case config name.
func ParseStatementKind(s string) (StatementKind, error) {
	switch s {
	case string(KindBalanceSheet), "balance_sheet":
		return KindBalanceSheet, nil
	case string(KindIncomeStatement), "income_statement":
		return KindIncomeStatement, nil
	case string(KindShareCount), "share_count":
		return KindShareCount, nil
	}
	return "", fmt.Errorf("unknown statement kind %q", s)
}

// Name is the identifier used in logs and config files.
func (k StatementKind) Name() string {
	switch k {
	case KindBalanceSheet:
		return "balance_sheet"
	case KindIncomeStatement:
		return "income_statement"
	case KindShareCount:
		return "share_count"
	}
	return "unknown(" + string(k) + ")"
}

// Stage returns the scrape stage that produces facts of this kind.
func (k StatementKind) Stage() Stage {
	switch k {
	case KindBalanceSheet:
		return StageBalanceSheet
	case KindIncomeStatement:
		return StageIncomeStatement
	default:
		return StageShares
	}
}

// ShareCountSubjectID is the single subject under which the issued share count is stored.
const ShareCountSubjectID = "0"

// =============================================================================
// FACTS
// =============================================================================

// FactKey is the composite unique key of a FinancialFact.
type FactKey struct {
	FilerCode        string
	Kind             StatementKind
	SubjectID        string
	PeriodEnd        time.Time
	DocumentTypeCode DocumentTypeCode
	SubmitDate       time.Time
}

// CreatedType records how a fact entered the store.
type CreatedType string

const (
	CreatedAuto   CreatedType = "auto"
	CreatedManual CreatedType = "manual"
)

// FinancialFact is one persisted numeric value. Immutable once written.
// Value is nil when the printed text could not be read as a number.
type FinancialFact struct {
	FactKey
	CompanyCode string
	DocumentID  string
	PeriodStart time.Time
	Value       *int64
	CreatedType CreatedType
	CreatedAt   time.Time
}

// =============================================================================
// SUBJECT TAXONOMY
// =============================================================================

// Subject is one detail line item; OutlineSubjectID names the coarse concept it belongs to.
type Subject struct {
	ID               string        `json:"id"`
	Kind             StatementKind `json:"kind"`
	OutlineSubjectID string        `json:"outline_subject_id"`
	DetailSubjectID  string        `json:"detail_subject_id"`
	Name             string        `json:"name"`
}

// =============================================================================
// VALUATION
// =============================================================================

// ValuationResult is the corporate value computed for one filer and period,
// with the indicators the filing could supply. ROE and ROA are percentages.
type ValuationResult struct {
	ID               string           `json:"id"`
	FilerCode        string           `json:"filer_code"`
	CompanyCode      string           `json:"company_code,omitempty"`
	PeriodEnd        time.Time        `json:"period_end"`
	DocumentTypeCode DocumentTypeCode `json:"document_type_code"`
	QuarterType      QuarterType      `json:"quarter_type"`
	SubmitDate       time.Time        `json:"submit_date"`
	DocumentID       string           `json:"document_id"`
	CorporateValue   decimal.Decimal  `json:"corporate_value"`
	BPS              *decimal.Decimal `json:"bps,omitempty"`
	EPS              *decimal.Decimal `json:"eps,omitempty"`
	ROE              *decimal.Decimal `json:"roe,omitempty"`
	ROA              *decimal.Decimal `json:"roa,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// ScrapingKeyword maps a statement kind to a structural tag searched in the filing.
type ScrapingKeyword struct {
	Kind     StatementKind `yaml:"-" json:"kind"`
	Keyword  string        `yaml:"keyword" json:"keyword"`
	Priority int           `yaml:"priority" json:"priority"`
	Remarks  string        `yaml:"remarks" json:"remarks,omitempty"`
}
