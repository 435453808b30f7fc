// Package subject maps printed line-item labels to the subject taxonomy and
// reassembles outline-level aggregates from stored facts.
package subject

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"filing_valuation/pkg/models"

	hjson "github.com/hjson/hjson-go/v4"
)

// Outline is a coarse concept the valuation reads (e.g. total current assets).
type Outline struct {
	Kind models.StatementKind
	ID   string
	Name string
}

func (o Outline) String() string {
	return fmt.Sprintf("%s/%s(%s)", o.Kind.Name(), o.ID, o.Name)
}

// Outlines read by the valuation, the indicators and balance-sheet
// post-processing.
var (
	TotalCurrentAssets             = Outline{models.KindBalanceSheet, "1", "流動資産合計"}
	TotalInvestmentsAndOtherAssets = Outline{models.KindBalanceSheet, "4", "投資その他の資産合計"}
	TotalAssets                    = Outline{models.KindBalanceSheet, "7", "資産合計"}
	TotalCurrentLiabilities        = Outline{models.KindBalanceSheet, "8", "流動負債合計"}
	TotalFixedLiabilities          = Outline{models.KindBalanceSheet, "9", "固定負債合計"}
	TotalLiabilities               = Outline{models.KindBalanceSheet, "10", "負債合計"}
	TotalNetAssets                 = Outline{models.KindBalanceSheet, "14", "純資産合計"}
	SubscriptionWarrant            = Outline{models.KindBalanceSheet, "16", "新株予約権"}
	OperatingProfit                = Outline{models.KindIncomeStatement, "3", "営業利益"}
	NetIncome                      = Outline{models.KindIncomeStatement, "11", "当期純利益"}
	NumberOfShares                 = Outline{models.KindShareCount, models.ShareCountSubjectID, "発行済株式総数"}
)

// ErrNotLoaded is returned by lookups made before the first Refresh.
var ErrNotLoaded = errors.New("subject taxonomy not loaded")

// Source supplies the subject rows; the store implements it.
type Source interface {
	ListSubjects(ctx context.Context) ([]models.Subject, error)
}

// Taxonomy is a read-only in-memory copy of the subject table. It is filled by
// an explicit Refresh and never reloads on its own.
type Taxonomy struct {
	source Source

	mu        sync.RWMutex
	loaded    bool
	byOutline map[outlineKey][]models.Subject
	byName    map[nameKey]models.Subject
}

type outlineKey struct {
	kind    models.StatementKind
	outline string
}

type nameKey struct {
	kind models.StatementKind
	name string
}

// NewTaxonomy returns an empty taxonomy backed by source.
func NewTaxonomy(source Source) *Taxonomy {
	return &Taxonomy{source: source}
}

// Refresh reloads every subject from the source.
func (t *Taxonomy) Refresh(ctx context.Context) error {
	subjects, err := t.source.ListSubjects(ctx)
	if err != nil {
		return fmt.Errorf("load subjects: %w", err)
	}

	byOutline := make(map[outlineKey][]models.Subject)
	byName := make(map[nameKey]models.Subject)
	for _, s := range subjects {
		k := outlineKey{s.Kind, s.OutlineSubjectID}
		byOutline[k] = append(byOutline[k], s)

		nk := nameKey{s.Kind, normalizeName(s.Name)}
		if _, dup := byName[nk]; !dup {
			byName[nk] = s
		}
	}
	for _, details := range byOutline {
		sortDetails(details)
	}

	t.mu.Lock()
	t.byOutline = byOutline
	t.byName = byName
	t.loaded = true
	t.mu.Unlock()
	return nil
}

// Details returns the detail subjects of an outline, ascending by detail id.
func (t *Taxonomy) Details(o Outline) ([]models.Subject, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.loaded {
		return nil, ErrNotLoaded
	}
	details := t.byOutline[outlineKey{o.Kind, o.ID}]
	out := make([]models.Subject, len(details))
	copy(out, details)
	return out, nil
}

// FindByName maps a printed row label to a subject. Whitespace is ignored.
func (t *Taxonomy) FindByName(kind models.StatementKind, label string) (models.Subject, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.loaded {
		return models.Subject{}, false, ErrNotLoaded
	}
	s, ok := t.byName[nameKey{kind, normalizeName(label)}]
	return s, ok, nil
}

// Len is the number of loaded subjects.
func (t *Taxonomy) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, d := range t.byOutline {
		n += len(d)
	}
	return n
}

// sortDetails orders by detail id: numerically when both ids are integers,
// lexically otherwise, so "10" follows "9".
func sortDetails(details []models.Subject) {
	sort.SliceStable(details, func(i, j int) bool {
		a, b := details[i].DetailSubjectID, details[j].DetailSubjectID
		ai, errA := strconv.Atoi(a)
		bi, errB := strconv.Atoi(b)
		if errA == nil && errB == nil {
			return ai < bi
		}
		return a < b
	})
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// =============================================================================
// SEED FILE
// =============================================================================

type seedFile struct {
	Subjects []seedSubject `json:"subjects"`
}

type seedSubject struct {
	Kind    string `json:"kind"`
	Outline string `json:"outline"`
	Detail  string `json:"detail"`
	Name    string `json:"name"`
}

// LoadSeed reads the subject taxonomy from an hjson file.
func LoadSeed(path string) ([]models.Subject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subject seed: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes hjson seed data. Subject ids are "<kind>-<outline>-<detail>".
func ParseSeed(data []byte) ([]models.Subject, error) {
	var seed seedFile
	if err := hjson.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse subject seed: %w", err)
	}

	subjects := make([]models.Subject, 0, len(seed.Subjects))
	seen := make(map[string]bool)
	for i, s := range seed.Subjects {
		kind, err := models.ParseStatementKind(s.Kind)
		if err != nil {
			return nil, fmt.Errorf("subject %d: %w", i, err)
		}
		if s.Outline == "" || s.Detail == "" || s.Name == "" {
			return nil, fmt.Errorf("subject %d: outline, detail and name are required", i)
		}
		id := SubjectID(kind, s.Outline, s.Detail)
		if kind == models.KindShareCount {
			id = models.ShareCountSubjectID
		}
		if seen[id] {
			return nil, fmt.Errorf("subject %d: duplicate id %s", i, id)
		}
		seen[id] = true
		subjects = append(subjects, models.Subject{
			ID:               id,
			Kind:             kind,
			OutlineSubjectID: s.Outline,
			DetailSubjectID:  s.Detail,
			Name:             s.Name,
		})
	}
	return subjects, nil
}

// SubjectID builds the stable id of a detail subject.
func SubjectID(kind models.StatementKind, outline, detail string) string {
	return fmt.Sprintf("%s-%s-%s", kind, outline, detail)
}
