package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// ColumnOrder says where the current-period value sits in a two-period row.
type ColumnOrder int

const (
	// CurrentLast is "label | previous | current", the common layout.
	CurrentLast ColumnOrder = iota
	// CurrentFirst is "label | current | previous".
	CurrentFirst
)

func (o ColumnOrder) String() string {
	if o == CurrentFirst {
		return "current_first"
	}
	return "current_last"
}

const (
	previousPeriodToken = "前"
	currentPeriodToken  = "当"
	footnoteHeaderToken = "注記"
)

// ExtractedRow is one line item read from a statement table.
type ExtractedRow struct {
	Subject  string
	Previous *string
	Current  string
	Unit     Unit
}

// periodNumberPatterns pull a comparable number out of a period header:
// the fiscal term in "第153期" or the year in "2021年度".
var periodNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`第\s*(\d+)\s*期`),
	regexp.MustCompile(`(\d+)\s*年度`),
}

// DetectColumnOrder inspects row index 1: a previous-period token in cell 0 or
// a current-period token in cell 1 means CurrentLast. Without those tokens the
// term or year numbers of the first and last header cells decide: ascending is
// CurrentLast, descending CurrentFirst. A missing or short row also means
// CurrentLast; a header with nothing to compare means CurrentFirst.
func DetectColumnOrder(rows [][]string) ColumnOrder {
	if len(rows) < 2 || len(rows[1]) < 2 {
		return CurrentLast
	}
	header := rows[1]
	if strings.Contains(header[0], previousPeriodToken) || strings.Contains(header[1], currentPeriodToken) {
		return CurrentLast
	}

	first, last := header[0], header[len(header)-1]
	for _, re := range periodNumberPatterns {
		a, okA := periodNumber(re, first)
		b, okB := periodNumber(re, last)
		if !okA || !okB || a == b {
			continue
		}
		if a < b {
			return CurrentLast
		}
		return CurrentFirst
	}
	return CurrentFirst
}

func periodNumber(re *regexp.Regexp, cell string) (int, bool) {
	m := re.FindStringSubmatch(width.Fold.String(cell))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

// CleanRows drops blank cells, then empty rows, then any footnote-reference
// column header ("注記") in row 1 so that row lines up with the value rows.
func CleanRows(raw [][]string) [][]string {
	var rows [][]string
	for _, r := range raw {
		var cells []string
		for _, c := range r {
			if isBlankCell(c) {
				continue
			}
			cells = append(cells, c)
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}

	if len(rows) > 1 {
		var header []string
		for _, c := range rows[1] {
			if strings.Contains(c, footnoteHeaderToken) {
				continue
			}
			header = append(header, c)
		}
		rows[1] = header
	}
	return rows
}

// isBlankCell matches empty and whitespace-only cells, plus the bare currency
// sign some filers put in its own column.
func isBlankCell(c string) bool {
	c = strings.TrimSpace(c)
	return c == "" || c == "円"
}

// ParseRows maps cleaned rows to ExtractedRows. Rows with other than two or
// three cells are headers or decoration and are dropped.
func ParseRows(rows [][]string, order ColumnOrder, unit Unit) []ExtractedRow {
	out := make([]ExtractedRow, 0, len(rows))
	for _, r := range rows {
		switch len(r) {
		case 2:
			out = append(out, ExtractedRow{Subject: r[0], Current: r[1], Unit: unit})
		case 3:
			prev, cur := r[1], r[2]
			if order == CurrentFirst {
				prev, cur = r[2], r[1]
			}
			out = append(out, ExtractedRow{Subject: r[0], Previous: &prev, Current: cur, Unit: unit})
		}
	}
	return out
}

// ParseFinancialTable reads the statement tables of a located match.
// The unit must resolve; an empty row list is a valid result.
func ParseFinancialTable(m Match) ([]ExtractedRow, ColumnOrder, error) {
	tables := m.Tables()
	unit, err := ResolveUnit(m.Keyword, tables)
	if err != nil {
		return nil, CurrentLast, err
	}

	var raw [][]string
	for _, t := range tables {
		raw = append(raw, t.Rows...)
	}
	rows := CleanRows(raw)
	order := DetectColumnOrder(rows)
	return ParseRows(rows, order, unit), order, nil
}
