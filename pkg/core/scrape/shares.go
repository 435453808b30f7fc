package scrape

import (
	"strings"
)

// issuedShareTokens are the token sets that mark the "issued as of period end"
// column header. A cell matches when it contains every token of one set, in
// any order, ignoring whitespace and line breaks.
var issuedShareTokens = [][]string{
	{"事業", "年度", "末", "現在", "発行"},
	{"当期", "末", "現在", "発行", "数"},
	{"四半期", "末", "発行", "数"},
	{"四半期", "末", "現在", "発行", "株"},
}

const (
	totalToken      = "計"
	accountingToken = "会計"
)

// ShareCount is the raw issued-share text and where it was read from.
type ShareCount struct {
	Value  string
	Row    int
	Column int
}

// ExtractShareCount reads the issued-share total from the share table of a match.
// The column comes from the issued-shares header cell and the row from the
// "計" total line; blank cells are kept so positions stay stable.
func ExtractShareCount(m Match) (ShareCount, error) {
	var grid [][]string
	for _, t := range m.Tables() {
		grid = append(grid, t.Rows...)
	}
	if len(grid) == 0 {
		return ShareCount{}, ErrShareTableNotFound
	}

	column, err := findIssuedColumn(grid)
	if err != nil {
		return ShareCount{}, err
	}
	row, err := findTotalRow(grid)
	if err != nil {
		return ShareCount{}, err
	}

	if column >= len(grid[row]) || strings.TrimSpace(grid[row][column]) == "" {
		return ShareCount{}, ErrShareCellMissing
	}
	return ShareCount{Value: grid[row][column], Row: row, Column: column}, nil
}

func findIssuedColumn(grid [][]string) (int, error) {
	var columns []int
	for _, r := range grid {
		for j, c := range r {
			if isIssuedMarker(c) && !containsInt(columns, j) {
				columns = append(columns, j)
			}
		}
	}
	switch len(columns) {
	case 0:
		return 0, ErrIssuedMarkerNotFound
	case 1:
		return columns[0], nil
	}
	return 0, &AmbiguousMarkerError{Marker: "issued", Positions: columns}
}

func findTotalRow(grid [][]string) (int, error) {
	var rows []int
	for i, r := range grid {
		for _, c := range r {
			if isTotalMarker(c) {
				rows = append(rows, i)
				break
			}
		}
	}
	switch len(rows) {
	case 0:
		return 0, ErrTotalMarkerNotFound
	case 1:
		return rows[0], nil
	}
	return 0, &AmbiguousMarkerError{Marker: "total", Positions: rows}
}

func isIssuedMarker(cell string) bool {
	cell = stripSpace(cell)
	for _, set := range issuedShareTokens {
		if containsAll(cell, set) {
			return true
		}
	}
	return false
}

func isTotalMarker(cell string) bool {
	return strings.Contains(cell, totalToken) && !strings.Contains(cell, accountingToken)
}

func containsAll(s string, tokens []string) bool {
	for _, t := range tokens {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
