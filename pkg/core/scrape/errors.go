package scrape

import (
	"errors"
	"fmt"
	"strings"
)

// Data-quality errors. A stage that hits one of these records ERROR for the
// filing and carries on; they never abort a batch.
var (
	ErrUnrecognizedUnit     = errors.New("unit marker not found")
	ErrMultipleMatches      = errors.New("keyword matched more than one file")
	ErrShareTableNotFound   = errors.New("share count table not found")
	ErrIssuedMarkerNotFound = errors.New("issued shares marker not found")
	ErrTotalMarkerNotFound  = errors.New("total marker not found")
	ErrAmbiguousMarker      = errors.New("marker matched more than one row or column")
	ErrShareCellMissing     = errors.New("share count cell missing at marker intersection")
)

// MultipleMatchesError lists the files a keyword matched.
type MultipleMatchesError struct {
	Keyword string
	Files   []string
}

func (e *MultipleMatchesError) Error() string {
	return fmt.Sprintf("keyword %q matched %d files: %s", e.Keyword, len(e.Files), strings.Join(e.Files, ", "))
}

func (e *MultipleMatchesError) Unwrap() error { return ErrMultipleMatches }

// AmbiguousMarkerError reports a share-table marker found at more than one position.
type AmbiguousMarkerError struct {
	Marker    string // "issued" or "total"
	Positions []int
}

func (e *AmbiguousMarkerError) Error() string {
	return fmt.Sprintf("%s marker matched at positions %v", e.Marker, e.Positions)
}

func (e *AmbiguousMarkerError) Unwrap() error { return ErrAmbiguousMarker }

// UnitError carries the keyword whose tables had no unit marker.
type UnitError struct {
	Keyword string
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("keyword %q: %v", e.Keyword, ErrUnrecognizedUnit)
}

func (e *UnitError) Unwrap() error { return ErrUnrecognizedUnit }

var dataQualityErrors = []error{
	ErrUnrecognizedUnit,
	ErrMultipleMatches,
	ErrShareTableNotFound,
	ErrIssuedMarkerNotFound,
	ErrTotalMarkerNotFound,
	ErrAmbiguousMarker,
	ErrShareCellMissing,
}

// IsDataQuality reports whether err comes from the document itself rather than
// from infrastructure. Such errors become stage outcomes instead of propagating.
func IsDataQuality(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range dataQualityErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
