package scrape

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"filing_valuation/pkg/models"

	"github.com/rs/zerolog"
)

const (
	// DefaultBodyMarker is the filename substring of the main-body documents of a filing.
	DefaultBodyMarker = "honbun"
	// KeywordAttribute is the structural attribute that carries taxonomy tags.
	KeywordAttribute = "name"
)

// Match is the single body file a keyword was found in.
type Match struct {
	Path      string
	Keyword   string
	Fragments []Fragment
}

// Tables returns every table beneath the matched elements.
func (m Match) Tables() []Table {
	var out []Table
	for _, f := range m.Fragments {
		out = append(out, f.Tables...)
	}
	return out
}

// Locator finds the one body file of a filing that carries a keyword.
// It keeps no state between calls.
type Locator struct {
	BodyMarker string
	Open       DocumentOpener
	log        zerolog.Logger
}

// NewLocator builds a Locator over the goquery engine.
func NewLocator(bodyMarker string, log zerolog.Logger) *Locator {
	if bodyMarker == "" {
		bodyMarker = DefaultBodyMarker
	}
	return &Locator{
		BodyMarker: bodyMarker,
		Open:       OpenHTML,
		log:        log.With().Str("component", "locator").Logger(),
	}
}

// BodyFiles lists the files in dir whose name contains the body marker, sorted by name.
func (l *Locator) BodyFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read filing directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.Contains(e.Name(), l.BodyMarker) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Locate returns the body file whose keyword-tagged elements have text.
// Zero matching files is found=false with a nil error; more than one is a
// *MultipleMatchesError.
func (l *Locator) Locate(dir, keyword string) (Match, bool, error) {
	files, err := l.BodyFiles(dir)
	if err != nil {
		return Match{}, false, err
	}

	var matches []Match
	for _, path := range files {
		doc, err := l.Open(path)
		if err != nil {
			return Match{}, false, err
		}
		fragments, err := doc.LocateByAttribute(KeywordAttribute, keyword)
		if err != nil {
			return Match{}, false, fmt.Errorf("%s: %w", path, err)
		}
		if !anyText(fragments) {
			continue
		}
		matches = append(matches, Match{Path: path, Keyword: keyword, Fragments: fragments})
	}

	switch len(matches) {
	case 0:
		return Match{}, false, nil
	case 1:
		return matches[0], true, nil
	}

	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = filepath.Base(m.Path)
	}
	return Match{}, false, &MultipleMatchesError{Keyword: keyword, Files: paths}
}

// LocateFirst tries keywords in ascending priority and returns the first match.
// An ambiguous keyword stops the search: a lower-priority keyword must not
// paper over a data-quality problem.
func (l *Locator) LocateFirst(dir string, keywords []models.ScrapingKeyword) (Match, bool, error) {
	for _, kw := range SortKeywords(keywords) {
		m, found, err := l.Locate(dir, kw.Keyword)
		if err != nil {
			return Match{}, false, err
		}
		if found {
			l.log.Debug().Str("keyword", kw.Keyword).Str("file", filepath.Base(m.Path)).Msg("keyword located")
			return m, true, nil
		}
	}
	return Match{}, false, nil
}

// SortKeywords returns a copy ordered by priority; ties keep their configured order.
func SortKeywords(keywords []models.ScrapingKeyword) []models.ScrapingKeyword {
	out := make([]models.ScrapingKeyword, len(keywords))
	copy(out, keywords)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

func anyText(fragments []Fragment) bool {
	for _, f := range fragments {
		if f.HasText() {
			return true
		}
	}
	return false
}
