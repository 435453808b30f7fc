package scrape

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// =============================================================================
// FRAGMENTS - engine-neutral view of a keyword-matched element
// =============================================================================

// Table is one <table> beneath a matched element. Rows hold the cell texts of
// each <tr> in document order, blank cells included.
type Table struct {
	Text string
	Rows [][]string
}

// Fragment is one element whose structural attribute matched a keyword.
type Fragment struct {
	Text   string
	Tables []Table
}

// HasText reports whether the matched element carries any visible text.
func (f Fragment) HasText() bool {
	return strings.TrimSpace(f.Text) != ""
}

// AttributeLocator finds elements by a structural attribute (not visible text).
// Extraction code only talks to this interface so the HTML engine stays swappable.
type AttributeLocator interface {
	LocateByAttribute(attr, value string) ([]Fragment, error)
}

// DocumentOpener loads one decoded file as an AttributeLocator.
type DocumentOpener func(path string) (AttributeLocator, error)

// =============================================================================
// GOQUERY ENGINE
// =============================================================================

// HTMLDocument is the goquery-backed AttributeLocator.
type HTMLDocument struct {
	doc *goquery.Document
}

// ParseHTML reads an HTML (or inline XBRL) document.
func ParseHTML(r io.Reader) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &HTMLDocument{doc: doc}, nil
}

// OpenHTML parses the file at path.
func OpenHTML(path string) (AttributeLocator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := ParseHTML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// LocateByAttribute returns every element whose attr equals value exactly.
// Values are compared in Go rather than inside the selector so taxonomy tags
// with ':' or '.' need no escaping.
func (d *HTMLDocument) LocateByAttribute(attr, value string) ([]Fragment, error) {
	if attr == "" {
		return nil, fmt.Errorf("empty attribute name")
	}

	var fragments []Fragment
	d.doc.Find("[" + attr + "]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr(attr)
		return v == value
	}).Each(func(_ int, s *goquery.Selection) {
		fragments = append(fragments, toFragment(s))
	})
	return fragments, nil
}

func toFragment(s *goquery.Selection) Fragment {
	frag := Fragment{Text: normalizeText(s.Text())}

	tables := s.Find("table")
	if goquery.NodeName(s) == "table" {
		tables = s.AddSelection(tables)
	}

	tables.Each(func(_ int, table *goquery.Selection) {
		t := Table{Text: normalizeText(table.Text())}
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalizeText(cell.Text()))
			})
			t.Rows = append(t.Rows, cells)
		})
		frag.Tables = append(frag.Tables, t)
	})
	return frag
}

// normalizeText collapses runs of whitespace (NBSP and U+3000 included) to one space.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripSpace removes every whitespace rune.
func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
