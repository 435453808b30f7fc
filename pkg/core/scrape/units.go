package scrape

import (
	"strings"
)

// Unit is the scale factor printed with a financial table.
type Unit int64

const (
	UnitThousand Unit = 1_000
	UnitMillion  Unit = 1_000_000
)

func (u Unit) String() string {
	switch u {
	case UnitThousand:
		return "thousands"
	case UnitMillion:
		return "millions"
	}
	return "unknown"
}

// Marker phrases per scale. Whitespace is ignored when matching, so
// "単位　千円" and "単位 千円" are the same marker.
var (
	thousandMarkers = []string{
		"単位：千円",
		"単位:千円",
		"単位千円",
		"金額（千円）",
		"（千円）",
		"(in thousands)",
	}
	millionMarkers = []string{
		"単位：百万円",
		"単位:百万円",
		"単位百万円",
		"金額（百万円）",
		"（百万円）",
		"(in millions)",
	}
)

// DetectUnit scans the text of the given tables for a unit marker.
// The thousand set is checked before the million set; the first hit wins.
func DetectUnit(tables []Table) (Unit, bool) {
	var sb strings.Builder
	for _, t := range tables {
		sb.WriteString(t.Text)
		sb.WriteByte('\n')
	}
	return detectUnitText(sb.String())
}

func detectUnitText(text string) (Unit, bool) {
	text = strings.ToLower(stripSpace(text))

	for _, m := range thousandMarkers {
		if strings.Contains(text, stripSpace(m)) {
			return UnitThousand, true
		}
	}
	for _, m := range millionMarkers {
		if strings.Contains(text, stripSpace(m)) {
			return UnitMillion, true
		}
	}
	return 0, false
}

// ResolveUnit is DetectUnit with the failure reported as an error for keyword.
func ResolveUnit(keyword string, tables []Table) (Unit, error) {
	unit, ok := DetectUnit(tables)
	if !ok {
		return 0, &UnitError{Keyword: keyword}
	}
	return unit, nil
}
