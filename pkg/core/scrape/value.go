package scrape

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// noteMarker matches footnote references printed next to amounts:
// "※1", "注2", "*3" (after width folding).
var noteMarker = regexp.MustCompile(`(※|注|\*)\d+`)

var valueReplacer = strings.NewReplacer(
	",", "",
	"株", "",
	"円", "",
	" ", "",
)

// ParseValue converts a printed amount to an integer in the table's printed
// scale. "△" and a leading "-" are negative; a bare dash means zero.
func ParseValue(printed string) (int64, error) {
	s := width.Fold.String(printed)
	s = noteMarker.ReplaceAllString(s, "")
	s = valueReplacer.Replace(stripSpace(s))

	switch s {
	case "-", "―", "‐", "—", "－":
		return 0, nil
	case "":
		return 0, fmt.Errorf("empty value %q", printed)
	}

	s = strings.Replace(s, "△", "-", 1)
	s = strings.Replace(s, "▲", "-", 1)

	// Amounts are integers in the printed scale; some filers print ".0".
	if i := strings.IndexByte(s, '.'); i >= 0 && strings.Trim(s[i+1:], "0") == "" {
		s = s[:i]
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse value %q: %w", printed, err)
	}
	return v, nil
}

// Scale multiplies a printed amount by the table unit.
func (u Unit) Scale(v int64) (int64, error) {
	if v != 0 && (v > math.MaxInt64/int64(u) || v < math.MinInt64/int64(u)) {
		return 0, fmt.Errorf("value %d overflows at scale %s", v, u)
	}
	return v * int64(u), nil
}

// ScaledValue parses printed and applies the unit.
func ScaledValue(printed string, unit Unit) (int64, error) {
	v, err := ParseValue(printed)
	if err != nil {
		return 0, err
	}
	return unit.Scale(v)
}
