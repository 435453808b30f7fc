package scrape

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	bsKeyword     = "jpcrp_cor:BalanceSheetTextBlock"
	sharesKeyword = "jpcrp_cor:IssuedSharesTotalNumberOfSharesEtcTextBlock"
)

// tableHTML renders rows as a <table>; caption goes in a leading row of its own.
func tableHTML(caption string, rows [][]string) string {
	var sb strings.Builder
	sb.WriteString("<table>")
	if caption != "" {
		fmt.Fprintf(&sb, "<tr><td>%s</td></tr>", caption)
	}
	for _, r := range rows {
		sb.WriteString("<tr>")
		for _, c := range r {
			fmt.Fprintf(&sb, "<td><p>%s</p></td>", c)
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</table>")
	return sb.String()
}

// sectionHTML wraps a table in an element tagged with keyword.
func sectionHTML(keyword, table string) string {
	return fmt.Sprintf(`<div name="%s"><p>section</p>%s</div>`, keyword, table)
}

func pageHTML(sections ...string) string {
	return "<html><body>" + strings.Join(sections, "") + "</body></html>"
}

// writeFiles creates a filing directory holding the given files.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func parseFragment(t *testing.T, keyword, html string) Match {
	t.Helper()
	doc, err := ParseHTML(strings.NewReader(html))
	require.NoError(t, err)
	frags, err := doc.LocateByAttribute(KeywordAttribute, keyword)
	require.NoError(t, err)
	return Match{Keyword: keyword, Fragments: frags}
}
