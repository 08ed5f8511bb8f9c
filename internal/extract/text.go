package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

var (
	cellGap      = regexp.MustCompile(`\t+| {2,}`)
	mdSeparator  = regexp.MustCompile(`^\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?$`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
	controlChars = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
)

// Normalize applies NFKC, strips control characters, rewrites table-like
// regions as " | " rows and collapses blank runs.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = controlChars.ReplaceAllString(s, "")
	s = normalizeTables(s)
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// normalizeTables rewrites markdown tables and column-aligned text. A line
// of three or more cells is always a row; two-cell lines count only when a
// neighbouring line is also a row.
func normalizeTables(s string) string {
	lines := strings.Split(s, "\n")
	cells := make([][]string, len(lines))
	for i, line := range lines {
		cells[i] = splitCells(line)
	}

	out := make([]string, 0, len(lines))
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if mdSeparator.MatchString(trimmed) && strings.Contains(trimmed, "-") && strings.Contains(trimmed, "|") {
			continue
		}
		row := cells[i]
		isRow := len(row) >= 3 ||
			(len(row) == 2 && ((i > 0 && len(cells[i-1]) >= 2) || (i+1 < len(cells) && len(cells[i+1]) >= 2)))
		if isRow {
			out = append(out, strings.Join(row, " | "))
			continue
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}
	return strings.Join(out, "\n")
}

func splitCells(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	var parts []string
	if strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") && len(trimmed) > 1 {
		parts = strings.Split(strings.Trim(trimmed, "|"), "|")
	} else {
		parts = cellGap.Split(trimmed, -1)
	}

	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cells = append(cells, p)
		}
	}
	if len(cells) < 2 {
		return nil
	}
	return cells
}

// PageLabel is the marker word for a document kind.
func PageLabel(kind model.DocumentKind) string {
	if kind == model.KindSlideDeck {
		return "Slide"
	}
	return "Page"
}

// renderPages interleaves page markers with page text, skipping empty
// pages.
func renderPages(pages []model.Page, label string) string {
	var b strings.Builder
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- %s %d ---\n%s", label, p.Number, p.Text)
	}
	return b.String()
}

// truncate caps s at max characters. It reports whether anything was cut.
func truncate(s string, max int) (string, bool) {
	if utf8.RuneCountInString(s) <= max {
		return s, false
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}
