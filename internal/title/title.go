// Package title turns the titles of a window's panes into one window name.
package title

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Window synthesizes a window title from its pane titles.
//
// Equal non-empty titles are grouped in order of first appearance. A group
// of one renders as the title itself, a larger group as "<title> x <count>".
// Groups are separated by a single space. Empty titles are ignored, so a
// window with no classified panes gets "".
func Window(titles []string) string {
	counts := make(map[string]int, len(titles))
	order := make([]string, 0, len(titles))
	for _, t := range titles {
		if t == "" {
			continue
		}
		if counts[t] == 0 {
			order = append(order, t)
		}
		counts[t]++
	}

	var b strings.Builder
	for i, t := range order {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t)
		if n := counts[t]; n > 1 {
			b.WriteString(" x ")
			b.WriteString(strconv.Itoa(n))
		}
	}
	return b.String()
}

// Truncate clips s to at most width terminal cells, ending in "…" when
// clipped. A width of zero or less disables truncation.
func Truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
