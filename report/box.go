package report

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	boxTopLeft     = "╒"
	boxBottomLeft  = "└"
	boxTopRight    = "╕"
	boxBottomRight = "┘"
	boxSide        = "│"
	boxTop         = "═"
	boxBottom      = "─"
	dividerLeft    = "┠"
	dividerMiddle  = "─"
	dividerRight   = "┨"
	ellipsis       = "…"

	boxPadding = 2
)

// Alignment positions text inside a box line.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// DefaultWidth is the box width used when none is configured.
const DefaultWidth = 80

// Box draws lines inside a box of the given total width. Lines that do not
// fit are cut with an ellipsis.
func Box(lines []string, width int, align Alignment) string {
	if len(lines) == 0 || width <= boxPadding {
		return ""
	}

	inner := width - boxPadding
	parts := make([]string, 0, len(lines)+2) //nolint:mnd

	parts = append(parts, boxTopLeft+strings.Repeat(boxTop, inner)+boxTopRight)

	for _, l := range lines {
		parts = append(parts, boxSide+fit(l, inner, align)+boxSide)
	}

	parts = append(parts, boxBottomLeft+strings.Repeat(boxBottom, inner)+boxBottomRight)

	return strings.Join(parts, "\n") + "\n"
}

// Divider draws a horizontal rule of the given total width.
func Divider(width int) string {
	if width <= boxPadding {
		return ""
	}

	return fmt.Sprintf("%s%s%s\n", dividerLeft, strings.Repeat(dividerMiddle, width-boxPadding), dividerRight)
}

func countGraphic(s string) int {
	count := 0

	for _, r := range s {
		if unicode.IsGraphic(r) {
			count++
		}
	}

	return count
}

// truncateGraphic keeps the first n-1 graphic runes of s, leaving room for
// the ellipsis.
func truncateGraphic(s string, n int) (string, int) {
	var sb strings.Builder

	count := 0

	for _, r := range s {
		if unicode.IsGraphic(r) {
			count++
		}

		if count >= n {
			break
		}

		sb.WriteRune(r)
	}

	return sb.String(), count
}

// fit pads text to width, cutting it with an ellipsis when it is too long.
func fit(text string, width int, align Alignment) string {
	text = strings.ReplaceAll(text, "\t", "    ")

	length := countGraphic(text)
	if length == width {
		return text
	}

	if length > width {
		text, length = truncateGraphic(text, width)
		text += ellipsis
	}

	diff := max(width-length, 0)

	switch align {
	case AlignCenter:
		left := diff / 2 //nolint:mnd

		return strings.Repeat(" ", left) + text + strings.Repeat(" ", diff-left)
	case AlignRight:
		return strings.Repeat(" ", diff) + text
	default:
		return text + strings.Repeat(" ", diff)
	}
}
