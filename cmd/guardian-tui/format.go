package main

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"guardian/internal/render"
)

type styledWord struct {
	plain  string
	styled string
}

// renderSegments lays out render hints inside width columns. Styling is
// applied per word so wrapping measures plain text only.
func renderSegments(segments []render.Segment, theme uiTheme, width int) string {
	var lines [][]styledWord
	current := []styledWord{}
	for _, seg := range segments {
		switch seg.Kind {
		case render.SegmentBreak:
			lines = append(lines, current)
			current = []styledWord{}
		case render.SegmentLink:
			label := seg.Text
			if label == "" {
				label = seg.URL
			}
			current = append(current, styledWord{plain: label, styled: theme.link.Render(label)})
		default:
			for _, w := range strings.Fields(seg.Text) {
				styled := w
				if seg.Kind == render.SegmentBold {
					styled = theme.bold.Render(w)
				}
				current = append(current, styledWord{plain: w, styled: styled})
			}
		}
	}
	lines = append(lines, current)

	out := make([]string, 0, len(lines))
	for _, words := range lines {
		out = append(out, wrapWords(words, width)...)
	}
	return strings.Join(out, "\n")
}

func wrapWords(words []styledWord, width int) []string {
	if len(words) == 0 {
		return []string{""}
	}
	var (
		lines   []string
		b       strings.Builder
		lineLen int
	)
	for _, w := range words {
		n := utf8.RuneCountInString(w.plain)
		if lineLen > 0 && width > 0 && lineLen+1+n > width {
			lines = append(lines, b.String())
			b.Reset()
			lineLen = 0
		}
		if lineLen > 0 {
			b.WriteByte(' ')
			lineLen++
		}
		b.WriteString(w.styled)
		lineLen += n
	}
	return append(lines, b.String())
}

func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	wrapped := make([]string, 0, len(lines))
	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			wrapped = append(wrapped, "")
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			if len(current)+1+len(word) <= width {
				current += " " + word
				continue
			}
			wrapped = append(wrapped, current)
			current = word
		}
		wrapped = append(wrapped, current)
	}
	return strings.Join(wrapped, "\n")
}

func truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

func compactSingleLine(text string, limit int) string {
	compact := strings.Join(strings.Fields(text), " ")
	return truncate(compact, limit)
}

// histogram renders one bar per row scaled to the largest count.
func histogram(labels []string, counts []int, width int) string {
	maxCount := 0
	labelWidth := 0
	for i, c := range counts {
		maxCount = maxInt(maxCount, c)
		labelWidth = maxInt(labelWidth, utf8.RuneCountInString(labels[i]))
	}
	barWidth := maxInt(4, width-labelWidth-8)
	rows := make([]string, 0, len(counts))
	for i, c := range counts {
		n := 0
		if maxCount > 0 {
			n = c * barWidth / maxCount
		}
		if c > 0 && n == 0 {
			n = 1
		}
		rows = append(rows, fmt.Sprintf("%-*s %s %d", labelWidth, labels[i], strings.Repeat("█", n), c))
	}
	return strings.Join(rows, "\n")
}

func nullCoalesce(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
