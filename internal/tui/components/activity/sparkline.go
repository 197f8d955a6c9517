package activity

import (
	"image/color"
	"strings"
	"time"

	drawille "github.com/exrook/drawille-go"

	"charm.land/lipgloss/v2"
)

// braille cells are 2 dots wide and 4 dots tall
const (
	dotsPerCol = 2
	dotsPerRow = 4
)

// Sparkline draws one bar per bucket, two bars to a terminal cell.
type Sparkline struct {
	Counts []int
	Rows   int
	Color  color.Color
}

func (s Sparkline) Render() string {
	rows := max(s.Rows, 1)
	heightDots := rows * dotsPerRow
	widthDots := len(s.Counts)
	cols := (widthDots + dotsPerCol - 1) / dotsPerCol
	if cols == 0 {
		return ""
	}

	peak := 0
	for _, c := range s.Counts {
		peak = max(peak, c)
	}

	canvas := drawille.NewCanvas()
	for x, c := range s.Counts {
		h := barHeight(c, peak, heightDots)
		for y := range h {
			canvas.Set(x, heightDots-1-y)
		}
	}
	lines := canvas.Rows(0, 0, widthDots, heightDots)
	out := make([]string, rows)
	for i := range rows {
		var line string
		if i < len(lines) {
			line = lines[i]
		}
		out[i] = fit(line, cols)
	}

	return lipgloss.NewStyle().Foreground(s.Color).Render(strings.Join(out, "\n"))
}

// barHeight scales c against peak. Any non-zero bucket gets at least one dot.
func barHeight(c, peak, heightDots int) int {
	if c <= 0 || peak <= 0 {
		return 0
	}
	return max(c*heightDots/peak, 1)
}

func fit(line string, width int) string {
	r := []rune(line)
	if len(r) > width {
		return string(r[:width])
	}
	return line + strings.Repeat(" ", width-len(r))
}

// Buckets counts times into n buckets of the given width ending at now.
// The last bucket is the most recent; anything older or in the future is
// ignored.
func Buckets(times []time.Time, now time.Time, width time.Duration, n int) []int {
	if n <= 0 || width <= 0 {
		return nil
	}
	counts := make([]int, n)
	for _, t := range times {
		age := now.Sub(t)
		if age < 0 {
			continue
		}
		idx := n - 1 - int(age/width)
		if idx < 0 {
			continue
		}
		counts[idx]++
	}
	return counts
}
