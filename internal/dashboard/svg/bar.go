// Package svg renders the small inline charts of the dashboard page.
package svg

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Chart defaults.
const (
	DefaultWidth   = 640
	DefaultHeight  = 220
	DefaultPadding = 28.0
	DefaultTicks   = 4
)

var palette = []string{"#0ea5e9", "#f97316", "#22c55e", "#a855f7"}

// Series is one named run of bar values.
type Series struct {
	Label  string
	Values []int64
	Color  string
}

// BarOpts customises the bar chart renderer.
type BarOpts struct {
	Title       string
	Description string
	AxisColor   string
	GridColor   string
	Padding     float64
	TickCount   int
}

// Bars renders a grouped bar chart of non-negative counts, one group per label.
func Bars(width, height int, labels []string, series []Series, opts BarOpts) (template.HTML, error) {
	if len(labels) == 0 {
		return "", errors.New("svg: labels required")
	}
	if len(series) == 0 {
		return "", errors.New("svg: at least one series required")
	}
	for _, s := range series {
		if len(s.Values) != len(labels) {
			return "", fmt.Errorf("svg: series %q has %d values for %d labels", s.Label, len(s.Values), len(labels))
		}
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	padding := opts.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	ticks := opts.TickCount
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	axisColor := fallback(opts.AxisColor, "#475569")
	gridColor := fallback(opts.GridColor, "#cbd5e1")

	chartWidth := float64(width) - 2*padding
	chartHeight := float64(height) - 2*padding
	if chartWidth <= 0 || chartHeight <= 0 {
		return "", errors.New("svg: viewport too small")
	}

	maxVal := maxValue(series)
	if maxVal == 0 {
		maxVal = 1
	}
	scale := chartHeight / float64(maxVal)
	bottom := padding + chartHeight
	groupWidth := chartWidth / float64(len(labels))
	barWidth := groupWidth * 0.8 / float64(len(series))

	titleID := makeID(opts.Title, "title")
	descID := makeID(opts.Title, "desc")

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s">`, width, height, titleID, descID)
	fmt.Fprintf(&b, `<title id="%s">%s</title>`, titleID, template.HTMLEscapeString(fallback(opts.Title, "Bar chart")))
	fmt.Fprintf(&b, `<desc id="%s">%s</desc>`, descID, template.HTMLEscapeString(fallback(opts.Description, "Counts per group")))

	for i := 0; i <= ticks; i++ {
		ratio := float64(i) / float64(ticks)
		y := bottom - ratio*chartHeight
		fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4" aria-hidden="true"></line>`, padding, y, padding+chartWidth, y, gridColor)
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, padding-6, y+4, axisColor, formatTick(float64(maxVal)*ratio))
	}
	fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="1"></line>`, padding, bottom, padding+chartWidth, bottom, axisColor)

	for i, label := range labels {
		groupX := padding + float64(i)*groupWidth + groupWidth*0.1
		for j, s := range series {
			h := float64(s.Values[i]) * scale
			x := groupX + float64(j)*barWidth
			fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"><title>%s %s: %d</title></rect>`,
				x, bottom-h, barWidth*0.9, h, seriesColor(s, j),
				template.HTMLEscapeString(s.Label), template.HTMLEscapeString(label), s.Values[i])
		}
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`, padding+float64(i)*groupWidth+groupWidth/2, bottom+14, axisColor, template.HTMLEscapeString(truncate(label, 14)))
	}

	if len(series) > 1 {
		legendX := padding
		for j, s := range series {
			fmt.Fprintf(&b, `<rect x="%.2f" y="4" width="10" height="10" fill="%s"></rect>`, legendX, seriesColor(s, j))
			fmt.Fprintf(&b, `<text x="%.2f" y="13" fill="%s" font-size="10">%s</text>`, legendX+14, axisColor, template.HTMLEscapeString(s.Label))
			legendX += 96
		}
	}

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

func maxValue(series []Series) int64 {
	var maxVal int64
	for _, s := range series {
		for _, v := range s.Values {
			if v > maxVal {
				maxVal = v
			}
		}
	}
	return maxVal
}

func seriesColor(s Series, idx int) string {
	if s.Color != "" {
		return s.Color
	}
	return palette[idx%len(palette)]
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

func formatTick(v float64) string {
	switch abs := math.Abs(v); {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case v == math.Trunc(v):
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.1f", v)
	}
}
