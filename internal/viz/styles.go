package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// styles are the lipgloss styles of the live view, derived from a Theme.
type styles struct {
	canvas      lipgloss.Style
	stats       lipgloss.Style
	header      lipgloss.Style
	label       lipgloss.Style
	value       lipgloss.Style
	activeParam lipgloss.Style
	graph       lipgloss.Style
	help        lipgloss.Style
	running     lipgloss.Style
	paused      lipgloss.Style
	failed      lipgloss.Style

	sparkHigh lipgloss.Style
	sparkMid  lipgloss.Style
	sparkLow  lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		canvas:      lipgloss.NewStyle().Padding(1, 2),
		stats:       lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(t.Muted).Padding(1, 2).Width(48),
		header:      lipgloss.NewStyle().Foreground(t.Secondary).Bold(true).MarginBottom(1),
		label:       lipgloss.NewStyle().Foreground(t.Muted).Width(12),
		value:       lipgloss.NewStyle().Foreground(t.Text),
		activeParam: lipgloss.NewStyle().Foreground(t.Primary).Bold(true),
		graph:       lipgloss.NewStyle().Foreground(t.Secondary).Padding(1, 0),
		help:        lipgloss.NewStyle().Foreground(t.Muted).MarginTop(1),
		running:     lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		paused:      lipgloss.NewStyle().Bold(true).Foreground(t.Warning),
		failed:      lipgloss.NewStyle().Bold(true).Foreground(t.Error),

		sparkHigh: lipgloss.NewStyle().Foreground(t.Accent),
		sparkMid:  lipgloss.NewStyle().Foreground(t.Warning),
		sparkLow:  lipgloss.NewStyle().Foreground(t.Error),
	}
}

// ProgressBar renders a bar filled to percent of width.
func (s styles) ProgressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	filled = max(0, min(width, filled))

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	switch {
	case percent > 0.9:
		return s.sparkLow.Render(bar)
	case percent > 0.6:
		return s.sparkMid.Render(bar)
	}
	return s.sparkHigh.Render(bar)
}

// Sparkline renders the last width values as block characters.
func (s styles) Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	var b strings.Builder
	for _, v := range values {
		norm := (v - lo) / span
		idx := max(0, min(len(chars)-1, int(norm*float64(len(chars)-1))))
		c := string(chars[idx])
		switch {
		case norm > 0.7:
			b.WriteString(s.sparkHigh.Render(c))
		case norm > 0.3:
			b.WriteString(s.sparkMid.Render(c))
		default:
			b.WriteString(s.sparkLow.Render(c))
		}
	}
	return b.String()
}
