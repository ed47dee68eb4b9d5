package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/hamed0406/healthwatch/internal/domain"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorGreen   = lipgloss.Color("#10B981")
	colorRed     = lipgloss.Color("#EF4444")
	colorYellow  = lipgloss.Color("#F59E0B")
	colorDim     = lipgloss.Color("#6B7280")

	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).MarginBottom(1)
	styleOnline  = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	styleFailed  = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleLabel   = lipgloss.NewStyle().Width(22).Foreground(colorDim)

	styleCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#374151")).
			Padding(0, 2)
)

func dot(online bool) string {
	if online {
		return styleOnline.Render("●")
	}
	return styleFailed.Render("●")
}

func row(label string, value any) string {
	return styleLabel.Render(label) + fmt.Sprint(value)
}

func resultLine(name string, r domain.CheckResult) string {
	detail := styleDim.Render(r.ErrorMessage)
	if r.Online {
		lat := "-"
		if r.Latency != nil {
			lat = fmt.Sprintf("%.3fs", *r.Latency)
		}
		detail = styleDim.Render(lat)
	}
	return fmt.Sprintf("%s %-28s %s", dot(r.Online), name, detail)
}
