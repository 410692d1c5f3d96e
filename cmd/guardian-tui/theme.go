package main

import "github.com/charmbracelet/lipgloss"

type uiTheme struct {
	root          lipgloss.Style
	header        lipgloss.Style
	tabActive     lipgloss.Style
	tabInactive   lipgloss.Style
	panel         lipgloss.Style
	panelTitle    lipgloss.Style
	footer        lipgloss.Style
	status        lipgloss.Style
	errorStatus   lipgloss.Style
	inputPanel    lipgloss.Style
	helpText      lipgloss.Style
	role          map[string]lipgloss.Style
	bold          lipgloss.Style
	link          lipgloss.Style
	selected      lipgloss.Style
	source        lipgloss.Style
	connected     lipgloss.Style
	disconnected  lipgloss.Style
	welcomeTitle  lipgloss.Style
	modalFrame    lipgloss.Style
	metricKey     lipgloss.Style
	metricValue   lipgloss.Style
	bar           lipgloss.Style
	historyActive lipgloss.Style
}

func newTheme() uiTheme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	bg := lipgloss.Color("#120924")
	panelBg := lipgloss.Color("#1b0f35")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")
	amber := lipgloss.Color("#ffd166")

	return uiTheme{
		root: lipgloss.NewStyle().
			Background(bg).
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		tabActive: lipgloss.NewStyle().
			Background(pink).
			Foreground(lipgloss.Color("#22062f")).
			Bold(true).
			Padding(0, 1),
		tabInactive: lipgloss.NewStyle().
			Background(lipgloss.Color("#2a184a")).
			Foreground(muted).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panelTitle: lipgloss.NewStyle().
			Foreground(mint).
			Bold(true),
		footer: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(muted).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(pink).
			Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(blue).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		inputPanel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
		helpText: lipgloss.NewStyle().Foreground(muted),
		role: map[string]lipgloss.Style{
			"user":   lipgloss.NewStyle().Foreground(mint).Bold(true),
			"bot":    lipgloss.NewStyle().Foreground(blue).Bold(true),
			"failed": lipgloss.NewStyle().Foreground(pink).Bold(true),
			"system": lipgloss.NewStyle().Foreground(muted).Bold(true),
		},
		bold:          lipgloss.NewStyle().Bold(true).Foreground(text),
		link:          lipgloss.NewStyle().Underline(true).Foreground(blue),
		selected:      lipgloss.NewStyle().Foreground(pink).Bold(true),
		source:        lipgloss.NewStyle().Foreground(muted).Italic(true),
		connected:     lipgloss.NewStyle().Foreground(mint).Bold(true),
		disconnected:  lipgloss.NewStyle().Foreground(pink).Bold(true),
		welcomeTitle:  lipgloss.NewStyle().Foreground(amber).Bold(true),
		modalFrame:    lipgloss.NewStyle().Background(panelBg).BorderStyle(lipgloss.ThickBorder()).BorderForeground(blue).Padding(1, 2),
		metricKey:     lipgloss.NewStyle().Foreground(blue),
		metricValue:   lipgloss.NewStyle().Foreground(text),
		bar:           lipgloss.NewStyle().Foreground(mint),
		historyActive: lipgloss.NewStyle().Background(pink).Foreground(lipgloss.Color("#22062f")).Bold(true),
	}
}
