package ui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	Folder        lipgloss.Style
	ActiveFolder  lipgloss.Style
	Item          lipgloss.Style
	SelectedItem  lipgloss.Style
	OpenItem      lipgloss.Style
	HistoryLine   lipgloss.Style
	HistoryHint   lipgloss.Style
	Separator     lipgloss.Style
	Status        lipgloss.Style
	Error         lipgloss.Style
	PanelBorder   lipgloss.Style
	FocusedBorder lipgloss.Style
}

var defaultStyles = styles{
	Folder:        lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1),
	ActiveFolder:  lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("33")).Bold(true).Padding(0, 1),
	Item:          lipgloss.NewStyle().Foreground(lipgloss.Color("249")),
	SelectedItem:  lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("238")).Bold(true),
	OpenItem:      lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
	HistoryLine:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	HistoryHint:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true),
	Separator:     lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
	Status:        lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	Error:         lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	PanelBorder:   lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("238")),
	FocusedBorder: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("33")),
}
