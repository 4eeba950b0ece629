package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
)

const minPanelWidth = 20

func (m *Model) View() string {
	header := m.folderTabs()
	footer := m.footer()
	// borders take two rows, header and footer one each
	bodyHeight := max(m.height-4, 3)

	listWidth := max(m.width*2/5, minPanelWidth)
	historyWidth := max(m.width-listWidth-4, minPanelWidth)

	list := m.panel(m.focus != focusCompose, listWidth, bodyHeight, m.chatLines(listWidth, bodyHeight))
	hist := m.panel(m.focus == focusCompose, historyWidth, bodyHeight, m.historyLines(historyWidth, bodyHeight))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, list, hist),
		footer,
	)
}

func (m *Model) panel(focused bool, width, height int, lines []string) string {
	style := m.styles.PanelBorder
	if focused {
		style = m.styles.FocusedBorder
	}

	return style.Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) folderTabs() string {
	active := m.acc.Chats.ActiveList()
	var tabs []string
	for _, f := range m.acc.Chats.Folders() {
		style := m.styles.Folder
		if f.List == active {
			style = m.styles.ActiveFolder
		}
		tabs = append(tabs, style.Render(f.Title))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// chatLines renders the rows visible around the cursor.
func (m *Model) chatLines(width, height int) []string {
	if len(m.entries) == 0 {
		if m.filter.Value() != "" {
			return []string{m.styles.HistoryHint.Render("no matches")}
		}
		return []string{m.styles.HistoryHint.Render("loading chats...")}
	}

	start := max(0, m.cursor-height/2)
	end := min(len(m.entries), start+height)
	start = max(0, end-height)

	open := m.acc.History.ChatID()
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		e := m.entries[i]
		style := m.styles.Item
		switch {
		case i == m.cursor:
			style = m.styles.SelectedItem
		case e.ChatID == open:
			style = m.styles.OpenItem
		}
		lines = append(lines, style.MaxWidth(width).Render(e.Display))
	}

	return lines
}

func (m *Model) historyLines(width, height int) []string {
	if m.acc.History.ChatID() == 0 {
		return []string{m.styles.HistoryHint.Render("Select a chat")}
	}

	var marker string
	cur := m.acc.History.Cursor()
	switch {
	case cur.InFlight:
		marker = "loading older messages..."
	case cur.Exhausted:
		marker = "beginning of history"
	}

	msgs := m.acc.History.Lines()
	room := height
	if marker != "" {
		room--
	}
	if len(msgs) > room {
		msgs = msgs[len(msgs)-room:]
		marker = ""
	}

	lines := make([]string, 0, height)
	if marker != "" {
		lines = append(lines, m.styles.HistoryHint.Render(marker))
	}
	for _, l := range msgs {
		lines = append(lines, m.styles.HistoryLine.MaxWidth(width).Render(l))
	}

	return lines
}

func (m *Model) footer() string {
	switch m.focus {
	case focusFilter:
		return m.filter.View()
	case focusCompose:
		return m.compose.View()
	}

	parts := []string{fmt.Sprintf("auth: %s", m.authLabel()), fmt.Sprintf("%d chats", len(m.entries))}
	if m.filter.Value() != "" {
		parts = append(parts, fmt.Sprintf("filter %q", m.filter.Value()))
	}
	line := m.styles.Status.Render(strings.Join(parts, " | "))
	if err := m.acc.LastError(); err != nil {
		return line + " " + m.styles.Error.Render(err.Error())
	}
	if m.status != "" {
		return line + " " + m.styles.Error.Render(m.status)
	}

	return line
}

func (m *Model) authLabel() string {
	state := m.acc.AuthState()
	if state == "" {
		return "connecting"
	}
	if state != tdlib.AuthReady {
		return string(state) + " (authorize with the backend)"
	}

	return string(state)
}
