// Package ui is the terminal front end. The bubbletea program goroutine is
// the presentation goroutine: every account task is delivered to it as a
// TaskMsg and executed inside Update.
package ui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexbilevskiy/tgdesk/internal/account"
	"github.com/alexbilevskiy/tgdesk/internal/chatlist"
)

// TaskMsg carries a task posted to the account loop.
type TaskMsg func()

type focus int

const (
	focusChats focus = iota
	focusFilter
	focusCompose
)

type Model struct {
	acc    *account.Account
	styles styles

	width  int
	height int

	focus   focus
	cursor  int
	entries []chatlist.Entry
	dirty   bool

	filter  textinput.Model
	compose textinput.Model
	status  string
}

// New builds the model and installs its redraw hook on acc. Call it before
// acc.Start.
func New(acc *account.Account) *Model {
	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "filter chats"
	filter.CharLimit = 128

	compose := textinput.New()
	compose.Prompt = "> "
	compose.Placeholder = "message"
	compose.CharLimit = 4096

	m := &Model{
		acc:     acc,
		styles:  defaultStyles,
		width:   80,
		height:  24,
		filter:  filter,
		compose: compose,
		dirty:   true,
	}
	acc.SetRedraw(func() { m.dirty = true })

	return m
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case TaskMsg:
		msg()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		cmd = m.handleKey(msg)
	}
	m.refresh()

	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}
	switch m.focus {
	case focusFilter:
		return m.handleFilterKey(msg)
	case focusCompose:
		return m.handleComposeKey(msg)
	}

	switch msg.String() {
	case "q":
		return tea.Quit
	case "up", "k":
		m.move(-1)
	case "down", "j":
		m.move(1)
	case "enter":
		if m.cursor < len(m.entries) {
			m.acc.History.Open(m.entries[m.cursor].ChatID)
		}
	case "pgup", "u":
		if id := m.acc.History.ChatID(); id != 0 {
			m.acc.History.LoadOlder(id)
		}
	case "left", "[":
		m.switchFolder(-1)
	case "right", "]":
		m.switchFolder(1)
	case "/":
		m.focus = focusFilter
		return m.filter.Focus()
	case "tab", "i":
		if m.acc.History.ChatID() == 0 {
			m.status = "open a chat first"
			return nil
		}
		m.focus = focusCompose
		return m.compose.Focus()
	case "esc":
		m.acc.ClearError()
		m.status = ""
		m.dirty = true
	}

	return nil
}

func (m *Model) handleFilterKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.filter.SetValue("")
		m.leaveInput()
		return nil
	case tea.KeyEnter:
		m.leaveInput()
		return nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.cursor = 0
	m.dirty = true

	return cmd
}

func (m *Model) handleComposeKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyTab:
		m.leaveInput()
		return nil
	case tea.KeyEnter:
		if err := m.acc.History.SendText(m.compose.Value()); err != nil {
			m.status = err.Error()
			return nil
		}
		m.compose.SetValue("")
		return nil
	}
	var cmd tea.Cmd
	m.compose, cmd = m.compose.Update(msg)

	return cmd
}

func (m *Model) leaveInput() {
	m.filter.Blur()
	m.compose.Blur()
	m.focus = focusChats
	m.dirty = true
}

// move shifts the cursor; reaching the last row asks for the next page.
func (m *Model) move(delta int) {
	if len(m.entries) == 0 {
		m.acc.Chats.LoadMore()
		return
	}
	m.cursor = max(0, min(len(m.entries)-1, m.cursor+delta))
	if delta > 0 && m.cursor == len(m.entries)-1 {
		m.acc.Chats.LoadMore()
	}
}

func (m *Model) switchFolder(delta int) {
	folders := m.acc.Chats.Folders()
	active := m.acc.Chats.ActiveList()
	cur := 0
	for i, f := range folders {
		if f.List == active {
			cur = i
			break
		}
	}
	next := (cur + delta + len(folders)) % len(folders)
	m.acc.Chats.SelectList(folders[next].List)
	m.cursor = 0
	m.dirty = true
}

func (m *Model) refresh() {
	if !m.dirty {
		return
	}
	m.dirty = false
	m.entries = m.acc.Chats.Search(m.filter.Value())
	if m.cursor >= len(m.entries) {
		m.cursor = max(0, len(m.entries)-1)
	}
}
