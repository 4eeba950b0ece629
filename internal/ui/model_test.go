package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexbilevskiy/tgdesk/internal/account"
	"github.com/alexbilevskiy/tgdesk/internal/backend/backendtest"
	"github.com/alexbilevskiy/tgdesk/internal/config"
	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
)

func push(t *testing.T, acc *account.Account, raw string) {
	t.Helper()
	p := tdlib.Decode(0, json.RawMessage(raw)).Payload
	require.True(t, acc.Chats.Apply(p), "not a chat event: %T", p)
}

func groupChat(t *testing.T, acc *account.Account, id int64, title string, order int) {
	push(t, acc, fmt.Sprintf(`{"@type":"updateNewChat","chat":{"@type":"chat","id":%d,"title":%q,
		"type":{"@type":"chatTypeBasicGroup","basic_group_id":%d},"unread_count":0,"positions":[]}}`, id, title, id))
	push(t, acc, fmt.Sprintf(`{"@type":"updateChatPosition","chat_id":%d,"position":{"@type":"chatPosition",
		"list":{"@type":"chatListMain"},"order":"%d","is_pinned":false}}`, id, order))
}

// newModel runs everything on the test goroutine: the account loop is never
// started, so the test plays the presentation goroutine.
func newModel(t *testing.T) (*Model, *backendtest.Fake) {
	t.Helper()
	fake := backendtest.New()
	cfg := config.Default()
	cfg.BackendURL = "ws://test"
	acc := account.NewAccount(cfg, account.Deps{
		Handle: fake,
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	m := New(acc)
	groupChat(t, acc, 1, "Alpha", 300)
	groupChat(t, acc, 2, "Beta", 200)
	groupChat(t, acc, 3, "Gamma", 100)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})

	return m, fake
}

func key(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sentTypes(fake *backendtest.Fake) []string {
	var res []string
	for _, s := range fake.Sent() {
		res = append(res, s.Function.Type())
	}

	return res
}

func chatIDs(m *Model) []int64 {
	var ids []int64
	for _, e := range m.entries {
		ids = append(ids, e.ChatID)
	}

	return ids
}

func TestEntriesFollowTheView(t *testing.T) {
	m, _ := newModel(t)
	assert.Equal(t, []int64{1, 2, 3}, chatIDs(m))
}

func TestCursorOpensChat(t *testing.T) {
	m, fake := newModel(t)

	m.Update(key(tea.KeyDown))
	m.Update(key(tea.KeyEnter))

	assert.Equal(t, int64(2), m.acc.History.ChatID())
	assert.Equal(t, []string{"openChat", "getChatHistory"}, sentTypes(fake))
}

func TestCursorStopsAtEdges(t *testing.T) {
	m, _ := newModel(t)

	m.Update(key(tea.KeyUp))
	assert.Equal(t, 0, m.cursor)
	for range 5 {
		m.Update(runes("j"))
	}
	assert.Equal(t, 2, m.cursor)
}

func TestLastRowLoadsMoreChats(t *testing.T) {
	m, fake := newModel(t)

	m.Update(key(tea.KeyDown))
	assert.Empty(t, sentTypes(fake))
	m.Update(key(tea.KeyDown))
	m.Update(key(tea.KeyDown))

	// the second request is suppressed while the first is in flight
	assert.Equal(t, []string{"loadChats"}, sentTypes(fake))
}

func TestFilterNarrowsList(t *testing.T) {
	m, _ := newModel(t)

	m.Update(runes("/"))
	require.Equal(t, focusFilter, m.focus)
	m.Update(runes("gam"))
	assert.Equal(t, []int64{3}, chatIDs(m))

	m.Update(key(tea.KeyEnter))
	assert.Equal(t, focusChats, m.focus)
	assert.Equal(t, []int64{3}, chatIDs(m), "enter keeps the filter")

	m.Update(runes("/"))
	m.Update(key(tea.KeyEsc))
	assert.Equal(t, focusChats, m.focus)
	assert.Equal(t, []int64{1, 2, 3}, chatIDs(m))
}

func TestTaskMsgRunsOnUpdate(t *testing.T) {
	m, _ := newModel(t)

	m.Update(TaskMsg(func() { groupChat(t, m.acc, 4, "Delta", 400) }))

	assert.Equal(t, []int64{4, 1, 2, 3}, chatIDs(m))
}

func TestFolderSwitchWraps(t *testing.T) {
	m, fake := newModel(t)

	m.Update(key(tea.KeyRight))
	assert.Equal(t, tdlib.ArchiveList, m.acc.Chats.ActiveList())
	assert.Empty(t, m.entries)
	assert.Equal(t, []string{"loadChats"}, sentTypes(fake))

	m.Update(runes("]"))
	assert.Equal(t, tdlib.MainList, m.acc.Chats.ActiveList())
	assert.Equal(t, []int64{1, 2, 3}, chatIDs(m))

	m.Update(key(tea.KeyLeft))
	assert.Equal(t, tdlib.ArchiveList, m.acc.Chats.ActiveList())
}

func TestComposeSendsText(t *testing.T) {
	m, fake := newModel(t)

	m.Update(key(tea.KeyTab))
	assert.Equal(t, focusChats, m.focus)
	assert.Equal(t, "open a chat first", m.status)

	m.Update(key(tea.KeyEnter))
	m.Update(key(tea.KeyTab))
	require.Equal(t, focusCompose, m.focus)
	m.Update(runes("hello"))
	m.Update(key(tea.KeyEnter))

	last, ok := fake.Last()
	require.True(t, ok)
	assert.Equal(t, tdlib.SendMessage{ChatID: 1, Text: "hello"}, last.Function)
	assert.Equal(t, "", m.compose.Value())

	m.Update(key(tea.KeyEsc))
	assert.Equal(t, focusChats, m.focus)
}

func TestOlderHistoryKey(t *testing.T) {
	m, fake := newModel(t)

	m.Update(runes("u"))
	assert.Empty(t, sentTypes(fake), "no chat open")

	m.Update(key(tea.KeyEnter))
	m.Update(key(tea.KeyPgUp))
	// the first page is still in flight
	assert.Equal(t, []string{"openChat", "getChatHistory"}, sentTypes(fake))
}

func TestQuitKeys(t *testing.T) {
	m, _ := newModel(t)

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = m.Update(key(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestViewShowsPanels(t *testing.T) {
	m, _ := newModel(t)

	out := m.View()
	assert.Contains(t, out, "All Chats")
	assert.Contains(t, out, "Archive")
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "Select a chat")
	assert.Contains(t, out, "connecting")

	m.Update(key(tea.KeyEnter))
	assert.Contains(t, m.View(), "loading older messages...")
}
