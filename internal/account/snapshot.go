package account

import (
	"context"
	"fmt"

	"github.com/alexbilevskiy/tgdesk/internal/history"
)

type ChatRow struct {
	ChatID  int64  `json:"chat_id"`
	Display string `json:"display"`
	Key     uint64 `json:"key"`
}

type ChatListSnapshot struct {
	List      string    `json:"list"`
	Exhausted bool      `json:"exhausted"`
	Chats     []ChatRow `json:"chats"`
}

type HistorySnapshot struct {
	ChatID int64          `json:"chat_id"`
	Cursor history.Cursor `json:"cursor"`
	Lines  []string       `json:"lines"`
}

// ChatList copies the active chat list. It may be called from any goroutine
// but one that runs Loop tasks.
func (a *Account) ChatList(ctx context.Context) (*ChatListSnapshot, error) {
	var snap ChatListSnapshot
	err := a.Loop.Call(ctx, func() {
		list := a.Chats.ActiveList()
		snap.List = list.String()
		snap.Exhausted = a.Chats.Exhausted(list)
		for _, e := range a.Chats.Entries() {
			snap.Chats = append(snap.Chats, ChatRow{ChatID: e.ChatID, Display: e.Display, Key: uint64(e.Key)})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read chat list: %w", err)
	}

	return &snap, nil
}

// OpenHistory copies the rendered history of the open chat.
func (a *Account) OpenHistory(ctx context.Context) (*HistorySnapshot, error) {
	var snap HistorySnapshot
	err := a.Loop.Call(ctx, func() {
		snap.ChatID = a.History.ChatID()
		snap.Cursor = a.History.Cursor()
		snap.Lines = a.History.Lines()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	return &snap, nil
}
