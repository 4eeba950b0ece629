package history

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/alexbilevskiy/tgdesk/internal/metrics"
	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
)

const DefaultPageSize = 50

var ErrNoChat = errors.New("no chat is open")

// Caller issues backend requests whose callbacks run on the presentation
// goroutine.
type Caller interface {
	Call(fn tdlib.Function, cb func(tdlib.Payload)) error
}

type UserResolver interface {
	Get(userID int64, cb func(*tdlib.User))
	Cached(userID int64) (*tdlib.User, bool)
}

type ChatLookup interface {
	Chat(chatID int64) (*tdlib.Chat, bool)
}

// Cursor tracks backward pagination of the open chat.
type Cursor struct {
	// LastLoadedMessageID is the oldest message loaded so far, 0 before the
	// first page.
	LastLoadedMessageID int64 `json:"last_loaded_message_id"`
	InFlight            bool  `json:"in_flight"`
	Exhausted           bool  `json:"exhausted"`
}

// Loader pages the open chat's history backwards and renders it. It is owned
// by the presentation goroutine and is not safe for concurrent use.
type Loader struct {
	caller   Caller
	users    UserResolver
	chats    ChatLookup
	log      *slog.Logger
	m        *metrics.Metrics
	loc      *time.Location
	pageSize int32
	markRead bool

	chatID int64
	// bumped on every chat switch so late pages for a previous chat are ignored
	gen      uint64
	cursor   Cursor
	messages []tdlib.Message

	onChange func()
	onError  func(error)
}

type Option func(*Loader)

func WithPageSize(n int32) Option {
	return func(l *Loader) {
		if n > 0 {
			l.pageSize = n
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) { l.m = m }
}

func WithLocation(loc *time.Location) Option {
	return func(l *Loader) { l.loc = loc }
}

// WithMarkRead controls whether loaded messages are reported as viewed.
func WithMarkRead(enabled bool) Option {
	return func(l *Loader) { l.markRead = enabled }
}

func WithChangeHook(fn func()) Option {
	return func(l *Loader) { l.onChange = fn }
}

// WithErrorHook receives errors the user should see, e.g. a rejected message.
func WithErrorHook(fn func(error)) Option {
	return func(l *Loader) { l.onError = fn }
}

func New(caller Caller, users UserResolver, chats ChatLookup, opts ...Option) *Loader {
	l := &Loader{
		caller:   caller,
		users:    users,
		chats:    chats,
		log:      slog.Default(),
		loc:      time.Local,
		pageSize: DefaultPageSize,
		markRead: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.m == nil {
		l.m = metrics.New(nil)
	}
	l.log = l.log.With("component", "history")

	return l
}

// Open switches to chatID: the previous chat is closed, the cursor reset and
// the newest page requested. Opening the chat that is already open does
// nothing. Opening chat 0 just closes the current one.
func (l *Loader) Open(chatID int64) {
	if chatID == l.chatID {
		return
	}
	if l.chatID != 0 {
		l.fireAndForget(tdlib.CloseChat{ChatID: l.chatID})
	}
	l.chatID = chatID
	l.gen++
	l.cursor = Cursor{}
	l.messages = nil
	l.changed()
	if chatID == 0 {
		return
	}
	l.fireAndForget(tdlib.OpenChat{ChatID: chatID})
	l.LoadOlder(chatID)
}

func (l *Loader) Close() {
	l.Open(0)
}

// LoadOlder requests the page before the oldest loaded message. It reports
// whether a request was issued: nothing is sent while one is in flight or
// after the history ran out.
func (l *Loader) LoadOlder(chatID int64) bool {
	if chatID == 0 {
		return false
	}
	if chatID != l.chatID {
		l.Open(chatID)
		return l.cursor.InFlight
	}
	if l.cursor.InFlight || l.cursor.Exhausted {
		return false
	}

	l.cursor.InFlight = true
	gen := l.gen
	req := tdlib.GetChatHistory{
		ChatID:        chatID,
		FromMessageID: l.cursor.LastLoadedMessageID,
		Limit:         l.pageSize,
	}
	err := l.caller.Call(req, func(p tdlib.Payload) {
		l.page(gen, chatID, p)
	})
	if err != nil {
		l.cursor.InFlight = false
		l.m.HistoryPages.WithLabelValues(metrics.PageFailed).Inc()
		l.log.Warn("history request not sent", "chat_id", chatID, "error", err)
		return false
	}

	return true
}

func (l *Loader) page(gen uint64, chatID int64, p tdlib.Payload) {
	if gen != l.gen {
		l.m.HistoryPages.WithLabelValues(metrics.PageStale).Inc()
		return
	}
	l.cursor.InFlight = false

	msgs, ok := p.(*tdlib.Messages)
	if !ok {
		l.m.HistoryPages.WithLabelValues(metrics.PageFailed).Inc()
		if e, isErr := p.(*tdlib.Error); isErr {
			l.log.Warn("failed to load history", "chat_id", chatID, "code", e.Code, "error", e.Message)
		} else {
			l.log.Warn("unexpected history reply", "chat_id", chatID, "payload", p)
		}
		return
	}

	// the anchor message itself may come back again, and so may messages
	// appended while the page was in flight
	anchor := l.cursor.LastLoadedMessageID
	oldest := int64(0)
	fresh := make([]tdlib.Message, 0, len(msgs.Messages))
	for _, m := range msgs.Messages {
		if oldest == 0 || m.ID < oldest {
			oldest = m.ID
		}
		if !l.has(m.ID) {
			fresh = append(fresh, m)
		}
	}
	if len(msgs.Messages) == 0 || (anchor != 0 && oldest >= anchor) {
		l.cursor.Exhausted = true
		l.m.HistoryPages.WithLabelValues(metrics.PageExhausted).Inc()
		l.changed()
		return
	}
	l.cursor.LastLoadedMessageID = oldest
	if len(fresh) == 0 {
		l.m.HistoryPages.WithLabelValues(metrics.PageLoaded).Inc()
		l.changed()
		return
	}

	// newest first on the wire, oldest first on screen
	slices.SortFunc(fresh, func(a, b tdlib.Message) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	l.messages = append(fresh, l.messages...)
	l.m.HistoryPages.WithLabelValues(metrics.PageLoaded).Inc()

	ids := make([]int64, 0, len(fresh))
	for _, m := range fresh {
		ids = append(ids, m.ID)
		l.resolveSender(m.Sender)
	}
	if l.markRead {
		l.fireAndForget(tdlib.ViewMessages{ChatID: chatID, MessageIDs: ids, ForceRead: true})
	}
	l.changed()
}

// Append adds a message that arrived while its chat is open.
func (l *Loader) Append(msg *tdlib.Message) bool {
	if msg == nil || msg.ChatID != l.chatID || l.chatID == 0 || l.has(msg.ID) {
		return false
	}
	l.messages = append(l.messages, *msg)
	l.resolveSender(msg.Sender)
	if l.markRead {
		l.fireAndForget(tdlib.ViewMessages{ChatID: msg.ChatID, MessageIDs: []int64{msg.ID}, ForceRead: true})
	}
	l.changed()

	return true
}

// UpdateContent replaces the content of a loaded message.
func (l *Loader) UpdateContent(chatID, messageID int64, content tdlib.MessageContent) bool {
	if chatID != l.chatID {
		return false
	}
	for i := range l.messages {
		if l.messages[i].ID == messageID {
			l.messages[i].Content = content
			l.changed()
			return true
		}
	}

	return false
}

// SendText sends a text message to the open chat. A rejection by the backend
// is reported through the error hook.
func (l *Loader) SendText(text string) error {
	text = strings.TrimSpace(text)
	if l.chatID == 0 {
		return ErrNoChat
	}
	if text == "" {
		return nil
	}
	chatID := l.chatID
	err := l.caller.Call(tdlib.SendMessage{ChatID: chatID, Text: text}, func(p tdlib.Payload) {
		if e, ok := p.(*tdlib.Error); ok {
			l.log.Warn("message rejected", "chat_id", chatID, "code", e.Code, "error", e.Message)
			l.reportError(fmt.Errorf("failed to send message: %s", e.Message))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

func (l *Loader) ChatID() int64 {
	return l.chatID
}

func (l *Loader) Cursor() Cursor {
	return l.cursor
}

// Messages returns the loaded messages, oldest first.
func (l *Loader) Messages() []tdlib.Message {
	return slices.Clone(l.messages)
}

// Lines renders the loaded messages, oldest first.
func (l *Loader) Lines() []string {
	channel := false
	if chat, ok := l.chats.Chat(l.chatID); ok {
		channel = chat.Type.Kind == tdlib.ChatSupergroup && chat.Type.IsChannel
	}

	lines := make([]string, 0, len(l.messages))
	for _, m := range l.messages {
		sign := ""
		if channel && m.AuthorSignature != "" {
			sign = " user " + m.AuthorSignature
		}
		lines = append(lines, fmt.Sprintf("%s%s: %s, received at %s",
			l.senderName(m.Sender), sign, tdlib.FormatContent(m.Content), tdlib.FormatTimestamp(m.Date, l.loc)))
	}

	return lines
}

func (l *Loader) senderName(s tdlib.MessageSender) string {
	if s.Kind == tdlib.SenderChat {
		if chat, ok := l.chats.Chat(s.ID); ok && chat.Title != "" {
			return chat.Title
		}
		return fmt.Sprintf("Chat %d", s.ID)
	}
	u, ok := l.users.Cached(s.ID)
	switch {
	case !ok:
		return fmt.Sprintf("User %d", s.ID)
	case u == nil:
		return "Unknown user"
	}

	return tdlib.GetUserFullname(u)
}

func (l *Loader) resolveSender(s tdlib.MessageSender) {
	if s.Kind != tdlib.SenderUser || s.ID == 0 {
		return
	}
	if _, ok := l.users.Cached(s.ID); ok {
		return
	}
	l.users.Get(s.ID, func(*tdlib.User) { l.changed() })
}

func (l *Loader) has(messageID int64) bool {
	for i := range l.messages {
		if l.messages[i].ID == messageID {
			return true
		}
	}

	return false
}

func (l *Loader) fireAndForget(fn tdlib.Function) {
	if err := l.caller.Call(fn, nil); err != nil {
		l.log.Warn("request not sent", "type", fn.Type(), "error", err)
	}
}

func (l *Loader) changed() {
	if l.onChange != nil {
		l.onChange()
	}
}

func (l *Loader) reportError(err error) {
	if l.onError != nil {
		l.onError(err)
	}
}
