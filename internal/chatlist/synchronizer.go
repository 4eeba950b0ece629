package chatlist

import (
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alexbilevskiy/tgdesk/internal/metrics"
	"github.com/alexbilevskiy/tgdesk/internal/notify"
	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
)

const DefaultPageSize = 100

// Caller issues backend requests whose callbacks run on the presentation
// goroutine.
type Caller interface {
	Call(fn tdlib.Function, cb func(tdlib.Payload)) error
}

type UserResolver interface {
	Get(userID int64, cb func(*tdlib.User))
	Cached(userID int64) (*tdlib.User, bool)
	InFlight(userID int64) bool
}

type chatState struct {
	chat *tdlib.Chat
	// arrival order, breaks ties when the view is rebuilt
	seq uint64
}

// Folder is one selectable chat list.
type Folder struct {
	List  tdlib.ChatList
	Title string
}

// Synchronizer keeps the chat map current from backend pushes and maintains
// the ordered view of the active list. It is owned by the presentation
// goroutine and is not safe for concurrent use.
type Synchronizer struct {
	caller   Caller
	users    UserResolver
	notifier notify.Notifier
	log      *slog.Logger
	m        *metrics.Metrics
	loc      *time.Location
	pageSize int32

	chats  map[int64]*chatState
	seq    uint64
	byUser map[int64][]int64

	active    tdlib.ChatList
	view      *View
	loading   map[tdlib.ChatList]bool
	exhausted map[tdlib.ChatList]bool
	folders   []tdlib.ChatFolder

	onFolders func([]tdlib.ChatFolder)
	onChange  func()
}

type Option func(*Synchronizer)

func WithPageSize(n int32) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Synchronizer) { s.notifier = n }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Synchronizer) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synchronizer) { s.m = m }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Synchronizer) { s.loc = loc }
}

// WithFoldersHook is called whenever the backend announces a new folder list.
func WithFoldersHook(fn func([]tdlib.ChatFolder)) Option {
	return func(s *Synchronizer) { s.onFolders = fn }
}

// WithChangeHook is called after the view changed.
func WithChangeHook(fn func()) Option {
	return func(s *Synchronizer) { s.onChange = fn }
}

func New(caller Caller, users UserResolver, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		caller:    caller,
		users:     users,
		log:       slog.Default(),
		loc:       time.Local,
		pageSize:  DefaultPageSize,
		chats:     make(map[int64]*chatState),
		byUser:    make(map[int64][]int64),
		active:    tdlib.MainList,
		view:      NewView(),
		loading:   make(map[tdlib.ChatList]bool),
		exhausted: make(map[tdlib.ChatList]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.m == nil {
		s.m = metrics.New(nil)
	}
	s.log = s.log.With("component", "chatlist")

	return s
}

// Apply folds one push into the chat map and the view. It reports whether
// the payload was a chat list event.
func (s *Synchronizer) Apply(p tdlib.Payload) bool {
	switch upd := p.(type) {
	case *tdlib.UpdateNewChat:
		s.count("new_chat")
		s.addChat(upd.Chat)

	case *tdlib.UpdateChatTitle:
		s.count("title")
		s.mutate(upd.ChatID, func(c *tdlib.Chat) { c.Title = upd.Title })

	case *tdlib.UpdateChatLastMessage:
		s.count("last_message")
		s.mutate(upd.ChatID, func(c *tdlib.Chat) {
			c.LastMessage = upd.LastMessage
			c.ReplacePositions(upd.Positions)
		})

	case *tdlib.UpdateChatPosition:
		s.count("position")
		s.mutate(upd.ChatID, func(c *tdlib.Chat) { c.SetPosition(upd.Position) })

	case *tdlib.UpdateChatReadInbox:
		s.count("read_inbox")
		s.mutate(upd.ChatID, func(c *tdlib.Chat) { c.UnreadCount = upd.UnreadCount })

	case *tdlib.UpdateChatDefaultDisableNotification:
		s.count("notification_settings")
		s.mutate(upd.ChatID, func(c *tdlib.Chat) { c.DefaultDisableNotification = upd.DefaultDisableNotification })

	case *tdlib.UpdateNewMessage:
		s.count("new_message")
		s.newMessage(upd.Message)

	case *tdlib.UpdateMessageContent:
		s.count("message_content")
		s.mutate(upd.ChatID, func(c *tdlib.Chat) {
			if c.LastMessage == nil || c.LastMessage.ID != upd.MessageID {
				return
			}
			msg := *c.LastMessage
			msg.Content = upd.NewContent
			c.LastMessage = &msg
		})

	case *tdlib.UpdateChatFolders:
		s.count("folders")
		s.folders = append([]tdlib.ChatFolder(nil), upd.Folders...)
		if s.onFolders != nil {
			s.onFolders(s.BackendFolders())
		}
		s.changed()
		s.LoadMore()

	default:
		return false
	}

	return true
}

// UserChanged re-renders the private chats of userID after the directory
// learned something new about that user.
func (s *Synchronizer) UserChanged(userID int64) {
	changed := false
	for _, id := range s.byUser[userID] {
		changed = s.place(id) || changed
	}
	if changed {
		s.changed()
	}
}

// SelectList makes list the active one and rebuilds the view from the chat
// map. A list without a full page of known chats is asked for more.
func (s *Synchronizer) SelectList(list tdlib.ChatList) {
	s.active = list

	entries := make([]Entry, 0, len(s.chats))
	seqs := make(map[int64]uint64, len(s.chats))
	for id, st := range s.chats {
		pos, ok := st.chat.Position(list)
		if !ok {
			continue
		}
		entries = append(entries, Entry{ChatID: id, Key: MakeSortKey(pos)})
		seqs[id] = st.seq
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key != entries[j].Key {
			return entries[i].Key > entries[j].Key
		}
		return seqs[entries[i].ChatID] < seqs[entries[j].ChatID]
	})
	s.view.Reset(entries)
	for i := range entries {
		s.view.entries[i].Display = s.display(s.chats[entries[i].ChatID].chat)
	}
	s.changed()

	if int32(len(entries)) < s.pageSize {
		s.LoadMore()
	}
}

// LoadMore asks the backend for the next page of the active list. It is a
// no-op while a request is in flight or once the list is fully loaded.
func (s *Synchronizer) LoadMore() bool {
	list := s.active
	if s.loading[list] || s.exhausted[list] {
		return false
	}
	s.loading[list] = true
	err := s.caller.Call(tdlib.LoadChats{ChatList: list, Limit: s.pageSize}, func(p tdlib.Payload) {
		s.loading[list] = false
		if e, ok := p.(*tdlib.Error); ok {
			if e.Code == 404 {
				s.log.Debug("chat list fully loaded", "list", list.String())
				s.exhausted[list] = true
				return
			}
			s.log.Warn("failed to load chats", "list", list.String(), "code", e.Code, "error", e.Message)
		}
	})
	if err != nil {
		s.loading[list] = false
		s.log.Warn("load chats not sent", "list", list.String(), "error", err)
		return false
	}

	return true
}

func (s *Synchronizer) ActiveList() tdlib.ChatList {
	return s.active
}

// Entries returns a snapshot of the view.
func (s *Synchronizer) Entries() []Entry {
	return s.view.Entries()
}

func (s *Synchronizer) View() *View {
	return s.view
}

// Chat returns a copy of the chat with the given id.
func (s *Synchronizer) Chat(chatID int64) (*tdlib.Chat, bool) {
	st, ok := s.chats[chatID]
	if !ok {
		return nil, false
	}

	return st.chat.Clone(), true
}

func (s *Synchronizer) Len() int {
	return len(s.chats)
}

// Exhausted reports whether the backend has no more chats for list.
func (s *Synchronizer) Exhausted(list tdlib.ChatList) bool {
	return s.exhausted[list]
}

// Folders lists the selectable chat lists: all chats, archive, then folders.
func (s *Synchronizer) Folders() []Folder {
	res := []Folder{
		{List: tdlib.MainList, Title: "All Chats"},
		{List: tdlib.ArchiveList, Title: "Archive"},
	}
	for _, f := range s.folders {
		res = append(res, Folder{List: tdlib.FolderList(f.ID), Title: f.Title})
	}

	return res
}

// SeedFolders installs a folder list remembered from an earlier session.
// A list announced by the backend later replaces it.
func (s *Synchronizer) SeedFolders(folders []tdlib.ChatFolder) {
	if len(s.folders) > 0 {
		return
	}
	s.folders = append([]tdlib.ChatFolder(nil), folders...)
}

// BackendFolders returns the folders announced by the backend, without the
// fixed lists.
func (s *Synchronizer) BackendFolders() []tdlib.ChatFolder {
	return append([]tdlib.ChatFolder(nil), s.folders...)
}

func (s *Synchronizer) addChat(chat *tdlib.Chat) {
	if chat == nil {
		return
	}
	cp := chat.Clone()
	if st, ok := s.chats[chat.ID]; ok {
		st.chat = cp
	} else {
		s.seq++
		s.chats[chat.ID] = &chatState{chat: cp, seq: s.seq}
	}
	if uid := userOf(cp); uid != 0 && !slices.Contains(s.byUser[uid], cp.ID) {
		s.byUser[uid] = append(s.byUser[uid], cp.ID)
	}
	if s.place(cp.ID) {
		s.changed()
	}
}

func (s *Synchronizer) mutate(chatID int64, fn func(*tdlib.Chat)) {
	st, ok := s.chats[chatID]
	if !ok {
		s.log.Debug("update for unknown chat", "chat_id", chatID)
		return
	}
	fn(st.chat)
	if s.place(chatID) {
		s.changed()
	}
}

func (s *Synchronizer) newMessage(msg *tdlib.Message) {
	if msg == nil {
		return
	}
	st, ok := s.chats[msg.ChatID]
	if !ok {
		s.log.Debug("message for unknown chat", "chat_id", msg.ChatID)
		return
	}
	chat := st.chat
	if chat.LastMessage == nil || chat.LastMessage.ID <= msg.ID {
		chat.LastMessage = msg
	}
	// the unread counter is only ever taken from the backend
	if s.notifier != nil && !msg.IsOutgoing && !chat.DefaultDisableNotification {
		s.notifier.Notify(chat.Title, tdlib.FormatContent(msg.Content))
	}
	if s.place(chat.ID) {
		s.changed()
	}
}

// place moves the chat's row to match its current state. It reports whether
// the view changed.
func (s *Synchronizer) place(chatID int64) bool {
	st, ok := s.chats[chatID]
	if !ok {
		return false
	}
	pos, ok := st.chat.Position(s.active)
	if !ok {
		return s.view.Remove(chatID)
	}
	s.view.Upsert(Entry{ChatID: chatID, Display: s.display(st.chat), Key: MakeSortKey(pos)})

	return true
}

func (s *Synchronizer) display(chat *tdlib.Chat) string {
	var b strings.Builder
	switch {
	case chat.Type.Kind == tdlib.ChatSecret:
		b.WriteString("Secret. ")
	case chat.Type.Kind == tdlib.ChatSupergroup && chat.Type.IsChannel:
		b.WriteString("Channel. ")
	}

	if uid := userOf(chat); uid != 0 {
		s.writeUser(&b, chat, uid)
	} else {
		b.WriteString(chat.Title)
	}

	if chat.UnreadCount > 0 {
		b.WriteString(", ")
		b.WriteString(strconv.Itoa(int(chat.UnreadCount)))
		b.WriteString(" unread messages")
	}
	b.WriteString(": ")
	b.WriteString(tdlib.ContentPreview(chat.LastMessage))

	return b.String()
}

func (s *Synchronizer) writeUser(b *strings.Builder, chat *tdlib.Chat, uid int64) {
	u, known := s.users.Cached(uid)
	switch {
	case !known:
		// one waiter per user is enough to re-render every chat of it
		if !s.users.InFlight(uid) {
			s.users.Get(uid, func(*tdlib.User) {
				if _, ok := s.users.Cached(uid); ok {
					s.UserChanged(uid)
				}
			})
		}
		b.WriteString(strconv.FormatInt(chat.ID, 10))
	case u == nil:
		if chat.Title != "" {
			b.WriteString(chat.Title)
		} else {
			b.WriteString(strconv.FormatInt(chat.ID, 10))
		}
	default:
		if u.IsBot && chat.Type.Kind == tdlib.ChatPrivate {
			b.WriteString("Bot. ")
		}
		b.WriteString(tdlib.GetUserFullname(u))
		if u.IsPremium {
			b.WriteString(", Premium account")
		}
		if status := tdlib.FormatStatus(u.Status, s.loc); status != "" {
			b.WriteString(", ")
			b.WriteString(status)
		}
	}
}

func (s *Synchronizer) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *Synchronizer) count(kind string) {
	s.m.ChatEvents.WithLabelValues(kind).Inc()
}

func userOf(chat *tdlib.Chat) int64 {
	switch chat.Type.Kind {
	case tdlib.ChatPrivate, tdlib.ChatSecret:
		return chat.Type.UserID
	}

	return 0
}
