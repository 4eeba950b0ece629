package chatlist

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexbilevskiy/tgdesk/internal/backend/backendtest"
	"github.com/alexbilevskiy/tgdesk/internal/notify"
	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
	"github.com/alexbilevskiy/tgdesk/internal/users"
)

type fixture struct {
	caller *backendtest.Caller
	users  *users.Directory
	rec    *notify.Recorder
	sync   *Synchronizer
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{caller: &backendtest.Caller{}, rec: &notify.Recorder{}}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.users = users.New(f.caller, users.WithLogger(quiet))
	opts = append([]Option{WithNotifier(f.rec), WithLogger(quiet), WithLocation(time.UTC)}, opts...)
	f.sync = New(f.caller, f.users, opts...)

	return f
}

func group(id int64, title string, positions ...tdlib.ChatPosition) *tdlib.Chat {
	return &tdlib.Chat{ID: id, Title: title, Type: tdlib.ChatType{Kind: tdlib.ChatBasicGroup}, Positions: positions}
}

func mainPos(order int64) tdlib.ChatPosition {
	return tdlib.ChatPosition{List: tdlib.MainList, Order: order}
}

func displays(entries []Entry) []string {
	res := make([]string, 0, len(entries))
	for _, e := range entries {
		res = append(res, e.Display)
	}

	return res
}

func TestNewChatsAndPinScenario(t *testing.T) {
	f := newFixture()
	s := f.sync

	s.Apply(&tdlib.UpdateNewChat{Chat: group(7, "Alice", mainPos(100))})
	require.Equal(t, []Entry{{ChatID: 7, Display: "Alice: No messages", Key: 100}}, s.Entries())

	s.Apply(&tdlib.UpdateNewChat{Chat: group(8, "Bob", mainPos(200))})
	assert.Equal(t, []int64{8, 7}, ids(s.Entries()))
	assert.Equal(t, []string{"Bob: No messages", "Alice: No messages"}, displays(s.Entries()))

	s.Apply(&tdlib.UpdateChatPosition{ChatID: 7, Position: tdlib.ChatPosition{List: tdlib.MainList, Order: 100, IsPinned: true}})
	assert.Equal(t, []int64{7, 8}, ids(s.Entries()))
	assertIndexConsistent(t, s.View())
}

func TestHigherKeyAlwaysFirst(t *testing.T) {
	s := newFixture().sync
	for i := int64(1); i <= 20; i++ {
		s.Apply(&tdlib.UpdateNewChat{Chat: group(i, "c", mainPos((i*7919)%101 + 1))})
	}
	for i := int64(1); i <= 20; i += 3 {
		s.Apply(&tdlib.UpdateChatPosition{ChatID: i, Position: mainPos((i*31)%97 + 1)})
	}

	assertIndexConsistent(t, s.View())
	assert.Equal(t, 20, s.View().Len())
}

func TestOtherListEventsOnlyUpdateMap(t *testing.T) {
	f := newFixture()
	s := f.sync
	s.Apply(&tdlib.UpdateNewChat{Chat: group(1, "Main", mainPos(10))})
	s.Apply(&tdlib.UpdateNewChat{Chat: group(2, "Archived", tdlib.ChatPosition{List: tdlib.ArchiveList, Order: 50})})

	assert.Equal(t, []int64{1}, ids(s.Entries()))
	_, known := s.Chat(2)
	assert.True(t, known)

	s.SelectList(tdlib.ArchiveList)
	assert.Equal(t, tdlib.ArchiveList, s.ActiveList())
	assert.Equal(t, []int64{2}, ids(s.Entries()))

	load := f.caller.LastOf("loadChats")
	require.NotNil(t, load)
	assert.Equal(t, tdlib.LoadChats{ChatList: tdlib.ArchiveList, Limit: DefaultPageSize}, load.Function)

	s.SelectList(tdlib.MainList)
	assert.Equal(t, []int64{1}, ids(s.Entries()))
}

func TestSelectListRebuildsSortedWithStableTies(t *testing.T) {
	s := newFixture().sync
	s.Apply(&tdlib.UpdateNewChat{Chat: group(1, "a", tdlib.ChatPosition{List: tdlib.FolderList(3), Order: 5})})
	s.Apply(&tdlib.UpdateNewChat{Chat: group(2, "b", tdlib.ChatPosition{List: tdlib.FolderList(3), Order: 9})})
	s.Apply(&tdlib.UpdateNewChat{Chat: group(3, "c", tdlib.ChatPosition{List: tdlib.FolderList(3), Order: 5})})
	s.Apply(&tdlib.UpdateNewChat{Chat: group(4, "d", tdlib.ChatPosition{List: tdlib.FolderList(3), Order: 1, IsPinned: true})})

	s.SelectList(tdlib.FolderList(3))

	assert.Equal(t, []int64{4, 2, 1, 3}, ids(s.Entries()))
	assertIndexConsistent(t, s.View())
}

func TestSelectFullListDoesNotLoadMore(t *testing.T) {
	f := newFixture(WithPageSize(2))
	s := f.sync
	s.Apply(&tdlib.UpdateNewChat{Chat: group(1, "a", mainPos(1))})
	s.Apply(&tdlib.UpdateNewChat{Chat: group(2, "b", mainPos(2))})

	s.SelectList(tdlib.MainList)

	assert.Equal(t, 0, f.caller.Count("loadChats"))
}

func TestRemovalFromActiveList(t *testing.T) {
	s := newFixture().sync
	for i := int64(1); i <= 4; i++ {
		s.Apply(&tdlib.UpdateNewChat{Chat: group(i, "c", mainPos(i*10))})
	}

	// order 0 means the chat left the list
	s.Apply(&tdlib.UpdateChatPosition{ChatID: 3, Position: mainPos(0)})

	assert.Equal(t, []int64{4, 2, 1}, ids(s.Entries()))
	c, ok := s.Chat(3)
	require.True(t, ok, "chats are never deleted")
	assert.Empty(t, c.Positions)

	// moving to the archive is a position change too
	s.Apply(&tdlib.UpdateChatPosition{ChatID: 2, Position: tdlib.ChatPosition{List: tdlib.ArchiveList, Order: 7}})
	s.Apply(&tdlib.UpdateChatPosition{ChatID: 2, Position: mainPos(0)})
	assert.Equal(t, []int64{4, 1}, ids(s.Entries()))
	assertIndexConsistent(t, s.View())
}

func TestPrivateChatPlaceholderUntilUserArrives(t *testing.T) {
	f := newFixture()
	s := f.sync
	private := &tdlib.Chat{ID: 500, Title: "Ann L", Type: tdlib.ChatType{Kind: tdlib.ChatPrivate, UserID: 42}, Positions: []tdlib.ChatPosition{mainPos(10)}}
	secret := &tdlib.Chat{ID: 501, Title: "Ann L", Type: tdlib.ChatType{Kind: tdlib.ChatSecret, UserID: 42}, Positions: []tdlib.ChatPosition{mainPos(5)}}

	s.Apply(&tdlib.UpdateNewChat{Chat: private})
	s.Apply(&tdlib.UpdateNewChat{Chat: secret})

	assert.Equal(t, []string{"500: No messages", "Secret. 501: No messages"}, displays(s.Entries()))
	require.Equal(t, 1, f.caller.Count("getUser"), "lookups for one user coalesce")

	f.caller.LastOf("getUser").Answer(&tdlib.User{ID: 42, FirstName: "Ann", LastName: "Lee", IsPremium: true, Status: tdlib.UserStatus{Kind: tdlib.StatusOnline}})

	assert.Equal(t, []string{
		"Ann Lee, Premium account, online: No messages",
		"Secret. Ann Lee, Premium account, online: No messages",
	}, displays(s.Entries()))
}

func TestPrivateChatFallbackOnFailedLookup(t *testing.T) {
	f := newFixture()
	s := f.sync
	s.Apply(&tdlib.UpdateNewChat{Chat: &tdlib.Chat{ID: 500, Title: "Deleted Account", Type: tdlib.ChatType{Kind: tdlib.ChatPrivate, UserID: 9}, Positions: []tdlib.ChatPosition{mainPos(1)}}})

	f.caller.LastOf("getUser").Answer(&tdlib.Error{Code: 400, Message: "USER_ID_INVALID"})

	assert.Equal(t, []string{"Deleted Account: No messages"}, displays(s.Entries()))

	// redraws do not query again
	s.Apply(&tdlib.UpdateChatReadInbox{ChatID: 500, UnreadCount: 1})
	assert.Equal(t, 1, f.caller.Count("getUser"))
}

func TestPendingUserRerendersOnce(t *testing.T) {
	changes := 0
	f := newFixture(WithChangeHook(func() { changes++ }))
	s := f.sync
	s.Apply(&tdlib.UpdateNewChat{Chat: &tdlib.Chat{ID: 500, Type: tdlib.ChatType{Kind: tdlib.ChatPrivate, UserID: 42}, Positions: []tdlib.ChatPosition{mainPos(1)}}})
	for i := int32(1); i <= 3; i++ {
		s.Apply(&tdlib.UpdateChatReadInbox{ChatID: 500, UnreadCount: i})
	}
	require.Equal(t, 1, f.caller.Count("getUser"))

	changes = 0
	f.caller.LastOf("getUser").Answer(&tdlib.User{ID: 42, FirstName: "Ann"})

	assert.Equal(t, 1, changes)
	assert.Equal(t, []string{"Ann, 3 unread messages: No messages"}, displays(s.Entries()))
}

func TestUserStatusChangeRerendersPrivateChat(t *testing.T) {
	f := newFixture()
	s := f.sync
	f.users.Put(&tdlib.User{ID: 42, FirstName: "Ann"})
	s.Apply(&tdlib.UpdateNewChat{Chat: &tdlib.Chat{ID: 500, Type: tdlib.ChatType{Kind: tdlib.ChatPrivate, UserID: 42}, Positions: []tdlib.ChatPosition{mainPos(1)}}})
	assert.Equal(t, []string{"Ann: No messages"}, displays(s.Entries()))

	f.users.SetStatus(42, tdlib.UserStatus{Kind: tdlib.StatusOffline, WasOnline: 1704164640})
	s.UserChanged(42)

	assert.Equal(t, []string{"Ann, last seen at 2024-01-02 03:04: No messages"}, displays(s.Entries()))
}

func TestBotPrefix(t *testing.T) {
	f := newFixture()
	f.users.Put(&tdlib.User{ID: 1, FirstName: "Helper", IsBot: true})
	f.sync.Apply(&tdlib.UpdateNewChat{Chat: &tdlib.Chat{ID: 10, Type: tdlib.ChatType{Kind: tdlib.ChatPrivate, UserID: 1}, Positions: []tdlib.ChatPosition{mainPos(1)}}})
	f.sync.Apply(&tdlib.UpdateNewChat{Chat: &tdlib.Chat{ID: 11, Title: "News", Type: tdlib.ChatType{Kind: tdlib.ChatSupergroup, IsChannel: true}, Positions: []tdlib.ChatPosition{mainPos(2)}}})

	assert.Equal(t, []string{"Channel. News: No messages", "Bot. Helper: No messages"}, displays(f.sync.Entries()))
}

func TestUnreadCountIsBackendAuthoritative(t *testing.T) {
	f := newFixture()
	s := f.sync
	s.Apply(&tdlib.UpdateNewChat{Chat: group(7, "Alice", mainPos(100))})

	s.Apply(&tdlib.UpdateNewMessage{Message: &tdlib.Message{ID: 1, ChatID: 7, Content: tdlib.MessageContent{Kind: tdlib.ContentText, Text: "hi"}}})
	c, _ := s.Chat(7)
	assert.Equal(t, int32(0), c.UnreadCount, "new messages never bump the counter locally")
	assert.Equal(t, []string{"Alice: hi"}, displays(s.Entries()))

	s.Apply(&tdlib.UpdateChatReadInbox{ChatID: 7, UnreadCount: 3})
	assert.Equal(t, []string{"Alice, 3 unread messages: hi"}, displays(s.Entries()))
}

func TestNotifications(t *testing.T) {
	f := newFixture()
	s := f.sync
	s.Apply(&tdlib.UpdateNewChat{Chat: group(1, "Loud", mainPos(1))})
	quiet := group(2, "Quiet", mainPos(2))
	quiet.DefaultDisableNotification = true
	s.Apply(&tdlib.UpdateNewChat{Chat: quiet})

	s.Apply(&tdlib.UpdateNewMessage{Message: &tdlib.Message{ID: 1, ChatID: 1, Content: tdlib.MessageContent{Kind: tdlib.ContentText, Text: "ping"}}})
	s.Apply(&tdlib.UpdateNewMessage{Message: &tdlib.Message{ID: 2, ChatID: 1, IsOutgoing: true, Content: tdlib.MessageContent{Kind: tdlib.ContentText, Text: "mine"}}})
	s.Apply(&tdlib.UpdateNewMessage{Message: &tdlib.Message{ID: 3, ChatID: 2, Content: tdlib.MessageContent{Kind: tdlib.ContentText, Text: "shh"}}})
	s.Apply(&tdlib.UpdateNewMessage{Message: &tdlib.Message{ID: 4, ChatID: 99, Content: tdlib.MessageContent{Kind: tdlib.ContentText, Text: "who"}}})

	assert.Equal(t, []notify.Notification{{Title: "Loud", Body: "ping"}}, f.rec.All())

	s.Apply(&tdlib.UpdateChatDefaultDisableNotification{ChatID: 2, DefaultDisableNotification: false})
	s.Apply(&tdlib.UpdateNewMessage{Message: &tdlib.Message{ID: 5, ChatID: 2, Content: tdlib.MessageContent{Kind: tdlib.ContentPhoto}}})
	assert.Len(t, f.rec.All(), 2)
	assert.Equal(t, notify.Notification{Title: "Quiet", Body: "Photo"}, f.rec.All()[1])
}

func TestLastMessageAndContentUpdates(t *testing.T) {
	s := newFixture().sync
	s.Apply(&tdlib.UpdateNewChat{Chat: group(1, "G", mainPos(1))})

	s.Apply(&tdlib.UpdateChatLastMessage{
		ChatID:      1,
		LastMessage: &tdlib.Message{ID: 10, ChatID: 1, Content: tdlib.MessageContent{Kind: tdlib.ContentText, Text: "draft"}},
		Positions:   []tdlib.ChatPosition{mainPos(50)},
	})
	assert.Equal(t, []Entry{{ChatID: 1, Display: "G: draft", Key: 50}}, s.Entries())

	s.Apply(&tdlib.UpdateMessageContent{ChatID: 1, MessageID: 10, NewContent: tdlib.MessageContent{Kind: tdlib.ContentText, Text: "final"}})
	assert.Equal(t, []string{"G: final"}, displays(s.Entries()))

	s.Apply(&tdlib.UpdateMessageContent{ChatID: 1, MessageID: 9, NewContent: tdlib.MessageContent{Kind: tdlib.ContentText, Text: "old"}})
	assert.Equal(t, []string{"G: final"}, displays(s.Entries()))

	s.Apply(&tdlib.UpdateChatTitle{ChatID: 1, Title: "Renamed"})
	assert.Equal(t, []string{"Renamed: final"}, displays(s.Entries()))
}

func TestLastMessageReplacesPositionSet(t *testing.T) {
	s := newFixture().sync
	s.Apply(&tdlib.UpdateNewChat{Chat: group(7, "Moved", mainPos(100))})
	s.Apply(&tdlib.UpdateNewChat{Chat: group(8, "Stays", mainPos(200))})
	require.Equal(t, []int64{8, 7}, ids(s.Entries()))

	archived := tdlib.ChatPosition{List: tdlib.ArchiveList, Order: 300}
	s.Apply(&tdlib.UpdateChatLastMessage{ChatID: 7, Positions: []tdlib.ChatPosition{archived}})

	assert.Equal(t, []int64{8}, ids(s.Entries()))
	chat, ok := s.Chat(7)
	require.True(t, ok)
	assert.Equal(t, []tdlib.ChatPosition{archived}, chat.Positions)
	assertIndexConsistent(t, s.View())

	// zero orders are not kept
	s.Apply(&tdlib.UpdateChatLastMessage{ChatID: 8, Positions: []tdlib.ChatPosition{mainPos(0)}})
	assert.Empty(t, s.Entries())
	chat, _ = s.Chat(8)
	assert.Empty(t, chat.Positions)
}

func TestUnknownChatUpdatesIgnored(t *testing.T) {
	s := newFixture().sync

	assert.True(t, s.Apply(&tdlib.UpdateChatTitle{ChatID: 404, Title: "x"}))
	assert.True(t, s.Apply(&tdlib.UpdateChatPosition{ChatID: 404, Position: mainPos(1)}))
	assert.False(t, s.Apply(&tdlib.UpdateUser{User: &tdlib.User{ID: 1}}))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.View().Len())
}

func TestLoadMoreGuardAndExhaustion(t *testing.T) {
	f := newFixture()
	s := f.sync

	assert.True(t, s.LoadMore())
	assert.False(t, s.LoadMore(), "in flight")
	require.Equal(t, 1, f.caller.Count("loadChats"))

	f.caller.LastOf("loadChats").Answer(&tdlib.Ok{})
	assert.True(t, s.LoadMore())
	f.caller.LastOf("loadChats").Answer(&tdlib.Error{Code: 404, Message: "Not Found"})

	assert.True(t, s.Exhausted(tdlib.MainList))
	assert.False(t, s.LoadMore())
	assert.Equal(t, 2, f.caller.Count("loadChats"))
}

func TestLoadMoreRetriesAfterError(t *testing.T) {
	f := newFixture()
	s := f.sync

	s.LoadMore()
	f.caller.LastOf("loadChats").Answer(&tdlib.Error{Code: 500, Message: "flood"})

	assert.False(t, s.Exhausted(tdlib.MainList))
	assert.True(t, s.LoadMore())
}

func TestFolders(t *testing.T) {
	var stored []tdlib.ChatFolder
	f := newFixture(WithFoldersHook(func(folders []tdlib.ChatFolder) { stored = folders }))
	s := f.sync
	s.SeedFolders([]tdlib.ChatFolder{{ID: 1, Title: "Old"}})
	assert.Equal(t, "Old", s.Folders()[2].Title)

	s.Apply(&tdlib.UpdateChatFolders{Folders: []tdlib.ChatFolder{{ID: 2, Title: "Work"}, {ID: 3, Title: "Family"}}})

	assert.Equal(t, []Folder{
		{List: tdlib.MainList, Title: "All Chats"},
		{List: tdlib.ArchiveList, Title: "Archive"},
		{List: tdlib.FolderList(2), Title: "Work"},
		{List: tdlib.FolderList(3), Title: "Family"},
	}, s.Folders())
	assert.Equal(t, []tdlib.ChatFolder{{ID: 2, Title: "Work"}, {ID: 3, Title: "Family"}}, stored)
	assert.Equal(t, 1, f.caller.Count("loadChats"))

	s.SeedFolders([]tdlib.ChatFolder{{ID: 9, Title: "Stale"}})
	assert.Len(t, s.Folders(), 4)
}

func TestSearch(t *testing.T) {
	s := newFixture().sync
	s.Apply(&tdlib.UpdateNewChat{Chat: group(1, "Alice", mainPos(30))})
	s.Apply(&tdlib.UpdateNewChat{Chat: group(2, "Bob", mainPos(20))})
	s.Apply(&tdlib.UpdateNewChat{Chat: group(3, "Alicia", mainPos(10))})

	assert.Equal(t, []int64{1, 3}, ids(s.Search("ali")))
	assert.Equal(t, []int64{2}, ids(s.Search("BOB")))
	assert.Equal(t, []int64{1, 2, 3}, ids(s.Search("  ")))
	assert.Empty(t, s.Search("zzz"))
}

func TestChangeHook(t *testing.T) {
	changes := 0
	s := newFixture(WithChangeHook(func() { changes++ })).sync

	s.Apply(&tdlib.UpdateNewChat{Chat: group(1, "a", mainPos(1))})
	s.Apply(&tdlib.UpdateNewChat{Chat: group(2, "b", tdlib.ChatPosition{List: tdlib.ArchiveList, Order: 1})})

	assert.Equal(t, 1, changes)
}
