package tdlib

import "fmt"

type ListKind int

const (
	ListMain ListKind = iota
	ListArchive
	ListFolder
)

// ChatList identifies one of the lists a chat can be placed in. It is
// comparable and used as a map key.
type ChatList struct {
	Kind     ListKind
	FolderID int32
}

var (
	MainList    = ChatList{Kind: ListMain}
	ArchiveList = ChatList{Kind: ListArchive}
)

func FolderList(id int32) ChatList {
	return ChatList{Kind: ListFolder, FolderID: id}
}

func (l ChatList) String() string {
	switch l.Kind {
	case ListMain:
		return "main"
	case ListArchive:
		return "archive"
	default:
		return fmt.Sprintf("folder:%d", l.FolderID)
	}
}

type ChatPosition struct {
	List     ChatList
	Order    int64
	IsPinned bool
}

type ChatKind int

const (
	// ChatUnknown is a chat whose type was not reported.
	ChatUnknown ChatKind = iota
	ChatPrivate
	ChatBasicGroup
	ChatSupergroup
	ChatSecret
)

type ChatType struct {
	Kind      ChatKind
	UserID    int64
	IsChannel bool
}

type Chat struct {
	ID                         int64
	Title                      string
	Type                       ChatType
	LastMessage                *Message
	UnreadCount                int32
	Positions                  []ChatPosition
	DefaultDisableNotification bool
}

// Position returns the chat's position in list, if any.
func (c *Chat) Position(list ChatList) (ChatPosition, bool) {
	for _, p := range c.Positions {
		if p.List == list {
			return p, true
		}
	}

	return ChatPosition{}, false
}

// SetPosition upserts the position for its list. Order 0 removes the chat
// from that list.
func (c *Chat) SetPosition(pos ChatPosition) {
	for i, p := range c.Positions {
		if p.List != pos.List {
			continue
		}
		if pos.Order == 0 {
			c.Positions = append(c.Positions[:i:i], c.Positions[i+1:]...)
		} else {
			c.Positions[i] = pos
		}
		return
	}
	if pos.Order != 0 {
		c.Positions = append(c.Positions, pos)
	}
}

// ReplacePositions installs a complete position set. Lists missing from
// positions are lists the chat has left.
func (c *Chat) ReplacePositions(positions []ChatPosition) {
	c.Positions = make([]ChatPosition, 0, len(positions))
	for _, pos := range positions {
		if pos.Order != 0 {
			c.Positions = append(c.Positions, pos)
		}
	}
}

// Clone returns a copy that shares no slices with c.
func (c *Chat) Clone() *Chat {
	cp := *c
	cp.Positions = append([]ChatPosition(nil), c.Positions...)

	return &cp
}

type StatusKind int

const (
	StatusEmpty StatusKind = iota
	StatusOnline
	StatusOffline
	StatusRecently
	StatusLastWeek
	StatusLastMonth
)

type UserStatus struct {
	Kind StatusKind
	// WasOnline is a unix timestamp, set for StatusOffline.
	WasOnline int32
}

type User struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	Status    UserStatus
	IsPremium bool
	IsBot     bool
}

type SenderKind int

const (
	SenderUser SenderKind = iota
	SenderChat
)

type MessageSender struct {
	Kind SenderKind
	ID   int64
}

type ContentKind int

const (
	ContentUnsupported ContentKind = iota
	ContentText
	ContentPhoto
	ContentVideo
	ContentDocument
	ContentVoiceNote
	ContentAnimation
	ContentAudio
	ContentSticker
	ContentVideoNote
	ContentCall
	ContentContact
	ContentLocation
	ContentPoll
	ContentChatAddMembers
	ContentChatChangeTitle
	ContentPinMessage
)

// MessageContent keeps only what the client renders.
type MessageContent struct {
	Kind ContentKind
	// Text is the message text or the media caption.
	Text     string
	FileName string
	Duration int32
	Title    string
	// Type is the backend constructor name, kept for unsupported content.
	Type string
}

type Message struct {
	ID              int64
	ChatID          int64
	Sender          MessageSender
	IsOutgoing      bool
	Date            int32
	AuthorSignature string
	Content         MessageContent
}

type ChatFolder struct {
	ID    int32
	Title string
}
