package tdlib

import "encoding/json"

// Response is one decoded backend object. RequestID is zero for pushes.
type Response struct {
	RequestID uint64
	Payload   Payload
}

func (r Response) IsPush() bool {
	return r.RequestID == 0
}

// Payload is the closed set of backend objects the client understands.
// Anything else decodes to *Unknown.
type Payload interface {
	payload()
}

type Error struct {
	Code    int32
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

type Ok struct{}

type Chats struct {
	TotalCount int32
	ChatIDs    []int64
}

type Messages struct {
	TotalCount int32
	// Messages are ordered newest first, as the backend returns them.
	Messages []Message
}

type UpdateNewChat struct {
	Chat *Chat
}

type UpdateChatTitle struct {
	ChatID int64
	Title  string
}

type UpdateChatLastMessage struct {
	ChatID      int64
	LastMessage *Message
	Positions   []ChatPosition
}

type UpdateChatPosition struct {
	ChatID   int64
	Position ChatPosition
}

type UpdateChatReadInbox struct {
	ChatID      int64
	UnreadCount int32
}

type UpdateChatDefaultDisableNotification struct {
	ChatID                     int64
	DefaultDisableNotification bool
}

type UpdateUser struct {
	User *User
}

type UpdateUserStatus struct {
	UserID int64
	Status UserStatus
}

type UpdateNewMessage struct {
	Message *Message
}

type UpdateMessageContent struct {
	ChatID     int64
	MessageID  int64
	NewContent MessageContent
}

type UpdateChatFolders struct {
	Folders []ChatFolder
}

type AuthState string

const (
	AuthWaitParameters  AuthState = "waitTdlibParameters"
	AuthWaitPhoneNumber AuthState = "waitPhoneNumber"
	AuthWaitCode        AuthState = "waitCode"
	AuthWaitPassword    AuthState = "waitPassword"
	AuthReady           AuthState = "ready"
	AuthLoggingOut      AuthState = "loggingOut"
	AuthClosing         AuthState = "closing"
	AuthClosed          AuthState = "closed"
	AuthOther           AuthState = "other"
)

type UpdateAuthorizationState struct {
	State AuthState
}

// AuthorizationState is the reply to GetAuthorizationState.
type AuthorizationState struct {
	State AuthState
}

// Unknown carries objects the client does not model, or could not decode.
type Unknown struct {
	Type string
	Raw  json.RawMessage
	Err  error
}

func (*Error) payload()                                {}
func (*Ok) payload()                                   {}
func (*User) payload()                                 {}
func (*Chat) payload()                                 {}
func (*Chats) payload()                                {}
func (*Message) payload()                              {}
func (*Messages) payload()                             {}
func (*UpdateNewChat) payload()                        {}
func (*UpdateChatTitle) payload()                      {}
func (*UpdateChatLastMessage) payload()                {}
func (*UpdateChatPosition) payload()                   {}
func (*UpdateChatReadInbox) payload()                  {}
func (*UpdateChatDefaultDisableNotification) payload() {}
func (*UpdateUser) payload()                           {}
func (*UpdateUserStatus) payload()                     {}
func (*UpdateNewMessage) payload()                     {}
func (*UpdateMessageContent) payload()                 {}
func (*UpdateChatFolders) payload()                    {}
func (*UpdateAuthorizationState) payload()             {}
func (*AuthorizationState) payload()                   {}
func (*Unknown) payload()                              {}
