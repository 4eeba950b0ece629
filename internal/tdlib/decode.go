package tdlib

import (
	"encoding/json"
	"fmt"

	"github.com/zelenin/go-tdlib/client"
)

// Decode turns one raw backend object into an immutable Response. It never
// fails: objects the client does not model, or cannot parse, become *Unknown.
func Decode(requestID uint64, data json.RawMessage) Response {
	typ, err := client.UnmarshalType(data)
	if err != nil {
		return Response{RequestID: requestID, Payload: &Unknown{Type: PeekType(data), Raw: data, Err: err}}
	}
	p := convert(typ)
	if p == nil {
		p = &Unknown{Type: PeekType(data), Raw: data}
	}

	return Response{RequestID: requestID, Payload: p}
}

// PeekType returns the @type of a raw object, or an empty string.
func PeekType(data json.RawMessage) string {
	var meta struct {
		Type string `json:"@type"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return ""
	}

	return meta.Type
}

func convert(obj client.Type) Payload {
	switch v := obj.(type) {
	case *client.Error:
		return &Error{Code: v.Code, Message: v.Message}
	case *client.Ok:
		return &Ok{}
	case *client.User:
		return userFromTd(v)
	case *client.Chat:
		return chatFromTd(v)
	case *client.Chats:
		return &Chats{TotalCount: v.TotalCount, ChatIDs: append([]int64(nil), v.ChatIds...)}
	case *client.Message:
		return messageFromTd(v)
	case *client.Messages:
		msgs := &Messages{TotalCount: v.TotalCount, Messages: make([]Message, 0, len(v.Messages))}
		for _, m := range v.Messages {
			if m == nil {
				continue
			}
			msgs.Messages = append(msgs.Messages, *messageFromTd(m))
		}
		return msgs

	case *client.UpdateNewChat:
		if v.Chat == nil {
			return nil
		}
		return &UpdateNewChat{Chat: chatFromTd(v.Chat)}
	case *client.UpdateChatTitle:
		return &UpdateChatTitle{ChatID: v.ChatId, Title: v.Title}
	case *client.UpdateChatLastMessage:
		upd := &UpdateChatLastMessage{ChatID: v.ChatId, Positions: positionsFromTd(v.Positions)}
		if v.LastMessage != nil {
			upd.LastMessage = messageFromTd(v.LastMessage)
		}
		return upd
	case *client.UpdateChatPosition:
		pos, ok := positionFromTd(v.Position)
		if !ok {
			return nil
		}
		return &UpdateChatPosition{ChatID: v.ChatId, Position: pos}
	case *client.UpdateChatReadInbox:
		return &UpdateChatReadInbox{ChatID: v.ChatId, UnreadCount: v.UnreadCount}
	case *client.UpdateChatDefaultDisableNotification:
		return &UpdateChatDefaultDisableNotification{ChatID: v.ChatId, DefaultDisableNotification: v.DefaultDisableNotification}
	case *client.UpdateUser:
		if v.User == nil {
			return nil
		}
		return &UpdateUser{User: userFromTd(v.User)}
	case *client.UpdateUserStatus:
		return &UpdateUserStatus{UserID: v.UserId, Status: statusFromTd(v.Status)}
	case *client.UpdateNewMessage:
		if v.Message == nil {
			return nil
		}
		return &UpdateNewMessage{Message: messageFromTd(v.Message)}
	case *client.UpdateMessageContent:
		return &UpdateMessageContent{ChatID: v.ChatId, MessageID: v.MessageId, NewContent: contentFromTd(v.NewContent)}
	case *client.UpdateChatFolders:
		upd := &UpdateChatFolders{Folders: make([]ChatFolder, 0, len(v.ChatFolders))}
		for _, f := range v.ChatFolders {
			if f == nil {
				continue
			}
			upd.Folders = append(upd.Folders, ChatFolder{ID: f.Id, Title: folderTitle(f)})
		}
		return upd
	case *client.UpdateAuthorizationState:
		return &UpdateAuthorizationState{State: authStateFromTd(v.AuthorizationState)}
	case client.AuthorizationState:
		return &AuthorizationState{State: authStateFromTd(v)}
	}

	return nil
}

func userFromTd(u *client.User) *User {
	user := &User{
		ID:        u.Id,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  GetUsername(u.Usernames),
		Status:    statusFromTd(u.Status),
		IsPremium: u.IsPremium,
	}
	if _, ok := u.Type.(*client.UserTypeBot); ok {
		user.IsBot = true
	}

	return user
}

func statusFromTd(s client.UserStatus) UserStatus {
	switch v := s.(type) {
	case *client.UserStatusOnline:
		return UserStatus{Kind: StatusOnline}
	case *client.UserStatusOffline:
		return UserStatus{Kind: StatusOffline, WasOnline: v.WasOnline}
	case *client.UserStatusRecently:
		return UserStatus{Kind: StatusRecently}
	case *client.UserStatusLastWeek:
		return UserStatus{Kind: StatusLastWeek}
	case *client.UserStatusLastMonth:
		return UserStatus{Kind: StatusLastMonth}
	}

	return UserStatus{Kind: StatusEmpty}
}

func chatFromTd(c *client.Chat) *Chat {
	chat := &Chat{
		ID:                         c.Id,
		Title:                      c.Title,
		Type:                       chatTypeFromTd(c.Type),
		UnreadCount:                c.UnreadCount,
		Positions:                  positionsFromTd(c.Positions),
		DefaultDisableNotification: c.DefaultDisableNotification,
	}
	if c.LastMessage != nil {
		chat.LastMessage = messageFromTd(c.LastMessage)
	}

	return chat
}

func chatTypeFromTd(t client.ChatType) ChatType {
	switch v := t.(type) {
	case *client.ChatTypePrivate:
		return ChatType{Kind: ChatPrivate, UserID: v.UserId}
	case *client.ChatTypeSecret:
		return ChatType{Kind: ChatSecret, UserID: v.UserId}
	case *client.ChatTypeSupergroup:
		return ChatType{Kind: ChatSupergroup, IsChannel: v.IsChannel}
	case *client.ChatTypeBasicGroup:
		return ChatType{Kind: ChatBasicGroup}
	}

	return ChatType{Kind: ChatUnknown}
}

func positionsFromTd(positions []*client.ChatPosition) []ChatPosition {
	res := make([]ChatPosition, 0, len(positions))
	for _, p := range positions {
		if pos, ok := positionFromTd(p); ok {
			res = append(res, pos)
		}
	}

	return res
}

func positionFromTd(p *client.ChatPosition) (ChatPosition, bool) {
	if p == nil {
		return ChatPosition{}, false
	}
	var list ChatList
	switch l := p.List.(type) {
	case *client.ChatListMain:
		list = MainList
	case *client.ChatListArchive:
		list = ArchiveList
	case *client.ChatListFolder:
		list = FolderList(l.ChatFolderId)
	default:
		return ChatPosition{}, false
	}

	return ChatPosition{List: list, Order: int64(p.Order), IsPinned: p.IsPinned}, true
}

func messageFromTd(m *client.Message) *Message {
	msg := &Message{
		ID:              m.Id,
		ChatID:          m.ChatId,
		IsOutgoing:      m.IsOutgoing,
		Date:            m.Date,
		AuthorSignature: m.AuthorSignature,
		Content:         contentFromTd(m.Content),
	}
	switch s := m.SenderId.(type) {
	case *client.MessageSenderUser:
		msg.Sender = MessageSender{Kind: SenderUser, ID: s.UserId}
	case *client.MessageSenderChat:
		msg.Sender = MessageSender{Kind: SenderChat, ID: s.ChatId}
	}

	return msg
}

func contentFromTd(c client.MessageContent) MessageContent {
	switch v := c.(type) {
	case *client.MessageText:
		return MessageContent{Kind: ContentText, Text: formattedText(v.Text)}
	case *client.MessagePhoto:
		return MessageContent{Kind: ContentPhoto, Text: formattedText(v.Caption)}
	case *client.MessageVideo:
		return MessageContent{Kind: ContentVideo, Text: formattedText(v.Caption)}
	case *client.MessageDocument:
		content := MessageContent{Kind: ContentDocument, Text: formattedText(v.Caption)}
		if v.Document != nil {
			content.FileName = v.Document.FileName
		}
		return content
	case *client.MessageVoiceNote:
		content := MessageContent{Kind: ContentVoiceNote, Text: formattedText(v.Caption)}
		if v.VoiceNote != nil {
			content.Duration = v.VoiceNote.Duration
		}
		return content
	case *client.MessageAnimation:
		return MessageContent{Kind: ContentAnimation, Text: formattedText(v.Caption)}
	case *client.MessageAudio:
		return MessageContent{Kind: ContentAudio, Text: formattedText(v.Caption)}
	case *client.MessageSticker:
		return MessageContent{Kind: ContentSticker}
	case *client.MessageVideoNote:
		return MessageContent{Kind: ContentVideoNote}
	case *client.MessageCall:
		return MessageContent{Kind: ContentCall, Duration: v.Duration}
	case *client.MessageContact:
		return MessageContent{Kind: ContentContact}
	case *client.MessageLocation:
		return MessageContent{Kind: ContentLocation}
	case *client.MessagePoll:
		return MessageContent{Kind: ContentPoll}
	case *client.MessageChatAddMembers:
		return MessageContent{Kind: ContentChatAddMembers}
	case *client.MessageChatChangeTitle:
		return MessageContent{Kind: ContentChatChangeTitle, Title: v.Title}
	case *client.MessagePinMessage:
		return MessageContent{Kind: ContentPinMessage}
	case nil:
		return MessageContent{Kind: ContentUnsupported}
	}

	return MessageContent{Kind: ContentUnsupported, Type: fmt.Sprintf("%T", c)}
}

func formattedText(t *client.FormattedText) string {
	if t == nil {
		return ""
	}

	return t.Text
}

func folderTitle(f *client.ChatFolderInfo) string {
	if f.Name == nil || f.Name.Text == nil {
		return fmt.Sprintf("folder %d", f.Id)
	}

	return f.Name.Text.Text
}

func authStateFromTd(s client.AuthorizationState) AuthState {
	switch s.(type) {
	case *client.AuthorizationStateWaitTdlibParameters:
		return AuthWaitParameters
	case *client.AuthorizationStateWaitPhoneNumber:
		return AuthWaitPhoneNumber
	case *client.AuthorizationStateWaitCode:
		return AuthWaitCode
	case *client.AuthorizationStateWaitPassword:
		return AuthWaitPassword
	case *client.AuthorizationStateReady:
		return AuthReady
	case *client.AuthorizationStateLoggingOut:
		return AuthLoggingOut
	case *client.AuthorizationStateClosing:
		return AuthClosing
	case *client.AuthorizationStateClosed:
		return AuthClosed
	}

	return AuthOther
}
