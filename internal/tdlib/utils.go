package tdlib

import (
	"fmt"
	"strings"
	"time"

	"github.com/zelenin/go-tdlib/client"
)

func GetUserFullname(user *User) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" && user.Username != "" {
		name = "@" + user.Username
	}
	if name == "" {
		name = fmt.Sprintf("no_name %d", user.ID)
	}

	return name
}

func GetUsername(usernames *client.Usernames) string {
	if usernames == nil {
		return ""
	}
	if len(usernames.ActiveUsernames) == 0 {
		return ""
	}

	return usernames.ActiveUsernames[0]
}

func FormatTimestamp(unix int32, loc *time.Location) string {
	if unix == 0 {
		return "N/A"
	}
	if loc == nil {
		loc = time.Local
	}

	return time.Unix(int64(unix), 0).In(loc).Format("2006-01-02 15:04")
}

// FormatStatus renders a user's presence, or an empty string when there is
// nothing worth showing.
func FormatStatus(status UserStatus, loc *time.Location) string {
	switch status.Kind {
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "last seen at " + FormatTimestamp(status.WasOnline, loc)
	case StatusRecently:
		return "last seen recently"
	}

	return ""
}

// ContentPreview is the short form used in the chat list.
func ContentPreview(msg *Message) string {
	if msg == nil {
		return "No messages"
	}
	c := msg.Content
	switch c.Kind {
	case ContentText:
		return c.Text
	case ContentAnimation:
		return "[Animation]"
	case ContentAudio:
		return "[Audio]"
	case ContentDocument:
		return "[File]"
	case ContentPhoto:
		return "[Photo]"
	case ContentSticker:
		return "[Sticker]"
	case ContentVideo:
		return "[Video]"
	case ContentVoiceNote:
		return "[Voice message]"
	case ContentCall:
		return "[Call]"
	case ContentContact:
		return "[Contact]"
	case ContentLocation:
		return "[Location]"
	case ContentPoll:
		return "[Poll]"
	case ContentVideoNote:
		return "[Video message]"
	case ContentChatAddMembers:
		return "[Service: New members]"
	case ContentChatChangeTitle:
		return "Title changed to " + c.Title
	case ContentPinMessage:
		return "[Service: Pinned a message]"
	}

	return "[Unsupported message]"
}

// FormatContent is the long form used in the history view.
func FormatContent(c MessageContent) string {
	var kind, details string
	switch c.Kind {
	case ContentText:
		return c.Text
	case ContentVoiceNote:
		kind = "Voice"
		details = fmt.Sprintf("%d seconds", c.Duration)
	case ContentDocument:
		kind = "File"
		details = c.FileName
	case ContentPhoto:
		kind = "Photo"
		details = c.Text
	case ContentVideo:
		kind = "Video"
		details = c.Text
	case ContentChatAddMembers:
		kind = "Service"
		details = "Members added"
	case ContentChatChangeTitle:
		kind = "Service"
		details = "Title changed to " + c.Title
	default:
		kind = "Other"
		details = "Unsupported content"
	}
	if details == "" {
		return kind
	}

	return kind + ", " + details
}
