package tdlib

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Function is a backend request object. Type is the TDLib constructor name
// and the struct's json fields are its arguments.
type Function interface {
	Type() string
}

// Encode serializes fn as a TDLib JSON object tagged with requestID in @extra.
func Encode(fn Function, requestID uint64) ([]byte, error) {
	raw, err := json.Marshal(fn)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", fn.Type(), err)
	}
	obj := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("failed to rebuild %s: %w", fn.Type(), err)
	}
	obj["@type"] = fn.Type()
	if requestID != 0 {
		obj["@extra"] = requestID
	}

	return json.Marshal(obj)
}

// chatListObject is the wire form of ChatList.
type chatListObject struct {
	Type         string `json:"@type"`
	ChatFolderID int32  `json:"chat_folder_id,omitempty"`
}

func (l ChatList) MarshalJSON() ([]byte, error) {
	switch l.Kind {
	case ListMain:
		return json.Marshal(chatListObject{Type: "chatListMain"})
	case ListArchive:
		return json.Marshal(chatListObject{Type: "chatListArchive"})
	default:
		return json.Marshal(chatListObject{Type: "chatListFolder", ChatFolderID: l.FolderID})
	}
}

type GetUser struct {
	UserID int64 `json:"user_id"`
}

func (GetUser) Type() string { return "getUser" }

type GetChat struct {
	ChatID int64 `json:"chat_id"`
}

func (GetChat) Type() string { return "getChat" }

type LoadChats struct {
	ChatList ChatList `json:"chat_list"`
	Limit    int32    `json:"limit"`
}

func (LoadChats) Type() string { return "loadChats" }

type GetChatHistory struct {
	ChatID        int64 `json:"chat_id"`
	FromMessageID int64 `json:"from_message_id"`
	Offset        int32 `json:"offset"`
	Limit         int32 `json:"limit"`
	OnlyLocal     bool  `json:"only_local"`
}

func (GetChatHistory) Type() string { return "getChatHistory" }

type OpenChat struct {
	ChatID int64 `json:"chat_id"`
}

func (OpenChat) Type() string { return "openChat" }

type CloseChat struct {
	ChatID int64 `json:"chat_id"`
}

func (CloseChat) Type() string { return "closeChat" }

type ViewMessages struct {
	ChatID     int64   `json:"chat_id"`
	MessageIDs []int64 `json:"message_ids"`
	ForceRead  bool    `json:"force_read"`
}

func (ViewMessages) Type() string { return "viewMessages" }

type formattedTextObject struct {
	Type string `json:"@type"`
	Text string `json:"text"`
}

type inputMessageTextObject struct {
	Type string              `json:"@type"`
	Text formattedTextObject `json:"text"`
}

// SendMessage sends a plain text message.
type SendMessage struct {
	ChatID int64
	Text   string
}

func (SendMessage) Type() string { return "sendMessage" }

func (s SendMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ChatID  int64                  `json:"chat_id"`
		Content inputMessageTextObject `json:"input_message_content"`
	}{
		ChatID: s.ChatID,
		Content: inputMessageTextObject{
			Type: "inputMessageText",
			Text: formattedTextObject{Type: "formattedText", Text: s.Text},
		},
	})
}

type GetAuthorizationState struct{}

func (GetAuthorizationState) Type() string { return "getAuthorizationState" }

type Close struct{}

func (Close) Type() string { return "close" }
