package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ID is an opaque identifier. The backend emits integer ids, local records use
// strings, so both JSON forms are accepted.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric ids as JSON numbers so integer-keyed backends
// accept them.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsNumeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// IsNumeric reports whether the id is a canonical non-negative integer.
func (id ID) IsNumeric() bool {
	if id == "" || (len(id) > 1 && id[0] == '0') {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (id ID) String() string { return string(id) }

// Content part kinds.
const (
	PartText  = "text"
	PartLatex = "latex"
	PartVideo = "video"
)

// ContentPart is one renderable piece of a message. For video parts Value holds
// the YouTube video id.
type ContentPart struct {
	Type  string `json:"type" validate:"required,oneof=text latex video"`
	Value string `json:"value"`
}

func Text(value string) ContentPart  { return ContentPart{Type: PartText, Value: value} }
func Latex(value string) ContentPart { return ContentPart{Type: PartLatex, Value: value} }
func Video(videoID string) ContentPart {
	return ContentPart{Type: PartVideo, Value: videoID}
}

// PlainText returns the value of the first text part, or "" when there is none.
func PlainText(parts []ContentPart) string {
	for _, p := range parts {
		if p.Type == PartText {
			return p.Value
		}
	}
	return ""
}

// Conversation stores metadata about a chat.
type Conversation struct {
	ID          ID        `json:"id"`
	Title       string    `json:"title"`
	Tags        []string  `json:"tags"`
	LastMessage string    `json:"lastMessage,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NoMessagesYet is displayed when the backend has no last message for a chat.
const NoMessagesYet = "No messages yet"

// DisplayLastMessage returns the cached last message or the empty-chat label.
func (c Conversation) DisplayLastMessage() string {
	if c.LastMessage == "" {
		return NoMessagesYet
	}
	return c.LastMessage
}

// HasTag reports whether tag is one of the conversation's non-blank tags.
func (c Conversation) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if strings.TrimSpace(t) == "" {
			continue
		}
		if t == tag {
			return true
		}
	}
	return false
}

// Message is a single entry of a conversation transcript.
type Message struct {
	ID             ID            `json:"id"`
	ConversationID ID            `json:"chat_id"`
	IsBot          bool          `json:"is_bot"`
	Content        []ContentPart `json:"content"`
	IsLoading      bool          `json:"-"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Subject, Topic and Subtopic are the tag reference data.
type Subject struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

type Topic struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

type Subtopic struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}
