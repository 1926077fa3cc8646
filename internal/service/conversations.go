package service

import (
	"strings"
	"sync"

	"lecture-me/client/internal/model"
)

// Filter selects conversations for the sidebar. An empty Tags matches every
// conversation; Query is matched case-insensitively against the title and the
// last message.
type Filter struct {
	Tags  []string
	Query string
}

// ConversationList is the client-side list of conversations, newest first.
type ConversationList struct {
	mu    sync.RWMutex
	convs []model.Conversation
}

func NewConversationList() *ConversationList {
	return &ConversationList{}
}

// Insert puts conv at the front unless a conversation with the same id is
// already listed. It reports whether conv was added.
func (l *ConversationList) Insert(conv model.Conversation) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.indexLocked(conv.ID) >= 0 {
		return false
	}
	l.convs = append([]model.Conversation{conv}, l.convs...)
	return true
}

// Replace swaps the whole list.
func (l *ConversationList) Replace(convs []model.Conversation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.convs = append([]model.Conversation(nil), convs...)
}

func (l *ConversationList) UpdateTitle(id model.ID, title string) bool {
	return l.modify(id, func(c *model.Conversation) { c.Title = title })
}

func (l *ConversationList) SetLastMessage(id model.ID, text string) bool {
	return l.modify(id, func(c *model.Conversation) { c.LastMessage = text })
}

func (l *ConversationList) SetNotes(id model.ID, notes string) bool {
	return l.modify(id, func(c *model.Conversation) { c.Notes = notes })
}

func (l *ConversationList) Get(id model.ID) (model.Conversation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := l.indexLocked(id)
	if i < 0 {
		return model.Conversation{}, false
	}
	return l.convs[i], true
}

func (l *ConversationList) All() []model.Conversation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.Conversation(nil), l.convs...)
}

func (l *ConversationList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.convs)
}

// Filter returns the conversations matching f, in list order.
func (l *ConversationList) Filter(f Filter) []model.Conversation {
	query := strings.ToLower(strings.TrimSpace(f.Query))

	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Conversation, 0, len(l.convs))
	for _, c := range l.convs {
		if matchesTags(c, f.Tags) && matchesQuery(c, query) {
			out = append(out, c)
		}
	}
	return out
}

func (l *ConversationList) modify(id model.ID, fn func(*model.Conversation)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(id)
	if i < 0 {
		return false
	}
	fn(&l.convs[i])
	return true
}

func (l *ConversationList) indexLocked(id model.ID) int {
	for i := range l.convs {
		if l.convs[i].ID == id {
			return i
		}
	}
	return -1
}

func matchesTags(c model.Conversation, selected []string) bool {
	if len(selected) == 0 {
		return true
	}
	for _, tag := range selected {
		if c.HasTag(tag) {
			return true
		}
	}
	return false
}

func matchesQuery(c model.Conversation, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Title), query) ||
		strings.Contains(strings.ToLower(c.LastMessage), query)
}
