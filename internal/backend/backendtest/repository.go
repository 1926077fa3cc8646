package backendtest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	app_errors "lecture-me/client/internal/errors"
	"lecture-me/client/internal/model"
)

// Repository defines the storage operations behind the fake backend.
type Repository interface {
	CreateChat(ctx context.Context, title string, tags []string) (*model.Conversation, error)
	GetChat(ctx context.Context, chatID model.ID) (*model.Conversation, error)
	GetChats(ctx context.Context) ([]model.Conversation, error)
	UpdateChatTitle(ctx context.Context, chatID model.ID, title string) (*model.Conversation, error)
	GetNotes(ctx context.Context, chatID model.ID) (string, error)
	UpdateNotes(ctx context.Context, chatID model.ID, notes string) error

	AddMessage(ctx context.Context, chatID model.ID, content []model.ContentPart, isBot bool) (*model.Message, error)
	GetMessages(ctx context.Context, chatID model.ID) ([]model.Message, error)
}

// memoryRepository keeps chats in insertion order and hands out integer ids
// the way the real backend does.
type memoryRepository struct {
	mu       sync.Mutex
	nextID   int
	chats    []*model.Conversation
	messages map[model.ID][]model.Message
	now      func() time.Time
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		nextID:   1,
		messages: make(map[model.ID][]model.Message),
		now:      time.Now,
	}
}

func (r *memoryRepository) id() model.ID {
	id := model.ID(strconv.Itoa(r.nextID))
	r.nextID++
	return id
}

func (r *memoryRepository) CreateChat(_ context.Context, title string, tags []string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	chat := &model.Conversation{
		ID:        r.id(),
		Title:     title,
		Tags:      append([]string{}, tags...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.chats = append(r.chats, chat)
	out := *chat
	return &out, nil
}

func (r *memoryRepository) GetChat(_ context.Context, chatID model.ID) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, err := r.chatLocked(chatID)
	if err != nil {
		return nil, err
	}
	out := *chat
	return &out, nil
}

// GetChats returns the newest chat first, with the last message filled in.
func (r *memoryRepository) GetChats(_ context.Context) ([]model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Conversation, 0, len(r.chats))
	for i := len(r.chats) - 1; i >= 0; i-- {
		chat := *r.chats[i]
		chat.Notes = ""
		if msgs := r.messages[chat.ID]; len(msgs) > 0 {
			chat.LastMessage = model.PlainText(msgs[len(msgs)-1].Content)
		}
		out = append(out, chat)
	}
	return out, nil
}

func (r *memoryRepository) UpdateChatTitle(_ context.Context, chatID model.ID, title string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, err := r.chatLocked(chatID)
	if err != nil {
		return nil, err
	}
	chat.Title = title
	chat.UpdatedAt = r.now().UTC()
	out := *chat
	return &out, nil
}

func (r *memoryRepository) GetNotes(_ context.Context, chatID model.ID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, err := r.chatLocked(chatID)
	if err != nil {
		return "", err
	}
	return chat.Notes, nil
}

func (r *memoryRepository) UpdateNotes(_ context.Context, chatID model.ID, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, err := r.chatLocked(chatID)
	if err != nil {
		return err
	}
	chat.Notes = notes
	return nil
}

func (r *memoryRepository) AddMessage(_ context.Context, chatID model.ID, content []model.ContentPart, isBot bool) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, err := r.chatLocked(chatID)
	if err != nil {
		return nil, err
	}
	msg := model.Message{
		ID:             r.id(),
		ConversationID: chat.ID,
		IsBot:          isBot,
		Content:        append([]model.ContentPart(nil), content...),
		CreatedAt:      r.now().UTC(),
	}
	r.messages[chat.ID] = append(r.messages[chat.ID], msg)
	chat.UpdatedAt = msg.CreatedAt
	return &msg, nil
}

func (r *memoryRepository) GetMessages(_ context.Context, chatID model.ID) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.chatLocked(chatID); err != nil {
		return nil, err
	}
	return append([]model.Message{}, r.messages[chatID]...), nil
}

func (r *memoryRepository) chatLocked(chatID model.ID) (*model.Conversation, error) {
	for _, c := range r.chats {
		if c.ID == chatID {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: chat %s", app_errors.ErrNotFound, chatID)
}
