package interfaces

import (
	"context"
	"io"

	"lecture-me/client/internal/model"
)

// Backend is the set of remote operations the client core consumes. The
// session and its controllers depend on this contract rather than on the HTTP
// client, so tests can drive them with a mock.
type Backend interface {
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	GetMessages(ctx context.Context, convID model.ID) ([]model.Message, error)
	GetNotes(ctx context.Context, convID model.ID) (string, error)
	UpdateNotes(ctx context.Context, convID model.ID, notes string) error
	CreateConversation(ctx context.Context, title string, tags []string) (*model.Conversation, error)
	UpdateConversationTitle(ctx context.Context, convID model.ID, title string) (*model.Conversation, error)
	PostMessage(ctx context.Context, convID model.ID, content []model.ContentPart, isBot bool) (*model.Message, error)
	GenerateTitle(ctx context.Context, seed string) (string, error)

	// StreamReply starts reply generation and returns the raw byte stream. The
	// caller closes it.
	StreamReply(ctx context.Context, convID model.ID, question string, tags []string) (io.ReadCloser, error)

	ClassifySubject(ctx context.Context, text string) ([]string, error)
	ClassifyTopic(ctx context.Context, text, subject string) ([]string, error)
}

// ReferenceData is the read-only tag catalogue used by the tag pickers.
type ReferenceData interface {
	ListTags(ctx context.Context) ([]string, error)
	ListSubjects(ctx context.Context) ([]model.Subject, error)
	ListTopics(ctx context.Context, subjectID model.ID) ([]model.Topic, error)
	ListSubtopics(ctx context.Context, topicID model.ID) ([]model.Subtopic, error)
}
