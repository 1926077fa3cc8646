package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lecture-me/client/internal/interfaces"
)

const (
	minClassifyLength = 10
	maxSuggestedTopic = 2
	maxSuggestedTags  = 5
)

// TagSuggester proposes tags for a question from the backend's subject and
// topic classifiers.
type TagSuggester struct {
	backend interfaces.Backend
	log     *slog.Logger
}

func NewTagSuggester(backend interfaces.Backend, logger *slog.Logger) *TagSuggester {
	if logger == nil {
		logger = slog.Default()
	}
	return &TagSuggester{backend: backend, log: logger}
}

// Suggest returns the top subject followed by up to two of its topics. Short
// texts and texts with no matching subject yield no tags.
func (s *TagSuggester) Suggest(ctx context.Context, text string) ([]string, error) {
	if len(strings.TrimSpace(text)) < minClassifyLength {
		return nil, nil
	}

	subjects, err := s.backend.ClassifySubject(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("could not classify subject: %w", err)
	}
	if len(subjects) == 0 {
		s.log.Debug("No subject matched question")
		return nil, nil
	}
	subject := subjects[0]

	topics, err := s.backend.ClassifyTopic(ctx, text, subject)
	if err != nil {
		return nil, fmt.Errorf("could not classify topic for subject %q: %w", subject, err)
	}
	if len(topics) > maxSuggestedTopic {
		topics = topics[:maxSuggestedTopic]
	}

	tags := append([]string{subject}, topics...)
	if len(tags) > maxSuggestedTags {
		tags = tags[:maxSuggestedTags]
	}
	return tags, nil
}
