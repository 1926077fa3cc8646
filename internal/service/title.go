package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	app_errors "lecture-me/client/internal/errors"
	"lecture-me/client/internal/interfaces"
	"lecture-me/client/internal/model"
)

// PlaceholderTitle is shown while a generated title is pending.
func PlaceholderTitle(topic string) string {
	return topic + " (generating title...)"
}

// TitleReconciler replaces a conversation's placeholder title with a generated
// one. It only ever touches the title field.
type TitleReconciler struct {
	backend interfaces.Backend
	list    *ConversationList
	log     *slog.Logger
}

func NewTitleReconciler(backend interfaces.Backend, list *ConversationList, logger *slog.Logger) *TitleReconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TitleReconciler{backend: backend, list: list, log: logger}
}

// Reconcile generates a title from seed and stores it for convID. Failures
// wrap ErrReconciliation, are logged and leave the current title in place.
// An empty generated title is not an error and changes nothing.
func (r *TitleReconciler) Reconcile(ctx context.Context, convID model.ID, seed string) error {
	log := r.log.With("chat_id", convID)

	title, err := r.backend.GenerateTitle(ctx, seed)
	if err != nil {
		err = fmt.Errorf("%w: generate title: %w", app_errors.ErrReconciliation, err)
		log.Warn("Failed to generate title", "error", err)
		return err
	}
	title = strings.Trim(strings.TrimSpace(title), `"'`)
	if title == "" {
		log.Debug("Generated title was empty, keeping current title")
		return nil
	}

	updated, err := r.backend.UpdateConversationTitle(ctx, convID, title)
	if err != nil {
		err = fmt.Errorf("%w: update title: %w", app_errors.ErrReconciliation, err)
		log.Warn("Failed to update title", "title", title, "error", err)
		return err
	}
	if updated != nil && updated.Title != "" {
		title = updated.Title
	}

	if !r.list.UpdateTitle(convID, title) {
		log.Debug("Conversation no longer listed, title not applied locally")
		return nil
	}
	log.Info("Updated conversation title", "title", title)
	return nil
}
