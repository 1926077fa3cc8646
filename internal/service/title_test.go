package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	app_errors "lecture-me/client/internal/errors"
	"lecture-me/client/internal/interfaces/mocks"
	"lecture-me/client/internal/model"
	"lecture-me/client/internal/service"
)

func setupTitles(t *testing.T) (*service.TitleReconciler, *mocks.MockBackend, *service.ConversationList) {
	backend := mocks.NewMockBackend(t)
	list := service.NewConversationList()
	list.Replace([]model.Conversation{
		{ID: "1", Title: service.PlaceholderTitle("Calculus")},
		{ID: "2", Title: "Other chat"},
	})
	return service.NewTitleReconciler(backend, list, nil), backend, list
}

func TestTitleReconciler_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		reconciler, backend, list := setupTitles(t)
		backend.On("GenerateTitle", mock.Anything, "What is a derivative?").Return("Intro to Derivatives", nil).Once()
		backend.On("UpdateConversationTitle", mock.Anything, model.ID("1"), "Intro to Derivatives").
			Return(&model.Conversation{ID: "1", Title: "Intro to Derivatives"}, nil).Once()

		err := reconciler.Reconcile(ctx, "1", "What is a derivative?")

		assert.NoError(t, err)
		first, _ := list.Get("1")
		second, _ := list.Get("2")
		assert.Equal(t, "Intro to Derivatives", first.Title)
		assert.Equal(t, "Other chat", second.Title)
	})

	t.Run("Success - quotes are stripped", func(t *testing.T) {
		reconciler, backend, list := setupTitles(t)
		backend.On("GenerateTitle", mock.Anything, "seed").Return(" \"Limits\" ", nil).Once()
		backend.On("UpdateConversationTitle", mock.Anything, model.ID("1"), "Limits").
			Return(&model.Conversation{ID: "1", Title: "Limits"}, nil).Once()

		assert.NoError(t, reconciler.Reconcile(ctx, "1", "seed"))
		conv, _ := list.Get("1")
		assert.Equal(t, "Limits", conv.Title)
	})

	t.Run("Empty title changes nothing", func(t *testing.T) {
		reconciler, backend, list := setupTitles(t)
		backend.On("GenerateTitle", mock.Anything, "seed").Return("   ", nil).Once()

		assert.NoError(t, reconciler.Reconcile(ctx, "1", "seed"))
		conv, _ := list.Get("1")
		assert.Equal(t, "Calculus (generating title...)", conv.Title)
		backend.AssertNotCalled(t, "UpdateConversationTitle", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failure - generation", func(t *testing.T) {
		reconciler, backend, list := setupTitles(t)
		backend.On("GenerateTitle", mock.Anything, "seed").Return("", app_errors.ErrTransport).Once()

		err := reconciler.Reconcile(ctx, "1", "seed")

		assert.ErrorIs(t, err, app_errors.ErrReconciliation)
		assert.ErrorIs(t, err, app_errors.ErrTransport)
		conv, _ := list.Get("1")
		assert.Equal(t, service.PlaceholderTitle("Calculus"), conv.Title)
	})

	t.Run("Failure - update", func(t *testing.T) {
		reconciler, backend, list := setupTitles(t)
		backend.On("GenerateTitle", mock.Anything, "seed").Return("Limits", nil).Once()
		backend.On("UpdateConversationTitle", mock.Anything, model.ID("1"), "Limits").Return(nil, app_errors.ErrNotFound).Once()

		err := reconciler.Reconcile(ctx, "1", "seed")

		assert.ErrorIs(t, err, app_errors.ErrReconciliation)
		conv, _ := list.Get("1")
		assert.Equal(t, service.PlaceholderTitle("Calculus"), conv.Title)
	})

	t.Run("Unlisted conversation", func(t *testing.T) {
		reconciler, backend, list := setupTitles(t)
		backend.On("GenerateTitle", mock.Anything, "seed").Return("Limits", nil).Once()
		backend.On("UpdateConversationTitle", mock.Anything, model.ID("9"), "Limits").
			Return(&model.Conversation{ID: "9", Title: "Limits"}, nil).Once()

		assert.NoError(t, reconciler.Reconcile(ctx, "9", "seed"))
		assert.Equal(t, 2, list.Len())
	})
}
