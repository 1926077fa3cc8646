// Package mocks provides testify mocks of the interfaces package.
package mocks

import (
	context "context"
	io "io"

	model "lecture-me/client/internal/model"

	mock "github.com/stretchr/testify/mock"
)

// MockBackend is a mock type for the Backend type
type MockBackend struct {
	mock.Mock
}

// ListConversations provides a mock function with given fields: ctx
func (_m *MockBackend) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	ret := _m.Called(ctx)

	var r0 []model.Conversation
	if rf, ok := ret.Get(0).(func(context.Context) []model.Conversation); ok {
		r0 = rf(ctx)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Conversation)
	}

	return r0, ret.Error(1)
}

// GetMessages provides a mock function with given fields: ctx, convID
func (_m *MockBackend) GetMessages(ctx context.Context, convID model.ID) ([]model.Message, error) {
	ret := _m.Called(ctx, convID)

	var r0 []model.Message
	if rf, ok := ret.Get(0).(func(context.Context, model.ID) []model.Message); ok {
		r0 = rf(ctx, convID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Message)
	}

	return r0, ret.Error(1)
}

// GetNotes provides a mock function with given fields: ctx, convID
func (_m *MockBackend) GetNotes(ctx context.Context, convID model.ID) (string, error) {
	ret := _m.Called(ctx, convID)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, model.ID) string); ok {
		r0 = rf(ctx, convID)
	} else {
		r0 = ret.Get(0).(string)
	}

	return r0, ret.Error(1)
}

// UpdateNotes provides a mock function with given fields: ctx, convID, notes
func (_m *MockBackend) UpdateNotes(ctx context.Context, convID model.ID, notes string) error {
	ret := _m.Called(ctx, convID, notes)
	return ret.Error(0)
}

// CreateConversation provides a mock function with given fields: ctx, title, tags
func (_m *MockBackend) CreateConversation(ctx context.Context, title string, tags []string) (*model.Conversation, error) {
	ret := _m.Called(ctx, title, tags)

	var r0 *model.Conversation
	if rf, ok := ret.Get(0).(func(context.Context, string, []string) *model.Conversation); ok {
		r0 = rf(ctx, title, tags)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Conversation)
	}

	return r0, ret.Error(1)
}

// UpdateConversationTitle provides a mock function with given fields: ctx, convID, title
func (_m *MockBackend) UpdateConversationTitle(ctx context.Context, convID model.ID, title string) (*model.Conversation, error) {
	ret := _m.Called(ctx, convID, title)

	var r0 *model.Conversation
	if rf, ok := ret.Get(0).(func(context.Context, model.ID, string) *model.Conversation); ok {
		r0 = rf(ctx, convID, title)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Conversation)
	}

	return r0, ret.Error(1)
}

// PostMessage provides a mock function with given fields: ctx, convID, content, isBot
func (_m *MockBackend) PostMessage(ctx context.Context, convID model.ID, content []model.ContentPart, isBot bool) (*model.Message, error) {
	ret := _m.Called(ctx, convID, content, isBot)

	var r0 *model.Message
	if rf, ok := ret.Get(0).(func(context.Context, model.ID, []model.ContentPart, bool) *model.Message); ok {
		r0 = rf(ctx, convID, content, isBot)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Message)
	}

	return r0, ret.Error(1)
}

// GenerateTitle provides a mock function with given fields: ctx, seed
func (_m *MockBackend) GenerateTitle(ctx context.Context, seed string) (string, error) {
	ret := _m.Called(ctx, seed)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string) string); ok {
		r0 = rf(ctx, seed)
	} else {
		r0 = ret.Get(0).(string)
	}

	return r0, ret.Error(1)
}

// StreamReply provides a mock function with given fields: ctx, convID, question, tags
func (_m *MockBackend) StreamReply(ctx context.Context, convID model.ID, question string, tags []string) (io.ReadCloser, error) {
	ret := _m.Called(ctx, convID, question, tags)

	var r0 io.ReadCloser
	if rf, ok := ret.Get(0).(func(context.Context, model.ID, string, []string) io.ReadCloser); ok {
		r0 = rf(ctx, convID, question, tags)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(io.ReadCloser)
	}

	return r0, ret.Error(1)
}

// ClassifySubject provides a mock function with given fields: ctx, text
func (_m *MockBackend) ClassifySubject(ctx context.Context, text string) ([]string, error) {
	ret := _m.Called(ctx, text)

	var r0 []string
	if rf, ok := ret.Get(0).(func(context.Context, string) []string); ok {
		r0 = rf(ctx, text)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}

	return r0, ret.Error(1)
}

// ClassifyTopic provides a mock function with given fields: ctx, text, subject
func (_m *MockBackend) ClassifyTopic(ctx context.Context, text string, subject string) ([]string, error) {
	ret := _m.Called(ctx, text, subject)

	var r0 []string
	if rf, ok := ret.Get(0).(func(context.Context, string, string) []string); ok {
		r0 = rf(ctx, text, subject)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}

	return r0, ret.Error(1)
}

// NewMockBackend creates a new instance of MockBackend. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockBackend(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockBackend {
	mock := &MockBackend{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
