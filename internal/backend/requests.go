package backend

import (
	"encoding/json"

	"lecture-me/client/internal/model"
)

// Request and response bodies of the tutoring backend. Field names follow the
// backend's wire format.

type CreateConversationRequest struct {
	Title string   `json:"title" validate:"required,max=200"`
	Tags  []string `json:"tags" validate:"dive,max=100"`
}

type UpdateTitleRequest struct {
	Title string `json:"title" validate:"required,min=1,max=100"`
}

type PostMessageRequest struct {
	ChatID  model.ID            `json:"chat_id" validate:"required"`
	Content []model.ContentPart `json:"content" validate:"required,min=1,dive"`
	IsBot   bool                `json:"is_bot"`
}

type GenerateTitleRequest struct {
	Text string `json:"text" validate:"required"`
}

type GenerateTitleResponse struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

type GenerateReplyRequest struct {
	ChatID   model.ID `json:"chat_id" validate:"required"`
	Question string   `json:"question" validate:"required"`
	Subjects []string `json:"subjects" validate:"required,min=1"`
}

type ClassifySubjectRequest struct {
	Question string `json:"question" validate:"required"`
}

type ClassifySubjectResponse struct {
	Question         string   `json:"question"`
	RelevantSubjects []string `json:"relevant_subjects"`
}

type ClassifyTopicRequest struct {
	Question string `json:"question" validate:"required"`
	Subject  string `json:"subject" validate:"required"`
}

type ClassifyTopicResponse struct {
	Question       string   `json:"question"`
	Subject        string   `json:"subject"`
	RelevantTopics []string `json:"relevant_topics"`
}

type NotesResponse struct {
	Notes *string `json:"notes"`
}

// ErrorResponse is the backend's error body. Detail is a string for most
// errors and a list of field errors for request validation failures.
type ErrorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// Message returns a readable form of Detail.
func (e ErrorResponse) Message() string {
	var s string
	if err := json.Unmarshal(e.Detail, &s); err == nil {
		return s
	}
	return string(e.Detail)
}
