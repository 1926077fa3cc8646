package backendtest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"lecture-me/client/internal/backend"
	app_errors "lecture-me/client/internal/errors"
	"lecture-me/client/internal/model"
)

// decode reads a JSON body into req and validates it.
func decode(r *http.Request, req interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", app_errors.ErrValidation, err)
	}
	return backend.ValidateRequest(req)
}

func chatID(r *http.Request) model.ID {
	return model.ID(chi.URLParam(r, "chatID"))
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.repo.GetChats(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, chats)
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req backend.CreateConversationRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	chat, err := s.repo.CreateChat(r.Context(), req.Title, req.Tags)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, chat)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.repo.GetMessages(r.Context(), chatID(r))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleGetNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.repo.GetNotes(r.Context(), chatID(r))
	if err != nil {
		respondWithError(w, err)
		return
	}
	resp := backend.NotesResponse{}
	if notes != "" {
		resp.Notes = &notes
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	notes := r.URL.Query().Get("notes")
	if err := s.repo.UpdateNotes(r.Context(), chatID(r), notes); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, backend.NotesResponse{Notes: &notes})
}

func (s *Server) handleUpdateTitle(w http.ResponseWriter, r *http.Request) {
	var req backend.UpdateTitleRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	chat, err := s.repo.UpdateChatTitle(r.Context(), chatID(r), req.Title)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, chat)
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	var req backend.PostMessageRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	msg, err := s.repo.AddMessage(r.Context(), req.ChatID, req.Content, req.IsBot)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, msg)
}

func (s *Server) handleGenerateTitle(w http.ResponseWriter, r *http.Request) {
	var req backend.GenerateTitleRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	s.mu.Lock()
	title := s.title
	s.mu.Unlock()
	respondWithJSON(w, http.StatusOK, backend.GenerateTitleResponse{Text: req.Text, Title: title})
}

func (s *Server) handleClassifySubject(w http.ResponseWriter, r *http.Request) {
	var req backend.ClassifySubjectRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	s.mu.Lock()
	subjects := append([]string{}, s.classifier.Subjects...)
	s.mu.Unlock()
	respondWithJSON(w, http.StatusOK, backend.ClassifySubjectResponse{Question: req.Question, RelevantSubjects: subjects})
}

func (s *Server) handleClassifyTopic(w http.ResponseWriter, r *http.Request) {
	var req backend.ClassifyTopicRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	s.mu.Lock()
	topics := append([]string{}, s.classifier.Topics[req.Subject]...)
	s.mu.Unlock()
	respondWithJSON(w, http.StatusOK, backend.ClassifyTopicResponse{Question: req.Question, Subject: req.Subject, RelevantTopics: topics})
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	tags := append([]string{}, s.catalog.Tags...)
	s.mu.Unlock()
	respondWithJSON(w, http.StatusOK, tags)
}

func (s *Server) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	subjects := append([]model.Subject{}, s.catalog.Subjects...)
	s.mu.Unlock()
	respondWithJSON(w, http.StatusOK, subjects)
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	id := model.ID(chi.URLParam(r, "subjectID"))
	s.mu.Lock()
	topics, ok := s.catalog.Topics[id]
	s.mu.Unlock()
	if !ok {
		respondWithStatus(w, http.StatusNotFound, "Subject not found")
		return
	}
	respondWithJSON(w, http.StatusOK, topics)
}

func (s *Server) handleListSubtopics(w http.ResponseWriter, r *http.Request) {
	id := model.ID(chi.URLParam(r, "topicID"))
	s.mu.Lock()
	subtopics, ok := s.catalog.Subtopics[id]
	s.mu.Unlock()
	if !ok {
		respondWithStatus(w, http.StatusNotFound, "Topic not found")
		return
	}
	respondWithJSON(w, http.StatusOK, subtopics)
}

// handleGenerateResponse streams the configured fragments as plain text. An
// injected failure aborts the connection mid-body.
func (s *Server) handleGenerateResponse(w http.ResponseWriter, r *http.Request) {
	var req backend.GenerateReplyRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	if _, err := s.repo.GetChat(r.Context(), req.ChatID); err != nil {
		respondWithError(w, err)
		return
	}

	s.mu.Lock()
	s.replies = append(s.replies, req)
	fragments := append([]string(nil), s.fragments...)
	failAfter := s.failAfter
	pace := s.pace
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	for i, fragment := range fragments {
		if i == failAfter {
			slog.Debug("Aborting reply stream", "chat_id", req.ChatID, "after", i)
			panic(http.ErrAbortHandler)
		}
		if i > 0 && pace != nil {
			select {
			case <-pace:
			case <-r.Context().Done():
				return
			}
		}
		if err := writeFragment(w, fragment); err != nil {
			slog.Debug("Client went away during reply stream", "chat_id", req.ChatID, "error", err)
			return
		}
	}
	if failAfter >= len(fragments) {
		panic(http.ErrAbortHandler)
	}
	slog.Debug("Finished reply stream", "chat_id", req.ChatID, "fragments", len(fragments), "question", strings.TrimSpace(req.Question))
}
