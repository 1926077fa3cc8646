// Package backendtest provides an in-memory tutoring backend served over HTTP
// for tests of the client and the session.
package backendtest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"lecture-me/client/internal/backend"
	"lecture-me/client/internal/model"
)

// Catalog is the reference data served by the tag endpoints.
type Catalog struct {
	Tags      []string
	Subjects  []model.Subject
	Topics    map[model.ID][]model.Topic
	Subtopics map[model.ID][]model.Subtopic
}

// Classifier answers the classification endpoints.
type Classifier struct {
	Subjects []string
	Topics   map[string][]string
}

// Server is a fake backend. Configure it before issuing requests; the setters
// are safe to call while requests are in flight.
type Server struct {
	*httptest.Server

	repo Repository

	mu         sync.Mutex
	token      string
	fragments  []string
	failAfter  int
	pace       <-chan struct{}
	title      string
	catalog    Catalog
	classifier Classifier
	failures   map[string]int
	replies    []backend.GenerateReplyRequest
}

// New starts a fake backend. It is closed when the test ends.
func New(t interface{ Cleanup(func()) }) *Server {
	s := &Server{
		repo:      newMemoryRepository(),
		failAfter: -1,
		failures:  make(map[string]int),
	}
	s.Server = httptest.NewServer(s.Router())
	t.Cleanup(s.Close)
	return s
}

// Router returns the chi router serving the backend's routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.injectFailures)
	r.Use(s.authenticate)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))

		r.Get("/chats/", s.handleListChats)
		r.Post("/chats/", s.handleCreateChat)
		r.Get("/chats/{chatID}/messages/", s.handleGetMessages)
		r.Get("/chats/{chatID}/notes", s.handleGetNotes)
		r.Put("/chats/{chatID}/notes", s.handleUpdateNotes)
		r.Put("/chats/{chatID}/title", s.handleUpdateTitle)
		r.Post("/messages/", s.handleAddMessage)
		r.Post("/generate-title/", s.handleGenerateTitle)
		r.Post("/classify-subject/", s.handleClassifySubject)
		r.Post("/classify-topic/", s.handleClassifyTopic)

		r.Get("/tags/", s.handleListTags)
		r.Get("/subjects/", s.handleListSubjects)
		r.Get("/subjects/{subjectID}/topics/", s.handleListTopics)
		r.Get("/topics/{topicID}/subtopics/", s.handleListSubtopics)
	})

	// Streaming responses must not be cut by the timeout middleware.
	r.Post("/generate-response/", s.handleGenerateResponse)

	return r
}

// RequireToken rejects requests that do not carry token as a bearer token.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// SetReply sets the fragments streamed for every reply.
func (s *Server) SetReply(fragments ...string) {
	s.mu.Lock()
	s.fragments = fragments
	s.mu.Unlock()
}

// FailReplyAfter aborts reply streams after n fragments. A negative n
// disables the failure.
func (s *Server) FailReplyAfter(n int) {
	s.mu.Lock()
	s.failAfter = n
	s.mu.Unlock()
}

// Pace makes the reply stream wait for a value on ch before each fragment
// after the first.
func (s *Server) Pace(ch <-chan struct{}) {
	s.mu.Lock()
	s.pace = ch
	s.mu.Unlock()
}

// SetTitle sets the title returned by title generation.
func (s *Server) SetTitle(title string) {
	s.mu.Lock()
	s.title = title
	s.mu.Unlock()
}

func (s *Server) SetCatalog(c Catalog) {
	s.mu.Lock()
	s.catalog = c
	s.mu.Unlock()
}

func (s *Server) SetClassifier(c Classifier) {
	s.mu.Lock()
	s.classifier = c
	s.mu.Unlock()
}

// FailNext makes the next request whose path starts with prefix fail with
// status.
func (s *Server) FailNext(prefix string, status int) {
	s.mu.Lock()
	s.failures[prefix] = status
	s.mu.Unlock()
}

// Replies returns the reply requests received so far.
func (s *Server) Replies() []backend.GenerateReplyRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.GenerateReplyRequest(nil), s.replies...)
}

// Repository exposes the backing store for seeding and assertions.
func (s *Server) Repository() Repository { return s.repo }

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status := 0
		for prefix, code := range s.failures {
			if strings.HasPrefix(r.URL.Path, prefix) {
				status = code
				delete(s.failures, prefix)
				break
			}
		}
		s.mu.Unlock()

		if status != 0 {
			respondWithStatus(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		token := s.token
		s.mu.Unlock()

		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			respondWithStatus(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}
