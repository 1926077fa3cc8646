package backend_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lecture-me/client/internal/backend"
	"lecture-me/client/internal/backend/backendtest"
	app_errors "lecture-me/client/internal/errors"
	"lecture-me/client/internal/model"
	"lecture-me/client/internal/stream"
)

// TestClient_Requests checks the wire format the client produces against a
// bare httptest server.
func TestClient_Requests(t *testing.T) {
	var (
		capturedMethod, capturedPath, capturedQuery string
		capturedAuth, capturedContentType            string
		capturedBody                                 map[string]interface{}
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedMethod = r.Method
		capturedPath = r.URL.Path
		capturedQuery = r.URL.RawQuery
		capturedAuth = r.Header.Get("Authorization")
		capturedContentType = r.Header.Get("Content-Type")
		capturedBody = nil
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&capturedBody)
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/chats/":
			_, _ = w.Write([]byte(`{"id": 12, "title": "New Chat", "tags": []}`))
		case "/messages/":
			_, _ = w.Write([]byte(`{"id": 99, "chat_id": 12, "is_bot": false, "content": [{"type": "text", "value": "hi"}]}`))
		case "/chats/12/notes":
			_, _ = w.Write([]byte(`{"notes": null}`))
		case "/generate-title/":
			_, _ = w.Write([]byte(`{"text": "seed", "title": "  Limits  "}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail": "Not Found"}`))
		}
	}))
	defer server.Close()

	// ARRANGE
	client := backend.NewClient(server.URL+"/", backend.WithToken("guest-token"))
	ctx := context.Background()

	t.Run("CreateConversation defaults the title", func(t *testing.T) {
		// ACT
		conv, err := client.CreateConversation(ctx, "", nil)

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, model.ID("12"), conv.ID)
		assert.Equal(t, http.MethodPost, capturedMethod)
		assert.Equal(t, "/chats/", capturedPath)
		assert.Equal(t, "Bearer guest-token", capturedAuth)
		assert.Equal(t, "application/json", capturedContentType)
		assert.Equal(t, "New Chat", capturedBody["title"])
		assert.Equal(t, []interface{}{}, capturedBody["tags"])
	})

	t.Run("PostMessage sends numeric chat ids", func(t *testing.T) {
		msg, err := client.PostMessage(ctx, "12", []model.ContentPart{model.Text("hi")}, false)

		require.NoError(t, err)
		assert.Equal(t, model.ID("99"), msg.ID)
		assert.Equal(t, float64(12), capturedBody["chat_id"])
		assert.Equal(t, false, capturedBody["is_bot"])
	})

	t.Run("UpdateNotes uses the query string", func(t *testing.T) {
		err := client.UpdateNotes(ctx, "12", "chain rule & more")

		require.NoError(t, err)
		assert.Equal(t, http.MethodPut, capturedMethod)
		assert.Equal(t, "/chats/12/notes", capturedPath)
		assert.Equal(t, "notes=chain+rule+%26+more", capturedQuery)
		assert.Empty(t, capturedContentType)
	})

	t.Run("GetNotes treats null as empty", func(t *testing.T) {
		notes, err := client.GetNotes(ctx, "12")

		require.NoError(t, err)
		assert.Empty(t, notes)
	})

	t.Run("GenerateTitle trims the title", func(t *testing.T) {
		title, err := client.GenerateTitle(ctx, "seed")

		require.NoError(t, err)
		assert.Equal(t, "Limits", title)
	})

	t.Run("Not found maps to sentinel errors", func(t *testing.T) {
		_, err := client.GetMessages(ctx, "404")

		assert.ErrorIs(t, err, app_errors.ErrTransport)
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
		assert.ErrorContains(t, err, "Not Found")
	})

	t.Run("Validation failure sends nothing", func(t *testing.T) {
		capturedPath = ""

		_, err := client.PostMessage(ctx, "12", nil, false)

		assert.ErrorIs(t, err, app_errors.ErrValidation)
		assert.Empty(t, capturedPath)
	})

	t.Run("WithToken derives a client", func(t *testing.T) {
		other := client.WithToken("other")

		_, err := other.GetNotes(ctx, "12")

		require.NoError(t, err)
		assert.Equal(t, "Bearer other", capturedAuth)
	})
}

func TestClient_AgainstFakeBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("Conversation lifecycle", func(t *testing.T) {
		// ARRANGE
		fake := backendtest.New(t)
		client := backend.NewClient(fake.URL, backend.WithTimeout(5*time.Second))

		// ACT
		conv, err := client.CreateConversation(ctx, "Calculus (generating title...)", []string{"Mathematics"})
		require.NoError(t, err)
		_, err = client.PostMessage(ctx, conv.ID, []model.ContentPart{model.Text("What is a derivative?")}, false)
		require.NoError(t, err)
		_, err = client.PostMessage(ctx, conv.ID, []model.ContentPart{model.Text("A rate of change."), model.Latex(`\frac{dy}{dx}`)}, true)
		require.NoError(t, err)
		updated, err := client.UpdateConversationTitle(ctx, conv.ID, "Intro to Derivatives")
		require.NoError(t, err)
		require.NoError(t, client.UpdateNotes(ctx, conv.ID, "limits first"))

		// ASSERT
		assert.Equal(t, "Intro to Derivatives", updated.Title)

		convs, err := client.ListConversations(ctx)
		require.NoError(t, err)
		require.Len(t, convs, 1)
		assert.Equal(t, conv.ID, convs[0].ID)
		assert.Equal(t, []string{"Mathematics"}, convs[0].Tags)
		assert.Equal(t, "A rate of change.", convs[0].LastMessage)

		msgs, err := client.GetMessages(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.False(t, msgs[0].IsBot)
		assert.True(t, msgs[1].IsBot)
		assert.Equal(t, model.Latex(`\frac{dy}{dx}`), msgs[1].Content[1])

		notes, err := client.GetNotes(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, "limits first", notes)
	})

	t.Run("StreamReply delivers fragments", func(t *testing.T) {
		fake := backendtest.New(t)
		fake.SetReply("The ", "derivative ", "measures ", "change.")
		client := backend.NewClient(fake.URL)
		conv, err := client.CreateConversation(ctx, "t", nil)
		require.NoError(t, err)

		body, err := client.StreamReply(ctx, conv.ID, "What is a derivative?", []string{"Mathematics"})
		require.NoError(t, err)
		defer body.Close()
		all, err := io.ReadAll(body)

		require.NoError(t, err)
		assert.Equal(t, "The derivative measures change.", string(all))
		require.Len(t, fake.Replies(), 1)
		assert.Equal(t, []string{"Mathematics"}, fake.Replies()[0].Subjects)
	})

	t.Run("StreamReply interrupted mid-body", func(t *testing.T) {
		fake := backendtest.New(t)
		fake.SetReply("Partial answer", " never sent")
		fake.FailReplyAfter(1)
		client := backend.NewClient(fake.URL)
		conv, err := client.CreateConversation(ctx, "t", nil)
		require.NoError(t, err)

		body, err := client.StreamReply(ctx, conv.ID, "q", []string{"General"})
		require.NoError(t, err)
		defer body.Close()

		dec := stream.NewDecoder(body)
		for {
			if _, err = dec.Next(); err != nil {
				break
			}
		}

		assert.ErrorIs(t, err, app_errors.ErrStream)
		assert.Equal(t, "Partial answer", dec.Accumulated())
	})

	t.Run("StreamReply for unknown chat", func(t *testing.T) {
		fake := backendtest.New(t)
		client := backend.NewClient(fake.URL)

		_, err := client.StreamReply(ctx, "77", "q", []string{"General"})

		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})

	t.Run("Unauthorized", func(t *testing.T) {
		fake := backendtest.New(t)
		fake.RequireToken("secret")

		_, err := backend.NewClient(fake.URL).ListConversations(ctx)
		assert.ErrorIs(t, err, app_errors.ErrUnauthorized)

		_, err = backend.NewClient(fake.URL, backend.WithToken("secret")).ListConversations(ctx)
		assert.NoError(t, err)
	})

	t.Run("Injected server error", func(t *testing.T) {
		fake := backendtest.New(t)
		fake.FailNext("/chats/", http.StatusServiceUnavailable)
		client := backend.NewClient(fake.URL)

		_, err := client.ListConversations(ctx)
		assert.ErrorIs(t, err, app_errors.ErrTransport)
		assert.ErrorContains(t, err, "503")

		_, err = client.ListConversations(ctx)
		assert.NoError(t, err)
	})

	t.Run("Classification", func(t *testing.T) {
		fake := backendtest.New(t)
		fake.SetClassifier(backendtest.Classifier{
			Subjects: []string{"Biology"},
			Topics:   map[string][]string{"Biology": {"Photosynthesis"}},
		})
		client := backend.NewClient(fake.URL)

		subjects, err := client.ClassifySubject(ctx, "How do plants eat?")
		require.NoError(t, err)
		topics, err := client.ClassifyTopic(ctx, "How do plants eat?", "Biology")
		require.NoError(t, err)

		assert.Equal(t, []string{"Biology"}, subjects)
		assert.Equal(t, []string{"Photosynthesis"}, topics)
	})

	t.Run("Reference data", func(t *testing.T) {
		fake := backendtest.New(t)
		fake.SetCatalog(backendtest.Catalog{
			Tags:      []string{"Mathematics", "Biology"},
			Subjects:  []model.Subject{{ID: "1", Name: "Mathematics"}},
			Topics:    map[model.ID][]model.Topic{"1": {{ID: "10", Name: "Calculus"}}},
			Subtopics: map[model.ID][]model.Subtopic{"10": {{ID: "100", Name: "Derivatives"}}},
		})
		client := backend.NewClient(fake.URL)

		tags, err := client.ListTags(ctx)
		require.NoError(t, err)
		subjects, err := client.ListSubjects(ctx)
		require.NoError(t, err)
		topics, err := client.ListTopics(ctx, subjects[0].ID)
		require.NoError(t, err)
		subtopics, err := client.ListSubtopics(ctx, topics[0].ID)
		require.NoError(t, err)

		assert.Equal(t, []string{"Mathematics", "Biology"}, tags)
		assert.Equal(t, "Calculus", topics[0].Name)
		assert.Equal(t, "Derivatives", subtopics[0].Name)

		_, err = client.ListTopics(ctx, "999")
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})

	t.Run("Validation errors from the backend", func(t *testing.T) {
		fake := backendtest.New(t)
		client := backend.NewClient(fake.URL)
		conv, err := client.CreateConversation(ctx, "t", nil)
		require.NoError(t, err)

		// The client refuses an empty title before sending, so send it raw.
		req, err := http.NewRequest(http.MethodPut, fake.URL+"/chats/"+conv.ID.String()+"/title", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		var body backend.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Contains(t, body.Message(), "invalid request body")
	})

	t.Run("Context cancellation", func(t *testing.T) {
		fake := backendtest.New(t)
		client := backend.NewClient(fake.URL)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := client.ListConversations(cctx)

		assert.ErrorIs(t, err, app_errors.ErrTransport)
		assert.ErrorContains(t, err, "context canceled")
	})
}
