// Package backend is the HTTP client for the tutoring backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	app_errors "lecture-me/client/internal/errors"
	"lecture-me/client/internal/interfaces"
	"lecture-me/client/internal/model"
)

var (
	_ interfaces.Backend       = (*Client)(nil)
	_ interfaces.ReferenceData = (*Client)(nil)
)

const defaultTitle = "New Chat"

// Client talks to the backend over HTTP. The bearer token is part of the
// client value; use WithToken to derive a client for another identity.
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client
	baseURL      string
	token        string
	log          *slog.Logger
}

type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout bounds non-streaming requests. Streams are bounded by their
// context only.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
		c.streamClient = &http.Client{Transport: hc.Transport, Jar: hc.Jar}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{},
		streamClient: &http.Client{},
		baseURL:      strings.TrimRight(baseURL, "/"),
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of the client that authenticates as token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var convs []model.Conversation
	if err := c.do(ctx, http.MethodGet, "/chats/", nil, nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (c *Client) GetMessages(ctx context.Context, convID model.ID) ([]model.Message, error) {
	var msgs []model.Message
	if err := c.do(ctx, http.MethodGet, "/chats/"+url.PathEscape(convID.String())+"/messages/", nil, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) GetNotes(ctx context.Context, convID model.ID) (string, error) {
	var resp NotesResponse
	if err := c.do(ctx, http.MethodGet, "/chats/"+url.PathEscape(convID.String())+"/notes", nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.Notes == nil {
		return "", nil
	}
	return *resp.Notes, nil
}

// UpdateNotes stores the notes of a conversation. The backend reads them from
// the query string.
func (c *Client) UpdateNotes(ctx context.Context, convID model.ID, notes string) error {
	q := url.Values{"notes": []string{notes}}
	return c.do(ctx, http.MethodPut, "/chats/"+url.PathEscape(convID.String())+"/notes", q, nil, nil)
}

func (c *Client) CreateConversation(ctx context.Context, title string, tags []string) (*model.Conversation, error) {
	if title == "" {
		title = defaultTitle
	}
	if tags == nil {
		tags = []string{}
	}
	req := &CreateConversationRequest{Title: title, Tags: tags}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	var conv model.Conversation
	if err := c.do(ctx, http.MethodPost, "/chats/", nil, req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) UpdateConversationTitle(ctx context.Context, convID model.ID, title string) (*model.Conversation, error) {
	req := &UpdateTitleRequest{Title: title}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	var conv model.Conversation
	if err := c.do(ctx, http.MethodPut, "/chats/"+url.PathEscape(convID.String())+"/title", nil, req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) PostMessage(ctx context.Context, convID model.ID, content []model.ContentPart, isBot bool) (*model.Message, error) {
	req := &PostMessageRequest{ChatID: convID, Content: content, IsBot: isBot}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	var msg model.Message
	if err := c.do(ctx, http.MethodPost, "/messages/", nil, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) GenerateTitle(ctx context.Context, seed string) (string, error) {
	req := &GenerateTitleRequest{Text: seed}
	if err := ValidateRequest(req); err != nil {
		return "", err
	}
	var resp GenerateTitleResponse
	if err := c.do(ctx, http.MethodPost, "/generate-title/", nil, req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Title), nil
}

// StreamReply posts the question and returns the response body once the
// backend has accepted the request. Nothing is read from the body here.
func (c *Client) StreamReply(ctx context.Context, convID model.ID, question string, tags []string) (io.ReadCloser, error) {
	req := &GenerateReplyRequest{ChatID: convID, Question: question, Subjects: tags}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/generate-response/", nil, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/plain, application/json")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: POST /generate-response/: %v", app_errors.ErrTransport, err)
	}
	if err := c.checkResponse(http.MethodPost, "/generate-response/", resp); err != nil {
		return nil, err
	}
	c.log.Debug("Reply stream accepted", "chat_id", convID, "status", resp.StatusCode)
	return resp.Body, nil
}

func (c *Client) ClassifySubject(ctx context.Context, text string) ([]string, error) {
	req := &ClassifySubjectRequest{Question: text}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	var resp ClassifySubjectResponse
	if err := c.do(ctx, http.MethodPost, "/classify-subject/", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.RelevantSubjects, nil
}

func (c *Client) ClassifyTopic(ctx context.Context, text, subject string) ([]string, error) {
	req := &ClassifyTopicRequest{Question: text, Subject: subject}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	var resp ClassifyTopicResponse
	if err := c.do(ctx, http.MethodPost, "/classify-topic/", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.RelevantTopics, nil
}

func (c *Client) ListTags(ctx context.Context) ([]string, error) {
	var tags []string
	if err := c.do(ctx, http.MethodGet, "/tags/", nil, nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (c *Client) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	var subjects []model.Subject
	if err := c.do(ctx, http.MethodGet, "/subjects/", nil, nil, &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

func (c *Client) ListTopics(ctx context.Context, subjectID model.ID) ([]model.Topic, error) {
	var topics []model.Topic
	if err := c.do(ctx, http.MethodGet, "/subjects/"+url.PathEscape(subjectID.String())+"/topics/", nil, nil, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

func (c *Client) ListSubtopics(ctx context.Context, topicID model.ID) ([]model.Subtopic, error) {
	var subtopics []model.Subtopic
	if err := c.do(ctx, http.MethodGet, "/topics/"+url.PathEscape(topicID.String())+"/subtopics/", nil, nil, &subtopics); err != nil {
		return nil, err
	}
	return subtopics, nil
}

// do sends a JSON request and decodes a JSON response into out when out is
// not nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, query, in)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", app_errors.ErrTransport, method, path, err)
	}
	defer func() {
		if cErr := resp.Body.Close(); cErr != nil {
			c.log.Warn("Failed to close response body", "path", path, "error", cErr)
		}
	}()

	if err := c.checkResponse(method, path, resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: could not decode response: %v", app_errors.ErrTransport, method, path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, in interface{}) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("could not marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("could not create http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// checkResponse maps a non-2xx response to an error and closes its body.
func (c *Client) checkResponse(method, path string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	detail := strings.TrimSpace(string(bodyBytes))
	var errResp ErrorResponse
	if json.Unmarshal(bodyBytes, &errResp) == nil && len(errResp.Detail) > 0 {
		detail = errResp.Message()
	}

	c.log.Warn("Backend returned an error", "method", method, "path", path, "status", resp.StatusCode, "detail", detail)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w: %s %s: %s", app_errors.ErrTransport, app_errors.ErrNotFound, method, path, detail)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w: %s %s: %s", app_errors.ErrTransport, app_errors.ErrUnauthorized, method, path, detail)
	default:
		return fmt.Errorf("%w: %s %s returned status %d: %s", app_errors.ErrTransport, method, path, resp.StatusCode, detail)
	}
}
