package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	app_errors "lecture-me/client/internal/errors"
	"lecture-me/client/internal/interfaces"
	"lecture-me/client/internal/model"
	"lecture-me/client/internal/store"
)

// DefaultTopic is used when a conversation is started without a topic.
const DefaultTopic = "General"

// ErrorKind classifies the failure shown to the user.
type ErrorKind string

const (
	ErrorNone      ErrorKind = ""
	ErrorTransport ErrorKind = "transport"
	ErrorStream    ErrorKind = "stream"
)

// ErrorState is the last user-visible failure of a session.
type ErrorState struct {
	Kind    ErrorKind
	Message string
}

// NewConversation describes a conversation started from the start-chat form.
type NewConversation struct {
	Question []model.ContentPart
	Topic    string
	Tags     []string
}

// Session owns the active conversation, its message store and the
// conversation list, and runs reply and title work in the background.
type Session struct {
	backend interfaces.Backend
	store   *store.Store
	list    *ConversationList
	titles  *TitleReconciler
	tags    *TagSuggester
	opts    ReplyOptions
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// commitMu orders changes of the active conversation with the store
	// writes that depend on it. It is never held while waiting on the network.
	commitMu sync.Mutex

	mu        sync.Mutex
	active    *model.Conversation
	switchSeq uint64
	inFlight  map[model.ID]*ReplyController
	errState  ErrorState
}

func NewSession(backend interfaces.Backend, opts ReplyOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts.Logger = logger

	list := NewConversationList()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		backend:  backend,
		store:    store.New(),
		list:     list,
		titles:   NewTitleReconciler(backend, list, logger),
		tags:     NewTagSuggester(backend, logger),
		opts:     opts,
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
		inFlight: make(map[model.ID]*ReplyController),
	}
}

// Load fetches the conversation list and opens the first conversation.
func (s *Session) Load(ctx context.Context) error {
	convs, err := s.backend.ListConversations(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("could not list conversations: %w", asTransport(err)))
	}
	s.list.Replace(convs)
	s.log.Info("Loaded conversations", "count", len(convs))

	if len(convs) == 0 {
		return nil
	}
	return s.SwitchTo(ctx, convs[0])
}

// SwitchTo makes conv the active conversation. Its messages and notes are
// fetched concurrently and replace the store contents. A switch that is
// overtaken by a later SwitchTo or StartNew is dropped.
func (s *Session) SwitchTo(ctx context.Context, conv model.Conversation) error {
	s.mu.Lock()
	s.switchSeq++
	seq := s.switchSeq
	s.mu.Unlock()

	var (
		msgs  []model.Message
		notes string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		msgs, err = s.backend.GetMessages(gctx, conv.ID)
		if err != nil {
			return fmt.Errorf("could not get messages: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		notes, err = s.backend.GetNotes(gctx, conv.ID)
		if err != nil {
			return fmt.Errorf("could not get notes: %w", err)
		}
		return nil
	})
	err := g.Wait()

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	superseded := seq != s.switchSeq
	s.mu.Unlock()
	if superseded {
		s.log.Debug("Dropping superseded conversation switch", "chat_id", conv.ID)
		return nil
	}
	if err != nil {
		return s.fail(asTransport(err))
	}

	conv.Notes = notes
	s.list.SetNotes(conv.ID, notes)
	s.setActive(&conv)
	gen := s.store.ReplaceAll(msgs)
	s.log.Debug("Switched conversation", "chat_id", conv.ID, "messages", len(msgs), "generation", gen)
	return nil
}

// StartNew creates a conversation with a placeholder title, opens it with an
// empty transcript and starts streaming the answer to the first question.
// The title is generated concurrently.
func (s *Session) StartNew(ctx context.Context, req NewConversation) (*model.Conversation, *ReplyController, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = DefaultTopic
	}
	tags := nonBlank(req.Tags)

	conv, err := s.backend.CreateConversation(ctx, PlaceholderTitle(topic), tags)
	if err != nil {
		return nil, nil, s.fail(fmt.Errorf("could not create conversation: %w", asTransport(err)))
	}
	s.list.Insert(*conv)
	s.log.Info("Created conversation", "chat_id", conv.ID, "topic", topic)

	seed := model.PlainText(req.Question)
	if seed == "" {
		seed = topic
	}
	subjects := tags
	if len(subjects) == 0 {
		subjects = []string{topic}
	}

	s.commitMu.Lock()
	s.mu.Lock()
	s.switchSeq++
	s.mu.Unlock()
	s.setActive(conv)
	gen := s.store.ReplaceAll(nil)

	ctrl := NewReplyController(s.backend, s.store, conv.ID, req.Question, seed, subjects, s.opts)
	if err := ctrl.Begin(gen); err != nil {
		s.commitMu.Unlock()
		return nil, nil, err
	}
	s.track(ctrl)
	s.commitMu.Unlock()

	s.list.SetLastMessage(conv.ID, model.PlainText(req.Question))
	s.launch(ctrl)
	s.reconcileTitle(conv.ID, seed)

	out := *conv
	return &out, ctrl, nil
}

// Send asks question in the active conversation and streams the answer.
func (s *Session) Send(ctx context.Context, question []model.ContentPart) (*ReplyController, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.commitMu.Lock()
	active, ok := s.Active()
	if !ok {
		s.commitMu.Unlock()
		return nil, app_errors.ErrNoActiveConversation
	}

	s.mu.Lock()
	_, busy := s.inFlight[active.ID]
	s.mu.Unlock()
	if busy {
		s.commitMu.Unlock()
		return nil, fmt.Errorf("%w: conversation %s", app_errors.ErrReplyInFlight, active.ID)
	}

	subjects := nonBlank(active.Tags)
	if len(subjects) == 0 {
		subjects = []string{DefaultTopic}
	}
	ctrl := NewReplyController(s.backend, s.store, active.ID, question, "", subjects, s.opts)
	if err := ctrl.Begin(s.store.Generation()); err != nil {
		s.commitMu.Unlock()
		return nil, err
	}
	s.track(ctrl)
	s.commitMu.Unlock()

	s.list.SetLastMessage(active.ID, model.PlainText(question))
	s.launch(ctrl)
	return ctrl, nil
}

// SaveNotes stores notes for the active conversation.
func (s *Session) SaveNotes(ctx context.Context, notes string) error {
	active, ok := s.Active()
	if !ok {
		return app_errors.ErrNoActiveConversation
	}
	if err := s.backend.UpdateNotes(ctx, active.ID, notes); err != nil {
		return s.fail(fmt.Errorf("could not save notes: %w", asTransport(err)))
	}

	s.list.SetNotes(active.ID, notes)
	s.mu.Lock()
	if s.active != nil && s.active.ID == active.ID {
		s.active.Notes = notes
	}
	s.mu.Unlock()
	return nil
}

// Conversations returns the listed conversations matching f.
func (s *Session) Conversations(f Filter) []model.Conversation {
	return s.list.Filter(f)
}

func (s *Session) SuggestTags(ctx context.Context, text string) ([]string, error) {
	return s.tags.Suggest(ctx, text)
}

// Active returns the active conversation. Fields reconciled in the list, such
// as the generated title, are reflected.
func (s *Session) Active() (model.Conversation, bool) {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active == nil {
		return model.Conversation{}, false
	}
	if listed, ok := s.list.Get(active.ID); ok {
		return listed, true
	}
	return *active, true
}

func (s *Session) Messages() []model.Message { return s.store.Snapshot() }

// Subscribe registers fn for every change of the active transcript.
func (s *Session) Subscribe(fn func(store.Event)) (unsubscribe func()) {
	return s.store.Subscribe(fn)
}

func (s *Session) Store() *store.Store { return s.store }

func (s *Session) List() *ConversationList { return s.list }

func (s *Session) ErrorState() ErrorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errState
}

func (s *Session) ClearError() {
	s.mu.Lock()
	s.errState = ErrorState{}
	s.mu.Unlock()
}

// Wait blocks until every background reply and title task has finished.
func (s *Session) Wait() { s.wg.Wait() }

// Close cancels background work and waits for it to stop.
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Session) launch(ctrl *ReplyController) {
	ctrl.onFinish = func(out Outcome) { s.settle(ctrl, out) }
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctrl.Run(s.ctx)
	}()
}

func (s *Session) reconcileTitle(convID model.ID, seed string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.titles.Reconcile(s.ctx, convID, seed)
	}()
}

func (s *Session) settle(ctrl *ReplyController, out Outcome) {
	s.mu.Lock()
	if s.inFlight[ctrl.ConversationID()] == ctrl {
		delete(s.inFlight, ctrl.ConversationID())
	}
	s.mu.Unlock()

	switch out.State {
	case ReplySettled:
		if out.Text != "" {
			s.list.SetLastMessage(ctrl.ConversationID(), out.Text)
		}
	case ReplyFailed:
		if s.ctx.Err() != nil && errors.Is(out.Err, context.Canceled) {
			return
		}
		if ctrl.generation() != s.store.Generation() {
			s.log.Debug("Dropping failure of replaced reply", "conversation_id", ctrl.ConversationID(), "error", out.Err)
			return
		}
		_ = s.fail(out.Err)
	}
}

func (s *Session) track(ctrl *ReplyController) {
	s.mu.Lock()
	s.inFlight[ctrl.ConversationID()] = ctrl
	s.mu.Unlock()
}

func (s *Session) setActive(conv *model.Conversation) {
	cp := *conv
	s.mu.Lock()
	s.active = &cp
	s.mu.Unlock()
}

// fail records err as the user-visible error state and returns it.
func (s *Session) fail(err error) error {
	kind := ErrorTransport
	if errors.Is(err, app_errors.ErrStream) {
		kind = ErrorStream
	}
	s.mu.Lock()
	s.errState = ErrorState{Kind: kind, Message: err.Error()}
	s.mu.Unlock()
	s.log.Error("Session operation failed", "kind", kind, "error", err)
	return err
}

func nonBlank(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}
