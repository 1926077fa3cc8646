package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"lecture-me/client/internal/config"
	app_errors "lecture-me/client/internal/errors"
	"lecture-me/client/internal/interfaces"
	"lecture-me/client/internal/model"
	"lecture-me/client/internal/store"
	"lecture-me/client/internal/stream"
)

// ReplyState is the lifecycle position of one ask/stream cycle.
type ReplyState int

const (
	ReplyIdle ReplyState = iota
	ReplyAwaitingAck
	ReplyStreaming
	ReplySettled
	ReplyFailed
)

func (s ReplyState) String() string {
	switch s {
	case ReplyIdle:
		return "idle"
	case ReplyAwaitingAck:
		return "awaiting_ack"
	case ReplyStreaming:
		return "streaming"
	case ReplySettled:
		return "settled"
	case ReplyFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of a finished cycle. Err is nil for a settled reply
// and wraps ErrTransport or ErrStream otherwise.
type Outcome struct {
	State     ReplyState
	Text      string
	Fragments int
	Err       error
}

// ReplyOptions tunes a ReplyController.
type ReplyOptions struct {
	Placeholder         string
	MaxUpdatesPerSecond float64
	PersistReply        bool
	Logger              *slog.Logger
}

// ReplyOptionsFromConfig builds ReplyOptions from cfg.
func ReplyOptionsFromConfig(cfg *config.Config) ReplyOptions {
	return ReplyOptions{
		Placeholder:         cfg.PlaceholderText,
		MaxUpdatesPerSecond: cfg.MaxUpdatesPerSecond,
		PersistReply:        cfg.PersistReply,
	}
}

// LocalID returns a fresh id for a message that the backend has not stored yet.
func LocalID() model.ID {
	return model.ID("local-" + uuid.NewString())
}

// ReplyController drives a single question through the backend and mirrors the
// streamed answer into a store. Begin must be called before Run. Every store
// write is pinned to the generation captured by Begin, so a controller whose
// transcript has been replaced stops touching the store but still finishes.
type ReplyController struct {
	backend  interfaces.Backend
	store    *store.Store
	opts     ReplyOptions
	log      *slog.Logger
	convID   model.ID
	question []model.ContentPart
	ask      string
	tags     []string

	mu      sync.Mutex
	state   ReplyState
	gen     store.Generation
	userID  model.ID
	botID   model.ID
	stale   bool
	outcome Outcome
	done    chan struct{}
	runOnce sync.Once

	// onFinish runs after the outcome is recorded and before done is closed.
	onFinish func(Outcome)
}

// NewReplyController prepares a cycle for question on convID. ask is the text
// sent to the reply endpoint; when empty the first text part of question is
// used.
func NewReplyController(backend interfaces.Backend, st *store.Store, convID model.ID, question []model.ContentPart, ask string, tags []string, opts ReplyOptions) *ReplyController {
	if opts.Placeholder == "" {
		opts.Placeholder = config.DefaultPlaceholder
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if ask == "" {
		ask = model.PlainText(question)
	}
	return &ReplyController{
		backend:  backend,
		store:    st,
		opts:     opts,
		log:      logger.With("chat_id", convID),
		convID:   convID,
		question: question,
		ask:      ask,
		tags:     tags,
		done:     make(chan struct{}),
	}
}

// Begin appends the user message and the loading bot placeholder to the
// transcript of generation gen. It performs no I/O.
func (c *ReplyController) Begin(gen store.Generation) error {
	c.mu.Lock()
	if c.state != ReplyIdle {
		c.mu.Unlock()
		return fmt.Errorf("reply controller already started (state %s)", c.state)
	}
	c.mu.Unlock()

	user := model.Message{
		ID:             LocalID(),
		ConversationID: c.convID,
		IsBot:          false,
		Content:        c.question,
	}
	bot := model.Message{
		ID:             LocalID(),
		ConversationID: c.convID,
		IsBot:          true,
		Content:        []model.ContentPart{model.Text(c.opts.Placeholder)},
		IsLoading:      true,
	}
	// The ids are set before the append so subscribers can resolve them.
	c.mu.Lock()
	c.gen = gen
	c.userID = user.ID
	c.botID = bot.ID
	c.mu.Unlock()
	if err := c.store.AppendAt(gen, user, bot); err != nil {
		return err
	}

	c.setState(ReplyAwaitingAck)
	c.log.Debug("Reply cycle started", "bot_message_id", bot.ID)
	return nil
}

// Run persists the question, consumes the reply stream and settles the bot
// message. It blocks until the stream ends and returns the outcome, which is
// also available from Outcome once Done is closed. Later calls wait for the
// first one and return its outcome.
func (c *ReplyController) Run(ctx context.Context) Outcome {
	c.runOnce.Do(func() {
		out := c.run(ctx)
		if c.onFinish != nil {
			c.onFinish(out)
		}
		close(c.done)
	})
	<-c.done
	return c.Outcome()
}

func (c *ReplyController) run(ctx context.Context) Outcome {
	if st := c.State(); st != ReplyAwaitingAck {
		return c.finish(Outcome{State: ReplyFailed, Err: fmt.Errorf("reply controller not ready (state %s)", st)})
	}

	if _, err := c.backend.PostMessage(ctx, c.convID, c.question, false); err != nil {
		c.log.Error("Failed to persist question", "error", err)
		c.discard(c.userID, c.botID)
		return c.finish(Outcome{State: ReplyFailed, Err: asTransport(err)})
	}

	body, err := c.backend.StreamReply(ctx, c.convID, c.ask, c.tags)
	if err != nil {
		c.log.Error("Failed to start reply stream", "error", err)
		c.discard(c.botID)
		return c.finish(Outcome{State: ReplyFailed, Err: asTransport(err)})
	}
	defer func() {
		if cErr := body.Close(); cErr != nil {
			c.log.Warn("Failed to close reply stream", "error", cErr)
		}
	}()

	return c.finish(c.consume(ctx, stream.NewDecoder(body)))
}

func (c *ReplyController) consume(ctx context.Context, dec *stream.Decoder) Outcome {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if c.opts.MaxUpdatesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.opts.MaxUpdatesPerSecond), 1)
	}

	unpublished := false
	for {
		_, err := dec.Next()
		if err == nil {
			if dec.Fragments() == 1 {
				c.setState(ReplyStreaming)
				c.log.Debug("First fragment received")
				c.publish(dec.Accumulated())
				unpublished = false
				continue
			}
			if limiter.Allow() {
				c.publish(dec.Accumulated())
				unpublished = false
			} else {
				unpublished = true
			}
			continue
		}

		if unpublished || dec.Fragments() == 0 {
			c.publish(dec.Accumulated())
		}

		if errors.Is(err, io.EOF) {
			text := dec.Accumulated()
			c.log.Debug("Reply stream finished", "fragments", dec.Fragments(), "bytes", len(text))
			c.persistReply(ctx, text)
			return Outcome{State: ReplySettled, Text: text, Fragments: dec.Fragments()}
		}

		c.log.Error("Reply stream failed", "fragments", dec.Fragments(), "error", err)
		return Outcome{State: ReplyFailed, Text: dec.Accumulated(), Fragments: dec.Fragments(), Err: err}
	}
}

// publish overwrites the bot message with text. A replaced transcript turns
// every later publish into a no-op.
func (c *ReplyController) publish(text string) {
	c.mu.Lock()
	stale := c.stale
	c.mu.Unlock()
	if stale {
		return
	}

	err := c.store.UpdateByIDAt(c.gen, c.botID, func(model.Message) store.Update {
		return store.Update{Content: []model.ContentPart{model.Text(text)}, IsLoading: false}
	})
	if err == nil {
		return
	}
	if errors.Is(err, app_errors.ErrStaleTarget) || errors.Is(err, app_errors.ErrNotFound) {
		c.mu.Lock()
		c.stale = true
		c.mu.Unlock()
		c.log.Debug("Discarding reply updates for replaced transcript", "error", err)
		return
	}
	c.log.Warn("Failed to update bot message", "error", err)
}

func (c *ReplyController) persistReply(ctx context.Context, text string) {
	if !c.opts.PersistReply {
		return
	}
	if _, err := c.backend.PostMessage(ctx, c.convID, []model.ContentPart{model.Text(text)}, true); err != nil {
		c.log.Error("Failed to persist bot reply", "error", err)
	}
}

func (c *ReplyController) discard(ids ...model.ID) {
	if err := c.store.RemoveAt(c.gen, ids...); err != nil {
		c.log.Debug("Optimistic messages already gone", "error", err)
	}
}

func (c *ReplyController) finish(out Outcome) Outcome {
	c.mu.Lock()
	c.state = out.State
	c.outcome = out
	c.mu.Unlock()
	c.log.Debug("Reply cycle finished", "state", out.State)
	return out
}

func (c *ReplyController) setState(s ReplyState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the current lifecycle state.
func (c *ReplyController) State() ReplyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when Run returns.
func (c *ReplyController) Done() <-chan struct{} { return c.done }

// Outcome returns the result of Run. It is the zero Outcome until Done is closed.
func (c *ReplyController) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

func (c *ReplyController) ConversationID() model.ID { return c.convID }

func (c *ReplyController) generation() store.Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *ReplyController) UserMessageID() model.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *ReplyController) BotMessageID() model.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.botID
}

func asTransport(err error) error {
	if errors.Is(err, app_errors.ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", app_errors.ErrTransport, err)
}
