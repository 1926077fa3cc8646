// Package store holds the ordered message list of the active conversation.
//
// Every mutation is applied and announced atomically with respect to other
// mutations. The store carries a generation that ReplaceAll bumps; writers that
// captured an older generation get app_errors.ErrStaleTarget instead of
// touching the new transcript.
package store

import (
	"fmt"
	"sync"

	app_errors "lecture-me/client/internal/errors"
	"lecture-me/client/internal/model"
)

// Generation identifies one transcript held by the store.
type Generation uint64

// EventKind describes what a mutation did.
type EventKind int

const (
	EventAppended EventKind = iota
	EventUpdated
	EventRemoved
	EventReplaced
)

func (k EventKind) String() string {
	switch k {
	case EventAppended:
		return "appended"
	case EventUpdated:
		return "updated"
	case EventRemoved:
		return "removed"
	case EventReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after each mutation. Messages is a
// snapshot taken together with the mutation.
type Event struct {
	Kind       EventKind
	Generation Generation
	MessageID  model.ID
	Messages   []model.Message
}

// Update is the new state an Updater produces for a message.
type Update struct {
	Content   []model.ContentPart
	IsLoading bool
}

// Updater maps the current message to its replacement content and loading flag.
type Updater func(current model.Message) Update

// Store is safe for concurrent use. Subscribers are called synchronously in
// mutation order and must not mutate the store.
type Store struct {
	// writeMu serializes mutations together with their notifications.
	writeMu sync.Mutex
	mu      sync.RWMutex

	generation  Generation
	messages    []model.Message
	index       map[model.ID]int
	subscribers map[int]func(Event)
	nextSub     int
}

func New() *Store {
	return &Store{
		index:       make(map[model.ID]int),
		subscribers: make(map[int]func(Event)),
	}
}

// Subscribe registers fn for every later mutation and returns a function that
// removes it.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Generation returns the current transcript generation.
func (s *Store) Generation() Generation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Snapshot returns a copy of the messages in display order.
func (s *Store) Snapshot() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Get returns the message with the given id.
func (s *Store) Get(id model.ID) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.Message{}, false
	}
	return s.messages[i], true
}

// Append adds msg to the end of the current transcript.
func (s *Store) Append(msg model.Message) {
	_ = s.appendMsgs(nil, []model.Message{msg})
}

// AppendAt appends msgs in order if gen is still current.
func (s *Store) AppendAt(gen Generation, msgs ...model.Message) error {
	return s.appendMsgs(&gen, msgs)
}

// appendMsgs applies to the current generation when want is nil.
func (s *Store) appendMsgs(want *Generation, msgs []model.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if want != nil && *want != s.generation {
		s.mu.Unlock()
		return fmt.Errorf("%w: append for generation %d, current %d", app_errors.ErrStaleTarget, *want, s.generation)
	}
	gen := s.generation
	events := make([]Event, 0, len(msgs))
	for _, msg := range msgs {
		s.index[msg.ID] = len(s.messages)
		s.messages = append(s.messages, msg)
		events = append(events, Event{Kind: EventAppended, Generation: gen, MessageID: msg.ID, Messages: s.snapshotLocked()})
	}
	s.mu.Unlock()

	for _, ev := range events {
		s.notify(ev)
	}
	return nil
}

// UpdateByID replaces the content and loading flag of the message with the
// given id in the current transcript. A missing id is a no-op and returns false.
func (s *Store) UpdateByID(id model.ID, fn Updater) bool {
	return s.update(nil, id, fn) == nil
}

// UpdateByIDAt is UpdateByID guarded by gen. It returns ErrStaleTarget when gen
// is not current and ErrNotFound when no message has the id.
func (s *Store) UpdateByIDAt(gen Generation, id model.ID, fn Updater) error {
	return s.update(&gen, id, fn)
}

func (s *Store) update(want *Generation, id model.ID, fn Updater) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if want != nil && *want != s.generation {
		s.mu.Unlock()
		return fmt.Errorf("%w: update of %s for generation %d, current %d", app_errors.ErrStaleTarget, id, *want, s.generation)
	}
	gen := s.generation
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: message %s", app_errors.ErrNotFound, id)
	}
	upd := fn(s.messages[i])
	msg := s.messages[i]
	msg.Content = upd.Content
	msg.IsLoading = upd.IsLoading
	s.messages[i] = msg
	ev := Event{Kind: EventUpdated, Generation: gen, MessageID: id, Messages: s.snapshotLocked()}
	s.mu.Unlock()

	s.notify(ev)
	return nil
}

// RemoveAt drops the messages with the given ids if gen is still current. The
// relative order of the remaining messages is kept. Unknown ids are ignored.
func (s *Store) RemoveAt(gen Generation, ids ...model.ID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return fmt.Errorf("%w: remove for generation %d, current %d", app_errors.ErrStaleTarget, gen, s.generation)
	}
	drop := make(map[model.ID]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.index[id]; ok {
			drop[id] = true
		}
	}
	if len(drop) == 0 {
		s.mu.Unlock()
		return nil
	}
	kept := make([]model.Message, 0, len(s.messages)-len(drop))
	for _, msg := range s.messages {
		if !drop[msg.ID] {
			kept = append(kept, msg)
		}
	}
	s.setLocked(kept)
	var events []Event
	for _, id := range ids {
		if drop[id] {
			events = append(events, Event{Kind: EventRemoved, Generation: gen, MessageID: id, Messages: s.snapshotLocked()})
		}
	}
	s.mu.Unlock()

	for _, ev := range events {
		s.notify(ev)
	}
	return nil
}

// ReplaceAll swaps the whole transcript and starts a new generation.
func (s *Store) ReplaceAll(msgs []model.Message) Generation {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.generation++
	s.setLocked(append([]model.Message(nil), msgs...))
	gen := s.generation
	ev := Event{Kind: EventReplaced, Generation: gen, Messages: s.snapshotLocked()}
	s.mu.Unlock()

	s.notify(ev)
	return gen
}

func (s *Store) setLocked(msgs []model.Message) {
	s.messages = msgs
	s.index = make(map[model.ID]int, len(msgs))
	for i, msg := range msgs {
		s.index[msg.ID] = i
	}
}

func (s *Store) snapshotLocked() []model.Message {
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Store) notify(ev Event) {
	s.mu.RLock()
	subs := make([]func(Event), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
