package service_test

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lecture-me/client/internal/store"
)

// chunkStream returns one chunk per Read and then err, or io.EOF when err is
// nil.
type chunkStream struct {
	chunks [][]byte
	err    error
	closed bool
}

func newChunkStream(err error, chunks ...string) *chunkStream {
	s := &chunkStream{err: err}
	for _, c := range chunks {
		s.chunks = append(s.chunks, []byte(c))
	}
	return s
}

func (s *chunkStream) Read(p []byte) (int, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.EOF
	}
	n := copy(p, s.chunks[0])
	s.chunks[0] = s.chunks[0][n:]
	if len(s.chunks[0]) == 0 {
		s.chunks = s.chunks[1:]
	}
	return n, nil
}

func (s *chunkStream) Close() error {
	s.closed = true
	return nil
}

// gatedStream hands out chunks as the test sends them on feed. Closing feed
// ends the stream, with err if it was set before the close.
type gatedStream struct {
	feed chan string
	err  error
}

func newGatedStream() *gatedStream {
	return &gatedStream{feed: make(chan string)}
}

func (s *gatedStream) Read(p []byte) (int, error) {
	chunk, ok := <-s.feed
	if !ok {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.EOF
	}
	return copy(p, chunk), nil
}

func (s *gatedStream) Close() error { return nil }

// recorder collects store events.
type recorder struct {
	mu     sync.Mutex
	events []store.Event
	ch     chan store.Event
}

func record(t *testing.T, st *store.Store) *recorder {
	r := &recorder{ch: make(chan store.Event, 1024)}
	unsubscribe := st.Subscribe(func(ev store.Event) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
		r.ch <- ev
	})
	t.Cleanup(unsubscribe)
	return r
}

func (r *recorder) all() []store.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.Event(nil), r.events...)
}

// next waits for the next event of kind.
func (r *recorder) next(t *testing.T, kind store.EventKind) store.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			require.FailNow(t, "timed out waiting for store event", "kind %s", kind)
		}
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for reply to finish")
	}
}
