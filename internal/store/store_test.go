package store_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app_errors "lecture-me/client/internal/errors"
	"lecture-me/client/internal/model"
	"lecture-me/client/internal/store"
)

func msg(id, text string, bot bool) model.Message {
	return model.Message{ID: model.ID(id), IsBot: bot, Content: []model.ContentPart{model.Text(text)}}
}

func text(s string) store.Updater {
	return func(model.Message) store.Update {
		return store.Update{Content: []model.ContentPart{model.Text(s)}}
	}
}

func ids(msgs []model.Message) []model.ID {
	out := make([]model.ID, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestStore_AppendAndUpdate(t *testing.T) {
	t.Run("Append keeps insertion order", func(t *testing.T) {
		s := store.New()
		s.Append(msg("a", "1", false))
		s.Append(msg("b", "2", true))
		s.Append(msg("c", "3", false))

		assert.Equal(t, []model.ID{"a", "b", "c"}, ids(s.Snapshot()))
		assert.Equal(t, 3, s.Len())
	})

	t.Run("UpdateByID replaces content in place", func(t *testing.T) {
		s := store.New()
		s.Append(msg("a", "question", false))
		s.Append(model.Message{ID: "b", IsBot: true, IsLoading: true, Content: []model.ContentPart{model.Text("Thinking...")}})
		s.Append(msg("c", "later", false))

		ok := s.UpdateByID("b", text("answer"))

		require.True(t, ok)
		got, _ := s.Get("b")
		assert.Equal(t, []model.ContentPart{model.Text("answer")}, got.Content)
		assert.False(t, got.IsLoading)
		assert.True(t, got.IsBot)
		assert.Equal(t, []model.ID{"a", "b", "c"}, ids(s.Snapshot()))
	})

	t.Run("UpdateByID on missing id is a no-op", func(t *testing.T) {
		s := store.New()
		s.Append(msg("a", "1", false))
		var events int
		s.Subscribe(func(store.Event) { events++ })

		assert.False(t, s.UpdateByID("zzz", text("x")))
		assert.Zero(t, events)
		assert.Equal(t, []model.ID{"a"}, ids(s.Snapshot()))
	})

	t.Run("Snapshot is a copy", func(t *testing.T) {
		s := store.New()
		s.Append(msg("a", "1", false))

		snap := s.Snapshot()
		snap[0].ID = "changed"

		_, ok := s.Get("a")
		assert.True(t, ok)
	})
}

func TestStore_Generations(t *testing.T) {
	t.Run("ReplaceAll bumps the generation", func(t *testing.T) {
		s := store.New()
		before := s.Generation()

		gen := s.ReplaceAll([]model.Message{msg("x", "1", false)})

		assert.Equal(t, before+1, gen)
		assert.Equal(t, gen, s.Generation())
		assert.Equal(t, []model.ID{"x"}, ids(s.Snapshot()))
	})

	t.Run("Stale writes are rejected", func(t *testing.T) {
		s := store.New()
		old := s.Generation()
		require.NoError(t, s.AppendAt(old, msg("a", "1", false), msg("b", "2", true)))
		s.ReplaceAll([]model.Message{msg("x", "other", false)})

		assert.ErrorIs(t, s.AppendAt(old, msg("c", "3", false)), app_errors.ErrStaleTarget)
		assert.ErrorIs(t, s.UpdateByIDAt(old, "x", text("late")), app_errors.ErrStaleTarget)
		assert.ErrorIs(t, s.RemoveAt(old, "x"), app_errors.ErrStaleTarget)

		assert.Equal(t, []model.Message{msg("x", "other", false)}, s.Snapshot())
	})

	t.Run("Checked update of unknown id", func(t *testing.T) {
		s := store.New()
		err := s.UpdateByIDAt(s.Generation(), "nope", text("x"))
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})

	t.Run("RemoveAt keeps the order of the rest", func(t *testing.T) {
		s := store.New()
		gen := s.Generation()
		require.NoError(t, s.AppendAt(gen, msg("a", "1", false), msg("b", "2", true), msg("c", "3", false)))

		require.NoError(t, s.RemoveAt(gen, "b", "unknown"))

		assert.Equal(t, []model.ID{"a", "c"}, ids(s.Snapshot()))
		require.NoError(t, s.UpdateByIDAt(gen, "c", text("still indexed")))
		got, _ := s.Get("c")
		assert.Equal(t, "still indexed", model.PlainText(got.Content))
	})

	t.Run("ReplaceAll copies its input", func(t *testing.T) {
		s := store.New()
		in := []model.Message{msg("a", "1", false)}
		s.ReplaceAll(in)
		in[0].ID = "mutated"

		assert.Equal(t, []model.ID{"a"}, ids(s.Snapshot()))
	})
}

func TestStore_Subscribe(t *testing.T) {
	s := store.New()
	var events []store.Event
	unsubscribe := s.Subscribe(func(ev store.Event) { events = append(events, ev) })

	gen := s.Generation()
	require.NoError(t, s.AppendAt(gen, msg("a", "q", false), msg("b", "Thinking...", true)))
	require.NoError(t, s.UpdateByIDAt(gen, "b", text("answer")))
	require.NoError(t, s.RemoveAt(gen, "a"))
	newGen := s.ReplaceAll(nil)
	unsubscribe()
	s.Append(msg("z", "unseen", false))

	require.Len(t, events, 5)
	kinds := []store.EventKind{events[0].Kind, events[1].Kind, events[2].Kind, events[3].Kind, events[4].Kind}
	assert.Equal(t, []store.EventKind{store.EventAppended, store.EventAppended, store.EventUpdated, store.EventRemoved, store.EventReplaced}, kinds)

	assert.Equal(t, []model.ID{"a"}, ids(events[0].Messages))
	assert.Equal(t, []model.ID{"a", "b"}, ids(events[1].Messages))
	assert.Equal(t, model.ID("b"), events[2].MessageID)
	assert.Equal(t, "answer", model.PlainText(events[2].Messages[1].Content))
	assert.Equal(t, []model.ID{"b"}, ids(events[3].Messages))
	assert.Equal(t, newGen, events[4].Generation)
	assert.Empty(t, events[4].Messages)
	assert.Equal(t, "replaced", events[4].Kind.String())
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := store.New()
	gen := s.Generation()
	require.NoError(t, s.AppendAt(gen, msg("bot", "", true)))

	var (
		mu   sync.Mutex
		seen []int
	)
	s.Subscribe(func(ev store.Event) {
		mu.Lock()
		seen = append(seen, len(ev.Messages))
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.UpdateByIDAt(gen, "bot", text("x"))
		}()
		go func(i int) {
			defer wg.Done()
			_ = s.AppendAt(gen, msg(fmt.Sprintf("m%d", i), "m", false))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 51, s.Len())
	snap := s.Snapshot()
	assert.Equal(t, model.ID("bot"), snap[0].ID)
	assert.Len(t, seen, 100)
}
