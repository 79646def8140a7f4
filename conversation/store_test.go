package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjx20/gemini-relay/gemini"
)

func user(text string) gemini.Message  { return gemini.Message{Role: gemini.RoleUser, Text: text} }
func model(text string) gemini.Message { return gemini.Message{Role: gemini.RoleModel, Text: text} }

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(5)
	for i := 1; i <= 5; i++ {
		assert.Equal(t, 0, h.Append(user(fmt.Sprintf("m%d", i))))
	}
	assert.Equal(t, 1, h.Append(model("r5")))

	got := h.Snapshot()
	require.Len(t, got, 5)
	assert.Equal(t, "m2", got[0].Text)
	assert.Equal(t, "r5", got[4].Text)
}

func TestHistory_ZeroLimitKeepsNothing(t *testing.T) {
	h := NewHistory(0)
	assert.Equal(t, 1, h.Append(user("a")))
	assert.Equal(t, 0, h.Len())

	assert.Equal(t, 0, NewHistory(-3).Limit())
}

func TestHistory_SnapshotIsCopy(t *testing.T) {
	h := NewHistory(3)
	h.Append(user("a"))
	snap := h.Snapshot()
	snap[0].Text = "changed"
	assert.Equal(t, "a", h.Snapshot()[0].Text)
}

func TestHistory_Restore(t *testing.T) {
	h := NewHistory(3)
	h.Append(user("a"))
	h.Append(model("b"))
	before := h.Snapshot()

	h.Append(user("c"))
	h.Append(model("d"))
	h.Restore(before)

	assert.Equal(t, before, h.Snapshot())
}

func mustAcquire(t *testing.T, st *Store, id string) *Session {
	t.Helper()
	s, err := st.Acquire(context.Background(), id)
	assert.NoError(t, err)
	return s
}

func TestStore_IsolatesConversations(t *testing.T) {
	st := NewStore(5)

	a := mustAcquire(t, st, "a")
	a.History.Append(user("for a"))
	a.Release()

	b := mustAcquire(t, st, "b")
	assert.Equal(t, 0, b.History.Len())
	b.Release()

	a = mustAcquire(t, st, "a")
	assert.Equal(t, []gemini.Message{user("for a")}, a.History.Snapshot())
	a.Release()
	assert.Equal(t, 2, st.Len())
}

func TestStore_SerializesSameConversation(t *testing.T) {
	st := NewStore(1000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := mustAcquire(t, st, "shared")
			defer s.Release()
			// Each turn appends a user/model pair; a pair must never be split.
			s.History.Append(user(fmt.Sprint(i)))
			time.Sleep(time.Millisecond)
			s.History.Append(model(fmt.Sprint(i)))
		}(i)
	}
	wg.Wait()

	s := mustAcquire(t, st, "shared")
	defer s.Release()
	turns := s.History.Snapshot()
	require.Len(t, turns, 100)
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, gemini.RoleUser, turns[i].Role)
		assert.Equal(t, gemini.RoleModel, turns[i+1].Role)
		assert.Equal(t, turns[i].Text, turns[i+1].Text)
	}
}

func TestStore_AcquireHonorsContext(t *testing.T) {
	st := NewStore(5)
	now := time.Unix(1000, 0)
	st.now = func() time.Time { return now }

	holder := mustAcquire(t, st, "shared")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s, err := st.Acquire(ctx, "shared")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, s)

	canceled, cancel2 := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := st.Acquire(canceled, "shared")
		done <- err
	}()
	cancel2()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after cancel")
	}

	// The abandoned waiters hold no reference, so the session can be swept
	// once the holder is done.
	holder.Release()
	now = now.Add(time.Hour)
	assert.Equal(t, 1, st.Sweep(time.Minute))

	again := mustAcquire(t, st, "shared")
	assert.Equal(t, 0, again.History.Len())
	again.Release()
}

func TestStore_Sweep(t *testing.T) {
	st := NewStore(5)
	now := time.Unix(1000, 0)
	st.now = func() time.Time { return now }

	mustAcquire(t, st, "idle").Release()
	busy := mustAcquire(t, st, "busy")

	now = now.Add(time.Hour)
	mustAcquire(t, st, "fresh").Release()

	assert.Equal(t, 1, st.Sweep(30*time.Minute))
	assert.Equal(t, 2, st.Len())

	busy.Release()
	assert.Equal(t, 0, st.Sweep(30*time.Minute))

	now = now.Add(time.Hour)
	assert.Equal(t, 2, st.Sweep(30*time.Minute))
	assert.Equal(t, 0, st.Len())
}

func TestJanitor_Run(t *testing.T) {
	st := NewStore(5)
	now := time.Unix(1000, 0)
	st.now = func() time.Time { return now }
	mustAcquire(t, st, "old").Release()
	now = now.Add(2 * time.Minute)

	j := NewJanitor(st, time.Minute, "@every 1m")
	var removed, remaining int
	j.OnSweep = func(r, left int) { removed, remaining = r, left }
	j.run()

	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, remaining)
}

func TestJanitor_Start(t *testing.T) {
	st := NewStore(5)

	j := NewJanitor(st, time.Minute, "not a schedule")
	assert.Error(t, j.Start())

	j = NewJanitor(st, time.Minute, "")
	assert.NoError(t, j.Start())
	assert.False(t, j.Running())
	j.Stop()

	j = NewJanitor(st, time.Minute, "@every 1s")
	swept := make(chan struct{}, 1)
	j.OnSweep = func(int, int) {
		select {
		case swept <- struct{}{}:
		default:
		}
	}
	require.NoError(t, j.Start())
	assert.True(t, j.Running())
	defer j.Stop()
	select {
	case <-swept:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep never ran")
	}
}
