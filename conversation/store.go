package conversation

import (
	"context"
	"sync"
	"time"
)

// Session is one conversation. Between Store.Acquire and Session.Release
// the caller has exclusive access to its History.
type Session struct {
	ID      string
	History *History

	store    *Store
	lock     chan struct{}
	refs     int // guarded by store.mu
	lastUsed time.Time
}

// Release hands the session back to the store.
func (s *Session) Release() {
	<-s.lock
	st := s.store
	st.mu.Lock()
	s.refs--
	s.lastUsed = st.now()
	st.mu.Unlock()
}

// Store keeps one History per conversation ID. Turns of one conversation
// are serialized; different conversations proceed independently.
type Store struct {
	limit int
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore(limit int) *Store {
	return &Store{
		limit:    limit,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Acquire returns the session for id, creating it on first use, and blocks
// until no other caller holds it or ctx is done.
func (st *Store) Acquire(ctx context.Context, id string) (*Session, error) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if !ok {
		s = &Session{
			ID:       id,
			History:  NewHistory(st.limit),
			store:    st,
			lock:     make(chan struct{}, 1),
			lastUsed: st.now(),
		}
		st.sessions[id] = s
	}
	s.refs++
	st.mu.Unlock()

	select {
	case s.lock <- struct{}{}:
		return s, nil
	case <-ctx.Done():
		st.mu.Lock()
		s.refs--
		st.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Sweep drops sessions that nobody holds and that have been idle for longer
// than ttl. It returns the number of sessions removed.
func (st *Store) Sweep(ttl time.Duration) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	removed := 0
	for id, s := range st.sessions {
		if s.refs == 0 && now.Sub(s.lastUsed) > ttl {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
