package settings

import (
	"sync"
	"time"
)

// Store holds one Session per caller identity. It is safe for concurrent use;
// work on one caller is serialized while different callers run in parallel.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a Store. Sessions idle for longer than ttl are removed by
// Sweep; a ttl of zero keeps sessions forever.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetClock overrides the store's time source.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// With runs fn with exclusive access to the caller's session, creating the
// session on first use. Everything fn does (parsing, mutation, resolution,
// sending) completes before another message from the same caller is
// handled. fn must not retain the session after it returns.
func (s *Store) With(key string, fn func(*Session) error) error {
	for {
		sess := s.lookup(key)
		if done, err := s.run(sess, fn); done {
			return err
		}
	}
}

// run holds sess locked for the duration of fn, releasing it even if fn
// panics. It reports false when sess was swept before the lock was taken.
func (s *Store) run(sess *Session, fn func(*Session) error) (bool, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.evicted {
		// Swept between lookup and lock; the map now has no entry for key.
		return false, nil
	}
	defer func() { sess.lastUsed = s.now() }()
	return true, fn(sess)
}

func (s *Store) lookup(key string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		sess = newSession(key, s.now())
		s.sessions[key] = sess
	}
	return sess
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle since before now-ttl and returns how many were
// removed. Sessions busy in With are skipped.
func (s *Store) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		if now.Sub(sess.lastUsed) > s.ttl {
			sess.evicted = true
			delete(s.sessions, key)
			removed++
		}
		sess.mu.Unlock()
	}
	return removed
}
