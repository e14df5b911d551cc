package boards

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 30 * time.Minute

// Registry holds one Session per viewer.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry creates a registry that evicts sessions idle for longer than ttl.
// A non-positive ttl uses DefaultTTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetClock replaces the registry's time source. Intended for tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Session returns the viewer's session, creating an empty one if needed.
// PRE: none
// POST: the session's idle timer is reset
func (r *Registry) Session(v Viewer) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	s, ok := r.sessions[v.Key()]
	if !ok {
		s = newSession(v, now)
		r.sessions[v.Key()] = s
		return s
	}
	s.touch(now)
	return s
}

// Lookup returns the viewer's session without creating one.
func (r *Registry) Lookup(v Viewer) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[v.Key()]
	return s, ok
}

// Drop discards the viewer's session.
func (r *Registry) Drop(v Viewer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, v.Key())
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts idle sessions and returns how many were removed.
// Sessions with a status write in flight are kept.
// PRE: none
// POST: no remaining session has been idle longer than the TTL unless busy
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for key, s := range r.sessions {
		if s.idleSince().Before(cutoff) && !s.busy() {
			delete(r.sessions, key)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				slog.Debug("board_event", "event", "sessions_evicted", "count", n, "remaining", r.Len())
			}
		}
	}
}
