// Package boards owns the live pipeline board of each viewer.
//
// A Session holds one viewer's current board snapshot. Snapshots are immutable
// (see pipeline.Board), so the session only has to guard the pointer swap.
package boards

import (
	"context"
	"errors"
	"sync"
	"time"

	"coachcrm/internal/domain/pipeline"
)

// ErrNotLoaded is returned when a session has no board installed yet.
var ErrNotLoaded = errors.New("board not loaded")

// DemoOwnerID is the owner ID used for demo-mode viewers.
const DemoOwnerID = "demo"

// Viewer identifies who a board belongs to. It is passed explicitly to every
// board operation instead of being read from request-global state.
type Viewer struct {
	UserID   string
	DemoMode bool
}

// OwnerID returns the lead owner the viewer's board is built for.
func (v Viewer) OwnerID() string {
	if v.DemoMode {
		return DemoOwnerID
	}
	return v.UserID
}

// Key returns the registry key for the viewer.
func (v Viewer) Key() string {
	if v.DemoMode {
		return "demo:" + v.UserID
	}
	return "user:" + v.UserID
}

// Session is a single viewer's board.
type Session struct {
	viewer Viewer

	mu       sync.Mutex
	board    *pipeline.Board
	lastUsed time.Time

	locksMu sync.Mutex
	locks   map[string]*leadLock
}

// leadLock is a one-slot semaphore so waiters can give up on context cancel.
type leadLock struct {
	ch      chan struct{}
	waiters int
}

func newSession(v Viewer, now time.Time) *Session {
	return &Session{
		viewer:   v,
		lastUsed: now,
		locks:    make(map[string]*leadLock),
	}
}

// Viewer returns the viewer the session belongs to.
func (s *Session) Viewer() Viewer {
	return s.viewer
}

// Board returns the current snapshot.
// PRE: none
// POST: returns ErrNotLoaded until Install has been called
func (s *Session) Board() (*pipeline.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board == nil {
		return nil, ErrNotLoaded
	}
	return s.board, nil
}

// Loaded reports whether a board is installed.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board != nil
}

// Install replaces the session's board.
// PRE: b is non-nil
// POST: Board returns b
func (s *Session) Install(b *pipeline.Board) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.board = b
}

// Update applies fn to the current board and installs the result.
// fn runs under the session lock and must not block.
// PRE: fn is pure
// POST: the returned board is installed; ErrNotLoaded if no board was present
func (s *Session) Update(fn func(*pipeline.Board) *pipeline.Board) (*pipeline.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board == nil {
		return nil, ErrNotLoaded
	}
	s.board = fn(s.board)
	return s.board, nil
}

// LockLead serializes work on one lead. The returned func releases the lock.
// PRE: leadID is non-empty
// POST: caller holds the lead until unlock is called, or ctx.Err() is returned
func (s *Session) LockLead(ctx context.Context, leadID string) (func(), error) {
	s.locksMu.Lock()
	l, ok := s.locks[leadID]
	if !ok {
		l = &leadLock{ch: make(chan struct{}, 1)}
		s.locks[leadID] = l
	}
	l.waiters++
	s.locksMu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		s.releaseWaiter(leadID, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			s.releaseWaiter(leadID, l)
		})
	}, nil
}

func (s *Session) releaseWaiter(leadID string, l *leadLock) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l.waiters--
	if l.waiters == 0 {
		delete(s.locks, leadID)
	}
}

// busy reports whether any lead lock is held or awaited.
func (s *Session) busy() bool {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks) > 0
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}
