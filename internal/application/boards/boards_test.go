package boards

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coachcrm/internal/domain/lead"
	"coachcrm/internal/domain/pipeline"
)

// TestViewer_Keys verifies demo and signed-in viewers never share a session.
func TestViewer_Keys(t *testing.T) {
	user := Viewer{UserID: "u1"}
	demo := Viewer{UserID: "u1", DemoMode: true}

	if user.Key() == demo.Key() {
		t.Errorf("user and demo keys collide: %q", user.Key())
	}
	if user.OwnerID() != "u1" {
		t.Errorf("OwnerID = %q, want u1", user.OwnerID())
	}
	if demo.OwnerID() != DemoOwnerID {
		t.Errorf("demo OwnerID = %q, want %q", demo.OwnerID(), DemoOwnerID)
	}
}

// TestSession_NotLoaded verifies the loading state.
func TestSession_NotLoaded(t *testing.T) {
	s := NewRegistry(0).Session(Viewer{UserID: "u1"})

	if _, err := s.Board(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Board() error = %v, want ErrNotLoaded", err)
	}
	if _, err := s.Update(func(b *pipeline.Board) *pipeline.Board { return b }); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Update() error = %v, want ErrNotLoaded", err)
	}
	if s.Loaded() {
		t.Error("expected session not loaded")
	}
}

// TestSession_InstallAndUpdate verifies snapshot replacement.
func TestSession_InstallAndUpdate(t *testing.T) {
	s := NewRegistry(0).Session(Viewer{UserID: "u1"})
	first := pipeline.NewBoard()
	s.Install(first)

	got, err := s.Board()
	if err != nil || got != first {
		t.Fatalf("Board() = %p, %v; want %p", got, err, first)
	}

	next, err := s.Update(func(b *pipeline.Board) *pipeline.Board {
		return b.AddLead(lead.Lead{ID: "L1", Stage: pipeline.StageContacted})
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if next == first {
		t.Error("expected a new snapshot")
	}
	if first.Len() != 0 {
		t.Error("previous snapshot was mutated")
	}
	current, _ := s.Board()
	if current != next {
		t.Error("Update did not install the new board")
	}
}

// TestSession_LockLeadSerializes verifies a second holder waits for the first.
func TestSession_LockLeadSerializes(t *testing.T) {
	s := NewRegistry(0).Session(Viewer{UserID: "u1"})
	ctx := context.Background()

	unlock, err := s.LockLead(ctx, "L1")
	if err != nil {
		t.Fatalf("LockLead: %v", err)
	}

	// A different lead is independent.
	other, err := s.LockLead(ctx, "L2")
	if err != nil {
		t.Fatalf("LockLead(L2): %v", err)
	}
	other()

	acquired := make(chan struct{})
	go func() {
		u, err := s.LockLead(ctx, "L1")
		if err == nil {
			close(acquired)
			u()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired the lock while it was held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	unlock() // idempotent

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the lock")
	}
}

// TestSession_LockLeadContextCancel verifies waiters give up on cancellation.
func TestSession_LockLeadContextCancel(t *testing.T) {
	s := NewRegistry(0).Session(Viewer{UserID: "u1"})
	unlock, _ := s.LockLead(context.Background(), "L1")
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := s.LockLead(ctx, "L1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("LockLead error = %v, want DeadlineExceeded", err)
	}
}

// TestSession_LocksReleased verifies lock bookkeeping is cleaned up.
func TestSession_LocksReleased(t *testing.T) {
	s := NewRegistry(0).Session(Viewer{UserID: "u1"})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := s.LockLead(context.Background(), "L1")
			if err == nil {
				u()
			}
		}()
	}
	wg.Wait()
	if s.busy() {
		t.Error("expected no lead locks after all holders released")
	}
}

// TestRegistry_SessionReuse verifies one session per viewer.
func TestRegistry_SessionReuse(t *testing.T) {
	r := NewRegistry(time.Minute)
	a := r.Session(Viewer{UserID: "u1"})
	b := r.Session(Viewer{UserID: "u1"})
	c := r.Session(Viewer{UserID: "u2"})

	if a != b {
		t.Error("expected same session for same viewer")
	}
	if a == c {
		t.Error("expected distinct sessions for different viewers")
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
	if _, ok := r.Lookup(Viewer{UserID: "u3"}); ok {
		t.Error("Lookup must not create sessions")
	}
	r.Drop(Viewer{UserID: "u2"})
	if r.Len() != 1 {
		t.Errorf("Len after Drop = %d, want 1", r.Len())
	}
}

// TestRegistry_Sweep verifies idle eviction and that busy sessions are kept.
func TestRegistry_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r := NewRegistry(10 * time.Minute)
	r.SetClock(func() time.Time { return now })

	r.Session(Viewer{UserID: "idle"})
	busy := r.Session(Viewer{UserID: "busy"})
	unlock, _ := busy.LockLead(context.Background(), "L1")

	now = now.Add(5 * time.Minute)
	r.Session(Viewer{UserID: "fresh"})

	now = now.Add(6 * time.Minute)
	if n := r.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if _, ok := r.Lookup(Viewer{UserID: "idle"}); ok {
		t.Error("idle session should be evicted")
	}
	if _, ok := r.Lookup(Viewer{UserID: "busy"}); !ok {
		t.Error("busy session should be kept")
	}

	unlock()
	if n := r.Sweep(); n != 1 {
		t.Errorf("Sweep after unlock removed %d, want 1", n)
	}
}
