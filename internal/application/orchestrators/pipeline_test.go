package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"coachcrm/internal/application/boards"
	domain "coachcrm/internal/domain/lead"
	"coachcrm/internal/domain/pipeline"
)

// mockLeadStore implements LeadStoreForOrchestrator for testing.
type mockLeadStore struct {
	mu      sync.Mutex
	records map[string][]domain.Record // by owner

	listErr   error
	insertErr error
	updateErr error
	noteErr   error

	// entered, when set, receives one value per UpdateStatus call before release is awaited.
	entered chan struct{}
	release chan struct{}

	inserts []domain.NewRecord
	updates []statusUpdate
	notes   []string
	tasks   []domain.Task
	toggles []string
}

type statusUpdate struct {
	owner, id, status string
}

func newMockLeadStore(owner string, records ...domain.Record) *mockLeadStore {
	return &mockLeadStore{records: map[string][]domain.Record{owner: records}}
}

func (m *mockLeadStore) ListByOwner(_ context.Context, ownerID string) ([]domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]domain.Record(nil), m.records[ownerID]...), nil
}

func (m *mockLeadStore) Insert(_ context.Context, r domain.NewRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return "", m.insertErr
	}
	m.inserts = append(m.inserts, r)
	return fmt.Sprintf("stored-%d", len(m.inserts)), nil
}

func (m *mockLeadStore) UpdateStatus(ctx context.Context, ownerID, id, status string) error {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, statusUpdate{ownerID, id, status})
	return m.updateErr
}

func (m *mockLeadStore) AddNote(_ context.Context, _, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.noteErr != nil {
		return m.noteErr
	}
	m.notes = append(m.notes, body)
	return nil
}

func (m *mockLeadStore) AddTask(_ context.Context, _, _ string, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, t)
	return nil
}

func (m *mockLeadStore) SetTaskCompleted(_ context.Context, _, _, taskID string, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toggles = append(m.toggles, taskID)
	return nil
}

func (m *mockLeadStore) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return p.err
}

var boardTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func boardNow() time.Time { return boardTime }

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func rec(id, status string) domain.Record {
	return domain.Record{
		Lead:   domain.Lead{ID: id, OwnerID: "coach-1", Name: "Lead " + id, Email: id + "@example.com", Value: "$1,000", Notes: []string{}, Tasks: []domain.Task{}},
		Status: status,
	}
}

var coach = boards.Viewer{UserID: "coach-1"}

// loadedSession returns a session for coach with a board built from records.
func loadedSession(t *testing.T, store *mockLeadStore) *boards.Session {
	t.Helper()
	s := boards.NewRegistry(time.Minute).Session(coach)
	if _, err := EnsureBoard(context.Background(), s, false, LoadBoardDeps{LeadStore: store}); err != nil {
		t.Fatalf("EnsureBoard: %v", err)
	}
	return s
}

func columnIDs(t *testing.T, b *pipeline.Board, colID string) []string {
	t.Helper()
	col, ok := b.Column(colID)
	if !ok {
		t.Fatalf("missing column %s", colID)
	}
	return col.LeadIDs
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown tracer provider: %v", err)
		}
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func findSpan(t *testing.T, exporter *tracetest.InMemoryExporter, name string) tracetest.SpanStub {
	t.Helper()
	for _, s := range exporter.GetSpans() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("span %q not recorded", name)
	return tracetest.SpanStub{}
}

// TestPublish_ToleratesFailures verifies event errors never fail the caller.
func TestPublish_ToleratesFailures(t *testing.T) {
	publish(context.Background(), nil, "x", nil)
	pub := &recordingPublisher{err: errors.New("bus down")}
	publish(context.Background(), pub, "crm.test", "payload")
	if len(pub.topics) != 1 {
		t.Errorf("expected 1 publish attempt, got %d", len(pub.topics))
	}
}

func newSessionFor(v boards.Viewer) *boards.Session {
	return boards.NewRegistry(time.Minute).Session(v)
}

func demoSession(t *testing.T) *boards.Session {
	t.Helper()
	s := newSessionFor(boards.Viewer{UserID: "visitor", DemoMode: true})
	if _, err := EnsureBoard(context.Background(), s, false, LoadBoardDeps{}); err != nil {
		t.Fatalf("EnsureBoard demo: %v", err)
	}
	return s
}
