package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	domain "coachcrm/internal/domain/lead"
)

// tracerName scopes the spans the pipeline orchestrators emit.
const tracerName = "coachcrm/orchestrators"

// ErrLeadNotFound is returned when a lead is not on the viewer's board.
var ErrLeadNotFound = errors.New("lead not found on board")

// LeadStoreForOrchestrator defines the store interface needed by pipeline orchestrators.
// Every call is scoped to the owning user.
type LeadStoreForOrchestrator interface {
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Record, error)
	Insert(ctx context.Context, r domain.NewRecord) (string, error)
	UpdateStatus(ctx context.Context, ownerID, id, status string) error
	AddNote(ctx context.Context, ownerID, leadID, body string) error
	AddTask(ctx context.Context, ownerID, leadID string, t domain.Task) error
	SetTaskCompleted(ctx context.Context, ownerID, leadID, taskID string, completed bool) error
}

// EventPublisher emits pipeline signals. A nil publisher drops them.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}

// publish emits an event without failing the operation that produced it.
func publish(ctx context.Context, pub EventPublisher, topic string, event any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, topic, event); err != nil {
		slog.Warn("lead_event", "event", "publish_failed", "topic", topic, "error", err)
	}
}
