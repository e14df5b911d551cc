package lead

import (
	"context"
	"errors"

	domain "coachcrm/internal/domain/lead"
)

// ErrNotFound is returned when a lead or task does not exist for the owner.
var ErrNotFound = errors.New("lead not found")

// Store persists leads with their notes and tasks.
// Every lookup and write is scoped to the owning user.
type Store interface {
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Record, error)
	GetByID(ctx context.Context, ownerID, id string) (domain.Record, error)
	Insert(ctx context.Context, r domain.NewRecord) (string, error)
	UpdateStatus(ctx context.Context, ownerID, id, status string) error
	AddNote(ctx context.Context, ownerID, leadID, body string) error
	AddTask(ctx context.Context, ownerID, leadID string, t domain.Task) error
	SetTaskCompleted(ctx context.Context, ownerID, leadID, taskID string, completed bool) error
}
