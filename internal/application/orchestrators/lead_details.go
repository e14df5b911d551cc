package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"coachcrm/internal/application/boards"
	domain "coachcrm/internal/domain/lead"
	"coachcrm/internal/domain/pipeline"
)

// --- Get Lead Details ---

// GetLeadDetailsInput carries input for the lead details lookup.
type GetLeadDetailsInput struct {
	LeadID string
}

// ExecuteGetLeadDetails returns the lead as the viewer's board currently has it.
// PRE: session has a board installed
// POST: read-only; returns ErrLeadNotFound for IDs not on the board
func ExecuteGetLeadDetails(_ context.Context, session *boards.Session, input GetLeadDetailsInput) (domain.Lead, error) {
	b, err := session.Board()
	if err != nil {
		return domain.Lead{}, err
	}
	l, ok := b.Lead(input.LeadID)
	if !ok {
		return domain.Lead{}, ErrLeadNotFound
	}
	return l.Clone(), nil
}

// --- Add Note ---

// AddNoteInput carries input for the add note orchestrator.
type AddNoteInput struct {
	LeadID string
	Body   string
}

// AddNoteDeps holds dependencies for AddNote.
type AddNoteDeps struct {
	LeadStore LeadStoreForOrchestrator
	Now       func() time.Time
}

// ExecuteAddNote appends a note to a lead and records the contact.
// PRE: Body is non-empty; the lead is on the viewer's board
// POST: note persisted (except in demo mode); board lead has the note last and LastContact "Today"
func ExecuteAddNote(ctx context.Context, session *boards.Session, input AddNoteInput, deps AddNoteDeps) (domain.Lead, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return domain.Lead{}, domain.ErrEmptyNote
	}
	return editLead(ctx, session, input.LeadID,
		func(owner string) error {
			return deps.LeadStore.AddNote(ctx, owner, input.LeadID, body)
		},
		func(l *domain.Lead) error {
			if err := l.AddNote(body); err != nil {
				return err
			}
			l.LastContact = domain.LastContactToday
			l.UpdatedAt = deps.Now()
			return nil
		})
}

// --- Add Task ---

// AddTaskInput carries input for the add task orchestrator.
type AddTaskInput struct {
	LeadID  string
	Text    string
	DueDate string // free-form display date, e.g. "2026-03-14"
}

// AddTaskDeps holds dependencies for AddTask.
type AddTaskDeps struct {
	LeadStore  LeadStoreForOrchestrator
	GenerateID func() string
}

// ExecuteAddTask appends an open task to a lead.
// PRE: Text is non-empty; the lead is on the viewer's board
// POST: task persisted (except in demo mode) with a generated ID and appended on the board
func ExecuteAddTask(ctx context.Context, session *boards.Session, input AddTaskInput, deps AddTaskDeps) (domain.Task, error) {
	task := domain.Task{
		ID:      deps.GenerateID(),
		Text:    strings.TrimSpace(input.Text),
		DueDate: strings.TrimSpace(input.DueDate),
	}
	if task.Text == "" {
		return domain.Task{}, domain.ErrEmptyTaskText
	}
	_, err := editLead(ctx, session, input.LeadID,
		func(owner string) error {
			return deps.LeadStore.AddTask(ctx, owner, input.LeadID, task)
		},
		func(l *domain.Lead) error {
			return l.AddTask(task)
		})
	if err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// --- Complete Task ---

// CompleteTaskInput carries input for the complete task orchestrator.
type CompleteTaskInput struct {
	LeadID    string
	TaskID    string
	Completed bool
}

// CompleteTaskDeps holds dependencies for CompleteTask.
type CompleteTaskDeps struct {
	LeadStore LeadStoreForOrchestrator
}

// ExecuteCompleteTask sets a task's completed flag.
// PRE: the task belongs to a lead on the viewer's board
// POST: flag persisted (except in demo mode) and reflected on the board
func ExecuteCompleteTask(ctx context.Context, session *boards.Session, input CompleteTaskInput, deps CompleteTaskDeps) (domain.Lead, error) {
	return editLead(ctx, session, input.LeadID,
		func(owner string) error {
			return deps.LeadStore.SetTaskCompleted(ctx, owner, input.LeadID, input.TaskID, input.Completed)
		},
		func(l *domain.Lead) error {
			return l.SetTaskCompleted(input.TaskID, input.Completed)
		})
}

// editLead runs a detail edit under the lead's lock: the edit is checked
// against the board's copy, persisted, then applied to the current board.
func editLead(ctx context.Context, session *boards.Session, leadID string, persist func(owner string) error, apply func(*domain.Lead) error) (domain.Lead, error) {
	unlock, err := session.LockLead(ctx, leadID)
	if err != nil {
		return domain.Lead{}, err
	}
	defer unlock()

	b, err := session.Board()
	if err != nil {
		return domain.Lead{}, err
	}
	current, ok := b.Lead(leadID)
	if !ok {
		return domain.Lead{}, ErrLeadNotFound
	}
	probe := current.Clone()
	if err := apply(&probe); err != nil {
		return domain.Lead{}, err
	}

	viewer := session.Viewer()
	if !viewer.DemoMode {
		if err := persist(viewer.OwnerID()); err != nil {
			return domain.Lead{}, fmt.Errorf("persist lead %s: %w", leadID, err)
		}
	}

	var updated domain.Lead
	b, err = session.Update(func(cur *pipeline.Board) *pipeline.Board {
		l, ok := cur.Lead(leadID)
		if !ok {
			return cur
		}
		l = l.Clone()
		if apply(&l) != nil {
			return cur
		}
		updated = l
		return cur.WithLead(l)
	})
	if err != nil {
		return domain.Lead{}, err
	}
	if updated.ID == "" {
		// The board was reloaded without the lead while the write was in flight.
		return probe, nil
	}
	updated, _ = b.Lead(leadID)
	slog.Info("lead_event", "event", "lead_updated", "lead_id", leadID, "owner_id", viewer.OwnerID(), "notes", len(updated.Notes), "tasks", len(updated.Tasks))
	return updated, nil
}
