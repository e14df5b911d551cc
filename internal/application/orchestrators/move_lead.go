package orchestrators

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"coachcrm/internal/adapters/events"
	"coachcrm/internal/application/boards"
	"coachcrm/internal/domain/pipeline"
)

// MoveLeadInput carries a finished drag from the board UI.
type MoveLeadInput struct {
	Drag pipeline.DragResult
}

// MoveLeadDeps holds dependencies for MoveLead.
type MoveLeadDeps struct {
	LeadStore LeadStoreForOrchestrator
	Publisher EventPublisher
}

// MoveLeadResult is the board after the drag and what happened to its write.
type MoveLeadResult struct {
	Board *pipeline.Board
	// Write is the status update the drag required; nil for no-ops and reorders.
	Write *pipeline.StatusWrite
	// Persisted is true when Write reached the store (always true in demo mode).
	Persisted bool
}

// ExecuteMoveLead applies a drag to the viewer's board and persists the
// resulting status change.
//
// The optimistic board is installed before the store is called, so readers
// see the move while the write is pending. Work on one lead is serialized:
// a second drag of the same lead waits until the first write resolves.
// If the write fails the move is rolled back on the current board and a
// *pipeline.PersistError is returned alongside the rolled-back board.
//
// PRE: session has a board installed
// POST: no-op drags return the installed board unchanged; reorders never write
func ExecuteMoveLead(ctx context.Context, session *boards.Session, input MoveLeadInput, deps MoveLeadDeps) (MoveLeadResult, error) {
	ctx, span := startSpan(ctx, "pipeline.move_lead")
	defer span.End()

	drag := input.Drag
	span.SetAttributes(
		attribute.String("crm.lead_id", drag.DraggedID),
		attribute.String("crm.source_column", drag.Source.ColumnID),
		attribute.Int("crm.source_index", drag.Source.Index),
	)
	if drag.Destination != nil {
		span.SetAttributes(
			attribute.String("crm.destination_column", drag.Destination.ColumnID),
			attribute.Int("crm.destination_index", drag.Destination.Index),
		)
	}

	if drag.DraggedID == "" {
		b, err := session.Board()
		return MoveLeadResult{Board: b}, err
	}

	unlock, err := session.LockLead(ctx, drag.DraggedID)
	if err != nil {
		return MoveLeadResult{}, err
	}
	defer unlock()

	var outcome pipeline.Outcome
	b, err := session.Update(func(b *pipeline.Board) *pipeline.Board {
		outcome = pipeline.ApplyDrag(b, drag)
		return outcome.Board
	})
	if err != nil {
		return MoveLeadResult{}, err
	}

	w := outcome.PendingWrite
	if w == nil {
		span.SetAttributes(attribute.Bool("crm.write", false))
		return MoveLeadResult{Board: b}, nil
	}
	span.SetAttributes(attribute.Bool("crm.write", true), attribute.String("crm.status", string(w.Status)))

	viewer := session.Viewer()
	owner := viewer.OwnerID()
	if viewer.DemoMode {
		return MoveLeadResult{Board: b, Write: w, Persisted: true}, nil
	}

	if err := deps.LeadStore.UpdateStatus(ctx, owner, w.LeadID, string(w.Status)); err != nil {
		rolled, _ := session.Update(func(cur *pipeline.Board) *pipeline.Board {
			return pipeline.Rollback(cur, *w)
		})
		fromStage := titleOf(rolled, w.From.ColumnID)

		span.RecordError(err)
		span.SetStatus(codes.Error, "persist status")
		publish(ctx, deps.Publisher, events.TopicLeadMoveFailed, events.MoveFailed{
			OwnerID:    owner,
			LeadID:     w.LeadID,
			Status:     string(w.Status),
			RevertedTo: fromStage,
			Error:      err.Error(),
		})
		slog.Warn("lead_event", "event", "lead_move_failed", "lead_id", w.LeadID, "owner_id", owner, "status", w.Status, "reverted_to", fromStage, "error", err)
		return MoveLeadResult{Board: rolled, Write: w}, &pipeline.PersistError{LeadID: w.LeadID, Status: w.Status, Err: err}
	}

	toStage := pipeline.StageOf(w.Status)
	publish(ctx, deps.Publisher, events.TopicLeadStageChanged, events.StageChanged{
		OwnerID:    owner,
		LeadID:     w.LeadID,
		FromStage:  titleOf(b, w.From.ColumnID),
		ToStage:    toStage,
		Status:     string(w.Status),
		ToColumnID: w.To.ColumnID,
		ToIndex:    w.To.Index,
	})
	slog.Info("lead_event", "event", "lead_moved", "lead_id", w.LeadID, "owner_id", owner, "from", w.From.ColumnID, "to", w.To.ColumnID, "status", w.Status)
	return MoveLeadResult{Board: b, Write: w, Persisted: true}, nil
}

func titleOf(b *pipeline.Board, columnID string) string {
	if b == nil {
		return ""
	}
	col, _ := b.Column(columnID)
	return col.Title
}
