package orchestrators

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"coachcrm/internal/application/boards"
	"coachcrm/internal/domain/pipeline"
)

// LoadBoardInput carries input for the load board orchestrator.
type LoadBoardInput struct {
	Viewer boards.Viewer
}

// LoadBoardDeps holds dependencies for LoadBoard.
type LoadBoardDeps struct {
	LeadStore LeadStoreForOrchestrator
}

// ExecuteLoadBoard fetches the viewer's leads and buckets them into a board.
// Demo viewers get the sample board and the store is not read.
// PRE: input.Viewer has a UserID or DemoMode set
// POST: Returns a board with all five columns, or a *pipeline.FetchError and no board
func ExecuteLoadBoard(ctx context.Context, input LoadBoardInput, deps LoadBoardDeps) (*pipeline.Board, error) {
	ctx, span := startSpan(ctx, "pipeline.load_board")
	defer span.End()

	owner := input.Viewer.OwnerID()
	span.SetAttributes(attribute.String("crm.owner_id", owner), attribute.Bool("crm.demo", input.Viewer.DemoMode))

	if input.Viewer.DemoMode {
		return DemoBoard(), nil
	}

	records, err := deps.LeadStore.ListByOwner(ctx, owner)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch leads")
		slog.Error("board_event", "event", "load_failed", "owner_id", owner, "error", err)
		return nil, &pipeline.FetchError{OwnerID: owner, Err: err}
	}

	b := pipeline.Build(records)
	span.SetAttributes(attribute.Int("crm.leads", b.Len()))
	slog.Debug("board_event", "event", "board_loaded", "owner_id", owner, "leads", b.Len())
	return b, nil
}

// EnsureBoard returns the session's board, loading and installing it first when
// the session has none or refresh is set. A failed load leaves the session as it was.
// PRE: session is non-nil
// POST: on success the returned board is installed in session
func EnsureBoard(ctx context.Context, session *boards.Session, refresh bool, deps LoadBoardDeps) (*pipeline.Board, error) {
	if !refresh {
		if b, err := session.Board(); err == nil {
			return b, nil
		}
	}
	b, err := ExecuteLoadBoard(ctx, LoadBoardInput{Viewer: session.Viewer()}, deps)
	if err != nil {
		return nil, err
	}
	session.Install(b)
	return b, nil
}
