package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"coachcrm/internal/adapters/events"
	"coachcrm/internal/application/boards"
	domain "coachcrm/internal/domain/lead"
	"coachcrm/internal/domain/pipeline"
)

// AddLeadInput carries input for the add lead orchestrator.
type AddLeadInput struct {
	Name   string
	Email  string
	Phone  string
	Value  string // free text, normalised to "$1,234"
	Source string
	Note   string // optional first note
	Stage  string // target stage title; unknown titles land in the first column
}

// AddLeadDeps holds dependencies for AddLead.
type AddLeadDeps struct {
	LeadStore  LeadStoreForOrchestrator
	Publisher  EventPublisher
	GenerateID func() string // IDs for demo leads, which are never persisted
	Now        func() time.Time
}

// ExecuteAddLead validates and persists a new lead, then places it at the head
// of its stage column on the viewer's board.
// PRE: session has a board installed
// POST: lead persisted (except in demo mode) and heading its column; the board is unchanged on error
func ExecuteAddLead(ctx context.Context, session *boards.Session, input AddLeadInput, deps AddLeadDeps) (domain.Lead, *pipeline.Board, error) {
	ctx, span := startSpan(ctx, "pipeline.add_lead")
	defer span.End()

	if !session.Loaded() {
		return domain.Lead{}, nil, boards.ErrNotLoaded
	}

	viewer := session.Viewer()
	stage := pipeline.StageOf(pipeline.StatusOf(input.Stage))
	rec := domain.NewRecord{
		OwnerID: viewer.OwnerID(),
		Name:    strings.TrimSpace(input.Name),
		Email:   strings.TrimSpace(input.Email),
		Phone:   strings.TrimSpace(input.Phone),
		Value:   strings.TrimSpace(input.Value),
		Source:  strings.TrimSpace(input.Source),
		Note:    strings.TrimSpace(input.Note),
		Status:  string(pipeline.StatusOf(stage)),
	}
	if err := rec.Validate(); err != nil {
		return domain.Lead{}, nil, err
	}
	rec.Value = domain.FormatValue(rec.Value)

	var id string
	if viewer.DemoMode {
		id = deps.GenerateID()
	} else {
		var err error
		id, err = deps.LeadStore.Insert(ctx, rec)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "insert lead")
			return domain.Lead{}, nil, fmt.Errorf("insert lead: %w", err)
		}
	}

	now := deps.Now()
	l := domain.Lead{
		ID:          id,
		OwnerID:     rec.OwnerID,
		Name:        rec.Name,
		Email:       rec.Email,
		Phone:       rec.Phone,
		Value:       rec.Value,
		LastContact: domain.LastContactToday,
		Stage:       stage,
		Source:      rec.Source,
		Notes:       []string{},
		Tasks:       []domain.Task{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rec.Note != "" {
		l.Notes = []string{rec.Note}
	}

	b, err := session.Update(func(b *pipeline.Board) *pipeline.Board { return b.AddLead(l) })
	if err != nil {
		return domain.Lead{}, nil, err
	}
	l, _ = b.Lead(id)

	span.SetAttributes(
		attribute.String("crm.lead_id", id),
		attribute.String("crm.stage", l.Stage),
		attribute.String("crm.column_id", pipeline.ColumnForStage(l.Stage)),
	)
	publish(ctx, deps.Publisher, events.TopicLeadCreated, events.LeadCreated{OwnerID: rec.OwnerID, Lead: l})
	slog.Info("lead_event", "event", "lead_created", "lead_id", id, "owner_id", rec.OwnerID, "stage", l.Stage, "demo", viewer.DemoMode)
	return l, b, nil
}
