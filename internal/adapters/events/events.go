// Package events publishes lead pipeline signals to an event bus.
package events

import (
	"context"

	domain "coachcrm/internal/domain/lead"
)

// Event topics.
const (
	TopicLeadCreated      = "crm.lead.created"
	TopicLeadStageChanged = "crm.lead.stage_changed"
	TopicLeadMoveFailed   = "crm.lead.move_failed"
	TopicMeetingScheduled = "crm.lead.meeting_scheduled"
)

// LeadCreated is emitted after a lead is persisted and placed on the board.
type LeadCreated struct {
	OwnerID string      `json:"owner_id"`
	Lead    domain.Lead `json:"lead"`
}

// StageChanged is emitted when a cross-column move has been persisted.
type StageChanged struct {
	OwnerID    string `json:"owner_id"`
	LeadID     string `json:"lead_id"`
	FromStage  string `json:"from_stage"`
	ToStage    string `json:"to_stage"`
	Status     string `json:"status"`
	ToColumnID string `json:"to_column_id"`
	ToIndex    int    `json:"to_index"`
}

// MoveFailed is emitted when a status write failed and the board was rolled back.
type MoveFailed struct {
	OwnerID    string `json:"owner_id"`
	LeadID     string `json:"lead_id"`
	Status     string `json:"status"`
	RevertedTo string `json:"reverted_to"`
	Error      string `json:"error"`
}

// MeetingScheduled is emitted after a meeting invite was sent to a lead.
type MeetingScheduled struct {
	OwnerID string `json:"owner_id"`
	LeadID  string `json:"lead_id"`
	When    string `json:"when"`
	TaskID  string `json:"task_id"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
