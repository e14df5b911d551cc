package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	emailAdapter "coachcrm/internal/adapters/email"
	"coachcrm/internal/adapters/events"
	"coachcrm/internal/application/boards"
	domain "coachcrm/internal/domain/lead"
)

// ErrMeetingInPast is returned when a meeting is scheduled before now.
var ErrMeetingInPast = errors.New("meeting time is in the past")

// ScheduleMeetingInput carries input for the schedule meeting orchestrator.
type ScheduleMeetingInput struct {
	LeadID     string
	When       time.Time
	Duration   time.Duration
	Message    string
	CoachName  string
	CoachEmail string
}

// ScheduleMeetingDeps holds dependencies for ScheduleMeeting.
type ScheduleMeetingDeps struct {
	LeadStore   LeadStoreForOrchestrator
	EmailSender emailAdapter.Sender
	Publisher   EventPublisher
	GenerateID  func() string
	Now         func() time.Time
}

// ScheduleMeetingResult reports the invite and the follow-up task it created.
type ScheduleMeetingResult struct {
	MessageID string
	Task      domain.Task
}

// ExecuteScheduleMeeting emails a meeting invite to a lead and adds a task for it.
// PRE: the lead is on the viewer's board; When is after Now
// POST: invite accepted by the sender and a "Meeting with ..." task added to the lead
func ExecuteScheduleMeeting(ctx context.Context, session *boards.Session, input ScheduleMeetingInput, deps ScheduleMeetingDeps) (ScheduleMeetingResult, error) {
	if !input.When.After(deps.Now()) {
		return ScheduleMeetingResult{}, ErrMeetingInPast
	}
	l, err := ExecuteGetLeadDetails(ctx, session, GetLeadDetailsInput{LeadID: input.LeadID})
	if err != nil {
		return ScheduleMeetingResult{}, err
	}

	req, err := emailAdapter.BuildMeetingInvite(emailAdapter.MeetingInvite{
		LeadID:     l.ID,
		LeadName:   l.Name,
		LeadEmail:  l.Email,
		CoachName:  input.CoachName,
		CoachEmail: input.CoachEmail,
		When:       input.When,
		Duration:   input.Duration,
		Message:    input.Message,
	})
	if err != nil {
		return ScheduleMeetingResult{}, err
	}
	sent, err := deps.EmailSender.Send(ctx, req)
	if err != nil {
		return ScheduleMeetingResult{}, fmt.Errorf("send meeting invite: %w", err)
	}

	task, err := ExecuteAddTask(ctx, session, AddTaskInput{
		LeadID:  l.ID,
		Text:    "Meeting with " + l.Name,
		DueDate: input.When.Format("2006-01-02 15:04"),
	}, AddTaskDeps{LeadStore: deps.LeadStore, GenerateID: deps.GenerateID})
	if err != nil {
		// The invite is already out; report the task failure but keep the message ID.
		return ScheduleMeetingResult{MessageID: sent.MessageID}, err
	}

	viewer := session.Viewer()
	publish(ctx, deps.Publisher, events.TopicMeetingScheduled, events.MeetingScheduled{
		OwnerID: viewer.OwnerID(),
		LeadID:  l.ID,
		When:    input.When.UTC().Format(time.RFC3339),
		TaskID:  task.ID,
	})
	slog.Info("lead_event", "event", "meeting_scheduled", "lead_id", l.ID, "owner_id", viewer.OwnerID(), "message_id", sent.MessageID, "task_id", task.ID)
	return ScheduleMeetingResult{MessageID: sent.MessageID, Task: task}, nil
}
