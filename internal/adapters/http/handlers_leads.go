package web

import (
	"net/http"
	"time"

	"coachcrm/internal/application/orchestrators"
	"coachcrm/internal/application/projections"
)

// addLeadRequest is the body of POST /api/leads.
type addLeadRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Value  string `json:"value"`
	Source string `json:"source"`
	Note   string `json:"note"`
	Stage  string `json:"stage"`
}

func (req addLeadRequest) input() orchestrators.AddLeadInput {
	return orchestrators.AddLeadInput{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Value:  req.Value,
		Source: req.Source,
		Note:   req.Note,
		Stage:  req.Stage,
	}
}

// handleAddLead handles POST /api/leads.
// PRE: the board is loaded; name, email and value are present
// POST: 201 with the lead and the new board; the lead heads its column
func handleAddLead(w http.ResponseWriter, r *http.Request) {
	var req addLeadRequest
	if err := strictDecode(r, &req); err != nil {
		badRequest(w, "invalid lead: "+err.Error())
		return
	}
	l, b, err := orchestrators.ExecuteAddLead(r.Context(), sessionFor(r), req.input(), addLeadDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"lead":  l,
		"board": projections.QueryBoardView(b),
	})
}

// handleGetLead handles GET /api/leads/{id}.
func handleGetLead(w http.ResponseWriter, r *http.Request) {
	l, err := orchestrators.ExecuteGetLeadDetails(r.Context(), sessionFor(r),
		orchestrators.GetLeadDetailsInput{LeadID: r.PathValue("id")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleAddNote handles POST /api/leads/{id}/notes with {"body": "..."}.
func handleAddNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Body string `json:"body"`
	}
	if err := strictDecode(r, &req); err != nil {
		badRequest(w, "invalid note: "+err.Error())
		return
	}
	l, err := orchestrators.ExecuteAddNote(r.Context(), sessionFor(r),
		orchestrators.AddNoteInput{LeadID: r.PathValue("id"), Body: req.Body},
		orchestrators.AddNoteDeps{LeadStore: deps.LeadStore, Now: timeNow},
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// handleAddTask handles POST /api/leads/{id}/tasks with {"text", "dueDate"}.
func handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text    string `json:"text"`
		DueDate string `json:"dueDate"`
	}
	if err := strictDecode(r, &req); err != nil {
		badRequest(w, "invalid task: "+err.Error())
		return
	}
	task, err := orchestrators.ExecuteAddTask(r.Context(), sessionFor(r),
		orchestrators.AddTaskInput{LeadID: r.PathValue("id"), Text: req.Text, DueDate: req.DueDate},
		orchestrators.AddTaskDeps{LeadStore: deps.LeadStore, GenerateID: deps.TaskID},
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleCompleteTask handles POST /api/leads/{id}/tasks/{taskID}/complete.
// An optional {"completed": false} body reopens the task.
func handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Completed *bool `json:"completed"`
	}{}
	if r.ContentLength != 0 {
		if err := strictDecode(r, &req); err != nil {
			badRequest(w, "invalid body: "+err.Error())
			return
		}
	}
	completed := req.Completed == nil || *req.Completed

	l, err := orchestrators.ExecuteCompleteTask(r.Context(), sessionFor(r),
		orchestrators.CompleteTaskInput{LeadID: r.PathValue("id"), TaskID: r.PathValue("taskID"), Completed: completed},
		orchestrators.CompleteTaskDeps{LeadStore: deps.LeadStore},
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// meetingRequest is the body of POST /api/leads/{id}/meeting.
type meetingRequest struct {
	When            time.Time `json:"when"`
	DurationMinutes int       `json:"durationMinutes"`
	Message         string    `json:"message"`
	CoachName       string    `json:"coachName"`
	CoachEmail      string    `json:"coachEmail"`
}

// handleScheduleMeeting handles POST /api/leads/{id}/meeting.
// POST: 201 with the message ID and the follow-up task
func handleScheduleMeeting(w http.ResponseWriter, r *http.Request) {
	var req meetingRequest
	if err := strictDecode(r, &req); err != nil {
		badRequest(w, "invalid meeting: "+err.Error())
		return
	}
	result, err := orchestrators.ExecuteScheduleMeeting(r.Context(), sessionFor(r),
		orchestrators.ScheduleMeetingInput{
			LeadID:     r.PathValue("id"),
			When:       req.When,
			Duration:   time.Duration(req.DurationMinutes) * time.Minute,
			Message:    req.Message,
			CoachName:  req.CoachName,
			CoachEmail: req.CoachEmail,
		},
		orchestrators.ScheduleMeetingDeps{
			LeadStore:   deps.LeadStore,
			EmailSender: deps.EmailSender,
			Publisher:   deps.Publisher,
			GenerateID:  deps.TaskID,
			Now:         timeNow,
		},
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"messageId": result.MessageID,
		"task":      result.Task,
	})
}
