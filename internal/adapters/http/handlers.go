package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"coachcrm/internal/adapters/email"
	"coachcrm/internal/adapters/http/middleware"
	"coachcrm/internal/application/boards"
	"coachcrm/internal/application/orchestrators"
	"coachcrm/internal/domain/lead"
	"coachcrm/internal/domain/pipeline"
)

// errorBody is the JSON shape of every API error.
type errorBody struct {
	Error string `json:"error"`
}

// internalError logs err and returns a generic 500.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response_encode_failed", "error", err.Error())
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

var validationErrors = []error{
	lead.ErrEmptyName,
	lead.ErrEmptyEmail,
	lead.ErrInvalidEmail,
	lead.ErrEmptyValue,
	lead.ErrEmptyNote,
	lead.ErrEmptyTaskText,
	orchestrators.ErrMeetingInPast,
	email.ErrNoRecipients,
}

// statusFor maps an orchestrator error to its HTTP status.
func statusFor(err error) int {
	var fetchErr *pipeline.FetchError
	var persistErr *pipeline.PersistError
	switch {
	case errors.As(err, &fetchErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &persistErr):
		return http.StatusBadGateway
	case errors.Is(err, boards.ErrNotLoaded):
		return http.StatusConflict
	case errors.Is(err, orchestrators.ErrLeadNotFound), errors.Is(err, lead.ErrTaskNotFound):
		return http.StatusNotFound
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// writeError writes err with the status statusFor picks. Internal errors are
// logged and hidden.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		internalError(w, err)
		return
	}
	if status >= 500 {
		slog.Warn("request_failed", "status", status, "error", err.Error())
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// sessionFor returns the board session of the request's viewer.
// PRE: the route is wrapped in RequireViewer
func sessionFor(r *http.Request) *boards.Session {
	viewer, _ := middleware.ViewerFromContext(r.Context())
	return deps.Sessions.Session(viewer)
}

func loadDeps() orchestrators.LoadBoardDeps {
	return orchestrators.LoadBoardDeps{LeadStore: deps.LeadStore}
}

func addLeadDeps() orchestrators.AddLeadDeps {
	return orchestrators.AddLeadDeps{
		LeadStore:  deps.LeadStore,
		Publisher:  deps.Publisher,
		GenerateID: deps.LeadID,
		Now:        timeNow,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if deps.Ping != nil {
		if err := deps.Ping(r.Context()); err != nil {
			slog.Error("health_check_failed", "error", err.Error())
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/board", http.StatusSeeOther)
}
