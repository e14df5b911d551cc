package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"coachcrm/internal/application/orchestrators"
	"coachcrm/internal/application/projections"
	"coachcrm/internal/domain/pipeline"
)

// moveResponse is the body of POST /api/board/moves.
type moveResponse struct {
	Board     projections.BoardView `json:"board"`
	Persisted bool                  `json:"persisted"`
	Stage     string                `json:"stage,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// handleGetBoard handles GET /api/board.
// The first request of a session loads the board from the store.
// POST: 200 with the board view; 503 when the load failed (the next request retries)
func handleGetBoard(w http.ResponseWriter, r *http.Request) {
	b, err := orchestrators.EnsureBoard(r.Context(), sessionFor(r), false, loadDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projections.QueryBoardView(b))
}

// handleRefreshBoard handles POST /api/board/refresh.
// POST: the session board is replaced by a fresh load; on failure it is kept
func handleRefreshBoard(w http.ResponseWriter, r *http.Request) {
	b, err := orchestrators.EnsureBoard(r.Context(), sessionFor(r), true, loadDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projections.QueryBoardView(b))
}

// handleMoveLead handles POST /api/board/moves with a finished drag.
// PRE: body is {source, destination|null, draggedId}; the board is loaded
// POST: 200 with the new board; 502 with the rolled-back board when the
// status write failed
func handleMoveLead(w http.ResponseWriter, r *http.Request) {
	var drag pipeline.DragResult
	if err := strictDecode(r, &drag); err != nil {
		badRequest(w, "invalid drag: "+err.Error())
		return
	}

	result, err := orchestrators.ExecuteMoveLead(r.Context(), sessionFor(r),
		orchestrators.MoveLeadInput{Drag: drag},
		orchestrators.MoveLeadDeps{LeadStore: deps.LeadStore, Publisher: deps.Publisher},
	)

	var persistErr *pipeline.PersistError
	switch {
	case errors.As(err, &persistErr):
		writeJSON(w, http.StatusBadGateway, moveResponse{
			Board: projections.QueryBoardView(result.Board),
			Error: persistErr.Error(),
		})
		return
	case err != nil:
		writeError(w, err)
		return
	}

	resp := moveResponse{Board: projections.QueryBoardView(result.Board), Persisted: result.Persisted}
	if result.Write != nil {
		resp.Stage = pipeline.StageOf(result.Write.Status)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePipelineSummary handles GET /api/pipeline/summary.
func handlePipelineSummary(w http.ResponseWriter, r *http.Request) {
	b, err := orchestrators.EnsureBoard(r.Context(), sessionFor(r), false, loadDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projections.QueryPipelineSummary(b))
}

// handlePerf handles GET /api/perf?minutes=60&top=10.
func handlePerf(w http.ResponseWriter, r *http.Request) {
	if deps.Collector == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "performance collection disabled"})
		return
	}
	minutes := queryInt(r, "minutes", 60)
	top := queryInt(r, "top", 10)
	since := timeNow().Add(-time.Duration(minutes) * time.Minute)
	writeJSON(w, http.StatusOK, deps.Collector.Snapshot(since, top))
}

func queryInt(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
