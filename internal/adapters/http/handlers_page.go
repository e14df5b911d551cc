package web

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"coachcrm/internal/adapters/http/middleware"
	"coachcrm/internal/application/orchestrators"
	"coachcrm/internal/application/projections"
	"coachcrm/internal/domain/lead"
	"coachcrm/internal/domain/pipeline"
)

// mdRenderer renders lead notes. Raw HTML in the input is escaped because
// WithUnsafe is not set.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// boardPage is the data for board.html.
type boardPage struct {
	View    projections.BoardView
	Summary projections.PipelineSummary
	Leads   map[string]lead.Lead
	Stages  []string
	Demo    bool
	Error   string
	Form    addLeadRequest
}

func renderTemplate(w http.ResponseWriter, r *http.Request, name string, status int, data any) {
	funcMap := template.FuncMap{
		"csrfField":      func() template.HTML { return csrf.TemplateField(r) },
		"renderMarkdown": renderMarkdown,
		"openTasks": func(l lead.Lead) int {
			n := 0
			for _, t := range l.Tasks {
				if !t.Completed {
					n++
				}
			}
			return n
		},
	}
	tpl, err := template.New("layout.html").Funcs(funcMap).ParseFS(assets, "templates/layout.html", "templates/"+name)
	if err != nil {
		internalError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// handleBoardPage handles GET /board.
func handleBoardPage(w http.ResponseWriter, r *http.Request) {
	renderBoard(w, r, http.StatusOK, "", addLeadRequest{})
}

func renderBoard(w http.ResponseWriter, r *http.Request, status int, formErr string, form addLeadRequest) {
	b, err := orchestrators.EnsureBoard(r.Context(), sessionFor(r), false, loadDeps())
	if err != nil {
		if code := statusFor(err); code != http.StatusInternalServerError {
			slog.Warn("board_page_unavailable", "error", err.Error())
			http.Error(w, "The board could not be loaded. Refresh to try again.", code)
			return
		}
		internalError(w, err)
		return
	}
	viewer, _ := middleware.ViewerFromContext(r.Context())
	renderTemplate(w, r, "board.html", status, boardPage{
		View:    projections.QueryBoardView(b),
		Summary: projections.QueryPipelineSummary(b),
		Leads:   b.Leads,
		Stages:  pipeline.Stages(),
		Demo:    viewer.DemoMode,
		Error:   formErr,
		Form:    form,
	})
}

// handleBoardAddLead handles the add-lead form on the board page.
// PRE: CSRF token present
// POST: 303 back to /board on success; the page re-renders with the error otherwise
func handleBoardAddLead(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	form := addLeadRequest{
		Name:   r.FormValue("name"),
		Email:  r.FormValue("email"),
		Phone:  r.FormValue("phone"),
		Value:  r.FormValue("value"),
		Source: r.FormValue("source"),
		Note:   r.FormValue("note"),
		Stage:  r.FormValue("stage"),
	}

	session := sessionFor(r)
	if _, err := orchestrators.EnsureBoard(r.Context(), session, false, loadDeps()); err != nil {
		writeError(w, err)
		return
	}
	_, _, err := orchestrators.ExecuteAddLead(r.Context(), session, form.input(), addLeadDeps())
	if err != nil {
		if statusFor(err) == http.StatusBadRequest {
			renderBoard(w, r, http.StatusUnprocessableEntity, capitalize(err.Error()), form)
			return
		}
		writeError(w, err)
		return
	}
	http.Redirect(w, r, "/board", http.StatusSeeOther)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
