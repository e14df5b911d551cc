// Package web is the HTTP surface of the lead pipeline: the JSON API used by
// the board client, a server-rendered board page and the health endpoint.
package web

import (
	"context"
	"crypto/rand"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"coachcrm/internal/adapters/email"
	"coachcrm/internal/adapters/http/middleware"
	"coachcrm/internal/adapters/http/perf"
	"coachcrm/internal/application/boards"
	"coachcrm/internal/application/orchestrators"
)

//go:embed templates/*.html static/*
var assets embed.FS

// Deps holds the collaborators the handlers use.
type Deps struct {
	LeadStore   orchestrators.LeadStoreForOrchestrator
	Sessions    *boards.Registry
	Publisher   orchestrators.EventPublisher
	EmailSender email.Sender
	Verifier    *middleware.Verifier
	Collector   *perf.Collector
	LeadID      func() string // IDs for demo leads
	TaskID      func() string
	Ping        func(ctx context.Context) error
}

// Options tunes the middleware stack.
type Options struct {
	CSRFKey        []byte // 32 bytes; a random key is generated when empty
	Secure         bool   // HTTPS-only cookies
	AllowDemo      bool
	SlowRequest    time.Duration
	TrustedOrigins []string
}

// Global dependencies (set by NewMux)
var deps *Deps

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 10

// timeNow is a variable for testability.
var timeNow = time.Now

// NewMux wires HTTP handlers for the app. The returned limiter's Run should
// be started by the caller to evict idle visitors.
func NewMux(opts Options, d *Deps) (http.Handler, *middleware.RateLimiter) {
	deps = d

	mux := http.NewServeMux()
	registerRoutes(mux)

	static, _ := fs.Sub(assets, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	// Applied inside out: Timing -> Recover -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey(opts.CSRFKey), opts.Secure, opts.TrustedOrigins...),
		middleware.Auth(d.Verifier, opts.AllowDemo),
		middleware.RateLimit(limiter),
		middleware.Recover,
		middleware.Timing(d.Collector, opts.SlowRequest),
	), limiter
}

func registerRoutes(mux *http.ServeMux) {
	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.RequireViewer(h))
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /{$}", handleIndex)

	api("GET /api/board", handleGetBoard)
	api("POST /api/board/refresh", handleRefreshBoard)
	api("POST /api/board/moves", handleMoveLead)
	api("POST /api/leads", handleAddLead)
	api("GET /api/leads/{id}", handleGetLead)
	api("POST /api/leads/{id}/notes", handleAddNote)
	api("POST /api/leads/{id}/tasks", handleAddTask)
	api("POST /api/leads/{id}/tasks/{taskID}/complete", handleCompleteTask)
	api("POST /api/leads/{id}/meeting", handleScheduleMeeting)
	api("GET /api/pipeline/summary", handlePipelineSummary)
	api("GET /api/perf", handlePerf)

	api("GET /board", handleBoardPage)
	api("POST /board/leads", handleBoardAddLead)
}

// csrfKey returns key, or a random one when key is empty. Form tokens signed
// with a random key do not survive a restart.
func csrfKey(key []byte) []byte {
	if len(key) > 0 {
		return key
	}
	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("failed to generate CSRF key: " + err.Error())
	}
	slog.Warn("csrf_key_random", "hint", "set CRM_CSRF_KEY so form tokens survive restarts")
	return key
}
