package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	emailPkg "coachcrm/internal/adapters/email"
	"coachcrm/internal/adapters/events"
	web "coachcrm/internal/adapters/http"
	"coachcrm/internal/adapters/http/middleware"
	"coachcrm/internal/adapters/http/perf"
	"coachcrm/internal/adapters/storage"
	leadStore "coachcrm/internal/adapters/storage/lead"
	"coachcrm/internal/application/boards"
	"coachcrm/internal/config"
	"coachcrm/internal/idgen"
	"coachcrm/internal/tracing"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load(os.Getenv("CRM_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("server_exit", "error", err.Error())
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Production() {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Trace {
		shutdownTracing := tracing.Setup(logger)
		defer shutdownTracing(context.Background())
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.MigrateDB(db); err != nil {
		return err
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.Perf.SlowQuery)

	var leads leadStore.Store = leadStore.NewSQLiteStore(timedDB)
	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis_unavailable", "addr", cfg.Cache.RedisAddr, "error", err.Error())
		}
		leads = leadStore.NewCache(leads, rdb, cfg.Cache.TTL)
		slog.Info("lead_cache_enabled", "addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL)
	}

	var publisher events.Publisher = &events.NoopPublisher{}
	if cfg.Events.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.Events.NATSURL)
		if err != nil {
			return err
		}
		publisher = natsPub
		slog.Info("events_enabled", "url", cfg.Events.NATSURL)
	}
	defer publisher.Close()

	var sender emailPkg.Sender
	if cfg.Mail.ResendKey != "" {
		sender = emailPkg.NewResendSender(cfg.Mail.ResendKey, cfg.Mail.From)
		slog.Info("email_sender", "provider", "resend")
	} else {
		sender = emailPkg.NewNoopSender()
		if cfg.Production() {
			slog.Warn("email_disabled", "hint", "CRM_RESEND_KEY is not set; meeting invites are only logged")
		}
	}

	var verifier *middleware.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = middleware.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	} else {
		slog.Warn("auth_disabled", "hint", "CRM_JWT_SECRET is not set; only demo viewers are accepted")
	}

	sessions := boards.NewRegistry(cfg.Session.TTL)
	go sessions.Run(ctx, cfg.Session.SweepInterval)

	handler, limiter := web.NewMux(web.Options{
		CSRFKey:     []byte(cfg.Auth.CSRFKey),
		Secure:      cfg.Production(),
		AllowDemo:   cfg.Demo,
		SlowRequest: cfg.Perf.SlowRequest,
	}, &web.Deps{
		LeadStore:   leads,
		Sessions:    sessions,
		Publisher:   publisher,
		EmailSender: sender,
		Verifier:    verifier,
		Collector:   collector,
		LeadID:      idgen.Func(idgen.DemoLeadPrefix),
		TaskID:      idgen.Func(idgen.TaskPrefix),
		Ping:        db.PingContext,
	})
	go limiter.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_start", "version", version, "addr", cfg.Addr, "env", cfg.Env, "schema", storage.LatestSchemaVersion(), "demo", cfg.Demo)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("server_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
