package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/outdial-ai/outdial/internal/api"
	"github.com/outdial-ai/outdial/internal/bus"
	"github.com/outdial-ai/outdial/internal/config"
	"github.com/outdial-ai/outdial/internal/instructions"
	"github.com/outdial-ai/outdial/internal/recording"
	"github.com/outdial-ai/outdial/internal/session"
	"github.com/outdial-ai/outdial/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("outdial starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// NATS
	busClient, err := bus.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer busClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Recording locator (optional — calls still run without S3)
	var locator api.RecordingLocator
	if cfg.S3Bucket != "" {
		loc, err := recording.NewLocator(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3RecordingPrefix, slog.Default())
		if err != nil {
			slog.Error("failed to build recording locator", "error", err)
			os.Exit(1)
		}
		locator = loc
		slog.Info("recording locator ready", "bucket", cfg.S3Bucket)
	} else {
		locator = unavailableLocator{}
		slog.Warn("S3 not configured — recording lookups disabled")
	}

	// Conversation briefs
	briefs, err := instructions.NewCatalog()
	if err != nil {
		slog.Error("failed to load instruction catalog", "error", err)
		os.Exit(1)
	}

	// Coordinator — routes telephony events into per-attempt machines
	coord := session.NewCoordinator(db, busClient, slog.Default())

	for subject, handler := range map[string]func(string, []byte){
		bus.SubjectSessionStarted:    coord.HandleSessionStarted,
		bus.SubjectSessionTranscript: coord.HandleTranscriptTurn,
		bus.SubjectSessionEnded:      coord.HandleSessionEnded,
	} {
		if err := busClient.Subscribe(subject, handler); err != nil {
			slog.Error("failed to subscribe", "subject", subject, "error", err)
			os.Exit(1)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, api.Deps{
		Dispatcher:             coord,
		Store:                  db,
		Locator:                locator,
		Publisher:              busClient,
		Briefs:                 briefs,
		DefaultRecordingTTLSec: cfg.RecordingURLTTLSec,
		Logger:                 slog.Default(),
	})
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("outdial ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("outdial stopped")
}

// unavailableLocator serves deployments without S3 credentials.
type unavailableLocator struct{}

func (unavailableLocator) Locate(context.Context, string, time.Duration) (recording.Location, error) {
	return recording.Location{}, recording.ErrRecordingNotFound
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
