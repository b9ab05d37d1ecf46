// Package retention prunes stale cached locations and idle chat transcripts
// on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/ashureev/smartkissan/internal/store"
)

// Config controls what the worker removes and when.
type Config struct {
	Schedule          string
	LocationFreshness time.Duration
	SessionTTL        time.Duration
}

// Result summarizes one sweep.
type Result struct {
	Locations    int64
	ChatSessions int64
}

// Worker runs retention sweeps.
type Worker struct {
	repo   store.Repository
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewWorker creates a retention worker. The schedule must be a valid cron expression.
func NewWorker(repo store.Repository, cfg Config, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 * * * *"
	}
	if !gronx.New().IsValid(cfg.Schedule) {
		return nil, fmt.Errorf("invalid retention schedule %q", cfg.Schedule)
	}
	if cfg.LocationFreshness <= 0 {
		cfg.LocationFreshness = 24 * time.Hour
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	return &Worker{repo: repo, cfg: cfg, logger: logger, now: time.Now}, nil
}

// Start runs the worker in a background goroutine until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	go w.Run(ctx)
}

// Run sleeps until each scheduled tick and sweeps, until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("Retention worker started",
		"schedule", w.cfg.Schedule,
		"location_freshness", w.cfg.LocationFreshness,
		"session_ttl", w.cfg.SessionTTL)

	for {
		next, err := gronx.NextTickAfter(w.cfg.Schedule, w.now(), false)
		if err != nil {
			w.logger.Error("Retention worker cannot compute next tick", "schedule", w.cfg.Schedule, "error", err)
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("Retention worker shutting down", "reason", ctx.Err())
			return
		case <-timer.C:
		}

		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("Retention sweep failed", "error", err)
		}
	}
}

// RunOnce performs a single sweep. Both deletions are attempted even if one fails.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	var firstErr error

	n, err := w.repo.DeleteStaleLocations(ctx, w.cfg.LocationFreshness)
	if err != nil {
		firstErr = fmt.Errorf("delete stale locations: %w", err)
	}
	res.Locations = n

	n, err = w.repo.CleanupIdleChatSessions(ctx, w.cfg.SessionTTL)
	if err != nil && firstErr == nil {
		firstErr = fmt.Errorf("cleanup idle chat sessions: %w", err)
	}
	res.ChatSessions = n

	if res.Locations > 0 || res.ChatSessions > 0 {
		w.logger.Info("Retention sweep completed",
			"locations_removed", res.Locations,
			"chat_sessions_removed", res.ChatSessions)
	}
	return res, firstErr
}
