package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tasklight/tasklight/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSessionSweep purges expired session rows. Sessions are already
	// rejected at resolve time once expired; the sweep keeps the table
	// bounded.
	TaskTypeSessionSweep = "sessions:sweep"
)

// SessionPurger deletes session rows whose expiry has passed.
type SessionPurger interface {
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// NewSessionSweepTask constructs the sweep task. It carries no payload.
func NewSessionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSessionSweep, nil)
}

// NewSessionSweepHandler returns the handler processing TaskTypeSessionSweep.
func NewSessionSweepHandler(logger *slog.Logger, purger SessionPurger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeSessionSweep)
		n, err := purger.DeleteExpiredSessions(ctx, time.Now().UTC())
		if err != nil {
			return tracker.End(err)
		}
		if n > 0 && logger != nil {
			logger.Info("purged expired sessions", slog.Int64("count", n))
		}
		return tracker.End(nil)
	}
}
