package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/miftah-app/miftah/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionSweep removes session audit rows whose expiry has passed.
	TaskSessionSweep = "session:sweep"
	// TaskAuditPrune removes auth events older than the retention window.
	TaskAuditPrune = "audit:prune"
)

// SessionSweepPayload carries nothing today but keeps the wire format
// extensible.
type SessionSweepPayload struct{}

// AuditPrunePayload sets the retention window for auth events.
type AuditPrunePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewSessionSweepTask constructs an Asynq task.
func NewSessionSweepTask() (*asynq.Task, error) {
	data, err := json.Marshal(SessionSweepPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionSweep, data), nil
}

// NewAuditPruneTask constructs an Asynq task.
func NewAuditPruneTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPrunePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data), nil
}

// SessionSweeper deletes expired session records.
type SessionSweeper interface {
	SweepExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// AuditPruner deletes old auth events.
type AuditPruner interface {
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// HandleSessionSweep builds the handler for TaskSessionSweep.
func HandleSessionSweep(sweeper SessionSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("session_sweep")
		removed, err := sweeper.SweepExpiredSessions(ctx, time.Now())
		if err != nil {
			logger.Error("session sweep failed", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("session sweep done", slog.Int64("removed", removed))
		return tracker.End(nil)
	}
}

// HandleAuditPrune builds the handler for TaskAuditPrune.
func HandleAuditPrune(pruner AuditPruner, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("audit_prune")
		var payload AuditPrunePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		if payload.RetentionDays <= 0 {
			payload.RetentionDays = 90
		}
		cutoff := time.Now().AddDate(0, 0, -payload.RetentionDays)
		removed, err := pruner.DeleteEventsBefore(ctx, cutoff)
		if err != nil {
			logger.Error("audit prune failed", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("audit prune done", slog.Int64("removed", removed))
		return tracker.End(nil)
	}
}
