package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Auth event actions recorded by the engine.
const (
	AuditLoginSuccess = "auth.login"
	AuditLoginFailed  = "auth.login_failed"
	AuditLogout       = "auth.logout"
	AuditDenied       = "auth.denied"
)

// AuthEvent represents a record stored in auth_events.
type AuthEvent struct {
	ActorID  int64
	Action   string
	Username string
	Path     string
	IP       string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger writes records into auth_events.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the event. Failed-login events never store which failure
// case occurred; the meta payload is caller-controlled and should stay
// generic.
func (l *AuditLogger) Record(ctx context.Context, event AuthEvent) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if event.Action == "" {
		return errors.New("auth event requires action")
	}
	metaJSON, err := json.Marshal(event.Meta)
	if err != nil {
		return err
	}
	var at any
	if !event.At.IsZero() {
		at = event.At
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO auth_events (actor_id, action, username, path, ip, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		event.ActorID, event.Action, event.Username, event.Path, event.IP, metaJSON, at)
	return err
}

// DeleteEventsBefore prunes auth_events older than the cutoff and reports
// how many rows went away.
func (l *AuditLogger) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if l == nil {
		return 0, errors.New("audit logger not initialised")
	}
	tag, err := l.pool.Exec(ctx, `DELETE FROM auth_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
