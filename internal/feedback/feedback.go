// Package feedback implements the public suggestion box: an unauthenticated
// form whose submissions land in postgres for staff review.
package feedback

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one submitted suggestion.
type Entry struct {
	ID        int64
	Name      string
	Email     string
	Message   string
	CreatedAt time.Time
}

// Repository persists feedback entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create stores a submission.
func (r *Repository) Create(ctx context.Context, name, email, message string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO feedback_entries (name, email, message, created_at) VALUES ($1, $2, $3, now())`,
		name, email, message)
	return err
}
