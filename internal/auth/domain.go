package auth

import "time"

// User represents an authenticable account joined with its stored
// credential. The credential is a bcrypt hash; plaintext secrets never
// appear in this struct.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
