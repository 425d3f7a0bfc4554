package rbac

import "time"

// Role represents a named bundle of permissions.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability code.
type Permission struct {
	ID          int64
	Code        string
	Description string
}

// Assignment ties a permission to a role.
type Assignment struct {
	RoleID       int64
	PermissionID int64
	CreatedAt    time.Time
}

// UserRole links a user to a role. A user may hold several roles and a role
// may be shared by many users.
type UserRole struct {
	UserID    int64
	RoleID    int64
	CreatedAt time.Time
}
