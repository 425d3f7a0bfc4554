package users

import (
	"context"

	"golang.org/x/crypto/bcrypt"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	FindByID(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, username, fullName, email, passwordHash string, active bool) (User, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// PermissionInvalidator drops a user's cached permission set.
type PermissionInvalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

// Service handles user business logic.
type Service struct {
	repo  RepositoryPort
	perms PermissionInvalidator
}

// NewService builds Service instance. perms may be nil.
func NewService(repo RepositoryPort, perms PermissionInvalidator) *Service {
	return &Service{repo: repo, perms: perms}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// Register creates a self-registered account. The account starts inactive
// and carries no roles until an administrator approves it.
func (s *Service) Register(ctx context.Context, username, fullName, email, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, username, fullName, email, string(hash), false)
}

// CreateUser creates an account on behalf of an administrator.
func (s *Service) CreateUser(ctx context.Context, username, fullName, email, password string, active bool) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, username, fullName, email, string(hash), active)
}

// SetActive flips the account flag and drops the cached permission set so a
// deactivation is enforced on the very next request, not at cache expiry.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	if s.perms != nil {
		s.perms.Invalidate(ctx, id)
	}
	return nil
}
