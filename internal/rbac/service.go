package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// Service orchestrates role and permission administration and resolves the
// role-permission graph. Mutations invalidate the permission cache before
// returning so a revoked grant can never produce a stale allow.
type Service struct {
	pool  *pgxpool.Pool
	cache *Cache
}

// NewService constructs a Service backed by the provided pool. cache may be
// nil when caching is disabled.
func NewService(pool *pgxpool.Pool, cache *Cache) *Service {
	return &Service{pool: pool, cache: cache}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := s.pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	var role Role
	err := s.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description, created_at, updated_at) VALUES ($1, $2, NOW(), NOW()) RETURNING id, name, description, created_at, updated_at`,
		name, strings.TrimSpace(description)).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// UpdateRole updates an existing role.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	var role Role
	err := s.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = NOW() WHERE id = $1 RETURNING id, name, description, created_at, updated_at`,
		id, name, strings.TrimSpace(description)).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role by ID. Returns ErrNotFound if nothing was
// deleted. Every holder of the role loses its permissions, so the whole
// cache generation is invalidated.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.cache.BumpGeneration(ctx)
	return nil
}

// ListPermissions returns the permission catalog ordered by code.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, code, description FROM permissions ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Code, &perm.Description); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// EnsurePermission upserts a permission ensuring the description is stored.
func (s *Service) EnsurePermission(ctx context.Context, code, description string) (Permission, error) {
	var perm Permission
	err := s.pool.QueryRow(ctx,
		`INSERT INTO permissions (code, description) VALUES ($1, $2)
		 ON CONFLICT (code) DO UPDATE SET description = EXCLUDED.description
		 RETURNING id, code, description`,
		strings.TrimSpace(code), strings.TrimSpace(description)).
		Scan(&perm.ID, &perm.Code, &perm.Description)
	if err != nil {
		return Permission{}, err
	}
	return perm, nil
}

// SetRolePermissions replaces the permission list of a role. The affected
// user set is unknown, so the whole cache generation is bumped once the
// write lands.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE id_role = $1`, roleID); err != nil {
		return err
	}
	for _, id := range permissionIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO role_permissions (id_role, id_permission) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			roleID, id); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.cache.BumpGeneration(ctx)
	return nil
}

// AssignRole grants a role to the given user.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	s.cache.InvalidateUser(ctx, userID)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_roles (id_user, id_role, created_at) VALUES ($1, $2, NOW()) ON CONFLICT DO NOTHING`,
		userID, roleID)
	if err != nil {
		return err
	}
	s.cache.InvalidateUser(ctx, userID)
	return nil
}

// RemoveRole revokes a role from a user. The cache entry is dropped around
// the write so the next authorization check sees the revoke.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	s.cache.InvalidateUser(ctx, userID)
	_, err := s.pool.Exec(ctx, `DELETE FROM user_roles WHERE id_user = $1 AND id_role = $2`, userID, roleID)
	if err != nil {
		return err
	}
	s.cache.InvalidateUser(ctx, userID)
	return nil
}

// EffectivePermissions resolves the flat permission set for a user: the
// union over every role the user holds. Inactive users yield the empty set
// even when the login check already passed, since an account can be
// deactivated mid-session. The query is read-only and deterministic.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT p.code
		 FROM users u
		 JOIN user_roles ur ON ur.id_user = u.id
		 JOIN role_permissions rp ON rp.id_role = ur.id_role
		 JOIN permissions p ON p.id = rp.id_permission
		 WHERE u.id = $1 AND u.is_active = true
		 ORDER BY p.code`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	perms := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		perms = append(perms, code)
	}
	return perms, rows.Err()
}
