package authz

import (
	"context"
	"log/slog"

	"github.com/miftah-app/miftah/internal/shared"
)

// AnonymousID marks a request with no authenticated user.
const AnonymousID int64 = 0

// Verdict is the outcome of an authorization check.
type Verdict int

const (
	// Allow lets the request proceed.
	Allow Verdict = iota
	// DenyUnauthenticated rejects the request because it carries no valid
	// session; the boundary layer should route to the login surface.
	DenyUnauthenticated
	// DenyForbidden rejects an authenticated request lacking permission; the
	// boundary layer should route to the forbidden view, not the login view.
	DenyForbidden
)

// String names the verdict for logs and metrics.
func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "unauthenticated"
	default:
		return "forbidden"
	}
}

// Err maps the verdict to the shared sentinel errors.
func (v Verdict) Err() error {
	switch v {
	case Allow:
		return nil
	case DenyUnauthenticated:
		return shared.ErrUnauthenticated
	default:
		return shared.ErrForbidden
	}
}

// PermissionSource resolves the effective permission set for a user. The set
// must reflect the current granted state at the start of the request, and an
// inactive user must resolve to the empty set.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Gate decides, per request, whether a caller may reach a resource path. It
// is stateless and side-effect-free beyond reading shared state; concurrent
// checks for different users need no coordination.
type Gate struct {
	table    *Table
	public   []string
	source   PermissionSource
	failOpen bool
	logger   *slog.Logger
}

// NewGate builds a Gate. failOpenAuthenticated controls what happens when no
// rule matches a path: when true any authenticated caller is allowed
// (mirrors the upstream policy's authenticated fallback), when false the
// request is denied. Anonymous callers are always denied on unmatched paths.
func NewGate(table *Table, public []string, source PermissionSource, failOpenAuthenticated bool, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		table:    table,
		public:   public,
		source:   source,
		failOpen: failOpenAuthenticated,
		logger:   logger,
	}
}

// IsPublic reports whether the path is on the anonymous allow-list.
func (g *Gate) IsPublic(path string) bool {
	for _, pattern := range g.public {
		if matchPath(pattern, path) {
			return true
		}
	}
	return false
}

// Authorize evaluates the policy table for the given caller and path.
// userID AnonymousID means no authenticated session. Any failure while
// resolving permissions denies the request; authorization never fails open
// on error.
func (g *Gate) Authorize(ctx context.Context, userID int64, path string) Verdict {
	if g.IsPublic(path) {
		return Allow
	}
	if userID == AnonymousID {
		return DenyUnauthenticated
	}

	rule, matched := g.table.Match(path)
	if !matched {
		if g.failOpen {
			return Allow
		}
		return DenyForbidden
	}

	granted, err := g.source.EffectivePermissions(ctx, userID)
	if err != nil {
		g.logger.Error("resolve permissions", slog.Int64("user_id", userID), slog.Any("error", err))
		return DenyForbidden
	}
	if rule.Satisfied(granted) {
		return Allow
	}
	return DenyForbidden
}
