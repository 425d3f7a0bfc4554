package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miftah-app/miftah/internal/shared"
)

type stubChecker struct {
	perms []string
	err   error
}

func (s *stubChecker) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return s.perms, s.err
}

func authenticatedRequest(t *testing.T, target string) *http.Request {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false, true)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	sess, err := manager.Load(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, manager.Login(context.Background(), sess, 7))
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func anonymousRequest(target string) *http.Request {
	return httptest.NewRequest(http.MethodGet, target, nil)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAnyGrants(t *testing.T) {
	m := Middleware{Checker: &stubChecker{perms: []string{"USER_EDIT"}}}
	handler := m.RequireAny("USER_VIEW", "USER_EDIT")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authenticatedRequest(t, "/users"))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequireAnyDenies(t *testing.T) {
	m := Middleware{Checker: &stubChecker{perms: []string{"CLASS_VIEW"}}}
	handler := m.RequireAny("USER_VIEW")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authenticatedRequest(t, "/users"))
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireAllNeedsEveryPermission(t *testing.T) {
	m := Middleware{Checker: &stubChecker{perms: []string{"USER_VIEW"}}}
	handler := m.RequireAll("USER_VIEW", "USER_EDIT")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authenticatedRequest(t, "/users"))
	assert.Equal(t, http.StatusForbidden, res.Code)

	m = Middleware{Checker: &stubChecker{perms: []string{"USER_VIEW", "USER_EDIT"}}}
	handler = m.RequireAll("USER_VIEW", "USER_EDIT")(okHandler())
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, authenticatedRequest(t, "/users"))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequireAnyAnonymousRedirectsToLogin(t *testing.T) {
	m := Middleware{Checker: &stubChecker{perms: []string{"USER_VIEW"}}}
	handler := m.RequireAny("USER_VIEW")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, anonymousRequest("/users"))
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login", res.Header().Get("Location"))
}

func TestRequireAnyResolverErrorFailsClosed(t *testing.T) {
	m := Middleware{Checker: &stubChecker{err: errors.New("pg unreachable")}}
	handler := m.RequireAny("USER_VIEW")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authenticatedRequest(t, "/users"))
	assert.Equal(t, http.StatusForbidden, res.Code)
}
