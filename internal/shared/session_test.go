package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, single bool) (*SessionManager, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "test_session", "secret", time.Hour, false, single), client, mr
}

func requestWithCookie(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: id})
	return req
}

func TestLoginRotatesSessionID(t *testing.T) {
	sm, _, _ := newTestManager(t, true)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	preAuthID := sess.ID

	require.NoError(t, sm.Login(ctx, sess, 42))
	assert.NotEqual(t, preAuthID, sess.ID, "pre-authentication id must never survive login")
	assert.Equal(t, "42", sess.User())
}

func TestLoginInvalidatesPreAuthRecord(t *testing.T) {
	sm, client, _ := newTestManager(t, true)
	ctx := context.Background()

	// Prime an anonymous session so its record exists in Redis.
	sess := sm.newSession()
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	preAuthID := sess.ID

	require.NoError(t, sm.Login(ctx, sess, 42))

	err := client.Get(ctx, "session:"+preAuthID).Err()
	assert.ErrorIs(t, err, redis.Nil, "pre-auth session record must be deleted")
}

func TestSingleSessionSupersedesPriorLogin(t *testing.T) {
	sm, client, _ := newTestManager(t, true)
	ctx := context.Background()

	first, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Login(ctx, first, 7))
	firstID := first.ID

	second, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Login(ctx, second, 7))

	// Exactly one live session: the first record is gone and the owner
	// index points at the second.
	assert.ErrorIs(t, client.Get(ctx, "session:"+firstID).Err(), redis.Nil)
	owner, err := client.Get(ctx, "session:user:7").Result()
	require.NoError(t, err)
	assert.Equal(t, second.ID, owner)

	// Presenting the superseded cookie yields a fresh anonymous session.
	loaded, err := sm.Load(ctx, requestWithCookie(firstID))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionSuperseded)
	assert.Empty(t, loaded.User())
}

func TestSingleSessionDisabledKeepsBothLogins(t *testing.T) {
	sm, client, _ := newTestManager(t, false)
	ctx := context.Background()

	first, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Login(ctx, first, 7))

	second, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Login(ctx, second, 7))

	require.NoError(t, client.Get(ctx, "session:"+first.ID).Err())
	require.NoError(t, client.Get(ctx, "session:"+second.ID).Err())
}

func TestConcurrentLoginsLeaveOneActiveSession(t *testing.T) {
	sm, client, _ := newTestManager(t, true)
	ctx := context.Background()

	const logins = 8
	sessions := make([]*Session, logins)
	var wg sync.WaitGroup
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess := sm.newSession()
			if err := sm.Login(ctx, sess, 9); err != nil {
				t.Errorf("login %d: %v", i, err)
				return
			}
			sessions[i] = sess
		}(i)
	}
	wg.Wait()

	owner, err := client.Get(ctx, "session:user:9").Result()
	require.NoError(t, err)

	live := 0
	for _, sess := range sessions {
		if sess == nil {
			continue
		}
		if client.Get(ctx, "session:"+sess.ID).Err() == nil {
			live++
			assert.Equal(t, owner, sess.ID)
		}
	}
	assert.Equal(t, 1, live, "exactly one session may survive concurrent logins")
}

func TestDestroyDeletesRecordAndOwnerIndex(t *testing.T) {
	sm, client, _ := newTestManager(t, true)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Login(ctx, sess, 5))
	id := sess.ID

	sm.Destroy(sess)
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, httptest.NewRequest(http.MethodGet, "/", nil), sess))

	assert.ErrorIs(t, client.Get(ctx, "session:"+id).Err(), redis.Nil)
	assert.ErrorIs(t, client.Get(ctx, "session:user:5").Err(), redis.Nil)

	// The logout response clears the cookie.
	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestExpireMakesIDUnknown(t *testing.T) {
	sm, _, _ := newTestManager(t, true)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Login(ctx, sess, 3))
	id := sess.ID

	require.NoError(t, sm.Expire(ctx, id))

	loaded, err := sm.Load(ctx, requestWithCookie(id))
	require.NoError(t, err)
	assert.Empty(t, loaded.User(), "expired id must load as anonymous")
}

func TestLoadSurvivesOwnerIndexExpiry(t *testing.T) {
	sm, client, mr := newTestManager(t, true)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Login(ctx, sess, 42))
	id := sess.ID

	// Halfway through the lifetime a write refreshes the record.
	mr.FastForward(30 * time.Minute)
	sess.Set("theme", "dark")
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, httptest.NewRequest(http.MethodGet, "/", nil), sess))

	// Past the original TTL: the record is live only because of the
	// refresh. The sole session must not read as superseded.
	mr.FastForward(45 * time.Minute)

	loaded, err := sm.Load(ctx, requestWithCookie(id))
	require.NoError(t, err)
	assert.Equal(t, "42", loaded.User())

	owner, err := client.Get(ctx, "session:user:42").Result()
	require.NoError(t, err)
	assert.Equal(t, id, owner)
}

func TestLoadReinstallsMissingOwnerIndex(t *testing.T) {
	sm, client, _ := newTestManager(t, true)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Login(ctx, sess, 8))
	id := sess.ID

	require.NoError(t, client.Del(ctx, "session:user:8").Err())

	loaded, err := sm.Load(ctx, requestWithCookie(id))
	require.NoError(t, err)
	assert.Equal(t, "8", loaded.User(), "sole session must stay authenticated")

	owner, err := client.Get(ctx, "session:user:8").Result()
	require.NoError(t, err)
	assert.Equal(t, id, owner)
	require.NoError(t, client.Get(ctx, "session:"+id).Err(), "record must survive the lookup")
}

func TestFlashSurvivesRedirectUntilPopped(t *testing.T) {
	sm, _, _ := newTestManager(t, true)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.AddFlash(FlashMessage{Kind: "warning", Message: "Sesi Anda berakhir"})
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, httptest.NewRequest(http.MethodGet, "/", nil), sess))

	// The request after the redirect still sees the flash.
	loaded, err := sm.Load(ctx, requestWithCookie(sess.ID))
	require.NoError(t, err)
	msg := loaded.PopFlash()
	require.NotNil(t, msg)
	assert.Equal(t, "Sesi Anda berakhir", msg.Message)

	// Popping consumed it for good.
	res = httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, requestWithCookie(loaded.ID), loaded))
	again, err := sm.Load(ctx, requestWithCookie(loaded.ID))
	require.NoError(t, err)
	assert.Nil(t, again.PopFlash())
}

func TestCommitRoundTripsValues(t *testing.T) {
	sm, _, _ := newTestManager(t, true)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set("theme", "dark")

	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, httptest.NewRequest(http.MethodGet, "/", nil), sess))

	loaded, err := sm.Load(ctx, requestWithCookie(sess.ID))
	require.NoError(t, err)
	assert.Equal(t, "dark", loaded.Get("theme"))
}
