package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// FlashMessage represents a one-time notification stored in session.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SessionManager orchestrates cookie based sessions backed by Redis.
//
// When the single-session policy is enabled, at most one live session exists
// per user: a successful login supersedes any session the same user holds
// elsewhere, and the superseded session ID becomes unknown to all future
// lookups. Login also regenerates the session identifier so that no ID issued
// before authentication stays valid afterwards.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
	single     bool

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// Session holds per-request session data.
type Session struct {
	ID        string
	values    map[string]string
	userID    string
	flashes   []FlashMessage
	manager   *SessionManager
	isNew     bool
	dirty     bool
	destroyed bool
}

type sessionPayload struct {
	Values  map[string]string `json:"values"`
	UserID  string            `json:"user_id"`
	Flashes []FlashMessage    `json:"flashes"`
}

// NewSessionManager constructs a SessionManager. singleSession enables the
// one-live-session-per-user policy.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure, singleSession bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
		single:     singleSession,
		userLocks:  make(map[string]*sync.Mutex),
	}
}

// Load loads or creates a session for the request. When the presented cookie
// belongs to a session that a newer login has superseded, Load discards it,
// returns a fresh anonymous session and reports ErrSessionSuperseded so the
// caller can tell the user why they were signed out.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	payload, err := sm.client.Get(ctx, sm.sessionKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			sess := sm.newSession()
			sess.ID = cookie.Value
			sess.isNew = true
			return sess, nil
		}
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	sess := sm.newSession()
	sess.ID = cookie.Value
	sess.values = stored.Values
	sess.userID = stored.UserID
	sess.flashes = stored.Flashes
	sess.isNew = false

	if sm.single && stored.UserID != "" {
		owner, err := sm.client.Get(ctx, sm.ownerKey(stored.UserID)).Result()
		switch {
		case errors.Is(err, redis.Nil):
			// The owner index lapsed while the session record stayed
			// alive. The presenting session is the only live one, so
			// re-install the index for it.
			if err := sm.client.Set(ctx, sm.ownerKey(stored.UserID), sess.ID, sm.ttl).Err(); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		case owner != sess.ID:
			// A newer login owns this account now. Drop the stale record
			// so the ID is unknown from here on.
			_ = sm.client.Del(ctx, sm.sessionKey(sess.ID)).Err()
			return sm.newSession(), ErrSessionSuperseded
		}
	}

	return sess, nil
}

// Login binds the session to the given user at authentication time. The
// session receives a newly generated identifier (fixation defense), any
// session the user already holds is invalidated first (single-session
// policy), and the whole swap is serialized per user so no two sessions for
// one account are ever live at once.
func (sm *SessionManager) Login(ctx context.Context, sess *Session, userID int64) error {
	if sess == nil {
		return errors.New("session missing")
	}
	uid := strconv.FormatInt(userID, 10)

	lock := sm.userLock(uid)
	lock.Lock()
	defer lock.Unlock()

	var prior string
	if sm.single {
		owner, err := sm.client.Get(ctx, sm.ownerKey(uid)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		prior = owner
	}

	preAuthID := sess.ID
	sess.ID = sm.generateSessionID()
	sess.userID = uid

	data, err := json.Marshal(sessionPayload{Values: sess.values, UserID: sess.userID, Flashes: sess.flashes})
	if err != nil {
		return err
	}

	_, err = sm.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if preAuthID != "" {
			pipe.Del(ctx, sm.sessionKey(preAuthID))
		}
		if prior != "" && prior != preAuthID {
			pipe.Del(ctx, sm.sessionKey(prior))
		}
		pipe.Set(ctx, sm.sessionKey(sess.ID), data, sm.ttl)
		pipe.Set(ctx, sm.ownerKey(uid), sess.ID, sm.ttl)
		return nil
	})
	if err != nil {
		return err
	}

	sess.isNew = false
	sess.dirty = false
	return nil
}

// Commit persists the session and writes cookie headers as needed.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		if err := sm.client.Del(ctx, sm.sessionKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if sess.userID != "" {
			owner, err := sm.client.Get(ctx, sm.ownerKey(sess.userID)).Result()
			if err == nil && owner == sess.ID {
				_ = sm.client.Del(ctx, sm.ownerKey(sess.userID)).Err()
			}
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
		})
		return nil
	}

	if sess.isNew && sess.ID == "" {
		sess.ID = sm.generateSessionID()
	}

	if sess.dirty || sess.isNew {
		payload := sessionPayload{Values: sess.values, UserID: sess.userID, Flashes: sess.flashes}
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sm.sessionKey(sess.ID), data, sm.ttl).Err(); err != nil {
			return err
		}
		// The owner index must outlive every record it guards, so its
		// TTL is refreshed together with the record's.
		if sm.single && sess.userID != "" {
			_ = sm.client.Expire(ctx, sm.ownerKey(sess.userID), sm.ttl).Err()
		}
		sess.dirty = false
	}

	if sess.ID != "" {
		cookie := &http.Cookie{
			Name:     sm.cookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
			Expires:  time.Now().Add(sm.ttl),
		}
		http.SetCookie(w, cookie)
	}

	// Flashes stay in the record until PopFlash consumes them; the
	// consuming request's commit then persists the cleared state.
	return nil
}

// Destroy marks the session for deletion (explicit logout).
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// Expire removes a session record by ID. Used by the idle/absolute timeout
// collaborator; once expired the ID is unknown for all future lookups.
func (sm *SessionManager) Expire(ctx context.Context, sessionID string) error {
	if err := sm.client.Del(ctx, sm.sessionKey(sessionID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// Session helpers

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	if s.values == nil {
		return ""
	}
	return s.values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if s.values == nil {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// SetUser associates the session with a user ID without touching the
// session identifier. Login is the normal path; SetUser exists for
// store-level plumbing and tests.
func (s *Session) SetUser(id string) {
	s.userID = id
	s.dirty = true
}

// User returns the current user ID, or empty for anonymous sessions.
func (s *Session) User() string {
	return s.userID
}

// AddFlash queues a flash message.
func (s *Session) AddFlash(msg FlashMessage) {
	s.flashes = append(s.flashes, msg)
	s.dirty = true
}

// PopFlash retrieves and clears the oldest flash message.
func (s *Session) PopFlash() *FlashMessage {
	if len(s.flashes) == 0 {
		if value := s.Get("flash"); value != "" {
			s.Delete("flash")
		}
		return nil
	}
	msg := s.flashes[0]
	s.flashes = s.flashes[1:]
	s.dirty = true
	return &msg
}

func (sm *SessionManager) newSession() *Session {
	return &Session{
		ID:      sm.generateSessionID(),
		values:  make(map[string]string),
		manager: sm,
		isNew:   true,
		dirty:   true,
	}
}

func (sm *SessionManager) userLock(uid string) *sync.Mutex {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	lock, ok := sm.userLocks[uid]
	if !ok {
		lock = &sync.Mutex{}
		sm.userLocks[uid] = lock
	}
	return lock
}

func (sm *SessionManager) sessionKey(id string) string {
	return "session:" + id
}

func (sm *SessionManager) ownerKey(uid string) string {
	return "session:user:" + uid
}

func (sm *SessionManager) generateSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	if len(sm.secret) > 0 {
		for i := range b {
			b[i] ^= sm.secret[i%len(sm.secret)]
		}
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
