package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/miftah-app/miftah/internal/shared"
)

type fakeRepo struct {
	users map[string]*User
}

func (f *fakeRepo) FindByUsername(ctx context.Context, username string) (*User, error) {
	user, ok := f.users[username]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (f *fakeRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (f *fakeRepo) DeleteSession(ctx context.Context, id string) error { return nil }

func (f *fakeRepo) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hashed)
}

func TestAuthenticateSuccess(t *testing.T) {
	repo := &fakeRepo{users: map[string]*User{
		"ustadz.ahmad": {ID: 1, Username: "ustadz.ahmad", PasswordHash: hashFor(t, "Welcome@YSQ2024"), IsActive: true},
	}}
	service := NewService(repo)

	user, err := service.Authenticate(context.Background(), "ustadz.ahmad", "Welcome@YSQ2024")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	repo := &fakeRepo{users: map[string]*User{
		"active.user":   {ID: 1, Username: "active.user", PasswordHash: hashFor(t, "Welcome@YSQ2024"), IsActive: true},
		"inactive.user": {ID: 2, Username: "inactive.user", PasswordHash: hashFor(t, "Welcome@YSQ2024"), IsActive: false},
	}}
	service := NewService(repo)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"unknown username", "no.such.user", "Welcome@YSQ2024"},
		{"deactivated account", "inactive.user", "Welcome@YSQ2024"},
		{"wrong password", "active.user", "Wrong@Password1"},
	}

	var messages []string
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Authenticate(context.Background(), tc.username, tc.password)
			require.ErrorIs(t, err, shared.ErrInvalidCredentials)
			messages = append(messages, err.Error())
		})
	}
	for i := 1; i < len(messages); i++ {
		assert.Equal(t, messages[0], messages[i], "failure kinds must not be distinguishable")
	}
}

func TestAuthenticateUsernameIsCaseSensitive(t *testing.T) {
	repo := &fakeRepo{users: map[string]*User{
		"Admin": {ID: 1, Username: "Admin", PasswordHash: hashFor(t, "Welcome@YSQ2024"), IsActive: true},
	}}
	service := NewService(repo)

	_, err := service.Authenticate(context.Background(), "admin", "Welcome@YSQ2024")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
