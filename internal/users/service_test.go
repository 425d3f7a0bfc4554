package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/miftah-app/miftah/internal/platform/httpx"
)

type fakeRepo struct {
	users  map[int64]User
	hashes map[int64]string
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[int64]User{}, hashes: map[int64]string{}, nextID: 1}
}

func (f *fakeRepo) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id int64) (User, error) {
	u, ok := f.users[id]
	if !ok {
		return User{}, httpx.ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) CreateUser(ctx context.Context, username, fullName, email, passwordHash string, active bool) (User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return User{}, httpx.ErrDuplicate
		}
	}
	user := User{ID: f.nextID, Username: username, FullName: fullName, Email: email, IsActive: active}
	f.users[user.ID] = user
	f.hashes[user.ID] = passwordHash
	f.nextID++
	return user, nil
}

func (f *fakeRepo) SetActive(ctx context.Context, id int64, active bool) error {
	u, ok := f.users[id]
	if !ok {
		return httpx.ErrNotFound
	}
	u.IsActive = active
	f.users[id] = u
	return nil
}

type fakeInvalidator struct {
	calls []int64
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, userID int64) {
	f.calls = append(f.calls, userID)
}

func TestRegisterCreatesInactiveAccount(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo, nil)

	user, err := service.Register(context.Background(), "wali.siti", "Siti Aminah", "siti@example.com", "Welcome@YSQ2024")
	require.NoError(t, err)

	assert.False(t, user.IsActive, "self-registered accounts must wait for approval")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[user.ID]), []byte("Welcome@YSQ2024")))
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo, nil)

	_, err := service.Register(context.Background(), "wali.siti", "Siti Aminah", "siti@example.com", "Welcome@YSQ2024")
	require.NoError(t, err)

	_, err = service.Register(context.Background(), "wali.siti", "Siti Lain", "lain@example.com", "Welcome@YSQ2024")
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestSetActiveDropsCachedPermissions(t *testing.T) {
	repo := newFakeRepo()
	invalidator := &fakeInvalidator{}
	service := NewService(repo, invalidator)

	user, err := service.CreateUser(context.Background(), "ustadz.ahmad", "Ahmad Fauzi", "ahmad@example.com", "Welcome@YSQ2024", true)
	require.NoError(t, err)

	require.NoError(t, service.SetActive(context.Background(), user.ID, false))
	assert.Equal(t, []int64{user.ID}, invalidator.calls, "deactivation must invalidate the permission cache")
	assert.False(t, repo.users[user.ID].IsActive)
}

func TestSetActiveUnknownUserSkipsInvalidation(t *testing.T) {
	invalidator := &fakeInvalidator{}
	service := NewService(newFakeRepo(), invalidator)

	err := service.SetActive(context.Background(), 404, false)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
	assert.Empty(t, invalidator.calls)
}
