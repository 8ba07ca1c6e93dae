package profile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/tasksync/domain"
	"github.com/fastygo/tasksync/internal/testutil"
	"github.com/fastygo/tasksync/usecase/profile"
)

func seed() *testutil.Users {
	users := testutil.NewUsers()
	users.Put(domain.User{ID: "u1", Email: "one@example.com", PasswordHash: "hash", Status: domain.StatusActive})
	users.Put(domain.User{ID: "u2", Email: "two@example.com", Status: domain.StatusActive})
	return users
}

func TestUpdateProfileChangesEmail(t *testing.T) {
	users := seed()
	uc := profile.New(users, nil, nil)
	ctx := context.Background()

	updated, err := uc.UpdateProfile(ctx, "u1", " New@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)

	stored, err := uc.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", stored.Email)
	assert.Equal(t, "hash", stored.PasswordHash)
}

func TestUpdateProfileRejects(t *testing.T) {
	uc := profile.New(seed(), nil, nil)
	ctx := context.Background()

	_, err := uc.UpdateProfile(ctx, "u1", "broken")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = uc.UpdateProfile(ctx, "u1", "TWO@example.com")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	_, err = uc.UpdateProfile(ctx, "missing", "x@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = uc.GetProfile(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestUpdateProfileBuffersOnStoreFailure(t *testing.T) {
	users := seed()
	buffer := &testutil.Buffer{}
	uc := profile.New(users, buffer, nil)

	users.Fail = errors.New("connection reset")
	updated, err := uc.UpdateProfile(context.Background(), "u1", "later@example.com")
	assert.Nil(t, updated)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeQueued))
	require.Len(t, buffer.Profiles, 1)
	assert.Equal(t, "u1", buffer.Profiles[0].ID)
	assert.Equal(t, "later@example.com", buffer.Profiles[0].Email)
}
