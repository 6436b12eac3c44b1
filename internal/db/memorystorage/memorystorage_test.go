package memorystorage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/profilesite/internal/models"
	"github.com/patric-chuzhbe/profilesite/internal/user"
)

func TestMemoryStorage(t *testing.T) {
	storage, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := storage.GetUserByEmail(ctx, "a@x.com", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, storage.CreateUser(ctx, &user.User{Name: "Alice", Email: "a@x.com"}, nil))
	require.ErrorIs(t, storage.CreateUser(ctx, &user.User{Name: "Alice", Email: "a@x.com"}, nil), models.ErrDuplicateEmail)

	found, ok, err := storage.GetUserByEmail(ctx, "a@x.com", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alice", found.Name)

	require.NoError(t, storage.Ping(ctx))
	require.NoError(t, storage.Close())
}
