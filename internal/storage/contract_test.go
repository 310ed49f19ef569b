package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStorageContract exercises the behaviour every backend must share.
func testStorageContract(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		value, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, value)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "cart_items", []byte(`[{"id":1}]`)))

		value, err := s.Get(ctx, "cart_items")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":1}]`, string(value))
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "auth_token", []byte("first")))
		require.NoError(t, s.Set(ctx, "auth_token", []byte("second")))

		value, err := s.Get(ctx, "auth_token")
		require.NoError(t, err)
		assert.Equal(t, "second", string(value))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "wishlist_items", []byte("[]")))
		require.NoError(t, s.Delete(ctx, "wishlist_items"))

		_, err := s.Get(ctx, "wishlist_items")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete missing key", func(t *testing.T) {
		assert.NoError(t, s.Delete(ctx, "never-written"))
	})
}
