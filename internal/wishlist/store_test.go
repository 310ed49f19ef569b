package wishlist

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	gown  = domain.Product{ID: 1, Name: "Evening Gown", Price: decimal.NewFromInt(300)}
	skirt = domain.Product{ID: 2, Name: "Pleated Skirt", Price: decimal.RequireFromString("45.99")}
)

func ids(items []domain.Product) []int64 {
	out := make([]int64, 0, len(items))
	for _, p := range items {
		out = append(out, p.ID)
	}
	return out
}

func TestAdd_IgnoresDuplicates(t *testing.T) {
	store := NewStore(storage.NewMemoryStorage())
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, gown))
	require.NoError(t, store.Add(ctx, skirt))
	require.NoError(t, store.Add(ctx, gown))

	assert.Equal(t, []int64{1, 2}, ids(store.Items()))
	assert.True(t, store.Contains(1))
	assert.False(t, store.Contains(3))
}

func TestRemove(t *testing.T) {
	store := NewStore(storage.NewMemoryStorage())
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, gown))
	require.NoError(t, store.Add(ctx, skirt))

	require.NoError(t, store.Remove(ctx, 1))
	require.NoError(t, store.Remove(ctx, 42))

	assert.Equal(t, []int64{2}, ids(store.Items()))
}

func TestToggle_TwiceRestoresMembership(t *testing.T) {
	store := NewStore(storage.NewMemoryStorage())
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, skirt))

	in, err := store.Toggle(ctx, gown)
	require.NoError(t, err)
	assert.True(t, in)
	assert.True(t, store.Contains(gown.ID))

	in, err = store.Toggle(ctx, gown)
	require.NoError(t, err)
	assert.False(t, in)
	assert.False(t, store.Contains(gown.ID))

	assert.Equal(t, []int64{2}, ids(store.Items()))
}

func TestLoad_RoundTrip(t *testing.T) {
	mem := storage.NewMemoryStorage()
	ctx := context.Background()
	store := NewStore(mem)
	require.NoError(t, store.Add(ctx, skirt))
	require.NoError(t, store.Add(ctx, gown))

	restarted := NewStore(mem)
	require.NoError(t, restarted.Load(ctx))

	items := restarted.Items()
	assert.Equal(t, []int64{2, 1}, ids(items))
	assert.True(t, skirt.Price.Equal(items[0].Price))
}

func TestLoad_CollapsesDuplicateSnapshotEntries(t *testing.T) {
	mem := storage.NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.SaveJSON(ctx, mem, ItemsKey, []domain.Product{gown, skirt, gown}))

	store := NewStore(mem)
	require.NoError(t, store.Load(ctx))
	assert.Equal(t, []int64{1, 2}, ids(store.Items()))
}

func TestLoad_MalformedSnapshot(t *testing.T) {
	mem := storage.NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, ItemsKey, []byte("not json")))

	store := NewStore(mem)
	require.NoError(t, store.Load(ctx))
	assert.Empty(t, store.Items())
}

type brokenStorage struct {
	*storage.MemoryStorage
}

func (brokenStorage) Set(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}

func TestToggle_PersistFailureKeepsState(t *testing.T) {
	store := NewStore(brokenStorage{storage.NewMemoryStorage()})

	in, err := store.Toggle(context.Background(), gown)
	assert.ErrorContains(t, err, "quota exceeded")
	assert.False(t, in)
	assert.Empty(t, store.Items())
}
