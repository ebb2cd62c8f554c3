package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/graphsync/internal/types"
)

func TestBadgerStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := Open(Options{Path: dir})
	require.NoError(t, err)

	cp, err := store.Load(ctx, "db.Person")
	require.NoError(t, err)
	assert.Nil(t, cp)

	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, Checkpoint{
		Namespace:   "db.Person",
		Timestamp:   1700,
		ResumeToken: []byte(`{"_data":"8263"}`),
		UpdatedAt:   updated,
	}))
	require.NoError(t, store.Save(ctx, Checkpoint{Namespace: "db.Person", Timestamp: 1800, UpdatedAt: updated}))
	require.NoError(t, store.Close())

	reopened, err := Open(Options{Path: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	cp, err = reopened.Load(ctx, "db.Person")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, int64(1800), cp.Timestamp)
	assert.Empty(t, cp.ResumeToken)
	assert.True(t, updated.Equal(cp.UpdatedAt))
}

func TestBadgerStore_List(t *testing.T) {
	ctx := context.Background()
	store, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	for _, ns := range []string{"shop.Order", "db.Person", "db.Address"} {
		require.NoError(t, store.Save(ctx, Checkpoint{Namespace: ns, Timestamp: 1}))
	}

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "db.Address", list[0].Namespace)
	assert.Equal(t, "shop.Order", list[2].Namespace)
	assert.False(t, list[0].UpdatedAt.IsZero(), "UpdatedAt defaults to now")
}

func TestBadgerStore_Errors(t *testing.T) {
	_, err := Open(Options{})
	assert.Equal(t, types.CHECKPOINT_FAILED, types.CodeOf(err))

	store, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	err = store.Save(context.Background(), Checkpoint{Timestamp: 1})
	assert.Equal(t, types.CHECKPOINT_FAILED, types.CodeOf(err))
}
