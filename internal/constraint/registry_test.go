package constraint

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/graphsync/internal/types"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Ping(context.Background()).Err())
	return client, mr
}

func TestRegistries(t *testing.T) {
	client, _ := setupTestRedis(t)

	registries := map[string]Registry{
		"memory": NewMemoryRegistry(),
		"redis":  NewRedisRegistry(client, "test:constraints"),
	}

	for name, r := range registries {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			known, err := r.Has(ctx, "Person")
			require.NoError(t, err)
			assert.False(t, known)

			require.NoError(t, r.Add(ctx, "Person"))
			require.NoError(t, r.Add(ctx, "address"))
			require.NoError(t, r.Add(ctx, "Person"))

			known, err = r.Has(ctx, "Person")
			require.NoError(t, err)
			assert.True(t, known)

			labels, err := r.Labels(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"Person", "address"}, labels)
		})
	}
}

func TestRedisRegistry_SharedBetweenProcesses(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)

	first := NewRedisRegistry(client, "")
	second := NewRedisRegistry(redis.NewClient(&redis.Options{Addr: mr.Addr()}), DefaultRedisKey)

	require.NoError(t, first.Add(ctx, "Order"))

	known, err := second.Has(ctx, "Order")
	require.NoError(t, err)
	assert.True(t, known)

	members, err := mr.SMembers(DefaultRedisKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"Order"}, members)
}

func TestRedisRegistry_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	r := NewRedisRegistry(client, "")
	mr.Close()

	_, err = r.Has(context.Background(), "Person")

	require.Error(t, err)
	assert.Equal(t, types.CONSTRAINT_FAILED, types.CodeOf(err))
	assert.True(t, types.IsRetryable(err))
}

func TestManager_WithRedisRegistry(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestRedis(t)
	shared := NewRedisRegistry(client, "")

	first, firstStore := newTestManager(t, WithRegistry(shared))
	second, secondStore := newTestManager(t, WithRegistry(shared))

	_, err := first.Ensure(ctx, []string{"Person"})
	require.NoError(t, err)
	_, err = second.Ensure(ctx, []string{"Person"})
	require.NoError(t, err)

	assert.Len(t, firstStore.Executed(), 1)
	assert.Empty(t, secondStore.Executed())
}
