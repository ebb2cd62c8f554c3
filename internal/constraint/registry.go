package constraint

import (
	"context"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/zero-day-ai/graphsync/internal/types"
)

// DefaultRedisKey is the set holding constrained labels in Redis.
const DefaultRedisKey = "graphsync:constraints"

// Registry records the labels known to carry a uniqueness constraint on _id.
// A registry starts empty and only grows.
type Registry interface {
	// Has reports whether label is known to be constrained.
	Has(ctx context.Context, label string) (bool, error)

	// Add records label as constrained.
	Add(ctx context.Context, label string) error

	// Labels returns every recorded label in lexical order.
	Labels(ctx context.Context) ([]string, error)
}

// MemoryRegistry is a process-local Registry.
type MemoryRegistry struct {
	mu     sync.RWMutex
	labels map[string]struct{}
}

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{labels: make(map[string]struct{})}
}

// Has implements Registry.
func (r *MemoryRegistry) Has(_ context.Context, label string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.labels[label]
	return ok, nil
}

// Add implements Registry.
func (r *MemoryRegistry) Add(_ context.Context, label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels[label] = struct{}{}
	return nil
}

// Labels implements Registry.
func (r *MemoryRegistry) Labels(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.labels))
	for label := range r.labels {
		out = append(out, label)
	}
	sort.Strings(out)
	return out, nil
}

// RedisRegistry keeps the labels in a Redis set so several connector
// processes writing to the same store share one registry.
type RedisRegistry struct {
	client redis.Cmdable
	key    string
}

// NewRedisRegistry creates a registry backed by the set at key.
// An empty key selects DefaultRedisKey.
func NewRedisRegistry(client redis.Cmdable, key string) *RedisRegistry {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisRegistry{client: client, key: key}
}

// Has implements Registry.
func (r *RedisRegistry) Has(ctx context.Context, label string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, label).Result()
	if err != nil {
		return false, registryError("failed to read constraint registry", err)
	}
	return ok, nil
}

// Add implements Registry.
func (r *RedisRegistry) Add(ctx context.Context, label string) error {
	if err := r.client.SAdd(ctx, r.key, label).Err(); err != nil {
		return registryError("failed to update constraint registry", err)
	}
	return nil
}

// Labels implements Registry.
func (r *RedisRegistry) Labels(ctx context.Context) ([]string, error) {
	labels, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, registryError("failed to list constraint registry", err)
	}
	sort.Strings(labels)
	return labels, nil
}

func registryError(message string, err error) *types.SyncError {
	return types.WrapRetryableError(types.CONSTRAINT_FAILED, message, err)
}
