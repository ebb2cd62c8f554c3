package constraint

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zero-day-ai/graphsync/internal/graph"
	"github.com/zero-day-ai/graphsync/internal/mapping"
	"github.com/zero-day-ai/graphsync/internal/types"
)

// Manager makes sure every label written to the store carries a uniqueness
// constraint on _id. Labels are looked up in the registry first, so the
// schema statement is issued at most once per label.
type Manager struct {
	client   graph.GraphClient
	registry Registry
	logger   *slog.Logger

	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithRegistry replaces the default MemoryRegistry.
func WithRegistry(r Registry) Option {
	return func(m *Manager) {
		m.registry = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager issuing schema statements through client.
func NewManager(client graph.GraphClient, opts ...Option) *Manager {
	m := &Manager{
		client:   client,
		registry: NewMemoryRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the registry in use.
func (m *Manager) Registry() Registry {
	return m.registry
}

// Statement returns the schema statement for label.
func Statement(label string) string {
	return fmt.Sprintf("CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
		mapping.QuoteName(label), mapping.IDProperty)
}

// Ensure creates the constraint of every label not yet in the registry and
// returns how many statements it issued. A store reporting that the
// constraint already exists counts as success. Ensure stops at the first
// failing label; labels handled before it stay recorded.
func (m *Manager) Ensure(ctx context.Context, labels []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	created := 0
	for _, label := range labels {
		if label == "" {
			continue
		}

		known, err := m.registry.Has(ctx, label)
		if err != nil {
			return created, registryFailure(err, label)
		}
		if known {
			continue
		}

		if _, err := m.client.Execute(ctx, Statement(label), nil); err != nil {
			if !graph.IsSchemaAlreadyExists(err) {
				return created, types.WrapError(types.CONSTRAINT_FAILED,
					fmt.Sprintf("failed to create constraint for label %s", label), err).
					WithContext("label", label)
			}
			m.logger.Debug("constraint already exists", "label", label)
		} else {
			created++
			m.logger.Info("created uniqueness constraint", "label", label)
		}

		if err := m.registry.Add(ctx, label); err != nil {
			return created, registryFailure(err, label)
		}
	}
	return created, nil
}

func registryFailure(err error, label string) *types.SyncError {
	if syncErr, ok := err.(*types.SyncError); ok {
		return syncErr.WithContext("label", label)
	}
	return types.WrapError(types.CONSTRAINT_FAILED, "constraint registry failed", err).
		WithContext("label", label)
}
