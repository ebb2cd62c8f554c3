package constraint

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/graphsync/internal/graph"
	"github.com/zero-day-ai/graphsync/internal/types"
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, *graph.MockGraphClient) {
	t.Helper()
	client := graph.NewMockGraphClient()
	require.NoError(t, client.Connect(context.Background()))
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewManager(client, opts...), client
}

func TestStatement(t *testing.T) {
	assert.Equal(t, "CREATE CONSTRAINT IF NOT EXISTS FOR (n:`Person`) REQUIRE n._id IS UNIQUE", Statement("Person"))
	assert.Equal(t, "CREATE CONSTRAINT IF NOT EXISTS FOR (n:`we``ird`) REQUIRE n._id IS UNIQUE", Statement("we`ird"))
}

func TestManager_EnsureOncePerLabel(t *testing.T) {
	ctx := context.Background()
	m, client := newTestManager(t)

	created, err := m.Ensure(ctx, []string{"Person", "address"})
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	for i := 0; i < 5; i++ {
		created, err = m.Ensure(ctx, []string{"Person", "address", "Person"})
		require.NoError(t, err)
		assert.Equal(t, 0, created)
	}

	executed := client.Executed()
	require.Len(t, executed, 2)
	assert.Equal(t, Statement("Person"), executed[0].Cypher)
	assert.Equal(t, Statement("address"), executed[1].Cypher)

	labels, err := m.Registry().Labels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Person", "address"}, labels)
}

func TestManager_EnsureSkipsEmptyLabels(t *testing.T) {
	m, client := newTestManager(t)

	created, err := m.Ensure(context.Background(), []string{"", "Person"})

	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Len(t, client.Executed(), 1)
}

func TestManager_AlreadyExistsIsSuccess(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"neo4j schema code", &neo4j.Neo4jError{Code: "Neo.ClientError.Schema.EquivalentSchemaRuleAlreadyExists", Msg: "exists"}},
		{"message text", errors.New("An equivalent constraint already exists")},
		{"graph code", types.NewError(graph.ErrCodeGraphSchemaExists, "schema rule already exists")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m, client := newTestManager(t)
			client.SetExecuteError(tt.err)

			created, err := m.Ensure(ctx, []string{"Person"})

			require.NoError(t, err)
			assert.Equal(t, 0, created)
			known, err := m.Registry().Has(ctx, "Person")
			require.NoError(t, err)
			assert.True(t, known)

			_, err = m.Ensure(ctx, []string{"Person"})
			require.NoError(t, err)
			assert.Len(t, client.GetCallsByMethod("Execute"), 1)
		})
	}
}

func TestManager_StoreFailure(t *testing.T) {
	ctx := context.Background()
	m, client := newTestManager(t)
	client.SetExecuteErrorFunc(func(cypher string) error {
		if strings.Contains(cypher, "`address`") {
			return errors.New("connection reset")
		}
		return nil
	})

	created, err := m.Ensure(ctx, []string{"Person", "address", "geo"})

	require.Error(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, types.CONSTRAINT_FAILED, types.CodeOf(err))
	var syncErr *types.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, "address", syncErr.Context["label"])

	labels, _ := m.Registry().Labels(ctx)
	assert.Equal(t, []string{"Person"}, labels, "failed label is not recorded")

	client.SetExecuteErrorFunc(nil)
	created, err = m.Ensure(ctx, []string{"Person", "address", "geo"})
	require.NoError(t, err)
	assert.Equal(t, 2, created)
}

type failingRegistry struct{}

func (failingRegistry) Has(context.Context, string) (bool, error) {
	return false, errors.New("registry down")
}
func (failingRegistry) Add(context.Context, string) error { return nil }
func (failingRegistry) Labels(context.Context) ([]string, error) { return nil, nil }

func TestManager_RegistryFailure(t *testing.T) {
	m, client := newTestManager(t, WithRegistry(failingRegistry{}))

	_, err := m.Ensure(context.Background(), []string{"Person"})

	assert.Equal(t, types.CONSTRAINT_FAILED, types.CodeOf(err))
	assert.Empty(t, client.Executed())
}
