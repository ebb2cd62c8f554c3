//go:build integration
// +build integration

package changefeed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// setupMongo starts a single-node replica set; change streams need one.
func setupMongo(t *testing.T) *mongo.Client {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil || provider.Health(ctx) != nil {
		t.Skip("Docker not available, skipping integration test")
	}

	container, err := tcmongo.Run(ctx, "mongo:7", tcmongo.WithReplicaSet("rs0"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate mongo container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetDirect(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) handle(_ context.Context, ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func TestIntegration_Dump(t *testing.T) {
	ctx := context.Background()
	client := setupMongo(t)

	coll := client.Database("shop").Collection("orders")
	_, err := coll.InsertMany(ctx, []any{
		bson.M{"_id": "o1", "total": 10},
		bson.M{"_id": "o2", "total": 20},
	})
	require.NoError(t, err)

	stream, err := NewMongoSource(client).Dump(ctx, "shop.orders")
	require.NoError(t, err)

	var ids []any
	for {
		doc, err := stream.Next(ctx)
		if err == ErrExhausted {
			break
		}
		require.NoError(t, err)
		ids = append(ids, doc["_id"])
	}
	assert.ElementsMatch(t, []any{"o1", "o2"}, ids)
}

func TestIntegration_Watch(t *testing.T) {
	client := setupMongo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := NewMongoSource(client, WithNamespaces("shop.orders"))
	log := &eventLog{}
	done := make(chan error, 1)
	go func() { done <- source.Watch(ctx, nil, log.handle) }()

	// Give the change stream time to open before writing.
	time.Sleep(time.Second)

	orders := client.Database("shop").Collection("orders")
	other := client.Database("shop").Collection("ignored")
	_, err := orders.InsertOne(ctx, bson.M{"_id": "o1", "total": 10})
	require.NoError(t, err)
	_, err = other.InsertOne(ctx, bson.M{"_id": "x"})
	require.NoError(t, err)
	_, err = orders.UpdateOne(ctx, bson.M{"_id": "o1"}, bson.M{"$set": bson.M{"total": 12}, "$unset": bson.M{"note": ""}})
	require.NoError(t, err)
	_, err = orders.DeleteOne(ctx, bson.M{"_id": "o1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(log.snapshot()) >= 3 }, 15*time.Second, 100*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	events := log.snapshot()
	require.Len(t, events, 3)

	assert.Equal(t, OpInsert, events[0].Op)
	assert.Equal(t, "shop.orders", events[0].Namespace)
	assert.Equal(t, "o1", events[0].Document["_id"])
	assert.NotEmpty(t, events[0].ResumeToken)

	assert.Equal(t, OpUpdate, events[1].Op)
	assert.Equal(t, "o1", events[1].ID)
	assert.Contains(t, events[1].Update, "$set")

	assert.Equal(t, OpDelete, events[2].Op)
	assert.Greater(t, events[2].Timestamp, events[0].Timestamp)
}
