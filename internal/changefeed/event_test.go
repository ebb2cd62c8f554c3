package changefeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func change(op, db, coll string) *changeEvent {
	c := &changeEvent{OperationType: op, ClusterTime: primitive.Timestamp{T: 2, I: 3}}
	c.NS.DB = db
	c.NS.Coll = coll
	return c
}

func TestTimestampOf(t *testing.T) {
	assert.Equal(t, int64(2<<32|3), TimestampOf(primitive.Timestamp{T: 2, I: 3}))
	assert.Equal(t, int64(0), TimestampOf(primitive.Timestamp{}))
}

func TestChangeEvent_ToEvent(t *testing.T) {
	ts := int64(2<<32 | 3)

	insert := change("insert", "db", "Person")
	insert.DocumentKey = bson.M{"_id": "a1"}
	insert.FullDocument = bson.M{"_id": "a1", "name": "Alice"}

	update := change("update", "db", "Person")
	update.DocumentKey = bson.M{"_id": "a1"}
	update.UpdateDescription = &struct {
		UpdatedFields bson.M   `bson:"updatedFields"`
		RemovedFields []string `bson:"removedFields"`
	}{UpdatedFields: bson.M{"address.city": "Y"}, RemovedFields: []string{"age"}}

	lookup := change("update", "db", "Person")
	lookup.DocumentKey = bson.M{"_id": "a1"}
	lookup.FullDocument = bson.M{"_id": "a1", "name": "Bob"}

	del := change("delete", "db", "Person")
	del.DocumentKey = bson.M{"_id": "a1"}

	tests := []struct {
		name string
		in   *changeEvent
		want Event
		ok   bool
	}{
		{"insert", insert, Event{Op: OpInsert, Namespace: "db.Person", Timestamp: ts, ID: "a1", Document: insert.FullDocument}, true},
		{"update", update, Event{Op: OpUpdate, Namespace: "db.Person", Timestamp: ts, ID: "a1", Update: map[string]any{
			"$set":   map[string]any{"address.city": "Y"},
			"$unset": map[string]any{"age": ""},
		}}, true},
		{"update with full document", lookup, Event{Op: OpReplace, Namespace: "db.Person", Timestamp: ts, ID: "a1", Document: lookup.FullDocument}, true},
		{"delete", del, Event{Op: OpDelete, Namespace: "db.Person", Timestamp: ts, ID: "a1"}, true},
		{"drop", change("drop", "db", "Person"), Event{Op: OpCommand, Namespace: "db.Person", Timestamp: ts, Command: map[string]any{"drop": "Person"}}, true},
		{"drop database", change("dropDatabase", "db", ""), Event{Op: OpCommand, Namespace: "db.$cmd", Timestamp: ts, Command: map[string]any{"dropDatabase": 1}}, true},
		{"invalidate", change("invalidate", "db", "Person"), Event{}, false},
		{"insert without document", change("insert", "db", "Person"), Event{}, false},
		{"empty update", change("update", "db", "Person"), Event{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.in.toEvent()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMongoSource_Watches(t *testing.T) {
	s := NewMongoSource(nil, WithNamespaces("db.Person", "shop.Order"))

	assert.True(t, s.watches(Event{Namespace: "db.Person"}))
	assert.False(t, s.watches(Event{Namespace: "db.Other"}))
	assert.True(t, s.watches(Event{Namespace: "shop.$cmd", Command: map[string]any{"dropDatabase": 1}}))
	assert.False(t, s.watches(Event{Namespace: "logs.$cmd", Command: map[string]any{"dropDatabase": 1}}))

	all := NewMongoSource(nil)
	assert.True(t, all.watches(Event{Namespace: "any.thing"}))
}

func TestSplitMongoNamespace(t *testing.T) {
	db, coll, err := splitMongoNamespace("shop.orders.archive")
	assert.NoError(t, err)
	assert.Equal(t, "shop", db)
	assert.Equal(t, "orders.archive", coll)

	_, _, err = splitMongoNamespace("nodot")
	assert.Error(t, err)
}
