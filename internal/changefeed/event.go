package changefeed

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Op is the kind of a change-feed event.
type Op string

const (
	OpInsert  Op = "insert"
	OpReplace Op = "replace"
	OpUpdate  Op = "update"
	OpDelete  Op = "delete"
	OpCommand Op = "command"
)

// Event is one operation read from the change feed.
type Event struct {
	Op        Op
	Namespace string
	// Timestamp orders events: cluster time seconds in the high 32 bits and
	// the increment in the low 32 bits.
	Timestamp int64
	ID        any
	// Document is the full document of inserts and replaces.
	Document map[string]any
	// Update holds the $set and $unset operators of updates.
	Update map[string]any
	// Command is the database command of command events.
	Command map[string]any
	// ResumeToken restarts the change stream after this event.
	ResumeToken []byte
}

// TimestampOf packs a BSON timestamp into an int64.
func TimestampOf(ts primitive.Timestamp) int64 {
	return int64(uint64(ts.T)<<32 | uint64(ts.I))
}

// changeEvent is the subset of a MongoDB change event graphsync reads.
type changeEvent struct {
	OperationType string `bson:"operationType"`
	NS            struct {
		DB   string `bson:"db"`
		Coll string `bson:"coll"`
	} `bson:"ns"`
	DocumentKey       bson.M              `bson:"documentKey"`
	FullDocument      bson.M              `bson:"fullDocument"`
	ClusterTime       primitive.Timestamp `bson:"clusterTime"`
	UpdateDescription *struct {
		UpdatedFields bson.M   `bson:"updatedFields"`
		RemovedFields []string `bson:"removedFields"`
	} `bson:"updateDescription"`
}

// toEvent converts a change event. The second return value is false for
// operation types that do not affect the graph.
func (c *changeEvent) toEvent() (Event, bool) {
	ev := Event{
		Namespace: c.NS.DB + "." + c.NS.Coll,
		Timestamp: TimestampOf(c.ClusterTime),
	}
	if c.DocumentKey != nil {
		ev.ID = c.DocumentKey["_id"]
	}

	switch c.OperationType {
	case "insert", "replace":
		if c.FullDocument == nil {
			return Event{}, false
		}
		ev.Op = Op(c.OperationType)
		ev.Document = c.FullDocument
	case "update":
		if c.FullDocument != nil {
			ev.Op = OpReplace
			ev.Document = c.FullDocument
			return ev, true
		}
		spec := updateSpec(c)
		if spec == nil {
			return Event{}, false
		}
		ev.Op = OpUpdate
		ev.Update = spec
	case "delete":
		ev.Op = OpDelete
	case "drop":
		ev.Op = OpCommand
		ev.Command = map[string]any{"drop": c.NS.Coll}
	case "dropDatabase":
		ev.Op = OpCommand
		ev.Namespace = c.NS.DB + ".$cmd"
		ev.Command = map[string]any{"dropDatabase": 1}
	default:
		return Event{}, false
	}
	return ev, true
}

func updateSpec(c *changeEvent) map[string]any {
	if c.UpdateDescription == nil {
		return nil
	}
	spec := map[string]any{}
	if len(c.UpdateDescription.UpdatedFields) > 0 {
		spec["$set"] = map[string]any(c.UpdateDescription.UpdatedFields)
	}
	if len(c.UpdateDescription.RemovedFields) > 0 {
		unset := make(map[string]any, len(c.UpdateDescription.RemovedFields))
		for _, f := range c.UpdateDescription.RemovedFields {
			unset[f] = ""
		}
		spec["$unset"] = unset
	}
	if len(spec) == 0 {
		return nil
	}
	return spec
}
