// Package checkpoint persists the change-feed position reached per namespace
// so a restarted connector resumes where it stopped.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/zero-day-ai/graphsync/internal/types"
)

const keyPrefix = "checkpoint/"

// Checkpoint is the last change-feed position applied for a namespace.
type Checkpoint struct {
	Namespace string `msgpack:"namespace" json:"namespace"`
	// Timestamp is the _ts of the last applied operation.
	Timestamp int64 `msgpack:"ts" json:"ts"`
	// ResumeToken is the opaque change stream token of that operation.
	ResumeToken []byte    `msgpack:"resume_token,omitempty" json:"resume_token,omitempty"`
	UpdatedAt   time.Time `msgpack:"updated_at" json:"updated_at"`
}

// Store reads and writes checkpoints.
type Store interface {
	Save(ctx context.Context, cp Checkpoint) error
	// Load returns nil when the namespace has no checkpoint.
	Load(ctx context.Context, namespace string) (*Checkpoint, error)
	List(ctx context.Context) ([]Checkpoint, error)
	Close() error
}

// Options configures a BadgerStore.
type Options struct {
	// Path is the badger data directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
}

// BadgerStore keeps msgpack encoded checkpoints in badger.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// Open opens or creates a badger checkpoint store.
func Open(opts Options) (*BadgerStore, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, types.NewError(types.CHECKPOINT_FAILED, "checkpoint path is empty")
		}
		bopts = badger.DefaultOptions(opts.Path)
	}

	db, err := badger.Open(bopts.WithLogger(nil))
	if err != nil {
		return nil, types.WrapError(types.CHECKPOINT_FAILED,
			fmt.Sprintf("failed to open checkpoint store at %q", opts.Path), err)
	}
	return &BadgerStore{db: db}, nil
}

func key(namespace string) []byte {
	return []byte(keyPrefix + namespace)
}

// Save stores cp, replacing the namespace's previous checkpoint.
func (s *BadgerStore) Save(ctx context.Context, cp Checkpoint) error {
	if cp.Namespace == "" {
		return types.NewError(types.CHECKPOINT_FAILED, "checkpoint has no namespace")
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}

	data, err := msgpack.Marshal(&cp)
	if err != nil {
		return types.WrapError(types.CHECKPOINT_FAILED, "failed to encode checkpoint", err).
			WithContext("namespace", cp.Namespace)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(cp.Namespace), data)
	})
	if err != nil {
		return types.WrapRetryableError(types.CHECKPOINT_FAILED, "failed to save checkpoint", err).
			WithContext("namespace", cp.Namespace)
	}
	return nil
}

// Load implements Store.
func (s *BadgerStore) Load(ctx context.Context, namespace string) (*Checkpoint, error) {
	var cp *Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(namespace))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			cp = &Checkpoint{}
			return msgpack.Unmarshal(val, cp)
		})
	})
	if err != nil {
		return nil, types.WrapError(types.CHECKPOINT_FAILED, "failed to load checkpoint", err).
			WithContext("namespace", namespace)
	}
	return cp, nil
}

// List returns every checkpoint ordered by namespace.
func (s *BadgerStore) List(ctx context.Context) ([]Checkpoint, error) {
	var out []Checkpoint
	prefix := []byte(keyPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var cp Checkpoint
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &cp)
			}); err != nil {
				return err
			}
			out = append(out, cp)
		}
		return nil
	})
	if err != nil {
		return nil, types.WrapError(types.CHECKPOINT_FAILED, "failed to list checkpoints", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Namespace < out[j].Namespace })
	return out, nil
}

// Close releases the badger database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
