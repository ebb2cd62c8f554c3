package changefeed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zero-day-ai/graphsync/internal/document"
	"github.com/zero-day-ai/graphsync/internal/observability"
	"github.com/zero-day-ai/graphsync/internal/types"
)

// MongoSource reads documents and change events from MongoDB.
type MongoSource struct {
	client       *mongo.Client
	namespaces   map[string]bool
	fullDocument bool
	logger       *observability.TracedLogger
}

// MongoOption configures a MongoSource.
type MongoOption func(*MongoSource)

// WithNamespaces restricts Watch to the given "<db>.<collection>" namespaces.
// Without it every namespace is watched.
func WithNamespaces(namespaces ...string) MongoOption {
	return func(s *MongoSource) {
		for _, ns := range namespaces {
			s.namespaces[ns] = true
		}
	}
}

// WithFullDocument asks the server for the post-image of updated documents,
// which turns updates into replaces.
func WithFullDocument(enabled bool) MongoOption {
	return func(s *MongoSource) {
		s.fullDocument = enabled
	}
}

// WithSourceLogger sets the logger.
func WithSourceLogger(logger *observability.TracedLogger) MongoOption {
	return func(s *MongoSource) {
		s.logger = logger
	}
}

// NewMongoSource creates a source over a connected client.
func NewMongoSource(client *mongo.Client, opts ...MongoOption) *MongoSource {
	s := &MongoSource{
		client:     client,
		namespaces: make(map[string]bool),
		logger:     observability.NewTracedLogger(slog.Default().Handler(), "changefeed"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dump streams every document of a collection, for BulkUpsert.
func (s *MongoSource) Dump(ctx context.Context, namespace string) (*CursorStream, error) {
	db, coll, err := splitMongoNamespace(namespace)
	if err != nil {
		return nil, err
	}
	cursor, err := s.client.Database(db).Collection(coll).Find(ctx, bson.D{})
	if err != nil {
		return nil, types.WrapRetryableError(types.SOURCE_FAILED,
			fmt.Sprintf("failed to open a cursor on %s", namespace), err).
			WithContext("namespace", namespace)
	}
	return NewCursorStream(cursor), nil
}

// Watch tails the change stream and calls handle for every event of a
// watched namespace, in order. It resumes after resumeToken when one is
// given and returns when ctx is done or handle fails.
func (s *MongoSource) Watch(ctx context.Context, resumeToken []byte, handle func(context.Context, Event) error) error {
	opts := options.ChangeStream()
	if s.fullDocument {
		opts.SetFullDocument(options.UpdateLookup)
	}
	if len(resumeToken) > 0 {
		opts.SetResumeAfter(bson.Raw(resumeToken))
	}

	stream, err := s.client.Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return types.WrapRetryableError(types.SOURCE_FAILED, "failed to open the change stream", err)
	}
	defer stream.Close(context.Background())

	s.logger.Info(ctx, "watching change stream",
		"namespaces", len(s.namespaces),
		"resumed", len(resumeToken) > 0)

	for stream.Next(ctx) {
		var ce changeEvent
		if err := stream.Decode(&ce); err != nil {
			return types.WrapError(types.SOURCE_FAILED, "failed to decode change event", err)
		}
		ev, ok := ce.toEvent()
		if !ok || !s.watches(ev) {
			continue
		}
		ev.ResumeToken = append([]byte(nil), stream.ResumeToken()...)
		if err := handle(ctx, ev); err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := stream.Err(); err != nil {
		return types.WrapRetryableError(types.SOURCE_FAILED, "change stream failed", err)
	}
	return nil
}

func (s *MongoSource) watches(ev Event) bool {
	if len(s.namespaces) == 0 {
		return true
	}
	if _, ok := ev.Command["dropDatabase"]; ok {
		db := strings.TrimSuffix(ev.Namespace, ".$cmd") + "."
		for ns := range s.namespaces {
			if strings.HasPrefix(ns, db) {
				return true
			}
		}
		return false
	}
	return s.namespaces[ev.Namespace]
}

func splitMongoNamespace(namespace string) (db, coll string, err error) {
	if _, _, err := document.SplitNamespace(namespace); err != nil {
		return "", "", err
	}
	idx := strings.IndexByte(namespace, '.')
	return namespace[:idx], namespace[idx+1:], nil
}
