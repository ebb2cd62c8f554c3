package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/zero-day-ai/graphsync/cmd/graphsync/internal"
	"github.com/zero-day-ai/graphsync/internal/checkpoint"
	"github.com/zero-day-ai/graphsync/internal/config"
	"github.com/zero-day-ai/graphsync/internal/constraint"
	"github.com/zero-day-ai/graphsync/internal/docmanager"
	"github.com/zero-day-ai/graphsync/internal/graph"
	"github.com/zero-day-ai/graphsync/internal/observability"
	"github.com/zero-day-ai/graphsync/internal/types"
)

const shutdownTimeout = 10 * time.Second

// runtime owns the connections shared by the commands. Close releases
// everything that was opened, in reverse order.
type runtime struct {
	cfg         *config.Config
	logger      *observability.TracedLogger
	graph       *graph.Neo4jClient
	redis       *redis.Client
	registry    constraint.Registry
	constraints *constraint.Manager
	tracer      *sdktrace.TracerProvider
	meter       metric.MeterProvider
	manager     *docmanager.DocManager
	docs        docmanager.Manager
	checkpoints checkpoint.Store
	mongo       *mongo.Client

	closers []func(context.Context) error
}

// newRuntime sets up logging, telemetry, the graph store, the constraint
// registry and a traced DocManager.
func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}
	if err := rt.init(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) init(ctx context.Context) error {
	out, closeOut, err := observability.OpenOutput(rt.cfg.Logging.Output)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to open log output", err)
	}
	rt.onClose(func(context.Context) error { return closeOut() })

	handler, err := observability.NewHandler(rt.cfg.Logging, out)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "invalid logging configuration", err)
	}
	if globalFlags.IsVerbose() {
		handler = observability.NewTextHandler(out, slog.LevelDebug)
	}
	slog.SetDefault(slog.New(handler))
	rt.logger = observability.NewTracedLogger(handler, "graphsync")

	rt.tracer, err = observability.InitTracing(ctx, rt.cfg.Tracing)
	if err != nil {
		return err
	}
	rt.onClose(func(ctx context.Context) error { return observability.ShutdownTracing(ctx, rt.tracer) })

	rt.meter, err = observability.InitMetrics(ctx, rt.cfg.Metrics)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to initialize metrics", err)
	}
	rt.onClose(func(ctx context.Context) error { return observability.ShutdownMetrics(ctx, rt.meter) })

	metrics, err := observability.NewSyncMetrics(rt.meter.Meter(observability.TracerName))
	if err != nil {
		return internal.WrapError(internal.ExitError, "failed to create metrics", err)
	}

	rt.graph, err = graph.NewNeo4jClient(rt.cfg.Neo4j.GraphClientConfig())
	if err != nil {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "invalid neo4j configuration", err)
	}
	if err := rt.graph.Connect(ctx); err != nil {
		return types.WrapRetryableError(types.STORE_COMMUNICATION_FAILED, "failed to connect to neo4j", err)
	}
	rt.onClose(rt.graph.Close)
	rt.logger.Info(ctx, "connected to graph store", "uri", rt.cfg.Neo4j.URI)

	if err := rt.openRegistry(ctx); err != nil {
		return err
	}
	rt.constraints = constraint.NewManager(rt.graph,
		constraint.WithRegistry(rt.registry),
		constraint.WithLogger(rt.logger.With("component", "constraint").Slog()),
	)

	rt.manager, err = docmanager.New(rt.graph, rt.cfg.Sync.DocManagerConfig(),
		docmanager.WithConstraintManager(rt.constraints),
		docmanager.WithMetrics(metrics),
		docmanager.WithLogger(rt.logger.With("component", "docmanager")),
	)
	if err != nil {
		return err
	}
	rt.docs = docmanager.NewTracedDocManager(rt.manager, rt.tracer.Tracer(observability.TracerName))
	rt.onClose(rt.docs.Stop)

	return nil
}

func (rt *runtime) openRegistry(ctx context.Context) error {
	if rt.cfg.Constraints.Registry != "redis" {
		rt.registry = constraint.NewMemoryRegistry()
		return nil
	}

	rc := rt.cfg.Constraints.Redis
	rt.redis = redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	rt.onClose(func(context.Context) error { return rt.redis.Close() })

	if err := rt.redis.Ping(ctx).Err(); err != nil {
		return types.WrapRetryableError(types.CONSTRAINT_FAILED, "failed to reach the constraint registry", err).
			WithContext("addr", rc.Addr)
	}
	rt.registry = constraint.NewRedisRegistry(rt.redis, rc.Key)
	return nil
}

// openCheckpoints opens the badger checkpoint store. Only commands that
// write checkpoints open it; badger holds a directory lock.
func (rt *runtime) openCheckpoints() error {
	store, err := checkpoint.Open(rt.cfg.Checkpoint.StoreOptions())
	if err != nil {
		return err
	}
	rt.checkpoints = store
	rt.onClose(func(context.Context) error { return store.Close() })
	return nil
}

// openMongo connects to the change-feed source.
func (rt *runtime) openMongo(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(rt.cfg.Mongo.URI))
	if err != nil {
		return types.WrapRetryableError(types.SOURCE_FAILED, "failed to connect to mongodb", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return types.WrapRetryableError(types.SOURCE_FAILED, "failed to reach mongodb", err)
	}
	rt.mongo = client
	rt.onClose(client.Disconnect)
	rt.logger.Info(ctx, "connected to change-feed source", "uri", observability.RedactURI(rt.cfg.Mongo.URI))
	return nil
}

// healthChecks reports every dependency the runtime opened.
func (rt *runtime) healthChecks() map[string]func(context.Context) types.HealthStatus {
	checks := map[string]func(context.Context) types.HealthStatus{
		"graph": rt.graph.Health,
	}
	if rt.redis != nil {
		checks["constraint_registry"] = func(ctx context.Context) types.HealthStatus {
			if err := rt.redis.Ping(ctx).Err(); err != nil {
				return types.Unhealthy(err.Error())
			}
			return types.Healthy("reachable")
		}
	}
	if rt.mongo != nil {
		checks["source"] = func(ctx context.Context) types.HealthStatus {
			if err := rt.mongo.Ping(ctx, nil); err != nil {
				return types.Unhealthy(err.Error())
			}
			return types.Healthy("reachable")
		}
	}
	return checks
}

func (rt *runtime) onClose(fn func(context.Context) error) {
	rt.closers = append(rt.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
