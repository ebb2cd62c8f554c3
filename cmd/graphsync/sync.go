package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zero-day-ai/graphsync/internal/api"
	"github.com/zero-day-ai/graphsync/internal/changefeed"
	"github.com/zero-day-ai/graphsync/internal/types"
	"github.com/zero-day-ai/graphsync/pkg/version"
)

var syncFlags struct {
	dump       bool
	noResume   bool
	apiEnabled bool
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Tail the change stream and mirror it into the graph",
	Long: `Tail the MongoDB change stream and apply every insert, replace, update,
delete and drop to the graph.

The connector resumes after the last checkpoint. Without one, --dump (or
mongo.dump_on_start) first bulk-loads every configured namespace.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncFlags.dump, "dump", false, "Bulk-load configured namespaces when no checkpoint exists")
	syncCmd.Flags().BoolVar(&syncFlags.noResume, "no-resume", false, "Ignore stored checkpoints and start from the current position")
	syncCmd.Flags().BoolVar(&syncFlags.apiEnabled, "api", false, "Serve the admin API (overrides api.enabled)")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := appConfig

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.openCheckpoints(); err != nil {
		return err
	}
	if err := rt.openMongo(ctx); err != nil {
		return err
	}

	deferred := cfg.Sync.AutoCommitInterval > 0
	source := changefeed.NewMongoSource(rt.mongo,
		changefeed.WithNamespaces(cfg.Mongo.Namespaces...),
		changefeed.WithFullDocument(cfg.Mongo.FullDocument),
		changefeed.WithSourceLogger(rt.logger.With("component", "changefeed")),
	)
	dispatcher := changefeed.NewDispatcher(rt.docs, rt.checkpoints,
		changefeed.WithDeferredCheckpoints(deferred),
		changefeed.WithSkipMalformed(cfg.Sync.SkipMalformed),
		changefeed.WithDispatcherLogger(rt.logger.With("component", "dispatcher")),
	)

	var resumeToken []byte
	if !syncFlags.noResume {
		resume, err := changefeed.ResumePoint(ctx, rt.checkpoints)
		if err != nil {
			return err
		}
		if resume != nil {
			resumeToken = resume.ResumeToken
			rt.logger.Info(ctx, "resuming change stream",
				"namespace", resume.Namespace,
				"ts", resume.Timestamp)
		}
	}

	if resumeToken == nil && (syncFlags.dump || cfg.Mongo.DumpOnStart) {
		if err := dumpNamespaces(ctx, rt, source, cfg.Mongo.Namespaces, nil); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return source.Watch(gctx, resumeToken, dispatcher.Apply)
	})

	if deferred {
		g.Go(func() error {
			return flushPeriodically(gctx, rt, dispatcher, cfg.Sync.AutoCommitInterval)
		})
	}

	if cfg.API.Enabled || syncFlags.apiEnabled {
		opts := []api.Option{
			api.WithCheckpoints(rt.checkpoints),
			api.WithLogger(rt.logger.With("component", "api")),
			api.WithVersion(version.Version),
		}
		for name, check := range rt.healthChecks() {
			opts = append(opts, api.WithHealthCheck(name, check))
		}
		if cfg.Metrics.Enabled && cfg.Metrics.Provider == "prometheus" {
			opts = append(opts, api.WithMetricsHandler(promhttp.Handler()))
		}
		server := api.NewServer(rt.docs, opts...)
		g.Go(func() error {
			return server.ListenAndServe(gctx, cfg.API.Addr)
		})
	}

	err = g.Wait()

	// Persist what was applied before the stream stopped.
	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if flushErr := dispatcher.Flush(flushCtx); flushErr != nil {
		rt.logger.Error(flushCtx, "final flush failed", "error", flushErr)
		if err == nil || errors.Is(err, context.Canceled) {
			err = flushErr
		}
	}

	applied, skipped := dispatcher.Stats()
	rt.logger.Info(flushCtx, "sync stopped", "applied", applied, "skipped", skipped)

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// flushPeriodically commits buffered writes and saves their checkpoints on
// every tick until ctx is done.
func flushPeriodically(ctx context.Context, rt *runtime, dispatcher *changefeed.Dispatcher, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := dispatcher.Flush(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if types.IsRetryable(err) {
					rt.logger.Warn(ctx, "periodic flush failed, retrying on next tick", "error", err)
					continue
				}
				return fmt.Errorf("periodic flush: %w", err)
			}
		}
	}
}
