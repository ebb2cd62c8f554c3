package changefeed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zero-day-ai/graphsync/internal/checkpoint"
	"github.com/zero-day-ai/graphsync/internal/observability"
	"github.com/zero-day-ai/graphsync/internal/types"
)

// Applier applies change-feed operations. *docmanager.DocManager implements it.
type Applier interface {
	Upsert(ctx context.Context, doc any, namespace string, ts int64) error
	Update(ctx context.Context, id any, spec map[string]any, namespace string, ts int64) error
	Remove(ctx context.Context, id any, namespace string, ts int64) error
	HandleCommand(ctx context.Context, cmd map[string]any, namespace string, ts int64) error
	Commit(ctx context.Context) error
}

// Dispatcher routes events to an Applier and records a checkpoint for every
// applied event.
type Dispatcher struct {
	applier       Applier
	checkpoints   checkpoint.Store
	deferred      bool
	skipMalformed bool
	logger        *observability.TracedLogger

	mu      sync.Mutex
	unsaved map[string]checkpoint.Checkpoint
	applied int
	skipped int
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDeferredCheckpoints holds checkpoints in memory until Flush has
// committed the applier. Use it when the applier buffers writes.
func WithDeferredCheckpoints(enabled bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.deferred = enabled
	}
}

// WithSkipMalformed logs and skips events whose document or update cannot
// be mapped instead of stopping on them.
func WithSkipMalformed(enabled bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.skipMalformed = enabled
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(logger *observability.TracedLogger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a Dispatcher. store may be nil to disable
// checkpoints.
func NewDispatcher(applier Applier, store checkpoint.Store, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		applier:     applier,
		checkpoints: store,
		logger:      observability.NewTracedLogger(slog.Default().Handler(), "dispatcher"),
		unsaved:     make(map[string]checkpoint.Checkpoint),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Apply applies ev and records its position.
func (d *Dispatcher) Apply(ctx context.Context, ev Event) error {
	if err := d.route(ctx, ev); err != nil {
		if !d.skipMalformed || !mappingFailure(err) {
			return err
		}
		d.logger.Warn(ctx, "skipping event",
			"namespace", ev.Namespace,
			"op", string(ev.Op),
			"ts", ev.Timestamp,
			"error", err)
		d.mu.Lock()
		d.skipped++
		d.mu.Unlock()
	} else {
		d.mu.Lock()
		d.applied++
		d.mu.Unlock()
	}
	return d.record(ctx, ev)
}

func (d *Dispatcher) route(ctx context.Context, ev Event) error {
	switch ev.Op {
	case OpInsert, OpReplace:
		return d.applier.Upsert(ctx, ev.Document, ev.Namespace, ev.Timestamp)
	case OpUpdate:
		return d.applier.Update(ctx, ev.ID, ev.Update, ev.Namespace, ev.Timestamp)
	case OpDelete:
		return d.applier.Remove(ctx, ev.ID, ev.Namespace, ev.Timestamp)
	case OpCommand:
		return d.applier.HandleCommand(ctx, ev.Command, ev.Namespace, ev.Timestamp)
	default:
		return types.NewError(types.SOURCE_FAILED, fmt.Sprintf("unknown event op %q", ev.Op)).
			WithContext("namespace", ev.Namespace)
	}
}

func mappingFailure(err error) bool {
	switch types.CodeOf(err) {
	case types.MALFORMED_DOCUMENT, types.UPDATE_TRANSLATION_FAILED:
		return true
	}
	return false
}

func (d *Dispatcher) record(ctx context.Context, ev Event) error {
	if d.checkpoints == nil {
		return nil
	}
	cp := checkpoint.Checkpoint{
		Namespace:   ev.Namespace,
		Timestamp:   ev.Timestamp,
		ResumeToken: ev.ResumeToken,
	}
	if d.deferred {
		d.mu.Lock()
		d.unsaved[ev.Namespace] = cp
		d.mu.Unlock()
		return nil
	}
	return d.checkpoints.Save(ctx, cp)
}

// Flush commits the applier and then saves the deferred checkpoints.
func (d *Dispatcher) Flush(ctx context.Context) error {
	if err := d.applier.Commit(ctx); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.checkpoints == nil {
		return nil
	}
	for ns, cp := range d.unsaved {
		if err := d.checkpoints.Save(ctx, cp); err != nil {
			return err
		}
		delete(d.unsaved, ns)
	}
	return nil
}

// Stats returns the number of applied and skipped events.
func (d *Dispatcher) Stats() (applied, skipped int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applied, d.skipped
}

// ResumePoint returns the most recent checkpoint with a resume token, or nil.
func ResumePoint(ctx context.Context, store checkpoint.Store) (*checkpoint.Checkpoint, error) {
	list, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	var latest *checkpoint.Checkpoint
	for i := range list {
		if len(list[i].ResumeToken) == 0 {
			continue
		}
		if latest == nil || list[i].Timestamp > latest.Timestamp {
			latest = &list[i]
		}
	}
	return latest, nil
}
