package docmanager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zero-day-ai/graphsync/internal/constraint"
	"github.com/zero-day-ai/graphsync/internal/document"
	"github.com/zero-day-ai/graphsync/internal/graph"
	"github.com/zero-day-ai/graphsync/internal/mapping"
	"github.com/zero-day-ai/graphsync/internal/observability"
	"github.com/zero-day-ai/graphsync/internal/types"
)

// DocManager applies document operations to a graph store.
//
// Thread-safety: all operations are serialized by an internal mutex, which
// the auto-commit schedule shares.
type DocManager struct {
	client      graph.GraphClient
	cfg         Config
	normalizer  *document.Normalizer
	builder     *mapping.Builder
	updater     *mapping.Updater
	constraints *constraint.Manager
	metrics     *observability.SyncMetrics
	logger      *observability.TracedLogger

	mu        sync.Mutex
	buffered  bool
	pending   []graph.Statement
	docs      int
	scheduler *cron.Cron
}

// Option configures a DocManager.
type Option func(*DocManager)

// WithConstraintManager replaces the default constraint manager, which keeps
// its registry in memory.
func WithConstraintManager(cm *constraint.Manager) Option {
	return func(m *DocManager) {
		m.constraints = cm
	}
}

// WithMetrics records operation counters.
func WithMetrics(metrics *observability.SyncMetrics) Option {
	return func(m *DocManager) {
		m.metrics = metrics
	}
}

// WithLogger sets the logger.
func WithLogger(logger *observability.TracedLogger) Option {
	return func(m *DocManager) {
		m.logger = logger
	}
}

// WithBuilder replaces the default graph builder.
func WithBuilder(b *mapping.Builder) Option {
	return func(m *DocManager) {
		m.builder = b
	}
}

// WithFormatter replaces the value formatter applied to documents, update
// operands and identifiers.
func WithFormatter(f document.Formatter) Option {
	return func(m *DocManager) {
		m.normalizer = document.NewNormalizer(
			document.WithFormatter(f),
			document.WithUniqueKey(m.cfg.UniqueKey),
		)
	}
}

// New creates a DocManager writing through client. A positive
// cfg.AutoCommitInterval starts the auto-commit schedule; call Stop to end it.
func New(client graph.GraphClient, cfg Config, opts ...Option) (*DocManager, error) {
	if client == nil {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED, "graph client is nil")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &DocManager{
		client:     client,
		cfg:        cfg,
		normalizer: document.NewNormalizer(document.WithUniqueKey(cfg.UniqueKey)),
		builder:    mapping.NewBuilder(),
		logger:     observability.NewTracedLogger(slog.Default().Handler(), "docmanager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.constraints == nil {
		m.constraints = constraint.NewManager(client, constraint.WithLogger(m.logger.Slog()))
	}
	m.updater = mapping.NewUpdater(mapping.WithOrdinalSource(&flushingOrdinals{
		m:     m,
		inner: mapping.NewGraphOrdinalSource(client),
	}))

	if cfg.AutoCommitInterval > 0 {
		m.buffered = true
		m.scheduler = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		spec := fmt.Sprintf("@every %s", cfg.AutoCommitInterval)
		if _, err := m.scheduler.AddFunc(spec, m.autoCommit); err != nil {
			return nil, types.WrapError(types.CONFIG_VALIDATION_FAILED,
				"invalid auto-commit interval", err)
		}
		m.scheduler.Start()
	}

	return m, nil
}

// Config returns the effective configuration.
func (m *DocManager) Config() Config {
	return m.cfg
}

// Upsert writes doc from namespace as one transaction, replacing any earlier
// version of the same document.
func (m *DocManager) Upsert(ctx context.Context, doc any, namespace string, ts int64) error {
	stmts, normalized, err := m.prepareUpsert(ctx, doc, namespace, ts)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writeLocked(ctx, stmts, 1); err != nil {
		return withDocument(err, namespace, normalized.ID)
	}
	m.metrics.DocumentsUpserted(ctx, namespace, 1)
	m.logger.Debug(ctx, "document upserted",
		"namespace", namespace,
		"document_id", normalized.ID,
		"statements", len(stmts))
	return nil
}

// prepareUpsert normalizes and maps doc and makes sure every label it writes
// is constrained.
func (m *DocManager) prepareUpsert(ctx context.Context, doc any, namespace string, ts int64) ([]graph.Statement, *document.Normalized, error) {
	normalized, err := m.normalizer.Normalize(doc, namespace)
	if err != nil {
		return nil, nil, err
	}
	built, err := m.builder.Build(normalized, ts)
	if err != nil {
		return nil, normalized, err
	}
	if err := m.ensureConstraints(ctx, built.DocTypes); err != nil {
		return nil, normalized, withDocument(err, namespace, normalized.ID)
	}
	return built.Statements(), normalized, nil
}

func (m *DocManager) ensureConstraints(ctx context.Context, labels []string) error {
	created, err := m.constraints.Ensure(ctx, labels)
	m.metrics.ConstraintsCreated(ctx, created)
	return err
}

// Update applies a Mongo style update spec to the document id. A spec
// without operators replaces the document and is applied as an upsert.
func (m *DocManager) Update(ctx context.Context, id any, spec map[string]any, namespace string, ts int64) error {
	_, label, err := document.SplitNamespace(namespace)
	if err != nil {
		return err
	}
	docID, err := m.formatID(id, namespace)
	if err != nil {
		return err
	}

	parsed, err := mapping.ParseUpdateSpecWith(spec, m.normalizer.Formatter())
	if err != nil {
		return withDocument(err, namespace, docID)
	}
	if parsed.IsReplacement() {
		doc := make(map[string]any, len(parsed.Replacement)+1)
		for k, v := range parsed.Replacement {
			doc[k] = v
		}
		doc[m.normalizer.UniqueKey()] = id
		return m.Upsert(ctx, doc, namespace, ts)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	translated, err := m.updater.Translate(ctx, parsed, docID, label, ts)
	if err != nil {
		return withDocument(err, namespace, docID)
	}
	if err := m.ensureConstraints(ctx, translated.DocTypes); err != nil {
		return withDocument(err, namespace, docID)
	}
	if err := m.writeLocked(ctx, translated.Statements, 1); err != nil {
		return withDocument(err, namespace, docID)
	}

	m.metrics.DocumentUpdated(ctx, namespace)
	m.logger.Debug(ctx, "document updated",
		"namespace", namespace,
		"document_id", docID,
		"operations", len(parsed.Ops),
		"statements", len(translated.Statements))
	return nil
}

// Remove deletes the root node of document id together with its
// relationships. Nested nodes survive unless CascadeRemove is set.
func (m *DocManager) Remove(ctx context.Context, id any, namespace string, ts int64) error {
	_, label, err := document.SplitNamespace(namespace)
	if err != nil {
		return err
	}
	docID, err := m.formatID(id, namespace)
	if err != nil {
		return err
	}

	stmts, err := m.removeStatements(label, docID)
	if err != nil {
		return withDocument(types.WrapError(types.STORE_COMMUNICATION_FAILED,
			"failed to build the remove statement", err), namespace, docID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writeLocked(ctx, stmts, 1); err != nil {
		return withDocument(err, namespace, docID)
	}
	m.metrics.DocumentRemoved(ctx, namespace)
	m.logger.Debug(ctx, "document removed",
		"namespace", namespace,
		"document_id", docID,
		"ts", ts,
		"scope", string(m.cfg.RemoveScope))
	return nil
}

func (m *DocManager) removeStatements(label, docID string) ([]graph.Statement, error) {
	var stmts []graph.Statement
	rootLabel := label
	if m.cfg.RemoveScope == RemoveScopeAny {
		rootLabel = ""
	}
	if m.cfg.CascadeRemove {
		stmts = append(stmts, graph.Statement{
			Cypher: removeChildrenCypher(rootLabel),
			Params: map[string]any{"id": docID},
		})
	}

	if m.cfg.RemoveScope == RemoveScopeAny {
		stmt, err := removeAnyStatement(docID)
		if err != nil {
			return nil, err
		}
		return append(stmts, stmt), nil
	}
	return append(stmts, graph.Statement{
		Cypher: removeRootCypher(label),
		Params: map[string]any{"id": docID},
	}), nil
}

// HandleCommand applies a database command from the change feed. "drop"
// deletes every document of the dropped collection. Other commands,
// dropDatabase included, do not change the graph: the database part of a
// namespace is not stored.
func (m *DocManager) HandleCommand(ctx context.Context, cmd map[string]any, namespace string, ts int64) error {
	if raw, ok := cmd["drop"]; ok {
		collection, ok := raw.(string)
		if !ok || collection == "" {
			return types.NewError(types.MALFORMED_DOCUMENT, "drop command needs a collection name").
				WithContext("namespace", namespace)
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		stmts := []graph.Statement{
			{Cypher: dropChildrenCypher(collection), Params: map[string]any{}},
			{Cypher: dropRootsCypher(collection), Params: map[string]any{}},
		}
		if err := m.writeLocked(ctx, stmts, 0); err != nil {
			return err
		}
		m.logger.Info(ctx, "collection dropped",
			"namespace", namespace,
			"collection", collection,
			"ts", ts)
		return nil
	}

	if _, ok := cmd["dropDatabase"]; ok {
		m.logger.Info(ctx, "ignoring dropDatabase", "namespace", namespace, "ts", ts)
		return nil
	}

	m.logger.Debug(ctx, "ignoring command", "namespace", namespace, "command", commandName(cmd))
	return nil
}

func commandName(cmd map[string]any) string {
	for k := range cmd {
		return k
	}
	return ""
}

// Commit flushes writes buffered by auto-commit. Without auto-commit every
// operation has already committed and Commit does nothing.
func (m *DocManager) Commit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked(ctx)
}

// Stop ends the auto-commit schedule and flushes pending writes. Operations
// after Stop commit immediately. Stop is safe to call more than once.
func (m *DocManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	scheduler := m.scheduler
	m.scheduler = nil
	m.mu.Unlock()

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffered = false
	return m.flushLocked(ctx)
}

// Pending reports the number of buffered statements.
func (m *DocManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *DocManager) autoCommit() {
	ctx := context.Background()
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.flushLocked(ctx); err != nil {
		m.logger.Error(ctx, "auto-commit failed",
			"statements", len(m.pending),
			"documents", m.docs,
			"error", err)
	}
}

// writeLocked commits stmts as one transaction, or buffers them while
// auto-commit is on. docs is the number of documents the statements write.
func (m *DocManager) writeLocked(ctx context.Context, stmts []graph.Statement, docs int) error {
	if m.buffered {
		m.pending = append(m.pending, stmts...)
		m.docs += docs
		return nil
	}
	return m.commitStatements(ctx, stmts)
}

// flushLocked commits the pending statements as one transaction. On failure
// they stay pending and are retried with the next flush.
func (m *DocManager) flushLocked(ctx context.Context) error {
	if len(m.pending) == 0 {
		return nil
	}
	if err := m.commitStatements(ctx, m.pending); err != nil {
		return err
	}
	m.logger.Debug(ctx, "pending writes committed",
		"statements", len(m.pending),
		"documents", m.docs)
	m.pending = nil
	m.docs = 0
	return nil
}

// commitStatements runs stmts in order inside one transaction.
func (m *DocManager) commitStatements(ctx context.Context, stmts []graph.Statement) error {
	if len(stmts) == 0 {
		return nil
	}

	batch, err := m.client.Begin(ctx)
	if err != nil {
		return storeError("failed to open a transaction", err)
	}
	for _, stmt := range stmts {
		batch.Append(stmt.Cypher, stmt.Params)
	}

	start := time.Now()
	_, err = batch.Commit(ctx)
	m.metrics.TransactionCommitted(ctx, len(stmts), time.Since(start), err)
	if err != nil {
		return storeError(fmt.Sprintf("failed to commit %d statements", len(stmts)), err)
	}
	return nil
}

func (m *DocManager) formatID(id any, namespace string) (string, error) {
	value, ok := m.normalizer.Formatter().Format(id)
	if !ok {
		return "", types.NewError(types.MALFORMED_DOCUMENT, "document id is null").
			WithContext("namespace", namespace)
	}
	docID, err := document.IDString(value)
	if err != nil {
		return "", types.WrapError(types.MALFORMED_DOCUMENT, "invalid document id", err).
			WithContext("namespace", namespace)
	}
	return docID, nil
}

// flushingOrdinals commits pending writes before reading append ordinals
// from the store, so buffered elements are counted.
type flushingOrdinals struct {
	m     *DocManager
	inner mapping.OrdinalSource
}

// NextOrdinal implements mapping.OrdinalSource. The caller holds m.mu.
func (o *flushingOrdinals) NextOrdinal(ctx context.Context, owner mapping.NodeRef, field string) (int, error) {
	if err := o.m.flushLocked(ctx); err != nil {
		return 0, err
	}
	return o.inner.NextOrdinal(ctx, owner, field)
}
