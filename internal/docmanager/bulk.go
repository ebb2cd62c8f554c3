package docmanager

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/zero-day-ai/graphsync/internal/changefeed"
	"github.com/zero-day-ai/graphsync/internal/graph"
	"github.com/zero-day-ai/graphsync/internal/types"
)

// BulkResult summarizes one BulkUpsert call.
type BulkResult struct {
	// BatchID identifies the call in logs.
	BatchID string

	// Upserted is the number of documents committed.
	Upserted int

	// Transactions is the number of chunks committed.
	Transactions int

	// Statements is the number of statements committed.
	Statements int

	// Skipped lists documents excluded because they could not be mapped or
	// constrained. The rest of their chunk was still committed.
	Skipped []SkippedDocument
}

// SkippedDocument is a document BulkUpsert excluded.
type SkippedDocument struct {
	Namespace  string
	DocumentID string
	Err        error
}

// HasSkipped reports whether any document was excluded.
func (r *BulkResult) HasSkipped() bool {
	return len(r.Skipped) > 0
}

// BulkUpsert reads stream until ErrExhausted, committing one transaction per
// chunk of ChunkSize documents pulled. A trailing partial chunk is committed,
// an empty one is not. Documents that fail to map are logged and skipped;
// a failed commit stops the call and is returned together with the result
// accumulated so far.
func (m *DocManager) BulkUpsert(ctx context.Context, stream changefeed.DocumentStream, namespace string, ts int64) (*BulkResult, error) {
	result := &BulkResult{BatchID: uuid.NewString()}
	logger := m.logger.With("batch_id", result.BatchID, "namespace", namespace)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.flushLocked(ctx); err != nil {
		return result, err
	}

	for chunk := 0; ; chunk++ {
		var stmts []graph.Statement
		pulled, included := 0, 0
		exhausted := false

		for pulled < m.cfg.ChunkSize {
			raw, err := stream.Next(ctx)
			if errors.Is(err, changefeed.ErrExhausted) {
				exhausted = true
				break
			}
			if err != nil {
				return result, types.WrapRetryableError(types.SOURCE_FAILED,
					"failed to read the next document", err).
					WithContext("namespace", namespace).
					WithContext("batch_id", result.BatchID)
			}
			pulled++

			docStmts, _, err := m.prepareUpsert(ctx, raw, namespace, ts)
			if err != nil {
				skipped := SkippedDocument{Namespace: namespace, DocumentID: documentID(err), Err: err}
				result.Skipped = append(result.Skipped, skipped)
				m.metrics.DocumentSkipped(ctx, namespace, string(types.CodeOf(err)))
				logger.Warn(ctx, "skipping document",
					"document_id", skipped.DocumentID,
					"error", err)
				continue
			}
			stmts = append(stmts, docStmts...)
			included++
		}

		if included > 0 {
			if err := m.commitStatements(ctx, stmts); err != nil {
				var syncErr *types.SyncError
				if errors.As(err, &syncErr) {
					syncErr.WithContext("namespace", namespace).
						WithContext("batch_id", result.BatchID).
						WithContext("chunk", chunk)
				}
				return result, err
			}
			result.Transactions++
			result.Statements += len(stmts)
			result.Upserted += included
			m.metrics.DocumentsUpserted(ctx, namespace, included)
			logger.Debug(ctx, "chunk committed",
				"chunk", chunk,
				"documents", included,
				"statements", len(stmts))
		}

		if exhausted {
			break
		}
	}

	logger.Info(ctx, "bulk upsert finished",
		"upserted", result.Upserted,
		"skipped", len(result.Skipped),
		"transactions", result.Transactions)
	return result, nil
}
