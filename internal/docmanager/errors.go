package docmanager

import (
	"errors"

	"github.com/zero-day-ai/graphsync/internal/types"
)

func storeError(message string, err error) *types.SyncError {
	return types.WrapRetryableError(types.STORE_COMMUNICATION_FAILED, message, err)
}

// withDocument adds replay context to err. Errors that are not SyncErrors
// are wrapped as store failures so no driver type reaches the caller.
func withDocument(err error, namespace, docID string) error {
	var syncErr *types.SyncError
	if !errors.As(err, &syncErr) {
		syncErr = storeError("graph store operation failed", err)
	}
	syncErr.WithContext("namespace", namespace)
	if docID != "" {
		syncErr.WithContext("document_id", docID)
	}
	return syncErr
}

// documentID returns the id recorded in err's context, if any.
func documentID(err error) string {
	var syncErr *types.SyncError
	if errors.As(err, &syncErr) {
		if id, ok := syncErr.Context["document_id"].(string); ok {
			return id
		}
	}
	return ""
}
