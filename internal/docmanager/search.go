package docmanager

import (
	"context"
	"fmt"

	"github.com/zero-day-ai/graphsync/internal/document"
	"github.com/zero-day-ai/graphsync/internal/graph"
	"github.com/zero-day-ai/graphsync/internal/mapping"
	"github.com/zero-day-ai/graphsync/internal/types"
)

// RootRecord is a root node read back from the store.
type RootRecord struct {
	Label      string         `json:"label"`
	ID         string         `json:"id"`
	Timestamp  int64          `json:"ts"`
	Properties map[string]any `json:"properties"`
}

// Search returns the root nodes whose _ts lies in [start, end], ordered by
// timestamp. Pending writes are flushed first.
func (m *DocManager) Search(ctx context.Context, start, end int64) ([]RootRecord, error) {
	result, err := m.read(ctx, searchCypher, map[string]any{"start": start, "end": end})
	if err != nil {
		return nil, err
	}
	return recordsOf(result)
}

// GetLastDoc returns the root node with the highest _ts, or nil when the
// store holds no documents.
func (m *DocManager) GetLastDoc(ctx context.Context) (*RootRecord, error) {
	result, err := m.read(ctx, lastDocCypher, map[string]any{})
	if err != nil {
		return nil, err
	}
	records, err := recordsOf(result)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[0], nil
}

// Get returns the root node of document id in namespace, or nil when it
// does not exist.
func (m *DocManager) Get(ctx context.Context, id any, namespace string) (*RootRecord, error) {
	_, label, err := document.SplitNamespace(namespace)
	if err != nil {
		return nil, err
	}
	docID, err := m.formatID(id, namespace)
	if err != nil {
		return nil, err
	}

	query, err := rootByIDQuery(docID)
	if err != nil {
		return nil, withDocument(err, namespace, docID)
	}
	result, err := m.read(ctx, query.Cypher, query.Params)
	if err != nil {
		return nil, withDocument(err, namespace, docID)
	}
	records, err := recordsOf(result)
	if err != nil {
		return nil, withDocument(err, namespace, docID)
	}
	for i := range records {
		if records[i].Label == label {
			return &records[i], nil
		}
	}
	return nil, nil
}

func (m *DocManager) read(ctx context.Context, cypher string, params map[string]any) (graph.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.flushLocked(ctx); err != nil {
		return graph.QueryResult{}, err
	}
	result, err := m.client.Query(ctx, cypher, params)
	if err != nil {
		return graph.QueryResult{}, storeError("query failed", err)
	}
	return result, nil
}

func recordsOf(result graph.QueryResult) ([]RootRecord, error) {
	records := make([]RootRecord, 0, len(result.Records))
	for _, row := range result.Records {
		node, ok := row["n"].(graph.Node)
		if !ok {
			return nil, types.NewError(types.STORE_COMMUNICATION_FAILED,
				fmt.Sprintf("expected a node in column n, got %T", row["n"]))
		}
		records = append(records, rootRecord(node))
	}
	return records, nil
}

func rootRecord(node graph.Node) RootRecord {
	rec := RootRecord{Properties: make(map[string]any, len(node.Props))}
	for _, l := range node.Labels {
		if l != mapping.RootLabel {
			rec.Label = l
			break
		}
	}
	for k, v := range node.Props {
		switch k {
		case mapping.IDProperty:
			rec.ID = fmt.Sprint(v)
		case mapping.TimestampProperty:
			rec.Timestamp = toInt64(v)
		default:
			rec.Properties[k] = v
		}
	}
	return rec
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
