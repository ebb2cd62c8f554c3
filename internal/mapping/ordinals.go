package mapping

import (
	"context"
	"fmt"

	"github.com/zero-day-ai/graphsync/internal/graph"
)

// GraphOrdinalSource reads append ordinals from the graph store: one past
// the highest ordinal currently linked under the field.
type GraphOrdinalSource struct {
	client graph.GraphClient
}

// NewGraphOrdinalSource creates an OrdinalSource backed by client.
func NewGraphOrdinalSource(client graph.GraphClient) *GraphOrdinalSource {
	return &GraphOrdinalSource{client: client}
}

// NextOrdinal implements OrdinalSource.
func (s *GraphOrdinalSource) NextOrdinal(ctx context.Context, owner NodeRef, field string) (int, error) {
	result, err := s.client.Query(ctx, maxOrdinalCypher(owner.Label, field), map[string]any{
		"id":     owner.ID,
		"prefix": ChildPrefix(owner.ID, field),
	})
	if err != nil {
		return 0, err
	}
	if len(result.Records) == 0 {
		return 0, nil
	}

	switch ord := result.Records[0]["ord"].(type) {
	case nil:
		return 0, nil
	case int64:
		return int(ord) + 1, nil
	case int:
		return ord + 1, nil
	default:
		return 0, fmt.Errorf("unexpected ordinal type %T", ord)
	}
}
