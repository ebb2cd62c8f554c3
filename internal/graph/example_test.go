package graph_test

import (
	"context"
	"fmt"

	"github.com/zero-day-ai/graphsync/internal/graph"
)

// Example demonstrating a batch committed through the mock client.
func ExampleBatch() {
	client := graph.NewMockGraphClient()
	ctx := context.Background()
	_ = client.Connect(ctx)
	defer client.Close(ctx)

	batch, _ := client.Begin(ctx)
	batch.Append("MERGE (n:Document:`Person` {_id: $id}) SET n = $props",
		map[string]any{"id": "a1", "props": map[string]any{"_id": "a1", "name": "Alice"}})
	batch.Append("MERGE (n:`address` {_id: $id}) SET n = $props",
		map[string]any{"id": "a1-address-0", "props": map[string]any{"_id": "a1-address-0", "city": "X"}})

	summary, err := batch.Commit(ctx)
	if err != nil {
		fmt.Println("commit failed:", err)
		return
	}

	fmt.Printf("Statements: %d\n", summary.Statements)
	fmt.Printf("Batches: %d\n", len(client.CommittedBatches()))
	// Output:
	// Statements: 2
	// Batches: 1
}

// Example demonstrating query result configuration for tests.
func ExampleMockGraphClient_AddQueryResult() {
	client := graph.NewMockGraphClient()
	ctx := context.Background()
	_ = client.Connect(ctx)

	client.AddQueryResult(graph.QueryResult{
		Records: []map[string]any{
			{"d": graph.Node{Labels: []string{"Document", "Person"}, Props: map[string]any{"_id": "a1"}}},
		},
		Columns: []string{"d"},
	})

	result, _ := client.Query(ctx, "MATCH (d:Document) RETURN d", nil)
	node := result.Records[0]["d"].(graph.Node)
	fmt.Println(node.Props["_id"], node.HasLabel("Person"))
	// Output: a1 true
}
