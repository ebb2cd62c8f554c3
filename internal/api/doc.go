// Package api serves the graphsync admin HTTP API.
//
// Routes:
//
//	GET /health                                 combined dependency health
//	GET /api/v1/documents?start=&end=           root nodes by _ts range
//	GET /api/v1/documents/last                  root node with the highest _ts
//	GET /api/v1/documents/:namespace/:id        one root node
//	GET /api/v1/checkpoints                     change-feed resume points
//	GET /metrics                                Prometheus exposition (optional)
package api
