package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zero-day-ai/graphsync/internal/docmanager"
	"github.com/zero-day-ai/graphsync/internal/types"
)

const healthTimeout = 2 * time.Second

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     types.HealthState             `json:"status"`
	Message    string                        `json:"message,omitempty"`
	Version    string                        `json:"version,omitempty"`
	Timestamp  time.Time                     `json:"timestamp"`
	Components map[string]types.HealthStatus `json:"components,omitempty"`
}

// SearchResponse is the body of GET /api/v1/documents.
type SearchResponse struct {
	Start     int64                   `json:"start"`
	End       int64                   `json:"end"`
	Count     int                     `json:"count"`
	Documents []docmanager.RootRecord `json:"documents"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string          `json:"error"`
	Code  types.ErrorCode `json:"code,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	components := make(map[string]types.HealthStatus, len(s.health))
	for name, check := range s.health {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		components[name] = check(ctx)
		cancel()
	}

	combined := types.CombineHealth(components)
	status := http.StatusOK
	if combined.IsUnhealthy() {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, HealthResponse{
		Status:     combined.State,
		Message:    combined.Message,
		Version:    s.version,
		Timestamp:  time.Now().UTC(),
		Components: components,
	})
}

func (s *Server) handleSearch(c *gin.Context) {
	start, err := parseTimestamp(c.Query("start"), 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid start: " + err.Error()})
		return
	}
	end, err := parseTimestamp(c.Query("end"), maxTimestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid end: " + err.Error()})
		return
	}
	if start > end {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "start must not exceed end"})
		return
	}

	docs, err := s.reader.Search(c.Request.Context(), start, end)
	if err != nil {
		s.fail(c, err)
		return
	}
	if docs == nil {
		docs = []docmanager.RootRecord{}
	}

	c.JSON(http.StatusOK, SearchResponse{Start: start, End: end, Count: len(docs), Documents: docs})
}

func (s *Server) handleLastDoc(c *gin.Context) {
	doc, err := s.reader.GetLastDoc(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no documents synced"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleGet(c *gin.Context) {
	namespace := c.Param("namespace")
	id := c.Param("id")

	doc, err := s.reader.Get(c.Request.Context(), id, namespace)
	if err != nil {
		s.fail(c, err)
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "document not found"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleCheckpoints(c *gin.Context) {
	checkpoints, err := s.checkpoints.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkpoints": checkpoints})
}

// fail maps a sync error code onto an HTTP status.
func (s *Server) fail(c *gin.Context, err error) {
	code := types.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case types.MALFORMED_DOCUMENT:
		status = http.StatusBadRequest
	case types.STORE_COMMUNICATION_FAILED:
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

const maxTimestamp = int64(^uint64(0) >> 1)

func parseTimestamp(raw string, fallback int64) (int64, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
