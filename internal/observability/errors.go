package observability

import (
	"fmt"

	"github.com/zero-day-ai/graphsync/internal/types"
)

// Observability error codes
const (
	// ErrExporterConnection indicates failure to create or reach an exporter.
	ErrExporterConnection types.ErrorCode = "OBSERVABILITY_EXPORTER_CONNECTION"

	// ErrMetricsRegistration indicates failure to create a metric instrument.
	ErrMetricsRegistration types.ErrorCode = "OBSERVABILITY_METRICS_REGISTRATION"

	// ErrShutdownTimeout indicates a provider did not flush before shutdown.
	ErrShutdownTimeout types.ErrorCode = "OBSERVABILITY_SHUTDOWN_TIMEOUT"
)

// NewExporterConnectionError creates an error for exporter connection failures.
// It is retryable as network issues are often transient.
func NewExporterConnectionError(endpoint string, cause error) *types.SyncError {
	return types.WrapRetryableError(ErrExporterConnection,
		fmt.Sprintf("failed to connect to exporter at %s", endpoint), cause)
}

// NewMetricsRegistrationError creates an error for instrument creation failures.
func NewMetricsRegistrationError(name string, cause error) *types.SyncError {
	return types.WrapError(ErrMetricsRegistration,
		fmt.Sprintf("failed to register metric %s", name), cause)
}
