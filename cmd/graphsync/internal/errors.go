package internal

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/graphsync/internal/types"
)

// Exit code constants for the CLI
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitError indicates a general error
	ExitError = 1
	// ExitUsageError indicates invalid flags or arguments
	ExitUsageError = 2
	// ExitTimeout indicates the operation timed out
	ExitTimeout = 3
	// ExitCancelled indicates the operation was cancelled
	ExitCancelled = 4
	// ExitConfigError indicates a configuration error
	ExitConfigError = 10
	// ExitStoreError indicates the graph store failed or was unreachable
	ExitStoreError = 12
	// ExitSourceError indicates the change-feed source failed
	ExitSourceError = 13
	// ExitCheckpointError indicates the checkpoint store failed
	ExitCheckpointError = 14
	// ExitDocumentError indicates a document could not be mapped
	ExitDocumentError = 15
)

// CLIError represents a CLI-specific error with an exit code
type CLIError struct {
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// WrapError creates a new CLIError wrapping an existing error
func WrapError(code int, message string, err error) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewCLIError creates a new CLIError with the given code and message
func NewCLIError(code int, message string) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
	}
}

// HandleError prints err to the command's error output and returns the
// exit code it maps to.
func HandleError(cmd *cobra.Command, err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, context.Canceled) {
		cmd.PrintErrln("Operation cancelled")
		return ExitCancelled
	}

	if errors.Is(err, context.DeadlineExceeded) {
		cmd.PrintErrln("Operation timed out")
		return ExitTimeout
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		cmd.PrintErrln("Error:", cliErr.Message)
		if cliErr.Cause != nil && verboseRequested(cmd) {
			cmd.PrintErrln("Cause:", cliErr.Cause)
		}
		return cliErr.Code
	}

	var syncErr *types.SyncError
	if errors.As(err, &syncErr) {
		cmd.PrintErrln("Error:", syncErr.Error())
		if verboseRequested(cmd) && len(syncErr.Context) > 0 {
			cmd.PrintErrln("Context:")
			for k, v := range syncErr.Context {
				cmd.PrintErrf("  %s: %v\n", k, v)
			}
		}
		if syncErr.Retryable {
			cmd.PrintErrln("The failure is transient; rerunning may succeed.")
		}
		return ExitCodeFor(syncErr.Code)
	}

	cmd.PrintErrln("Error:", err)
	return ExitError
}

// ExitCodeFor maps a sync error code to a CLI exit code.
func ExitCodeFor(code types.ErrorCode) int {
	switch code {
	case types.CONFIG_LOAD_FAILED,
		types.CONFIG_PARSE_FAILED,
		types.CONFIG_VALIDATION_FAILED,
		types.CONFIG_NOT_FOUND:
		return ExitConfigError
	case types.STORE_COMMUNICATION_FAILED,
		types.CONSTRAINT_FAILED:
		return ExitStoreError
	case types.SOURCE_FAILED:
		return ExitSourceError
	case types.CHECKPOINT_FAILED:
		return ExitCheckpointError
	case types.MALFORMED_DOCUMENT,
		types.UPDATE_TRANSLATION_FAILED:
		return ExitDocumentError
	default:
		return ExitError
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	return types.IsRetryable(err)
}

// IsVerbose checks if verbose mode is enabled via environment variable or flag
// This is used for panic recovery to determine if stack traces should be shown
func IsVerbose() bool {
	if os.Getenv("GRAPHSYNC_VERBOSE") != "" {
		return true
	}

	for _, arg := range os.Args {
		if arg == "-v" || arg == "--verbose" {
			return true
		}
	}

	return false
}

func verboseRequested(cmd *cobra.Command) bool {
	flag := cmd.Flag("verbose")
	return flag != nil && flag.Changed
}
