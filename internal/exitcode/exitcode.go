package exitcode

import (
	"os"

	"github.com/Devliang24/casecraft/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates an unrecoverable configuration or spec error
	GeneralError = 1

	// AllFailed indicates that every endpoint failed to generate
	AllFailed = 2

	// PartialFailure indicates that some endpoints generated and some did not
	PartialFailure = 3

	// Interrupted indicates the run was cancelled by the user
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch errors.CodeOf(err) {
	case errors.ErrCodeCancelled:
		return Interrupted
	case errors.ErrCodeAllFailed:
		return AllFailed
	case errors.ErrCodePartialFailure:
		return PartialFailure
	default:
		return GeneralError
	}
}

// Description returns a human-readable description of an exit code
func Description(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "Unrecoverable configuration or spec error"
	case AllFailed:
		return "All endpoints failed"
	case PartialFailure:
		return "Some endpoints failed"
	case Interrupted:
		return "Cancelled by user"
	default:
		return "Unknown error"
	}
}
