package cli

import (
	"errors"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/config"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/workflow"
)

// Exit codes reported by the binary. Scripts depend on these values.
const (
	ExitOK             = 0
	ExitOperationError = 1
	ExitPreFlight      = 2
	ExitCancelled      = 3
	ExitNotInitialized = 4
)

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var preflight *workflow.PreflightError
	switch {
	case errors.As(err, &preflight):
		return ExitPreFlight
	case errors.Is(err, workflow.ErrCancelled), errors.Is(err, workflow.ErrTimeout):
		return ExitCancelled
	case errors.Is(err, config.ErrNotInitialized):
		return ExitNotInitialized
	default:
		return ExitOperationError
	}
}
