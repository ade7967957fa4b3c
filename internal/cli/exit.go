package cli

import (
	"errors"

	"github.com/govgate/govgate/internal/policy"
)

// Exit codes
const (
	ExitOK = 0
	// ExitFailed the gate said no, or a signature did not verify
	ExitFailed = 1
	// ExitConfig bad policy, bad flags, unreadable inputs: no decision
	ExitConfig = 2
)

// ExitError carries an exit code through cobra
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func gateFailed(err error) error {
	return &ExitError{Code: ExitFailed, Err: err}
}

func usageError(err error) error {
	return &ExitError{Code: ExitConfig, Err: err}
}

// ExitCode for err. Configuration and merge errors are 2 wherever they
// surface; anything unclassified is also 2 since no decision was made.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		cfgErr   *policy.ConfigurationError
		mergeErr *policy.MergeConstraintViolation
		exitErr  *ExitError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &mergeErr):
		return ExitConfig
	case errors.As(err, &exitErr):
		return exitErr.Code
	}
	return ExitConfig
}
