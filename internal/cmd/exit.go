// Package cmd provides CLI command implementations.
package cmd

import (
	"errors"
	"os"

	wferrors "github.com/csmcal/wf2wf/internal/errors"
)

// Exit codes. Prompt cancellation is deliberately distinct from error codes.
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitValidationError = 2
	ExitParseError      = 3
	ExitReferenceError  = 4
	ExitExportError     = 5
	ExitPromptCancelled = 6
)

// ExitCodeFromError maps an error to the appropriate exit code.
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, wferrors.ErrPromptCancelled):
		return ExitPromptCancelled
	case errors.Is(err, wferrors.ErrSchema):
		return ExitValidationError
	case errors.Is(err, wferrors.ErrParse):
		return ExitParseError
	case errors.Is(err, wferrors.ErrReference), errors.Is(err, wferrors.ErrCycle):
		return ExitReferenceError
	case errors.Is(err, wferrors.ErrExport):
		return ExitExportError
	}

	return ExitGeneralError
}

// Exit terminates the program with the appropriate exit code for the error.
func Exit(err error) {
	os.Exit(ExitCodeFromError(err))
}
