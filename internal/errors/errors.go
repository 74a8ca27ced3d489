// Package errors provides the sentinel error taxonomy for the wf2wf pipeline.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for known conditions. Stages never catch the fatal ones;
// the orchestrator maps them into the conversion report and an exit code.
var (
	// ErrParse indicates a malformed source document. Fatal.
	ErrParse = errors.New("parse error")

	// ErrSchema indicates the IR violates its schema or a cross-field
	// invariant. Fatal after the repair stages have run.
	ErrSchema = errors.New("schema error")

	// ErrReference indicates a dangling reference (edge endpoint, run id).
	ErrReference = errors.New("reference error")

	// ErrCycle indicates the task graph is not acyclic.
	ErrCycle = errors.New("cycle error")

	// ErrExport indicates the target writer failed.
	ErrExport = errors.New("export error")

	// ErrPromptCancelled indicates the user chose quit at a prompt.
	// Fatal, with an exit code distinct from ordinary errors.
	ErrPromptCancelled = errors.New("prompt cancelled")

	// ErrNotFound indicates a missing input file or unknown format.
	ErrNotFound = errors.New("not found")
)

// DetailError captures structured error information for terminal output.
type DetailError struct {
	// Type is the error category (required).
	Type string

	// Message is the specific description (required).
	Message string

	// Location is the file path and line number (optional).
	Location string

	// Pointer is the JSON pointer for schema errors (optional).
	Pointer string

	// Hint provides actionable guidance (optional).
	Hint string

	// Cause is the underlying error (optional).
	Cause error
}

// Error implements the error interface.
func (e *DetailError) Error() string {
	var b strings.Builder

	b.WriteString("Error: ")
	b.WriteString(e.Type)
	b.WriteString("\n")

	if e.Location != "" {
		b.WriteString("  Location: ")
		b.WriteString(e.Location)
		b.WriteString("\n")
	}
	if e.Pointer != "" {
		b.WriteString("  Pointer: ")
		b.WriteString(e.Pointer)
		b.WriteString("\n")
	}

	b.WriteString("\n  ")
	b.WriteString(e.Message)
	b.WriteString("\n")

	if e.Hint != "" {
		b.WriteString("\nHint: ")
		b.WriteString(e.Hint)
		b.WriteString("\n")
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *DetailError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a parse error with location details.
func NewParseError(message, location string) error {
	return &DetailError{
		Type:     "parse failed",
		Message:  message,
		Location: location,
		Cause:    ErrParse,
	}
}

// NewSchemaError creates a schema error with a JSON pointer.
func NewSchemaError(message, pointer, hint string) error {
	return &DetailError{
		Type:    "schema validation failed",
		Message: message,
		Pointer: pointer,
		Hint:    hint,
		Cause:   ErrSchema,
	}
}

// NewExportError creates an export error with location details.
func NewExportError(message, location string) error {
	return &DetailError{
		Type:     "export failed",
		Message:  message,
		Location: location,
		Cause:    ErrExport,
	}
}

// Wrap wraps an error with a sentinel error type.
func Wrap(sentinel error, message string) error {
	return fmt.Errorf("%s: %w", message, sentinel)
}
