// Package prdflow converts product-requirement markdown into a
// conversation-flow JSON document: parse, select a generation strategy,
// generate the graph, validate, auto-fix, and compose the output.
package prdflow

import (
	"errors"
	"fmt"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/validate"
)

// Sentinel errors for the conversion pipeline.
var (
	// ErrValidationFailed indicates the generated graph has validation
	// errors that auto-fix could not (or was not allowed to) repair.
	ErrValidationFailed = errors.New("validation failed")

	// ErrInvalidDocument indicates output JSON that cannot be parsed
	// back into a flow document.
	ErrInvalidDocument = errors.New("invalid flow document")
)

// StageError wraps a failure with the pipeline stage it occurred in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ValidationError carries the issues that blocked publication.
type ValidationError struct {
	Issues []validate.Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("validation failed: %s", e.Issues[0])
	}
	return fmt.Sprintf("validation failed with %d issues", len(e.Issues))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}
