// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

var (
	// ErrTaskNotFound is returned by stores and the orchestrator when no task
	// exists for the requested id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskTerminal is returned when execution is requested for a task that
	// already reached Completed or Failed.
	ErrTaskTerminal = errors.New("task already in terminal state")

	// ErrInvalidTransition is returned when a state change does not follow
	// Pending -> InProgress -> {Completed | Failed}.
	ErrInvalidTransition = errors.New("invalid task state transition")

	// ErrInvalidReply is wrapped by assisted stages when the reasoning
	// service answered with missing, out-of-range or unparseable fields.
	ErrInvalidReply = errors.New("invalid reasoning service reply")

	// ErrLeaseHeld is returned when a task is claimed or written by an
	// instance other than the one holding its lease.
	ErrLeaseHeld = errors.New("task lease held by another instance")
)

// =============================================================================
// Error Taxonomy
// =============================================================================

// ValidationError reports malformed or out-of-range input fields.
//
// Raised before any stage runs; no task is created. Handlers map it to
// HTTP 422.
type ValidationError struct {
	Fields []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// ExternalServiceError reports a reasoning or search service that was
// unreachable, timed out, or returned unusable content.
//
// It is always recovered locally by falling back to the deterministic
// counterpart and is never surfaced to API callers.
type ExternalServiceError struct {
	Service string
	Reason  string
	Err     error
}

// Error implements the error interface for ExternalServiceError.
func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Reason)
}

// Unwrap returns the underlying transport or parse error.
func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ComputationError reports an arithmetic condition with no defined result,
// such as a non-positive collateral value. Procedures absorb it into a
// worst-case risk value.
type ComputationError struct {
	Procedure string
	Condition string
}

// Error implements the error interface for ComputationError.
func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Procedure, e.Condition)
}

// OrchestrationError reports an unexpected fault while sequencing stages.
// It is the only class that drives a task into the Failed state.
type OrchestrationError struct {
	TaskID string
	Stage  string
	Err    error
}

// Error implements the error interface for OrchestrationError.
func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("task %s failed during %s: %v", e.TaskID, e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *OrchestrationError) Unwrap() error { return e.Err }

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsOrchestrationError reports whether err is or wraps an *OrchestrationError.
func IsOrchestrationError(err error) bool {
	var oe *OrchestrationError
	return errors.As(err, &oe)
}
