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
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Task State Machine
// =============================================================================

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	StatePending    TaskState = "pending"
	StateInProgress TaskState = "in_progress"
	StateCompleted  TaskState = "completed"
	StateFailed     TaskState = "failed"
)

// AllStates lists every state in lifecycle order.
var AllStates = []TaskState{StatePending, StateInProgress, StateCompleted, StateFailed}

// Terminal reports whether no further transition is allowed from s.
func (s TaskState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether s -> next is a legal lifecycle edge.
func (s TaskState) CanTransition(next TaskState) bool {
	switch s {
	case StatePending:
		return next == StateInProgress
	case StateInProgress:
		return next == StateCompleted || next == StateFailed
	default:
		return false
	}
}

// =============================================================================
// Task
// =============================================================================

// Task is the unit of persistence for one evaluation.
//
// # Description
//
// A Task is created once per incoming application. The orchestrator owns it
// exclusively while evaluating; afterwards the record store owns it.
//
// # Fields
//
//   - ID: Opaque identifier, "task_" followed by 12 hex characters.
//   - Application: The immutable input.
//   - State: Current lifecycle state.
//   - Results: Typed output of each completed stage.
//   - Error: Failure message; non-empty only in StateFailed.
//   - Lease: The evaluating instance and how long its claim holds; set
//     only in StateInProgress.
//   - CreatedAt, UpdatedAt: UTC timestamps.
type Task struct {
	ID          string          `json:"task_id"`
	Application LoanApplication `json:"application"`
	State       TaskState       `json:"state"`
	Results     StageResults    `json:"results"`
	Error       string          `json:"error,omitempty"`
	Lease       *Lease          `json:"lease,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Lease is an orchestrator instance's claim on an in-progress task. The
// owner renews it while evaluating; once it expires another instance may
// fail the task as interrupted.
type Lease struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the claim no longer holds at now. A nil lease is
// expired.
func (l *Lease) Expired(now time.Time) bool {
	return l == nil || !now.Before(l.ExpiresAt)
}

// HeldBy reports whether owner holds an unexpired lease at now.
func (l *Lease) HeldBy(owner string, now time.Time) bool {
	return !l.Expired(now) && l.Owner == owner
}

// Claim sets the task lease to owner until now+ttl.
//
// # Outputs
//
//   - error: ErrTaskTerminal for a finished task, ErrLeaseHeld when another
//     owner holds an unexpired lease.
func (t *Task) Claim(owner string, now time.Time, ttl time.Duration) error {
	if t.State.Terminal() {
		return fmt.Errorf("task %s is %s: %w", t.ID, t.State, ErrTaskTerminal)
	}
	if !t.Lease.Expired(now) && t.Lease.Owner != owner {
		return fmt.Errorf("task %s held by %s: %w", t.ID, t.Lease.Owner, ErrLeaseHeld)
	}
	t.Lease = &Lease{Owner: owner, ExpiresAt: now.Add(ttl).UTC()}
	return nil
}

// NewTask creates a Pending task for app with a fresh id.
func NewTask(app LoanApplication, now time.Time) *Task {
	return &Task{
		ID:          NewTaskID(),
		Application: app,
		State:       StatePending,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
}

// NewTaskID returns "task_" followed by the first 12 hex characters of a
// random UUID.
func NewTaskID() string {
	id := uuid.New()
	return "task_" + hex.EncodeToString(id[:])[:12]
}

// Transition moves the task to next, stamping UpdatedAt.
//
// # Outputs
//
//   - error: ErrTaskTerminal when the task already finished, or
//     ErrInvalidTransition for any other illegal edge.
func (t *Task) Transition(next TaskState, now time.Time) error {
	if t.State.Terminal() {
		return fmt.Errorf("task %s is %s: %w", t.ID, t.State, ErrTaskTerminal)
	}
	if !t.State.CanTransition(next) {
		return fmt.Errorf("task %s: %s -> %s: %w", t.ID, t.State, next, ErrInvalidTransition)
	}
	t.State = next
	t.UpdatedAt = now.UTC()
	if next.Terminal() {
		t.Lease = nil
	}
	return nil
}

// Fail moves an in-progress task to StateFailed with msg.
func (t *Task) Fail(msg string, now time.Time) error {
	if err := t.Transition(StateFailed, now); err != nil {
		return err
	}
	t.Error = msg
	return nil
}

// Clone returns a shallow copy of the task. Stage results are shared; they
// are never mutated once attached.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}
