// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline sequences one loan evaluation.
//
// # Description
//
// The Orchestrator drives a task through
//
//	Pending -> InProgress -> {Completed | Failed}
//
// writing the task to the store exactly once per transition; lease renewals
// are the only other writes. While
// InProgress it runs the three risk procedures concurrently, waits for all
// of them, then runs the review stage and the decision stage in order.
//
// Only an OrchestrationError fails a task. Assisted and live-lookup
// failures are absorbed by the stages' fallbacks, and computation errors
// are absorbed by the procedures as worst-case risk.
//
// # Thread Safety
//
// An Orchestrator is safe for concurrent use. Each task is written only by
// the instance holding its lease: the evaluating orchestrator claims the
// task when it moves to InProgress and renews the claim until the task is
// terminal. Several instances may share one store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianLoan/services/loan/config"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/decision"
	"github.com/AleutianAI/AleutianLoan/services/loan/legitimacy"
	"github.com/AleutianAI/AleutianLoan/services/loan/observability"
	"github.com/AleutianAI/AleutianLoan/services/loan/review"
	"github.com/AleutianAI/AleutianLoan/services/loan/risk"
	"github.com/AleutianAI/AleutianLoan/services/loan/store"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("aleutian.loan.pipeline")

// InterruptedMessage is recorded on tasks whose evaluating instance stopped
// renewing its lease.
const InterruptedMessage = "evaluation interrupted: service stopped before the task finished"

// DefaultLeaseTTL is how long a claim on an in-progress task holds without
// renewal.
const DefaultLeaseTTL = 30 * time.Second

// Config wires an Orchestrator.
type Config struct {
	Store store.TaskStore
	// Tables supplies the credit and collateral bands. Default: config.Default().
	Tables *config.Tables
	// Classifier verifies employers. Default: the simulated classifier.
	Classifier legitimacy.Classifier
	// Reviewer and Decider default to their deterministic implementations.
	Reviewer review.Reviewer
	Decider  decision.Decider

	// InstanceID identifies this orchestrator in task leases. A stable id
	// lets a restarted instance recover its own tasks without waiting for
	// their leases to expire. Default: a random UUID.
	InstanceID string
	// LeaseTTL bounds how long a task stays claimed without renewal.
	// Default: DefaultLeaseTTL.
	LeaseTTL time.Duration

	Metrics *observability.LoanMetrics
	Logger  *slog.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Orchestrator runs evaluations.
type Orchestrator struct {
	store      store.TaskStore
	tables     *config.Tables
	employment *risk.EmploymentProcedure
	reviewer   review.Reviewer
	decider    decision.Decider
	instanceID string
	leaseTTL   time.Duration
	metrics    *observability.LoanMetrics
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an Orchestrator. Store is required.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, errors.New("pipeline: store is required")
	}
	if cfg.Tables == nil {
		cfg.Tables = config.Default()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = legitimacy.NewSimulatedClassifier(cfg.Tables)
	}
	if cfg.Reviewer == nil {
		cfg.Reviewer = review.Deterministic{}
	}
	if cfg.Decider == nil {
		cfg.Decider = decision.Deterministic{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = DefaultLeaseTTL
	}
	return &Orchestrator{
		store:      cfg.Store,
		tables:     cfg.Tables,
		employment: risk.NewEmploymentProcedure(cfg.Classifier),
		reviewer:   cfg.Reviewer,
		decider:    cfg.Decider,
		instanceID: cfg.InstanceID,
		leaseTTL:   cfg.LeaseTTL,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		now:        cfg.Clock,
	}, nil
}

// =============================================================================
// Entry Points
// =============================================================================

// Submit validates app, creates a Pending task and evaluates it.
//
// # Outputs
//
//   - *datatypes.Task: The task in its final state. Non-nil whenever the
//     task was created, including when it Failed.
//   - error: *datatypes.ValidationError before any task exists,
//     *datatypes.OrchestrationError when the task Failed, or a store error.
func (o *Orchestrator) Submit(ctx context.Context, app datatypes.LoanApplication) (*datatypes.Task, error) {
	if err := app.Validate(); err != nil {
		return nil, err
	}
	task := datatypes.NewTask(app, o.now())
	if err := o.store.Create(context.WithoutCancel(ctx), task); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	o.logger.Info("task created", "task_id", task.ID, "applicant", app.Name)
	return o.Run(ctx, task.ID)
}

// Run evaluates the Pending task id.
//
// # Description
//
// Store writes use a context detached from ctx's cancellation so that a
// task whose caller went away still reaches a terminal state. The task is
// leased to this instance for the whole evaluation.
//
// # Outputs
//
//   - *datatypes.Task: As for Submit. When the final write is refused, the
//     task as currently stored.
//   - error: datatypes.ErrTaskTerminal for a finished task,
//     datatypes.ErrTaskNotFound for an unknown id, datatypes.ErrLeaseHeld
//     when another instance took the task over, or as for Submit.
func (o *Orchestrator) Run(ctx context.Context, id string) (*datatypes.Task, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()
	span.SetAttributes(attribute.String("task.id", id))
	persist := context.WithoutCancel(ctx)

	task, err := o.store.Update(persist, id, func(t *datatypes.Task) error {
		now := o.now()
		if err := t.Transition(datatypes.StateInProgress, now); err != nil {
			return err
		}
		if err := t.Claim(o.instanceID, now, o.leaseTTL); err != nil {
			return err
		}
		t.Results.Greeting = Greet(t.Application, now)
		t.Results.Plan = PlanFor(t.Application)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	o.metrics.EvaluationStarted()
	defer o.metrics.EvaluationEnded()
	o.logger.Info("evaluation started", "task_id", id, "instance", o.instanceID)

	release := o.holdLease(persist, id)
	results, evalErr := o.evaluate(ctx, task)
	release()
	if evalErr != nil {
		return o.fail(persist, span, id, results, evalErr)
	}

	final, err := o.store.Update(persist, id, func(t *datatypes.Task) error {
		if err := o.owns(t); err != nil {
			return err
		}
		t.Results = results
		return t.Transition(datatypes.StateCompleted, o.now())
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return o.current(persist, id), fmt.Errorf("completing task %s: %w", id, err)
	}

	d := final.Results.Decision
	o.metrics.RecordEvaluation(string(d.Decision))
	span.SetAttributes(
		attribute.String("decision", string(d.Decision)),
		attribute.Float64("risk_score", d.RiskScore),
	)
	o.logger.Info("evaluation completed",
		"task_id", id, "decision", string(d.Decision), "risk_score", d.RiskScore, "source", string(d.Source))
	return final, nil
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, id string, partial datatypes.StageResults, evalErr *datatypes.OrchestrationError) (*datatypes.Task, error) {
	span.RecordError(evalErr)
	span.SetStatus(codes.Error, evalErr.Error())
	o.metrics.RecordFailure()
	o.logger.Error("evaluation failed", "task_id", id, "stage", evalErr.Stage, "error", evalErr.Err)

	failed, err := o.store.Update(ctx, id, func(t *datatypes.Task) error {
		if err := o.owns(t); err != nil {
			return err
		}
		t.Results = partial
		return t.Fail(evalErr.Error(), o.now())
	})
	if err != nil {
		return o.current(ctx, id), errors.Join(evalErr, fmt.Errorf("recording failure of task %s: %w", id, err))
	}
	return failed, evalErr
}

// RecoverInterrupted fails the InProgress tasks whose evaluating instance
// is gone and returns how many were recovered.
//
// # Description
//
// A task is recovered when its lease has expired or is held under this
// orchestrator's own InstanceID. Tasks leased to another live instance are
// left alone. Call it before this orchestrator starts evaluating.
func (o *Orchestrator) RecoverInterrupted(ctx context.Context) (int, error) {
	stuck, err := o.store.InState(ctx, datatypes.StateInProgress)
	if err != nil {
		return 0, fmt.Errorf("listing in-progress tasks: %w", err)
	}
	recovered, skipped := 0, 0
	for _, t := range stuck {
		_, err := o.store.Update(ctx, t.ID, func(t *datatypes.Task) error {
			now := o.now()
			if !t.Lease.Expired(now) && t.Lease.Owner != o.instanceID {
				return fmt.Errorf("task %s held by %s: %w", t.ID, t.Lease.Owner, datatypes.ErrLeaseHeld)
			}
			return t.Fail(InterruptedMessage, now)
		})
		if errors.Is(err, datatypes.ErrLeaseHeld) {
			skipped++
			continue
		}
		if errors.Is(err, datatypes.ErrTaskTerminal) || errors.Is(err, datatypes.ErrTaskNotFound) {
			continue
		}
		if err != nil {
			return recovered, fmt.Errorf("recovering task %s: %w", t.ID, err)
		}
		o.metrics.RecordFailure()
		recovered++
	}
	if recovered > 0 {
		o.logger.Warn("recovered interrupted tasks", "count", recovered)
	}
	if skipped > 0 {
		o.logger.Info("left in-progress tasks leased to other instances", "count", skipped)
	}
	return recovered, nil
}

// =============================================================================
// Leases
// =============================================================================

// owns rejects writes to a task whose lease another instance has taken.
func (o *Orchestrator) owns(t *datatypes.Task) error {
	if t.State.Terminal() || t.Lease == nil || t.Lease.Owner == o.instanceID {
		return nil
	}
	return fmt.Errorf("task %s taken over by %s: %w", t.ID, t.Lease.Owner, datatypes.ErrLeaseHeld)
}

// holdLease renews the lease on id every third of the TTL until the
// returned release func is called. Release waits for the renewer to exit.
func (o *Orchestrator) holdLease(ctx context.Context, id string) (release func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(o.leaseTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			_, err := o.store.Update(ctx, id, func(t *datatypes.Task) error {
				return t.Claim(o.instanceID, o.now(), o.leaseTTL)
			})
			if err != nil {
				o.logger.Warn("lease renewal failed", "task_id", id, "error", err)
				if errors.Is(err, datatypes.ErrLeaseHeld) || errors.Is(err, datatypes.ErrTaskTerminal) ||
					errors.Is(err, datatypes.ErrTaskNotFound) {
					return
				}
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		wg.Wait()
	}
}

// current reads id for error responses; nil when the read fails.
func (o *Orchestrator) current(ctx context.Context, id string) *datatypes.Task {
	t, err := o.store.Get(ctx, id)
	if err != nil {
		return nil
	}
	return t
}

// =============================================================================
// Stages
// =============================================================================

// evaluate runs every stage after greeting and planning. On failure the
// returned results hold whatever stages finished.
func (o *Orchestrator) evaluate(ctx context.Context, task *datatypes.Task) (datatypes.StageResults, *datatypes.OrchestrationError) {
	results := task.Results
	app := task.Application

	set, err := o.assess(ctx, task.ID, app)
	if err != nil {
		return results, err
	}
	results.Credit = &set.Credit
	results.Employment = &set.Employment
	results.Collateral = &set.Collateral

	var rev datatypes.ReviewResult
	if err := o.stage(task.ID, observability.StageReview, func() error {
		var err error
		rev, err = o.reviewer.Review(ctx, app, set)
		return err
	}); err != nil {
		return results, err
	}
	results.Review = &rev

	var dec datatypes.FinalDecision
	if err := o.stage(task.ID, observability.StageDecision, func() error {
		var err error
		dec, err = o.decider.Decide(ctx, app, set, rev)
		return err
	}); err != nil {
		return results, err
	}
	results.Decision = &dec
	return results, nil
}

// assess runs the three procedures concurrently and waits for all of them.
func (o *Orchestrator) assess(ctx context.Context, taskID string, app datatypes.LoanApplication) (datatypes.AssessmentSet, *datatypes.OrchestrationError) {
	var set datatypes.AssessmentSet
	var g errgroup.Group

	run := func(name observability.Stage, fn func()) {
		g.Go(func() error {
			if err := o.stage(taskID, name, func() error { fn(); return nil }); err != nil {
				return err
			}
			return nil
		})
	}
	run(observability.StageCredit, func() {
		set.Credit = risk.AssessCredit(app, o.tables.Credit)
	})
	run(observability.StageEmployment, func() {
		set.Employment = o.employment.Assess(ctx, app)
	})
	run(observability.StageCollateral, func() {
		set.Collateral = risk.AssessCollateral(app, o.tables.Collateral)
	})

	// Every goroutine's error is an *OrchestrationError; Wait returns the first.
	if err := g.Wait(); err != nil {
		var orchErr *datatypes.OrchestrationError
		if errors.As(err, &orchErr) {
			return set, orchErr
		}
		return set, &datatypes.OrchestrationError{TaskID: taskID, Stage: "assessment", Err: err}
	}
	return set, nil
}

// stage runs fn, timing it and converting an error or panic into an
// OrchestrationError.
func (o *Orchestrator) stage(taskID string, name observability.Stage, fn func() error) (oerr *datatypes.OrchestrationError) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("stage panicked", "task_id", taskID, "stage", string(name),
				"panic", r, "stack", string(debug.Stack()))
			oerr = &datatypes.OrchestrationError{TaskID: taskID, Stage: string(name), Err: fmt.Errorf("panic: %v", r)}
		}
		o.metrics.ObserveStage(name, start)
	}()
	if err := fn(); err != nil {
		return &datatypes.OrchestrationError{TaskID: taskID, Stage: string(name), Err: err}
	}
	return nil
}
