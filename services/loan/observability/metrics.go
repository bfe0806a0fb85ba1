// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and tracing for the loan service.
//
// # Description
//
// Prometheus metrics cover evaluation outcomes, per-stage latency, fallbacks
// from assisted or live paths to their deterministic counterparts, company
// lookups, eligibility checks and store transaction conflicts. Metrics are
// exposed on /metrics.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every Record method is safe to call on a nil *LoanMetrics, so components
// can run without metrics in tests.
package observability

import (
	"context"
	"errors"
	"time"

	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for loan pipeline metrics
const loanSubsystem = "loan"

// LoanMetrics holds all Prometheus metrics for the loan pipeline.
//
// # Fields
//
//   - EvaluationsTotal: Completed evaluations by decision.
//   - TasksTotal: Terminal task transitions by state.
//   - ActiveEvaluations: Evaluations currently in progress.
//   - StageDurationSeconds: Stage latency by stage.
//   - FallbacksTotal: Deterministic fallbacks by stage and reason.
//   - LegitimacyLookupsTotal: Employer lookups by strategy and outcome.
//   - EligibilityChecksTotal: Eligibility checks by status.
//   - StoreConflictsTotal: Retried store transaction conflicts by backend.
type LoanMetrics struct {
	EvaluationsTotal       *prometheus.CounterVec
	TasksTotal             *prometheus.CounterVec
	ActiveEvaluations      prometheus.Gauge
	StageDurationSeconds   *prometheus.HistogramVec
	FallbacksTotal         *prometheus.CounterVec
	LegitimacyLookupsTotal *prometheus.CounterVec
	EligibilityChecksTotal *prometheus.CounterVec
	StoreConflictsTotal    *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance registered on the default
// Prometheus registry. Initialized by InitMetrics().
var DefaultMetrics *LoanMetrics

// InitMetrics registers the loan metrics on the default registry.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *LoanMetrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics creates and registers the loan metrics on reg. Tests pass a
// fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *LoanMetrics {
	factory := promauto.With(reg)
	return &LoanMetrics{
		EvaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: loanSubsystem,
				Name:      "evaluations_total",
				Help:      "Total completed loan evaluations by decision",
			},
			[]string{"decision"},
		),
		TasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: loanSubsystem,
				Name:      "tasks_total",
				Help:      "Total tasks reaching a terminal state",
			},
			[]string{"state"},
		),
		ActiveEvaluations: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: loanSubsystem,
				Name:      "active_evaluations",
				Help:      "Number of evaluations currently in progress",
			},
		),
		StageDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: loanSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		FallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: loanSubsystem,
				Name:      "fallbacks_total",
				Help:      "Total deterministic fallbacks by stage and reason",
			},
			[]string{"stage", "reason"},
		),
		LegitimacyLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: loanSubsystem,
				Name:      "legitimacy_lookups_total",
				Help:      "Total employer legitimacy lookups by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		EligibilityChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: loanSubsystem,
				Name:      "eligibility_checks_total",
				Help:      "Total eligibility checks by status",
			},
			[]string{"status"},
		),
		StoreConflictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: loanSubsystem,
				Name:      "store_conflicts_total",
				Help:      "Total retried store transaction conflicts by backend",
			},
			[]string{"backend"},
		),
	}
}

// =============================================================================
// Label Values
// =============================================================================

// Stage labels pipeline stages.
type Stage string

const (
	StageGreeting   Stage = "greeting"
	StageCredit     Stage = "credit"
	StageEmployment Stage = "employment"
	StageCollateral Stage = "collateral"
	StageReview     Stage = "review"
	StageDecision   Stage = "decision"
	StageLegitimacy Stage = "legitimacy"
)

// FallbackReason labels why a deterministic fallback ran.
type FallbackReason string

const (
	ReasonUnavailable FallbackReason = "unavailable"
	ReasonTransport   FallbackReason = "transport"
	ReasonTimeout     FallbackReason = "timeout"
	ReasonInvalid     FallbackReason = "invalid_reply"
)

// FallbackReasonFor maps the error of a failed assisted or live call to its
// label. A nil error means no assisted implementation was configured.
func FallbackReasonFor(err error) FallbackReason {
	switch {
	case err == nil:
		return ReasonUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, datatypes.ErrInvalidReply):
		return ReasonInvalid
	default:
		return ReasonTransport
	}
}

// =============================================================================
// Recording Methods
// =============================================================================

// RecordEvaluation counts a completed evaluation.
func (m *LoanMetrics) RecordEvaluation(decision string) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(decision).Inc()
	m.TasksTotal.WithLabelValues("completed").Inc()
}

// RecordFailure counts a task that ended Failed.
func (m *LoanMetrics) RecordFailure() {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues("failed").Inc()
}

// EvaluationStarted increments the active-evaluation gauge.
func (m *LoanMetrics) EvaluationStarted() {
	if m == nil {
		return
	}
	m.ActiveEvaluations.Inc()
}

// EvaluationEnded decrements the active-evaluation gauge.
func (m *LoanMetrics) EvaluationEnded() {
	if m == nil {
		return
	}
	m.ActiveEvaluations.Dec()
}

// ObserveStage records the duration of stage since start.
func (m *LoanMetrics) ObserveStage(stage Stage, start time.Time) {
	if m == nil {
		return
	}
	m.StageDurationSeconds.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}

// RecordFallback counts a fallback to a deterministic counterpart.
func (m *LoanMetrics) RecordFallback(stage Stage, reason FallbackReason) {
	if m == nil {
		return
	}
	m.FallbacksTotal.WithLabelValues(string(stage), string(reason)).Inc()
}

// RecordLegitimacyLookup counts an employer lookup.
func (m *LoanMetrics) RecordLegitimacyLookup(strategy string, verified bool) {
	if m == nil {
		return
	}
	outcome := "unverified"
	if verified {
		outcome = "verified"
	}
	m.LegitimacyLookupsTotal.WithLabelValues(strategy, outcome).Inc()
}

// RecordEligibility counts an eligibility check.
func (m *LoanMetrics) RecordEligibility(status string) {
	if m == nil {
		return
	}
	m.EligibilityChecksTotal.WithLabelValues(status).Inc()
}

// RecordStoreConflict counts a retried transaction conflict.
func (m *LoanMetrics) RecordStoreConflict(backend string) {
	if m == nil {
		return
	}
	m.StoreConflictsTotal.WithLabelValues(backend).Inc()
}
