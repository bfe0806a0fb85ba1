// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package decision

import (
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/observability"
)

// DefaultTimeout bounds one assisted decision.
const DefaultTimeout = 30 * time.Second

// Fallback tries an assisted decider and answers with the deterministic
// one when it is absent, times out or returns an invalid reply.
//
// Decide never returns an error.
type Fallback struct {
	assisted Decider
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *observability.LoanMetrics
}

var _ Decider = (*Fallback)(nil)

// Option configures a Fallback.
type Option func(*Fallback)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fallback) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fallback) { f.logger = l }
}

// WithMetrics records fallbacks on m.
func WithMetrics(m *observability.LoanMetrics) Option {
	return func(f *Fallback) { f.metrics = m }
}

// NewFallback wraps assisted, which may be nil.
func NewFallback(assisted Decider, opts ...Option) *Fallback {
	f := &Fallback{
		assisted: assisted,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Decide implements Decider.
func (f *Fallback) Decide(ctx context.Context, app datatypes.LoanApplication, set datatypes.AssessmentSet, review datatypes.ReviewResult) (datatypes.FinalDecision, error) {
	var err error
	if f.assisted != nil {
		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		var result datatypes.FinalDecision
		result, err = f.assisted.Decide(callCtx, app, set, review)
		cancel()
		if err == nil {
			return result, nil
		}
		f.logger.Warn("assisted decision failed, using deterministic decision",
			"applicant", app.Name, "error", err)
	}
	f.metrics.RecordFallback(observability.StageDecision, observability.FallbackReasonFor(err))
	return Compute(app, set, review), nil
}
