// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package review

import (
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/observability"
)

// DefaultTimeout bounds one assisted review.
const DefaultTimeout = 30 * time.Second

// Fallback tries an assisted reviewer and answers with the deterministic
// one when it is absent, times out or returns an invalid reply.
//
// Review never returns an error.
type Fallback struct {
	assisted Reviewer
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *observability.LoanMetrics
}

var _ Reviewer = (*Fallback)(nil)

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
func NewFallback(assisted Reviewer, opts ...Option) *Fallback {
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

// Review implements Reviewer.
func (f *Fallback) Review(ctx context.Context, app datatypes.LoanApplication, set datatypes.AssessmentSet) (datatypes.ReviewResult, error) {
	var err error
	if f.assisted != nil {
		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		var result datatypes.ReviewResult
		result, err = f.assisted.Review(callCtx, app, set)
		cancel()
		if err == nil {
			return result, nil
		}
		f.logger.Warn("assisted review failed, using deterministic review",
			"applicant", app.Name, "error", err)
	}
	f.metrics.RecordFallback(observability.StageReview, observability.FallbackReasonFor(err))
	return Compute(app, set), nil
}
