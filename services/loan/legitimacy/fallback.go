// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package legitimacy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianLoan/services/loan/config"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/observability"
)

// DefaultLookupTimeout bounds one live classification.
const DefaultLookupTimeout = 10 * time.Second

// =============================================================================
// Live Strategy
// =============================================================================

// LiveClassifier classifies employers from web-search results.
type LiveClassifier struct {
	searcher Searcher
	tables   *config.Tables
}

var _ Classifier = (*LiveClassifier)(nil)

// NewLiveClassifier creates a classifier over searcher.
func NewLiveClassifier(searcher Searcher, tables *config.Tables) *LiveClassifier {
	return &LiveClassifier{searcher: searcher, tables: tables}
}

// Classify searches for employer and scores the results. Search failures
// are returned as *datatypes.ExternalServiceError.
func (l *LiveClassifier) Classify(ctx context.Context, employer string) (datatypes.LegitimacyVerdict, error) {
	results, err := l.searcher.Search(ctx, Query(employer))
	if err != nil {
		return datatypes.LegitimacyVerdict{}, &datatypes.ExternalServiceError{
			Service: "company-search",
			Reason:  "search unavailable",
			Err:     err,
		}
	}
	return ClassifyResults(employer, results, l.tables), nil
}

// =============================================================================
// Fallback Wrapper
// =============================================================================

// FallbackClassifier tries the live strategy under a fixed timeout and
// degrades to the simulated strategy on any failure.
//
// Classify never returns an error.
type FallbackClassifier struct {
	live      Classifier
	simulated Classifier
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *observability.LoanMetrics
}

var _ Classifier = (*FallbackClassifier)(nil)

// FallbackOption configures a FallbackClassifier.
type FallbackOption func(*FallbackClassifier)

// WithTimeout overrides DefaultLookupTimeout.
func WithTimeout(d time.Duration) FallbackOption {
	return func(f *FallbackClassifier) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *slog.Logger) FallbackOption {
	return func(f *FallbackClassifier) { f.logger = l }
}

// WithMetrics records lookups and fallbacks on m.
func WithMetrics(m *observability.LoanMetrics) FallbackOption {
	return func(f *FallbackClassifier) { f.metrics = m }
}

// NewFallbackClassifier wraps live (which may be nil when no search key is
// configured) with simulated.
func NewFallbackClassifier(live, simulated Classifier, opts ...FallbackOption) *FallbackClassifier {
	f := &FallbackClassifier{
		live:      live,
		simulated: simulated,
		timeout:   DefaultLookupTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Classify implements Classifier.
func (f *FallbackClassifier) Classify(ctx context.Context, employer string) (datatypes.LegitimacyVerdict, error) {
	if f.live != nil {
		liveCtx, cancel := context.WithTimeout(ctx, f.timeout)
		verdict, err := f.live.Classify(liveCtx, employer)
		expired := errors.Is(liveCtx.Err(), context.DeadlineExceeded)
		cancel()
		if err == nil {
			f.metrics.RecordLegitimacyLookup("live", verdict.Verified)
			return verdict, nil
		}
		reason := observability.ReasonTransport
		if expired || errors.Is(err, context.DeadlineExceeded) {
			reason = observability.ReasonTimeout
		}
		f.metrics.RecordFallback(observability.StageLegitimacy, reason)
		f.logger.Warn("live company lookup failed, using simulated lookup",
			"reason", string(reason), "error", err)
	}

	verdict, err := f.simulated.Classify(ctx, employer)
	if err != nil {
		verdict = datatypes.LegitimacyVerdict{
			Confidence: datatypes.ConfidenceSimulated,
			Evidence:   []datatypes.SearchResult{},
			Reason:     "Unable to verify employer (simulated lookup)",
		}
	}
	f.metrics.RecordLegitimacyLookup("simulated", verdict.Verified)
	return verdict, nil
}

// New builds the classifier used by the service: a live classifier over
// searcher when it is non-nil, wrapped with the simulated fallback.
func New(searcher Searcher, tables *config.Tables, opts ...FallbackOption) *FallbackClassifier {
	var live Classifier
	if searcher != nil {
		live = NewLiveClassifier(searcher, tables)
	}
	return NewFallbackClassifier(live, NewSimulatedClassifier(tables), opts...)
}
