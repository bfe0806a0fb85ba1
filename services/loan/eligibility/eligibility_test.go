// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eligibility

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianLoan/services/loan/config"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/legitimacy"
	"github.com/AleutianAI/AleutianLoan/services/loan/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClassifier struct {
	inner legitimacy.Classifier
	err   error
	calls int
}

func (c *countingClassifier) Classify(ctx context.Context, employer string) (datatypes.LegitimacyVerdict, error) {
	c.calls++
	if c.err != nil {
		return datatypes.LegitimacyVerdict{}, c.err
	}
	return c.inner.Classify(ctx, employer)
}

func newChecker(err error) (*Checker, *countingClassifier, *observability.LoanMetrics) {
	cls := &countingClassifier{inner: legitimacy.NewSimulatedClassifier(config.Default()), err: err}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewChecker(cls, metrics, nil), cls, metrics
}

func request(score int, income float64, company string) datatypes.EligibilityRequest {
	return datatypes.EligibilityRequest{Name: "Carol Example", Income: income, Company: company, LoanAmount: 20000, CreditScore: score}
}

func TestCheck_LowCreditShortCircuits(t *testing.T) {
	c, cls, metrics := newChecker(nil)

	res, err := c.Check(context.Background(), request(600, 80000, "Microsoft"))
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, res.Status)
	assert.Contains(t, res.Reason, "650")
	assert.Equal(t, NotApplicable, res.VerificationConfidence)
	assert.False(t, res.CompanyVerified)
	assert.NotNil(t, res.VerificationResults)
	assert.Zero(t, cls.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EligibilityChecksTotal.WithLabelValues("REJECTED")))
}

func TestCheck_BothMinimumsReported(t *testing.T) {
	c, cls, _ := newChecker(nil)

	res, err := c.Check(context.Background(), request(600, 20000, "Microsoft"))
	require.NoError(t, err)
	assert.Equal(t, "Credit score 600 is below minimum requirement of 650; Income $20,000.00 is below minimum requirement of $30,000.00", res.Reason)
	assert.Zero(t, cls.calls)
}

func TestCheck_Boundaries(t *testing.T) {
	assert.Empty(t, MinimumFailures(request(650, 30000, "x")))
	assert.Len(t, MinimumFailures(request(649, 30000, "x")), 1)
	assert.Len(t, MinimumFailures(request(650, 29999.99, "x")), 1)
}

func TestCheck_VerifiedEmployer(t *testing.T) {
	c, cls, metrics := newChecker(nil)

	res, err := c.Check(context.Background(), request(720, 75000, "Microsoft"))
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, res.Status)
	assert.True(t, res.CompanyVerified)
	assert.Equal(t, string(datatypes.ConfidenceSimulated), res.VerificationConfidence)
	assert.Contains(t, res.Reason, "$75,000.00")
	assert.Equal(t, 1, cls.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EligibilityChecksTotal.WithLabelValues("APPROVED")))
}

func TestCheck_UnknownEmployer(t *testing.T) {
	c, _, _ := newChecker(nil)

	res, err := c.Check(context.Background(), request(720, 75000, "Unknown Startup"))
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.False(t, res.CompanyVerified)
	assert.Contains(t, res.Reason, "company verification failed")
}

func TestCheck_ClassifierErrorIsUnverified(t *testing.T) {
	c, _, _ := newChecker(errors.New("search down"))

	res, err := c.Check(context.Background(), request(720, 75000, "Microsoft"))
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, string(datatypes.ConfidenceLow), res.VerificationConfidence)
	assert.Empty(t, res.VerificationResults)
}

func TestCheck_InvalidRequest(t *testing.T) {
	c, cls, _ := newChecker(nil)

	_, err := c.Check(context.Background(), request(200, 75000, "Microsoft"))
	assert.True(t, datatypes.IsValidationError(err))
	assert.Zero(t, cls.calls)
}
