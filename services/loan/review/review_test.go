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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianLoan/services/llm"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

type stubLLM struct {
	reply   string
	err     error
	delay   time.Duration
	prompts []string
	params  []llm.GenerationParams
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	s.prompts = append(s.prompts, prompt)
	s.params = append(s.params, params)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.reply, s.err
}

func application() datatypes.LoanApplication {
	return datatypes.LoanApplication{
		Name:            "Alice Example",
		Income:          100000,
		LoanAmount:      30000,
		RepaymentScore:  9.5,
		EmploymentYears: 10,
		CompanyName:     "Microsoft",
		CollateralValue: 50000,
	}
}

func assessments(credit, employment, collateral float64, passed bool) datatypes.AssessmentSet {
	ltv := 0.6
	return datatypes.AssessmentSet{
		Credit: datatypes.RiskAssessment{
			Procedure: datatypes.ProcedureCredit, RiskScore: credit, Passed: passed,
			Credit: &datatypes.CreditDetails{DebtToIncome: 0.1},
		},
		Employment: datatypes.RiskAssessment{
			Procedure: datatypes.ProcedureEmployment, RiskScore: employment, Passed: passed,
			Employment: &datatypes.EmploymentDetails{
				Verdict:    datatypes.LegitimacyVerdict{Verified: passed, Confidence: datatypes.ConfidenceSimulated},
				JobHopping: datatypes.TierLow,
			},
		},
		Collateral: datatypes.RiskAssessment{
			Procedure: datatypes.ProcedureCollateral, RiskScore: collateral, Passed: passed,
			Collateral: &datatypes.CollateralDetails{LTV: &ltv, MaxLTV: 0.9, Adequate: passed},
		},
	}
}

// =============================================================================
// Deterministic Tests
// =============================================================================

func TestCompute_WeightedSum(t *testing.T) {
	cases := [][3]float64{
		{0.0525, 0.20, 0.10},
		{0.818, 0.95, 0.90},
		{0, 0, 0},
		{1, 1, 1},
		{0.33, 0.71, 0.12},
	}
	for _, c := range cases {
		r := Compute(application(), assessments(c[0], c[1], c[2], true))
		want := c[0]*0.40 + c[1]*0.35 + c[2]*0.25
		assert.InDelta(t, want, r.RiskLevel, 1e-9)
		assert.Equal(t, 1.0, r.Confidence)
		assert.Equal(t, datatypes.SourceDeterministic, r.Source)
	}
}

func TestRecommendationFor(t *testing.T) {
	assert.Equal(t, datatypes.RecommendApprove, RecommendationFor(0.2999))
	assert.Equal(t, datatypes.RecommendConditional, RecommendationFor(0.3))
	assert.Equal(t, datatypes.RecommendConditional, RecommendationFor(0.5999))
	assert.Equal(t, datatypes.RecommendReject, RecommendationFor(0.6))
}

func TestConcerns_CleanApplication(t *testing.T) {
	concerns := Concerns(application(), assessments(0.05, 0.2, 0.1, true))
	assert.Equal(t, []string{NoConcerns}, concerns)
}

func TestConcerns_WeakApplication(t *testing.T) {
	app := application()
	app.Income = 20000
	app.LoanAmount = 50000
	app.RepaymentScore = 3
	app.EmploymentYears = 0.3
	set := assessments(0.82, 0.95, 0.9, false)
	set.Credit.Credit.DebtToIncome = 0.6
	ltv := 2.5
	set.Collateral.Collateral.LTV = &ltv

	concerns := strings.Join(Concerns(app, set), "\n")

	for _, want := range []string{
		"High credit risk score",
		"High debt-to-income ratio (60.0%)",
		"Poor repayment history (score: 3.0/10)",
		"Employment verification concerns detected",
		"Company legitimacy could not be verified",
		"Short employment duration",
		"Insufficient collateral coverage",
		"High LTV ratio (250.0%)",
		"Loan amount significantly exceeds annual income",
	} {
		assert.Contains(t, concerns, want)
	}
}

// =============================================================================
// Assisted Tests
// =============================================================================

func TestParseReply_Valid(t *testing.T) {
	r, err := ParseReply([]byte(`{"risk_level":0.42,"confidence":0.8,"concerns":["thin file"],"recommendation":"Conditional"}`))
	require.NoError(t, err)
	assert.Equal(t, 0.42, r.RiskLevel)
	assert.Equal(t, 0.8, r.Confidence)
	assert.Equal(t, []string{"thin file"}, r.Concerns)
	assert.Equal(t, datatypes.RecommendConditional, r.Recommendation)
	assert.Equal(t, datatypes.SourceAssisted, r.Source)
}

func TestParseReply_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing risk level":     `{"confidence":0.8,"concerns":[],"recommendation":"Approve"}`,
		"risk above one":         `{"risk_level":1.2,"confidence":0.8,"concerns":[],"recommendation":"Approve"}`,
		"negative confidence":    `{"risk_level":0.2,"confidence":-0.1,"concerns":[],"recommendation":"Approve"}`,
		"missing concerns":       `{"risk_level":0.2,"confidence":0.8,"recommendation":"Approve"}`,
		"lower-case enum":        `{"risk_level":0.2,"confidence":0.8,"concerns":[],"recommendation":"approve"}`,
		"unknown enum":           `{"risk_level":0.2,"confidence":0.8,"concerns":[],"recommendation":"Maybe"}`,
		"missing recommendation": `{"risk_level":0.2,"confidence":0.8,"concerns":[]}`,
		"risk as string":         `{"risk_level":"0.2","confidence":0.8,"concerns":[],"recommendation":"Approve"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReply([]byte(body))
			require.Error(t, err)
			assert.ErrorIs(t, err, datatypes.ErrInvalidReply)
		})
	}
}

func TestAssisted_Review(t *testing.T) {
	client := &stubLLM{reply: "Here you go:\n```json\n{\"risk_level\":0.25,\"confidence\":0.9,\"concerns\":[],\"recommendation\":\"Approve\"}\n```"}
	r, err := NewAssisted(client).Review(context.Background(), application(), assessments(0.05, 0.2, 0.1, true))

	require.NoError(t, err)
	assert.Equal(t, datatypes.RecommendApprove, r.Recommendation)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Applicant: Alice Example")
	assert.Contains(t, client.prompts[0], "Loan amount requested: $30,000")
	assert.Contains(t, client.prompts[0], "Loan-to-value: 60.0%")
	assert.True(t, client.params[0].JSONMode)
}

func TestAssisted_ReviewInvalidReply(t *testing.T) {
	client := &stubLLM{reply: `{"risk_level":3,"confidence":0.9,"concerns":[],"recommendation":"Approve"}`}
	_, err := NewAssisted(client).Review(context.Background(), application(), assessments(0.05, 0.2, 0.1, true))

	var ext *datatypes.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.ErrorIs(t, err, datatypes.ErrInvalidReply)
}

// =============================================================================
// Fallback Tests
// =============================================================================

func TestFallback_UsesAssistedReply(t *testing.T) {
	client := &stubLLM{reply: `{"risk_level":0.5,"confidence":0.7,"concerns":["x"],"recommendation":"Conditional"}`}
	f := NewFallback(NewAssisted(client))

	r, err := f.Review(context.Background(), application(), assessments(0.05, 0.2, 0.1, true))
	require.NoError(t, err)
	assert.Equal(t, datatypes.SourceAssisted, r.Source)
	assert.Equal(t, 0.5, r.RiskLevel)
}

func TestFallback_Reasons(t *testing.T) {
	tests := []struct {
		name   string
		client *stubLLM
		reason observability.FallbackReason
	}{
		{"transport", &stubLLM{err: errors.New("connection refused")}, observability.ReasonTransport},
		{"invalid", &stubLLM{reply: "I cannot answer that."}, observability.ReasonInvalid},
		{"timeout", &stubLLM{delay: time.Second}, observability.ReasonTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := observability.NewMetrics(prometheus.NewRegistry())
			f := NewFallback(NewAssisted(tt.client), WithTimeout(20*time.Millisecond), WithMetrics(metrics))
			set := assessments(0.05, 0.2, 0.1, true)

			r, err := f.Review(context.Background(), application(), set)
			require.NoError(t, err)
			assert.Equal(t, Compute(application(), set), r)
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("review", string(tt.reason))))
		})
	}
}

func TestFallback_NoAssisted(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	f := NewFallback(nil, WithMetrics(metrics))
	set := assessments(0.818, 0.95, 0.9, false)

	r, err := f.Review(context.Background(), application(), set)
	require.NoError(t, err)
	assert.Equal(t, datatypes.RecommendReject, r.Recommendation)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("review", "unavailable")))
}
