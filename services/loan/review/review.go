// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package review implements the review stage: one aggregate risk view over
// the three procedure assessments.
//
// # Description
//
// Reviewer has two implementations. Assisted asks the reasoning service for
// a constrained JSON verdict; Deterministic combines the three risk scores
// with fixed weights. Fallback tries Assisted first and answers with
// Deterministic whenever the assisted path is absent or fails.
package review

import (
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianLoan/pkg/format"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
)

// Reviewer produces a ReviewResult from an application and its three
// assessments.
type Reviewer interface {
	Review(ctx context.Context, app datatypes.LoanApplication, set datatypes.AssessmentSet) (datatypes.ReviewResult, error)
}

// Review weights. The decision stage recombines the same scores with its
// own weights.
const (
	WeightCredit     = 0.40
	WeightEmployment = 0.35
	WeightCollateral = 0.25
)

// Recommendation thresholds on the weighted risk level.
const (
	approveBelow     = 0.3
	conditionalBelow = 0.6
)

// NoConcerns is the single concern reported when nothing stands out.
const NoConcerns = "No significant issues identified"

// =============================================================================
// Deterministic Reviewer
// =============================================================================

// Deterministic is the formula-based reviewer. It is a pure function of
// its inputs and never fails.
type Deterministic struct{}

var _ Reviewer = Deterministic{}

// Review implements Reviewer.
func (Deterministic) Review(_ context.Context, app datatypes.LoanApplication, set datatypes.AssessmentSet) (datatypes.ReviewResult, error) {
	return Compute(app, set), nil
}

// Compute returns the deterministic review of app and set.
//
// # Description
//
// riskLevel = credit*0.40 + employment*0.35 + collateral*0.25, unrounded.
// Confidence is fixed at 1.0. The recommendation is Approve below 0.3,
// Conditional below 0.6 and Reject otherwise.
func Compute(app datatypes.LoanApplication, set datatypes.AssessmentSet) datatypes.ReviewResult {
	level := set.Credit.RiskScore*WeightCredit +
		set.Employment.RiskScore*WeightEmployment +
		set.Collateral.RiskScore*WeightCollateral

	return datatypes.ReviewResult{
		RiskLevel:      level,
		Confidence:     1.0,
		Concerns:       Concerns(app, set),
		Recommendation: RecommendationFor(level),
		Source:         datatypes.SourceDeterministic,
	}
}

// RecommendationFor maps a risk level to a recommendation.
func RecommendationFor(level float64) datatypes.Recommendation {
	switch {
	case level < approveBelow:
		return datatypes.RecommendApprove
	case level < conditionalBelow:
		return datatypes.RecommendConditional
	default:
		return datatypes.RecommendReject
	}
}

// Concerns lists the specific issues a reviewer would raise.
func Concerns(app datatypes.LoanApplication, set datatypes.AssessmentSet) []string {
	var concerns []string

	if set.Credit.RiskScore > 0.6 {
		concerns = append(concerns, fmt.Sprintf("High credit risk score (%s)", format.Ratio(set.Credit.RiskScore)))
	}
	if dti := set.Credit.DebtToIncome(); dti > 0.5 {
		concerns = append(concerns, fmt.Sprintf("High debt-to-income ratio (%s)", format.Percent(dti)))
	}
	if app.RepaymentScore < 6 {
		concerns = append(concerns, fmt.Sprintf("Poor repayment history (score: %.1f/10)", app.RepaymentScore))
	}

	if !set.Employment.Passed {
		concerns = append(concerns, "Employment verification concerns detected")
	}
	if e := set.Employment.Employment; e != nil {
		if !e.Verdict.Verified {
			concerns = append(concerns, "Company legitimacy could not be verified")
		}
		if e.JobHopping == datatypes.TierHigh && app.PriorEmployerCount() > 0 {
			concerns = append(concerns, fmt.Sprintf("Frequent job changes (average tenure %s)", format.Years(e.AverageTenure)))
		}
	}
	if app.EmploymentYears < 1 {
		concerns = append(concerns, fmt.Sprintf("Short employment duration (%s)", format.Years(app.EmploymentYears)))
	}

	if !set.Collateral.Passed {
		concerns = append(concerns, "Insufficient collateral coverage")
	}
	if ltv, ok := set.Collateral.LoanToValue(); ok && ltv > 0.8 {
		concerns = append(concerns, fmt.Sprintf("High LTV ratio (%s)", format.Percent(ltv)))
	}

	if app.LoanAmount > app.Income*2 {
		concerns = append(concerns, "Loan amount significantly exceeds annual income")
	}

	if len(concerns) == 0 {
		concerns = []string{NoConcerns}
	}
	return concerns
}
