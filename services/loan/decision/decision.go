// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package decision implements the final decision stage.
//
// # Description
//
// Decider has the same two-tier shape as the review stage: Assisted asks
// the reasoning service for a constrained JSON decision, Deterministic
// applies the weighted risk rule, and Fallback picks between them.
//
// The deterministic overall risk weights the procedures 45/25/30, which is
// deliberately not the 40/35/25 split the review stage uses.
package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianLoan/pkg/format"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/risk"
)

// Decider produces the final decision for an application.
type Decider interface {
	Decide(ctx context.Context, app datatypes.LoanApplication, set datatypes.AssessmentSet, review datatypes.ReviewResult) (datatypes.FinalDecision, error)
}

// Decision weights.
const (
	WeightCredit     = 0.45
	WeightEmployment = 0.25
	WeightCollateral = 0.30
)

// StandardConditions is the single condition of a Conditional decision with
// no specific concern.
const StandardConditions = "Standard loan conditions apply"

// =============================================================================
// Deterministic Decider
// =============================================================================

// Deterministic is the rule-based decider. It is a pure function of its
// inputs and never fails.
type Deterministic struct{}

var _ Decider = Deterministic{}

// Decide implements Decider.
func (Deterministic) Decide(_ context.Context, app datatypes.LoanApplication, set datatypes.AssessmentSet, review datatypes.ReviewResult) (datatypes.FinalDecision, error) {
	return Compute(app, set, review), nil
}

// Compute returns the deterministic decision.
//
// # Description
//
// overallRisk = credit*0.45 + employment*0.25 + collateral*0.30, then:
//
//   - risk < 0.3 and all three passed: Approved
//   - risk < 0.5 and at least two passed: Conditional
//   - risk < 0.6 and at least one passed: Conditional
//   - otherwise: Rejected
//
// Conditions are attached only to Conditional decisions.
func Compute(app datatypes.LoanApplication, set datatypes.AssessmentSet, review datatypes.ReviewResult) datatypes.FinalDecision {
	overall := OverallRisk(set)
	decision := Rule(overall, set.PassedCount())

	conditions := []string{}
	if decision == datatypes.DecisionConditional {
		conditions = Conditions(set)
	}

	return datatypes.FinalDecision{
		Decision:        decision,
		RiskScore:       overall,
		Reasoning:       Narrative(app, set, review, decision, overall),
		Conditions:      conditions,
		Recommendations: Recommendations(app, set),
		Source:          datatypes.SourceDeterministic,
	}
}

// OverallRisk is the weighted recombination of the three risk scores.
func OverallRisk(set datatypes.AssessmentSet) float64 {
	return risk.Clamp(set.Credit.RiskScore*WeightCredit +
		set.Employment.RiskScore*WeightEmployment +
		set.Collateral.RiskScore*WeightCollateral)
}

// Rule maps an overall risk and the number of passed procedures to a
// decision.
func Rule(overall float64, passed int) datatypes.Decision {
	switch {
	case overall < 0.3 && passed == 3:
		return datatypes.DecisionApproved
	case overall < 0.5 && passed >= 2:
		return datatypes.DecisionConditional
	case overall < 0.6 && passed >= 1:
		return datatypes.DecisionConditional
	default:
		return datatypes.DecisionRejected
	}
}

// Conditions lists what a Conditional applicant must satisfy, per failing
// dimension.
func Conditions(set datatypes.AssessmentSet) []string {
	var conditions []string

	if !set.Credit.Passed || set.Credit.RiskScore > 0.4 {
		conditions = append(conditions,
			"Provide co-signer with good credit standing",
			"Submit detailed credit report from all three bureaus")
	}

	if !set.Employment.Passed {
		conditions = append(conditions,
			"Provide three recent pay stubs",
			"Submit employment verification letter from HR")
	}
	if e := set.Employment.Employment; e != nil && (e.Stability == datatypes.RatingFair || e.Stability == datatypes.RatingPoor) {
		conditions = append(conditions, "Provide proof of income continuity for 6 months")
	}

	ltv, hasLTV := set.Collateral.LoanToValue()
	if !set.Collateral.Passed || (hasLTV && ltv > 0.75) {
		conditions = append(conditions,
			"Increase down payment to achieve LTV of 75% or less",
			"Provide professional collateral appraisal")
	}

	if set.Credit.DebtToIncome() > 0.4 {
		conditions = append(conditions, "Reduce existing debt obligations")
	}

	if len(conditions) == 0 {
		return []string{StandardConditions}
	}
	return conditions
}

// Recommendations lists underwriting suggestions independent of the
// decision tag.
func Recommendations(app datatypes.LoanApplication, set datatypes.AssessmentSet) []string {
	var recs []string
	ltv, hasLTV := set.Collateral.LoanToValue()

	if set.Credit.RiskScore > 0.6 {
		recs = append(recs, "Consider requiring a co-signer or guarantor")
	}
	if !hasLTV || ltv > 0.8 {
		recs = append(recs, "Request additional collateral or reduce loan amount")
	}
	if !set.Employment.Passed {
		recs = append(recs, "Request recent pay stubs and employment verification letter")
	}
	if app.EmploymentYears < 2 {
		recs = append(recs, "Monitor employment stability closely; consider probationary period")
	}
	if set.Credit.DebtToIncome() > 0.4 {
		recs = append(recs, "Review detailed debt obligations and repayment capacity")
	}
	if set.PassedCount() == 3 {
		recs = append(recs, "Strong candidate for standard approval terms")
	}
	if set.Credit.Rating == datatypes.RatingExcellent && hasLTV && ltv < 1/1.5 {
		recs = append(recs, "Consider offering preferential interest rates")
	}

	if len(recs) == 0 {
		return []string{"Proceed with standard underwriting protocols"}
	}
	return recs
}

// Narrative writes the human-readable reasoning for a decision.
func Narrative(app datatypes.LoanApplication, set datatypes.AssessmentSet, review datatypes.ReviewResult, decision datatypes.Decision, overall float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "LOAN DECISION: %s\n", strings.ToUpper(string(decision)))
	fmt.Fprintf(&b, "Overall risk score: %s (%s risk)\n\n", format.Ratio(overall), riskBand(overall))

	stability := strings.ToLower(string(set.Employment.Rating))
	switch decision {
	case datatypes.DecisionApproved:
		fmt.Fprintf(&b, "Loan application for %s has been APPROVED for %s. ", app.Name, format.USD(app.LoanAmount))
		fmt.Fprintf(&b, "The applicant shows %s credit risk, %s employment stability at %s",
			strings.ToLower(string(set.Credit.Rating)), stability, app.CompanyName)
		if ltv, ok := set.Collateral.LoanToValue(); ok {
			fmt.Fprintf(&b, " and adequate collateral (LTV %s)", format.Percent(ltv))
		}
		b.WriteString(". All verification checks passed.")

	case datatypes.DecisionConditional:
		fmt.Fprintf(&b, "Loan application for %s has received CONDITIONAL APPROVAL for %s. ", app.Name, format.USD(app.LoanAmount))
		fmt.Fprintf(&b, "The application shows %s credit risk and %s employment stability, but conditions must be met to proceed. ",
			strings.ToLower(string(set.Credit.Rating)), stability)
		if areas := failingAreas(set, "credit risk mitigation", "employment verification", "collateral enhancement"); len(areas) > 0 {
			fmt.Fprintf(&b, "Primary areas requiring attention: %s. ", strings.Join(areas, ", "))
		}
		b.WriteString("Once the conditions are satisfied the loan can proceed to final approval.")

	default:
		fmt.Fprintf(&b, "Loan application for %s has been REJECTED. ", app.Name)
		fmt.Fprintf(&b, "The application presents high risk (score %s) with concerns across multiple verification areas. ", format.Ratio(overall))
		creditIssue := fmt.Sprintf("%s credit risk", set.Credit.Rating)
		if areas := failingAreas(set, creditIssue, "employment verification concerns", "insufficient collateral"); len(areas) > 0 {
			fmt.Fprintf(&b, "Key issues: %s. ", strings.Join(areas, ", "))
		}
		b.WriteString("The applicant may reapply once these concerns are addressed.")
	}

	if review.Recommendation != "" {
		fmt.Fprintf(&b, "\nReview stage recommended %s at risk level %s.", review.Recommendation, format.Ratio(review.RiskLevel))
	}
	return b.String()
}

func failingAreas(set datatypes.AssessmentSet, credit, employment, collateral string) []string {
	var areas []string
	if !set.Credit.Passed {
		areas = append(areas, credit)
	}
	if !set.Employment.Passed {
		areas = append(areas, employment)
	}
	if !set.Collateral.Passed {
		areas = append(areas, collateral)
	}
	return areas
}

func riskBand(overall float64) string {
	switch {
	case overall < 0.3:
		return "Low"
	case overall < 0.6:
		return "Medium"
	default:
		return "High"
	}
}
