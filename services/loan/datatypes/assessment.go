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

// =============================================================================
// Procedure and Rating Tags
// =============================================================================

// Procedure identifies which risk procedure produced an assessment.
type Procedure string

const (
	ProcedureCredit     Procedure = "credit"
	ProcedureEmployment Procedure = "employment"
	ProcedureCollateral Procedure = "collateral"
)

// Rating is the categorical rating attached to an assessment. Credit and
// employment use the four-tier scale; collateral extends it with the
// Marginal, High-Risk and Very-High-Risk bands.
type Rating string

const (
	RatingExcellent    Rating = "Excellent"
	RatingGood         Rating = "Good"
	RatingFair         Rating = "Fair"
	RatingPoor         Rating = "Poor"
	RatingMarginal     Rating = "Marginal"
	RatingHighRisk     Rating = "High-Risk"
	RatingVeryHighRisk Rating = "Very-High-Risk"
)

// Tier is a coarse three-level scale used for profile confidence and
// job-hopping exposure.
type Tier string

const (
	TierHigh     Tier = "High"
	TierModerate Tier = "Moderate"
	TierMedium   Tier = "Medium"
	TierLow      Tier = "Low"
)

// Confidence is the confidence tag on a LegitimacyVerdict.
type Confidence string

const (
	ConfidenceHigh      Confidence = "High"
	ConfidenceMedium    Confidence = "Medium"
	ConfidenceLow       Confidence = "Low"
	ConfidenceSimulated Confidence = "Simulated"
)

// =============================================================================
// Risk Assessment
// =============================================================================

// RiskAssessment is the output of one risk procedure.
//
// # Description
//
// Carries the common fields every procedure reports plus exactly one typed
// detail block matching Procedure. Assessments are produced once per task per
// procedure and never mutated afterwards.
//
// # Fields
//
//   - Procedure: Which procedure produced this assessment.
//   - RiskScore: Normalized risk in [0,1]; 0 is no risk.
//   - Rating: Categorical rating on the procedure's scale.
//   - Justification: Human-readable explanation of the score.
//   - Passed: Whether the procedure considers the application acceptable.
//   - Credit, Employment, Collateral: Procedure-specific details; exactly
//     one is non-nil.
type RiskAssessment struct {
	Procedure     Procedure `json:"procedure"`
	RiskScore     float64   `json:"risk_score"`
	Rating        Rating    `json:"rating"`
	Justification string    `json:"justification"`
	Passed        bool      `json:"passed"`

	Credit     *CreditDetails     `json:"credit,omitempty"`
	Employment *EmploymentDetails `json:"employment,omitempty"`
	Collateral *CollateralDetails `json:"collateral,omitempty"`
}

// CreditVariant names which credit formula produced the assessment.
type CreditVariant string

const (
	CreditVariantAmortized CreditVariant = "amortized"
	CreditVariantBurden    CreditVariant = "burden"
)

// CreditDetails holds the intermediate figures of the credit procedure.
type CreditDetails struct {
	Variant        CreditVariant `json:"variant"`
	CreditScore    *int          `json:"credit_score,omitempty"`
	MonthlyPayment float64       `json:"monthly_payment"`
	DebtToIncome   float64       `json:"debt_to_income"`
	DTIRisk        float64       `json:"dti_risk"`
	ScoreRisk      float64       `json:"score_risk,omitempty"`
	LoanToIncome   float64       `json:"loan_to_income,omitempty"`
	LTIRisk        float64       `json:"lti_risk,omitempty"`
	LoansRisk      float64       `json:"loans_risk,omitempty"`
	RepaymentRisk  float64       `json:"repayment_risk,omitempty"`
}

// EmploymentDetails holds the intermediate figures of the employment
// procedure, including the legitimacy verdict it consumed.
type EmploymentDetails struct {
	Verdict           LegitimacyVerdict `json:"verdict"`
	ProfileScore      int               `json:"profile_score"`
	ProfileConfidence Tier              `json:"profile_confidence"`
	Stability         Rating            `json:"stability"`
	StabilityRisk     float64           `json:"stability_risk"`
	AverageTenure     float64           `json:"average_tenure"`
	JobHopping        Tier              `json:"job_hopping"`
	Flags             []string          `json:"flags"`
}

// CollateralDetails holds the intermediate figures of the collateral
// procedure. LTV is nil when the collateral value was not positive.
type CollateralDetails struct {
	LTV       *float64 `json:"ltv,omitempty"`
	MaxLTV    float64  `json:"max_ltv"`
	Adequate  bool     `json:"adequate"`
	Shortfall float64  `json:"shortfall,omitempty"`
}

// DebtToIncome returns the credit DTI figure, zero for non-credit
// assessments.
func (r *RiskAssessment) DebtToIncome() float64 {
	if r == nil || r.Credit == nil {
		return 0
	}
	return r.Credit.DebtToIncome
}

// LoanToValue returns the collateral LTV figure and whether it is defined.
func (r *RiskAssessment) LoanToValue() (float64, bool) {
	if r == nil || r.Collateral == nil || r.Collateral.LTV == nil {
		return 0, false
	}
	return *r.Collateral.LTV, true
}

// =============================================================================
// Legitimacy Verdict
// =============================================================================

// SearchResult is one organic result from the company search service.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// IndicatorCounts records the keyword tallies behind a live verdict.
type IndicatorCounts struct {
	Positive      int  `json:"positive"`
	Negative      int  `json:"negative"`
	TrustedDomain int  `json:"trusted_domain"`
	ScamCheck     int  `json:"scam_check"`
	OfficialSite  bool `json:"official_site"`
}

// LegitimacyVerdict is the classifier's judgement of an employer.
//
// Evidence holds at most three results, in search order. Indicators is nil
// for simulated verdicts.
type LegitimacyVerdict struct {
	Verified   bool             `json:"verified"`
	Confidence Confidence       `json:"confidence"`
	Evidence   []SearchResult   `json:"evidence"`
	Reason     string           `json:"reason"`
	Indicators *IndicatorCounts `json:"indicators,omitempty"`
}
