// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package risk

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianLoan/pkg/format"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/legitimacy"
)

const (
	baseRiskVerified   = 0.10
	baseRiskUnverified = 0.30
	flagPenalty        = 0.10

	// EmploymentPassThreshold is the risk below which a verified employer
	// passes the employment procedure.
	EmploymentPassThreshold = 0.50
)

// Profile-completeness weights, out of 100.
const (
	weightProfileLink   = 30
	weightJobTitle      = 20
	weightEmployment    = 15
	weightProfEmail     = 20
	weightPriorEmployer = 15
)

// Flag descriptions recorded on EmploymentDetails.
const (
	FlagShortEmployment    = "short employment"
	FlagUnverifiedEmployer = "unverified employer"
	FlagNoProfile          = "no professional profile"
)

var stabilityRisk = map[datatypes.Rating]float64{
	datatypes.RatingExcellent: 0.00,
	datatypes.RatingGood:      0.10,
	datatypes.RatingFair:      0.20,
	datatypes.RatingPoor:      0.35,
}

// =============================================================================
// Employment Procedure
// =============================================================================

// EmploymentProcedure scores employment stability and employer legitimacy.
type EmploymentProcedure struct {
	classifier legitimacy.Classifier
}

// NewEmploymentProcedure creates a procedure backed by classifier.
func NewEmploymentProcedure(classifier legitimacy.Classifier) *EmploymentProcedure {
	return &EmploymentProcedure{classifier: classifier}
}

// Assess runs the employment procedure.
//
// # Description
//
// Steps, in order:
//
//  1. Classify the employer to obtain a LegitimacyVerdict.
//  2. Score profile completeness out of 100 and map it to a tier.
//  3. Derive the stability tier from tenure.
//  4. Derive job-hopping exposure from average tenure across employers.
//  5. risk = baseRisk + stabilityRisk + 0.10 per flag, clamped to [0,1].
//
// # Inputs
//
//   - ctx: Bounds the classifier call.
//   - app: Validated application.
//
// # Outputs
//
//   - datatypes.RiskAssessment: Procedure "employment" with
//     EmploymentDetails. Rating is the stability tier. Passed requires a
//     verified employer and risk below 0.50.
//
// # Limitations
//
//   - Job-hopping exposure is informational and does not change the score.
func (p *EmploymentProcedure) Assess(ctx context.Context, app datatypes.LoanApplication) datatypes.RiskAssessment {
	verdict, err := p.classifier.Classify(ctx, app.CompanyName)
	if err != nil {
		verdict = datatypes.LegitimacyVerdict{
			Verified:   false,
			Confidence: datatypes.ConfidenceLow,
			Evidence:   []datatypes.SearchResult{},
			Reason:     fmt.Sprintf("employer could not be classified: %v", err),
		}
	}

	hasProfile := app.HasProfile()
	profileScore, profileTier := ProfileCompleteness(app)
	stability := Stability(app.EmploymentYears, hasProfile)
	avgTenure, hopping := JobHopping(app.EmploymentYears, app.PriorEmployerCount())

	var flags []string
	if ShortEmployment(app.EmploymentYears, hasProfile) {
		flags = append(flags, FlagShortEmployment)
	}
	if !verdict.Verified {
		flags = append(flags, FlagUnverifiedEmployer)
	}
	if !hasProfile {
		flags = append(flags, FlagNoProfile)
	}

	base := baseRiskVerified
	if !verdict.Verified {
		base = baseRiskUnverified
	}
	total := Clamp(base + stabilityRisk[stability] + flagPenalty*float64(len(flags)))
	passed := verdict.Verified && total < EmploymentPassThreshold

	details := datatypes.EmploymentDetails{
		Verdict:           verdict,
		ProfileScore:      profileScore,
		ProfileConfidence: profileTier,
		Stability:         stability,
		StabilityRisk:     stabilityRisk[stability],
		AverageTenure:     avgTenure,
		JobHopping:        hopping,
		Flags:             flags,
	}
	if details.Flags == nil {
		details.Flags = []string{}
	}

	return datatypes.RiskAssessment{
		Procedure:     datatypes.ProcedureEmployment,
		RiskScore:     total,
		Rating:        stability,
		Justification: employmentJustification(app, details, total),
		Passed:        passed,
		Employment:    &details,
	}
}

func employmentJustification(app datatypes.LoanApplication, d datatypes.EmploymentDetails, total float64) string {
	status := "unverified"
	if d.Verdict.Verified {
		status = "verified"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Employer %q %s (%s confidence: %s). ", app.CompanyName, status, d.Verdict.Confidence, d.Verdict.Reason)
	fmt.Fprintf(&b, "Tenure %s gives %s stability; profile completeness %d/100 (%s). ",
		format.Years(app.EmploymentYears), d.Stability, d.ProfileScore, d.ProfileConfidence)
	fmt.Fprintf(&b, "Job-hopping exposure %s (average tenure %s).", d.JobHopping, format.Years(d.AverageTenure))
	if len(d.Flags) > 0 {
		fmt.Fprintf(&b, " Flags: %s.", strings.Join(d.Flags, ", "))
	}
	fmt.Fprintf(&b, " Employment risk %.3f.", total)
	return b.String()
}

// ProfileCompleteness scores the optional professional-profile fields out
// of 100 and maps the score to a confidence tier (>=80 High, >=50 Medium,
// else Low).
func ProfileCompleteness(app datatypes.LoanApplication) (int, datatypes.Tier) {
	score := 0
	if app.HasProfile() {
		score += weightProfileLink
	}
	if strings.TrimSpace(app.JobTitle) != "" {
		score += weightJobTitle
	}
	if strings.TrimSpace(app.EmploymentType) != "" {
		score += weightEmployment
	}
	if strings.TrimSpace(app.ProfessionalEmail) != "" {
		score += weightProfEmail
	}
	if app.PreviousEmployers != nil {
		score += weightPriorEmployer
	}
	switch {
	case score >= 80:
		return score, datatypes.TierHigh
	case score >= 50:
		return score, datatypes.TierMedium
	default:
		return score, datatypes.TierLow
	}
}

// Stability maps tenure to a stability tier. A profile link lowers the Fair
// threshold from 0.5 to 0.25 years.
func Stability(years float64, hasProfile bool) datatypes.Rating {
	fairFloor := 0.5
	if hasProfile {
		fairFloor = 0.25
	}
	switch {
	case years >= 3:
		return datatypes.RatingExcellent
	case years >= 1.5:
		return datatypes.RatingGood
	case years >= fairFloor:
		return datatypes.RatingFair
	default:
		return datatypes.RatingPoor
	}
}

// ShortEmployment reports whether tenure is under one year, or under half a
// year when a profile link is present.
func ShortEmployment(years float64, hasProfile bool) bool {
	if hasProfile {
		return years < 0.5
	}
	return years < 1
}

// JobHopping returns the average tenure across the current and prior
// employers and its exposure tier (>=2 Low, >=1 Moderate, else High).
func JobHopping(years float64, priorEmployers int) (float64, datatypes.Tier) {
	if priorEmployers < 0 {
		priorEmployers = 0
	}
	avg := years / float64(priorEmployers+1)
	switch {
	case avg >= 2:
		return avg, datatypes.TierLow
	case avg >= 1:
		return avg, datatypes.TierModerate
	default:
		return avg, datatypes.TierHigh
	}
}
