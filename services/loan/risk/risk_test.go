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
	"errors"
	"math"
	"testing"

	"github.com/AleutianAI/AleutianLoan/services/loan/config"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/legitimacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

type stubClassifier struct {
	verdict datatypes.LegitimacyVerdict
	err     error
	calls   int
}

func (s *stubClassifier) Classify(_ context.Context, _ string) (datatypes.LegitimacyVerdict, error) {
	s.calls++
	return s.verdict, s.err
}

func intPtr(v int) *int { return &v }

func scenarioA() datatypes.LoanApplication {
	return datatypes.LoanApplication{
		Name:            "Alice Example",
		Income:          100000,
		LoanAmount:      30000,
		ExistingLoans:   0,
		RepaymentScore:  9.5,
		EmploymentYears: 10,
		CompanyName:     "Microsoft",
		CollateralValue: 50000,
	}
}

func scenarioB() datatypes.LoanApplication {
	return datatypes.LoanApplication{
		Name:            "Bob Example",
		Income:          30000,
		LoanAmount:      50000,
		ExistingLoans:   3,
		RepaymentScore:  3.0,
		EmploymentYears: 0.3,
		CompanyName:     "Unknown Startup",
		CollateralValue: 20000,
	}
}

func simulated() legitimacy.Classifier {
	return legitimacy.NewSimulatedClassifier(config.Default())
}

// =============================================================================
// Credit Tests
// =============================================================================

func TestScoreRisk_BandEdges(t *testing.T) {
	tables := config.Default().Credit
	cases := map[int]float64{
		850: 0.05,
		750: 0.05,
		749: 0.15,
		700: 0.15,
		650: 0.35,
		649: 0.60,
		600: 0.60,
		599: 0.85,
		300: 0.85,
	}
	for score, want := range cases {
		assert.Equal(t, want, ScoreRisk(score, tables), "score %d", score)
	}
}

func TestDTIRisk_BandEdges(t *testing.T) {
	tables := config.Default().Credit
	assert.Equal(t, 0.80, DTIRisk(0.50, tables))
	assert.Equal(t, 0.50, DTIRisk(0.43, tables))
	assert.Equal(t, 0.25, DTIRisk(0.30, tables))
	assert.Equal(t, 0.10, DTIRisk(0.28, tables))
	assert.Equal(t, 0.10, DTIRisk(0, tables))
}

func TestMonthlyPayment(t *testing.T) {
	// 100k over 30 years at 6% is the textbook 599.55.
	assert.InDelta(t, 599.55, MonthlyPayment(100000), 0.01)
}

func TestAssessCredit_BurdenScenarioA(t *testing.T) {
	a := AssessCredit(scenarioA(), config.Default().Credit)

	assert.Equal(t, datatypes.ProcedureCredit, a.Procedure)
	assert.InDelta(t, 0.0525, a.RiskScore, 1e-9)
	assert.Equal(t, datatypes.RatingExcellent, a.Rating)
	assert.True(t, a.Passed)
	require.NotNil(t, a.Credit)
	assert.Equal(t, datatypes.CreditVariantBurden, a.Credit.Variant)
	assert.Nil(t, a.Credit.CreditScore)
	assert.NotEmpty(t, a.Justification)
}

func TestAssessCredit_BurdenScenarioB(t *testing.T) {
	a := AssessCredit(scenarioB(), config.Default().Credit)

	assert.InDelta(t, 0.8183, a.RiskScore, 1e-3)
	assert.Equal(t, datatypes.RatingPoor, a.Rating)
	assert.False(t, a.Passed)
	assert.InDelta(t, 0.6, a.Credit.DebtToIncome, 1e-9)
	assert.Equal(t, 1.0, a.Credit.DTIRisk)
}

func TestAssessCredit_Amortized(t *testing.T) {
	app := scenarioA()
	app.CreditScore = intPtr(760)

	a := AssessCredit(app, config.Default().Credit)

	require.NotNil(t, a.Credit)
	assert.Equal(t, datatypes.CreditVariantAmortized, a.Credit.Variant)
	require.NotNil(t, a.Credit.CreditScore)
	assert.Equal(t, 760, *a.Credit.CreditScore)
	// 30k loan: payment ~179.87 against 8333.33 monthly income.
	assert.InDelta(t, 0.0216, a.Credit.DebtToIncome, 1e-3)
	assert.Equal(t, 0.05, a.Credit.ScoreRisk)
	assert.Equal(t, 0.10, a.Credit.DTIRisk)
	assert.InDelta(t, 0.05*0.6+0.10*0.4, a.RiskScore, 1e-9)
	assert.True(t, a.Passed)
}

func TestAssessCredit_Deterministic(t *testing.T) {
	app := scenarioB()
	first := AssessCredit(app, config.Default().Credit)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, AssessCredit(app, config.Default().Credit))
	}
}

func TestAssessCredit_Bounded(t *testing.T) {
	app := scenarioB()
	app.ExistingLoans = 50
	app.LoanAmount = 10_000_000
	app.RepaymentScore = 0

	a := AssessCredit(app, config.Default().Credit)
	assert.LessOrEqual(t, a.RiskScore, 1.0)
	assert.GreaterOrEqual(t, a.RiskScore, 0.0)
}

// =============================================================================
// Collateral Tests
// =============================================================================

func TestAssessCollateral_AtMaximumLTV(t *testing.T) {
	app := scenarioA()
	app.LoanAmount = 90000
	app.CollateralValue = 100000

	a := AssessCollateral(app, config.Default().Collateral)

	assert.True(t, a.Passed)
	assert.Equal(t, 0.55, a.RiskScore)
	assert.Equal(t, datatypes.RatingMarginal, a.Rating)
	require.NotNil(t, a.Collateral.LTV)
	assert.Zero(t, a.Collateral.Shortfall)
}

func TestAssessCollateral_JustAboveMaximumLTV(t *testing.T) {
	app := scenarioA()
	app.LoanAmount = 90000.01
	app.CollateralValue = 100000

	a := AssessCollateral(app, config.Default().Collateral)

	assert.False(t, a.Passed)
	assert.Equal(t, 0.75, a.RiskScore)
	assert.Greater(t, a.Collateral.Shortfall, 0.0)
	assert.Contains(t, a.Justification, "CRITICAL")
}

func TestAssessCollateral_ZeroCollateral(t *testing.T) {
	app := scenarioA()
	app.CollateralValue = 0

	a := AssessCollateral(app, config.Default().Collateral)

	assert.Equal(t, 1.0, a.RiskScore)
	assert.False(t, a.Passed)
	assert.Equal(t, datatypes.Rating("Very-High-Risk"), a.Rating)
	assert.Nil(t, a.Collateral.LTV)
	_, ok := a.LoanToValue()
	assert.False(t, ok)
}

func TestAssessCollateral_Scenarios(t *testing.T) {
	tables := config.Default().Collateral

	a := AssessCollateral(scenarioA(), tables)
	assert.Equal(t, 0.10, a.RiskScore)
	assert.Equal(t, datatypes.RatingExcellent, a.Rating)
	assert.True(t, a.Passed)

	b := AssessCollateral(scenarioB(), tables)
	assert.Equal(t, 0.90, b.RiskScore)
	assert.False(t, b.Passed)
	assert.InDelta(t, 50000/0.9-20000, b.Collateral.Shortfall, 1e-6)
}

func TestLoanToValue_NonPositiveCollateral(t *testing.T) {
	_, err := LoanToValue(1000, 0)
	var compErr *datatypes.ComputationError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "collateral", compErr.Procedure)
}

// =============================================================================
// Employment Tests
// =============================================================================

func TestEmploymentProcedure_ScenarioA(t *testing.T) {
	p := NewEmploymentProcedure(simulated())
	a := p.Assess(context.Background(), scenarioA())

	assert.Equal(t, datatypes.ProcedureEmployment, a.Procedure)
	assert.InDelta(t, 0.20, a.RiskScore, 1e-9)
	assert.True(t, a.Passed)
	require.NotNil(t, a.Employment)
	assert.True(t, a.Employment.Verdict.Verified)
	assert.Equal(t, datatypes.ConfidenceSimulated, a.Employment.Verdict.Confidence)
	assert.Equal(t, []string{FlagNoProfile}, a.Employment.Flags)
	assert.Equal(t, datatypes.RatingExcellent, a.Rating)
}

func TestEmploymentProcedure_ScenarioB(t *testing.T) {
	p := NewEmploymentProcedure(simulated())
	a := p.Assess(context.Background(), scenarioB())

	assert.InDelta(t, 0.95, a.RiskScore, 1e-9)
	assert.False(t, a.Passed)
	assert.ElementsMatch(t,
		[]string{FlagShortEmployment, FlagUnverifiedEmployer, FlagNoProfile},
		a.Employment.Flags)
	assert.Equal(t, datatypes.RatingPoor, a.Employment.Stability)
}

func TestEmploymentProcedure_ClassifierError(t *testing.T) {
	stub := &stubClassifier{err: errors.New("lookup down")}
	p := NewEmploymentProcedure(stub)

	a := p.Assess(context.Background(), scenarioA())

	assert.Equal(t, 1, stub.calls)
	assert.False(t, a.Employment.Verdict.Verified)
	assert.Equal(t, datatypes.ConfidenceLow, a.Employment.Verdict.Confidence)
	assert.False(t, a.Passed)
}

func TestEmploymentProcedure_ProfileLowersFlags(t *testing.T) {
	stub := &stubClassifier{verdict: datatypes.LegitimacyVerdict{Verified: true, Confidence: datatypes.ConfidenceHigh}}
	app := scenarioA()
	app.EmploymentYears = 0.6
	app.ProfileURL = "https://www.linkedin.com/in/alice"
	app.JobTitle = "Engineer"
	app.EmploymentType = "full-time"
	app.ProfessionalEmail = "alice@microsoft.com"
	app.PreviousEmployers = intPtr(0)

	a := NewEmploymentProcedure(stub).Assess(context.Background(), app)

	assert.Empty(t, a.Employment.Flags)
	assert.Equal(t, 100, a.Employment.ProfileScore)
	assert.Equal(t, datatypes.TierHigh, a.Employment.ProfileConfidence)
	assert.Equal(t, datatypes.RatingFair, a.Employment.Stability)
	assert.InDelta(t, 0.30, a.RiskScore, 1e-9)
	assert.True(t, a.Passed)
}

func TestStability(t *testing.T) {
	assert.Equal(t, datatypes.RatingExcellent, Stability(3, false))
	assert.Equal(t, datatypes.RatingGood, Stability(1.5, false))
	assert.Equal(t, datatypes.RatingFair, Stability(0.5, false))
	assert.Equal(t, datatypes.RatingPoor, Stability(0.3, false))
	assert.Equal(t, datatypes.RatingFair, Stability(0.3, true))
}

func TestJobHopping(t *testing.T) {
	avg, tier := JobHopping(6, 2)
	assert.Equal(t, 2.0, avg)
	assert.Equal(t, datatypes.TierLow, tier)

	_, tier = JobHopping(3, 2)
	assert.Equal(t, datatypes.TierModerate, tier)

	_, tier = JobHopping(1, 4)
	assert.Equal(t, datatypes.TierHigh, tier)
}

// =============================================================================
// Shared Helpers
// =============================================================================

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.2))
	assert.Equal(t, 1.0, Clamp(1.7))
	assert.Equal(t, 1.0, Clamp(math.NaN()))
	assert.Equal(t, 0.42, Clamp(0.42))
}

func TestRatingFor(t *testing.T) {
	assert.Equal(t, datatypes.RatingExcellent, RatingFor(0.2499))
	assert.Equal(t, datatypes.RatingGood, RatingFor(0.25))
	assert.Equal(t, datatypes.RatingFair, RatingFor(0.40))
	assert.Equal(t, datatypes.RatingPoor, RatingFor(0.60))
}
