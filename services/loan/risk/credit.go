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
	"fmt"
	"math"
	"strings"

	"github.com/AleutianAI/AleutianLoan/pkg/format"
	"github.com/AleutianAI/AleutianLoan/services/loan/config"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
)

const (
	// amortizationRate is the fixed annual rate of the amortized variant.
	amortizationRate = 0.06
	// amortizationMonths is the fixed term of the amortized variant.
	amortizationMonths = 360

	// assumedDebtPerLoan estimates the balance of each existing loan.
	assumedDebtPerLoan = 10000.0
	// monthlyDebtService is the share of existing debt paid each month.
	monthlyDebtService = 0.05

	weightDTI       = 0.25
	weightLTI       = 0.25
	weightLoans     = 0.20
	weightRepayment = 0.30

	weightScore       = 0.60
	weightAmortizeDTI = 0.40
)

// =============================================================================
// Credit Procedure
// =============================================================================

// AssessCredit scores the applicant's creditworthiness.
//
// # Description
//
// When a credit score is supplied the amortized variant runs: the monthly
// payment of the requested loan over 360 months at 6% is divided by monthly
// income, and the DTI and score bands are combined 40/60. Otherwise the
// burden variant combines existing-debt DTI, loan-to-income, open-loan count
// and repayment history with weights 25/25/20/30.
//
// # Inputs
//
//   - app: Validated application.
//   - tables: Credit threshold bands.
//
// # Outputs
//
//   - datatypes.RiskAssessment: Procedure "credit" with CreditDetails.
//
// # Limitations
//
//   - Existing loans are not amortized in the credit-score variant.
func AssessCredit(app datatypes.LoanApplication, tables config.CreditTables) datatypes.RiskAssessment {
	var details datatypes.CreditDetails
	var total float64
	var why string

	if app.CreditScore != nil {
		details, total = amortizedCredit(app, tables)
		why = fmt.Sprintf("Credit score %d (score risk %.2f); monthly payment %s is %s of monthly income (DTI risk %.2f).",
			*app.CreditScore, details.ScoreRisk, format.USDCents(details.MonthlyPayment),
			format.Percent(details.DebtToIncome), details.DTIRisk)
	} else {
		details, total = burdenCredit(app)
		why = burdenJustification(app, details)
	}

	total = Clamp(total)
	rating := RatingFor(total)
	passed := total < PassThreshold
	verdict := "within acceptable limits"
	if !passed {
		verdict = "above the acceptable limit"
	}

	return datatypes.RiskAssessment{
		Procedure:     datatypes.ProcedureCredit,
		RiskScore:     total,
		Rating:        rating,
		Justification: fmt.Sprintf("%s Credit risk %.3f (%s) is %s.", why, total, rating, verdict),
		Passed:        passed,
		Credit:        &details,
	}
}

func amortizedCredit(app datatypes.LoanApplication, tables config.CreditTables) (datatypes.CreditDetails, float64) {
	payment := MonthlyPayment(app.LoanAmount)
	dti := payment / (app.Income / 12)
	dtiRisk := DTIRisk(dti, tables)
	scoreRisk := ScoreRisk(*app.CreditScore, tables)

	score := *app.CreditScore
	details := datatypes.CreditDetails{
		Variant:        datatypes.CreditVariantAmortized,
		CreditScore:    &score,
		MonthlyPayment: payment,
		DebtToIncome:   dti,
		DTIRisk:        dtiRisk,
		ScoreRisk:      scoreRisk,
	}
	return details, scoreRisk*weightScore + dtiRisk*weightAmortizeDTI
}

func burdenCredit(app datatypes.LoanApplication) (datatypes.CreditDetails, float64) {
	monthlyDebt := float64(app.ExistingLoans) * assumedDebtPerLoan * monthlyDebtService
	dti := monthlyDebt / (app.Income / 12)
	lti := app.LoanAmount / app.Income

	details := datatypes.CreditDetails{
		Variant:        datatypes.CreditVariantBurden,
		MonthlyPayment: monthlyDebt,
		DebtToIncome:   dti,
		DTIRisk:        math.Min(dti/0.5, 1),
		LoanToIncome:   lti,
		LTIRisk:        math.Min(lti/2, 1),
		LoansRisk:      math.Min(float64(app.ExistingLoans)/4, 1),
		RepaymentRisk:  1 - app.RepaymentScore/10,
	}
	total := details.DTIRisk*weightDTI +
		details.LTIRisk*weightLTI +
		details.LoansRisk*weightLoans +
		details.RepaymentRisk*weightRepayment
	return details, total
}

func burdenJustification(app datatypes.LoanApplication, d datatypes.CreditDetails) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Debt-to-income %s", format.Ratio(d.DebtToIncome))
	if app.ExistingLoans > 0 {
		fmt.Fprintf(&b, " from %d existing loan(s)", app.ExistingLoans)
	}
	fmt.Fprintf(&b, "; loan-to-income %s; repayment score %.1f/10.", format.Ratio(d.LoanToIncome), app.RepaymentScore)
	return b.String()
}

// MonthlyPayment returns the fixed-rate payment of principal over 360 months
// at 6% a year.
func MonthlyPayment(principal float64) float64 {
	r := amortizationRate / 12
	return principal * r / (1 - math.Pow(1+r, -amortizationMonths))
}

// ScoreRisk maps a credit score to its band risk. Bands are checked
// top-down; the first bound the score reaches applies.
func ScoreRisk(score int, tables config.CreditTables) float64 {
	for _, b := range tables.ScoreBands {
		if float64(score) >= b.Bound {
			return b.Risk
		}
	}
	return tables.ScoreFloorRisk
}

// DTIRisk maps a debt-to-income ratio to its band risk. Bands are checked
// top-down; the first bound the ratio exceeds applies.
func DTIRisk(dti float64, tables config.CreditTables) float64 {
	for _, b := range tables.DTIBands {
		if dti > b.Bound {
			return b.Risk
		}
	}
	return tables.DTIFloorRisk
}
