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

	"github.com/AleutianAI/AleutianLoan/pkg/format"
	"github.com/AleutianAI/AleutianLoan/services/loan/config"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
)

// =============================================================================
// Collateral Procedure
// =============================================================================

// AssessCollateral scores the loan-to-value position of the application.
//
// # Description
//
// ltv = loanAmount / collateralValue is mapped onto the configured bands.
// Collateral is adequate iff ltv does not exceed the maximum acceptable
// threshold; otherwise the justification carries a critical-shortfall note
// with the missing collateral amount.
//
// A non-positive collateral value leaves ltv undefined. The resulting
// ComputationError is absorbed: the assessment reports risk 1.0, the
// ceiling rating and inadequate collateral so the pipeline can still decide.
//
// # Inputs
//
//   - app: Validated application.
//   - tables: LTV bands and the maximum acceptable ltv.
//
// # Outputs
//
//   - datatypes.RiskAssessment: Procedure "collateral" with
//     CollateralDetails. Passed equals Adequate.
func AssessCollateral(app datatypes.LoanApplication, tables config.CollateralTables) datatypes.RiskAssessment {
	ltv, err := LoanToValue(app.LoanAmount, app.CollateralValue)
	if err != nil {
		return datatypes.RiskAssessment{
			Procedure: datatypes.ProcedureCollateral,
			RiskScore: 1.0,
			Rating:    datatypes.Rating(tables.CeilingRating),
			Justification: fmt.Sprintf("Collateral value %s gives no security: %v. CRITICAL: loan of %s is fully unsecured.",
				format.USD(app.CollateralValue), err, format.USD(app.LoanAmount)),
			Passed: false,
			Collateral: &datatypes.CollateralDetails{
				MaxLTV:    tables.MaxLTV,
				Adequate:  false,
				Shortfall: app.LoanAmount / tables.MaxLTV,
			},
		}
	}

	risk, rating := LTVBand(ltv, tables)
	adequate := Adequate(ltv, tables.MaxLTV)
	details := datatypes.CollateralDetails{
		LTV:      &ltv,
		MaxLTV:   tables.MaxLTV,
		Adequate: adequate,
	}

	why := fmt.Sprintf("Loan %s against collateral %s gives LTV %s (%s band, maximum %s).",
		format.USD(app.LoanAmount), format.USD(app.CollateralValue), format.Percent(ltv),
		rating, format.Percent(tables.MaxLTV))
	if !adequate {
		details.Shortfall = app.LoanAmount/tables.MaxLTV - app.CollateralValue
		why += fmt.Sprintf(" CRITICAL: collateral shortfall of %s against the maximum acceptable LTV.",
			format.USD(details.Shortfall))
	}

	return datatypes.RiskAssessment{
		Procedure:     datatypes.ProcedureCollateral,
		RiskScore:     Clamp(risk),
		Rating:        rating,
		Justification: why,
		Passed:        adequate,
		Collateral:    &details,
	}
}

// LoanToValue returns loan / collateral, or a *datatypes.ComputationError
// when collateral is not positive.
func LoanToValue(loan, collateral float64) (float64, error) {
	if collateral <= 0 {
		return 0, &datatypes.ComputationError{
			Procedure: string(datatypes.ProcedureCollateral),
			Condition: "loan-to-value division undefined for non-positive collateral",
		}
	}
	return loan / collateral, nil
}

// Adequate reports whether ltv is within the maximum acceptable threshold.
func Adequate(ltv, maxLTV float64) bool {
	return ltv <= maxLTV
}

// LTVBand returns the risk and rating of the first band whose bound ltv does
// not exceed, or the ceiling band.
func LTVBand(ltv float64, tables config.CollateralTables) (float64, datatypes.Rating) {
	for _, b := range tables.LTVBands {
		if ltv <= b.Bound {
			return b.Risk, datatypes.Rating(b.Rating)
		}
	}
	return tables.CeilingRisk, datatypes.Rating(tables.CeilingRating)
}
