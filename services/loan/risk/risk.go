// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package risk implements the three independent risk procedures of the loan
// pipeline: credit, employment and collateral.
//
// # Description
//
// Each procedure reads a value copy of the LoanApplication and returns a
// RiskAssessment whose score lies in [0,1]. Credit and collateral are pure
// functions of their inputs. Employment additionally consults a legitimacy
// Classifier, which is the only blocking call in this package.
//
// # Thread Safety
//
// Procedures share no mutable state and may run concurrently.
package risk

import (
	"math"

	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
)

// PassThreshold is the risk below which the credit procedure passes.
const PassThreshold = 0.60

// Clamp bounds v to [0,1]. NaN maps to 1, the worst case.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 1
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// RatingFor maps a total risk to the four-tier scale shared by credit and
// the review narrative.
func RatingFor(risk float64) datatypes.Rating {
	switch {
	case risk < 0.25:
		return datatypes.RatingExcellent
	case risk < 0.40:
		return datatypes.RatingGood
	case risk < 0.60:
		return datatypes.RatingFair
	default:
		return datatypes.RatingPoor
	}
}
