// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianLoan/pkg/format"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
)

// Greet builds the informational welcome attached when evaluation starts.
func Greet(app datatypes.LoanApplication, now time.Time) *datatypes.Greeting {
	return &datatypes.Greeting{
		Message: fmt.Sprintf("Dear %s, thank you for applying for a loan of %s. "+
			"Your application has been received and is now being evaluated for "+
			"credit history, employment and collateral.", app.Name, format.USD(app.LoanAmount)),
		At: now.UTC(),
	}
}

// PlanFor lists the checks run for app. Extra checks are listed when the
// application shows many loans, recent employment or a large loan.
func PlanFor(app datatypes.LoanApplication) *datatypes.Plan {
	steps := []string{
		"Credit History Verification - debt-to-income, existing loans and repayment history",
		"Employment Verification - employer legitimacy and job stability",
		"Collateral Verification - collateral value and loan-to-value ratio",
		"Risk Review - combined risk level and concerns",
		"Final Decision - approval decision with reasoning",
	}
	if app.LoanAmount > app.Income*2 {
		steps = insertAt(steps, 3, "High Loan-to-Income Review - loan exceeds twice annual income")
	}
	if app.EmploymentYears < 1 {
		steps = insertAt(steps, 2, "Enhanced Employment Verification - recent employment change")
	}
	if app.ExistingLoans > 2 {
		steps = insertAt(steps, 1, "Enhanced Debt Analysis - multiple existing loans")
	}
	return &datatypes.Plan{
		Steps: steps,
		Stages: []string{
			"Stage 1: Parallel Verification - credit, employment and collateral",
			"Stage 2: Review - combined risk view",
			"Stage 3: Decision - final decision",
		},
	}
}

func insertAt(s []string, i int, v string) []string {
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
