// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assist

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianLoan/services/llm"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	reply  string
	err    error
	params llm.GenerationParams
}

func (s *stubLLM) Generate(_ context.Context, _ string, params llm.GenerationParams) (string, error) {
	s.params = params
	return s.reply, s.err
}

func sampleSet() datatypes.AssessmentSet {
	ltv := 0.6
	return datatypes.AssessmentSet{
		Credit: datatypes.RiskAssessment{
			Procedure: datatypes.ProcedureCredit, RiskScore: 0.25, Rating: datatypes.RatingGood, Passed: true,
			Credit: &datatypes.CreditDetails{DebtToIncome: 0.1},
		},
		Employment: datatypes.RiskAssessment{
			Procedure: datatypes.ProcedureEmployment, RiskScore: 0.2, Rating: datatypes.RatingGood, Passed: true,
			Employment: &datatypes.EmploymentDetails{
				Verdict:    datatypes.LegitimacyVerdict{Verified: true, Confidence: datatypes.ConfidenceSimulated},
				Stability:  datatypes.RatingExcellent,
				JobHopping: datatypes.TierLow,
			},
		},
		Collateral: datatypes.RiskAssessment{
			Procedure: datatypes.ProcedureCollateral, RiskScore: 0.1, Rating: datatypes.RatingExcellent, Passed: true,
			Collateral: &datatypes.CollateralDetails{LTV: &ltv, MaxLTV: 0.8, Adequate: true},
		},
	}
}

func TestNewFacts(t *testing.T) {
	score := 720
	app := datatypes.LoanApplication{
		Name: "Alice Example", Income: 100000, LoanAmount: 30000, RepaymentScore: 9.5,
		EmploymentYears: 10, CompanyName: "Microsoft", CollateralValue: 50000, CreditScore: &score,
	}

	f := NewFacts(app, sampleSet())

	assert.Equal(t, "$30,000", f.LoanAmount)
	assert.Equal(t, "$100,000", f.Income)
	assert.Equal(t, "9.5/10", f.RepaymentScore)
	assert.Equal(t, "720", f.CreditScore)
	assert.Equal(t, "10.0%", f.DebtToIncome)
	assert.Equal(t, "60.0%", f.LoanToValue)
	assert.True(t, f.EmployerVerified)
	assert.Equal(t, "0.250", f.Credit.Risk)
}

func TestNewFacts_NoCollateralNoScore(t *testing.T) {
	set := sampleSet()
	set.Collateral.Collateral.LTV = nil

	f := NewFacts(datatypes.LoanApplication{Name: "Bob"}, set)

	assert.Equal(t, "not provided", f.CreditScore)
	assert.Equal(t, "undefined (no collateral)", f.LoanToValue)
}

func TestTemplate_IncludesFacts(t *testing.T) {
	tmpl := Template("review", `Review:
{{template "facts" .Facts}}
Answer in JSON.`)

	app := datatypes.LoanApplication{Name: "Alice Example", CompanyName: "Microsoft", LoanAmount: 30000}
	out, err := Render(tmpl, struct{ Facts Facts }{NewFacts(app, sampleSet())})
	require.NoError(t, err)

	assert.Contains(t, out, "Applicant: Alice Example")
	assert.Contains(t, out, "Loan amount requested: $30,000")
	assert.Contains(t, out, "Employer verified: true (Simulated confidence)")
	assert.Contains(t, out, "Answer in JSON.")
}

func TestGenerate(t *testing.T) {
	t.Run("extracts fenced object", func(t *testing.T) {
		client := &stubLLM{reply: "Here you go:\n```json\n{\"risk\": 0.2}\n```"}
		obj, err := Generate(context.Background(), client, "prompt")
		require.NoError(t, err)
		assert.JSONEq(t, `{"risk": 0.2}`, string(obj))
		assert.True(t, client.params.JSONMode)
		require.NotNil(t, client.params.MaxTokens)
	})

	t.Run("transport failure", func(t *testing.T) {
		_, err := Generate(context.Background(), &stubLLM{err: errors.New("connection refused")}, "prompt")
		var ext *datatypes.ExternalServiceError
		require.ErrorAs(t, err, &ext)
		assert.Equal(t, ServiceName, ext.Service)
		assert.NotErrorIs(t, err, datatypes.ErrInvalidReply)
	})

	t.Run("no object", func(t *testing.T) {
		_, err := Generate(context.Background(), &stubLLM{reply: "I cannot help with that."}, "prompt")
		assert.ErrorIs(t, err, datatypes.ErrInvalidReply)
	})
}

func TestUnitInterval(t *testing.T) {
	in, low, high := 0.5, -0.1, 1.2
	assert.NoError(t, UnitInterval("risk", &in))
	assert.ErrorIs(t, UnitInterval("risk", nil), datatypes.ErrInvalidReply)
	assert.ErrorIs(t, UnitInterval("risk", &low), datatypes.ErrInvalidReply)
	assert.ErrorIs(t, UnitInterval("risk", &high), datatypes.ErrInvalidReply)
}

func TestStrings(t *testing.T) {
	assert.NoError(t, Strings("concerns", []string{}))
	assert.NoError(t, Strings("concerns", []string{"high DTI"}))
	assert.ErrorIs(t, Strings("concerns", nil), datatypes.ErrInvalidReply)
	assert.ErrorIs(t, Strings("concerns", []string{"ok", ""}), datatypes.ErrInvalidReply)
}
