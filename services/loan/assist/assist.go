// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assist holds the plumbing shared by the assisted review and
// decision stages: the figure block embedded in every prompt, the call to
// the reasoning service and the range checks applied to its JSON reply.
package assist

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"text/template"

	"github.com/AleutianAI/AleutianLoan/pkg/format"
	"github.com/AleutianAI/AleutianLoan/services/llm"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
)

// ServiceName labels reasoning-service failures.
const ServiceName = "reasoning"

var (
	temperature = float32(0.1)
	maxTokens   = 768
)

// Params are the generation parameters of every assisted call.
func Params() llm.GenerationParams {
	t, m := temperature, maxTokens
	return llm.GenerationParams{Temperature: &t, MaxTokens: &m, JSONMode: true}
}

// =============================================================================
// Prompt Facts
// =============================================================================

// StageFacts is the per-procedure part of Facts.
type StageFacts struct {
	Risk   string
	Rating string
	Passed bool
	Notes  string
}

// Facts is every figure an assisted prompt embeds, pre-formatted.
type Facts struct {
	Applicant       string
	Employer        string
	LoanAmount      string
	Income          string
	ExistingLoans   int
	RepaymentScore  string
	EmploymentYears string
	CollateralValue string
	CreditScore     string

	DebtToIncome     string
	LoanToValue      string
	EmployerVerified bool
	LookupConfidence string
	Stability        string
	JobHopping       string

	Credit     StageFacts
	Employment StageFacts
	Collateral StageFacts
}

// NewFacts formats app and set for a prompt.
func NewFacts(app datatypes.LoanApplication, set datatypes.AssessmentSet) Facts {
	f := Facts{
		Applicant:       app.Name,
		Employer:        app.CompanyName,
		LoanAmount:      format.USD(app.LoanAmount),
		Income:          format.USD(app.Income),
		ExistingLoans:   app.ExistingLoans,
		RepaymentScore:  fmt.Sprintf("%.1f/10", app.RepaymentScore),
		EmploymentYears: format.Years(app.EmploymentYears),
		CollateralValue: format.USD(app.CollateralValue),
		CreditScore:     "not provided",
		DebtToIncome:    format.Percent(set.Credit.DebtToIncome()),
		LoanToValue:     "undefined (no collateral)",
		Credit:          stageFacts(set.Credit),
		Employment:      stageFacts(set.Employment),
		Collateral:      stageFacts(set.Collateral),
	}
	if app.CreditScore != nil {
		f.CreditScore = fmt.Sprintf("%d", *app.CreditScore)
	}
	if ltv, ok := set.Collateral.LoanToValue(); ok {
		f.LoanToValue = format.Percent(ltv)
	}
	if e := set.Employment.Employment; e != nil {
		f.EmployerVerified = e.Verdict.Verified
		f.LookupConfidence = string(e.Verdict.Confidence)
		f.Stability = string(e.Stability)
		f.JobHopping = string(e.JobHopping)
	}
	return f
}

func stageFacts(a datatypes.RiskAssessment) StageFacts {
	return StageFacts{
		Risk:   format.Ratio(a.RiskScore),
		Rating: string(a.Rating),
		Passed: a.Passed,
		Notes:  a.Justification,
	}
}

// factsTemplate is included by stage prompts as {{template "facts" .Facts}}.
const factsTemplate = `{{define "facts"}}Applicant: {{.Applicant}}
Loan amount requested: {{.LoanAmount}}
Annual income: {{.Income}}
Existing loans: {{.ExistingLoans}}
Repayment history: {{.RepaymentScore}}
Credit score: {{.CreditScore}}
Collateral value: {{.CollateralValue}}

Credit assessment:
- Risk score: {{.Credit.Risk}} ({{.Credit.Rating}})
- Passed: {{.Credit.Passed}}
- Debt-to-income: {{.DebtToIncome}}
- Notes: {{.Credit.Notes}}

Employment assessment:
- Employer: {{.Employer}} ({{.EmploymentYears}})
- Risk score: {{.Employment.Risk}} ({{.Employment.Rating}})
- Passed: {{.Employment.Passed}}
- Employer verified: {{.EmployerVerified}}{{if .LookupConfidence}} ({{.LookupConfidence}} confidence){{end}}
{{- if .Stability}}
- Stability: {{.Stability}}, job-hopping exposure: {{.JobHopping}}
{{- end}}
- Notes: {{.Employment.Notes}}

Collateral assessment:
- Risk score: {{.Collateral.Risk}} ({{.Collateral.Rating}})
- Passed: {{.Collateral.Passed}}
- Loan-to-value: {{.LoanToValue}}
- Notes: {{.Collateral.Notes}}{{end}}`

// Template parses body into a template that can include the "facts" block.
// It panics on a malformed body; callers parse package-level constants.
func Template(name, body string) *template.Template {
	t := template.Must(template.New(name).Parse(factsTemplate))
	return template.Must(t.Parse(body))
}

// Render executes t with data.
func Render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// =============================================================================
// Invocation
// =============================================================================

// Generate sends prompt to client and returns the JSON object found in the
// reply. Transport failures and replies without a JSON object are returned
// as *datatypes.ExternalServiceError; the latter also wrap ErrInvalidReply.
func Generate(ctx context.Context, client llm.LLMClient, prompt string) ([]byte, error) {
	reply, err := client.Generate(ctx, prompt, Params())
	if err != nil {
		return nil, &datatypes.ExternalServiceError{Service: ServiceName, Reason: "generation failed", Err: err}
	}
	obj, err := llm.ExtractJSONObject(reply)
	if err != nil {
		return nil, Rejected(fmt.Errorf("%w: %v", datatypes.ErrInvalidReply, err))
	}
	return obj, nil
}

// Rejected wraps a reply validation failure as an ExternalServiceError.
func Rejected(err error) error {
	return &datatypes.ExternalServiceError{Service: ServiceName, Reason: "invalid reply", Err: err}
}

// Invalid builds an error wrapping ErrInvalidReply.
func Invalid(msg string, args ...any) error {
	return fmt.Errorf("%w: %s", datatypes.ErrInvalidReply, fmt.Sprintf(msg, args...))
}

// UnitInterval checks that a required numeric field is present and within
// [0,1].
func UnitInterval(field string, v *float64) error {
	if v == nil {
		return Invalid("missing field %q", field)
	}
	if math.IsNaN(*v) || *v < 0 || *v > 1 {
		return Invalid("field %q out of range [0,1]: %v", field, *v)
	}
	return nil
}

// Strings checks that a required string list is present and has no blank
// entries.
func Strings(field string, v []string) error {
	if v == nil {
		return Invalid("missing field %q", field)
	}
	for i, s := range v {
		if s == "" {
			return Invalid("field %q has an empty entry at %d", field, i)
		}
	}
	return nil
}
