// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the typed data model of the loan evaluation
// service: applications, per-procedure risk assessments, review and decision
// results, tasks and their persisted records.
//
// # Description
//
// Every stage of the pipeline produces a concrete Go type instead of a loose
// map. Values are created once by their producing stage and never mutated
// afterwards; the orchestrator only attaches them to the owning Task.
//
// # Thread Safety
//
// Types in this package carry no internal synchronization. A Task is owned by
// a single goroutine (the orchestrator) for the duration of an evaluation.
package datatypes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var applicationValidate = validator.New(validator.WithRequiredStructEnabled())

// =============================================================================
// Loan Application
// =============================================================================

// LoanApplication is the immutable input of one evaluation.
//
// # Description
//
// Carries identity, financial and optional professional-profile fields. A
// value copy is handed to each risk procedure, so procedures never share
// mutable state.
//
// # Fields
//
//   - Name: Applicant full name (2-100 chars).
//   - Income: Annual income in USD (> 0).
//   - LoanAmount: Requested principal in USD (> 0).
//   - ExistingLoans: Number of open loans (>= 0).
//   - RepaymentScore: Repayment history on a 0-10 scale.
//   - EmploymentYears: Tenure at the current employer (>= 0).
//   - CompanyName: Current employer (2-100 chars).
//   - CollateralValue: Collateral value in USD (>= 0). Zero is accepted and
//     scored as worst-case collateral risk.
//   - CreditScore: Optional FICO-like score (300-850). When present the credit
//     procedure uses the amortized-loan variant.
//   - ProfileURL, JobTitle, EmploymentType, ProfessionalEmail,
//     PreviousEmployers: Optional professional-profile fields used by the
//     employment procedure.
//
// # Validation
//
// Uses go-playground/validator tags; call Validate after binding.
type LoanApplication struct {
	Name            string  `json:"name" yaml:"name" validate:"required,min=2,max=100"`
	Income          float64 `json:"income" yaml:"income" validate:"gt=0"`
	LoanAmount      float64 `json:"loan_amount" yaml:"loan_amount" validate:"gt=0"`
	ExistingLoans   int     `json:"existing_loans" yaml:"existing_loans" validate:"gte=0"`
	RepaymentScore  float64 `json:"repayment_score" yaml:"repayment_score" validate:"gte=0,lte=10"`
	EmploymentYears float64 `json:"employment_years" yaml:"employment_years" validate:"gte=0"`
	CompanyName     string  `json:"company_name" yaml:"company_name" validate:"required,min=2,max=100"`
	CollateralValue float64 `json:"collateral_value" yaml:"collateral_value" validate:"gte=0"`

	CreditScore       *int   `json:"credit_score,omitempty" yaml:"credit_score,omitempty" validate:"omitempty,gte=300,lte=850"`
	ProfileURL        string `json:"linkedin_url,omitempty" yaml:"linkedin_url,omitempty" validate:"omitempty,url"`
	JobTitle          string `json:"job_title,omitempty" yaml:"job_title,omitempty" validate:"omitempty,max=100"`
	EmploymentType    string `json:"employment_type,omitempty" yaml:"employment_type,omitempty" validate:"omitempty,max=50"`
	ProfessionalEmail string `json:"professional_email,omitempty" yaml:"professional_email,omitempty" validate:"omitempty,email"`
	PreviousEmployers *int   `json:"previous_employers,omitempty" yaml:"previous_employers,omitempty" validate:"omitempty,gte=0"`
}

// Validate checks the application against its field constraints.
//
// # Outputs
//
//   - error: *ValidationError listing every offending field, or nil.
func (a *LoanApplication) Validate() error {
	return validateStruct(a)
}

// HasProfile reports whether a professional-profile link was supplied.
func (a *LoanApplication) HasProfile() bool {
	return strings.TrimSpace(a.ProfileURL) != ""
}

// PriorEmployerCount returns the number of previous employers, zero when
// the field was not supplied.
func (a *LoanApplication) PriorEmployerCount() int {
	if a.PreviousEmployers == nil {
		return 0
	}
	return *a.PreviousEmployers
}

// =============================================================================
// Eligibility Request
// =============================================================================

// EligibilityRequest is the input of the lightweight eligibility check.
type EligibilityRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Income      float64 `json:"income" validate:"gt=0"`
	Company     string  `json:"company" validate:"required,min=1,max=100"`
	LoanAmount  float64 `json:"loan_amount" validate:"gt=0"`
	CreditScore int     `json:"credit_score" validate:"gte=300,lte=850"`
}

// Validate checks the request against its field constraints.
func (r *EligibilityRequest) Validate() error {
	return validateStruct(r)
}

func validateStruct(v any) error {
	err := applicationValidate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Fields: []string{err.Error()}}
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, describeFieldError(fe))
	}
	return &ValidationError{Fields: fields}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
