// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package eligibility implements the lightweight pre-screen: two hard
// minimums followed by an employer legitimacy lookup.
package eligibility

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianLoan/pkg/format"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/legitimacy"
	"github.com/AleutianAI/AleutianLoan/services/loan/observability"
)

const (
	MinCreditScore = 650
	MinIncome      = 30000.0
)

// Status is the outcome tag of an eligibility check.
type Status string

const (
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// NotApplicable is reported as confidence when no lookup ran.
const NotApplicable = "n/a"

// Result is the eligibility response.
type Result struct {
	Status                 Status                   `json:"status"`
	Reason                 string                   `json:"reason"`
	VerificationResults    []datatypes.SearchResult `json:"verification_results"`
	CompanyVerified        bool                     `json:"company_verified"`
	VerificationConfidence string                   `json:"verification_confidence"`
}

// Checker runs eligibility checks.
type Checker struct {
	classifier legitimacy.Classifier
	metrics    *observability.LoanMetrics
	logger     *slog.Logger
}

// NewChecker creates a Checker. metrics and logger may be nil.
func NewChecker(classifier legitimacy.Classifier, metrics *observability.LoanMetrics, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{classifier: classifier, metrics: metrics, logger: logger}
}

// Check screens req.
//
// # Description
//
// Credit score and income are checked first. When either minimum is missed
// the request is rejected without contacting the classifier. Otherwise the
// employer lookup decides. A classifier error is reported as an unverified
// employer rather than returned.
//
// # Outputs
//
//   - Result: The screening outcome.
//   - error: *datatypes.ValidationError for a malformed request.
func (c *Checker) Check(ctx context.Context, req datatypes.EligibilityRequest) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	if reasons := MinimumFailures(req); len(reasons) > 0 {
		c.logger.Info("eligibility rejected on minimums", "applicant", req.Name, "reasons", reasons)
		return c.finish(Result{
			Status:                 StatusRejected,
			Reason:                 strings.Join(reasons, "; "),
			VerificationResults:    []datatypes.SearchResult{},
			VerificationConfidence: NotApplicable,
		}), nil
	}

	verdict, err := c.classifier.Classify(ctx, req.Company)
	if err != nil {
		c.logger.Warn("employer lookup failed", "company", req.Company, "error", err)
		verdict = datatypes.LegitimacyVerdict{
			Confidence: datatypes.ConfidenceLow,
			Reason:     "employer lookup unavailable",
		}
	}
	evidence := verdict.Evidence
	if evidence == nil {
		evidence = []datatypes.SearchResult{}
	}

	res := Result{
		VerificationResults:    evidence,
		CompanyVerified:        verdict.Verified,
		VerificationConfidence: string(verdict.Confidence),
	}
	if verdict.Verified {
		res.Status = StatusApproved
		res.Reason = fmt.Sprintf("Credit score is %d, income meets requirements (%s), and company %s has been verified as legitimate (%s confidence). %s",
			req.CreditScore, format.USDCents(req.Income), req.Company, verdict.Confidence, verdict.Reason)
	} else {
		res.Status = StatusRejected
		res.Reason = fmt.Sprintf("While credit score (%d) and income (%s) meet requirements, company verification failed: %s",
			req.CreditScore, format.USDCents(req.Income), verdict.Reason)
	}
	res.Reason = strings.TrimSpace(res.Reason)
	c.logger.Info("eligibility checked", "applicant", req.Name, "status", string(res.Status))
	return c.finish(res), nil
}

func (c *Checker) finish(res Result) Result {
	c.metrics.RecordEligibility(string(res.Status))
	return res
}

// MinimumFailures lists every hard minimum req misses.
func MinimumFailures(req datatypes.EligibilityRequest) []string {
	var reasons []string
	if req.CreditScore < MinCreditScore {
		reasons = append(reasons, fmt.Sprintf("Credit score %d is below minimum requirement of %d", req.CreditScore, MinCreditScore))
	}
	if req.Income < MinIncome {
		reasons = append(reasons, fmt.Sprintf("Income %s is below minimum requirement of %s", format.USDCents(req.Income), format.USDCents(MinIncome)))
	}
	return reasons
}
