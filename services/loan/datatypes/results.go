// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// =============================================================================
// Review and Decision Tags
// =============================================================================

// Recommendation is the review stage's verdict.
type Recommendation string

const (
	RecommendApprove     Recommendation = "Approve"
	RecommendConditional Recommendation = "Conditional"
	RecommendReject      Recommendation = "Reject"
)

// Valid reports whether r is one of the permitted recommendations.
func (r Recommendation) Valid() bool {
	switch r {
	case RecommendApprove, RecommendConditional, RecommendReject:
		return true
	}
	return false
}

// Decision is the final tri-state loan decision.
type Decision string

const (
	DecisionApproved    Decision = "Approved"
	DecisionConditional Decision = "Conditional"
	DecisionRejected    Decision = "Rejected"
)

// Valid reports whether d is one of the permitted decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApproved, DecisionConditional, DecisionRejected:
		return true
	}
	return false
}

// Source records which implementation produced a review or decision.
type Source string

const (
	SourceAssisted      Source = "assisted"
	SourceDeterministic Source = "deterministic"
)

// =============================================================================
// Stage Results
// =============================================================================

// AssessmentSet groups the three procedure outcomes consumed by the review
// and decision stages.
type AssessmentSet struct {
	Credit     RiskAssessment `json:"credit"`
	Employment RiskAssessment `json:"employment"`
	Collateral RiskAssessment `json:"collateral"`
}

// PassedCount returns how many of the three procedures passed.
func (s AssessmentSet) PassedCount() int {
	n := 0
	for _, a := range []RiskAssessment{s.Credit, s.Employment, s.Collateral} {
		if a.Passed {
			n++
		}
	}
	return n
}

// ReviewResult is the aggregate produced by the review stage.
type ReviewResult struct {
	RiskLevel      float64        `json:"risk_level"`
	Confidence     float64        `json:"confidence"`
	Concerns       []string       `json:"concerns"`
	Recommendation Recommendation `json:"recommendation"`
	Source         Source         `json:"source"`
}

// FinalDecision is the outcome of the decision stage.
//
// Conditions is empty unless Decision is Conditional.
type FinalDecision struct {
	Decision        Decision `json:"decision"`
	RiskScore       float64  `json:"risk_score"`
	Reasoning       string   `json:"reasoning"`
	Conditions      []string `json:"conditions"`
	Recommendations []string `json:"recommendations"`
	Source          Source   `json:"source"`
}

// Greeting is the informational welcome produced when evaluation starts.
type Greeting struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Plan lists the checks the orchestrator is about to run and the order of
// its execution stages.
type Plan struct {
	Steps  []string `json:"steps"`
	Stages []string `json:"stages"`
}

// StageResults accumulates the typed output of every completed stage.
// Each field stays nil until its stage finishes.
type StageResults struct {
	Greeting   *Greeting       `json:"greeting,omitempty"`
	Plan       *Plan           `json:"plan,omitempty"`
	Credit     *RiskAssessment `json:"credit,omitempty"`
	Employment *RiskAssessment `json:"employment,omitempty"`
	Collateral *RiskAssessment `json:"collateral,omitempty"`
	Review     *ReviewResult   `json:"review,omitempty"`
	Decision   *FinalDecision  `json:"decision,omitempty"`
}

// Assessments returns the three risk assessments. ok is false until all
// three exist.
func (s *StageResults) Assessments() (set AssessmentSet, ok bool) {
	if s.Credit == nil || s.Employment == nil || s.Collateral == nil {
		return AssessmentSet{}, false
	}
	return AssessmentSet{Credit: *s.Credit, Employment: *s.Employment, Collateral: *s.Collateral}, true
}
