// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package decision

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/AleutianAI/AleutianLoan/pkg/format"
	"github.com/AleutianAI/AleutianLoan/services/llm"
	"github.com/AleutianAI/AleutianLoan/services/loan/assist"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.loan.decision")

const decisionPrompt = `You are a senior loan officer making the final decision on a loan application.

{{template "facts" .Facts}}

Review stage:
- Risk level: {{.ReviewRisk}}
- Recommendation: {{.ReviewRecommendation}}
- Concerns:
{{- range .ReviewConcerns}}
  - {{.}}
{{- end}}

Decide Approved, Conditional or Rejected. List conditions only for a Conditional decision.

Respond with ONLY a JSON object. No explanation, no markdown, just JSON:
{"decision": "Approved" | "Conditional" | "Rejected", "risk_score": <0.0-1.0>, "reasoning": "<3-4 sentences>", "conditions": ["<condition>"], "recommendations": ["<recommendation>"]}`

var decisionTemplate = assist.Template("decision", decisionPrompt)

type promptData struct {
	Facts                assist.Facts
	ReviewRisk           string
	ReviewRecommendation string
	ReviewConcerns       []string
}

// reply mirrors the expected JSON reply. Pointers detect missing fields.
type reply struct {
	Decision        *string  `json:"decision"`
	RiskScore       *float64 `json:"risk_score"`
	Reasoning       *string  `json:"reasoning"`
	Conditions      []string `json:"conditions"`
	Recommendations []string `json:"recommendations"`
}

// Assisted asks the reasoning service for the decision.
type Assisted struct {
	client llm.LLMClient
}

var _ Decider = (*Assisted)(nil)

// NewAssisted creates an assisted decider over client.
func NewAssisted(client llm.LLMClient) *Assisted {
	return &Assisted{client: client}
}

// Decide implements Decider. Failures are *datatypes.ExternalServiceError.
func (a *Assisted) Decide(ctx context.Context, app datatypes.LoanApplication, set datatypes.AssessmentSet, review datatypes.ReviewResult) (datatypes.FinalDecision, error) {
	ctx, span := tracer.Start(ctx, "decision.Assisted.Decide")
	defer span.End()

	data := promptData{
		Facts:                assist.NewFacts(app, set),
		ReviewRisk:           format.Ratio(review.RiskLevel),
		ReviewRecommendation: string(review.Recommendation),
		ReviewConcerns:       review.Concerns,
	}
	result, err := a.decide(ctx, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return datatypes.FinalDecision{}, err
	}
	span.SetAttributes(
		attribute.String("decision.tag", string(result.Decision)),
		attribute.Float64("decision.risk_score", result.RiskScore),
	)
	return result, nil
}

func (a *Assisted) decide(ctx context.Context, data promptData) (datatypes.FinalDecision, error) {
	prompt, err := assist.Render(decisionTemplate, data)
	if err != nil {
		return datatypes.FinalDecision{}, err
	}
	obj, err := assist.Generate(ctx, a.client, prompt)
	if err != nil {
		return datatypes.FinalDecision{}, err
	}
	result, err := ParseReply(obj)
	if err != nil {
		return datatypes.FinalDecision{}, assist.Rejected(err)
	}
	return result, nil
}

// ParseReply decodes and validates a JSON decision reply.
//
// Conditions must be non-empty for a Conditional decision and empty for
// any other.
func ParseReply(data []byte) (datatypes.FinalDecision, error) {
	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		return datatypes.FinalDecision{}, assist.Invalid("decoding decision reply: %v", err)
	}
	if r.Decision == nil {
		return datatypes.FinalDecision{}, assist.Invalid("missing field %q", "decision")
	}
	tag := datatypes.Decision(*r.Decision)
	if !tag.Valid() {
		return datatypes.FinalDecision{}, assist.Invalid("decision %q is not one of Approved, Conditional, Rejected", *r.Decision)
	}
	if err := assist.UnitInterval("risk_score", r.RiskScore); err != nil {
		return datatypes.FinalDecision{}, err
	}
	if r.Reasoning == nil || strings.TrimSpace(*r.Reasoning) == "" {
		return datatypes.FinalDecision{}, assist.Invalid("missing field %q", "reasoning")
	}
	if err := assist.Strings("conditions", r.Conditions); err != nil {
		return datatypes.FinalDecision{}, err
	}
	if err := assist.Strings("recommendations", r.Recommendations); err != nil {
		return datatypes.FinalDecision{}, err
	}
	switch {
	case tag == datatypes.DecisionConditional && len(r.Conditions) == 0:
		return datatypes.FinalDecision{}, assist.Invalid("conditional decision without conditions")
	case tag != datatypes.DecisionConditional && len(r.Conditions) > 0:
		return datatypes.FinalDecision{}, assist.Invalid("%s decision must not carry conditions", tag)
	}
	return datatypes.FinalDecision{
		Decision:        tag,
		RiskScore:       *r.RiskScore,
		Reasoning:       strings.TrimSpace(*r.Reasoning),
		Conditions:      r.Conditions,
		Recommendations: r.Recommendations,
		Source:          datatypes.SourceAssisted,
	}, nil
}
