// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package review

import (
	"context"
	"encoding/json"

	"github.com/AleutianAI/AleutianLoan/services/llm"
	"github.com/AleutianAI/AleutianLoan/services/loan/assist"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.loan.review")

const reviewPrompt = `You are a senior loan underwriting reviewer. Review the three risk assessments of the application below and give one combined view.

{{template "facts" .Facts}}

Respond with ONLY a JSON object. No explanation, no markdown, just JSON:
{"risk_level": <0.0-1.0>, "confidence": <0.0-1.0>, "concerns": ["<specific concern>"], "recommendation": "Approve" | "Conditional" | "Reject"}`

var reviewTemplate = assist.Template("review", reviewPrompt)

type promptData struct {
	Facts assist.Facts
}

// reply mirrors the expected JSON reply. Pointers detect missing fields.
type reply struct {
	RiskLevel      *float64 `json:"risk_level"`
	Confidence     *float64 `json:"confidence"`
	Concerns       []string `json:"concerns"`
	Recommendation *string  `json:"recommendation"`
}

// Assisted asks the reasoning service for the review.
type Assisted struct {
	client llm.LLMClient
}

var _ Reviewer = (*Assisted)(nil)

// NewAssisted creates an assisted reviewer over client.
func NewAssisted(client llm.LLMClient) *Assisted {
	return &Assisted{client: client}
}

// Review implements Reviewer.
//
// # Outputs
//
//   - datatypes.ReviewResult: Source is SourceAssisted.
//   - error: *datatypes.ExternalServiceError when the service fails or its
//     reply is malformed or out of range. Nothing is coerced.
func (a *Assisted) Review(ctx context.Context, app datatypes.LoanApplication, set datatypes.AssessmentSet) (datatypes.ReviewResult, error) {
	ctx, span := tracer.Start(ctx, "review.Assisted.Review")
	defer span.End()

	result, err := a.review(ctx, app, set)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return datatypes.ReviewResult{}, err
	}
	span.SetAttributes(
		attribute.Float64("review.risk_level", result.RiskLevel),
		attribute.String("review.recommendation", string(result.Recommendation)),
	)
	return result, nil
}

func (a *Assisted) review(ctx context.Context, app datatypes.LoanApplication, set datatypes.AssessmentSet) (datatypes.ReviewResult, error) {
	prompt, err := assist.Render(reviewTemplate, promptData{Facts: assist.NewFacts(app, set)})
	if err != nil {
		return datatypes.ReviewResult{}, err
	}
	obj, err := assist.Generate(ctx, a.client, prompt)
	if err != nil {
		return datatypes.ReviewResult{}, err
	}
	result, err := ParseReply(obj)
	if err != nil {
		return datatypes.ReviewResult{}, assist.Rejected(err)
	}
	return result, nil
}

// ParseReply decodes and validates a JSON review reply.
func ParseReply(data []byte) (datatypes.ReviewResult, error) {
	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		return datatypes.ReviewResult{}, assist.Invalid("decoding review reply: %v", err)
	}
	if err := assist.UnitInterval("risk_level", r.RiskLevel); err != nil {
		return datatypes.ReviewResult{}, err
	}
	if err := assist.UnitInterval("confidence", r.Confidence); err != nil {
		return datatypes.ReviewResult{}, err
	}
	if err := assist.Strings("concerns", r.Concerns); err != nil {
		return datatypes.ReviewResult{}, err
	}
	if r.Recommendation == nil {
		return datatypes.ReviewResult{}, assist.Invalid("missing field %q", "recommendation")
	}
	rec := datatypes.Recommendation(*r.Recommendation)
	if !rec.Valid() {
		return datatypes.ReviewResult{}, assist.Invalid("recommendation %q is not one of Approve, Conditional, Reject", *r.Recommendation)
	}
	return datatypes.ReviewResult{
		RiskLevel:      *r.RiskLevel,
		Confidence:     *r.Confidence,
		Concerns:       r.Concerns,
		Recommendation: rec,
		Source:         datatypes.SourceAssisted,
	}, nil
}
