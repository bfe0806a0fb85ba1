// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strconv"

	"github.com/AleutianAI/AleutianLoan/pkg/format"
	"github.com/AleutianAI/AleutianLoan/pkg/ux"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/eligibility"
	"github.com/AleutianAI/AleutianLoan/services/loan/handlers"
)

func decisionTone(d datatypes.Decision) ux.Tone {
	switch d {
	case datatypes.DecisionApproved:
		return ux.ToneSuccess
	case datatypes.DecisionConditional:
		return ux.ToneWarning
	default:
		return ux.ToneError
	}
}

func renderDecision(p *ux.Printer, resp *handlers.ApplyResponse) {
	tone := decisionTone(resp.Decision)
	p.Title("Loan decision")
	p.Status(tone, string(resp.Decision))
	p.Field("task", resp.TaskID)
	p.Field("risk score", p.Meter(resp.RiskScore, 20))
	renderStages(p, resp.Stages)
	p.List("Conditions", resp.Conditions)
	if d := resp.Stages.Decision; d != nil {
		p.List("Recommendations", d.Recommendations)
	}
	p.Box(tone, "Reasoning", resp.Reasoning)
}

func renderStages(p *ux.Printer, r datatypes.StageResults) {
	for _, a := range []*datatypes.RiskAssessment{r.Credit, r.Employment, r.Collateral} {
		if a == nil {
			continue
		}
		tone := ux.ToneSuccess
		if !a.Passed {
			tone = ux.ToneError
		}
		p.Status(tone, fmt.Sprintf("%-10s %s (%s)", a.Procedure, format.Ratio(a.RiskScore), a.Rating))
	}
	if rv := r.Review; rv != nil {
		p.Field("review", fmt.Sprintf("%s at %s, %s", rv.Recommendation, format.Ratio(rv.RiskLevel), rv.Source))
		p.List("Concerns", rv.Concerns)
	}
}

func renderEligibility(p *ux.Printer, res *eligibility.Result) {
	tone := ux.ToneSuccess
	if res.Status != eligibility.StatusApproved {
		tone = ux.ToneError
	}
	p.Title("Eligibility")
	p.Status(tone, string(res.Status))
	p.Field("employer", strconv.FormatBool(res.CompanyVerified)+" ("+res.VerificationConfidence+")")
	p.Box(tone, "Reason", res.Reason)
	for _, r := range res.VerificationResults {
		p.Field("evidence", r.Title+" "+r.Link)
	}
}

func renderTask(p *ux.Printer, t *datatypes.Task) {
	p.Title("Task " + t.ID)
	p.Field("applicant", t.Application.Name)
	p.Field("state", string(t.State))
	p.Field("loan amount", format.USD(t.Application.LoanAmount))
	p.Field("created", t.CreatedAt.Format("2006-01-02 15:04:05Z07:00"))
	p.Field("updated", t.UpdatedAt.Format("2006-01-02 15:04:05Z07:00"))
	if t.Error != "" {
		p.Box(ux.ToneError, "Error", t.Error)
	}
	renderStages(p, t.Results)
	if d := t.Results.Decision; d != nil {
		p.Status(decisionTone(d.Decision), fmt.Sprintf("%s at %s", d.Decision, format.Ratio(d.RiskScore)))
		p.List("Conditions", d.Conditions)
	}
}

func renderTaskList(p *ux.Printer, tasks []*datatypes.Task) {
	if len(tasks) == 0 {
		p.Muted("No tasks.")
		return
	}
	for _, t := range tasks {
		outcome := string(t.State)
		if d := t.Results.Decision; d != nil {
			outcome = string(d.Decision)
		}
		if p.Level() == ux.PersonalityMachine {
			p.Field(t.ID, t.Application.Name+"\t"+outcome)
			continue
		}
		p.Field(t.ID, fmt.Sprintf("%-24s %s", t.Application.Name, outcome))
	}
}

func renderStats(p *ux.Printer, s *datatypes.Stats) {
	p.Title("Task statistics")
	p.Field("total", strconv.Itoa(s.Total))
	for _, st := range datatypes.AllStates {
		p.Field(string(st), strconv.Itoa(s.ByState[st]))
	}
	for _, d := range []datatypes.Decision{datatypes.DecisionApproved, datatypes.DecisionConditional, datatypes.DecisionRejected} {
		p.Field(string(d), strconv.Itoa(s.ByDecision[d]))
	}
}
