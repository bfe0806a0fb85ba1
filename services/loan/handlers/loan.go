// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides the gin handlers of the loan service.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/eligibility"
	"github.com/AleutianAI/AleutianLoan/services/loan/pipeline"
	"github.com/gin-gonic/gin"
)

// ApplyResponse is the body returned for a completed evaluation.
type ApplyResponse struct {
	TaskID      string                 `json:"task_id"`
	Decision    datatypes.Decision     `json:"decision"`
	RiskScore   float64                `json:"risk_score"`
	Reasoning   string                 `json:"reasoning"`
	Conditions  []string               `json:"conditions"`
	Stages      datatypes.StageResults `json:"stages"`
	ProcessedAt time.Time              `json:"processed_at"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
	TaskID  string   `json:"task_id,omitempty"`
}

// HandleApply evaluates a loan application synchronously.
//
// # Description
//
// Binds the application, runs it through the orchestrator and returns the
// final decision with every stage result.
//
// # Outputs
//
//   - 200: ApplyResponse.
//   - 400: Body is not JSON.
//   - 422: Application failed validation; no task was created.
//   - 500: Evaluation failed; the response names the failed task.
func HandleApply(orch *pipeline.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var app datatypes.LoanApplication
		if err := c.ShouldBindJSON(&app); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: []string{err.Error()}})
			return
		}

		task, err := orch.Submit(c.Request.Context(), app)
		if err != nil {
			var ve *datatypes.ValidationError
			if errors.As(err, &ve) {
				c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Details: ve.Fields})
				return
			}
			resp := ErrorResponse{Error: "loan evaluation failed"}
			if task != nil {
				resp.TaskID = task.ID
			}
			slog.Error("loan evaluation failed", "task_id", resp.TaskID, "error", err)
			c.JSON(http.StatusInternalServerError, resp)
			return
		}

		d := task.Results.Decision
		c.JSON(http.StatusOK, ApplyResponse{
			TaskID:      task.ID,
			Decision:    d.Decision,
			RiskScore:   d.RiskScore,
			Reasoning:   d.Reasoning,
			Conditions:  d.Conditions,
			Stages:      task.Results,
			ProcessedAt: task.UpdatedAt,
		})
	}
}

// HandleEligibility runs the lightweight eligibility check.
func HandleEligibility(checker *eligibility.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.EligibilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: []string{err.Error()}})
			return
		}
		res, err := checker.Check(c.Request.Context(), req)
		if err != nil {
			var ve *datatypes.ValidationError
			if errors.As(err, &ve) {
				c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Details: ve.Fields})
				return
			}
			slog.Error("eligibility check failed", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "eligibility check failed"})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
