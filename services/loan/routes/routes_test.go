// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/AleutianLoan/services/loan/config"
	"github.com/AleutianAI/AleutianLoan/services/loan/eligibility"
	"github.com/AleutianAI/AleutianLoan/services/loan/legitimacy"
	"github.com/AleutianAI/AleutianLoan/services/loan/pipeline"
	"github.com/AleutianAI/AleutianLoan/services/loan/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSetupRoutes(t *testing.T) {
	st := store.NewMemoryStore()
	orch, err := pipeline.New(pipeline.Config{Store: st})
	require.NoError(t, err)

	router := gin.New()
	SetupRoutes(router, Deps{
		Orchestrator: orch,
		Eligibility:  eligibility.NewChecker(legitimacy.NewSimulatedClassifier(config.Default()), nil, nil),
		Store:        st,
		Gatherer:     prometheus.NewRegistry(),
	})

	registered := make(map[string]bool)
	for _, r := range router.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /metrics",
		"POST /v1/loan/apply",
		"POST /v1/loan/eligibility",
		"GET /v1/loan/stats",
		"GET /v1/loan/tasks",
		"GET /v1/loan/tasks/:taskId",
		"DELETE /v1/loan/tasks/:taskId",
	} {
		assert.True(t, registered[want], "route %s not registered", want)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
