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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianLoan/services/loan/config"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/eligibility"
	"github.com/AleutianAI/AleutianLoan/services/loan/handlers"
	"github.com/AleutianAI/AleutianLoan/services/loan/legitimacy"
	"github.com/AleutianAI/AleutianLoan/services/loan/pipeline"
	"github.com/AleutianAI/AleutianLoan/services/loan/routes"
	"github.com/AleutianAI/AleutianLoan/services/loan/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := store.NewMemoryStore()
	orch, err := pipeline.New(pipeline.Config{Store: st})
	require.NoError(t, err)
	router := gin.New()
	routes.SetupRoutes(router, routes.Deps{
		Orchestrator: orch,
		Eligibility:  eligibility.NewChecker(legitimacy.NewSimulatedClassifier(config.Default()), nil, nil),
		Store:        st,
		Gatherer:     prometheus.NewRegistry(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// run executes loanctl with args against srv and returns stdout.
func run(t *testing.T, srv *httptest.Server, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	full := append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "--server", srv.URL}, args...)
	cmd.SetArgs(full)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

const applicationYAML = `
name: Alice Example
income: 100000
loan_amount: 30000
existing_loans: 0
repayment_score: 9.5
employment_years: 10
company_name: Microsoft
collateral_value: 50000
`

// ============================================================================
// Config
// ============================================================================

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultServer, cfg.Server)
	assert.Equal(t, defaultTimeout, cfg.Timeout)

	path := filepath.Join(dir, "loanctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: http://loans:9000\ntimeout: 30s\noutput: json\n"), 0o600))
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://loans:9000", cfg.Server)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "json", cfg.Output)

	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestReadApplication(t *testing.T) {
	app, err := readApplication(strings.NewReader(applicationYAML), "-")
	require.NoError(t, err)
	assert.Equal(t, "Microsoft", app.CompanyName)

	path := filepath.Join(t.TempDir(), "app.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"Bo","income":1,"loan_amount":1,"repayment_score":1,"company_name":"Acme"}`), 0o600))
	app, err = readApplication(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "Bo", app.Name)

	_, err = readApplication(strings.NewReader("name: X\n"), "-")
	assert.True(t, datatypes.IsValidationError(err))
}

// ============================================================================
// Commands
// ============================================================================

func TestApplyCommand_JSON(t *testing.T) {
	srv := newServer(t)

	out, err := run(t, srv, applicationYAML, "apply", "-f", "-", "-o", "json")
	require.NoError(t, err)

	var resp handlers.ApplyResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, datatypes.DecisionApproved, resp.Decision)
	assert.NotEmpty(t, resp.TaskID)
}

func TestApplyCommand_Machine(t *testing.T) {
	srv := newServer(t)

	out, err := run(t, srv, applicationYAML, "apply", "-f", "-", "-o", "machine")
	require.NoError(t, err)
	assert.Contains(t, out, "OK: Approved")
	assert.Contains(t, out, "task\ttask_")
	assert.Contains(t, out, "Reasoning: ")
}

func TestApplyCommand_RequiresFile(t *testing.T) {
	srv := newServer(t)
	_, err := run(t, srv, "", "apply")
	assert.Error(t, err)
}

func TestEligibilityCommand(t *testing.T) {
	srv := newServer(t)

	out, err := run(t, srv, "", "eligibility", "-o", "machine",
		"--name", "Carol", "--income", "80000", "--company", "Google", "--amount", "20000", "--credit-score", "600")
	require.NoError(t, err)
	assert.Contains(t, out, "ERROR: REJECTED")
	assert.Contains(t, out, "650")
}

func TestTaskRecentAndStatsCommands(t *testing.T) {
	srv := newServer(t)

	out, err := run(t, srv, applicationYAML, "apply", "-f", "-", "-o", "json")
	require.NoError(t, err)
	var resp handlers.ApplyResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	out, err = run(t, srv, "", "task", resp.TaskID, "-o", "machine")
	require.NoError(t, err)
	assert.Contains(t, out, "state\tcompleted")

	out, err = run(t, srv, "", "recent", "-o", "machine", "--applicant", "alice example")
	require.NoError(t, err)
	assert.Contains(t, out, resp.TaskID+"\tAlice Example\tApproved")

	out, err = run(t, srv, "", "stats", "-o", "json")
	require.NoError(t, err)
	var stats datatypes.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.Total)

	_, err = run(t, srv, "", "task", resp.TaskID, "--delete", "-o", "machine")
	require.NoError(t, err)

	_, err = run(t, srv, "", "task", resp.TaskID)
	assert.ErrorContains(t, err, "not found")
}

func TestRecentCommand_LimitValidation(t *testing.T) {
	srv := newServer(t)
	_, err := run(t, srv, "", "recent", "--limit", "0")
	assert.Error(t, err)
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"loan evaluation failed","task_id":"task_0123456789ab"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).Stats(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "task_0123456789ab")
	assert.False(t, IsNotFound(err))
}
