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
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/eligibility"
	"github.com/AleutianAI/AleutianLoan/services/loan/handlers"
)

// APIError is a non-2xx reply from the service.
type APIError struct {
	StatusCode int
	handlers.ErrorResponse
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.StatusCode, e.ErrorResponse.Error)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	if e.TaskID != "" {
		msg += " [task " + e.TaskID + "]"
	}
	return msg
}

// Client calls the loan service HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the service at base.
func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(base, "/"), http: httpClient}
}

// Apply submits an application and waits for the decision.
func (c *Client) Apply(ctx context.Context, app datatypes.LoanApplication) (*handlers.ApplyResponse, error) {
	var resp handlers.ApplyResponse
	if err := c.do(ctx, http.MethodPost, "/v1/loan/apply", app, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Eligibility runs the eligibility pre-screen.
func (c *Client) Eligibility(ctx context.Context, req datatypes.EligibilityRequest) (*eligibility.Result, error) {
	var resp eligibility.Result
	if err := c.do(ctx, http.MethodPost, "/v1/loan/eligibility", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Task fetches one task.
func (c *Client) Task(ctx context.Context, id string) (*datatypes.Task, error) {
	var task datatypes.Task
	if err := c.do(ctx, http.MethodGet, "/v1/loan/tasks/"+url.PathEscape(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes one task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/loan/tasks/"+url.PathEscape(id), nil, nil)
}

// Recent lists recent tasks, optionally for one applicant.
func (c *Client) Recent(ctx context.Context, limit int, applicant string) ([]*datatypes.Task, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if applicant != "" {
		q.Set("applicant", applicant)
	}
	path := "/v1/loan/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp struct {
		Tasks []*datatypes.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// Stats fetches aggregate task counts.
func (c *Client) Stats(ctx context.Context) (*datatypes.Stats, error) {
	var stats datatypes.Stats
	if err := c.do(ctx, http.MethodGet, "/v1/loan/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, &apiErr.ErrorResponse); jsonErr != nil || apiErr.ErrorResponse.Error == "" {
			apiErr.ErrorResponse.Error = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
