// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package legitimacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianLoan/pkg/secrets"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("aleutian.loan.legitimacy")

// DefaultSerperEndpoint is the Serper web-search API.
const DefaultSerperEndpoint = "https://google.serper.dev/search"

// Searcher returns ranked web-search results for a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]datatypes.SearchResult, error)
}

// SerperConfig configures a SerperClient.
type SerperConfig struct {
	Endpoint string
	APIKey   string
	// Timeout bounds each HTTP request. Default: 10s.
	Timeout time.Duration
	// RatePerSecond and Burst limit outbound requests. Default: 5/s, burst 5.
	RatePerSecond float64
	Burst         int
	// Region is the "gl" country code. Default: "us".
	Region string
	// ResultCount is the "num" parameter. Default: 3.
	ResultCount int
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
	GL  string `json:"gl"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"organic"`
}

// SerperClient queries the Serper search API.
//
// # Thread Safety
//
// Safe for concurrent use. The limiter is shared by all callers.
type SerperClient struct {
	httpClient *http.Client
	endpoint   string
	key        *secrets.Sealed
	limiter    *rate.Limiter
	region     string
	count      int
}

var _ Searcher = (*SerperClient)(nil)

// NewSerperClient creates a client. The API key is sealed in memory.
func NewSerperClient(cfg SerperConfig) (*SerperClient, error) {
	key, err := secrets.Seal(cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("serper API key: %w", err)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSerperEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.Region == "" {
		cfg.Region = "us"
	}
	if cfg.ResultCount <= 0 {
		cfg.ResultCount = MaxEvidence
	}
	return &SerperClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.Endpoint,
		key:        key,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		region:     cfg.Region,
		count:      cfg.ResultCount,
	}, nil
}

// Search issues one query and returns at most ResultCount organic results.
//
// # Outputs
//
//   - []datatypes.SearchResult: Results in rank order.
//   - error: Non-nil on rate-limit wait cancellation, transport failure,
//     non-200 status or unparseable body.
func (c *SerperClient) Search(ctx context.Context, query string) ([]datatypes.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "SerperClient.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("search.num", c.count), attribute.String("search.region", c.region))

	fail := func(err error) ([]datatypes.SearchResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(fmt.Errorf("waiting for search rate limit: %w", limiterError(ctx, err)))
	}

	body, err := json.Marshal(serperRequest{Q: query, Num: c.count, GL: c.region})
	if err != nil {
		return fail(fmt.Errorf("failed to marshal search request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fail(fmt.Errorf("failed to create search request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	var resp *http.Response
	err = c.key.Use(func(apiKey string) error {
		req.Header.Set("X-API-KEY", apiKey)
		var doErr error
		resp, doErr = c.httpClient.Do(req)
		req.Header.Del("X-API-KEY")
		return doErr
	})
	if err != nil {
		return fail(fmt.Errorf("search request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(fmt.Errorf("failed to read search response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return fail(fmt.Errorf("search failed with status %d", resp.StatusCode))
	}

	var parsed serperResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fail(fmt.Errorf("failed to parse search response: %w", err))
	}

	results := make([]datatypes.SearchResult, 0, c.count)
	for _, o := range parsed.Organic {
		if len(results) == c.count {
			break
		}
		results = append(results, datatypes.SearchResult{Title: o.Title, Snippet: o.Snippet, Link: o.Link})
	}
	span.SetAttributes(attribute.Int("search.results", len(results)))
	return results, nil
}

// limiterError maps a rate-limit wait failure onto the context error it
// stands for. Wait refuses up front when the next token would arrive after
// ctx's deadline; that is reported as context.DeadlineExceeded.
func limiterError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}
