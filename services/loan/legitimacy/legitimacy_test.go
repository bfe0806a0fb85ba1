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
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianLoan/services/loan/config"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

type stubSearcher struct {
	results []datatypes.SearchResult
	err     error
	delay   time.Duration
	queries []string
}

func (s *stubSearcher) Search(ctx context.Context, query string) ([]datatypes.SearchResult, error) {
	s.queries = append(s.queries, query)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.results, s.err
}

func result(title, snippet, link string) datatypes.SearchResult {
	return datatypes.SearchResult{Title: title, Snippet: snippet, Link: link}
}

// =============================================================================
// ClassifyResults Tests
// =============================================================================

func TestClassifyResults_Precedence(t *testing.T) {
	tables := config.Default()

	tests := []struct {
		name       string
		employer   string
		results    []datatypes.SearchResult
		verified   bool
		confidence datatypes.Confidence
	}{
		{
			name:       "no results",
			employer:   "Acme",
			results:    nil,
			verified:   false,
			confidence: datatypes.ConfidenceLow,
		},
		{
			name:     "negative phrases beat official site",
			employer: "Acme",
			results: []datatypes.SearchResult{
				result("Acme scam alert", "Acme is a scam, known scam", "https://www.acme.com"),
			},
			verified:   false,
			confidence: datatypes.ConfidenceHigh,
		},
		{
			name:     "official site",
			employer: "Blue Widget",
			results: []datatypes.SearchResult{
				result("Home", "Welcome", "https://bluewidget.io/"),
			},
			verified:   true,
			confidence: datatypes.ConfidenceHigh,
		},
		{
			name:     "trusted domain",
			employer: "Blue Widget",
			results: []datatypes.SearchResult{
				result("Blue Widget", "entry", "https://en.wikipedia.org/wiki/Blue_Widget"),
			},
			verified:   true,
			confidence: datatypes.ConfidenceHigh,
		},
		{
			name:     "scam-check pages",
			employer: "Shady Co",
			results: []datatypes.SearchResult{
				result("Shady Co review", "scamadviser rating", "https://scamadviser.example/shady"),
				result("Legit or scam?", "check if shady co is real", "https://checker.example/shady"),
			},
			verified:   false,
			confidence: datatypes.ConfidenceLow,
		},
		{
			name:     "seven positives",
			employer: "Northwind",
			results: []datatypes.SearchResult{
				result("Northwind Corporation official", "company founded 1990, headquarters in Ohio, 500 employees, CEO Jane Roe", "https://directory.example/nw"),
			},
			verified:   true,
			confidence: datatypes.ConfidenceHigh,
		},
		{
			name:     "four positives",
			employer: "Northwind",
			results: []datatypes.SearchResult{
				result("Northwind careers", "registered business, contact page", "https://directory.example/nw"),
			},
			verified:   true,
			confidence: datatypes.ConfidenceMedium,
		},
		{
			name:     "too few positives",
			employer: "Northwind",
			results: []datatypes.SearchResult{
				result("Northwind", "a page", "https://directory.example/nw"),
			},
			verified:   false,
			confidence: datatypes.ConfidenceLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ClassifyResults(tt.employer, tt.results, tables)
			assert.Equal(t, tt.verified, v.Verified)
			assert.Equal(t, tt.confidence, v.Confidence)
			assert.NotEmpty(t, v.Reason)
			assert.NotNil(t, v.Indicators)
		})
	}
}

func TestClassifyResults_SingleNegativeWords(t *testing.T) {
	tables := config.Default()
	employer := "Scam Fraud Fake LLC"

	t.Run("words only inside the employer name count", func(t *testing.T) {
		v := ClassifyResults(employer, []datatypes.SearchResult{
			result("Scam Fraud Fake LLC", "Annual filing", "https://registry.example/123"),
		}, tables)
		require.NotNil(t, v.Indicators)
		assert.Equal(t, 3, v.Indicators.Negative)
		assert.False(t, v.Verified)
		assert.Equal(t, datatypes.ConfidenceHigh, v.Confidence)
	})

	t.Run("help and warning pages count nothing", func(t *testing.T) {
		v := ClassifyResults(employer, []datatypes.SearchResult{
			result("Scam Fraud Fake LLC", "How to report Scam Fraud Fake LLC", "https://registry.example/123"),
		}, tables)
		assert.Zero(t, v.Indicators.Negative)
		assert.Equal(t, datatypes.ConfidenceLow, v.Confidence)
	})

	t.Run("words outside the employer name count nothing", func(t *testing.T) {
		v := ClassifyResults("Fake Goods Co", []datatypes.SearchResult{
			result("Fake Goods Co", "sells fake watches", "https://registry.example/456"),
		}, tables)
		assert.Zero(t, v.Indicators.Negative)
	})
}

func TestClassifyResults_KeepsAtMostThreeResults(t *testing.T) {
	results := []datatypes.SearchResult{
		result("a", "", "https://a.example"),
		result("b", "", "https://b.example"),
		result("c", "", "https://c.example"),
		result("d", "", "https://acme.com"),
	}
	v := ClassifyResults("Acme", results, config.Default())

	require.Len(t, v.Evidence, MaxEvidence)
	assert.Equal(t, "a", v.Evidence[0].Title)
	assert.False(t, v.Indicators.OfficialSite, "the fourth result must be ignored")
}

// =============================================================================
// SimulatedClassifier Tests
// =============================================================================

func TestSimulatedClassifier_KnownEmployer(t *testing.T) {
	c := NewSimulatedClassifier(config.Default())

	v, err := c.Classify(context.Background(), "Microsoft")
	require.NoError(t, err)
	assert.True(t, v.Verified)
	assert.Equal(t, datatypes.ConfidenceSimulated, v.Confidence)
	require.Len(t, v.Evidence, 1)
	assert.Equal(t, "https://www.microsoft.com", v.Evidence[0].Link)
}

func TestSimulatedClassifier_WordBoundaries(t *testing.T) {
	c := NewSimulatedClassifier(config.Default())
	ctx := context.Background()

	cases := map[string]bool{
		"Microsoft Corporation": true,
		"Goldman Sachs Group":   true,
		"Johnson & Johnson":     true,
		"HP Inc.":               true,
		"Metadata Labs":         false,
		"Unknown Startup":       false,
		"Visaria Travel":        false,
	}
	for employer, want := range cases {
		v, err := c.Classify(ctx, employer)
		require.NoError(t, err)
		assert.Equal(t, want, v.Verified, employer)
		assert.Equal(t, datatypes.ConfidenceSimulated, v.Confidence, employer)
	}
}

// =============================================================================
// FallbackClassifier Tests
// =============================================================================

func TestFallbackClassifier_LiveSuccess(t *testing.T) {
	searcher := &stubSearcher{results: []datatypes.SearchResult{
		result("Acme Official Website", "", "https://www.acme.com"),
	}}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	c := New(searcher, config.Default(), WithMetrics(metrics))

	v, err := c.Classify(context.Background(), "Acme")
	require.NoError(t, err)
	assert.True(t, v.Verified)
	assert.Equal(t, datatypes.ConfidenceHigh, v.Confidence)
	assert.Equal(t, []string{"Acme company official website"}, searcher.queries)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LegitimacyLookupsTotal.WithLabelValues("live", "verified")))
}

func TestFallbackClassifier_TransportFailure(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("connection refused")}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	c := New(searcher, config.Default(), WithMetrics(metrics))

	v, err := c.Classify(context.Background(), "Microsoft")
	require.NoError(t, err)
	assert.True(t, v.Verified)
	assert.Equal(t, datatypes.ConfidenceSimulated, v.Confidence)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("legitimacy", "transport")))
}

func TestFallbackClassifier_Timeout(t *testing.T) {
	searcher := &stubSearcher{delay: time.Second}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	c := New(searcher, config.Default(), WithTimeout(20*time.Millisecond), WithMetrics(metrics))

	start := time.Now()
	v, err := c.Classify(context.Background(), "Unknown Startup")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, v.Verified)
	assert.Equal(t, datatypes.ConfidenceSimulated, v.Confidence)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("legitimacy", "timeout")))
}

func TestFallbackClassifier_NoLiveStrategy(t *testing.T) {
	c := New(nil, config.Default())
	v, err := c.Classify(context.Background(), "Tesla")
	require.NoError(t, err)
	assert.True(t, v.Verified)
	assert.Equal(t, datatypes.ConfidenceSimulated, v.Confidence)
}

// =============================================================================
// SerperClient Tests
// =============================================================================

func TestSerperClient_Search(t *testing.T) {
	var got serperRequest
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"organic":[
			{"title":"t1","snippet":"s1","link":"l1"},
			{"title":"t2","snippet":"s2","link":"l2"},
			{"title":"t3","snippet":"s3","link":"l3"},
			{"title":"t4","snippet":"s4","link":"l4"}]}`))
	}))
	defer server.Close()

	c, err := NewSerperClient(SerperConfig{Endpoint: server.URL, APIKey: "serper-key"})
	require.NoError(t, err)

	results, err := c.Search(context.Background(), Query("Acme"))
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "t1", results[0].Title)
	assert.Equal(t, "serper-key", gotKey)
	assert.Equal(t, "Acme company official website", got.Q)
	assert.Equal(t, 3, got.Num)
	assert.Equal(t, "us", got.GL)
}

func TestSerperClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c, err := NewSerperClient(SerperConfig{Endpoint: server.URL, APIKey: "k"})
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "q")
	assert.Error(t, err)
}

func TestFallbackClassifier_RateLimitPastDeadlineIsTimeout(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"organic":[{"title":"Acme Official Website","snippet":"","link":"https://www.acme.com"}]}`))
	}))
	defer server.Close()

	client, err := NewSerperClient(SerperConfig{Endpoint: server.URL, APIKey: "k", RatePerSecond: 0.01, Burst: 1})
	require.NoError(t, err)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	c := New(client, config.Default(), WithTimeout(50*time.Millisecond), WithMetrics(metrics))

	v, err := c.Classify(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, datatypes.ConfidenceHigh, v.Confidence)

	// The limiter has no token until long after the lookup deadline.
	start := time.Now()
	v, err = c.Classify(context.Background(), "Microsoft")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, datatypes.ConfidenceSimulated, v.Confidence)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("legitimacy", "timeout")))
	assert.Zero(t, testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("legitimacy", "transport")))
}

func TestSerperClient_RateLimitPastDeadline(t *testing.T) {
	c, err := NewSerperClient(SerperConfig{Endpoint: "http://127.0.0.1:1", APIKey: "k", RatePerSecond: 0.01, Burst: 1})
	require.NoError(t, err)
	c.limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Search(ctx, "q")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSerperClient_RequiresKey(t *testing.T) {
	_, err := NewSerperClient(SerperConfig{})
	assert.Error(t, err)
}

func TestLiveClassifier_WrapsSearchError(t *testing.T) {
	c := NewLiveClassifier(&stubSearcher{err: errors.New("boom")}, config.Default())
	_, err := c.Classify(context.Background(), "Acme")

	var ext *datatypes.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "company-search", ext.Service)
}
