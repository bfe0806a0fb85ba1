// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package legitimacy classifies whether an employer is a legitimate company.
//
// # Description
//
// Two interchangeable strategies sit behind the Classifier interface:
//
//   - LiveClassifier queries a web-search service and scores the top three
//     results with keyword, domain and scam-check heuristics.
//   - SimulatedClassifier matches the employer against a fixed allow-list.
//
// FallbackClassifier wraps both so that any transport failure or timeout of
// the live path silently degrades to the simulated one. Callers can only
// tell the two apart by the Simulated confidence tag.
package legitimacy

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/AleutianAI/AleutianLoan/services/loan/config"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
)

// MaxEvidence is the number of search results considered and retained.
const MaxEvidence = 3

// Classifier produces a LegitimacyVerdict for an employer name.
type Classifier interface {
	Classify(ctx context.Context, employer string) (datatypes.LegitimacyVerdict, error)
}

// Query builds the search query for employer.
func Query(employer string) string {
	return strings.TrimSpace(employer) + " company official website"
}

// =============================================================================
// Result Heuristics
// =============================================================================

// ClassifyResults scores search results for employer.
//
// # Description
//
// Counts, over at most three results:
//
//   - positive keyword hits in title and snippet
//   - explicit negative phrases in title and snippet, plus single negative
//     words on pages that are not help or warning pages
//   - results whose link contains a trusted domain
//   - results whose link contains the compacted employer name
//   - results that read like scam-check pages
//
// Precedence, first match wins:
//
//  1. more than 2 negative indicators: unverified, High
//  2. official site or trusted domain: verified, High
//  3. 2 or more scam-check results: unverified, Low
//  4. 7 or more positive indicators: verified, High
//  5. 4 or more positive indicators: verified, Medium
//  6. otherwise: unverified, Low
//
// # Inputs
//
//   - employer: Employer name as submitted.
//   - results: Search results in rank order.
//   - tables: Keyword sets.
//
// # Outputs
//
//   - datatypes.LegitimacyVerdict: Evidence holds the considered results.
func ClassifyResults(employer string, results []datatypes.SearchResult, tables *config.Tables) datatypes.LegitimacyVerdict {
	if len(results) > MaxEvidence {
		results = results[:MaxEvidence]
	}
	evidence := make([]datatypes.SearchResult, len(results))
	copy(evidence, results)

	if len(evidence) == 0 {
		return datatypes.LegitimacyVerdict{
			Verified:   false,
			Confidence: datatypes.ConfidenceLow,
			Evidence:   evidence,
			Reason:     "No search results found",
			Indicators: &datatypes.IndicatorCounts{},
		}
	}

	counts := countIndicators(employer, evidence, tables)
	verdict := datatypes.LegitimacyVerdict{Evidence: evidence, Indicators: &counts}

	switch {
	case counts.Negative > 2:
		verdict.Confidence = datatypes.ConfidenceHigh
		verdict.Reason = "Negative indicators found in search results"
	case counts.OfficialSite || counts.TrustedDomain > 0:
		verdict.Verified = true
		verdict.Confidence = datatypes.ConfidenceHigh
		verdict.Reason = "Official site or trusted source found in search results"
	case counts.ScamCheck >= 2:
		verdict.Confidence = datatypes.ConfidenceLow
		verdict.Reason = "Verification inconclusive: results are mostly scam-check pages"
	case counts.Positive >= 7:
		verdict.Verified = true
		verdict.Confidence = datatypes.ConfidenceHigh
		verdict.Reason = "Company appears legitimate based on search results"
	case counts.Positive >= 4:
		verdict.Verified = true
		verdict.Confidence = datatypes.ConfidenceMedium
		verdict.Reason = "Some positive indicators found"
	default:
		verdict.Confidence = datatypes.ConfidenceLow
		verdict.Reason = "Insufficient verification information"
	}
	return verdict
}

func countIndicators(employer string, results []datatypes.SearchResult, tables *config.Tables) datatypes.IndicatorCounts {
	var counts datatypes.IndicatorCounts
	negatives := tables.NegativePhrasesFor(employer)
	name := strings.ToLower(strings.TrimSpace(employer))
	compact := strings.ReplaceAll(name, " ", "")

	for _, r := range results {
		content := strings.ToLower(r.Title + " " + r.Snippet)
		link := strings.ToLower(r.Link)

		for _, kw := range tables.PositiveKeywords {
			if strings.Contains(content, kw) {
				counts.Positive++
			}
		}
		for _, phrase := range negatives {
			if strings.Contains(content, phrase) {
				counts.Negative++
			}
		}
		counts.Negative += negativeWordHits(content, name, tables)
		if compact != "" && strings.Contains(link, compact) {
			counts.OfficialSite = true
		}
		if containsAny(link, tables.TrustedDomains) {
			counts.TrustedDomain++
		}
		if containsAny(content, tables.ScamCheckKeywords) {
			counts.ScamCheck++
		}
	}
	return counts
}

// negativeWordHits counts the single negative words that occur in content
// only as part of the employer name. Help and warning pages count nothing.
func negativeWordHits(content, name string, tables *config.Tables) int {
	if name == "" || containsAny(content, tables.NegativeContextWords) {
		return 0
	}
	rest := strings.ReplaceAll(content, name, "")
	hits := 0
	for _, w := range tables.NegativeWords {
		if strings.Contains(content, w) && !strings.Contains(rest, w) {
			hits++
		}
	}
	return hits
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// =============================================================================
// Simulated Strategy
// =============================================================================

// SimulatedClassifier verifies employers found on a fixed allow-list.
type SimulatedClassifier struct {
	known []string
}

var _ Classifier = (*SimulatedClassifier)(nil)

// NewSimulatedClassifier creates a classifier over the tables' allow-list.
func NewSimulatedClassifier(tables *config.Tables) *SimulatedClassifier {
	known := make([]string, 0, len(tables.KnownEmployers))
	for _, k := range tables.KnownEmployers {
		known = append(known, normalizeName(k))
	}
	return &SimulatedClassifier{known: known}
}

// Classify matches employer against the allow-list on word boundaries, so
// "Microsoft Corporation" matches "microsoft" but "Metadata Labs" does not
// match "meta". It never returns an error.
func (s *SimulatedClassifier) Classify(_ context.Context, employer string) (datatypes.LegitimacyVerdict, error) {
	padded := " " + normalizeName(employer) + " "
	for _, k := range s.known {
		if k != "" && strings.Contains(padded, " "+k+" ") {
			compact := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(employer)), " ", "")
			return datatypes.LegitimacyVerdict{
				Verified:   true,
				Confidence: datatypes.ConfidenceSimulated,
				Evidence: []datatypes.SearchResult{{
					Title:   fmt.Sprintf("%s - Official Website", employer),
					Snippet: fmt.Sprintf("%s is a well-known employer.", employer),
					Link:    fmt.Sprintf("https://www.%s.com", compact),
				}},
				Reason: "Known employer (simulated lookup)",
			}, nil
		}
	}
	return datatypes.LegitimacyVerdict{
		Verified:   false,
		Confidence: datatypes.ConfidenceSimulated,
		Evidence:   []datatypes.SearchResult{},
		Reason:     "Unable to verify employer (simulated lookup)",
	}, nil
}

// normalizeName lower-cases s and collapses every run of characters other
// than letters, digits and '&' into a single space.
func normalizeName(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '&' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
