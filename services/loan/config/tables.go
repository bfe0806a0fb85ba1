// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the immutable knowledge tables of the loan pipeline:
// employer allow-list, search keyword sets and the threshold bands used by
// the credit and collateral procedures.
//
// Tables are embedded from tables.yaml and parsed once. A deployment can
// replace them with its own YAML file through Load.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var embeddedTables []byte

// Band is one threshold band. How Bound is compared depends on the table.
type Band struct {
	Bound  float64 `yaml:"bound"`
	Risk   float64 `yaml:"risk"`
	Rating string  `yaml:"rating,omitempty"`
}

// CreditTables holds the credit-score and DTI bands.
type CreditTables struct {
	ScoreBands     []Band  `yaml:"score_bands"`
	ScoreFloorRisk float64 `yaml:"score_floor_risk"`
	DTIBands       []Band  `yaml:"dti_bands"`
	DTIFloorRisk   float64 `yaml:"dti_floor_risk"`
}

// CollateralTables holds the loan-to-value bands.
type CollateralTables struct {
	MaxLTV        float64 `yaml:"max_ltv"`
	LTVBands      []Band  `yaml:"ltv_bands"`
	CeilingRisk   float64 `yaml:"ceiling_risk"`
	CeilingRating string  `yaml:"ceiling_rating"`
}

// Tables is the complete knowledge base. Treat values as read-only.
type Tables struct {
	KnownEmployers    []string         `yaml:"known_employers"`
	PositiveKeywords  []string         `yaml:"positive_keywords"`
	NegativePhrases   []string         `yaml:"negative_phrases"`
	// NegativeWords count on their own only where NegativeContextWords are
	// absent. Either list may be empty, which disables the rule.
	NegativeWords        []string `yaml:"negative_words"`
	NegativeContextWords []string `yaml:"negative_context_words"`
	TrustedDomains    []string         `yaml:"trusted_domains"`
	ScamCheckKeywords []string         `yaml:"scam_check_keywords"`
	Credit            CreditTables     `yaml:"credit"`
	Collateral        CollateralTables `yaml:"collateral"`
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
)

// Default returns the embedded tables, parsed on first use.
//
// Panics if the embedded YAML is invalid, which is a build defect.
func Default() *Tables {
	defaultOnce.Do(func() {
		t, err := Parse(embeddedTables)
		if err != nil {
			panic(fmt.Sprintf("embedded knowledge tables are invalid: %v", err))
		}
		defaultTables = t
	})
	return defaultTables
}

// Load returns the tables at path, or the embedded defaults when path is
// empty.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading knowledge tables: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates YAML tables. Keyword entries are lower-cased.
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing knowledge tables: %w", err)
	}
	for _, list := range []*[]string{
		&t.KnownEmployers, &t.PositiveKeywords, &t.NegativePhrases,
		&t.NegativeWords, &t.NegativeContextWords,
		&t.TrustedDomains, &t.ScamCheckKeywords,
	} {
		for i, s := range *list {
			(*list)[i] = strings.ToLower(strings.TrimSpace(s))
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks that every list is populated and that bands are ordered
// and carry risks within [0,1].
func (t *Tables) Validate() error {
	var errs []error
	if len(t.KnownEmployers) == 0 {
		errs = append(errs, errors.New("known_employers is empty"))
	}
	if len(t.PositiveKeywords) == 0 {
		errs = append(errs, errors.New("positive_keywords is empty"))
	}
	if len(t.NegativePhrases) == 0 {
		errs = append(errs, errors.New("negative_phrases is empty"))
	}
	if len(t.TrustedDomains) == 0 {
		errs = append(errs, errors.New("trusted_domains is empty"))
	}
	if len(t.ScamCheckKeywords) == 0 {
		errs = append(errs, errors.New("scam_check_keywords is empty"))
	}
	errs = append(errs, checkBands("credit.score_bands", t.Credit.ScoreBands, false)...)
	errs = append(errs, checkBands("credit.dti_bands", t.Credit.DTIBands, false)...)
	errs = append(errs, checkBands("collateral.ltv_bands", t.Collateral.LTVBands, true)...)
	for name, r := range map[string]float64{
		"credit.score_floor_risk": t.Credit.ScoreFloorRisk,
		"credit.dti_floor_risk":   t.Credit.DTIFloorRisk,
		"collateral.ceiling_risk": t.Collateral.CeilingRisk,
	} {
		if r < 0 || r > 1 {
			errs = append(errs, fmt.Errorf("%s outside [0,1]: %v", name, r))
		}
	}
	if t.Collateral.MaxLTV <= 0 {
		errs = append(errs, fmt.Errorf("collateral.max_ltv must be positive: %v", t.Collateral.MaxLTV))
	}
	for _, b := range t.Collateral.LTVBands {
		if b.Rating == "" {
			errs = append(errs, fmt.Errorf("collateral.ltv_bands: band %v has no rating", b.Bound))
		}
	}
	if t.Collateral.CeilingRating == "" {
		errs = append(errs, errors.New("collateral.ceiling_rating is empty"))
	}
	return errors.Join(errs...)
}

func checkBands(name string, bands []Band, ascending bool) []error {
	if len(bands) == 0 {
		return []error{fmt.Errorf("%s is empty", name)}
	}
	var errs []error
	for i, b := range bands {
		if b.Risk < 0 || b.Risk > 1 {
			errs = append(errs, fmt.Errorf("%s[%d]: risk %v outside [0,1]", name, i, b.Risk))
		}
		if i == 0 {
			continue
		}
		prev := bands[i-1].Bound
		if ascending && b.Bound <= prev || !ascending && b.Bound >= prev {
			errs = append(errs, fmt.Errorf("%s[%d]: bounds out of order", name, i))
		}
	}
	return errs
}

// NegativePhrasesFor expands the "{company}" placeholder for employer.
func (t *Tables) NegativePhrasesFor(employer string) []string {
	name := strings.ToLower(strings.TrimSpace(employer))
	out := make([]string, 0, len(t.NegativePhrases))
	for _, p := range t.NegativePhrases {
		out = append(out, strings.ReplaceAll(p, "{company}", name))
	}
	return out
}
