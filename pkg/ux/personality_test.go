// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePersonalityLevel(t *testing.T) {
	tests := []struct {
		in   string
		want PersonalityLevel
	}{
		{"standard", PersonalityStandard},
		{"FULL", PersonalityStandard},
		{"min", PersonalityMinimal},
		{" machine ", PersonalityMachine},
		{"plain", PersonalityMachine},
		{"unknown", PersonalityStandard},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParsePersonalityLevel(tt.in), tt.in)
	}
}

func TestDetectPersonality(t *testing.T) {
	assert.Equal(t, PersonalityMinimal, DetectPersonality("minimal", nil))
	assert.Equal(t, PersonalityMachine, DetectPersonality("", nil))

	f, err := os.CreateTemp(t.TempDir(), "out")
	assert.NoError(t, err)
	defer f.Close()
	assert.Equal(t, PersonalityMachine, DetectPersonality("", f))
}
