// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUSD(t *testing.T) {
	assert.Equal(t, "$1,250,000", USD(1250000))
	assert.Equal(t, "$0", USD(0))
	assert.Equal(t, "-$2,500", USD(-2500))
}

func TestUSDCents(t *testing.T) {
	assert.Equal(t, "$1,798.65", USDCents(1798.652))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "43.1%", Percent(0.4312))
	assert.Equal(t, "90.0%", Percent(0.9))
}

func TestRatioAndYears(t *testing.T) {
	assert.Equal(t, "0.300", Ratio(0.3))
	assert.Equal(t, "2.5 years", Years(2.5))
}
