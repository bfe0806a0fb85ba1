// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package format renders monetary amounts, ratios and percentages for
// human-readable justifications and CLI output.
package format

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// USD renders an amount as whole US dollars with thousands separators,
// for example "$1,250,000".
func USD(amount float64) string {
	if amount < 0 {
		return printer.Sprintf("-$%.0f", -amount)
	}
	return printer.Sprintf("$%.0f", amount)
}

// USDCents renders an amount with cents, for example "$1,798.65".
func USDCents(amount float64) string {
	if amount < 0 {
		return printer.Sprintf("-$%.2f", -amount)
	}
	return printer.Sprintf("$%.2f", amount)
}

// Percent renders a ratio as a percentage with one decimal, for example
// 0.4312 as "43.1%".
func Percent(ratio float64) string {
	return printer.Sprintf("%.1f%%", ratio*100)
}

// Ratio renders a ratio with three decimals.
func Ratio(v float64) string {
	return printer.Sprintf("%.3f", v)
}

// Years renders a tenure in years with one decimal.
func Years(v float64) string {
	return printer.Sprintf("%.1f years", v)
}
