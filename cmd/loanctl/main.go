// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command loanctl is a command-line client for the loan service.
//
// # Usage
//
//	loanctl apply -f application.yaml
//	loanctl eligibility --name "Jane Roe" --income 75000 --company Google --amount 20000 --credit-score 720
//	loanctl task task_1a2b3c4d5e6f
//	loanctl recent --limit 20 --applicant "Jane Roe"
//	loanctl stats
//
// Defaults are read from ~/.loanctl.yaml and overridden by flags.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
