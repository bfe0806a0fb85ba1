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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AleutianAI/AleutianLoan/pkg/ux"
	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/handlers"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// cli holds state shared by every command.
type cli struct {
	configPath string
	server     string
	output     string

	config Config
	client *Client
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "loanctl",
		Short: "A CLI for the loan evaluation service",
		Long: `loanctl submits loan applications to the loan service, runs eligibility
pre-screens and inspects stored evaluation tasks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", DefaultConfigPath(), "config file")
	root.PersistentFlags().StringVar(&c.server, "server", "", "loan service base URL")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", "", "output: standard, minimal, machine or json")

	root.AddCommand(
		c.applyCmd(),
		c.eligibilityCmd(),
		c.taskCmd(),
		c.recentCmd(),
		c.statsCmd(),
	)
	return root
}

func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := LoadConfig(c.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("server") {
		cfg.Server = c.server
	}
	if cmd.Flags().Changed("output") {
		cfg.Output = c.output
	}
	c.config = cfg
	c.client = NewClient(cfg.Server, nil)
	return nil
}

func (c *cli) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), c.config.Timeout)
}

func (c *cli) jsonOutput() bool {
	return strings.EqualFold(c.config.Output, "json")
}

// printer picks the personality level for the command's output stream.
func (c *cli) printer(cmd *cobra.Command) *ux.Printer {
	w := cmd.OutOrStdout()
	f, _ := w.(*os.File)
	return ux.NewPrinter(w, ux.DetectPersonality(c.config.Output, f))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// Commands
// =============================================================================

func (c *cli) applyCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Submit a loan application and wait for the decision",
		Long: `Reads a loan application from a YAML or JSON file ("-" for stdin), submits
it and prints the decision.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := readApplication(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			if c.jsonOutput() {
				resp, err := c.client.Apply(ctx, app)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			p := c.printer(cmd)
			var resp *handlers.ApplyResponse
			err = p.WithSpinner("Evaluating application for "+app.Name, func() error {
				var err error
				resp, err = c.client.Apply(ctx, app)
				return err
			})
			if err != nil {
				return err
			}
			renderDecision(p, resp)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "application file (YAML or JSON, - for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *cli) eligibilityCmd() *cobra.Command {
	var req datatypes.EligibilityRequest
	cmd := &cobra.Command{
		Use:   "eligibility",
		Short: "Run the eligibility pre-screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			res, err := c.client.Eligibility(ctx, req)
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			renderEligibility(c.printer(cmd), res)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Name, "name", "", "applicant name")
	f.Float64Var(&req.Income, "income", 0, "annual income in USD")
	f.StringVar(&req.Company, "company", "", "employer name")
	f.Float64Var(&req.LoanAmount, "amount", 0, "requested loan amount in USD")
	f.IntVar(&req.CreditScore, "credit-score", 0, "credit score (300-850)")
	for _, name := range []string{"name", "income", "company", "amount", "credit-score"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (c *cli) taskCmd() *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "task [task_id]",
		Short: "Show or delete one evaluation task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			id := args[0]

			if remove {
				if err := c.client.DeleteTask(ctx, id); err != nil {
					return err
				}
				if c.jsonOutput() {
					return writeJSON(cmd.OutOrStdout(), map[string]string{"deleted": id})
				}
				c.printer(cmd).Status(ux.ToneSuccess, "Deleted "+id)
				return nil
			}

			task, err := c.client.Task(ctx, id)
			if err != nil {
				if IsNotFound(err) {
					return fmt.Errorf("task %s not found", id)
				}
				return err
			}
			if c.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), task)
			}
			renderTask(c.printer(cmd), task)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remove, "delete", false, "delete the task instead of showing it")
	return cmd
}

func (c *cli) recentCmd() *cobra.Command {
	var (
		limit     int
		applicant string
	)
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recent evaluation tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 || limit > 100 {
				return fmt.Errorf("--limit must be between 1 and 100")
			}
			ctx, cancel := c.context(cmd)
			defer cancel()
			tasks, err := c.client.Recent(ctx, limit, applicant)
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), tasks)
			}
			renderTaskList(c.printer(cmd), tasks)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum tasks to list (1-100)")
	cmd.Flags().StringVar(&applicant, "applicant", "", "only list this applicant's tasks")
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			stats, err := c.client.Stats(ctx)
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			renderStats(c.printer(cmd), stats)
			return nil
		},
	}
}

// readApplication parses an application file. YAML is a superset of JSON,
// so both formats go through the YAML decoder.
func readApplication(stdin io.Reader, path string) (datatypes.LoanApplication, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return datatypes.LoanApplication{}, fmt.Errorf("reading application: %w", err)
	}
	var app datatypes.LoanApplication
	if err := yaml.Unmarshal(data, &app); err != nil {
		return datatypes.LoanApplication{}, fmt.Errorf("parsing application: %w", err)
	}
	if err := app.Validate(); err != nil {
		return datatypes.LoanApplication{}, err
	}
	return app, nil
}
