// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command loan-service starts the loan evaluation HTTP server.
//
// It reads configuration from environment variables and serves until it
// receives SIGINT or SIGTERM.
//
// # Environment Variables
//
//   - LOAN_PORT: HTTP server port (default: 12310)
//   - LOAN_TABLES_PATH: Knowledge-table YAML overriding the embedded tables
//   - LOAN_STORE_BACKEND: memory, badger or redis (default: memory)
//   - LOAN_BADGER_PATH: Badger data directory (default: ./data/loan)
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB: Redis connection
//   - LLM_BACKEND_TYPE: openai, anthropic, ollama, local or none (default: none)
//   - LLM_MODEL, LLM_BASE_URL, LLM_API_KEY, LLM_SECRET_PATH: Backend settings
//   - SERPER_API_KEY, SERPER_SECRET_PATH: Enables the live employer lookup
//   - OTEL_TRACES_EXPORTER: otlp, stdout or none (default: otlp when an
//     endpoint is set, otherwise none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector
//   - LOAN_REVIEW_TIMEOUT, LOAN_DECISION_TIMEOUT, LOAN_LOOKUP_TIMEOUT: Go
//     durations bounding external calls
//   - LOAN_INSTANCE_ID: Replica name recorded in task leases (default: random)
//   - LOAN_LEASE_TTL: Go duration a task lease holds without renewal (default: 30s)
//   - LOG_LEVEL, LOG_JSON, LOG_DIR: Logging
//   - GIN_MODE: Gin framework mode
//
// # Usage
//
//	go build -o loan-service ./cmd/loan-service
//	LOAN_STORE_BACKEND=badger ./loan-service
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/AleutianAI/AleutianLoan/pkg/logging"
	"github.com/AleutianAI/AleutianLoan/pkg/secrets"
	"github.com/AleutianAI/AleutianLoan/services/llm"
	"github.com/AleutianAI/AleutianLoan/services/loan"
	"github.com/AleutianAI/AleutianLoan/services/loan/observability"
	"github.com/AleutianAI/AleutianLoan/services/loan/store"
)

func main() {
	env := os.Getenv

	logger := logging.New(logConfigFromEnv(env))
	defer logger.Close()

	cfg, err := configFromEnv(env)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	cfg.Logger = logger.Slog()

	logger.Info("Starting loan service",
		"port", cfg.Port,
		"store", cfg.Store.Backend,
		"llm_backend", cfg.LLM.Backend,
		"live_lookup", cfg.SerperAPIKey != "",
		"trace_exporter", cfg.Tracing.Exporter,
	)

	svc, err := loan.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create loan service: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := svc.Run(ctx); err != nil {
		log.Fatalf("Loan service error: %v", err)
	}
}

// configFromEnv builds the service configuration from getenv.
func configFromEnv(getenv func(string) string) (loan.Config, error) {
	cfg := loan.Config{
		Port:       getEnvInt(getenv, "LOAN_PORT", 12310),
		GinMode:    getenv("GIN_MODE"),
		TablesPath: getenv("LOAN_TABLES_PATH"),
		Store: store.Config{
			Backend: getEnvString(getenv, "LOAN_STORE_BACKEND", "memory"),
			Badger:  store.DefaultBadgerConfig(getEnvString(getenv, "LOAN_BADGER_PATH", "./data/loan")),
			Redis: store.RedisConfig{
				Address:  getEnvString(getenv, "REDIS_ADDR", "localhost:6379"),
				Password: getenv("REDIS_PASSWORD"),
				DB:       getEnvInt(getenv, "REDIS_DB", 0),
			},
		},
		LLM: llm.Config{
			Backend:    getEnvString(getenv, "LLM_BACKEND_TYPE", "none"),
			Model:      getenv("LLM_MODEL"),
			BaseURL:    getenv("LLM_BASE_URL"),
			APIKey:     getenv("LLM_API_KEY"),
			SecretPath: getenv("LLM_SECRET_PATH"),
		},
		SerperEndpoint:  getenv("SERPER_ENDPOINT"),
		ReviewTimeout:   getEnvDuration(getenv, "LOAN_REVIEW_TIMEOUT", 0),
		DecisionTimeout: getEnvDuration(getenv, "LOAN_DECISION_TIMEOUT", 0),
		LookupTimeout:   getEnvDuration(getenv, "LOAN_LOOKUP_TIMEOUT", 0),
		InstanceID:      getenv("LOAN_INSTANCE_ID"),
		LeaseTTL:        getEnvDuration(getenv, "LOAN_LEASE_TTL", 0),
	}

	key, err := secrets.Resolve(getenv("SERPER_API_KEY"), getenv("SERPER_SECRET_PATH"))
	switch {
	case err == nil:
		cfg.SerperAPIKey = key
	case errors.Is(err, secrets.ErrEmptyKey):
	default:
		return loan.Config{}, err
	}

	endpoint := getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	exporter := getenv("OTEL_TRACES_EXPORTER")
	if exporter == "" {
		exporter = observability.ExporterNone
		if endpoint != "" {
			exporter = observability.ExporterOTLP
		}
	}
	cfg.Tracing = observability.TracingConfig{Exporter: exporter, Endpoint: endpoint}
	return cfg, nil
}

func logConfigFromEnv(getenv func(string) string) logging.Config {
	jsonOut, _ := strconv.ParseBool(getenv("LOG_JSON"))
	return logging.Config{
		Level:   logging.ParseLevel(getenv("LOG_LEVEL")),
		LogDir:  getenv("LOG_DIR"),
		Service: "loan-service",
		JSON:    jsonOut,
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(getenv func(string) string, key string, defaultValue int) int {
	if value := getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(getenv func(string) string, key string, defaultValue time.Duration) time.Duration {
	if value := getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
