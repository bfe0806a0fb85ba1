// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package loan assembles the loan evaluation service.
//
// This package wires the HTTP routes, the task store, the evaluation
// pipeline, the reasoning-service client, the employer search client and
// the observability stack into one runnable Service.
//
// # Usage
//
//	cfg := loan.Config{Port: 12310}
//	svc, err := loan.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run(ctx))
package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianLoan/services/llm"
	"github.com/AleutianAI/AleutianLoan/services/loan/config"
	"github.com/AleutianAI/AleutianLoan/services/loan/decision"
	"github.com/AleutianAI/AleutianLoan/services/loan/eligibility"
	"github.com/AleutianAI/AleutianLoan/services/loan/legitimacy"
	"github.com/AleutianAI/AleutianLoan/services/loan/observability"
	"github.com/AleutianAI/AleutianLoan/services/loan/pipeline"
	"github.com/AleutianAI/AleutianLoan/services/loan/review"
	"github.com/AleutianAI/AleutianLoan/services/loan/routes"
	"github.com/AleutianAI/AleutianLoan/services/loan/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "loan-service"

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the loan service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run blocks and should
// only be called once per instance.
type Service interface {
	// Run serves HTTP until ctx is cancelled or the server fails, then
	// shuts down gracefully and releases every resource.
	Run(ctx context.Context) error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds loan service configuration.
//
// # Description
//
// Every field is optional; New applies defaults. Values are usually read
// from the environment by cmd/loan-service.
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	// Default: gin's current mode.
	GinMode string

	// TablesPath overrides the embedded knowledge tables with a YAML file.
	TablesPath string

	// Store selects the task store backend. Default: memory.
	Store store.Config

	// LLM configures the reasoning service. An empty backend disables the
	// assisted review and decision; the deterministic stages run alone.
	LLM llm.Config

	// SerperAPIKey enables the live employer lookup.
	SerperAPIKey string
	// SerperEndpoint overrides the search endpoint.
	SerperEndpoint string

	// Tracing configures OpenTelemetry. Default exporter: none.
	Tracing observability.TracingConfig

	// ReviewTimeout and DecisionTimeout bound each assisted call.
	// Default: 30s each.
	ReviewTimeout   time.Duration
	DecisionTimeout time.Duration
	// LookupTimeout bounds each live employer lookup. Default: 10s.
	LookupTimeout time.Duration

	// InstanceID names this replica in task leases. Set it to a stable
	// value (for example the pod name) so a restart recovers its own tasks
	// at once. Default: random per process.
	InstanceID string
	// LeaseTTL bounds how long an in-progress task stays claimed without
	// renewal. Default: 30s.
	LeaseTTL time.Duration

	// Registry receives the service metrics and backs /metrics.
	// Default: a fresh registry with Go and process collectors.
	Registry *prometheus.Registry

	// Logger is used by every component. Default: slog.Default().
	Logger *slog.Logger
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config        Config
	logger        *slog.Logger
	router        *gin.Engine
	store         store.TaskStore
	orchestrator  *pipeline.Orchestrator
	tracerCleanup func(context.Context)
}

var _ Service = (*service)(nil)

// New creates the loan Service.
//
// # Description
//
// New initializes, in order:
//  1. OpenTelemetry tracing
//  2. Prometheus metrics
//  3. Knowledge tables
//  4. The task store, failing tasks a previous process left in progress
//  5. The employer classifier (live when a Serper key is set)
//  6. The review and decision stages (assisted when an LLM backend is set)
//  7. The pipeline, the eligibility checker and the HTTP router
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Non-nil if any component fails to initialize. Resources
//     acquired before the failure are released.
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}
	s.logger = s.config.Logger
	ctx := context.Background()

	cleanup, err := observability.InitTracer(ctx, s.config.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	metrics := observability.NewMetrics(s.config.Registry)

	tables := config.Default()
	if s.config.TablesPath != "" {
		if tables, err = config.Load(s.config.TablesPath); err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to load knowledge tables: %w", err)
		}
		s.logger.Info("Loaded knowledge tables", "path", s.config.TablesPath)
	}

	storeCfg := s.config.Store
	storeCfg.Logger = s.logger
	storeCfg.Metrics = metrics
	if s.store, err = store.Open(storeCfg); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open task store: %w", err)
	}

	classifier, err := s.initClassifier(tables, metrics)
	if err != nil {
		s.cleanup()
		return nil, err
	}

	reviewer, decider, err := s.initStages(metrics)
	if err != nil {
		s.cleanup()
		return nil, err
	}

	s.orchestrator, err = pipeline.New(pipeline.Config{
		Store:      s.store,
		Tables:     tables,
		Classifier: classifier,
		Reviewer:   reviewer,
		Decider:    decider,
		InstanceID: s.config.InstanceID,
		LeaseTTL:   s.config.LeaseTTL,
		Metrics:    metrics,
		Logger:     s.logger,
	})
	if err != nil {
		s.cleanup()
		return nil, err
	}
	if _, err := s.orchestrator.RecoverInterrupted(ctx); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to recover interrupted tasks: %w", err)
	}

	s.initRouter(routes.Deps{
		Orchestrator: s.orchestrator,
		Eligibility:  eligibility.NewChecker(classifier, metrics, s.logger),
		Store:        s.store,
		Gatherer:     s.config.Registry,
	})
	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run serves HTTP until ctx is cancelled.
func (s *service) Run(ctx context.Context) error {
	defer s.cleanup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting loan server", "port", s.config.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down loan server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = serviceName
	}
	if cfg.ReviewTimeout <= 0 {
		cfg.ReviewTimeout = review.DefaultTimeout
	}
	if cfg.DecisionTimeout <= 0 {
		cfg.DecisionTimeout = decision.DefaultTimeout
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = legitimacy.DefaultLookupTimeout
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
		cfg.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// initClassifier builds the employer classifier. Without a Serper key only
// the simulated strategy runs.
func (s *service) initClassifier(tables *config.Tables, metrics *observability.LoanMetrics) (legitimacy.Classifier, error) {
	var searcher legitimacy.Searcher
	if s.config.SerperAPIKey != "" {
		client, err := legitimacy.NewSerperClient(legitimacy.SerperConfig{
			Endpoint: s.config.SerperEndpoint,
			APIKey:   s.config.SerperAPIKey,
			Timeout:  s.config.LookupTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create search client: %w", err)
		}
		searcher = client
		s.logger.Info("Using live employer lookup")
	} else {
		s.logger.Info("Serper key not configured, using simulated employer lookup")
	}
	return legitimacy.New(searcher, tables,
		legitimacy.WithTimeout(s.config.LookupTimeout),
		legitimacy.WithLogger(s.logger),
		legitimacy.WithMetrics(metrics),
	), nil
}

// initStages builds the review and decision stages, assisted by the
// configured LLM backend when there is one.
func (s *service) initStages(metrics *observability.LoanMetrics) (review.Reviewer, decision.Decider, error) {
	var (
		assistedReview   review.Reviewer
		assistedDecision decision.Decider
	)
	client, err := llm.NewClient(s.config.LLM)
	switch {
	case errors.Is(err, llm.ErrNoBackend):
		s.logger.Info("No LLM backend configured, using deterministic review and decision")
	case err != nil:
		return nil, nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	default:
		assistedReview = review.NewAssisted(client)
		assistedDecision = decision.NewAssisted(client)
		s.logger.Info("Using assisted review and decision", "backend", s.config.LLM.Backend)
	}

	reviewer := review.NewFallback(assistedReview,
		review.WithTimeout(s.config.ReviewTimeout),
		review.WithLogger(s.logger),
		review.WithMetrics(metrics),
	)
	decider := decision.NewFallback(assistedDecision,
		decision.WithTimeout(s.config.DecisionTimeout),
		decision.WithLogger(s.logger),
		decision.WithMetrics(metrics),
	)
	return reviewer, decider, nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter(deps routes.Deps) {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery(), otelgin.Middleware(serviceName))
	routes.SetupRoutes(s.router, deps)
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("task store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
