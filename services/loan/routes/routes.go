// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/AleutianAI/AleutianLoan/services/loan/eligibility"
	"github.com/AleutianAI/AleutianLoan/services/loan/handlers"
	"github.com/AleutianAI/AleutianLoan/services/loan/pipeline"
	"github.com/AleutianAI/AleutianLoan/services/loan/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the routes dispatch to.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Eligibility  *eligibility.Checker
	Store        store.TaskStore
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router.GET("/health", handlers.HealthCheck(deps.Store))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1/loan")
	{
		v1.POST("/apply", handlers.HandleApply(deps.Orchestrator))
		v1.POST("/eligibility", handlers.HandleEligibility(deps.Eligibility))
		v1.GET("/stats", handlers.TaskStats(deps.Store))

		tasks := v1.Group("/tasks")
		{
			tasks.GET("", handlers.ListTasks(deps.Store))
			tasks.GET("/:taskId", handlers.GetTask(deps.Store))
			tasks.DELETE("/:taskId", handlers.DeleteTask(deps.Store))
		}
	}
}
