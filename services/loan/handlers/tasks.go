// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/store"
	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports service health including store connectivity.
func HealthCheck(st store.TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			slog.Warn("store health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "store": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "store": "ok"})
	}
}

// GetTask returns one task by id.
func GetTask(st store.TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := st.Get(c.Request.Context(), c.Param("taskId"))
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

// DeleteTask removes one task by id.
func DeleteTask(st store.TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("taskId")
		if err := st.Delete(c.Request.Context(), id); err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	}
}

// ListTasks returns recent tasks, optionally for one applicant.
//
// # Inputs
//
//   - limit: Query parameter, 1..100. Default 10.
//   - applicant: Query parameter; when set only that applicant's tasks are
//     listed.
func ListTasks(st store.TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := store.DefaultLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > store.MaxLimit {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be an integer between 1 and 100"})
				return
			}
			limit = n
		}

		var (
			tasks []*datatypes.Task
			err   error
		)
		if applicant := c.Query("applicant"); applicant != "" {
			tasks, err = st.ByApplicant(c.Request.Context(), applicant, limit)
		} else {
			tasks, err = st.Recent(c.Request.Context(), limit)
		}
		if err != nil {
			storeError(c, err)
			return
		}
		if tasks == nil {
			tasks = []*datatypes.Task{}
		}
		c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
	}
}

// TaskStats returns aggregate task counts.
func TaskStats(st store.TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := st.Stats(c.Request.Context())
		if err != nil {
			storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func storeError(c *gin.Context, err error) {
	if errors.Is(err, datatypes.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "task not found", TaskID: c.Param("taskId")})
		return
	}
	slog.Error("task store error", "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "task store unavailable"})
}
