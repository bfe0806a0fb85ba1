// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists loan evaluation tasks.
//
// # Description
//
// TaskStore has three backends:
//
//   - memory: a mutex-guarded map, for tests and single-process runs
//   - badger: an embedded BadgerDB database, the default for the service
//   - redis: a shared Redis server, for several service replicas
//
// Every backend stores the datatypes.TaskRecord encoding of a task and
// serializes writes per task id. Badger and Redis retry optimistic
// transaction conflicts with Fibonacci backoff.
//
// # Thread Safety
//
// All implementations are safe for concurrent use.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/observability"
	"github.com/sethvargo/go-retry"
)

// List limits.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var (
	// ErrTaskExists is returned by Create for a duplicate id.
	ErrTaskExists = errors.New("task already exists")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown store backend")

	errStoreClosed = errors.New("store is closed")
)

// TaskStore persists tasks.
//
// Update runs fn on a fresh copy of the stored task and persists the result
// atomically. fn may run more than once when a backend retries a conflict,
// so it must only mutate the task it is given. Returning an error from fn
// aborts the update without writing.
type TaskStore interface {
	Create(ctx context.Context, task *datatypes.Task) error
	Get(ctx context.Context, id string) (*datatypes.Task, error)
	Update(ctx context.Context, id string, fn func(*datatypes.Task) error) (*datatypes.Task, error)
	Delete(ctx context.Context, id string) error

	// Recent returns up to limit tasks, newest first.
	Recent(ctx context.Context, limit int) ([]*datatypes.Task, error)
	// ByApplicant returns up to limit tasks of one applicant (case-insensitive
	// exact name), newest first.
	ByApplicant(ctx context.Context, name string, limit int) ([]*datatypes.Task, error)
	// InState returns every task currently in state.
	InState(ctx context.Context, state datatypes.TaskState) ([]*datatypes.Task, error)
	Stats(ctx context.Context) (datatypes.Stats, error)

	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Factory
// =============================================================================

// Config selects and configures a backend.
type Config struct {
	// Backend is "memory", "badger" or "redis". Default: "memory".
	Backend string

	// Badger configures the badger backend. Path is required unless
	// InMemory is set.
	Badger BadgerConfig

	// Redis configures the redis backend.
	Redis RedisConfig

	Logger  *slog.Logger
	Metrics *observability.LoanMetrics
}

// Open creates the configured store.
func Open(cfg Config) (TaskStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "badger":
		if cfg.Badger.Logger == nil {
			cfg.Badger.Logger = cfg.Logger
		}
		return NewBadgerStore(cfg.Badger, cfg.Metrics)
	case "redis":
		return NewRedisStore(cfg.Redis, cfg.Metrics)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// =============================================================================
// Shared Helpers
// =============================================================================

// ClampLimit maps limit into [1, MaxLimit], with DefaultLimit for
// non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

func applicantKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func encodeRecord(task *datatypes.Task) (*datatypes.TaskRecord, []byte, error) {
	rec, err := datatypes.EncodeTask(task)
	if err != nil {
		return nil, nil, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding record %s: %w", task.ID, err)
	}
	return rec, data, nil
}

func decodeRecord(data []byte) (*datatypes.TaskRecord, error) {
	var rec datatypes.TaskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding task record: %w", err)
	}
	return &rec, nil
}

func decodeTask(data []byte) (*datatypes.Task, error) {
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	return datatypes.DecodeTask(rec)
}

func notFound(id string) error {
	return fmt.Errorf("task %s: %w", id, datatypes.ErrTaskNotFound)
}

// sortNewestFirst orders tasks by CreatedAt descending, then id.
func sortNewestFirst(tasks []*datatypes.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID > tasks[j].ID
	})
}

// conflictBackoff is the retry policy for optimistic transaction conflicts.
func conflictBackoff() retry.Backoff {
	return retry.WithMaxRetries(5, retry.NewFibonacci(10*time.Millisecond))
}
