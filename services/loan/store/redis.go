// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/observability"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

// RedisConfig configures the redis backend.
type RedisConfig struct {
	// Address of the Redis server. Default: "localhost:6379".
	Address  string
	Password string
	DB       int
	// TLSConfig enables TLS when set.
	TLSConfig *tls.Config
	// KeyPrefix namespaces every key. Default: "loan:".
	KeyPrefix string
}

// RedisStore persists tasks in Redis.
//
// # Description
//
// Each task is a string key holding the JSON record. Two sorted sets scored
// by creation time index all tasks and each applicant's tasks. Updates use
// WATCH/MULTI on the task key; a concurrent writer aborts the transaction
// and it is retried.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	metrics *observability.LoanMetrics
}

var _ TaskStore = (*RedisStore)(nil)

// NewRedisStore creates a client for cfg. The connection is established
// lazily; use Ping to check it.
func NewRedisStore(cfg RedisConfig, metrics *observability.LoanMetrics) (*RedisStore, error) {
	if cfg.Address == "" {
		cfg.Address = "localhost:6379"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "loan:"
	}
	client := redis.NewClient(&redis.Options{
		TLSConfig: cfg.TLSConfig,
		Addr:      cfg.Address,
		Password:  cfg.Password,
		DB:        cfg.DB,
	})
	return &RedisStore{client: client, prefix: cfg.KeyPrefix, metrics: metrics}, nil
}

func (s *RedisStore) taskKey(id string) string {
	return s.prefix + "task:" + id
}

func (s *RedisStore) createdIndex() string {
	return s.prefix + "idx:created"
}

func (s *RedisStore) applicantIndex(name string) string {
	return s.prefix + "idx:applicant:" + applicantKey(name)
}

func score(t *datatypes.Task) float64 {
	return float64(t.CreatedAt.UnixMilli())
}

// Create implements TaskStore.
func (s *RedisStore) Create(ctx context.Context, task *datatypes.Task) error {
	_, data, err := encodeRecord(task)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.taskKey(task.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("creating task %s: %w", task.ID, err)
	}
	if !ok {
		return ErrTaskExists
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		member := redis.Z{Score: score(task), Member: task.ID}
		pipe.ZAdd(ctx, s.createdIndex(), member)
		pipe.ZAdd(ctx, s.applicantIndex(task.Application.Name), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("indexing task %s: %w", task.ID, err)
	}
	return nil
}

// Get implements TaskStore.
func (s *RedisStore) Get(ctx context.Context, id string) (*datatypes.Task, error) {
	data, err := s.client.Get(ctx, s.taskKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading task %s: %w", id, err)
	}
	return decodeTask(data)
}

// Update implements TaskStore.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*datatypes.Task) error) (*datatypes.Task, error) {
	key := s.taskKey(id)
	var updated *datatypes.Task

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return notFound(id)
		}
		if err != nil {
			return err
		}
		task, err := decodeTask(data)
		if err != nil {
			return err
		}
		if err := fn(task); err != nil {
			return err
		}
		_, out, err := encodeRecord(task)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err == nil {
			updated = task
		}
		return err
	}

	err := retry.Do(ctx, conflictBackoff(), func(ctx context.Context) error {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			s.metrics.RecordStoreConflict("redis")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete implements TaskStore.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	task, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.taskKey(id))
		pipe.ZRem(ctx, s.createdIndex(), id)
		pipe.ZRem(ctx, s.applicantIndex(task.Application.Name), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	return nil
}

// Recent implements TaskStore.
func (s *RedisStore) Recent(ctx context.Context, limit int) ([]*datatypes.Task, error) {
	return s.listIndex(ctx, s.createdIndex(), ClampLimit(limit))
}

// ByApplicant implements TaskStore.
func (s *RedisStore) ByApplicant(ctx context.Context, name string, limit int) ([]*datatypes.Task, error) {
	return s.listIndex(ctx, s.applicantIndex(name), ClampLimit(limit))
}

func (s *RedisStore) listIndex(ctx context.Context, index string, limit int) ([]*datatypes.Task, error) {
	ids, err := s.client.ZRevRange(ctx, index, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading index %s: %w", index, err)
	}
	return s.load(ctx, ids)
}

// load fetches tasks by id, skipping ids deleted since they were listed.
func (s *RedisStore) load(ctx context.Context, ids []string) ([]*datatypes.Task, error) {
	tasks := make([]*datatypes.Task, 0, len(ids))
	if len(ids) == 0 {
		return tasks, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.taskKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		task, err := decodeTask([]byte(str))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// all loads every indexed task, newest first.
func (s *RedisStore) all(ctx context.Context) ([]*datatypes.Task, error) {
	ids, err := s.client.ZRevRange(ctx, s.createdIndex(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	return s.load(ctx, ids)
}

// InState implements TaskStore.
func (s *RedisStore) InState(ctx context.Context, state datatypes.TaskState) ([]*datatypes.Task, error) {
	tasks, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	matched := tasks[:0]
	for _, t := range tasks {
		if t.State == state {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// Stats implements TaskStore.
func (s *RedisStore) Stats(ctx context.Context) (datatypes.Stats, error) {
	tasks, err := s.all(ctx)
	if err != nil {
		return datatypes.Stats{}, err
	}
	stats := datatypes.NewStats()
	for _, t := range tasks {
		rec, err := datatypes.EncodeTask(t)
		if err != nil {
			return datatypes.Stats{}, err
		}
		stats.Add(rec)
	}
	return stats, nil
}

// Ping implements TaskStore.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements TaskStore.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
