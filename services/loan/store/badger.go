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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
	"github.com/AleutianAI/AleutianLoan/services/loan/observability"
	"github.com/dgraph-io/badger/v4"
	"github.com/sethvargo/go-retry"
)

// Key layout:
//
//	task:<id>                                  -> JSON TaskRecord
//	idx:created:<unixnano>:<id>                -> empty
//	idx:applicant:<name>\x00<unixnano>:<id>    -> empty
//
// Timestamps are zero-padded so lexical order is chronological.
const (
	taskPrefix      = "task:"
	createdPrefix   = "idx:created:"
	applicantPrefix = "idx:applicant:"
)

// BadgerConfig holds configuration for a BadgerDB-backed store.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent databases.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. If nil they are discarded.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64
}

// DefaultBadgerConfig returns production defaults for path: synchronous
// writes and a 5-minute GC at a 50% discard ratio.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryBadgerConfig returns a configuration for tests: no disk I/O and
// no GC.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// openBadger opens the database described by cfg, creating its directory.
func openBadger(cfg BadgerConfig) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// =============================================================================
// Value Log GC
// =============================================================================

// gcRunner runs periodic value log garbage collection.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func startGC(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) *gcRunner {
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	r := &gcRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go r.run()
	return r
}

// stop halts GC and waits for the goroutine. Safe to call more than once.
func (r *gcRunner) stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		<-r.doneCh
	})
}

func (r *gcRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runGC()
		}
	}
}

func (r *gcRunner) runGC() {
	// RunValueLogGC returns ErrNoRewrite when nothing needed collecting.
	err := r.db.RunValueLogGC(r.ratio)
	switch {
	case err == nil:
		if r.logger != nil {
			r.logger.Debug("badger value log GC completed")
		}
	case !errors.Is(err, badger.ErrNoRewrite):
		if r.logger != nil {
			r.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
		}
	}
}

// =============================================================================
// Badger Store
// =============================================================================

// BadgerStore persists tasks in an embedded BadgerDB.
type BadgerStore struct {
	db      *badger.DB
	gc      *gcRunner
	metrics *observability.LoanMetrics
}

var _ TaskStore = (*BadgerStore)(nil)

// NewBadgerStore opens a BadgerDB and starts value log GC when configured.
func NewBadgerStore(cfg BadgerConfig, metrics *observability.LoanMetrics) (*BadgerStore, error) {
	db, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}
	s := &BadgerStore{db: db, metrics: metrics}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = startGC(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
	}
	return s, nil
}

func taskKey(id string) []byte {
	return []byte(taskPrefix + id)
}

func createdKey(t *datatypes.Task) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", createdPrefix, t.CreatedAt.UnixNano(), t.ID))
}

func applicantIndexPrefix(name string) []byte {
	return []byte(applicantPrefix + applicantKey(name) + "\x00")
}

func applicantIndexKey(t *datatypes.Task) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", applicantIndexPrefix(t.Application.Name), t.CreatedAt.UnixNano(), t.ID))
}

// idFromIndexKey returns the id after the last ':' of an index key.
func idFromIndexKey(key []byte) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return string(key[i+1:])
		}
	}
	return string(key)
}

// update runs fn in a read-write transaction, retrying conflicts.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	return retry.Do(ctx, conflictBackoff(), func(ctx context.Context) error {
		err := s.db.Update(fn)
		if errors.Is(err, badger.ErrConflict) {
			s.metrics.RecordStoreConflict("badger")
			return retry.RetryableError(err)
		}
		return err
	})
}

func getTask(txn *badger.Txn, id string) (*datatypes.Task, error) {
	item, err := txn.Get(taskKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading task %s: %w", id, err)
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("reading task %s: %w", id, err)
	}
	return decodeTask(data)
}

// Create implements TaskStore.
func (s *BadgerStore) Create(ctx context.Context, task *datatypes.Task) error {
	_, data, err := encodeRecord(task)
	if err != nil {
		return err
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(taskKey(task.ID))
		if err == nil {
			return ErrTaskExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(taskKey(task.ID), data); err != nil {
			return err
		}
		if err := txn.Set(createdKey(task), nil); err != nil {
			return err
		}
		return txn.Set(applicantIndexKey(task), nil)
	})
}

// Get implements TaskStore.
func (s *BadgerStore) Get(_ context.Context, id string) (*datatypes.Task, error) {
	var task *datatypes.Task
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		task, err = getTask(txn, id)
		return err
	})
	return task, err
}

// Update implements TaskStore.
func (s *BadgerStore) Update(ctx context.Context, id string, fn func(*datatypes.Task) error) (*datatypes.Task, error) {
	var updated *datatypes.Task
	err := s.update(ctx, func(txn *badger.Txn) error {
		task, err := getTask(txn, id)
		if err != nil {
			return err
		}
		if err := fn(task); err != nil {
			return err
		}
		_, data, err := encodeRecord(task)
		if err != nil {
			return err
		}
		if err := txn.Set(taskKey(id), data); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete implements TaskStore.
func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		task, err := getTask(txn, id)
		if err != nil {
			return err
		}
		for _, key := range [][]byte{taskKey(id), createdKey(task), applicantIndexKey(task)} {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recent implements TaskStore.
func (s *BadgerStore) Recent(_ context.Context, limit int) ([]*datatypes.Task, error) {
	return s.listIndex([]byte(createdPrefix), ClampLimit(limit))
}

// ByApplicant implements TaskStore.
func (s *BadgerStore) ByApplicant(_ context.Context, name string, limit int) ([]*datatypes.Task, error) {
	return s.listIndex(applicantIndexPrefix(name), ClampLimit(limit))
}

// listIndex walks an index prefix newest first and loads up to limit tasks.
func (s *BadgerStore) listIndex(prefix []byte, limit int) ([]*datatypes.Task, error) {
	tasks := make([]*datatypes.Task, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(tasks) < limit; it.Next() {
			task, err := getTask(txn, idFromIndexKey(it.Item().Key()))
			if errors.Is(err, datatypes.ErrTaskNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			tasks = append(tasks, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// eachRecord calls fn for every stored record.
func (s *BadgerStore) eachRecord(fn func(rec *datatypes.TaskRecord) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(taskPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := decodeRecord(data)
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// InState implements TaskStore.
func (s *BadgerStore) InState(_ context.Context, state datatypes.TaskState) ([]*datatypes.Task, error) {
	var tasks []*datatypes.Task
	err := s.eachRecord(func(rec *datatypes.TaskRecord) error {
		if rec.State != state {
			return nil
		}
		task, err := datatypes.DecodeTask(rec)
		if err != nil {
			return err
		}
		tasks = append(tasks, task)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(tasks)
	return tasks, nil
}

// Stats implements TaskStore.
func (s *BadgerStore) Stats(_ context.Context) (datatypes.Stats, error) {
	stats := datatypes.NewStats()
	err := s.eachRecord(func(rec *datatypes.TaskRecord) error {
		stats.Add(rec)
		return nil
	})
	if err != nil {
		return datatypes.Stats{}, err
	}
	return stats, nil
}

// Ping implements TaskStore.
func (s *BadgerStore) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errStoreClosed
	}
	return nil
}

// Close stops GC and closes the database.
func (s *BadgerStore) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}
