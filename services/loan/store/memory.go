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
	"sync"

	"github.com/AleutianAI/AleutianLoan/services/loan/datatypes"
)

// MemoryStore keeps encoded task records in a map.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	closed  bool
}

var _ TaskStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Create implements TaskStore.
func (m *MemoryStore) Create(_ context.Context, task *datatypes.Task) error {
	_, data, err := encodeRecord(task)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[task.ID]; ok {
		return ErrTaskExists
	}
	m.records[task.ID] = data
	return nil
}

// Get implements TaskStore.
func (m *MemoryStore) Get(_ context.Context, id string) (*datatypes.Task, error) {
	m.mu.RLock()
	data, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}
	return decodeTask(data)
}

// Update implements TaskStore.
func (m *MemoryStore) Update(_ context.Context, id string, fn func(*datatypes.Task) error) (*datatypes.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.records[id]
	if !ok {
		return nil, notFound(id)
	}
	task, err := decodeTask(data)
	if err != nil {
		return nil, err
	}
	if err := fn(task); err != nil {
		return nil, err
	}
	_, out, err := encodeRecord(task)
	if err != nil {
		return nil, err
	}
	m.records[id] = out
	return task, nil
}

// Delete implements TaskStore.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return notFound(id)
	}
	delete(m.records, id)
	return nil
}

// Recent implements TaskStore.
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]*datatypes.Task, error) {
	return m.filter(ClampLimit(limit), func(*datatypes.Task) bool { return true })
}

// ByApplicant implements TaskStore.
func (m *MemoryStore) ByApplicant(_ context.Context, name string, limit int) ([]*datatypes.Task, error) {
	key := applicantKey(name)
	return m.filter(ClampLimit(limit), func(t *datatypes.Task) bool {
		return applicantKey(t.Application.Name) == key
	})
}

// InState implements TaskStore.
func (m *MemoryStore) InState(_ context.Context, state datatypes.TaskState) ([]*datatypes.Task, error) {
	return m.filter(0, func(t *datatypes.Task) bool { return t.State == state })
}

// filter decodes every task accepted by keep, newest first. A limit of
// zero returns all of them.
func (m *MemoryStore) filter(limit int, keep func(*datatypes.Task) bool) ([]*datatypes.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := make([]*datatypes.Task, 0, len(m.records))
	for _, data := range m.records {
		t, err := decodeTask(data)
		if err != nil {
			return nil, err
		}
		if keep(t) {
			tasks = append(tasks, t)
		}
	}
	sortNewestFirst(tasks)
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

// Stats implements TaskStore.
func (m *MemoryStore) Stats(_ context.Context) (datatypes.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := datatypes.NewStats()
	for _, data := range m.records {
		rec, err := decodeRecord(data)
		if err != nil {
			return datatypes.Stats{}, err
		}
		stats.Add(rec)
	}
	return stats, nil
}

// Ping implements TaskStore.
func (m *MemoryStore) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errStoreClosed
	}
	return nil
}

// Close implements TaskStore.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
