// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskRecord is the persisted form of a Task.
//
// # Description
//
// Request and result payloads are encoded explicitly from their typed Go
// values so the stored schema follows the types. ResultPayload is null until
// the first stage result exists; ErrorMessage is null unless the task failed.
type TaskRecord struct {
	TaskID         string          `json:"task_id"`
	ApplicantName  string          `json:"applicant_name"`
	State          TaskState       `json:"state"`
	RequestPayload json.RawMessage `json:"request_payload"`
	ResultPayload  json.RawMessage `json:"result_payload"`
	ErrorMessage   *string         `json:"error_message"`
	Lease          *Lease          `json:"lease,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Decision returns the final decision tag held in the result payload, or the
// empty string when the task has none.
func (r *TaskRecord) Decision() Decision {
	if len(r.ResultPayload) == 0 {
		return ""
	}
	var res struct {
		Decision *struct {
			Decision Decision `json:"decision"`
		} `json:"decision"`
	}
	if err := json.Unmarshal(r.ResultPayload, &res); err != nil || res.Decision == nil {
		return ""
	}
	return res.Decision.Decision
}

// EncodeTask converts a task into its persisted record.
func EncodeTask(t *Task) (*TaskRecord, error) {
	req, err := json.Marshal(t.Application)
	if err != nil {
		return nil, fmt.Errorf("encoding request payload for %s: %w", t.ID, err)
	}
	rec := &TaskRecord{
		TaskID:         t.ID,
		ApplicantName:  t.Application.Name,
		State:          t.State,
		RequestPayload: req,
		Lease:          t.Lease,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if t.Results != (StageResults{}) {
		res, err := json.Marshal(t.Results)
		if err != nil {
			return nil, fmt.Errorf("encoding result payload for %s: %w", t.ID, err)
		}
		rec.ResultPayload = res
	}
	if t.Error != "" {
		msg := t.Error
		rec.ErrorMessage = &msg
	}
	return rec, nil
}

// DecodeTask converts a persisted record back into a task.
func DecodeTask(rec *TaskRecord) (*Task, error) {
	t := &Task{
		ID:        rec.TaskID,
		State:     rec.State,
		Lease:     rec.Lease,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if err := json.Unmarshal(rec.RequestPayload, &t.Application); err != nil {
		return nil, fmt.Errorf("decoding request payload for %s: %w", rec.TaskID, err)
	}
	if len(rec.ResultPayload) > 0 && string(rec.ResultPayload) != "null" {
		if err := json.Unmarshal(rec.ResultPayload, &t.Results); err != nil {
			return nil, fmt.Errorf("decoding result payload for %s: %w", rec.TaskID, err)
		}
	}
	if rec.ErrorMessage != nil {
		t.Error = *rec.ErrorMessage
	}
	return t, nil
}

// Stats summarizes the stored tasks.
type Stats struct {
	Total      int               `json:"total"`
	ByState    map[TaskState]int `json:"by_state"`
	ByDecision map[Decision]int  `json:"by_decision"`
}

// NewStats returns a Stats with every state key initialized to zero.
func NewStats() Stats {
	s := Stats{
		ByState:    make(map[TaskState]int, len(AllStates)),
		ByDecision: make(map[Decision]int, 3),
	}
	for _, st := range AllStates {
		s.ByState[st] = 0
	}
	return s
}

// Add counts one record.
func (s *Stats) Add(rec *TaskRecord) {
	s.Total++
	s.ByState[rec.State]++
	if d := rec.Decision(); d != "" {
		s.ByDecision[d]++
	}
}
