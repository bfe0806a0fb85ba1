// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner_AnimatesAtStandardLevel(t *testing.T) {
	var out syncBuffer
	s := NewPrinter(&out, PersonalityStandard).NewSpinner("evaluating")
	s.Start()
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.UpdateMessage("deciding")
	time.Sleep(200 * time.Millisecond)
	s.Stop()
	s.Stop()

	assert.Contains(t, out.String(), "evaluating")
	assert.Contains(t, out.String(), "deciding")
}

func TestSpinner_SilentAtMachineLevel(t *testing.T) {
	var out syncBuffer
	s := NewPrinter(&out, PersonalityMachine).NewSpinner("evaluating")
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()
	assert.Empty(t, out.String())
}

func TestWithSpinner(t *testing.T) {
	var out syncBuffer
	p := NewPrinter(&out, PersonalityMachine)

	assert.NoError(t, p.WithSpinner("ok", func() error { return nil }))
	assert.Empty(t, out.String())

	boom := errors.New("boom")
	assert.ErrorIs(t, p.WithSpinner("submitting", func() error { return boom }), boom)
	assert.Equal(t, "ERROR: submitting: boom\n", out.String())
}
