// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeal_UseReturnsKey(t *testing.T) {
	s, err := Seal("  sk-test-123 ")
	require.NoError(t, err)

	var seen string
	err = s.Use(func(key string) error {
		seen = string([]byte(key))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", seen)
}

func TestSeal_Empty(t *testing.T) {
	_, err := Seal("   ")
	assert.ErrorIs(t, err, ErrEmptyKey)

	var s *Sealed
	assert.ErrorIs(t, s.Use(func(string) error { return nil }), ErrEmptyKey)
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api_key")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))

	v, err := Resolve("from-env", path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	v, err = Resolve("", path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", v)

	_, err = Resolve("", filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrEmptyKey)
}
