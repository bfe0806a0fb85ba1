// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package secrets keeps API credentials encrypted in memory between uses.
//
// Keys are sealed into a memguard Enclave at startup and only decrypted into
// a locked buffer for the duration of a single outbound request.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/awnumar/memguard"
)

// ErrEmptyKey is returned when sealing an empty credential.
var ErrEmptyKey = errors.New("secret is empty")

// Sealed holds one credential inside a memguard Enclave.
//
// # Thread Safety
//
// Safe for concurrent use; every Use call opens its own locked buffer.
type Sealed struct {
	enclave *memguard.Enclave
}

// Seal encrypts key into a new Enclave. The plaintext string is not retained.
func Seal(key string) (*Sealed, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrEmptyKey
	}
	return &Sealed{enclave: memguard.NewEnclave([]byte(key))}, nil
}

// Use decrypts the credential into a locked buffer, passes it to fn and
// destroys the buffer when fn returns. fn must not retain the string.
func (s *Sealed) Use(fn func(key string) error) error {
	if s == nil || s.enclave == nil {
		return ErrEmptyKey
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return fmt.Errorf("opening sealed secret: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.String())
}

// Resolve returns value when non-empty, otherwise the trimmed contents of
// secretPath (a mounted container secret). It returns ErrEmptyKey when
// neither source yields a credential.
func Resolve(value, secretPath string) (string, error) {
	if v := strings.TrimSpace(value); v != "" {
		return v, nil
	}
	if secretPath == "" {
		return "", ErrEmptyKey
	}
	content, err := os.ReadFile(secretPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s not readable", ErrEmptyKey, secretPath)
	}
	if v := strings.TrimSpace(string(content)); v != "" {
		return v, nil
	}
	return "", ErrEmptyKey
}
