// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for names and keys
// that arrive from files, flags and HTTP requests.
//
// World names become catalog keys and log attributes; layout keys become
// storage keys. Both are checked before they reach either.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrEmpty is returned for an empty name or key.
	ErrEmpty = errors.New("empty value")

	// ErrInvalidName is returned by ValidateName.
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidKey is returned by ValidateKey.
	ErrInvalidKey = errors.New("invalid key")
)

// MaxKeyLength bounds layout keys.
const MaxKeyLength = 256

// namePattern matches valid world names.
// Allows: letters, digits, spaces, dots, underscores, plus signs, hyphens
// Max length: 64 characters
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ._+\-]{0,63}$`)

// ValidateName validates a world name.
//
// Valid names:
//   - 1-64 characters
//   - Start with a letter or digit
//   - Letters, digits, spaces, dots, underscores, plus signs and hyphens
//
// Example:
//
//	if err := validation.ValidateName(name); err != nil {
//	    return fmt.Errorf("registering world: %w", err)
//	}
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name", ErrEmpty)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q (must be 1-64 letters, digits, spaces, '.', '_', '+' or '-')", ErrInvalidName, name)
	}
	return nil
}

// SanitizeName trims surrounding whitespace and validates the result.
func SanitizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if err := ValidateName(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}

// ValidateKey validates a layout key: valid UTF-8 of at most MaxKeyLength
// bytes with no control characters, slashes or backslashes.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key", ErrEmpty)
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidKey, MaxKeyLength)
	}
	if !utf8.ValidString(key) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidKey)
	}
	for _, r := range key {
		if unicode.IsControl(r) || r == '/' || r == '\\' {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidKey, key, r)
		}
	}
	return nil
}
