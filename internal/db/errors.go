// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a lookup by ID or unique key matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// ErrJumpCycle is returned when a Host's jump_via would introduce a cycle.
// Raised by validateJumpChain before CreateHost/UpdateHost ever persist the
// row; sshclient.ErrJumpCycle is the separate, connection-time check over
// the same invariant.
var ErrJumpCycle = errors.New("jump_via chain contains a cycle")

// MapDBError inspects low-level driver error text and maps common constraint
// violations to package-level sentinels, conservatively enough to avoid
// importing any one driver's error types into this package.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}
	le := strings.ToLower(err.Error())
	if strings.Contains(le, "duplicate") || strings.Contains(le, "unique") || strings.Contains(le, "23505") || strings.Contains(le, "1062") {
		return ErrDuplicate
	}
	return err
}
