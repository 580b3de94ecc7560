// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "time"

// ProbeValue wraps a cached probe result with the timestamp it was fetched
// at, so callers (the UI in particular) can display "cached N seconds ago".
type ProbeValue struct {
	Value     []byte
	FetchedAt time.Time
}

// ObservedLogin is the parsed result of a get_keys probe invocation for one
// login: the authorized lines it contained and whether the SSM pragma
// header was present.
type ObservedLogin struct {
	Lines          []AuthorizedLine
	PragmaPresent  bool
	FileExists     bool
	ReadonlyReason string // empty unless the login is currently readonly-refused
}
