// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

// package reconcile is the Diff & Reconcile Engine (C4): parses observed
// authorized_keys content, computes the discrepancy set against the
// data model's desired state, synthesizes replacement files, and drives
// sync through the caching client.
package reconcile // import "github.com/toeirei/ssm/internal/reconcile"

import (
	"context"

	"github.com/toeirei/ssm/internal/model"
)

// DesiredStateStore is the slice of the persisted store the engine needs to
// compute a diff: the derived DesiredKey set for one (host, login), and
// lookups used to classify keys the store knows about but did not expect
// here (UnauthorizedKey) versus keys it has never seen at all (UnknownKey).
type DesiredStateStore interface {
	// DesiredKeys returns { (options, PublicKey) | Authorization(user, hostID,
	// login) exists AND user.enabled AND PublicKey.user = user }.
	DesiredKeys(ctx context.Context, hostID int, login string) ([]model.DesiredKey, error)
	// LookupPublicKey finds a stored PublicKey by its (algorithm, blob)
	// identity, fleet-wide, independent of any one host or login.
	LookupPublicKey(ctx context.Context, algorithm, blob string) (model.PublicKey, bool, error)
	// Username resolves a PublicKey owner's username for finding messages.
	Username(ctx context.Context, userID int) (string, error)
}
