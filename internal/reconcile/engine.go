// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package reconcile

import (
	"context"

	"github.com/toeirei/ssm/internal/cache"
	"github.com/toeirei/ssm/internal/model"
	"github.com/toeirei/ssm/internal/probe"
)

// DefaultPragma is the fallback header line set_keys prepends when no
// probe.pragma override is configured.
const DefaultPragma = "# Managed by ssm - do not edit by hand"

// WireClient is the slice of the wire client the engine drives directly:
// set_keys writes and probe installation bypass the cache, per §4.4.4.
type WireClient interface {
	Execute(ctx context.Context, h model.Host, verb probe.Verb, args []string, stdin []byte) ([]byte, error)
	DeployProbe(ctx context.Context, h model.Host) error
}

// Engine is the Diff & Reconcile Engine (C4). A single Engine is shared by
// every task; it holds no per-call state beyond the arguments it is given.
type Engine struct {
	cache   *cache.Client
	wire    WireClient
	desired DesiredStateStore
	pragma  string
	locks   *hostLocks
}

// New builds an Engine. pragma is the exact header line used by set_keys;
// pass "" to use DefaultPragma.
func New(cacheClient *cache.Client, wire WireClient, desired DesiredStateStore, pragma string) *Engine {
	if pragma == "" {
		pragma = DefaultPragma
	}
	return &Engine{cache: cacheClient, wire: wire, desired: desired, pragma: pragma, locks: newHostLocks()}
}
