// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package reconcile

import (
	"context"
	"errors"

	"github.com/toeirei/ssm/internal/model"
	"github.com/toeirei/ssm/internal/probe"
	"github.com/toeirei/ssm/internal/sshclient"
)

// Sync implements §4.4.4: re-probe, refuse if readonly or disabled,
// generate the replacement file, write it, invalidate the cache, then
// re-diff and return the post-sync report (an empty finding list on
// success). Within one (host, login) unit, probe -> generate -> write ->
// invalidate -> re-probe is linearized by the per-host lock; cancellation
// before set_keys is dispatched aborts cleanly, but once dispatched the
// call is allowed to finish since the probe's own write is atomic.
func (e *Engine) Sync(ctx context.Context, h model.Host, login string) (model.LoginReport, error) {
	if h.Disabled {
		return model.LoginReport{HostID: h.ID, HostName: h.Name, Login: login, Err: &sshclient.ErrDisabled{HostName: h.Name}}, nil
	}

	unlock := e.locks.acquire(h.ID)
	defer unlock()

	pre, err := e.diffLocked(ctx, h, login, true)
	if err != nil {
		return pre, err
	}
	if pre.State == model.StateReadonly || pre.State == model.StateUnreachable {
		return pre, nil
	}

	desired, err := e.desired.DesiredKeys(ctx, h.ID, login)
	if err != nil {
		return pre, err
	}
	content := e.Generate(desired)

	_, err = e.wire.Execute(ctx, h, probe.VerbSetKeys, []string{login}, []byte(content))
	e.cache.Invalidate(h.ID)
	if err != nil {
		var refused *sshclient.ErrReadonlyRefused
		if errors.As(err, &refused) {
			return model.LoginReport{
				HostID: h.ID, HostName: h.Name, Login: login,
				State: model.StateReadonly, ReadonlyReason: refused.Reason,
			}, nil
		}
		return model.LoginReport{HostID: h.ID, HostName: h.Name, Login: login, State: model.StateUnreachable, Err: err}, nil
	}

	return e.diffLocked(ctx, h, login, true)
}

// SyncResult pairs a login with its post-sync report, for batch callers
// that need a per-unit outcome vector rather than an all-or-nothing error.
type SyncResult struct {
	Login  string
	Report model.LoginReport
	Err    error
}

// SyncAll syncs every given login on H independently: a failure on one
// login never prevents the others from being attempted, per §4.4.4's
// partial-failure semantics.
func (e *Engine) SyncAll(ctx context.Context, h model.Host, logins []string) []SyncResult {
	results := make([]SyncResult, len(logins))
	for i, login := range logins {
		report, err := e.Sync(ctx, h, login)
		results[i] = SyncResult{Login: login, Report: report, Err: err}
	}
	return results
}
