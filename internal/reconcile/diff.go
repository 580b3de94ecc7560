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

// Diff computes the current discrepancy report for one (Host, login). It
// fetches observed state and readonly state through the cache (respecting
// forceRefresh) and never mutates anything remote.
func (e *Engine) Diff(ctx context.Context, h model.Host, login string, forceRefresh bool) (model.LoginReport, error) {
	unlock := e.locks.acquire(h.ID)
	defer unlock()
	return e.diffLocked(ctx, h, login, forceRefresh)
}

// diffLocked is Diff's body, factored out so Sync can call it while already
// holding the per-host lock without deadlocking on a non-reentrant mutex.
func (e *Engine) diffLocked(ctx context.Context, h model.Host, login string, forceRefresh bool) (model.LoginReport, error) {
	report := model.LoginReport{HostID: h.ID, HostName: h.Name, Login: login}

	roRaw, _, roErr := e.cache.Get(ctx, h, probe.VerbReadonlyState, []string{login}, forceRefresh)
	if roErr != nil {
		report.State = model.StateUnreachable
		report.Err = roErr
		return report, nil
	}
	roState, err := probe.ParseReadonlyState(roRaw)
	if err != nil {
		report.State = model.StateUnreachable
		report.Err = err
		return report, nil
	}

	keysRaw, fetchedAt, err := e.cache.Get(ctx, h, probe.VerbGetKeys, []string{login}, forceRefresh)
	report.FetchedAt = fetchedAt

	var fileExists bool
	var pragmaPresent bool
	var lines []string
	if err != nil {
		var execErr *sshclient.ErrExecError
		if errors.As(err, &execErr) && execErr.ExitCode == probe.ExitKeysFileAbsent {
			fileExists = false
		} else {
			report.State = model.StateUnreachable
			report.Err = err
			return report, nil
		}
	} else {
		fileExists = true
		pragmaPresent, lines = e.splitObserved(keysRaw)
	}

	desired, err := e.desired.DesiredKeys(ctx, h.ID, login)
	if err != nil {
		return report, err
	}

	findings, err := e.computeFindings(ctx, fileExists, pragmaPresent, lines, desired)
	if err != nil {
		return report, err
	}
	report.Findings = findings
	report.Classification = model.ClassifyFindings(findings)

	switch {
	case roState.Readonly:
		report.State = model.StateReadonly
		report.ReadonlyReason = roState.Reason
	case len(findings) == 0:
		report.State = model.StateInSync
	default:
		report.State = model.StateDirty
	}
	return report, nil
}
