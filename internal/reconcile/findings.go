// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package reconcile

import (
	"context"
	"sort"
	"strings"

	"github.com/toeirei/ssm/internal/model"
	"github.com/toeirei/ssm/internal/sshkey"
)

func keyIdentity(algorithm, blob string) string {
	return algorithm + "|" + blob
}

// computeFindings implements §4.4.2's classification over one login's
// observed lines against its desired set. It is exhaustive per the
// taxonomy: every observed line and every desired key is accounted for.
func (e *Engine) computeFindings(ctx context.Context, fileExists, pragmaPresent bool, lines []string, desired []model.DesiredKey) ([]model.Finding, error) {
	var findings []model.Finding

	if fileExists && !pragmaPresent {
		findings = append(findings, model.Finding{Kind: model.PragmaMissing})
	}

	remaining := make(map[string]model.DesiredKey, len(desired))
	for _, dk := range desired {
		remaining[keyIdentity(dk.Key.Algorithm, dk.Key.Blob)] = dk
	}

	seen := make(map[string]int)
	for _, raw := range lines {
		parsed, err := sshkey.ParseLine(raw)
		if err != nil {
			findings = append(findings, model.Finding{Kind: model.FaultyKey, Line: raw, Reason: err.Error()})
			continue
		}

		identity := keyIdentity(parsed.Algorithm, parsed.BlobBase64)
		seen[identity]++
		if seen[identity] > 1 {
			findings = append(findings, model.Finding{Kind: model.DuplicateKey, Algorithm: parsed.Algorithm, Blob: parsed.BlobBase64, Line: raw})
			continue
		}

		pk, found, err := e.desired.LookupPublicKey(ctx, parsed.Algorithm, parsed.BlobBase64)
		if err != nil {
			return nil, err
		}
		if !found {
			findings = append(findings, model.Finding{Kind: model.UnknownKey, Line: raw, Algorithm: parsed.Algorithm, Blob: parsed.BlobBase64})
			continue
		}

		if dk, ok := remaining[identity]; ok {
			delete(remaining, identity)
			if strings.TrimSpace(dk.Options) != strings.TrimSpace(parsed.Options) {
				fp, _ := sshkey.Fingerprint(pk.Algorithm, pk.Blob)
				findings = append(findings, model.Finding{
					Kind:           model.IncorrectOptions,
					User:           dk.OwnerUsername,
					KeyFingerprint: fp,
					Observed:       parsed.Options,
					Expected:       dk.Options,
				})
			}
			continue
		}

		username, err := e.desired.Username(ctx, pk.UserID)
		if err != nil {
			return nil, err
		}
		fp, _ := sshkey.Fingerprint(pk.Algorithm, pk.Blob)
		findings = append(findings, model.Finding{
			Kind:           model.UnauthorizedKey,
			User:           username,
			KeyFingerprint: fp,
			Algorithm:      parsed.Algorithm,
			Blob:           parsed.BlobBase64,
		})
	}

	for _, dk := range remaining {
		fp, _ := sshkey.Fingerprint(dk.Key.Algorithm, dk.Key.Blob)
		findings = append(findings, model.Finding{
			Kind:           model.KeyMissing,
			User:           dk.OwnerUsername,
			KeyFingerprint: fp,
			Algorithm:      dk.Key.Algorithm,
			Blob:           dk.Key.Blob,
		})
	}

	sortFindings(findings)
	return findings, nil
}

// sortFindings stable-sorts findings by (severity, user, key fingerprint) so
// that diff output is deterministic for UI and tests, per §4.4.2.
func sortFindings(findings []model.Finding) {
	severityRank := func(k model.FindingKind) int {
		switch model.FindingSeverity(k) {
		case model.DriftCritical:
			return 0
		case model.DriftWarning:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if ra, rb := severityRank(a.Kind), severityRank(b.Kind); ra != rb {
			return ra < rb
		}
		if a.User != b.User {
			return a.User < b.User
		}
		return a.KeyFingerprint < b.KeyFingerprint
	})
}
