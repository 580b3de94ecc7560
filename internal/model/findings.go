// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the core data structures for discrepancy detection
// between observed and desired authorized_keys state.
package model

import "time"

// FindingKind is a stable, machine-readable tag for one classified
// discrepancy between observed and desired state. The taxonomy is
// exhaustive; the field comments on Finding below say which fields each
// kind carries.
type FindingKind string

const (
	// PragmaMissing: file exists but lacks the SSM pragma header.
	PragmaMissing FindingKind = "PragmaMissing"
	// FaultyKey: an observed line could not be parsed.
	FaultyKey FindingKind = "FaultyKey"
	// DuplicateKey: the same key material appears more than once.
	DuplicateKey FindingKind = "DuplicateKey"
	// UnknownKey: observed key material matches no stored PublicKey.
	UnknownKey FindingKind = "UnknownKey"
	// UnauthorizedKey: key is known but has no Authorization for this login.
	UnauthorizedKey FindingKind = "UnauthorizedKey"
	// KeyMissing: a DesiredKey is absent from the observed file.
	KeyMissing FindingKind = "KeyMissing"
	// IncorrectOptions: key present and authorized, options differ.
	IncorrectOptions FindingKind = "IncorrectOptions"
)

// Finding is a single classified discrepancy for one (Host, Login). Not
// every field is populated for every Kind; see the field comments.
type Finding struct {
	Kind FindingKind

	// Line/Reason populate FaultyKey.
	Line   string
	Reason string

	// Algorithm/Blob populate DuplicateKey and UnknownKey.
	Algorithm string
	Blob      string

	// User and KeyFingerprint populate UnauthorizedKey, KeyMissing, IncorrectOptions.
	User           string
	KeyFingerprint string

	// Observed/Expected populate IncorrectOptions.
	Observed string
	Expected string
}

// LoginState is the per-(Host,Login) state machine of spec section 4.4.5.
type LoginState string

const (
	StateUnknown     LoginState = "unknown"
	StateProbed      LoginState = "probed"
	StateInSync      LoginState = "in_sync"
	StateDirty       LoginState = "dirty"
	StateReadonly    LoginState = "readonly"
	StateUnreachable LoginState = "unreachable"
)

// DriftClassification buckets a Finding list into an at-a-glance severity,
// layered on top of the raw taxonomy so a caller triaging a fleet does not
// need to re-derive severity from individual findings on every view.
type DriftClassification string

const (
	DriftNone     DriftClassification = "none"
	DriftInfo     DriftClassification = "info"
	DriftWarning  DriftClassification = "warning"
	DriftCritical DriftClassification = "critical"
)

// FindingSeverity returns the DriftClassification a single Finding
// contributes. ClassifyFindings reduces a list down to its worst severity;
// the diff engine also uses this per finding to order the findings list
// deterministically.
func FindingSeverity(kind FindingKind) DriftClassification {
	switch kind {
	case PragmaMissing, UnauthorizedKey:
		return DriftCritical
	case KeyMissing, IncorrectOptions, FaultyKey:
		return DriftWarning
	default:
		return DriftInfo
	}
}

// ClassifyFindings derives a DriftClassification from a Finding list: the
// worst severity contributed by any single finding, or DriftNone for an
// empty list.
func ClassifyFindings(findings []Finding) DriftClassification {
	if len(findings) == 0 {
		return DriftNone
	}
	classification := DriftInfo
	for _, f := range findings {
		switch FindingSeverity(f.Kind) {
		case DriftCritical:
			return DriftCritical
		case DriftWarning:
			classification = DriftWarning
		}
	}
	return classification
}

// LoginReport is the result of diffing one (Host, Login): the observed
// findings, the derived state and classification, and cache provenance.
type LoginReport struct {
	HostID         int
	HostName       string
	Login          string
	State          LoginState
	Findings       []Finding
	Classification DriftClassification
	FetchedAt      time.Time
	// ReadonlyReason is set when State is StateReadonly.
	ReadonlyReason string
	// Err carries the underlying error when State is StateUnreachable.
	Err error
}

// InSync reports whether this login has no outstanding findings.
func (r LoginReport) InSync() bool {
	return r.State == StateInSync
}

// AccountDriftStats summarizes drift history for a single (Host, Login),
// used by fleet-level dashboards to triage without re-walking every report.
type AccountDriftStats struct {
	HostID        int
	Login         string
	DriftCount    int
	LastDriftAt   time.Time
	LastDriftKind DriftClassification
}
