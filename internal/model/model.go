// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the core data structures used throughout the
// reconciliation core: the desired-state entities (Host, User, PublicKey,
// Authorization), the derived DesiredKey set, and the observed-state
// AuthorizedLine produced by parsing a remote authorized_keys file.
package model // import "github.com/toeirei/ssm/internal/model"

import "fmt"

// Host is a managed remote machine. Identity is the unique Name plus the
// unique (Address, Port) pair. JumpVia, when non-zero, names another Host
// through which sessions to this Host must be tunneled.
type Host struct {
	ID int
	// Name is the operator-facing unique identifier for this host.
	Name string
	// Address is the hostname or IP SSM dials.
	Address string
	Port    int
	// LoginUser is the SSH login used by SSM itself when probing this host
	// (distinct from the per-login accounts whose authorized_keys are managed).
	LoginUser string
	// HostKeyFingerprint is the confirmed SHA256 OpenSSH-style fingerprint.
	// Empty until the operator has confirmed first contact.
	HostKeyFingerprint string
	// JumpVia, if non-zero, is the ID of the Host used as a jump for sessions
	// to this Host.
	JumpVia  int
	Disabled bool
	Comment  string
}

// String returns a human-friendly "name (user@address:port)" representation.
func (h Host) String() string {
	return fmt.Sprintf("%s (%s@%s:%d)", h.Name, h.LoginUser, h.Address, h.Port)
}

// HasJump reports whether this Host jumps through another host.
func (h Host) HasJump() bool {
	return h.JumpVia != 0
}

// User owns zero or more PublicKeys and is the subject of Authorizations.
// Disabling a User removes its keys from reconciliation without deleting them.
type User struct {
	ID       int
	Username string
	Enabled  bool
	Comment  string
}

// PublicKey is a single SSH public key owned by exactly one User. The pair
// (Algorithm, Blob) is globally unique.
type PublicKey struct {
	ID        int
	Algorithm string
	// Blob is the base64-encoded key material, verbatim from the OpenSSH
	// one-line representation this key was ingested from.
	Blob string
	// UserID is the owning User.
	UserID int
	// Name is the operator-assigned label for this key.
	Name string
	// Comment is the optional free-text note kept alongside the key. It is
	// never written back into generated authorized_keys files; see
	// StableComment in package reconcile.
	Comment string
}

// AuthorizedKeyLine renders the key as "<algorithm> <blob>", the minimal
// two-token form accepted by sshd regardless of trailing comment.
func (k PublicKey) AuthorizedKeyLine() string {
	return fmt.Sprintf("%s %s", k.Algorithm, k.Blob)
}

// Authorization grants a User's keys access to a Host under a specific
// remote login, optionally constrained by a verbatim authorized_keys
// options string. (User, Host, Login) is unique.
type Authorization struct {
	ID      int
	UserID  int
	HostID  int
	Login   string
	Options string
}

// DesiredKey is a computed (never stored) member of the desired set for a
// given (Host, Login): one entry per (Authorization.Options, PublicKey) pair
// where the owning User is enabled.
type DesiredKey struct {
	Options string
	Key     PublicKey
	// OwnerUsername is carried through for finding messages and generated
	// file comments; it is not part of DesiredKey identity.
	OwnerUsername string
}

// AuthorizedLine is one parsed record from an observed authorized_keys file.
type AuthorizedLine struct {
	Options         string
	Algorithm       string
	BlobBase64      string
	TrailingComment string
	// Raw is the original source line, kept for FaultyKey diagnostics and
	// for rendering findings back to an operator.
	Raw string
}
