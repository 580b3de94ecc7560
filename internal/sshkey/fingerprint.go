// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import (
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// Fingerprint returns the SHA256 OpenSSH-style fingerprint ("SHA256:...")
// of a key given its algorithm tag and base64-encoded blob. Fingerprints
// are always derived, never stored as primary identity.
func Fingerprint(algorithm, blobBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blobBase64)
	if err != nil {
		return "", fmt.Errorf("decode key blob: %w", err)
	}
	pub, err := ssh.ParsePublicKey(raw)
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}
	if pub.Type() != algorithm {
		return "", fmt.Errorf("algorithm mismatch: line says %q, blob is %q", algorithm, pub.Type())
	}
	return ssh.FingerprintSHA256(pub), nil
}

// HostKeyFingerprint returns the SHA256 OpenSSH-style fingerprint of a host
// key as presented during an SSH handshake.
func HostKeyFingerprint(key ssh.PublicKey) string {
	return ssh.FingerprintSHA256(key)
}

// CheckWeakAlgorithm inspects a host public key's algorithm and returns a
// non-empty warning if it uses a deprecated or discouraged algorithm.
func CheckWeakAlgorithm(key ssh.PublicKey) string {
	switch key.Type() {
	case "ssh-dss":
		return "host key uses deprecated and insecure ssh-dss (DSA) algorithm"
	case ssh.KeyAlgoRSA:
		return "host key uses ssh-rsa, disabled by default in modern OpenSSH clients"
	default:
		return ""
	}
}
