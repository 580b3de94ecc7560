// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

func generateTestKey(t *testing.T) (algorithm, blobBase64 string, pub ssh.PublicKey) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer from key: %v", err)
	}
	pub = signer.PublicKey()
	return pub.Type(), base64.StdEncoding.EncodeToString(pub.Marshal()), pub
}

func TestFingerprintMatchesDirectComputation(t *testing.T) {
	algorithm, blob, pub := generateTestKey(t)

	got, err := Fingerprint(algorithm, blob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ssh.FingerprintSHA256(pub)
	if got != want {
		t.Errorf("Fingerprint() = %q, want %q", got, want)
	}
	if !strings.HasPrefix(got, "SHA256:") {
		t.Errorf("expected SHA256: prefix, got %q", got)
	}
}

func TestFingerprintAlgorithmMismatch(t *testing.T) {
	_, blob, _ := generateTestKey(t)
	if _, err := Fingerprint("ssh-rsa", blob); err == nil {
		t.Fatal("expected error for algorithm mismatch")
	}
}

func TestFingerprintBadBase64(t *testing.T) {
	if _, err := Fingerprint("ssh-ed25519", "not-base64!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}
