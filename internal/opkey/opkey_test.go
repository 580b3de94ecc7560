// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package opkey_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/toeirei/ssm/internal/opkey"
	"golang.org/x/crypto/ssh"
)

func writeUnencryptedKey(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("MarshalPrivateKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func writeEncryptedKey(t *testing.T, passphrase string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	if err != nil {
		t.Fatalf("MarshalPrivateKeyWithPassphrase: %v", err)
	}
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadUnencryptedKey(t *testing.T) {
	path := writeUnencryptedKey(t)
	signer, err := opkey.Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if signer.PublicKey() == nil {
		t.Fatal("expected a usable signer")
	}
}

func TestLoadEncryptedKeyWithConfiguredPassphrase(t *testing.T) {
	path := writeEncryptedKey(t, "correct horse")
	signer, err := opkey.Load(path, "correct horse")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if signer.PublicKey() == nil {
		t.Fatal("expected a usable signer")
	}
}

func TestLoadEncryptedKeyWithoutPassphraseFailsNonInteractively(t *testing.T) {
	path := writeEncryptedKey(t, "correct horse")
	if _, err := opkey.Load(path, ""); err == nil {
		t.Fatal("expected an error when no passphrase is available and stdin isn't a terminal")
	}
}

func TestLoadMissingKeyFile(t *testing.T) {
	if _, err := opkey.Load(filepath.Join(t.TempDir(), "absent"), ""); err == nil {
		t.Fatal("expected an error for a missing key file")
	}
}
