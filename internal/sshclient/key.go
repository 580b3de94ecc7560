// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package sshclient

import (
	"fmt"

	"golang.org/x/crypto/ssh"
)

// LoadSigner parses the operator's private key once at startup. If
// passphrase is empty, an unencrypted key is expected. This is the only
// identity sessions authenticate with; there is no password or
// keyboard-interactive fallback.
func LoadSigner(pemBytes []byte, passphrase string) (ssh.Signer, error) {
	if passphrase == "" {
		signer, err := ssh.ParsePrivateKey(pemBytes)
		if err != nil {
			return nil, fmt.Errorf("parse operator private key: %w", err)
		}
		return signer, nil
	}
	signer, err := ssh.ParsePrivateKeyWithPassphrase(pemBytes, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("parse operator private key with passphrase: %w", err)
	}
	return signer, nil
}
