// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

// package opkey loads the single operator private key the wire client
// authenticates every hop with. It prefers a running ssh-agent (Pageant or
// OpenSSH-for-Windows named pipes on Windows, SSH_AUTH_SOCK on Unix) over a
// key file on disk, and falls back to prompting for a passphrase on an
// interactive terminal when the key file is encrypted and no passphrase was
// configured.
package opkey // import "github.com/toeirei/ssm/internal/opkey"

import (
	"errors"
	"fmt"
	"os"

	"github.com/toeirei/ssm/internal/logging"
	"github.com/toeirei/ssm/internal/state"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// Load returns the operator signer: the first identity offered by a running
// ssh-agent, or the parsed private key at keyPath. passphrase, if non-empty,
// is tried first; an empty passphrase on an encrypted key falls back to an
// interactive prompt, and the entered value is cached in state.PasswordCache
// so later calls in the same process don't re-prompt.
func Load(keyPath, passphrase string) (ssh.Signer, error) {
	if a := dialAgent(); a != nil {
		signers, err := a.Signers()
		if err == nil && len(signers) > 0 {
			logging.Debugf("opkey: using identity from ssh-agent")
			return signers[0], nil
		}
		logging.Warnf("opkey: ssh-agent present but offered no usable identity: %v", err)
	}

	if keyPath == "" {
		return nil, errors.New("opkey: no ssh.private_key_path configured and no ssh-agent available")
	}
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("opkey: read private key %s: %w", keyPath, err)
	}

	if passphrase == "" {
		passphrase = string(state.PasswordCache.Get())
	}

	signer, err := parseKey(raw, passphrase)
	var missing *ssh.PassphraseMissingError
	if err != nil && errors.As(err, &missing) && passphrase == "" {
		entered, perr := promptPassphrase(keyPath)
		if perr != nil {
			return nil, perr
		}
		state.PasswordCache.Set([]byte(entered))
		signer, err = parseKey(raw, entered)
	}
	if err != nil {
		return nil, fmt.Errorf("opkey: parse private key %s: %w", keyPath, err)
	}
	return signer, nil
}

func parseKey(raw []byte, passphrase string) (ssh.Signer, error) {
	if passphrase == "" {
		return ssh.ParsePrivateKey(raw)
	}
	return ssh.ParsePrivateKeyWithPassphrase(raw, []byte(passphrase))
}

func promptPassphrase(keyPath string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("opkey: %s is encrypted and no passphrase is configured", keyPath)
	}
	fmt.Printf("Enter passphrase for %s: ", keyPath)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("opkey: read passphrase: %w", err)
	}
	return string(b), nil
}
