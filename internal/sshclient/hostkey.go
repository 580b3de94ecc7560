// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package sshclient

import (
	"net"

	"github.com/toeirei/ssm/internal/model"
	"github.com/toeirei/ssm/internal/sshkey"
	"golang.org/x/crypto/ssh"
)

// hostKeyCallbackFor builds the strict TOFU policy callback for a single
// hop. No silent upgrade is ever performed: an empty recorded fingerprint
// fails with ErrHostKeyUnknown, and a mismatch fails with
// ErrHostKeyMismatch. The operator confirms new fingerprints out of band
// (persisting them to Host.HostKeyFingerprint) before a retry succeeds.
func hostKeyCallbackFor(h model.Host) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		presented := sshkey.HostKeyFingerprint(key)
		if h.HostKeyFingerprint == "" {
			return &ErrHostKeyUnknown{HostName: h.Name, PresentedFingerprint: presented}
		}
		if h.HostKeyFingerprint != presented {
			return &ErrHostKeyMismatch{
				HostName:             h.Name,
				RecordedFingerprint:  h.HostKeyFingerprint,
				PresentedFingerprint: presented,
			}
		}
		return nil
	}
}
