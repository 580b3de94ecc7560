// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package sshclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/toeirei/ssm/internal/sshkey"
	"golang.org/x/crypto/ssh"
)

// errHostKeyCaptured is a sentinel used to unwind the handshake in
// GetRemoteHostKey once the presented key has been captured, without
// completing authentication.
var errHostKeyCaptured = errors.New("sshclient: host key captured")

// GetRemoteHostKey connects to addr just far enough to learn its host key,
// then aborts the handshake. Nothing in this module calls it; cmd/ssmcore's
// trust-host learns the presented fingerprint from the ErrHostKeyUnknown of
// an ordinary probe call instead.
func GetRemoteHostKey(ctx context.Context, addr string, timeout time.Duration) (ssh.PublicKey, error) {
	keyCh := make(chan ssh.PublicKey, 1)
	cfg := &ssh.ClientConfig{
		User: "ssm-probe",
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			keyCh <- key
			return errHostKeyCaptured
		},
		Timeout: timeout,
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ErrUnreachable{HostName: addr, Cause: err}
	}
	_, _, _, err = ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		if errors.Is(err, errHostKeyCaptured) {
			return <-keyCh, nil
		}
		conn.Close()
		return nil, &ErrUnreachable{HostName: addr, Cause: err}
	}
	conn.Close()
	return nil, fmt.Errorf("handshake with %s succeeded unexpectedly without authentication", addr)
}

// BootstrapViaAgent connects to addr as user using the operator's local
// interactive SSH agent rather than the SSM operator key, accepting
// whatever host key is presented. No command in this module calls it; it
// returns the connected client and the presented host key, and installs
// nothing itself.
func BootstrapViaAgent(ctx context.Context, addr, user string) (*ssh.Client, ssh.PublicKey, error) {
	ag := localAgent()
	if ag == nil {
		return nil, nil, errors.New("sshclient: no local SSH agent available for bootstrap")
	}

	var presented ssh.PublicKey
	cfg := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{ssh.PublicKeysCallback(ag.Signers)},
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			presented = key
			return nil
		},
	}

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, &ErrUnreachable{HostName: addr, Cause: err}
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, nil, classifyDialError(addr, err)
	}
	return ssh.NewClient(sshConn, chans, reqs), presented, nil
}

// FingerprintOf is a convenience wrapper so bootstrap callers do not need to
// import sshkey directly.
func FingerprintOf(key ssh.PublicKey) string {
	return sshkey.HostKeyFingerprint(key)
}
