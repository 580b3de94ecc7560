//go:build !windows
// +build !windows

// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package opkey

import (
	"net"
	"os"

	"golang.org/x/crypto/ssh/agent"
)

// dialAgent attempts to connect to a running SSH agent on Unix-like systems
// via the socket path in SSH_AUTH_SOCK.
func dialAgent() agent.Agent {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil
	}
	return agent.NewClient(conn)
}
