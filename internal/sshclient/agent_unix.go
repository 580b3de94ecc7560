//go:build !windows
// +build !windows

// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package sshclient

import (
	"net"
	"os"

	"golang.org/x/crypto/ssh/agent"
)

// localAgent connects to the running SSH agent via SSH_AUTH_SOCK. It is
// used only for the bootstrap path, where an operator confirms a new host
// using their own interactive agent before the SSM operator key is
// authorized on that host.
func localAgent() agent.Agent {
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
