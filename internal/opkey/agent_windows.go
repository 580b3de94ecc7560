//go:build windows
// +build windows

// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package opkey

import (
	"net"
	"os"

	"github.com/Microsoft/go-winio"
	"github.com/davidmz/go-pageant"
	"golang.org/x/crypto/ssh/agent"
)

// dialAgent attempts to connect to a running SSH agent on Windows: Pageant
// first (PuTTY, gpg-agent), then an OpenSSH-for-Windows named pipe.
func dialAgent() agent.Agent {
	if pageant.Available() {
		return pageant.New()
	}

	var conn net.Conn
	var err error
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err = winio.DialPipe(sock, nil)
	} else {
		conn, err = winio.DialPipe(`\\.\pipe\openssh-ssh-agent`, nil)
	}
	if err != nil || conn == nil {
		return nil
	}
	return agent.NewClient(conn)
}
