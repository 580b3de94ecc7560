// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package sshclient

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/toeirei/ssm/internal/model"
	"github.com/toeirei/ssm/internal/probe"
	"golang.org/x/crypto/ssh"
)

// Execute opens a session to H through any configured jump chain and runs
// the installed probe with the given verb and arguments, returning captured
// standard output. stdin, when non-nil, is piped to the probe (used by
// set_keys to carry the replacement file content).
func (c *Client) Execute(ctx context.Context, h model.Host, verb probe.Verb, args []string, stdin []byte) ([]byte, error) {
	client, err := c.dialChain(ctx, h)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, &ErrUnreachable{HostName: h.Name, Cause: err}
	}
	defer session.Close()

	if stdin != nil {
		session.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(probe.CommandLine(verb, args...))
	}()

	var timeout <-chan time.Time
	if c.execTimeout > 0 {
		timer := time.NewTimer(c.execTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-timeout:
		session.Close()
		return nil, &ErrTimeout{HostName: h.Name, Phase: PhaseExec}
	case <-ctx.Done():
		if verb == probe.VerbSetKeys {
			// set_keys has already been dispatched; closing the session now
			// could abort it mid-write and leave authorized_keys truncated.
			// Wait for it to finish instead of cancelling immediately,
			// bounded by the same timeout an uncancelled exec would get.
			select {
			case err := <-done:
				return finishExecute(h, verb, &stdout, &stderr, err)
			case <-time.After(c.execTimeout):
				session.Close()
				return nil, &ErrTimeout{HostName: h.Name, Phase: PhaseExec}
			}
		}
		session.Close()
		return nil, &ErrCancelled{HostName: h.Name}
	case err := <-done:
		return finishExecute(h, verb, &stdout, &stderr, err)
	}
}

// finishExecute interprets the result of session.Run, classifying a
// readonly-refused set_keys exit separately from any other non-zero exit.
func finishExecute(h model.Host, verb probe.Verb, stdout, stderr *bytes.Buffer, err error) ([]byte, error) {
	if err == nil {
		return stdout.Bytes(), nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitStatus()
		if verb == probe.VerbSetKeys && code == probe.ExitReadonlyRefused {
			state, parseErr := probe.ParseReadonlyState(stderr.Bytes())
			if parseErr == nil && state.Readonly {
				return stdout.Bytes(), &ErrReadonlyRefused{HostName: h.Name, Scope: state.Scope, Reason: state.Reason}
			}
		}
		return stdout.Bytes(), &ErrExecError{HostName: h.Name, ExitCode: code, Stderr: stderr.String()}
	}
	return nil, &ErrUnreachable{HostName: h.Name, Cause: err}
}
