// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

// package sshclient is the Wire Client (C1): authenticated, jump-host-aware
// SSH sessions whose only remote primitive is invoking the installed probe.
// It never interprets probe output itself; that is the Diff & Reconcile
// Engine's job. Host-key policy is strict TOFU: an unconfirmed or mismatched
// fingerprint fails the call rather than silently trusting a new key.
package sshclient // import "github.com/toeirei/ssm/internal/sshclient"

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/toeirei/ssm/internal/model"
	"golang.org/x/crypto/ssh"
)

// HostResolver looks up a Host by ID, used to walk a jump_via chain. The
// reconciliation core satisfies this with its persisted Host store.
type HostResolver interface {
	HostByID(ctx context.Context, id int) (model.Host, error)
}

// Client is the operator-wide wire client. A single instance is shared by
// every task; the private key is loaded once at startup and never mutates.
type Client struct {
	signer         ssh.Signer
	resolver       HostResolver
	connectTimeout time.Duration
	execTimeout    time.Duration
}

// New builds a Client around a single operator-owned signer. connectTimeout
// bounds the TCP dial to the outermost hop; the SSH handshakes, and the
// dials tunneled through jump hosts, have no timeout of their own.
// execTimeout bounds the probe invocation on the final hop.
func New(signer ssh.Signer, resolver HostResolver, connectTimeout, execTimeout time.Duration) *Client {
	return &Client{
		signer:         signer,
		resolver:       resolver,
		connectTimeout: connectTimeout,
		execTimeout:    execTimeout,
	}
}

func addrOf(h model.Host) string {
	return net.JoinHostPort(h.Address, fmt.Sprintf("%d", h.Port))
}

// resolveChain walks target.JumpVia back to the root, returning the ordered
// hop list H1..Hn (outermost first), not including target itself. A cycle
// is rejected before any dial is attempted, per the jump_via DAG invariant.
func (c *Client) resolveChain(ctx context.Context, target model.Host) ([]model.Host, error) {
	var reversed []model.Host
	visited := map[int]bool{target.ID: true}
	cur := target
	for cur.HasJump() {
		next, err := c.resolver.HostByID(ctx, cur.JumpVia)
		if err != nil {
			return nil, fmt.Errorf("resolve jump host %d for %q: %w", cur.JumpVia, target.Name, err)
		}
		if visited[next.ID] {
			return nil, &ErrJumpCycle{HostName: target.Name}
		}
		visited[next.ID] = true
		reversed = append(reversed, next)
		cur = next
	}
	hops := make([]model.Host, len(reversed))
	for i, h := range reversed {
		hops[len(reversed)-1-i] = h
	}
	return hops, nil
}

// dialChain resolves and connects the full chain to target, returning the
// ssh.Client tunneled through any configured jump hosts. Every hop is
// checked for Disabled before any network I/O; every hop's host key is
// verified independently.
func (c *Client) dialChain(ctx context.Context, target model.Host) (*ssh.Client, error) {
	if target.Disabled {
		return nil, &ErrDisabled{HostName: target.Name}
	}

	hops, err := c.resolveChain(ctx, target)
	if err != nil {
		return nil, err
	}
	for _, h := range hops {
		if h.Disabled {
			return nil, &ErrDisabled{HostName: target.Name}
		}
	}

	chain := append(hops, target)

	var client *ssh.Client
	for _, hop := range chain {
		cfg := &ssh.ClientConfig{
			User:            hop.LoginUser,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
			HostKeyCallback: hostKeyCallbackFor(hop),
			Timeout:         c.connectTimeout,
		}

		var next *ssh.Client
		addr := addrOf(hop)
		if client == nil {
			dialer := net.Dialer{Timeout: c.connectTimeout}
			conn, dialErr := dialer.DialContext(ctx, "tcp", addr)
			if dialErr != nil {
				return nil, classifyDialError(target.Name, dialErr)
			}
			sshConn, chans, reqs, hsErr := ssh.NewClientConn(conn, addr, cfg)
			if hsErr != nil {
				conn.Close()
				return nil, classifyDialError(target.Name, hsErr)
			}
			next = ssh.NewClient(sshConn, chans, reqs)
		} else {
			conn, dialErr := client.DialContext(ctx, "tcp", addr)
			if dialErr != nil {
				client.Close()
				return nil, classifyDialError(target.Name, dialErr)
			}
			sshConn, chans, reqs, hsErr := ssh.NewClientConn(conn, addr, cfg)
			if hsErr != nil {
				conn.Close()
				client.Close()
				return nil, classifyDialError(target.Name, hsErr)
			}
			next = ssh.NewClient(sshConn, chans, reqs)
		}
		client = next
	}
	return client, nil
}

// classifyDialError maps a dial or handshake failure onto the error
// taxonomy. ErrHostKeyUnknown and ErrHostKeyMismatch come straight through
// from the host key callback and are returned unchanged.
func classifyDialError(hostName string, err error) error {
	var unknown *ErrHostKeyUnknown
	if errors.As(err, &unknown) {
		return err
	}
	var mismatch *ErrHostKeyMismatch
	if errors.As(err, &mismatch) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ErrTimeout{HostName: hostName, Phase: PhaseConnect}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ErrTimeout{HostName: hostName, Phase: PhaseConnect}
	}
	if looksLikeAuthFailure(err) {
		return &ErrAuthFailed{HostName: hostName, Cause: err}
	}
	return &ErrUnreachable{HostName: hostName, Cause: err}
}

func looksLikeAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "no supported methods remain")
}
