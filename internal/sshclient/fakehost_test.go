// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package sshclient

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

var errUnauthorizedKey = errors.New("public key not authorized")

// fakeHost is a minimal in-process SSH server standing in for a managed
// host during tests: it accepts the operator's public key, answers exec
// requests by matching the probe verb in the command line, and serves an
// sftp subsystem rooted in a per-test temporary directory so DeployProbe
// writes nowhere else on disk.
type fakeHost struct {
	listener  net.Listener
	hostKey   ssh.Signer
	verbs     map[string]verbResponse
	sftpRoot  string
	mu        sync.Mutex
	execCount int
}

type verbResponse struct {
	stdout   string
	stderr   string
	exitCode int
	// delay, when non-zero, is applied before responding — used to exercise
	// cancellation while a verb is still in flight.
	delay time.Duration
}

func newFakeHost(t *testing.T, authorized ssh.PublicKey) *fakeHost {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	hostSigner, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	fh := &fakeHost{
		listener: ln,
		hostKey:  hostSigner,
		verbs:    make(map[string]verbResponse),
		sftpRoot: t.TempDir(),
	}

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if authorized != nil && string(key.Marshal()) == string(authorized.Marshal()) {
				return &ssh.Permissions{}, nil
			}
			if authorized == nil {
				return &ssh.Permissions{}, nil
			}
			return nil, errUnauthorizedKey
		},
	}
	cfg.AddHostKey(hostSigner)

	go fh.acceptLoop(t, cfg)

	t.Cleanup(func() { ln.Close() })
	return fh
}

func (fh *fakeHost) addr() string { return fh.listener.Addr().String() }

func (fh *fakeHost) setVerb(verb string, resp verbResponse) {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	fh.verbs[verb] = resp
}

func (fh *fakeHost) execCounter() int {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	return fh.execCount
}

func (fh *fakeHost) acceptLoop(t *testing.T, cfg *ssh.ServerConfig) {
	for {
		conn, err := fh.listener.Accept()
		if err != nil {
			return
		}
		go fh.handleConn(t, conn, cfg)
	}
}

func (fh *fakeHost) handleConn(t *testing.T, conn net.Conn, cfg *ssh.ServerConfig) {
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go fh.handleSession(ch, requests)
	}
}

func (fh *fakeHost) handleSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()
	for req := range requests {
		switch req.Type {
		case "exec":
			cmd := parseExecPayload(req.Payload)
			req.Reply(true, nil)
			fh.runExec(ch, cmd)
			return
		case "subsystem":
			name := parseExecPayload(req.Payload)
			req.Reply(name == "sftp", nil)
			if name == "sftp" {
				fh.runSFTP(ch)
			}
			return
		default:
			req.Reply(false, nil)
		}
	}
}

func parseExecPayload(payload []byte) string {
	if len(payload) < 4 {
		return ""
	}
	n := int(payload[0])<<24 | int(payload[1])<<16 | int(payload[2])<<8 | int(payload[3])
	if len(payload) < 4+n {
		return ""
	}
	return string(payload[4 : 4+n])
}

func (fh *fakeHost) runExec(ch ssh.Channel, cmd string) {
	fh.mu.Lock()
	fh.execCount++
	var resp verbResponse
	var matched bool
	for verb, r := range fh.verbs {
		if strings.Contains(cmd, verb) {
			resp, matched = r, true
			break
		}
	}
	fh.mu.Unlock()

	if !matched {
		resp = verbResponse{stderr: "unknown verb\n", exitCode: 1}
	}

	if resp.delay > 0 {
		time.Sleep(resp.delay)
	}

	if resp.stdout != "" {
		ch.Write([]byte(resp.stdout))
	}
	if resp.stderr != "" {
		ch.Stderr().Write([]byte(resp.stderr))
	}
	sendExitStatus(ch, resp.exitCode)
}

func sendExitStatus(ch ssh.Channel, code int) {
	payload := make([]byte, 4)
	payload[0] = byte(code >> 24)
	payload[1] = byte(code >> 16)
	payload[2] = byte(code >> 8)
	payload[3] = byte(code)
	ch.SendRequest("exit-status", false, payload)
}

func (fh *fakeHost) runSFTP(ch ssh.Channel) {
	server, err := sftp.NewServer(ch, sftp.WithServerWorkingDirectory(fh.sftpRoot))
	if err != nil {
		return
	}
	defer server.Close()
	server.Serve()
}
