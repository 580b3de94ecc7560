// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

// package probe holds the remote shell helper ("the probe") and the Go-side
// codec for its line-oriented wire format. The probe is the only executable
// the reconciliation core ever invokes on a managed host; see probe.sh.
package probe // import "github.com/toeirei/ssm/internal/probe"

import (
	_ "embed"
	"fmt"
	"strings"
)

// Script is the embedded probe source, deployed verbatim to each managed
// host by the wire client's DeployProbe operation.
//
//go:embed probe.sh
var Script []byte

// RemotePath is the well-known path DeployProbe installs the script to.
const RemotePath = ".ssm/ssm-probe"

// Verb identifies one of the probe's fixed, narrow set of operations.
type Verb string

const (
	VerbListLogins    Verb = "list_logins"
	VerbGetKeys       Verb = "get_keys"
	VerbSetKeys       Verb = "set_keys"
	VerbReadonlyState Verb = "readonly_state"
	VerbVersion       Verb = "version"
)

// Exit codes the probe uses to distinguish failure modes from a generic
// non-zero exit. 0 is success.
const (
	ExitGeneric         = 1
	ExitKeysFileAbsent  = 2
	ExitReadonlyRefused = 3
)

// CommandLine renders the remote command line invoking the probe with the
// given verb and positional arguments. Arguments are single-quoted with
// embedded quotes escaped, since the exec channel runs through a remote
// shell.
func CommandLine(verb Verb, args ...string) string {
	parts := make([]string, 0, len(args)+2)
	parts = append(parts, RemotePath, string(verb))
	for _, a := range args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ParseListLogins splits get_keys' companion verb's one-login-per-line
// output into a slice of login names.
func ParseListLogins(output []byte) []string {
	var logins []string
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			logins = append(logins, line)
		}
	}
	return logins
}

// ReadonlyState is the parsed result of a readonly_state probe call.
type ReadonlyState struct {
	Readonly bool
	Scope    string // "system" or "user"
	Reason   string
}

// ParseReadonlyState parses the readonly_state verb's single-line output:
// "none" or "readonly: <scope>: <reason>".
func ParseReadonlyState(output []byte) (ReadonlyState, error) {
	line := strings.TrimSpace(string(output))
	if line == "none" || line == "" {
		return ReadonlyState{}, nil
	}
	rest, ok := strings.CutPrefix(line, "readonly:")
	if !ok {
		return ReadonlyState{}, fmt.Errorf("unrecognized readonly_state output: %q", line)
	}
	rest = strings.TrimSpace(rest)
	scope, reason, ok := strings.Cut(rest, ":")
	if !ok {
		return ReadonlyState{Readonly: true, Scope: "unknown", Reason: rest}, nil
	}
	return ReadonlyState{
		Readonly: true,
		Scope:    strings.TrimSpace(scope),
		Reason:   strings.TrimSpace(reason),
	}, nil
}

// VersionInfo is the parsed result of the version verb.
type VersionInfo struct {
	SchemaVersion string
	ContentHash   string
}

// ParseVersion parses the version verb's "schema=<n> hash=<hex>" output.
func ParseVersion(output []byte) (VersionInfo, error) {
	line := strings.TrimSpace(string(output))
	var info VersionInfo
	for _, field := range strings.Fields(line) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "schema":
			info.SchemaVersion = value
		case "hash":
			info.ContentHash = value
		}
	}
	if info.SchemaVersion == "" {
		return info, fmt.Errorf("unrecognized version output: %q", line)
	}
	return info, nil
}
