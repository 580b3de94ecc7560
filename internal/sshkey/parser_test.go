// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import "testing"

func TestParseLineNoOptions(t *testing.T) {
	line, err := ParseLine("ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIJ alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line.Options != "" {
		t.Errorf("expected no options, got %q", line.Options)
	}
	if line.Algorithm != "ssh-ed25519" {
		t.Errorf("unexpected algorithm %q", line.Algorithm)
	}
	if line.BlobBase64 != "AAAAC3NzaC1lZDI1NTE5AAAAIJ" {
		t.Errorf("unexpected blob %q", line.BlobBase64)
	}
	if line.TrailingComment != "alice" {
		t.Errorf("unexpected comment %q", line.TrailingComment)
	}
}

func TestParseLineWithOptions(t *testing.T) {
	line, err := ParseLine(`no-port-forwarding,command="ls,-la" ssh-rsa AAAAB3NzaC1yc2EAAAA bob@example.com`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantOptions := `no-port-forwarding,command="ls,-la"`
	if line.Options != wantOptions {
		t.Errorf("options = %q, want %q", line.Options, wantOptions)
	}
	if line.Algorithm != "ssh-rsa" {
		t.Errorf("unexpected algorithm %q", line.Algorithm)
	}
	if line.TrailingComment != "bob@example.com" {
		t.Errorf("unexpected comment %q", line.TrailingComment)
	}
}

func TestParseLineCommaInsideQuotesStaysOneLine(t *testing.T) {
	line, err := ParseLine(`command="ls,-la" ssh-ed25519 AAAA comment`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line.Options != `command="ls,-la"` {
		t.Errorf("expected quoted comma to stay inside one option, got %q", line.Options)
	}
}

func TestParseLineUnrecognizedAlgorithm(t *testing.T) {
	_, err := ParseLine("not-a-key-type AAAA comment")
	if err == nil {
		t.Fatal("expected error for unrecognized algorithm")
	}
}

func TestParseLineEmpty(t *testing.T) {
	_, err := ParseLine("   ")
	if err == nil {
		t.Fatal("expected error for empty line")
	}
}

func TestParseLineUnterminatedQuote(t *testing.T) {
	_, err := ParseLine(`command="unterminated ssh-ed25519 AAAA`)
	if err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}

func TestSplitOptions(t *testing.T) {
	got := SplitOptions(`no-pty,command="a,b",from="1.2.3.4"`)
	want := []string{"no-pty", `command="a,b"`, `from="1.2.3.4"`}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("part %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitOptionsEmpty(t *testing.T) {
	if got := SplitOptions(""); got != nil {
		t.Errorf("expected nil for empty options, got %v", got)
	}
}
