// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

// package sshkey provides utilities for parsing authorized_keys lines and
// deriving OpenSSH-style key fingerprints. It includes a quote-aware
// options-list parser so that commas inside quoted option values (e.g.
// command="ls,-la") are not mistaken for option separators.
package sshkey // import "github.com/toeirei/ssm/internal/sshkey"

import (
	"fmt"
	"strings"

	"github.com/toeirei/ssm/internal/model"
)

// recognizedAlgorithmPrefixes lists the key-type token prefixes that mark
// the start of the algorithm field of an authorized_keys line, as opposed
// to the start of a leading options list.
var recognizedAlgorithmPrefixes = []string{
	"ssh-",
	"ecdsa-sha2-",
	"sk-ssh-",
	"sk-ecdsa-",
}

func looksLikeAlgorithm(token string) bool {
	for _, prefix := range recognizedAlgorithmPrefixes {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}

// ParseLine parses one non-blank, non-comment authorized_keys line into an
// AuthorizedLine. It respects quoting inside the leading options list so
// that a comma embedded in a quoted option value (command="a,b") is not
// treated as an option separator.
func ParseLine(raw string) (model.AuthorizedLine, error) {
	line := model.AuthorizedLine{Raw: raw}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return line, fmt.Errorf("empty line")
	}

	firstToken := trimmed
	if idx := strings.IndexAny(trimmed, " \t"); idx != -1 {
		firstToken = trimmed[:idx]
	}

	rest := trimmed
	if !looksLikeAlgorithm(firstToken) {
		optionsEnd, err := findOptionsEnd(trimmed)
		if err != nil {
			return line, err
		}
		line.Options = trimmed[:optionsEnd]
		rest = strings.TrimLeft(trimmed[optionsEnd:], " \t")
		if rest == "" {
			return line, fmt.Errorf("no key data found after options")
		}
	}

	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return line, fmt.Errorf("expected algorithm and key data, got %q", rest)
	}
	if !looksLikeAlgorithm(fields[0]) {
		return line, fmt.Errorf("unrecognized algorithm %q", fields[0])
	}

	line.Algorithm = fields[0]
	line.BlobBase64 = fields[1]
	if len(fields) > 2 {
		line.TrailingComment = strings.Join(fields[2:], " ")
	}
	return line, nil
}

// findOptionsEnd scans a quote-aware options list starting at position 0 of
// s and returns the index of the first unquoted whitespace character, which
// marks the end of the options segment. Backslash immediately preceding a
// quote inside a quoted value escapes that quote.
func findOptionsEnd(s string) (int, error) {
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && inQuotes && i+1 < len(s) && s[i+1] == '"':
			i++ // skip the escaped quote
		case c == '"':
			inQuotes = !inQuotes
		case (c == ' ' || c == '\t') && !inQuotes:
			return i, nil
		}
	}
	if inQuotes {
		return 0, fmt.Errorf("unterminated quoted string in options")
	}
	return len(s), nil
}

// SplitOptions splits an options string into its comma-separated elements,
// respecting quoted values so that a comma inside command="a,b" is not
// treated as a separator. Options are otherwise treated as opaque: callers
// compare the raw trimmed string for equality, never this split form.
func SplitOptions(options string) []string {
	if options == "" {
		return nil
	}
	var parts []string
	var current strings.Builder
	inQuotes := false
	for i := 0; i < len(options); i++ {
		c := options[i]
		switch {
		case c == '\\' && inQuotes && i+1 < len(options) && options[i+1] == '"':
			current.WriteByte(c)
			current.WriteByte(options[i+1])
			i++
		case c == '"':
			inQuotes = !inQuotes
			current.WriteByte(c)
		case c == ',' && !inQuotes:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	parts = append(parts, current.String())
	return parts
}
