// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package reconcile

import (
	"sort"
	"strings"

	"github.com/toeirei/ssm/internal/model"
	"github.com/toeirei/ssm/internal/sshkey"
)

// Generate builds the replacement authorized_keys content for a desired
// set, per §4.4.3: the pragma line, then one line per DesiredKey ordered by
// (username, key fingerprint), using a stable comment instead of whatever
// comment the key carried at ingest. This makes Generate idempotent (P2)
// and order-independent (P3): the output depends only on the desired set,
// never on how it was assembled or what a prior file looked like.
func (e *Engine) Generate(desired []model.DesiredKey) string {
	type line struct {
		options     string
		algorithm   string
		blob        string
		comment     string
		fingerprint string
	}
	lines := make([]line, 0, len(desired))
	for _, dk := range desired {
		fp, _ := sshkey.Fingerprint(dk.Key.Algorithm, dk.Key.Blob)
		lines = append(lines, line{
			options:     strings.TrimSpace(dk.Options),
			algorithm:   dk.Key.Algorithm,
			blob:        dk.Key.Blob,
			comment:     dk.OwnerUsername,
			fingerprint: fp,
		})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].comment != lines[j].comment {
			return lines[i].comment < lines[j].comment
		}
		return lines[i].fingerprint < lines[j].fingerprint
	})

	var b strings.Builder
	b.WriteString(e.pragma)
	b.WriteString("\n")
	for _, l := range lines {
		if l.options != "" {
			b.WriteString(l.options)
			b.WriteString(" ")
		}
		b.WriteString(l.algorithm)
		b.WriteString(" ")
		b.WriteString(l.blob)
		b.WriteString(" ")
		b.WriteString(l.comment)
		b.WriteString("\n")
	}
	return b.String()
}
