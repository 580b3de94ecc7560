// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package reconcile

import "strings"

// splitObserved separates raw get_keys output into the pragma-presence flag
// and the remaining content lines to parse as key entries. Blank lines are
// dropped; "#"-prefixed lines other than the pragma itself are treated as
// ordinary comments and dropped too, matching an OpenSSH authorized_keys
// reader.
func (e *Engine) splitObserved(raw []byte) (pragmaPresent bool, lines []string) {
	text := string(raw)
	rawLines := strings.Split(text, "\n")

	expected := strings.TrimSpace(e.pragma)
	first := true
	for _, l := range rawLines {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" {
			continue
		}
		if first {
			first = false
			if trimmed == expected {
				pragmaPresent = true
				continue
			}
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, trimmed)
	}
	return pragmaPresent, lines
}
