// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

// Command ssmcore is the CLI entrypoint around the reconciliation core.
//
// Usage:
//
//	go run . [command] [flags]
//	./ssmcore [command] [flags]
package main

import (
	log "github.com/charmbracelet/log"
	"github.com/toeirei/ssm/cmd/ssmcore"
)

func main() {
	if err := ssmcore.Execute(); err != nil {
		log.Fatal(err)
	}
}
