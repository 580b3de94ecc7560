// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package ssmcore

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/toeirei/ssm/internal/db"
)

func newRestoreCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "restore <backup-file.zst>",
		Short: "Import every host, user, key, and authorization from a compressed JSON snapshot",
		Long: `Restores from a snapshot written by "backup". Entities are inserted with
fresh IDs: this command is intended for disaster recovery or for migrating
between database backends, into an empty database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			snap, err := db.ReadSnapshot(f)
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			if err := db.ImportSnapshot(cmd.Context(), a.store, snap); err != nil {
				return fmt.Errorf("import snapshot: %w", err)
			}
			fmt.Printf("restored %d host(s), %d user(s), %d key(s), %d authorization(s)\n",
				len(snap.Hosts), len(snap.Users), len(snap.PublicKeys), len(snap.Authorizations))
			return nil
		},
	}
	return c
}
