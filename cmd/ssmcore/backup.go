// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package ssmcore

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/ssm/internal/db"
)

func newBackupCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "backup [output-file]",
		Short: "Export every host, user, key, and authorization into a compressed (zstd) JSON snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			outputFile := fmt.Sprintf("ssm-backup-%s.json.zst", time.Now().Format("2006-01-02"))
			if len(args) == 1 {
				outputFile = args[0]
				if !strings.HasSuffix(outputFile, ".zst") {
					outputFile += ".zst"
				}
			}

			snap, err := db.ExportSnapshot(cmd.Context(), a.store)
			if err != nil {
				return fmt.Errorf("export snapshot: %w", err)
			}
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("create %s: %w", outputFile, err)
			}
			defer f.Close()
			if err := db.WriteSnapshot(f, snap); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
			fmt.Printf("wrote %s\n", outputFile)
			return nil
		},
	}
	return c
}
