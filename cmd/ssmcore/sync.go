// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package ssmcore

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toeirei/ssm/internal/logging"
	"github.com/toeirei/ssm/internal/model"
)

func newSyncCmd() *cobra.Command {
	var all bool
	c := &cobra.Command{
		Use:   "sync <host> [login]",
		Short: "Rewrite a host's authorized_keys file for one login (or every known login with --all) to match the database",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			h, err := a.store.GetHostByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if all {
				logins, err := a.store.ListLoginsForHost(cmd.Context(), h.ID)
				if err != nil {
					return err
				}
				results := a.engine.SyncAll(cmd.Context(), h, logins)
				for _, r := range results {
					if r.Err != nil {
						fmt.Printf("%s@%s: error: %v\n", r.Login, h.Name, r.Err)
						continue
					}
					printReport(r.Report)
					logSync(cmd, a, h.ID, r.Login, r.Report)
				}
				return nil
			}

			if len(args) != 2 {
				return fmt.Errorf("a login is required unless --all is given")
			}
			report, err := a.engine.Sync(cmd.Context(), h, args[1])
			if err != nil {
				return err
			}
			printReport(report)
			logSync(cmd, a, h.ID, args[1], report)
			return nil
		},
	}
	c.Flags().BoolVar(&all, "all", false, "sync every login ssmcore has an authorization record for on this host")
	return c
}

// logSync records a sync outcome in the audit log; failures to log are
// reported but don't fail the command, since the sync itself already ran.
func logSync(cmd *cobra.Command, a *app, hostID int, login string, report model.LoginReport) {
	detail := fmt.Sprintf("%s: %d finding(s)", report.Classification, len(report.Findings))
	if err := a.store.LogAction(cmd.Context(), hostID, login, "sync", detail); err != nil {
		logging.Warnf("audit log write failed: %v", err)
	}
}
