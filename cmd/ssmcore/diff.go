// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package ssmcore

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toeirei/ssm/internal/model"
)

func newDiffCmd() *cobra.Command {
	var forceRefresh bool
	c := &cobra.Command{
		Use:   "diff <host> <login>",
		Short: "Compare a host's authorized_keys file for one login against the database",
		Args:  cobra.ExactArgs(2),
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
			report, err := a.engine.Diff(cmd.Context(), h, args[1], forceRefresh)
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		},
	}
	c.Flags().BoolVar(&forceRefresh, "force-refresh", false, "bypass the cache and re-probe the host")
	return c
}

func printReport(report model.LoginReport) {
	fmt.Printf("%s@%s: %s (%s)\n", report.Login, report.HostName, report.State, report.Classification)
	if report.Err != nil {
		fmt.Printf("  error: %v\n", report.Err)
		return
	}
	if report.ReadonlyReason != "" {
		fmt.Printf("  readonly: %s\n", report.ReadonlyReason)
	}
	for _, f := range report.Findings {
		switch f.Kind {
		case model.IncorrectOptions:
			fmt.Printf("  %s: %s fp=%s observed=%q expected=%q\n", f.Kind, f.User, f.KeyFingerprint, f.Observed, f.Expected)
		case model.FaultyKey:
			fmt.Printf("  %s: %q (%s)\n", f.Kind, f.Line, f.Reason)
		case model.DuplicateKey, model.UnknownKey:
			fmt.Printf("  %s: %s %s\n", f.Kind, f.Algorithm, f.Blob)
		default:
			fmt.Printf("  %s: %s fp=%s\n", f.Kind, f.User, f.KeyFingerprint)
		}
	}
}
