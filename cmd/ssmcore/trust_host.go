// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package ssmcore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toeirei/ssm/internal/probe"
	"github.com/toeirei/ssm/internal/sshclient"
)

func newTrustHostCmd() *cobra.Command {
	var assumeYes bool
	c := &cobra.Command{
		Use:   "trust-host <name>",
		Short: "Confirm a host's SSH host key on first contact",
		Long: `Dials the host once, surfaces the presented SHA-256 fingerprint, and
(after confirmation) records it so future sessions are verified against it.`,
		Args: cobra.ExactArgs(1),
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
			if h.HostKeyFingerprint != "" {
				return fmt.Errorf("host %q already has a confirmed fingerprint (%s); clear it first to re-trust", h.Name, h.HostKeyFingerprint)
			}

			_, err = a.wire.Execute(cmd.Context(), h, probe.VerbReadonlyState, nil, nil)
			var unknown *sshclient.ErrHostKeyUnknown
			if !errors.As(err, &unknown) {
				if err != nil {
					return fmt.Errorf("unexpected error probing %q: %w", h.Name, err)
				}
				return fmt.Errorf("host %q did not present an unknown key; nothing to trust", h.Name)
			}

			fmt.Printf("The authenticity of host '%s' can't be established.\n", h.Name)
			fmt.Printf("Key fingerprint is %s.\n", unknown.PresentedFingerprint)
			if !assumeYes {
				fmt.Print("Are you sure you want to continue connecting (yes/no)? ")
				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				if strings.TrimSpace(strings.ToLower(answer)) != "yes" {
					fmt.Println("Cancelled.")
					return nil
				}
			}

			if err := a.store.ConfirmHostKey(cmd.Context(), h.ID, unknown.PresentedFingerprint); err != nil {
				return fmt.Errorf("persist fingerprint: %w", err)
			}
			fmt.Printf("Permanently added '%s' to the list of known hosts.\n", h.Name)
			return nil
		},
	}
	c.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
	return c
}
