// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package ssmcore

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toeirei/ssm/internal/model"
	"github.com/toeirei/ssm/internal/sshkey"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "key", Short: "Manage public keys"}
	cmd.AddCommand(newKeyAddCmd(), newKeyListCmd())
	return cmd
}

func newKeyAddCmd() *cobra.Command {
	var username, name string
	c := &cobra.Command{
		Use:   "add <authorized_keys-line>",
		Short: "Add a public key to a user, parsing a single authorized_keys-style line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			line, err := sshkey.ParseLine(args[0])
			if err != nil {
				return fmt.Errorf("parse key line: %w", err)
			}
			u, err := a.store.GetUserByUsername(cmd.Context(), username)
			if err != nil {
				return fmt.Errorf("resolve user %q: %w", username, err)
			}

			keyName := name
			if keyName == "" {
				keyName = line.TrailingComment
			}
			id, err := a.store.AddPublicKey(cmd.Context(), model.PublicKey{
				Algorithm: line.Algorithm,
				Blob:      line.BlobBase64,
				UserID:    u.ID,
				Name:      keyName,
				Comment:   line.TrailingComment,
			})
			if err != nil {
				return err
			}
			fp, ferr := sshkey.Fingerprint(line.Algorithm, line.BlobBase64)
			if ferr != nil {
				fp = "unavailable"
			}
			fmt.Printf("added key %d for %s (%s)\n", id, username, fp)
			return nil
		},
	}
	c.Flags().StringVar(&username, "user", "", "owning username")
	c.Flags().StringVar(&name, "name", "", "operator-assigned label; defaults to the line's trailing comment")
	c.MarkFlagRequired("user")
	return c
}

func newKeyListCmd() *cobra.Command {
	var username string
	c := &cobra.Command{
		Use:   "list",
		Short: "List a user's public keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.store.GetUserByUsername(cmd.Context(), username)
			if err != nil {
				return err
			}
			keys, err := a.store.ListPublicKeysByUser(cmd.Context(), u.ID)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fp, ferr := sshkey.Fingerprint(k.Algorithm, k.Blob)
				if ferr != nil {
					fp = "unparseable"
				}
				fmt.Printf("%d\t%s\t%s\t%s\n", k.ID, k.Algorithm, fp, k.Name)
			}
			return nil
		},
	}
	c.Flags().StringVar(&username, "user", "", "owning username")
	c.MarkFlagRequired("user")
	return c
}
