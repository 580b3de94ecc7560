// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package ssmcore

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toeirei/ssm/internal/model"
)

func newAuthorizeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "authorize", Short: "Manage login authorizations"}
	cmd.AddCommand(newAuthorizeGrantCmd(), newAuthorizeRevokeCmd(), newAuthorizeListCmd())
	return cmd
}

func newAuthorizeGrantCmd() *cobra.Command {
	var user, host, login, options string
	c := &cobra.Command{
		Use:   "grant",
		Short: "Grant a user's keys access to a login on a host",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.store.GetUserByUsername(cmd.Context(), user)
			if err != nil {
				return fmt.Errorf("resolve user %q: %w", user, err)
			}
			h, err := a.store.GetHostByName(cmd.Context(), host)
			if err != nil {
				return fmt.Errorf("resolve host %q: %w", host, err)
			}
			id, err := a.store.CreateAuthorization(cmd.Context(), model.Authorization{
				UserID: u.ID, HostID: h.ID, Login: login, Options: options,
			})
			if err != nil {
				return err
			}
			fmt.Printf("granted authorization %d: %s -> %s@%s\n", id, user, login, host)
			return nil
		},
	}
	c.Flags().StringVar(&user, "user", "", "grantee username")
	c.Flags().StringVar(&host, "host", "", "target host name")
	c.Flags().StringVar(&login, "login", "", "remote login account")
	c.Flags().StringVar(&options, "options", "", "verbatim authorized_keys options string")
	c.MarkFlagRequired("user")
	c.MarkFlagRequired("host")
	c.MarkFlagRequired("login")
	return c
}

func newAuthorizeRevokeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "revoke <authorization-id>",
		Short: "Revoke a single authorization by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.store.DeleteAuthorization(cmd.Context(), id)
		},
	}
	return c
}

func newAuthorizeListCmd() *cobra.Command {
	var host string
	c := &cobra.Command{
		Use:   "list",
		Short: "List authorizations for a host",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			h, err := a.store.GetHostByName(cmd.Context(), host)
			if err != nil {
				return err
			}
			auths, err := a.store.ListAuthorizationsByHost(cmd.Context(), h.ID)
			if err != nil {
				return err
			}
			for _, auth := range auths {
				username, err := a.store.Username(cmd.Context(), auth.UserID)
				if err != nil {
					username = fmt.Sprintf("user#%d", auth.UserID)
				}
				fmt.Printf("%d\t%s\t%s\t%s\n", auth.ID, username, auth.Login, auth.Options)
			}
			return nil
		},
	}
	c.Flags().StringVar(&host, "host", "", "target host name")
	c.MarkFlagRequired("host")
	return c
}
