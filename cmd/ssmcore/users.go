// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package ssmcore

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toeirei/ssm/internal/model"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}
	cmd.AddCommand(newUserAddCmd(), newUserListCmd(), newUserDisableCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var comment string
	c := &cobra.Command{
		Use:   "add <username>",
		Short: "Register a new user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.store.CreateUser(cmd.Context(), model.User{Username: args[0], Enabled: true, Comment: comment})
			if err != nil {
				return err
			}
			fmt.Printf("created user %q (id %d)\n", args[0], id)
			return nil
		},
	}
	c.Flags().StringVar(&comment, "comment", "", "free-text note")
	return c
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			users, err := a.store.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range users {
				status := "enabled"
				if !u.Enabled {
					status = "disabled"
				}
				fmt.Printf("%d\t%s\t%s\n", u.ID, u.Username, status)
			}
			return nil
		},
	}
}

func newUserDisableCmd() *cobra.Command {
	var enable bool
	c := &cobra.Command{
		Use:   "disable <username>",
		Short: "Disable (or with --enable, re-enable) a user; their keys drop out of reconciliation immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.store.GetUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.store.SetUserEnabled(cmd.Context(), u.ID, enable)
		},
	}
	c.Flags().BoolVar(&enable, "enable", false, "re-enable the user instead of disabling it")
	return c
}
