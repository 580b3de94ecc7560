// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

package ssmcore

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/toeirei/ssm/internal/model"
)

func newHostCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "host", Short: "Manage managed hosts"}
	cmd.AddCommand(newHostAddCmd(), newHostListCmd(), newHostRemoveCmd(), newHostDisableCmd())
	return cmd
}

func newHostAddCmd() *cobra.Command {
	var address, loginUser, comment, jumpVia string
	var port int
	c := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a new managed host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			h := model.Host{Name: args[0], Address: address, Port: port, LoginUser: loginUser, Comment: comment}
			if jumpVia != "" {
				jh, err := a.store.GetHostByName(cmd.Context(), jumpVia)
				if err != nil {
					return fmt.Errorf("resolve jump host %q: %w", jumpVia, err)
				}
				h.JumpVia = jh.ID
			}
			id, err := a.store.CreateHost(cmd.Context(), h)
			if err != nil {
				return err
			}
			fmt.Printf("created host %q (id %d)\n", h.Name, id)
			return nil
		},
	}
	c.Flags().StringVar(&address, "address", "", "hostname or IP")
	c.Flags().IntVar(&port, "port", 22, "SSH port")
	c.Flags().StringVar(&loginUser, "login-user", "root", "SSH login ssmcore uses to probe this host")
	c.Flags().StringVar(&comment, "comment", "", "free-text note")
	c.Flags().StringVar(&jumpVia, "jump-via", "", "name of a host to tunnel through")
	c.MarkFlagRequired("address")
	return c
}

func newHostListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List managed hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			hosts, err := a.store.ListHosts(cmd.Context())
			if err != nil {
				return err
			}
			for _, h := range hosts {
				status := "enabled"
				if h.Disabled {
					status = "disabled"
				}
				fmt.Printf("%d\t%s\t%s@%s:%d\t%s\t%s\n", h.ID, h.Name, h.LoginUser, h.Address, h.Port, status, h.HostKeyFingerprint)
			}
			return nil
		},
	}
}

func newHostRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a host and everything that cascades from it",
		Args:  cobra.ExactArgs(1),
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
			return a.store.DeleteHost(cmd.Context(), h.ID)
		},
	}
}

func newHostDisableCmd() *cobra.Command {
	var enable bool
	c := &cobra.Command{
		Use:   "disable <name>",
		Short: "Disable (or with --enable, re-enable) a host",
		Args:  cobra.ExactArgs(1),
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
			return a.store.SetHostDisabled(cmd.Context(), h.ID, !enable)
		},
	}
	c.Flags().BoolVar(&enable, "enable", false, "re-enable the host instead of disabling it")
	return c
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("expected a numeric ID, got %q", s)
	}
	return id, nil
}
