// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

// package ssmcore wires the persisted store, the wire client, and the
// reconciliation engine behind a cobra CLI: the operator-facing surface
// around the reconciliation core. The core itself has no opinion about how
// it's driven; this package is one way to drive it.
package ssmcore // import "github.com/toeirei/ssm/cmd/ssmcore"

import (
	"fmt"
	"os"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/toeirei/ssm/internal/config"
	"github.com/toeirei/ssm/internal/logging"
)

var (
	cfgFile   string
	verbose   bool
	appConfig config.Config
)

// Execute runs the ssmcore CLI and returns any error from command dispatch.
func Execute() error {
	root := NewRootCmd()
	return root.Execute()
}

// NewRootCmd builds the root command fresh, so tests can construct isolated
// instances without colliding on package-level flag state.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ssmcore",
		Short: "ssmcore reconciles SSH authorized_keys files against a database of record",
		Long: `ssmcore centralizes control of authorized_keys files across a fleet.
Hosts, users, public keys, and authorizations live in a relational store;
ssmcore compares that desired state against what a lightweight remote probe
reports, and can rewrite the remote file to match.`,
		SilenceUsage:      true,
		PersistentPreRunE: setupConfig,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newHostCmd(),
		newUserCmd(),
		newKeyCmd(),
		newAuthorizeCmd(),
		newTrustHostCmd(),
		newDiffCmd(),
		newSyncCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newVersionCmd(),
	)
	return cmd
}

func setupConfig(cmd *cobra.Command, args []string) error {
	if verbose {
		logging.L.SetLevel(log.DebugLevel)
	}

	var optionalPath *string
	if cmd.Flags().Changed("config") {
		if _, err := os.Stat(cfgFile); err != nil {
			return fmt.Errorf("config file %q not found: %w", cfgFile, err)
		}
		optionalPath = &cfgFile
	}

	cfg, err := config.LoadConfig[config.Config](cmd, config.Defaults(), optionalPath)
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if werr := config.WriteConfigFile(&cfg, false); werr != nil {
				log.Warnf("could not write default config: %v", werr)
			}
		} else {
			return fmt.Errorf("load config: %w", err)
		}
	}
	appConfig = cfg
	return nil
}

var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ssmcore version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}
