// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

// package config loads ssm's configuration from a YAML file, environment
// variables, and CLI flags, in that increasing order of precedence, using
// viper the way the rest of this codebase's configuration layer always has.
package config // import "github.com/toeirei/ssm/internal/config"

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v3"
)

// GOOS_RUNTIME is the runtime OS, exposed for testing.
const GOOS_RUNTIME = runtime.GOOS

// Config holds ssm's full configuration surface.
type Config struct {
	Database struct {
		Type string `mapstructure:"type"`
		Dsn  string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	SSH struct {
		PrivateKeyPath       string        `mapstructure:"private_key_path"`
		PrivateKeyPassphrase string        `mapstructure:"private_key_passphrase"`
		ConnectTimeout       time.Duration `mapstructure:"connect_timeout"`
		ExecTimeout          time.Duration `mapstructure:"exec_timeout"`
	} `mapstructure:"ssh"`

	Scheduler struct {
		CheckSchedule  string `mapstructure:"check_schedule"`
		UpdateSchedule string `mapstructure:"update_schedule"`
	} `mapstructure:"scheduler"`

	Probe struct {
		Pragma string `mapstructure:"pragma"`
	} `mapstructure:"probe"`

	// SessionKey signs the web UI's session cookies; supplied only via the
	// SSM_SESSION_KEY environment variable, never persisted to disk.
	SessionKey string `mapstructure:"session_key" yaml:"-"`

	Language string `mapstructure:"language"`
}

// Defaults returns the baseline values applied before any file, env, or flag
// override is considered.
func Defaults() map[string]any {
	return map[string]any{
		"ssh.connect_timeout":      "10s",
		"ssh.exec_timeout":         "30s",
		"scheduler.check_schedule": "*/15 * * * *",
		"scheduler.update_schedule": "0 3 * * *",
		"probe.pragma":             "# Managed by ssm - do not edit by hand",
		"database.type":            "sqlite",
		"database.dsn":             "ssm.db",
		// Empty defaults make these keys known to viper, so AutomaticEnv
		// overrides (SSM_SSH_PRIVATE_KEY_PATH, SSM_SESSION_KEY, ...) reach
		// Unmarshal even when no config file sets them.
		"ssh.private_key_path":       "",
		"ssh.private_key_passphrase": "",
		"session_key":                "",
	}
}

// GetConfigPath returns the full path for the configuration file.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "ssm")
		default:
			configDir = "/etc/ssm"
		}
	} else {
		if env := os.Getenv("XDG_CONFIG_HOME"); env != "" {
			configDir = env
		} else {
			configDir, err = os.UserConfigDir()
			if err != nil {
				return "", fmt.Errorf("could not get user config directory: %w", err)
			}
		}
		configDir = filepath.Join(configDir, "ssm")
	}

	return filepath.Join(configDir, "ssm.yaml"), nil
}

// LoadConfig loads configuration into a T, honoring (in increasing
// precedence) built-in defaults, a YAML config file, SSM_-prefixed
// environment variables, and bound CLI flags.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, additionalConfigFilePath *string) (T, error) {
	var c T

	for key, value := range defaults {
		viper.SetDefault(key, value)
	}

	viper.SetConfigType("yaml")

	var readErr error
	var candidateFiles []string
	if additionalConfigFilePath != nil {
		candidateFiles = append(candidateFiles, *additionalConfigFilePath)
	} else {
		if userConfigPath, err := GetConfigPath(false); err == nil {
			candidateFiles = append(candidateFiles, userConfigPath)
		}
		if systemConfigPath, err := GetConfigPath(true); err == nil {
			candidateFiles = append(candidateFiles, systemConfigPath)
		}
		candidateFiles = append(candidateFiles, "./ssm.yaml")
	}

	foundConfig := false
	for _, p := range candidateFiles {
		if p == "" {
			continue
		}
		fi, err := os.Stat(p)
		if err != nil || fi.Size() == 0 {
			continue
		}
		viper.SetConfigFile(p)
		if rerr := viper.ReadInConfig(); rerr != nil {
			log.Printf("failed reading config %s: %v", p, rerr)
			return c, rerr
		}
		foundConfig = true
		readErr = nil
		break
	}
	if !foundConfig {
		readErr = viper.ConfigFileNotFoundError{}
	}

	mergeLegacyConfig(viper.GetViper())

	if used := viper.ConfigFileUsed(); used != "" {
		log.Printf("using config %s", used)
	} else {
		log.Printf("using config none (defaults)")
	}

	viper.AutomaticEnv()
	viper.AllowEmptyEnv(true)
	viper.SetEnvPrefix("ssm")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cmd != nil {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := viper.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, readErr
}

// mergeLegacyConfig merges a `.ssm.yaml` file from the current directory, if
// present, for operators migrating a per-project override into the new path.
func mergeLegacyConfig(v *viper.Viper) {
	legacyConfigFile := ".ssm.yaml"
	if _, err := os.Stat(legacyConfigFile); err == nil {
		v.SetConfigFile(legacyConfigFile)
		if err := v.MergeInConfig(); err != nil {
			log.Printf("error merging legacy config %s: %v", legacyConfigFile, err)
		} else {
			log.Printf("using config %s", legacyConfigFile)
		}
		v.SetConfigFile("")
	}
}

// WriteConfigFile persists c as YAML to the config path for system or user
// scope, creating parent directories as needed.
func WriteConfigFile[T any](c *T, system bool) error {
	path, err := GetConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	return os.WriteFile(path, data, 0600)
}

// Save persists the current Viper configuration to the user's config file.
func Save() error {
	var currentConfig Config
	if err := viper.Unmarshal(&currentConfig); err != nil {
		return fmt.Errorf("failed to unmarshal current config for saving: %w", err)
	}
	return WriteConfigFile(&currentConfig, false)
}
