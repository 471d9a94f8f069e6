// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keyset.
//
// go-keyset is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads keysetctl configuration from YAML files and
// KEYSET_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

var (
	ErrVaultIncomplete = errors.New("config: vault requires address and token")
)

// Config is the keysetctl configuration.
type Config struct {
	// DefaultTemplate names the preset used when --template is omitted.
	// Empty selects the CPU-tuned default AEAD.
	DefaultTemplate string `mapstructure:"default_template" yaml:"default_template"`

	// RestrictedMode enables compliance gating on the default registry.
	RestrictedMode bool `mapstructure:"restricted_mode" yaml:"restricted_mode"`

	// Debug enables verbose logging.
	Debug bool `mapstructure:"debug" yaml:"debug"`

	KMS KMSConfig `mapstructure:"kms" yaml:"kms"`
}

// KMSConfig configures the remote key-management clients.
type KMSConfig struct {
	Vault VaultConfig `mapstructure:"vault" yaml:"vault"`
	AWS   AWSConfig   `mapstructure:"aws" yaml:"aws"`

	// Fake enables the in-memory fake KMS. Development only.
	Fake bool `mapstructure:"fake" yaml:"fake"`
}

// VaultConfig configures the HashiCorp Vault Transit client.
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Address   string `mapstructure:"address" yaml:"address"`
	Token     string `mapstructure:"token" yaml:"token"`
	URIPrefix string `mapstructure:"uri_prefix" yaml:"uri_prefix"`
}

// AWSConfig configures the AWS KMS client.
type AWSConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	URIPrefix string `mapstructure:"uri_prefix" yaml:"uri_prefix"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		KMS: KMSConfig{
			Vault: VaultConfig{URIPrefix: "hcvault://"},
			AWS:   AWSConfig{URIPrefix: "aws-kms://"},
		},
	}
}

// Load reads configuration from path, or from $HOME/.keysetctl.yaml and
// the working directory when path is empty. A missing file yields the
// defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KEYSET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".keysetctl")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	cfg := DefaultConfig()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %q: %w", v.ConfigFileUsed(), err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", v.ConfigFileUsed(), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.KMS.Vault.Enabled && (c.KMS.Vault.Address == "" || c.KMS.Vault.Token == "") {
		return ErrVaultIncomplete
	}
	return nil
}
