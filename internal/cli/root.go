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

// Package cli implements the keysetctl command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keyset/internal/config"
	"github.com/jeremyhahn/go-keyset/pkg/kms"
	"github.com/jeremyhahn/go-keyset/pkg/logging"
	"github.com/jeremyhahn/go-keyset/pkg/registry"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "keysetctl",
	Short: "keysetctl - keyset management tool",
	Long: `keysetctl manages keysets: versioned collections of cryptographic
keys behind a single primitive. It creates, rotates, and inspects
keysets, derives public keysets, and runs AEAD, deterministic AEAD,
hybrid, and signature operations against them.

Keysets are stored encrypted under a KMS master key (hcvault://,
aws-kms://) or, behind an explicit flag, in cleartext for development.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger = logging.NewLogger(cfg.Debug)
		logger.Debug("invocation", "id", uuid.NewString(), "command", cmd.Name())

		if cfg.RestrictedMode {
			registry.Default().SetRestrictedMode(true)
		}
		return setupKMSClients(cmd.Context(), cfg)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setupKMSClients(ctx context.Context, cfg *config.Config) error {
	if cfg.KMS.Fake {
		kms.RegisterClient(kms.NewFakeClient())
	}
	if cfg.KMS.Vault.Enabled {
		client, err := kms.NewVaultClient(cfg.KMS.Vault.URIPrefix, cfg.KMS.Vault.Address, cfg.KMS.Vault.Token)
		if err != nil {
			return fmt.Errorf("vault client: %w", err)
		}
		client.SetLogger(logger)
		kms.RegisterClient(client)
	}
	if cfg.KMS.AWS.Enabled {
		if ctx == nil {
			ctx = context.Background()
		}
		client, err := kms.NewAWSClient(ctx, cfg.KMS.AWS.URIPrefix)
		if err != nil {
			return fmt.Errorf("aws kms client: %w", err)
		}
		client.SetLogger(logger)
		kms.RegisterClient(client)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.keysetctl.yaml)")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(rotateCmd)
	rootCmd.AddCommand(publicCmd)
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(decryptCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(versionCmd)
}
