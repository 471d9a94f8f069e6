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

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keyset/pkg/signature"
)

var (
	signInPath  string
	signOutPath string
	sigPath     string
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign data with the keyset's primary private key",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := readHandle(keysetPath, masterKeyURI, insecureCleartext)
		if err != nil {
			return err
		}
		signer, err := signature.NewSigner(h)
		if err != nil {
			return err
		}
		data, err := readInput(signInPath)
		if err != nil {
			return err
		}
		sig, err := signer.Sign(data)
		if err != nil {
			return err
		}
		return writeOutput(signOutPath, sig)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a signature against a public keyset",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := readHandle(keysetPath, masterKeyURI, insecureCleartext)
		if err != nil {
			return err
		}
		verifier, err := signature.NewVerifier(h)
		if err != nil {
			return err
		}
		data, err := readInput(signInPath)
		if err != nil {
			return err
		}
		sig, err := os.ReadFile(sigPath)
		if err != nil {
			return fmt.Errorf("read signature: %w", err)
		}
		if err := verifier.Verify(sig, data); err != nil {
			return err
		}
		fmt.Println("signature OK")
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{signCmd, verifyCmd} {
		cmd.Flags().StringVar(&signInPath, "in", "", "input file (default: stdin)")
	}
	signCmd.Flags().StringVar(&signOutPath, "out", "", "signature output file (default: stdout)")
	verifyCmd.Flags().StringVar(&sigPath, "signature", "", "signature file")
	_ = verifyCmd.MarkFlagRequired("signature")
}
