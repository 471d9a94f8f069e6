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
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keyset/pkg/aead"
)

var (
	inPath         string
	cryptOutPath   string
	associatedData string
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt data with the keyset's primary key",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := readHandle(keysetPath, masterKeyURI, insecureCleartext)
		if err != nil {
			return err
		}
		a, err := aead.New(h)
		if err != nil {
			return err
		}
		pt, err := readInput(inPath)
		if err != nil {
			return err
		}
		ct, err := a.Encrypt(pt, []byte(associatedData))
		if err != nil {
			return err
		}
		return writeOutput(cryptOutPath, ct)
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypt data with any key in the keyset",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := readHandle(keysetPath, masterKeyURI, insecureCleartext)
		if err != nil {
			return err
		}
		a, err := aead.New(h)
		if err != nil {
			return err
		}
		ct, err := readInput(inPath)
		if err != nil {
			return err
		}
		pt, err := a.Decrypt(ct, []byte(associatedData))
		if err != nil {
			return err
		}
		return writeOutput(cryptOutPath, pt)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{encryptCmd, decryptCmd} {
		cmd.Flags().StringVar(&inPath, "in", "", "input file (default: stdin)")
		cmd.Flags().StringVar(&cryptOutPath, "out", "", "output file (default: stdout)")
		cmd.Flags().StringVar(&associatedData, "ad", "", "associated data bound to the ciphertext")
	}
}
