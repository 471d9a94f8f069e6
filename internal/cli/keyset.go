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
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-keyset/pkg/keyset"
)

var (
	templateName      string
	keysetPath        string
	outPath           string
	masterKeyURI      string
	insecureCleartext bool
	outputFormat      string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new keyset with a single fresh primary key",
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := resolveTemplate(templateName)
		if err != nil {
			return err
		}
		h, err := keyset.Generate(params)
		if err != nil {
			return err
		}
		if err := writeHandle(h, outPath, masterKeyURI, insecureCleartext); err != nil {
			return err
		}
		logger.Info("keyset created", "path", outPath, "primary", h.PrimaryKeyID())
		return nil
	},
}

// entryReport is the marshal-friendly form of one keyset entry.
type entryReport struct {
	KeyID   uint32 `json:"key_id" yaml:"key_id"`
	TypeURL string `json:"type_url" yaml:"type_url"`
	Status  string `json:"status" yaml:"status"`
	Prefix  string `json:"output_prefix_type" yaml:"output_prefix_type"`
	Primary bool   `json:"primary" yaml:"primary"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print secret-free keyset metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := readHandle(keysetPath, masterKeyURI, insecureCleartext)
		if err != nil {
			return err
		}

		reports := make([]entryReport, 0, h.Len())
		for _, info := range h.Info() {
			reports = append(reports, entryReport{
				KeyID:   info.KeyID,
				TypeURL: info.TypeURL,
				Status:  info.Status.String(),
				Prefix:  info.PrefixType.String(),
				Primary: info.Primary,
			})
		}

		switch outputFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(reports)
		case "yaml":
			return yaml.NewEncoder(os.Stdout).Encode(reports)
		case "text":
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY ID\tTYPE\tSTATUS\tPREFIX\tPRIMARY")
			for _, rep := range reports {
				primary := ""
				if rep.Primary {
					primary = "*"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					rep.KeyID, rep.TypeURL, rep.Status, rep.Prefix, primary)
			}
			return w.Flush()
		default:
			return fmt.Errorf("unknown output format %q", outputFormat)
		}
	},
}

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Add a fresh primary key, keeping existing keys decryptable",
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := resolveTemplate(templateName)
		if err != nil {
			return err
		}
		h, err := readHandle(keysetPath, masterKeyURI, insecureCleartext)
		if err != nil {
			return err
		}
		rotated, err := keyset.Rotate(h, params)
		if err != nil {
			return err
		}
		dst := outPath
		if dst == "" {
			dst = keysetPath
		}
		if err := writeHandle(rotated, dst, masterKeyURI, insecureCleartext); err != nil {
			return err
		}
		logger.Info("keyset rotated", "path", dst, "primary", rotated.PrimaryKeyID())
		return nil
	},
}

var publicCmd = &cobra.Command{
	Use:   "public",
	Short: "Derive the public keyset from a private one",
	Long: `Derive a keyset holding only public keys from a keyset of asymmetric
private keys. The result is safe to distribute and needs no master key,
so it is always written in cleartext.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := readHandle(keysetPath, masterKeyURI, insecureCleartext)
		if err != nil {
			return err
		}
		pub, err := h.Public()
		if err != nil {
			return err
		}
		return writeHandle(pub, outPath, "", true)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{createCmd, inspectCmd, rotateCmd, publicCmd, encryptCmd, decryptCmd, signCmd, verifyCmd} {
		cmd.Flags().StringVar(&masterKeyURI, "master-key-uri", "",
			"KMS key URI protecting the keyset file")
		cmd.Flags().BoolVar(&insecureCleartext, "insecure-cleartext", false,
			"read/write the keyset in cleartext (development only)")
	}
	for _, cmd := range []*cobra.Command{inspectCmd, rotateCmd, publicCmd, encryptCmd, decryptCmd, signCmd, verifyCmd} {
		cmd.Flags().StringVar(&keysetPath, "keyset", "", "keyset file")
		_ = cmd.MarkFlagRequired("keyset")
	}
	for _, cmd := range []*cobra.Command{createCmd, rotateCmd} {
		cmd.Flags().StringVar(&templateName, "template", "",
			"key template (see 'keysetctl templates')")
	}
	inspectCmd.Flags().StringVarP(&outputFormat, "output", "o", "text",
		"output format (text, json, yaml)")
	createCmd.Flags().StringVar(&outPath, "out", "keyset.bin", "output file")
	rotateCmd.Flags().StringVar(&outPath, "out", "", "output file (default: overwrite --keyset)")
	publicCmd.Flags().StringVar(&outPath, "out", "public.bin", "output file")
}
