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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jeremyhahn/go-keyset/pkg/keyset"
	"github.com/jeremyhahn/go-keyset/pkg/kms"
	"github.com/jeremyhahn/go-keyset/pkg/secret/insecure"
	"github.com/jeremyhahn/go-keyset/pkg/template"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

var errNeedMasterOrInsecure = errors.New(
	"keyset is stored encrypted: pass --master-key-uri, or --insecure-cleartext for cleartext files")

// resolveTemplate picks the parameters for a new key: the explicit
// flag, then the configured default, then the CPU-tuned AEAD default.
func resolveTemplate(name string) (types.Parameters, error) {
	if name == "" {
		name = cfg.DefaultTemplate
	}
	if name == "" {
		return template.DefaultAEAD()
	}
	return template.Get(name)
}

func masterAEAD(keyURI string) (types.AEAD, error) {
	client, err := kms.ClientFor(keyURI)
	if err != nil {
		return nil, err
	}
	return client.AEAD(keyURI)
}

// readHandle loads a keyset file, encrypted under masterURI or, when
// insecureCleartext is set, stored in cleartext.
func readHandle(path, masterURI string, insecureCleartext bool) (*keyset.Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyset: %w", err)
	}
	defer f.Close()

	if masterURI != "" {
		master, err := masterAEAD(masterURI)
		if err != nil {
			return nil, err
		}
		return keyset.ReadEncrypted(f, master)
	}
	if !insecureCleartext {
		return nil, errNeedMasterOrInsecure
	}
	return keyset.ReadCleartext(f, insecure.KeyAccessToken{})
}

// writeHandle stores a keyset file, encrypted under masterURI or, when
// insecureCleartext is set, in cleartext with 0600 permissions.
func writeHandle(h *keyset.Handle, path, masterURI string, insecureCleartext bool) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create keyset file: %w", err)
	}
	defer f.Close()

	if masterURI != "" {
		master, err := masterAEAD(masterURI)
		if err != nil {
			return err
		}
		return keyset.WriteEncrypted(h, f, master)
	}
	if !insecureCleartext {
		return errNeedMasterOrInsecure
	}
	return keyset.WriteCleartext(h, f, insecure.KeyAccessToken{})
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return readAllStdin()
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readAllStdin() ([]byte, error) {
	info, err := os.Stdin.Stat()
	if err != nil {
		return nil, err
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		return nil, errors.New("no input: pass --in or pipe data on stdin")
	}
	return io.ReadAll(os.Stdin)
}
