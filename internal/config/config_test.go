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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.KMS.Vault.URIPrefix != "hcvault://" {
		t.Errorf("vault uri_prefix = %q", cfg.KMS.Vault.URIPrefix)
	}
	if cfg.RestrictedMode {
		t.Error("restricted_mode should default to false")
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for explicit missing file")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keysetctl.yaml")
	content := []byte(`
default_template: AES256_GCM
restricted_mode: true
kms:
  fake: true
  vault:
    enabled: true
    address: http://127.0.0.1:8200
    token: root
    uri_prefix: hcvault://
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultTemplate != "AES256_GCM" {
		t.Errorf("default_template = %q", cfg.DefaultTemplate)
	}
	if !cfg.RestrictedMode {
		t.Error("restricted_mode not set")
	}
	if !cfg.KMS.Fake || !cfg.KMS.Vault.Enabled {
		t.Error("kms section not parsed")
	}
}

func TestValidateVaultIncomplete(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KMS.Vault.Enabled = true
	if err := cfg.Validate(); !errors.Is(err, ErrVaultIncomplete) {
		t.Errorf("Validate = %v, want ErrVaultIncomplete", err)
	}
}
