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

package template_test

import (
	"errors"
	"sort"
	"testing"

	"github.com/jeremyhahn/go-keyset/pkg/keyset"
	"github.com/jeremyhahn/go-keyset/pkg/template"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

func TestGetKnownTemplates(t *testing.T) {
	names := []string{
		"AES128_GCM",
		"AES256_GCM",
		"AES256_GCM_RAW",
		"CHACHA20_POLY1305",
		"XCHACHA20_POLY1305",
		"AES_SIV_HMAC",
		"MLKEM768_HYBRID",
		"ECDSA_P256",
		"ED25519",
		"ED25519_RAW",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			params, err := template.Get(name)
			if err != nil {
				t.Fatalf("Get(%q): %v", name, err)
			}
			if params == nil {
				t.Fatalf("Get(%q) returned nil parameters", name)
			}
			// Every preset must produce a usable keyset.
			if _, err := keyset.Generate(params); err != nil {
				t.Errorf("Generate from %q: %v", name, err)
			}
		})
	}
}

func TestGetUnknownTemplate(t *testing.T) {
	if _, err := template.Get("NO_SUCH_TEMPLATE"); !errors.Is(err, types.ErrUnsupportedKeyType) {
		t.Errorf("err = %v, want ErrUnsupportedKeyType", err)
	}
}

func TestRawVariantPresets(t *testing.T) {
	for _, name := range []string{"AES256_GCM_RAW", "ED25519_RAW"} {
		params, err := template.Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		if params.OutputPrefixType() != types.RawPrefix {
			t.Errorf("%s prefix = %v, want RAW", name, params.OutputPrefixType())
		}
		if params.HasIDRequirement() {
			t.Errorf("%s has an id requirement", name)
		}
	}
}

func TestRegisterDuplicate(t *testing.T) {
	factory := func() (types.Parameters, error) { return template.Get("AES256_GCM") }
	other := func() (types.Parameters, error) { return template.Get("ED25519") }

	if err := template.Register("TEST_TEMPLATE_DUP", factory); err != nil {
		t.Fatalf("Register: %v", err)
	}
	// Re-registering the same factory is a no-op.
	if err := template.Register("TEST_TEMPLATE_DUP", factory); err != nil {
		t.Errorf("identical re-registration: %v", err)
	}
	// A different factory under the same name conflicts.
	if err := template.Register("TEST_TEMPLATE_DUP", other); !errors.Is(err, types.ErrDuplicateRegistration) {
		t.Errorf("conflicting Register: err = %v, want ErrDuplicateRegistration", err)
	}

	// The first registration stays authoritative.
	params, err := template.Get("TEST_TEMPLATE_DUP")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	aes, err := template.Get("AES256_GCM")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !params.Equal(aes) {
		t.Error("registered template does not resolve to its original factory")
	}
}

func TestNamesSortedAndComplete(t *testing.T) {
	names := template.Names()
	if !sort.StringsAreSorted(names) {
		t.Error("Names() is not sorted")
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for _, want := range []string{"AES256_GCM", "ED25519", "MLKEM768_HYBRID"} {
		if !seen[want] {
			t.Errorf("Names() missing %q", want)
		}
	}
}

func TestDefaultAEAD(t *testing.T) {
	params, err := template.DefaultAEAD()
	if err != nil {
		t.Fatalf("DefaultAEAD: %v", err)
	}
	h, err := keyset.Generate(params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if h.Len() != 1 {
		t.Errorf("Len = %d, want 1", h.Len())
	}
}
