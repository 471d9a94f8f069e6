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

package keyset_test

import (
	"errors"
	"testing"

	"github.com/jeremyhahn/go-keyset/pkg/aead"
	"github.com/jeremyhahn/go-keyset/pkg/keyset"
	"github.com/jeremyhahn/go-keyset/pkg/registry"
	"github.com/jeremyhahn/go-keyset/pkg/signature"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

func aesGCMParams(t *testing.T, variant types.OutputPrefixType) *aead.AESGCMParameters {
	t.Helper()
	p, err := aead.NewAESGCMParameters(32, variant)
	if err != nil {
		t.Fatalf("NewAESGCMParameters: %v", err)
	}
	return p
}

func newKey(t *testing.T, p types.Parameters, id uint32) types.Key {
	t.Helper()
	key, err := registry.Default().NewKey(p, id, p.HasIDRequirement())
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	return key
}

func TestGenerate(t *testing.T) {
	h, err := keyset.Generate(aesGCMParams(t, types.TinkPrefix))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if h.Len() != 1 {
		t.Fatalf("Len = %d, want 1", h.Len())
	}
	primary, err := h.Primary()
	if err != nil {
		t.Fatalf("Primary: %v", err)
	}
	if primary.Status() != types.StatusEnabled {
		t.Errorf("primary status = %v, want ENABLED", primary.Status())
	}
	if primary.KeyID() == 0 {
		t.Error("primary key id is 0")
	}
	if primary.KeyID() != h.PrimaryKeyID() {
		t.Errorf("Primary().KeyID() = %d, PrimaryKeyID() = %d", primary.KeyID(), h.PrimaryKeyID())
	}
	if primary.TypeURL() != aead.AESGCMTypeURL {
		t.Errorf("type url = %q, want %q", primary.TypeURL(), aead.AESGCMTypeURL)
	}
}

func TestGenerateRawVariant(t *testing.T) {
	h, err := keyset.Generate(aesGCMParams(t, types.RawPrefix))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	primary, err := h.Primary()
	if err != nil {
		t.Fatalf("Primary: %v", err)
	}
	if primary.PrefixType() != types.RawPrefix {
		t.Errorf("prefix type = %v, want RAW", primary.PrefixType())
	}
	if primary.KeyID() == 0 {
		t.Error("RAW entry was not assigned a nonzero id")
	}
}

func TestBuilderRejectsInvalidStagings(t *testing.T) {
	params := aesGCMParams(t, types.RawPrefix)

	tests := []struct {
		name  string
		stage func(t *testing.T, b *keyset.Builder)
	}{
		{
			name:  "no entries",
			stage: func(t *testing.T, b *keyset.Builder) {},
		},
		{
			name: "duplicate fixed ids",
			stage: func(t *testing.T, b *keyset.Builder) {
				b.Add(newKey(t, params, 0)).SetPrimary().SetFixedID(11)
				b.Add(newKey(t, params, 0)).SetFixedID(11)
			},
		},
		{
			name: "key id zero",
			stage: func(t *testing.T, b *keyset.Builder) {
				b.Add(newKey(t, params, 0)).SetPrimary().SetFixedID(0)
			},
		},
		{
			name: "two primaries",
			stage: func(t *testing.T, b *keyset.Builder) {
				b.Add(newKey(t, params, 0)).SetPrimary()
				b.Add(newKey(t, params, 0)).SetPrimary()
			},
		},
		{
			name: "disabled primary",
			stage: func(t *testing.T, b *keyset.Builder) {
				b.Add(newKey(t, params, 0)).SetPrimary().SetStatus(types.StatusDisabled)
			},
		},
		{
			name: "no primary with secret material",
			stage: func(t *testing.T, b *keyset.Builder) {
				b.Add(newKey(t, params, 0))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := keyset.NewBuilder()
			tc.stage(t, b)
			if _, err := b.Build(); !errors.Is(err, types.ErrInvalidKeyset) {
				t.Errorf("Build: err = %v, want ErrInvalidKeyset", err)
			}
		})
	}
}

func TestBuilderAssignsDistinctRandomIDs(t *testing.T) {
	params := aesGCMParams(t, types.RawPrefix)

	b := keyset.NewBuilder()
	b.Add(newKey(t, params, 0)).SetPrimary()
	b.Add(newKey(t, params, 0))
	b.Add(newKey(t, params, 0))
	h, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	seen := make(map[uint32]bool)
	for i := 0; i < h.Len(); i++ {
		e, err := h.Entry(i)
		if err != nil {
			t.Fatalf("Entry(%d): %v", i, err)
		}
		if e.KeyID() == 0 {
			t.Errorf("entry %d has key id 0", i)
		}
		if seen[e.KeyID()] {
			t.Errorf("duplicate key id %d", e.KeyID())
		}
		seen[e.KeyID()] = true
	}
}

func TestBuilderHonorsIDRequirement(t *testing.T) {
	params := aesGCMParams(t, types.TinkPrefix)
	key := newKey(t, params, 1234)

	b := keyset.NewBuilder()
	b.Add(key).SetPrimary()
	h, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if h.PrimaryKeyID() != 1234 {
		t.Errorf("primary id = %d, want 1234", h.PrimaryKeyID())
	}

	// Pinning an entry to an id that contradicts the key's requirement
	// must fail at Build.
	b = keyset.NewBuilder()
	b.Add(newKey(t, params, 1234)).SetPrimary().SetFixedID(5678)
	if _, err := b.Build(); !errors.Is(err, types.ErrInvalidKeyset) {
		t.Errorf("contradicting fixed id: err = %v, want ErrInvalidKeyset", err)
	}
}

func TestDestroyedEntryKeepsMetadataOnly(t *testing.T) {
	params := aesGCMParams(t, types.TinkPrefix)

	b := keyset.NewBuilder()
	b.Add(newKey(t, params, 100)).Destroy()
	b.Add(newKey(t, params, 200)).SetPrimary()
	h, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	destroyed, err := h.Entry(0)
	if err != nil {
		t.Fatalf("Entry(0): %v", err)
	}
	if destroyed.Status() != types.StatusDestroyed {
		t.Errorf("status = %v, want DESTROYED", destroyed.Status())
	}
	if destroyed.KeyID() != 100 {
		t.Errorf("destroyed entry id = %d, want 100", destroyed.KeyID())
	}
	if destroyed.TypeURL() != aead.AESGCMTypeURL {
		t.Errorf("destroyed entry type url = %q, want %q", destroyed.TypeURL(), aead.AESGCMTypeURL)
	}

	// Rebuilding from the handle carries the destroyed entry and keeps
	// its id reserved.
	rb := keyset.NewBuilderFromHandle(h)
	rb.Add(newKey(t, params, 100))
	if _, err := rb.Build(); !errors.Is(err, types.ErrInvalidKeyset) {
		t.Errorf("reusing destroyed id: err = %v, want ErrInvalidKeyset", err)
	}
}

func TestRotate(t *testing.T) {
	params := aesGCMParams(t, types.TinkPrefix)
	h, err := keyset.Generate(params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	oldPrimary := h.PrimaryKeyID()

	rotated, err := keyset.Rotate(h, params)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if rotated.Len() != 2 {
		t.Fatalf("rotated Len = %d, want 2", rotated.Len())
	}
	if rotated.PrimaryKeyID() == oldPrimary {
		t.Error("rotation did not change the primary key id")
	}

	var foundOld bool
	for _, info := range rotated.Info() {
		if info.KeyID == oldPrimary {
			foundOld = true
			if info.Primary {
				t.Error("old primary still marked primary")
			}
			if info.Status != types.StatusEnabled {
				t.Errorf("old primary status = %v, want ENABLED", info.Status)
			}
		}
	}
	if !foundOld {
		t.Error("old primary entry missing after rotation")
	}

	// The source handle is unaffected.
	if h.Len() != 1 || h.PrimaryKeyID() != oldPrimary {
		t.Error("rotation mutated the source handle")
	}
}

func TestPublicProjection(t *testing.T) {
	params, err := signature.NewEd25519Parameters(types.TinkPrefix)
	if err != nil {
		t.Fatalf("NewEd25519Parameters: %v", err)
	}
	h, err := keyset.Generate(params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	pub, err := h.Public()
	if err != nil {
		t.Fatalf("Public: %v", err)
	}
	if pub.Len() != h.Len() {
		t.Fatalf("public Len = %d, want %d", pub.Len(), h.Len())
	}
	if pub.PrimaryKeyID() != h.PrimaryKeyID() {
		t.Errorf("public primary = %d, want %d", pub.PrimaryKeyID(), h.PrimaryKeyID())
	}
	e, err := pub.Entry(0)
	if err != nil {
		t.Fatalf("Entry(0): %v", err)
	}
	if e.MaterialType() != types.MaterialAsymmetricPublic {
		t.Errorf("material type = %v, want ASYMMETRIC_PUBLIC", e.MaterialType())
	}
	if e.TypeURL() != signature.Ed25519PublicTypeURL {
		t.Errorf("type url = %q, want %q", e.TypeURL(), signature.Ed25519PublicTypeURL)
	}
}

func TestPublicProjectionRejectsSymmetricKeys(t *testing.T) {
	h, err := keyset.Generate(aesGCMParams(t, types.TinkPrefix))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := h.Public(); !errors.Is(err, types.ErrInvalidKeyset) {
		t.Errorf("Public on symmetric keyset: err = %v, want ErrInvalidKeyset", err)
	}
}

func TestPublicProjectionCarriesDestroyedEntries(t *testing.T) {
	params, err := signature.NewEd25519Parameters(types.TinkPrefix)
	if err != nil {
		t.Fatalf("NewEd25519Parameters: %v", err)
	}
	b := keyset.NewBuilder()
	b.Add(newKey(t, params, 300)).Destroy()
	b.Add(newKey(t, params, 400)).SetPrimary()
	h, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	pub, err := h.Public()
	if err != nil {
		t.Fatalf("Public: %v", err)
	}
	if pub.Len() != h.Len() {
		t.Fatalf("public Len = %d, want %d", pub.Len(), h.Len())
	}
	e, err := pub.Entry(0)
	if err != nil {
		t.Fatalf("Entry(0): %v", err)
	}
	if e.Status() != types.StatusDestroyed {
		t.Errorf("status = %v, want DESTROYED", e.Status())
	}
	if e.KeyID() != 300 {
		t.Errorf("destroyed entry id = %d, want 300", e.KeyID())
	}
	if e.MaterialType() != types.MaterialAsymmetricPublic {
		t.Errorf("material type = %v, want ASYMMETRIC_PUBLIC", e.MaterialType())
	}
}

func TestInfoMarksPrimary(t *testing.T) {
	h, err := keyset.Generate(aesGCMParams(t, types.TinkPrefix))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	h, err = keyset.Rotate(h, aesGCMParams(t, types.TinkPrefix))
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	var primaries int
	for _, info := range h.Info() {
		if info.Primary {
			primaries++
			if info.KeyID != h.PrimaryKeyID() {
				t.Errorf("primary info id = %d, want %d", info.KeyID, h.PrimaryKeyID())
			}
		}
	}
	if primaries != 1 {
		t.Errorf("Info marked %d primaries, want 1", primaries)
	}
}
