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

// Package keyset implements the immutable keyset model and its handle: an
// ordered collection of key entries with rotation and status metadata,
// assembled through a staging builder, validated atomically at
// finalization, and composed into capability objects through registered
// wrappers.
//
// A finalized keyset is never mutated. Rotation builds a new keyset from
// an existing handle; the old handle stays valid.
package keyset

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/jeremyhahn/go-keyset/pkg/registry"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// Entry is one immutable keyset entry: the KeyData envelope plus rotation
// metadata. Key material is not reachable through an Entry; only the
// secret-free metadata is exposed.
type Entry struct {
	keyData    *types.KeyData
	keyID      uint32
	status     types.KeyStatus
	prefixType types.OutputPrefixType
}

// KeyID returns the 32-bit entry id, unique within the keyset.
func (e *Entry) KeyID() uint32 { return e.keyID }

// Status returns the entry's lifecycle status.
func (e *Entry) Status() types.KeyStatus { return e.status }

// PrefixType returns the entry's output-prefix variant.
func (e *Entry) PrefixType() types.OutputPrefixType { return e.prefixType }

// TypeURL returns the type identifier of the entry's key.
func (e *Entry) TypeURL() string { return e.keyData.TypeURL }

// MaterialType returns the material classification of the entry's key.
func (e *Entry) MaterialType() types.KeyMaterialType { return e.keyData.MaterialType }

// keysetData is the finalized, immutable keyset. primaryID is zero when
// the keyset has no primary, which validation permits only for keysets
// holding nothing but public key material.
type keysetData struct {
	primaryID uint32
	entries   []*Entry
}

func (ks *keysetData) entryByID(id uint32) *Entry {
	for _, e := range ks.entries {
		if e.keyID == id {
			return e
		}
	}
	return nil
}

func (ks *keysetData) publicOnly() bool {
	for _, e := range ks.entries {
		if e.keyData.MaterialType != types.MaterialAsymmetricPublic {
			return false
		}
	}
	return true
}

// validate checks every structural invariant and, through the registry,
// the semantic validity of each entry's key material. It either accepts
// the keyset in full or rejects it; nothing is repaired.
func (ks *keysetData) validate(r *registry.Registry) error {
	if len(ks.entries) == 0 {
		return fmt.Errorf("%w: keyset has no entries", types.ErrInvalidKeyset)
	}

	seen := make(map[uint32]bool, len(ks.entries))
	for _, e := range ks.entries {
		if e.keyID == 0 {
			return fmt.Errorf("%w: key id 0 is reserved", types.ErrInvalidKeyset)
		}
		if seen[e.keyID] {
			return fmt.Errorf("%w: duplicate key id %d", types.ErrInvalidKeyset, e.keyID)
		}
		seen[e.keyID] = true

		switch e.status {
		case types.StatusEnabled, types.StatusDisabled, types.StatusDestroyed:
		default:
			return fmt.Errorf("%w: key %d has unknown status", types.ErrInvalidKeyset, e.keyID)
		}

		if e.status == types.StatusDestroyed {
			// Destroyed entries keep id and metadata only.
			if len(e.keyData.Value) != 0 {
				return fmt.Errorf("%w: destroyed key %d retains key material", types.ErrInvalidKeyset, e.keyID)
			}
			continue
		}

		key, err := r.ParseKey(e.keyData, e.prefixType, e.keyID, e.prefixType != types.RawPrefix)
		if err != nil {
			return fmt.Errorf("key %d: %w", e.keyID, err)
		}
		m, err := r.KeyManagerFor(key.Parameters())
		if err != nil {
			return fmt.Errorf("key %d: %w", e.keyID, err)
		}
		if err := m.ValidateKey(key); err != nil {
			return fmt.Errorf("key %d: %w", e.keyID, err)
		}
	}

	if ks.primaryID == 0 {
		// Derived public-only keysets are the single permitted case of
		// a keyset without a primary.
		if !ks.publicOnly() {
			return fmt.Errorf("%w: keyset has no primary key", types.ErrInvalidKeyset)
		}
		return nil
	}

	primary := ks.entryByID(ks.primaryID)
	if primary == nil {
		return fmt.Errorf("%w: primary key %d not present", types.ErrInvalidKeyset, ks.primaryID)
	}
	if primary.status != types.StatusEnabled {
		return fmt.Errorf("%w: primary key %d is not enabled", types.ErrInvalidKeyset, ks.primaryID)
	}
	return nil
}

// randomKeyID returns a fresh nonzero id not present in used.
func randomKeyID(used map[uint32]bool) (uint32, error) {
	var buf [4]byte
	for attempt := 0; attempt < 64; attempt++ {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("keyset: generate key id: %w", err)
		}
		id := binary.BigEndian.Uint32(buf[:])
		if id != 0 && !used[id] {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: unable to allocate unused key id", types.ErrInvalidKeyset)
}
