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

package keyset

import (
	"fmt"

	"github.com/jeremyhahn/go-keyset/pkg/registry"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// Handle is an immutable reference to a finalized keyset. It exposes
// secret-free metadata and capability composition; raw key material never
// crosses its surface except through the token-gated I/O in this package.
//
// A Handle is safe for concurrent use.
type Handle struct {
	ks *keysetData
}

// Generate produces a handle holding a single fresh ENABLED primary entry
// created from p via the default registry.
func Generate(p types.Parameters) (*Handle, error) {
	return GenerateWith(registry.Default(), p)
}

// GenerateWith is Generate against an injected registry.
func GenerateWith(r *registry.Registry, p types.Parameters) (*Handle, error) {
	id, err := randomKeyID(nil)
	if err != nil {
		return nil, err
	}
	key, err := r.NewKey(p, id, p.HasIDRequirement())
	if err != nil {
		return nil, err
	}

	b := NewBuilder()
	e := b.Add(key).SetPrimary()
	if !p.HasIDRequirement() {
		e.SetFixedID(id)
	}
	return b.BuildWith(r)
}

// Len returns the number of entries, including disabled and destroyed
// ones.
func (h *Handle) Len() int {
	return len(h.ks.entries)
}

// Entry returns the i-th entry in keyset order.
func (h *Handle) Entry(i int) (*Entry, error) {
	if i < 0 || i >= len(h.ks.entries) {
		return nil, fmt.Errorf("%w: entry index %d out of range", types.ErrInvalidKeyset, i)
	}
	return h.ks.entries[i], nil
}

// Primary returns the primary entry, or an error for a public-only keyset
// without one.
func (h *Handle) Primary() (*Entry, error) {
	if h.ks.primaryID == 0 {
		return nil, fmt.Errorf("%w: keyset has no primary key", types.ErrInvalidKeyset)
	}
	return h.ks.entryByID(h.ks.primaryID), nil
}

// PrimaryKeyID returns the id of the primary entry, or 0 when the keyset
// has none.
func (h *Handle) PrimaryKeyID() uint32 {
	return h.ks.primaryID
}

// Public derives a new handle in which every private-key entry is replaced
// by its corresponding public-key entry, preserving id, status, prefix
// variant, and primary marker. The projection is one-directional: nothing
// secret survives into the result.
func (h *Handle) Public() (*Handle, error) {
	return h.PublicWith(registry.Default())
}

// PublicWith is Public against an injected registry.
func (h *Handle) PublicWith(r *registry.Registry) (*Handle, error) {
	out := &keysetData{primaryID: h.ks.primaryID}
	for _, e := range h.ks.entries {
		if e.status == types.StatusDestroyed {
			// Nothing to project; carry the reserved id and metadata.
			out.entries = append(out.entries, &Entry{
				keyData: &types.KeyData{
					TypeURL:      e.keyData.TypeURL,
					MaterialType: types.MaterialAsymmetricPublic,
					Version:      e.keyData.Version,
				},
				keyID:      e.keyID,
				status:     e.status,
				prefixType: e.prefixType,
			})
			continue
		}

		key, err := r.ParseKey(e.keyData, e.prefixType, e.keyID, e.prefixType != types.RawPrefix)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", e.keyID, err)
		}
		m, err := r.KeyManagerFor(key.Parameters())
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", e.keyID, err)
		}
		pm, ok := m.(types.PrivateKeyManager)
		if !ok {
			return nil, fmt.Errorf("%w: key %d is not an asymmetric private key",
				types.ErrInvalidKeyset, e.keyID)
		}
		pub, err := pm.PublicKey(key)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", e.keyID, err)
		}
		pkd, err := r.SerializeKey(pub)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", e.keyID, err)
		}
		out.entries = append(out.entries, &Entry{
			keyData:    pkd,
			keyID:      e.keyID,
			status:     e.status,
			prefixType: e.prefixType,
		})
	}

	if err := out.validate(r); err != nil {
		return nil, err
	}
	return &Handle{ks: out}, nil
}

// Info returns the secret-free description of every entry, suitable for
// logging and inspection tooling.
func (h *Handle) Info() []EntryInfo {
	infos := make([]EntryInfo, 0, len(h.ks.entries))
	for _, e := range h.ks.entries {
		infos = append(infos, EntryInfo{
			KeyID:      e.keyID,
			TypeURL:    e.keyData.TypeURL,
			Status:     e.status,
			PrefixType: e.prefixType,
			Primary:    e.keyID == h.ks.primaryID && h.ks.primaryID != 0,
		})
	}
	return infos
}

// EntryInfo is the secret-free metadata of one entry.
type EntryInfo struct {
	KeyID      uint32
	TypeURL    string
	Status     types.KeyStatus
	PrefixType types.OutputPrefixType
	Primary    bool
}
