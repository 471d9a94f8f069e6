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

// Builder is the mutable staging form of a keyset. Entries are
// accumulated, then Build validates every invariant at once and freezes
// the result into a Handle. A Builder is not safe for concurrent use; the
// Handle it produces is.
type Builder struct {
	entries []*BuilderEntry
}

// BuilderEntry is one staged entry. Mutators return the entry for
// chaining.
type BuilderEntry struct {
	key        types.Key
	keyData    *types.KeyData
	prefixType types.OutputPrefixType

	id      uint32
	fixedID bool
	status  types.KeyStatus
	primary bool
}

// NewBuilder returns an empty staging builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// NewBuilderFromHandle stages a copy of an existing keyset for rotation:
// every entry is carried over with its id, status, and primary flag. The
// source handle is not affected by anything done to the builder.
func NewBuilderFromHandle(h *Handle) *Builder {
	b := &Builder{}
	for _, e := range h.ks.entries {
		b.entries = append(b.entries, &BuilderEntry{
			keyData:    e.keyData.Clone(),
			prefixType: e.prefixType,
			id:         e.keyID,
			fixedID:    true,
			status:     e.status,
			primary:    e.keyID == h.ks.primaryID && h.ks.primaryID != 0,
		})
	}
	return b
}

// Add stages key as a new ENABLED entry. The entry id is taken from the
// key's id requirement if it has one, otherwise assigned randomly at
// Build time.
func (b *Builder) Add(key types.Key) *BuilderEntry {
	e := &BuilderEntry{
		key:    key,
		status: types.StatusEnabled,
	}
	if key != nil {
		e.prefixType = key.Parameters().OutputPrefixType()
		if id, ok := key.IDRequirement(); ok {
			e.id = id
			e.fixedID = true
		}
	}
	b.entries = append(b.entries, e)
	return e
}

// SetPrimary marks this entry as the keyset primary. Exactly one ENABLED
// entry must be primary at Build time.
func (e *BuilderEntry) SetPrimary() *BuilderEntry {
	e.primary = true
	return e
}

// SetStatus overrides the entry status.
func (e *BuilderEntry) SetStatus(s types.KeyStatus) *BuilderEntry {
	e.status = s
	return e
}

// SetFixedID pins the entry to id instead of a random assignment. Keys
// carrying an id requirement must keep their required id.
func (e *BuilderEntry) SetFixedID(id uint32) *BuilderEntry {
	e.id = id
	e.fixedID = true
	return e
}

// Destroy drops the entry's key material and marks it DESTROYED. The id
// and remaining metadata are preserved, and the id stays permanently
// reserved within the keyset.
func (e *BuilderEntry) Destroy() *BuilderEntry {
	e.status = types.StatusDestroyed
	return e
}

// Build finalizes the staged entries into an immutable keyset using the
// default registry. See BuildWith.
func (b *Builder) Build() (*Handle, error) {
	return b.BuildWith(registry.Default())
}

// BuildWith finalizes the staged entries: assigns ids, serializes keys,
// and runs all structural and semantic validation in one place. On any
// failure no keyset is produced.
func (b *Builder) BuildWith(r *registry.Registry) (*Handle, error) {
	if len(b.entries) == 0 {
		return nil, fmt.Errorf("%w: no entries staged", types.ErrInvalidKeyset)
	}

	used := make(map[uint32]bool, len(b.entries))
	for _, e := range b.entries {
		if !e.fixedID {
			continue
		}
		if e.id == 0 {
			return nil, fmt.Errorf("%w: key id 0 is reserved", types.ErrInvalidKeyset)
		}
		if used[e.id] {
			return nil, fmt.Errorf("%w: duplicate key id %d", types.ErrInvalidKeyset, e.id)
		}
		used[e.id] = true
	}
	for _, e := range b.entries {
		if e.fixedID {
			continue
		}
		id, err := randomKeyID(used)
		if err != nil {
			return nil, err
		}
		e.id = id
		used[id] = true
	}

	var primaryID uint32
	for _, e := range b.entries {
		if !e.primary {
			continue
		}
		if primaryID != 0 {
			return nil, fmt.Errorf("%w: multiple entries marked primary", types.ErrInvalidKeyset)
		}
		if e.status != types.StatusEnabled {
			return nil, fmt.Errorf("%w: primary key %d is not enabled", types.ErrInvalidKeyset, e.id)
		}
		primaryID = e.id
	}

	ks := &keysetData{primaryID: primaryID}
	for _, e := range b.entries {
		entry, err := e.finalize(r)
		if err != nil {
			return nil, err
		}
		ks.entries = append(ks.entries, entry)
	}

	if err := ks.validate(r); err != nil {
		return nil, err
	}
	return &Handle{ks: ks}, nil
}

func (e *BuilderEntry) finalize(r *registry.Registry) (*Entry, error) {
	kd := e.keyData
	if e.key != nil {
		if reqID, ok := e.key.IDRequirement(); ok && reqID != e.id {
			return nil, fmt.Errorf("%w: key requires id %d but entry id is %d",
				types.ErrInvalidKeyset, reqID, e.id)
		}
		var err error
		kd, err = r.SerializeKey(e.key)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", e.id, err)
		}
	}
	if kd == nil {
		return nil, fmt.Errorf("%w: entry %d has no key", types.ErrInvalidKeyset, e.id)
	}
	if e.status == types.StatusDestroyed {
		kd = &types.KeyData{
			TypeURL:      kd.TypeURL,
			MaterialType: kd.MaterialType,
			Version:      kd.Version,
		}
	}
	return &Entry{
		keyData:    kd,
		keyID:      e.id,
		status:     e.status,
		prefixType: e.prefixType,
	}, nil
}
