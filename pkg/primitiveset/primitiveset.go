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

// Package primitiveset pairs the primitives derived from a keyset's
// enabled entries with their dispatch metadata: key id, output prefix, and
// primary marker.
//
// A Set is runtime-only. It is rebuilt from the registry on every
// capability request, never persisted, and never cached across handles.
package primitiveset

import (
	"fmt"

	"github.com/jeremyhahn/go-keyset/pkg/prefix"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// Entry is one enabled key's primitive together with its dispatch
// metadata.
type Entry[T any] struct {
	// Primitive is the capability object derived from the entry's key.
	Primitive T

	// KeyID is the 32-bit keyset entry id.
	KeyID uint32

	// Prefix is the precomputed output prefix; empty for RAW.
	Prefix []byte

	// PrefixType is the framing variant of the entry.
	PrefixType types.OutputPrefixType

	// Primary marks the entry used for all produce operations.
	Primary bool
}

// Set holds the entries of one keyset in keyset order, indexed by output
// prefix for consume-side dispatch.
type Set[T any] struct {
	entries  []*Entry[T]
	byPrefix map[string][]*Entry[T]
	raw      []*Entry[T]
	primary  *Entry[T]
}

// New returns an empty set.
func New[T any]() *Set[T] {
	return &Set[T]{byPrefix: make(map[string][]*Entry[T])}
}

// Add appends a primitive with its metadata, computing the output prefix
// from the variant and key id. Entries must be added in keyset order;
// dispatch preserves insertion order within each prefix bucket.
func (s *Set[T]) Add(p T, keyID uint32, prefixType types.OutputPrefixType, primary bool) (*Entry[T], error) {
	pfx, err := prefix.Compute(prefixType, keyID)
	if err != nil {
		return nil, err
	}
	if primary && s.primary != nil {
		return nil, fmt.Errorf("%w: multiple primary entries", types.ErrInvalidKeyset)
	}

	e := &Entry[T]{
		Primitive:  p,
		KeyID:      keyID,
		Prefix:     pfx,
		PrefixType: prefixType,
		Primary:    primary,
	}
	s.entries = append(s.entries, e)
	if prefixType == types.RawPrefix {
		s.raw = append(s.raw, e)
	} else {
		s.byPrefix[string(pfx)] = append(s.byPrefix[string(pfx)], e)
	}
	if primary {
		s.primary = e
	}
	return e, nil
}

// Primary returns the produce-side entry, or nil if none was marked.
func (s *Set[T]) Primary() *Entry[T] {
	return s.primary
}

// EntriesForPrefix returns the non-RAW entries whose computed prefix
// equals p, in keyset order.
func (s *Set[T]) EntriesForPrefix(p string) []*Entry[T] {
	return s.byPrefix[p]
}

// RawEntries returns the RAW-variant entries in keyset order. RAW entries
// are candidates for every consume operation because an absent prefix can
// never exclude them.
func (s *Set[T]) RawEntries() []*Entry[T] {
	return s.raw
}

// Entries returns all entries in keyset order.
func (s *Set[T]) Entries() []*Entry[T] {
	return s.entries
}

// Len returns the number of entries.
func (s *Set[T]) Len() int {
	return len(s.entries)
}
