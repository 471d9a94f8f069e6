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

	"github.com/jeremyhahn/go-keyset/pkg/primitiveset"
	"github.com/jeremyhahn/go-keyset/pkg/registry"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// Wrapper composes the per-entry primitives of one keyset into a single
// capability object implementing the output-prefix dispatch protocol.
// Each capability package (aead, daead, hybrid, signature) supplies one.
type Wrapper[T any] interface {
	Wrap(ps *primitiveset.Set[T]) (T, error)
}

// Primitives derives one primitive per ENABLED entry of h through the
// default registry and hands them to w for composition. See
// PrimitivesWith.
func Primitives[T any](h *Handle, w Wrapper[T]) (T, error) {
	return PrimitivesWith(registry.Default(), h, w)
}

// PrimitivesWith builds the transient primitive set for h: DISABLED and
// DESTROYED entries are skipped, every ENABLED entry's key is parsed and
// turned into a primitive via the registry, and each primitive is tagged
// with its id, prefix, and primary marker. The set is rebuilt on every
// call and never cached across handles.
//
// An ENABLED entry whose primitive does not implement T makes the whole
// request fail with ErrInvalidKeyset: a keyset is composed for exactly one
// capability at a time.
func PrimitivesWith[T any](r *registry.Registry, h *Handle, w Wrapper[T]) (T, error) {
	var zero T
	if h == nil {
		return zero, fmt.Errorf("%w: nil handle", types.ErrInvalidKeyset)
	}

	ps := primitiveset.New[T]()
	for _, e := range h.ks.entries {
		if e.status != types.StatusEnabled {
			continue
		}
		key, err := r.ParseKey(e.keyData, e.prefixType, e.keyID, e.prefixType != types.RawPrefix)
		if err != nil {
			return zero, fmt.Errorf("key %d: %w", e.keyID, err)
		}
		prim, err := r.Primitive(key)
		if err != nil {
			return zero, fmt.Errorf("key %d: %w", e.keyID, err)
		}
		typed, ok := prim.(T)
		if !ok {
			return zero, fmt.Errorf("%w: key %d yields %T, incompatible with requested primitive",
				types.ErrInvalidKeyset, e.keyID, prim)
		}
		primary := h.ks.primaryID != 0 && e.keyID == h.ks.primaryID
		if _, err := ps.Add(typed, e.keyID, e.prefixType, primary); err != nil {
			return zero, err
		}
	}

	if ps.Len() == 0 {
		return zero, fmt.Errorf("%w: keyset has no enabled entries", types.ErrInvalidKeyset)
	}
	return w.Wrap(ps)
}
