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
	"github.com/jeremyhahn/go-keyset/pkg/registry"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// Rotate returns a new handle with a fresh key created from p added as
// the primary. All existing entries are carried over unchanged, so
// material produced under the old primary stays consumable.
func Rotate(h *Handle, p types.Parameters) (*Handle, error) {
	return RotateWith(registry.Default(), h, p)
}

// RotateWith is Rotate against an injected registry.
func RotateWith(r *registry.Registry, h *Handle, p types.Parameters) (*Handle, error) {
	used := make(map[uint32]bool, len(h.ks.entries))
	for _, e := range h.ks.entries {
		used[e.keyID] = true
	}
	id, err := randomKeyID(used)
	if err != nil {
		return nil, err
	}
	key, err := r.NewKey(p, id, p.HasIDRequirement())
	if err != nil {
		return nil, err
	}

	b := NewBuilderFromHandle(h)
	for _, e := range b.entries {
		e.primary = false
	}
	e := b.Add(key).SetPrimary()
	if !p.HasIDRequirement() {
		e.SetFixedID(id)
	}
	return b.BuildWith(r)
}
