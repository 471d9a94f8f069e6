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

// Package daead composes a keyset into a deterministic AEAD: the same
// plaintext and associated data always yield the same ciphertext under
// the same key, which permits equality lookups on encrypted values at
// the cost of revealing repeats.
package daead

import (
	"fmt"
	"time"

	"github.com/jeremyhahn/go-keyset/pkg/keyset"
	"github.com/jeremyhahn/go-keyset/pkg/metrics"
	"github.com/jeremyhahn/go-keyset/pkg/prefix"
	"github.com/jeremyhahn/go-keyset/pkg/primitiveset"
	"github.com/jeremyhahn/go-keyset/pkg/registry"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// New composes the keyset behind h into one DeterministicAEAD using the
// default registry.
func New(h *keyset.Handle) (types.DeterministicAEAD, error) {
	return NewWith(registry.Default(), h)
}

// NewWith is New against an injected registry.
func NewWith(r *registry.Registry, h *keyset.Handle) (types.DeterministicAEAD, error) {
	return keyset.PrimitivesWith[types.DeterministicAEAD](r, h, wrapper{})
}

type wrapper struct{}

func (wrapper) Wrap(ps *primitiveset.Set[types.DeterministicAEAD]) (types.DeterministicAEAD, error) {
	if ps.Primary() == nil {
		return nil, fmt.Errorf("%w: no primary key for encryption", types.ErrInvalidKeyset)
	}
	return &wrapped{ps: ps}, nil
}

type wrapped struct {
	ps *primitiveset.Set[types.DeterministicAEAD]
}

var _ types.DeterministicAEAD = (*wrapped)(nil)

func (w *wrapped) EncryptDeterministically(plaintext, associatedData []byte) ([]byte, error) {
	start := time.Now()
	primary := w.ps.Primary()
	ct, err := primary.Primitive.EncryptDeterministically(plaintext, associatedData)
	metrics.RecordOperation(metrics.PrimitiveDAEAD, metrics.OpEncrypt, start, err)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(primary.Prefix)+len(ct))
	out = append(out, primary.Prefix...)
	return append(out, ct...), nil
}

func (w *wrapped) DecryptDeterministically(ciphertext, associatedData []byte) ([]byte, error) {
	start := time.Now()

	if len(ciphertext) >= prefix.Size {
		for _, e := range w.ps.EntriesForPrefix(string(ciphertext[:prefix.Size])) {
			if pt, err := e.Primitive.DecryptDeterministically(ciphertext[prefix.Size:], associatedData); err == nil {
				metrics.RecordOperation(metrics.PrimitiveDAEAD, metrics.OpDecrypt, start, nil)
				return pt, nil
			}
		}
	}
	for _, e := range w.ps.RawEntries() {
		if pt, err := e.Primitive.DecryptDeterministically(ciphertext, associatedData); err == nil {
			metrics.RecordOperation(metrics.PrimitiveDAEAD, metrics.OpDecrypt, start, nil)
			return pt, nil
		}
	}

	metrics.RecordOperation(metrics.PrimitiveDAEAD, metrics.OpDecrypt, start, types.ErrDecryptionFailed)
	return nil, types.ErrDecryptionFailed
}
