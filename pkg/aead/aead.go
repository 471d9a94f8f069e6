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

// Package aead composes a keyset into a single authenticated-encryption
// capability object and supplies the built-in AEAD key types: AES-GCM,
// ChaCha20-Poly1305, and XChaCha20-Poly1305.
//
// Encryption always uses the keyset's primary key and prepends its output
// prefix. Decryption dispatches on the prefix, falling back to RAW-variant
// keys, so ciphertext produced before a rotation stays decryptable without
// any change at the call site.
package aead

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

// New composes the keyset behind h into one AEAD using the default
// registry.
func New(h *keyset.Handle) (types.AEAD, error) {
	return NewWith(registry.Default(), h)
}

// NewWith is New against an injected registry.
func NewWith(r *registry.Registry, h *keyset.Handle) (types.AEAD, error) {
	return keyset.PrimitivesWith[types.AEAD](r, h, wrapper{})
}

type wrapper struct{}

func (wrapper) Wrap(ps *primitiveset.Set[types.AEAD]) (types.AEAD, error) {
	if ps.Primary() == nil {
		return nil, fmt.Errorf("%w: no primary key for encryption", types.ErrInvalidKeyset)
	}
	return &wrapped{ps: ps}, nil
}

// wrapped implements the output-prefix dispatch protocol over the
// primitives of one keyset.
type wrapped struct {
	ps *primitiveset.Set[types.AEAD]
}

var _ types.AEAD = (*wrapped)(nil)

func (w *wrapped) Encrypt(plaintext, associatedData []byte) ([]byte, error) {
	start := time.Now()
	primary := w.ps.Primary()
	ct, err := primary.Primitive.Encrypt(plaintext, associatedData)
	metrics.RecordOperation(metrics.PrimitiveAEAD, metrics.OpEncrypt, start, err)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(primary.Prefix)+len(ct))
	out = append(out, primary.Prefix...)
	return append(out, ct...), nil
}

func (w *wrapped) Decrypt(ciphertext, associatedData []byte) ([]byte, error) {
	start := time.Now()

	if len(ciphertext) >= prefix.Size {
		for _, e := range w.ps.EntriesForPrefix(string(ciphertext[:prefix.Size])) {
			if pt, err := e.Primitive.Decrypt(ciphertext[prefix.Size:], associatedData); err == nil {
				metrics.RecordOperation(metrics.PrimitiveAEAD, metrics.OpDecrypt, start, nil)
				return pt, nil
			}
		}
	}
	// RAW keys remain candidates for any input: an absent prefix cannot
	// exclude them.
	for _, e := range w.ps.RawEntries() {
		if pt, err := e.Primitive.Decrypt(ciphertext, associatedData); err == nil {
			metrics.RecordOperation(metrics.PrimitiveAEAD, metrics.OpDecrypt, start, nil)
			return pt, nil
		}
	}

	// Aggregate failure only. Reporting which candidate came closest
	// would hand an attacker a padding-oracle style signal.
	metrics.RecordOperation(metrics.PrimitiveAEAD, metrics.OpDecrypt, start, types.ErrDecryptionFailed)
	return nil, types.ErrDecryptionFailed
}
