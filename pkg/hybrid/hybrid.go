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

// Package hybrid composes keysets into public-key encryption capability
// objects. A recipient holds the private keyset and derives
// HybridDecrypt; anyone holding the public projection can derive
// HybridEncrypt. The built-in key type pairs ML-KEM-768 encapsulation
// with an AES-256-GCM data-encapsulation layer.
package hybrid

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

// NewEncrypt composes the public keyset behind h into one HybridEncrypt
// using the default registry.
func NewEncrypt(h *keyset.Handle) (types.HybridEncrypt, error) {
	return NewEncryptWith(registry.Default(), h)
}

// NewEncryptWith is NewEncrypt against an injected registry.
func NewEncryptWith(r *registry.Registry, h *keyset.Handle) (types.HybridEncrypt, error) {
	return keyset.PrimitivesWith[types.HybridEncrypt](r, h, encryptWrapper{})
}

// NewDecrypt composes the private keyset behind h into one HybridDecrypt
// using the default registry.
func NewDecrypt(h *keyset.Handle) (types.HybridDecrypt, error) {
	return NewDecryptWith(registry.Default(), h)
}

// NewDecryptWith is NewDecrypt against an injected registry.
func NewDecryptWith(r *registry.Registry, h *keyset.Handle) (types.HybridDecrypt, error) {
	return keyset.PrimitivesWith[types.HybridDecrypt](r, h, decryptWrapper{})
}

type encryptWrapper struct{}

func (encryptWrapper) Wrap(ps *primitiveset.Set[types.HybridEncrypt]) (types.HybridEncrypt, error) {
	if ps.Primary() == nil {
		return nil, fmt.Errorf("%w: no primary key for encryption", types.ErrInvalidKeyset)
	}
	return &wrappedEncrypt{ps: ps}, nil
}

type wrappedEncrypt struct {
	ps *primitiveset.Set[types.HybridEncrypt]
}

var _ types.HybridEncrypt = (*wrappedEncrypt)(nil)

func (w *wrappedEncrypt) Encrypt(plaintext, contextInfo []byte) ([]byte, error) {
	start := time.Now()
	primary := w.ps.Primary()
	ct, err := primary.Primitive.Encrypt(plaintext, contextInfo)
	metrics.RecordOperation(metrics.PrimitiveHybrid, metrics.OpEncrypt, start, err)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(primary.Prefix)+len(ct))
	out = append(out, primary.Prefix...)
	return append(out, ct...), nil
}

type decryptWrapper struct{}

func (decryptWrapper) Wrap(ps *primitiveset.Set[types.HybridDecrypt]) (types.HybridDecrypt, error) {
	return &wrappedDecrypt{ps: ps}, nil
}

type wrappedDecrypt struct {
	ps *primitiveset.Set[types.HybridDecrypt]
}

var _ types.HybridDecrypt = (*wrappedDecrypt)(nil)

func (w *wrappedDecrypt) Decrypt(ciphertext, contextInfo []byte) ([]byte, error) {
	start := time.Now()

	if len(ciphertext) >= prefix.Size {
		for _, e := range w.ps.EntriesForPrefix(string(ciphertext[:prefix.Size])) {
			if pt, err := e.Primitive.Decrypt(ciphertext[prefix.Size:], contextInfo); err == nil {
				metrics.RecordOperation(metrics.PrimitiveHybrid, metrics.OpDecrypt, start, nil)
				return pt, nil
			}
		}
	}
	for _, e := range w.ps.RawEntries() {
		if pt, err := e.Primitive.Decrypt(ciphertext, contextInfo); err == nil {
			metrics.RecordOperation(metrics.PrimitiveHybrid, metrics.OpDecrypt, start, nil)
			return pt, nil
		}
	}

	metrics.RecordOperation(metrics.PrimitiveHybrid, metrics.OpDecrypt, start, types.ErrDecryptionFailed)
	return nil, types.ErrDecryptionFailed
}
