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

// Package signature composes keysets into digital-signature capability
// objects. The private keyset derives a Signer, its public projection a
// Verifier. Built-in key types: ECDSA P-256 and Ed25519.
//
// LEGACY-variant keys sign over the message with a single zero byte
// appended. The quirk is preserved for compatibility with ciphertext
// produced by older deployments.
package signature

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

// NewSigner composes the private keyset behind h into one Signer using
// the default registry.
func NewSigner(h *keyset.Handle) (types.Signer, error) {
	return NewSignerWith(registry.Default(), h)
}

// NewSignerWith is NewSigner against an injected registry.
func NewSignerWith(r *registry.Registry, h *keyset.Handle) (types.Signer, error) {
	return keyset.PrimitivesWith[types.Signer](r, h, signerWrapper{})
}

// NewVerifier composes the public keyset behind h into one Verifier
// using the default registry.
func NewVerifier(h *keyset.Handle) (types.Verifier, error) {
	return NewVerifierWith(registry.Default(), h)
}

// NewVerifierWith is NewVerifier against an injected registry.
func NewVerifierWith(r *registry.Registry, h *keyset.Handle) (types.Verifier, error) {
	return keyset.PrimitivesWith[types.Verifier](r, h, verifierWrapper{})
}

func legacyMessage(data []byte) []byte {
	msg := make([]byte, 0, len(data)+1)
	msg = append(msg, data...)
	return append(msg, 0)
}

type signerWrapper struct{}

func (signerWrapper) Wrap(ps *primitiveset.Set[types.Signer]) (types.Signer, error) {
	if ps.Primary() == nil {
		return nil, fmt.Errorf("%w: no primary key for signing", types.ErrInvalidKeyset)
	}
	return &wrappedSigner{ps: ps}, nil
}

type wrappedSigner struct {
	ps *primitiveset.Set[types.Signer]
}

var _ types.Signer = (*wrappedSigner)(nil)

func (w *wrappedSigner) Sign(data []byte) ([]byte, error) {
	start := time.Now()
	primary := w.ps.Primary()

	msg := data
	if primary.PrefixType == types.LegacyPrefix {
		msg = legacyMessage(data)
	}
	sig, err := primary.Primitive.Sign(msg)
	metrics.RecordOperation(metrics.PrimitiveSignature, metrics.OpSign, start, err)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(primary.Prefix)+len(sig))
	out = append(out, primary.Prefix...)
	return append(out, sig...), nil
}

type verifierWrapper struct{}

func (verifierWrapper) Wrap(ps *primitiveset.Set[types.Verifier]) (types.Verifier, error) {
	return &wrappedVerifier{ps: ps}, nil
}

type wrappedVerifier struct {
	ps *primitiveset.Set[types.Verifier]
}

var _ types.Verifier = (*wrappedVerifier)(nil)

func (w *wrappedVerifier) Verify(sig, data []byte) error {
	start := time.Now()

	if len(sig) >= prefix.Size {
		var legacyMsg []byte
		for _, e := range w.ps.EntriesForPrefix(string(sig[:prefix.Size])) {
			msg := data
			if e.PrefixType == types.LegacyPrefix {
				if legacyMsg == nil {
					legacyMsg = legacyMessage(data)
				}
				msg = legacyMsg
			}
			if err := e.Primitive.Verify(sig[prefix.Size:], msg); err == nil {
				metrics.RecordOperation(metrics.PrimitiveSignature, metrics.OpVerify, start, nil)
				return nil
			}
		}
	}
	for _, e := range w.ps.RawEntries() {
		if err := e.Primitive.Verify(sig, data); err == nil {
			metrics.RecordOperation(metrics.PrimitiveSignature, metrics.OpVerify, start, nil)
			return nil
		}
	}

	metrics.RecordOperation(metrics.PrimitiveSignature, metrics.OpVerify, start, types.ErrVerificationFailed)
	return types.ErrVerificationFailed
}
