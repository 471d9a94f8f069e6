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

package kms

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/jeremyhahn/go-keyset/pkg/types"
)

const (
	envelopeDEKSize   = 32
	envelopeNonceSize = 12

	// maxWrappedDEKSize bounds the wrapped-key length field so a
	// corrupt header cannot trigger a huge allocation.
	maxWrappedDEKSize = 4096
)

// EnvelopeAEAD encrypts data locally under a fresh AES-256-GCM data key
// and wraps that key with a remote AEAD. One remote call per message,
// regardless of payload size.
//
// Ciphertext layout: 4-byte big-endian wrapped-key length || wrapped
// key || nonce || local ciphertext+tag.
type EnvelopeAEAD struct {
	remote types.AEAD
}

var _ types.AEAD = (*EnvelopeAEAD)(nil)

// NewEnvelopeAEAD wraps remote as the key-encryption layer.
func NewEnvelopeAEAD(remote types.AEAD) *EnvelopeAEAD {
	return &EnvelopeAEAD{remote: remote}
}

func (e *EnvelopeAEAD) Encrypt(plaintext, associatedData []byte) ([]byte, error) {
	dek := make([]byte, envelopeDEKSize)
	if _, err := rand.Read(dek); err != nil {
		return nil, fmt.Errorf("kms: generate data key: %w", err)
	}
	wrapped, err := e.remote.Encrypt(dek, nil)
	if err != nil {
		return nil, fmt.Errorf("kms: wrap data key: %w", err)
	}
	if len(wrapped) > maxWrappedDEKSize {
		return nil, fmt.Errorf("%w: wrapped key of %d bytes", ErrInvalidResponse, len(wrapped))
	}

	aead, err := newDataAEAD(dek)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, envelopeNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("kms: generate nonce: %w", err)
	}

	out := make([]byte, 4, 4+len(wrapped)+envelopeNonceSize+len(plaintext)+aead.Overhead())
	binary.BigEndian.PutUint32(out, uint32(len(wrapped)))
	out = append(out, wrapped...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, associatedData), nil
}

func (e *EnvelopeAEAD) Decrypt(ciphertext, associatedData []byte) ([]byte, error) {
	if len(ciphertext) < 4 {
		return nil, types.ErrDecryptionFailed
	}
	wrappedLen := binary.BigEndian.Uint32(ciphertext[:4])
	if wrappedLen == 0 || wrappedLen > maxWrappedDEKSize || int(wrappedLen) > len(ciphertext)-4 {
		return nil, types.ErrDecryptionFailed
	}
	wrapped := ciphertext[4 : 4+wrappedLen]
	rest := ciphertext[4+wrappedLen:]
	if len(rest) < envelopeNonceSize {
		return nil, types.ErrDecryptionFailed
	}

	dek, err := e.remote.Decrypt(wrapped, nil)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	aead, err := newDataAEAD(dek)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	pt, err := aead.Open(nil, rest[:envelopeNonceSize], rest[envelopeNonceSize:], associatedData)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	return pt, nil
}

func newDataAEAD(dek []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, fmt.Errorf("kms: data key cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
