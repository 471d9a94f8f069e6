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

package types

// AEAD provides authenticated encryption with associated data. The
// associated data is authenticated but not encrypted; decryption with a
// different associated data value fails.
//
// Implementations must be safe for concurrent use.
type AEAD interface {
	// Encrypt encrypts plaintext, binding associatedData to the
	// ciphertext. The returned ciphertext includes any nonce and
	// authentication tag the algorithm requires.
	Encrypt(plaintext, associatedData []byte) ([]byte, error)

	// Decrypt decrypts ciphertext produced by Encrypt with the same
	// associatedData.
	Decrypt(ciphertext, associatedData []byte) ([]byte, error)
}

// DeterministicAEAD provides deterministic authenticated encryption: the
// same plaintext and associated data always yield the same ciphertext.
// Determinism leaks plaintext equality; use only where that is acceptable,
// e.g. encrypted database keys.
type DeterministicAEAD interface {
	// EncryptDeterministically encrypts plaintext, binding
	// associatedData to the ciphertext.
	EncryptDeterministically(plaintext, associatedData []byte) ([]byte, error)

	// DecryptDeterministically decrypts ciphertext produced by
	// EncryptDeterministically with the same associatedData.
	DecryptDeterministically(ciphertext, associatedData []byte) ([]byte, error)
}

// HybridEncrypt provides the sender side of hybrid (public-key) encryption.
// ContextInfo is bound to the ciphertext the way associated data is bound
// by an AEAD.
type HybridEncrypt interface {
	Encrypt(plaintext, contextInfo []byte) ([]byte, error)
}

// HybridDecrypt provides the recipient side of hybrid encryption.
type HybridDecrypt interface {
	Decrypt(ciphertext, contextInfo []byte) ([]byte, error)
}

// Signer produces digital signatures over arbitrary data.
type Signer interface {
	Sign(data []byte) ([]byte, error)
}

// Verifier verifies digital signatures produced by the corresponding
// Signer.
type Verifier interface {
	// Verify returns nil if signature is a valid signature over data.
	Verify(signature, data []byte) error
}
