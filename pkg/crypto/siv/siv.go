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

// Package siv implements a deterministic authenticated cipher in the
// synthetic-IV style: the IV is a MAC over the associated data and the
// plaintext, so identical inputs always produce identical ciphertext and
// any tampering changes the recomputed IV.
//
// Construction: IV = HMAC-SHA256(macKey, len(ad) || ad || pt)[:16],
// ciphertext = IV || AES-256-CTR(encKey, IV, pt). The length framing
// keeps (ad, pt) boundaries unambiguous.
package siv

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
)

// KeySize is the combined key length: 32 bytes of HMAC key followed by
// 32 bytes of AES-256 key.
const KeySize = 64

const ivSize = 16

var (
	ErrInvalidKeySize = errors.New("siv: key must be 64 bytes")
	ErrAuthentication = errors.New("siv: authentication failed")
)

// Cipher is a deterministic authenticated cipher over a fixed key pair.
type Cipher struct {
	macKey []byte
	block  cipher.Block
}

// NewCipher splits key into MAC and encryption halves. key must be
// KeySize bytes.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	macKey := append([]byte(nil), key[:32]...)
	block, err := aes.NewCipher(key[32:])
	if err != nil {
		return nil, err
	}
	return &Cipher{macKey: macKey, block: block}, nil
}

func (c *Cipher) syntheticIV(plaintext, associatedData []byte) []byte {
	mac := hmac.New(sha256.New, c.macKey)
	var frame [8]byte
	binary.BigEndian.PutUint64(frame[:], uint64(len(associatedData)))
	mac.Write(frame[:])
	mac.Write(associatedData)
	mac.Write(plaintext)
	return mac.Sum(nil)[:ivSize]
}

// Seal deterministically encrypts and authenticates plaintext.
func (c *Cipher) Seal(plaintext, associatedData []byte) ([]byte, error) {
	iv := c.syntheticIV(plaintext, associatedData)
	out := make([]byte, ivSize+len(plaintext))
	copy(out, iv)
	cipher.NewCTR(c.block, iv).XORKeyStream(out[ivSize:], plaintext)
	return out, nil
}

// Open decrypts ciphertext and verifies the synthetic IV in constant
// time.
func (c *Cipher) Open(ciphertext, associatedData []byte) ([]byte, error) {
	if len(ciphertext) < ivSize {
		return nil, ErrAuthentication
	}
	iv := ciphertext[:ivSize]
	pt := make([]byte, len(ciphertext)-ivSize)
	cipher.NewCTR(c.block, iv).XORKeyStream(pt, ciphertext[ivSize:])
	expected := c.syntheticIV(pt, associatedData)
	if subtle.ConstantTimeCompare(iv, expected) != 1 {
		return nil, ErrAuthentication
	}
	return pt, nil
}
