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
	"strings"
	"sync"

	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// FakeScheme is the URI scheme served by the in-memory fake client.
const FakeScheme = "fake-kms://"

// FakeClient is an in-memory KMS for tests and local development. Each
// key URI lazily gets its own random AES-256-GCM key; nothing is
// persisted.
type FakeClient struct {
	mu    sync.Mutex
	aeads map[string]types.AEAD
}

var _ Client = (*FakeClient)(nil)

// NewFakeClient creates an empty fake KMS.
func NewFakeClient() *FakeClient {
	return &FakeClient{aeads: make(map[string]types.AEAD)}
}

func (c *FakeClient) Supports(keyURI string) bool {
	return strings.HasPrefix(strings.ToLower(keyURI), FakeScheme)
}

func (c *FakeClient) AEAD(keyURI string) (types.AEAD, error) {
	if !c.Supports(keyURI) {
		return nil, ErrInvalidKeyURI
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.aeads[keyURI]; ok {
		return a, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	a := &fakeAEAD{aead: gcm}
	c.aeads[keyURI] = a
	return a, nil
}

type fakeAEAD struct {
	aead cipher.AEAD
}

var _ types.AEAD = (*fakeAEAD)(nil)

func (f *fakeAEAD) Encrypt(plaintext, associatedData []byte) ([]byte, error) {
	nonce := make([]byte, f.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return f.aead.Seal(nonce, nonce, plaintext, associatedData), nil
}

func (f *fakeAEAD) Decrypt(ciphertext, associatedData []byte) ([]byte, error) {
	ns := f.aead.NonceSize()
	if len(ciphertext) < ns {
		return nil, types.ErrDecryptionFailed
	}
	pt, err := f.aead.Open(nil, ciphertext[:ns], ciphertext[ns:], associatedData)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	return pt, nil
}
