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

// Package secret provides the guarded container for raw secret key bytes.
//
// Bytes values are immutable and copy their contents on the way in and on
// the way out. Reading the contents requires an insecure.KeyAccessToken,
// so a call site that never constructs a token cannot express raw key
// extraction at all.
package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"github.com/jeremyhahn/go-keyset/pkg/secret/insecure"
)

// Bytes holds secret key material. The zero value is an empty secret.
type Bytes struct {
	data []byte
}

// NewBytes copies data into a new guarded container. The token forces the
// call site to acknowledge it is handling raw key material.
func NewBytes(data []byte, _ insecure.KeyAccessToken) Bytes {
	b := make([]byte, len(data))
	copy(b, data)
	return Bytes{data: b}
}

// NewRandomBytes returns n fresh bytes from the platform CSPRNG. No token
// is required: randomly generated material has not been exposed anywhere.
func NewRandomBytes(n int) (Bytes, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return Bytes{}, fmt.Errorf("secret: read random bytes: %w", err)
	}
	return Bytes{data: b}, nil
}

// Data returns a copy of the secret bytes. The token requirement makes
// every extraction site explicit.
func (b Bytes) Data(_ insecure.KeyAccessToken) []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Len returns the number of secret bytes without exposing them.
func (b Bytes) Len() int {
	return len(b.data)
}

// Equal compares two secrets in constant time. No token is required since
// only the boolean result leaves the container.
func (b Bytes) Equal(other Bytes) bool {
	return subtle.ConstantTimeCompare(b.data, other.data) == 1
}
