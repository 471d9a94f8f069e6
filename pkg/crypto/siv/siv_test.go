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

package siv

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return key
}

func TestSealOpenRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey(t))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	tests := []struct {
		name string
		pt   []byte
		ad   []byte
	}{
		{"basic", []byte("hello world"), []byte("context")},
		{"empty plaintext", nil, []byte("context")},
		{"empty associated data", []byte("hello"), nil},
		{"both empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, err := c.Seal(tt.pt, tt.ad)
			if err != nil {
				t.Fatalf("Seal: %v", err)
			}
			got, err := c.Open(ct, tt.ad)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if !bytes.Equal(got, tt.pt) {
				t.Errorf("round trip mismatch: got %x, want %x", got, tt.pt)
			}
		})
	}
}

func TestSealDeterministic(t *testing.T) {
	c, err := NewCipher(testKey(t))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	ct1, _ := c.Seal([]byte("payload"), []byte("ad"))
	ct2, _ := c.Seal([]byte("payload"), []byte("ad"))
	if !bytes.Equal(ct1, ct2) {
		t.Error("identical inputs must produce identical ciphertext")
	}
	ct3, _ := c.Seal([]byte("payload"), []byte("other"))
	if bytes.Equal(ct1, ct3) {
		t.Error("different associated data must change ciphertext")
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	c, err := NewCipher(testKey(t))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	ct, err := c.Seal([]byte("payload"), []byte("ad"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	for i := range ct {
		mutated := append([]byte(nil), ct...)
		mutated[i] ^= 0x01
		if _, err := c.Open(mutated, []byte("ad")); err == nil {
			t.Fatalf("tampered byte %d accepted", i)
		}
	}
	if _, err := c.Open(ct, []byte("wrong")); err == nil {
		t.Error("wrong associated data accepted")
	}
	if _, err := c.Open(ct[:ivSize-1], []byte("ad")); err == nil {
		t.Error("truncated ciphertext accepted")
	}
}

func TestNewCipherRejectsBadKeySize(t *testing.T) {
	for _, n := range []int{0, 16, 32, 63, 65} {
		if _, err := NewCipher(make([]byte, n)); err == nil {
			t.Errorf("key size %d accepted", n)
		}
	}
}
