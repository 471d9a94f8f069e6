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

package secret_test

import (
	"bytes"
	"testing"

	"github.com/jeremyhahn/go-keyset/pkg/secret"
	"github.com/jeremyhahn/go-keyset/pkg/secret/insecure"
)

func TestNewBytesCopiesInput(t *testing.T) {
	token := insecure.KeyAccessToken{}
	src := []byte{1, 2, 3, 4}
	b := secret.NewBytes(src, token)

	src[0] = 0xff
	if got := b.Data(token); got[0] != 1 {
		t.Error("container shares memory with the input slice")
	}

	out := b.Data(token)
	out[1] = 0xff
	if again := b.Data(token); again[1] != 2 {
		t.Error("container shares memory with an extracted copy")
	}
}

func TestZeroValueIsEmpty(t *testing.T) {
	var b secret.Bytes
	if b.Len() != 0 {
		t.Errorf("zero value Len = %d, want 0", b.Len())
	}
	if got := b.Data(insecure.KeyAccessToken{}); len(got) != 0 {
		t.Errorf("zero value Data = %v, want empty", got)
	}
}

func TestNewRandomBytes(t *testing.T) {
	a, err := secret.NewRandomBytes(32)
	if err != nil {
		t.Fatalf("NewRandomBytes: %v", err)
	}
	if a.Len() != 32 {
		t.Errorf("Len = %d, want 32", a.Len())
	}
	b, err := secret.NewRandomBytes(32)
	if err != nil {
		t.Fatalf("NewRandomBytes: %v", err)
	}
	if a.Equal(b) {
		t.Error("two random secrets are equal")
	}
}

func TestEqual(t *testing.T) {
	token := insecure.KeyAccessToken{}
	a := secret.NewBytes([]byte("key material"), token)
	b := secret.NewBytes([]byte("key material"), token)
	c := secret.NewBytes([]byte("key materiaL"), token)

	if !a.Equal(b) {
		t.Error("equal contents compare unequal")
	}
	if a.Equal(c) {
		t.Error("different contents compare equal")
	}
	if !bytes.Equal(a.Data(token), b.Data(token)) {
		t.Error("Data of equal secrets differs")
	}
}
