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

package hybrid_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jeremyhahn/go-keyset/pkg/hybrid"
	"github.com/jeremyhahn/go-keyset/pkg/keyset"
	"github.com/jeremyhahn/go-keyset/pkg/prefix"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

func newPair(t *testing.T, variant types.OutputPrefixType) (*keyset.Handle, types.HybridEncrypt, types.HybridDecrypt) {
	t.Helper()
	params, err := hybrid.NewMLKEM768Parameters(variant)
	if err != nil {
		t.Fatalf("NewMLKEM768Parameters: %v", err)
	}
	priv, err := keyset.Generate(params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	pub, err := priv.Public()
	if err != nil {
		t.Fatalf("Public: %v", err)
	}
	enc, err := hybrid.NewEncrypt(pub)
	if err != nil {
		t.Fatalf("NewEncrypt: %v", err)
	}
	dec, err := hybrid.NewDecrypt(priv)
	if err != nil {
		t.Fatalf("NewDecrypt: %v", err)
	}
	return priv, enc, dec
}

func TestHybridEncryptDecrypt(t *testing.T) {
	_, enc, dec := newPair(t, types.TinkPrefix)

	plaintext := []byte("post-quantum payload")
	contextInfo := []byte("session-42")

	ct, err := enc.Encrypt(plaintext, contextInfo)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(ct, plaintext) {
		t.Error("ciphertext contains the plaintext")
	}
	pt, err := dec.Decrypt(ct, contextInfo)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Errorf("round trip = %q, want %q", pt, plaintext)
	}
}

func TestHybridContextInfoBinding(t *testing.T) {
	_, enc, dec := newPair(t, types.TinkPrefix)

	ct, err := enc.Encrypt([]byte("payload"), []byte("context-a"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := dec.Decrypt(ct, []byte("context-b")); !errors.Is(err, types.ErrDecryptionFailed) {
		t.Errorf("wrong context info: err = %v, want ErrDecryptionFailed", err)
	}
	if _, err := dec.Decrypt(ct, nil); !errors.Is(err, types.ErrDecryptionFailed) {
		t.Errorf("missing context info: err = %v, want ErrDecryptionFailed", err)
	}
}

func TestHybridCiphertextPrefix(t *testing.T) {
	priv, enc, _ := newPair(t, types.TinkPrefix)

	ct, err := enc.Encrypt([]byte("payload"), nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	want, err := prefix.Compute(types.TinkPrefix, priv.PrimaryKeyID())
	if err != nil {
		t.Fatalf("prefix.Compute: %v", err)
	}
	if !bytes.Equal(ct[:prefix.Size], want) {
		t.Errorf("ciphertext prefix = %x, want %x", ct[:prefix.Size], want)
	}
}

func TestHybridForeignRecipient(t *testing.T) {
	_, enc, _ := newPair(t, types.TinkPrefix)
	_, _, otherDec := newPair(t, types.TinkPrefix)

	ct, err := enc.Encrypt([]byte("payload"), nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := otherDec.Decrypt(ct, nil); !errors.Is(err, types.ErrDecryptionFailed) {
		t.Errorf("foreign recipient: err = %v, want ErrDecryptionFailed", err)
	}
}

func TestHybridRotationTransparency(t *testing.T) {
	params, err := hybrid.NewMLKEM768Parameters(types.TinkPrefix)
	if err != nil {
		t.Fatalf("NewMLKEM768Parameters: %v", err)
	}
	priv, err := keyset.Generate(params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	pub, err := priv.Public()
	if err != nil {
		t.Fatalf("Public: %v", err)
	}
	enc, err := hybrid.NewEncrypt(pub)
	if err != nil {
		t.Fatalf("NewEncrypt: %v", err)
	}
	ct, err := enc.Encrypt([]byte("payload"), []byte("ctx"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	rotated, err := keyset.Rotate(priv, params)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	dec, err := hybrid.NewDecrypt(rotated)
	if err != nil {
		t.Fatalf("NewDecrypt: %v", err)
	}
	pt, err := dec.Decrypt(ct, []byte("ctx"))
	if err != nil {
		t.Fatalf("Decrypt after rotation: %v", err)
	}
	if string(pt) != "payload" {
		t.Errorf("round trip = %q", pt)
	}
}

func TestHybridRawVariant(t *testing.T) {
	_, enc, dec := newPair(t, types.RawPrefix)

	ct, err := enc.Encrypt([]byte("payload"), nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := dec.Decrypt(ct, nil)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(pt) != "payload" {
		t.Errorf("round trip = %q", pt)
	}
}

func TestHybridEncryptRequiresPublicKeyset(t *testing.T) {
	params, err := hybrid.NewMLKEM768Parameters(types.TinkPrefix)
	if err != nil {
		t.Fatalf("NewMLKEM768Parameters: %v", err)
	}
	priv, err := keyset.Generate(params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := hybrid.NewEncrypt(priv); err == nil {
		t.Error("NewEncrypt accepted a private keyset")
	}
}
