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

package daead_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jeremyhahn/go-keyset/pkg/daead"
	"github.com/jeremyhahn/go-keyset/pkg/keyset"
	"github.com/jeremyhahn/go-keyset/pkg/prefix"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

func newDAEAD(t *testing.T, variant types.OutputPrefixType) (*keyset.Handle, types.DeterministicAEAD) {
	t.Helper()
	params, err := daead.NewAESSIVHMACParameters(variant)
	if err != nil {
		t.Fatalf("NewAESSIVHMACParameters: %v", err)
	}
	h, err := keyset.Generate(params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	d, err := daead.New(h)
	if err != nil {
		t.Fatalf("daead.New: %v", err)
	}
	return h, d
}

func TestDeterministicEncryptDecrypt(t *testing.T) {
	_, d := newDAEAD(t, types.TinkPrefix)

	plaintext := []byte("index me")
	ad := []byte("column:email")

	ct1, err := d.EncryptDeterministically(plaintext, ad)
	if err != nil {
		t.Fatalf("EncryptDeterministically: %v", err)
	}
	ct2, err := d.EncryptDeterministically(plaintext, ad)
	if err != nil {
		t.Fatalf("EncryptDeterministically: %v", err)
	}
	if !bytes.Equal(ct1, ct2) {
		t.Error("equal inputs produced different ciphertexts")
	}

	pt, err := d.DecryptDeterministically(ct1, ad)
	if err != nil {
		t.Fatalf("DecryptDeterministically: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Errorf("round trip = %q, want %q", pt, plaintext)
	}
}

func TestDeterministicCiphertextVariesWithInput(t *testing.T) {
	_, d := newDAEAD(t, types.TinkPrefix)

	base, err := d.EncryptDeterministically([]byte("value"), []byte("ad"))
	if err != nil {
		t.Fatalf("EncryptDeterministically: %v", err)
	}
	otherPT, err := d.EncryptDeterministically([]byte("Value"), []byte("ad"))
	if err != nil {
		t.Fatalf("EncryptDeterministically: %v", err)
	}
	otherAD, err := d.EncryptDeterministically([]byte("value"), []byte("AD"))
	if err != nil {
		t.Fatalf("EncryptDeterministically: %v", err)
	}
	if bytes.Equal(base, otherPT) {
		t.Error("different plaintexts produced equal ciphertexts")
	}
	if bytes.Equal(base, otherAD) {
		t.Error("different associated data produced equal ciphertexts")
	}

	if _, err := d.DecryptDeterministically(base, []byte("AD")); !errors.Is(err, types.ErrDecryptionFailed) {
		t.Errorf("wrong associated data: err = %v, want ErrDecryptionFailed", err)
	}
}

func TestDeterministicPrefixDispatch(t *testing.T) {
	h, d := newDAEAD(t, types.TinkPrefix)

	ct, err := d.EncryptDeterministically([]byte("value"), nil)
	if err != nil {
		t.Fatalf("EncryptDeterministically: %v", err)
	}
	want, err := prefix.Compute(types.TinkPrefix, h.PrimaryKeyID())
	if err != nil {
		t.Fatalf("prefix.Compute: %v", err)
	}
	if !bytes.Equal(ct[:prefix.Size], want) {
		t.Errorf("ciphertext prefix = %x, want %x", ct[:prefix.Size], want)
	}
}

func TestDeterministicRotationTransparency(t *testing.T) {
	params, err := daead.NewAESSIVHMACParameters(types.TinkPrefix)
	if err != nil {
		t.Fatalf("NewAESSIVHMACParameters: %v", err)
	}
	h, err := keyset.Generate(params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	d, err := daead.New(h)
	if err != nil {
		t.Fatalf("daead.New: %v", err)
	}
	ct, err := d.EncryptDeterministically([]byte("sticky"), nil)
	if err != nil {
		t.Fatalf("EncryptDeterministically: %v", err)
	}

	rotated, err := keyset.Rotate(h, params)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	fresh, err := daead.New(rotated)
	if err != nil {
		t.Fatalf("daead.New: %v", err)
	}
	pt, err := fresh.DecryptDeterministically(ct, nil)
	if err != nil {
		t.Fatalf("DecryptDeterministically after rotation: %v", err)
	}
	if string(pt) != "sticky" {
		t.Errorf("round trip = %q", pt)
	}
}

func TestDeterministicForeignKeyset(t *testing.T) {
	_, d1 := newDAEAD(t, types.TinkPrefix)
	_, d2 := newDAEAD(t, types.TinkPrefix)

	ct, err := d1.EncryptDeterministically([]byte("value"), nil)
	if err != nil {
		t.Fatalf("EncryptDeterministically: %v", err)
	}
	if _, err := d2.DecryptDeterministically(ct, nil); !errors.Is(err, types.ErrDecryptionFailed) {
		t.Errorf("foreign keyset: err = %v, want ErrDecryptionFailed", err)
	}
}
