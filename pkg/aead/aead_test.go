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

package aead_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jeremyhahn/go-keyset/pkg/aead"
	"github.com/jeremyhahn/go-keyset/pkg/keyset"
	"github.com/jeremyhahn/go-keyset/pkg/prefix"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

func generate(t *testing.T, p types.Parameters) *keyset.Handle {
	t.Helper()
	h, err := keyset.Generate(p)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return h
}

func TestEncryptDecrypt(t *testing.T) {
	tests := []struct {
		name   string
		params func() (types.Parameters, error)
	}{
		{"AES-128-GCM TINK", func() (types.Parameters, error) {
			return aead.NewAESGCMParameters(16, types.TinkPrefix)
		}},
		{"AES-256-GCM TINK", func() (types.Parameters, error) {
			return aead.NewAESGCMParameters(32, types.TinkPrefix)
		}},
		{"AES-256-GCM CRUNCHY", func() (types.Parameters, error) {
			return aead.NewAESGCMParameters(32, types.CrunchyPrefix)
		}},
		{"AES-256-GCM RAW", func() (types.Parameters, error) {
			return aead.NewAESGCMParameters(32, types.RawPrefix)
		}},
		{"ChaCha20-Poly1305 TINK", func() (types.Parameters, error) {
			return aead.NewChaCha20Poly1305Parameters(types.TinkPrefix)
		}},
		{"XChaCha20-Poly1305 TINK", func() (types.Parameters, error) {
			return aead.NewXChaCha20Poly1305Parameters(types.TinkPrefix)
		}},
		{"XChaCha20-Poly1305 RAW", func() (types.Parameters, error) {
			return aead.NewXChaCha20Poly1305Parameters(types.RawPrefix)
		}},
	}

	plaintext := []byte("the quick brown fox")
	ad := []byte("request-context")

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			params, err := tc.params()
			if err != nil {
				t.Fatalf("params: %v", err)
			}
			a, err := aead.New(generate(t, params))
			if err != nil {
				t.Fatalf("aead.New: %v", err)
			}

			ct, err := a.Encrypt(plaintext, ad)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if bytes.Contains(ct, plaintext) {
				t.Error("ciphertext contains the plaintext")
			}
			pt, err := a.Decrypt(ct, ad)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if !bytes.Equal(pt, plaintext) {
				t.Errorf("round trip = %q, want %q", pt, plaintext)
			}

			if _, err := a.Decrypt(ct, []byte("other-context")); !errors.Is(err, types.ErrDecryptionFailed) {
				t.Errorf("wrong associated data: err = %v, want ErrDecryptionFailed", err)
			}
		})
	}
}

func TestCiphertextCarriesOutputPrefix(t *testing.T) {
	params, err := aead.NewAESGCMParameters(32, types.TinkPrefix)
	if err != nil {
		t.Fatalf("NewAESGCMParameters: %v", err)
	}
	h := generate(t, params)
	a, err := aead.New(h)
	if err != nil {
		t.Fatalf("aead.New: %v", err)
	}

	ct, err := a.Encrypt([]byte("data"), nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	want, err := prefix.Compute(types.TinkPrefix, h.PrimaryKeyID())
	if err != nil {
		t.Fatalf("prefix.Compute: %v", err)
	}
	if len(ct) < prefix.Size || !bytes.Equal(ct[:prefix.Size], want) {
		t.Errorf("ciphertext prefix = %x, want %x", ct[:prefix.Size], want)
	}
}

func TestDecryptRejectsForeignKeyset(t *testing.T) {
	params, err := aead.NewAESGCMParameters(32, types.TinkPrefix)
	if err != nil {
		t.Fatalf("NewAESGCMParameters: %v", err)
	}

	a1, err := aead.New(generate(t, params))
	if err != nil {
		t.Fatalf("aead.New: %v", err)
	}
	a2, err := aead.New(generate(t, params))
	if err != nil {
		t.Fatalf("aead.New: %v", err)
	}

	ct, err := a1.Encrypt([]byte("data"), nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := a2.Decrypt(ct, nil); !errors.Is(err, types.ErrDecryptionFailed) {
		t.Errorf("foreign keyset: err = %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	params, err := aead.NewAESGCMParameters(32, types.TinkPrefix)
	if err != nil {
		t.Fatalf("NewAESGCMParameters: %v", err)
	}
	a, err := aead.New(generate(t, params))
	if err != nil {
		t.Fatalf("aead.New: %v", err)
	}

	ct, err := a.Encrypt([]byte("data"), []byte("ad"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	for i := range ct {
		mutated := append([]byte(nil), ct...)
		mutated[i] ^= 0x01
		if _, err := a.Decrypt(mutated, []byte("ad")); err == nil {
			t.Errorf("tampered byte %d accepted", i)
		}
	}
}

func TestRotationTransparency(t *testing.T) {
	params, err := aead.NewAESGCMParameters(32, types.TinkPrefix)
	if err != nil {
		t.Fatalf("NewAESGCMParameters: %v", err)
	}
	h := generate(t, params)
	old, err := aead.New(h)
	if err != nil {
		t.Fatalf("aead.New: %v", err)
	}
	ctOld, err := old.Encrypt([]byte("before rotation"), nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	rotated, err := keyset.Rotate(h, params)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	fresh, err := aead.New(rotated)
	if err != nil {
		t.Fatalf("aead.New: %v", err)
	}

	// Old ciphertext stays readable through the rotated keyset.
	pt, err := fresh.Decrypt(ctOld, nil)
	if err != nil {
		t.Fatalf("Decrypt old ciphertext: %v", err)
	}
	if string(pt) != "before rotation" {
		t.Errorf("round trip = %q", pt)
	}

	// New ciphertext is produced under the new primary and is opaque to
	// the pre-rotation keyset.
	ctNew, err := fresh.Encrypt([]byte("after rotation"), nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	want, err := prefix.Compute(types.TinkPrefix, rotated.PrimaryKeyID())
	if err != nil {
		t.Fatalf("prefix.Compute: %v", err)
	}
	if !bytes.Equal(ctNew[:prefix.Size], want) {
		t.Errorf("new ciphertext prefix = %x, want %x", ctNew[:prefix.Size], want)
	}
	if _, err := old.Decrypt(ctNew, nil); !errors.Is(err, types.ErrDecryptionFailed) {
		t.Errorf("pre-rotation keyset decrypted post-rotation ciphertext: err = %v", err)
	}
}

func TestRawEntriesDecryptUnprefixedCiphertext(t *testing.T) {
	raw, err := aead.NewAESGCMParameters(32, types.RawPrefix)
	if err != nil {
		t.Fatalf("NewAESGCMParameters: %v", err)
	}
	h := generate(t, raw)
	a, err := aead.New(h)
	if err != nil {
		t.Fatalf("aead.New: %v", err)
	}

	ct, err := a.Encrypt([]byte("data"), nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	// RAW framing: nonce plus ciphertext and tag only, no prefix.
	const nonceSize, tagSize = 12, 16
	if len(ct) != nonceSize+len("data")+tagSize {
		t.Errorf("RAW ciphertext length = %d, want %d", len(ct), nonceSize+len("data")+tagSize)
	}

	// After rotating to a TINK primary, the RAW entry still serves as the
	// fallback for unprefixed ciphertext.
	tink, err := aead.NewAESGCMParameters(32, types.TinkPrefix)
	if err != nil {
		t.Fatalf("NewAESGCMParameters: %v", err)
	}
	rotated, err := keyset.Rotate(h, tink)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	fresh, err := aead.New(rotated)
	if err != nil {
		t.Fatalf("aead.New: %v", err)
	}
	pt, err := fresh.Decrypt(ct, nil)
	if err != nil {
		t.Fatalf("Decrypt RAW ciphertext after rotation: %v", err)
	}
	if string(pt) != "data" {
		t.Errorf("round trip = %q, want %q", pt, "data")
	}
}

func TestEmptyPlaintextAndAssociatedData(t *testing.T) {
	params, err := aead.NewAESGCMParameters(32, types.TinkPrefix)
	if err != nil {
		t.Fatalf("NewAESGCMParameters: %v", err)
	}
	a, err := aead.New(generate(t, params))
	if err != nil {
		t.Fatalf("aead.New: %v", err)
	}

	ct, err := a.Encrypt(nil, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := a.Decrypt(ct, nil)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if len(pt) != 0 {
		t.Errorf("round trip of empty plaintext = %q", pt)
	}
}
