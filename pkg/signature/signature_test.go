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

package signature_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jeremyhahn/go-keyset/pkg/keyset"
	"github.com/jeremyhahn/go-keyset/pkg/prefix"
	"github.com/jeremyhahn/go-keyset/pkg/signature"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

func signerVerifier(t *testing.T, params types.Parameters) (*keyset.Handle, types.Signer, types.Verifier) {
	t.Helper()
	priv, err := keyset.Generate(params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	signer, err := signature.NewSigner(priv)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	pub, err := priv.Public()
	if err != nil {
		t.Fatalf("Public: %v", err)
	}
	verifier, err := signature.NewVerifier(pub)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return priv, signer, verifier
}

func TestSignVerify(t *testing.T) {
	tests := []struct {
		name   string
		params func(types.OutputPrefixType) (types.Parameters, error)
	}{
		{"ECDSA-P256", func(v types.OutputPrefixType) (types.Parameters, error) {
			return signature.NewECDSAP256Parameters(v)
		}},
		{"Ed25519", func(v types.OutputPrefixType) (types.Parameters, error) {
			return signature.NewEd25519Parameters(v)
		}},
	}
	variants := []types.OutputPrefixType{
		types.TinkPrefix, types.CrunchyPrefix, types.LegacyPrefix, types.RawPrefix,
	}

	data := []byte("message to sign")

	for _, tc := range tests {
		for _, v := range variants {
			t.Run(tc.name+"/"+v.String(), func(t *testing.T) {
				params, err := tc.params(v)
				if err != nil {
					t.Fatalf("params: %v", err)
				}
				_, signer, verifier := signerVerifier(t, params)

				sig, err := signer.Sign(data)
				if err != nil {
					t.Fatalf("Sign: %v", err)
				}
				if err := verifier.Verify(sig, data); err != nil {
					t.Errorf("Verify: %v", err)
				}
				if err := verifier.Verify(sig, []byte("other message")); !errors.Is(err, types.ErrVerificationFailed) {
					t.Errorf("wrong data: err = %v, want ErrVerificationFailed", err)
				}
			})
		}
	}
}

func TestSignaturePrefix(t *testing.T) {
	params, err := signature.NewEd25519Parameters(types.TinkPrefix)
	if err != nil {
		t.Fatalf("NewEd25519Parameters: %v", err)
	}
	priv, signer, _ := signerVerifier(t, params)

	sig, err := signer.Sign([]byte("data"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	want, err := prefix.Compute(types.TinkPrefix, priv.PrimaryKeyID())
	if err != nil {
		t.Fatalf("prefix.Compute: %v", err)
	}
	if !bytes.Equal(sig[:prefix.Size], want) {
		t.Errorf("signature prefix = %x, want %x", sig[:prefix.Size], want)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	params, err := signature.NewEd25519Parameters(types.TinkPrefix)
	if err != nil {
		t.Fatalf("NewEd25519Parameters: %v", err)
	}
	_, signer, verifier := signerVerifier(t, params)

	data := []byte("data")
	sig, err := signer.Sign(data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	for i := range sig {
		mutated := append([]byte(nil), sig...)
		mutated[i] ^= 0x01
		if err := verifier.Verify(mutated, data); !errors.Is(err, types.ErrVerificationFailed) {
			t.Errorf("tampered byte %d: err = %v, want ErrVerificationFailed", i, err)
		}
	}
}

func TestVerifyRejectsForeignSigner(t *testing.T) {
	params, err := signature.NewECDSAP256Parameters(types.TinkPrefix)
	if err != nil {
		t.Fatalf("NewECDSAP256Parameters: %v", err)
	}
	_, signer, _ := signerVerifier(t, params)
	_, _, otherVerifier := signerVerifier(t, params)

	sig, err := signer.Sign([]byte("data"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := otherVerifier.Verify(sig, []byte("data")); !errors.Is(err, types.ErrVerificationFailed) {
		t.Errorf("foreign verifier: err = %v, want ErrVerificationFailed", err)
	}
}

func TestVerifyAfterRotation(t *testing.T) {
	params, err := signature.NewEd25519Parameters(types.TinkPrefix)
	if err != nil {
		t.Fatalf("NewEd25519Parameters: %v", err)
	}
	priv, err := keyset.Generate(params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	signer, err := signature.NewSigner(priv)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	sig, err := signer.Sign([]byte("data"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	rotated, err := keyset.Rotate(priv, params)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	pub, err := rotated.Public()
	if err != nil {
		t.Fatalf("Public: %v", err)
	}
	verifier, err := signature.NewVerifier(pub)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if err := verifier.Verify(sig, []byte("data")); err != nil {
		t.Errorf("Verify pre-rotation signature: %v", err)
	}
}

func TestLegacyVariantBindsTrailingByte(t *testing.T) {
	// LEGACY signs data||0x00, so the framed signature verifies but its
	// body is not a valid signature over the unmodified data.
	params, err := signature.NewEd25519Parameters(types.LegacyPrefix)
	if err != nil {
		t.Fatalf("NewEd25519Parameters: %v", err)
	}
	_, signer, verifier := signerVerifier(t, params)

	data := []byte("data")
	sig, err := signer.Sign(data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := verifier.Verify(sig, data); err != nil {
		t.Fatalf("Verify legacy signature: %v", err)
	}

	// Stripping the prefix leaves nothing the verifier can attribute to
	// an entry.
	if err := verifier.Verify(sig[prefix.Size:], data); !errors.Is(err, types.ErrVerificationFailed) {
		t.Errorf("stripped legacy signature: err = %v, want ErrVerificationFailed", err)
	}
}

func TestSignerRequiresPrivateKeyset(t *testing.T) {
	params, err := signature.NewEd25519Parameters(types.TinkPrefix)
	if err != nil {
		t.Fatalf("NewEd25519Parameters: %v", err)
	}
	priv, err := keyset.Generate(params)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	pub, err := priv.Public()
	if err != nil {
		t.Fatalf("Public: %v", err)
	}
	if _, err := signature.NewSigner(pub); err == nil {
		t.Error("NewSigner accepted a public keyset")
	}
}
