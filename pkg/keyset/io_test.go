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

package keyset_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jeremyhahn/go-keyset/pkg/aead"
	"github.com/jeremyhahn/go-keyset/pkg/keyset"
	"github.com/jeremyhahn/go-keyset/pkg/secret/insecure"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

func masterAEAD(t *testing.T) types.AEAD {
	t.Helper()
	h, err := keyset.Generate(aesGCMParams(t, types.TinkPrefix))
	if err != nil {
		t.Fatalf("Generate master keyset: %v", err)
	}
	master, err := aead.New(h)
	if err != nil {
		t.Fatalf("aead.New: %v", err)
	}
	return master
}

func TestCleartextRoundTrip(t *testing.T) {
	h, err := keyset.Generate(aesGCMParams(t, types.TinkPrefix))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	h, err = keyset.Rotate(h, aesGCMParams(t, types.CrunchyPrefix))
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	token := insecure.KeyAccessToken{}
	var buf bytes.Buffer
	if err := keyset.WriteCleartext(h, &buf, token); err != nil {
		t.Fatalf("WriteCleartext: %v", err)
	}
	first := append([]byte(nil), buf.Bytes()...)

	parsed, err := keyset.ReadCleartext(&buf, token)
	if err != nil {
		t.Fatalf("ReadCleartext: %v", err)
	}
	if parsed.PrimaryKeyID() != h.PrimaryKeyID() {
		t.Errorf("primary = %d, want %d", parsed.PrimaryKeyID(), h.PrimaryKeyID())
	}
	if parsed.Len() != h.Len() {
		t.Errorf("Len = %d, want %d", parsed.Len(), h.Len())
	}

	// Canonical encoding: serialize(parse(b)) == b.
	var again bytes.Buffer
	if err := keyset.WriteCleartext(parsed, &again, token); err != nil {
		t.Fatalf("WriteCleartext (reserialize): %v", err)
	}
	if !bytes.Equal(first, again.Bytes()) {
		t.Error("reserialized keyset differs from original bytes")
	}
}

func TestReadCleartextRejectsGarbage(t *testing.T) {
	token := insecure.KeyAccessToken{}
	tests := []struct {
		name string
		raw  []byte
	}{
		{"truncated tag", []byte{0xff}},
		{"wrong wire types", []byte{0x0d, 0x01, 0x02, 0x03, 0x04}},
		{"random bytes", []byte("this is not a keyset")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := keyset.ReadCleartext(bytes.NewReader(tc.raw), token); err == nil {
				t.Error("ReadCleartext accepted malformed input")
			}
		})
	}
}

func TestReadCleartextValidates(t *testing.T) {
	// An empty keyset parses at the wire level but fails validation.
	token := insecure.KeyAccessToken{}
	if _, err := keyset.ReadCleartext(bytes.NewReader(nil), token); !errors.Is(err, types.ErrInvalidKeyset) {
		t.Errorf("empty keyset: err = %v, want ErrInvalidKeyset", err)
	}
}

func TestEncryptedRoundTrip(t *testing.T) {
	h, err := keyset.Generate(aesGCMParams(t, types.TinkPrefix))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	master := masterAEAD(t)

	var buf bytes.Buffer
	if err := keyset.WriteEncrypted(h, &buf, master); err != nil {
		t.Fatalf("WriteEncrypted: %v", err)
	}

	// Secret material must not appear in the container.
	token := insecure.KeyAccessToken{}
	var clear bytes.Buffer
	if err := keyset.WriteCleartext(h, &clear, token); err != nil {
		t.Fatalf("WriteCleartext: %v", err)
	}
	if bytes.Contains(buf.Bytes(), clear.Bytes()) {
		t.Error("encrypted container embeds the cleartext keyset")
	}

	parsed, err := keyset.ReadEncrypted(bytes.NewReader(buf.Bytes()), master)
	if err != nil {
		t.Fatalf("ReadEncrypted: %v", err)
	}
	if parsed.PrimaryKeyID() != h.PrimaryKeyID() {
		t.Errorf("primary = %d, want %d", parsed.PrimaryKeyID(), h.PrimaryKeyID())
	}
}

func TestReadEncryptedWrongMaster(t *testing.T) {
	h, err := keyset.Generate(aesGCMParams(t, types.TinkPrefix))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var buf bytes.Buffer
	if err := keyset.WriteEncrypted(h, &buf, masterAEAD(t)); err != nil {
		t.Fatalf("WriteEncrypted: %v", err)
	}
	if _, err := keyset.ReadEncrypted(bytes.NewReader(buf.Bytes()), masterAEAD(t)); err == nil {
		t.Error("ReadEncrypted succeeded under a different master key")
	}
}

func TestReadEncryptedTamperedContainer(t *testing.T) {
	h, err := keyset.Generate(aesGCMParams(t, types.TinkPrefix))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	master := masterAEAD(t)

	var buf bytes.Buffer
	if err := keyset.WriteEncrypted(h, &buf, master); err != nil {
		t.Fatalf("WriteEncrypted: %v", err)
	}
	// Flip a bit inside the ciphertext payload near the front of the
	// container, leaving the advisory info block alone.
	raw := buf.Bytes()
	raw[8] ^= 0x01
	if _, err := keyset.ReadEncrypted(bytes.NewReader(raw), master); err == nil {
		t.Error("ReadEncrypted accepted a tampered container")
	}
}
