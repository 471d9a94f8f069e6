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

package prefix

import (
	"bytes"
	"testing"

	"github.com/jeremyhahn/go-keyset/pkg/types"
)

func TestCompute_Vectors(t *testing.T) {
	tests := []struct {
		name    string
		variant types.OutputPrefixType
		keyID   uint32
		want    []byte
	}{
		{"TINK id 7", types.TinkPrefix, 7, []byte{0x01, 0x00, 0x00, 0x00, 0x07}},
		{"TINK max id", types.TinkPrefix, 0xFFFFFFFF, []byte{0x01, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"CRUNCHY id 7", types.CrunchyPrefix, 7, []byte{0x00, 0x00, 0x00, 0x00, 0x07}},
		{"LEGACY id 7", types.LegacyPrefix, 7, []byte{0x00, 0x00, 0x00, 0x00, 0x07}},
		{"TINK big-endian order", types.TinkPrefix, 0x01020304, []byte{0x01, 0x01, 0x02, 0x03, 0x04}},
		{"RAW empty", types.RawPrefix, 42, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.variant, tt.keyID)
			if err != nil {
				t.Fatalf("Compute() failed: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Compute() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestCompute_Deterministic(t *testing.T) {
	a, err := Compute(types.TinkPrefix, 12345)
	if err != nil {
		t.Fatalf("Compute() failed: %v", err)
	}
	b, err := Compute(types.TinkPrefix, 12345)
	if err != nil {
		t.Fatalf("Compute() failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("Compute() not deterministic: %x != %x", a, b)
	}
	if len(a) != Size {
		t.Errorf("prefix length = %d, want %d", len(a), Size)
	}
}

func TestCompute_UnknownVariant(t *testing.T) {
	if _, err := Compute(types.UnknownPrefix, 1); err == nil {
		t.Error("Compute() with unknown variant should fail")
	}
}
