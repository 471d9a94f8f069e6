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

// Package prefix implements the output-prefix framing protocol: the
// deterministic byte contract that tags produced ciphertext and signatures
// with the identity of the producing key.
//
// The prefix is computed purely from the variant and the 32-bit key id. It
// never depends on key material and is computable before any cryptographic
// operation runs.
package prefix

import (
	"encoding/binary"
	"fmt"

	"github.com/jeremyhahn/go-keyset/pkg/types"
)

const (
	// Size is the length in bytes of every non-RAW output prefix.
	Size = 5

	// TinkStartByte begins every TINK-variant prefix.
	TinkStartByte = 0x01

	// LegacyStartByte begins every LEGACY and CRUNCHY variant prefix.
	LegacyStartByte = 0x00
)

// Compute returns the output prefix for the given variant and key id.
// RAW yields an empty (nil) prefix.
func Compute(variant types.OutputPrefixType, keyID uint32) ([]byte, error) {
	switch variant {
	case types.RawPrefix:
		return nil, nil
	case types.TinkPrefix:
		return compute(TinkStartByte, keyID), nil
	case types.LegacyPrefix, types.CrunchyPrefix:
		return compute(LegacyStartByte, keyID), nil
	default:
		return nil, fmt.Errorf("prefix: unknown output prefix type %d", variant)
	}
}

func compute(start byte, keyID uint32) []byte {
	out := make([]byte, Size)
	out[0] = start
	binary.BigEndian.PutUint32(out[1:], keyID)
	return out
}
