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

package template

import (
	"runtime"

	"golang.org/x/sys/cpu"

	"github.com/jeremyhahn/go-keyset/pkg/aead"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// HasAESNI reports whether the CPU has hardware AES acceleration.
func HasAESNI() bool {
	switch runtime.GOARCH {
	case "amd64":
		return cpu.X86.HasAES
	case "arm64":
		return cpu.ARM64.HasAES
	default:
		return false
	}
}

// DefaultAEAD returns the best AEAD parameters for this machine:
// AES-256-GCM where AES instructions are available, ChaCha20-Poly1305
// everywhere else.
func DefaultAEAD() (types.Parameters, error) {
	if HasAESNI() {
		return aead.NewAESGCMParameters(32, types.TinkPrefix)
	}
	return aead.NewChaCha20Poly1305Parameters(types.TinkPrefix)
}
