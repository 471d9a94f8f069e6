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

// Package template maps stable preset names to key parameters, so
// configuration files and the CLI can name an algorithm without
// constructing parameters in code.
package template

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/jeremyhahn/go-keyset/pkg/aead"
	"github.com/jeremyhahn/go-keyset/pkg/daead"
	"github.com/jeremyhahn/go-keyset/pkg/hybrid"
	"github.com/jeremyhahn/go-keyset/pkg/signature"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// Factory produces fresh parameters for one preset.
type Factory func() (types.Parameters, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds a named preset. Re-registering the same factory under
// its existing name is a no-op; registering a different factory under
// an existing name fails.
func Register(name string, f Factory) error {
	mu.Lock()
	defer mu.Unlock()
	if existing, ok := factories[name]; ok {
		if reflect.ValueOf(existing).Pointer() == reflect.ValueOf(f).Pointer() {
			return nil
		}
		return fmt.Errorf("%w: template %q", types.ErrDuplicateRegistration, name)
	}
	factories[name] = f
	return nil
}

// Get resolves a preset name to parameters.
func Get(name string) (types.Parameters, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: template %q", types.ErrUnsupportedKeyType, name)
	}
	return f()
}

// Names returns all registered preset names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func mustRegister(name string, f Factory) {
	if err := Register(name, f); err != nil {
		panic(err)
	}
}

func init() {
	mustRegister("AES128_GCM", func() (types.Parameters, error) {
		return aead.NewAESGCMParameters(16, types.TinkPrefix)
	})
	mustRegister("AES256_GCM", func() (types.Parameters, error) {
		return aead.NewAESGCMParameters(32, types.TinkPrefix)
	})
	mustRegister("AES256_GCM_RAW", func() (types.Parameters, error) {
		return aead.NewAESGCMParameters(32, types.RawPrefix)
	})
	mustRegister("CHACHA20_POLY1305", func() (types.Parameters, error) {
		return aead.NewChaCha20Poly1305Parameters(types.TinkPrefix)
	})
	mustRegister("XCHACHA20_POLY1305", func() (types.Parameters, error) {
		return aead.NewXChaCha20Poly1305Parameters(types.TinkPrefix)
	})
	mustRegister("AES_SIV_HMAC", func() (types.Parameters, error) {
		return daead.NewAESSIVHMACParameters(types.TinkPrefix)
	})
	mustRegister("MLKEM768_HYBRID", func() (types.Parameters, error) {
		return hybrid.NewMLKEM768Parameters(types.TinkPrefix)
	})
	mustRegister("ECDSA_P256", func() (types.Parameters, error) {
		return signature.NewECDSAP256Parameters(types.TinkPrefix)
	})
	mustRegister("ECDSA_P256_RAW", func() (types.Parameters, error) {
		return signature.NewECDSAP256Parameters(types.RawPrefix)
	})
	mustRegister("ED25519", func() (types.Parameters, error) {
		return signature.NewEd25519Parameters(types.TinkPrefix)
	})
	mustRegister("ED25519_RAW", func() (types.Parameters, error) {
		return signature.NewEd25519Parameters(types.RawPrefix)
	})
}
