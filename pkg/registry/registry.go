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

// Package registry maps type identifiers to key type managers and wire
// serializers. It is the plugin table behind every keyset operation:
// algorithm packages register themselves here and the keyset engine never
// references a concrete algorithm.
//
// A Registry is safe for arbitrarily many concurrent readers; registration
// is serialized against other registrations and blocks readers only for
// the duration of one map update. Applications normally use the
// process-wide Default() instance, but every operation is available on an
// injected instance for tests and multi-tenant setups.
package registry

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// Registry holds key type managers, wire parsers and serializers, and the
// restricted-mode flag. The zero value is not usable; call New.
type Registry struct {
	mu          sync.RWMutex
	managers    map[string]*managerRecord
	byParams    map[reflect.Type]string
	parsers     map[string]KeyParser
	serializers map[reflect.Type]KeySerializer
	restricted  atomic.Bool
}

// managerRecord is immutable after it is stored in the managers map;
// lookups may read its fields after releasing the registry lock.
type managerRecord struct {
	manager       types.KeyManager
	allowGenerate bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		managers:    make(map[string]*managerRecord),
		byParams:    make(map[reflect.Type]string),
		parsers:     make(map[string]KeyParser),
		serializers: make(map[reflect.Type]KeySerializer),
	}
}

// RegisterKeyManager registers m under its type identifier.
//
// allowGenerate controls whether NewKey may mint fresh keys through m.
// A manager registered with allowGenerate=false still parses, validates,
// and derives primitives from existing keys; this is the guard against
// accidentally generating deprecated key material.
//
// Re-registering an identical manager is a no-op, and re-registering with
// generation newly disabled narrows the existing registration. Any other
// conflict fails with ErrDuplicateRegistration and leaves the first
// registration authoritative.
func (r *Registry) RegisterKeyManager(m types.KeyManager, allowGenerate bool) error {
	if m == nil {
		return fmt.Errorf("%w: nil key manager", types.ErrInvalidParameters)
	}
	typeURL := m.TypeURL()
	if typeURL == "" {
		return fmt.Errorf("%w: empty type identifier", types.ErrInvalidParameters)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.managers[typeURL]; ok {
		if reflect.TypeOf(existing.manager) != reflect.TypeOf(m) {
			return fmt.Errorf("%w: manager for %q already registered", types.ErrDuplicateRegistration, typeURL)
		}
		if existing.allowGenerate == allowGenerate {
			return nil
		}
		if existing.allowGenerate && !allowGenerate {
			// Narrowing generation off is always permitted. Records are
			// immutable once published; narrowing installs a fresh record
			// so readers holding the old one see a consistent snapshot.
			r.managers[typeURL] = &managerRecord{manager: existing.manager}
			return nil
		}
		return fmt.Errorf("%w: cannot re-enable key generation for %q", types.ErrDuplicateRegistration, typeURL)
	}

	r.managers[typeURL] = &managerRecord{manager: m, allowGenerate: allowGenerate}
	r.byParams[m.ParametersType()] = typeURL
	return nil
}

// KeyManager returns the manager registered for typeURL. In restricted
// mode, managers below FIPS140_2 are reported as not found, exactly as if
// they were never registered.
func (r *Registry) KeyManager(typeURL string) (types.KeyManager, error) {
	r.mu.RLock()
	rec, ok := r.managers[typeURL]
	r.mu.RUnlock()

	if !ok || !r.permitted(rec.manager) {
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedKeyType, typeURL)
	}
	return rec.manager, nil
}

// KeyManagerFor returns the manager whose Parameters implementation
// matches the concrete type of p.
func (r *Registry) KeyManagerFor(p types.Parameters) (types.KeyManager, error) {
	rec, err := r.recordFor(p)
	if err != nil {
		return nil, err
	}
	return rec.manager, nil
}

// NewKey creates a fresh key from p through its manager, honoring the
// manager's allow-generate flag. Generation through a generation-disabled
// manager fails with ErrPermissionDenied.
func (r *Registry) NewKey(p types.Parameters, id uint32, hasID bool) (types.Key, error) {
	rec, err := r.recordFor(p)
	if err != nil {
		return nil, err
	}
	if !rec.allowGenerate {
		return nil, fmt.Errorf("%w: key generation disabled for %q",
			types.ErrPermissionDenied, rec.manager.TypeURL())
	}
	if err := rec.manager.ValidateParameters(p); err != nil {
		return nil, err
	}
	return rec.manager.NewKey(p, id, hasID)
}

// Primitive validates k through its manager and derives a primitive
// instance from it.
func (r *Registry) Primitive(k types.Key) (any, error) {
	rec, err := r.recordFor(k.Parameters())
	if err != nil {
		return nil, err
	}
	if err := rec.manager.ValidateKey(k); err != nil {
		return nil, err
	}
	return rec.manager.Primitive(k)
}

// SetRestrictedMode toggles process-wide compliance gating for this
// registry. While active, lookups filter out managers whose FIPSLevel is
// below FIPS140_2.
func (r *Registry) SetRestrictedMode(on bool) {
	r.restricted.Store(on)
}

// RestrictedMode reports whether compliance gating is active.
func (r *Registry) RestrictedMode() bool {
	return r.restricted.Load()
}

func (r *Registry) permitted(m types.KeyManager) bool {
	return !r.restricted.Load() || m.FIPSLevel() >= types.FIPS140_2
}

func (r *Registry) recordFor(p types.Parameters) (*managerRecord, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil parameters", types.ErrInvalidParameters)
	}

	r.mu.RLock()
	typeURL, ok := r.byParams[reflect.TypeOf(p)]
	var rec *managerRecord
	if ok {
		rec = r.managers[typeURL]
	}
	r.mu.RUnlock()

	if rec == nil || !r.permitted(rec.manager) {
		return nil, fmt.Errorf("%w: no manager for parameters %T", types.ErrUnsupportedKeyType, p)
	}
	return rec, nil
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry. It is an ordinary Registry
// instance; libraries that need isolation should accept a *Registry
// instead of reaching for the default.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}
