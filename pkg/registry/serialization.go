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

package registry

import (
	"fmt"
	"reflect"

	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// KeyParser turns a KeyData envelope back into a Key. The entry-level
// output-prefix variant and key id are passed alongside because they live
// in the keyset entry on the wire, not inside the envelope value.
type KeyParser func(kd *types.KeyData, variant types.OutputPrefixType, keyID uint32, hasID bool) (types.Key, error)

// KeySerializer turns a Key into its KeyData envelope.
type KeySerializer func(k types.Key) (*types.KeyData, error)

// RegisterKeyParser registers the wire parser for typeURL. Registering the
// same function twice is a no-op; a different function for an already
// registered identifier fails with ErrDuplicateRegistration.
func (r *Registry) RegisterKeyParser(typeURL string, p KeyParser) error {
	if p == nil {
		return fmt.Errorf("%w: nil key parser", types.ErrInvalidParameters)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.parsers[typeURL]; ok {
		if reflect.ValueOf(existing).Pointer() == reflect.ValueOf(p).Pointer() {
			return nil
		}
		return fmt.Errorf("%w: parser for %q already registered", types.ErrDuplicateRegistration, typeURL)
	}
	r.parsers[typeURL] = p
	return nil
}

// RegisterKeySerializer registers the wire serializer for the concrete key
// type keyType. Duplicate semantics match RegisterKeyParser.
func (r *Registry) RegisterKeySerializer(keyType reflect.Type, s KeySerializer) error {
	if s == nil {
		return fmt.Errorf("%w: nil key serializer", types.ErrInvalidParameters)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.serializers[keyType]; ok {
		if reflect.ValueOf(existing).Pointer() == reflect.ValueOf(s).Pointer() {
			return nil
		}
		return fmt.Errorf("%w: serializer for %v already registered", types.ErrDuplicateRegistration, keyType)
	}
	r.serializers[keyType] = s
	return nil
}

// RegisterKeySerializerFor registers s as the serializer for keys of
// concrete type K.
func RegisterKeySerializerFor[K types.Key](r *Registry, s func(K) (*types.KeyData, error)) error {
	return r.RegisterKeySerializer(reflect.TypeOf((*K)(nil)).Elem(), func(k types.Key) (*types.KeyData, error) {
		typed, ok := k.(K)
		if !ok {
			return nil, fmt.Errorf("%w: serializer got %T", types.ErrInvalidKey, k)
		}
		return s(typed)
	})
}

// ParseKey parses a KeyData envelope into a Key via the parser registered
// for its type identifier. The manager for the type must exist and pass
// compliance gating, so a restricted-mode process cannot smuggle filtered
// key types in through parsing.
func (r *Registry) ParseKey(kd *types.KeyData, variant types.OutputPrefixType, keyID uint32, hasID bool) (types.Key, error) {
	if kd == nil {
		return nil, fmt.Errorf("%w: nil key data", types.ErrParse)
	}
	if _, err := r.KeyManager(kd.TypeURL); err != nil {
		return nil, err
	}

	r.mu.RLock()
	p, ok := r.parsers[kd.TypeURL]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedKeyType, kd.TypeURL)
	}
	return p(kd, variant, keyID, hasID)
}

// SerializeKey serializes k into its KeyData envelope via the serializer
// registered for its concrete type.
func (r *Registry) SerializeKey(k types.Key) (*types.KeyData, error) {
	if k == nil {
		return nil, fmt.Errorf("%w: nil key", types.ErrInvalidKey)
	}

	r.mu.RLock()
	s, ok := r.serializers[reflect.TypeOf(k)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: no serializer for %T", types.ErrUnsupportedKeyType, k)
	}
	return s(k)
}
