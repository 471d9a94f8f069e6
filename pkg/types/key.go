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

package types

import "reflect"

// Parameters is an immutable, secret-free description of an algorithm
// configuration: key size, curve, hash, output-prefix variant. Two
// Parameters values are equal when they describe the same configuration.
//
// Parameters are used to validate existing keys and to generate fresh ones.
type Parameters interface {
	// OutputPrefixType returns the framing variant keys with these
	// parameters use to tag produced output.
	OutputPrefixType() OutputPrefixType

	// HasIDRequirement reports whether keys with these parameters must
	// be bound to a keyset entry id. Only RAW-variant keys have no id
	// requirement.
	HasIDRequirement() bool

	// Equal reports whether other describes the same configuration.
	Equal(other Parameters) bool
}

// Key is an immutable bundle of parameters, key material, and an optional
// id requirement. Concrete implementations hold secret material in
// secret.Bytes containers, so raw bytes are unreachable without a
// secret access token.
type Key interface {
	// Parameters returns the secret-free configuration of this key.
	Parameters() Parameters

	// IDRequirement returns the keyset entry id this key is bound to.
	// The second return value is false for RAW-variant keys, which may
	// live under any entry id.
	IDRequirement() (uint32, bool)

	// Equal reports whether other is the same key, including its
	// secret material. Implementations must compare secret material in
	// constant time.
	Equal(other Key) bool
}

// KeyManager is the per-algorithm extension point. Implementations bridge
// Parameters and Key values to usable primitive instances and enforce the
// semantic validity of key material. The core never special-cases any
// individual algorithm; everything algorithm-specific lives behind this
// interface.
//
// Wire serialization is deliberately not part of this contract: the
// serializer/parser pair for a type identifier is registered separately
// (see pkg/registry), keeping the wire format swappable without touching
// the manager.
type KeyManager interface {
	// TypeURL returns the globally unique, permanently stable type
	// identifier this manager serves.
	TypeURL() string

	// KeyMaterialType returns the material classification of keys this
	// manager produces.
	KeyMaterialType() KeyMaterialType

	// FIPSLevel returns the compliance tag used by restricted-mode
	// registry filtering.
	FIPSLevel() FIPSLevel

	// ParametersType returns the concrete Go type of this manager's
	// Parameters implementation. The registry uses it to route a
	// Parameters or Key value back to its manager.
	ParametersType() reflect.Type

	// ValidateParameters checks the semantic validity of a
	// configuration (key size, curve, variant).
	ValidateParameters(p Parameters) error

	// ValidateKey checks the semantic validity of key material against
	// its parameters.
	ValidateKey(k Key) error

	// NewKey creates a fresh key from p using a cryptographically
	// secure random source. When p carries an id requirement the new
	// key is bound to id; otherwise id is ignored and hasID is false.
	NewKey(p Parameters, id uint32, hasID bool) (Key, error)

	// Primitive derives a usable primitive instance from k. The
	// returned value implements one of the capability interfaces in
	// this package. Implementations may self-test freshly derived
	// primitives before returning them.
	Primitive(k Key) (any, error)
}

// PrivateKeyManager is implemented by managers of asymmetric private key
// types. It supports the public-only keyset projection.
type PrivateKeyManager interface {
	KeyManager

	// PublicKey returns the public key corresponding to the private
	// key k, preserving the id requirement.
	PublicKey(k Key) (Key, error)
}
