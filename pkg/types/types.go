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

// Package types defines the shared data model of go-keyset: key status and
// output-prefix enumerations, the KeyData wire envelope, the Parameters/Key
// value-object contracts, the KeyManager extension point, and the capability
// interfaces implemented by primitives.
//
// It is the leaf package of the module. Every other package imports it, so
// nothing here may import another go-keyset package except pkg/secret.
package types

// KeyStatus describes the lifecycle state of a keyset entry.
type KeyStatus int32

const (
	// StatusUnknown is the zero value and never valid in a finalized keyset.
	StatusUnknown KeyStatus = 0

	// StatusEnabled marks a key that participates in both produce and
	// consume operations.
	StatusEnabled KeyStatus = 1

	// StatusDisabled marks a key that is retained but excluded from all
	// operations. A disabled key can be re-enabled.
	StatusDisabled KeyStatus = 2

	// StatusDestroyed marks a key whose material has been dropped. The
	// entry retains its id and metadata, and the id is permanently
	// reserved within the keyset.
	StatusDestroyed KeyStatus = 3
)

// String returns the keyset-file representation of the status.
func (s KeyStatus) String() string {
	switch s {
	case StatusEnabled:
		return "ENABLED"
	case StatusDisabled:
		return "DISABLED"
	case StatusDestroyed:
		return "DESTROYED"
	default:
		return "UNKNOWN"
	}
}

// OutputPrefixType selects the framing variant used to tag produced output
// (ciphertext, signatures) with the identity of the producing key.
//
// The numeric values are part of the wire contract and must never change.
type OutputPrefixType int32

const (
	// UnknownPrefix is the zero value and never valid.
	UnknownPrefix OutputPrefixType = 0

	// TinkPrefix prepends 0x01 followed by the big-endian 4-byte key id.
	TinkPrefix OutputPrefixType = 1

	// LegacyPrefix prepends 0x00 followed by the big-endian 4-byte key id
	// and additionally applies a historical trailing-byte adjustment to
	// signed messages. Preserved for backward compatibility only.
	LegacyPrefix OutputPrefixType = 2

	// RawPrefix produces no prefix at all.
	RawPrefix OutputPrefixType = 3

	// CrunchyPrefix prepends 0x00 followed by the big-endian 4-byte key id.
	CrunchyPrefix OutputPrefixType = 4
)

// String returns the keyset-file representation of the prefix type.
func (t OutputPrefixType) String() string {
	switch t {
	case TinkPrefix:
		return "TINK"
	case LegacyPrefix:
		return "LEGACY"
	case RawPrefix:
		return "RAW"
	case CrunchyPrefix:
		return "CRUNCHY"
	default:
		return "UNKNOWN"
	}
}

// KeyMaterialType tags the kind of key material carried by a KeyData
// envelope. The numeric values are part of the wire contract.
type KeyMaterialType int32

const (
	// MaterialUnknown is the zero value and never valid.
	MaterialUnknown KeyMaterialType = 0

	// MaterialSymmetric is secret symmetric key material.
	MaterialSymmetric KeyMaterialType = 1

	// MaterialAsymmetricPrivate is the private half of an asymmetric key.
	MaterialAsymmetricPrivate KeyMaterialType = 2

	// MaterialAsymmetricPublic is the public half of an asymmetric key.
	// Keysets containing only public material need no primary entry.
	MaterialAsymmetricPublic KeyMaterialType = 3

	// MaterialRemote is a reference to key material held by an external
	// KMS. The envelope carries no local secret bytes.
	MaterialRemote KeyMaterialType = 4
)

// String returns the keyset-file representation of the material type.
func (m KeyMaterialType) String() string {
	switch m {
	case MaterialSymmetric:
		return "SYMMETRIC"
	case MaterialAsymmetricPrivate:
		return "ASYMMETRIC_PRIVATE"
	case MaterialAsymmetricPublic:
		return "ASYMMETRIC_PUBLIC"
	case MaterialRemote:
		return "REMOTE"
	default:
		return "UNKNOWN"
	}
}

// FIPSLevel is the compliance tag reported by a key type manager. When the
// registry operates in restricted mode, managers below the required level
// are filtered from lookup as if they were never registered.
type FIPSLevel int

const (
	// FIPSNone marks algorithms with no compliance claim.
	FIPSNone FIPSLevel = iota

	// FIPS140_2 marks algorithms approved under FIPS 140-2.
	FIPS140_2
)

// KeyDataVersion is the current version of the KeyData envelope format.
const KeyDataVersion = 0

// KeyData is the wire envelope for a single key: the only form in which key
// material is ever persisted or transmitted. Value is the type-specific
// serialized key record and is opaque to everything except the serializer
// and parser registered for TypeURL.
type KeyData struct {
	// TypeURL is the globally unique, permanently stable identifier of
	// the key type, e.g. "keyset.dev/aes-gcm".
	TypeURL string

	// Value is the serialized type-specific key record. For secret
	// material types the bytes are sensitive.
	Value []byte

	// MaterialType tags the kind of material carried in Value.
	MaterialType KeyMaterialType

	// Version is the envelope format version.
	Version uint32
}

// Clone returns a deep copy of the envelope.
func (kd *KeyData) Clone() *KeyData {
	if kd == nil {
		return nil
	}
	out := &KeyData{
		TypeURL:      kd.TypeURL,
		MaterialType: kd.MaterialType,
		Version:      kd.Version,
	}
	if kd.Value != nil {
		out.Value = make([]byte, len(kd.Value))
		copy(out.Value, kd.Value)
	}
	return out
}
