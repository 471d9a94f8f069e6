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

import "errors"

// Error taxonomy roots. Packages wrap these with fmt.Errorf("...: %w", ...)
// so callers can classify failures with errors.Is regardless of which layer
// produced them.
var (
	// ErrParse is returned when serialized key or keyset bytes are
	// malformed.
	ErrParse = errors.New("keyset: malformed serialized data")

	// ErrUnsupportedKeyType is returned when no manager is registered
	// for a type identifier, or when the registered manager is filtered
	// out by restricted mode. The two cases are deliberately
	// indistinguishable.
	ErrUnsupportedKeyType = errors.New("keyset: unsupported key type")

	// ErrInvalidKey is returned when key material fails semantic
	// validation: wrong length, invalid curve point, version mismatch.
	ErrInvalidKey = errors.New("keyset: invalid key")

	// ErrInvalidParameters is returned when an algorithm configuration
	// fails semantic validation.
	ErrInvalidParameters = errors.New("keyset: invalid parameters")

	// ErrDuplicateRegistration is returned when a conflicting manager,
	// parser, or serializer is registered for an identifier that is
	// already taken. The first registration remains authoritative.
	ErrDuplicateRegistration = errors.New("keyset: duplicate registration")

	// ErrInvalidKeyset is returned when a structural keyset invariant is
	// violated: missing or duplicate primary, duplicate key id, or
	// material incompatible with the requested primitive. Never
	// auto-repaired.
	ErrInvalidKeyset = errors.New("keyset: invalid keyset")

	// ErrPermissionDenied is returned when secret material is accessed
	// without a valid token, or when key generation is attempted through
	// a manager registered with generation disabled.
	ErrPermissionDenied = errors.New("keyset: permission denied")

	// ErrDecryptionFailed is the aggregate consume-side failure for
	// decryption. It carries no information about which candidate key
	// came closest to matching.
	ErrDecryptionFailed = errors.New("keyset: decryption failed")

	// ErrVerificationFailed is the aggregate consume-side failure for
	// signature verification. Like ErrDecryptionFailed it is
	// deliberately uninformative.
	ErrVerificationFailed = errors.New("keyset: verification failed")
)
