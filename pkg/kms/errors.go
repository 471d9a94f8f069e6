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

package kms

import "errors"

var (
	// ErrNoClient indicates no registered client supports the key URI.
	ErrNoClient = errors.New("kms: no client registered for key URI")

	// ErrInvalidKeyURI indicates a malformed or unsupported key URI.
	ErrInvalidKeyURI = errors.New("kms: invalid key URI")

	// ErrInvalidResponse indicates the remote service returned an
	// unusable payload.
	ErrInvalidResponse = errors.New("kms: invalid response from service")
)
