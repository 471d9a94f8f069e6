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

// Package insecure holds the access token that gates every operation
// exposing raw secret key material.
//
// The token is a capability, not a credential: there is no way to extract
// secret bytes from a secret.Bytes container, or to write a cleartext
// keyset, without a value of this type appearing at the call site. Code
// audits for raw key exposure therefore reduce to searching for imports of
// this package.
package insecure

// KeyAccessToken authorizes access to raw secret key material. The only
// way to obtain one is to construct it here, making every exposure site
// explicit and greppable.
type KeyAccessToken struct {
	_ struct{}
}
