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

// Package kms integrates remote key-management services. A Client turns
// a key URI into an AEAD whose key material never leaves the service;
// EnvelopeAEAD layers local data-key encryption on top so only one
// remote call is paid per message. Clients for HashiCorp Vault Transit
// and AWS KMS are built in, plus an in-memory fake for tests.
package kms

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// Client provides AEADs backed by a remote key-management service.
// Implementations must be safe for concurrent use.
type Client interface {
	// Supports reports whether this client serves keyURI.
	Supports(keyURI string) bool

	// AEAD returns a remote AEAD bound to keyURI. The key material
	// stays in the service; every call round-trips to it.
	AEAD(keyURI string) (types.AEAD, error)
}

var (
	clientsMu sync.RWMutex
	clients   []Client
)

// RegisterClient adds c to the global client list. Clients are consulted
// in registration order.
func RegisterClient(c Client) {
	clientsMu.Lock()
	defer clientsMu.Unlock()
	clients = append(clients, c)
}

// ClientFor returns the first registered client supporting keyURI.
func ClientFor(keyURI string) (Client, error) {
	clientsMu.RLock()
	defer clientsMu.RUnlock()
	for _, c := range clients {
		if c.Supports(keyURI) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoClient, keyURI)
}

// ResetClients drops all registered clients. Intended for tests.
func ResetClients() {
	clientsMu.Lock()
	defer clientsMu.Unlock()
	clients = nil
}

// validatePrefix checks a client's URI prefix against its expected
// scheme.
func validatePrefix(uriPrefix, scheme string) error {
	if !strings.HasPrefix(strings.ToLower(uriPrefix), scheme) {
		return fmt.Errorf("%w: prefix %q must start with %q", ErrInvalidKeyURI, uriPrefix, scheme)
	}
	return nil
}
