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

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/hashicorp/vault/api"

	"github.com/jeremyhahn/go-keyset/pkg/logging"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// VaultScheme is the URI scheme served by the Vault Transit client.
// Key URIs look like "hcvault://transit/keys/my-key": the path up to
// "/keys/" names the Transit mount, the remainder the key.
const VaultScheme = "hcvault://"

// VaultClient serves AEADs backed by HashiCorp Vault's Transit engine.
// Key material never leaves Vault; every operation is a Transit API
// call.
type VaultClient struct {
	uriPrefix string
	client    *api.Client
	log       *logging.Logger
}

var _ Client = (*VaultClient)(nil)

// NewVaultClient connects to Vault at address with token and serves all
// key URIs under uriPrefix.
func NewVaultClient(uriPrefix, address, token string) (*VaultClient, error) {
	if err := validatePrefix(uriPrefix, VaultScheme); err != nil {
		return nil, err
	}
	cfg := api.DefaultConfig()
	cfg.Address = address
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("kms: vault client: %w", err)
	}
	client.SetToken(token)
	return &VaultClient{
		uriPrefix: uriPrefix,
		client:    client,
		log:       logging.DefaultLogger(),
	}, nil
}

// SetLogger replaces the client's logger. Transit calls themselves are
// never logged; only client setup and key resolution are.
func (c *VaultClient) SetLogger(l *logging.Logger) {
	if l != nil {
		c.log = l
	}
}

func (c *VaultClient) Supports(keyURI string) bool {
	return strings.HasPrefix(strings.ToLower(keyURI), strings.ToLower(c.uriPrefix))
}

func (c *VaultClient) AEAD(keyURI string) (types.AEAD, error) {
	if !c.Supports(keyURI) {
		return nil, fmt.Errorf("%w: %q not under %q", ErrInvalidKeyURI, keyURI, c.uriPrefix)
	}
	mount, keyName, err := parseVaultKeyURI(keyURI)
	if err != nil {
		return nil, err
	}
	c.log.Debug("resolved transit key", "mount", mount, "key", keyName)
	return &vaultAEAD{
		logical:     c.client.Logical(),
		encryptPath: fmt.Sprintf("%s/encrypt/%s", mount, keyName),
		decryptPath: fmt.Sprintf("%s/decrypt/%s", mount, keyName),
	}, nil
}

func parseVaultKeyURI(keyURI string) (mount, keyName string, err error) {
	path := keyURI[len(VaultScheme):]
	i := strings.Index(path, "/keys/")
	if i <= 0 || i+len("/keys/") >= len(path) {
		return "", "", fmt.Errorf("%w: %q, want hcvault://<mount>/keys/<name>", ErrInvalidKeyURI, keyURI)
	}
	return path[:i], path[i+len("/keys/"):], nil
}

// vaultAEAD round-trips each operation through the Transit engine.
// Associated data is carried in Transit's "context" parameter, which
// the engine binds to the ciphertext for derived-key verification.
type vaultAEAD struct {
	logical     *api.Logical
	encryptPath string
	decryptPath string
}

var _ types.AEAD = (*vaultAEAD)(nil)

func (a *vaultAEAD) Encrypt(plaintext, associatedData []byte) ([]byte, error) {
	data := map[string]interface{}{
		"plaintext": base64.StdEncoding.EncodeToString(plaintext),
	}
	if len(associatedData) > 0 {
		data["context"] = base64.StdEncoding.EncodeToString(associatedData)
	}
	secret, err := a.logical.WriteWithContext(context.Background(), a.encryptPath, data)
	if err != nil {
		return nil, fmt.Errorf("kms: vault encrypt: %w", err)
	}
	ct, err := stringField(secret, "ciphertext")
	if err != nil {
		return nil, err
	}
	// Transit ciphertext is the "vault:v1:..." token; stored verbatim.
	return []byte(ct), nil
}

func (a *vaultAEAD) Decrypt(ciphertext, associatedData []byte) ([]byte, error) {
	data := map[string]interface{}{
		"ciphertext": string(ciphertext),
	}
	if len(associatedData) > 0 {
		data["context"] = base64.StdEncoding.EncodeToString(associatedData)
	}
	secret, err := a.logical.WriteWithContext(context.Background(), a.decryptPath, data)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	encoded, err := stringField(secret, "plaintext")
	if err != nil {
		return nil, err
	}
	pt, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: plaintext encoding", ErrInvalidResponse)
	}
	return pt, nil
}

func stringField(secret *api.Secret, field string) (string, error) {
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: empty secret", ErrInvalidResponse)
	}
	v, ok := secret.Data[field]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrInvalidResponse, field)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T, want string", ErrInvalidResponse, field, v)
	}
	return s, nil
}
