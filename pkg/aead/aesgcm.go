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

package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jeremyhahn/go-keyset/pkg/registry"
	"github.com/jeremyhahn/go-keyset/pkg/secret"
	"github.com/jeremyhahn/go-keyset/pkg/secret/insecure"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// AESGCMTypeURL is the type identifier of AES-GCM keys.
const AESGCMTypeURL = "keyset.dev/aes-gcm"

const (
	aesGCMKeyVersion = 0
	gcmNonceSize     = 12
)

// AESGCMParameters describes an AES-GCM configuration: key size in bytes
// and output-prefix variant.
type AESGCMParameters struct {
	keySize int
	variant types.OutputPrefixType
}

var _ types.Parameters = (*AESGCMParameters)(nil)

// NewAESGCMParameters creates a validated AES-GCM configuration. keySize
// must be 16 or 32 bytes.
func NewAESGCMParameters(keySize int, variant types.OutputPrefixType) (*AESGCMParameters, error) {
	if keySize != 16 && keySize != 32 {
		return nil, fmt.Errorf("%w: AES-GCM key size %d, want 16 or 32", types.ErrInvalidParameters, keySize)
	}
	if err := validateVariant(variant); err != nil {
		return nil, err
	}
	return &AESGCMParameters{keySize: keySize, variant: variant}, nil
}

// KeySize returns the key size in bytes.
func (p *AESGCMParameters) KeySize() int { return p.keySize }

// OutputPrefixType returns the framing variant.
func (p *AESGCMParameters) OutputPrefixType() types.OutputPrefixType { return p.variant }

// HasIDRequirement reports whether keys must be bound to an entry id.
func (p *AESGCMParameters) HasIDRequirement() bool { return p.variant != types.RawPrefix }

// Equal reports whether other is the same configuration.
func (p *AESGCMParameters) Equal(other types.Parameters) bool {
	o, ok := other.(*AESGCMParameters)
	return ok && p.keySize == o.keySize && p.variant == o.variant
}

// AESGCMKey is an immutable AES-GCM key bound to its parameters and,
// unless RAW, to a keyset entry id.
type AESGCMKey struct {
	params   *AESGCMParameters
	keyBytes secret.Bytes
	id       uint32
	hasID    bool
}

var _ types.Key = (*AESGCMKey)(nil)

// NewAESGCMKey wraps keyBytes as an AES-GCM key. For non-RAW parameters
// hasID must be true; for RAW it must be false.
func NewAESGCMKey(params *AESGCMParameters, keyBytes secret.Bytes, id uint32, hasID bool) (*AESGCMKey, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil parameters", types.ErrInvalidParameters)
	}
	if params.HasIDRequirement() != hasID {
		return nil, fmt.Errorf("%w: id requirement mismatch for variant %v", types.ErrInvalidKey, params.variant)
	}
	if keyBytes.Len() != params.keySize {
		return nil, fmt.Errorf("%w: key length %d does not match key size %d",
			types.ErrInvalidKey, keyBytes.Len(), params.keySize)
	}
	return &AESGCMKey{params: params, keyBytes: keyBytes, id: id, hasID: hasID}, nil
}

// Parameters returns the key's configuration.
func (k *AESGCMKey) Parameters() types.Parameters { return k.params }

// IDRequirement returns the bound entry id, if any.
func (k *AESGCMKey) IDRequirement() (uint32, bool) { return k.id, k.hasID }

// KeyBytes returns the guarded key material.
func (k *AESGCMKey) KeyBytes() secret.Bytes { return k.keyBytes }

// Equal reports whether other is the same key, comparing secret material
// in constant time.
func (k *AESGCMKey) Equal(other types.Key) bool {
	o, ok := other.(*AESGCMKey)
	return ok && k.params.Equal(o.params) &&
		k.id == o.id && k.hasID == o.hasID &&
		k.keyBytes.Equal(o.keyBytes)
}

// aesGCMManager is the key type manager for AES-GCM.
type aesGCMManager struct{}

var _ types.KeyManager = (*aesGCMManager)(nil)

func (aesGCMManager) TypeURL() string                       { return AESGCMTypeURL }
func (aesGCMManager) KeyMaterialType() types.KeyMaterialType { return types.MaterialSymmetric }
func (aesGCMManager) FIPSLevel() types.FIPSLevel             { return types.FIPS140_2 }
func (aesGCMManager) ParametersType() reflect.Type           { return reflect.TypeOf((**AESGCMParameters)(nil)).Elem() }

func (aesGCMManager) ValidateParameters(p types.Parameters) error {
	if _, ok := p.(*AESGCMParameters); !ok {
		return fmt.Errorf("%w: got %T, want *AESGCMParameters", types.ErrInvalidParameters, p)
	}
	return nil
}

func (aesGCMManager) ValidateKey(k types.Key) error {
	key, ok := k.(*AESGCMKey)
	if !ok {
		return fmt.Errorf("%w: got %T, want *AESGCMKey", types.ErrInvalidKey, k)
	}
	if key.keyBytes.Len() != key.params.keySize {
		return fmt.Errorf("%w: AES-GCM key length %d", types.ErrInvalidKey, key.keyBytes.Len())
	}
	return nil
}

func (m aesGCMManager) NewKey(p types.Parameters, id uint32, hasID bool) (types.Key, error) {
	params, ok := p.(*AESGCMParameters)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *AESGCMParameters", types.ErrInvalidParameters, p)
	}
	kb, err := secret.NewRandomBytes(params.keySize)
	if err != nil {
		return nil, err
	}
	return NewAESGCMKey(params, kb, id, hasID)
}

func (m aesGCMManager) Primitive(k types.Key) (any, error) {
	key, ok := k.(*AESGCMKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *AESGCMKey", types.ErrInvalidKey, k)
	}
	block, err := aes.NewCipher(key.keyBytes.Data(insecure.KeyAccessToken{}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKey, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKey, err)
	}
	return &gcmAEAD{aead: gcm}, nil
}

// gcmAEAD is the raw AES-GCM primitive. Ciphertext layout: nonce ||
// ciphertext+tag.
type gcmAEAD struct {
	aead cipher.AEAD
}

var _ types.AEAD = (*gcmAEAD)(nil)

func (g *gcmAEAD) Encrypt(plaintext, associatedData []byte) ([]byte, error) {
	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("aead: generate nonce: %w", err)
	}
	return g.aead.Seal(nonce, nonce, plaintext, associatedData), nil
}

func (g *gcmAEAD) Decrypt(ciphertext, associatedData []byte) ([]byte, error) {
	if len(ciphertext) < gcmNonceSize {
		return nil, types.ErrDecryptionFailed
	}
	pt, err := g.aead.Open(nil, ciphertext[:gcmNonceSize], ciphertext[gcmNonceSize:], associatedData)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	return pt, nil
}

// Wire record: 1:version(varint) 2:key_value(bytes). Key size and variant
// are recovered from the value length and the entry's prefix type.
func serializeAESGCMKey(k *AESGCMKey) (*types.KeyData, error) {
	var buf []byte
	if aesGCMKeyVersion != 0 {
		buf = protowire.AppendTag(buf, 1, protowire.VarintType)
		buf = protowire.AppendVarint(buf, aesGCMKeyVersion)
	}
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, k.keyBytes.Data(insecure.KeyAccessToken{}))
	return &types.KeyData{
		TypeURL:      AESGCMTypeURL,
		Value:        buf,
		MaterialType: types.MaterialSymmetric,
	}, nil
}

func parseAESGCMKey(kd *types.KeyData, variant types.OutputPrefixType, keyID uint32, hasID bool) (types.Key, error) {
	version, raw, err := parseSymmetricKeyRecord(kd.Value)
	if err != nil {
		return nil, err
	}
	if version > aesGCMKeyVersion {
		return nil, fmt.Errorf("%w: AES-GCM key version %d", types.ErrInvalidKey, version)
	}
	params, err := NewAESGCMParameters(len(raw), variant)
	if err != nil {
		return nil, err
	}
	return NewAESGCMKey(params, secret.NewBytes(raw, insecure.KeyAccessToken{}), keyID, hasID)
}

// parseSymmetricKeyRecord decodes the shared 1:version 2:key_value record
// used by the symmetric key types in this package.
func parseSymmetricKeyRecord(value []byte) (uint64, []byte, error) {
	var version uint64
	var raw []byte
	for len(value) > 0 {
		num, typ, n := protowire.ConsumeTag(value)
		if n < 0 {
			return 0, nil, fmt.Errorf("%w: symmetric key record", types.ErrParse)
		}
		value = value[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(value)
			if m < 0 {
				return 0, nil, fmt.Errorf("%w: key version", types.ErrParse)
			}
			version = v
			value = value[m:]
		case num == 2 && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(value)
			if m < 0 {
				return 0, nil, fmt.Errorf("%w: key value", types.ErrParse)
			}
			raw = append([]byte(nil), v...)
			value = value[m:]
		default:
			return 0, nil, fmt.Errorf("%w: unexpected field %d in key record", types.ErrParse, num)
		}
	}
	if raw == nil {
		return 0, nil, fmt.Errorf("%w: key record missing key value", types.ErrParse)
	}
	return version, raw, nil
}

func validateVariant(variant types.OutputPrefixType) error {
	switch variant {
	case types.TinkPrefix, types.CrunchyPrefix, types.LegacyPrefix, types.RawPrefix:
		return nil
	default:
		return fmt.Errorf("%w: unknown output prefix type %d", types.ErrInvalidParameters, variant)
	}
}

// RegisterAESGCM wires the AES-GCM manager, parser, and serializer into r.
func RegisterAESGCM(r *registry.Registry) error {
	if err := r.RegisterKeyManager(aesGCMManager{}, true); err != nil {
		return err
	}
	if err := r.RegisterKeyParser(AESGCMTypeURL, parseAESGCMKey); err != nil {
		return err
	}
	return registry.RegisterKeySerializerFor(r, serializeAESGCMKey)
}

func init() {
	if err := RegisterAESGCM(registry.Default()); err != nil {
		panic(err)
	}
}
