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

package daead

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jeremyhahn/go-keyset/pkg/crypto/siv"
	"github.com/jeremyhahn/go-keyset/pkg/registry"
	"github.com/jeremyhahn/go-keyset/pkg/secret"
	"github.com/jeremyhahn/go-keyset/pkg/secret/insecure"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// AESSIVHMACTypeURL is the type identifier of the synthetic-IV
// deterministic key type.
const AESSIVHMACTypeURL = "keyset.dev/aes-siv-hmac"

const aesSIVKeyVersion = 0

// AESSIVHMACParameters describes the deterministic AEAD configuration.
// The 64-byte combined key size is fixed by the construction.
type AESSIVHMACParameters struct {
	variant types.OutputPrefixType
}

var _ types.Parameters = (*AESSIVHMACParameters)(nil)

// NewAESSIVHMACParameters creates a validated configuration.
func NewAESSIVHMACParameters(variant types.OutputPrefixType) (*AESSIVHMACParameters, error) {
	switch variant {
	case types.TinkPrefix, types.CrunchyPrefix, types.LegacyPrefix, types.RawPrefix:
	default:
		return nil, fmt.Errorf("%w: unknown output prefix type %d", types.ErrInvalidParameters, variant)
	}
	return &AESSIVHMACParameters{variant: variant}, nil
}

func (p *AESSIVHMACParameters) OutputPrefixType() types.OutputPrefixType { return p.variant }
func (p *AESSIVHMACParameters) HasIDRequirement() bool                   { return p.variant != types.RawPrefix }
func (p *AESSIVHMACParameters) Equal(other types.Parameters) bool {
	o, ok := other.(*AESSIVHMACParameters)
	return ok && p.variant == o.variant
}

// AESSIVHMACKey is an immutable deterministic AEAD key.
type AESSIVHMACKey struct {
	params   *AESSIVHMACParameters
	keyBytes secret.Bytes
	id       uint32
	hasID    bool
}

var _ types.Key = (*AESSIVHMACKey)(nil)

// NewAESSIVHMACKey wraps the 64-byte combined key material.
func NewAESSIVHMACKey(params *AESSIVHMACParameters, keyBytes secret.Bytes, id uint32, hasID bool) (*AESSIVHMACKey, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil parameters", types.ErrInvalidParameters)
	}
	if params.HasIDRequirement() != hasID {
		return nil, fmt.Errorf("%w: id requirement mismatch for variant %v", types.ErrInvalidKey, params.variant)
	}
	if keyBytes.Len() != siv.KeySize {
		return nil, fmt.Errorf("%w: combined key length %d, want %d", types.ErrInvalidKey, keyBytes.Len(), siv.KeySize)
	}
	return &AESSIVHMACKey{params: params, keyBytes: keyBytes, id: id, hasID: hasID}, nil
}

func (k *AESSIVHMACKey) Parameters() types.Parameters  { return k.params }
func (k *AESSIVHMACKey) IDRequirement() (uint32, bool) { return k.id, k.hasID }
func (k *AESSIVHMACKey) KeyBytes() secret.Bytes        { return k.keyBytes }
func (k *AESSIVHMACKey) Equal(other types.Key) bool {
	o, ok := other.(*AESSIVHMACKey)
	return ok && k.params.Equal(o.params) && k.id == o.id && k.hasID == o.hasID &&
		k.keyBytes.Equal(o.keyBytes)
}

type aesSIVManager struct{}

var _ types.KeyManager = (*aesSIVManager)(nil)

func (aesSIVManager) TypeURL() string                        { return AESSIVHMACTypeURL }
func (aesSIVManager) KeyMaterialType() types.KeyMaterialType { return types.MaterialSymmetric }
func (aesSIVManager) FIPSLevel() types.FIPSLevel             { return types.FIPSNone }
func (aesSIVManager) ParametersType() reflect.Type {
	return reflect.TypeOf((**AESSIVHMACParameters)(nil)).Elem()
}

func (aesSIVManager) ValidateParameters(p types.Parameters) error {
	if _, ok := p.(*AESSIVHMACParameters); !ok {
		return fmt.Errorf("%w: got %T, want *AESSIVHMACParameters", types.ErrInvalidParameters, p)
	}
	return nil
}

func (aesSIVManager) ValidateKey(k types.Key) error {
	key, ok := k.(*AESSIVHMACKey)
	if !ok {
		return fmt.Errorf("%w: got %T, want *AESSIVHMACKey", types.ErrInvalidKey, k)
	}
	if key.keyBytes.Len() != siv.KeySize {
		return fmt.Errorf("%w: combined key length %d", types.ErrInvalidKey, key.keyBytes.Len())
	}
	return nil
}

func (aesSIVManager) NewKey(p types.Parameters, id uint32, hasID bool) (types.Key, error) {
	params, ok := p.(*AESSIVHMACParameters)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *AESSIVHMACParameters", types.ErrInvalidParameters, p)
	}
	kb, err := secret.NewRandomBytes(siv.KeySize)
	if err != nil {
		return nil, err
	}
	return NewAESSIVHMACKey(params, kb, id, hasID)
}

func (aesSIVManager) Primitive(k types.Key) (any, error) {
	key, ok := k.(*AESSIVHMACKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *AESSIVHMACKey", types.ErrInvalidKey, k)
	}
	c, err := siv.NewCipher(key.keyBytes.Data(insecure.KeyAccessToken{}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKey, err)
	}
	return &sivDAEAD{cipher: c}, nil
}

// sivDAEAD adapts the synthetic-IV cipher to the DeterministicAEAD
// interface.
type sivDAEAD struct {
	cipher *siv.Cipher
}

var _ types.DeterministicAEAD = (*sivDAEAD)(nil)

func (s *sivDAEAD) EncryptDeterministically(plaintext, associatedData []byte) ([]byte, error) {
	return s.cipher.Seal(plaintext, associatedData)
}

func (s *sivDAEAD) DecryptDeterministically(ciphertext, associatedData []byte) ([]byte, error) {
	pt, err := s.cipher.Open(ciphertext, associatedData)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	return pt, nil
}

// Wire record: 1:version(varint) 2:key_value(bytes).
func serializeAESSIVHMACKey(k *AESSIVHMACKey) (*types.KeyData, error) {
	var buf []byte
	if aesSIVKeyVersion != 0 {
		buf = protowire.AppendTag(buf, 1, protowire.VarintType)
		buf = protowire.AppendVarint(buf, aesSIVKeyVersion)
	}
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, k.keyBytes.Data(insecure.KeyAccessToken{}))
	return &types.KeyData{
		TypeURL:      AESSIVHMACTypeURL,
		Value:        buf,
		MaterialType: types.MaterialSymmetric,
	}, nil
}

func parseAESSIVHMACKey(kd *types.KeyData, variant types.OutputPrefixType, keyID uint32, hasID bool) (types.Key, error) {
	var version uint64
	var raw []byte
	value := kd.Value
	for len(value) > 0 {
		num, typ, n := protowire.ConsumeTag(value)
		if n < 0 {
			return nil, fmt.Errorf("%w: deterministic key record", types.ErrParse)
		}
		value = value[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(value)
			if m < 0 {
				return nil, fmt.Errorf("%w: key version", types.ErrParse)
			}
			version = v
			value = value[m:]
		case num == 2 && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(value)
			if m < 0 {
				return nil, fmt.Errorf("%w: key value", types.ErrParse)
			}
			raw = append([]byte(nil), v...)
			value = value[m:]
		default:
			return nil, fmt.Errorf("%w: unexpected field %d in key record", types.ErrParse, num)
		}
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: key record missing key value", types.ErrParse)
	}
	if version > aesSIVKeyVersion {
		return nil, fmt.Errorf("%w: deterministic key version %d", types.ErrInvalidKey, version)
	}
	params, err := NewAESSIVHMACParameters(variant)
	if err != nil {
		return nil, err
	}
	return NewAESSIVHMACKey(params, secret.NewBytes(raw, insecure.KeyAccessToken{}), keyID, hasID)
}

// RegisterAESSIVHMAC wires the deterministic key type into r.
func RegisterAESSIVHMAC(r *registry.Registry) error {
	if err := r.RegisterKeyManager(aesSIVManager{}, true); err != nil {
		return err
	}
	if err := r.RegisterKeyParser(AESSIVHMACTypeURL, parseAESSIVHMACKey); err != nil {
		return err
	}
	return registry.RegisterKeySerializerFor(r, serializeAESSIVHMACKey)
}

func init() {
	if err := RegisterAESSIVHMAC(registry.Default()); err != nil {
		panic(err)
	}
}
