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
	"fmt"
	"reflect"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jeremyhahn/go-keyset/pkg/registry"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// Type identifiers of the remote-backed AEAD key types. The direct type
// round-trips every operation to the service; the envelope type only
// wraps a per-message data key remotely.
const (
	AEADTypeURL         = "keyset.dev/kms-aead"
	EnvelopeAEADTypeURL = "keyset.dev/kms-envelope-aead"
)

const kmsKeyVersion = 0

func validateKeyURIAndVariant(keyURI string, variant types.OutputPrefixType) error {
	if keyURI == "" {
		return fmt.Errorf("%w: empty key URI", types.ErrInvalidParameters)
	}
	switch variant {
	case types.TinkPrefix, types.CrunchyPrefix, types.LegacyPrefix, types.RawPrefix:
		return nil
	default:
		return fmt.Errorf("%w: unknown output prefix type %d", types.ErrInvalidParameters, variant)
	}
}

// AEADParameters describes a direct remote AEAD key: the key URI and
// the output-prefix variant.
type AEADParameters struct {
	keyURI  string
	variant types.OutputPrefixType
}

var _ types.Parameters = (*AEADParameters)(nil)

// NewAEADParameters creates a validated remote AEAD configuration.
func NewAEADParameters(keyURI string, variant types.OutputPrefixType) (*AEADParameters, error) {
	if err := validateKeyURIAndVariant(keyURI, variant); err != nil {
		return nil, err
	}
	return &AEADParameters{keyURI: keyURI, variant: variant}, nil
}

// KeyURI returns the remote key identifier.
func (p *AEADParameters) KeyURI() string { return p.keyURI }

func (p *AEADParameters) OutputPrefixType() types.OutputPrefixType { return p.variant }
func (p *AEADParameters) HasIDRequirement() bool                   { return p.variant != types.RawPrefix }
func (p *AEADParameters) Equal(other types.Parameters) bool {
	o, ok := other.(*AEADParameters)
	return ok && p.keyURI == o.keyURI && p.variant == o.variant
}

// EnvelopeAEADParameters describes an envelope-encryption key rooted at
// a remote key-encryption key.
type EnvelopeAEADParameters struct {
	keyURI  string
	variant types.OutputPrefixType
}

var _ types.Parameters = (*EnvelopeAEADParameters)(nil)

// NewEnvelopeAEADParameters creates a validated envelope configuration.
func NewEnvelopeAEADParameters(keyURI string, variant types.OutputPrefixType) (*EnvelopeAEADParameters, error) {
	if err := validateKeyURIAndVariant(keyURI, variant); err != nil {
		return nil, err
	}
	return &EnvelopeAEADParameters{keyURI: keyURI, variant: variant}, nil
}

// KeyURI returns the remote key-encryption-key identifier.
func (p *EnvelopeAEADParameters) KeyURI() string { return p.keyURI }

func (p *EnvelopeAEADParameters) OutputPrefixType() types.OutputPrefixType { return p.variant }
func (p *EnvelopeAEADParameters) HasIDRequirement() bool                   { return p.variant != types.RawPrefix }
func (p *EnvelopeAEADParameters) Equal(other types.Parameters) bool {
	o, ok := other.(*EnvelopeAEADParameters)
	return ok && p.keyURI == o.keyURI && p.variant == o.variant
}

// AEADKey references a direct remote key. It carries no secret
// material.
type AEADKey struct {
	params *AEADParameters
	id     uint32
	hasID  bool
}

var _ types.Key = (*AEADKey)(nil)

// NewAEADKey binds params to a keyset entry.
func NewAEADKey(params *AEADParameters, id uint32, hasID bool) (*AEADKey, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil parameters", types.ErrInvalidParameters)
	}
	if params.HasIDRequirement() != hasID {
		return nil, fmt.Errorf("%w: id requirement mismatch for variant %v", types.ErrInvalidKey, params.variant)
	}
	return &AEADKey{params: params, id: id, hasID: hasID}, nil
}

func (k *AEADKey) Parameters() types.Parameters  { return k.params }
func (k *AEADKey) IDRequirement() (uint32, bool) { return k.id, k.hasID }
func (k *AEADKey) Equal(other types.Key) bool {
	o, ok := other.(*AEADKey)
	return ok && k.params.Equal(o.params) && k.id == o.id && k.hasID == o.hasID
}

// EnvelopeAEADKey references a remote key-encryption key.
type EnvelopeAEADKey struct {
	params *EnvelopeAEADParameters
	id     uint32
	hasID  bool
}

var _ types.Key = (*EnvelopeAEADKey)(nil)

// NewEnvelopeAEADKey binds params to a keyset entry.
func NewEnvelopeAEADKey(params *EnvelopeAEADParameters, id uint32, hasID bool) (*EnvelopeAEADKey, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil parameters", types.ErrInvalidParameters)
	}
	if params.HasIDRequirement() != hasID {
		return nil, fmt.Errorf("%w: id requirement mismatch for variant %v", types.ErrInvalidKey, params.variant)
	}
	return &EnvelopeAEADKey{params: params, id: id, hasID: hasID}, nil
}

func (k *EnvelopeAEADKey) Parameters() types.Parameters  { return k.params }
func (k *EnvelopeAEADKey) IDRequirement() (uint32, bool) { return k.id, k.hasID }
func (k *EnvelopeAEADKey) Equal(other types.Key) bool {
	o, ok := other.(*EnvelopeAEADKey)
	return ok && k.params.Equal(o.params) && k.id == o.id && k.hasID == o.hasID
}

type aeadManager struct{}

var _ types.KeyManager = (*aeadManager)(nil)

func (aeadManager) TypeURL() string                        { return AEADTypeURL }
func (aeadManager) KeyMaterialType() types.KeyMaterialType { return types.MaterialRemote }
func (aeadManager) FIPSLevel() types.FIPSLevel             { return types.FIPSNone }
func (aeadManager) ParametersType() reflect.Type           { return reflect.TypeOf((**AEADParameters)(nil)).Elem() }

func (aeadManager) ValidateParameters(p types.Parameters) error {
	if _, ok := p.(*AEADParameters); !ok {
		return fmt.Errorf("%w: got %T, want *AEADParameters", types.ErrInvalidParameters, p)
	}
	return nil
}

func (aeadManager) ValidateKey(k types.Key) error {
	if _, ok := k.(*AEADKey); !ok {
		return fmt.Errorf("%w: got %T, want *AEADKey", types.ErrInvalidKey, k)
	}
	return nil
}

// NewKey references the remote key; nothing is generated locally.
func (aeadManager) NewKey(p types.Parameters, id uint32, hasID bool) (types.Key, error) {
	params, ok := p.(*AEADParameters)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *AEADParameters", types.ErrInvalidParameters, p)
	}
	return NewAEADKey(params, id, hasID)
}

func (aeadManager) Primitive(k types.Key) (any, error) {
	key, ok := k.(*AEADKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *AEADKey", types.ErrInvalidKey, k)
	}
	return remoteAEAD(key.params.keyURI)
}

type envelopeManager struct{}

var _ types.KeyManager = (*envelopeManager)(nil)

func (envelopeManager) TypeURL() string                        { return EnvelopeAEADTypeURL }
func (envelopeManager) KeyMaterialType() types.KeyMaterialType { return types.MaterialRemote }
func (envelopeManager) FIPSLevel() types.FIPSLevel             { return types.FIPSNone }
func (envelopeManager) ParametersType() reflect.Type {
	return reflect.TypeOf((**EnvelopeAEADParameters)(nil)).Elem()
}

func (envelopeManager) ValidateParameters(p types.Parameters) error {
	if _, ok := p.(*EnvelopeAEADParameters); !ok {
		return fmt.Errorf("%w: got %T, want *EnvelopeAEADParameters", types.ErrInvalidParameters, p)
	}
	return nil
}

func (envelopeManager) ValidateKey(k types.Key) error {
	if _, ok := k.(*EnvelopeAEADKey); !ok {
		return fmt.Errorf("%w: got %T, want *EnvelopeAEADKey", types.ErrInvalidKey, k)
	}
	return nil
}

func (envelopeManager) NewKey(p types.Parameters, id uint32, hasID bool) (types.Key, error) {
	params, ok := p.(*EnvelopeAEADParameters)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *EnvelopeAEADParameters", types.ErrInvalidParameters, p)
	}
	return NewEnvelopeAEADKey(params, id, hasID)
}

func (envelopeManager) Primitive(k types.Key) (any, error) {
	key, ok := k.(*EnvelopeAEADKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *EnvelopeAEADKey", types.ErrInvalidKey, k)
	}
	remote, err := remoteAEAD(key.params.keyURI)
	if err != nil {
		return nil, err
	}
	return NewEnvelopeAEAD(remote), nil
}

func remoteAEAD(keyURI string) (types.AEAD, error) {
	client, err := ClientFor(keyURI)
	if err != nil {
		return nil, err
	}
	return client.AEAD(keyURI)
}

// Wire record: 1:version(varint) 2:key_uri(bytes).
func serializeKeyURIRecord(keyURI string) []byte {
	var buf []byte
	if kmsKeyVersion != 0 {
		buf = protowire.AppendTag(buf, 1, protowire.VarintType)
		buf = protowire.AppendVarint(buf, kmsKeyVersion)
	}
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte(keyURI))
	return buf
}

func parseKeyURIRecord(value []byte) (string, error) {
	var version uint64
	var uri []byte
	for len(value) > 0 {
		num, typ, n := protowire.ConsumeTag(value)
		if n < 0 {
			return "", fmt.Errorf("%w: kms key record", types.ErrParse)
		}
		value = value[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(value)
			if m < 0 {
				return "", fmt.Errorf("%w: key version", types.ErrParse)
			}
			version = v
			value = value[m:]
		case num == 2 && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(value)
			if m < 0 {
				return "", fmt.Errorf("%w: key URI", types.ErrParse)
			}
			uri = append([]byte(nil), v...)
			value = value[m:]
		default:
			return "", fmt.Errorf("%w: unexpected field %d in key record", types.ErrParse, num)
		}
	}
	if uri == nil {
		return "", fmt.Errorf("%w: key record missing key URI", types.ErrParse)
	}
	if version > kmsKeyVersion {
		return "", fmt.Errorf("%w: kms key version %d", types.ErrInvalidKey, version)
	}
	return string(uri), nil
}

func serializeAEADKey(k *AEADKey) (*types.KeyData, error) {
	return &types.KeyData{
		TypeURL:      AEADTypeURL,
		Value:        serializeKeyURIRecord(k.params.keyURI),
		MaterialType: types.MaterialRemote,
	}, nil
}

func parseAEADKeyData(kd *types.KeyData, variant types.OutputPrefixType, keyID uint32, hasID bool) (types.Key, error) {
	uri, err := parseKeyURIRecord(kd.Value)
	if err != nil {
		return nil, err
	}
	params, err := NewAEADParameters(uri, variant)
	if err != nil {
		return nil, err
	}
	return NewAEADKey(params, keyID, hasID)
}

func serializeEnvelopeAEADKey(k *EnvelopeAEADKey) (*types.KeyData, error) {
	return &types.KeyData{
		TypeURL:      EnvelopeAEADTypeURL,
		Value:        serializeKeyURIRecord(k.params.keyURI),
		MaterialType: types.MaterialRemote,
	}, nil
}

func parseEnvelopeAEADKeyData(kd *types.KeyData, variant types.OutputPrefixType, keyID uint32, hasID bool) (types.Key, error) {
	uri, err := parseKeyURIRecord(kd.Value)
	if err != nil {
		return nil, err
	}
	params, err := NewEnvelopeAEADParameters(uri, variant)
	if err != nil {
		return nil, err
	}
	return NewEnvelopeAEADKey(params, keyID, hasID)
}

// Register wires both remote AEAD key types into r.
func Register(r *registry.Registry) error {
	if err := r.RegisterKeyManager(aeadManager{}, true); err != nil {
		return err
	}
	if err := r.RegisterKeyParser(AEADTypeURL, parseAEADKeyData); err != nil {
		return err
	}
	if err := registry.RegisterKeySerializerFor(r, serializeAEADKey); err != nil {
		return err
	}
	if err := r.RegisterKeyManager(envelopeManager{}, true); err != nil {
		return err
	}
	if err := r.RegisterKeyParser(EnvelopeAEADTypeURL, parseEnvelopeAEADKeyData); err != nil {
		return err
	}
	return registry.RegisterKeySerializerFor(r, serializeEnvelopeAEADKey)
}

func init() {
	if err := Register(registry.Default()); err != nil {
		panic(err)
	}
}
