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

package signature

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jeremyhahn/go-keyset/pkg/registry"
	"github.com/jeremyhahn/go-keyset/pkg/secret"
	"github.com/jeremyhahn/go-keyset/pkg/secret/insecure"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// Type identifiers of the ECDSA P-256 key pair. Signatures are ASN.1
// DER over SHA-256 digests.
const (
	ECDSAP256TypeURL       = "keyset.dev/ecdsa-p256"
	ECDSAP256PublicTypeURL = "keyset.dev/ecdsa-p256-public"
)

const ecdsaKeyVersion = 0

// ECDSAP256Parameters describes the private half of an ECDSA P-256
// signing pair.
type ECDSAP256Parameters struct {
	variant types.OutputPrefixType
}

var _ types.Parameters = (*ECDSAP256Parameters)(nil)

// NewECDSAP256Parameters creates a validated configuration.
func NewECDSAP256Parameters(variant types.OutputPrefixType) (*ECDSAP256Parameters, error) {
	if err := validateVariant(variant); err != nil {
		return nil, err
	}
	return &ECDSAP256Parameters{variant: variant}, nil
}

func (p *ECDSAP256Parameters) OutputPrefixType() types.OutputPrefixType { return p.variant }
func (p *ECDSAP256Parameters) HasIDRequirement() bool                   { return p.variant != types.RawPrefix }
func (p *ECDSAP256Parameters) Equal(other types.Parameters) bool {
	o, ok := other.(*ECDSAP256Parameters)
	return ok && p.variant == o.variant
}

// ECDSAP256PublicParameters describes the public half.
type ECDSAP256PublicParameters struct {
	variant types.OutputPrefixType
}

var _ types.Parameters = (*ECDSAP256PublicParameters)(nil)

// NewECDSAP256PublicParameters creates a validated configuration.
func NewECDSAP256PublicParameters(variant types.OutputPrefixType) (*ECDSAP256PublicParameters, error) {
	if err := validateVariant(variant); err != nil {
		return nil, err
	}
	return &ECDSAP256PublicParameters{variant: variant}, nil
}

func (p *ECDSAP256PublicParameters) OutputPrefixType() types.OutputPrefixType { return p.variant }
func (p *ECDSAP256PublicParameters) HasIDRequirement() bool                   { return p.variant != types.RawPrefix }
func (p *ECDSAP256PublicParameters) Equal(other types.Parameters) bool {
	o, ok := other.(*ECDSAP256PublicParameters)
	return ok && p.variant == o.variant
}

func validateVariant(variant types.OutputPrefixType) error {
	switch variant {
	case types.TinkPrefix, types.CrunchyPrefix, types.LegacyPrefix, types.RawPrefix:
		return nil
	default:
		return fmt.Errorf("%w: unknown output prefix type %d", types.ErrInvalidParameters, variant)
	}
}

// ECDSAP256PrivateKey holds a SEC 1 DER encoded P-256 private key.
type ECDSAP256PrivateKey struct {
	params   *ECDSAP256Parameters
	keyBytes secret.Bytes
	id       uint32
	hasID    bool
}

var _ types.Key = (*ECDSAP256PrivateKey)(nil)

// NewECDSAP256PrivateKey wraps a SEC 1 DER private key.
func NewECDSAP256PrivateKey(params *ECDSAP256Parameters, keyBytes secret.Bytes, id uint32, hasID bool) (*ECDSAP256PrivateKey, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil parameters", types.ErrInvalidParameters)
	}
	if params.HasIDRequirement() != hasID {
		return nil, fmt.Errorf("%w: id requirement mismatch for variant %v", types.ErrInvalidKey, params.variant)
	}
	if _, err := decodeECDSAPrivate(keyBytes); err != nil {
		return nil, err
	}
	return &ECDSAP256PrivateKey{params: params, keyBytes: keyBytes, id: id, hasID: hasID}, nil
}

func (k *ECDSAP256PrivateKey) Parameters() types.Parameters  { return k.params }
func (k *ECDSAP256PrivateKey) IDRequirement() (uint32, bool) { return k.id, k.hasID }
func (k *ECDSAP256PrivateKey) KeyBytes() secret.Bytes        { return k.keyBytes }
func (k *ECDSAP256PrivateKey) Equal(other types.Key) bool {
	o, ok := other.(*ECDSAP256PrivateKey)
	return ok && k.params.Equal(o.params) && k.id == o.id && k.hasID == o.hasID &&
		k.keyBytes.Equal(o.keyBytes)
}

// PublicKey derives the verification half.
func (k *ECDSAP256PrivateKey) PublicKey() (*ECDSAP256PublicKey, error) {
	priv, err := decodeECDSAPrivate(k.keyBytes)
	if err != nil {
		return nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKey, err)
	}
	params, err := NewECDSAP256PublicParameters(k.params.variant)
	if err != nil {
		return nil, err
	}
	return NewECDSAP256PublicKey(params, pubDER, k.id, k.hasID)
}

func decodeECDSAPrivate(kb secret.Bytes) (*ecdsa.PrivateKey, error) {
	priv, err := x509.ParseECPrivateKey(kb.Data(insecure.KeyAccessToken{}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKey, err)
	}
	if priv.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: curve %s, want P-256", types.ErrInvalidKey, priv.Curve.Params().Name)
	}
	return priv, nil
}

// ECDSAP256PublicKey holds a PKIX DER encoded P-256 public key. The key
// bytes are not secret.
type ECDSAP256PublicKey struct {
	params   *ECDSAP256PublicParameters
	keyBytes []byte
	id       uint32
	hasID    bool
}

var _ types.Key = (*ECDSAP256PublicKey)(nil)

// NewECDSAP256PublicKey wraps a PKIX DER public key.
func NewECDSAP256PublicKey(params *ECDSAP256PublicParameters, keyBytes []byte, id uint32, hasID bool) (*ECDSAP256PublicKey, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil parameters", types.ErrInvalidParameters)
	}
	if params.HasIDRequirement() != hasID {
		return nil, fmt.Errorf("%w: id requirement mismatch for variant %v", types.ErrInvalidKey, params.variant)
	}
	if _, err := decodeECDSAPublic(keyBytes); err != nil {
		return nil, err
	}
	return &ECDSAP256PublicKey{params: params, keyBytes: append([]byte(nil), keyBytes...), id: id, hasID: hasID}, nil
}

func (k *ECDSAP256PublicKey) Parameters() types.Parameters  { return k.params }
func (k *ECDSAP256PublicKey) IDRequirement() (uint32, bool) { return k.id, k.hasID }

// KeyBytes returns a copy of the PKIX DER encoding.
func (k *ECDSAP256PublicKey) KeyBytes() []byte { return append([]byte(nil), k.keyBytes...) }

func (k *ECDSAP256PublicKey) Equal(other types.Key) bool {
	o, ok := other.(*ECDSAP256PublicKey)
	return ok && k.params.Equal(o.params) && k.id == o.id && k.hasID == o.hasID &&
		bytes.Equal(k.keyBytes, o.keyBytes)
}

func decodeECDSAPublic(der []byte) (*ecdsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKey, err)
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *ecdsa.PublicKey", types.ErrInvalidKey, pub)
	}
	if ecPub.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: curve %s, want P-256", types.ErrInvalidKey, ecPub.Curve.Params().Name)
	}
	return ecPub, nil
}

type ecdsaSigner struct {
	priv *ecdsa.PrivateKey
}

var _ types.Signer = (*ecdsaSigner)(nil)

func (s *ecdsaSigner) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	return ecdsa.SignASN1(rand.Reader, s.priv, digest[:])
}

type ecdsaVerifier struct {
	pub *ecdsa.PublicKey
}

var _ types.Verifier = (*ecdsaVerifier)(nil)

func (v *ecdsaVerifier) Verify(sig, data []byte) error {
	digest := sha256.Sum256(data)
	if !ecdsa.VerifyASN1(v.pub, digest[:], sig) {
		return types.ErrVerificationFailed
	}
	return nil
}

type ecdsaPrivateManager struct{}

var _ types.PrivateKeyManager = (*ecdsaPrivateManager)(nil)

func (ecdsaPrivateManager) TypeURL() string { return ECDSAP256TypeURL }
func (ecdsaPrivateManager) KeyMaterialType() types.KeyMaterialType {
	return types.MaterialAsymmetricPrivate
}
func (ecdsaPrivateManager) FIPSLevel() types.FIPSLevel { return types.FIPS140_2 }
func (ecdsaPrivateManager) ParametersType() reflect.Type {
	return reflect.TypeOf((**ECDSAP256Parameters)(nil)).Elem()
}

func (ecdsaPrivateManager) ValidateParameters(p types.Parameters) error {
	if _, ok := p.(*ECDSAP256Parameters); !ok {
		return fmt.Errorf("%w: got %T, want *ECDSAP256Parameters", types.ErrInvalidParameters, p)
	}
	return nil
}

func (ecdsaPrivateManager) ValidateKey(k types.Key) error {
	key, ok := k.(*ECDSAP256PrivateKey)
	if !ok {
		return fmt.Errorf("%w: got %T, want *ECDSAP256PrivateKey", types.ErrInvalidKey, k)
	}
	_, err := decodeECDSAPrivate(key.keyBytes)
	return err
}

func (ecdsaPrivateManager) NewKey(p types.Parameters, id uint32, hasID bool) (types.Key, error) {
	params, ok := p.(*ECDSAP256Parameters)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *ECDSAP256Parameters", types.ErrInvalidParameters, p)
	}
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("signature: generate P-256 key: %w", err)
	}
	der, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("signature: marshal P-256 key: %w", err)
	}
	return NewECDSAP256PrivateKey(params, secret.NewBytes(der, insecure.KeyAccessToken{}), id, hasID)
}

func (ecdsaPrivateManager) Primitive(k types.Key) (any, error) {
	key, ok := k.(*ECDSAP256PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *ECDSAP256PrivateKey", types.ErrInvalidKey, k)
	}
	priv, err := decodeECDSAPrivate(key.keyBytes)
	if err != nil {
		return nil, err
	}
	return &ecdsaSigner{priv: priv}, nil
}

func (ecdsaPrivateManager) PublicKey(k types.Key) (types.Key, error) {
	key, ok := k.(*ECDSAP256PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *ECDSAP256PrivateKey", types.ErrInvalidKey, k)
	}
	return key.PublicKey()
}

type ecdsaPublicManager struct{}

var _ types.KeyManager = (*ecdsaPublicManager)(nil)

func (ecdsaPublicManager) TypeURL() string { return ECDSAP256PublicTypeURL }
func (ecdsaPublicManager) KeyMaterialType() types.KeyMaterialType {
	return types.MaterialAsymmetricPublic
}
func (ecdsaPublicManager) FIPSLevel() types.FIPSLevel { return types.FIPS140_2 }
func (ecdsaPublicManager) ParametersType() reflect.Type {
	return reflect.TypeOf((**ECDSAP256PublicParameters)(nil)).Elem()
}

func (ecdsaPublicManager) ValidateParameters(p types.Parameters) error {
	if _, ok := p.(*ECDSAP256PublicParameters); !ok {
		return fmt.Errorf("%w: got %T, want *ECDSAP256PublicParameters", types.ErrInvalidParameters, p)
	}
	return nil
}

func (ecdsaPublicManager) ValidateKey(k types.Key) error {
	key, ok := k.(*ECDSAP256PublicKey)
	if !ok {
		return fmt.Errorf("%w: got %T, want *ECDSAP256PublicKey", types.ErrInvalidKey, k)
	}
	_, err := decodeECDSAPublic(key.keyBytes)
	return err
}

func (ecdsaPublicManager) NewKey(p types.Parameters, id uint32, hasID bool) (types.Key, error) {
	return nil, fmt.Errorf("%w: P-256 public keys are derived, not generated", types.ErrInvalidParameters)
}

func (ecdsaPublicManager) Primitive(k types.Key) (any, error) {
	key, ok := k.(*ECDSAP256PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *ECDSAP256PublicKey", types.ErrInvalidKey, k)
	}
	pub, err := decodeECDSAPublic(key.keyBytes)
	if err != nil {
		return nil, err
	}
	return &ecdsaVerifier{pub: pub}, nil
}

// Wire records: 1:version(varint) 2:key_value(bytes). key_value is SEC 1
// DER for private keys and PKIX DER for public keys.
func serializeSignatureKeyRecord(version uint64, raw []byte) []byte {
	var buf []byte
	if version != 0 {
		buf = protowire.AppendTag(buf, 1, protowire.VarintType)
		buf = protowire.AppendVarint(buf, version)
	}
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, raw)
	return buf
}

func parseSignatureKeyRecord(value []byte, maxVersion uint64) ([]byte, error) {
	var version uint64
	var raw []byte
	for len(value) > 0 {
		num, typ, n := protowire.ConsumeTag(value)
		if n < 0 {
			return nil, fmt.Errorf("%w: signature key record", types.ErrParse)
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
	if version > maxVersion {
		return nil, fmt.Errorf("%w: signature key version %d", types.ErrInvalidKey, version)
	}
	return raw, nil
}

func serializeECDSAPrivateKey(k *ECDSAP256PrivateKey) (*types.KeyData, error) {
	return &types.KeyData{
		TypeURL:      ECDSAP256TypeURL,
		Value:        serializeSignatureKeyRecord(ecdsaKeyVersion, k.keyBytes.Data(insecure.KeyAccessToken{})),
		MaterialType: types.MaterialAsymmetricPrivate,
	}, nil
}

func parseECDSAPrivateKey(kd *types.KeyData, variant types.OutputPrefixType, keyID uint32, hasID bool) (types.Key, error) {
	raw, err := parseSignatureKeyRecord(kd.Value, ecdsaKeyVersion)
	if err != nil {
		return nil, err
	}
	params, err := NewECDSAP256Parameters(variant)
	if err != nil {
		return nil, err
	}
	return NewECDSAP256PrivateKey(params, secret.NewBytes(raw, insecure.KeyAccessToken{}), keyID, hasID)
}

func serializeECDSAPublicKey(k *ECDSAP256PublicKey) (*types.KeyData, error) {
	return &types.KeyData{
		TypeURL:      ECDSAP256PublicTypeURL,
		Value:        serializeSignatureKeyRecord(ecdsaKeyVersion, k.keyBytes),
		MaterialType: types.MaterialAsymmetricPublic,
	}, nil
}

func parseECDSAPublicKey(kd *types.KeyData, variant types.OutputPrefixType, keyID uint32, hasID bool) (types.Key, error) {
	raw, err := parseSignatureKeyRecord(kd.Value, ecdsaKeyVersion)
	if err != nil {
		return nil, err
	}
	params, err := NewECDSAP256PublicParameters(variant)
	if err != nil {
		return nil, err
	}
	return NewECDSAP256PublicKey(params, raw, keyID, hasID)
}

// RegisterECDSAP256 wires the ECDSA P-256 key pair into r.
func RegisterECDSAP256(r *registry.Registry) error {
	if err := r.RegisterKeyManager(ecdsaPrivateManager{}, true); err != nil {
		return err
	}
	if err := r.RegisterKeyParser(ECDSAP256TypeURL, parseECDSAPrivateKey); err != nil {
		return err
	}
	if err := registry.RegisterKeySerializerFor(r, serializeECDSAPrivateKey); err != nil {
		return err
	}
	if err := r.RegisterKeyManager(ecdsaPublicManager{}, false); err != nil {
		return err
	}
	if err := r.RegisterKeyParser(ECDSAP256PublicTypeURL, parseECDSAPublicKey); err != nil {
		return err
	}
	return registry.RegisterKeySerializerFor(r, serializeECDSAPublicKey)
}

func init() {
	if err := RegisterECDSAP256(registry.Default()); err != nil {
		panic(err)
	}
}
