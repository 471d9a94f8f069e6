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
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"reflect"

	"github.com/jeremyhahn/go-keyset/pkg/registry"
	"github.com/jeremyhahn/go-keyset/pkg/secret"
	"github.com/jeremyhahn/go-keyset/pkg/secret/insecure"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// Type identifiers of the Ed25519 key pair. The private key record
// carries the 32-byte seed, the public record the 32-byte public key.
const (
	Ed25519TypeURL       = "keyset.dev/ed25519"
	Ed25519PublicTypeURL = "keyset.dev/ed25519-public"
)

const ed25519KeyVersion = 0

// Ed25519Parameters describes the private half of an Ed25519 signing
// pair.
type Ed25519Parameters struct {
	variant types.OutputPrefixType
}

var _ types.Parameters = (*Ed25519Parameters)(nil)

// NewEd25519Parameters creates a validated configuration.
func NewEd25519Parameters(variant types.OutputPrefixType) (*Ed25519Parameters, error) {
	if err := validateVariant(variant); err != nil {
		return nil, err
	}
	return &Ed25519Parameters{variant: variant}, nil
}

func (p *Ed25519Parameters) OutputPrefixType() types.OutputPrefixType { return p.variant }
func (p *Ed25519Parameters) HasIDRequirement() bool                   { return p.variant != types.RawPrefix }
func (p *Ed25519Parameters) Equal(other types.Parameters) bool {
	o, ok := other.(*Ed25519Parameters)
	return ok && p.variant == o.variant
}

// Ed25519PublicParameters describes the public half.
type Ed25519PublicParameters struct {
	variant types.OutputPrefixType
}

var _ types.Parameters = (*Ed25519PublicParameters)(nil)

// NewEd25519PublicParameters creates a validated configuration.
func NewEd25519PublicParameters(variant types.OutputPrefixType) (*Ed25519PublicParameters, error) {
	if err := validateVariant(variant); err != nil {
		return nil, err
	}
	return &Ed25519PublicParameters{variant: variant}, nil
}

func (p *Ed25519PublicParameters) OutputPrefixType() types.OutputPrefixType { return p.variant }
func (p *Ed25519PublicParameters) HasIDRequirement() bool                   { return p.variant != types.RawPrefix }
func (p *Ed25519PublicParameters) Equal(other types.Parameters) bool {
	o, ok := other.(*Ed25519PublicParameters)
	return ok && p.variant == o.variant
}

// Ed25519PrivateKey holds the 32-byte private seed.
type Ed25519PrivateKey struct {
	params   *Ed25519Parameters
	keyBytes secret.Bytes
	id       uint32
	hasID    bool
}

var _ types.Key = (*Ed25519PrivateKey)(nil)

// NewEd25519PrivateKey wraps a 32-byte seed.
func NewEd25519PrivateKey(params *Ed25519Parameters, keyBytes secret.Bytes, id uint32, hasID bool) (*Ed25519PrivateKey, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil parameters", types.ErrInvalidParameters)
	}
	if params.HasIDRequirement() != hasID {
		return nil, fmt.Errorf("%w: id requirement mismatch for variant %v", types.ErrInvalidKey, params.variant)
	}
	if keyBytes.Len() != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: Ed25519 seed length %d", types.ErrInvalidKey, keyBytes.Len())
	}
	return &Ed25519PrivateKey{params: params, keyBytes: keyBytes, id: id, hasID: hasID}, nil
}

func (k *Ed25519PrivateKey) Parameters() types.Parameters  { return k.params }
func (k *Ed25519PrivateKey) IDRequirement() (uint32, bool) { return k.id, k.hasID }
func (k *Ed25519PrivateKey) KeyBytes() secret.Bytes        { return k.keyBytes }
func (k *Ed25519PrivateKey) Equal(other types.Key) bool {
	o, ok := other.(*Ed25519PrivateKey)
	return ok && k.params.Equal(o.params) && k.id == o.id && k.hasID == o.hasID &&
		k.keyBytes.Equal(o.keyBytes)
}

// PublicKey derives the verification half.
func (k *Ed25519PrivateKey) PublicKey() (*Ed25519PublicKey, error) {
	priv := ed25519.NewKeyFromSeed(k.keyBytes.Data(insecure.KeyAccessToken{}))
	params, err := NewEd25519PublicParameters(k.params.variant)
	if err != nil {
		return nil, err
	}
	pub := append([]byte(nil), priv[ed25519.SeedSize:]...)
	return NewEd25519PublicKey(params, pub, k.id, k.hasID)
}

// Ed25519PublicKey holds the 32-byte public key. Not secret.
type Ed25519PublicKey struct {
	params   *Ed25519PublicParameters
	keyBytes []byte
	id       uint32
	hasID    bool
}

var _ types.Key = (*Ed25519PublicKey)(nil)

// NewEd25519PublicKey wraps a 32-byte public key.
func NewEd25519PublicKey(params *Ed25519PublicParameters, keyBytes []byte, id uint32, hasID bool) (*Ed25519PublicKey, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil parameters", types.ErrInvalidParameters)
	}
	if params.HasIDRequirement() != hasID {
		return nil, fmt.Errorf("%w: id requirement mismatch for variant %v", types.ErrInvalidKey, params.variant)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: Ed25519 public key length %d", types.ErrInvalidKey, len(keyBytes))
	}
	return &Ed25519PublicKey{params: params, keyBytes: append([]byte(nil), keyBytes...), id: id, hasID: hasID}, nil
}

func (k *Ed25519PublicKey) Parameters() types.Parameters  { return k.params }
func (k *Ed25519PublicKey) IDRequirement() (uint32, bool) { return k.id, k.hasID }

// KeyBytes returns a copy of the public key.
func (k *Ed25519PublicKey) KeyBytes() []byte { return append([]byte(nil), k.keyBytes...) }

func (k *Ed25519PublicKey) Equal(other types.Key) bool {
	o, ok := other.(*Ed25519PublicKey)
	return ok && k.params.Equal(o.params) && k.id == o.id && k.hasID == o.hasID &&
		bytes.Equal(k.keyBytes, o.keyBytes)
}

type ed25519Signer struct {
	priv ed25519.PrivateKey
}

var _ types.Signer = (*ed25519Signer)(nil)

func (s *ed25519Signer) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, data), nil
}

type ed25519Verifier struct {
	pub ed25519.PublicKey
}

var _ types.Verifier = (*ed25519Verifier)(nil)

func (v *ed25519Verifier) Verify(sig, data []byte) error {
	if !ed25519.Verify(v.pub, data, sig) {
		return types.ErrVerificationFailed
	}
	return nil
}

type ed25519PrivateManager struct{}

var _ types.PrivateKeyManager = (*ed25519PrivateManager)(nil)

func (ed25519PrivateManager) TypeURL() string { return Ed25519TypeURL }
func (ed25519PrivateManager) KeyMaterialType() types.KeyMaterialType {
	return types.MaterialAsymmetricPrivate
}
func (ed25519PrivateManager) FIPSLevel() types.FIPSLevel { return types.FIPSNone }
func (ed25519PrivateManager) ParametersType() reflect.Type {
	return reflect.TypeOf((**Ed25519Parameters)(nil)).Elem()
}

func (ed25519PrivateManager) ValidateParameters(p types.Parameters) error {
	if _, ok := p.(*Ed25519Parameters); !ok {
		return fmt.Errorf("%w: got %T, want *Ed25519Parameters", types.ErrInvalidParameters, p)
	}
	return nil
}

func (ed25519PrivateManager) ValidateKey(k types.Key) error {
	key, ok := k.(*Ed25519PrivateKey)
	if !ok {
		return fmt.Errorf("%w: got %T, want *Ed25519PrivateKey", types.ErrInvalidKey, k)
	}
	if key.keyBytes.Len() != ed25519.SeedSize {
		return fmt.Errorf("%w: Ed25519 seed length %d", types.ErrInvalidKey, key.keyBytes.Len())
	}
	return nil
}

func (ed25519PrivateManager) NewKey(p types.Parameters, id uint32, hasID bool) (types.Key, error) {
	params, ok := p.(*Ed25519Parameters)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *Ed25519Parameters", types.ErrInvalidParameters, p)
	}
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("signature: generate Ed25519 seed: %w", err)
	}
	return NewEd25519PrivateKey(params, secret.NewBytes(seed, insecure.KeyAccessToken{}), id, hasID)
}

func (ed25519PrivateManager) Primitive(k types.Key) (any, error) {
	key, ok := k.(*Ed25519PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *Ed25519PrivateKey", types.ErrInvalidKey, k)
	}
	priv := ed25519.NewKeyFromSeed(key.keyBytes.Data(insecure.KeyAccessToken{}))
	return &ed25519Signer{priv: priv}, nil
}

func (ed25519PrivateManager) PublicKey(k types.Key) (types.Key, error) {
	key, ok := k.(*Ed25519PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *Ed25519PrivateKey", types.ErrInvalidKey, k)
	}
	return key.PublicKey()
}

type ed25519PublicManager struct{}

var _ types.KeyManager = (*ed25519PublicManager)(nil)

func (ed25519PublicManager) TypeURL() string { return Ed25519PublicTypeURL }
func (ed25519PublicManager) KeyMaterialType() types.KeyMaterialType {
	return types.MaterialAsymmetricPublic
}
func (ed25519PublicManager) FIPSLevel() types.FIPSLevel { return types.FIPSNone }
func (ed25519PublicManager) ParametersType() reflect.Type {
	return reflect.TypeOf((**Ed25519PublicParameters)(nil)).Elem()
}

func (ed25519PublicManager) ValidateParameters(p types.Parameters) error {
	if _, ok := p.(*Ed25519PublicParameters); !ok {
		return fmt.Errorf("%w: got %T, want *Ed25519PublicParameters", types.ErrInvalidParameters, p)
	}
	return nil
}

func (ed25519PublicManager) ValidateKey(k types.Key) error {
	key, ok := k.(*Ed25519PublicKey)
	if !ok {
		return fmt.Errorf("%w: got %T, want *Ed25519PublicKey", types.ErrInvalidKey, k)
	}
	if len(key.keyBytes) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: Ed25519 public key length %d", types.ErrInvalidKey, len(key.keyBytes))
	}
	return nil
}

func (ed25519PublicManager) NewKey(p types.Parameters, id uint32, hasID bool) (types.Key, error) {
	return nil, fmt.Errorf("%w: Ed25519 public keys are derived, not generated", types.ErrInvalidParameters)
}

func (ed25519PublicManager) Primitive(k types.Key) (any, error) {
	key, ok := k.(*Ed25519PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *Ed25519PublicKey", types.ErrInvalidKey, k)
	}
	return &ed25519Verifier{pub: ed25519.PublicKey(key.KeyBytes())}, nil
}

func serializeEd25519PrivateKey(k *Ed25519PrivateKey) (*types.KeyData, error) {
	return &types.KeyData{
		TypeURL:      Ed25519TypeURL,
		Value:        serializeSignatureKeyRecord(ed25519KeyVersion, k.keyBytes.Data(insecure.KeyAccessToken{})),
		MaterialType: types.MaterialAsymmetricPrivate,
	}, nil
}

func parseEd25519PrivateKey(kd *types.KeyData, variant types.OutputPrefixType, keyID uint32, hasID bool) (types.Key, error) {
	raw, err := parseSignatureKeyRecord(kd.Value, ed25519KeyVersion)
	if err != nil {
		return nil, err
	}
	params, err := NewEd25519Parameters(variant)
	if err != nil {
		return nil, err
	}
	return NewEd25519PrivateKey(params, secret.NewBytes(raw, insecure.KeyAccessToken{}), keyID, hasID)
}

func serializeEd25519PublicKey(k *Ed25519PublicKey) (*types.KeyData, error) {
	return &types.KeyData{
		TypeURL:      Ed25519PublicTypeURL,
		Value:        serializeSignatureKeyRecord(ed25519KeyVersion, k.keyBytes),
		MaterialType: types.MaterialAsymmetricPublic,
	}, nil
}

func parseEd25519PublicKey(kd *types.KeyData, variant types.OutputPrefixType, keyID uint32, hasID bool) (types.Key, error) {
	raw, err := parseSignatureKeyRecord(kd.Value, ed25519KeyVersion)
	if err != nil {
		return nil, err
	}
	params, err := NewEd25519PublicParameters(variant)
	if err != nil {
		return nil, err
	}
	return NewEd25519PublicKey(params, raw, keyID, hasID)
}

// RegisterEd25519 wires the Ed25519 key pair into r.
func RegisterEd25519(r *registry.Registry) error {
	if err := r.RegisterKeyManager(ed25519PrivateManager{}, true); err != nil {
		return err
	}
	if err := r.RegisterKeyParser(Ed25519TypeURL, parseEd25519PrivateKey); err != nil {
		return err
	}
	if err := registry.RegisterKeySerializerFor(r, serializeEd25519PrivateKey); err != nil {
		return err
	}
	if err := r.RegisterKeyManager(ed25519PublicManager{}, false); err != nil {
		return err
	}
	if err := r.RegisterKeyParser(Ed25519PublicTypeURL, parseEd25519PublicKey); err != nil {
		return err
	}
	return registry.RegisterKeySerializerFor(r, serializeEd25519PublicKey)
}

func init() {
	if err := RegisterEd25519(registry.Default()); err != nil {
		panic(err)
	}
}
