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
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"reflect"

	"golang.org/x/crypto/chacha20poly1305"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jeremyhahn/go-keyset/pkg/registry"
	"github.com/jeremyhahn/go-keyset/pkg/secret"
	"github.com/jeremyhahn/go-keyset/pkg/secret/insecure"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// Type identifiers of the ChaCha20-Poly1305 key family.
const (
	ChaCha20Poly1305TypeURL  = "keyset.dev/chacha20-poly1305"
	XChaCha20Poly1305TypeURL = "keyset.dev/xchacha20-poly1305"
)

const chaCha20KeyVersion = 0

// ChaCha20Poly1305Parameters describes a ChaCha20-Poly1305 configuration.
// The key size is fixed at 32 bytes, so the variant is the only degree of
// freedom.
type ChaCha20Poly1305Parameters struct {
	variant types.OutputPrefixType
}

var _ types.Parameters = (*ChaCha20Poly1305Parameters)(nil)

// NewChaCha20Poly1305Parameters creates a validated configuration.
func NewChaCha20Poly1305Parameters(variant types.OutputPrefixType) (*ChaCha20Poly1305Parameters, error) {
	if err := validateVariant(variant); err != nil {
		return nil, err
	}
	return &ChaCha20Poly1305Parameters{variant: variant}, nil
}

func (p *ChaCha20Poly1305Parameters) OutputPrefixType() types.OutputPrefixType { return p.variant }
func (p *ChaCha20Poly1305Parameters) HasIDRequirement() bool                   { return p.variant != types.RawPrefix }
func (p *ChaCha20Poly1305Parameters) Equal(other types.Parameters) bool {
	o, ok := other.(*ChaCha20Poly1305Parameters)
	return ok && p.variant == o.variant
}

// XChaCha20Poly1305Parameters describes an XChaCha20-Poly1305
// configuration.
type XChaCha20Poly1305Parameters struct {
	variant types.OutputPrefixType
}

var _ types.Parameters = (*XChaCha20Poly1305Parameters)(nil)

// NewXChaCha20Poly1305Parameters creates a validated configuration.
func NewXChaCha20Poly1305Parameters(variant types.OutputPrefixType) (*XChaCha20Poly1305Parameters, error) {
	if err := validateVariant(variant); err != nil {
		return nil, err
	}
	return &XChaCha20Poly1305Parameters{variant: variant}, nil
}

func (p *XChaCha20Poly1305Parameters) OutputPrefixType() types.OutputPrefixType { return p.variant }
func (p *XChaCha20Poly1305Parameters) HasIDRequirement() bool                   { return p.variant != types.RawPrefix }
func (p *XChaCha20Poly1305Parameters) Equal(other types.Parameters) bool {
	o, ok := other.(*XChaCha20Poly1305Parameters)
	return ok && p.variant == o.variant
}

// ChaCha20Poly1305Key is an immutable ChaCha20-Poly1305 key.
type ChaCha20Poly1305Key struct {
	params   *ChaCha20Poly1305Parameters
	keyBytes secret.Bytes
	id       uint32
	hasID    bool
}

var _ types.Key = (*ChaCha20Poly1305Key)(nil)

// NewChaCha20Poly1305Key wraps keyBytes as a ChaCha20-Poly1305 key.
func NewChaCha20Poly1305Key(params *ChaCha20Poly1305Parameters, keyBytes secret.Bytes, id uint32, hasID bool) (*ChaCha20Poly1305Key, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil parameters", types.ErrInvalidParameters)
	}
	if params.HasIDRequirement() != hasID {
		return nil, fmt.Errorf("%w: id requirement mismatch for variant %v", types.ErrInvalidKey, params.variant)
	}
	if keyBytes.Len() != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: ChaCha20-Poly1305 key length %d", types.ErrInvalidKey, keyBytes.Len())
	}
	return &ChaCha20Poly1305Key{params: params, keyBytes: keyBytes, id: id, hasID: hasID}, nil
}

func (k *ChaCha20Poly1305Key) Parameters() types.Parameters  { return k.params }
func (k *ChaCha20Poly1305Key) IDRequirement() (uint32, bool) { return k.id, k.hasID }
func (k *ChaCha20Poly1305Key) KeyBytes() secret.Bytes        { return k.keyBytes }
func (k *ChaCha20Poly1305Key) Equal(other types.Key) bool {
	o, ok := other.(*ChaCha20Poly1305Key)
	return ok && k.params.Equal(o.params) && k.id == o.id && k.hasID == o.hasID &&
		k.keyBytes.Equal(o.keyBytes)
}

// XChaCha20Poly1305Key is an immutable XChaCha20-Poly1305 key.
type XChaCha20Poly1305Key struct {
	params   *XChaCha20Poly1305Parameters
	keyBytes secret.Bytes
	id       uint32
	hasID    bool
}

var _ types.Key = (*XChaCha20Poly1305Key)(nil)

// NewXChaCha20Poly1305Key wraps keyBytes as an XChaCha20-Poly1305 key.
func NewXChaCha20Poly1305Key(params *XChaCha20Poly1305Parameters, keyBytes secret.Bytes, id uint32, hasID bool) (*XChaCha20Poly1305Key, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil parameters", types.ErrInvalidParameters)
	}
	if params.HasIDRequirement() != hasID {
		return nil, fmt.Errorf("%w: id requirement mismatch for variant %v", types.ErrInvalidKey, params.variant)
	}
	if keyBytes.Len() != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: XChaCha20-Poly1305 key length %d", types.ErrInvalidKey, keyBytes.Len())
	}
	return &XChaCha20Poly1305Key{params: params, keyBytes: keyBytes, id: id, hasID: hasID}, nil
}

func (k *XChaCha20Poly1305Key) Parameters() types.Parameters  { return k.params }
func (k *XChaCha20Poly1305Key) IDRequirement() (uint32, bool) { return k.id, k.hasID }
func (k *XChaCha20Poly1305Key) KeyBytes() secret.Bytes        { return k.keyBytes }
func (k *XChaCha20Poly1305Key) Equal(other types.Key) bool {
	o, ok := other.(*XChaCha20Poly1305Key)
	return ok && k.params.Equal(o.params) && k.id == o.id && k.hasID == o.hasID &&
		k.keyBytes.Equal(o.keyBytes)
}

// chaChaAEAD is the raw primitive shared by both variants. Ciphertext
// layout: nonce || ciphertext+tag.
type chaChaAEAD struct {
	aead      cipher.AEAD
	nonceSize int
}

var _ types.AEAD = (*chaChaAEAD)(nil)

func (c *chaChaAEAD) Encrypt(plaintext, associatedData []byte) ([]byte, error) {
	nonce := make([]byte, c.nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("aead: generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, associatedData), nil
}

func (c *chaChaAEAD) Decrypt(ciphertext, associatedData []byte) ([]byte, error) {
	if len(ciphertext) < c.nonceSize {
		return nil, types.ErrDecryptionFailed
	}
	pt, err := c.aead.Open(nil, ciphertext[:c.nonceSize], ciphertext[c.nonceSize:], associatedData)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	return pt, nil
}

type chaCha20Manager struct{}

var _ types.KeyManager = (*chaCha20Manager)(nil)

func (chaCha20Manager) TypeURL() string                        { return ChaCha20Poly1305TypeURL }
func (chaCha20Manager) KeyMaterialType() types.KeyMaterialType { return types.MaterialSymmetric }
func (chaCha20Manager) FIPSLevel() types.FIPSLevel             { return types.FIPSNone }
func (chaCha20Manager) ParametersType() reflect.Type {
	return reflect.TypeOf((**ChaCha20Poly1305Parameters)(nil)).Elem()
}

func (chaCha20Manager) ValidateParameters(p types.Parameters) error {
	if _, ok := p.(*ChaCha20Poly1305Parameters); !ok {
		return fmt.Errorf("%w: got %T, want *ChaCha20Poly1305Parameters", types.ErrInvalidParameters, p)
	}
	return nil
}

func (chaCha20Manager) ValidateKey(k types.Key) error {
	if _, ok := k.(*ChaCha20Poly1305Key); !ok {
		return fmt.Errorf("%w: got %T, want *ChaCha20Poly1305Key", types.ErrInvalidKey, k)
	}
	return nil
}

func (chaCha20Manager) NewKey(p types.Parameters, id uint32, hasID bool) (types.Key, error) {
	params, ok := p.(*ChaCha20Poly1305Parameters)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *ChaCha20Poly1305Parameters", types.ErrInvalidParameters, p)
	}
	kb, err := secret.NewRandomBytes(chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	return NewChaCha20Poly1305Key(params, kb, id, hasID)
}

func (chaCha20Manager) Primitive(k types.Key) (any, error) {
	key, ok := k.(*ChaCha20Poly1305Key)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *ChaCha20Poly1305Key", types.ErrInvalidKey, k)
	}
	a, err := chacha20poly1305.New(key.keyBytes.Data(insecure.KeyAccessToken{}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKey, err)
	}
	return &chaChaAEAD{aead: a, nonceSize: chacha20poly1305.NonceSize}, nil
}

type xChaCha20Manager struct{}

var _ types.KeyManager = (*xChaCha20Manager)(nil)

func (xChaCha20Manager) TypeURL() string                        { return XChaCha20Poly1305TypeURL }
func (xChaCha20Manager) KeyMaterialType() types.KeyMaterialType { return types.MaterialSymmetric }
func (xChaCha20Manager) FIPSLevel() types.FIPSLevel             { return types.FIPSNone }
func (xChaCha20Manager) ParametersType() reflect.Type {
	return reflect.TypeOf((**XChaCha20Poly1305Parameters)(nil)).Elem()
}

func (xChaCha20Manager) ValidateParameters(p types.Parameters) error {
	if _, ok := p.(*XChaCha20Poly1305Parameters); !ok {
		return fmt.Errorf("%w: got %T, want *XChaCha20Poly1305Parameters", types.ErrInvalidParameters, p)
	}
	return nil
}

func (xChaCha20Manager) ValidateKey(k types.Key) error {
	if _, ok := k.(*XChaCha20Poly1305Key); !ok {
		return fmt.Errorf("%w: got %T, want *XChaCha20Poly1305Key", types.ErrInvalidKey, k)
	}
	return nil
}

func (xChaCha20Manager) NewKey(p types.Parameters, id uint32, hasID bool) (types.Key, error) {
	params, ok := p.(*XChaCha20Poly1305Parameters)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *XChaCha20Poly1305Parameters", types.ErrInvalidParameters, p)
	}
	kb, err := secret.NewRandomBytes(chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	return NewXChaCha20Poly1305Key(params, kb, id, hasID)
}

func (xChaCha20Manager) Primitive(k types.Key) (any, error) {
	key, ok := k.(*XChaCha20Poly1305Key)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *XChaCha20Poly1305Key", types.ErrInvalidKey, k)
	}
	a, err := chacha20poly1305.NewX(key.keyBytes.Data(insecure.KeyAccessToken{}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKey, err)
	}
	return &chaChaAEAD{aead: a, nonceSize: chacha20poly1305.NonceSizeX}, nil
}

func serializeSymmetricKeyRecord(raw []byte) []byte {
	var buf []byte
	if chaCha20KeyVersion != 0 {
		buf = protowire.AppendTag(buf, 1, protowire.VarintType)
		buf = protowire.AppendVarint(buf, chaCha20KeyVersion)
	}
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, raw)
	return buf
}

func serializeChaCha20Key(k *ChaCha20Poly1305Key) (*types.KeyData, error) {
	return &types.KeyData{
		TypeURL:      ChaCha20Poly1305TypeURL,
		Value:        serializeSymmetricKeyRecord(k.keyBytes.Data(insecure.KeyAccessToken{})),
		MaterialType: types.MaterialSymmetric,
	}, nil
}

func parseChaCha20Key(kd *types.KeyData, variant types.OutputPrefixType, keyID uint32, hasID bool) (types.Key, error) {
	version, raw, err := parseSymmetricKeyRecord(kd.Value)
	if err != nil {
		return nil, err
	}
	if version > chaCha20KeyVersion {
		return nil, fmt.Errorf("%w: ChaCha20-Poly1305 key version %d", types.ErrInvalidKey, version)
	}
	params, err := NewChaCha20Poly1305Parameters(variant)
	if err != nil {
		return nil, err
	}
	return NewChaCha20Poly1305Key(params, secret.NewBytes(raw, insecure.KeyAccessToken{}), keyID, hasID)
}

func serializeXChaCha20Key(k *XChaCha20Poly1305Key) (*types.KeyData, error) {
	return &types.KeyData{
		TypeURL:      XChaCha20Poly1305TypeURL,
		Value:        serializeSymmetricKeyRecord(k.keyBytes.Data(insecure.KeyAccessToken{})),
		MaterialType: types.MaterialSymmetric,
	}, nil
}

func parseXChaCha20Key(kd *types.KeyData, variant types.OutputPrefixType, keyID uint32, hasID bool) (types.Key, error) {
	version, raw, err := parseSymmetricKeyRecord(kd.Value)
	if err != nil {
		return nil, err
	}
	if version > chaCha20KeyVersion {
		return nil, fmt.Errorf("%w: XChaCha20-Poly1305 key version %d", types.ErrInvalidKey, version)
	}
	params, err := NewXChaCha20Poly1305Parameters(variant)
	if err != nil {
		return nil, err
	}
	return NewXChaCha20Poly1305Key(params, secret.NewBytes(raw, insecure.KeyAccessToken{}), keyID, hasID)
}

// RegisterChaCha20Poly1305 wires both ChaCha20-Poly1305 variants into r.
func RegisterChaCha20Poly1305(r *registry.Registry) error {
	if err := r.RegisterKeyManager(chaCha20Manager{}, true); err != nil {
		return err
	}
	if err := r.RegisterKeyParser(ChaCha20Poly1305TypeURL, parseChaCha20Key); err != nil {
		return err
	}
	if err := registry.RegisterKeySerializerFor(r, serializeChaCha20Key); err != nil {
		return err
	}
	if err := r.RegisterKeyManager(xChaCha20Manager{}, true); err != nil {
		return err
	}
	if err := r.RegisterKeyParser(XChaCha20Poly1305TypeURL, parseXChaCha20Key); err != nil {
		return err
	}
	return registry.RegisterKeySerializerFor(r, serializeXChaCha20Key)
}

func init() {
	if err := RegisterChaCha20Poly1305(registry.Default()); err != nil {
		panic(err)
	}
}
