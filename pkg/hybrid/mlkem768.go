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

package hybrid

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"reflect"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"golang.org/x/crypto/hkdf"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jeremyhahn/go-keyset/pkg/registry"
	"github.com/jeremyhahn/go-keyset/pkg/secret"
	"github.com/jeremyhahn/go-keyset/pkg/secret/insecure"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// Type identifiers of the ML-KEM-768 hybrid key pair.
const (
	MLKEM768TypeURL       = "keyset.dev/mlkem768-hybrid"
	MLKEM768PublicTypeURL = "keyset.dev/mlkem768-hybrid-public"
)

const (
	mlkemKeyVersion = 0

	mlkemPublicKeySize  = 1184
	mlkemSecretKeySize  = 2400
	mlkemCiphertextSize = 1088
	mlkemSharedKeySize  = 32

	// circl embeds the public key inside the packed secret key at this
	// offset.
	mlkemPublicKeyOffset = 1152

	demKeySize   = 32
	demNonceSize = 12
)

// hkdfInfo is the domain-separation label for the DEM key derivation.
// The caller's context info is appended to it.
var hkdfInfo = []byte("mlkem768-hybrid-aes256gcm")

// MLKEM768Parameters describes the private half of the ML-KEM-768
// hybrid pair.
type MLKEM768Parameters struct {
	variant types.OutputPrefixType
}

var _ types.Parameters = (*MLKEM768Parameters)(nil)

// NewMLKEM768Parameters creates a validated configuration.
func NewMLKEM768Parameters(variant types.OutputPrefixType) (*MLKEM768Parameters, error) {
	if err := validateVariant(variant); err != nil {
		return nil, err
	}
	return &MLKEM768Parameters{variant: variant}, nil
}

func (p *MLKEM768Parameters) OutputPrefixType() types.OutputPrefixType { return p.variant }
func (p *MLKEM768Parameters) HasIDRequirement() bool                   { return p.variant != types.RawPrefix }
func (p *MLKEM768Parameters) Equal(other types.Parameters) bool {
	o, ok := other.(*MLKEM768Parameters)
	return ok && p.variant == o.variant
}

// MLKEM768PublicParameters describes the public half.
type MLKEM768PublicParameters struct {
	variant types.OutputPrefixType
}

var _ types.Parameters = (*MLKEM768PublicParameters)(nil)

// NewMLKEM768PublicParameters creates a validated configuration.
func NewMLKEM768PublicParameters(variant types.OutputPrefixType) (*MLKEM768PublicParameters, error) {
	if err := validateVariant(variant); err != nil {
		return nil, err
	}
	return &MLKEM768PublicParameters{variant: variant}, nil
}

func (p *MLKEM768PublicParameters) OutputPrefixType() types.OutputPrefixType { return p.variant }
func (p *MLKEM768PublicParameters) HasIDRequirement() bool                   { return p.variant != types.RawPrefix }
func (p *MLKEM768PublicParameters) Equal(other types.Parameters) bool {
	o, ok := other.(*MLKEM768PublicParameters)
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

// MLKEM768PrivateKey is an immutable ML-KEM-768 decapsulation key.
type MLKEM768PrivateKey struct {
	params   *MLKEM768Parameters
	keyBytes secret.Bytes
	id       uint32
	hasID    bool
}

var _ types.Key = (*MLKEM768PrivateKey)(nil)

// NewMLKEM768PrivateKey wraps a packed circl secret key.
func NewMLKEM768PrivateKey(params *MLKEM768Parameters, keyBytes secret.Bytes, id uint32, hasID bool) (*MLKEM768PrivateKey, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil parameters", types.ErrInvalidParameters)
	}
	if params.HasIDRequirement() != hasID {
		return nil, fmt.Errorf("%w: id requirement mismatch for variant %v", types.ErrInvalidKey, params.variant)
	}
	if keyBytes.Len() != mlkemSecretKeySize {
		return nil, fmt.Errorf("%w: ML-KEM-768 secret key length %d", types.ErrInvalidKey, keyBytes.Len())
	}
	return &MLKEM768PrivateKey{params: params, keyBytes: keyBytes, id: id, hasID: hasID}, nil
}

func (k *MLKEM768PrivateKey) Parameters() types.Parameters  { return k.params }
func (k *MLKEM768PrivateKey) IDRequirement() (uint32, bool) { return k.id, k.hasID }
func (k *MLKEM768PrivateKey) KeyBytes() secret.Bytes        { return k.keyBytes }
func (k *MLKEM768PrivateKey) Equal(other types.Key) bool {
	o, ok := other.(*MLKEM768PrivateKey)
	return ok && k.params.Equal(o.params) && k.id == o.id && k.hasID == o.hasID &&
		k.keyBytes.Equal(o.keyBytes)
}

// PublicKey derives the embedded encapsulation key.
func (k *MLKEM768PrivateKey) PublicKey() (*MLKEM768PublicKey, error) {
	params, err := NewMLKEM768PublicParameters(k.params.variant)
	if err != nil {
		return nil, err
	}
	raw := k.keyBytes.Data(insecure.KeyAccessToken{})
	pub := append([]byte(nil), raw[mlkemPublicKeyOffset:mlkemPublicKeyOffset+mlkemPublicKeySize]...)
	return NewMLKEM768PublicKey(params, pub, k.id, k.hasID)
}

// MLKEM768PublicKey is an immutable ML-KEM-768 encapsulation key. The
// key bytes are not secret.
type MLKEM768PublicKey struct {
	params   *MLKEM768PublicParameters
	keyBytes []byte
	id       uint32
	hasID    bool
}

var _ types.Key = (*MLKEM768PublicKey)(nil)

// NewMLKEM768PublicKey wraps a packed circl public key.
func NewMLKEM768PublicKey(params *MLKEM768PublicParameters, keyBytes []byte, id uint32, hasID bool) (*MLKEM768PublicKey, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil parameters", types.ErrInvalidParameters)
	}
	if params.HasIDRequirement() != hasID {
		return nil, fmt.Errorf("%w: id requirement mismatch for variant %v", types.ErrInvalidKey, params.variant)
	}
	if len(keyBytes) != mlkemPublicKeySize {
		return nil, fmt.Errorf("%w: ML-KEM-768 public key length %d", types.ErrInvalidKey, len(keyBytes))
	}
	return &MLKEM768PublicKey{params: params, keyBytes: append([]byte(nil), keyBytes...), id: id, hasID: hasID}, nil
}

func (k *MLKEM768PublicKey) Parameters() types.Parameters  { return k.params }
func (k *MLKEM768PublicKey) IDRequirement() (uint32, bool) { return k.id, k.hasID }

// KeyBytes returns a copy of the packed public key.
func (k *MLKEM768PublicKey) KeyBytes() []byte { return append([]byte(nil), k.keyBytes...) }

func (k *MLKEM768PublicKey) Equal(other types.Key) bool {
	o, ok := other.(*MLKEM768PublicKey)
	return ok && k.params.Equal(o.params) && k.id == o.id && k.hasID == o.hasID &&
		bytes.Equal(k.keyBytes, o.keyBytes)
}

// demKey derives the AES-256-GCM data-encapsulation key from the KEM
// shared secret and the caller's context info.
func demKey(sharedSecret, contextInfo []byte) ([]byte, error) {
	info := make([]byte, 0, len(hkdfInfo)+len(contextInfo))
	info = append(info, hkdfInfo...)
	info = append(info, contextInfo...)
	key := make([]byte, demKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, sharedSecret, nil, info), key); err != nil {
		return nil, err
	}
	return key, nil
}

func newDEMAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// mlkemEncrypt is the raw HybridEncrypt primitive. Ciphertext layout:
// kemCiphertext || nonce || demCiphertext+tag.
type mlkemEncrypt struct {
	pub mlkem768.PublicKey
}

var _ types.HybridEncrypt = (*mlkemEncrypt)(nil)

func (e *mlkemEncrypt) Encrypt(plaintext, contextInfo []byte) ([]byte, error) {
	kemCT := make([]byte, mlkemCiphertextSize)
	sharedSecret := make([]byte, mlkemSharedKeySize)
	e.pub.EncapsulateTo(kemCT, sharedSecret, nil)

	key, err := demKey(sharedSecret, contextInfo)
	if err != nil {
		return nil, err
	}
	aead, err := newDEMAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, demNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("hybrid: generate nonce: %w", err)
	}

	out := make([]byte, 0, mlkemCiphertextSize+demNonceSize+len(plaintext)+aead.Overhead())
	out = append(out, kemCT...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

// mlkemDecrypt is the raw HybridDecrypt primitive.
type mlkemDecrypt struct {
	priv mlkem768.PrivateKey
}

var _ types.HybridDecrypt = (*mlkemDecrypt)(nil)

func (d *mlkemDecrypt) Decrypt(ciphertext, contextInfo []byte) ([]byte, error) {
	if len(ciphertext) < mlkemCiphertextSize+demNonceSize {
		return nil, types.ErrDecryptionFailed
	}
	kemCT := ciphertext[:mlkemCiphertextSize]
	nonce := ciphertext[mlkemCiphertextSize : mlkemCiphertextSize+demNonceSize]
	demCT := ciphertext[mlkemCiphertextSize+demNonceSize:]

	sharedSecret := make([]byte, mlkemSharedKeySize)
	d.priv.DecapsulateTo(sharedSecret, kemCT)

	key, err := demKey(sharedSecret, contextInfo)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	aead, err := newDEMAEAD(key)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	pt, err := aead.Open(nil, nonce, demCT, nil)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	return pt, nil
}

type mlkemPrivateManager struct{}

var _ types.PrivateKeyManager = (*mlkemPrivateManager)(nil)

func (mlkemPrivateManager) TypeURL() string                        { return MLKEM768TypeURL }
func (mlkemPrivateManager) KeyMaterialType() types.KeyMaterialType { return types.MaterialAsymmetricPrivate }
func (mlkemPrivateManager) FIPSLevel() types.FIPSLevel             { return types.FIPSNone }
func (mlkemPrivateManager) ParametersType() reflect.Type {
	return reflect.TypeOf((**MLKEM768Parameters)(nil)).Elem()
}

func (mlkemPrivateManager) ValidateParameters(p types.Parameters) error {
	if _, ok := p.(*MLKEM768Parameters); !ok {
		return fmt.Errorf("%w: got %T, want *MLKEM768Parameters", types.ErrInvalidParameters, p)
	}
	return nil
}

func (mlkemPrivateManager) ValidateKey(k types.Key) error {
	key, ok := k.(*MLKEM768PrivateKey)
	if !ok {
		return fmt.Errorf("%w: got %T, want *MLKEM768PrivateKey", types.ErrInvalidKey, k)
	}
	var priv mlkem768.PrivateKey
	if err := priv.Unpack(key.keyBytes.Data(insecure.KeyAccessToken{})); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidKey, err)
	}
	return nil
}

func (mlkemPrivateManager) NewKey(p types.Parameters, id uint32, hasID bool) (types.Key, error) {
	params, ok := p.(*MLKEM768Parameters)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *MLKEM768Parameters", types.ErrInvalidParameters, p)
	}
	pub, priv, err := mlkem768.GenerateKeyPair(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("hybrid: generate ML-KEM-768 key pair: %w", err)
	}

	// Pairwise consistency check before the key is handed out.
	ct := make([]byte, mlkemCiphertextSize)
	ssEnc := make([]byte, mlkemSharedKeySize)
	ssDec := make([]byte, mlkemSharedKeySize)
	pub.EncapsulateTo(ct, ssEnc, nil)
	priv.DecapsulateTo(ssDec, ct)
	if !bytes.Equal(ssEnc, ssDec) {
		return nil, fmt.Errorf("%w: ML-KEM-768 key pair failed consistency check", types.ErrInvalidKey)
	}

	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("hybrid: marshal ML-KEM-768 secret key: %w", err)
	}
	return NewMLKEM768PrivateKey(params, secret.NewBytes(privBytes, insecure.KeyAccessToken{}), id, hasID)
}

func (mlkemPrivateManager) Primitive(k types.Key) (any, error) {
	key, ok := k.(*MLKEM768PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *MLKEM768PrivateKey", types.ErrInvalidKey, k)
	}
	d := &mlkemDecrypt{}
	if err := d.priv.Unpack(key.keyBytes.Data(insecure.KeyAccessToken{})); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKey, err)
	}
	return d, nil
}

func (mlkemPrivateManager) PublicKey(k types.Key) (types.Key, error) {
	key, ok := k.(*MLKEM768PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *MLKEM768PrivateKey", types.ErrInvalidKey, k)
	}
	return key.PublicKey()
}

type mlkemPublicManager struct{}

var _ types.KeyManager = (*mlkemPublicManager)(nil)

func (mlkemPublicManager) TypeURL() string                        { return MLKEM768PublicTypeURL }
func (mlkemPublicManager) KeyMaterialType() types.KeyMaterialType { return types.MaterialAsymmetricPublic }
func (mlkemPublicManager) FIPSLevel() types.FIPSLevel             { return types.FIPSNone }
func (mlkemPublicManager) ParametersType() reflect.Type {
	return reflect.TypeOf((**MLKEM768PublicParameters)(nil)).Elem()
}

func (mlkemPublicManager) ValidateParameters(p types.Parameters) error {
	if _, ok := p.(*MLKEM768PublicParameters); !ok {
		return fmt.Errorf("%w: got %T, want *MLKEM768PublicParameters", types.ErrInvalidParameters, p)
	}
	return nil
}

func (mlkemPublicManager) ValidateKey(k types.Key) error {
	if _, ok := k.(*MLKEM768PublicKey); !ok {
		return fmt.Errorf("%w: got %T, want *MLKEM768PublicKey", types.ErrInvalidKey, k)
	}
	return nil
}

// NewKey is unsupported: public keys are only derived from private
// keys.
func (mlkemPublicManager) NewKey(p types.Parameters, id uint32, hasID bool) (types.Key, error) {
	return nil, fmt.Errorf("%w: ML-KEM-768 public keys are derived, not generated", types.ErrInvalidParameters)
}

func (mlkemPublicManager) Primitive(k types.Key) (any, error) {
	key, ok := k.(*MLKEM768PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want *MLKEM768PublicKey", types.ErrInvalidKey, k)
	}
	e := &mlkemEncrypt{}
	if err := e.pub.Unpack(key.keyBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKey, err)
	}
	return e, nil
}

// Wire records: 1:version(varint) 2:key_value(bytes), where key_value is
// the packed circl secret or public key.
func serializeKeyRecord(raw []byte) []byte {
	var buf []byte
	if mlkemKeyVersion != 0 {
		buf = protowire.AppendTag(buf, 1, protowire.VarintType)
		buf = protowire.AppendVarint(buf, mlkemKeyVersion)
	}
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, raw)
	return buf
}

func parseKeyRecord(value []byte) (uint64, []byte, error) {
	var version uint64
	var raw []byte
	for len(value) > 0 {
		num, typ, n := protowire.ConsumeTag(value)
		if n < 0 {
			return 0, nil, fmt.Errorf("%w: hybrid key record", types.ErrParse)
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
	if version > mlkemKeyVersion {
		return 0, nil, fmt.Errorf("%w: hybrid key version %d", types.ErrInvalidKey, version)
	}
	return version, raw, nil
}

func serializeMLKEM768PrivateKey(k *MLKEM768PrivateKey) (*types.KeyData, error) {
	return &types.KeyData{
		TypeURL:      MLKEM768TypeURL,
		Value:        serializeKeyRecord(k.keyBytes.Data(insecure.KeyAccessToken{})),
		MaterialType: types.MaterialAsymmetricPrivate,
	}, nil
}

func parseMLKEM768PrivateKey(kd *types.KeyData, variant types.OutputPrefixType, keyID uint32, hasID bool) (types.Key, error) {
	_, raw, err := parseKeyRecord(kd.Value)
	if err != nil {
		return nil, err
	}
	params, err := NewMLKEM768Parameters(variant)
	if err != nil {
		return nil, err
	}
	return NewMLKEM768PrivateKey(params, secret.NewBytes(raw, insecure.KeyAccessToken{}), keyID, hasID)
}

func serializeMLKEM768PublicKey(k *MLKEM768PublicKey) (*types.KeyData, error) {
	return &types.KeyData{
		TypeURL:      MLKEM768PublicTypeURL,
		Value:        serializeKeyRecord(k.keyBytes),
		MaterialType: types.MaterialAsymmetricPublic,
	}, nil
}

func parseMLKEM768PublicKey(kd *types.KeyData, variant types.OutputPrefixType, keyID uint32, hasID bool) (types.Key, error) {
	_, raw, err := parseKeyRecord(kd.Value)
	if err != nil {
		return nil, err
	}
	params, err := NewMLKEM768PublicParameters(variant)
	if err != nil {
		return nil, err
	}
	return NewMLKEM768PublicKey(params, raw, keyID, hasID)
}

// RegisterMLKEM768 wires the hybrid key pair into r.
func RegisterMLKEM768(r *registry.Registry) error {
	if err := r.RegisterKeyManager(mlkemPrivateManager{}, true); err != nil {
		return err
	}
	if err := r.RegisterKeyParser(MLKEM768TypeURL, parseMLKEM768PrivateKey); err != nil {
		return err
	}
	if err := registry.RegisterKeySerializerFor(r, serializeMLKEM768PrivateKey); err != nil {
		return err
	}
	// Public keys are parsed and validated but never generated, so the
	// manager is registered without generation rights.
	if err := r.RegisterKeyManager(mlkemPublicManager{}, false); err != nil {
		return err
	}
	if err := r.RegisterKeyParser(MLKEM768PublicTypeURL, parseMLKEM768PublicKey); err != nil {
		return err
	}
	return registry.RegisterKeySerializerFor(r, serializeMLKEM768PublicKey)
}

func init() {
	if err := RegisterMLKEM768(registry.Default()); err != nil {
		panic(err)
	}
}
