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

package keyset

import (
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jeremyhahn/go-keyset/pkg/registry"
	"github.com/jeremyhahn/go-keyset/pkg/secret/insecure"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

// Wire format: length-delimited protobuf wire encoding, canonical form
// (fields in ascending number order, default values omitted). The schema
// is fixed here; parse(serialize(ks)) round-trips byte-exact for any
// canonically encoded input.
//
//	KeyData    1:type_url 2:value 3:material_type 4:version
//	Entry      1:key_data 2:status 3:key_id 4:output_prefix_type
//	Keyset     1:primary_key_id 2:entry (repeated)
//	Encrypted  1:encrypted_keyset 2:keyset_info
//	EntryInfo  1:type_url 2:status 3:key_id 4:output_prefix_type
//	Info       1:primary_key_id 2:entry_info (repeated)

const (
	fieldKeyDataTypeURL  = 1
	fieldKeyDataValue    = 2
	fieldKeyDataMaterial = 3
	fieldKeyDataVersion  = 4

	fieldEntryKeyData = 1
	fieldEntryStatus  = 2
	fieldEntryKeyID   = 3
	fieldEntryPrefix  = 4

	fieldKeysetPrimaryID = 1
	fieldKeysetEntry     = 2

	fieldEncryptedKeyset = 1
	fieldEncryptedInfo   = 2
)

// WriteCleartext serializes the keyset, including all secret key material,
// to w. The access token makes the exposure explicit at the call site;
// prefer WriteEncrypted everywhere a master key is available.
func WriteCleartext(h *Handle, w io.Writer, _ insecure.KeyAccessToken) error {
	_, err := w.Write(marshalKeyset(h.ks))
	return err
}

// ReadCleartext parses and validates a cleartext keyset using the default
// registry.
func ReadCleartext(r io.Reader, token insecure.KeyAccessToken) (*Handle, error) {
	return ReadCleartextWith(registry.Default(), r, token)
}

// ReadCleartextWith is ReadCleartext against an injected registry.
func ReadCleartextWith(reg *registry.Registry, r io.Reader, _ insecure.KeyAccessToken) (*Handle, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("keyset: read: %w", err)
	}
	ks, err := unmarshalKeyset(raw)
	if err != nil {
		return nil, err
	}
	if err := ks.validate(reg); err != nil {
		return nil, err
	}
	return &Handle{ks: ks}, nil
}

// WriteEncrypted serializes the keyset encrypted under master, typically a
// KMS-backed AEAD. The container carries a secret-free info block so
// tooling can inspect key ids and statuses without decrypting.
func WriteEncrypted(h *Handle, w io.Writer, master types.AEAD) error {
	ct, err := master.Encrypt(marshalKeyset(h.ks), nil)
	if err != nil {
		return fmt.Errorf("keyset: encrypt keyset: %w", err)
	}

	var buf []byte
	buf = protowire.AppendTag(buf, fieldEncryptedKeyset, protowire.BytesType)
	buf = protowire.AppendBytes(buf, ct)
	buf = protowire.AppendTag(buf, fieldEncryptedInfo, protowire.BytesType)
	buf = protowire.AppendBytes(buf, marshalInfo(h.ks))

	_, err = w.Write(buf)
	return err
}

// ReadEncrypted decrypts and validates an encrypted keyset container using
// the default registry.
func ReadEncrypted(r io.Reader, master types.AEAD) (*Handle, error) {
	return ReadEncryptedWith(registry.Default(), r, master)
}

// ReadEncryptedWith is ReadEncrypted against an injected registry.
func ReadEncryptedWith(reg *registry.Registry, r io.Reader, master types.AEAD) (*Handle, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("keyset: read: %w", err)
	}

	var ct []byte
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return nil, fmt.Errorf("%w: encrypted keyset container", types.ErrParse)
		}
		raw = raw[n:]
		switch {
		case num == fieldEncryptedKeyset && typ == protowire.BytesType:
			ct, n = protowire.ConsumeBytes(raw)
		case num == fieldEncryptedInfo && typ == protowire.BytesType:
			// Info is advisory; skip.
			_, n = protowire.ConsumeBytes(raw)
		default:
			return nil, fmt.Errorf("%w: unexpected field %d in encrypted keyset", types.ErrParse, num)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: encrypted keyset container", types.ErrParse)
		}
		raw = raw[n:]
	}
	if ct == nil {
		return nil, fmt.Errorf("%w: encrypted keyset container missing ciphertext", types.ErrParse)
	}

	pt, err := master.Decrypt(ct, nil)
	if err != nil {
		return nil, fmt.Errorf("keyset: decrypt keyset: %w", err)
	}
	ks, err := unmarshalKeyset(pt)
	if err != nil {
		return nil, err
	}
	if err := ks.validate(reg); err != nil {
		return nil, err
	}
	return &Handle{ks: ks}, nil
}

func marshalKeyData(kd *types.KeyData) []byte {
	var buf []byte
	if kd.TypeURL != "" {
		buf = protowire.AppendTag(buf, fieldKeyDataTypeURL, protowire.BytesType)
		buf = protowire.AppendString(buf, kd.TypeURL)
	}
	if len(kd.Value) > 0 {
		buf = protowire.AppendTag(buf, fieldKeyDataValue, protowire.BytesType)
		buf = protowire.AppendBytes(buf, kd.Value)
	}
	if kd.MaterialType != types.MaterialUnknown {
		buf = protowire.AppendTag(buf, fieldKeyDataMaterial, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(kd.MaterialType))
	}
	if kd.Version != 0 {
		buf = protowire.AppendTag(buf, fieldKeyDataVersion, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(kd.Version))
	}
	return buf
}

func unmarshalKeyData(raw []byte) (*types.KeyData, error) {
	kd := &types.KeyData{}
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return nil, fmt.Errorf("%w: key data", types.ErrParse)
		}
		raw = raw[n:]
		switch {
		case num == fieldKeyDataTypeURL && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(raw)
			if m < 0 {
				return nil, fmt.Errorf("%w: key data type url", types.ErrParse)
			}
			kd.TypeURL = v
			raw = raw[m:]
		case num == fieldKeyDataValue && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(raw)
			if m < 0 {
				return nil, fmt.Errorf("%w: key data value", types.ErrParse)
			}
			kd.Value = append([]byte(nil), v...)
			raw = raw[m:]
		case num == fieldKeyDataMaterial && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(raw)
			if m < 0 {
				return nil, fmt.Errorf("%w: key data material type", types.ErrParse)
			}
			kd.MaterialType = types.KeyMaterialType(v)
			raw = raw[m:]
		case num == fieldKeyDataVersion && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(raw)
			if m < 0 {
				return nil, fmt.Errorf("%w: key data version", types.ErrParse)
			}
			kd.Version = uint32(v)
			raw = raw[m:]
		default:
			return nil, fmt.Errorf("%w: unexpected field %d in key data", types.ErrParse, num)
		}
	}
	return kd, nil
}

func marshalEntry(e *Entry) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldEntryKeyData, protowire.BytesType)
	buf = protowire.AppendBytes(buf, marshalKeyData(e.keyData))
	if e.status != types.StatusUnknown {
		buf = protowire.AppendTag(buf, fieldEntryStatus, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(e.status))
	}
	if e.keyID != 0 {
		buf = protowire.AppendTag(buf, fieldEntryKeyID, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(e.keyID))
	}
	if e.prefixType != types.UnknownPrefix {
		buf = protowire.AppendTag(buf, fieldEntryPrefix, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(e.prefixType))
	}
	return buf
}

func unmarshalEntry(raw []byte) (*Entry, error) {
	e := &Entry{}
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return nil, fmt.Errorf("%w: keyset entry", types.ErrParse)
		}
		raw = raw[n:]
		switch {
		case num == fieldEntryKeyData && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(raw)
			if m < 0 {
				return nil, fmt.Errorf("%w: entry key data", types.ErrParse)
			}
			kd, err := unmarshalKeyData(v)
			if err != nil {
				return nil, err
			}
			e.keyData = kd
			raw = raw[m:]
		case num == fieldEntryStatus && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(raw)
			if m < 0 {
				return nil, fmt.Errorf("%w: entry status", types.ErrParse)
			}
			e.status = types.KeyStatus(v)
			raw = raw[m:]
		case num == fieldEntryKeyID && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(raw)
			if m < 0 {
				return nil, fmt.Errorf("%w: entry key id", types.ErrParse)
			}
			e.keyID = uint32(v)
			raw = raw[m:]
		case num == fieldEntryPrefix && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(raw)
			if m < 0 {
				return nil, fmt.Errorf("%w: entry prefix type", types.ErrParse)
			}
			e.prefixType = types.OutputPrefixType(v)
			raw = raw[m:]
		default:
			return nil, fmt.Errorf("%w: unexpected field %d in keyset entry", types.ErrParse, num)
		}
	}
	if e.keyData == nil {
		return nil, fmt.Errorf("%w: keyset entry missing key data", types.ErrParse)
	}
	return e, nil
}

func marshalKeyset(ks *keysetData) []byte {
	var buf []byte
	if ks.primaryID != 0 {
		buf = protowire.AppendTag(buf, fieldKeysetPrimaryID, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(ks.primaryID))
	}
	for _, e := range ks.entries {
		buf = protowire.AppendTag(buf, fieldKeysetEntry, protowire.BytesType)
		buf = protowire.AppendBytes(buf, marshalEntry(e))
	}
	return buf
}

func unmarshalKeyset(raw []byte) (*keysetData, error) {
	ks := &keysetData{}
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return nil, fmt.Errorf("%w: keyset", types.ErrParse)
		}
		raw = raw[n:]
		switch {
		case num == fieldKeysetPrimaryID && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(raw)
			if m < 0 {
				return nil, fmt.Errorf("%w: keyset primary id", types.ErrParse)
			}
			ks.primaryID = uint32(v)
			raw = raw[m:]
		case num == fieldKeysetEntry && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(raw)
			if m < 0 {
				return nil, fmt.Errorf("%w: keyset entry", types.ErrParse)
			}
			e, err := unmarshalEntry(v)
			if err != nil {
				return nil, err
			}
			ks.entries = append(ks.entries, e)
			raw = raw[m:]
		default:
			return nil, fmt.Errorf("%w: unexpected field %d in keyset", types.ErrParse, num)
		}
	}
	return ks, nil
}

// marshalInfo encodes the secret-free info block carried alongside an
// encrypted keyset.
func marshalInfo(ks *keysetData) []byte {
	var buf []byte
	if ks.primaryID != 0 {
		buf = protowire.AppendTag(buf, fieldKeysetPrimaryID, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(ks.primaryID))
	}
	for _, e := range ks.entries {
		var ib []byte
		if e.keyData.TypeURL != "" {
			ib = protowire.AppendTag(ib, fieldEntryKeyData, protowire.BytesType)
			ib = protowire.AppendString(ib, e.keyData.TypeURL)
		}
		ib = protowire.AppendTag(ib, fieldEntryStatus, protowire.VarintType)
		ib = protowire.AppendVarint(ib, uint64(e.status))
		ib = protowire.AppendTag(ib, fieldEntryKeyID, protowire.VarintType)
		ib = protowire.AppendVarint(ib, uint64(e.keyID))
		ib = protowire.AppendTag(ib, fieldEntryPrefix, protowire.VarintType)
		ib = protowire.AppendVarint(ib, uint64(e.prefixType))

		buf = protowire.AppendTag(buf, fieldKeysetEntry, protowire.BytesType)
		buf = protowire.AppendBytes(buf, ib)
	}
	return buf
}
