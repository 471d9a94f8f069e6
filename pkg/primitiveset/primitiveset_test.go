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

package primitiveset

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jeremyhahn/go-keyset/pkg/prefix"
	"github.com/jeremyhahn/go-keyset/pkg/types"
)

func TestAddAndDispatch(t *testing.T) {
	s := New[string]()

	if _, err := s.Add("raw-1", 10, types.RawPrefix, false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add("tink-1", 20, types.TinkPrefix, true); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add("crunchy-1", 30, types.CrunchyPrefix, false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3", s.Len())
	}

	primary := s.Primary()
	if primary == nil || primary.Primitive != "tink-1" {
		t.Fatalf("Primary = %+v, want tink-1", primary)
	}
	if primary.KeyID != 20 {
		t.Errorf("primary KeyID = %d, want 20", primary.KeyID)
	}
	wantPrefix, err := prefix.Compute(types.TinkPrefix, 20)
	if err != nil {
		t.Fatalf("prefix.Compute: %v", err)
	}
	if !bytes.Equal(primary.Prefix, wantPrefix) {
		t.Errorf("primary Prefix = %x, want %x", primary.Prefix, wantPrefix)
	}

	raw := s.RawEntries()
	if len(raw) != 1 || raw[0].Primitive != "raw-1" {
		t.Errorf("RawEntries = %+v, want [raw-1]", raw)
	}
	if len(raw[0].Prefix) != 0 {
		t.Errorf("RAW entry has prefix %x", raw[0].Prefix)
	}

	matched := s.EntriesForPrefix(string(wantPrefix))
	if len(matched) != 1 || matched[0].Primitive != "tink-1" {
		t.Errorf("EntriesForPrefix = %+v, want [tink-1]", matched)
	}
	if got := s.EntriesForPrefix("\x01\x00\x00\x00\x00"); len(got) != 0 {
		t.Errorf("unknown prefix matched %d entries", len(got))
	}
}

func TestPrefixCollisionKeepsKeysetOrder(t *testing.T) {
	// CRUNCHY and LEGACY share the same computed prefix for equal key
	// ids; dispatch must preserve insertion order within the bucket.
	s := New[string]()
	if _, err := s.Add("first", 7, types.CrunchyPrefix, true); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add("second", 7, types.LegacyPrefix, false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	p, err := prefix.Compute(types.CrunchyPrefix, 7)
	if err != nil {
		t.Fatalf("prefix.Compute: %v", err)
	}
	got := s.EntriesForPrefix(string(p))
	if len(got) != 2 {
		t.Fatalf("bucket size = %d, want 2", len(got))
	}
	if got[0].Primitive != "first" || got[1].Primitive != "second" {
		t.Errorf("bucket order = [%s, %s], want [first, second]", got[0].Primitive, got[1].Primitive)
	}
}

func TestSecondPrimaryRejected(t *testing.T) {
	s := New[string]()
	if _, err := s.Add("a", 1, types.TinkPrefix, true); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add("b", 2, types.TinkPrefix, true); !errors.Is(err, types.ErrInvalidKeyset) {
		t.Errorf("second primary: err = %v, want ErrInvalidKeyset", err)
	}
}

func TestUnknownPrefixTypeRejected(t *testing.T) {
	s := New[string]()
	if _, err := s.Add("a", 1, types.OutputPrefixType(99), false); err == nil {
		t.Error("Add accepted an unknown prefix type")
	}
}
