// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pagetables

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestNewPTE(t *testing.T) {
	for _, frame := range []uint32{0, 0x1000, 0x400000, 0xFFFFF000} {
		for _, flags := range []PTE{0, Present, Present | Writable | User, 0xE00, flagsMask &^ Super} {
			p, err := NewPTE(frame, flags)
			if err != nil {
				t.Fatalf("NewPTE(%#x, %#x): %v", frame, uint32(flags), err)
			}
			if p.Address() != frame || p.Flags() != flags {
				t.Errorf("NewPTE(%#x, %#x) = address %#x flags %#x", frame, uint32(flags), p.Address(), uint32(p.Flags()))
			}
		}
	}
}

func TestNewPTEErrors(t *testing.T) {
	for _, tc := range []struct {
		frame uint32
		flags PTE
		want  error
	}{
		{0x1001, Present, ErrUnaligned},
		{0x1000, Present | Super, ErrUnaligned},
		{0x1000, 0x1000, ErrFlags},
		{0, 0xFFFF, ErrFlags},
	} {
		if _, err := NewPTE(tc.frame, tc.flags); !errors.Is(err, tc.want) {
			t.Errorf("NewPTE(%#x, %#x) = %v, want %v", tc.frame, uint32(tc.flags), err, tc.want)
		}
	}
	if p, err := NewPTE(0x80000000, Present|Writable|Super); err != nil || p != 0x80000083 {
		t.Errorf("NewPTE super = %#x, %v, want 0x80000083", uint32(p), err)
	}
}

func TestPTEAccessors(t *testing.T) {
	p := PTE(0x12345000) | Present | User
	if !p.Valid() || !p.User() || p.Writeable() || p.IsSuper() {
		t.Errorf("%v: got valid=%t user=%t writeable=%t super=%t", p, p.Valid(), p.User(), p.Writeable(), p.IsSuper())
	}
	if got, want := p.String(), "0x12345000 P|U"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	p.Clear()
	if p != 0 {
		t.Errorf("Clear() left %#x", uint32(p))
	}
	if MustBeZero != Super|Super<<1 {
		t.Errorf("MustBeZero = %#x", uint32(MustBeZero))
	}
}

func TestPTEsBytes(t *testing.T) {
	var ptes PTEs
	ptes[0] = 0x83
	ptes[EntriesPerPage-1] = 0xDEADB000 | Present
	b := ptes.Bytes()
	if len(b) != PageSize {
		t.Fatalf("len(Bytes()) = %d, want %d", len(b), PageSize)
	}
	if got := binary.LittleEndian.Uint32(b[0:]); got != 0x83 {
		t.Errorf("entry 0 = %#x, want 0x83", got)
	}
	if got := binary.LittleEndian.Uint32(b[PageSize-4:]); got != 0xDEADB001 {
		t.Errorf("entry 1023 = %#x, want 0xdeadb001", got)
	}
}
