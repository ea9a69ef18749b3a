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

package bits

import (
	"testing"
)

func TestIsOn32(t *testing.T) {
	for _, tc := range []struct {
		mask uint32
		bits uint32
		all  bool
		any  bool
	}{
		{0x83, 0x83, true, true},
		{0x83, 0x81, true, true},
		{0x83, 0x84, false, true},
		{0xf0, 0x0f, false, false},
		{0, 0, true, false},
	} {
		if got := IsOn32(tc.mask, tc.bits); got != tc.all {
			t.Errorf("IsOn32(%#x, %#x): got %t, wanted %t", tc.mask, tc.bits, got, tc.all)
		}
		if got := IsAnyOn32(tc.mask, tc.bits); got != tc.any {
			t.Errorf("IsAnyOn32(%#x, %#x): got %t, wanted %t", tc.mask, tc.bits, got, tc.any)
		}
	}
}

func TestAlign32(t *testing.T) {
	for _, tc := range []struct {
		v     uint32
		align uint32
		down  uint32
		up    uint32
		upOK  bool
	}{
		{0, 0x1000, 0, 0, true},
		{1, 0x1000, 0, 0x1000, true},
		{0x1000, 0x1000, 0x1000, 0x1000, true},
		{0x1fff, 0x1000, 0x1000, 0x2000, true},
		{0xfffff001, 0x1000, 0xfffff000, 0, false},
		{0x00400001, 0x400000, 0x00400000, 0x00800000, true},
	} {
		if got := AlignDown32(tc.v, tc.align); got != tc.down {
			t.Errorf("AlignDown32(%#x, %#x): got %#x, wanted %#x", tc.v, tc.align, got, tc.down)
		}
		up, ok := AlignUp32(tc.v, tc.align)
		if ok != tc.upOK || (ok && up != tc.up) {
			t.Errorf("AlignUp32(%#x, %#x): got (%#x, %t), wanted (%#x, %t)", tc.v, tc.align, up, ok, tc.up, tc.upOK)
		}
		if got, want := IsAligned32(tc.v, tc.align), tc.v == tc.down; got != want {
			t.Errorf("IsAligned32(%#x, %#x): got %t, wanted %t", tc.v, tc.align, got, want)
		}
	}
}

func TestField32(t *testing.T) {
	const v = 0x00cf9a00
	if got, want := Field32(v, 8, 4), uint32(0xa); got != want {
		t.Errorf("Field32(type): got %#x, wanted %#x", got, want)
	}
	if got, want := Field32(v, 16, 4), uint32(0xf); got != want {
		t.Errorf("Field32(limit): got %#x, wanted %#x", got, want)
	}
	if got, want := SetField32(v, 3, 13, 2), uint32(0x00cffa00); got != want {
		t.Errorf("SetField32(dpl=3): got %#x, wanted %#x", got, want)
	}
	// Bits of x beyond width are discarded.
	if got, want := SetField32(0, 0x1f, 0, 4), uint32(0xf); got != want {
		t.Errorf("SetField32(overwide): got %#x, wanted %#x", got, want)
	}
}
