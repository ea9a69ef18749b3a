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

import "testing"

func TestAddrDecomposition(t *testing.T) {
	for _, pdx := range []int{0, 1, 511, 512, 1023} {
		for _, ptx := range []int{0, 1, 700, 1023} {
			for _, off := range []uint32{0, 1, 0x800, 0xFFF} {
				v := PageAddr(pdx, ptx, off)
				if v.PDX() != pdx || v.PTX() != ptx || v.Offset() != off {
					t.Errorf("PageAddr(%d, %d, %#x) = %v decomposes to (%d, %d, %#x)", pdx, ptx, off, v, v.PDX(), v.PTX(), v.Offset())
				}
			}
		}
	}
	if v := Addr(0x80123456); PageAddr(v.PDX(), v.PTX(), v.Offset()) != v {
		t.Errorf("round trip of %v failed", v)
	}
}

func TestRounding(t *testing.T) {
	for _, x := range []Addr{0, 1, 0xFFF, 0x1000, 0x1001, 0x80100000, 0xFFFFE001, 0xFFFFF000} {
		up, ok := x.RoundUp()
		if !ok {
			t.Errorf("%v.RoundUp() wrapped", x)
			continue
		}
		if !up.IsPageAligned() {
			t.Errorf("%v.RoundUp() = %v is not aligned", x, up)
		}
		if up-x >= PageSize {
			t.Errorf("%v.RoundUp() = %v is more than a page away", x, up)
		}
		if up.RoundDown() < x.RoundDown() {
			t.Errorf("%v: RoundDown(RoundUp) = %v < RoundDown = %v", x, up.RoundDown(), x.RoundDown())
		}
	}
	if _, ok := Addr(0xFFFFF001).RoundUp(); ok {
		t.Errorf("RoundUp(0xfffff001) did not report wraparound")
	}
}

func TestAddLength(t *testing.T) {
	if end, ok := Addr(0xFE000000).AddLength(0x2000000); !ok || end != 1<<32 {
		t.Errorf("AddLength to top = %#x, %t", end, ok)
	}
	if _, ok := Addr(0xFE000000).AddLength(0x2001000); ok {
		t.Errorf("AddLength past top succeeded")
	}
}
