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

package ring32

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMakeGate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		isTrap bool
		dpl    int
		want   uint64
	}{
		{"interrupt", false, 0, 0x80108E0000085ABC},
		{"trap", true, UserDPL, 0x8010EF0000085ABC},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g := MakeGate(tc.isTrap, Kcode, 0x80105ABC, tc.dpl)
			if got := g.Uint64(); got != tc.want {
				t.Errorf("got %#016x, want %#016x", got, tc.want)
			}
			if got := g.IsTrap(); got != tc.isTrap {
				t.Errorf("IsTrap() = %t, want %t", got, tc.isTrap)
			}
			if got := g.ClearsInterrupts(); got == tc.isTrap {
				t.Errorf("ClearsInterrupts() = %t, want %t", got, !tc.isTrap)
			}
		})
	}
}

func TestGateFields(t *testing.T) {
	const handler = 0xDEADBEEF
	g := MakeGate(false, Kcode, handler, 0)
	want := GateFields{
		Offset:   handler,
		Selector: Kcode,
		Type:     SysInterruptGate32,
		System:   true,
		Present:  true,
	}
	if diff := cmp.Diff(want, g.Fields()); diff != "" {
		t.Errorf("Fields() mismatch (-want +got):\n%s", diff)
	}
	if got, want := g.Offset()&0xFFFF, uint32(handler&0xFFFF); got != want {
		t.Errorf("off_15_0 = %#x, want %#x", got, want)
	}
	if got, want := g.Offset()>>16, uint32(handler>>16); got != want {
		t.Errorf("off_31_16 = %#x, want %#x", got, want)
	}
}

func TestGateBytes(t *testing.T) {
	g := MakeGate(false, Kcode, 0x80105ABC, 0)
	want := [8]byte{0xBC, 0x5A, 0x08, 0x00, 0x00, 0x8E, 0x10, 0x80}
	if got := g.Bytes(); got != want {
		t.Errorf("Bytes() = % x, want % x", got, want)
	}
	if got := GateFromBytes(want); got != g {
		t.Errorf("GateFromBytes(% x) = %v, want %v", want, got, g)
	}
}

func TestGateRoundTrip(t *testing.T) {
	for _, v := range []uint64{
		0,
		0x80108E0000085ABC,
		0x8010EF0000085ABC,
		0xFFFFFFFFFFFFFFFF,
		0x0123456789ABCDEF,
	} {
		if got := GateFromUint64(v).Fields().Encode().Uint64(); got != v {
			t.Errorf("Fields().Encode() of %#016x = %#016x", v, got)
		}
	}
}
