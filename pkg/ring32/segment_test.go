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
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMakeSegment(t *testing.T) {
	for _, tc := range []struct {
		name string
		seg  SegmentDescriptor
		want uint64
	}{
		{"kernel code", KernelCodeSegment, 0x00CF9A000000FFFF},
		{"kernel data", KernelDataSegment, 0x00CF92000000FFFF},
		{"user code", UserCodeSegment, 0x00CFFA000000FFFF},
		{"user data", UserDataSegment, 0x00CFF2000000FFFF},
		{"per-cpu", MakeSegment(AppWrite, 0x80112345, 8, 0), 0x80C0921123450000},
		{"tss", MakeSegment16(SysTSS32Available, 0x80105000, TaskStateSize-1, 0).AsSystem(), 0x8040891050000067},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.seg.Uint64(); got != tc.want {
				t.Errorf("got %#016x, want %#016x", got, tc.want)
			}
		})
	}
}

func TestKernelCodeBytes(t *testing.T) {
	got := MakeSegment(AppExecute|AppRead, 0, math.MaxUint32, 0).Bytes()
	want := [8]byte{0xFF, 0xFF, 0x00, 0x00, 0x00, 0x9A, 0xCF, 0x00}
	if got != want {
		t.Errorf("Bytes() = % x, want % x", got, want)
	}
	if d := SegmentFromBytes(want); d != KernelCodeSegment {
		t.Errorf("SegmentFromBytes(% x) = %v, want %v", want, d, KernelCodeSegment)
	}
}

func TestSegmentFields(t *testing.T) {
	got := KernelCodeSegment.Fields()
	want := SegmentFields{
		Limit:       0xFFFFF,
		Type:        AppExecute | AppRead,
		Application: true,
		Present:     true,
		DB:          true,
		Granularity: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Fields() mismatch (-want +got):\n%s", diff)
	}
}

func TestSegmentAccessors(t *testing.T) {
	d := MakeSegment(AppWrite, 0x80112345, 8, UserDPL)
	if got, want := d.Base(), uint32(0x80112345); got != want {
		t.Errorf("Base() = %#x, want %#x", got, want)
	}
	// The byte limit loses its low bits: the segment ends on a page.
	if got, want := d.Limit(), uint32(0xFFF); got != want {
		t.Errorf("Limit() = %#x, want %#x", got, want)
	}
	if got := d.DPL(); got != UserDPL {
		t.Errorf("DPL() = %d, want %d", got, UserDPL)
	}
	if !d.Present() || !d.Application() {
		t.Errorf("Present() = %t, Application() = %t, want true, true", d.Present(), d.Application())
	}
	if d.AsSystem().Application() {
		t.Errorf("AsSystem().Application() = true")
	}

	d16 := MakeSegment16(AppWrite, 0, 0x123456, 0)
	if got, want := d16.Limit(), uint32(0x23456); got != want {
		t.Errorf("16-bit Limit() = %#x, want %#x", got, want)
	}
	if d16.Fields().Granularity {
		t.Errorf("16-bit segment has granularity set")
	}
}

func TestLimitHighBits(t *testing.T) {
	d := MakeSegment(AppWrite, 0, 0x12345678, 0)
	f := d.Fields()
	if got, want := f.Limit, uint32(0x12345); got != want {
		t.Errorf("raw limit = %#x, want %#x", got, want)
	}
	// lim_19_16 carries bits 31:28 of the byte limit.
	if got, want := (d.Uint64()>>48)&0xF, uint64(0x12345678>>28); got != want {
		t.Errorf("lim_19_16 = %#x, want %#x", got, want)
	}
}

func TestCheckPageLimit(t *testing.T) {
	for _, tc := range []struct {
		limit uint32
		ok    bool
	}{
		{math.MaxUint32, true},
		{0xFFF, true},
		{0x1FFF, true},
		{0, false},
		{8, false},
		{0x1000, false},
	} {
		err := CheckPageLimit(tc.limit)
		if ok := err == nil; ok != tc.ok {
			t.Errorf("CheckPageLimit(%#x) = %v, want ok=%t", tc.limit, err, tc.ok)
		}
		if err != nil && !errors.Is(err, ErrLimitPrecision) {
			t.Errorf("CheckPageLimit(%#x) = %v, want ErrLimitPrecision", tc.limit, err)
		}
	}
}

func TestSegmentRoundTrip(t *testing.T) {
	for _, v := range []uint64{
		0,
		0x00CF9A000000FFFF,
		0x00CFF2000000FFFF,
		0x80C0921123450000,
		0x8040891050000067,
		0xFFFFFFFFFFFFFFFF,
		0x0123456789ABCDEF,
		0xFEDCBA9876543210,
	} {
		d := SegmentFromUint64(v)
		if got := d.Fields().Encode().Uint64(); got != v {
			t.Errorf("Fields().Encode() of %#016x = %#016x", v, got)
		}
		if got := SegmentFromBytes(d.Bytes()).Uint64(); got != v {
			t.Errorf("SegmentFromBytes(Bytes()) of %#016x = %#016x", v, got)
		}
	}
}

func TestNullSegment(t *testing.T) {
	var d SegmentDescriptor
	if d.Present() {
		t.Errorf("null descriptor is present")
	}
	if got := d.String(); got != "null" {
		t.Errorf("String() = %q, want %q", got, "null")
	}
}
