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

package binary

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSize(t *testing.T) {
	if got, want := Size(uint32(10)), uintptr(4); got != want {
		t.Errorf("Got = %d, want = %d", got, want)
	}
	if got, want := Size(padded{}), uintptr(12); got != want {
		t.Errorf("Size(padded): got %d, want %d", got, want)
	}
}

func TestPanic(t *testing.T) {
	tests := []struct {
		name string
		f    func(any)
		data any
		want string
	}{
		{"Unmarshal non-pointer", func(d any) { Unmarshal(nil, d) }, uint32(5), "invalid type: uint32"},
		{"Unmarshal int", func(d any) { Unmarshal(make([]byte, 8), d) }, new(int), "invalid type: int"},
		{"Marshal int", func(d any) { Marshal(nil, d) }, 5, "invalid type: int"},
		{"Marshal slice", func(d any) { Marshal(nil, d) }, []uint32{5}, "invalid type: []uint32"},
		{"Size int64", func(d any) { Size(d) }, int64(5), "invalid type: int64"},
		{"Offset uint32", func(d any) { Offset(d, "x") }, uint32(5), "invalid type: uint32"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if got := fmt.Sprint(r); !strings.HasPrefix(got, test.want) {
					t.Errorf("Got recover() = %q, want prefix = %q", got, test.want)
				}
			}()

			test.f(test.data)
		})
	}
}

type inner struct {
	Field uint16
}

type outer struct {
	Uint8  uint8
	Uint16 uint16
	Uint32 uint32

	Array  [3]uint16
	Struct inner
}

func TestMarshalUnmarshal(t *testing.T) {
	want := outer{
		1, 2, 3,
		[3]uint16{4, 5, 6},
		inner{7},
	}
	buf := Marshal(nil, want)
	wantBuf := []byte{1, 2, 0, 3, 0, 0, 0, 4, 0, 5, 0, 6, 0, 7, 0}
	if diff := cmp.Diff(wantBuf, buf); diff != "" {
		t.Errorf("Marshal mismatch (-want +got):\n%s", diff)
	}
	var got outer
	if err := Unmarshal(buf, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unmarshal mismatch (-want +got):\n%s", diff)
	}
}

type padded struct {
	A uint16
	_ uint16
	B uint32
	_ [2]uint16
}

func TestPadding(t *testing.T) {
	in := padded{A: 0x1234, B: 0xdeadbeef}
	buf := Marshal(nil, &in)
	want := []byte{0x34, 0x12, 0, 0, 0xef, 0xbe, 0xad, 0xde, 0, 0, 0, 0}
	if diff := cmp.Diff(want, buf); diff != "" {
		t.Errorf("Marshal mismatch (-want +got):\n%s", diff)
	}

	var out padded
	if err := Unmarshal(buf, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.A != in.A || out.B != in.B {
		t.Errorf("Unmarshal got %+v, want %+v", out, in)
	}

	buf[10] = 1
	err := Unmarshal(buf, &out)
	if !errors.Is(err, ErrPadding) {
		t.Fatalf("Unmarshal with dirty padding: got %v, want %v", err, ErrPadding)
	}
	if !strings.Contains(err.Error(), "offset 10") {
		t.Errorf("Unmarshal error %q does not name offset 10", err)
	}
}

func TestLength(t *testing.T) {
	var p padded
	for _, n := range []int{0, 11, 13} {
		if err := Unmarshal(make([]byte, n), &p); !errors.Is(err, ErrLength) {
			t.Errorf("Unmarshal(%d bytes): got %v, want %v", n, err, ErrLength)
		}
	}
}

func TestOffset(t *testing.T) {
	for _, tc := range []struct {
		name string
		want uintptr
		ok   bool
	}{
		{"A", 0, true},
		{"B", 4, true},
		{"C", 0, false},
	} {
		got, ok := Offset(padded{}, tc.name)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Offset(%q): got (%d, %t), want (%d, %t)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func BenchmarkMarshalUnmarshal(b *testing.B) {
	b.ReportAllocs()

	in := outer{
		1, 2, 3,
		[3]uint16{4, 5, 6},
		inner{7},
	}
	buf := make([]byte, Size(&in))
	out := outer{}

	for i := 0; i < b.N; i++ {
		buf := Marshal(buf[:0], &in)
		if err := Unmarshal(buf, &out); err != nil {
			b.Fatal(err)
		}
	}
}
