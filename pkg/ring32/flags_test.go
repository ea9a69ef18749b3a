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

import "testing"

func TestEFlagsIOPL(t *testing.T) {
	for _, tc := range []struct {
		flags EFlags
		want  int
	}{
		{0, 0},
		{FlagIOPL1, 1},
		{FlagIOPL2 | FlagIF, 2},
		{FlagIOPL3 | FlagCF | FlagID, 3},
	} {
		if got := tc.flags.IOPL(); got != tc.want {
			t.Errorf("EFlags(%#x).IOPL() = %d, want %d", uint32(tc.flags), got, tc.want)
		}
	}
}

func TestFlagValues(t *testing.T) {
	for _, tc := range []struct {
		name string
		got  uint32
		want uint32
	}{
		{"IF", uint32(FlagIF), 0x200},
		{"IOPL", uint32(FlagIOPLMask), 0x3000},
		{"ID", uint32(FlagID), 0x200000},
		{"PE", uint32(CR0PE), 0x1},
		{"WP", uint32(CR0WP), 0x10000},
		{"PG", uint32(CR0PG), 0x80000000},
		{"PSE", uint32(CR4PSE), 0x10},
	} {
		if tc.got != tc.want {
			t.Errorf("%s = %#x, want %#x", tc.name, tc.got, tc.want)
		}
	}
}

func TestFlagString(t *testing.T) {
	for _, tc := range []struct {
		got  string
		want string
	}{
		{EFlags(0).String(), "0"},
		{(FlagIF | FlagCF).String(), "CF|IF"},
		{FlagIOPL3.String(), "IOPL3"},
		{(UserFlagsSet | FlagIOPL1).String(), "1|IF|IOPL1"},
		{EFlags(0x400000).String(), "0x400000"},
		{(CR0PE | CR0PG | CR0WP).String(), "PE|WP|PG"},
		{CR4PSE.String(), "PSE"},
	} {
		if tc.got != tc.want {
			t.Errorf("got %q, want %q", tc.got, tc.want)
		}
	}
}
