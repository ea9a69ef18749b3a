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

import "fmt"

// Selector is a segment selector.
type Selector uint16

// Indices of the fixed GDT entries.
const (
	SegNull = iota
	SegKCode
	SegKData
	SegKCPU
	SegUCode
	SegUData
	SegTSS

	// NumSegments is the number of entries in each GDT.
	NumSegments
)

// Fixed selectors.
const (
	Kcode   Selector = SegKCode << 3
	Kdata   Selector = SegKData << 3
	Kcpu    Selector = SegKCPU << 3
	Ucode   Selector = SegUCode<<3 | UserDPL
	Udata   Selector = SegUData<<3 | UserDPL
	TSSSel  Selector = SegTSS << 3
	selLDT  Selector = 1 << 2
	rplMask Selector = 0x3
)

// MakeSelector returns the GDT selector for index at rpl.
func MakeSelector(index int, rpl int) Selector {
	return Selector(index)<<3 | Selector(rpl)&rplMask
}

// Index returns the descriptor table index.
func (s Selector) Index() int {
	return int(s >> 3)
}

// RPL returns the requested privilege level.
func (s Selector) RPL() int {
	return int(s & rplMask)
}

// LDT returns true if s refers to the local descriptor table.
func (s Selector) LDT() bool {
	return s&selLDT != 0
}

// String implements fmt.Stringer.String.
func (s Selector) String() string {
	return fmt.Sprintf("%#x", uint16(s))
}
