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
	"fmt"

	"gvisor.dev/ring32/pkg/bits"
)

// Addr is a 32-bit virtual or physical address.
type Addr uint32

const (
	pdxShift = 22
	ptxShift = 12
	idxMask  = EntriesPerPage - 1
)

// PageAddr constructs an address from its directory index, table index and
// offset.
func PageAddr(pdx, ptx int, off uint32) Addr {
	return Addr(uint32(pdx)<<pdxShift | uint32(ptx)<<ptxShift | off&(PageSize-1))
}

// PDX returns the page directory index.
func (v Addr) PDX() int {
	return int(v>>pdxShift) & idxMask
}

// PTX returns the page table index.
func (v Addr) PTX() int {
	return int(v>>ptxShift) & idxMask
}

// Offset returns the offset within the page.
func (v Addr) Offset() uint32 {
	return uint32(v) & (PageSize - 1)
}

// RoundDown returns the address rounded down to the nearest page boundary.
func (v Addr) RoundDown() Addr {
	return Addr(bits.AlignDown32(uint32(v), PageSize))
}

// RoundUp returns the address rounded up to the nearest page boundary. ok is
// true iff rounding up did not wrap around.
func (v Addr) RoundUp() (addr Addr, ok bool) {
	x, ok := bits.AlignUp32(uint32(v), PageSize)
	return Addr(x), ok
}

// IsPageAligned returns true if v is a multiple of the page size.
func (v Addr) IsPageAligned() bool {
	return bits.IsAligned32(uint32(v), PageSize)
}

// AddLength adds the given length to start and returns the result. ok is
// true iff adding the length did not overflow the range.
func (v Addr) AddLength(length uint32) (end uint64, ok bool) {
	end = uint64(v) + uint64(length)
	ok = end <= 1<<32
	return
}

// String implements fmt.Stringer.String.
func (v Addr) String() string {
	return fmt.Sprintf("%#08x", uint32(v))
}
