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
	"errors"
	"fmt"
	"strings"

	"gvisor.dev/ring32/pkg/binary"
	"gvisor.dev/ring32/pkg/bits"
)

// PTE is a page table or page directory entry.
type PTE uint32

// Entry flags.
const (
	Present      PTE = 0x001
	Writable     PTE = 0x002
	User         PTE = 0x004
	WriteThrough PTE = 0x008
	CacheDisable PTE = 0x010
	Accessed     PTE = 0x020
	Dirty        PTE = 0x040
	Super        PTE = 0x080

	// MustBeZero are the bits that must be clear in a directory entry
	// that points to a page table.
	MustBeZero PTE = 0x180

	flagsMask PTE = 0xFFF
)

const (
	// EntriesPerPage is the number of entries in a directory or table.
	EntriesPerPage = 1024

	// PageSize is the size of a page mapped by a table entry.
	PageSize = 1 << 12

	// SuperPageSize is the size of a page mapped by a directory entry with
	// Super set.
	SuperPageSize = 1 << 22
)

var (
	// ErrUnaligned is returned for misaligned frames and addresses.
	ErrUnaligned = errors.New("unaligned address")

	// ErrFlags is returned for flags that do not fit in an entry.
	ErrFlags = errors.New("invalid entry flags")
)

// NewPTE returns an entry for frame with the given flags.
//
// frame must be page aligned, or super page aligned if flags has Super.
func NewPTE(frame uint32, flags PTE) (PTE, error) {
	if bits.IsAnyOn32(uint32(flags), ^uint32(flagsMask)) {
		return 0, fmt.Errorf("%w: %#x", ErrFlags, uint32(flags))
	}
	align := uint32(PageSize)
	if flags&Super != 0 {
		align = SuperPageSize
	}
	if !bits.IsAligned32(frame, align) {
		return 0, fmt.Errorf("%w: frame %#x, need %#x", ErrUnaligned, frame, align)
	}
	return PTE(frame) | flags, nil
}

// Address returns the frame address.
func (p PTE) Address() uint32 {
	return uint32(p &^ flagsMask)
}

// Flags returns the flags only.
func (p PTE) Flags() PTE {
	return p & flagsMask
}

// Valid returns true iff this entry is present.
func (p PTE) Valid() bool {
	return p&Present != 0
}

// IsSuper returns true iff this is a 4MB directory entry.
func (p PTE) IsSuper() bool {
	return p&Super != 0
}

// Writeable returns true iff the page is writable.
func (p PTE) Writeable() bool {
	return p&Writable != 0
}

// User returns true iff the page is user accessible.
func (p PTE) User() bool {
	return p&User != 0
}

// Clear clears this PTE.
func (p *PTE) Clear() {
	*p = 0
}

var pteNames = []struct {
	bit  PTE
	name string
}{
	{Present, "P"},
	{Writable, "W"},
	{User, "U"},
	{WriteThrough, "PWT"},
	{CacheDisable, "PCD"},
	{Accessed, "A"},
	{Dirty, "D"},
	{Super, "PS"},
}

// String implements fmt.Stringer.String.
func (p PTE) String() string {
	var flags []string
	rest := p.Flags()
	for _, n := range pteNames {
		if rest&n.bit != 0 {
			flags = append(flags, n.name)
			rest &^= n.bit
		}
	}
	if rest != 0 {
		flags = append(flags, fmt.Sprintf("%#x", uint32(rest)))
	}
	if len(flags) == 0 {
		return fmt.Sprintf("%#08x", p.Address())
	}
	return fmt.Sprintf("%#08x %s", p.Address(), strings.Join(flags, "|"))
}

// PTEs is a page directory or page table.
type PTEs [EntriesPerPage]PTE

// Bytes returns the in-memory encoding of the table.
func (p *PTEs) Bytes() []byte {
	return binary.Marshal(make([]byte, 0, PageSize), p)
}
