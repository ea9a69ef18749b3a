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
	"fmt"
	"strconv"
	"strings"
)

// EFlags is the processor flags register.
type EFlags uint32

// EFlags bits.
const (
	FlagCF       EFlags = 0x00000001 // Carry Flag
	FlagPF       EFlags = 0x00000004 // Parity Flag
	FlagAF       EFlags = 0x00000010 // Auxiliary carry Flag
	FlagZF       EFlags = 0x00000040 // Zero Flag
	FlagSF       EFlags = 0x00000080 // Sign Flag
	FlagTF       EFlags = 0x00000100 // Trap Flag
	FlagIF       EFlags = 0x00000200 // Interrupt Enable
	FlagDF       EFlags = 0x00000400 // Direction Flag
	FlagOF       EFlags = 0x00000800 // Overflow Flag
	FlagIOPLMask EFlags = 0x00003000 // I/O Privilege Level bitmask
	FlagIOPL0    EFlags = 0x00000000 //   IOPL == 0
	FlagIOPL1    EFlags = 0x00001000 //   IOPL == 1
	FlagIOPL2    EFlags = 0x00002000 //   IOPL == 2
	FlagIOPL3    EFlags = 0x00003000 //   IOPL == 3
	FlagNT       EFlags = 0x00004000 // Nested Task
	FlagRF       EFlags = 0x00010000 // Resume Flag
	FlagVM       EFlags = 0x00020000 // Virtual 8086 mode
	FlagAC       EFlags = 0x00040000 // Alignment Check
	FlagVIF      EFlags = 0x00080000 // Virtual Interrupt Flag
	FlagVIP      EFlags = 0x00100000 // Virtual Interrupt Pending
	FlagID       EFlags = 0x00200000 // ID flag

	// flagReserved is bit 1, which always reads as one.
	flagReserved EFlags = 0x00000002
)

const (
	// KernelFlagsSet should always be set in the kernel.
	KernelFlagsSet = flagReserved

	// UserFlagsSet are always set in userspace.
	UserFlagsSet = flagReserved | FlagIF

	// KernelFlagsClear should always be clear in the kernel.
	KernelFlagsClear = FlagTF | FlagIF | FlagIOPLMask | FlagAC | FlagNT

	// UserFlagsClear are always cleared in userspace.
	UserFlagsClear = FlagNT | FlagIOPLMask
)

// IOPL returns the I/O privilege level encoded in f.
func (f EFlags) IOPL() int {
	return int((f & FlagIOPLMask) >> 12)
}

// CR0 is control register 0.
type CR0 uint32

// CR0 bits.
const (
	CR0PE CR0 = 0x00000001 // Protection Enable
	CR0MP CR0 = 0x00000002 // Monitor coProcessor
	CR0EM CR0 = 0x00000004 // Emulation
	CR0TS CR0 = 0x00000008 // Task Switched
	CR0ET CR0 = 0x00000010 // Extension Type
	CR0NE CR0 = 0x00000020 // Numeric Error
	CR0WP CR0 = 0x00010000 // Write Protect
	CR0AM CR0 = 0x00040000 // Alignment Mask
	CR0NW CR0 = 0x20000000 // Not Writethrough
	CR0CD CR0 = 0x40000000 // Cache Disable
	CR0PG CR0 = 0x80000000 // Paging
)

// CR4 is control register 4.
type CR4 uint32

// CR4 bits.
const (
	CR4PSE CR4 = 0x00000010 // Page size extension
)

type flagName struct {
	bit  uint32
	name string
}

var eflagNames = []flagName{
	{uint32(FlagCF), "CF"},
	{uint32(flagReserved), "1"},
	{uint32(FlagPF), "PF"},
	{uint32(FlagAF), "AF"},
	{uint32(FlagZF), "ZF"},
	{uint32(FlagSF), "SF"},
	{uint32(FlagTF), "TF"},
	{uint32(FlagIF), "IF"},
	{uint32(FlagDF), "DF"},
	{uint32(FlagOF), "OF"},
	{uint32(FlagNT), "NT"},
	{uint32(FlagRF), "RF"},
	{uint32(FlagVM), "VM"},
	{uint32(FlagAC), "AC"},
	{uint32(FlagVIF), "VIF"},
	{uint32(FlagVIP), "VIP"},
	{uint32(FlagID), "ID"},
}

var cr0Names = []flagName{
	{uint32(CR0PE), "PE"},
	{uint32(CR0MP), "MP"},
	{uint32(CR0EM), "EM"},
	{uint32(CR0TS), "TS"},
	{uint32(CR0ET), "ET"},
	{uint32(CR0NE), "NE"},
	{uint32(CR0WP), "WP"},
	{uint32(CR0AM), "AM"},
	{uint32(CR0NW), "NW"},
	{uint32(CR0CD), "CD"},
	{uint32(CR0PG), "PG"},
}

var cr4Names = []flagName{
	{uint32(CR4PSE), "PSE"},
}

// flagString renders the set bits of v joined by '|'. Bits without a name
// are rendered in hex at the end.
func flagString(v uint32, names []flagName) string {
	var parts []string
	for _, n := range names {
		if v&n.bit != 0 {
			parts = append(parts, n.name)
			v &^= n.bit
		}
	}
	if v != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(uint64(v), 16))
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}

// String implements fmt.Stringer.String.
func (f EFlags) String() string {
	s := flagString(uint32(f&^FlagIOPLMask), eflagNames)
	iopl := f.IOPL()
	switch {
	case iopl == 0:
		return s
	case s == "0":
		return fmt.Sprintf("IOPL%d", iopl)
	default:
		return fmt.Sprintf("%s|IOPL%d", s, iopl)
	}
}

// String implements fmt.Stringer.String.
func (c CR0) String() string {
	return flagString(uint32(c), cr0Names)
}

// String implements fmt.Stringer.String.
func (c CR4) String() string {
	return flagString(uint32(c), cr4Names)
}
