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
	"fmt"

	"gvisor.dev/ring32/pkg/binary"
	"gvisor.dev/ring32/pkg/bits"
)

// SegmentType is the four bit type field of a segment or gate descriptor.
// Its meaning depends on whether the descriptor is an application or a
// system descriptor.
type SegmentType uint8

// Application segment type bits.
const (
	AppExecute    SegmentType = 0x8 // Executable segment.
	AppExpandDown SegmentType = 0x4 // Expand down (non-executable segments).
	AppConforming SegmentType = 0x4 // Conforming code segment (executable only).
	AppWrite      SegmentType = 0x2 // Writeable (non-executable segments).
	AppRead       SegmentType = 0x2 // Readable (executable segments).
	AppAccessed   SegmentType = 0x1 // Accessed.
)

// System segment types.
const (
	SysTSS16Available  SegmentType = 0x1 // Available 16-bit TSS.
	SysLDT             SegmentType = 0x2 // Local Descriptor Table.
	SysTSS16Busy       SegmentType = 0x3 // Busy 16-bit TSS.
	SysCallGate16      SegmentType = 0x4 // 16-bit Call Gate.
	SysTaskGate        SegmentType = 0x5 // Task Gate.
	SysInterruptGate16 SegmentType = 0x6 // 16-bit Interrupt Gate.
	SysTrapGate16      SegmentType = 0x7 // 16-bit Trap Gate.
	SysTSS32Available  SegmentType = 0x9 // Available 32-bit TSS.
	SysTSS32Busy       SegmentType = 0xB // Busy 32-bit TSS.
	SysCallGate32      SegmentType = 0xC // 32-bit Call Gate.
	SysInterruptGate32 SegmentType = 0xE // 32-bit Interrupt Gate.
	SysTrapGate32      SegmentType = 0xF // 32-bit Trap Gate.
)

// UserDPL is the descriptor privilege level of user segments.
const UserDPL = 3

// SegmentDescriptorFlags are typed flags within the high word of a
// descriptor.
type SegmentDescriptorFlags uint32

// SegmentDescriptorFlag declarations.
const (
	SegmentDescriptorApplication SegmentDescriptorFlags = 1 << 12 // Zero => system, 1 => user code/data.
	SegmentDescriptorPresent     SegmentDescriptorFlags = 1 << 15 // Present.
	SegmentDescriptorAVL         SegmentDescriptorFlags = 1 << 20 // Available for software use.
	SegmentDescriptorReserved    SegmentDescriptorFlags = 1 << 21 // Reserved.
	SegmentDescriptorDB          SegmentDescriptorFlags = 1 << 22 // 0 = 16-bit, 1 = 32-bit segment.
	SegmentDescriptorG           SegmentDescriptorFlags = 1 << 23 // Granularity: limit scaled by 4K when set.
)

// Field positions within the high word.
const (
	typeShift = 8
	typeWidth = 4
	dplShift  = 13
	dplWidth  = 2
)

// ErrLimitPrecision is returned by CheckPageLimit for byte limits that a 4K
// granular segment cannot represent exactly.
var ErrLimitPrecision = errors.New("segment limit is not page granular")

// SegmentDescriptor is an i386 segment descriptor. The zero value is the null
// descriptor.
type SegmentDescriptor struct {
	bits [2]uint32
}

// MakeSegment returns a normal 32-bit segment with 4K granularity.
//
// limit is a byte limit. It is always scaled down by 4K, so its low 12 bits
// are lost; see CheckPageLimit.
func MakeSegment(typ SegmentType, base, limit uint32, dpl int) SegmentDescriptor {
	var d SegmentDescriptor
	d.set(typ, base, limit>>12, dpl,
		SegmentDescriptorApplication|
			SegmentDescriptorPresent|
			SegmentDescriptorDB|
			SegmentDescriptorG)
	return d
}

// MakeSegment16 returns a byte granular segment. Only the low 20 bits of
// limit are kept.
func MakeSegment16(typ SegmentType, base, limit uint32, dpl int) SegmentDescriptor {
	var d SegmentDescriptor
	d.set(typ, base, limit, dpl,
		SegmentDescriptorApplication|
			SegmentDescriptorPresent|
			SegmentDescriptorDB)
	return d
}

// set encodes the descriptor. limit is the raw 20-bit limit field.
func (d *SegmentDescriptor) set(typ SegmentType, base, limit uint32, dpl int, flags SegmentDescriptorFlags) {
	d.bits[0] = base<<16 | limit&0xFFFF
	d.bits[1] = base&0xFF000000 | (base>>16)&0xFF | limit&0x000F0000 | uint32(flags)
	d.bits[1] = bits.SetField32(d.bits[1], uint32(typ), typeShift, typeWidth)
	d.bits[1] = bits.SetField32(d.bits[1], uint32(dpl), dplShift, dplWidth)
}

// AsSystem returns d with the application bit cleared, making it a system
// descriptor (e.g. a TSS or LDT).
func (d SegmentDescriptor) AsSystem() SegmentDescriptor {
	d.bits[1] &^= uint32(SegmentDescriptorApplication)
	return d
}

// CheckPageLimit returns ErrLimitPrecision if MakeSegment would round limit.
//
// A 4K granular segment always ends on the last byte of a page, so the byte
// limit must have all of its low 12 bits set.
func CheckPageLimit(limit uint32) error {
	if limit&0xFFF != 0xFFF {
		return fmt.Errorf("%w: limit %#x is encoded as %#x", ErrLimitPrecision, limit, limit|0xFFF)
	}
	return nil
}

// Base returns the descriptor's base linear address.
func (d SegmentDescriptor) Base() uint32 {
	return d.bits[1]&0xFF000000 | (d.bits[1]&0x000000FF)<<16 | d.bits[0]>>16
}

// RawLimit returns the 20-bit limit field.
func (d SegmentDescriptor) RawLimit() uint32 {
	return d.bits[0]&0xFFFF | d.bits[1]&0xF0000
}

// Limit returns the byte limit of the segment, accounting for granularity.
func (d SegmentDescriptor) Limit() uint32 {
	l := d.RawLimit()
	if d.bits[1]&uint32(SegmentDescriptorG) != 0 {
		l <<= 12
		l |= 0xFFF
	}
	return l
}

// Type returns the type field.
func (d SegmentDescriptor) Type() SegmentType {
	return SegmentType(bits.Field32(d.bits[1], typeShift, typeWidth))
}

// Flags returns descriptor flags.
func (d SegmentDescriptor) Flags() SegmentDescriptorFlags {
	return SegmentDescriptorFlags(d.bits[1] & 0x00F09000)
}

// DPL returns the descriptor privilege level.
func (d SegmentDescriptor) DPL() int {
	return int(bits.Field32(d.bits[1], dplShift, dplWidth))
}

// Present returns true iff the present bit is set.
func (d SegmentDescriptor) Present() bool {
	return bits.IsOn32(d.bits[1], uint32(SegmentDescriptorPresent))
}

// Application returns true for code and data segments, false for system
// descriptors.
func (d SegmentDescriptor) Application() bool {
	return bits.IsOn32(d.bits[1], uint32(SegmentDescriptorApplication))
}

// Uint64 returns the descriptor as a single 64-bit word.
func (d SegmentDescriptor) Uint64() uint64 {
	return uint64(d.bits[1])<<32 | uint64(d.bits[0])
}

// SegmentFromUint64 is the inverse of SegmentDescriptor.Uint64.
func SegmentFromUint64(v uint64) SegmentDescriptor {
	return SegmentDescriptor{bits: [2]uint32{uint32(v), uint32(v >> 32)}}
}

// Bytes returns the in-memory encoding of the descriptor.
func (d SegmentDescriptor) Bytes() [8]byte {
	var b [8]byte
	copy(b[:], binary.Marshal(nil, &d.bits))
	return b
}

// SegmentFromBytes decodes an in-memory descriptor.
func SegmentFromBytes(b [8]byte) SegmentDescriptor {
	return SegmentDescriptor{bits: [2]uint32{
		binary.LittleEndian.Uint32(b[0:4]),
		binary.LittleEndian.Uint32(b[4:8]),
	}}
}

// String implements fmt.Stringer.String.
func (d SegmentDescriptor) String() string {
	if d == (SegmentDescriptor{}) {
		return "null"
	}
	class := "app"
	if !d.Application() {
		class = "sys"
	}
	return fmt.Sprintf("%s type=%#x base=%#08x limit=%#08x dpl=%d flags=%#x", class, d.Type(), d.Base(), d.Limit(), d.DPL(), d.Flags())
}

// SegmentFields holds every field of a segment descriptor in decoded form.
type SegmentFields struct {
	// Limit is the raw 20-bit limit field, not scaled by granularity.
	Limit       uint32      `json:"limit" yaml:"limit"`
	Base        uint32      `json:"base" yaml:"base"`
	Type        SegmentType `json:"type" yaml:"type"`
	Application bool        `json:"application" yaml:"application"`
	DPL         int         `json:"dpl" yaml:"dpl"`
	Present     bool        `json:"present" yaml:"present"`
	Available   bool        `json:"available" yaml:"available"`
	Reserved    bool        `json:"reserved" yaml:"reserved"`
	DB          bool        `json:"db" yaml:"db"`
	Granularity bool        `json:"granularity" yaml:"granularity"`
}

// Fields decodes d.
func (d SegmentDescriptor) Fields() SegmentFields {
	hi := d.bits[1]
	return SegmentFields{
		Limit:       d.RawLimit(),
		Base:        d.Base(),
		Type:        d.Type(),
		Application: bits.IsOn32(hi, uint32(SegmentDescriptorApplication)),
		DPL:         d.DPL(),
		Present:     bits.IsOn32(hi, uint32(SegmentDescriptorPresent)),
		Available:   bits.IsOn32(hi, uint32(SegmentDescriptorAVL)),
		Reserved:    bits.IsOn32(hi, uint32(SegmentDescriptorReserved)),
		DB:          bits.IsOn32(hi, uint32(SegmentDescriptorDB)),
		Granularity: bits.IsOn32(hi, uint32(SegmentDescriptorG)),
	}
}

// Encode is the inverse of SegmentDescriptor.Fields.
func (f SegmentFields) Encode() SegmentDescriptor {
	var flags SegmentDescriptorFlags
	for _, b := range []struct {
		on   bool
		flag SegmentDescriptorFlags
	}{
		{f.Application, SegmentDescriptorApplication},
		{f.Present, SegmentDescriptorPresent},
		{f.Available, SegmentDescriptorAVL},
		{f.Reserved, SegmentDescriptorReserved},
		{f.DB, SegmentDescriptorDB},
		{f.Granularity, SegmentDescriptorG},
	} {
		if b.on {
			flags |= b.flag
		}
	}
	var d SegmentDescriptor
	d.set(f.Type, f.Base, f.Limit, f.DPL, flags)
	return d
}
