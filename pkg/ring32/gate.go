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

	"gvisor.dev/ring32/pkg/binary"
	"gvisor.dev/ring32/pkg/bits"
)

// Gate is a 32-bit interrupt or trap gate descriptor.
type Gate struct {
	bits [2]uint32
}

const (
	gatePresent  = 1 << 15
	argsShift    = 0
	argsWidth    = 5
	gateRsvShift = 5
	gateRsvWidth = 3
)

// MakeGate returns an interrupt gate, or a trap gate if isTrap is set, that
// transfers control to offset within the code segment sel.
//
// An interrupt gate clears IF on entry; a trap gate leaves it unchanged.
func MakeGate(isTrap bool, sel Selector, offset uint32, dpl int) Gate {
	typ := SysInterruptGate32
	if isTrap {
		typ = SysTrapGate32
	}
	var g Gate
	g.set(typ, sel, offset, dpl, true)
	return g
}

func (g *Gate) set(typ SegmentType, sel Selector, offset uint32, dpl int, present bool) {
	g.bits[0] = uint32(sel)<<16 | offset&0xFFFF
	g.bits[1] = offset & 0xFFFF0000
	g.bits[1] = bits.SetField32(g.bits[1], uint32(typ), typeShift, typeWidth)
	g.bits[1] = bits.SetField32(g.bits[1], uint32(dpl), dplShift, dplWidth)
	if present {
		g.bits[1] |= gatePresent
	}
}

// Offset returns the handler offset.
func (g Gate) Offset() uint32 {
	return g.bits[1]&0xFFFF0000 | g.bits[0]&0xFFFF
}

// Selector returns the code segment selector of the handler.
func (g Gate) Selector() Selector {
	return Selector(g.bits[0] >> 16)
}

// Type returns the gate type.
func (g Gate) Type() SegmentType {
	return SegmentType(bits.Field32(g.bits[1], typeShift, typeWidth))
}

// DPL returns the lowest privilege allowed to invoke the gate with int.
func (g Gate) DPL() int {
	return int(bits.Field32(g.bits[1], dplShift, dplWidth))
}

// Present returns true iff the present bit is set.
func (g Gate) Present() bool {
	return g.bits[1]&gatePresent != 0
}

// IsTrap returns true for trap gates.
func (g Gate) IsTrap() bool {
	return g.Type() == SysTrapGate32 || g.Type() == SysTrapGate16
}

// ClearsInterrupts returns true if delivery through g clears FlagIF.
func (g Gate) ClearsInterrupts() bool {
	return !g.IsTrap()
}

// Uint64 returns the gate as a single 64-bit word.
func (g Gate) Uint64() uint64 {
	return uint64(g.bits[1])<<32 | uint64(g.bits[0])
}

// GateFromUint64 is the inverse of Gate.Uint64.
func GateFromUint64(v uint64) Gate {
	return Gate{bits: [2]uint32{uint32(v), uint32(v >> 32)}}
}

// Bytes returns the in-memory encoding of the gate.
func (g Gate) Bytes() [8]byte {
	var b [8]byte
	copy(b[:], binary.Marshal(nil, &g.bits))
	return b
}

// GateFromBytes decodes an in-memory gate.
func GateFromBytes(b [8]byte) Gate {
	return Gate{bits: [2]uint32{
		binary.LittleEndian.Uint32(b[0:4]),
		binary.LittleEndian.Uint32(b[4:8]),
	}}
}

// String implements fmt.Stringer.String.
func (g Gate) String() string {
	kind := "intr"
	if g.IsTrap() {
		kind = "trap"
	}
	return fmt.Sprintf("%s sel=%s off=%#08x dpl=%d", kind, g.Selector(), g.Offset(), g.DPL())
}

// GateFields holds every field of a gate descriptor in decoded form.
type GateFields struct {
	Offset   uint32      `json:"offset" yaml:"offset"`
	Selector Selector    `json:"selector" yaml:"selector"`
	Args     uint32      `json:"args" yaml:"args"`
	Reserved uint32      `json:"reserved" yaml:"reserved"`
	Type     SegmentType `json:"type" yaml:"type"`
	System   bool        `json:"system" yaml:"system"`
	DPL      int         `json:"dpl" yaml:"dpl"`
	Present  bool        `json:"present" yaml:"present"`
}

// Fields decodes g.
func (g Gate) Fields() GateFields {
	return GateFields{
		Offset:   g.Offset(),
		Selector: g.Selector(),
		Args:     bits.Field32(g.bits[1], argsShift, argsWidth),
		Reserved: bits.Field32(g.bits[1], gateRsvShift, gateRsvWidth),
		Type:     g.Type(),
		System:   !bits.IsOn32(g.bits[1], uint32(SegmentDescriptorApplication)),
		DPL:      g.DPL(),
		Present:  g.Present(),
	}
}

// Encode is the inverse of Gate.Fields.
func (f GateFields) Encode() Gate {
	var g Gate
	g.set(f.Type, f.Selector, f.Offset, f.DPL, f.Present)
	g.bits[1] = bits.SetField32(g.bits[1], f.Args, argsShift, argsWidth)
	g.bits[1] = bits.SetField32(g.bits[1], f.Reserved, gateRsvShift, gateRsvWidth)
	if !f.System {
		g.bits[1] |= uint32(SegmentDescriptorApplication)
	}
	return g
}
