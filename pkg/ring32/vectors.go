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

// Vector is an interrupt vector.
type Vector uint8

// NumVectors is the number of IDT entries.
const NumVectors = 256

// Processor exception vectors.
const (
	DivideByZero Vector = iota
	Debug
	NMI
	Breakpoint
	Overflow
	BoundRangeExceeded
	InvalidOpcode
	DeviceNotAvailable
	DoubleFault
	CoprocessorSegmentOverrun
	InvalidTSS
	SegmentNotPresent
	StackSegmentFault
	GeneralProtectionFault
	PageFault
	_
	X87FloatingPointException
	AlignmentCheck
	MachineCheck
	SIMDFloatingPointException
)

// Software-chosen vectors. They overlap neither processor exceptions nor
// each other.
const (
	IRQ0    Vector = 32
	Syscall Vector = 64
)

// External interrupt lines, relative to IRQ0.
const (
	IRQTimer    = 0
	IRQKbd      = 1
	IRQCOM1     = 4
	IRQIDE      = 14
	IRQError    = 19
	IRQSpurious = 31
)

var vectorNames = map[Vector]string{
	DivideByZero:               "DivideByZero",
	Debug:                      "Debug",
	NMI:                        "NMI",
	Breakpoint:                 "Breakpoint",
	Overflow:                   "Overflow",
	BoundRangeExceeded:         "BoundRangeExceeded",
	InvalidOpcode:              "InvalidOpcode",
	DeviceNotAvailable:         "DeviceNotAvailable",
	DoubleFault:                "DoubleFault",
	CoprocessorSegmentOverrun:  "CoprocessorSegmentOverrun",
	InvalidTSS:                 "InvalidTSS",
	SegmentNotPresent:          "SegmentNotPresent",
	StackSegmentFault:          "StackSegmentFault",
	GeneralProtectionFault:     "GeneralProtectionFault",
	PageFault:                  "PageFault",
	X87FloatingPointException:  "X87FloatingPointException",
	AlignmentCheck:             "AlignmentCheck",
	MachineCheck:               "MachineCheck",
	SIMDFloatingPointException: "SIMDFloatingPointException",
	Syscall:                    "Syscall",
}

// IRQ returns the vector of external interrupt line irq.
func IRQ(irq int) Vector {
	return IRQ0 + Vector(irq)
}

// String implements fmt.Stringer.String.
func (v Vector) String() string {
	if name, ok := vectorNames[v]; ok {
		return name
	}
	if v >= IRQ0 && v <= IRQ(IRQSpurious) {
		return fmt.Sprintf("IRQ%d", v-IRQ0)
	}
	return fmt.Sprintf("Vector%d", uint8(v))
}
