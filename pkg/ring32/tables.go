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

import "gvisor.dev/ring32/pkg/binary"

// DescriptorTablePointer is the operand of lgdt and lidt.
type DescriptorTablePointer struct {
	// Limit is the table size in bytes, minus one.
	Limit uint16
	Base  uint32
}

// Bytes returns the 6-byte pseudo-descriptor.
func (p DescriptorTablePointer) Bytes() [6]byte {
	var b [6]byte
	copy(b[:], binary.Marshal(nil, &p))
	return b
}

// tablePointer returns the pointer for n 8-byte descriptors at base.
func tablePointer(base uint32, n int) DescriptorTablePointer {
	return DescriptorTablePointer{
		Limit: uint16(n*8 - 1),
		Base:  base,
	}
}
