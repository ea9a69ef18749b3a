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

// Package memlayout describes where the kernel lives in physical and virtual
// memory.
package memlayout

import (
	"errors"
	"fmt"

	"gvisor.dev/ring32/pkg/bits"
)

// Default values, matching a kernel linked at 0x80100000.
const (
	DefaultKernBase = 0x80000000 // First kernel virtual address.
	DefaultExtMem   = 0x00100000 // Start of extended memory.
	DefaultPhysTop  = 0x0E000000 // Top of usable physical memory.
	DefaultDevSpace = 0xFE000000 // Memory-mapped devices.
)

// ErrLayout is returned by Validate.
var ErrLayout = errors.New("invalid memory layout")

// superPageSize is the granularity of the boot mapping of KernBase.
const superPageSize = 1 << 22

// pageSize is the granularity of every other region.
const pageSize = 1 << 12

// Layout is the memory layout of the kernel. All physical memory below
// PhysTop is mapped at KernBase.
type Layout struct {
	KernBase uint32 `toml:"kernbase" json:"kernbase" yaml:"kernbase"`
	ExtMem   uint32 `toml:"extmem" json:"extmem" yaml:"extmem"`
	PhysTop  uint32 `toml:"phystop" json:"phystop" yaml:"phystop"`
	DevSpace uint32 `toml:"devspace" json:"devspace" yaml:"devspace"`
}

// Default returns the default layout.
func Default() Layout {
	return Layout{
		KernBase: DefaultKernBase,
		ExtMem:   DefaultExtMem,
		PhysTop:  DefaultPhysTop,
		DevSpace: DefaultDevSpace,
	}
}

// KernLink returns the address where the kernel is linked.
func (l Layout) KernLink() uint32 {
	return l.KernBase + l.ExtMem
}

// V2P converts a kernel virtual address to a physical address.
func (l Layout) V2P(va uint32) uint32 {
	return va - l.KernBase
}

// P2V converts a physical address to a kernel virtual address.
func (l Layout) P2V(pa uint32) uint32 {
	return pa + l.KernBase
}

// Validate checks that the regions are ordered and aligned.
func (l Layout) Validate() error {
	switch {
	case l.KernBase == 0 || !bits.IsAligned32(l.KernBase, superPageSize):
		return fmt.Errorf("%w: kernbase %#x is not a non-zero multiple of %#x", ErrLayout, l.KernBase, superPageSize)
	case !bits.IsAligned32(l.ExtMem|l.PhysTop|l.DevSpace, pageSize):
		return fmt.Errorf("%w: %+v is not page aligned", ErrLayout, l)
	case l.ExtMem >= l.PhysTop:
		return fmt.Errorf("%w: extmem %#x is not below phystop %#x", ErrLayout, l.ExtMem, l.PhysTop)
	case uint64(l.KernBase)+uint64(l.PhysTop) > uint64(l.DevSpace):
		return fmt.Errorf("%w: phystop %#x mapped at kernbase %#x overlaps devspace %#x", ErrLayout, l.PhysTop, l.KernBase, l.DevSpace)
	}
	return nil
}

// String implements fmt.Stringer.String.
func (l Layout) String() string {
	return fmt.Sprintf("kernbase=%#x extmem=%#x phystop=%#x devspace=%#x", l.KernBase, l.ExtMem, l.PhysTop, l.DevSpace)
}
