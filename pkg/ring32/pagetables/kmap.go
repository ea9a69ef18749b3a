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

	"github.com/google/btree"
	"gvisor.dev/ring32/pkg/log"
	"gvisor.dev/ring32/pkg/ring32/memlayout"
)

// ErrOverlap is returned when kernel regions overlap.
var ErrOverlap = errors.New("overlapping kernel regions")

// Mapping is a kernel region: virtual Virt maps physical [PhysStart,
// PhysEnd). PhysEnd may wrap to zero for a region ending at 4GB.
type Mapping struct {
	Name      string `json:"name" yaml:"name"`
	Virt      Addr   `json:"virt" yaml:"virt"`
	PhysStart uint32 `json:"phys_start" yaml:"phys_start"`
	PhysEnd   uint32 `json:"phys_end" yaml:"phys_end"`
	Perm      PTE    `json:"perm" yaml:"perm"`
}

// Size returns the length of the region.
func (m Mapping) Size() uint32 {
	return m.PhysEnd - m.PhysStart
}

// virtEnd returns the exclusive end of the virtual range.
func (m Mapping) virtEnd() uint64 {
	return uint64(m.Virt) + uint64(m.Size())
}

// String implements fmt.Stringer.String.
func (m Mapping) String() string {
	return fmt.Sprintf("%-8s %v-%#09x -> %#08x perm=%v", m.Name, m.Virt, m.virtEnd(), m.PhysStart, m.Perm.Flags())
}

// KernelMappings returns the regions every kernel address space maps.
//
// dataStart is the first address of the kernel's writable data; everything
// from KernLink up to it is mapped read-only.
func KernelMappings(l memlayout.Layout, dataStart Addr) ([]Mapping, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if !dataStart.IsPageAligned() {
		return nil, fmt.Errorf("%w: data start %v", ErrUnaligned, dataStart)
	}
	if uint32(dataStart) < l.KernLink() || uint32(dataStart) > l.P2V(l.PhysTop) {
		return nil, fmt.Errorf("%w: data start %v outside [%#x, %#x]", ErrRange, dataStart, l.KernLink(), l.P2V(l.PhysTop))
	}
	ms := []Mapping{
		{"io", Addr(l.KernBase), 0, l.ExtMem, Writable},
		{"text", Addr(l.KernLink()), l.V2P(l.KernLink()), l.V2P(uint32(dataStart)), 0},
		{"data", dataStart, l.V2P(uint32(dataStart)), l.PhysTop, Writable},
		{"devices", Addr(l.DevSpace), l.DevSpace, 0, Writable},
	}
	if err := CheckMappings(ms); err != nil {
		return nil, err
	}
	return ms, nil
}

// CheckMappings returns ErrOverlap if the virtual ranges of any two
// mappings intersect.
func CheckMappings(ms []Mapping) error {
	set := btree.NewG(2, func(a, b Mapping) bool {
		return a.Virt < b.Virt
	})
	for _, m := range ms {
		if m.Size() == 0 {
			continue
		}
		var conflict *Mapping
		set.DescendLessOrEqual(m, func(prev Mapping) bool {
			if prev.virtEnd() > uint64(m.Virt) {
				conflict = &prev
			}
			return false
		})
		set.AscendGreaterOrEqual(m, func(next Mapping) bool {
			if uint64(next.Virt) < m.virtEnd() {
				conflict = &next
			}
			return false
		})
		if conflict != nil {
			return fmt.Errorf("%w: %s and %s", ErrOverlap, conflict.Name, m.Name)
		}
		set.ReplaceOrInsert(m)
	}
	return nil
}

// SetupKernel returns page tables with only the kernel regions mapped.
func SetupKernel(a Allocator, l memlayout.Layout, dataStart Addr) (*PageTables, error) {
	ms, err := KernelMappings(l, dataStart)
	if err != nil {
		return nil, err
	}
	p, err := New(a)
	if err != nil {
		return nil, err
	}
	for _, m := range ms {
		if err := p.Map(m.Virt, m.Size(), m.PhysStart, m.Perm); err != nil {
			p.Release()
			return nil, fmt.Errorf("mapping %s: %w", m.Name, err)
		}
		log.Debugf("Mapped kernel region %v", m)
	}
	return p, nil
}
