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

// Package pagetables provides two-level i386 page tables.
package pagetables

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gvisor.dev/ring32/pkg/bits"
	"gvisor.dev/ring32/pkg/log"
)

var (
	// ErrRemap is returned by Map when a page is already mapped.
	ErrRemap = errors.New("page already mapped")

	// ErrRange is returned for ranges that wrap around the address space.
	ErrRange = errors.New("range wraps around the address space")

	// ErrSuperPage is returned when a walk meets a 4MB mapping.
	ErrSuperPage = errors.New("address is covered by a super page")
)

// tableFlags are the flags of a directory entry pointing at a page table.
// Access is restricted by the leaf entries.
const tableFlags = Present | Writable | User

// PageTables is a page directory and the page tables it points at.
type PageTables struct {
	mu sync.Mutex

	// Allocator is used to allocate nodes.
	Allocator Allocator

	// root is the page directory; nil after Release.
	root *PTEs

	// rootPhysical is the physical address of root.
	rootPhysical uint32
}

// New returns new PageTables with an empty directory.
func New(a Allocator) (*PageTables, error) {
	root, phys, err := a.NewPTEs()
	if err != nil {
		return nil, fmt.Errorf("allocating page directory: %w", err)
	}
	return &PageTables{
		Allocator:    a,
		root:         root,
		rootPhysical: phys,
	}, nil
}

// Root returns the page directory.
func (p *PageTables) Root() *PTEs {
	return p.root
}

// RootPhysical returns the physical address of the directory, the value to
// load in CR3.
func (p *PageTables) RootPhysical() uint32 {
	return p.rootPhysical
}

// Walk returns the table entry that maps va.
//
// If alloc is set, a missing page table is allocated; otherwise a nil entry
// is returned for it.
func (p *PageTables) Walk(va Addr, alloc bool) (*PTE, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.walk(va, alloc)
}

// walk implements Walk.
//
// Precondition: p.mu must be held.
func (p *PageTables) walk(va Addr, alloc bool) (*PTE, error) {
	pde := &p.root[va.PDX()]
	if pde.IsSuper() {
		return nil, fmt.Errorf("%w: %v", ErrSuperPage, va)
	}
	var table *PTEs
	if pde.Valid() {
		table = p.Allocator.LookupPTEs(pde.Address())
		if table == nil {
			panic(fmt.Sprintf("directory entry %d points at unknown table %#x", va.PDX(), pde.Address()))
		}
	} else {
		if !alloc {
			return nil, nil
		}
		var (
			phys uint32
			err  error
		)
		if table, phys, err = p.Allocator.NewPTEs(); err != nil {
			return nil, fmt.Errorf("allocating page table for %v: %w", va, err)
		}
		*pde = PTE(phys) | tableFlags
	}
	return &table[va.PTX()], nil
}

// pages returns the first and last page of [va, va+size).
func pages(va Addr, size uint32) (first, last Addr, err error) {
	end, ok := va.AddLength(size)
	if !ok {
		return 0, 0, fmt.Errorf("%w: [%v, +%#x)", ErrRange, va, size)
	}
	return va.RoundDown(), Addr(end - 1).RoundDown(), nil
}

// Map installs entries for [va, va+size) pointing at pa.
//
// The range covers every page that va through va+size-1 touches. No entry
// is changed if any page in the range is already mapped, or if a page table
// cannot be allocated.
func (p *PageTables) Map(va Addr, size uint32, pa uint32, perm PTE) error {
	if size == 0 {
		return nil
	}
	if perm&Super != 0 {
		return fmt.Errorf("%w: %v in a page table entry", ErrFlags, perm)
	}
	if _, err := NewPTE(pa, perm|Present); err != nil {
		return err
	}
	first, last, err := pages(va, size)
	if err != nil {
		return err
	}
	if uint64(pa)+uint64(last-first) > math.MaxUint32 {
		return fmt.Errorf("%w: physical [%#x, +%#x)", ErrRange, pa, size)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for a := first; ; a += PageSize {
		pte, err := p.walk(a, false)
		if err != nil {
			return err
		}
		if pte != nil && pte.Valid() {
			return fmt.Errorf("%w: %v -> %v", ErrRemap, a, *pte)
		}
		if a == last {
			break
		}
	}

	// Allocate every missing table before the first leaf is written, so
	// that running out of memory leaves the tables as they were.
	var added []int
	for d := first.PDX(); d <= last.PDX(); d++ {
		if p.root[d].Valid() {
			continue
		}
		if _, err := p.walk(PageAddr(d, 0, 0), true); err != nil {
			for _, d := range added {
				p.freeTable(d)
			}
			return err
		}
		added = append(added, d)
	}
	for a := first; ; a += PageSize {
		pte, _ := p.walk(a, false)
		*pte = PTE(pa) | perm | Present
		if a == last {
			break
		}
		pa += PageSize
	}
	return nil
}

// freeTable frees the page table of directory entry d and clears the entry.
//
// Precondition: p.mu must be held.
func (p *PageTables) freeTable(d int) {
	pde := &p.root[d]
	p.Allocator.FreePTEs(p.Allocator.LookupPTEs(pde.Address()))
	pde.Clear()
}

// MapSuper installs a 4MB directory entry for va pointing at pa.
func (p *PageTables) MapSuper(va Addr, pa uint32, perm PTE) error {
	if !bits.IsAligned32(uint32(va), SuperPageSize) {
		return fmt.Errorf("%w: virtual address %v", ErrUnaligned, va)
	}
	entry, err := NewPTE(pa, perm|Present|Super)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pde := &p.root[va.PDX()]
	if pde.Valid() {
		return fmt.Errorf("%w: %v -> %v", ErrRemap, va, *pde)
	}
	*pde = entry
	return nil
}

// Unmap clears the entries for [va, va+size).
//
// True is returned iff there was a previous mapping in the range. Page
// tables are kept.
func (p *PageTables) Unmap(va Addr, size uint32) (bool, error) {
	if size == 0 {
		return false, nil
	}
	first, last, err := pages(va, size)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	prev := false
	for a := first; ; {
		pde := &p.root[a.PDX()]
		step := Addr(PageSize)
		switch {
		case pde.IsSuper():
			prev = true
			pde.Clear()
			step = SuperPageSize - Addr(a.PTX())*PageSize
		case !pde.Valid():
			step = SuperPageSize - Addr(a.PTX())*PageSize
		default:
			pte, _ := p.walk(a, false)
			if pte.Valid() {
				prev = true
				pte.Clear()
			}
		}
		if uint64(a)+uint64(step) > uint64(last) {
			break
		}
		a += step
	}
	return prev, nil
}

// Translate returns the physical address va maps to.
func (p *PageTables) Translate(va Addr) (pa uint32, pte PTE, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.root == nil {
		return 0, 0, false
	}
	pde := p.root[va.PDX()]
	if pde.IsSuper() && pde.Valid() {
		return pde.Address() + uint32(va)%SuperPageSize, pde, true
	}
	leaf, err := p.walk(va, false)
	if err != nil || leaf == nil || !leaf.Valid() {
		return 0, 0, false
	}
	return leaf.Address() + va.Offset(), *leaf, true
}

// ForEach calls fn for every valid leaf entry in address order. Super pages
// are visited once, with the directory entry.
func (p *PageTables) ForEach(fn func(va Addr, pte PTE)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.root == nil {
		return
	}
	for d, pde := range p.root {
		if !pde.Valid() {
			continue
		}
		if pde.IsSuper() {
			fn(PageAddr(d, 0, 0), pde)
			continue
		}
		table := p.Allocator.LookupPTEs(pde.Address())
		for t, pte := range table {
			if pte.Valid() {
				fn(PageAddr(d, t, 0), pte)
			}
		}
	}
}

// Release frees the page tables and the directory.
//
// The PageTables must not be used afterwards, except for further calls to
// Release.
func (p *PageTables) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.root == nil {
		return
	}
	tables := 0
	for i := range p.root {
		pde := &p.root[i]
		if pde.Valid() && !pde.IsSuper() {
			p.freeTable(i)
			tables++
		}
		pde.Clear()
	}
	p.Allocator.FreePTEs(p.root)
	log.Debugf("Released page directory %#x and %d tables", p.rootPhysical, tables)
	p.root = nil
	p.rootPhysical = 0
}
