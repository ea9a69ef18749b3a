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
	"sync"
)

// ErrNoMemory is returned when an allocator has no free frames.
var ErrNoMemory = errors.New("out of page table frames")

// Allocator is used to allocate and map PTEs.
//
// Note that allocators may be called concurrently.
type Allocator interface {
	// NewPTEs returns a new, zeroed set of PTEs and its physical address.
	NewPTEs() (*PTEs, uint32, error)

	// LookupPTEs looks up PTEs by physical address. It returns nil if the
	// address was not allocated by this allocator.
	LookupPTEs(physical uint32) *PTEs

	// FreePTEs frees a set of PTEs.
	FreePTEs(ptes *PTEs)
}

// PoolAllocator hands out page frames from a fixed physical range.
//
// The PTEs themselves live in Go memory; the physical addresses are the
// frames they would occupy on the target.
type PoolAllocator struct {
	mu    sync.Mutex
	next  uint32
	end   uint32
	free  []uint32
	byPhy map[uint32]*PTEs
	byPTE map[*PTEs]uint32
}

// NewPoolAllocator returns an allocator over the frames in [start, end).
func NewPoolAllocator(start, end uint32) (*PoolAllocator, error) {
	if !Addr(start).IsPageAligned() || !Addr(end).IsPageAligned() {
		return nil, fmt.Errorf("%w: pool [%#x, %#x)", ErrUnaligned, start, end)
	}
	if start >= end {
		return nil, fmt.Errorf("%w: empty pool [%#x, %#x)", ErrNoMemory, start, end)
	}
	return &PoolAllocator{
		next:  start,
		end:   end,
		byPhy: make(map[uint32]*PTEs),
		byPTE: make(map[*PTEs]uint32),
	}, nil
}

// NewPTEs implements Allocator.NewPTEs.
func (a *PoolAllocator) NewPTEs() (*PTEs, uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var phys uint32
	switch {
	case len(a.free) > 0:
		phys = a.free[len(a.free)-1]
		a.free = a.free[:len(a.free)-1]
	case a.next < a.end:
		phys = a.next
		a.next += PageSize
	default:
		return nil, 0, ErrNoMemory
	}
	ptes := new(PTEs)
	a.byPhy[phys] = ptes
	a.byPTE[ptes] = phys
	return ptes, phys, nil
}

// LookupPTEs implements Allocator.LookupPTEs.
func (a *PoolAllocator) LookupPTEs(physical uint32) *PTEs {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.byPhy[physical]
}

// FreePTEs implements Allocator.FreePTEs.
func (a *PoolAllocator) FreePTEs(ptes *PTEs) {
	a.mu.Lock()
	defer a.mu.Unlock()
	phys, ok := a.byPTE[ptes]
	if !ok {
		panic(fmt.Sprintf("freeing PTEs %p not allocated by this pool", ptes))
	}
	delete(a.byPTE, ptes)
	delete(a.byPhy, phys)
	a.free = append(a.free, phys)
}

// InUse returns the number of allocated frames.
func (a *PoolAllocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.byPhy)
}
