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

// Package boot builds the page directory a kernel runs on between enabling
// paging and installing its own page tables.
//
// The directory maps the first 4MB of physical memory twice: at virtual 0, so
// the instructions that enable paging keep running, and at KernBase, where
// the kernel is linked.
package boot

import (
	"errors"
	"fmt"
	"sync"

	"gvisor.dev/ring32/pkg/log"
	"gvisor.dev/ring32/pkg/ring32"
	"gvisor.dev/ring32/pkg/ring32/memlayout"
	"gvisor.dev/ring32/pkg/ring32/pagetables"
)

// Entry is the value of both populated directory entries.
const Entry = pagetables.Present | pagetables.Writable | pagetables.Super

var (
	// ErrActive is returned by Begin while another phase is active.
	ErrActive = errors.New("boot phase already active")

	// ErrState is returned when a transition is not legal in the current
	// state.
	ErrState = errors.New("invalid boot phase state")

	// ErrDirectory is returned by Verify.
	ErrDirectory = errors.New("malformed boot directory")

	// ErrIdentityMapped is returned by Supersede if the new tables still
	// map any page of the low 4MB.
	ErrIdentityMapped = errors.New("replacement tables map the low 4MB")

	// ErrKernelUnmapped is returned by Supersede if the new tables do not
	// map KernBase.
	ErrKernelUnmapped = errors.New("replacement tables do not map the kernel")

	// ErrSuperseded is returned for accesses after Supersede.
	ErrSuperseded = errors.New("boot directory superseded")
)

// Build returns a boot directory for l.
func Build(l memlayout.Layout) (*pagetables.PTEs, error) {
	dir := new(pagetables.PTEs)
	if err := fill(dir, l); err != nil {
		return nil, err
	}
	return dir, nil
}

func fill(dir *pagetables.PTEs, l memlayout.Layout) error {
	if err := l.Validate(); err != nil {
		return err
	}
	*dir = pagetables.PTEs{}
	for _, va := range []pagetables.Addr{0, pagetables.Addr(l.KernBase)} {
		dir[va.PDX()] = Entry
	}
	return nil
}

// Verify returns ErrDirectory unless exactly the entries for virtual 0 and
// KernBase are set, both to Entry.
func Verify(dir *pagetables.PTEs, l memlayout.Layout) error {
	kern := pagetables.Addr(l.KernBase).PDX()
	for i, pte := range dir {
		want := pagetables.PTE(0)
		if i == 0 || i == kern {
			want = Entry
		}
		if pte != want {
			return fmt.Errorf("%w: entry %d is %v, want %v", ErrDirectory, i, pte, want)
		}
	}
	return nil
}

// ControlLoader loads control registers.
type ControlLoader interface {
	CR0() ring32.CR0
	LoadCR0(ring32.CR0)
	CR4() ring32.CR4
	LoadCR4(ring32.CR4)
	LoadCR3(uint32)
}

// State is the state of a Phase.
type State int

// Phase states, in order.
const (
	// PrePaging means the directory is built but translation is off.
	PrePaging State = iota

	// Paging means translation is on and both aliases are live.
	Paging

	// Relocated means execution continues at the high alias.
	Relocated

	// Superseded means the runtime tables are installed and the directory
	// is gone.
	Superseded
)

// String implements fmt.Stringer.String.
func (s State) String() string {
	switch s {
	case PrePaging:
		return "PrePaging"
	case Paging:
		return "Paging"
	case Relocated:
		return "Relocated"
	case Superseded:
		return "Superseded"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// active is the phase that has begun and not been superseded.
var (
	activeMu sync.Mutex
	active   *Phase
)

// Phase is the single boot translation phase.
//
// Methods are not safe for concurrent use; boot runs on one CPU.
type Phase struct {
	layout   memlayout.Layout
	linkAddr uint32
	state    State
	mem      *directoryMemory
	dir      *pagetables.PTEs
}

// Begin builds the boot directory in page aligned memory. linkAddr is the
// kernel virtual address the directory is linked at.
//
// Only one phase may exist until it is superseded.
func Begin(l memlayout.Layout, linkAddr uint32) (*Phase, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if !pagetables.Addr(linkAddr).IsPageAligned() {
		return nil, fmt.Errorf("%w: directory at %#x", pagetables.ErrUnaligned, linkAddr)
	}
	if linkAddr < l.KernLink() || linkAddr >= l.P2V(l.PhysTop) {
		return nil, fmt.Errorf("%w: directory at %#x outside the kernel", pagetables.ErrRange, linkAddr)
	}
	// The directory itself must be reachable through the boot mapping.
	if l.V2P(linkAddr) >= pagetables.SuperPageSize {
		return nil, fmt.Errorf("%w: directory at physical %#x is not in the first 4MB", pagetables.ErrRange, l.V2P(linkAddr))
	}

	activeMu.Lock()
	defer activeMu.Unlock()
	if active != nil {
		return nil, ErrActive
	}
	mem, dir, err := allocDirectory()
	if err != nil {
		return nil, err
	}
	if err := fill(dir, l); err != nil {
		mem.release()
		return nil, err
	}
	p := &Phase{
		layout:   l,
		linkAddr: linkAddr,
		mem:      mem,
		dir:      dir,
	}
	active = p
	log.Debugf("Boot directory at %#x (physical %#x)", linkAddr, p.PhysAddr())
	return p, nil
}

// State returns the current state.
func (p *Phase) State() State {
	return p.state
}

func (p *Phase) check(want State) error {
	if p.state != want {
		return fmt.Errorf("%w: in %v, need %v", ErrState, p.state, want)
	}
	return nil
}

// EnablePaging turns translation on: page size extensions first, then the
// directory, then paging and write protection.
func (p *Phase) EnablePaging(c ControlLoader) error {
	if err := p.check(PrePaging); err != nil {
		return err
	}
	c.LoadCR4(c.CR4() | ring32.CR4PSE)
	c.LoadCR3(p.CR3())
	c.LoadCR0(c.CR0() | ring32.CR0PG | ring32.CR0WP)
	p.state = Paging
	log.Debugf("Paging enabled with CR3 %#x", p.CR3())
	return nil
}

// Relocate records that execution has moved to the high alias.
func (p *Phase) Relocate() error {
	if err := p.check(Paging); err != nil {
		return err
	}
	p.state = Relocated
	return nil
}

// Translate returns the physical address the boot directory maps va to.
func (p *Phase) Translate(va uint32) (uint32, bool) {
	if p.state == Superseded {
		return 0, false
	}
	pde := p.dir[pagetables.Addr(va).PDX()]
	if !pde.Valid() || !pde.IsSuper() {
		return 0, false
	}
	return pde.Address() + va%pagetables.SuperPageSize, true
}

// Supersede ends the phase once tables is ready to replace the directory.
// The directory memory is released and a new phase may begin.
func (p *Phase) Supersede(tables *pagetables.PageTables) error {
	if err := p.check(Relocated); err != nil {
		return err
	}
	if va, pa, ok := lowMapping(tables); ok {
		return fmt.Errorf("%w: %v -> %#x", ErrIdentityMapped, va, pa)
	}
	if _, _, ok := tables.Translate(pagetables.Addr(p.layout.KernBase)); !ok {
		return fmt.Errorf("%w: %#x", ErrKernelUnmapped, p.layout.KernBase)
	}
	if err := p.release(); err != nil {
		return err
	}
	p.state = Superseded
	log.Debugf("Boot directory superseded by %#x", tables.RootPhysical())
	return nil
}

// release frees the directory and clears the active phase.
func (p *Phase) release() error {
	activeMu.Lock()
	defer activeMu.Unlock()
	if p.mem == nil {
		return nil
	}
	// On failure the directory is still mapped and the phase stays usable.
	if err := p.mem.release(); err != nil {
		return err
	}
	p.mem = nil
	p.dir = nil
	if active == p {
		active = nil
	}
	return nil
}

// lowMapping returns the first page tables maps below 4MB, where the boot
// identity mapping lived.
func lowMapping(tables *pagetables.PageTables) (va pagetables.Addr, pa uint32, ok bool) {
	tables.ForEach(func(v pagetables.Addr, pte pagetables.PTE) {
		if !ok && uint32(v) < pagetables.SuperPageSize {
			va, pa, ok = v, pte.Address(), true
		}
	})
	return va, pa, ok
}

// PhysAddr returns the physical address of the directory.
func (p *Phase) PhysAddr() uint32 {
	if p.state == Superseded {
		return 0
	}
	return p.layout.V2P(p.linkAddr)
}

// Size returns the size of the directory.
func (p *Phase) Size() uint32 {
	if p.state == Superseded {
		return 0
	}
	return pagetables.PageSize
}

// CR3 returns the CR3 value for the directory.
func (p *Phase) CR3() uint32 {
	return p.PhysAddr()
}

// Image returns the in-memory image of the directory.
func (p *Phase) Image() ([]byte, error) {
	if p.state == Superseded {
		return nil, ErrSuperseded
	}
	return p.dir.Bytes(), nil
}

// Directory returns the directory entries.
func (p *Phase) Directory() (*pagetables.PTEs, error) {
	if p.state == Superseded {
		return nil, ErrSuperseded
	}
	return p.dir, nil
}
