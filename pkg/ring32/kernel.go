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
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"gvisor.dev/ring32/pkg/log"
)

// Flat segments shared by every CPU.
var (
	KernelCodeSegment = MakeSegment(AppExecute|AppRead, 0, math.MaxUint32, 0)
	KernelDataSegment = MakeSegment(AppWrite, 0, math.MaxUint32, 0)
	UserCodeSegment   = MakeSegment(AppExecute|AppRead, 0, math.MaxUint32, UserDPL)
	UserDataSegment   = MakeSegment(AppWrite, 0, math.MaxUint32, UserDPL)
)

// perCPUSize is the byte size of the per-CPU data segment.
const perCPUSize = 8

// ErrRange is returned when a table does not fit below 4GB.
var ErrRange = errors.New("table exceeds the 32-bit address space")

// KernelOpts has initialization options for the kernel.
type KernelOpts struct {
	// Vectors holds the linear address of the handler for each vector.
	Vectors [NumVectors]uint32

	// IDTAddr is the linear address the IDT will be loaded from.
	IDTAddr uint32
}

// Kernel is the state shared by all CPUs.
type Kernel struct {
	opts KernelOpts

	// idt is uniform across CPUs and immutable after NewKernel.
	idt [NumVectors]Gate

	// precision reports per-CPU segments whose limit is rounded.
	precision log.Logger
}

// NewKernel creates a new kernel with an IDT built from opts.
//
// Every vector gets an interrupt gate callable only from the kernel, except
// Syscall, which gets a trap gate callable from user mode.
func NewKernel(opts KernelOpts) (*Kernel, error) {
	if _, err := tableEnd(opts.IDTAddr, NumVectors); err != nil {
		return nil, fmt.Errorf("IDT: %w", err)
	}
	k := &Kernel{
		opts:      opts,
		precision: log.BasicRateLimitedLogger(time.Minute),
	}
	for v := range k.idt {
		if Vector(v) == Syscall {
			k.idt[v] = MakeGate(true, Kcode, opts.Vectors[v], UserDPL)
			continue
		}
		k.idt[v] = MakeGate(false, Kcode, opts.Vectors[v], 0)
	}
	log.Debugf("IDT built at %#x, syscall vector %d", opts.IDTAddr, Syscall)
	return k, nil
}

// Gate returns the IDT entry for v.
func (k *Kernel) Gate(v Vector) Gate {
	return k.idt[v]
}

// IDTEntries returns a copy of the IDT.
func (k *Kernel) IDTEntries() [NumVectors]Gate {
	return k.idt
}

// IDT returns the lidt operand.
func (k *Kernel) IDT() DescriptorTablePointer {
	return tablePointer(k.opts.IDTAddr, NumVectors)
}

// CPUOpts has the addresses of a single CPU's tables.
type CPUOpts struct {
	// ID is informational.
	ID int

	// GDTAddr is the linear address of the GDT.
	GDTAddr uint32

	// TSSAddr is the linear address of the TSS.
	TSSAddr uint32

	// PerCPUAddr is the base of the per-CPU data segment.
	PerCPUAddr uint32
}

// CPU is the protection state of a single CPU.
//
// A CPU is owned by one execution context; methods are not synchronized.
type CPU struct {
	kernel *Kernel
	opts   CPUOpts
	gdt    [NumSegments]SegmentDescriptor
	tss    TaskState
}

// NewCPU creates the GDT of a new CPU associated with this Kernel.
//
// The TSS entry stays null until SwitchStack.
func (k *Kernel) NewCPU(opts CPUOpts) (*CPU, error) {
	if _, err := tableEnd(opts.GDTAddr, NumSegments); err != nil {
		return nil, fmt.Errorf("CPU %d GDT: %w", opts.ID, err)
	}
	if opts.TSSAddr > math.MaxUint32-(TaskStateSize-1) {
		return nil, fmt.Errorf("CPU %d TSS at %#x: %w", opts.ID, opts.TSSAddr, ErrRange)
	}
	c := &CPU{kernel: k, opts: opts}
	c.gdt[SegKCode] = KernelCodeSegment
	c.gdt[SegKData] = KernelDataSegment
	c.gdt[SegKCPU] = MakeSegment(AppWrite, opts.PerCPUAddr, perCPUSize, 0)
	c.gdt[SegUCode] = UserCodeSegment
	c.gdt[SegUData] = UserDataSegment
	if err := CheckPageLimit(perCPUSize); err != nil {
		k.precision.Warningf("CPU %d per-CPU segment: %v", opts.ID, err)
	}
	log.Debugf("CPU %d: GDT at %#x, TSS at %#x", opts.ID, opts.GDTAddr, opts.TSSAddr)
	return c, nil
}

// NewCPUs creates one CPU per element of opts concurrently.
func (k *Kernel) NewCPUs(ctx context.Context, opts []CPUOpts) ([]*CPU, error) {
	cpus := make([]*CPU, len(opts))
	g, ctx := errgroup.WithContext(ctx)
	for i := range opts {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := k.NewCPU(opts[i])
			if err != nil {
				return err
			}
			cpus[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cpus, nil
}

// SwitchStack installs the TSS descriptor and sets the stack used on entry
// from user mode to kstackTop.
//
// I/O instructions from user mode are blocked by pointing the I/O bitmap
// beyond the segment limit.
func (c *CPU) SwitchStack(kstackTop uint32) {
	c.gdt[SegTSS] = MakeSegment16(SysTSS32Available, c.opts.TSSAddr, TaskStateSize-1, 0).AsSystem()
	c.tss.SS0 = uint16(Kdata)
	c.tss.ESP0 = kstackTop
	c.tss.IOMB = 0xFFFF
}

// Kernel returns the kernel c was created from.
func (c *CPU) Kernel() *Kernel {
	return c.kernel
}

// ID returns the CPU's ID.
func (c *CPU) ID() int {
	return c.opts.ID
}

// GDT returns the lgdt operand.
func (c *CPU) GDT() DescriptorTablePointer {
	return tablePointer(c.opts.GDTAddr, NumSegments)
}

// GDTEntries returns a copy of the GDT.
func (c *CPU) GDTEntries() [NumSegments]SegmentDescriptor {
	return c.gdt
}

// TSS returns the CPU's task state.
func (c *CPU) TSS() *TaskState {
	return &c.tss
}

// StackTop returns the kernel stack top installed by SwitchStack.
func (c *CPU) StackTop() uint32 {
	return c.tss.ESP0
}

// tableEnd returns the last byte of n descriptors at base.
func tableEnd(base uint32, n int) (uint32, error) {
	size := uint32(n * 8)
	if base > math.MaxUint32-(size-1) {
		return 0, fmt.Errorf("%d descriptors at %#x: %w", n, base, ErrRange)
	}
	return base + size - 1, nil
}
