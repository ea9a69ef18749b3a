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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gofrs/flock"
	"github.com/google/subcommands"
	"gvisor.dev/ring32/mkboot/config"
	"gvisor.dev/ring32/pkg/log"
	"gvisor.dev/ring32/pkg/ring32"
	"gvisor.dev/ring32/pkg/ring32/boot"
	"gvisor.dev/ring32/pkg/ring32/memlayout"
	"gvisor.dev/ring32/pkg/ring32/pagetables"
)

// Pgdir implements subcommands.Command for the "pgdir" command.
type Pgdir struct {
	link      addrFlag
	out       string
	simulate  bool
	data      addrFlag
	poolStart addrFlag
	poolEnd   addrFlag
}

// Name implements subcommands.Command.Name.
func (*Pgdir) Name() string {
	return "pgdir"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Pgdir) Synopsis() string {
	return "build the boot page directory."
}

// Usage implements subcommands.Command.Usage.
func (*Pgdir) Usage() string {
	return `pgdir [flags] - build the boot page directory.

The directory maps the first 4MB of physical memory at 0 and at kernbase.
With -out its 4096-byte image is written to a file. With -simulate the boot
phase is run to completion against recorded control registers and kernel
page tables built from a frame pool.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (p *Pgdir) SetFlags(f *flag.FlagSet) {
	p.poolStart = 0x200000
	p.poolEnd = 0x400000
	f.Var(&p.link, "link", "kernel virtual address of the directory, default is the first page after the kernel link address.")
	f.StringVar(&p.out, "out", "", "file to write the directory image to.")
	f.BoolVar(&p.simulate, "simulate", false, "run the boot phase through paging, relocation and replacement.")
	f.Var(&p.data, "data", "start of kernel data for the replacement tables, default is the link address of the directory.")
	f.Var(&p.poolStart, "pool-start", "first physical frame for the replacement tables.")
	f.Var(&p.poolEnd, "pool-end", "end of the physical frames for the replacement tables.")
}

// Execute implements subcommands.Command.Execute.
func (p *Pgdir) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	if err := p.run(conf, os.Stdout); err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

// recordingLoader is a boot.ControlLoader that records loads.
type recordingLoader struct {
	cr0   ring32.CR0
	cr4   ring32.CR4
	loads []string
}

func (r *recordingLoader) CR0() ring32.CR0 { return r.cr0 }
func (r *recordingLoader) CR4() ring32.CR4 { return r.cr4 }

func (r *recordingLoader) LoadCR0(v ring32.CR0) {
	r.cr0 = v
	r.loads = append(r.loads, fmt.Sprintf("cr0 = %v", v))
}

func (r *recordingLoader) LoadCR4(v ring32.CR4) {
	r.cr4 = v
	r.loads = append(r.loads, fmt.Sprintf("cr4 = %v", v))
}

func (r *recordingLoader) LoadCR3(v uint32) {
	r.loads = append(r.loads, fmt.Sprintf("cr3 = %#x", v))
}

func (p *Pgdir) run(conf *config.Config, w io.Writer) error {
	l := conf.Layout
	link := uint32(p.link)
	if link == 0 {
		link = l.KernLink() + pagetables.PageSize
	}
	phase, err := boot.Begin(l, link)
	if err != nil {
		return err
	}
	defer func() {
		if phase.State() == boot.Superseded {
			return
		}
		// The phase was only inspected. Replace it with minimal tables so
		// that a later phase can begin.
		if err := p.abandon(phase, l); err != nil {
			log.Warningf("Abandoning boot phase: %v", err)
		}
	}()
	rep := &pgdirReport{
		Link:     link,
		PhysAddr: phase.PhysAddr(),
		Size:     phase.Size(),
	}
	dir, err := phase.Directory()
	if err != nil {
		return err
	}
	if err := boot.Verify(dir, l); err != nil {
		return err
	}
	for i, pte := range dir {
		if pte.Valid() {
			rep.Entries = append(rep.Entries, pgdirEntry{
				Index: i,
				Virt:  uint32(pagetables.PageAddr(i, 0, 0)),
				Value: uint32(pte),
				Desc:  pte.String(),
			})
		}
	}
	if p.out != "" {
		img, err := phase.Image()
		if err != nil {
			return err
		}
		if err := writeImage(p.out, img); err != nil {
			return err
		}
		rep.Image = p.out
		log.Infof("Wrote %d byte boot directory to %q", len(img), p.out)
	}

	if p.simulate {
		if err := p.runPhase(phase, l, link, rep); err != nil {
			return err
		}
	}
	rep.State = phase.State().String()
	return write(w, conf.Output, rep)
}

// writeImage writes img to path while holding a lock on path.lock, so that
// concurrent runs never interleave their images.
func writeImage(path string, img []byte) error {
	l := flock.NewFlock(path + ".lock")
	if err := l.Lock(); err != nil {
		return fmt.Errorf("error acquiring lock on %q: %v", path+".lock", err)
	}
	defer l.Unlock()
	if err := os.WriteFile(path, img, 0644); err != nil {
		return fmt.Errorf("writing image: %w", err)
	}
	return nil
}

// runPhase takes phase from PrePaging to Superseded.
func (p *Pgdir) runPhase(phase *boot.Phase, l memlayout.Layout, link uint32, rep *pgdirReport) error {
	cr := &recordingLoader{cr0: ring32.CR0PE}
	if err := phase.EnablePaging(cr); err != nil {
		return err
	}
	rep.Loads = cr.loads
	for _, va := range []uint32{l.V2P(link), link} {
		pa, ok := phase.Translate(va)
		if !ok {
			return fmt.Errorf("boot directory does not map %#x", va)
		}
		rep.Aliases = append(rep.Aliases, alias{Virt: va, Phys: pa})
	}
	if err := phase.Relocate(); err != nil {
		return err
	}

	data := pagetables.Addr(p.data)
	if data == 0 {
		data = pagetables.Addr(link)
	}
	a, err := pagetables.NewPoolAllocator(uint32(p.poolStart), uint32(p.poolEnd))
	if err != nil {
		return err
	}
	pt, err := pagetables.SetupKernel(a, l, data)
	if err != nil {
		return err
	}
	defer pt.Release()
	root, frames := pt.RootPhysical(), a.InUse()
	if err := phase.Supersede(pt); err != nil {
		return err
	}
	rep.Replacement = root
	rep.Tables = frames
	return nil
}

// abandon ends a phase that was not run.
func (p *Pgdir) abandon(phase *boot.Phase, l memlayout.Layout) error {
	if phase.State() == boot.PrePaging {
		if err := phase.EnablePaging(&recordingLoader{}); err != nil {
			return err
		}
	}
	if phase.State() == boot.Paging {
		if err := phase.Relocate(); err != nil {
			return err
		}
	}
	a, err := pagetables.NewPoolAllocator(0, 2*pagetables.PageSize)
	if err != nil {
		return err
	}
	pt, err := pagetables.New(a)
	if err != nil {
		return err
	}
	defer pt.Release()
	if err := pt.MapSuper(pagetables.Addr(l.KernBase), 0, pagetables.Writable); err != nil {
		return err
	}
	return phase.Supersede(pt)
}

type pgdirEntry struct {
	Index int    `json:"index" yaml:"index"`
	Virt  uint32 `json:"virt" yaml:"virt"`
	Value uint32 `json:"value" yaml:"value"`
	Desc  string `json:"desc" yaml:"desc"`
}

type alias struct {
	Virt uint32 `json:"virt" yaml:"virt"`
	Phys uint32 `json:"phys" yaml:"phys"`
}

// pgdirReport describes the boot directory and, if simulated, its phase.
type pgdirReport struct {
	Link        uint32       `json:"link" yaml:"link"`
	PhysAddr    uint32       `json:"phys_addr" yaml:"phys_addr"`
	Size        uint32       `json:"size" yaml:"size"`
	Entries     []pgdirEntry `json:"entries" yaml:"entries"`
	Image       string       `json:"image,omitempty" yaml:"image,omitempty"`
	Loads       []string     `json:"loads,omitempty" yaml:"loads,omitempty"`
	Aliases     []alias      `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Replacement uint32       `json:"replacement,omitempty" yaml:"replacement,omitempty"`
	Tables      int          `json:"tables,omitempty" yaml:"tables,omitempty"`
	State       string       `json:"state" yaml:"state"`
}

func (r *pgdirReport) writeText(w io.Writer) error {
	fmt.Fprintf(w, "directory %#08x (physical %#08x), %d bytes\n", r.Link, r.PhysAddr, r.Size)
	for _, e := range r.Entries {
		fmt.Fprintf(w, "  pde[%4d] va %#08x = %s\n", e.Index, e.Virt, e.Desc)
	}
	if r.Image != "" {
		fmt.Fprintf(w, "image written to %s\n", r.Image)
	}
	for _, l := range r.Loads {
		fmt.Fprintf(w, "load %s\n", l)
	}
	for _, a := range r.Aliases {
		fmt.Fprintf(w, "translate %#08x -> %#08x\n", a.Virt, a.Phys)
	}
	if r.Replacement != 0 {
		fmt.Fprintf(w, "superseded by %#08x (%d frames)\n", r.Replacement, r.Tables)
	}
	_, err := fmt.Fprintf(w, "state %s\n", r.State)
	return err
}
