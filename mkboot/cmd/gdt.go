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

	"github.com/google/subcommands"
	"gvisor.dev/ring32/mkboot/config"
	"gvisor.dev/ring32/pkg/ring32"
)

// GDT implements subcommands.Command for the "gdt" command.
type GDT struct {
	cpus   int
	gdt    addrFlag
	tss    addrFlag
	perCPU addrFlag
	kstack addrFlag
	stride addrFlag
}

// Name implements subcommands.Command.Name.
func (*GDT) Name() string {
	return "gdt"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*GDT) Synopsis() string {
	return "build per-CPU descriptor tables."
}

// Usage implements subcommands.Command.Usage.
func (*GDT) Usage() string {
	return `gdt [flags] - build the GDT and TSS of each CPU.

CPU n has its tables at the given addresses plus n times -stride.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (g *GDT) SetFlags(f *flag.FlagSet) {
	g.gdt = 0x80112000
	g.tss = 0x80112100
	g.perCPU = 0x80112200
	g.kstack = 0x80200000
	g.stride = 0x1000
	f.IntVar(&g.cpus, "cpus", 1, "number of CPUs.")
	f.Var(&g.gdt, "gdt", "linear address of the first CPU's GDT.")
	f.Var(&g.tss, "tss", "linear address of the first CPU's TSS.")
	f.Var(&g.perCPU, "percpu", "base of the first CPU's per-CPU data segment.")
	f.Var(&g.kstack, "kstack", "top of the first CPU's kernel stack; 0 leaves the TSS uninstalled.")
	f.Var(&g.stride, "stride", "distance between consecutive CPUs' tables.")
}

// Execute implements subcommands.Command.Execute.
func (g *GDT) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	if err := g.run(ctx, conf, os.Stdout); err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

func (g *GDT) run(ctx context.Context, conf *config.Config, w io.Writer) error {
	if g.cpus < 1 {
		return fmt.Errorf("invalid number of CPUs %d", g.cpus)
	}
	k, err := ring32.NewKernel(ring32.KernelOpts{})
	if err != nil {
		return err
	}
	opts := make([]ring32.CPUOpts, g.cpus)
	for i := range opts {
		off := uint64(i) * uint64(g.stride)
		if uint64(g.gdt)+off > 0xFFFFFFFF || uint64(g.tss)+off > 0xFFFFFFFF || uint64(g.perCPU)+off > 0xFFFFFFFF {
			return fmt.Errorf("CPU %d tables exceed 4GB", i)
		}
		opts[i] = ring32.CPUOpts{
			ID:         i,
			GDTAddr:    uint32(g.gdt) + uint32(off),
			TSSAddr:    uint32(g.tss) + uint32(off),
			PerCPUAddr: uint32(g.perCPU) + uint32(off),
		}
	}
	cpus, err := k.NewCPUs(ctx, opts)
	if err != nil {
		return err
	}

	var rep gdtReport
	for i, c := range cpus {
		if g.kstack != 0 {
			c.SwitchStack(uint32(g.kstack) + uint32(i)*uint32(g.stride))
		}
		cr := cpuReport{
			ID:    c.ID(),
			Limit: c.GDT().Limit,
			Base:  c.GDT().Base,
			ESP0:  c.TSS().ESP0,
			SS0:   c.TSS().SS0,
			IOMB:  c.TSS().IOMB,
		}
		for idx, d := range c.GDTEntries() {
			cr.Entries = append(cr.Entries, descEntry{
				Index:    idx,
				Selector: uint16(ring32.MakeSelector(idx, d.DPL())),
				Word:     hex64(d.Uint64()),
				Desc:     d.String(),
			})
		}
		rep = append(rep, cr)
	}
	return write(w, conf.Output, rep)
}

type descEntry struct {
	Index    int    `json:"index" yaml:"index"`
	Selector uint16 `json:"selector" yaml:"selector"`
	Word     string `json:"word" yaml:"word"`
	Desc     string `json:"desc" yaml:"desc"`
}

type cpuReport struct {
	ID      int         `json:"id" yaml:"id"`
	Base    uint32      `json:"base" yaml:"base"`
	Limit   uint16      `json:"limit" yaml:"limit"`
	Entries []descEntry `json:"entries" yaml:"entries"`
	ESP0    uint32      `json:"esp0" yaml:"esp0"`
	SS0     uint16      `json:"ss0" yaml:"ss0"`
	IOMB    uint16      `json:"iomb" yaml:"iomb"`
}

// gdtReport describes the tables of each CPU.
type gdtReport []cpuReport

func (r gdtReport) writeText(w io.Writer) error {
	for _, c := range r {
		fmt.Fprintf(w, "cpu %d: gdt %#08x limit %#x, tss esp0 %#08x ss0 %#x iomb %#x\n", c.ID, c.Base, c.Limit, c.ESP0, c.SS0, c.IOMB)
		for _, e := range c.Entries {
			if _, err := fmt.Fprintf(w, "  [%d] sel %#04x %s %s\n", e.Index, e.Selector, e.Word, e.Desc); err != nil {
				return err
			}
		}
	}
	return nil
}
