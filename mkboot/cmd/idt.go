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

// IDT implements subcommands.Command for the "idt" command.
type IDT struct {
	idt     addrFlag
	vectors addrFlag
	stride  addrFlag
	showAll bool
}

// Name implements subcommands.Command.Name.
func (*IDT) Name() string {
	return "idt"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*IDT) Synopsis() string {
	return "build the interrupt descriptor table."
}

// Usage implements subcommands.Command.Usage.
func (*IDT) Usage() string {
	return `idt [flags] - build the interrupt descriptor table.

The handler of vector n is at -vectors plus n times -stride. Every vector
gets a kernel-only interrupt gate, except the system call vector, which gets
a trap gate callable from user mode.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (i *IDT) SetFlags(f *flag.FlagSet) {
	i.idt = 0x80110000
	i.vectors = 0x80106000
	i.stride = 8
	f.Var(&i.idt, "idt", "linear address of the IDT.")
	f.Var(&i.vectors, "vectors", "address of the handler of vector 0.")
	f.Var(&i.stride, "stride", "distance between consecutive handlers.")
	f.BoolVar(&i.showAll, "all", false, "show all vectors, not only named ones.")
}

// Execute implements subcommands.Command.Execute.
func (i *IDT) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	if err := i.run(conf, os.Stdout); err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

func (i *IDT) run(conf *config.Config, w io.Writer) error {
	var opts ring32.KernelOpts
	opts.IDTAddr = uint32(i.idt)
	for v := range opts.Vectors {
		opts.Vectors[v] = uint32(i.vectors) + uint32(v)*uint32(i.stride)
	}
	k, err := ring32.NewKernel(opts)
	if err != nil {
		return err
	}
	p := k.IDT()
	rep := &idtReport{Base: p.Base, Limit: p.Limit}
	for v, g := range k.IDTEntries() {
		vec := ring32.Vector(v)
		if !i.showAll && vec.String() == fmt.Sprintf("Vector%d", v) {
			continue
		}
		rep.Gates = append(rep.Gates, gateEntry{
			Vector: v,
			Name:   vec.String(),
			Word:   hex64(g.Uint64()),
			Trap:   g.IsTrap(),
			DPL:    g.DPL(),
		})
	}
	return write(w, conf.Output, rep)
}

type gateEntry struct {
	Vector int    `json:"vector" yaml:"vector"`
	Name   string `json:"name" yaml:"name"`
	Word   string `json:"word" yaml:"word"`
	Trap   bool   `json:"trap" yaml:"trap"`
	DPL    int    `json:"dpl" yaml:"dpl"`
}

// idtReport describes the IDT.
type idtReport struct {
	Base  uint32      `json:"base" yaml:"base"`
	Limit uint16      `json:"limit" yaml:"limit"`
	Gates []gateEntry `json:"gates" yaml:"gates"`
}

func (r *idtReport) writeText(w io.Writer) error {
	fmt.Fprintf(w, "idt %#08x limit %#x\n", r.Base, r.Limit)
	for _, g := range r.Gates {
		kind := "intr"
		if g.Trap {
			kind = "trap"
		}
		if _, err := fmt.Fprintf(w, "  %3d %-26s %s %s dpl=%d\n", g.Vector, g.Name, g.Word, kind, g.DPL); err != nil {
			return err
		}
	}
	return nil
}
