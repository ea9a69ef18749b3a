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
	"gvisor.dev/ring32/pkg/ring32/pagetables"
)

// Kmap implements subcommands.Command for the "kmap" command.
type Kmap struct {
	data      addrFlag
	build     bool
	poolStart addrFlag
	poolEnd   addrFlag
}

// Name implements subcommands.Command.Name.
func (*Kmap) Name() string {
	return "kmap"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Kmap) Synopsis() string {
	return "show the kernel address space mappings."
}

// Usage implements subcommands.Command.Usage.
func (*Kmap) Usage() string {
	return `kmap [flags] - show the regions mapped into every address space.

With -build, the page tables are built from a pool of synthetic frames and
their directory entries are shown.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (k *Kmap) SetFlags(f *flag.FlagSet) {
	k.poolStart = 0x200000
	k.poolEnd = 0x400000
	f.Var(&k.data, "data", "start of kernel data, default is the kernel link address.")
	f.BoolVar(&k.build, "build", false, "build the page tables.")
	f.Var(&k.poolStart, "pool-start", "first physical frame for page tables.")
	f.Var(&k.poolEnd, "pool-end", "end of the physical frames for page tables.")
}

// Execute implements subcommands.Command.Execute.
func (k *Kmap) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	if err := k.run(conf, os.Stdout); err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

func (k *Kmap) run(conf *config.Config, w io.Writer) error {
	l := conf.Layout
	data := pagetables.Addr(k.data)
	if data == 0 {
		data = pagetables.Addr(l.KernLink())
	}
	ms, err := pagetables.KernelMappings(l, data)
	if err != nil {
		return err
	}
	rep := &kmapReport{Mappings: ms}
	if !k.build {
		return write(w, conf.Output, rep)
	}

	a, err := pagetables.NewPoolAllocator(uint32(k.poolStart), uint32(k.poolEnd))
	if err != nil {
		return err
	}
	pt, err := pagetables.SetupKernel(a, l, data)
	if err != nil {
		return err
	}
	defer pt.Release()
	rep.Root = pt.RootPhysical()
	rep.Frames = a.InUse()
	for i, pde := range pt.Root() {
		if !pde.Valid() {
			continue
		}
		rep.Directory = append(rep.Directory, pgdirEntry{
			Index: i,
			Virt:  uint32(pagetables.PageAddr(i, 0, 0)),
			Value: uint32(pde),
			Desc:  pde.String(),
		})
	}
	return write(w, conf.Output, rep)
}

// kmapReport describes the kernel mappings and, if built, their tables.
type kmapReport struct {
	Mappings  []pagetables.Mapping `json:"mappings" yaml:"mappings"`
	Root      uint32               `json:"root,omitempty" yaml:"root,omitempty"`
	Frames    int                  `json:"frames,omitempty" yaml:"frames,omitempty"`
	Directory []pgdirEntry         `json:"directory,omitempty" yaml:"directory,omitempty"`
}

func (r *kmapReport) writeText(w io.Writer) error {
	for _, m := range r.Mappings {
		fmt.Fprintf(w, "%v\n", m)
	}
	if r.Frames == 0 {
		return nil
	}
	fmt.Fprintf(w, "root %#08x, %d frames\n", r.Root, r.Frames)
	for _, e := range r.Directory {
		if _, err := fmt.Fprintf(w, "  pde[%4d] va %#08x = %s\n", e.Index, e.Virt, e.Desc); err != nil {
			return err
		}
	}
	return nil
}
