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
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/ring32/mkboot/config"
	"gvisor.dev/ring32/pkg/ring32"
)

// Gate implements subcommands.Command for the "gate" command.
type Gate struct {
	trap   bool
	sel    uint
	offset addrFlag
	dpl    int
}

// Name implements subcommands.Command.Name.
func (*Gate) Name() string {
	return "gate"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Gate) Synopsis() string {
	return "encode an interrupt or trap gate."
}

// Usage implements subcommands.Command.Usage.
func (*Gate) Usage() string {
	return `gate [flags] - encode an interrupt or trap gate.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (g *Gate) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&g.trap, "trap", false, "encode a trap gate, which leaves interrupts enabled.")
	f.UintVar(&g.sel, "sel", uint(ring32.Kcode), "code segment selector.")
	f.Var(&g.offset, "offset", "handler offset.")
	f.IntVar(&g.dpl, "dpl", 0, "lowest privilege level allowed to use int.")
}

// Execute implements subcommands.Command.Execute.
func (g *Gate) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	if err := g.run(conf, os.Stdout); err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

func (g *Gate) run(conf *config.Config, w io.Writer) error {
	if g.dpl < 0 || g.dpl > ring32.UserDPL {
		return fmt.Errorf("invalid dpl %d", g.dpl)
	}
	if g.sel > 0xFFFF {
		return fmt.Errorf("invalid selector %#x", g.sel)
	}
	gate := ring32.MakeGate(g.trap, ring32.Selector(g.sel), uint32(g.offset), g.dpl)
	return write(w, conf.Output, newGateReport(gate))
}

// gateReport describes one gate descriptor.
type gateReport struct {
	Word             string            `json:"word" yaml:"word"`
	Bytes            string            `json:"bytes" yaml:"bytes"`
	ClearsInterrupts bool              `json:"clears_interrupts" yaml:"clears_interrupts"`
	Fields           ring32.GateFields `json:"fields" yaml:"fields"`
}

func newGateReport(g ring32.Gate) *gateReport {
	b := g.Bytes()
	return &gateReport{
		Word:             hex64(g.Uint64()),
		Bytes:            hexBytes(b[:]),
		ClearsInterrupts: g.ClearsInterrupts(),
		Fields:           g.Fields(),
	}
}

func (r *gateReport) writeText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	f := r.Fields
	fmt.Fprintf(tw, "word:\t%s\n", r.Word)
	fmt.Fprintf(tw, "bytes:\t%s\n", r.Bytes)
	fmt.Fprintf(tw, "offset:\t%#08x\n", f.Offset)
	fmt.Fprintf(tw, "cs:\t%v\n", f.Selector)
	fmt.Fprintf(tw, "args:\t%d\n", f.Args)
	fmt.Fprintf(tw, "rsv1:\t%d\n", f.Reserved)
	fmt.Fprintf(tw, "type:\t%#x\n", uint8(f.Type))
	fmt.Fprintf(tw, "s:\t%t\n", !f.System)
	fmt.Fprintf(tw, "dpl:\t%d\n", f.DPL)
	fmt.Fprintf(tw, "p:\t%t\n", f.Present)
	fmt.Fprintf(tw, "clears IF:\t%t\n", r.ClearsInterrupts)
	return tw.Flush()
}
