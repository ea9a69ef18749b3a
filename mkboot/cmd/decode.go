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
	"strconv"

	"github.com/google/subcommands"
	"gvisor.dev/ring32/mkboot/config"
	"gvisor.dev/ring32/pkg/ring32"
)

// Decode implements subcommands.Command for the "decode" command.
type Decode struct {
	kind string
}

// Name implements subcommands.Command.Name.
func (*Decode) Name() string {
	return "decode"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Decode) Synopsis() string {
	return "decode descriptor words."
}

// Usage implements subcommands.Command.Usage.
func (*Decode) Usage() string {
	return `decode [flags] <word>... - decode 64-bit descriptor words, e.g. 0x00cf9a000000ffff.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (d *Decode) SetFlags(f *flag.FlagSet) {
	f.StringVar(&d.kind, "kind", "segment", "descriptor kind: segment or gate.")
}

// Execute implements subcommands.Command.Execute.
func (d *Decode) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	if err := d.run(conf, os.Stdout, f.Args()); err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

func (d *Decode) run(conf *config.Config, w io.Writer, words []string) error {
	var reports decodeReport
	for _, s := range words {
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid descriptor %q: %v", s, err)
		}
		switch d.kind {
		case "segment":
			seg := ring32.SegmentFromUint64(v)
			if got := seg.Fields().Encode().Uint64(); got != v {
				return fmt.Errorf("descriptor %#x re-encodes as %#x", v, got)
			}
			reports = append(reports, newSegmentReport(seg))
		case "gate":
			g := ring32.GateFromUint64(v)
			if got := g.Fields().Encode().Uint64(); got != v {
				return fmt.Errorf("gate %#x re-encodes as %#x", v, got)
			}
			reports = append(reports, newGateReport(g))
		default:
			return fmt.Errorf("invalid kind %q, must be 'segment' or 'gate'", d.kind)
		}
	}
	return write(w, conf.Output, reports)
}

// decodeReport is a list of decoded descriptors.
type decodeReport []report

func (r decodeReport) writeText(w io.Writer) error {
	for i, rep := range r {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := rep.writeText(w); err != nil {
			return err
		}
	}
	return nil
}
