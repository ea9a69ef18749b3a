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
	"gvisor.dev/ring32/pkg/log"
	"gvisor.dev/ring32/pkg/ring32"
)

// Segment implements subcommands.Command for the "segment" command.
type Segment struct {
	typ    typeFlag
	base   addrFlag
	limit  addrFlag
	dpl    int
	bytes  bool
	system bool
}

// Name implements subcommands.Command.Name.
func (*Segment) Name() string {
	return "segment"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Segment) Synopsis() string {
	return "encode a segment descriptor."
}

// Usage implements subcommands.Command.Usage.
func (*Segment) Usage() string {
	return `segment [flags] - encode a segment descriptor.

By default the segment is 4K granular and -limit is a byte limit whose low
12 bits are dropped. With -bytes the limit is a 20-bit byte limit.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Segment) SetFlags(f *flag.FlagSet) {
	s.typ = typeFlag(ring32.AppExecute | ring32.AppRead)
	s.limit = 0xFFFFFFFF
	f.Var(&s.typ, "type", "segment type: code, data, ldt, tss32 or a number.")
	f.Var(&s.base, "base", "base linear address.")
	f.Var(&s.limit, "limit", "byte limit.")
	f.IntVar(&s.dpl, "dpl", 0, "descriptor privilege level.")
	f.BoolVar(&s.bytes, "bytes", false, "encode a byte granular segment.")
	f.BoolVar(&s.system, "system", false, "clear the application bit, e.g. for a TSS.")
}

// Execute implements subcommands.Command.Execute.
func (s *Segment) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	if err := s.run(conf, os.Stdout); err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

func (s *Segment) run(conf *config.Config, w io.Writer) error {
	if s.dpl < 0 || s.dpl > ring32.UserDPL {
		return fmt.Errorf("invalid dpl %d", s.dpl)
	}
	var d ring32.SegmentDescriptor
	if s.bytes {
		if s.limit > 0xFFFFF {
			log.Warningf("Limit %#x truncated to 20 bits", uint32(s.limit))
		}
		d = ring32.MakeSegment16(ring32.SegmentType(s.typ), uint32(s.base), uint32(s.limit), s.dpl)
	} else {
		if err := ring32.CheckPageLimit(uint32(s.limit)); err != nil {
			log.Warningf("%v", err)
		}
		d = ring32.MakeSegment(ring32.SegmentType(s.typ), uint32(s.base), uint32(s.limit), s.dpl)
	}
	if s.system {
		d = d.AsSystem()
	}
	return write(w, conf.Output, newSegmentReport(d))
}

// segmentReport describes one segment descriptor.
type segmentReport struct {
	Word   string               `json:"word" yaml:"word"`
	Bytes  string               `json:"bytes" yaml:"bytes"`
	Limit  uint32               `json:"byte_limit" yaml:"byte_limit"`
	Fields ring32.SegmentFields `json:"fields" yaml:"fields"`
}

func newSegmentReport(d ring32.SegmentDescriptor) *segmentReport {
	b := d.Bytes()
	return &segmentReport{
		Word:   hex64(d.Uint64()),
		Bytes:  hexBytes(b[:]),
		Limit:  d.Limit(),
		Fields: d.Fields(),
	}
}

func (r *segmentReport) writeText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	f := r.Fields
	fmt.Fprintf(tw, "word:\t%s\n", r.Word)
	fmt.Fprintf(tw, "bytes:\t%s\n", r.Bytes)
	fmt.Fprintf(tw, "base:\t%#08x\n", f.Base)
	fmt.Fprintf(tw, "limit:\t%#05x (bytes %#08x)\n", f.Limit, r.Limit)
	fmt.Fprintf(tw, "type:\t%#x\n", uint8(f.Type))
	fmt.Fprintf(tw, "s:\t%t\n", f.Application)
	fmt.Fprintf(tw, "dpl:\t%d\n", f.DPL)
	fmt.Fprintf(tw, "p:\t%t\n", f.Present)
	fmt.Fprintf(tw, "avl:\t%t\n", f.Available)
	fmt.Fprintf(tw, "rsv1:\t%t\n", f.Reserved)
	fmt.Fprintf(tw, "db:\t%t\n", f.DB)
	fmt.Fprintf(tw, "g:\t%t\n", f.Granularity)
	return tw.Flush()
}
