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

// Package cmd holds implementations of the mkboot commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
	"gvisor.dev/ring32/pkg/log"
	"gvisor.dev/ring32/pkg/ring32"
)

// Fatalf logs to stderr and exits with a failure status code.
func Fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	log.Warningf("FATAL ERROR: "+format, args...)
	os.Exit(128)
}

// addrFlag is a 32-bit address flag. Values may be given in any base
// accepted by strconv.ParseUint, e.g. 0x80100000.
type addrFlag uint32

// String implements flag.Value.
func (a *addrFlag) String() string {
	return fmt.Sprintf("%#x", uint32(*a))
}

// Get implements flag.Getter.
func (a *addrFlag) Get() any {
	return uint32(*a)
}

// Set implements flag.Value.
func (a *addrFlag) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return fmt.Errorf("invalid address %q: %v", s, err)
	}
	*a = addrFlag(v)
	return nil
}

// segmentTypes are the names accepted by typeFlag.
var segmentTypes = map[string]ring32.SegmentType{
	"code":  ring32.AppExecute | ring32.AppRead,
	"data":  ring32.AppWrite,
	"ldt":   ring32.SysLDT,
	"tss32": ring32.SysTSS32Available,
}

// typeFlag is a segment type flag, by name or number.
type typeFlag ring32.SegmentType

// String implements flag.Value.
func (t *typeFlag) String() string {
	return fmt.Sprintf("%#x", uint8(*t))
}

// Get implements flag.Getter.
func (t *typeFlag) Get() any {
	return ring32.SegmentType(*t)
}

// Set implements flag.Value.
func (t *typeFlag) Set(s string) error {
	if typ, ok := segmentTypes[s]; ok {
		*t = typeFlag(typ)
		return nil
	}
	v, err := strconv.ParseUint(s, 0, 4)
	if err != nil {
		return fmt.Errorf("invalid segment type %q: must be code, data, ldt, tss32 or a number below 16", s)
	}
	*t = typeFlag(v)
	return nil
}

// report is the result of a command.
type report interface {
	// writeText writes the human readable form of the report.
	writeText(w io.Writer) error
}

// write writes r to w in the given format.
func write(w io.Writer, format string, r report) error {
	switch format {
	case "text":
		return r.writeText(w)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		b, err := yaml.Marshal(r)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// hex64 renders a descriptor word.
func hex64(v uint64) string {
	return fmt.Sprintf("%#016x", v)
}

// hexBytes renders bytes in memory order.
func hexBytes(b []byte) string {
	return fmt.Sprintf("% x", b)
}
