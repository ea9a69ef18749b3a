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

package config

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/ring32/pkg/ring32/memlayout"
)

func newFlags(t *testing.T) *flag.FlagSet {
	t.Helper()
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	return testFlags
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newFlags(t))
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		LogFormat: "text",
		Output:    "text",
		Layout:    memlayout.Default(),
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("default config mismatch (-want +got):\n%s", diff)
	}
}

func TestFromFlags(t *testing.T) {
	testFlags := newFlags(t)
	for name, value := range map[string]string{
		"debug":      "true",
		"output":     "yaml",
		"log-format": "json",
		"log":        "/tmp/mkboot.%COMMAND%.log",
	} {
		if err := testFlags.Set(name, value); err != nil {
			t.Fatalf("Flag set %q: %v", name, err)
		}
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	if want := true; c.Debug != want {
		t.Errorf("Debug=%v, want: %v", c.Debug, want)
	}
	if want := "yaml"; c.Output != want {
		t.Errorf("Output=%v, want: %v", c.Output, want)
	}
	if want := "json"; c.LogFormat != want {
		t.Errorf("LogFormat=%v, want: %v", c.LogFormat, want)
	}
	if want := "/tmp/mkboot.%COMMAND%.log"; c.LogFilename != want {
		t.Errorf("LogFilename=%v, want: %v", c.LogFilename, want)
	}
}

func TestValidation(t *testing.T) {
	for name, value := range map[string]string{
		"output":     "xml",
		"log-format": "json-k8s",
	} {
		t.Run(name, func(t *testing.T) {
			testFlags := newFlags(t)
			if err := testFlags.Set(name, value); err != nil {
				t.Fatalf("Flag set: %v", err)
			}
			if _, err := NewFromFlags(testFlags); err == nil {
				t.Errorf("NewFromFlags with %s=%s succeeded", name, value)
			}
		})
	}
}

func writeLayout(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layout.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLayoutFile(t *testing.T) {
	path := writeLayout(t, `
[layout]
kernbase = 0xC0000000
phystop = 0x2000000
`)
	testFlags := newFlags(t)
	if err := testFlags.Set("layout", path); err != nil {
		t.Fatalf("Flag set: %v", err)
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	want := memlayout.Layout{
		KernBase: 0xC0000000,
		ExtMem:   memlayout.DefaultExtMem,
		PhysTop:  0x2000000,
		DevSpace: memlayout.DefaultDevSpace,
	}
	if diff := cmp.Diff(want, c.Layout); diff != "" {
		t.Errorf("layout mismatch (-want +got):\n%s", diff)
	}
}

func TestLayoutFileErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		contents string
		want     error
	}{
		{"unknown key", "[layout]\nkernelbase = 0x80000000\n", nil},
		{"syntax", "[layout\n", nil},
		{"invalid", "[layout]\nkernbase = 0x80001000\n", memlayout.ErrLayout},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testFlags := newFlags(t)
			if err := testFlags.Set("layout", writeLayout(t, tc.contents)); err != nil {
				t.Fatalf("Flag set: %v", err)
			}
			_, err := NewFromFlags(testFlags)
			if err == nil {
				t.Fatalf("NewFromFlags succeeded")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("NewFromFlags = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestMissingLayoutFile(t *testing.T) {
	if _, err := LoadLayout(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Errorf("LoadLayout of missing file succeeded")
	}
}
