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

// Package config provides basic infrastructure to set configuration settings
// for mkboot. Each setting that can be changed from the command line must
// have a field with a `flag` tag naming it.
package config

import (
	"flag"
	"fmt"
	"reflect"

	"github.com/BurntSushi/toml"
	"gvisor.dev/ring32/pkg/log"
	"gvisor.dev/ring32/pkg/ring32/memlayout"
)

// Config holds configuration that is not part of a single command.
type Config struct {
	// LogFilename is the filename to log to, if not empty. %COMMAND% and
	// %TIMESTAMP% are substituted.
	LogFilename string `flag:"log"`

	// LogFormat is the log format.
	LogFormat string `flag:"log-format"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug"`

	// LayoutFile is a TOML file overriding the default memory layout.
	LayoutFile string `flag:"layout"`

	// Output is the output format of commands: text, json or yaml.
	Output string `flag:"output"`

	// Layout is the memory layout, loaded from LayoutFile.
	Layout memlayout.Layout
}

// layoutFile is the schema of LayoutFile.
type layoutFile struct {
	Layout memlayout.Layout `toml:"layout"`
}

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("log", "", "file path where internal debug information is written, default is stderr. The following variables are available: %TIMESTAMP%, %COMMAND%.")
	flagSet.String("log-format", "text", "log format: text (default) or json.")
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("layout", "", "TOML file with a [layout] table overriding kernbase, extmem, phystop and devspace.")
	flagSet.String("output", "text", "output format: text (default), json or yaml.")
}

// NewFromFlags creates a new Config with values coming from command line
// flags and the layout file.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}

	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		x := reflect.ValueOf(fl.Value.(flag.Getter).Get())
		obj.Field(i).Set(x)
	}

	layout, err := LoadLayout(conf.LayoutFile)
	if err != nil {
		return nil, err
	}
	conf.Layout = layout

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// LoadLayout reads the layout from path. Keys missing from the file keep
// their default value; an empty path returns the default layout.
func LoadLayout(path string) (memlayout.Layout, error) {
	lf := layoutFile{Layout: memlayout.Default()}
	if path == "" {
		return lf.Layout, nil
	}
	md, err := toml.DecodeFile(path, &lf)
	if err != nil {
		return memlayout.Layout{}, fmt.Errorf("reading layout %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return memlayout.Layout{}, fmt.Errorf("layout %q: unknown keys %v", path, undecoded)
	}
	return lf.Layout, nil
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text' or 'json'", c.LogFormat)
	}
	switch c.Output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("invalid output format %q, must be 'text', 'json' or 'yaml'", c.Output)
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("layout %q: %w", c.LayoutFile, err)
	}
	return nil
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	log.Infof("Log: %q (%s)", c.LogFilename, c.LogFormat)
	log.Infof("Debug: %t", c.Debug)
	log.Infof("Output: %s", c.Output)
	log.Infof("Layout: %v (file %q)", c.Layout, c.LayoutFile)
}
