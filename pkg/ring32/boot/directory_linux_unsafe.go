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

//go:build linux
// +build linux

package boot

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
	"gvisor.dev/ring32/pkg/ring32/pagetables"
)

// munmap is unix.Munmap, replaced in tests.
var munmap = unix.Munmap

// directoryMemory is the host memory backing the boot directory.
type directoryMemory struct {
	mem []byte
}

// allocDirectory maps one anonymous page for the directory. Use mmap instead
// of make([]byte) to ensure that the directory is page aligned.
func allocDirectory() (*directoryMemory, *pagetables.PTEs, error) {
	mem, err := unix.Mmap(-1,
		0,
		pagetables.PageSize,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to mmap boot directory: %w", err)
	}
	if addr := uintptr(unsafe.Pointer(&mem[0])); addr%pagetables.PageSize != 0 {
		unix.Munmap(mem)
		return nil, nil, fmt.Errorf("boot directory is not page aligned (address %#x)", addr)
	}
	return &directoryMemory{mem: mem}, (*pagetables.PTEs)(unsafe.Pointer(&mem[0])), nil
}

// release unmaps the directory. The PTEs must not be used afterwards.
func (d *directoryMemory) release() error {
	if err := munmap(d.mem); err != nil {
		return fmt.Errorf("failed to unmap boot directory: %w", err)
	}
	d.mem = nil
	return nil
}
