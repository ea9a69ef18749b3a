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

//go:build !linux
// +build !linux

package boot

import (
	"unsafe"

	"gvisor.dev/ring32/pkg/ring32/pagetables"
)

// directoryMemory is the host memory backing the boot directory.
type directoryMemory struct {
	// unalignedData has unaligned data. We can't rely on the allocator to
	// give us a page aligned page, so we use the portion that is aligned.
	unalignedData []byte
}

// allocDirectory returns a page aligned directory carved out of Go memory.
func allocDirectory() (*directoryMemory, *pagetables.PTEs, error) {
	d := &directoryMemory{unalignedData: make([]byte, 2*pagetables.PageSize-1)}
	addr := uintptr(unsafe.Pointer(&d.unalignedData[0]))
	offset := (pagetables.PageSize - addr%pagetables.PageSize) % pagetables.PageSize
	return d, (*pagetables.PTEs)(unsafe.Pointer(&d.unalignedData[offset])), nil
}

// release drops the directory. The PTEs must not be used afterwards.
func (d *directoryMemory) release() error {
	d.unalignedData = nil
	return nil
}
