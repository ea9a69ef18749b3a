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

package pagetables

import (
	"errors"
	"testing"
)

func TestPoolAllocator(t *testing.T) {
	a, err := NewPoolAllocator(0x3000, 0x5000)
	if err != nil {
		t.Fatalf("NewPoolAllocator: %v", err)
	}
	p1, phys1, err := a.NewPTEs()
	if err != nil || phys1 != 0x3000 {
		t.Fatalf("first NewPTEs = %#x, %v", phys1, err)
	}
	p2, phys2, err := a.NewPTEs()
	if err != nil || phys2 != 0x4000 {
		t.Fatalf("second NewPTEs = %#x, %v", phys2, err)
	}
	if _, _, err := a.NewPTEs(); !errors.Is(err, ErrNoMemory) {
		t.Errorf("third NewPTEs = %v, want ErrNoMemory", err)
	}
	if a.LookupPTEs(phys2) != p2 || a.LookupPTEs(phys1) != p1 {
		t.Errorf("lookup mismatch")
	}

	p1[3] = Present
	a.FreePTEs(p1)
	if a.LookupPTEs(phys1) != nil {
		t.Errorf("freed frame still looked up")
	}
	p3, phys3, err := a.NewPTEs()
	if err != nil || phys3 != phys1 {
		t.Fatalf("NewPTEs after free = %#x, %v, want %#x", phys3, err, phys1)
	}
	if p3[3] != 0 {
		t.Errorf("reused frame not zeroed")
	}
	if got := a.InUse(); got != 2 {
		t.Errorf("InUse() = %d, want 2", got)
	}
}

func TestPoolAllocatorBounds(t *testing.T) {
	if _, err := NewPoolAllocator(0x1001, 0x5000); !errors.Is(err, ErrUnaligned) {
		t.Errorf("unaligned pool = %v, want ErrUnaligned", err)
	}
	if _, err := NewPoolAllocator(0x5000, 0x5000); !errors.Is(err, ErrNoMemory) {
		t.Errorf("empty pool = %v, want ErrNoMemory", err)
	}
}
