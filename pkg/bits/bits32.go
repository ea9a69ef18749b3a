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

// Package bits includes bit related types and operations on 32-bit words.
package bits

// IsOn32 returns true if *all* bits set in 'bits' are set in 'mask'.
func IsOn32(mask, bits uint32) bool {
	return mask&bits == bits
}

// IsAnyOn32 returns true if *any* bit set in 'bits' is set in 'mask'.
func IsAnyOn32(mask, bits uint32) bool {
	return mask&bits != 0
}

// IsAligned32 returns true if v is a multiple of align.
//
// Precondition: align must be a power of 2.
func IsAligned32(v, align uint32) bool {
	return v&(align-1) == 0
}

// AlignDown32 returns v rounded down to the nearest multiple of align.
//
// Precondition: align must be a power of 2.
func AlignDown32(v, align uint32) uint32 {
	return v &^ (align - 1)
}

// AlignUp32 returns v rounded up to the nearest multiple of align. ok is
// false iff rounding up wrapped around.
//
// Precondition: align must be a power of 2.
func AlignUp32(v, align uint32) (x uint32, ok bool) {
	x = AlignDown32(v+align-1, align)
	ok = x >= v
	return
}

// Field32 extracts the width-bit field starting at bit shift of v.
func Field32(v uint32, shift, width uint) uint32 {
	return (v >> shift) & (1<<width - 1)
}

// SetField32 returns v with the width-bit field starting at bit shift
// replaced by the low width bits of x.
func SetField32(v, x uint32, shift, width uint) uint32 {
	mask := uint32(1<<width-1) << shift
	return v&^mask | (x<<shift)&mask
}
