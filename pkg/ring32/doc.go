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

// Package ring32 encodes the i386 protection structures used by a kernel:
// segment and gate descriptors, selectors, the task state segment, and the
// per-CPU descriptor tables built from them.
//
// Encoders are pure and safe for concurrent use. A CPU is owned by a single
// execution context.
package ring32
