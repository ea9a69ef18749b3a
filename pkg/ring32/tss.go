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

package ring32

import (
	"fmt"

	"gvisor.dev/ring32/pkg/binary"
)

// TaskStateSize is the size of the hardware task state segment.
const TaskStateSize = 104

// TaskState is the i386 task state segment.
//
// Only ss0, esp0 and iomb are consulted on a software task switch; the rest
// exist for hardware task switching.
type TaskState struct {
	Link   uint32
	ESP0   uint32
	SS0    uint16
	_      uint16
	ESP1   uint32
	SS1    uint16
	_      uint16
	ESP2   uint32
	SS2    uint16
	_      uint16
	CR3    uint32
	EIP    uint32
	EFlags uint32
	EAX    uint32
	ECX    uint32
	EDX    uint32
	EBX    uint32
	ESP    uint32
	EBP    uint32
	ESI    uint32
	EDI    uint32
	ES     uint16
	_      uint16
	CS     uint16
	_      uint16
	SS     uint16
	_      uint16
	DS     uint16
	_      uint16
	FS     uint16
	_      uint16
	GS     uint16
	_      uint16
	LDT    uint16
	_      uint16
	T      uint16
	IOMB   uint16
}

// Bytes returns the in-memory encoding of the task state.
func (t *TaskState) Bytes() []byte {
	return binary.Marshal(make([]byte, 0, TaskStateSize), t)
}

// Unmarshal decodes b into t. b must be exactly TaskStateSize bytes with zero
// padding.
func (t *TaskState) Unmarshal(b []byte) error {
	if err := binary.Unmarshal(b, t); err != nil {
		return fmt.Errorf("decoding task state: %w", err)
	}
	return nil
}

func init() {
	if size := binary.Size(TaskState{}); size != TaskStateSize {
		panic(fmt.Sprintf("TaskState is %d bytes, want %d", size, TaskStateSize))
	}
}
