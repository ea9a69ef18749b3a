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

package log

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// jsonLog is one JSON log record.
type jsonLog struct {
	Msg     string    `json:"msg"`
	Level   Level     `json:"level"`
	Time    time.Time `json:"time"`
	Caller  string    `json:"caller,omitempty"`
	Command string    `json:"cmd,omitempty"`
}

// MarshalJSON implements json.Marshaler.MarshalJSON.
func (l Level) MarshalJSON() ([]byte, error) {
	if l > Debug {
		return nil, fmt.Errorf("unknown level %v", l)
	}
	return json.Marshal(strings.ToLower(l.String()))
}

// UnmarshalJSON implements json.Unmarshaler.UnmarshalJSON. Both level names
// and their integer values are accepted.
func (l *Level) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		n, err := strconv.ParseUint(string(b), 10, 32)
		if err != nil || Level(n) > Debug {
			return fmt.Errorf("unknown level %s", b)
		}
		*l = Level(n)
		return nil
	}
	for lv := Warning; lv <= Debug; lv++ {
		if strings.EqualFold(name, lv.String()) {
			*l = lv
			return nil
		}
	}
	return fmt.Errorf("unknown level %q", name)
}

// JSONEmitter logs messages in json format, one record per line.
type JSONEmitter struct {
	*Writer

	// Command is added to every record, if set. Commands sharing a log file
	// can then be told apart.
	Command string
}

// Emit implements Emitter.Emit.
func (e JSONEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	j := jsonLog{
		Msg:     fmt.Sprintf(format, v...),
		Level:   level,
		Time:    timestamp,
		Caller:  callerName(depth),
		Command: e.Command,
	}
	b, err := json.Marshal(j)
	if err != nil {
		panic(err)
	}
	e.Writer.Write(append(b, '\n'))
}
