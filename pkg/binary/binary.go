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

// Package binary translates between hardware-defined fixed-size records and
// their byte-exact little-endian representation.
//
// Records may only contain fixed-length unsigned ints, arrays and structs of
// said types. Blank (_) struct fields are padding: they are always encoded as
// zero bytes and must decode from zero bytes.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
)

// LittleEndian is the byte order of every x86 structure.
var LittleEndian = binary.LittleEndian

var (
	// ErrLength is returned when a buffer does not hold exactly one record.
	ErrLength = errors.New("buffer length does not match record size")

	// ErrPadding is returned when padding bytes of a record are not zero.
	ErrPadding = errors.New("non-zero padding")
)

// AppendUint16 appends the little-endian representation of num to buf.
func AppendUint16(buf []byte, num uint16) []byte {
	return LittleEndian.AppendUint16(buf, num)
}

// AppendUint32 appends the little-endian representation of num to buf.
func AppendUint32(buf []byte, num uint32) []byte {
	return LittleEndian.AppendUint32(buf, num)
}

// Marshal appends the binary representation of data to buf.
//
// data may be a pointer, but cannot contain pointers.
func Marshal(buf []byte, data any) []byte {
	return marshal(buf, reflect.Indirect(reflect.ValueOf(data)))
}

func marshal(buf []byte, data reflect.Value) []byte {
	switch data.Kind() {
	case reflect.Uint8:
		buf = append(buf, byte(data.Uint()))
	case reflect.Uint16:
		buf = AppendUint16(buf, uint16(data.Uint()))
	case reflect.Uint32:
		buf = AppendUint32(buf, uint32(data.Uint()))

	case reflect.Array:
		for i, l := 0, data.Len(); i < l; i++ {
			buf = marshal(buf, data.Index(i))
		}

	case reflect.Struct:
		t := data.Type()
		for i, l := 0, data.NumField(); i < l; i++ {
			field := data.Field(i)
			if t.Field(i).Name == "_" {
				buf = append(buf, make([]byte, sizeof(field))...)
				continue
			}
			buf = marshal(buf, field)
		}

	default:
		panic("invalid type: " + data.Type().String())
	}
	return buf
}

// Unmarshal unpacks buf into data, which must be a pointer.
//
// buf must have a length of exactly Size(data), and every padding byte must
// be zero.
func Unmarshal(buf []byte, data any) error {
	value := reflect.ValueOf(data)
	if value.Kind() != reflect.Ptr {
		panic("invalid type: " + value.Type().String())
	}
	value = value.Elem()
	if want := sizeof(value); uintptr(len(buf)) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrLength, len(buf), want)
	}
	_, err := unmarshal(buf, 0, value)
	return err
}

func unmarshal(buf []byte, off uintptr, data reflect.Value) ([]byte, error) {
	switch data.Kind() {
	case reflect.Uint8:
		data.SetUint(uint64(buf[0]))
		buf = buf[1:]
	case reflect.Uint16:
		data.SetUint(uint64(LittleEndian.Uint16(buf)))
		buf = buf[2:]
	case reflect.Uint32:
		data.SetUint(uint64(LittleEndian.Uint32(buf)))
		buf = buf[4:]

	case reflect.Array:
		for i, l := 0, data.Len(); i < l; i++ {
			var err error
			start := len(buf)
			if buf, err = unmarshal(buf, off, data.Index(i)); err != nil {
				return nil, err
			}
			off += uintptr(start - len(buf))
		}

	case reflect.Struct:
		t := data.Type()
		for i, l := 0, data.NumField(); i < l; i++ {
			field := data.Field(i)
			n := sizeof(field)
			if t.Field(i).Name == "_" {
				for j, b := range buf[:n] {
					if b != 0 {
						return nil, fmt.Errorf("%w: byte %#x at offset %d", ErrPadding, b, off+uintptr(j))
					}
				}
				buf = buf[n:]
			} else {
				var err error
				if buf, err = unmarshal(buf, off, field); err != nil {
					return nil, err
				}
			}
			off += n
		}

	default:
		panic("invalid type: " + data.Type().String())
	}
	return buf, nil
}

// Size calculates the buffer size needed by Marshal or Unmarshal.
//
// Size only supports the types supported by Marshal.
func Size(v any) uintptr {
	return sizeof(reflect.Indirect(reflect.ValueOf(v)))
}

func sizeof(data reflect.Value) uintptr {
	switch data.Kind() {
	case reflect.Uint8:
		return 1
	case reflect.Uint16:
		return 2
	case reflect.Uint32:
		return 4

	case reflect.Array:
		if data.Len() == 0 {
			return 0
		}
		return uintptr(data.Len()) * sizeof(data.Index(0))

	case reflect.Struct:
		var size uintptr
		for i, l := 0, data.NumField(); i < l; i++ {
			size += sizeof(data.Field(i))
		}
		return size

	default:
		panic("invalid type: " + data.Type().String())
	}
}

// Offset returns the byte offset of the named top-level field of the struct
// v in its binary representation. ok is false if there is no such field.
func Offset(v any, name string) (off uintptr, ok bool) {
	data := reflect.Indirect(reflect.ValueOf(v))
	if data.Kind() != reflect.Struct {
		panic("invalid type: " + data.Type().String())
	}
	t := data.Type()
	for i, l := 0, data.NumField(); i < l; i++ {
		if t.Field(i).Name == name {
			return off, true
		}
		off += sizeof(data.Field(i))
	}
	return 0, false
}
