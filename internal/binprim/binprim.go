// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package binprim implements the big-endian binary primitives shared by the
// class-file decoder and the JDWP client: fixed-width integer and float
// reads/writes over an in-memory buffer, plus a generic validator for
// repr-integer enums.
package binprim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortBuffer is returned when a read would run past the end of the
// supplied buffer.
var ErrShortBuffer = errors.New("binprim: buffer too short")

// ReadU8 reads an unsigned byte at off.
func ReadU8(b []byte, off int) (uint8, error) {
	if off < 0 || off+1 > len(b) {
		return 0, ErrShortBuffer
	}
	return b[off], nil
}

// ReadI8 reads a signed byte at off.
func ReadI8(b []byte, off int) (int8, error) {
	v, err := ReadU8(b, off)
	return int8(v), err
}

// ReadU16 reads a big-endian uint16 at off.
func ReadU16(b []byte, off int) (uint16, error) {
	if off < 0 || off+2 > len(b) {
		return 0, ErrShortBuffer
	}
	return binary.BigEndian.Uint16(b[off : off+2]), nil
}

// ReadI16 reads a big-endian int16 at off.
func ReadI16(b []byte, off int) (int16, error) {
	v, err := ReadU16(b, off)
	return int16(v), err
}

// ReadU32 reads a big-endian uint32 at off.
func ReadU32(b []byte, off int) (uint32, error) {
	if off < 0 || off+4 > len(b) {
		return 0, ErrShortBuffer
	}
	return binary.BigEndian.Uint32(b[off : off+4]), nil
}

// ReadI32 reads a big-endian int32 at off.
func ReadI32(b []byte, off int) (int32, error) {
	v, err := ReadU32(b, off)
	return int32(v), err
}

// ReadU64 reads a big-endian uint64 at off.
func ReadU64(b []byte, off int) (uint64, error) {
	if off < 0 || off+8 > len(b) {
		return 0, ErrShortBuffer
	}
	return binary.BigEndian.Uint64(b[off : off+8]), nil
}

// ReadI64 reads a big-endian int64 at off.
func ReadI64(b []byte, off int) (int64, error) {
	v, err := ReadU64(b, off)
	return int64(v), err
}

// ReadF32 reads a big-endian IEEE-754 single at off.
func ReadF32(b []byte, off int) (float32, error) {
	v, err := ReadU32(b, off)
	return math.Float32frombits(v), err
}

// ReadF64 reads a big-endian IEEE-754 double at off.
func ReadF64(b []byte, off int) (float64, error) {
	v, err := ReadU64(b, off)
	return math.Float64frombits(v), err
}

// WriteU8 appends an unsigned byte to dst.
func WriteU8(dst []byte, v uint8) []byte { return append(dst, v) }

// WriteU16 appends a big-endian uint16 to dst.
func WriteU16(dst []byte, v uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return append(dst, buf[:]...)
}

// WriteU32 appends a big-endian uint32 to dst.
func WriteU32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

// WriteU64 appends a big-endian uint64 to dst.
func WriteU64(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

// EnumValue validates that raw is a known variant of an integer-backed enum,
// as named by names. It never panics: an unrecognized raw value produces an
// error naming both the rejected value and the enum.
func EnumValue[T ~uint8 | ~uint16 | ~int32](raw T, enumName string, names map[T]string) (T, error) {
	if _, ok := names[raw]; !ok {
		return raw, fmt.Errorf("binprim: invalid value %d for enum %s", raw, enumName)
	}
	return raw, nil
}
