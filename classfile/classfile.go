// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package classfile decodes the Java .class file binary format: the
// constant pool, member tables, attributes, and the bytecode instruction
// stream of a single compiled class.
//
// Decoding is soft-failure by default: an unrecognized attribute or
// bytecode opcode becomes typed data describing what was seen rather than
// an error. Only structural failures that make the rest of the file
// unreadable - a bad magic number, a truncated buffer - are fatal and
// surface as a non-nil error from Decode.
package classfile

import (
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/dpago/jvmdbg/internal/binprim"
)

// ClassFileMagic is the fixed magic number every class file begins with.
const ClassFileMagic uint32 = 0xCAFEBABE

// ErrBadMagic is returned when the first four bytes are not 0xCAFEBABE.
var ErrBadMagic = errors.New("classfile: bad magic number")

// Version is the minor/major class-file format version pair.
type Version struct {
	Minor uint16
	Major uint16
}

// AccessFlags is the access_flags bitset shared by classes, fields, and
// methods. Not every bit is meaningful in every context; see the Is method
// and the Acc* constants.
type AccessFlags uint16

// Access flag bits, per the JVM specification (table 4.1-A and friends).
// Several bits are reused across class/field/method/innerclass contexts
// with different meanings; callers interpret them according to context.
const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSuper        AccessFlags = 0x0020
	AccSynchronized AccessFlags = 0x0020
	AccVolatile     AccessFlags = 0x0040
	AccBridge       AccessFlags = 0x0040
	AccTransient    AccessFlags = 0x0080
	AccVarargs      AccessFlags = 0x0080
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccStrict       AccessFlags = 0x0800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
	AccModule       AccessFlags = 0x8000
)

// Is reports whether every bit of flag is set.
func (f AccessFlags) Is(flag AccessFlags) bool { return f&flag == flag }

// RawAttribute is an attribute table entry before name-based resolution:
// the raw bytes of attribute_info's info[] field, unparsed.
type RawAttribute struct {
	NameIndex uint16
	Data      []byte
}

// MemberInfo is a field_info or method_info structure: access flags, a
// name and descriptor index, and a raw attribute list.
type MemberInfo struct {
	AccessFlags     AccessFlags
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []RawAttribute
}

// ClassFile is a fully decoded .class file.
type ClassFile struct {
	Version      Version
	ConstantPool *ConstantPool
	AccessFlags  AccessFlags
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []MemberInfo
	Methods      []MemberInfo
	Attributes   []RawAttribute
}

// Name resolves the class's own binary name via the constant pool,
// returning ("", false) if the this_class index does not resolve.
func (c *ClassFile) Name() (string, bool) {
	return c.ConstantPool.Class(c.ThisClass)
}

// SuperName resolves the superclass's binary name. java/lang/Object has
// super_class == 0 and SuperName returns ("", false) for it.
func (c *ClassFile) SuperName() (string, bool) {
	if c.SuperClass == 0 {
		return "", false
	}
	return c.ConstantPool.Class(c.SuperClass)
}

// Decode parses a complete class file from an in-memory buffer.
func Decode(data []byte) (*ClassFile, error) {
	if len(data) < 10 {
		return nil, fmt.Errorf("classfile: %w: file too short", binprim.ErrShortBuffer)
	}

	magic, err := binprim.ReadU32(data, 0)
	if err != nil {
		return nil, err
	}
	if magic != ClassFileMagic {
		return nil, fmt.Errorf("%w: got %#08x", ErrBadMagic, magic)
	}

	minor, err := binprim.ReadU16(data, 4)
	if err != nil {
		return nil, err
	}
	major, err := binprim.ReadU16(data, 6)
	if err != nil {
		return nil, err
	}

	cp, off, err := decodeConstantPool(data, 8)
	if err != nil {
		return nil, err
	}

	accessFlags, err := binprim.ReadU16(data, off)
	if err != nil {
		return nil, err
	}
	off += 2

	thisClass, err := binprim.ReadU16(data, off)
	if err != nil {
		return nil, err
	}
	off += 2

	superClass, err := binprim.ReadU16(data, off)
	if err != nil {
		return nil, err
	}
	off += 2

	interfacesCount, err := binprim.ReadU16(data, off)
	if err != nil {
		return nil, err
	}
	off += 2

	interfaces := make([]uint16, interfacesCount)
	for i := range interfaces {
		interfaces[i], err = binprim.ReadU16(data, off)
		if err != nil {
			return nil, fmt.Errorf("classfile: interface %d: %w", i, err)
		}
		off += 2
	}

	fields, off, err := decodeMembers(data, off)
	if err != nil {
		return nil, fmt.Errorf("classfile: fields: %w", err)
	}

	methods, off, err := decodeMembers(data, off)
	if err != nil {
		return nil, fmt.Errorf("classfile: methods: %w", err)
	}

	attrs, _, err := decodeRawAttributes(data, off)
	if err != nil {
		return nil, fmt.Errorf("classfile: class attributes: %w", err)
	}

	return &ClassFile{
		Version:      Version{Minor: minor, Major: major},
		ConstantPool: cp,
		AccessFlags:  AccessFlags(accessFlags),
		ThisClass:    thisClass,
		SuperClass:   superClass,
		Interfaces:   interfaces,
		Fields:       fields,
		Methods:      methods,
		Attributes:   attrs,
	}, nil
}

// DecodeFile memory-maps the file at path and decodes it. The mapping is
// unmapped before DecodeFile returns; the returned ClassFile owns its own
// copies of any data it needs.
func DecodeFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("classfile: opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("classfile: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("classfile: %s is empty", path)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("classfile: mmap %s: %w", path, err)
	}
	defer m.Unmap()

	return Decode([]byte(m))
}

func decodeMembers(data []byte, off int) ([]MemberInfo, int, error) {
	count, err := binprim.ReadU16(data, off)
	if err != nil {
		return nil, 0, err
	}
	off += 2

	members := make([]MemberInfo, count)
	for i := range members {
		flags, err := binprim.ReadU16(data, off)
		if err != nil {
			return nil, 0, fmt.Errorf("member %d: %w", i, err)
		}
		off += 2

		nameIdx, err := binprim.ReadU16(data, off)
		if err != nil {
			return nil, 0, fmt.Errorf("member %d: %w", i, err)
		}
		off += 2

		descIdx, err := binprim.ReadU16(data, off)
		if err != nil {
			return nil, 0, fmt.Errorf("member %d: %w", i, err)
		}
		off += 2

		attrs, next, err := decodeRawAttributes(data, off)
		if err != nil {
			return nil, 0, fmt.Errorf("member %d attributes: %w", i, err)
		}
		off = next

		members[i] = MemberInfo{
			AccessFlags:     AccessFlags(flags),
			NameIndex:       nameIdx,
			DescriptorIndex: descIdx,
			Attributes:      attrs,
		}
	}

	return members, off, nil
}

func decodeRawAttributes(data []byte, off int) ([]RawAttribute, int, error) {
	count, err := binprim.ReadU16(data, off)
	if err != nil {
		return nil, 0, err
	}
	off += 2

	attrs := make([]RawAttribute, count)
	for i := range attrs {
		nameIdx, err := binprim.ReadU16(data, off)
		if err != nil {
			return nil, 0, fmt.Errorf("attribute %d: %w", i, err)
		}
		off += 2

		length, err := binprim.ReadU32(data, off)
		if err != nil {
			return nil, 0, fmt.Errorf("attribute %d: %w", i, err)
		}
		off += 4

		if off+int(length) > len(data) {
			return nil, 0, fmt.Errorf("attribute %d: %w", i, binprim.ErrShortBuffer)
		}

		raw := make([]byte, length)
		copy(raw, data[off:off+int(length)])
		attrs[i] = RawAttribute{NameIndex: nameIdx, Data: raw}
		off += int(length)
	}

	return attrs, off, nil
}
