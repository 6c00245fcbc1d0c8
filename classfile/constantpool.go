// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import (
	"fmt"

	"github.com/dpago/jvmdbg/internal/binprim"
)

// CPTag identifies the kind of a constant-pool entry.
type CPTag byte

// Constant-pool tags, per the JVM specification.
const (
	CPUtf8               CPTag = 1
	CPInteger            CPTag = 3
	CPFloat              CPTag = 4
	CPLong               CPTag = 5
	CPDouble             CPTag = 6
	CPClass              CPTag = 7
	CPString             CPTag = 8
	CPFieldref           CPTag = 9
	CPMethodref          CPTag = 10
	CPInterfaceMethodref CPTag = 11
	CPNameAndType        CPTag = 12
	CPMethodHandle       CPTag = 15
	CPMethodType         CPTag = 16
	CPDynamic            CPTag = 17
	CPInvokeDynamic      CPTag = 18
	CPModule             CPTag = 19
	CPPackage            CPTag = 20
)

var cpTagNames = map[CPTag]string{
	CPUtf8: "Utf8", CPInteger: "Integer", CPFloat: "Float", CPLong: "Long",
	CPDouble: "Double", CPClass: "Class", CPString: "String", CPFieldref: "Fieldref",
	CPMethodref: "Methodref", CPInterfaceMethodref: "InterfaceMethodref",
	CPNameAndType: "NameAndType", CPMethodHandle: "MethodHandle", CPMethodType: "MethodType",
	CPDynamic: "Dynamic", CPInvokeDynamic: "InvokeDynamic", CPModule: "Module", CPPackage: "Package",
}

// CPEntry is one slot of the constant pool. Only the fields relevant to Tag
// are populated; the others carry their zero value. Slots reserved by the
// two-slot Long/Double rule carry Tag 0 (CPInvalid) and are never looked up.
type CPEntry struct {
	Tag CPTag

	UTF8    string  // CPUtf8
	Int32   int32   // CPInteger
	Float32 float32 // CPFloat
	Int64   int64   // CPLong
	Float64 float64 // CPDouble

	// Index1/Index2 carry the index fields for the reference-shaped kinds:
	//   Class:               Index1 = name_index
	//   String:               Index1 = string_index
	//   Fieldref/Methodref/
	//   InterfaceMethodref:   Index1 = class_index,        Index2 = name_and_type_index
	//   NameAndType:          Index1 = name_index,          Index2 = descriptor_index
	//   MethodType:           Index1 = descriptor_index
	//   Dynamic/
	//   InvokeDynamic:        Index1 = bootstrap_method_attr_index, Index2 = name_and_type_index
	//   Module/Package:       Index1 = name_index
	Index1 uint16
	Index2 uint16

	// MethodHandle only.
	RefKind byte
}

// CPInvalid marks an unusable slot: index 0, and the second slot of every
// Long/Double entry.
const CPInvalid CPTag = 0

// ConstantPool is the 1-indexed constant-pool table of a class file.
type ConstantPool struct {
	entries []CPEntry // entries[0] is always CPInvalid; see class-file §3
}

// Count returns the pool's declared count field (entries[1:Count] are the
// valid indices, subject to the two-slot rule).
func (cp *ConstantPool) Count() int { return len(cp.entries) }

func (cp *ConstantPool) at(index uint16) (CPEntry, bool) {
	i := int(index)
	if i <= 0 || i >= len(cp.entries) {
		return CPEntry{}, false
	}
	return cp.entries[i], true
}

// UTF8 looks up a UTF-8 entry, returning ("", false) if index is out of
// range or not a UTF-8 entry.
func (cp *ConstantPool) UTF8(index uint16) (string, bool) {
	e, ok := cp.at(index)
	if !ok || e.Tag != CPUtf8 {
		return "", false
	}
	return e.UTF8, true
}

// Class looks up a Class entry and resolves its name, returning ("", false)
// on any failure along the chain.
func (cp *ConstantPool) Class(index uint16) (string, bool) {
	e, ok := cp.at(index)
	if !ok || e.Tag != CPClass {
		return "", false
	}
	return cp.UTF8(e.Index1)
}

// Int looks up an Integer entry.
func (cp *ConstantPool) Int(index uint16) (int32, bool) {
	e, ok := cp.at(index)
	if !ok || e.Tag != CPInteger {
		return 0, false
	}
	return e.Int32, true
}

// Int16 narrows an Integer entry to a Java short.
func (cp *ConstantPool) Int16(index uint16) (int16, bool) {
	v, ok := cp.Int(index)
	return int16(v), ok
}

// Uint8 narrows an Integer entry to a Java byte (stored as the low 8 bits).
func (cp *ConstantPool) Uint8(index uint16) (uint8, bool) {
	v, ok := cp.Int(index)
	return uint8(v), ok
}

// Char narrows an Integer entry to a Java char (low 16 bits).
func (cp *ConstantPool) Char(index uint16) (uint16, bool) {
	v, ok := cp.Int(index)
	return uint16(v), ok
}

// Bool narrows an Integer entry to a Java boolean: nonzero is true.
func (cp *ConstantPool) Bool(index uint16) (bool, bool) {
	v, ok := cp.Int(index)
	return v != 0, ok
}

// Float32Value looks up a Float entry.
func (cp *ConstantPool) Float32Value(index uint16) (float32, bool) {
	e, ok := cp.at(index)
	if !ok || e.Tag != CPFloat {
		return 0, false
	}
	return e.Float32, true
}

// Int64Value looks up a Long entry.
func (cp *ConstantPool) Int64Value(index uint16) (int64, bool) {
	e, ok := cp.at(index)
	if !ok || e.Tag != CPLong {
		return 0, false
	}
	return e.Int64, true
}

// Float64Value looks up a Double entry.
func (cp *ConstantPool) Float64Value(index uint16) (float64, bool) {
	e, ok := cp.at(index)
	if !ok || e.Tag != CPDouble {
		return 0, false
	}
	return e.Float64, true
}

// StringValue looks up a String entry and resolves the UTF-8 it points to.
func (cp *ConstantPool) StringValue(index uint16) (string, bool) {
	e, ok := cp.at(index)
	if !ok || e.Tag != CPString {
		return "", false
	}
	return cp.UTF8(e.Index1)
}

// NameAndType looks up a NameAndType entry's raw name/descriptor indices.
func (cp *ConstantPool) NameAndType(index uint16) (nameIndex, descriptorIndex uint16, ok bool) {
	e, found := cp.at(index)
	if !found || e.Tag != CPNameAndType {
		return 0, 0, false
	}
	return e.Index1, e.Index2, true
}

// Ref looks up a Fieldref/Methodref/InterfaceMethodRef entry's raw
// class/name-and-type indices.
func (cp *ConstantPool) Ref(index uint16) (classIndex, nameAndTypeIndex uint16, ok bool) {
	e, found := cp.at(index)
	if !found {
		return 0, 0, false
	}
	switch e.Tag {
	case CPFieldref, CPMethodref, CPInterfaceMethodref:
		return e.Index1, e.Index2, true
	default:
		return 0, 0, false
	}
}

// decodeConstantPool reads the constant pool starting at off (the u16 count
// field), honoring the two-slot Long/Double rule, and returns the pool plus
// the offset immediately after it.
func decodeConstantPool(data []byte, off int) (*ConstantPool, int, error) {
	count, err := binprim.ReadU16(data, off)
	if err != nil {
		return nil, 0, fmt.Errorf("classfile: reading constant pool count: %w", err)
	}
	off += 2

	entries := make([]CPEntry, count)
	i := 1
	for i < int(count) {
		entry, next, err := decodeCPEntry(data, off)
		if err != nil {
			return nil, 0, fmt.Errorf("classfile: constant pool entry %d: %w", i, err)
		}
		entries[i] = entry
		off = next

		// 8-byte constants occupy two slots; the following slot is reserved
		// and unusable (class-file §3 invariant).
		if entry.Tag == CPLong || entry.Tag == CPDouble {
			i += 2
		} else {
			i++
		}
	}

	return &ConstantPool{entries: entries}, off, nil
}

func decodeCPEntry(data []byte, off int) (CPEntry, int, error) {
	tagRaw, err := binprim.ReadU8(data, off)
	if err != nil {
		return CPEntry{}, 0, err
	}
	off++

	tag := CPTag(tagRaw)
	if _, known := cpTagNames[tag]; !known {
		return CPEntry{}, 0, fmt.Errorf("classfile: invalid constant pool tag %d", tagRaw)
	}

	switch tag {
	case CPUtf8:
		length, err := binprim.ReadU16(data, off)
		if err != nil {
			return CPEntry{}, 0, err
		}
		off += 2
		if off+int(length) > len(data) {
			return CPEntry{}, 0, binprim.ErrShortBuffer
		}
		s, err := decodeModifiedUTF8(data[off : off+int(length)])
		if err != nil {
			return CPEntry{}, 0, err
		}
		return CPEntry{Tag: tag, UTF8: s}, off + int(length), nil

	case CPInteger:
		v, err := binprim.ReadI32(data, off)
		if err != nil {
			return CPEntry{}, 0, err
		}
		return CPEntry{Tag: tag, Int32: v}, off + 4, nil

	case CPFloat:
		v, err := binprim.ReadF32(data, off)
		if err != nil {
			return CPEntry{}, 0, err
		}
		return CPEntry{Tag: tag, Float32: v}, off + 4, nil

	case CPLong:
		v, err := binprim.ReadI64(data, off)
		if err != nil {
			return CPEntry{}, 0, err
		}
		return CPEntry{Tag: tag, Int64: v}, off + 8, nil

	case CPDouble:
		v, err := binprim.ReadF64(data, off)
		if err != nil {
			return CPEntry{}, 0, err
		}
		return CPEntry{Tag: tag, Float64: v}, off + 8, nil

	case CPClass, CPString, CPMethodType, CPModule, CPPackage:
		idx, err := binprim.ReadU16(data, off)
		if err != nil {
			return CPEntry{}, 0, err
		}
		return CPEntry{Tag: tag, Index1: idx}, off + 2, nil

	case CPFieldref, CPMethodref, CPInterfaceMethodref, CPNameAndType, CPDynamic, CPInvokeDynamic:
		idx1, err := binprim.ReadU16(data, off)
		if err != nil {
			return CPEntry{}, 0, err
		}
		idx2, err := binprim.ReadU16(data, off+2)
		if err != nil {
			return CPEntry{}, 0, err
		}
		return CPEntry{Tag: tag, Index1: idx1, Index2: idx2}, off + 4, nil

	case CPMethodHandle:
		refKind, err := binprim.ReadU8(data, off)
		if err != nil {
			return CPEntry{}, 0, err
		}
		refIdx, err := binprim.ReadU16(data, off+1)
		if err != nil {
			return CPEntry{}, 0, err
		}
		return CPEntry{Tag: tag, RefKind: refKind, Index1: refIdx}, off + 3, nil

	default:
		// Unreachable: every known tag is handled above.
		return CPEntry{}, 0, fmt.Errorf("classfile: unhandled constant pool tag %d", tagRaw)
	}
}
