// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jdwp

import (
	"fmt"

	"github.com/dpago/jvmdbg/internal/binprim"
)

// reader is a cursor over a reply packet's body: every decode function
// below advances it past the bytes it read, so callers can thread parsing
// through a sequence of fields without hand-tracking offsets at each call
// site.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) u8() (uint8, error) {
	v, err := binprim.ReadU8(r.buf, r.pos)
	if err != nil {
		return 0, err
	}
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	v, err := binprim.ReadU16(r.buf, r.pos)
	if err != nil {
		return 0, err
	}
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	v, err := binprim.ReadU32(r.buf, r.pos)
	if err != nil {
		return 0, err
	}
	r.pos += 4
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) u64() (uint64, error) {
	v, err := binprim.ReadU64(r.buf, r.pos)
	if err != nil {
		return 0, err
	}
	r.pos += 8
	return v, nil
}

// jdwpString decodes a JdwpString: a u32 byte length followed by that many
// UTF-8 bytes. A zero length is a valid empty string, not an error.
func (r *reader) jdwpString() (string, error) {
	length, err := r.u32()
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	if r.pos+int(length) > len(r.buf) {
		return "", binprim.ErrShortBuffer
	}
	s := string(r.buf[r.pos : r.pos+int(length)])
	r.pos += int(length)
	return s, nil
}

// idSize decodes a VariableLengthId whose width is one of the negotiated
// IDSizes widths (1, 2, 4, or 8 bytes), widened to uint64.
func (r *reader) idSize(width int) (uint64, error) {
	switch width {
	case 1:
		v, err := r.u8()
		return uint64(v), err
	case 2:
		v, err := r.u16()
		return uint64(v), err
	case 4:
		v, err := r.u32()
		return uint64(v), err
	case 8:
		return r.u64()
	default:
		return 0, fmt.Errorf("%w: %d", ErrIDSizesTruncated, width)
	}
}

// TypeTag identifies the kind of reference type a VariableLengthId names.
type TypeTag uint8

// Type tags, per the JDWP specification.
const (
	TypeTagClass     TypeTag = 1
	TypeTagInterface TypeTag = 2
	TypeTagArray     TypeTag = 3
)

var typeTagNames = map[TypeTag]string{
	TypeTagClass: "Class", TypeTagInterface: "Interface", TypeTagArray: "Array",
}

func (t TypeTag) String() string {
	if s, ok := typeTagNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TypeTag(%d)", uint8(t))
}

// ClassStatus is the bitmask describing a reference type's preparation
// state, per the JDWP specification.
type ClassStatus int32

// Class status bits.
const (
	ClassStatusVerified    ClassStatus = 1 << 0
	ClassStatusPrepared    ClassStatus = 1 << 1
	ClassStatusInitialized ClassStatus = 1 << 2
	ClassStatusError       ClassStatus = 1 << 3
)

// Is reports whether every bit of flag is set.
func (s ClassStatus) Is(flag ClassStatus) bool { return s&flag == flag }

// Sizes is the negotiated width, in bytes, of each variable-length
// identifier kind. Every VM advertises its own widths in the IDSizes
// reply; nothing about the protocol assumes a fixed width.
type Sizes struct {
	FieldIDSize         int
	MethodIDSize        int
	ObjectIDSize        int
	ReferenceTypeIDSize int
	FrameIDSize         int
}

// Validate reports an error unless every width is one of {1, 2, 4, 8}.
func (s Sizes) Validate() error {
	for _, w := range []int{s.FieldIDSize, s.MethodIDSize, s.ObjectIDSize, s.ReferenceTypeIDSize, s.FrameIDSize} {
		if w != 1 && w != 2 && w != 4 && w != 8 {
			return fmt.Errorf("%w: %d", ErrIDSizesTruncated, w)
		}
	}
	return nil
}

func decodeSizes(buf []byte) (Sizes, error) {
	r := newReader(buf)
	fieldID, err := r.i32()
	if err != nil {
		return Sizes{}, err
	}
	methodID, err := r.i32()
	if err != nil {
		return Sizes{}, err
	}
	objectID, err := r.i32()
	if err != nil {
		return Sizes{}, err
	}
	refTypeID, err := r.i32()
	if err != nil {
		return Sizes{}, err
	}
	frameID, err := r.i32()
	if err != nil {
		return Sizes{}, err
	}

	sizes := Sizes{
		FieldIDSize:         int(fieldID),
		MethodIDSize:        int(methodID),
		ObjectIDSize:        int(objectID),
		ReferenceTypeIDSize: int(refTypeID),
		FrameIDSize:         int(frameID),
	}
	if err := sizes.Validate(); err != nil {
		return Sizes{}, err
	}
	return sizes, nil
}

// VersionReply is the body of a VirtualMachine.Version reply.
type VersionReply struct {
	Description string
	JDWPMajor   int32
	JDWPMinor   int32
	VMVersion   string
	VMName      string
}

func decodeVersionReply(buf []byte) (VersionReply, error) {
	r := newReader(buf)
	desc, err := r.jdwpString()
	if err != nil {
		return VersionReply{}, err
	}
	major, err := r.i32()
	if err != nil {
		return VersionReply{}, err
	}
	minor, err := r.i32()
	if err != nil {
		return VersionReply{}, err
	}
	vmVersion, err := r.jdwpString()
	if err != nil {
		return VersionReply{}, err
	}
	vmName, err := r.jdwpString()
	if err != nil {
		return VersionReply{}, err
	}
	return VersionReply{Description: desc, JDWPMajor: major, JDWPMinor: minor, VMVersion: vmVersion, VMName: vmName}, nil
}

// AllClassesReplyClass is one entry of a VirtualMachine.AllClasses reply.
type AllClassesReplyClass struct {
	RefTypeTag TypeTag
	TypeID     uint64
	Signature  string
	Status     ClassStatus
}

// AllClassesReply is the body of a VirtualMachine.AllClasses reply.
type AllClassesReply struct {
	Classes []AllClassesReplyClass
}

func decodeAllClassesReply(buf []byte, sizes Sizes) (AllClassesReply, error) {
	r := newReader(buf)
	count, err := r.i32()
	if err != nil {
		return AllClassesReply{}, err
	}
	if count < 0 {
		count = 0
	}

	classes := make([]AllClassesReplyClass, 0, count)
	for i := int32(0); i < count; i++ {
		tagRaw, err := r.u8()
		if err != nil {
			return AllClassesReply{}, fmt.Errorf("class %d: %w", i, err)
		}
		typeID, err := r.idSize(sizes.ReferenceTypeIDSize)
		if err != nil {
			return AllClassesReply{}, fmt.Errorf("class %d: %w", i, err)
		}
		signature, err := r.jdwpString()
		if err != nil {
			return AllClassesReply{}, fmt.Errorf("class %d: %w", i, err)
		}
		statusRaw, err := r.i32()
		if err != nil {
			return AllClassesReply{}, fmt.Errorf("class %d: %w", i, err)
		}

		classes = append(classes, AllClassesReplyClass{
			RefTypeTag: TypeTag(tagRaw),
			TypeID:     typeID,
			Signature:  signature,
			Status:     ClassStatus(statusRaw),
		})
	}

	return AllClassesReply{Classes: classes}, nil
}
