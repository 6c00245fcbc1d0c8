// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import (
	"fmt"

	"github.com/dpago/jvmdbg/internal/binprim"
)

// AttributeType identifies which attribute_info variant a RawAttribute
// resolved to.
type AttributeType int

// Recognized attribute kinds. AttrError covers both unrecognized attribute
// names and attributes whose body failed to parse in a context where the
// name otherwise matched a known kind.
const (
	AttrConstantValue AttributeType = iota
	AttrDeprecated
	AttrSourceFile
	AttrCode
	AttrError
)

func (t AttributeType) String() string {
	switch t {
	case AttrConstantValue:
		return "ConstantValue"
	case AttrDeprecated:
		return "Deprecated"
	case AttrSourceFile:
		return "SourceFile"
	case AttrCode:
		return "Code"
	case AttrError:
		return "Error"
	default:
		return fmt.Sprintf("AttributeType(%d)", int(t))
	}
}

// AttributeScope says where a RawAttribute was found, since the same
// attribute name can be legal in one scope and meaningless in another (the
// class-file format never says this explicitly; it is enforced by
// convention between javac and the JVM).
type AttributeScope int

// Attribute scopes.
const (
	ScopeClass AttributeScope = iota
	ScopeField
	ScopeMethod
)

// ErrorAttribute carries an attribute that could not be interpreted: an
// unrecognized name, a name used in the wrong scope, or a body that failed
// to parse. Decoding never stops here; the raw bytes are preserved.
type ErrorAttribute struct {
	Name    string
	Message string
	Raw     []byte
}

// ExceptionTableEntry is one row of a Code attribute's exception table.
// CatchType == 0 means catch-all (finally blocks compile to this).
type ExceptionTableEntry struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// CodeAttribute is a resolved Code attribute: the method body.
//
// Instructions is left nil by decodeCodeAttribute: the bytecode itself is
// disassembled lazily, by a caller that wants it (see linkMethod and
// Options.Fast), not as a side effect of resolving the attribute.
type CodeAttribute struct {
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	Instructions   []Instruction
	ExceptionTable []ExceptionTableEntry
	Attributes     []RawAttribute
}

// ResolvedAttribute is a RawAttribute interpreted by name. Only the field
// matching Type is populated.
type ResolvedAttribute struct {
	Type AttributeType

	ConstantValueIndex uint16
	SourceFile         string
	Code               *CodeAttribute
	Error              *ErrorAttribute
}

// ResolveAttribute interprets raw by looking up its name in cp and
// dispatching on it. It never returns an error: anything it cannot make
// sense of becomes an AttrError-typed ResolvedAttribute carrying the raw
// bytes, so that a caller can always render or skip an attribute it does
// not care about.
func ResolveAttribute(cp *ConstantPool, raw RawAttribute, scope AttributeScope) ResolvedAttribute {
	name, ok := cp.UTF8(raw.NameIndex)
	if !ok {
		return errorAttribute("", "attribute name_index does not resolve to a Utf8 entry", raw.Data)
	}

	switch name {
	case "ConstantValue":
		if scope != ScopeField {
			return errorAttribute(name, "ConstantValue outside field scope", raw.Data)
		}
		idx, err := binprim.ReadU16(raw.Data, 0)
		if err != nil {
			return errorAttribute(name, err.Error(), raw.Data)
		}
		return ResolvedAttribute{Type: AttrConstantValue, ConstantValueIndex: idx}

	case "Deprecated":
		if len(raw.Data) != 0 {
			return errorAttribute(name, "Deprecated attribute has nonzero length", raw.Data)
		}
		return ResolvedAttribute{Type: AttrDeprecated}

	case "SourceFile":
		// Open question, resolved: SourceFile is only meaningful at class
		// scope. A SourceFile attribute attached to a field or method is
		// not something javac emits; treat it as an error rather than
		// silently accepting it.
		if scope != ScopeClass {
			return errorAttribute(name, "SourceFile outside class scope", raw.Data)
		}
		idx, err := binprim.ReadU16(raw.Data, 0)
		if err != nil {
			return errorAttribute(name, err.Error(), raw.Data)
		}
		sourceFile, ok := cp.UTF8(idx)
		if !ok {
			return errorAttribute(name, "SourceFile index does not resolve to a Utf8 entry", raw.Data)
		}
		return ResolvedAttribute{Type: AttrSourceFile, SourceFile: sourceFile}

	case "Code":
		if scope != ScopeMethod {
			return errorAttribute(name, "Code outside method scope", raw.Data)
		}
		code, err := decodeCodeAttribute(raw.Data)
		if err != nil {
			return errorAttribute(name, err.Error(), raw.Data)
		}
		return ResolvedAttribute{Type: AttrCode, Code: code}

	default:
		return errorAttribute(name, "unrecognized attribute name", raw.Data)
	}
}

func errorAttribute(name, message string, raw []byte) ResolvedAttribute {
	return ResolvedAttribute{
		Type:  AttrError,
		Error: &ErrorAttribute{Name: name, Message: message, Raw: raw},
	}
}

// ConstantValueFor narrows the constant pool entry at index according to
// the owning field's descriptor, matching the JVM's B/S/C/I/Z/F/J/D/String
// ConstantValue narrowing rules. It reports false if index does not
// resolve to an entry of the kind the descriptor needs, or the descriptor
// is not a valid ConstantValue type (e.g. an array or arbitrary class
// type); the value is then nil or the zero value of the narrowed type.
func (cp *ConstantPool) ConstantValueFor(desc FieldDescriptor, index uint16) (any, bool) {
	if desc.IsArray() || desc.Element.IsObject() {
		if desc.Element.ClassName == "java/lang/String" && !desc.IsArray() {
			return cp.StringValue(index)
		}
		return nil, false
	}

	switch desc.Element.Base {
	case TypeByte:
		return cp.Uint8(index)
	case TypeShort:
		return cp.Int16(index)
	case TypeChar:
		return cp.Char(index)
	case TypeBoolean:
		return cp.Bool(index)
	case TypeInt:
		return cp.Int(index)
	case TypeFloat:
		return cp.Float32Value(index)
	case TypeLong:
		return cp.Int64Value(index)
	case TypeDouble:
		return cp.Float64Value(index)
	default:
		return nil, false
	}
}

func decodeCodeAttribute(data []byte) (*CodeAttribute, error) {
	maxStack, err := binprim.ReadU16(data, 0)
	if err != nil {
		return nil, fmt.Errorf("max_stack: %w", err)
	}
	maxLocals, err := binprim.ReadU16(data, 2)
	if err != nil {
		return nil, fmt.Errorf("max_locals: %w", err)
	}
	codeLength, err := binprim.ReadU32(data, 4)
	if err != nil {
		return nil, fmt.Errorf("code_length: %w", err)
	}

	off := 8
	if off+int(codeLength) > len(data) {
		return nil, fmt.Errorf("code: %w", binprim.ErrShortBuffer)
	}
	code := make([]byte, codeLength)
	copy(code, data[off:off+int(codeLength)])
	off += int(codeLength)

	excCount, err := binprim.ReadU16(data, off)
	if err != nil {
		return nil, fmt.Errorf("exception_table_length: %w", err)
	}
	off += 2

	excTable := make([]ExceptionTableEntry, excCount)
	for i := range excTable {
		startPC, err := binprim.ReadU16(data, off)
		if err != nil {
			return nil, fmt.Errorf("exception_table[%d]: %w", i, err)
		}
		endPC, err := binprim.ReadU16(data, off+2)
		if err != nil {
			return nil, fmt.Errorf("exception_table[%d]: %w", i, err)
		}
		handlerPC, err := binprim.ReadU16(data, off+4)
		if err != nil {
			return nil, fmt.Errorf("exception_table[%d]: %w", i, err)
		}
		catchType, err := binprim.ReadU16(data, off+6)
		if err != nil {
			return nil, fmt.Errorf("exception_table[%d]: %w", i, err)
		}
		excTable[i] = ExceptionTableEntry{StartPC: startPC, EndPC: endPC, HandlerPC: handlerPC, CatchType: catchType}
		off += 8
	}

	attrs, _, err := decodeRawAttributes(data, off)
	if err != nil {
		return nil, fmt.Errorf("code attributes: %w", err)
	}

	return &CodeAttribute{
		MaxStack:       maxStack,
		MaxLocals:      maxLocals,
		Code:           code,
		ExceptionTable: excTable,
		Attributes:     attrs,
	}, nil
}
