package classfile

import (
	"testing"

	"github.com/dpago/jvmdbg/internal/binprim"
)

func buildPool(entries func() []byte, maxIndex int) *ConstantPool {
	var b []byte
	b = binprim.WriteU16(b, uint16(maxIndex+1))
	b = append(b, entries()...)
	cp, _, err := decodeConstantPool(b, 0)
	if err != nil {
		panic(err)
	}
	return cp
}

func TestConstantPoolUTF8AndClass(t *testing.T) {
	cp := buildPool(func() []byte {
		var b []byte
		b = append(b, byte(CPUtf8))
		b = binprim.WriteU16(b, 5)
		b = append(b, "hello"...)
		b = append(b, byte(CPClass))
		b = binprim.WriteU16(b, 1)
		return b
	}, 2)

	s, ok := cp.UTF8(1)
	if !ok || s != "hello" {
		t.Fatalf("UTF8(1) = %q, %v", s, ok)
	}
	name, ok := cp.Class(2)
	if !ok || name != "hello" {
		t.Fatalf("Class(2) = %q, %v", name, ok)
	}
	if _, ok := cp.UTF8(99); ok {
		t.Fatalf("expected UTF8(99) to fail")
	}
}

// The two-slot Long/Double rule: entry N+1 after a Long or Double is
// unusable, and the entry after that resumes normal numbering.
func TestConstantPoolLongTwoSlotRule(t *testing.T) {
	cp := buildPool(func() []byte {
		var b []byte
		b = append(b, byte(CPLong))
		b = binprim.WriteU64(b, 0x0102030405060708)
		// slot 2 is reserved (skipped)
		b = append(b, byte(CPInteger))
		b = binprim.WriteU32(b, 42) // this is logical index 3
		return b
	}, 3)

	v, ok := cp.Int64Value(1)
	if !ok || v != 0x0102030405060708 {
		t.Fatalf("Int64Value(1) = %v, %v", v, ok)
	}
	if _, ok := cp.Int64Value(2); ok {
		t.Fatalf("expected the reserved slot 2 to be unusable")
	}
	iv, ok := cp.Int(3)
	if !ok || iv != 42 {
		t.Fatalf("Int(3) = %v, %v, want 42, true", iv, ok)
	}
}

func TestConstantPoolNarrowing(t *testing.T) {
	cp := buildPool(func() []byte {
		var b []byte
		b = append(b, byte(CPInteger))
		b = binprim.WriteU32(b, 0xFFFFFFFF) // -1 as int32, 0xFF as byte, true as bool
		return b
	}, 1)

	if b, ok := cp.Uint8(1); !ok || b != 0xFF {
		t.Fatalf("Uint8(1) = %v, %v", b, ok)
	}
	if b, ok := cp.Bool(1); !ok || !b {
		t.Fatalf("Bool(1) = %v, %v, want true", b, ok)
	}
	if s, ok := cp.Int16(1); !ok || s != -1 {
		t.Fatalf("Int16(1) = %v, %v, want -1", s, ok)
	}
}

func TestConstantPoolRefAndNameAndType(t *testing.T) {
	cp := buildPool(func() []byte {
		var b []byte
		b = append(b, byte(CPMethodref))
		b = binprim.WriteU16(b, 10)
		b = binprim.WriteU16(b, 11)
		b = append(b, byte(CPNameAndType))
		b = binprim.WriteU16(b, 20)
		b = binprim.WriteU16(b, 21)
		return b
	}, 2)

	classIdx, natIdx, ok := cp.Ref(1)
	if !ok || classIdx != 10 || natIdx != 11 {
		t.Fatalf("Ref(1) = %d, %d, %v", classIdx, natIdx, ok)
	}
	nameIdx, descIdx, ok := cp.NameAndType(2)
	if !ok || nameIdx != 20 || descIdx != 21 {
		t.Fatalf("NameAndType(2) = %d, %d, %v", nameIdx, descIdx, ok)
	}
}

func TestConstantPoolStringValue(t *testing.T) {
	cp := buildPool(func() []byte {
		var b []byte
		b = append(b, byte(CPUtf8))
		b = binprim.WriteU16(b, 3)
		b = append(b, "abc"...)
		b = append(b, byte(CPString))
		b = binprim.WriteU16(b, 1)
		return b
	}, 2)

	s, ok := cp.StringValue(2)
	if !ok || s != "abc" {
		t.Fatalf("StringValue(2) = %q, %v", s, ok)
	}
}

func TestConstantPoolInvalidTag(t *testing.T) {
	var b []byte
	b = binprim.WriteU16(b, 2)
	b = append(b, 0x63) // not a valid tag
	if _, _, err := decodeConstantPool(b, 0); err == nil {
		t.Fatalf("expected error for invalid tag")
	}
}
