package classfile

import (
	"testing"

	"github.com/dpago/jvmdbg/internal/binprim"
)

func poolWithUTF8Entries(strs ...string) *ConstantPool {
	var b []byte
	b = binprim.WriteU16(b, uint16(len(strs)+1))
	for _, s := range strs {
		b = append(b, byte(CPUtf8))
		b = binprim.WriteU16(b, uint16(len(s)))
		b = append(b, s...)
	}
	cp, _, err := decodeConstantPool(b, 0)
	if err != nil {
		panic(err)
	}
	return cp
}

func TestResolveAttributeUnknownName(t *testing.T) {
	cp := poolWithUTF8Entries("NotARealAttribute")
	raw := RawAttribute{NameIndex: 1, Data: []byte{1, 2, 3}}
	resolved := ResolveAttribute(cp, raw, ScopeMethod)
	if resolved.Type != AttrError {
		t.Fatalf("got %v, want AttrError", resolved.Type)
	}
	if resolved.Error.Name != "NotARealAttribute" {
		t.Fatalf("got %+v", resolved.Error)
	}
}

func TestResolveAttributeDeprecated(t *testing.T) {
	cp := poolWithUTF8Entries("Deprecated")
	raw := RawAttribute{NameIndex: 1}
	resolved := ResolveAttribute(cp, raw, ScopeMethod)
	if resolved.Type != AttrDeprecated {
		t.Fatalf("got %v, want AttrDeprecated", resolved.Type)
	}
}

func TestResolveAttributeSourceFileWrongScope(t *testing.T) {
	cp := poolWithUTF8Entries("SourceFile", "Test.java")
	raw := RawAttribute{NameIndex: 1, Data: binprim.WriteU16(nil, 2)}

	// Open question, resolved: SourceFile at member scope is an error.
	resolved := ResolveAttribute(cp, raw, ScopeMethod)
	if resolved.Type != AttrError {
		t.Fatalf("got %v, want AttrError for member-scope SourceFile", resolved.Type)
	}

	resolved = ResolveAttribute(cp, raw, ScopeClass)
	if resolved.Type != AttrSourceFile || resolved.SourceFile != "Test.java" {
		t.Fatalf("got %+v", resolved)
	}
}

func TestResolveAttributeConstantValue(t *testing.T) {
	var pool []byte
	pool = binprim.WriteU16(pool, 2)
	pool = append(pool, byte(CPUtf8))
	pool = binprim.WriteU16(pool, uint16(len("ConstantValue")))
	pool = append(pool, "ConstantValue"...)
	cp, _, err := decodeConstantPool(pool, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw := RawAttribute{NameIndex: 1, Data: binprim.WriteU16(nil, 5)}
	resolved := ResolveAttribute(cp, raw, ScopeField)
	if resolved.Type != AttrConstantValue || resolved.ConstantValueIndex != 5 {
		t.Fatalf("got %+v", resolved)
	}
}

func TestConstantValueForNarrowing(t *testing.T) {
	cp := buildPool(func() []byte {
		var b []byte
		b = append(b, byte(CPInteger))
		b = binprim.WriteU32(b, 0xFFFFFFFF)
		return b
	}, 1)

	v, ok := cp.ConstantValueFor(BaseFieldDescriptor(TypeByte), 1)
	if !ok || v.(uint8) != 0xFF {
		t.Fatalf("got %v, %v", v, ok)
	}

	v, ok = cp.ConstantValueFor(BaseFieldDescriptor(TypeBoolean), 1)
	if !ok || v.(bool) != true {
		t.Fatalf("got %v, %v", v, ok)
	}
}

func TestConstantValueForArrayRejected(t *testing.T) {
	cp := &ConstantPool{}
	if _, ok := cp.ConstantValueFor(ArrayFieldDescriptor(ComponentType{Base: TypeInt}, 1), 1); ok {
		t.Fatalf("expected array descriptor to be rejected")
	}
}

func TestDecodeCodeAttribute(t *testing.T) {
	var data []byte
	data = binprim.WriteU16(data, 2) // max_stack
	data = binprim.WriteU16(data, 1) // max_locals
	code := []byte{0x2A, 0xB1}       // aload_0, return
	data = binprim.WriteU32(data, uint32(len(code)))
	data = append(data, code...)
	data = binprim.WriteU16(data, 0) // exception_table_length
	data = binprim.WriteU16(data, 0) // attributes_count

	codeAttr, err := decodeCodeAttribute(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if codeAttr.MaxStack != 2 || codeAttr.MaxLocals != 1 {
		t.Fatalf("got %+v", codeAttr)
	}
	if codeAttr.Instructions != nil {
		t.Fatalf("got %+v, want Instructions left nil until a caller disassembles it", codeAttr.Instructions)
	}
	if instrs := DecodeInstructions(codeAttr.Code); len(instrs) != 2 {
		t.Fatalf("got %d instructions, want 2", len(instrs))
	}
}
