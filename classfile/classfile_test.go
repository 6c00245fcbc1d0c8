package classfile

import (
	"errors"
	"testing"

	"github.com/dpago/jvmdbg/internal/binprim"
)

// buildMinimalClass assembles a .class file for
//
//	class Test extends Object {}
//
// byte-for-byte, so decode tests don't depend on a real javac output being
// checked into the repository.
func buildMinimalClass() []byte {
	var b []byte
	b = binprim.WriteU32(b, ClassFileMagic)
	b = binprim.WriteU16(b, 0)  // minor
	b = binprim.WriteU16(b, 52) // major (Java 8)

	// Constant pool: count = 5 (1..4 used).
	b = binprim.WriteU16(b, 5)
	b = append(b, byte(CPClass))
	b = binprim.WriteU16(b, 2) // #1 Class -> name #2
	b = append(b, byte(CPUtf8))
	utf8 := "Test"
	b = binprim.WriteU16(b, uint16(len(utf8)))
	b = append(b, utf8...) // #2 Utf8 "Test"
	b = append(b, byte(CPClass))
	b = binprim.WriteU16(b, 4) // #3 Class -> name #4
	b = append(b, byte(CPUtf8))
	super := "java/lang/Object"
	b = binprim.WriteU16(b, uint16(len(super)))
	b = append(b, super...) // #4 Utf8 "java/lang/Object"

	b = binprim.WriteU16(b, uint16(AccSuper|AccPublic)) // access_flags
	b = binprim.WriteU16(b, 1)                          // this_class
	b = binprim.WriteU16(b, 3)                           // super_class
	b = binprim.WriteU16(b, 0)                           // interfaces_count
	b = binprim.WriteU16(b, 0)                           // fields_count
	b = binprim.WriteU16(b, 0)                           // methods_count
	b = binprim.WriteU16(b, 0)                           // attributes_count

	return b
}

func TestDecodeMinimalClass(t *testing.T) {
	cf, err := Decode(buildMinimalClass())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	name, ok := cf.Name()
	if !ok || name != "Test" {
		t.Fatalf("Name() = %q, %v, want %q, true", name, ok, "Test")
	}
	superName, ok := cf.SuperName()
	if !ok || superName != "java/lang/Object" {
		t.Fatalf("SuperName() = %q, %v, want %q, true", superName, ok, "java/lang/Object")
	}
	if cf.Version.Major != 52 {
		t.Fatalf("Version.Major = %d, want 52", cf.Version.Major)
	}
	if !cf.AccessFlags.Is(AccPublic) {
		t.Fatalf("expected AccPublic set")
	}
}

// A bad magic number is a fatal, not soft, failure.
func TestDecodeBadMagic(t *testing.T) {
	data := buildMinimalClass()
	data[0] = 0x00
	_, err := Decode(data)
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("got %v, want ErrBadMagic", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	data := buildMinimalClass()
	_, err := Decode(data[:6])
	if err == nil {
		t.Fatalf("expected error decoding truncated buffer")
	}
}

func TestObjectHasNoSuperName(t *testing.T) {
	cf := &ClassFile{ConstantPool: &ConstantPool{}, SuperClass: 0}
	if _, ok := cf.SuperName(); ok {
		t.Fatalf("expected (\"\", false) for super_class == 0")
	}
}
