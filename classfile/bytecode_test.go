package classfile

import (
	"testing"

	"github.com/dpago/jvmdbg/internal/binprim"
)

func TestDecodeInstructionsCanonicalizesIndexedForms(t *testing.T) {
	code := []byte{0x1A, 0x2B, 0x06} // iload_0, aload_1, iconst_3
	instrs := DecodeInstructions(code)
	if len(instrs) != 3 {
		t.Fatalf("got %d instructions, want 3", len(instrs))
	}
	if instrs[0].Op != OpIload || instrs[0].Index != 0 {
		t.Fatalf("instr0 = %+v", instrs[0])
	}
	if instrs[1].Op != OpAload || instrs[1].Index != 1 {
		t.Fatalf("instr1 = %+v", instrs[1])
	}
	if instrs[2].Op != OpIconst || instrs[2].IntValue != 3 {
		t.Fatalf("instr2 = %+v", instrs[2])
	}
}

func TestDecodeInstructionsWide(t *testing.T) {
	code := []byte{0xC4, 0x15, 0x01, 0x00} // wide iload #256
	instrs := DecodeInstructions(code)
	if len(instrs) != 1 {
		t.Fatalf("got %d instructions, want 1", len(instrs))
	}
	if instrs[0].Op != OpIload || instrs[0].Index != 0x0100 {
		t.Fatalf("got %+v", instrs[0])
	}
}

func TestDecodeInstructionsWideIinc(t *testing.T) {
	code := []byte{0xC4, 0x84, 0x00, 0x02, 0xFF, 0xFF} // wide iinc #2, -1
	instrs := DecodeInstructions(code)
	if len(instrs) != 1 {
		t.Fatalf("got %d instructions, want 1", len(instrs))
	}
	if instrs[0].Op != OpIinc || instrs[0].Index != 2 || instrs[0].IntValue != -1 {
		t.Fatalf("got %+v", instrs[0])
	}
}

// An unrecognized opcode becomes typed Unknown data, and decoding resumes
// at the very next byte.
func TestDecodeInstructionsUnknownOpcode(t *testing.T) {
	code := []byte{0xCA, 0x00} // 0xCA is unassigned, followed by nop
	instrs := DecodeInstructions(code)
	if len(instrs) != 2 {
		t.Fatalf("got %d instructions, want 2", len(instrs))
	}
	if instrs[0].Op != OpUnknown || instrs[0].Unknown == nil || instrs[0].Unknown.Opcode != 0xCA {
		t.Fatalf("instr0 = %+v", instrs[0])
	}
	if instrs[1].Op != OpNop {
		t.Fatalf("instr1 = %+v, want nop", instrs[1])
	}
}

// tableswitch/lookupswitch pad to the next 4-byte boundary measured from
// the start of the code array.
func TestDecodeInstructionsTableswitchAlignment(t *testing.T) {
	// tableswitch at code offset 1, preceded by one nop.
	buf := []byte{0x00, 0xAA}
	pad := switchPadding(1)
	for i := 0; i < pad; i++ {
		buf = append(buf, 0)
	}
	buf = binprim.WriteU32(buf, 99)        // default
	buf = binprim.WriteU32(buf, 0)         // low
	buf = binprim.WriteU32(buf, 1)         // high
	buf = binprim.WriteU32(buf, 1000)      // offsets[0]
	buf = binprim.WriteU32(buf, 1001)      // offsets[1]

	instrs := DecodeInstructions(buf)
	if len(instrs) != 2 {
		t.Fatalf("got %d instructions, want 2", len(instrs))
	}
	sw := instrs[1]
	if sw.Op != OpTableswitch {
		t.Fatalf("got %+v, want tableswitch", sw)
	}
	if sw.TableDefault != 99 || sw.TableLow != 0 || sw.TableHigh != 1 {
		t.Fatalf("got %+v", sw)
	}
	if len(sw.TableOffsets) != 2 || sw.TableOffsets[0] != 1000 || sw.TableOffsets[1] != 1001 {
		t.Fatalf("offsets = %v", sw.TableOffsets)
	}
}

func TestDecodeInstructionsLookupswitchNegativeRange(t *testing.T) {
	buf := []byte{0xAB}
	pad := switchPadding(0)
	for i := 0; i < pad; i++ {
		buf = append(buf, 0)
	}
	buf = binprim.WriteU32(buf, 0xFFFFFFFF) // default = -1
	buf = binprim.WriteU32(buf, 0xFFFFFFFF) // npairs = -1

	instrs := DecodeInstructions(buf)
	if len(instrs) != 1 || instrs[0].Op != OpLookupswitch {
		t.Fatalf("got %+v", instrs)
	}
	if len(instrs[0].LookupMatches) != 0 {
		t.Fatalf("expected no matches, got %v", instrs[0].LookupMatches)
	}
}

func TestDecodeInstructionsInvokeinterface(t *testing.T) {
	code := []byte{0xB9, 0x00, 0x05, 0x02, 0x00} // invokeinterface #5, count=2, reserved 0
	instrs := DecodeInstructions(code)
	if len(instrs) != 1 {
		t.Fatalf("got %d instructions, want 1", len(instrs))
	}
	if instrs[0].Op != OpInvokeinterface || instrs[0].Index != 5 || instrs[0].Count != 2 {
		t.Fatalf("got %+v", instrs[0])
	}
}
