// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import (
	"fmt"

	"github.com/dpago/jvmdbg/internal/binprim"
)

// Op is the canonical instruction kind. Opcode variants that differ only in
// how an operand is encoded - the four indexed local-variable forms
// (iload_0..iload_3), the short-form constant pushes (iconst_m1..iconst_5),
// and every wide-prefixed form - collapse into the same Op with the operand
// normalized to its widest representation. Ldc/LdcW/Ldc2W stay distinct:
// they differ in which kind of constant-pool entry they may address, not
// merely in encoding width.
type Op int

// Canonical opcodes, named after the JVM mnemonic they represent.
const (
	OpAaload Op = iota
	OpAastore
	OpAconstNull
	OpAload
	OpAnewarray
	OpAreturn
	OpArraylength
	OpAstore
	OpAthrow
	OpBaload
	OpBastore
	OpBipush
	OpCaload
	OpCastore
	OpCheckcast
	OpD2f
	OpD2i
	OpD2l
	OpDadd
	OpDaload
	OpDastore
	OpDcmpg
	OpDcmpl
	OpDconst0
	OpDconst1
	OpDdiv
	OpDload
	OpDmul
	OpDneg
	OpDrem
	OpDreturn
	OpDstore
	OpDsub
	OpDup
	OpDupX1
	OpDupX2
	OpDup2
	OpDup2X1
	OpDup2X2
	OpF2d
	OpF2i
	OpF2l
	OpFadd
	OpFaload
	OpFastore
	OpFcmpg
	OpFcmpl
	OpFconst0
	OpFconst1
	OpFconst2
	OpFdiv
	OpFload
	OpFmul
	OpFneg
	OpFrem
	OpFreturn
	OpFstore
	OpFsub
	OpGetfield
	OpGetstatic
	OpGoto
	OpGotoW
	OpI2b
	OpI2c
	OpI2d
	OpI2f
	OpI2l
	OpI2s
	OpIadd
	OpIaload
	OpIand
	OpIastore
	OpIconst
	OpIdiv
	OpIfAcmpeq
	OpIfAcmpne
	OpIfIcmpeq
	OpIfIcmpne
	OpIfIcmplt
	OpIfIcmpge
	OpIfIcmpgt
	OpIfIcmple
	OpIfeq
	OpIfne
	OpIflt
	OpIfge
	OpIfgt
	OpIfle
	OpIfnonnull
	OpIfnull
	OpIinc
	OpIload
	OpImul
	OpIneg
	OpInstanceof
	OpInvokedynamic
	OpInvokeinterface
	OpInvokespecial
	OpInvokestatic
	OpInvokevirtual
	OpIor
	OpIrem
	OpIreturn
	OpIshl
	OpIshr
	OpIstore
	OpIsub
	OpIushr
	OpIxor
	OpJsr
	OpJsrW
	OpL2d
	OpL2f
	OpL2i
	OpLadd
	OpLaload
	OpLand
	OpLastore
	OpLcmp
	OpLconst0
	OpLconst1
	OpLdc
	OpLdcW
	OpLdc2W
	OpLdiv
	OpLload
	OpLmul
	OpLneg
	OpLookupswitch
	OpLor
	OpLrem
	OpLreturn
	OpLshl
	OpLshr
	OpLstore
	OpLsub
	OpLushr
	OpLxor
	OpMonitorenter
	OpMonitorexit
	OpMultianewarray
	OpNew
	OpNewarray
	OpNop
	OpPop
	OpPop2
	OpPutfield
	OpPutstatic
	OpRet
	OpReturn
	OpSaload
	OpSastore
	OpSipush
	OpSwap
	OpTableswitch
	OpUnknown
)

// Instruction is one decoded bytecode instruction. Pos is the byte offset
// within the owning Code attribute's code array where it begins; branch
// instructions' Offset fields are relative to this same origin. Only the
// fields relevant to Op are meaningful; the rest carry their zero value.
type Instruction struct {
	Pos int
	Op  Op

	Index      uint16 // local variable slot, or constant-pool index
	Count      uint8  // invokeinterface argument count
	IntValue   int32  // iconst/bipush/sipush/iinc constant
	Offset     int32  // branch target, relative to Pos
	Dimensions uint8  // multianewarray
	ArrayType  uint8  // newarray

	TableDefault int32
	TableLow     int32
	TableHigh    int32
	TableOffsets []int32

	LookupDefault int32
	LookupMatches map[int32]int32

	Unknown *UnknownInstruction
}

// UnknownInstruction carries an opcode that DecodeInstructions could not
// interpret: either the byte is not a recognized opcode, or an operand ran
// past the end of the code array. Err describes which.
type UnknownInstruction struct {
	Opcode byte
	Err    error
}

const opWide = 0xC4

// DecodeInstructions decodes a method's raw code array into a linear
// instruction stream. It never returns an error: an opcode it cannot
// interpret becomes an Instruction with Op == OpUnknown, and decoding
// resumes at the next byte. An instruction whose fixed operands run past
// the end of code also becomes OpUnknown. A tableswitch or lookupswitch
// whose jump table runs past the end keeps its Op and carries only the
// entries read before the end.
func DecodeInstructions(code []byte) []Instruction {
	var out []Instruction
	pos := 0
	for pos < len(code) {
		instr, next := decodeOneInstruction(code, pos)
		out = append(out, instr)
		if next <= pos {
			next = pos + 1
		}
		pos = next
	}
	return out
}

func decodeOneInstruction(code []byte, pos int) (Instruction, int) {
	opcode := code[pos]
	off := pos + 1

	switch opcode {
	case opWide:
		return decodeWide(code, pos)

	case 0xAA:
		return decodeTableswitch(code, pos)
	case 0xAB:
		return decodeLookupswitch(code, pos)
	}

	def, ok := opcodeTable[opcode]
	if !ok {
		return Instruction{Pos: pos, Op: OpUnknown, Unknown: &UnknownInstruction{
			Opcode: opcode,
			Err:    fmt.Errorf("classfile: unrecognized opcode %#02x", opcode),
		}}, off
	}

	instr := Instruction{Pos: pos, Op: def.op, IntValue: def.immediate, Index: def.index}

	for _, operand := range def.operands {
		switch operand {
		case operandU8Index:
			v, err := binprim.ReadU8(code, off)
			if err != nil {
				return unknownAt(pos, opcode, err), off
			}
			instr.Index = uint16(v)
			off++
		case operandU16Index:
			v, err := binprim.ReadU16(code, off)
			if err != nil {
				return unknownAt(pos, opcode, err), off
			}
			instr.Index = v
			off += 2
		case operandI8Const:
			v, err := binprim.ReadI8(code, off)
			if err != nil {
				return unknownAt(pos, opcode, err), off
			}
			instr.IntValue = int32(v)
			off++
		case operandI16Const:
			v, err := binprim.ReadI16(code, off)
			if err != nil {
				return unknownAt(pos, opcode, err), off
			}
			instr.IntValue = int32(v)
			off += 2
		case operandI16Offset:
			v, err := binprim.ReadI16(code, off)
			if err != nil {
				return unknownAt(pos, opcode, err), off
			}
			instr.Offset = int32(v)
			off += 2
		case operandI32Offset:
			v, err := binprim.ReadI32(code, off)
			if err != nil {
				return unknownAt(pos, opcode, err), off
			}
			instr.Offset = v
			off += 4
		case operandU8Count:
			v, err := binprim.ReadU8(code, off)
			if err != nil {
				return unknownAt(pos, opcode, err), off
			}
			instr.Count = v
			off++
			// invokeinterface carries a reserved zero byte after count.
			off++
		case operandU8Dims:
			v, err := binprim.ReadU8(code, off)
			if err != nil {
				return unknownAt(pos, opcode, err), off
			}
			instr.Dimensions = v
			off++
		case operandU8Atype:
			v, err := binprim.ReadU8(code, off)
			if err != nil {
				return unknownAt(pos, opcode, err), off
			}
			instr.ArrayType = v
			off++
		}
	}

	return instr, off
}

func unknownAt(pos int, opcode byte, err error) Instruction {
	return Instruction{Pos: pos, Op: OpUnknown, Unknown: &UnknownInstruction{Opcode: opcode, Err: err}}
}

func decodeWide(code []byte, pos int) (Instruction, int) {
	off := pos + 1
	if off >= len(code) {
		return unknownAt(pos, opWide, binprim.ErrShortBuffer), off
	}
	widenedOpcode := code[off]
	off++

	op, ok := wideOpcodeTable[widenedOpcode]
	if !ok {
		return unknownAt(pos, widenedOpcode, fmt.Errorf("classfile: invalid wide opcode %#02x", widenedOpcode)), off
	}

	index, err := binprim.ReadU16(code, off)
	if err != nil {
		return unknownAt(pos, widenedOpcode, err), off
	}
	off += 2

	instr := Instruction{Pos: pos, Op: op, Index: index}

	if op == OpIinc {
		c, err := binprim.ReadI16(code, off)
		if err != nil {
			return unknownAt(pos, widenedOpcode, err), off
		}
		instr.IntValue = int32(c)
		off += 2
	}

	return instr, off
}

// decodeTableswitch and decodeLookupswitch pad to a 4-byte boundary
// measured from the start of the code array: the opcode occupies one byte
// at pos, so padding = (4 - ((pos+1) % 4)) % 4 bytes are skipped before the
// first operand word.
func switchPadding(pos int) int {
	return (4 - ((pos + 1) % 4)) % 4
}

func decodeTableswitch(code []byte, pos int) (Instruction, int) {
	off := pos + 1 + switchPadding(pos)

	def, err := binprim.ReadI32(code, off)
	if err != nil {
		return unknownAt(pos, 0xAA, err), off
	}
	low, err := binprim.ReadI32(code, off+4)
	if err != nil {
		return unknownAt(pos, 0xAA, err), off
	}
	high, err := binprim.ReadI32(code, off+8)
	if err != nil {
		return unknownAt(pos, 0xAA, err), off
	}
	off += 12

	count := int64(high) - int64(low) + 1
	if count < 0 {
		count = 0
	}

	offsets := make([]int32, 0, count)
	for i := int64(0); i < count; i++ {
		v, err := binprim.ReadI32(code, off)
		if err != nil {
			return Instruction{
				Pos: pos, Op: OpTableswitch,
				TableDefault: def, TableLow: low, TableHigh: high, TableOffsets: offsets,
			}, off
		}
		offsets = append(offsets, v)
		off += 4
	}

	return Instruction{
		Pos: pos, Op: OpTableswitch,
		TableDefault: def, TableLow: low, TableHigh: high, TableOffsets: offsets,
	}, off
}

func decodeLookupswitch(code []byte, pos int) (Instruction, int) {
	off := pos + 1 + switchPadding(pos)

	def, err := binprim.ReadI32(code, off)
	if err != nil {
		return unknownAt(pos, 0xAB, err), off
	}
	npairs, err := binprim.ReadI32(code, off+4)
	if err != nil {
		return unknownAt(pos, 0xAB, err), off
	}
	off += 8

	if npairs < 0 {
		npairs = 0
	}
	matches := make(map[int32]int32, npairs)
	for i := int32(0); i < npairs; i++ {
		key, err := binprim.ReadI32(code, off)
		if err != nil {
			return Instruction{Pos: pos, Op: OpLookupswitch, LookupDefault: def, LookupMatches: matches}, off
		}
		val, err := binprim.ReadI32(code, off+4)
		if err != nil {
			return Instruction{Pos: pos, Op: OpLookupswitch, LookupDefault: def, LookupMatches: matches}, off
		}
		matches[key] = val
		off += 8
	}

	return Instruction{Pos: pos, Op: OpLookupswitch, LookupDefault: def, LookupMatches: matches}, off
}

type operandKind int

const (
	operandU8Index operandKind = iota
	operandU16Index
	operandI8Const
	operandI16Const
	operandI16Offset
	operandI32Offset
	operandU8Count
	operandU8Dims
	operandU8Atype
)

type opcodeDef struct {
	op        Op
	immediate int32
	index     uint16
	operands  []operandKind
}

var opcodeTable = buildOpcodeTable()

var wideOpcodeTable = map[byte]Op{
	0x15: OpIload, 0x17: OpFload, 0x19: OpAload, 0x16: OpLload, 0x18: OpDload,
	0x36: OpIstore, 0x38: OpFstore, 0x3A: OpAstore, 0x37: OpLstore, 0x39: OpDstore,
	0xA9: OpRet, 0x84: OpIinc,
}

func buildOpcodeTable() map[byte]opcodeDef {
	t := map[byte]opcodeDef{
		0x32: {op: OpAaload}, 0x53: {op: OpAastore}, 0x01: {op: OpAconstNull},
		0x19: {op: OpAload, operands: []operandKind{operandU8Index}},
		0x2A: {op: OpAload, index: 0}, 0x2B: {op: OpAload, index: 1}, 0x2C: {op: OpAload, index: 2}, 0x2D: {op: OpAload, index: 3},
		0xBD: {op: OpAnewarray, operands: []operandKind{operandU16Index}},
		0xB0: {op: OpAreturn}, 0xBE: {op: OpArraylength},
		0x3A: {op: OpAstore, operands: []operandKind{operandU8Index}},
		0x4B: {op: OpAstore, index: 0}, 0x4C: {op: OpAstore, index: 1}, 0x4D: {op: OpAstore, index: 2}, 0x4E: {op: OpAstore, index: 3},
		0xBF: {op: OpAthrow},
		0x33: {op: OpBaload}, 0x54: {op: OpBastore},
		0x10: {op: OpBipush, operands: []operandKind{operandI8Const}},
		0x34: {op: OpCaload}, 0x55: {op: OpCastore},
		0xC0: {op: OpCheckcast, operands: []operandKind{operandU16Index}},
		0x90: {op: OpD2f}, 0x8E: {op: OpD2i}, 0x8F: {op: OpD2l},
		0x63: {op: OpDadd}, 0x31: {op: OpDaload}, 0x52: {op: OpDastore},
		0x98: {op: OpDcmpg}, 0x97: {op: OpDcmpl}, 0x0E: {op: OpDconst0}, 0x0F: {op: OpDconst1}, 0x6F: {op: OpDdiv},
		0x18: {op: OpDload, operands: []operandKind{operandU8Index}},
		0x26: {op: OpDload, index: 0}, 0x27: {op: OpDload, index: 1}, 0x28: {op: OpDload, index: 2}, 0x29: {op: OpDload, index: 3},
		0x6B: {op: OpDmul}, 0x77: {op: OpDneg}, 0x73: {op: OpDrem}, 0xAF: {op: OpDreturn},
		0x39: {op: OpDstore, operands: []operandKind{operandU8Index}},
		0x47: {op: OpDstore, index: 0}, 0x48: {op: OpDstore, index: 1}, 0x49: {op: OpDstore, index: 2}, 0x4A: {op: OpDstore, index: 3},
		0x67: {op: OpDsub}, 0x59: {op: OpDup}, 0x5A: {op: OpDupX1}, 0x5B: {op: OpDupX2},
		0x5C: {op: OpDup2}, 0x5D: {op: OpDup2X1}, 0x5E: {op: OpDup2X2},
		0x8D: {op: OpF2d}, 0x8B: {op: OpF2i}, 0x8C: {op: OpF2l},
		0x62: {op: OpFadd}, 0x30: {op: OpFaload}, 0x51: {op: OpFastore},
		0x96: {op: OpFcmpg}, 0x95: {op: OpFcmpl}, 0x0B: {op: OpFconst0}, 0x0C: {op: OpFconst1}, 0x0D: {op: OpFconst2}, 0x6E: {op: OpFdiv},
		0x17: {op: OpFload, operands: []operandKind{operandU8Index}},
		0x22: {op: OpFload, index: 0}, 0x23: {op: OpFload, index: 1}, 0x24: {op: OpFload, index: 2}, 0x25: {op: OpFload, index: 3},
		0x6A: {op: OpFmul}, 0x76: {op: OpFneg}, 0x72: {op: OpFrem}, 0xAE: {op: OpFreturn},
		0x38: {op: OpFstore, operands: []operandKind{operandU8Index}},
		0x43: {op: OpFstore, index: 0}, 0x44: {op: OpFstore, index: 1}, 0x45: {op: OpFstore, index: 2}, 0x46: {op: OpFstore, index: 3},
		0x66: {op: OpFsub},
		0xB4: {op: OpGetfield, operands: []operandKind{operandU16Index}},
		0xB2: {op: OpGetstatic, operands: []operandKind{operandU16Index}},
		0xA7: {op: OpGoto, operands: []operandKind{operandI16Offset}},
		0xC8: {op: OpGotoW, operands: []operandKind{operandI32Offset}},
		0x91: {op: OpI2b}, 0x92: {op: OpI2c}, 0x87: {op: OpI2d}, 0x86: {op: OpI2f}, 0x85: {op: OpI2l}, 0x93: {op: OpI2s},
		0x60: {op: OpIadd}, 0x2E: {op: OpIaload}, 0x7E: {op: OpIand}, 0x4F: {op: OpIastore},
		0x02: {op: OpIconst, immediate: -1}, 0x03: {op: OpIconst, immediate: 0}, 0x04: {op: OpIconst, immediate: 1},
		0x05: {op: OpIconst, immediate: 2}, 0x06: {op: OpIconst, immediate: 3}, 0x07: {op: OpIconst, immediate: 4}, 0x08: {op: OpIconst, immediate: 5},
		0x6C: {op: OpIdiv},
		0xA5: {op: OpIfAcmpeq, operands: []operandKind{operandI16Offset}}, 0xA6: {op: OpIfAcmpne, operands: []operandKind{operandI16Offset}},
		0x9F: {op: OpIfIcmpeq, operands: []operandKind{operandI16Offset}}, 0xA0: {op: OpIfIcmpne, operands: []operandKind{operandI16Offset}},
		0xA1: {op: OpIfIcmplt, operands: []operandKind{operandI16Offset}}, 0xA2: {op: OpIfIcmpge, operands: []operandKind{operandI16Offset}},
		0xA3: {op: OpIfIcmpgt, operands: []operandKind{operandI16Offset}}, 0xA4: {op: OpIfIcmple, operands: []operandKind{operandI16Offset}},
		0x99: {op: OpIfeq, operands: []operandKind{operandI16Offset}}, 0x9A: {op: OpIfne, operands: []operandKind{operandI16Offset}},
		0x9B: {op: OpIflt, operands: []operandKind{operandI16Offset}}, 0x9C: {op: OpIfge, operands: []operandKind{operandI16Offset}},
		0x9D: {op: OpIfgt, operands: []operandKind{operandI16Offset}}, 0x9E: {op: OpIfle, operands: []operandKind{operandI16Offset}},
		0xC7: {op: OpIfnonnull, operands: []operandKind{operandI16Offset}}, 0xC6: {op: OpIfnull, operands: []operandKind{operandI16Offset}},
		0x84: {op: OpIinc, operands: []operandKind{operandU8Index, operandI8Const}},
		0x15: {op: OpIload, operands: []operandKind{operandU8Index}},
		0x1A: {op: OpIload, index: 0}, 0x1B: {op: OpIload, index: 1}, 0x1C: {op: OpIload, index: 2}, 0x1D: {op: OpIload, index: 3},
		0x68: {op: OpImul}, 0x74: {op: OpIneg},
		0xC1: {op: OpInstanceof, operands: []operandKind{operandU16Index}},
		0xBA: {op: OpInvokedynamic, operands: []operandKind{operandU16Index}},
		0xB9: {op: OpInvokeinterface, operands: []operandKind{operandU16Index, operandU8Count}},
		0xB7: {op: OpInvokespecial, operands: []operandKind{operandU16Index}},
		0xB8: {op: OpInvokestatic, operands: []operandKind{operandU16Index}},
		0xB6: {op: OpInvokevirtual, operands: []operandKind{operandU16Index}},
		0x80: {op: OpIor}, 0x70: {op: OpIrem}, 0xAC: {op: OpIreturn}, 0x78: {op: OpIshl}, 0x7A: {op: OpIshr},
		0x36: {op: OpIstore, operands: []operandKind{operandU8Index}},
		0x3B: {op: OpIstore, index: 0}, 0x3C: {op: OpIstore, index: 1}, 0x3D: {op: OpIstore, index: 2}, 0x3E: {op: OpIstore, index: 3},
		0x64: {op: OpIsub}, 0x7C: {op: OpIushr}, 0x82: {op: OpIxor},
		0xA8: {op: OpJsr, operands: []operandKind{operandI16Offset}},
		0xC9: {op: OpJsrW, operands: []operandKind{operandI32Offset}},
		0x8A: {op: OpL2d}, 0x89: {op: OpL2f}, 0x88: {op: OpL2i},
		0x61: {op: OpLadd}, 0x2F: {op: OpLaload}, 0x7F: {op: OpLand}, 0x50: {op: OpLastore}, 0x94: {op: OpLcmp},
		0x09: {op: OpLconst0}, 0x0A: {op: OpLconst1},
		0x12: {op: OpLdc, operands: []operandKind{operandU8Index}},
		0x13: {op: OpLdcW, operands: []operandKind{operandU16Index}},
		0x14: {op: OpLdc2W, operands: []operandKind{operandU16Index}},
		0x6D: {op: OpLdiv},
		0x16: {op: OpLload, operands: []operandKind{operandU8Index}},
		0x1E: {op: OpLload, index: 0}, 0x1F: {op: OpLload, index: 1}, 0x20: {op: OpLload, index: 2}, 0x21: {op: OpLload, index: 3},
		0x69: {op: OpLmul}, 0x75: {op: OpLneg},
		0x81: {op: OpLor}, 0x71: {op: OpLrem}, 0xAD: {op: OpLreturn}, 0x79: {op: OpLshl}, 0x7B: {op: OpLshr},
		0x37: {op: OpLstore, operands: []operandKind{operandU8Index}},
		0x3F: {op: OpLstore, index: 0}, 0x40: {op: OpLstore, index: 1}, 0x41: {op: OpLstore, index: 2}, 0x42: {op: OpLstore, index: 3},
		0x65: {op: OpLsub}, 0x7D: {op: OpLushr}, 0x83: {op: OpLxor},
		0xC2: {op: OpMonitorenter}, 0xC3: {op: OpMonitorexit},
		0xC5: {op: OpMultianewarray, operands: []operandKind{operandU16Index, operandU8Dims}},
		0xBB: {op: OpNew, operands: []operandKind{operandU16Index}},
		0xBC: {op: OpNewarray, operands: []operandKind{operandU8Atype}},
		0x00: {op: OpNop}, 0x57: {op: OpPop}, 0x58: {op: OpPop2},
		0xB5: {op: OpPutfield, operands: []operandKind{operandU16Index}},
		0xB3: {op: OpPutstatic, operands: []operandKind{operandU16Index}},
		0xA9: {op: OpRet, operands: []operandKind{operandU8Index}},
		0xB1: {op: OpReturn},
		0x35: {op: OpSaload}, 0x56: {op: OpSastore},
		0x11: {op: OpSipush, operands: []operandKind{operandI16Const}},
		0x5F: {op: OpSwap},
	}
	return t
}
