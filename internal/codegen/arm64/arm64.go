// Package arm64 provides the AArch64 instruction bit layouts the code
// generator needs (spec §4.10): register naming, the condition enum,
// and word-encoders for each supported mnemonic. No corpus example
// encodes AArch64 instructions at the bit level, so this package is
// hand-rolled directly from the architecture reference, in the
// register/condition idiom of wazero's backend/isa/arm64 package.
package arm64

// Cond is an AArch64 condition code (spec §4.10 "condition-carrying
// branches").
type Cond uint8

const (
	EQ Cond = iota
	NE
	HS
	LO
	MI
	PL
	VS
	VC
	HI
	LS
	GE
	LT
	GT
	LE
	AL
	NV
)

// Invert returns the logical negation of c.
func (c Cond) Invert() Cond {
	switch c {
	case EQ:
		return NE
	case NE:
		return EQ
	case HS:
		return LO
	case LO:
		return HS
	case MI:
		return PL
	case PL:
		return MI
	case VS:
		return VC
	case VC:
		return VS
	case HI:
		return LS
	case LS:
		return HI
	case GE:
		return LT
	case LT:
		return GE
	case GT:
		return LE
	case LE:
		return GT
	case AL:
		return NV
	case NV:
		return AL
	default:
		panic(c)
	}
}

func (c Cond) String() string {
	names := [...]string{"EQ", "NE", "HS", "LO", "MI", "PL", "VS", "VC", "HI", "LS", "GE", "LT", "GT", "LE", "AL", "NV"}
	return names[c]
}

// FP, LR, SP, ZR are the fixed architectural register numbers this
// compiler relies on: X29 (frame pointer), X30 (link register), the
// stack pointer pseudo-register, and the zero register.
const (
	FP = 29
	LR = 30
	SP = 31
	ZR = 31
)

// ShiftKind distinguishes a register operand's optional shift for ADD/SUB.
type ShiftKind uint8

const (
	ShiftNone ShiftKind = iota
	ShiftLSL
)

func regMask(r int) uint32 { return uint32(r) & 0x1f }

// AddSubImm encodes ADD/SUB (immediate), 64-bit, no shift.
//
//	sf 0 0 10001 shift(00) imm12 Rn Rd
func AddSubImm(sub bool, rd, rn int, imm12 uint32) uint32 {
	op := uint32(0)
	if sub {
		op = 1
	}
	return (1 << 31) | (op << 30) | (0b100010 << 23) | ((imm12 & 0xfff) << 10) | (regMask(rn) << 5) | regMask(rd)
}

// AddSubShiftedReg encodes ADD/SUB (shifted register), 64-bit.
//
//	sf op 0 01011 shift(2) 0 Rm imm6 Rn Rd
func AddSubShiftedReg(sub bool, rd, rn, rm int, shiftAmt uint32) uint32 {
	op := uint32(0)
	if sub {
		op = 1
	}
	return (1 << 31) | (op << 30) | (0b01011 << 24) | (regMask(rm) << 16) | ((shiftAmt & 0x3f) << 10) | (regMask(rn) << 5) | regMask(rd)
}

// MulReg encodes MADD Rd, Rn, Rm, XZR — used as plain MUL.
//
//	sf 0 0 11011 000 Rm 0 Ra(11111) Rn Rd
func MulReg(rd, rn, rm int) uint32 {
	return (1 << 31) | (0b0011011000 << 21) | (regMask(rm) << 16) | (ZR << 10) | (regMask(rn) << 5) | regMask(rd)
}

// MsubReg encodes MSUB Rd, Rn, Rm, Ra.
func MsubReg(rd, rn, rm, ra int) uint32 {
	return (1 << 31) | (0b0011011000 << 21) | (regMask(rm) << 16) | (1 << 15) | (regMask(ra) << 10) | (regMask(rn) << 5) | regMask(rd)
}

// SDivReg encodes SDIV Rd, Rn, Rm.
//
//	sf 0 0 11010110 Rm 00001 1 Rn Rd
func SDivReg(rd, rn, rm int) uint32 {
	return (1 << 31) | (0b0011010110 << 21) | (regMask(rm) << 16) | (0b000011 << 10) | (regMask(rn) << 5) | regMask(rd)
}

// logicalShiftedReg encodes the AND/ORR/EOR family (shifted register, no shift applied).
func logicalShiftedReg(opc uint32, rd, rn, rm int) uint32 {
	return (1 << 31) | (opc << 29) | (0b01010 << 24) | (regMask(rm) << 16) | (regMask(rn) << 5) | regMask(rd)
}

func AndReg(rd, rn, rm int) uint32 { return logicalShiftedReg(0b00, rd, rn, rm) }
func OrrReg(rd, rn, rm int) uint32 { return logicalShiftedReg(0b01, rd, rn, rm) }
func EorReg(rd, rn, rm int) uint32 { return logicalShiftedReg(0b10, rd, rn, rm) }

// LslImm/LsrImm encode LSL/LSR (immediate) via their canonical UBFM aliases.
func LslImm(rd, rn int, shift uint32) uint32 {
	immr := (64 - shift) & 63
	imms := 63 - shift
	return ubfm(rd, rn, immr, imms)
}

func LsrImm(rd, rn int, shift uint32) uint32 {
	return ubfm(rd, rn, shift, 63)
}

func ubfm(rd, rn int, immr, imms uint32) uint32 {
	return (1 << 31) | (1 << 30) | (0b100110 << 23) | (1 << 22) | ((immr & 0x3f) << 16) | ((imms & 0x3f) << 10) | (regMask(rn) << 5) | regMask(rd)
}

// NegReg encodes NEG Rd, Rm as SUB Rd, XZR, Rm.
func NegReg(rd, rm int) uint32 { return AddSubShiftedReg(true, rd, ZR, rm, 0) }

// MovReg encodes MOV Rd, Rn as ORR Rd, XZR, Rn.
func MovReg(rd, rn int) uint32 { return OrrReg(rd, ZR, rn) }

// MovzImm encodes MOVZ Rd, #imm16, LSL #(shift*16).
func MovzImm(rd int, imm16 uint16, shift uint32) uint32 {
	return (1 << 31) | (0b10 << 29) | (0b100101 << 23) | ((shift & 0x3) << 21) | (uint32(imm16) << 5) | regMask(rd)
}

// MovkImm encodes MOVK Rd, #imm16, LSL #(shift*16).
func MovkImm(rd int, imm16 uint16, shift uint32) uint32 {
	return (1 << 31) | (0b11 << 29) | (0b100101 << 23) | ((shift & 0x3) << 21) | (uint32(imm16) << 5) | regMask(rd)
}

// CmpReg encodes CMP Rn, Rm as SUBS XZR, Rn, Rm.
func CmpReg(rn, rm int) uint32 {
	return (1 << 31) | (1 << 30) | (1 << 29) | (0b01011 << 24) | (regMask(rm) << 16) | (regMask(rn) << 5) | regMask(ZR)
}

// StpPair/LdpPair encode STP/LDP Xt1, Xt2, [Xn, #imm7*8] (pre-index off).
//
//	opc(10) 1 01 0 010 1 imm7 Rt2 Rn Rt1
func StpPair(rt1, rt2, rn int, imm7 int32) uint32 {
	return (0b10 << 30) | (0b101001 << 24) | (0 << 22) | ((uint32(imm7) & 0x7f) << 15) | (regMask(rt2) << 10) | (regMask(rn) << 5) | regMask(rt1)
}

func LdpPair(rt1, rt2, rn int, imm7 int32) uint32 {
	return (0b10 << 30) | (0b101001 << 24) | (1 << 22) | ((uint32(imm7) & 0x7f) << 15) | (regMask(rt2) << 10) | (regMask(rn) << 5) | regMask(rt1)
}

// StrImm/LdrImm encode STR/LDR Xt, [Xn, #imm12*8] (unsigned offset).
func StrImm(rt, rn int, imm12 uint32) uint32 {
	return (0b11 << 30) | (0b11100100 << 22) | ((imm12 & 0xfff) << 10) | (regMask(rn) << 5) | regMask(rt)
}

func LdrImm(rt, rn int, imm12 uint32) uint32 {
	return (0b11 << 30) | (0b11100101 << 22) | ((imm12 & 0xfff) << 10) | (regMask(rn) << 5) | regMask(rt)
}

// B/BL encode unconditional branch / branch-with-link; imm26 is the
// word-scaled, sign-extended displacement to be patched in later
// (spec §4.10 "26-bit immediate at bits 0..25").
func B(imm26 int32) uint32  { return (0b000101 << 26) | (uint32(imm26) & 0x3ffffff) }
func BL(imm26 int32) uint32 { return (0b100101 << 26) | (uint32(imm26) & 0x3ffffff) }

// RetInstr/BrInstr encode RET/BR Rn (default Rn = LR for RET).
func RetInstr(rn int) uint32 { return (0b1101011001011111000000 << 10) | (regMask(rn) << 5) }
func BrInstr(rn int) uint32  { return (0b1101011000011111000000 << 10) | (regMask(rn) << 5) }

// AdrInstr encodes ADR Rd, #imm (PC-relative, to be patched).
func AdrInstr(rd int, imm21 int32) uint32 {
	u := uint32(imm21)
	immlo := u & 0x3
	immhi := (u >> 2) & 0x7ffff
	return (0 << 31) | (immlo << 29) | (0b10000 << 24) | (immhi << 5) | regMask(rd)
}

// CbzInstr/CbnzInstr encode CBZ/CBNZ Rt, #imm19 (word-scaled, bits 5..23).
func CbzInstr(rt int, imm19 int32) uint32 {
	return (0b1 << 31) | (0b011010 << 25) | ((uint32(imm19) & 0x7ffff) << 5) | regMask(rt)
}

func CbnzInstr(rt int, imm19 int32) uint32 {
	return (0b1 << 31) | (0b011010 << 25) | (1 << 24) | ((uint32(imm19) & 0x7ffff) << 5) | regMask(rt)
}

// BCond encodes B.cond #imm19 (bits 5..23).
func BCond(cond Cond, imm19 int32) uint32 {
	return (0b01010100 << 24) | ((uint32(imm19) & 0x7ffff) << 5) | uint32(cond)
}

// CsetInstr encodes CSET Rd, cond as CSINC Rd, XZR, XZR, invert(cond).
func CsetInstr(rd int, cond Cond) uint32 {
	inv := cond.Invert()
	return (1 << 31) | (0b0011010100 << 21) | (regMask(ZR) << 16) | (uint32(inv) << 12) | (1 << 10) | (regMask(ZR) << 5) | regMask(rd)
}
