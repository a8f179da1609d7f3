package codegen

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/albanread/RevivalBCPL-sub000/internal/codegen/arm64"
)

// BranchKind distinguishes which bit field a pending branch
// instruction's displacement must be patched into (spec §4.10).
type BranchKind int

const (
	BranchNone BranchKind = iota
	BranchUnconditional
	BranchLink
	BranchCond
	BranchCBZ
	BranchCBNZ
	BranchADR
)

// Instr is one emitted 32-bit word plus the bookkeeping needed for the
// two post-processing passes: address assignment and branch
// resolution.
type Instr struct {
	Mnemonic string
	Word     uint32
	Address  int

	Label string // non-empty if a label was minted at this instruction

	BranchKind BranchKind
	BranchTo   string // label this instruction targets, if BranchKind != BranchNone
	Cond       arm64.Cond
	BranchReg  int // operand register for CBZ/CBNZ

	ExternalSymbol string // non-empty for a BL that must be patched by the runtime linker
}

// ExternalCall records a BL whose target isn't a label in this stream
// but a runtime symbol (spec §4.13) resolved once the runtime has
// mapped its function-pointer thunks into executable memory.
type ExternalCall struct {
	InstrIndex int
	Symbol     string
}

// Stream is the append-only instruction vector of spec §4.10.
type Stream struct {
	Instrs        []*Instr
	ExternalCalls []ExternalCall
	pendingLabel  string
	aliases       map[string]string // label tagged while another was pending -> that pending label
}

func NewStream() *Stream { return &Stream{} }

// TagNextLabel arranges for the next appended instruction to carry
// label without inserting a zero-width node (spec §4.10 "pending
// label mechanism"). If a label is already pending, label becomes an
// alias of it, so both resolve to the same next instruction.
func (s *Stream) TagNextLabel(label string) {
	if s.pendingLabel != "" {
		if s.aliases == nil {
			s.aliases = map[string]string{}
		}
		s.aliases[label] = s.pendingLabel
		return
	}
	s.pendingLabel = label
}

func (s *Stream) append(instr *Instr) int {
	if s.pendingLabel != "" {
		instr.Label = s.pendingLabel
		s.pendingLabel = ""
	}
	s.Instrs = append(s.Instrs, instr)
	return len(s.Instrs) - 1
}

// ---- arithmetic / logical / move mnemonics ----

func (s *Stream) MOV(rd, rn int) int {
	return s.append(&Instr{Mnemonic: "MOV", Word: arm64.MovReg(rd, rn)})
}

func (s *Stream) MOVZ(rd int, imm16 uint16, shift uint32) int {
	return s.append(&Instr{Mnemonic: "MOVZ", Word: arm64.MovzImm(rd, imm16, shift)})
}

func (s *Stream) MOVK(rd int, imm16 uint16, shift uint32) int {
	return s.append(&Instr{Mnemonic: "MOVK", Word: arm64.MovkImm(rd, imm16, shift)})
}

// LoadImmediate emits MOVZ plus up to three MOVK for the 16-bit lanes
// of a 64-bit value (spec §4.10 "Multi-instruction loadImmediate").
func (s *Stream) LoadImmediate(rd int, value int64) {
	u := uint64(value)
	lanes := [4]uint16{
		uint16(u), uint16(u >> 16), uint16(u >> 32), uint16(u >> 48),
	}
	s.MOVZ(rd, lanes[0], 0)
	for shift := 1; shift < 4; shift++ {
		if lanes[shift] != 0 {
			s.MOVK(rd, lanes[shift], uint32(shift))
		}
	}
}

func (s *Stream) ADDImm(rd, rn int, imm12 uint32) int {
	return s.append(&Instr{Mnemonic: "ADD", Word: arm64.AddSubImm(false, rd, rn, imm12)})
}

func (s *Stream) ADDReg(rd, rn, rm int) int {
	return s.append(&Instr{Mnemonic: "ADD", Word: arm64.AddSubShiftedReg(false, rd, rn, rm, 0)})
}

func (s *Stream) SUBImm(rd, rn int, imm12 uint32) int {
	return s.append(&Instr{Mnemonic: "SUB", Word: arm64.AddSubImm(true, rd, rn, imm12)})
}

func (s *Stream) SUBReg(rd, rn, rm int) int {
	return s.append(&Instr{Mnemonic: "SUB", Word: arm64.AddSubShiftedReg(true, rd, rn, rm, 0)})
}

func (s *Stream) MUL(rd, rn, rm int) int {
	return s.append(&Instr{Mnemonic: "MUL", Word: arm64.MulReg(rd, rn, rm)})
}

func (s *Stream) SDIV(rd, rn, rm int) int {
	return s.append(&Instr{Mnemonic: "SDIV", Word: arm64.SDivReg(rd, rn, rm)})
}

func (s *Stream) MSUB(rd, rn, rm, ra int) int {
	return s.append(&Instr{Mnemonic: "MSUB", Word: arm64.MsubReg(rd, rn, rm, ra)})
}

func (s *Stream) LSL(rd, rn int, shift uint32) int {
	return s.append(&Instr{Mnemonic: "LSL", Word: arm64.LslImm(rd, rn, shift)})
}

func (s *Stream) LSR(rd, rn int, shift uint32) int {
	return s.append(&Instr{Mnemonic: "LSR", Word: arm64.LsrImm(rd, rn, shift)})
}

func (s *Stream) NEG(rd, rm int) int {
	return s.append(&Instr{Mnemonic: "NEG", Word: arm64.NegReg(rd, rm)})
}

func (s *Stream) EOR(rd, rn, rm int) int {
	return s.append(&Instr{Mnemonic: "EOR", Word: arm64.EorReg(rd, rn, rm)})
}

func (s *Stream) AND(rd, rn, rm int) int {
	return s.append(&Instr{Mnemonic: "AND", Word: arm64.AndReg(rd, rn, rm)})
}

func (s *Stream) ORR(rd, rn, rm int) int {
	return s.append(&Instr{Mnemonic: "ORR", Word: arm64.OrrReg(rd, rn, rm)})
}

func (s *Stream) CMP(rn, rm int) int {
	return s.append(&Instr{Mnemonic: "CMP", Word: arm64.CmpReg(rn, rm)})
}

func (s *Stream) CSET(rd int, cond arm64.Cond) int {
	return s.append(&Instr{Mnemonic: "CSET", Word: arm64.CsetInstr(rd, cond)})
}

// ---- memory mnemonics (byteOffset must be a multiple of 8) ----

func (s *Stream) STP(rt1, rt2, rn int, byteOffset int64) int {
	return s.append(&Instr{Mnemonic: "STP", Word: arm64.StpPair(rt1, rt2, rn, int32(byteOffset/8))})
}

func (s *Stream) LDP(rt1, rt2, rn int, byteOffset int64) int {
	return s.append(&Instr{Mnemonic: "LDP", Word: arm64.LdpPair(rt1, rt2, rn, int32(byteOffset/8))})
}

func (s *Stream) STR(rt, rn int, byteOffset int64) int {
	return s.append(&Instr{Mnemonic: "STR", Word: arm64.StrImm(rt, rn, uint32(byteOffset/8))})
}

func (s *Stream) LDR(rt, rn int, byteOffset int64) int {
	return s.append(&Instr{Mnemonic: "LDR", Word: arm64.LdrImm(rt, rn, uint32(byteOffset/8))})
}

// ---- control flow (targets resolved in a later pass) ----

func (s *Stream) B(label string) int {
	return s.append(&Instr{Mnemonic: "B", BranchKind: BranchUnconditional, BranchTo: label})
}

func (s *Stream) BL(label string) int {
	return s.append(&Instr{Mnemonic: "BL", BranchKind: BranchLink, BranchTo: label})
}

// BLExternal emits a call to a runtime symbol (spec §4.13). Its word is
// left zero and the call is recorded in ExternalCalls, since the target
// lives outside this stream; neither this package nor internal/runtime
// patches the word.
func (s *Stream) BLExternal(symbol string) int {
	idx := s.append(&Instr{Mnemonic: "BL", ExternalSymbol: symbol})
	s.ExternalCalls = append(s.ExternalCalls, ExternalCall{InstrIndex: idx, Symbol: symbol})
	return idx
}

func (s *Stream) BCond(cond arm64.Cond, label string) int {
	return s.append(&Instr{Mnemonic: "B." + cond.String(), BranchKind: BranchCond, Cond: cond, BranchTo: label})
}

func (s *Stream) CBZ(rt int, label string) int {
	return s.append(&Instr{Mnemonic: "CBZ", BranchKind: BranchCBZ, BranchReg: rt, BranchTo: label})
}

func (s *Stream) CBNZ(rt int, label string) int {
	return s.append(&Instr{Mnemonic: "CBNZ", BranchKind: BranchCBNZ, BranchReg: rt, BranchTo: label})
}

func (s *Stream) RET() int {
	return s.append(&Instr{Mnemonic: "RET", Word: arm64.RetInstr(arm64.LR)})
}

func (s *Stream) BR(rn int) int {
	return s.append(&Instr{Mnemonic: "BR", Word: arm64.BrInstr(rn)})
}

func (s *Stream) ADR(rd int, label string) int {
	return s.append(&Instr{Mnemonic: "ADR", BranchKind: BranchADR, BranchReg: rd, BranchTo: label})
}

// ---- post-processing ----

// AssignAddresses walks the vector from base, setting each
// instruction's address 4 bytes apart (spec §4.10 property #7:
// address[i+1] = address[i] + 4).
func (s *Stream) AssignAddresses(base int) {
	for i, instr := range s.Instrs {
		instr.Address = base + 4*i
	}
}

// ResolveBranches patches every pending branch's displacement into its
// instruction word, failing if a label is unresolved or a
// displacement overflows its field (spec §4.10).
func (s *Stream) ResolveBranches() error {
	labelAddr := map[string]int{}
	for _, instr := range s.Instrs {
		if instr.Label != "" {
			labelAddr[instr.Label] = instr.Address
		}
	}
	for alias, primary := range s.aliases {
		if addr, ok := labelAddr[primary]; ok {
			labelAddr[alias] = addr
		}
	}
	for _, instr := range s.Instrs {
		if instr.BranchKind == BranchNone {
			continue
		}
		target, ok := labelAddr[instr.BranchTo]
		if !ok {
			return errors.Errorf("unresolved label %q", instr.BranchTo)
		}
		delta := target - instr.Address
		if instr.BranchKind == BranchADR {
			if !fitsSigned(int64(delta), 21) {
				return errors.Errorf("ADR to %q overflows the 21-bit immediate", instr.BranchTo)
			}
			instr.Word = arm64.AdrInstr(instr.BranchReg, int32(delta))
			continue
		}
		if delta%4 != 0 {
			return errors.Errorf("branch displacement %d to %q is not word-aligned", delta, instr.BranchTo)
		}
		words := int32(delta / 4)
		switch instr.BranchKind {
		case BranchUnconditional:
			if !fitsSigned(int64(words), 26) {
				return errors.Errorf("branch to %q overflows the 26-bit immediate", instr.BranchTo)
			}
			instr.Word = arm64.B(words)
		case BranchLink:
			if !fitsSigned(int64(words), 26) {
				return errors.Errorf("call to %q overflows the 26-bit immediate", instr.BranchTo)
			}
			instr.Word = arm64.BL(words)
		case BranchCond:
			if !fitsSigned(int64(words), 19) {
				return errors.Errorf("conditional branch to %q overflows the 19-bit immediate", instr.BranchTo)
			}
			instr.Word = arm64.BCond(instr.Cond, words)
		case BranchCBZ:
			if !fitsSigned(int64(words), 19) {
				return errors.Errorf("CBZ to %q overflows the 19-bit immediate", instr.BranchTo)
			}
			instr.Word = arm64.CbzInstr(instr.BranchReg, words)
		case BranchCBNZ:
			if !fitsSigned(int64(words), 19) {
				return errors.Errorf("CBNZ to %q overflows the 19-bit immediate", instr.BranchTo)
			}
			instr.Word = arm64.CbnzInstr(instr.BranchReg, words)
		}
	}
	return nil
}

func fitsSigned(v int64, bits uint) bool {
	limit := int64(1) << (bits - 1)
	return v >= -limit && v < limit
}

// EmitBytes writes every instruction's 32-bit word into buf in
// little-endian order (spec §4.10 "Byte emission").
func (s *Stream) EmitBytes(buf []byte) error {
	if len(buf) < len(s.Instrs)*4 {
		return errors.New("instruction stream: destination buffer too small")
	}
	for i, instr := range s.Instrs {
		binary.LittleEndian.PutUint32(buf[i*4:], instr.Word)
	}
	return nil
}

func (s *Stream) Bytes() ([]byte, error) {
	buf := make([]byte, len(s.Instrs)*4)
	if err := s.EmitBytes(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
