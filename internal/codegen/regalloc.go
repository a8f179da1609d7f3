package codegen

import "github.com/pkg/errors"

// calleeSavedPool is the AArch64 callee-saved GPR range the register
// manager allocates from under the platform calling convention
// (spec §4.8). X28 is kept out of the pool as the global-vector base
// register and X29/X30 are the frame pointer and link register, so the
// allocatable range is X19..X27.
var calleeSavedPool = []int{19, 20, 21, 22, 23, 24, 25, 26, 27}

// RegisterManager owns the callee-saved GPR pool for one function:
// which registers are free, which variable each holds, each
// variable's stack home, and an LRU order for spill selection.
type RegisterManager struct {
	free  []int // available register numbers, least-recently-considered first
	varOf map[int]string
	regOf map[string]int
	slot  map[string]int64
	dirty map[int]bool
	lru   []int // least-recently-used first

	stream *Stream
}

func NewRegisterManager(s *Stream) *RegisterManager {
	rm := &RegisterManager{
		varOf:  map[int]string{},
		regOf:  map[string]int{},
		slot:   map[string]int64{},
		dirty:  map[int]bool{},
		stream: s,
	}
	rm.free = append(rm.free, calleeSavedPool...)
	return rm
}

func (rm *RegisterManager) touch(reg int) {
	for i, r := range rm.lru {
		if r == reg {
			rm.lru = append(rm.lru[:i], rm.lru[i+1:]...)
			break
		}
	}
	rm.lru = append(rm.lru, reg)
}

func (rm *RegisterManager) untrack(reg int) {
	for i, r := range rm.lru {
		if r == reg {
			rm.lru = append(rm.lru[:i], rm.lru[i+1:]...)
			break
		}
	}
}

// AssignParameter records that var is already resident in reg (an
// incoming argument register) without marking it dirty.
func (rm *RegisterManager) AssignParameter(v string, reg int, stackOffset int64) {
	rm.varOf[reg] = v
	rm.regOf[v] = reg
	rm.slot[v] = stackOffset
	rm.free = removeInt(rm.free, reg)
	rm.touch(reg)
}

// Acquire returns a register holding v, loading it from its stack home
// if it is not already resident.
func (rm *RegisterManager) Acquire(v string, stackOffset int64) (int, error) {
	if reg, ok := rm.regOf[v]; ok {
		rm.touch(reg)
		return reg, nil
	}
	reg, err := rm.bind(v, stackOffset)
	if err != nil {
		return 0, err
	}
	rm.stream.LDR(reg, 29, stackOffset)
	return reg, nil
}

// AcquireForInit is Acquire without the load-from-home: the caller is
// about to produce v's value into the returned register.
func (rm *RegisterManager) AcquireForInit(v string, stackOffset int64) (int, error) {
	return rm.bind(v, stackOffset)
}

func (rm *RegisterManager) bind(v string, stackOffset int64) (int, error) {
	rm.slot[v] = stackOffset
	if len(rm.free) > 0 {
		reg := rm.free[0]
		rm.free = rm.free[1:]
		rm.varOf[reg] = v
		rm.regOf[v] = reg
		rm.touch(reg)
		return reg, nil
	}
	return rm.spillOne(v)
}

// spillOne implements the spill discipline of spec §4.8: prefer a
// clean LRU register; otherwise spill the LRU register to its stack
// home and rebind it to v.
func (rm *RegisterManager) spillOne(v string) (int, error) {
	if len(rm.lru) == 0 {
		return 0, errors.New("register manager: no registers to spill")
	}
	victim := -1
	for _, reg := range rm.lru {
		if !rm.dirty[reg] {
			victim = reg
			break
		}
	}
	if victim == -1 {
		victim = rm.lru[0]
	}
	if rm.dirty[victim] {
		victimVar := rm.varOf[victim]
		rm.stream.STR(victim, 29, rm.slot[victimVar])
		delete(rm.regOf, victimVar)
		rm.dirty[victim] = false
	} else {
		delete(rm.regOf, rm.varOf[victim])
	}
	rm.untrack(victim)
	rm.varOf[victim] = v
	rm.regOf[v] = victim
	rm.touch(victim)
	return victim, nil
}

// Release returns reg to the free pool, spilling it first if dirty.
func (rm *RegisterManager) Release(v string) {
	reg, ok := rm.regOf[v]
	if !ok {
		return
	}
	if rm.dirty[reg] {
		rm.stream.STR(reg, 29, rm.slot[v])
		rm.dirty[reg] = false
	}
	rm.releaseReg(reg, v)
}

// ReleaseWithoutSpill returns v's register to the pool unconditionally,
// discarding any pending write-back.
func (rm *RegisterManager) ReleaseWithoutSpill(v string) {
	reg, ok := rm.regOf[v]
	if !ok {
		return
	}
	rm.dirty[reg] = false
	rm.releaseReg(reg, v)
}

func (rm *RegisterManager) releaseReg(reg int, v string) {
	delete(rm.varOf, reg)
	delete(rm.regOf, v)
	rm.untrack(reg)
	rm.free = append(rm.free, reg)
}

// Remove drops all bookkeeping for v without touching its register's
// free/used state (used when a variable goes out of scope but another
// reference to its register is retained elsewhere, e.g. a rename).
func (rm *RegisterManager) Remove(v string) {
	if reg, ok := rm.regOf[v]; ok {
		delete(rm.varOf, reg)
	}
	delete(rm.regOf, v)
	delete(rm.slot, v)
}

// MarkDirty flags v's register as holding a value that must be
// written back to its stack home before reuse or function exit.
func (rm *RegisterManager) MarkDirty(v string) {
	if reg, ok := rm.regOf[v]; ok {
		rm.dirty[reg] = true
	}
}

// SpillAllDirty writes back every dirty register, in a deterministic
// register-number order so generated code is stable across runs.
func (rm *RegisterManager) SpillAllDirty() {
	regs := make([]int, 0, len(rm.dirty))
	for reg, d := range rm.dirty {
		if d {
			regs = append(regs, reg)
		}
	}
	sortInts(regs)
	for _, reg := range regs {
		v := rm.varOf[reg]
		rm.stream.STR(reg, 29, rm.slot[v])
		rm.dirty[reg] = false
	}
}

// RegOf reports the register currently bound to v, if any.
func (rm *RegisterManager) RegOf(v string) (int, bool) {
	reg, ok := rm.regOf[v]
	return reg, ok
}

// SlotOf reports v's stack-frame offset from FP.
func (rm *RegisterManager) SlotOf(v string) (int64, bool) {
	off, ok := rm.slot[v]
	return off, ok
}

func removeInt(xs []int, v int) []int {
	for i, x := range xs {
		if x == v {
			return append(xs[:i], xs[i+1:]...)
		}
	}
	return xs
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
