package codegen

import "github.com/pkg/errors"

// scratchPool is the caller-saved temporary range x9..x15 (spec §4.9).
var scratchPool = []int{9, 10, 11, 12, 13, 14, 15}

// ScratchAllocator is a LIFO pool of caller-saved temporaries used for
// short-lived values within a single expression's evaluation.
type ScratchAllocator struct {
	available []int // top of stack is the end of the slice
	inUse     map[int]bool
}

func NewScratchAllocator() *ScratchAllocator {
	return &ScratchAllocator{
		available: append([]int(nil), scratchPool...),
		inUse:     map[int]bool{},
	}
}

// Acquire pops the top of the pool. Acquiring beyond the pool is a
// fatal compile error (spec §4.9).
func (s *ScratchAllocator) Acquire() (int, error) {
	if len(s.available) == 0 {
		return 0, errors.New("scratch allocator exhausted: no caller-saved temporaries remain")
	}
	reg := s.available[len(s.available)-1]
	s.available = s.available[:len(s.available)-1]
	s.inUse[reg] = true
	return reg, nil
}

// Release pushes reg back onto the pool.
func (s *ScratchAllocator) Release(reg int) {
	if !s.inUse[reg] {
		return
	}
	delete(s.inUse, reg)
	s.available = append(s.available, reg)
}

// Balanced reports whether every acquired register has been released;
// the code generator checks this after lowering every function and
// fails that function if it is not (spec §4.9 "destructor-time check").
func (s *ScratchAllocator) Balanced() bool {
	return len(s.inUse) == 0
}
