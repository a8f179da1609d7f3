// Package codegen drives AArch64 instruction emission from the
// optimized AST (spec §4.7–§4.11): a label manager, a callee-saved
// register manager, a caller-saved scratch allocator, an append-only
// instruction stream, and the code generator that ties them together.
package codegen

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// ScopeKind tags a lexical scope so the label manager knows which
// control-flow labels it must mint on entry (spec §4.7).
type ScopeKind int

const (
	ScopeFunction ScopeKind = iota
	ScopeValof
	ScopeLoop
	ScopeSwitchon
	ScopeCompound
)

// scope holds the labels minted for one lexical nesting level plus its
// own local symbol table.
type scope struct {
	kind ScopeKind

	// ScopeFunction
	returnLabel string
	// ScopeValof
	resultisLabel string
	endLabel      string
	// ScopeLoop
	repeatLabel string
	exitLabel   string
	// ScopeSwitchon
	endcaseLabel string

	locals map[string]string
}

// Fixup records one as-yet-unresolved branch target (spec §4.7 "A
// fixup records {instruction-address, label-name}").
type Fixup struct {
	InstrIndex int
	Label      string
}

// LabelManager manages the scope stack, a monotonic label counter, a
// global symbol table for cross-function callable names, and the
// pending fixup list.
type LabelManager struct {
	mu      sync.Mutex
	counter int
	stack   []*scope
	global  map[string]string
	fixups  []Fixup
}

func NewLabelManager() *LabelManager {
	return &LabelManager{global: map[string]string{}}
}

func (lm *LabelManager) fresh(prefix string) string {
	lm.counter++
	return fmt.Sprintf("%s%d", prefix, lm.counter)
}

// EnterFunction pushes a function scope and mints its return label.
func (lm *LabelManager) EnterFunction(name string) (returnLabel string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	s := &scope{kind: ScopeFunction, returnLabel: lm.fresh("Lret_"), locals: map[string]string{}}
	lm.stack = append(lm.stack, s)
	return s.returnLabel
}

// EnterValof pushes a VALOF scope, minting its resultis target and end label.
func (lm *LabelManager) EnterValof() (resultisLabel, endLabel string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	s := &scope{kind: ScopeValof, resultisLabel: lm.fresh("Lresultis_"), endLabel: lm.fresh("Lvalend_"), locals: map[string]string{}}
	lm.stack = append(lm.stack, s)
	return s.resultisLabel, s.endLabel
}

// EnterLoop pushes a loop scope, minting its back-edge and exit labels.
func (lm *LabelManager) EnterLoop() (repeatLabel, exitLabel string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	s := &scope{kind: ScopeLoop, repeatLabel: lm.fresh("Lrepeat_"), exitLabel: lm.fresh("Lexit_"), locals: map[string]string{}}
	lm.stack = append(lm.stack, s)
	return s.repeatLabel, s.exitLabel
}

// EnterSwitchon pushes a SWITCHON scope, minting its endcase target and end label.
func (lm *LabelManager) EnterSwitchon() (endcaseLabel, endLabel string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	s := &scope{kind: ScopeSwitchon, endcaseLabel: lm.fresh("Lendcase_"), endLabel: lm.fresh("Lswend_"), locals: map[string]string{}}
	lm.stack = append(lm.stack, s)
	return s.endcaseLabel, s.endLabel
}

// EnterCompound pushes a plain nested scope with no labels of its own.
func (lm *LabelManager) EnterCompound() {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.stack = append(lm.stack, &scope{kind: ScopeCompound, locals: map[string]string{}})
}

// Exit pops the innermost scope.
func (lm *LabelManager) Exit() {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if len(lm.stack) == 0 {
		return
	}
	lm.stack = lm.stack[:len(lm.stack)-1]
}

func (lm *LabelManager) innermost(kind ScopeKind) *scope {
	for i := len(lm.stack) - 1; i >= 0; i-- {
		if lm.stack[i].kind == kind {
			return lm.stack[i]
		}
	}
	return nil
}

// ResultisTarget returns the innermost VALOF's resultis label.
func (lm *LabelManager) ResultisTarget() (string, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if s := lm.innermost(ScopeValof); s != nil {
		return s.resultisLabel, nil
	}
	return "", errors.New("RESULTIS outside VALOF")
}

// BreakTarget returns the innermost loop or SWITCHON's exit/end label.
func (lm *LabelManager) BreakTarget() (string, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for i := len(lm.stack) - 1; i >= 0; i-- {
		switch lm.stack[i].kind {
		case ScopeLoop:
			return lm.stack[i].exitLabel, nil
		case ScopeSwitchon:
			return lm.stack[i].endLabel, nil
		}
	}
	return "", errors.New("BREAK outside loop or SWITCHON")
}

// LoopTarget returns the innermost loop's back-edge label.
func (lm *LabelManager) LoopTarget() (string, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if s := lm.innermost(ScopeLoop); s != nil {
		return s.repeatLabel, nil
	}
	return "", errors.New("LOOP outside loop")
}

// EndcaseTarget returns the innermost SWITCHON's endcase label.
func (lm *LabelManager) EndcaseTarget() (string, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if s := lm.innermost(ScopeSwitchon); s != nil {
		return s.endcaseLabel, nil
	}
	return "", errors.New("ENDCASE outside SWITCHON")
}

// ReturnTarget returns the nearest enclosing function's return label.
func (lm *LabelManager) ReturnTarget() (string, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if s := lm.innermost(ScopeFunction); s != nil {
		return s.returnLabel, nil
	}
	return "", errors.New("RETURN outside function")
}

// DefineLocal binds name to label within the innermost scope. Shadow
// redefinition within the SAME scope is a fatal error (spec §4.7).
func (lm *LabelManager) DefineLocal(name, label string) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if len(lm.stack) == 0 {
		return errors.New("no active scope for local label definition")
	}
	top := lm.stack[len(lm.stack)-1]
	if _, exists := top.locals[name]; exists {
		return errors.Errorf("label %q redefined in the same scope", name)
	}
	top.locals[name] = label
	return nil
}

// DefineGlobal binds a cross-function callable name. Redefinition at
// the global level is a fatal error.
func (lm *LabelManager) DefineGlobal(name, label string) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if _, exists := lm.global[name]; exists {
		return errors.Errorf("global label %q redefined", name)
	}
	lm.global[name] = label
	return nil
}

// Lookup resolves name against the scope stack innermost-first, then
// the global table.
func (lm *LabelManager) Lookup(name string) (string, bool) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for i := len(lm.stack) - 1; i >= 0; i-- {
		if label, ok := lm.stack[i].locals[name]; ok {
			return label, true
		}
	}
	label, ok := lm.global[name]
	return label, ok
}

// Fresh mints a label under prefix without entering a scope (used for
// ad hoc branch targets such as if/then merge points and switch arms).
func (lm *LabelManager) Fresh(prefix string) string {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.fresh(prefix)
}

// RecordFixup appends a fixup for later resolution by the instruction stream.
func (lm *LabelManager) RecordFixup(instrIndex int, label string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.fixups = append(lm.fixups, Fixup{InstrIndex: instrIndex, Label: label})
}

func (lm *LabelManager) Fixups() []Fixup {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return append([]Fixup(nil), lm.fixups...)
}
