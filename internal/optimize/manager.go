package optimize

import "github.com/albanread/RevivalBCPL-sub000/internal/ast"

// Pass is a single named optimization pass: a pure Program -> Program
// transform (spec §4.6 "Pass Manager").
type Pass struct {
	Name string
	Run  func(*ast.Program) *ast.Program
}

// PassManager threads a program through an ordered, append-only list
// of passes, the way wazero's ssa.RunPasses sequences its SSA-level
// optimizations over a single builder.
type PassManager struct {
	passes []Pass
}

// NewPassManager builds a manager running the default pipeline in
// spec order: constant folding, CSE, DCE, LICM, loop specialization,
// then inlining.
func NewPassManager() *PassManager {
	pm := &PassManager{}
	pm.Append(Pass{Name: "fold", Run: FoldConstants})
	pm.Append(Pass{Name: "cse", Run: EliminateCommonSubexpressions})
	pm.Append(Pass{Name: "dce", Run: EliminateDeadCode})
	pm.Append(Pass{Name: "licm", Run: HoistLoopInvariants})
	pm.Append(Pass{Name: "loopspec", Run: SpecializeLoops})
	pm.Append(Pass{Name: "inline", Run: InlineFunctions})
	return pm
}

// Append registers an additional pass to run after every pass already
// present. Passes may be appended at any time but never reordered.
func (pm *PassManager) Append(p Pass) {
	pm.passes = append(pm.passes, p)
}

// Passes returns the names of the registered passes in run order.
func (pm *PassManager) Passes() []string {
	names := make([]string, len(pm.passes))
	for i, p := range pm.passes {
		names[i] = p.Name
	}
	return names
}

// Optimize runs every registered pass over prog in order, threading
// the result by move: each pass receives the previous pass's output
// and its own output replaces it entirely.
func (pm *PassManager) Optimize(prog *ast.Program) *ast.Program {
	for _, p := range pm.passes {
		prog = p.Run(prog)
	}
	return prog
}
