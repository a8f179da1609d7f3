// Package liveness implements the backward, may-data-flow liveness
// analysis of spec §4.4: per-block use/def sets, a block-level
// fixed-point, and propagation into individual statements and
// expressions.
package liveness

import (
	"sort"

	"github.com/samber/lo"

	"github.com/albanread/RevivalBCPL-sub000/internal/ast"
	"github.com/albanread/RevivalBCPL-sub000/internal/cfg"
)

// VarSet is a set of variable names.
type VarSet map[string]struct{}

func NewVarSet(names ...string) VarSet {
	s := VarSet{}
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s VarSet) Has(name string) bool { _, ok := s[name]; return ok }

func (s VarSet) Clone() VarSet {
	c := make(VarSet, len(s))
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}

// Union returns a new set containing every name in s or other.
func (s VarSet) Union(other VarSet) VarSet {
	c := s.Clone()
	for k := range other {
		c[k] = struct{}{}
	}
	return c
}

// Minus returns a new set containing names in s but not in other.
func (s VarSet) Minus(other VarSet) VarSet {
	c := VarSet{}
	for k := range s {
		if !other.Has(k) {
			c[k] = struct{}{}
		}
	}
	return c
}

// Equal reports whether s and other contain exactly the same names.
func (s VarSet) Equal(other VarSet) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if !other.Has(k) {
			return false
		}
	}
	return true
}

// Sorted returns the set's members in a deterministic order, useful
// for tests and for introducing hoisted temporaries in a stable order.
func (s VarSet) Sorted() []string {
	names := lo.Keys(s)
	sort.Strings(names)
	return names
}

// Result holds the outcome of an analysis over one function body.
type Result struct {
	BlockIn, BlockOut   map[*cfg.Block]VarSet
	StmtIn, StmtOut     map[ast.Statement]VarSet
	blockUse, blockDef  map[*cfg.Block]VarSet
}

// Analyze runs the fixed-point backward dataflow over fn and then
// propagates the result into every statement (and, on demand via
// ExprLiveIn, every expression) it contains.
func Analyze(fn *cfg.Function) *Result {
	r := &Result{
		BlockIn:  map[*cfg.Block]VarSet{},
		BlockOut: map[*cfg.Block]VarSet{},
		StmtIn:   map[ast.Statement]VarSet{},
		StmtOut:  map[ast.Statement]VarSet{},
		blockUse: map[*cfg.Block]VarSet{},
		blockDef: map[*cfg.Block]VarSet{},
	}

	for _, b := range fn.Blocks {
		use, def := blockUseDef(b)
		r.blockUse[b] = use
		r.blockDef[b] = def
		r.BlockIn[b] = VarSet{}
		r.BlockOut[b] = VarSet{}
	}

	// Iterate to a fixed point in reverse order of discovery, as
	// required by spec §4.4; a finite set of names over a finite block
	// count guarantees convergence (monotonicity, property #6).
	changed := true
	for changed {
		changed = false
		for i := len(fn.Blocks) - 1; i >= 0; i-- {
			b := fn.Blocks[i]
			out := VarSet{}
			for _, s := range b.Succ {
				out = out.Union(r.BlockIn[s])
			}
			in := r.blockUse[b].Union(out.Minus(r.blockDef[b]))
			if !in.Equal(r.BlockIn[b]) || !out.Equal(r.BlockOut[b]) {
				changed = true
			}
			r.BlockIn[b] = in
			r.BlockOut[b] = out
		}
	}

	for _, b := range fn.Blocks {
		propagateStatements(r, b)
	}
	return r
}

// blockUseDef computes use[B]/def[B] by scanning the block's
// statements in order, killing uses that are locally defined earlier
// in the block (spec §4.4).
func blockUseDef(b *cfg.Block) (use, def VarSet) {
	use, def = VarSet{}, VarSet{}
	for _, s := range b.Statements {
		su, sd := StmtUseDef(s)
		use = use.Union(su.Minus(def))
		def = def.Union(sd)
	}
	return use, def
}

// propagateStatements fills in StmtIn/StmtOut for every statement in
// b, processing in reverse order starting from the block's live-out
// (spec §4.4 "live-out of each statement being the live-in of its
// successor in the block").
func propagateStatements(r *Result, b *cfg.Block) {
	out := r.BlockOut[b]
	for i := len(b.Statements) - 1; i >= 0; i-- {
		s := b.Statements[i]
		su, sd := StmtUseDef(s)
		in := su.Union(out.Minus(sd))
		r.StmtOut[s] = out
		r.StmtIn[s] = in
		out = in
	}
}

// StmtUseDef returns the use/def contract for a single statement,
// considering only the expressions and names that belong to this
// statement node itself (not nested statement bodies, which the CFG
// builder has already split into other blocks) per spec §4.4's
// use/def contracts.
func StmtUseDef(s ast.Statement) (use, def VarSet) {
	use, def = VarSet{}, VarSet{}
	switch n := s.(type) {
	case *ast.Assignment:
		for _, rhs := range n.RHS {
			use = use.Union(ExprUses(rhs))
		}
		for _, lhs := range n.LHS {
			if v, ok := lhs.(*ast.VariableAccess); ok {
				def[v.Name] = struct{}{}
			} else {
				// Vector/character/dereference LHS targets use their
				// constituent addresses rather than defining a name.
				use = use.Union(ExprUses(lhs))
			}
		}
	case *ast.RoutineCall:
		if call, ok := n.Call.(*ast.FunctionCall); ok {
			for _, a := range call.Args {
				use = use.Union(ExprUses(a))
			}
		}
	case *ast.DeclarationStatement:
		switch d := n.Decl.(type) {
		case *ast.LetDeclaration:
			for _, p := range d.Inits {
				use = use.Union(ExprUses(p.Init))
			}
			for _, p := range d.Inits {
				def[p.Name] = struct{}{}
			}
		}
	case *ast.IfStatement:
		use = ExprUses(n.Cond)
	case *ast.TestStatement:
		use = ExprUses(n.Cond)
	case *ast.WhileStatement:
		use = ExprUses(n.Cond)
	case *ast.ForStatement:
		use = ExprUses(n.From).Union(ExprUses(n.To))
		if n.By != nil {
			use = use.Union(ExprUses(n.By))
		}
		def[n.Var] = struct{}{}
	case *ast.RepeatStatement:
		if n.Cond != nil {
			use = ExprUses(n.Cond)
		}
	case *ast.SwitchonStatement:
		use = ExprUses(n.Discriminant)
	case *ast.ResultisStatement:
		use = ExprUses(n.Value)
	case *ast.GotoStatement:
		use = ExprUses(n.Label)
	}
	return use, def
}

// ExprUses returns the set of variable names read by e and its
// subexpressions.
func ExprUses(e ast.Expression) VarSet {
	uses := VarSet{}
	ast.WalkExpr(e, ast.Visitor{Expr: func(sub ast.Expression) {
		if v, ok := sub.(*ast.VariableAccess); ok {
			uses[v.Name] = struct{}{}
		}
	}})
	return uses
}
