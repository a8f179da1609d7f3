package optimize

import "github.com/albanread/RevivalBCPL-sub000/internal/ast"

// literalTruth reports whether e is a literal and, if so, its
// manifest truthiness.
func literalTruth(e ast.Expression) (truth bool, isLiteral bool) {
	if n, ok := e.(*ast.NumberLiteral); ok {
		return truthy(n.Value), true
	}
	return false, false
}

// SpecializeLoops rewrites loops whose termination condition is
// already a compile-time constant (spec §4.5 "Loop Specialization"):
//
//	body REPEATUNTIL <true>    -> body
//	body REPEATUNTIL <false>   -> WHILE TRUE DO body
//	WHILE <false> DO body      -> (empty)
//	WHILE <true> DO body       -> unchanged
func SpecializeLoops(p *ast.Program) *ast.Program {
	var r Rewriter
	r.Stmt = func(s ast.Statement) ast.Statement {
		switch n := s.(type) {
		case *ast.RepeatStatement:
			if n.Kind != ast.RepeatUntil || n.Cond == nil {
				return n
			}
			truth, ok := literalTruth(n.Cond)
			if !ok {
				return n
			}
			if truth {
				return n.Body
			}
			return &ast.WhileStatement{
				Cond: &ast.NumberLiteral{Value: -1, Line: n.Line}, Body: n.Body, Line: n.Line,
			}
		case *ast.WhileStatement:
			truth, ok := literalTruth(n.Cond)
			if !ok {
				return n
			}
			if !truth {
				return &ast.CompoundStatement{Line: n.Line}
			}
			return n
		default:
			return n
		}
	}
	return RewriteProgram(p, r)
}
