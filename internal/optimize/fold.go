package optimize

import (
	"github.com/albanread/RevivalBCPL-sub000/internal/ast"
	"github.com/albanread/RevivalBCPL-sub000/internal/token"
)

// truthy implements the manifest-truthiness convention: zero is
// false, any non-zero value is true (spec GLOSSARY).
func truthy(v int64) bool { return v != 0 }

func boolInt(b bool) int64 {
	if b {
		return -1 // true = all bits set
	}
	return 0
}

// foldInt evaluates an integer binary operator over two literal
// operands, returning ok=false when the operator does not apply to
// integers or the fold is unsafe (e.g. division by zero).
func foldInt(op token.Kind, l, r int64) (int64, bool) {
	switch op {
	case token.Plus:
		return l + r, true
	case token.Minus:
		return l - r, true
	case token.Star:
		return l * r, true
	case token.Slash:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case token.Rem:
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case token.LShift:
		return l << uint(r), true
	case token.RShift:
		return l >> uint(r), true
	case token.And:
		return l & r, true
	case token.Or:
		return l | r, true
	case token.Eqv:
		return boolInt(l == r), true
	case token.Neqv:
		return boolInt(l != r), true
	case token.Eq:
		return boolInt(l == r), true
	case token.Ne:
		return boolInt(l != r), true
	case token.Lt:
		return boolInt(l < r), true
	case token.Le:
		return boolInt(l <= r), true
	case token.Gt:
		return boolInt(l > r), true
	case token.Ge:
		return boolInt(l >= r), true
	default:
		return 0, false
	}
}

// foldFloat evaluates the parallel `.`-suffixed float operator
// family. Comparisons yield an integer result (spec §4.5).
func foldFloat(op token.Kind, l, r float64) (result float64, isComparison bool, cmp int64, ok bool) {
	switch op {
	case token.PlusF:
		return l + r, false, 0, true
	case token.MinusF:
		return l - r, false, 0, true
	case token.StarF:
		return l * r, false, 0, true
	case token.SlashF:
		if r == 0 {
			return 0, false, 0, false
		}
		return l / r, false, 0, true
	case token.EqF:
		return 0, true, boolInt(l == r), true
	case token.NeF:
		return 0, true, boolInt(l != r), true
	case token.LtF:
		return 0, true, boolInt(l < r), true
	case token.LeF:
		return 0, true, boolInt(l <= r), true
	case token.GtF:
		return 0, true, boolInt(l > r), true
	case token.GeF:
		return 0, true, boolInt(l >= r), true
	default:
		return 0, false, 0, false
	}
}

func asInt(e ast.Expression) (int64, bool) {
	if n, ok := e.(*ast.NumberLiteral); ok {
		return n.Value, true
	}
	return 0, false
}

func asFloat(e ast.Expression) (float64, bool) {
	if n, ok := e.(*ast.FloatLiteral); ok {
		return n.Value, true
	}
	return 0, false
}

// foldBinary implements the constant-folding pass's node-level logic:
// literal folding, strength reduction, and identity simplification
// (spec §4.5 "Constant Folding").
func foldBinary(n *ast.BinaryOp) ast.Expression {
	if l, lok := asInt(n.Left); lok {
		if r, rok := asInt(n.Right); rok {
			if v, ok := foldInt(n.Op, l, r); ok {
				return &ast.NumberLiteral{Value: v, Line: n.Line}
			}
		}
	}
	if l, lok := asFloat(n.Left); lok {
		if r, rok := asFloat(n.Right); rok {
			if v, isCmp, cmp, ok := foldFloat(n.Op, l, r); ok {
				if isCmp {
					return &ast.NumberLiteral{Value: cmp, Line: n.Line}
				}
				return &ast.FloatLiteral{Value: v, Line: n.Line}
			}
		}
	}

	// Strength reductions and identities operate on an integer literal
	// operand regardless of which side it's on.
	if rv, ok := asInt(n.Right); ok {
		switch {
		case n.Op == token.Star && rv == 2:
			return &ast.BinaryOp{Op: token.LShift, Left: n.Left, Right: &ast.NumberLiteral{Value: 1, Line: n.Line}, Line: n.Line}
		case n.Op == token.Slash && rv == 2:
			return &ast.BinaryOp{Op: token.RShift, Left: n.Left, Right: &ast.NumberLiteral{Value: 1, Line: n.Line}, Line: n.Line}
		case (n.Op == token.Plus || n.Op == token.Minus) && rv == 0:
			return n.Left
		case (n.Op == token.Star || n.Op == token.Slash) && rv == 1:
			return n.Left
		case n.Op == token.Star && rv == 0:
			return &ast.NumberLiteral{Value: 0, Line: n.Line}
		}
	}
	if lv, ok := asInt(n.Left); ok {
		switch {
		case n.Op == token.Plus && lv == 0:
			return n.Right
		case n.Op == token.Star && lv == 1:
			return n.Right
		case n.Op == token.Star && lv == 0:
			return &ast.NumberLiteral{Value: 0, Line: n.Line}
		}
	}
	return n
}

// FoldConstants replaces literal-operand binary operators with their
// folded result, applies strength reduction/identity simplification,
// and collapses conditionals and IF/TEST statements whose
// discriminant is already a literal.
func FoldConstants(p *ast.Program) *ast.Program {
	var r Rewriter
	r.Expr = func(e ast.Expression) ast.Expression {
		switch n := e.(type) {
		case *ast.BinaryOp:
			return foldBinary(n)
		case *ast.ConditionalExpression:
			if v, ok := asInt(n.Cond); ok {
				if truthy(v) {
					return n.Then
				}
				return n.Else
			}
			return n
		default:
			return n
		}
	}
	r.Stmt = func(s ast.Statement) ast.Statement {
		switch n := s.(type) {
		case *ast.IfStatement:
			if v, ok := asInt(n.Cond); ok {
				if truthy(v) {
					return n.Then
				}
				return &ast.CompoundStatement{Line: n.Line}
			}
			return n
		case *ast.TestStatement:
			if v, ok := asInt(n.Cond); ok {
				if truthy(v) {
					return n.Then
				}
				if n.Else != nil {
					return n.Else
				}
				return &ast.CompoundStatement{Line: n.Line}
			}
			return n
		default:
			return n
		}
	}
	return RewriteProgram(p, r)
}
