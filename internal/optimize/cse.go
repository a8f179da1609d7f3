package optimize

import (
	"fmt"

	"github.com/albanread/RevivalBCPL-sub000/internal/ast"
)

// cseState threads the fingerprint->temporary map and a fresh-name
// counter through one linear statement sequence (spec §4.5 "Common
// Subexpression Elimination").
type cseState struct {
	seen    map[string]string
	counter int
}

func (c *cseState) freshName() string {
	c.counter++
	return fmt.Sprintf("_cse%d", c.counter)
}

// isPureCSE reports whether e is eligible for elimination: a literal,
// a variable access, or a unary/binary operator recursively over pure
// operands. Calls and memory subscripts are never pure (spec §4.5).
func isPureCSE(e ast.Expression) bool {
	switch n := e.(type) {
	case *ast.NumberLiteral, *ast.FloatLiteral, *ast.StringLiteral, *ast.CharLiteral, *ast.VariableAccess:
		return true
	case *ast.UnaryOp:
		return isPureCSE(n.Child)
	case *ast.BinaryOp:
		return isPureCSE(n.Left) && isPureCSE(n.Right)
	default:
		return false
	}
}

func fingerprintCSE(e ast.Expression) string {
	switch n := e.(type) {
	case *ast.NumberLiteral:
		return fmt.Sprintf("N:%d", n.Value)
	case *ast.FloatLiteral:
		return fmt.Sprintf("F:%v", n.Value)
	case *ast.StringLiteral:
		return fmt.Sprintf("S:%q", n.Value)
	case *ast.CharLiteral:
		return fmt.Sprintf("C:%d", n.Value)
	case *ast.VariableAccess:
		return "V:" + n.Name
	case *ast.UnaryOp:
		return fmt.Sprintf("U(%s,%s)", n.Op, fingerprintCSE(n.Child))
	case *ast.BinaryOp:
		return fmt.Sprintf("B(%s,%s,%s)", n.Op, fingerprintCSE(n.Left), fingerprintCSE(n.Right))
	default:
		return fmt.Sprintf("%p", e)
	}
}

// bindExpr rewrites e bottom-up, binding each non-trivial pure
// subexpression the first time its fingerprint is seen and replacing
// every occurrence thereafter with a read of the bound temporary. New
// bindings are appended to *temps as DeclarationStatements to be
// spliced in before the statement that first used them.
func (c *cseState) bindExpr(e ast.Expression, temps *[]ast.Statement) ast.Expression {
	if e == nil {
		return nil
	}
	var rebuilt ast.Expression
	switch n := e.(type) {
	case *ast.UnaryOp:
		rebuilt = &ast.UnaryOp{Op: n.Op, Child: c.bindExpr(n.Child, temps), Line: n.Line}
	case *ast.BinaryOp:
		rebuilt = &ast.BinaryOp{Op: n.Op, Left: c.bindExpr(n.Left, temps), Right: c.bindExpr(n.Right, temps), Line: n.Line}
	case *ast.FunctionCall:
		args := make([]ast.Expression, len(n.Args))
		for i, a := range n.Args {
			args[i] = c.bindExpr(a, temps)
		}
		return &ast.FunctionCall{Callee: c.bindExpr(n.Callee, temps), Args: args, Line: n.Line}
	case *ast.ConditionalExpression:
		return &ast.ConditionalExpression{
			Cond: c.bindExpr(n.Cond, temps), Then: c.bindExpr(n.Then, temps), Else: c.bindExpr(n.Else, temps), Line: n.Line,
		}
	case *ast.TableConstructor:
		elems := make([]ast.Expression, len(n.Elements))
		for i, el := range n.Elements {
			elems[i] = c.bindExpr(el, temps)
		}
		return &ast.TableConstructor{Elements: elems, Line: n.Line}
	case *ast.VectorConstructor:
		return &ast.VectorConstructor{Size: c.bindExpr(n.Size, temps), Line: n.Line}
	case *ast.Valof:
		return &ast.Valof{Body: CSEStatement(n.Body), Line: n.Line}
	case *ast.DereferenceExpr:
		return &ast.DereferenceExpr{Ptr: c.bindExpr(n.Ptr, temps), Line: n.Line}
	case *ast.VectorAccess:
		return &ast.VectorAccess{Vec: c.bindExpr(n.Vec, temps), Index: c.bindExpr(n.Index, temps), Line: n.Line}
	case *ast.CharacterAccess:
		return &ast.CharacterAccess{Str: c.bindExpr(n.Str, temps), Index: c.bindExpr(n.Index, temps), Line: n.Line}
	default:
		return e
	}

	if !isPureCSE(rebuilt) {
		return rebuilt
	}
	key := fingerprintCSE(rebuilt)
	if name, ok := c.seen[key]; ok {
		return &ast.VariableAccess{Name: name}
	}
	name := c.freshName()
	c.seen[key] = name
	*temps = append(*temps, &ast.DeclarationStatement{Decl: &ast.LetDeclaration{
		Inits: []ast.LetInitPair{{Name: name, Init: rebuilt}},
	}})
	return &ast.VariableAccess{Name: name}
}

// bindStmtExprs rewrites the expressions directly owned by s (not
// nested statement bodies, which get their own sequence state via
// CSEStatement), appending any newly bound temporaries to *temps.
func (c *cseState) bindStmtExprs(s ast.Statement, temps *[]ast.Statement) ast.Statement {
	switch n := s.(type) {
	case *ast.Assignment:
		lhs := make([]ast.Expression, len(n.LHS))
		for i, e := range n.LHS {
			lhs[i] = c.bindExpr(e, temps)
		}
		rhs := make([]ast.Expression, len(n.RHS))
		for i, e := range n.RHS {
			rhs[i] = c.bindExpr(e, temps)
		}
		return &ast.Assignment{LHS: lhs, RHS: rhs, Line: n.Line}
	case *ast.RoutineCall:
		return &ast.RoutineCall{Call: c.bindExpr(n.Call, temps), Line: n.Line}
	case *ast.IfStatement:
		return &ast.IfStatement{Cond: c.bindExpr(n.Cond, temps), Then: CSEStatement(n.Then), Line: n.Line}
	case *ast.TestStatement:
		return &ast.TestStatement{
			Cond: c.bindExpr(n.Cond, temps), Then: CSEStatement(n.Then), Else: CSEStatement(n.Else), Line: n.Line,
		}
	case *ast.WhileStatement:
		return &ast.WhileStatement{Cond: c.bindExpr(n.Cond, temps), Body: CSEStatement(n.Body), Line: n.Line}
	case *ast.RepeatStatement:
		return &ast.RepeatStatement{Body: CSEStatement(n.Body), Cond: c.bindExpr(n.Cond, temps), Kind: n.Kind, Line: n.Line}
	case *ast.ForStatement:
		return &ast.ForStatement{
			Var: n.Var, From: c.bindExpr(n.From, temps), To: c.bindExpr(n.To, temps), By: c.bindExpr(n.By, temps),
			Body: CSEStatement(n.Body), Line: n.Line,
		}
	case *ast.SwitchonStatement:
		cases := make([]ast.SwitchCase, len(n.Cases))
		for i, cs := range n.Cases {
			cases[i] = ast.SwitchCase{Key: cs.Key, Body: CSEStatement(cs.Body)}
		}
		return &ast.SwitchonStatement{
			Discriminant: c.bindExpr(n.Discriminant, temps), Cases: cases, Default: CSEStatement(n.Default), Line: n.Line,
		}
	case *ast.ResultisStatement:
		return &ast.ResultisStatement{Value: c.bindExpr(n.Value, temps), Line: n.Line}
	case *ast.LabeledStatement:
		return &ast.LabeledStatement{Name: n.Name, Wrapped: CSEStatement(n.Wrapped), Line: n.Line}
	case *ast.CompoundStatement:
		return CSEStatement(n)
	case *ast.DeclarationStatement:
		if let, ok := n.Decl.(*ast.LetDeclaration); ok {
			inits := make([]ast.LetInitPair, len(let.Inits))
			for i, p := range let.Inits {
				inits[i] = ast.LetInitPair{Name: p.Name, Init: c.bindExpr(p.Init, temps)}
			}
			return &ast.DeclarationStatement{Decl: &ast.LetDeclaration{Inits: inits, Line: let.Line}, Line: n.Line}
		}
		return n
	default:
		return s
	}
}

// CSEStatement applies common subexpression elimination within s. For
// a CompoundStatement this processes the direct children as one
// linear sequence, sharing CSE state across them; nested bodies get a
// fresh sequence of their own.
func CSEStatement(s ast.Statement) ast.Statement {
	if s == nil {
		return nil
	}
	compound, ok := s.(*ast.CompoundStatement)
	if !ok {
		state := &cseState{seen: map[string]string{}}
		var temps []ast.Statement
		return state.bindStmtExprs(s, &temps)
	}

	state := &cseState{seen: map[string]string{}}
	var out []ast.Statement
	for _, child := range compound.Children {
		var temps []ast.Statement
		rewritten := state.bindStmtExprs(child, &temps)
		out = append(out, temps...)
		out = append(out, rewritten)
	}
	return &ast.CompoundStatement{Children: out, Line: compound.Line}
}

// EliminateCommonSubexpressions runs CSE over every function body in p.
func EliminateCommonSubexpressions(p *ast.Program) *ast.Program {
	out := &ast.Program{Declarations: make([]ast.Declaration, len(p.Declarations))}
	for i, d := range p.Declarations {
		fn, ok := d.(*ast.FunctionDeclaration)
		if !ok {
			out.Declarations[i] = d
			continue
		}
		newFn := *fn
		if fn.StmtBody != nil {
			newFn.StmtBody = CSEStatement(fn.StmtBody)
		}
		if fn.ExprBody != nil {
			if valof, ok := fn.ExprBody.(*ast.Valof); ok {
				newFn.ExprBody = &ast.Valof{Body: CSEStatement(valof.Body), Line: valof.Line}
			}
		}
		out.Declarations[i] = &newFn
	}
	return out
}
