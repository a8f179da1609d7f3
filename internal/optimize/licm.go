package optimize

import (
	"fmt"

	"github.com/albanread/RevivalBCPL-sub000/internal/ast"
)

// sideEffectingRoutines lists the I/O primitives LICM must never treat
// as pure, regardless of how invariant their arguments look (spec
// §4.5 "Loop-Invariant Code Motion").
var sideEffectingRoutines = map[string]bool{
	"WRITES": true, "WRITEN": true, "NEWLINE": true, "FINISH": true, "READN": true,
}

// collectModifiedVars gathers every name assigned, bound by a nested
// LET, or used as a FOR loop counter anywhere within s.
func collectModifiedVars(s ast.Statement) map[string]struct{} {
	mod := map[string]struct{}{}
	ast.WalkStmt(s, ast.Visitor{Stmt: func(st ast.Statement) {
		switch n := st.(type) {
		case *ast.Assignment:
			for _, lhs := range n.LHS {
				if v, ok := lhs.(*ast.VariableAccess); ok {
					mod[v.Name] = struct{}{}
				}
			}
		case *ast.ForStatement:
			mod[n.Var] = struct{}{}
		case *ast.DeclarationStatement:
			if let, ok := n.Decl.(*ast.LetDeclaration); ok {
				for _, p := range let.Inits {
					mod[p.Name] = struct{}{}
				}
			}
		}
	}})
	return mod
}

func isInvariant(e ast.Expression, modified map[string]struct{}) bool {
	switch n := e.(type) {
	case *ast.NumberLiteral, *ast.FloatLiteral, *ast.StringLiteral, *ast.CharLiteral:
		return true
	case *ast.VariableAccess:
		_, bad := modified[n.Name]
		return !bad
	case *ast.UnaryOp:
		return isInvariant(n.Child, modified)
	case *ast.BinaryOp:
		return isInvariant(n.Left, modified) && isInvariant(n.Right, modified)
	case *ast.FunctionCall:
		callee, ok := n.Callee.(*ast.VariableAccess)
		if !ok || sideEffectingRoutines[callee.Name] {
			return false
		}
		if _, bad := modified[callee.Name]; bad {
			return false
		}
		for _, a := range n.Args {
			if !isInvariant(a, modified) {
				return false
			}
		}
		return true
	default:
		// ConditionalExpression, VectorAccess, CharacterAccess,
		// DereferenceExpr, TableConstructor, VectorConstructor, Valof:
		// conservatively not hoisted, they may read aliased memory.
		return false
	}
}

func fingerprintLICM(e ast.Expression) string {
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
		return fmt.Sprintf("U(%s,%s)", n.Op, fingerprintLICM(n.Child))
	case *ast.BinaryOp:
		return fmt.Sprintf("B(%s,%s,%s)", n.Op, fingerprintLICM(n.Left), fingerprintLICM(n.Right))
	case *ast.FunctionCall:
		key := "Call("
		if callee, ok := n.Callee.(*ast.VariableAccess); ok {
			key += callee.Name
		}
		for _, a := range n.Args {
			key += "," + fingerprintLICM(a)
		}
		return key + ")"
	default:
		return fmt.Sprintf("%p", e)
	}
}

type licmState struct {
	modified map[string]struct{}
	seen     map[string]string
	temps    *[]ast.Statement
	counter  *int
}

// hoistExpr rewrites e bottom-up, replacing each maximal invariant
// BinaryOp/UnaryOp/FunctionCall with a read of a freshly bound
// temporary. Literals and bare variables are never bound (spec §4.5).
func (st *licmState) hoistExpr(e ast.Expression) ast.Expression {
	if e == nil {
		return nil
	}
	var rebuilt ast.Expression
	hoistable := false
	switch n := e.(type) {
	case *ast.UnaryOp:
		rebuilt = &ast.UnaryOp{Op: n.Op, Child: st.hoistExpr(n.Child), Line: n.Line}
		hoistable = true
	case *ast.BinaryOp:
		rebuilt = &ast.BinaryOp{Op: n.Op, Left: st.hoistExpr(n.Left), Right: st.hoistExpr(n.Right), Line: n.Line}
		hoistable = true
	case *ast.FunctionCall:
		args := make([]ast.Expression, len(n.Args))
		for i, a := range n.Args {
			args[i] = st.hoistExpr(a)
		}
		rebuilt = &ast.FunctionCall{Callee: n.Callee, Args: args, Line: n.Line}
		hoistable = true
	case *ast.ConditionalExpression:
		return &ast.ConditionalExpression{
			Cond: st.hoistExpr(n.Cond), Then: st.hoistExpr(n.Then), Else: st.hoistExpr(n.Else), Line: n.Line,
		}
	case *ast.TableConstructor:
		elems := make([]ast.Expression, len(n.Elements))
		for i, el := range n.Elements {
			elems[i] = st.hoistExpr(el)
		}
		return &ast.TableConstructor{Elements: elems, Line: n.Line}
	case *ast.VectorConstructor:
		return &ast.VectorConstructor{Size: st.hoistExpr(n.Size), Line: n.Line}
	case *ast.DereferenceExpr:
		return &ast.DereferenceExpr{Ptr: st.hoistExpr(n.Ptr), Line: n.Line}
	case *ast.VectorAccess:
		return &ast.VectorAccess{Vec: st.hoistExpr(n.Vec), Index: st.hoistExpr(n.Index), Line: n.Line}
	case *ast.CharacterAccess:
		return &ast.CharacterAccess{Str: st.hoistExpr(n.Str), Index: st.hoistExpr(n.Index), Line: n.Line}
	default:
		return e
	}

	if !hoistable || !isInvariant(rebuilt, st.modified) {
		return rebuilt
	}
	key := fingerprintLICM(rebuilt)
	if name, ok := st.seen[key]; ok {
		return &ast.VariableAccess{Name: name}
	}
	*st.counter++
	name := fmt.Sprintf("_licm%d", *st.counter)
	st.seen[key] = name
	*st.temps = append(*st.temps, &ast.DeclarationStatement{Decl: &ast.LetDeclaration{
		Inits: []ast.LetInitPair{{Name: name, Init: rebuilt}},
	}})
	return &ast.VariableAccess{Name: name}
}

// hoistStmt walks every statement inside a loop body looking
// for invariant expressions to hoist. Nested FOR loops are left
// untouched here: they already ran through their own LICM pass.
func (st *licmState) hoistStmt(s ast.Statement) ast.Statement {
	if s == nil {
		return nil
	}
	switch n := s.(type) {
	case *ast.CompoundStatement:
		children := make([]ast.Statement, len(n.Children))
		for i, c := range n.Children {
			children[i] = st.hoistStmt(c)
		}
		return &ast.CompoundStatement{Children: children, Line: n.Line}
	case *ast.Assignment:
		lhs := make([]ast.Expression, len(n.LHS))
		for i, e := range n.LHS {
			lhs[i] = st.hoistExpr(e)
		}
		rhs := make([]ast.Expression, len(n.RHS))
		for i, e := range n.RHS {
			rhs[i] = st.hoistExpr(e)
		}
		return &ast.Assignment{LHS: lhs, RHS: rhs, Line: n.Line}
	case *ast.RoutineCall:
		return &ast.RoutineCall{Call: st.hoistExpr(n.Call), Line: n.Line}
	case *ast.DeclarationStatement:
		let, ok := n.Decl.(*ast.LetDeclaration)
		if !ok {
			return n
		}
		inits := make([]ast.LetInitPair, len(let.Inits))
		for i, p := range let.Inits {
			inits[i] = ast.LetInitPair{Name: p.Name, Init: st.hoistExpr(p.Init)}
		}
		return &ast.DeclarationStatement{Decl: &ast.LetDeclaration{Inits: inits, Line: let.Line}, Line: n.Line}
	case *ast.IfStatement:
		return &ast.IfStatement{Cond: st.hoistExpr(n.Cond), Then: st.hoistStmt(n.Then), Line: n.Line}
	case *ast.TestStatement:
		return &ast.TestStatement{
			Cond: st.hoistExpr(n.Cond), Then: st.hoistStmt(n.Then), Else: st.hoistStmt(n.Else), Line: n.Line,
		}
	case *ast.WhileStatement:
		return &ast.WhileStatement{Cond: st.hoistExpr(n.Cond), Body: st.hoistStmt(n.Body), Line: n.Line}
	case *ast.RepeatStatement:
		return &ast.RepeatStatement{Body: st.hoistStmt(n.Body), Cond: st.hoistExpr(n.Cond), Kind: n.Kind, Line: n.Line}
	case *ast.SwitchonStatement:
		cases := make([]ast.SwitchCase, len(n.Cases))
		for i, c := range n.Cases {
			cases[i] = ast.SwitchCase{Key: c.Key, Body: st.hoistStmt(c.Body)}
		}
		return &ast.SwitchonStatement{Discriminant: st.hoistExpr(n.Discriminant), Cases: cases, Default: st.hoistStmt(n.Default), Line: n.Line}
	case *ast.ResultisStatement:
		return &ast.ResultisStatement{Value: st.hoistExpr(n.Value), Line: n.Line}
	case *ast.LabeledStatement:
		return &ast.LabeledStatement{Name: n.Name, Wrapped: st.hoistStmt(n.Wrapped), Line: n.Line}
	case *ast.ForStatement:
		return n
	default:
		return s
	}
}

// LICMStatement walks s looking for ForStatement loops and hoists
// every maximal loop-invariant expression found in each one's body to
// a fresh LetDeclaration placed immediately before the loop.
func LICMStatement(s ast.Statement) ast.Statement {
	if s == nil {
		return nil
	}
	switch n := s.(type) {
	case *ast.CompoundStatement:
		children := make([]ast.Statement, len(n.Children))
		for i, c := range n.Children {
			children[i] = LICMStatement(c)
		}
		return &ast.CompoundStatement{Children: children, Line: n.Line}
	case *ast.IfStatement:
		return &ast.IfStatement{Cond: n.Cond, Then: LICMStatement(n.Then), Line: n.Line}
	case *ast.TestStatement:
		return &ast.TestStatement{Cond: n.Cond, Then: LICMStatement(n.Then), Else: LICMStatement(n.Else), Line: n.Line}
	case *ast.WhileStatement:
		return &ast.WhileStatement{Cond: n.Cond, Body: LICMStatement(n.Body), Line: n.Line}
	case *ast.RepeatStatement:
		return &ast.RepeatStatement{Body: LICMStatement(n.Body), Cond: n.Cond, Kind: n.Kind, Line: n.Line}
	case *ast.SwitchonStatement:
		cases := make([]ast.SwitchCase, len(n.Cases))
		for i, c := range n.Cases {
			cases[i] = ast.SwitchCase{Key: c.Key, Body: LICMStatement(c.Body)}
		}
		return &ast.SwitchonStatement{Discriminant: n.Discriminant, Cases: cases, Default: LICMStatement(n.Default), Line: n.Line}
	case *ast.LabeledStatement:
		return &ast.LabeledStatement{Name: n.Name, Wrapped: LICMStatement(n.Wrapped), Line: n.Line}
	case *ast.ForStatement:
		newBody := LICMStatement(n.Body)
		modified := collectModifiedVars(newBody)
		modified[n.Var] = struct{}{}
		var temps []ast.Statement
		counter := 0
		st := &licmState{modified: modified, seen: map[string]string{}, temps: &temps, counter: &counter}
		hoisted := st.hoistStmt(newBody)
		newFor := &ast.ForStatement{Var: n.Var, From: n.From, To: n.To, By: n.By, Body: hoisted, Line: n.Line}
		if len(temps) == 0 {
			return newFor
		}
		return &ast.CompoundStatement{Children: append(append([]ast.Statement{}, temps...), newFor), Line: n.Line}
	default:
		return s
	}
}

// HoistLoopInvariants runs LICM over every function body in p.
func HoistLoopInvariants(p *ast.Program) *ast.Program {
	out := &ast.Program{Declarations: make([]ast.Declaration, len(p.Declarations))}
	for i, d := range p.Declarations {
		fn, ok := d.(*ast.FunctionDeclaration)
		if !ok {
			out.Declarations[i] = d
			continue
		}
		newFn := *fn
		if fn.StmtBody != nil {
			newFn.StmtBody = LICMStatement(fn.StmtBody)
		}
		if fn.ExprBody != nil {
			if valof, ok := fn.ExprBody.(*ast.Valof); ok {
				newFn.ExprBody = &ast.Valof{Body: LICMStatement(valof.Body), Line: valof.Line}
			}
		}
		out.Declarations[i] = &newFn
	}
	return out
}
