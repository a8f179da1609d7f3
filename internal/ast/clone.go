package ast

import "github.com/samber/lo"

// CloneExpr deep-clones an expression node; nil is preserved as nil.
func CloneExpr(e Expression) Expression {
	if e == nil {
		return nil
	}
	return e.Clone().(Expression)
}

// CloneStmt deep-clones a statement node; nil is preserved as nil.
func CloneStmt(s Statement) Statement {
	if s == nil {
		return nil
	}
	return s.Clone().(Statement)
}

// CloneDecl deep-clones a declaration node.
func CloneDecl(d Declaration) Declaration {
	if d == nil {
		return nil
	}
	return d.Clone().(Declaration)
}

func cloneExprList(es []Expression) []Expression {
	return lo.Map(es, func(e Expression, _ int) Expression { return CloneExpr(e) })
}

func cloneStmtList(ss []Statement) []Statement {
	return lo.Map(ss, func(s Statement, _ int) Statement { return CloneStmt(s) })
}

func (n *NumberLiteral) Clone() Node { c := *n; return &c }
func (n *FloatLiteral) Clone() Node  { c := *n; return &c }
func (n *StringLiteral) Clone() Node { c := *n; return &c }
func (n *CharLiteral) Clone() Node   { c := *n; return &c }
func (n *VariableAccess) Clone() Node {
	c := *n
	return &c
}

func (n *UnaryOp) Clone() Node {
	return &UnaryOp{Op: n.Op, Child: CloneExpr(n.Child), Line: n.Line}
}

func (n *BinaryOp) Clone() Node {
	return &BinaryOp{Op: n.Op, Left: CloneExpr(n.Left), Right: CloneExpr(n.Right), Line: n.Line}
}

func (n *FunctionCall) Clone() Node {
	return &FunctionCall{Callee: CloneExpr(n.Callee), Args: cloneExprList(n.Args), Line: n.Line}
}

func (n *ConditionalExpression) Clone() Node {
	return &ConditionalExpression{
		Cond: CloneExpr(n.Cond), Then: CloneExpr(n.Then), Else: CloneExpr(n.Else), Line: n.Line,
	}
}

func (n *TableConstructor) Clone() Node {
	return &TableConstructor{Elements: cloneExprList(n.Elements), Line: n.Line}
}

func (n *VectorConstructor) Clone() Node {
	return &VectorConstructor{Size: CloneExpr(n.Size), Line: n.Line}
}

func (n *Valof) Clone() Node {
	return &Valof{Body: CloneStmt(n.Body), Line: n.Line}
}

func (n *DereferenceExpr) Clone() Node {
	return &DereferenceExpr{Ptr: CloneExpr(n.Ptr), Line: n.Line}
}

func (n *VectorAccess) Clone() Node {
	return &VectorAccess{Vec: CloneExpr(n.Vec), Index: CloneExpr(n.Index), Line: n.Line}
}

func (n *CharacterAccess) Clone() Node {
	return &CharacterAccess{Str: CloneExpr(n.Str), Index: CloneExpr(n.Index), Line: n.Line}
}

func (n *Assignment) Clone() Node {
	return &Assignment{LHS: cloneExprList(n.LHS), RHS: cloneExprList(n.RHS), Line: n.Line}
}

func (n *RoutineCall) Clone() Node {
	return &RoutineCall{Call: CloneExpr(n.Call), Line: n.Line}
}

func (n *CompoundStatement) Clone() Node {
	return &CompoundStatement{Children: cloneStmtList(n.Children), Line: n.Line}
}

func (n *IfStatement) Clone() Node {
	return &IfStatement{Cond: CloneExpr(n.Cond), Then: CloneStmt(n.Then), Line: n.Line}
}

func (n *TestStatement) Clone() Node {
	return &TestStatement{Cond: CloneExpr(n.Cond), Then: CloneStmt(n.Then), Else: CloneStmt(n.Else), Line: n.Line}
}

func (n *WhileStatement) Clone() Node {
	return &WhileStatement{Cond: CloneExpr(n.Cond), Body: CloneStmt(n.Body), Line: n.Line}
}

func (n *RepeatStatement) Clone() Node {
	return &RepeatStatement{Body: CloneStmt(n.Body), Cond: CloneExpr(n.Cond), Kind: n.Kind, Line: n.Line}
}

func (n *ForStatement) Clone() Node {
	return &ForStatement{
		Var: n.Var, From: CloneExpr(n.From), To: CloneExpr(n.To), By: CloneExpr(n.By),
		Body: CloneStmt(n.Body), Line: n.Line,
	}
}

func (n *SwitchonStatement) Clone() Node {
	cases := make([]SwitchCase, len(n.Cases))
	for i, c := range n.Cases {
		cases[i] = SwitchCase{Key: c.Key, Body: CloneStmt(c.Body)}
	}
	return &SwitchonStatement{
		Discriminant: CloneExpr(n.Discriminant), Cases: cases, Default: CloneStmt(n.Default), Line: n.Line,
	}
}

func (n *BreakStatement) Clone() Node   { c := *n; return &c }
func (n *LoopStatement) Clone() Node    { c := *n; return &c }
func (n *EndcaseStatement) Clone() Node { c := *n; return &c }
func (n *FinishStatement) Clone() Node  { c := *n; return &c }
func (n *ReturnStatement) Clone() Node  { c := *n; return &c }

func (n *ResultisStatement) Clone() Node {
	return &ResultisStatement{Value: CloneExpr(n.Value), Line: n.Line}
}

func (n *GotoStatement) Clone() Node {
	return &GotoStatement{Label: CloneExpr(n.Label), Line: n.Line}
}

func (n *LabeledStatement) Clone() Node {
	return &LabeledStatement{Name: n.Name, Wrapped: CloneStmt(n.Wrapped), Line: n.Line}
}

func (n *DeclarationStatement) Clone() Node {
	return &DeclarationStatement{Decl: CloneDecl(n.Decl), Line: n.Line}
}

func (n *LetDeclaration) Clone() Node {
	inits := make([]LetInitPair, len(n.Inits))
	for i, p := range n.Inits {
		inits[i] = LetInitPair{Name: p.Name, Init: CloneExpr(p.Init)}
	}
	return &LetDeclaration{Inits: inits, Line: n.Line}
}

func (n *GlobalDeclaration) Clone() Node {
	bindings := make([]GlobalBinding, len(n.Bindings))
	copy(bindings, n.Bindings)
	return &GlobalDeclaration{Bindings: bindings, Line: n.Line}
}

func (n *ManifestDeclaration) Clone() Node {
	bindings := make([]ManifestBinding, len(n.Bindings))
	copy(bindings, n.Bindings)
	return &ManifestDeclaration{Bindings: bindings, Line: n.Line}
}

func (n *GetDirective) Clone() Node { c := *n; return &c }

func (n *FunctionDeclaration) Clone() Node {
	params := make([]string, len(n.Params))
	copy(params, n.Params)
	return &FunctionDeclaration{
		Name: n.Name, Params: params,
		ExprBody: CloneExpr(n.ExprBody), StmtBody: CloneStmt(n.StmtBody), Line: n.Line,
	}
}

// Clone deep-clones an entire program.
func (p *Program) Clone() Node {
	decls := lo.Map(p.Declarations, func(d Declaration, _ int) Declaration { return CloneDecl(d) })
	return &Program{Declarations: decls}
}

// CloneProgram is a typed convenience wrapper over Program.Clone.
func CloneProgram(p *Program) *Program {
	return p.Clone().(*Program)
}
