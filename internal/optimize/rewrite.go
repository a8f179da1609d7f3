// Package optimize implements the tree-rewriting optimization passes
// of spec §4.5 and the pass manager of spec §4.6. Every pass is a
// function Program -> Program; passes never mutate nodes in place,
// they build fresh replacement nodes (spec §4.5 "fresh nodes are
// produced rather than mutating in place").
package optimize

import "github.com/albanread/RevivalBCPL-sub000/internal/ast"

// Rewriter holds optional post-order hooks applied to every rebuilt
// expression/statement/declaration. Children are rebuilt first, then
// the corresponding hook is given the chance to replace the rebuilt
// node — this is the shared machinery every pass below is written
// against, so a pass is just a choice of hooks.
type Rewriter struct {
	Expr func(ast.Expression) ast.Expression
	Stmt func(ast.Statement) ast.Statement
	Decl func(ast.Declaration) ast.Declaration
}

func (r Rewriter) expr(e ast.Expression) ast.Expression {
	if r.Expr == nil {
		return e
	}
	return r.Expr(e)
}

func (r Rewriter) stmt(s ast.Statement) ast.Statement {
	if r.Stmt == nil {
		return s
	}
	return r.Stmt(s)
}

func (r Rewriter) decl(d ast.Declaration) ast.Declaration {
	if r.Decl == nil {
		return d
	}
	return r.Decl(d)
}

// RewriteProgram rebuilds every declaration in p through r.
func RewriteProgram(p *ast.Program, r Rewriter) *ast.Program {
	out := &ast.Program{Declarations: make([]ast.Declaration, len(p.Declarations))}
	for i, d := range p.Declarations {
		out.Declarations[i] = RewriteDecl(d, r)
	}
	return out
}

func RewriteDecl(d ast.Declaration, r Rewriter) ast.Declaration {
	if d == nil {
		return nil
	}
	var rebuilt ast.Declaration
	switch n := d.(type) {
	case *ast.LetDeclaration:
		inits := make([]ast.LetInitPair, len(n.Inits))
		for i, p := range n.Inits {
			inits[i] = ast.LetInitPair{Name: p.Name, Init: RewriteExpr(p.Init, r)}
		}
		rebuilt = &ast.LetDeclaration{Inits: inits, Line: n.Line}
	case *ast.FunctionDeclaration:
		rebuilt = &ast.FunctionDeclaration{
			Name: n.Name, Params: append([]string(nil), n.Params...),
			ExprBody: RewriteExpr(n.ExprBody, r), StmtBody: RewriteStmt(n.StmtBody, r), Line: n.Line,
		}
	case *ast.GlobalDeclaration, *ast.ManifestDeclaration, *ast.GetDirective:
		rebuilt = d.Clone().(ast.Declaration)
	default:
		rebuilt = d
	}
	return r.decl(rebuilt)
}

func RewriteStmt(s ast.Statement, r Rewriter) ast.Statement {
	if s == nil {
		return nil
	}
	var rebuilt ast.Statement
	switch n := s.(type) {
	case *ast.Assignment:
		lhs := make([]ast.Expression, len(n.LHS))
		for i, e := range n.LHS {
			lhs[i] = RewriteExpr(e, r)
		}
		rhs := make([]ast.Expression, len(n.RHS))
		for i, e := range n.RHS {
			rhs[i] = RewriteExpr(e, r)
		}
		rebuilt = &ast.Assignment{LHS: lhs, RHS: rhs, Line: n.Line}
	case *ast.RoutineCall:
		rebuilt = &ast.RoutineCall{Call: RewriteExpr(n.Call, r), Line: n.Line}
	case *ast.CompoundStatement:
		children := make([]ast.Statement, 0, len(n.Children))
		for _, c := range n.Children {
			children = append(children, RewriteStmt(c, r))
		}
		rebuilt = &ast.CompoundStatement{Children: children, Line: n.Line}
	case *ast.IfStatement:
		rebuilt = &ast.IfStatement{Cond: RewriteExpr(n.Cond, r), Then: RewriteStmt(n.Then, r), Line: n.Line}
	case *ast.TestStatement:
		rebuilt = &ast.TestStatement{
			Cond: RewriteExpr(n.Cond, r), Then: RewriteStmt(n.Then, r), Else: RewriteStmt(n.Else, r), Line: n.Line,
		}
	case *ast.WhileStatement:
		rebuilt = &ast.WhileStatement{Cond: RewriteExpr(n.Cond, r), Body: RewriteStmt(n.Body, r), Line: n.Line}
	case *ast.RepeatStatement:
		rebuilt = &ast.RepeatStatement{Body: RewriteStmt(n.Body, r), Cond: RewriteExpr(n.Cond, r), Kind: n.Kind, Line: n.Line}
	case *ast.ForStatement:
		rebuilt = &ast.ForStatement{
			Var: n.Var, From: RewriteExpr(n.From, r), To: RewriteExpr(n.To, r), By: RewriteExpr(n.By, r),
			Body: RewriteStmt(n.Body, r), Line: n.Line,
		}
	case *ast.SwitchonStatement:
		cases := make([]ast.SwitchCase, len(n.Cases))
		for i, c := range n.Cases {
			cases[i] = ast.SwitchCase{Key: c.Key, Body: RewriteStmt(c.Body, r)}
		}
		rebuilt = &ast.SwitchonStatement{
			Discriminant: RewriteExpr(n.Discriminant, r), Cases: cases, Default: RewriteStmt(n.Default, r), Line: n.Line,
		}
	case *ast.ResultisStatement:
		rebuilt = &ast.ResultisStatement{Value: RewriteExpr(n.Value, r), Line: n.Line}
	case *ast.GotoStatement:
		rebuilt = &ast.GotoStatement{Label: RewriteExpr(n.Label, r), Line: n.Line}
	case *ast.LabeledStatement:
		rebuilt = &ast.LabeledStatement{Name: n.Name, Wrapped: RewriteStmt(n.Wrapped, r), Line: n.Line}
	case *ast.DeclarationStatement:
		rebuilt = &ast.DeclarationStatement{Decl: RewriteDecl(n.Decl, r), Line: n.Line}
	case *ast.BreakStatement, *ast.LoopStatement, *ast.EndcaseStatement, *ast.FinishStatement, *ast.ReturnStatement:
		rebuilt = s
	default:
		rebuilt = s
	}
	return r.stmt(rebuilt)
}

func RewriteExpr(e ast.Expression, r Rewriter) ast.Expression {
	if e == nil {
		return nil
	}
	var rebuilt ast.Expression
	switch n := e.(type) {
	case *ast.UnaryOp:
		rebuilt = &ast.UnaryOp{Op: n.Op, Child: RewriteExpr(n.Child, r), Line: n.Line}
	case *ast.BinaryOp:
		rebuilt = &ast.BinaryOp{Op: n.Op, Left: RewriteExpr(n.Left, r), Right: RewriteExpr(n.Right, r), Line: n.Line}
	case *ast.FunctionCall:
		args := make([]ast.Expression, len(n.Args))
		for i, a := range n.Args {
			args[i] = RewriteExpr(a, r)
		}
		rebuilt = &ast.FunctionCall{Callee: RewriteExpr(n.Callee, r), Args: args, Line: n.Line}
	case *ast.ConditionalExpression:
		rebuilt = &ast.ConditionalExpression{
			Cond: RewriteExpr(n.Cond, r), Then: RewriteExpr(n.Then, r), Else: RewriteExpr(n.Else, r), Line: n.Line,
		}
	case *ast.TableConstructor:
		elems := make([]ast.Expression, len(n.Elements))
		for i, el := range n.Elements {
			elems[i] = RewriteExpr(el, r)
		}
		rebuilt = &ast.TableConstructor{Elements: elems, Line: n.Line}
	case *ast.VectorConstructor:
		rebuilt = &ast.VectorConstructor{Size: RewriteExpr(n.Size, r), Line: n.Line}
	case *ast.Valof:
		rebuilt = &ast.Valof{Body: RewriteStmt(n.Body, r), Line: n.Line}
	case *ast.DereferenceExpr:
		rebuilt = &ast.DereferenceExpr{Ptr: RewriteExpr(n.Ptr, r), Line: n.Line}
	case *ast.VectorAccess:
		rebuilt = &ast.VectorAccess{Vec: RewriteExpr(n.Vec, r), Index: RewriteExpr(n.Index, r), Line: n.Line}
	case *ast.CharacterAccess:
		rebuilt = &ast.CharacterAccess{Str: RewriteExpr(n.Str, r), Index: RewriteExpr(n.Index, r), Line: n.Line}
	case *ast.NumberLiteral, *ast.FloatLiteral, *ast.StringLiteral, *ast.CharLiteral, *ast.VariableAccess:
		rebuilt = e
	default:
		rebuilt = e
	}
	return r.expr(rebuilt)
}
