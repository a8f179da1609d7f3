package optimize

import "github.com/albanread/RevivalBCPL-sub000/internal/ast"

// inlineSizeBudget bounds how large a callee body may be before it is
// considered too expensive to duplicate at each call site (spec §4.5
// "Function Inlining").
const inlineSizeBudget = 40

func countNodes(fn *ast.FunctionDeclaration) int {
	n := 0
	v := ast.Visitor{
		Expr: func(ast.Expression) { n++ },
		Stmt: func(ast.Statement) { n++ },
	}
	if fn.ExprBody != nil {
		ast.WalkExpr(fn.ExprBody, v)
	}
	if fn.StmtBody != nil {
		ast.WalkStmt(fn.StmtBody, v)
	}
	return n
}

// isSelfRecursive reports whether fn's own name occurs anywhere in its
// body — any such occurrence, direct call or otherwise, disqualifies
// it from inlining (spec §4.5).
func isSelfRecursive(fn *ast.FunctionDeclaration) bool {
	found := false
	v := ast.Visitor{Expr: func(e ast.Expression) {
		if va, ok := e.(*ast.VariableAccess); ok && va.Name == fn.Name {
			found = true
		}
	}}
	if fn.ExprBody != nil {
		ast.WalkExpr(fn.ExprBody, v)
	}
	if fn.StmtBody != nil {
		ast.WalkStmt(fn.StmtBody, v)
	}
	return found
}

func eligibleForInline(fn *ast.FunctionDeclaration) bool {
	return !isSelfRecursive(fn) && countNodes(fn) <= inlineSizeBudget
}

// inlineExprBody produces the statement a callee's expression body
// reduces to once its formals are bound: the VALOF's own body when
// one exists, or a synthetic RESULTIS wrapping a plain expression body.
func inlineExprBody(target *ast.FunctionDeclaration) ast.Statement {
	if valof, ok := target.ExprBody.(*ast.Valof); ok {
		return ast.CloneStmt(valof.Body)
	}
	return &ast.ResultisStatement{Value: ast.CloneExpr(target.ExprBody)}
}

func bindFormals(params []string, args []ast.Expression) ast.Statement {
	inits := make([]ast.LetInitPair, len(params))
	for i, name := range params {
		inits[i] = ast.LetInitPair{Name: name, Init: args[i]}
	}
	return &ast.DeclarationStatement{Decl: &ast.LetDeclaration{Inits: inits}}
}

// InlineFunctions substitutes calls to small, non-recursive functions
// and routines with a copy of their body, formals bound via a LET
// placed ahead of the cloned body (spec §4.5 "Function Inlining").
func InlineFunctions(p *ast.Program) *ast.Program {
	idx := map[string]*ast.FunctionDeclaration{}
	for _, d := range p.Declarations {
		if fn, ok := d.(*ast.FunctionDeclaration); ok {
			idx[fn.Name] = fn
		}
	}

	var r Rewriter
	r.Expr = func(e ast.Expression) ast.Expression {
		call, ok := e.(*ast.FunctionCall)
		if !ok {
			return e
		}
		callee, ok := call.Callee.(*ast.VariableAccess)
		if !ok {
			return e
		}
		target, ok := idx[callee.Name]
		if !ok || target.ExprBody == nil || len(target.Params) != len(call.Args) || !eligibleForInline(target) {
			return e
		}
		return &ast.Valof{Body: &ast.CompoundStatement{Children: []ast.Statement{
			bindFormals(target.Params, call.Args),
			inlineExprBody(target),
		}}}
	}
	r.Stmt = func(s ast.Statement) ast.Statement {
		rc, ok := s.(*ast.RoutineCall)
		if !ok {
			return s
		}
		call, ok := rc.Call.(*ast.FunctionCall)
		if !ok {
			return s
		}
		callee, ok := call.Callee.(*ast.VariableAccess)
		if !ok {
			return s
		}
		target, ok := idx[callee.Name]
		if !ok || target.StmtBody == nil || len(target.Params) != len(call.Args) || !eligibleForInline(target) {
			return s
		}
		return &ast.CompoundStatement{Children: []ast.Statement{
			bindFormals(target.Params, call.Args),
			ast.CloneStmt(target.StmtBody),
		}}
	}
	return RewriteProgram(p, r)
}
