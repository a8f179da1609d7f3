package optimize

import (
	"github.com/albanread/RevivalBCPL-sub000/internal/ast"
	"github.com/albanread/RevivalBCPL-sub000/internal/cfg"
	"github.com/albanread/RevivalBCPL-sub000/internal/liveness"
)

// EliminateDeadCode drops LetDeclaration bindings and single-name
// assignments whose target is not live after the statement, per the
// liveness result for each function body (spec §4.5 "Dead Code
// Elimination").
func EliminateDeadCode(p *ast.Program) *ast.Program {
	out := &ast.Program{Declarations: make([]ast.Declaration, len(p.Declarations))}
	for i, d := range p.Declarations {
		fn, ok := d.(*ast.FunctionDeclaration)
		if !ok {
			out.Declarations[i] = d
			continue
		}
		newFn := *fn
		if fn.StmtBody != nil {
			newFn.StmtBody = eliminateDeadCodeBody(fn.StmtBody)
		}
		if fn.ExprBody != nil {
			if valof, ok := fn.ExprBody.(*ast.Valof); ok {
				newFn.ExprBody = &ast.Valof{Body: eliminateDeadCodeBody(valof.Body), Line: valof.Line}
			}
		}
		out.Declarations[i] = &newFn
	}
	return out
}

func eliminateDeadCodeBody(body ast.Statement) ast.Statement {
	g := cfg.Build(body)
	res := liveness.Analyze(g)
	rewritten := dceStmt(body, res)
	if rewritten == nil {
		return &ast.CompoundStatement{}
	}
	return rewritten
}

// dceStmt rewrites s against res, which was computed over the
// original (unrewritten) tree s belongs to — every lookup of
// res.StmtOut therefore uses an original node as key. Returns nil when
// s should be removed entirely from its enclosing sequence.
func dceStmt(s ast.Statement, res *liveness.Result) ast.Statement {
	if s == nil {
		return nil
	}
	switch n := s.(type) {
	case *ast.CompoundStatement:
		children := make([]ast.Statement, 0, len(n.Children))
		for _, c := range n.Children {
			if rewritten := dceStmt(c, res); rewritten != nil {
				children = append(children, rewritten)
			}
		}
		return &ast.CompoundStatement{Children: children, Line: n.Line}

	case *ast.DeclarationStatement:
		let, ok := n.Decl.(*ast.LetDeclaration)
		if !ok {
			return n
		}
		out := res.StmtOut[s]
		keep := make([]ast.LetInitPair, 0, len(let.Inits))
		for _, p := range let.Inits {
			if out.Has(p.Name) {
				keep = append(keep, p)
			}
		}
		if len(keep) == 0 {
			return nil
		}
		return &ast.DeclarationStatement{Decl: &ast.LetDeclaration{Inits: keep, Line: let.Line}, Line: n.Line}

	case *ast.Assignment:
		if len(n.LHS) == 1 {
			if v, ok := n.LHS[0].(*ast.VariableAccess); ok {
				if out := res.StmtOut[s]; !out.Has(v.Name) {
					return &ast.CompoundStatement{Line: n.Line}
				}
			}
		}
		return n

	case *ast.IfStatement:
		return &ast.IfStatement{Cond: n.Cond, Then: dceStmt(n.Then, res), Line: n.Line}
	case *ast.TestStatement:
		return &ast.TestStatement{Cond: n.Cond, Then: dceStmt(n.Then, res), Else: dceStmt(n.Else, res), Line: n.Line}
	case *ast.WhileStatement:
		return &ast.WhileStatement{Cond: n.Cond, Body: dceStmt(n.Body, res), Line: n.Line}
	case *ast.RepeatStatement:
		return &ast.RepeatStatement{Body: dceStmt(n.Body, res), Cond: n.Cond, Kind: n.Kind, Line: n.Line}
	case *ast.ForStatement:
		return &ast.ForStatement{Var: n.Var, From: n.From, To: n.To, By: n.By, Body: dceStmt(n.Body, res), Line: n.Line}
	case *ast.SwitchonStatement:
		cases := make([]ast.SwitchCase, len(n.Cases))
		for i, c := range n.Cases {
			cases[i] = ast.SwitchCase{Key: c.Key, Body: dceStmt(c.Body, res)}
		}
		return &ast.SwitchonStatement{Discriminant: n.Discriminant, Cases: cases, Default: dceStmt(n.Default, res), Line: n.Line}
	case *ast.LabeledStatement:
		return &ast.LabeledStatement{Name: n.Name, Wrapped: dceStmt(n.Wrapped, res), Line: n.Line}
	default:
		return s
	}
}
