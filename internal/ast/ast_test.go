package ast_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albanread/RevivalBCPL-sub000/internal/ast"
	"github.com/albanread/RevivalBCPL-sub000/internal/token"
)

func sampleProgram() *ast.Program {
	return &ast.Program{Declarations: []ast.Declaration{
		&ast.ManifestDeclaration{Bindings: []ast.ManifestBinding{{Name: "MAX", Value: 100}}},
		&ast.FunctionDeclaration{
			Name:   "FACT",
			Params: []string{"N"},
			ExprBody: &ast.Valof{Body: &ast.CompoundStatement{Children: []ast.Statement{
				&ast.DeclarationStatement{Decl: &ast.LetDeclaration{Inits: []ast.LetInitPair{
					{Name: "R", Init: &ast.NumberLiteral{Value: 1}},
				}}},
				&ast.ForStatement{
					Var:  "I",
					From: &ast.NumberLiteral{Value: 2},
					To:   &ast.VariableAccess{Name: "N"},
					Body: &ast.Assignment{
						LHS: []ast.Expression{&ast.VariableAccess{Name: "R"}},
						RHS: []ast.Expression{&ast.BinaryOp{
							Op: token.Star, Left: &ast.VariableAccess{Name: "R"}, Right: &ast.VariableAccess{Name: "I"},
						}},
					},
				},
				&ast.ResultisStatement{Value: &ast.VariableAccess{Name: "R"}},
			}}},
		},
	}}
}

func TestCloneStructuralEquality(t *testing.T) {
	p := sampleProgram()
	clone := ast.CloneProgram(p)
	require.Equal(t, p, clone)
}

func TestCloneIsDeepCopy(t *testing.T) {
	p := sampleProgram()
	clone := ast.CloneProgram(p)

	fn := p.Declarations[1].(*ast.FunctionDeclaration)
	fnClone := clone.Declarations[1].(*ast.FunctionDeclaration)
	require.NotSame(t, fn, fnClone)

	fn.Name = "MUTATED"
	require.Equal(t, "FACT", fnClone.Name)
}

func TestWalkVisitsEveryVariableAccess(t *testing.T) {
	p := sampleProgram()
	var names []string
	ast.WalkProgram(p, ast.Visitor{
		Expr: func(e ast.Expression) {
			if v, ok := e.(*ast.VariableAccess); ok {
				names = append(names, v.Name)
			}
		},
	})
	require.Contains(t, names, "N")
	require.Contains(t, names, "R")
	require.Contains(t, names, "I")
}
