package optimize_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albanread/RevivalBCPL-sub000/internal/ast"
	"github.com/albanread/RevivalBCPL-sub000/internal/optimize"
	"github.com/albanread/RevivalBCPL-sub000/internal/parser"
)

func TestEliminateDeadCodeDropsUnusedLet(t *testing.T) {
	prog, err := parser.Parse(`LET START() BE $( LET UNUSED = 1; WRITES("HI") $)`)
	require.NoError(t, err)
	cleaned := optimize.EliminateDeadCode(prog)
	body := cleaned.Declarations[0].(*ast.FunctionDeclaration).StmtBody.(*ast.CompoundStatement)
	for _, s := range body.Children {
		if decl, ok := s.(*ast.DeclarationStatement); ok {
			if let, ok := decl.Decl.(*ast.LetDeclaration); ok {
				for _, p := range let.Inits {
					require.NotEqual(t, "UNUSED", p.Name)
				}
			}
		}
	}
}

func TestEliminateDeadCodeKeepsLiveLet(t *testing.T) {
	prog, err := parser.Parse(`LET START() BE $( LET X = 1; WRITEN(X) $)`)
	require.NoError(t, err)
	cleaned := optimize.EliminateDeadCode(prog)
	body := cleaned.Declarations[0].(*ast.FunctionDeclaration).StmtBody.(*ast.CompoundStatement)
	found := false
	for _, s := range body.Children {
		if decl, ok := s.(*ast.DeclarationStatement); ok {
			if let, ok := decl.Decl.(*ast.LetDeclaration); ok {
				for _, p := range let.Inits {
					if p.Name == "X" {
						found = true
					}
				}
			}
		}
	}
	require.True(t, found, "X is read by WRITEN and must survive DCE")
}

func TestEliminateDeadCodeDropsDeadReassignment(t *testing.T) {
	prog, err := parser.Parse(`LET START() BE $( LET X = 1; X := 2; WRITES("HI") $)`)
	require.NoError(t, err)
	cleaned := optimize.EliminateDeadCode(prog)
	body := cleaned.Declarations[0].(*ast.FunctionDeclaration).StmtBody.(*ast.CompoundStatement)
	for _, s := range body.Children {
		if assign, ok := s.(*ast.Assignment); ok {
			t.Fatalf("dead assignment %v should have been converted to an empty compound", assign)
		}
	}
}
