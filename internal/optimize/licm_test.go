package optimize_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albanread/RevivalBCPL-sub000/internal/ast"
	"github.com/albanread/RevivalBCPL-sub000/internal/optimize"
	"github.com/albanread/RevivalBCPL-sub000/internal/parser"
)

func countLICMTemps(s ast.Statement) int {
	n := 0
	ast.WalkProgram(&ast.Program{Declarations: []ast.Declaration{&ast.FunctionDeclaration{Name: "_", StmtBody: s}}},
		ast.Visitor{Decl: func(d ast.Declaration) {
			if let, ok := d.(*ast.LetDeclaration); ok {
				for _, p := range let.Inits {
					if len(p.Name) > 5 && p.Name[:5] == "_licm" {
						n++
					}
				}
			}
		}})
	return n
}

func TestLICMHoistsInvariantExpression(t *testing.T) {
	prog, err := parser.Parse(`LET START() BE $( LET A = 1; LET B = 2; FOR I = 1 TO 10 DO $( LET T = A*B; WRITEN(T+I) $) $)`)
	require.NoError(t, err)
	hoisted := optimize.HoistLoopInvariants(prog)
	body := hoisted.Declarations[0].(*ast.FunctionDeclaration).StmtBody
	require.Equal(t, 1, countLICMTemps(body), "A*B does not depend on the loop counter and should be hoisted exactly once")
}

func TestLICMDoesNotHoistLoopVariant(t *testing.T) {
	prog, err := parser.Parse(`LET START() BE FOR I = 1 TO 10 DO WRITEN(I+1)`)
	require.NoError(t, err)
	hoisted := optimize.HoistLoopInvariants(prog)
	body := hoisted.Declarations[0].(*ast.FunctionDeclaration).StmtBody
	require.Equal(t, 0, countLICMTemps(body), "I+1 depends on the loop counter and must stay in the body")
}

func TestLICMDoesNotHoistSideEffectingCall(t *testing.T) {
	prog, err := parser.Parse(`LET START() BE $( LET A = 1; FOR I = 1 TO 10 DO WRITES("HI") $)`)
	require.NoError(t, err)
	hoisted := optimize.HoistLoopInvariants(prog)
	body := hoisted.Declarations[0].(*ast.FunctionDeclaration).StmtBody
	require.Equal(t, 0, countLICMTemps(body))
}
