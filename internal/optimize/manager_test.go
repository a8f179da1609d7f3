package optimize_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albanread/RevivalBCPL-sub000/internal/ast"
	"github.com/albanread/RevivalBCPL-sub000/internal/optimize"
	"github.com/albanread/RevivalBCPL-sub000/internal/parser"
)

func TestPassManagerRunsInDeclaredOrder(t *testing.T) {
	pm := optimize.NewPassManager()
	require.Equal(t, []string{"fold", "cse", "dce", "licm", "loopspec", "inline"}, pm.Passes())
}

func TestPassManagerAppendExtendsPipeline(t *testing.T) {
	pm := optimize.NewPassManager()
	ran := false
	pm.Append(optimize.Pass{Name: "probe", Run: func(p *ast.Program) *ast.Program {
		ran = true
		return p
	}})
	prog, err := parser.Parse(`LET START() BE WRITES("HI")`)
	require.NoError(t, err)
	pm.Optimize(prog)
	require.True(t, ran)
	require.Equal(t, "probe", pm.Passes()[len(pm.Passes())-1])
}

func TestPassManagerEndToEndFoldsAndDropsDeadCode(t *testing.T) {
	pm := optimize.NewPassManager()
	prog, err := parser.Parse(`LET START() BE $( LET UNUSED = 2 + 3; WRITES("HI") $)`)
	require.NoError(t, err)
	out := pm.Optimize(prog)
	body := out.Declarations[0].(*ast.FunctionDeclaration).StmtBody.(*ast.CompoundStatement)
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
