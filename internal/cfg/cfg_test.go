package cfg_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albanread/RevivalBCPL-sub000/internal/ast"
	"github.com/albanread/RevivalBCPL-sub000/internal/cfg"
	"github.com/albanread/RevivalBCPL-sub000/internal/parser"
)

func parseBody(t *testing.T, fnSrc string) ast.Statement {
	t.Helper()
	prog, err := parser.Parse(fnSrc)
	require.NoError(t, err)
	fn := prog.Declarations[0].(*ast.FunctionDeclaration)
	if fn.StmtBody != nil {
		return fn.StmtBody
	}
	return fn.ExprBody.(*ast.Valof).Body
}

func TestCFGIfShape(t *testing.T) {
	body := parseBody(t, `LET START() BE $( IF X = 1 THEN Y := 2; Z := 3 $)`)
	g := cfg.Build(body)
	require.Greater(t, len(g.Blocks), 1)
	require.NotNil(t, g.Entry)
}

func TestCFGWhileHasBackEdge(t *testing.T) {
	body := parseBody(t, `LET START() BE WHILE X < 10 DO X := X + 1`)
	g := cfg.Build(body)
	var header *cfg.Block
	for _, b := range g.Blocks {
		if len(b.Statements) > 0 {
			if _, ok := b.Statements[0].(*ast.WhileStatement); ok {
				header = b
			}
		}
	}
	require.NotNil(t, header)
	found := false
	for _, s := range header.Pred {
		for _, succ := range s.Succ {
			if succ == header {
				found = true
			}
		}
	}
	require.True(t, found)
}

func TestCFGSwitchonFanOut(t *testing.T) {
	body := parseBody(t, `LET START() BE SWITCHON N INTO $( CASE 1: X := 1; CASE 2: X := 2; DEFAULT: X := 0 $)`)
	g := cfg.Build(body)
	var entry *cfg.Block = g.Entry
	require.Len(t, entry.Succ, 3)
}

func TestCFGReturnTerminates(t *testing.T) {
	body := parseBody(t, `LET START() BE $( X := 1; RETURN $)`)
	g := cfg.Build(body)
	require.NotEmpty(t, g.Blocks)
}

func TestCFGLabeledStatementRecordsBlock(t *testing.T) {
	body := parseBody(t, `LET START() BE $( X := 1; L: Y := 2; GOTO L $)`)
	g := cfg.Build(body)
	require.Contains(t, g.Labels, "L")
}
