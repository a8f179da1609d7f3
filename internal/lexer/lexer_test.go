package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albanread/RevivalBCPL-sub000/internal/lexer"
	"github.com/albanread/RevivalBCPL-sub000/internal/token"
)

func allTokens(t *testing.T, src string) []token.Token {
	t.Helper()
	l := lexer.New(src)
	var toks []token.Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks
}

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestLexerKeywordsAndIdents(t *testing.T) {
	toks := allTokens(t, "LET X = 2 + 3")
	require.Equal(t, []token.Kind{token.LET, token.Ident, token.Eq, token.IntLiteral, token.Plus, token.IntLiteral, token.EOF}, kinds(toks))
	require.Equal(t, "X", toks[1].Text)
	require.EqualValues(t, 2, toks[3].IntValue)
}

func TestLexerMaximalMunch(t *testing.T) {
	toks := allTokens(t, ":= -> << >> $( $) <=. +. .%")
	require.Equal(t, []token.Kind{
		token.Assign, token.Arrow, token.LShift, token.RShift,
		token.LBrace, token.RBrace, token.LeF, token.PlusF, token.PctFloat, token.EOF,
	}, kinds(toks))
}

func TestLexerNumberBases(t *testing.T) {
	toks := allTokens(t, "10 #17 #XFF 3.14 2E3")
	require.Equal(t, int64(10), toks[0].IntValue)
	require.Equal(t, int64(15), toks[1].IntValue) // octal 17 = 15
	require.Equal(t, int64(255), toks[2].IntValue)
	require.InDelta(t, 3.14, toks[3].FloatValue, 1e-9)
	require.Equal(t, token.FloatLiteral, toks[4].Kind)
}

func TestLexerStringEscapes(t *testing.T) {
	toks := allTokens(t, `"HI*nTHERE"`)
	require.Equal(t, token.StringLiteral, toks[0].Kind)
	require.Equal(t, "HI\nTHERE", toks[0].Text)
}

func TestLexerComments(t *testing.T) {
	toks := allTokens(t, "LET X = 1 // trailing comment\n/* block\ncomment */ BE")
	require.Equal(t, []token.Kind{token.LET, token.Ident, token.Eq, token.IntLiteral, token.BE, token.EOF}, kinds(toks))
}

func TestLexerDeterminism(t *testing.T) {
	src := `LET START() BE $( WRITES("HI"); NEWLINE() $)`
	a := allTokens(t, src)
	b := allTokens(t, src)
	require.Equal(t, a, b)
}

func TestLexerRestart(t *testing.T) {
	l := lexer.New("LET X")
	_, _ = l.Next()
	l.Reset("VEC 4")
	tok, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, token.VEC, tok.Kind)
	require.Equal(t, 1, tok.Line)
}

func TestLexerIllegalGlyph(t *testing.T) {
	l := lexer.New("LET X = `")
	for i := 0; i < 3; i++ {
		_, err := l.Next()
		require.NoError(t, err)
	}
	_, err := l.Next()
	require.Error(t, err)
}
