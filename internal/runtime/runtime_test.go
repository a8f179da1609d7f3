package runtime_test

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albanread/RevivalBCPL-sub000/internal/runtime"
)

func TestNewContextRegistersBuiltinSymbols(t *testing.T) {
	rt := runtime.NewContext()
	for _, name := range []string{"writes", "writen", "writef", "newline", "finish", "readn", "bcpl_vec", "bcpl_unpack_string", "bcpl_float", "bcpl_trunc"} {
		addr, ok := rt.Symbol(name)
		require.True(t, ok, "expected %s to be registered", name)
		require.NotZero(t, addr)
	}
	_, ok := rt.Symbol("not_a_symbol")
	require.False(t, ok)
}

func TestRegisterSymbolOverridesAddress(t *testing.T) {
	rt := runtime.NewContext()
	rt.RegisterSymbol("writes", 0xdead)
	addr, ok := rt.Symbol("writes")
	require.True(t, ok)
	require.Equal(t, uintptr(0xdead), addr)
}

func TestWritesStopsAtNullTerminator(t *testing.T) {
	rt := runtime.NewContext()
	var buf bytes.Buffer
	rt.SetOutput(&buf)

	require.NoError(t, rt.Writes([]int32{'h', 'i', 0, 'X'}))
	require.Equal(t, "hi", buf.String())
}

func TestWritenWritesDecimal(t *testing.T) {
	rt := runtime.NewContext()
	var buf bytes.Buffer
	rt.SetOutput(&buf)

	require.NoError(t, rt.Writen(-4200))
	require.Equal(t, "-4200", buf.String())
}

func TestNewlineWritesLineFeed(t *testing.T) {
	rt := runtime.NewContext()
	var buf bytes.Buffer
	rt.SetOutput(&buf)

	require.NoError(t, rt.Newline())
	require.Equal(t, "\n", buf.String())
}

func TestReadnParsesFromCurrentInput(t *testing.T) {
	rt := runtime.NewContext()
	rt.SetInput(strings.NewReader("  123 \n"))

	n, err := rt.Readn()
	require.NoError(t, err)
	require.Equal(t, int64(123), n)
}

func TestFinishFlushesAndCallsExit(t *testing.T) {
	rt := runtime.NewContext()
	var buf bytes.Buffer
	rt.SetOutput(&buf)
	require.NoError(t, rt.Writen(7))

	var gotCode int
	called := false
	rt.Exit = func(code int) {
		called = true
		gotCode = code
	}

	rt.Finish()
	require.True(t, called)
	require.Equal(t, 0, gotCode)
	require.Equal(t, "7", buf.String())
}

func TestBcplVecIsZeroedWithOneExtraElement(t *testing.T) {
	rt := runtime.NewContext()
	vec, err := rt.BcplVec(3)
	require.NoError(t, err)
	require.Len(t, vec, 4)
	for _, w := range vec {
		require.Zero(t, w)
	}
}

func TestBcplVecRejectsNegativeSize(t *testing.T) {
	rt := runtime.NewContext()
	_, err := rt.BcplVec(-1)
	require.Error(t, err)
}

func TestBcplUnpackStringWidensAndTerminates(t *testing.T) {
	rt := runtime.NewContext()
	out := rt.BcplUnpackString([]byte("AB"))
	require.Equal(t, []int32{'A', 'B', 0}, out)
}

func TestBcplFloatAndTruncRoundTrip(t *testing.T) {
	rt := runtime.NewContext()
	bits := int64(math.Float64bits(3.75))
	f := rt.BcplFloat(bits)
	require.Equal(t, 3.75, f)
	require.Equal(t, int64(3), rt.BcplTrunc(f))
	require.Equal(t, int64(-3), rt.BcplTrunc(-3.75))
}
