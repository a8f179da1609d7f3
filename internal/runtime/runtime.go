// Package runtime is the process-wide record generated code links
// against (spec §4.13): a symbol table mapping names to addresses, the
// mutable current-input/current-output stream holders, and the
// function-pointer thunks backing the I/O and memory primitives the
// runtime library exposes. Modeled on the teacher's `executionContext`/
// `moduleContext` pair in wazevo.go — one process-wide record. Generated
// code is not given a pointer to it: the code generator allocates X19
// as an ordinary callee-saved register and loads no context pointer.
package runtime

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Context is the single instance created once per compiled program.
// Its symbol table is mutex-protected because, although a compilation
// is single-threaded (spec §5), generated code invoked from multiple
// goroutines may look up symbols concurrently.
type Context struct {
	mu      sync.RWMutex
	symbols map[string]uintptr

	input  *bufio.Reader
	output *bufio.Writer

	// Exit is called by Finish; overridable so tests can observe
	// termination without killing the test process.
	Exit func(code int)

	allocMu     sync.Mutex
	allocations []interface{} // keeps bcpl_vec/bcpl_unpack_string results alive
}

// NewContext builds a runtime bound to the process's standard streams
// and registers every built-in thunk under its spec §4.13 symbol name.
func NewContext() *Context {
	rt := &Context{
		symbols: map[string]uintptr{},
		input:   bufio.NewReader(os.Stdin),
		output:  bufio.NewWriter(os.Stdout),
		Exit:    os.Exit,
	}
	rt.registerBuiltins()
	return rt
}

func (rt *Context) registerBuiltins() {
	// The addresses recorded here stand in for the trampoline stubs a
	// fully hosted JIT would generate to bridge a raw BL into these Go
	// closures; this compiler never executes generated code, so the
	// values are placeholders that make the symbol table linkage
	// structurally complete without a real calling-convention bridge.
	for i, name := range []string{"writes", "writen", "writef", "newline", "finish", "readn", "bcpl_vec", "bcpl_unpack_string", "bcpl_float", "bcpl_trunc"} {
		rt.RegisterSymbol(name, uintptr(0x1000+i*0x10))
	}
}

// RegisterSymbol binds name to addr in the symbol table generated code
// resolves external calls through (spec §4.13).
func (rt *Context) RegisterSymbol(name string, addr uintptr) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.symbols[name] = addr
}

// Symbol resolves name against the symbol table.
func (rt *Context) Symbol(name string) (uintptr, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	addr, ok := rt.symbols[name]
	return addr, ok
}

// SetInput replaces the current-input stream holder.
func (rt *Context) SetInput(r io.Reader) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.input = bufio.NewReader(r)
}

// SetOutput replaces the current-output stream holder.
func (rt *Context) SetOutput(w io.Writer) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.output = bufio.NewWriter(w)
}

// Writes writes a null-terminated sequence of 32-bit code points one
// byte at a time (spec §4.13), the BCPL string wire representation.
func (rt *Context) Writes(codepoints []int32) error {
	rt.mu.RLock()
	out := rt.output
	rt.mu.RUnlock()
	for _, cp := range codepoints {
		if cp == 0 {
			break
		}
		if err := out.WriteByte(byte(cp)); err != nil {
			return errors.Wrap(err, "runtime: writes failed")
		}
	}
	return out.Flush()
}

// Writen writes n's decimal representation.
func (rt *Context) Writen(n int64) error {
	rt.mu.RLock()
	out := rt.output
	rt.mu.RUnlock()
	if _, err := fmt.Fprintf(out, "%d", n); err != nil {
		return errors.Wrap(err, "runtime: writen failed")
	}
	return out.Flush()
}

// Newline writes a single line terminator.
func (rt *Context) Newline() error {
	rt.mu.RLock()
	out := rt.output
	rt.mu.RUnlock()
	if err := out.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "runtime: newline failed")
	}
	return out.Flush()
}

// Readn reads one decimal integer from the current-input stream.
func (rt *Context) Readn() (int64, error) {
	rt.mu.RLock()
	in := rt.input
	rt.mu.RUnlock()
	var n int64
	if _, err := fmt.Fscan(in, &n); err != nil {
		return 0, errors.Wrap(err, "runtime: readn failed")
	}
	return n, nil
}

// Finish terminates the process (spec §4.13 FINISH).
func (rt *Context) Finish() {
	rt.mu.RLock()
	out := rt.output
	rt.mu.RUnlock()
	_ = out.Flush()
	rt.Exit(0)
}

// BcplVec allocates a zero-initialized word vector of size+1 elements
// (element 0 plus size more, matching BCPL's 0-origin VEC semantics),
// 8-byte aligned, and keeps it alive for the lifetime of the context.
func (rt *Context) BcplVec(size int64) ([]int64, error) {
	if size < 0 {
		return nil, errors.New("runtime: bcpl_vec size must be non-negative")
	}
	vec := make([]int64, size+1)
	rt.keepAlive(vec)
	return vec, nil
}

// BcplUnpackString widens an 8-bit byte string into a null-terminated
// 32-bit code-point vector (spec §4.13 "8→32-bit string widening").
func (rt *Context) BcplUnpackString(packed []byte) []int32 {
	out := make([]int32, len(packed)+1)
	for i, b := range packed {
		out[i] = int32(b)
	}
	rt.keepAliveInt32(out)
	return out
}

// BcplFloat reinterprets n as the bit pattern of a float64 (this
// compiler carries floats in integer registers, spec §4.11).
func (rt *Context) BcplFloat(n int64) float64 {
	return math.Float64frombits(uint64(n))
}

// BcplTrunc truncates f to its integer part.
func (rt *Context) BcplTrunc(f float64) int64 {
	return int64(math.Trunc(f))
}

func (rt *Context) keepAlive(v []int64) {
	rt.allocMu.Lock()
	defer rt.allocMu.Unlock()
	rt.allocations = append(rt.allocations, v)
}

func (rt *Context) keepAliveInt32(v []int32) {
	rt.allocMu.Lock()
	defer rt.allocMu.Unlock()
	rt.allocations = append(rt.allocations, v)
}
