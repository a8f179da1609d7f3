package codegen

import (
	"math"
	"sort"

	"github.com/albanread/RevivalBCPL-sub000/internal/ast"
	"github.com/albanread/RevivalBCPL-sub000/internal/codegen/arm64"
	"github.com/albanread/RevivalBCPL-sub000/internal/diag"
	"github.com/albanread/RevivalBCPL-sub000/internal/token"
)

// builtinSymbol maps an upper-case BCPL runtime call name to the
// lower-case symbol the runtime registers (spec §4.13).
var builtinSymbol = map[string]string{
	"WRITES":  "writes",
	"WRITEN":  "writen",
	"WRITEF":  "writef",
	"NEWLINE": "newline",
	"FINISH":  "finish",
	"READN":   "readn",
}

// Generator drives instruction emission from an optimized program
// (spec §4.11), wiring together the label manager, register manager,
// scratch allocator, and instruction stream for each function in turn.
type Generator struct {
	stream *Stream
	lm     *LabelManager

	manifests map[string]int64

	rm          *RegisterManager
	scratch     *ScratchAllocator
	slots       map[string]int64
	currentFunc string
	returnLabel string
	frameTop    int64

	stringLiterals map[string]string
}

// NewGenerator constructs an empty generator sharing one stream and
// label manager across the whole program, matching the single-pass,
// single-threaded pipeline of spec §5.
func NewGenerator() *Generator {
	return &Generator{
		stream:         NewStream(),
		lm:             NewLabelManager(),
		manifests:      map[string]int64{},
		stringLiterals: map[string]string{},
	}
}

// GenerateProgram lowers every function declaration in p into g's
// instruction stream and resolves all internal branches.
func (g *Generator) GenerateProgram(p *ast.Program) (*Stream, error) {
	for _, d := range p.Declarations {
		switch n := d.(type) {
		case *ast.ManifestDeclaration:
			for _, b := range n.Bindings {
				g.manifests[b.Name] = b.Value
			}
		case *ast.FunctionDeclaration:
			label := g.lm.Fresh("Lfn_" + n.Name + "_")
			if err := g.lm.DefineGlobal(n.Name, label); err != nil {
				return nil, err
			}
		}
	}
	for _, d := range p.Declarations {
		if fn, ok := d.(*ast.FunctionDeclaration); ok {
			if err := g.genFunction(fn); err != nil {
				return nil, err
			}
		}
	}
	// Interned string literals follow the code, each labelled with its
	// symbol and stored as zero-terminated 32-bit code-point words.
	values := make([]string, 0, len(g.stringLiterals))
	for v := range g.stringLiterals {
		values = append(values, v)
	}
	sort.Strings(values)
	for _, v := range values {
		g.stream.TagNextLabel(g.stringLiterals[v])
		for _, r := range v {
			g.stream.append(&Instr{Mnemonic: ".word", Word: uint32(r)})
		}
		g.stream.append(&Instr{Mnemonic: ".word"})
	}
	g.stream.AssignAddresses(0)
	if err := g.stream.ResolveBranches(); err != nil {
		return nil, err
	}
	return g.stream, nil
}

func (g *Generator) allocSlot() int64 {
	off := g.frameTop
	g.frameTop += 8
	return off
}

func alignUp16(n int64) int64 {
	return (n + 15) &^ 15
}

func (g *Generator) genFunction(fn *ast.FunctionDeclaration) error {
	label, _ := g.lm.Lookup(fn.Name)
	g.stream.TagNextLabel(label)

	g.returnLabel = g.lm.EnterFunction(fn.Name)
	defer g.lm.Exit()

	g.rm = NewRegisterManager(g.stream)
	g.scratch = NewScratchAllocator()
	g.slots = map[string]int64{}
	g.currentFunc = fn.Name
	g.frameTop = 16 // [FP,#0] holds the saved X29/X30 pair.

	subSPIdx := g.stream.SUBImm(arm64.SP, arm64.SP, 0)
	stpIdx := g.stream.STP(arm64.FP, arm64.LR, arm64.SP, 0)
	g.stream.MOV(arm64.FP, arm64.SP)

	if len(fn.Params) > 8 {
		return diag.New(diag.Semantic, "function %q: more than 8 parameters is not supported", fn.Name)
	}
	for i, p := range fn.Params {
		slot := g.allocSlot()
		g.slots[p] = slot
		g.rm.AssignParameter(p, i, slot)
		// Open Question #1 (DESIGN.md): store every incoming parameter
		// to its stack home immediately, rather than trust the register
		// manager to never evict an unread parameter.
		g.stream.STR(i, arm64.FP, slot)
	}

	if fn.StmtBody != nil {
		if err := g.genStmt(fn.StmtBody); err != nil {
			return err
		}
	} else {
		if err := g.genExprX0(fn.ExprBody); err != nil {
			return err
		}
	}

	g.stream.TagNextLabel(g.returnLabel)
	g.rm.SpillAllDirty()
	g.stream.LDP(arm64.FP, arm64.LR, arm64.SP, 0)
	addSPIdx := g.stream.ADDImm(arm64.SP, arm64.SP, 0)
	g.stream.RET()

	if !g.scratch.Balanced() {
		return diag.New(diag.Semantic, "function %q: scratch registers leaked across body lowering", fn.Name)
	}

	frameSize := alignUp16(g.frameTop)
	g.stream.Instrs[subSPIdx].Word = arm64.AddSubImm(true, arm64.SP, arm64.SP, uint32(frameSize))
	g.stream.Instrs[stpIdx].Word = arm64.StpPair(arm64.FP, arm64.LR, arm64.SP, 0)
	g.stream.Instrs[addSPIdx].Word = arm64.AddSubImm(false, arm64.SP, arm64.SP, uint32(frameSize))
	return nil
}

// ---- statement lowering ----

func (g *Generator) genStmt(s ast.Statement) error {
	switch n := s.(type) {
	case *ast.CompoundStatement:
		for _, child := range n.Children {
			if err := g.genStmt(child); err != nil {
				return err
			}
		}
		return nil

	case *ast.Assignment:
		return g.genAssignment(n)

	case *ast.RoutineCall:
		_, err := g.genExprValue(n.Call)
		return err

	case *ast.IfStatement:
		if err := g.genExprX0(n.Cond); err != nil {
			return err
		}
		end := g.lm.Fresh("Lifend_")
		g.stream.CBZ(0, end)
		if err := g.genStmt(n.Then); err != nil {
			return err
		}
		g.stream.TagNextLabel(end)
		return nil

	case *ast.TestStatement:
		if err := g.genExprX0(n.Cond); err != nil {
			return err
		}
		elseLabel := g.lm.Fresh("Ltestelse_")
		end := g.lm.Fresh("Ltestend_")
		g.stream.CMP(0, arm64.ZR)
		g.stream.BCond(arm64.EQ, elseLabel)
		if err := g.genStmt(n.Then); err != nil {
			return err
		}
		g.stream.B(end)
		g.stream.TagNextLabel(elseLabel)
		if n.Else != nil {
			if err := g.genStmt(n.Else); err != nil {
				return err
			}
		}
		g.stream.TagNextLabel(end)
		return nil

	case *ast.WhileStatement:
		repeat, exit := g.lm.EnterLoop()
		defer g.lm.Exit()
		g.stream.TagNextLabel(repeat)
		if err := g.genExprX0(n.Cond); err != nil {
			return err
		}
		g.stream.CBZ(0, exit)
		if err := g.genStmt(n.Body); err != nil {
			return err
		}
		g.stream.B(repeat)
		g.stream.TagNextLabel(exit)
		return nil

	case *ast.RepeatStatement:
		return g.genRepeat(n)

	case *ast.ForStatement:
		return g.genFor(n)

	case *ast.SwitchonStatement:
		return g.genSwitchon(n)

	case *ast.BreakStatement:
		target, err := g.lm.BreakTarget()
		if err != nil {
			return err
		}
		g.stream.B(target)
		return nil

	case *ast.LoopStatement:
		target, err := g.lm.LoopTarget()
		if err != nil {
			return err
		}
		g.stream.B(target)
		return nil

	case *ast.EndcaseStatement:
		target, err := g.lm.EndcaseTarget()
		if err != nil {
			return err
		}
		g.stream.B(target)
		return nil

	case *ast.FinishStatement:
		g.stream.BLExternal(builtinSymbol["FINISH"])
		return nil

	case *ast.ReturnStatement:
		target, err := g.lm.ReturnTarget()
		if err != nil {
			return err
		}
		g.stream.B(target)
		return nil

	case *ast.ResultisStatement:
		return g.genResultis(n)

	case *ast.GotoStatement:
		name, ok := n.Label.(*ast.VariableAccess)
		if !ok {
			return diag.New(diag.Semantic, "GOTO target must be a label name")
		}
		g.stream.B(g.userLabel(name.Name))
		return nil

	case *ast.LabeledStatement:
		label := g.userLabel(n.Name)
		if err := g.lm.DefineLocal(n.Name, label); err != nil {
			return err
		}
		g.stream.TagNextLabel(label)
		return g.genStmt(n.Wrapped)

	case *ast.DeclarationStatement:
		return g.genDeclStmt(n.Decl)

	default:
		return diag.New(diag.Semantic, "codegen: unsupported statement %T", s)
	}
}

// userLabel synthesizes a deterministic, function-scoped name for a
// source-level GOTO label so a forward GOTO can reference it before the
// corresponding LabeledStatement has been lowered.
func (g *Generator) userLabel(name string) string {
	return "Luser_" + g.currentFunc + "_" + name
}

func (g *Generator) genDeclStmt(d ast.Declaration) error {
	switch n := d.(type) {
	case *ast.LetDeclaration:
		for _, init := range n.Inits {
			slot := g.allocSlot()
			g.slots[init.Name] = slot
			reg, err := g.rm.AcquireForInit(init.Name, slot)
			if err != nil {
				return err
			}
			if err := g.genExprX0(init.Init); err != nil {
				return err
			}
			if reg != 0 {
				g.stream.MOV(reg, 0)
			}
			g.rm.MarkDirty(init.Name)
		}
		return nil
	case *ast.ManifestDeclaration:
		for _, b := range n.Bindings {
			g.manifests[b.Name] = b.Value
		}
		return nil
	case *ast.GlobalDeclaration, *ast.GetDirective:
		return nil
	default:
		return diag.New(diag.Semantic, "codegen: unsupported nested declaration %T", d)
	}
}

func (g *Generator) genAssignment(n *ast.Assignment) error {
	if len(n.LHS) != len(n.RHS) {
		return diag.New(diag.Semantic, "assignment: mismatched LHS/RHS count")
	}
	if len(n.LHS) == 1 {
		if err := g.genExprX0(n.RHS[0]); err != nil {
			return err
		}
		return g.genStore(n.LHS[0], 0)
	}
	// Simultaneous assignment: every RHS is evaluated before any store,
	// so each value needs its own scratch home until all stores land.
	held := make([]int, len(n.RHS))
	for i, rhs := range n.RHS {
		if err := g.genExprX0(rhs); err != nil {
			return err
		}
		reg, err := g.scratch.Acquire()
		if err != nil {
			return err
		}
		g.stream.MOV(reg, 0)
		held[i] = reg
	}
	for i, lhs := range n.LHS {
		g.stream.MOV(0, held[i])
		if err := g.genStore(lhs, 0); err != nil {
			return err
		}
		g.scratch.Release(held[i])
	}
	return nil
}

// genStore writes the value in srcReg to lhs's home.
func (g *Generator) genStore(lhs ast.Expression, srcReg int) error {
	switch n := lhs.(type) {
	case *ast.VariableAccess:
		if _, ok := g.manifests[n.Name]; ok {
			return diag.New(diag.Semantic, "cannot assign to manifest constant %q", n.Name)
		}
		slot, ok := g.slots[n.Name]
		if !ok {
			return diag.New(diag.Semantic, "assignment to undeclared name %q", n.Name)
		}
		reg, err := g.rm.Acquire(n.Name, slot)
		if err != nil {
			return err
		}
		if reg != srcReg {
			g.stream.MOV(reg, srcReg)
		}
		g.rm.MarkDirty(n.Name)
		return nil
	case *ast.DereferenceExpr:
		addrReg, err := g.scratch.Acquire()
		if err != nil {
			return err
		}
		valReg, err := g.scratch.Acquire()
		if err != nil {
			return err
		}
		g.stream.MOV(valReg, srcReg)
		if err := g.genExprX0(n.Ptr); err != nil {
			return err
		}
		g.stream.MOV(addrReg, 0)
		g.stream.STR(valReg, addrReg, 0)
		g.scratch.Release(valReg)
		g.scratch.Release(addrReg)
		return nil
	case *ast.VectorAccess:
		return g.genSubscriptStore(n.Vec, n.Index, 3, srcReg)
	case *ast.CharacterAccess:
		return g.genSubscriptStore(n.Str, n.Index, 2, srcReg)
	default:
		return diag.New(diag.Semantic, "codegen: assignment to an unassignable expression %T", lhs)
	}
}

func (g *Generator) genSubscriptStore(base, index ast.Expression, scale uint32, srcReg int) error {
	valReg, err := g.scratch.Acquire()
	if err != nil {
		return err
	}
	g.stream.MOV(valReg, srcReg)
	baseReg, err := g.scratch.Acquire()
	if err != nil {
		return err
	}
	if err := g.genExprX0(base); err != nil {
		return err
	}
	g.stream.MOV(baseReg, 0)
	if err := g.genExprX0(index); err != nil {
		return err
	}
	g.stream.LSL(0, 0, scale)
	g.stream.ADDReg(0, baseReg, 0)
	g.stream.STR(valReg, 0, 0)
	g.scratch.Release(baseReg)
	g.scratch.Release(valReg)
	return nil
}

func (g *Generator) genRepeat(n *ast.RepeatStatement) error {
	repeat, exit := g.lm.EnterLoop()
	defer g.lm.Exit()
	g.stream.TagNextLabel(repeat)
	if err := g.genStmt(n.Body); err != nil {
		return err
	}
	switch n.Kind {
	case ast.RepeatUnconditional:
		g.stream.B(repeat)
	case ast.RepeatWhile:
		if err := g.genExprX0(n.Cond); err != nil {
			return err
		}
		g.stream.CMP(0, arm64.ZR)
		g.stream.BCond(arm64.NE, repeat)
	case ast.RepeatUntil:
		if err := g.genExprX0(n.Cond); err != nil {
			return err
		}
		g.stream.CMP(0, arm64.ZR)
		g.stream.BCond(arm64.EQ, repeat)
	}
	g.stream.TagNextLabel(exit)
	return nil
}

func (g *Generator) genFor(n *ast.ForStatement) error {
	varSlot := g.allocSlot()
	g.slots[n.Var] = varSlot
	varReg, err := g.rm.AcquireForInit(n.Var, varSlot)
	if err != nil {
		return err
	}
	if err := g.genExprX0(n.From); err != nil {
		return err
	}
	if varReg != 0 {
		g.stream.MOV(varReg, 0)
	}
	g.rm.MarkDirty(n.Var)

	toReg, err := g.scratch.Acquire()
	if err != nil {
		return err
	}
	if err := g.genExprX0(n.To); err != nil {
		return err
	}
	g.stream.MOV(toReg, 0)

	byReg, err := g.scratch.Acquire()
	if err != nil {
		return err
	}
	if n.By != nil {
		if err := g.genExprX0(n.By); err != nil {
			return err
		}
		g.stream.MOV(byReg, 0)
	} else {
		g.stream.LoadImmediate(byReg, 1)
	}

	repeat, exit := g.lm.EnterLoop()
	g.stream.TagNextLabel(repeat)
	varReg, err = g.rm.Acquire(n.Var, varSlot)
	if err != nil {
		g.lm.Exit()
		return err
	}
	g.stream.CMP(varReg, toReg)
	g.stream.BCond(arm64.GT, exit)
	if err := g.genStmt(n.Body); err != nil {
		g.lm.Exit()
		return err
	}
	varReg, err = g.rm.Acquire(n.Var, varSlot)
	if err != nil {
		g.lm.Exit()
		return err
	}
	g.stream.ADDReg(varReg, varReg, byReg)
	g.rm.MarkDirty(n.Var)
	g.stream.B(repeat)
	g.stream.TagNextLabel(exit)
	g.lm.Exit()

	g.scratch.Release(byReg)
	g.scratch.Release(toReg)
	g.rm.ReleaseWithoutSpill(n.Var)
	return nil
}

func caseBodyLabel(lm *LabelManager, key int64) string {
	return lm.Fresh("Lcase_")
}

func (g *Generator) genSwitchon(n *ast.SwitchonStatement) error {
	if err := g.genExprX0(n.Discriminant); err != nil {
		return err
	}
	discReg, err := g.scratch.Acquire()
	if err != nil {
		return err
	}
	g.stream.MOV(discReg, 0)

	endcaseLabel, endLabel := g.lm.EnterSwitchon()
	defer g.lm.Exit()

	sorted := append([]ast.SwitchCase(nil), n.Cases...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	caseLabels := make([]string, len(sorted))
	for i := range sorted {
		caseLabels[i] = caseBodyLabel(g.lm, sorted[i].Key)
	}

	defaultLabel := endcaseLabel
	hasDefault := n.Default != nil
	if hasDefault {
		defaultLabel = g.lm.Fresh("Lswdefault_")
	}

	if len(sorted) > 0 && isDenseSwitch(sorted) {
		if err := g.genSwitchDense(discReg, sorted, caseLabels, defaultLabel); err != nil {
			g.scratch.Release(discReg)
			return err
		}
	} else {
		g.genSwitchBinary(discReg, sorted, caseLabels, defaultLabel)
	}
	g.scratch.Release(discReg)

	for i, c := range sorted {
		g.stream.TagNextLabel(caseLabels[i])
		if err := g.genStmt(c.Body); err != nil {
			return err
		}
		g.stream.B(endLabel)
	}

	if hasDefault {
		g.stream.TagNextLabel(defaultLabel)
		if err := g.genStmt(n.Default); err != nil {
			return err
		}
		g.stream.B(endLabel)
	}

	g.stream.TagNextLabel(endcaseLabel)
	g.stream.B(endLabel)
	g.stream.TagNextLabel(endLabel)
	return nil
}

// isDenseSwitch applies the Open-Question threshold recorded in
// DESIGN.md: a jump table pays off when the key range isn't much wider
// than the case count.
func isDenseSwitch(sorted []ast.SwitchCase) bool {
	min, max := sorted[0].Key, sorted[len(sorted)-1].Key
	n := int64(len(sorted))
	return max-min <= 4*n+8
}

func (g *Generator) genSwitchDense(discReg int, sorted []ast.SwitchCase, caseLabels []string, defaultLabel string) error {
	min := sorted[0].Key
	max := sorted[len(sorted)-1].Key

	keyLabel := map[int64]string{}
	for i, c := range sorted {
		keyLabel[c.Key] = caseLabels[i]
	}

	baseReg, err := g.scratch.Acquire()
	if err != nil {
		return err
	}
	g.stream.SUBImm(baseReg, discReg, uint32(min))

	boundReg, err := g.scratch.Acquire()
	if err != nil {
		return err
	}
	g.stream.LoadImmediate(boundReg, max-min)
	g.stream.CMP(baseReg, boundReg)
	g.stream.BCond(arm64.HI, defaultLabel)
	g.scratch.Release(boundReg)

	tableLabel := g.lm.Fresh("Ljumptable_")
	adrReg, err := g.scratch.Acquire()
	if err != nil {
		return err
	}
	g.stream.ADR(adrReg, tableLabel)
	shiftReg, err := g.scratch.Acquire()
	if err != nil {
		return err
	}
	g.stream.LSL(shiftReg, baseReg, 2)
	g.stream.ADDReg(adrReg, adrReg, shiftReg)
	g.stream.BR(adrReg)
	g.scratch.Release(shiftReg)
	g.scratch.Release(adrReg)
	g.scratch.Release(baseReg)

	g.stream.TagNextLabel(tableLabel)
	for key := min; key <= max; key++ {
		if lbl, ok := keyLabel[key]; ok {
			g.stream.B(lbl)
		} else {
			g.stream.B(defaultLabel)
		}
	}
	return nil
}

func (g *Generator) genSwitchBinary(discReg int, sorted []ast.SwitchCase, caseLabels []string, defaultLabel string) {
	var search func(lo, hi int)
	search = func(lo, hi int) {
		if lo > hi {
			g.stream.B(defaultLabel)
			return
		}
		mid := (lo + hi) / 2
		keyReg, err := g.scratch.Acquire()
		if err != nil {
			g.stream.B(defaultLabel)
			return
		}
		g.stream.LoadImmediate(keyReg, sorted[mid].Key)
		g.stream.CMP(discReg, keyReg)
		g.scratch.Release(keyReg)
		g.stream.BCond(arm64.EQ, caseLabels[mid])
		if lo == hi {
			g.stream.B(defaultLabel)
			return
		}
		ltLabel := g.lm.Fresh("Lswlt_")
		g.stream.BCond(arm64.LT, ltLabel)
		search(mid+1, hi)
		g.stream.TagNextLabel(ltLabel)
		search(lo, mid-1)
	}
	search(0, len(sorted)-1)
}

func (g *Generator) genResultis(n *ast.ResultisStatement) error {
	if call, ok := n.Value.(*ast.FunctionCall); ok {
		if callee, ok := call.Callee.(*ast.VariableAccess); ok && callee.Name == g.currentFunc {
			if err := g.genCallArgs(call.Args); err != nil {
				return err
			}
			entry, _ := g.lm.Lookup(g.currentFunc)
			g.stream.B(entry)
			return nil
		}
	}
	if err := g.genExprX0(n.Value); err != nil {
		return err
	}
	target, err := g.lm.ResultisTarget()
	if err != nil {
		return err
	}
	g.stream.B(target)
	return nil
}

// ---- expression lowering ----

// genExprX0 evaluates e, leaving the result in X0 (spec §4.11 "Body").
func (g *Generator) genExprX0(e ast.Expression) error {
	_, err := g.genExprValue(e)
	return err
}

// genExprValue evaluates e and returns the register (always 0, X0)
// holding the result; the explicit return keeps call sites uniform
// with genStore's srcReg convention.
func (g *Generator) genExprValue(e ast.Expression) (int, error) {
	switch n := e.(type) {
	case *ast.NumberLiteral:
		g.stream.LoadImmediate(0, n.Value)
		return 0, nil
	case *ast.CharLiteral:
		g.stream.LoadImmediate(0, n.Value)
		return 0, nil
	case *ast.FloatLiteral:
		g.stream.LoadImmediate(0, int64(math.Float64bits(n.Value)))
		return 0, nil
	case *ast.StringLiteral:
		sym := g.internString(n.Value)
		g.stream.ADR(0, sym)
		return 0, nil
	case *ast.VariableAccess:
		return 0, g.genVariableRead(n.Name)
	case *ast.UnaryOp:
		return 0, g.genUnary(n)
	case *ast.BinaryOp:
		return 0, g.genBinary(n)
	case *ast.FunctionCall:
		return 0, g.genCall(n)
	case *ast.ConditionalExpression:
		return 0, g.genConditional(n)
	case *ast.Valof:
		return 0, g.genValof(n)
	case *ast.DereferenceExpr:
		return 0, g.genDereference(n)
	case *ast.VectorAccess:
		return 0, g.genSubscriptLoad(n.Vec, n.Index, 3)
	case *ast.CharacterAccess:
		return 0, g.genSubscriptLoad(n.Str, n.Index, 2)
	case *ast.VectorConstructor:
		if err := g.genExprX0(n.Size); err != nil {
			return 0, err
		}
		g.stream.BLExternal("bcpl_vec")
		return 0, nil
	case *ast.TableConstructor:
		return 0, diag.New(diag.Semantic, "codegen: inline table constructors are not supported")
	default:
		return 0, diag.New(diag.Semantic, "codegen: unsupported expression %T", e)
	}
}

func (g *Generator) internString(value string) string {
	if sym, ok := g.stringLiterals[value]; ok {
		return sym
	}
	sym := g.lm.Fresh("Lstr_")
	g.stringLiterals[value] = sym
	return sym
}

func (g *Generator) genVariableRead(name string) error {
	if v, ok := g.manifests[name]; ok {
		g.stream.LoadImmediate(0, v)
		return nil
	}
	slot, ok := g.slots[name]
	if !ok {
		if label, ok := g.lm.Lookup(name); ok {
			g.stream.ADR(0, label)
			return nil
		}
		return diag.New(diag.Semantic, "reference to undeclared name %q", name)
	}
	reg, err := g.rm.Acquire(name, slot)
	if err != nil {
		return err
	}
	if reg != 0 {
		g.stream.MOV(0, reg)
	}
	return nil
}

func (g *Generator) genUnary(n *ast.UnaryOp) error {
	if n.Op == token.AddrOf {
		va, ok := n.Child.(*ast.VariableAccess)
		if !ok {
			return diag.New(diag.Semantic, "codegen: @ is only supported on a plain variable")
		}
		slot, ok := g.slots[va.Name]
		if !ok {
			return diag.New(diag.Semantic, "@ of undeclared name %q", va.Name)
		}
		g.stream.ADDImm(0, arm64.FP, uint32(slot))
		return nil
	}
	if err := g.genExprX0(n.Child); err != nil {
		return err
	}
	switch n.Op {
	case token.Minus:
		g.stream.NEG(0, 0)
	case token.Not:
		allOnes, err := g.scratch.Acquire()
		if err != nil {
			return err
		}
		g.stream.LoadImmediate(allOnes, -1)
		g.stream.EOR(0, 0, allOnes)
		g.scratch.Release(allOnes)
	default:
		return diag.New(diag.Semantic, "codegen: unsupported unary operator %s", n.Op)
	}
	return nil
}

func (g *Generator) genDereference(n *ast.DereferenceExpr) error {
	if err := g.genExprX0(n.Ptr); err != nil {
		return err
	}
	g.stream.LDR(0, 0, 0)
	return nil
}

func (g *Generator) genSubscriptLoad(base, index ast.Expression, scale uint32) error {
	if err := g.genExprX0(base); err != nil {
		return err
	}
	baseReg, err := g.scratch.Acquire()
	if err != nil {
		return err
	}
	g.stream.MOV(baseReg, 0)
	if err := g.genExprX0(index); err != nil {
		g.scratch.Release(baseReg)
		return err
	}
	g.stream.LSL(0, 0, scale)
	g.stream.ADDReg(0, baseReg, 0)
	g.stream.LDR(0, 0, 0)
	g.scratch.Release(baseReg)
	return nil
}

func (g *Generator) genConditional(n *ast.ConditionalExpression) error {
	if err := g.genExprX0(n.Cond); err != nil {
		return err
	}
	elseLabel := g.lm.Fresh("Lcondelse_")
	end := g.lm.Fresh("Lcondend_")
	g.stream.CBZ(0, elseLabel)
	if err := g.genExprX0(n.Then); err != nil {
		return err
	}
	g.stream.B(end)
	g.stream.TagNextLabel(elseLabel)
	if err := g.genExprX0(n.Else); err != nil {
		return err
	}
	g.stream.TagNextLabel(end)
	return nil
}

func (g *Generator) genValof(n *ast.Valof) error {
	resultis, _ := g.lm.EnterValof()
	defer g.lm.Exit()
	if err := g.genStmt(n.Body); err != nil {
		return err
	}
	g.stream.TagNextLabel(resultis)
	return nil
}

var condFor = map[token.Kind]arm64.Cond{
	token.Eq: arm64.EQ, token.Ne: arm64.NE,
	token.Lt: arm64.LT, token.Le: arm64.LE,
	token.Gt: arm64.GT, token.Ge: arm64.GE,
	token.EqF: arm64.EQ, token.NeF: arm64.NE,
	token.LtF: arm64.LT, token.LeF: arm64.LE,
	token.GtF: arm64.GT, token.GeF: arm64.GE,
}

func asLiteralShift(e ast.Expression) (uint32, bool) {
	switch n := e.(type) {
	case *ast.NumberLiteral:
		return uint32(n.Value), true
	case *ast.CharLiteral:
		return uint32(n.Value), true
	}
	return 0, false
}

func (g *Generator) genBinary(n *ast.BinaryOp) error {
	if err := g.genExprX0(n.Left); err != nil {
		return err
	}
	leftReg, err := g.scratch.Acquire()
	if err != nil {
		return err
	}
	g.stream.MOV(leftReg, 0)
	if err := g.genExprX0(n.Right); err != nil {
		g.scratch.Release(leftReg)
		return err
	}

	defer g.scratch.Release(leftReg)

	switch n.Op {
	case token.Plus, token.PlusF:
		g.stream.ADDReg(0, leftReg, 0)
	case token.Minus, token.MinusF:
		g.stream.SUBReg(0, leftReg, 0)
	case token.Star, token.StarF:
		g.stream.MUL(0, leftReg, 0)
	case token.Slash, token.SlashF:
		g.stream.SDIV(0, leftReg, 0)
	case token.Rem:
		q, err := g.scratch.Acquire()
		if err != nil {
			return err
		}
		g.stream.SDIV(q, leftReg, 0)
		g.stream.MSUB(0, q, 0, leftReg)
		g.scratch.Release(q)
	case token.And:
		g.stream.AND(0, leftReg, 0)
	case token.Or:
		g.stream.ORR(0, leftReg, 0)
	case token.Eqv, token.Neqv:
		g.stream.EOR(0, leftReg, 0)
		if n.Op == token.Eqv {
			allOnes, err := g.scratch.Acquire()
			if err != nil {
				return err
			}
			g.stream.LoadImmediate(allOnes, -1)
			g.stream.EOR(0, 0, allOnes)
			g.scratch.Release(allOnes)
		}
	case token.LShift:
		shift, ok := asLiteralShift(n.Right)
		if !ok {
			return diag.New(diag.Semantic, "codegen: << requires a literal shift amount")
		}
		g.stream.LSL(0, leftReg, shift)
	case token.RShift:
		shift, ok := asLiteralShift(n.Right)
		if !ok {
			return diag.New(diag.Semantic, "codegen: >> requires a literal shift amount")
		}
		g.stream.LSR(0, leftReg, shift)
	case token.Eq, token.Ne, token.Lt, token.Le, token.Gt, token.Ge,
		token.EqF, token.NeF, token.LtF, token.LeF, token.GtF, token.GeF:
		cond, ok := condFor[n.Op]
		if !ok {
			return diag.New(diag.Semantic, "codegen: unsupported comparison operator %s", n.Op)
		}
		g.stream.CMP(leftReg, 0)
		g.stream.CSET(0, cond)
		g.stream.NEG(0, 0) // CSET yields 0/1; BCPL truth is 0/-1.
	default:
		return diag.New(diag.Semantic, "codegen: unsupported binary operator %s", n.Op)
	}
	return nil
}

// genCallArgs evaluates each argument left-to-right, moving it into its
// argument register immediately (spec §4.11 "Calls").
func (g *Generator) genCallArgs(args []ast.Expression) error {
	if len(args) > 8 {
		return diag.New(diag.Semantic, "codegen: more than 8 arguments is not supported")
	}
	for i, a := range args {
		if err := g.genExprX0(a); err != nil {
			return err
		}
		if i != 0 {
			g.stream.MOV(i, 0)
		}
	}
	return nil
}

func (g *Generator) genCall(n *ast.FunctionCall) error {
	callee, ok := n.Callee.(*ast.VariableAccess)
	if !ok {
		return diag.New(diag.Semantic, "codegen: only direct calls to a named routine are supported")
	}
	if sym, ok := builtinSymbol[callee.Name]; ok {
		if err := g.genCallArgs(n.Args); err != nil {
			return err
		}
		g.stream.BLExternal(sym)
		return nil
	}
	label, ok := g.lm.Lookup(callee.Name)
	if !ok {
		return diag.New(diag.Semantic, "call to unknown routine %q", callee.Name)
	}
	if err := g.genCallArgs(n.Args); err != nil {
		return err
	}
	g.stream.BL(label)
	return nil
}
