package ssa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/snoc/internal/diag"
	"github.com/kolkov/snoc/internal/ir"
	"github.com/kolkov/snoc/internal/lower"
	"github.com/kolkov/snoc/internal/parser"
	"github.com/kolkov/snoc/internal/types"
)

func buildSource(t *testing.T, src string) *Module {
	t.Helper()
	prog, err := parser.ParseString(src)
	require.NoError(t, err)
	diags := &diag.List{}
	mod, err := Build(lower.Lower(prog, diags))
	require.NoError(t, err)
	return mod
}

func opCount(f *Function, op Op) int {
	n := 0
	for _, b := range f.Blocks {
		for _, ins := range b.Instrs {
			if ins.Op == op {
				n++
			}
		}
	}
	return n
}

func TestStraightLineBuild(t *testing.T) {
	mod := buildSource(t, "let x = 2; let y = 3; return x + y;")
	f := mod.Func("main")
	require.NotNil(t, f)
	require.Len(t, f.Blocks, 1)

	// Copies vanish: the add reads the interned constants directly and
	// the return reads the add.
	var add *Instruction
	for _, ins := range f.Entry().Instrs {
		if ins.Op == Add {
			add = ins
		}
	}
	require.NotNil(t, add)
	assert.Equal(t, ValueConstant, add.Operands[0].Kind)
	assert.EqualValues(t, 2, add.Operands[0].Int)
	assert.EqualValues(t, 3, add.Operands[1].Int)

	ret := f.Entry().Terminator()
	require.NotNil(t, ret)
	require.Equal(t, Ret, ret.Op)
	require.Len(t, ret.Operands, 1)
	assert.Same(t, add.Result, ret.Operands[0])
}

func TestMovesLeaveNoInstructions(t *testing.T) {
	mod := buildSource(t, "let x = 7; let y = x; let z = y;")
	f := mod.Func("main")
	for _, b := range f.Blocks {
		for _, ins := range b.Instrs {
			assert.NotEqual(t, copyMarker, ins.Op)
		}
	}
}

// diamond builds the classic two-armed join by hand:
//
//	entry:  x <- 0 ; if c == 0 goto elseb
//	thenb:  x <- 1 ; goto join
//	elseb:  x <- 2
//	join:   ret x
func diamond() *ir.Module {
	mod := &ir.Module{}
	f := mod.NewFunction("f")
	x, c := f.AllocReg(), f.AllocReg()

	entry := f.NewBlock("entry")
	entry.Emit(ir.MOV, ir.Reg(x), ir.Imm(0))
	entry.Emit(ir.MOV, ir.Reg(c), ir.Imm(5))
	entry.Emit(ir.CMP, ir.Reg(c), ir.Imm(0))
	entry.Emit(ir.JE, ir.Lbl("elseb"))

	thenb := f.NewBlock("thenb")
	thenb.Emit(ir.MOV, ir.Reg(x), ir.Imm(1))
	thenb.Emit(ir.JMP, ir.Lbl("join"))

	elseb := f.NewBlock("elseb")
	elseb.Emit(ir.MOV, ir.Reg(x), ir.Imm(2))

	join := f.NewBlock("join")
	join.Emit(ir.RET)

	ir.WireSuccessors(f)
	return mod
}

func TestJoinBlockGetsPhi(t *testing.T) {
	mod, err := Build(diamond())
	require.NoError(t, err)
	f := mod.Func("f")
	join := f.Block("join")
	require.NotNil(t, join)

	phis := join.Phis()
	require.Len(t, phis, 1, "one variable merges at the join")
	phi := phis[0]
	require.Len(t, phi.Operands, len(join.Preds))
	require.Len(t, phi.Operands, 2)

	got := map[int64]bool{}
	for _, o := range phi.Operands {
		require.NotNil(t, o)
		require.Equal(t, ValueConstant, o.Kind)
		got[o.Int] = true
	}
	assert.True(t, got[1] && got[2])

	ret := join.Terminator()
	require.Equal(t, Ret, ret.Op)
	require.Len(t, ret.Operands, 1)
	assert.Same(t, phi.Result, ret.Operands[0])
}

func TestConditionalBranchShape(t *testing.T) {
	mod, err := Build(diamond())
	require.NoError(t, err)
	f := mod.Func("f")

	term := f.Entry().Terminator()
	require.NotNil(t, term)
	require.Equal(t, CondBr, term.Op)
	require.Len(t, term.Targets, 2)
	assert.Equal(t, "elseb", term.Targets[0].Name)
	assert.Equal(t, "thenb", term.Targets[1].Name)

	cond := term.Operands[0]
	require.NotNil(t, cond)
	var cmp *Instruction
	for _, ins := range f.Entry().Instrs {
		if ins.Result == cond {
			cmp = ins
		}
	}
	require.NotNil(t, cmp)
	assert.Equal(t, Eq, cmp.Op)
}

func TestDominatorsOnDiamond(t *testing.T) {
	mod, err := Build(diamond())
	require.NoError(t, err)
	f := mod.Func("f")
	entry, thenb, elseb, join := f.Block("entry"), f.Block("thenb"), f.Block("elseb"), f.Block("join")

	d := computeDominators(f)
	assert.Same(t, entry, d.idom[thenb])
	assert.Same(t, entry, d.idom[elseb])
	assert.Same(t, entry, d.idom[join])

	assert.Equal(t, []*BasicBlock{join}, d.frontier[thenb])
	assert.Equal(t, []*BasicBlock{join}, d.frontier[elseb])
	assert.Empty(t, d.frontier[entry])

	assert.True(t, d.dominates(entry, join))
	assert.False(t, d.dominates(thenb, join))
	assert.True(t, d.dominates(join, join))
}

func TestLoopHeaderPhi(t *testing.T) {
	mod := buildSource(t, "let i = 0; while i < 10: i = i + 1; end;")
	f := mod.Func("main")
	head := f.Block("while_cond0")
	require.NotNil(t, head)
	require.Len(t, head.Preds, 2)

	phis := head.Phis()
	require.Len(t, phis, 1)
	phi := phis[0]

	// One arm is the initializer, the other the incremented value
	// computed in the body.
	kinds := map[ValueKind]int{}
	for _, o := range phi.Operands {
		require.NotNil(t, o)
		kinds[o.Kind]++
	}
	assert.Equal(t, 1, kinds[ValueConstant])
	assert.Equal(t, 1, kinds[ValueRegister])

	body := f.Block("while_body0")
	require.NotNil(t, body)
	var add *Instruction
	for _, ins := range body.Instrs {
		if ins.Op == Add {
			add = ins
		}
	}
	require.NotNil(t, add)
	assert.Same(t, phi.Result, add.Operands[0], "the increment reads the merged value")
}

func TestFunctionParameters(t *testing.T) {
	mod := buildSource(t, "fn double(n) return n * 2;")
	f := mod.Func("double")
	require.NotNil(t, f)
	require.Len(t, f.Params, 1)
	assert.Equal(t, ValueParameter, f.Params[0].Kind)

	var mul *Instruction
	for _, b := range f.Blocks {
		for _, ins := range b.Instrs {
			if ins.Op == Mul {
				mul = ins
			}
		}
	}
	require.NotNil(t, mul)
	assert.Same(t, f.Params[0], mul.Operands[0])
}

func TestPeriodicLoopKeepsBackEdge(t *testing.T) {
	mod := buildSource(t, "every 1s: wait 1ms; end;")
	f := mod.Func("main")
	start := f.Block("every_start0")
	require.NotNil(t, start)

	// The loop waits, runs the body, and branches back to itself; the
	// block after the loop is unreachable and does not survive.
	assert.True(t, contains(start.Succs, start), "periodic loop is a self edge")
	assert.True(t, contains(start.Preds, start))
	assert.Nil(t, f.Block("every_end0"))
	assert.Equal(t, 2, opCount(f, Call), "interval wait plus body wait")
}

func TestDerivativeBecomesDodecConvert(t *testing.T) {
	mod := buildSource(t, "derive slope = 42;")
	f := mod.Func("main")
	require.Equal(t, 1, opCount(f, DodecConvert))
}

func TestAnnotateTypes(t *testing.T) {
	mod := buildSource(t, "derive slope = 42; wait 1s;")
	Annotate(mod, types.Default)
	f := mod.Func("main")

	for _, b := range f.Blocks {
		for _, ins := range b.Instrs {
			switch {
			case ins.Op == DodecConvert:
				assert.Equal(t, types.KindDodecagram, ins.Result.Type.Kind())
			case ins.Op == Call && ins.Callee == "snow_wait":
				assert.Equal(t, types.KindDuration, ins.Operands[0].Type.Kind())
			case ins.Op.IsCompare():
				assert.Equal(t, types.KindBoolean, ins.Result.Type.Kind())
			}
		}
	}
}

func TestAnnotateGlobalsAndLoads(t *testing.T) {
	mod := &ir.Module{}
	f := mod.NewFunction("f")
	b := f.NewBlock("entry")
	r := f.AllocReg()
	b.Emit(ir.LOAD, ir.Reg(r), ir.Mem(16))
	b.Emit(ir.STORE, ir.Mem(24), ir.Reg(r))
	b.Emit(ir.RET)
	ir.WireSuccessors(f)

	sm, err := Build(mod)
	require.NoError(t, err)
	Annotate(sm, types.Default)

	sf := sm.Func("f")
	var load, store *Instruction
	for _, ins := range sf.Entry().Instrs {
		switch ins.Op {
		case Load:
			load = ins
		case Store:
			store = ins
		}
	}
	require.NotNil(t, load)
	require.NotNil(t, store)
	assert.Equal(t, types.KindInteger, load.Result.Type.Kind())
	assert.Equal(t, types.KindPointer, load.Operands[0].Type.Kind())
	assert.Same(t, load.Result, store.Operands[0])
}

func TestPhiTypeUnifiesArms(t *testing.T) {
	mod, err := Build(diamond())
	require.NoError(t, err)
	Annotate(mod, types.Default)
	phi := mod.Func("f").Block("join").Phis()[0]
	assert.Equal(t, types.KindInteger, phi.Result.Type.Kind())
}

func TestVerifyRejectsDoubleDefinition(t *testing.T) {
	f := &Function{Name: "bad"}
	b := f.NewBlock("entry")
	v := f.NewValue()
	one := f.Const(1)
	b.Instrs = append(b.Instrs,
		&Instruction{Op: Add, Result: v, Operands: []*Value{one, one}},
		&Instruction{Op: Sub, Result: v, Operands: []*Value{one, one}},
		&Instruction{Op: Ret},
	)
	assert.ErrorContains(t, Verify(f), "defined more than once")
}

func TestVerifyRejectsPhiOperandMismatch(t *testing.T) {
	f := &Function{Name: "bad"}
	a := f.NewBlock("a")
	b := f.NewBlock("b")
	link(a, b)
	b.Instrs = append(b.Instrs, &Instruction{
		Op:       Phi,
		Result:   f.NewValue(),
		Operands: make([]*Value, 2),
	})
	assert.ErrorContains(t, Verify(f), "predecessors")
}

func TestVerifyRejectsAsymmetricEdges(t *testing.T) {
	f := &Function{Name: "bad"}
	a := f.NewBlock("a")
	b := f.NewBlock("b")
	a.Succs = append(a.Succs, b) // no matching pred link
	assert.ErrorContains(t, Verify(f), "no matching predecessor")
}

func TestConstantsAreInterned(t *testing.T) {
	f := &Function{Name: "f"}
	assert.Same(t, f.Const(12), f.Const(12))
	assert.NotSame(t, f.Const(12), f.Const(13))
	assert.Same(t, f.Global(8), f.Global(8))
}

func TestModulePrinting(t *testing.T) {
	mod, err := Build(diamond())
	require.NoError(t, err)
	out := mod.String()
	assert.Contains(t, out, "fn f(")
	assert.Contains(t, out, "phi")
	assert.Contains(t, out, "condbr")
	assert.Contains(t, out, "join: ; preds: thenb, elseb")
}
