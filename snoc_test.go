package snoc_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kolkov/snoc"
	"github.com/kolkov/snoc/internal/dodec"
	"github.com/kolkov/snoc/internal/ir"
	"github.com/kolkov/snoc/internal/ssa"
)

func compile(t *testing.T, source string) *snoc.Program {
	t.Helper()
	prog, err := snoc.Compile(source)
	if err != nil {
		t.Fatalf("Compile(%q): %v", source, err)
	}
	return prog
}

func TestBaseTwelveRoundTrip(t *testing.T) {
	prog := compile(t, `let x = 3b;`)
	if _, err := prog.Optimize(&snoc.Config{OptLevel: 1}); err != nil {
		t.Fatal(err)
	}
	out := prog.Disassemble()
	if !strings.Contains(out, "MOV R0, 47") {
		t.Errorf("3b did not lower to 47:\n%s", out)
	}
	if got := dodec.ToBaseTwelve(47); got != "3b" {
		t.Errorf("ToBaseTwelve(47) = %q, want \"3b\"", got)
	}
}

func TestPeriodicWaitNanoseconds(t *testing.T) {
	prog := compile(t, `every 10ms: wait 1s; end;`)
	out := prog.Disassemble()

	// The magnitude of a time literal is base-twelve: 10ms is a dozen
	// doziseconds, one tick under a full second.
	if !strings.Contains(out, "999999996") {
		t.Errorf("interval nanoseconds missing:\n%s", out)
	}
	if !strings.Contains(out, "1000000000") {
		t.Errorf("wait nanoseconds missing:\n%s", out)
	}
	if !strings.Contains(out, "JMP every_start0") {
		t.Errorf("periodic loop lost its back jump:\n%s", out)
	}

	start := prog.IR().Func("main").Block("every_start0")
	if start == nil {
		t.Fatalf("no every_start0 block:\n%s", out)
	}
	waits := 0
	for i := range start.Instrs {
		if start.Instrs[i].Op == ir.WAIT {
			waits++
		}
	}
	if waits != 2 {
		t.Errorf("every_start0 has %d WAITs, want 2:\n%s", waits, out)
	}
}

func TestIfElseBlockShape(t *testing.T) {
	prog := compile(t, `let x = 0; if x == 0: return 1; else: return 2;`)
	f := prog.IR().Func("main")

	for _, name := range []string{"entry", "then0", "else0", "endif0"} {
		if f.Block(name) == nil {
			t.Fatalf("missing block %s:\n%s", name, f.String())
		}
	}

	entry := f.Block("entry")
	term := entry.Terminator()
	if term == nil || term.Op != ir.JE || term.Dest.Name != "else0" {
		t.Errorf("entry does not end with JE else0:\n%s", f.String())
	}
	if n := len(entry.Instrs); n < 2 || entry.Instrs[n-2].Op != ir.CMP {
		t.Errorf("entry branch is not preceded by CMP:\n%s", f.String())
	}

	then := f.Block("then0")
	var sawRet bool
	for i := range then.Instrs {
		switch then.Instrs[i].Op {
		case ir.RET:
			sawRet = true
		case ir.JMP:
			if !sawRet {
				t.Errorf("then0 jumps before returning:\n%s", f.String())
			}
			if then.Instrs[i].Dest.Name != "endif0" {
				t.Errorf("then0 jump target = %s", then.Instrs[i].Dest.Name)
			}
		}
	}
	if !sawRet {
		t.Errorf("then0 never returns:\n%s", f.String())
	}
}

func TestConstantFoldingCollapsesInitializer(t *testing.T) {
	prog := compile(t, `let x = 2 + 3 * 4;`)
	if _, err := prog.Optimize(&snoc.Config{OptLevel: 1}); err != nil {
		t.Fatal(err)
	}
	f := prog.IR().Func("main")

	movs := 0
	for _, b := range f.Blocks {
		for i := range b.Instrs {
			ins := &b.Instrs[i]
			switch {
			case ins.Op == ir.MOV && ins.Src1.IsImm(14):
				movs++
			case ins.Op.IsArith():
				t.Errorf("arithmetic survived folding: %s", ins.String())
			}
		}
	}
	if movs != 1 {
		t.Errorf("got %d MOVs of 14, want exactly 1:\n%s", movs, f.String())
	}
}

func TestDozenTripLoopUnrolls(t *testing.T) {
	prog := compile(t, `let i = 0; while i < 10: i = i + 1; end;`)
	stats, err := prog.Optimize(&snoc.Config{OptLevel: 2})
	if err != nil {
		t.Fatal(err)
	}
	if stats.LoopsUnrolled != 1 {
		t.Fatalf("LoopsUnrolled = %d, want 1:\n%s", stats.LoopsUnrolled, prog.Disassemble())
	}
	if hasBackEdge(prog.IR().Func("main")) {
		t.Errorf("unrolled function still has a back edge:\n%s", prog.Disassemble())
	}
}

func hasBackEdge(f *ir.Function) bool {
	idx := map[*ir.BasicBlock]int{}
	for i, b := range f.Blocks {
		idx[b] = i
	}
	for i, b := range f.Blocks {
		for _, s := range b.Succs {
			if idx[s] <= i {
				return true
			}
		}
	}
	return false
}

func TestJoinPhiHasOneOperandPerPredecessor(t *testing.T) {
	prog := compile(t, `let x = 0; if c: x = 1; else: x = 2;`)
	sm, err := prog.SSA()
	if err != nil {
		t.Fatal(err)
	}
	f := sm.Func("main")
	join := f.Block("endif0")
	if join == nil {
		t.Fatalf("no endif0 block:\n%s", f.String())
	}

	phis := join.Phis()
	if len(phis) == 0 {
		t.Fatalf("join block has no phi:\n%s", f.String())
	}
	for _, phi := range phis {
		if len(phi.Operands) != len(join.Preds) {
			t.Errorf("phi has %d operands for %d predecessors",
				len(phi.Operands), len(join.Preds))
		}
	}
	if len(join.Preds) != 2 {
		t.Errorf("join has %d predecessors, want 2", len(join.Preds))
	}
}

func TestCompileReportsParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		line   int
	}{
		{"unterminated let", "let x = ;", 1},
		{"bad second line", "let x = 1;\nlet = 2;", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := snoc.Compile(tt.source)
			if err == nil {
				t.Fatal("expected a parse error")
			}
			line, ok := snoc.IsParseError(err)
			if !ok {
				t.Fatalf("error is %T, want *ParseError", err)
			}
			if line != tt.line {
				t.Errorf("line = %d, want %d", line, tt.line)
			}
		})
	}
}

func TestEmitSSAPipeline(t *testing.T) {
	out, err := snoc.EmitSSA(`let x = 2 + 3 * 4;`, &snoc.Config{OptLevel: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "fn main") {
		t.Errorf("SSA output lacks the main function:\n%s", out)
	}
	if !strings.Contains(out, "ret") {
		t.Errorf("SSA output lacks a return:\n%s", out)
	}
}

func TestEmitSSAHonorsEmitIR(t *testing.T) {
	out, err := snoc.EmitSSA(`let x = 1;`, &snoc.Config{EmitIR: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "[FUNCTION main]") {
		t.Errorf("EmitIR output is not linear IR:\n%s", out)
	}
}

func TestOptLevelIsClamped(t *testing.T) {
	if _, err := snoc.EmitSSA(`let x = 1;`, &snoc.Config{OptLevel: 99}); err != nil {
		t.Errorf("OptLevel above %d should clamp, got %v", snoc.MaxOptLevel, err)
	}
	if _, err := snoc.EmitSSA(`let x = 1;`, &snoc.Config{OptLevel: -5}); err != nil {
		t.Errorf("negative OptLevel should clamp, got %v", err)
	}
}

func TestEmitIRFunctionFilter(t *testing.T) {
	prog := compile(t, "fn tick(n)\n  return n + 1;")
	out, err := prog.EmitIR(&snoc.Config{OnlyFunctions: "^tick$"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "[FUNCTION tick(n)]") {
		t.Errorf("tick missing from filtered output:\n%s", out)
	}
	if strings.Contains(out, "[FUNCTION main]") {
		t.Errorf("main leaked through the filter:\n%s", out)
	}

	if _, err := prog.EmitIR(&snoc.Config{OnlyFunctions: "("}); err == nil {
		t.Error("invalid filter pattern should fail")
	}
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.sno")
	if err := os.WriteFile(path, []byte(`let x = 5;`), 0o644); err != nil {
		t.Fatal(err)
	}
	prog, err := snoc.CompileFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if prog.Source() != `let x = 5;` {
		t.Errorf("Source() = %q", prog.Source())
	}

	if _, err := snoc.CompileFile(filepath.Join(t.TempDir(), "missing.sno")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestMustCompilePanicsOnBadSource(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustCompile did not panic")
		}
	}()
	snoc.MustCompile("let = ;")
}

func TestSSAAnnotatesTypes(t *testing.T) {
	prog := compile(t, `let x = 1 + 2;`)
	sm, err := prog.SSA()
	if err != nil {
		t.Fatal(err)
	}
	var _ *ssa.Module = sm
	f := sm.Func("main")
	if f == nil {
		t.Fatal("no main in SSA module")
	}
	if len(f.Blocks) == 0 {
		t.Fatal("SSA main has no blocks")
	}
}
