package lower

import (
	"strings"
	"testing"

	"github.com/kolkov/snoc/internal/diag"
	"github.com/kolkov/snoc/internal/ir"
	"github.com/kolkov/snoc/internal/parser"
)

func lowerSource(t *testing.T, src string) (*ir.Module, *diag.List) {
	t.Helper()
	prog, err := parser.ParseString(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	diags := &diag.List{}
	return Lower(prog, diags), diags
}

func mainFunc(t *testing.T, m *ir.Module) *ir.Function {
	t.Helper()
	f := m.Func(MainFunc)
	if f == nil {
		t.Fatal("module has no main function")
	}
	return f
}

func TestLowerVarDecl(t *testing.T) {
	m, diags := lowerSource(t, "let x = 3b;")
	if diags.HasErrors() {
		t.Fatalf("diagnostics: %v", diags.Records())
	}
	f := mainFunc(t, m)
	entry := f.Entry()
	if entry.Name != "entry" {
		t.Errorf("entry block named %q", entry.Name)
	}
	// x claims R0, the literal lands in R1 and is copied over.
	want := []string{"MOV R1, 47", "MOV R0, R1", "RET"}
	if got := instrStrings(entry); !equal(got, want) {
		t.Errorf("entry = %v, want %v", got, want)
	}
}

func TestLowerEveryWait(t *testing.T) {
	m, _ := lowerSource(t, "every 10ms:\n  wait 1s;\nend;")
	f := mainFunc(t, m)

	out := f.String()
	if !strings.Contains(out, "MOV R0, 999999996") {
		t.Errorf("interval not materialized:\n%s", out)
	}

	loop := f.Block("every_start0")
	if loop == nil {
		t.Fatalf("no loop block:\n%s", out)
	}
	got := instrStrings(loop)
	want := []string{
		"WAIT R0",
		"MOV R1, 1000000000",
		"WAIT R1",
		"JMP every_start0",
	}
	if !equal(got, want) {
		t.Errorf("loop = %v, want %v", got, want)
	}
	if len(loop.Succs) != 1 || loop.Succs[0] != loop {
		t.Errorf("loop successors = %v", loop.Succs)
	}
}

func TestLowerIfElse(t *testing.T) {
	m, _ := lowerSource(t, "if x == 0:\n  return 1;\nelse:\n  return 2;")
	f := mainFunc(t, m)

	for _, name := range []string{"entry", "then0", "else0", "endif0"} {
		if f.Block(name) == nil {
			t.Fatalf("missing block %q:\n%s", name, f.String())
		}
	}

	entry := f.Entry()
	n := len(entry.Instrs)
	if n < 2 || entry.Instrs[n-2].Op != ir.CMP || entry.Instrs[n-1].Op != ir.JE {
		t.Errorf("entry does not end with CMP, JE:\n%s", f.String())
	}
	if target := entry.Instrs[n-1].Dest; target.Name != "else0" {
		t.Errorf("JE target = %s", target.Name)
	}

	then := f.Block("then0")
	got := instrStrings(then)
	want := []string{"MOV R3, 1", "MOV R0, R3", "RET", "JMP endif0"}
	if !equal(got, want) {
		t.Errorf("then0 = %v, want %v", got, want)
	}

	// entry falls through to then0 and branches to else0.
	if len(entry.Succs) != 2 {
		t.Fatalf("entry successors = %v", blockNames(entry.Succs))
	}
}

func TestLowerIfWithoutElse(t *testing.T) {
	m, _ := lowerSource(t, "if x == 0:\n  wait 1s;")
	f := mainFunc(t, m)
	entry := f.Entry()
	je := entry.Instrs[len(entry.Instrs)-1]
	if je.Op != ir.JE || je.Dest.Name != "endif0" {
		t.Errorf("JE without else = %s", je.String())
	}
	if f.Block("else0") != nil {
		t.Error("else block created for if without else")
	}
}

func TestLowerWhile(t *testing.T) {
	m, _ := lowerSource(t, "let n = 0;\nwhile n < 3:\n  n = n + 1;\nend;")
	f := mainFunc(t, m)

	cond := f.Block("while_cond0")
	body := f.Block("while_body0")
	end := f.Block("while_end0")
	if cond == nil || body == nil || end == nil {
		t.Fatalf("missing while blocks:\n%s", f.String())
	}
	if body.Terminator() == nil || body.Terminator().Op != ir.JMP {
		t.Errorf("body does not jump back:\n%s", f.String())
	}
	names := blockNames(cond.Succs)
	if len(names) != 2 || names[0] != "while_end0" || names[1] != "while_body0" {
		t.Errorf("cond successors = %v", names)
	}
}

func TestLowerWhileComparisonExit(t *testing.T) {
	tests := []struct {
		cond string
		jump ir.Op
	}{
		{"n < 3", ir.JGE},
		{"n <= 3", ir.JG},
		{"n > 3", ir.JLE},
		{"n >= 3", ir.JL},
		{"n == 3", ir.JNE},
		{"n != 3", ir.JE},
	}
	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			m, _ := lowerSource(t, "let n = 0;\nwhile "+tt.cond+":\n  n = n + 1;\nend;")
			f := mainFunc(t, m)
			cond := f.Block("while_cond0")
			n := len(cond.Instrs)
			if n < 2 || cond.Instrs[n-2].Op != ir.CMP || cond.Instrs[n-1].Op != tt.jump {
				t.Errorf("cond does not end with CMP, %s:\n%s", tt.jump, f.String())
			}
			if cond.Instrs[n-1].Dest.Name != "while_end0" {
				t.Errorf("exit target = %s", cond.Instrs[n-1].Dest.Name)
			}
		})
	}
}

func TestLowerFunctionDecl(t *testing.T) {
	m, _ := lowerSource(t, "let z = 5;\nfn tick(n)\n  ret n + 1;")
	tick := m.Func("tick")
	if tick == nil {
		t.Fatal("tick not lowered")
	}
	if len(tick.Params) != 1 || tick.Params[0] != "n" {
		t.Errorf("params = %v", tick.Params)
	}
	out := tick.String()
	// n is R0; the return value lands back in R0.
	for _, want := range []string{"MOV R1, 1", "ADD R2, R0, R1", "MOV R0, R2", "RET"} {
		if !strings.Contains(out, want) {
			t.Errorf("tick missing %q:\n%s", want, out)
		}
	}

	// The top-level statement ahead of the declaration stays in main.
	main := mainFunc(t, m)
	if !strings.Contains(main.String(), "MOV R1, 5") {
		t.Errorf("top-level statement lost:\n%s", main.String())
	}
}

func TestLowerCall(t *testing.T) {
	m, _ := lowerSource(t, "tick(2, 3);")
	f := mainFunc(t, m)
	got := instrStrings(f.Entry())
	want := []string{
		"MOV R0, 2",
		"MOV R1, 3",
		"CALL tick",
		"MOV R2, R0",
		"RET",
	}
	if !equal(got, want) {
		t.Errorf("call lowering = %v, want %v", got, want)
	}
}

func TestLowerDeriveCapture(t *testing.T) {
	m, _ := lowerSource(t, "derive v = d(x);")
	f := mainFunc(t, m)
	out := f.String()
	// d(x) captures into a fresh register, then v captures the sample.
	if !strings.Contains(out, "DODECAP R2, R1") || !strings.Contains(out, "DODECAP R0, R2") {
		t.Errorf("derive lowering:\n%s", out)
	}
}

func TestLowerReturnWithoutValue(t *testing.T) {
	m, _ := lowerSource(t, "fn f()\n  ret;\n")
	f := m.Func("f")
	got := instrStrings(f.Entry())
	// Explicit RET plus the implicit trailing one.
	if !equal(got, []string{"RET", "RET"}) {
		t.Errorf("entry = %v", got)
	}
}

func TestLowerBreakWarns(t *testing.T) {
	_, diags := lowerSource(t, "every 1s:\n  break;\nend;")
	found := false
	for _, r := range diags.Records() {
		if r.Severity == diag.Warning && strings.Contains(r.Message, "break") {
			found = true
		}
	}
	if !found {
		t.Errorf("no break warning: %v", diags.Records())
	}
}

func TestLowerBlocksTerminateOrFallThrough(t *testing.T) {
	m, _ := lowerSource(t, "if a == 1:\n  wait 1s;\nelse:\n  wait 2s;\nevery 3s:\n  wait 1ms;\nend;")
	for _, f := range m.Funcs {
		if len(f.Blocks) == 0 || f.Blocks[0].Name != "entry" {
			t.Fatalf("function %s entry invariant broken", f.Name)
		}
		for i, b := range f.Blocks {
			if b.Terminator() == nil && i == len(f.Blocks)-1 && f.Name == MainFunc {
				t.Errorf("last block of main lacks a terminator")
			}
		}
	}
}

func TestLowerSuccessorsAgreeWithBranches(t *testing.T) {
	m, _ := lowerSource(t, "if x == 0:\n  x = 1;\nelse:\n  x = 2;\nwhile x < 5:\n  x = x + 1;\nend;")
	f := mainFunc(t, m)
	for _, b := range f.Blocks {
		for i := range b.Instrs {
			ins := &b.Instrs[i]
			if !ins.Op.IsBranch() {
				continue
			}
			target := ins.Dest.Name
			found := false
			for _, s := range b.Succs {
				if s.Name == target {
					found = true
				}
			}
			if !found {
				t.Errorf("block %s branches to %s but successors are %v",
					b.Name, target, blockNames(b.Succs))
			}
		}
	}
}

func instrStrings(b *ir.BasicBlock) []string {
	var out []string
	for i := range b.Instrs {
		out = append(out, b.Instrs[i].String())
	}
	return out
}

func blockNames(blocks []*ir.BasicBlock) []string {
	var names []string
	for _, b := range blocks {
		names = append(names, b.Name)
	}
	return names
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
