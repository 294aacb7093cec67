package optimizer

import (
	"math"

	"github.com/kolkov/snoc/internal/ir"
)

// -----------------------------------------------------------------------------
// Constant folding and propagation
// -----------------------------------------------------------------------------

// constantFolding tracks known register constants within each block,
// substitutes them into operand slots, and rewrites arithmetic over
// two immediates into a MOV of the computed result. Signed 64-bit
// wraparound is the only overflow semantics; division by zero aborts
// the fold and leaves the instruction alone.
func constantFolding(fn *ir.Function, stats *Stats) {
	for _, b := range fn.Blocks {
		consts := map[int]int64{}
		for i := range b.Instrs {
			ins := &b.Instrs[i]

			subst := func(o *ir.Operand) {
				if o.Kind != ir.Register {
					return
				}
				if v, ok := consts[int(o.Value)]; ok {
					*o = ir.Imm(v)
					stats.ConstantsPropagated++
				}
			}
			switch ins.Op {
			case ir.MOV:
				subst(&ins.Src1)
			case ir.ADD, ir.SUB, ir.MUL, ir.DIV:
				subst(&ins.Src1)
				subst(&ins.Src2)
			case ir.CMP:
				// The destination slot of CMP is its first source.
				subst(&ins.Dest)
				subst(&ins.Src1)
			case ir.WAIT:
				subst(&ins.Dest)
			}

			if ins.Op.IsArith() && ins.Src1.Kind == ir.Immediate && ins.Src2.Kind == ir.Immediate {
				if v, ok := foldArith(ins.Op, ins.Src1.Value, ins.Src2.Value); ok {
					*ins = ir.NewInstr(ir.MOV, ins.Dest, ir.Imm(v))
					stats.ConstantsFolded++
				}
			}

			if def := ins.Def(); def >= 0 {
				if ins.Op == ir.MOV && ins.Src1.Kind == ir.Immediate {
					consts[def] = ins.Src1.Value
				} else {
					delete(consts, def)
				}
			}
		}
	}
}

// foldArith computes op over two signed 64-bit values with wraparound.
// Division by zero is not foldable.
func foldArith(op ir.Op, a, b int64) (int64, bool) {
	switch op {
	case ir.ADD:
		return a + b, true
	case ir.SUB:
		return a - b, true
	case ir.MUL:
		return a * b, true
	case ir.DIV:
		if b == 0 {
			return 0, false
		}
		if a == math.MinInt64 && b == -1 {
			return math.MinInt64, true
		}
		return a / b, true
	}
	return 0, false
}

// -----------------------------------------------------------------------------
// Peephole
// -----------------------------------------------------------------------------

// peephole runs the local rewrites to a fixed point within each block:
// self-moves become NOPs, additive and multiplicative identities
// collapse to MOVs, multiplication by zero collapses to an immediate
// zero, a copy of a fresh copy is forwarded to the original source,
// and an arithmetic result copied exactly once into another register
// is computed in that register directly.
func peephole(fn *ir.Function, stats *Stats) {
	varRegs := map[int]bool{}
	for _, reg := range fn.Vars {
		varRegs[reg] = true
	}
	useCount := map[int]int{}
	for _, b := range fn.Blocks {
		for i := range b.Instrs {
			for _, r := range b.Instrs[i].Uses() {
				useCount[r]++
			}
		}
	}

	for _, b := range fn.Blocks {
		for changed := true; changed; {
			changed = false
			for i := range b.Instrs {
				ins := &b.Instrs[i]
				switch {
				case ins.Op == ir.MOV && ins.Src1.Kind == ir.Register && ins.Dest.Kind == ir.Register &&
					ins.Src1.Value == ins.Dest.Value:
					*ins = ir.NewInstr(ir.NOP)
					stats.PeepholeRewrites++
					changed = true

				case ins.Op == ir.ADD && ins.Src2.IsImm(0):
					*ins = ir.NewInstr(ir.MOV, ins.Dest, ins.Src1)
					stats.PeepholeRewrites++
					changed = true

				case ins.Op == ir.SUB && ins.Src2.IsImm(0):
					*ins = ir.NewInstr(ir.MOV, ins.Dest, ins.Src1)
					stats.PeepholeRewrites++
					changed = true

				case ins.Op == ir.MUL && ins.Src2.IsImm(1):
					*ins = ir.NewInstr(ir.MOV, ins.Dest, ins.Src1)
					stats.PeepholeRewrites++
					changed = true

				case ins.Op == ir.MUL && ins.Src2.IsImm(0):
					*ins = ir.NewInstr(ir.MOV, ins.Dest, ir.Imm(0))
					stats.PeepholeRewrites++
					changed = true
				}

				// MOV r1, X; MOV r2, r1  =>  MOV r1, X; MOV r2, X
				if i+1 < len(b.Instrs) {
					next := &b.Instrs[i+1]

					// OP t, a, b; MOV d, t  =>  OP d, a, b when t is
					// a single-use scratch register.
					if ins.Op.IsArith() && next.Op == ir.MOV &&
						ins.Dest.Kind == ir.Register &&
						next.Src1.IsReg(int(ins.Dest.Value)) &&
						!varRegs[int(ins.Dest.Value)] &&
						useCount[int(ins.Dest.Value)] == 1 {
						ins.Dest = next.Dest
						*next = ir.NewInstr(ir.NOP)
						stats.MovePairsForwarded++
						changed = true
						continue
					}

					if ins.Op == ir.MOV && next.Op == ir.MOV &&
						ins.Dest.Kind == ir.Register &&
						next.Src1.Kind == ir.Register &&
						next.Src1.Value == ins.Dest.Value &&
						!(ins.Src1.Kind == ir.Register && ins.Src1.Value == ins.Dest.Value) {
						if next.Src1 != ins.Src1 {
							next.Src1 = ins.Src1
							stats.MovePairsForwarded++
							changed = true
						}
					}
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Dead-code elimination
// -----------------------------------------------------------------------------

// deadCode removes instructions whose results never reach a
// side-effecting instruction. Roots are the side-effecting opcodes,
// CMP (it defines the implicit condition state the conditional jumps
// read), and every definition of a source-level variable. Uses
// propagate transitively to a fixed point; register liveness is
// function-wide, which over-approximates across blocks and therefore
// never deletes a reachable definition.
func deadCode(fn *ir.Function, stats *Stats) {
	varRegs := map[int]bool{}
	for _, reg := range fn.Vars {
		varRegs[reg] = true
	}

	liveRegs := map[int]bool{}
	rooted := func(ins *ir.Instruction) bool {
		if ins.Op.HasSideEffects() || ins.Op == ir.CMP {
			return true
		}
		if def := ins.Def(); def >= 0 && varRegs[def] {
			return true
		}
		return false
	}

	for changed := true; changed; {
		changed = false
		for _, b := range fn.Blocks {
			for i := range b.Instrs {
				ins := &b.Instrs[i]
				def := ins.Def()
				live := rooted(ins) || (def >= 0 && liveRegs[def])
				if !live {
					continue
				}
				for _, use := range ins.Uses() {
					if !liveRegs[use] {
						liveRegs[use] = true
						changed = true
					}
				}
			}
		}
	}

	for _, b := range fn.Blocks {
		kept := b.Instrs[:0]
		for i := range b.Instrs {
			ins := b.Instrs[i]
			def := ins.Def()
			if ins.Op == ir.NOP || (!rooted(&ins) && !(def >= 0 && liveRegs[def])) {
				stats.DeadInstrsRemoved++
				continue
			}
			kept = append(kept, ins)
		}
		b.Instrs = kept
	}
}

// -----------------------------------------------------------------------------
// Branch simplification
// -----------------------------------------------------------------------------

// simplifyBranches trims instructions stranded after an unconditional
// terminator, threads branches through empty forwarding blocks, and
// drops jumps to the textually next block. It never deletes a block
// and never changes which instructions execute on any path.
func simplifyBranches(fn *ir.Function, stats *Stats) {
	for idx, b := range fn.Blocks {
		// Trim unreachable instructions after JMP or RET.
		for i := range b.Instrs {
			op := b.Instrs[i].Op
			if op == ir.JMP || op == ir.RET {
				if i+1 < len(b.Instrs) {
					stats.BranchesSimplified += len(b.Instrs) - i - 1
					b.Instrs = b.Instrs[:i+1]
				}
				break
			}
		}

		// Thread branches through blocks that only forward.
		for i := range b.Instrs {
			ins := &b.Instrs[i]
			if !ins.Op.IsBranch() {
				continue
			}
			if final := forwardTarget(fn, ins.Dest.Name); final != "" && final != ins.Dest.Name {
				ins.Dest = ir.Lbl(final)
				stats.BranchesSimplified++
			}
		}

		// A trailing JMP to the textually next block is a fallthrough.
		if last := b.Terminator(); last != nil && last.Op == ir.JMP && idx+1 < len(fn.Blocks) {
			if last.Dest.Name == fn.Blocks[idx+1].Name {
				b.Instrs = b.Instrs[:len(b.Instrs)-1]
				stats.BranchesSimplified++
			}
		}
	}
	ir.WireSuccessors(fn)
}

// forwardTarget follows chains of blocks whose only instruction is an
// unconditional JMP and returns the final label, or "" if the chain
// does not resolve. Cycles terminate the walk.
func forwardTarget(fn *ir.Function, label string) string {
	seen := map[string]bool{}
	for !seen[label] {
		seen[label] = true
		b := fn.Block(label)
		if b == nil || len(b.Instrs) != 1 || b.Instrs[0].Op != ir.JMP {
			return label
		}
		label = b.Instrs[0].Dest.Name
	}
	return ""
}

// -----------------------------------------------------------------------------
// Base-twelve annotation
// -----------------------------------------------------------------------------

// annotateBaseTwelve tags multiplication and division by twelve for
// the backend. A dozen multiply is a shift-and-add candidate
// (x*12 == x<<3 + x<<2).
func annotateBaseTwelve(fn *ir.Function, stats *Stats) {
	for _, b := range fn.Blocks {
		for i := range b.Instrs {
			ins := &b.Instrs[i]
			if ins.Comment != "" {
				continue
			}
			switch {
			case ins.Op == ir.MUL && (ins.Src1.IsImm(12) || ins.Src2.IsImm(12)):
				ins.Comment = "dozen multiply; shift-add candidate"
				stats.BaseTwelveAnnotations++
			case ins.Op == ir.DIV && ins.Src2.IsImm(12):
				ins.Comment = "dozen divide"
				stats.BaseTwelveAnnotations++
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Final cleanup
// -----------------------------------------------------------------------------

// sweepNops drops the NOPs left behind by earlier rewrites.
func sweepNops(fn *ir.Function, stats *Stats) {
	for _, b := range fn.Blocks {
		kept := b.Instrs[:0]
		for i := range b.Instrs {
			if b.Instrs[i].Op == ir.NOP {
				stats.NopsSwept++
				continue
			}
			kept = append(kept, b.Instrs[i])
		}
		b.Instrs = kept
	}
}
