package ssa

import (
	"fmt"
	"sort"

	"github.com/kolkov/snoc/internal/ir"
)

// Build converts a linear-IR module into SSA form. Each function goes
// through the standard sequence: mirror the CFG, compute dominators
// and frontiers, insert Φ-nodes at iterated dominance frontiers for
// every register defined in more than one block, then rename along a
// preorder walk of the dominator tree.
func Build(mod *ir.Module) (*Module, error) {
	out := &Module{}
	for _, fn := range mod.Funcs {
		sf, err := buildFunc(fn)
		if err != nil {
			return nil, err
		}
		out.Funcs = append(out.Funcs, sf)
	}
	return out, nil
}

// builder carries the per-function construction state.
type builder struct {
	src    *ir.Function
	fn     *Function
	blocks map[*ir.BasicBlock]*BasicBlock
	dom    *domInfo

	// stacks holds the current SSA value of each linear register,
	// innermost definition last.
	stacks map[int][]*Value
}

func buildFunc(fn *ir.Function) (*Function, error) {
	ir.WireSuccessors(fn)
	b := &builder{
		src:    fn,
		fn:     &Function{Name: fn.Name},
		blocks: map[*ir.BasicBlock]*BasicBlock{},
		stacks: map[int][]*Value{},
	}
	if err := b.mirrorCFG(); err != nil {
		return nil, err
	}
	if b.fn.Entry() == nil {
		return b.fn, nil
	}
	b.dom = computeDominators(b.fn)
	b.insertPhis()
	b.bindParams()
	b.rename(b.fn.Entry())
	if err := Verify(b.fn); err != nil {
		return nil, err
	}
	return b.fn, nil
}

// mirrorCFG creates one SSA block per reachable linear block,
// translates the instructions, and links predecessor/successor pairs.
func (b *builder) mirrorCFG() error {
	entry := b.src.Entry()
	if entry == nil {
		return nil
	}
	reach := map[*ir.BasicBlock]bool{}
	var walk func(blk *ir.BasicBlock)
	walk = func(blk *ir.BasicBlock) {
		reach[blk] = true
		for _, s := range blk.Succs {
			if !reach[s] {
				walk(s)
			}
		}
	}
	walk(entry)

	for _, blk := range b.src.Blocks {
		if reach[blk] {
			b.blocks[blk] = b.fn.NewBlock(blk.Name)
		}
	}
	for _, blk := range b.src.Blocks {
		if !reach[blk] {
			continue
		}
		if err := b.translate(blk); err != nil {
			return err
		}
	}
	return nil
}

// translate lowers one linear block into SSA instructions. Values are
// not renamed yet: each register operand becomes a placeholder value
// carrying the register id and the pendingUse marker, resolved during
// renaming, so translation only fixes opcodes, constants, globals,
// and branch structure.
func (b *builder) translate(blk *ir.BasicBlock) error {
	sb := b.blocks[blk]
	instrs := blk.Instrs
	for i := 0; i < len(instrs) && sb.Terminator() == nil; i++ {
		ins := &instrs[i]
		switch ins.Op {
		case ir.CMP:
			if i+1 < len(instrs) && instrs[i+1].Op.IsCondBranch() {
				br := &instrs[i+1]
				taken := b.target(blk, br.Dest.Name)
				fall := b.fallthroughOf(blk, taken)
				cond := b.emit(sb, compareOp(br.Op), true, b.operand(sb, ins.Dest), b.operand(sb, ins.Src1))
				t := b.append(sb, &Instruction{Op: CondBr, Operands: []*Value{cond.Result}})
				t.Targets = []*BasicBlock{taken, fall}
				i++
				continue
			}
			// A compare whose flags nothing consumes keeps its
			// operands alive for the backend.
			b.emit(sb, Eq, true, b.operand(sb, ins.Dest), b.operand(sb, ins.Src1))

		case ir.MOV:
			// A move is a binding, not an operation: the destination
			// register simply takes the source value during renaming.
			b.append(sb, &Instruction{Op: copyMarker, reg: regOf(ins.Dest), Operands: []*Value{b.operand(sb, ins.Src1)}})

		case ir.LOAD:
			b.defInstr(sb, Load, ins.Dest, b.operand(sb, ins.Src1))
		case ir.STORE:
			b.append(sb, &Instruction{Op: Store, Operands: []*Value{b.operand(sb, ins.Src1), b.operand(sb, ins.Dest)}})

		case ir.ADD:
			b.defInstr(sb, Add, ins.Dest, b.operand(sb, ins.Src1), b.operand(sb, ins.Src2))
		case ir.SUB:
			b.defInstr(sb, Sub, ins.Dest, b.operand(sb, ins.Src1), b.operand(sb, ins.Src2))
		case ir.MUL:
			b.defInstr(sb, Mul, ins.Dest, b.operand(sb, ins.Src1), b.operand(sb, ins.Src2))
		case ir.DIV:
			b.defInstr(sb, Div, ins.Dest, b.operand(sb, ins.Src1), b.operand(sb, ins.Src2))

		case ir.JMP:
			t := b.append(sb, &Instruction{Op: Br})
			t.Targets = []*BasicBlock{b.target(blk, ins.Dest.Name)}

		case ir.CALL:
			// The lowering convention returns through register zero,
			// so a call defines it.
			call := b.append(sb, &Instruction{Op: Call, Callee: ins.Dest.Name, reg: 0})
			call.Result = b.fn.NewValue()

		case ir.RET:
			b.append(sb, &Instruction{Op: Ret, reg: retMarker})

		case ir.WAIT:
			b.append(sb, &Instruction{Op: Call, Callee: "snow_wait", Operands: []*Value{b.operand(sb, ins.Dest)}, reg: noReg})
		case ir.DODECAP:
			b.defInstr(sb, DodecConvert, ins.Dest, b.operand(sb, ins.Src1))
		case ir.SAMPLE:
			b.defInstr(sb, Sample, ins.Dest, b.operand(sb, ins.Src1))
		case ir.DELTA:
			b.defInstr(sb, Delta, ins.Dest, b.operand(sb, ins.Src1), b.operand(sb, ins.Src2))

		case ir.LABEL, ir.NOP:
			// No SSA counterpart.

		default:
			if ins.Op.IsCondBranch() {
				return fmt.Errorf("ssa: %s: conditional branch without compare in block %s", b.src.Name, blk.Name)
			}
			return fmt.Errorf("ssa: %s: unhandled opcode %s", b.src.Name, ins.Op)
		}
	}

	// Every block ends in a terminator; a fallthrough becomes an
	// explicit branch.
	if sb.Terminator() == nil {
		if next := b.fallthroughOf(blk, nil); next != nil {
			t := b.append(sb, &Instruction{Op: Br})
			t.Targets = []*BasicBlock{next}
		} else {
			b.append(sb, &Instruction{Op: Ret, reg: retMarker})
		}
	}
	linked := map[*BasicBlock]bool{}
	for _, t := range sb.Terminator().Targets {
		if !linked[t] {
			linked[t] = true
			link(sb, t)
		}
	}
	return nil
}

// copyMarker is a pseudo-opcode that exists only between translation
// and renaming; retMarker tags a return that should pick up the value
// of register zero, and noReg marks a result bound to no linear
// register.
const copyMarker Op = 200

const (
	noReg     = -1
	retMarker = -2
)

func regOf(o ir.Operand) int {
	if o.Kind == ir.Register {
		return int(o.Value)
	}
	return noReg
}

// operand converts a linear operand into either a concrete value
// (immediates, memory addresses) or a placeholder resolved during
// renaming (registers).
func (b *builder) operand(sb *BasicBlock, o ir.Operand) *Value {
	switch o.Kind {
	case ir.Immediate:
		return b.fn.Const(o.Value)
	case ir.Memory:
		return b.fn.Global(o.Value)
	case ir.Register:
		return &Value{ID: int(o.Value), Kind: ValueRegister, Int: pendingUse}
	}
	return b.fn.Const(0)
}

// pendingUse marks a placeholder value standing in for "the current
// SSA name of linear register ID" until renaming runs.
const pendingUse = int64(-0x51a0)

func (b *builder) emit(sb *BasicBlock, op Op, result bool, operands ...*Value) *Instruction {
	ins := &Instruction{Op: op, Operands: operands, reg: noReg}
	if result {
		ins.Result = b.fn.NewValue()
	}
	return b.append(sb, ins)
}

func (b *builder) defInstr(sb *BasicBlock, op Op, dest ir.Operand, operands ...*Value) {
	ins := b.emit(sb, op, true, operands...)
	ins.reg = regOf(dest)
}

func (b *builder) append(sb *BasicBlock, ins *Instruction) *Instruction {
	sb.Instrs = append(sb.Instrs, ins)
	return ins
}

func (b *builder) target(blk *ir.BasicBlock, name string) *BasicBlock {
	if t := b.fn.Block(name); t != nil {
		return t
	}
	return b.blocks[blk]
}

// fallthroughOf returns the SSA block for blk's textual successor,
// preferring a successor that is not the branch-taken target.
func (b *builder) fallthroughOf(blk *ir.BasicBlock, taken *BasicBlock) *BasicBlock {
	for _, s := range blk.Succs {
		sb := b.blocks[s]
		if sb != nil && sb != taken {
			return sb
		}
	}
	if taken != nil {
		return taken
	}
	return nil
}

// -----------------------------------------------------------------------------
// Φ insertion
// -----------------------------------------------------------------------------

// insertPhis places Φ-nodes at the iterated dominance frontier of
// every register with definitions in more than one block.
func (b *builder) insertPhis() {
	defsites := map[int][]*BasicBlock{}
	for _, blk := range b.fn.Blocks {
		seen := map[int]bool{}
		for _, ins := range blk.Instrs {
			if r, ok := defRegister(ins); ok && !seen[r] {
				seen[r] = true
				defsites[r] = append(defsites[r], blk)
			}
		}
	}

	regs := make([]int, 0, len(defsites))
	for r := range defsites {
		regs = append(regs, r)
	}
	sort.Ints(regs)

	for _, r := range regs {
		sites := defsites[r]
		if len(sites) < 2 {
			continue
		}
		hasPhi := map[*BasicBlock]bool{}
		work := append([]*BasicBlock(nil), sites...)
		for len(work) > 0 {
			blk := work[len(work)-1]
			work = work[:len(work)-1]
			for _, df := range b.dom.frontier[blk] {
				if hasPhi[df] {
					continue
				}
				hasPhi[df] = true
				phi := &Instruction{
					Op:       Phi,
					Result:   b.fn.NewValue(),
					Operands: make([]*Value, len(df.Preds)),
					reg:      r,
				}
				df.Instrs = append([]*Instruction{phi}, df.Instrs...)
				work = append(work, df)
			}
		}
	}
}

// defRegister reports the linear register an instruction will define,
// before renaming has rewritten anything.
func defRegister(ins *Instruction) (int, bool) {
	switch ins.Op {
	case copyMarker, Call:
		return ins.reg, ins.reg >= 0
	case Phi:
		return ins.reg, true
	}
	if ins.Result != nil && ins.reg >= 0 {
		return ins.reg, true
	}
	return 0, false
}

// -----------------------------------------------------------------------------
// Renaming
// -----------------------------------------------------------------------------

// bindParams seeds the renaming stacks with one Parameter value per
// formal, in the registers the lowering bound them to.
func (b *builder) bindParams() {
	for i, name := range b.src.Params {
		v := &Value{ID: i, Kind: ValueParameter}
		b.fn.Params = append(b.fn.Params, v)
		if reg, ok := b.src.Vars[name]; ok {
			b.stacks[reg] = append(b.stacks[reg], v)
		}
	}
}

// rename walks the dominator tree preorder, rewriting placeholder
// uses to the current top-of-stack value and pushing a fresh value on
// each definition. Copies and calls bind their register without
// keeping a separate instruction for the move. Leaving a block pops
// everything it pushed.
func (b *builder) rename(blk *BasicBlock) {
	var pushed []int
	out := blk.Instrs[:0]

	for _, ins := range blk.Instrs {
		if ins.Op == Phi {
			b.stacks[ins.reg] = append(b.stacks[ins.reg], ins.Result)
			pushed = append(pushed, ins.reg)
			out = append(out, ins)
			continue
		}
		for i, o := range ins.Operands {
			if o != nil && o.Kind == ValueRegister && o.Int == pendingUse {
				ins.Operands[i] = b.current(o.ID)
			}
		}
		switch ins.Op {
		case copyMarker:
			b.stacks[ins.reg] = append(b.stacks[ins.reg], ins.Operands[0])
			pushed = append(pushed, ins.reg)
			continue // the binding subsumes the instruction
		case Call:
			if ins.reg >= 0 {
				b.stacks[ins.reg] = append(b.stacks[ins.reg], ins.Result)
				pushed = append(pushed, ins.reg)
			}
		case Ret:
			if ins.reg == retMarker {
				ins.reg = 0
				if v := b.top(0); v != nil {
					ins.Operands = []*Value{v}
				}
			}
		default:
			if ins.Result != nil && ins.reg >= 0 {
				b.stacks[ins.reg] = append(b.stacks[ins.reg], ins.Result)
				pushed = append(pushed, ins.reg)
			}
		}
		out = append(out, ins)
	}
	blk.Instrs = out

	// Fill successor Φ-operands with this block's exit values.
	for _, s := range blk.Succs {
		j := s.predIndex(blk)
		for _, phi := range s.Phis() {
			phi.Operands[j] = b.current(phi.reg)
		}
	}

	for _, child := range b.dom.children[blk] {
		b.rename(child)
	}

	for i := len(pushed) - 1; i >= 0; i-- {
		r := pushed[i]
		b.stacks[r] = b.stacks[r][:len(b.stacks[r])-1]
	}
}

func (b *builder) top(reg int) *Value {
	s := b.stacks[reg]
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}

// current returns the live value of a register, or zero for a read
// before any write.
func (b *builder) current(reg int) *Value {
	if v := b.top(reg); v != nil {
		return v
	}
	return b.fn.Const(0)
}

// compareOp maps a conditional branch to the comparison its compare
// instruction established.
func compareOp(op ir.Op) Op {
	switch op {
	case ir.JE:
		return Eq
	case ir.JNE:
		return Ne
	case ir.JG:
		return Gt
	case ir.JL:
		return Lt
	case ir.JGE:
		return Ge
	case ir.JLE:
		return Le
	}
	return Eq
}
