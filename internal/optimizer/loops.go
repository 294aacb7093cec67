package optimizer

import "github.com/kolkov/snoc/internal/ir"

// loop is a natural loop found by back-edge detection. Header is the
// branch target of the back edge, Latch the block holding it.
type loop struct {
	Header *ir.BasicBlock
	Latch  *ir.BasicBlock
}

// detectLoops finds back edges by depth-first search over the CFG. An
// edge (u, v) is a back edge when v is already on the current DFS
// path.
func detectLoops(fn *ir.Function) []loop {
	var loops []loop
	visited := map[*ir.BasicBlock]bool{}
	onPath := map[*ir.BasicBlock]bool{}

	var dfs func(b *ir.BasicBlock)
	dfs = func(b *ir.BasicBlock) {
		visited[b] = true
		onPath[b] = true
		for _, s := range b.Succs {
			if onPath[s] {
				loops = append(loops, loop{Header: s, Latch: b})
				continue
			}
			if !visited[s] {
				dfs(s)
			}
		}
		onPath[b] = false
	}
	if entry := fn.Entry(); entry != nil {
		dfs(entry)
	}
	return loops
}

// countedLoop is the canonical counted shape the unroller handles:
//
//	header:  CMP rI, bound ; Jcc exit
//	latch:   <body...> ; ADD rI, rI, step ; JMP header
//
// or the single-block form with header == latch and the body between
// the exit test and the back jump. The initializer is known when a
// non-latch predecessor of the header writes a literal to the
// induction register; otherwise the trip count can only come from
// profile data.
type countedLoop struct {
	loop
	induction  int
	init       int64
	initKnown  bool
	bound      int64
	boundKnown bool
	step       int64
	exitLabel  string
	exitOp     ir.Op
	body       []ir.Instruction // latch body without the back jump
}

// matchCountedLoop recognizes the canonical shape, or returns false.
func matchCountedLoop(fn *ir.Function, l loop) (countedLoop, bool) {
	cl := countedLoop{loop: l}

	head := l.Header.Instrs
	if l.Header == l.Latch {
		// Single-block loop: test at the top, back jump at the bottom.
		if len(head) < 4 {
			return cl, false
		}
	} else if len(head) != 2 {
		return cl, false
	}
	cmp, br := &head[0], &head[1]
	if cmp.Op != ir.CMP || !br.Op.IsCondBranch() {
		return cl, false
	}
	if cmp.Dest.Kind != ir.Register {
		return cl, false
	}
	cl.induction = int(cmp.Dest.Value)
	if cmp.Src1.Kind == ir.Immediate {
		cl.bound = cmp.Src1.Value
		cl.boundKnown = true
	} else if cmp.Src1.Kind != ir.Register {
		return cl, false
	}
	cl.exitLabel = br.Dest.Name
	cl.exitOp = br.Op

	latch := l.Latch.Instrs
	body := latch
	if l.Header == l.Latch {
		body = latch[2:]
	}
	if len(body) == 0 {
		return cl, false
	}
	back := body[len(body)-1]
	if back.Op != ir.JMP || back.Dest.Name != l.Header.Name {
		return cl, false
	}
	body = body[:len(body)-1]

	// Exactly one induction update, no inner control flow.
	updates := 0
	for i := range body {
		ins := &body[i]
		if ins.Op.IsBranch() {
			return cl, false
		}
		if ins.Def() == cl.induction {
			if ins.Op != ir.ADD || !ins.Src1.IsReg(cl.induction) || ins.Src2.Kind != ir.Immediate {
				return cl, false
			}
			cl.step = ins.Src2.Value
			updates++
		}
	}
	if updates != 1 || cl.step <= 0 {
		return cl, false
	}
	cl.body = body

	// Literal initializer: the last write to the induction register in
	// a non-latch predecessor of the header. Without one the trip
	// count can still come from profile data.
	for _, pred := range predecessors(fn, l.Header) {
		if pred == l.Latch {
			continue
		}
		for i := range pred.Instrs {
			ins := &pred.Instrs[i]
			if ins.Def() == cl.induction {
				if ins.Op == ir.MOV && ins.Src1.Kind == ir.Immediate {
					cl.init = ins.Src1.Value
					cl.initKnown = true
				} else {
					cl.initKnown = false
				}
			}
		}
	}
	return cl, true
}

func predecessors(fn *ir.Function, target *ir.BasicBlock) []*ir.BasicBlock {
	var preds []*ir.BasicBlock
	for _, b := range fn.Blocks {
		for _, s := range b.Succs {
			if s == target {
				preds = append(preds, b)
				break
			}
		}
	}
	return preds
}

// tripCount computes how many times the latch body runs before the
// exit branch fires, or -1 when the count is not a compile-time
// constant.
func (cl *countedLoop) tripCount() int64 {
	if !cl.boundKnown || !cl.initKnown {
		return -1
	}
	span := cl.bound - cl.init
	switch cl.exitOp {
	case ir.JGE: // exits when induction >= bound
		if span <= 0 {
			return 0
		}
		return (span + cl.step - 1) / cl.step
	case ir.JG: // exits when induction > bound
		if span < 0 {
			return 0
		}
		return span/cl.step + 1
	case ir.JE: // exits when induction == bound
		if span < 0 || span%cl.step != 0 {
			return -1
		}
		return span / cl.step
	}
	return -1
}

// unrollLoops fully unrolls counted loops whose trip count is known
// and at most a dozen. The body is duplicated once per iteration with
// the back branch removed, so the unrolled function has no back edge
// for that loop. Trip counts come from the literal initializer and
// bound, or from profile data when the literals are absent.
func unrollLoops(fn *ir.Function, loops []loop, profile *ProfileData, stats *Stats) {
	for _, l := range loops {
		cl, ok := matchCountedLoop(fn, l)
		if !ok {
			continue
		}
		trips := cl.tripCount()
		if trips < 0 && profile != nil {
			if avg, ok := profile.AvgLoopIterations[l.Header.Name]; ok && avg == float64(int64(avg)) {
				trips = int64(avg)
			}
		}
		if trips < 1 || trips > MaxUnrollTrips {
			continue
		}

		var unrolled []ir.Instruction
		for i := int64(0); i < trips; i++ {
			unrolled = append(unrolled, cl.body...)
		}
		exit := fn.Block(cl.exitLabel)

		// The header absorbs the unrolled body; the separate latch
		// block empties out and forwards to the exit.
		cl.Header.Instrs = unrolled
		if cl.Header != cl.Latch {
			cl.Latch.Instrs = nil
		}
		after := cl.Latch
		if idx := blockIndex(fn, after); exit != nil && (idx+1 >= len(fn.Blocks) || fn.Blocks[idx+1] != exit) {
			after.Append(ir.NewInstr(ir.JMP, ir.Lbl(cl.exitLabel)))
		}

		ir.WireSuccessors(fn)
		stats.LoopsUnrolled++
	}
}

func blockIndex(fn *ir.Function, b *ir.BasicBlock) int {
	for i, blk := range fn.Blocks {
		if blk == b {
			return i
		}
	}
	return -1
}

// markTailCalls annotates a CALL immediately followed by RET. The
// backend turns the pair into a jump.
func markTailCalls(fn *ir.Function, stats *Stats) {
	for _, b := range fn.Blocks {
		for i := 0; i+1 < len(b.Instrs); i++ {
			if b.Instrs[i].Op == ir.CALL && b.Instrs[i+1].Op == ir.RET {
				if b.Instrs[i].Comment != "TAIL_CALL" {
					b.Instrs[i].Comment = "TAIL_CALL"
					stats.TailCallsMarked++
				}
			}
		}
	}
}
