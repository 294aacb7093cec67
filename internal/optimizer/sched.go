package optimizer

import (
	"sort"

	"github.com/kolkov/snoc/internal/ir"
)

// isSchedBarrier reports whether an instruction pins every neighbour
// in place. Nothing moves across a wait, a call, a compare, or any
// control transfer.
func isSchedBarrier(op ir.Op) bool {
	if op.IsBranch() {
		return true
	}
	switch op {
	case ir.WAIT, ir.CALL, ir.RET, ir.CMP, ir.LABEL:
		return true
	}
	return false
}

// scheduleBlocks reorders instructions inside each block between
// barriers, honouring data dependences: a reader never moves above
// the writer of its register, and writes to the same register keep
// their order. Within those constraints, instructions on the longest
// dependence chain are issued first.
func scheduleBlocks(fn *ir.Function, stats *Stats) {
	for _, b := range fn.Blocks {
		var out []ir.Instruction
		seg := 0
		for i := 0; i <= len(b.Instrs); i++ {
			if i < len(b.Instrs) && !isSchedBarrier(b.Instrs[i].Op) {
				continue
			}
			out = append(out, scheduleSegment(b.Instrs[seg:i], stats)...)
			if i < len(b.Instrs) {
				out = append(out, b.Instrs[i])
			}
			seg = i + 1
		}
		b.Instrs = out
	}
}

func scheduleSegment(seg []ir.Instruction, stats *Stats) []ir.Instruction {
	if len(seg) < 2 {
		return seg
	}

	// Dependence edges i -> j (j after i) for RAW, WAR, and WAW.
	n := len(seg)
	preds := make([]int, n)      // unscheduled dependence count
	succs := make([][]int, n)    // dependents
	height := make([]int, n)     // critical-path height
	isMem := func(op ir.Op) bool { return op == ir.LOAD || op == ir.STORE }
	conflict := func(i, j int) bool {
		if isMem(seg[i].Op) && isMem(seg[j].Op) {
			return true
		}
		di, dj := seg[i].Def(), seg[j].Def()
		if di >= 0 {
			if dj >= 0 && di == dj {
				return true
			}
			for _, u := range seg[j].Uses() {
				if u == di {
					return true
				}
			}
		}
		if dj >= 0 {
			for _, u := range seg[i].Uses() {
				if u == dj {
					return true
				}
			}
		}
		return false
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if conflict(i, j) {
				succs[i] = append(succs[i], j)
				preds[j]++
			}
		}
	}
	for i := n - 1; i >= 0; i-- {
		for _, j := range succs[i] {
			if height[j]+1 > height[i] {
				height[i] = height[j] + 1
			}
		}
	}

	ready := []int{}
	for i := 0; i < n; i++ {
		if preds[i] == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]int, 0, n)
	for len(ready) > 0 {
		sort.Slice(ready, func(a, b int) bool {
			if height[ready[a]] != height[ready[b]] {
				return height[ready[a]] > height[ready[b]]
			}
			return ready[a] < ready[b]
		})
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, j := range succs[next] {
			preds[j]--
			if preds[j] == 0 {
				ready = append(ready, j)
			}
		}
	}

	out := make([]ir.Instruction, n)
	for pos, idx := range order {
		out[pos] = seg[idx]
		if pos != idx {
			stats.InstrsScheduled++
		}
	}
	return out
}

// layoutBlocks permutes block order so that hot blocks are contiguous
// and each hot block is followed by its hottest successor. The entry
// block stays first; cold blocks sink in their original order. Before
// permuting, every fallthrough is made explicit so the move cannot
// change semantics.
func layoutBlocks(fn *ir.Function, profile *ProfileData, stats *Stats) {
	if profile.Empty() || len(fn.Blocks) < 3 {
		return
	}

	// Make fallthrough explicit.
	for idx, b := range fn.Blocks {
		last := b.Terminator()
		if (last == nil || (last.Op != ir.JMP && last.Op != ir.RET)) && idx+1 < len(fn.Blocks) {
			b.Append(ir.NewInstr(ir.JMP, ir.Lbl(fn.Blocks[idx+1].Name)))
		}
	}
	ir.WireSuccessors(fn)

	placed := map[*ir.BasicBlock]bool{}
	layout := []*ir.BasicBlock{fn.Blocks[0]}
	placed[fn.Blocks[0]] = true

	hottestUnplaced := func() *ir.BasicBlock {
		var best *ir.BasicBlock
		var bestCount uint64
		for _, b := range fn.Blocks {
			if placed[b] {
				continue
			}
			if c := profile.ExecCount(b.Name); best == nil || c > bestCount {
				best, bestCount = b, c
			}
		}
		return best
	}

	cur := fn.Blocks[0]
	for len(layout) < len(fn.Blocks) {
		// Chain to the hottest unplaced successor; otherwise restart
		// the chain at the globally hottest unplaced block.
		var next *ir.BasicBlock
		var nextCount uint64
		for _, s := range cur.Succs {
			if placed[s] {
				continue
			}
			if c := profile.ExecCount(s.Name); next == nil || c > nextCount {
				next, nextCount = s, c
			}
		}
		if next == nil {
			next = hottestUnplaced()
		}
		layout = append(layout, next)
		placed[next] = true
		cur = next
	}

	moved := 0
	for i, b := range layout {
		if fn.Blocks[i] != b {
			moved++
		}
	}
	if moved == 0 {
		return
	}
	fn.Blocks = layout
	stats.BlocksReordered += moved

	// Re-simplify: a trailing jump to the new textual neighbour is a
	// fallthrough again.
	for idx, b := range fn.Blocks {
		if last := b.Terminator(); last != nil && last.Op == ir.JMP && idx+1 < len(fn.Blocks) {
			if last.Dest.Name == fn.Blocks[idx+1].Name {
				b.Instrs = b.Instrs[:len(b.Instrs)-1]
			}
		}
	}
	ir.WireSuccessors(fn)
}
