// Package optimizer rewrites linear IR modules through a sequence of
// passes selected by an optimization level.
//
// Level 0 is the identity. Level 1 enables the safe local passes
// (constant folding, liveness dead-code elimination, peephole
// rewrites, branch simplification, base-twelve annotation). Level 2
// adds loop detection, dozen-bounded full unrolling, and tail-call
// marking. Level 3 adds dependence-safe instruction scheduling and
// profile-guided block layout. A NOP sweep always runs last at any
// level above 0.
package optimizer

import (
	"fmt"
	"strings"

	"github.com/kolkov/snoc/internal/ir"
)

// MaxUnrollTrips is the largest trip count that is fully unrolled.
// The language optimizes for dozens.
const MaxUnrollTrips = 12

// Stats counts transformations per pass kind for one Optimize run.
type Stats struct {
	ConstantsFolded       int
	ConstantsPropagated   int
	DeadInstrsRemoved     int
	PeepholeRewrites      int
	MovePairsForwarded    int
	BranchesSimplified    int
	BaseTwelveAnnotations int
	LoopsDetected         int
	LoopsUnrolled         int
	TailCallsMarked       int
	InstrsScheduled       int
	BlocksReordered       int
	NopsSwept             int
}

// Total returns the number of transformations applied.
func (s *Stats) Total() int {
	return s.ConstantsFolded + s.ConstantsPropagated + s.DeadInstrsRemoved +
		s.PeepholeRewrites + s.MovePairsForwarded + s.BranchesSimplified +
		s.BaseTwelveAnnotations + s.LoopsUnrolled + s.TailCallsMarked +
		s.InstrsScheduled + s.BlocksReordered + s.NopsSwept
}

func (s *Stats) String() string {
	var b strings.Builder
	line := func(name string, n int) {
		fmt.Fprintf(&b, "  %-24s %d\n", name, n)
	}
	b.WriteString("optimizer statistics:\n")
	line("constants folded", s.ConstantsFolded)
	line("constants propagated", s.ConstantsPropagated)
	line("dead instrs removed", s.DeadInstrsRemoved)
	line("peephole rewrites", s.PeepholeRewrites)
	line("move pairs forwarded", s.MovePairsForwarded)
	line("branches simplified", s.BranchesSimplified)
	line("base-12 annotations", s.BaseTwelveAnnotations)
	line("loops detected", s.LoopsDetected)
	line("loops unrolled", s.LoopsUnrolled)
	line("tail calls marked", s.TailCallsMarked)
	line("instrs scheduled", s.InstrsScheduled)
	line("blocks reordered", s.BlocksReordered)
	line("NOPs swept", s.NopsSwept)
	return b.String()
}

// Optimize rewrites mod in place at the given level and returns the
// transformation counts. Profile may be nil; the level-2 unroller
// reads its loop averages and the level-3 layout its block counts. A returned error is an invariant violation and
// therefore an optimizer bug, not a user error.
func Optimize(mod *ir.Module, level int, profile *ProfileData) (*Stats, error) {
	stats := &Stats{}
	if level <= 0 {
		return stats, nil
	}
	for _, fn := range mod.Funcs {
		entry := fn.Entry()

		constantFolding(fn, stats)
		peephole(fn, stats)
		deadCode(fn, stats)
		simplifyBranches(fn, stats)
		annotateBaseTwelve(fn, stats)

		if level >= 2 {
			loops := detectLoops(fn)
			stats.LoopsDetected += len(loops)
			unrollLoops(fn, loops, profile, stats)
			markTailCalls(fn, stats)
		}
		if level >= 3 {
			scheduleBlocks(fn, stats)
			layoutBlocks(fn, profile, stats)
		}

		sweepNops(fn, stats)
		ir.WireSuccessors(fn)

		if err := verify(fn, entry); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// verify checks the pass invariants on fn. entry is the block that was
// first before any pass ran.
func verify(fn *ir.Function, entry *ir.BasicBlock) error {
	if len(fn.Blocks) == 0 {
		return fmt.Errorf("optimizer: function %s lost all blocks", fn.Name)
	}
	if entry != nil && fn.Blocks[0] != entry {
		return fmt.Errorf("optimizer: function %s entry block displaced", fn.Name)
	}
	for _, b := range fn.Blocks {
		succs := map[*ir.BasicBlock]bool{}
		for _, s := range b.Succs {
			succs[s] = true
		}
		for i := range b.Instrs {
			ins := &b.Instrs[i]
			if ins.Op.IsBranch() {
				target := fn.Block(ins.Dest.Name)
				if target == nil {
					return fmt.Errorf("optimizer: %s: branch to unknown label %q", fn.Name, ins.Dest.Name)
				}
				if !succs[target] {
					return fmt.Errorf("optimizer: %s: block %s branches to %s without a successor edge", fn.Name, b.Name, target.Name)
				}
			}
			if ins.Op == ir.CALL && (ins.Dest.Kind != ir.Label || ins.Dest.Name == "") {
				return fmt.Errorf("optimizer: %s: CALL without a target symbol", fn.Name)
			}
			for _, reg := range ins.Uses() {
				if reg < 0 || reg >= fn.RegCount() {
					return fmt.Errorf("optimizer: %s: reference to unallocated register R%d", fn.Name, reg)
				}
			}
		}
	}
	return nil
}
