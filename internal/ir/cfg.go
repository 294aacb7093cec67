package ir

// WireSuccessors rebuilds every successor list of f from its
// terminating branches plus textual fallthrough. Branch targets come
// first, in instruction order; a block falls through to the textually
// next block unless it ends in JMP or RET.
func WireSuccessors(f *Function) {
	for idx, b := range f.Blocks {
		b.Succs = nil
		seen := map[string]bool{}
		for i := range b.Instrs {
			ins := &b.Instrs[i]
			if ins.Op.IsBranch() && ins.Dest.Kind == Label && !seen[ins.Dest.Name] {
				if target := f.Block(ins.Dest.Name); target != nil {
					b.AddSuccessor(target)
					seen[ins.Dest.Name] = true
				}
			}
		}
		last := b.Terminator()
		fallsThrough := last == nil || (last.Op != JMP && last.Op != RET)
		if fallsThrough && idx+1 < len(f.Blocks) {
			next := f.Blocks[idx+1]
			if !seen[next.Name] {
				b.AddSuccessor(next)
			}
		}
	}
}
