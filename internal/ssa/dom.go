package ssa

// domInfo holds the dominator analysis of one function: immediate
// dominators, the dominator tree, and per-block dominance frontiers.
type domInfo struct {
	order    []*BasicBlock          // reverse postorder from the entry
	num      map[*BasicBlock]int    // position in order
	idom     map[*BasicBlock]*BasicBlock
	children map[*BasicBlock][]*BasicBlock
	frontier map[*BasicBlock][]*BasicBlock
}

// computeDominators runs the classical iterative data-flow algorithm
// over reverse postorder, then derives the dominator tree and the
// dominance frontiers. Blocks unreachable from the entry are absent
// from the result.
func computeDominators(f *Function) *domInfo {
	d := &domInfo{
		num:      map[*BasicBlock]int{},
		idom:     map[*BasicBlock]*BasicBlock{},
		children: map[*BasicBlock][]*BasicBlock{},
		frontier: map[*BasicBlock][]*BasicBlock{},
	}
	entry := f.Entry()
	if entry == nil {
		return d
	}

	// Reverse postorder.
	seen := map[*BasicBlock]bool{}
	var post []*BasicBlock
	var dfs func(b *BasicBlock)
	dfs = func(b *BasicBlock) {
		seen[b] = true
		for _, s := range b.Succs {
			if !seen[s] {
				dfs(s)
			}
		}
		post = append(post, b)
	}
	dfs(entry)
	for i := len(post) - 1; i >= 0; i-- {
		d.num[post[i]] = len(d.order)
		d.order = append(d.order, post[i])
	}

	d.idom[entry] = entry
	changed := true
	for changed {
		changed = false
		for _, b := range d.order[1:] {
			var newIdom *BasicBlock
			for _, p := range b.Preds {
				if d.idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
				} else {
					newIdom = d.intersect(p, newIdom)
				}
			}
			if newIdom != nil && d.idom[b] != newIdom {
				d.idom[b] = newIdom
				changed = true
			}
		}
	}

	for _, b := range d.order[1:] {
		parent := d.idom[b]
		d.children[parent] = append(d.children[parent], b)
	}

	// Frontier: join points walk up from each predecessor until the
	// immediate dominator of the join is reached.
	for _, b := range d.order {
		if len(b.Preds) < 2 {
			continue
		}
		for _, p := range b.Preds {
			if _, ok := d.num[p]; !ok {
				continue
			}
			runner := p
			for runner != d.idom[b] {
				if !contains(d.frontier[runner], b) {
					d.frontier[runner] = append(d.frontier[runner], b)
				}
				runner = d.idom[runner]
			}
		}
	}
	return d
}

func (d *domInfo) intersect(a, b *BasicBlock) *BasicBlock {
	for a != b {
		for d.num[a] > d.num[b] {
			a = d.idom[a]
		}
		for d.num[b] > d.num[a] {
			b = d.idom[b]
		}
	}
	return a
}

// dominates reports whether a dominates b.
func (d *domInfo) dominates(a, b *BasicBlock) bool {
	for {
		if a == b {
			return true
		}
		next := d.idom[b]
		if next == nil || next == b {
			return false
		}
		b = next
	}
}

func contains(list []*BasicBlock, b *BasicBlock) bool {
	for _, x := range list {
		if x == b {
			return true
		}
	}
	return false
}
