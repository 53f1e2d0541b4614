package analysis

import (
	"anvil/internal/ir"
)

// DomTree is a dominator tree over the scope's CFG, built with the
// iterative Cooper–Harvey–Kennedy fix-point. The forward tree is indexed
// by forward RPO numbers, the backward tree (post-dominators) by backward
// RPO numbers; its "predecessors" are the in-scope successors.
type DomTree struct {
	scope   *Scope
	forward bool

	order    []*ir.Continuation
	index    map[*ir.Continuation]int
	idoms    []int
	children map[*ir.Continuation][]*ir.Continuation
	depths   []int
	numRoots int
}

func newDomTree(s *Scope, forward bool) *DomTree {
	t := &DomTree{scope: s, forward: forward}
	if forward {
		t.order = s.RPO()
		t.numRoots = len(s.Entries())
	} else {
		t.order = s.BackwardsRPO()
		t.numRoots = len(s.Exits())
	}
	t.index = make(map[*ir.Continuation]int, len(t.order))
	for i, c := range t.order {
		t.index[c] = i
	}
	t.create()
	return t
}

// cfgPreds returns the edges the tree walks against: CFG predecessors for
// the forward tree, CFG successors for the backward one, restricted to
// numbered continuations.
func (t *DomTree) cfgPreds(c *ir.Continuation) []*ir.Continuation {
	var raw []*ir.Continuation
	if t.forward {
		raw = t.scope.Preds(c)
	} else {
		raw = t.scope.Succs(c)
	}
	var in []*ir.Continuation
	for _, p := range raw {
		if _, ok := t.index[p]; ok {
			in = append(in, p)
		}
	}
	return in
}

func (t *DomTree) create() {
	n := len(t.order)
	t.idoms = make([]int, n)

	// roots dominate themselves
	for i := 0; i < t.numRoots && i < n; i++ {
		t.idoms[i] = i
	}

	// all others start at their first dominating (smaller-indexed) pred
	for i := t.numRoots; i < n; i++ {
		t.idoms[i] = i
		for _, pred := range t.cfgPreds(t.order[i]) {
			if pi := t.index[pred]; pi < i {
				t.idoms[i] = pi
				break
			}
		}
	}

	for todo := true; todo; {
		todo = false
		for i := t.numRoots; i < n; i++ {
			newIdom := -1
			for _, pred := range t.cfgPreds(t.order[i]) {
				pi := t.index[pred]
				if newIdom < 0 {
					newIdom = pi
				} else {
					newIdom = t.lcaIdx(newIdom, pi)
				}
			}
			if newIdom >= 0 && t.idoms[i] != newIdom {
				t.idoms[i] = newIdom
				todo = true
			}
		}
	}

	t.children = make(map[*ir.Continuation][]*ir.Continuation, n)
	for i := t.numRoots; i < n; i++ {
		parent := t.order[t.idoms[i]]
		t.children[parent] = append(t.children[parent], t.order[i])
	}

	t.depths = make([]int, n)
	for i := 0; i < n; i++ {
		t.depths[i] = t.depthIdx(i)
	}
}

func (t *DomTree) depthIdx(i int) int {
	d := 0
	for t.idoms[i] != i {
		i = t.idoms[i]
		d++
	}
	return d
}

// lcaIdx walks both chains toward the roots comparing CFG indices. When the
// chains end in distinct roots (possible with several entries or exits)
// the lower-numbered root wins, which keeps the fix-point deterministic.
func (t *DomTree) lcaIdx(i, j int) int {
	for i != j {
		if i < j {
			i, j = j, i
		}
		p := t.idoms[i]
		if p == i {
			// i is a root with a larger index than j: no common
			// ancestor below the virtual super-root.
			for t.idoms[j] != j {
				j = t.idoms[j]
			}
			if j < i {
				return j
			}
			return i
		}
		i = p
	}
	return i
}

// Index returns the CFG index of the continuation in this tree's order.
func (t *DomTree) Index(c *ir.Continuation) (int, bool) {
	i, ok := t.index[c]
	return i, ok
}

// IDom returns the immediate dominator; roots dominate themselves.
func (t *DomTree) IDom(c *ir.Continuation) *ir.Continuation {
	i, ok := t.index[c]
	if !ok {
		return nil
	}
	return t.order[t.idoms[i]]
}

// Children returns the continuations immediately dominated by c.
func (t *DomTree) Children(c *ir.Continuation) []*ir.Continuation {
	return t.children[c]
}

// LCA returns the least common ancestor of a and b in the tree.
func (t *DomTree) LCA(a, b *ir.Continuation) *ir.Continuation {
	ai, aok := t.index[a]
	bi, bok := t.index[b]
	if !aok || !bok {
		return nil
	}
	return t.order[t.lcaIdx(ai, bi)]
}

// Depth returns the distance from c to its root.
func (t *DomTree) Depth(c *ir.Continuation) int {
	i, ok := t.index[c]
	if !ok {
		return 0
	}
	return t.depths[i]
}

// Dominates reports whether a dominates b.
func (t *DomTree) Dominates(a, b *ir.Continuation) bool {
	ai, aok := t.index[a]
	bi, bok := t.index[b]
	if !aok || !bok {
		return false
	}
	for {
		if bi == ai {
			return true
		}
		p := t.idoms[bi]
		if p == bi {
			return false
		}
		bi = p
	}
}
