// Package analysis provides region extraction, control-flow numbering,
// dominator and loop analyses, and the instruction scheduler over the ir
// graph. All derived data is read-only after construction and becomes stale
// when the ir mutates; clients discard and recompute.
package analysis

import (
	"sort"

	"anvil/internal/ir"
)

// Scope is the region of continuations that transitively depend on the
// parameters of its entries. Continuations are numbered in reverse
// post-order both forward (from the entries) and backward (from the exits);
// dominator trees, the loop forest and pred/succ projections are computed
// lazily and cached.
type Scope struct {
	world    *ir.World
	entries  []*ir.Continuation
	barriers map[*ir.Continuation]struct{}

	defs map[ir.Def]struct{}
	all  []*ir.Continuation

	rpo  []*ir.Continuation
	sid  map[*ir.Continuation]int
	brpo []*ir.Continuation
	bsid map[*ir.Continuation]int

	exits []*ir.Continuation
	succs map[*ir.Continuation][]*ir.Continuation
	preds map[*ir.Continuation][]*ir.Continuation

	domtree     *DomTree
	postdomtree *DomTree
	looptree    *LoopTreeNode
	loopinfo    *LoopInfo
}

// NewScope extracts the scope of a single entry.
func NewScope(entry *ir.Continuation) *Scope {
	return NewScopeMulti(entry.World(), []*ir.Continuation{entry})
}

// NewScopeMulti extracts the scope of several entries; the entries' input
// order fixes the RPO prefix.
func NewScopeMulti(world *ir.World, entries []*ir.Continuation) *Scope {
	return NewScopeBarrier(world, entries, nil)
}

// NewScopeBarrier extracts a scope whose upward closure stops at the given
// barrier continuations.
func NewScopeBarrier(world *ir.World, entries, barriers []*ir.Continuation) *Scope {
	s := &Scope{world: world, entries: append([]*ir.Continuation(nil), entries...)}
	s.barriers = make(map[*ir.Continuation]struct{}, len(barriers))
	for _, b := range barriers {
		s.barriers[b] = struct{}{}
	}
	s.run()
	return s
}

// ForEach visits the scope of every external continuation of the world.
func ForEach(world *ir.World, f func(*Scope)) {
	for _, ext := range world.Externals() {
		f(NewScope(ext))
	}
}

// Update recomputes the scope and drops all cached analyses. Invoke after
// mutating anything inside the scope.
func (s *Scope) Update() *Scope {
	s.defs = nil
	s.all = nil
	s.rpo, s.sid = nil, nil
	s.brpo, s.bsid = nil, nil
	s.exits = nil
	s.succs, s.preds = nil, nil
	s.domtree, s.postdomtree = nil, nil
	s.looptree, s.loopinfo = nil, nil
	s.run()
	return s
}

func (s *Scope) run() {
	s.identify()
	s.rpoNumber()
}

// identify pools every continuation that transitively uses the entries'
// parameters, walking use-closures through non-continuation defs and
// upward through predecessors.
func (s *Scope) identify() {
	s.defs = make(map[ir.Def]struct{})
	pass := s.world.NewPass()
	for _, e := range s.entries {
		s.insert(pass, e)
	}
	for _, e := range s.entries {
		s.paramUsers(pass, e)
	}
}

func (s *Scope) insert(pass uint64, c *ir.Continuation) {
	ir.Visit(c, pass)
	s.defs[c] = struct{}{}
	s.all = append(s.all, c)
}

func (s *Scope) paramUsers(pass uint64, c *ir.Continuation) {
	for _, p := range c.Params() {
		s.findUser(pass, p)
	}
}

func (s *Scope) findUser(pass uint64, def ir.Def) {
	if c, ok := ir.IsContinuation(def); ok {
		s.up(pass, c)
		return
	}
	if ir.Visit(def, pass) {
		return
	}
	s.defs[def] = struct{}{}
	for _, use := range def.Uses() {
		s.findUser(pass, use.User)
	}
}

func (s *Scope) up(pass uint64, c *ir.Continuation) {
	if ir.IsVisited(c, pass) {
		return
	}
	if _, barred := s.barriers[c]; barred {
		return
	}
	s.insert(pass, c)
	s.paramUsers(pass, c)
	for _, pred := range c.Preds() {
		s.up(pass, pred)
	}
}

// rpoNumber assigns forward RPO indices starting from the entries.
// Continuations with no forward path from any entry stay unnumbered and
// are excluded from rpo().
func (s *Scope) rpoNumber() {
	pass := s.world.NewPass()
	po := make(map[*ir.Continuation]int, len(s.all))
	for _, e := range s.entries {
		ir.Visit(e, pass)
	}
	num := 0
	for _, e := range s.entries {
		num = s.poVisit(pass, e, po, num)
	}
	for i := len(s.entries) - 1; i >= 0; i-- {
		po[s.entries[i]] = num
		num++
	}

	s.sid = make(map[*ir.Continuation]int, num)
	s.rpo = make([]*ir.Continuation, 0, num)
	for _, c := range s.all {
		if p, ok := po[c]; ok {
			s.sid[c] = num - 1 - p
			s.rpo = append(s.rpo, c)
		}
	}
	sort.Slice(s.rpo, func(i, j int) bool { return s.sid[s.rpo[i]] < s.sid[s.rpo[j]] })
}

// poVisit explores successors last-to-first so that the earlier-listed
// successor of a branch receives the earlier RPO number.
func (s *Scope) poVisit(pass uint64, cur *ir.Continuation, po map[*ir.Continuation]int, i int) int {
	succs := s.Succs(cur)
	for k := len(succs) - 1; k >= 0; k-- {
		succ := succs[k]
		if !ir.IsVisited(succ, pass) {
			ir.Visit(succ, pass)
			i = s.poVisit(pass, succ, po, i)
			po[succ] = i
			i++
		}
	}
	return i
}

// backwardsNumber assigns backward RPO indices starting from the exits.
func (s *Scope) backwardsNumber() {
	exits := make([]*ir.Continuation, 0, 1)
	for _, c := range s.rpo {
		if len(s.Succs(c)) == 0 {
			exits = append(exits, c)
		}
	}
	s.exits = exits

	pass := s.world.NewPass()
	s.bsid = make(map[*ir.Continuation]int, len(s.rpo))
	num := 0
	for _, exit := range exits {
		ir.Visit(exit, pass)
		s.bsid[exit] = num
		num++
	}
	i := len(s.rpo) - 1
	for _, exit := range exits {
		i = s.poVisitBack(pass, exit, i)
	}

	s.brpo = make([]*ir.Continuation, 0, len(s.bsid))
	for _, c := range s.rpo {
		if _, ok := s.bsid[c]; ok {
			s.brpo = append(s.brpo, c)
		}
	}
	sort.Slice(s.brpo, func(a, b int) bool { return s.bsid[s.brpo[a]] < s.bsid[s.brpo[b]] })
}

func (s *Scope) poVisitBack(pass uint64, cur *ir.Continuation, i int) int {
	preds := s.Preds(cur)
	for k := len(preds) - 1; k >= 0; k-- {
		pred := preds[k]
		if !ir.IsVisited(pred, pass) {
			ir.Visit(pred, pass)
			i = s.poVisitBack(pass, pred, i)
			s.bsid[pred] = i
			i--
		}
	}
	return i
}

// Contains reports whether def belongs to the scope.
func (s *Scope) Contains(def ir.Def) bool {
	_, ok := s.defs[def]
	return ok
}

// InnerContains reports whether the continuation is in the scope but is not
// an entry.
func (s *Scope) InnerContains(c *ir.Continuation) bool {
	if !s.Contains(c) {
		return false
	}
	for _, e := range s.entries {
		if e == c {
			return false
		}
	}
	return true
}

// NumDefs returns the number of defs pooled into the scope.
func (s *Scope) NumDefs() int { return len(s.defs) }

// AllDefs returns every def pooled into the scope in ascending gid order.
func (s *Scope) AllDefs() []ir.Def {
	defs := make([]ir.Def, 0, len(s.defs))
	for d := range s.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].GID() < defs[j].GID() })
	return defs
}

// World returns the owning world.
func (s *Scope) World() *ir.World { return s.world }

// Entry returns the first entry.
func (s *Scope) Entry() *ir.Continuation { return s.entries[0] }

// Entries returns all entries in input order.
func (s *Scope) Entries() []*ir.Continuation { return s.entries }

// Size returns the number of continuations in the scope, including any
// that are unreachable along forward edges.
func (s *Scope) Size() int { return len(s.all) }

// RPO returns the forward-reachable continuations in reverse post-order;
// the entries come first in input order.
func (s *Scope) RPO() []*ir.Continuation { return s.rpo }

// SID returns the forward RPO index, or ok=false for a continuation that
// is unreachable from the entries.
func (s *Scope) SID(c *ir.Continuation) (int, bool) {
	id, ok := s.sid[c]
	return id, ok
}

// BackwardsRPO returns the continuations in reverse post-order of the
// reversed CFG; the exits come first.
func (s *Scope) BackwardsRPO() []*ir.Continuation {
	if s.brpo == nil {
		s.backwardsNumber()
	}
	return s.brpo
}

// BackwardsSID returns the backward RPO index.
func (s *Scope) BackwardsSID(c *ir.Continuation) (int, bool) {
	if s.bsid == nil {
		s.backwardsNumber()
	}
	id, ok := s.bsid[c]
	return id, ok
}

// Exits returns the continuations without in-scope successors.
func (s *Scope) Exits() []*ir.Continuation {
	if s.bsid == nil {
		s.backwardsNumber()
	}
	return s.exits
}

// Succs returns the control-flow successors projected to the scope.
func (s *Scope) Succs(c *ir.Continuation) []*ir.Continuation {
	if s.succs == nil {
		s.succs = make(map[*ir.Continuation][]*ir.Continuation)
	}
	if cached, ok := s.succs[c]; ok {
		return cached
	}
	var in []*ir.Continuation
	for _, succ := range c.Succs() {
		if s.Contains(succ) {
			in = append(in, succ)
		}
	}
	s.succs[c] = in
	return in
}

// Preds returns the control-flow predecessors projected to the scope.
func (s *Scope) Preds(c *ir.Continuation) []*ir.Continuation {
	if s.preds == nil {
		s.preds = make(map[*ir.Continuation][]*ir.Continuation)
	}
	if cached, ok := s.preds[c]; ok {
		return cached
	}
	var in []*ir.Continuation
	for _, pred := range c.Preds() {
		if s.Contains(pred) {
			in = append(in, pred)
		}
	}
	s.preds[c] = in
	return in
}

// DomTree returns the forward dominator tree.
func (s *Scope) DomTree() *DomTree {
	if s.domtree == nil {
		s.domtree = newDomTree(s, true)
	}
	return s.domtree
}

// PostDomTree returns the backward dominator tree.
func (s *Scope) PostDomTree() *DomTree {
	if s.postdomtree == nil {
		s.postdomtree = newDomTree(s, false)
	}
	return s.postdomtree
}

// LoopTree returns the root of the natural-loop forest.
func (s *Scope) LoopTree() *LoopTreeNode {
	if s.looptree == nil {
		s.looptree, s.loopinfo = buildLoopForest(s)
	}
	return s.looptree
}

// LoopInfo returns the per-continuation loop nesting info.
func (s *Scope) LoopInfo() *LoopInfo {
	if s.loopinfo == nil {
		s.looptree, s.loopinfo = buildLoopForest(s)
	}
	return s.loopinfo
}
