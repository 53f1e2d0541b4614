package analysis

import (
	"testing"

	"anvil/internal/ir"
)

// diamond builds: main -> branch(cond, a, b); a, b -> join(v); join -> ret.
func diamond(t *testing.T) (*ir.World, *ir.Continuation, *ir.Continuation, *ir.Continuation, *ir.Continuation) {
	t.Helper()
	w := ir.NewWorld("diamond")
	s32 := w.PrimType(ir.PrimS32)
	retT := w.Pi(w.MemType(), s32)
	main := w.Continuation(w.Pi(w.MemType(), w.BoolType(), retT), ir.Debug{Name: "main"})
	main.MakeExternal()

	join := w.BasicBlock(ir.Debug{Name: "join"}, s32)
	a := w.BasicBlock(ir.Debug{Name: "a"})
	b := w.BasicBlock(ir.Debug{Name: "b"})

	a.Jump(join, nil, []ir.Def{w.LitS32(1)}, ir.Debug{})
	b.Jump(join, nil, []ir.Def{w.LitS32(2)}, ir.Debug{})
	join.Jump(main.Param(2), nil, []ir.Def{main.Param(0), join.Param(0)}, ir.Debug{})
	main.Branch(main.Param(1), a, b, ir.Debug{})
	return w, main, a, b, join
}

func TestDiamondRPO(t *testing.T) {
	_, main, a, b, join := diamond(t)
	s := NewScope(main)

	rpo := s.RPO()
	want := []*ir.Continuation{main, a, b, join}
	if len(rpo) != len(want) {
		t.Fatalf("rpo length: want %d, got %d", len(want), len(rpo))
	}
	for i := range want {
		if rpo[i] != want[i] {
			t.Fatalf("rpo[%d]: want %s, got %s", i, want[i].UniqueName(), rpo[i].UniqueName())
		}
	}

	seen := make(map[int]bool)
	for _, c := range rpo {
		id, ok := s.SID(c)
		if !ok {
			t.Fatalf("%s has no sid", c.UniqueName())
		}
		if id < 0 || id >= len(rpo) || seen[id] {
			t.Fatalf("sid %d of %s out of range or duplicated", id, c.UniqueName())
		}
		seen[id] = true
	}
}

func TestDiamondDominators(t *testing.T) {
	_, main, a, b, join := diamond(t)
	s := NewScope(main)
	dt := s.DomTree()

	if dt.IDom(main) != main {
		t.Fatalf("idom(entry) must be the entry")
	}
	for _, c := range []*ir.Continuation{a, b, join} {
		idom := dt.IDom(c)
		if idom != main {
			t.Fatalf("idom(%s): want main, got %s", c.UniqueName(), idom.UniqueName())
		}
		ci, _ := s.SID(c)
		pi, _ := s.SID(idom)
		if pi >= ci {
			t.Fatalf("idom of %s must come strictly earlier in RPO", c.UniqueName())
		}
	}
	if !dt.Dominates(main, join) {
		t.Fatalf("entry must dominate join")
	}
	if dt.Dominates(a, join) {
		t.Fatalf("a must not dominate join")
	}
	if dt.LCA(a, b) != main {
		t.Fatalf("lca(a, b) must be the entry")
	}

	li := s.LoopInfo()
	for _, c := range s.RPO() {
		if li.Depth(c) != 0 {
			t.Fatalf("diamond has no loops, %s reports depth %d", c.UniqueName(), li.Depth(c))
		}
	}
}

func TestDiamondExitsAndPostdoms(t *testing.T) {
	_, main, a, b, join := diamond(t)
	s := NewScope(main)

	exits := s.Exits()
	if len(exits) != 1 || exits[0] != join {
		t.Fatalf("expected join to be the only exit, got %v", exits)
	}
	brpo := s.BackwardsRPO()
	if len(brpo) == 0 || brpo[0] != join {
		t.Fatalf("backward RPO must start at the exit")
	}

	pt := s.PostDomTree()
	if pt.IDom(join) != join {
		t.Fatalf("the exit must postdominate itself")
	}
	for _, c := range []*ir.Continuation{a, b} {
		if pt.IDom(c) != join {
			t.Fatalf("postdom idom of %s must be join, got %s", c.UniqueName(), pt.IDom(c).UniqueName())
		}
	}
}

func TestScopeContainment(t *testing.T) {
	_, main, a, b, join := diamond(t)
	s := NewScope(main)

	for _, c := range []*ir.Continuation{main, a, b, join} {
		if !s.Contains(c) {
			t.Fatalf("%s must be in scope", c.UniqueName())
		}
	}
	if !s.InnerContains(join) {
		t.Fatalf("join is an inner continuation")
	}
	if s.InnerContains(main) {
		t.Fatalf("the entry is not an inner continuation")
	}
	if !s.Contains(main.Param(1)) {
		t.Fatalf("entry params belong to the scope")
	}
}

func TestUnreachableContinuationHasNoSID(t *testing.T) {
	w := ir.NewWorld("test")
	s32 := w.PrimType(ir.PrimS32)
	retT := w.Pi(w.MemType(), s32)
	main := w.Continuation(w.Pi(w.MemType(), s32, retT), ir.Debug{Name: "main"})
	main.MakeExternal()

	// stray uses the entry's param but nothing jumps to it
	stray := w.BasicBlock(ir.Debug{Name: "stray"})
	stray.Jump(main.Param(2), nil, []ir.Def{main.Param(0), main.Param(1)}, ir.Debug{})
	main.Jump(main.Param(2), nil, []ir.Def{main.Param(0), main.Param(1)}, ir.Debug{})

	s := NewScope(main)
	if !s.Contains(stray) {
		t.Fatalf("stray depends on entry params and must be in scope")
	}
	if _, ok := s.SID(stray); ok {
		t.Fatalf("unreachable continuation must report no sid")
	}
	for _, c := range s.RPO() {
		if c == stray {
			t.Fatalf("unreachable continuation must be excluded from rpo")
		}
	}
	if s.Size() != len(s.RPO())+1 {
		t.Fatalf("scope size must count the unreachable continuation")
	}
}

func TestScopeForEachVisitsExternals(t *testing.T) {
	w, _, _, _, _ := diamond(t)
	visited := 0
	ForEach(w, func(s *Scope) {
		visited++
		if !s.Entry().IsExternal() {
			t.Fatalf("ForEach must start scopes at externals")
		}
	})
	if visited != 1 {
		t.Fatalf("expected one external scope, visited %d", visited)
	}
}
