package ir

import "testing"

func hasUse(t *testing.T, def Def, user Def, index int) bool {
	t.Helper()
	for _, use := range def.Uses() {
		if use.User == user && use.Index == index {
			return true
		}
	}
	return false
}

func TestUseSetBijection(t *testing.T) {
	w := NewWorld("test")
	s32 := w.PrimType(PrimS32)
	c := w.Continuation(w.Pi(s32, s32), Debug{Name: "f"})
	x, y := c.Param(0), c.Param(1)

	sum := w.Arith(TagAdd, x, y, Debug{})
	if !hasUse(t, x, sum, 0) {
		t.Fatalf("x lacks the use (sum, 0)")
	}
	if !hasUse(t, y, sum, 1) {
		t.Fatalf("y lacks the use (sum, 1)")
	}

	for _, use := range x.Uses() {
		if use.User.Op(use.Index) != Def(x) {
			t.Fatalf("use edge does not point back at x")
		}
	}
}

func TestReplaceRewiresAllUses(t *testing.T) {
	w := NewWorld("test")
	s32 := w.PrimType(PrimS32)
	retT := w.Pi(w.MemType(), s32)
	main := w.Continuation(w.Pi(w.MemType(), s32, retT), Debug{Name: "main"})
	main.MakeExternal()
	x := main.Param(1)

	a := w.Arith(TagAdd, x, x, Debug{})
	b := w.Arith(TagMul, x, x, Debug{})
	user := w.Arith(TagSub, a, a, Debug{})
	main.Jump(main.Param(2), nil, []Def{main.Param(0), user}, Debug{})

	Replace(a, b)

	if user.NumOps() != 2 || user.Op(0) != b || user.Op(1) != b {
		t.Fatalf("replace did not rewire user operands")
	}
	if !hasUse(t, b, user, 0) || !hasUse(t, b, user, 1) {
		t.Fatalf("b's use-set misses the rewired edges")
	}
	if a.NumUses() != 0 {
		t.Fatalf("a should have no uses left, has %d", a.NumUses())
	}

	w.Cleanup()
	for _, p := range w.PrimOps() {
		for i := 0; i < p.NumOps(); i++ {
			if p.Op(i) == Def(a) {
				t.Fatalf("cleanup left an operand pointing at the replaced def")
			}
		}
	}
	if err := Verify(w); err != nil {
		t.Fatalf("verify after replace+cleanup: %v", err)
	}
}

func TestReplaceSelfIsNoop(t *testing.T) {
	w := NewWorld("test")
	s32 := w.PrimType(PrimS32)
	c := w.Continuation(w.Pi(s32), Debug{Name: "f"})
	a := w.Arith(TagAdd, c.Param(0), c.Param(0), Debug{})
	Replace(a, a) // must not panic or change anything
	if a.NumOps() != 2 {
		t.Fatalf("self-replace altered the def")
	}
}

func TestPassTokens(t *testing.T) {
	w := NewWorld("test")
	s32 := w.PrimType(PrimS32)
	c := w.Continuation(w.Pi(s32), Debug{Name: "f"})

	p1 := w.NewPass()
	if Visit(c, p1) {
		t.Fatalf("first visit must report unseen")
	}
	if !Visit(c, p1) {
		t.Fatalf("second visit must report seen")
	}
	p2 := w.NewPass()
	if IsVisited(c, p2) {
		t.Fatalf("a fresh pass token must not see old marks")
	}
}

func TestJumpMaintainsUses(t *testing.T) {
	w := NewWorld("test")
	s32 := w.PrimType(PrimS32)
	f := w.Continuation(w.Pi(s32), Debug{Name: "f"})
	g := w.Continuation(w.Pi(s32), Debug{Name: "g"})
	h := w.Continuation(w.Pi(s32), Debug{Name: "h"})

	f.Jump(g, nil, []Def{f.Param(0)}, Debug{})
	if !hasUse(t, g, f, 0) {
		t.Fatalf("jump target lacks the callee use")
	}

	f.Jump(h, nil, []Def{f.Param(0)}, Debug{})
	if g.NumUses() != 0 {
		t.Fatalf("re-jump must unregister the old callee use")
	}
	if !hasUse(t, h, f, 0) {
		t.Fatalf("re-jump must register the new callee use")
	}

	succs := f.Succs()
	if len(succs) != 1 || succs[0] != h {
		t.Fatalf("succs must reflect the current jump, got %v", succs)
	}
	preds := h.Preds()
	if len(preds) != 1 || preds[0] != f {
		t.Fatalf("preds must reflect the current jump, got %v", preds)
	}
}
