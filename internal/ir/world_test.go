package ir

import (
	"math"
	"testing"
)

func TestConstantFoldAdd(t *testing.T) {
	w := NewWorld("test")
	sum := w.Arith(TagAdd, w.LitS32(2), w.LitS32(3), Debug{})
	lit, ok := sum.(*PrimOp)
	if !ok || lit.Tag() != TagLit {
		t.Fatalf("expected 2+3 to fold to a literal, got %v", sum.Tag())
	}
	if lit.ValueS() != 5 {
		t.Fatalf("expected 5, got %d", lit.ValueS())
	}
	again := w.Arith(TagAdd, w.LitS32(2), w.LitS32(3), Debug{})
	if again != sum {
		t.Fatalf("folded literal not interned: distinct objects")
	}
}

func TestPrimopInterning(t *testing.T) {
	w := NewWorld("test")
	s32 := w.PrimType(PrimS32)
	c := w.Continuation(w.Pi(s32, s32), Debug{Name: "f"})
	a := w.Arith(TagMul, c.Param(0), c.Param(1), Debug{})
	b := w.Arith(TagMul, c.Param(0), c.Param(1), Debug{})
	if a != b {
		t.Fatalf("equivalent primops must be the same object")
	}
	if a.IsConst() {
		t.Fatalf("a primop over params must not be const")
	}
}

func TestSignedOverflowLeavesUnfolded(t *testing.T) {
	w := NewWorld("test")
	sum := w.Arith(TagAdd, w.LitS32(math.MaxInt32), w.LitS32(1), Debug{})
	p, ok := sum.(*PrimOp)
	if !ok || p.Tag() != TagAdd {
		t.Fatalf("overflowing signed add must stay unfolded, got %v", sum.Tag())
	}
}

func TestDivisionByZeroLeavesUnfolded(t *testing.T) {
	w := NewWorld("test")
	div := w.Arith(TagDiv, w.LitS32(7), w.LitS32(0), Debug{})
	p, ok := div.(*PrimOp)
	if !ok || p.Tag() != TagDiv {
		t.Fatalf("division by zero must stay unfolded, got %v", div.Tag())
	}
}

func TestUnsignedArithmeticWraps(t *testing.T) {
	w := NewWorld("test")
	sum := w.Arith(TagAdd, w.LitU32(math.MaxUint32), w.LitU32(1), Debug{})
	p, ok := sum.(*PrimOp)
	if !ok || p.Tag() != TagLit {
		t.Fatalf("unsigned add must wrap and fold, got %v", sum.Tag())
	}
	if p.Value() != 0 {
		t.Fatalf("expected wrap to 0, got %d", p.Value())
	}
}

func TestCmpFolds(t *testing.T) {
	w := NewWorld("test")
	lt := w.Cmp(TagCmpLT, w.LitS32(-1), w.LitS32(1), Debug{})
	p, ok := lt.(*PrimOp)
	if !ok || p.Tag() != TagLit || !p.ValueBool() {
		t.Fatalf("expected -1 < 1 to fold to true")
	}
}

func TestTypeInterning(t *testing.T) {
	w := NewWorld("test")
	s32 := w.PrimType(PrimS32)
	if w.Pi(s32, s32) != w.Pi(s32, s32) {
		t.Fatalf("pi types must be interned")
	}
	if w.Sigma(s32, w.BoolType()) != w.Sigma(s32, w.BoolType()) {
		t.Fatalf("sigma types must be interned")
	}
	if w.PrimType(PrimS32) != s32 {
		t.Fatalf("prim types must be interned")
	}
	if w.VecType(PrimS32, 4) == s32 {
		t.Fatalf("vector length must distinguish types")
	}
}

func TestNamedSigmaIsNominal(t *testing.T) {
	w := NewWorld("test")
	a := w.NamedSigma("FlowTask", 1)
	b := w.NamedSigma("FlowTask", 1)
	if a == b {
		t.Fatalf("named sigmas are nominal, two creations must differ")
	}
	if !a.IsNamed() {
		t.Fatalf("sigma with non-empty name must report named")
	}
	if w.Sigma(w.PrimType(PrimS32)).IsNamed() {
		t.Fatalf("anonymous sigma must not report named")
	}
}

func TestSelectFoldsOnLiteralCondition(t *testing.T) {
	w := NewWorld("test")
	a, b := w.LitS32(1), w.LitS32(2)
	if w.Select(w.LitBool(true), a, b, Debug{}) != Def(a) {
		t.Fatalf("select(true) must yield the first arm")
	}
	if w.Select(w.LitBool(false), a, b, Debug{}) != Def(b) {
		t.Fatalf("select(false) must yield the second arm")
	}
}

func TestExtractOfTupleFolds(t *testing.T) {
	w := NewWorld("test")
	s32 := w.PrimType(PrimS32)
	c := w.Continuation(w.Pi(s32, s32), Debug{Name: "f"})
	tup := w.Tuple([]Def{c.Param(0), c.Param(1)}, Debug{})
	if w.ExtractAt(tup, 1, Debug{}) != Def(c.Param(1)) {
		t.Fatalf("extract of a fresh tuple must fold to the element")
	}
}

func TestCleanupKeepsOnlyReachable(t *testing.T) {
	w := NewWorld("test")
	s32 := w.PrimType(PrimS32)
	retT := w.Pi(w.MemType(), s32)
	main := w.Continuation(w.Pi(w.MemType(), s32, retT), Debug{Name: "main"})
	main.MakeExternal()

	kept := w.Arith(TagAdd, main.Param(1), main.Param(1), Debug{})
	orphan := w.Arith(TagSub, main.Param(1), main.Param(1), Debug{})
	main.Jump(main.Param(2), nil, []Def{main.Param(0), kept}, Debug{})

	w.Cleanup()

	foundKept, foundOrphan := false, false
	for _, p := range w.PrimOps() {
		if Def(p) == kept {
			foundKept = true
		}
		if Def(p) == orphan {
			foundOrphan = true
		}
	}
	if !foundKept {
		t.Fatalf("reachable primop swept by cleanup")
	}
	if foundOrphan {
		t.Fatalf("unreachable primop survived cleanup")
	}
	if err := Verify(w); err != nil {
		t.Fatalf("verify after cleanup: %v", err)
	}
}
