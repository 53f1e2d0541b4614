package transform

import (
	"testing"

	"anvil/internal/analysis"
	"anvil/internal/ir"
)

func TestDropSubstitutesParams(t *testing.T) {
	w := ir.NewWorld("test")
	s32 := w.PrimType(ir.PrimS32)
	outT := w.Pi(s32)

	// f(x, out): out(x + 1)
	f := w.Continuation(w.Pi(s32, outT), ir.Debug{Name: "f"})
	f.Jump(f.Param(1), nil, []ir.Def{
		w.Arith(ir.TagAdd, f.Param(0), w.LitS32(1), ir.Debug{}),
	}, ir.Debug{})

	dropped := Drop(analysis.NewScope(f), nil, []ir.Def{w.LitS32(41), nil})

	if dropped.NumParams() != 1 {
		t.Fatalf("drop with one hole must keep one parameter, got %d", dropped.NumParams())
	}
	if dropped.Callee() != ir.Def(dropped.Param(0)) {
		t.Fatalf("the clone must call its remaining parameter")
	}
	if dropped.NumArgs() != 1 {
		t.Fatalf("the clone's jump must carry one argument")
	}
	arg, ok := dropped.Arg(0).(*ir.PrimOp)
	if !ok || arg.Tag() != ir.TagLit || arg.ValueS() != 42 {
		t.Fatalf("substituted argument must fold to 42, got %v", dropped.Arg(0))
	}

	// the original is untouched
	if f.NumParams() != 2 || f.Callee() != ir.Def(f.Param(1)) {
		t.Fatalf("drop must not mutate the original continuation")
	}
}

func TestDropClonesInnerContinuations(t *testing.T) {
	w := ir.NewWorld("test")
	s32 := w.PrimType(ir.PrimS32)
	outT := w.Pi(s32)

	// f(x, out) -> inner(); inner -> out(x)
	f := w.Continuation(w.Pi(s32, outT), ir.Debug{Name: "f"})
	inner := w.BasicBlock(ir.Debug{Name: "inner"})
	inner.Jump(f.Param(1), nil, []ir.Def{f.Param(0)}, ir.Debug{})
	f.Jump(inner, nil, nil, ir.Debug{})

	dropped := Drop(analysis.NewScope(f), nil, []ir.Def{w.LitS32(9), nil})

	clone, ok := dropped.Callee().(*ir.Continuation)
	if !ok {
		t.Fatalf("dropped entry must jump to a continuation")
	}
	if clone == inner {
		t.Fatalf("in-scope continuations must be cloned, not shared")
	}
	if clone.NumArgs() != 1 || !ir.IsLitValue(clone.Arg(0), 9) {
		t.Fatalf("the clone must forward the substituted argument")
	}
}
