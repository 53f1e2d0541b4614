package transform

import (
	"testing"

	"anvil/internal/ir"
)

// specializeWorld builds two call sites invoking f with the same
// specialization key and hlt-blocked continuation arguments.
func specializeWorld(t *testing.T) (*ir.World, *ir.Continuation, *ir.Continuation, *ir.Continuation) {
	t.Helper()
	w := ir.NewWorld("specialize")
	s32 := w.PrimType(ir.PrimS32)
	retT := w.Pi(w.MemType(), s32)
	main := w.Continuation(w.Pi(w.MemType(), w.BoolType(), retT), ir.Debug{Name: "main"})
	main.MakeExternal()
	mem, cond, ret := main.Param(0), main.Param(1), main.Param(2)

	outT := w.Pi(s32)
	f := w.Continuation(w.Pi(s32, outT), ir.Debug{Name: "f"})
	f.Jump(f.Param(1), nil, []ir.Def{
		w.Arith(ir.TagAdd, f.Param(0), f.Param(0), ir.Debug{}),
	}, ir.Debug{})

	done := w.BasicBlock(ir.Debug{Name: "done"}, s32)
	done.Jump(ret, nil, []ir.Def{ir.Def(mem), done.Param(0)}, ir.Debug{})

	c1 := w.BasicBlock(ir.Debug{Name: "c1"})
	c2 := w.BasicBlock(ir.Debug{Name: "c2"})
	k := w.LitS32(7)
	c1.Jump(w.Run(f, done, ir.Debug{}), nil, []ir.Def{k, w.Hlt(done, done, ir.Debug{})}, ir.Debug{})
	c2.Jump(w.Run(f, done, ir.Debug{}), nil, []ir.Def{k, w.Hlt(done, done, ir.Debug{})}, ir.Debug{})
	main.Branch(cond, c1, c2, ir.Debug{})
	return w, main, c1, c2
}

func TestPartialEvaluationSharesSpecializations(t *testing.T) {
	w, _, c1, c2 := specializeWorld(t)

	PartialEvaluation(w)

	spec1, ok1 := c1.Callee().(*ir.Continuation)
	spec2, ok2 := c2.Callee().(*ir.Continuation)
	if !ok1 || !ok2 {
		t.Fatalf("both sites must call a continuation after evaluation")
	}
	if spec1 != spec2 {
		t.Fatalf("equal fingerprints must share one specialization")
	}
	if spec1.NumParams() != 1 {
		t.Fatalf("the specialization keeps exactly the hlt-blocked parameter, has %d", spec1.NumParams())
	}

	// the specialized body folded 7+7
	if !ir.IsLitValue(spec1.Arg(0), 14) {
		t.Fatalf("specialized body must carry the folded value, got %v", spec1.Arg(0))
	}

	for _, p := range w.PrimOps() {
		if p.Tag().IsEvalOp() {
			t.Fatalf("evaluation markers must be stripped, found %s", p.UniqueName())
		}
	}
	if err := ir.Verify(w); err != nil {
		t.Fatalf("verify after partial evaluation: %v", err)
	}
}

func TestPartialEvaluationIsIdempotent(t *testing.T) {
	w, _, _, _ := specializeWorld(t)

	PartialEvaluation(w)
	first := ir.Sprint(w)

	PartialEvaluation(w)
	second := ir.Sprint(w)

	if first != second {
		t.Fatalf("partial evaluation must reach a fixed point:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}
