package transform

import (
	"testing"

	"anvil/internal/ir"
)

func TestLiftEntersUnifiesFrames(t *testing.T) {
	w := ir.NewWorld("lift")
	s32 := w.PrimType(ir.PrimS32)
	retT := w.Pi(w.MemType(), s32)
	main := w.Continuation(w.Pi(w.MemType(), s32, retT), ir.Debug{Name: "main"})
	main.MakeExternal()
	mem, v := main.Param(0), main.Param(1)

	// entry frame with one slot
	enter := w.Enter(mem, ir.Debug{})
	frame := w.OutFrame(enter)
	slot0 := w.Slot(s32, frame, 0, ir.Debug{})
	store0 := w.Store(w.OutMem(enter), slot0, v, ir.Debug{})

	// a second frame inside an inner continuation
	inner := w.BasicBlock(ir.Debug{Name: "inner"}, w.MemType())
	enter2 := w.Enter(inner.Param(0), ir.Debug{})
	frame2 := w.OutFrame(enter2)
	slot2 := w.Slot(s32, frame2, 0, ir.Debug{})
	store2 := w.Store(w.OutMem(enter2), slot2, v, ir.Debug{})
	load2 := w.Load(store2, slot2, ir.Debug{})
	inner.Jump(main.Param(2), nil, []ir.Def{w.OutMem(load2), w.OutVal(load2)}, ir.Debug{})

	main.Jump(inner, nil, []ir.Def{ir.Def(store0)}, ir.Debug{})

	LiftEnters(w)

	// every surviving slot hangs off the entry's frame
	var slots []*ir.PrimOp
	for _, p := range w.PrimOps() {
		if p.Tag() == ir.TagSlot {
			slots = append(slots, p)
		}
	}
	if len(slots) == 0 {
		t.Fatalf("slots must survive the lift")
	}
	indices := make(map[int]bool)
	for _, s := range slots {
		if s.Op(0) != frame {
			t.Fatalf("slot %s must refer to the entry frame", s.UniqueName())
		}
		if indices[s.SlotIndex()] {
			t.Fatalf("slot indices must stay distinct after renumbering")
		}
		indices[s.SlotIndex()] = true
	}

	// only the entry's enter remains
	enters := 0
	for _, p := range w.PrimOps() {
		if p.Tag() == ir.TagEnter {
			enters++
		}
	}
	if enters != 1 {
		t.Fatalf("expected a single frame per function, found %d enters", enters)
	}
	if err := ir.Verify(w); err != nil {
		t.Fatalf("verify after lift: %v", err)
	}
}
