package transform

import (
	"anvil/internal/analysis"
	"anvil/internal/ir"
	"anvil/internal/trace"
)

// findEnter returns the enter consuming def as its memory, or nil.
func findEnter(def ir.Def) *ir.PrimOp {
	for _, use := range def.Uses() {
		if p, ok := use.User.(*ir.PrimOp); ok && p.Tag() == ir.TagEnter && use.Index == 0 {
			return p
		}
	}
	return nil
}

// memOut returns the memory value a memory op produces: store and leave
// are the memory themselves; enter, load and alloc carry it as the first
// tuple element, reachable through an existing projection.
func memOut(p *ir.PrimOp) ir.Def {
	switch p.Tag() {
	case ir.TagStore, ir.TagLeave:
		return p
	case ir.TagEnter, ir.TagLoad, ir.TagAlloc:
		for _, use := range p.Uses() {
			up, ok := use.User.(*ir.PrimOp)
			if ok && up.Tag() == ir.TagExtract && use.Index == 0 && ir.IsLitValue(up.Op(1), 0) {
				return up
			}
		}
	}
	return nil
}

// frameOf returns the frame projection of an enter, or nil.
func frameOf(enter *ir.PrimOp) ir.Def {
	for _, use := range enter.Uses() {
		up, ok := use.User.(*ir.PrimOp)
		if ok && up.Tag() == ir.TagExtract && use.Index == 0 && ir.IsLitValue(up.Op(1), 1) {
			return up
		}
	}
	return nil
}

// findEnters walks the continuation's memory chain and collects every
// enter on it.
func findEnters(c *ir.Continuation, enters *[]*ir.PrimOp) {
	param := c.MemParam()
	if param == nil {
		return
	}
	for cur := ir.Def(param); cur != nil; {
		if enter := findEnter(cur); enter != nil {
			*enters = append(*enters, enter)
		}
		next := ir.Def(nil)
		for _, use := range cur.Uses() {
			if p, ok := use.User.(*ir.PrimOp); ok && p.Tag().IsMemOp() && use.Index == 0 {
				next = memOut(p)
				break
			}
		}
		cur = next
	}
}

// liftEnters rewrites every enter of the scope's inner continuations so
// that their slots refer to the entry's enter, with renumbered indices.
// Result: one frame per function.
func liftEnters(s *analysis.Scope) {
	w := s.World()
	entry := s.Entry()
	memParam := entry.MemParam()
	if memParam == nil {
		trace.Warnf(w.Tracer(), "lift_enters", "entry %s has no memory parameter", entry.UniqueName())
		return
	}

	var enters []*ir.PrimOp
	rpo := s.RPO()
	for i := len(rpo) - 1; i >= 1; i-- {
		findEnters(rpo[i], &enters)
	}

	enter := findEnter(memParam)
	if enter == nil {
		enter = w.Enter(memParam, ir.Debug{})
	}
	frame := w.OutFrame(enter)

	// continue numbering past the entry frame's highest slot
	index := 0
	for _, use := range frame.Uses() {
		if p, ok := use.User.(*ir.PrimOp); ok && p.Tag() == ir.TagSlot {
			if p.SlotIndex() >= index {
				index = p.SlotIndex() + 1
			}
		}
	}

	for _, oldEnter := range enters {
		if oldFrame := frameOf(oldEnter); oldFrame != nil {
			for _, use := range oldFrame.Uses() {
				p, ok := use.User.(*ir.PrimOp)
				if !ok || p.Tag() != ir.TagSlot {
					continue
				}
				ir.Replace(p, w.Slot(p.Type().Pointee(), frame, index, p.Debug()))
				index++
			}
		}
		// splice the old frame acquisition out of the memory chain
		if out := memOut(oldEnter); out != nil {
			ir.Replace(out, oldEnter.Mem())
		}
	}
}

// LiftEnters gives every function a single stack frame: the entry's enter
// hosts all slots of its scope.
func LiftEnters(w *ir.World) {
	w.Cleanup()
	analysis.ForEach(w, func(s *analysis.Scope) { liftEnters(s) })
	w.Cleanup()
	if err := ir.Verify(w); err != nil {
		trace.Warnf(w.Tracer(), "lift_enters", "verify: %v", err)
	}
}
