package ir

import "fmt"

// Rebuild constructs the same operation as p over new operands and a new
// type, going through the interning constructors so folding and consing
// apply again.
func (w *World) Rebuild(p *PrimOp, ops []Def, t *Type) Def {
	dbg := p.Debug()
	switch tag := p.Tag(); {
	case tag == TagLit:
		return w.Lit(t, p.Extra(), dbg)
	case tag == TagBottom:
		return w.Bottom(t, dbg)
	case tag.IsArith() || tag.IsBit() || tag.IsShift():
		return w.Arith(tag, ops[0], ops[1], dbg)
	case tag.IsCmp():
		return w.Cmp(tag, ops[0], ops[1], dbg)
	case tag == TagSelect:
		return w.Select(ops[0], ops[1], ops[2], dbg)
	case tag == TagTuple:
		return w.Tuple(ops, dbg)
	case tag == TagArrayAgg:
		return w.ArrayAgg(t.Elem(0), ops, dbg)
	case tag == TagExtract:
		return w.Extract(ops[0], ops[1], dbg)
	case tag == TagInsert:
		return w.Insert(ops[0], ops[1], ops[2], dbg)
	case tag == TagLea:
		return w.Lea(ops[0], ops[1], dbg)
	case tag == TagLoad:
		return w.Load(ops[0], ops[1], dbg)
	case tag == TagStore:
		return w.Store(ops[0], ops[1], ops[2], dbg)
	case tag == TagEnter:
		return w.Enter(ops[0], dbg)
	case tag == TagLeave:
		return w.Leave(ops[0], ops[1], dbg)
	case tag == TagSlot:
		return w.Slot(t.Pointee(), ops[0], p.SlotIndex(), dbg)
	case tag == TagAlloc:
		return w.Alloc(t.Elem(1).Pointee(), ops[0], dbg)
	case tag == TagRun:
		return w.Run(ops[0], ops[1], dbg)
	case tag == TagHlt:
		return w.Hlt(ops[0], ops[1], dbg)
	}
	panic(fmt.Sprintf("ir: cannot rebuild %s", p.Tag()))
}
