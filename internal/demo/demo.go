// Package demo builds small representative worlds used by the CLI and as
// pipeline inputs: programs exercising folding, branching, loops, stack
// frames and specialization.
package demo

import (
	"sort"

	"anvil/internal/ir"
)

// Builder constructs one demo world.
type Builder func() *ir.World

var builders = map[string]Builder{
	"fold":       Fold,
	"diamond":    Diamond,
	"loop":       Loop,
	"frames":     Frames,
	"specialize": Specialize,
}

// Names returns the demo names in stable order.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the builder for a demo name.
func Lookup(name string) (Builder, bool) {
	b, ok := builders[name]
	return b, ok
}

// Fold is a straight-line program whose body constant-folds at build time:
// main(mem, ret) jumps ret(mem, 2+3).
func Fold() *ir.World {
	w := ir.NewWorld("fold")
	s32 := w.PrimType(ir.PrimS32)
	retT := w.Pi(w.MemType(), s32)
	main := w.Continuation(w.Pi(w.MemType(), retT), ir.Debug{Name: "main"})
	main.MakeExternal()

	sum := w.Arith(ir.TagAdd, w.LitS32(2), w.LitS32(3), ir.Debug{})
	main.Jump(main.Param(1), nil, []ir.Def{main.Param(0), sum}, ir.Debug{})
	return w
}

// Diamond branches over a bool and rejoins:
// main(mem, c, ret) -> branch(c, a, b); a/b -> join(v); join -> ret.
func Diamond() *ir.World {
	w := ir.NewWorld("diamond")
	s32 := w.PrimType(ir.PrimS32)
	retT := w.Pi(w.MemType(), s32)
	main := w.Continuation(w.Pi(w.MemType(), w.BoolType(), retT), ir.Debug{Name: "main"})
	main.MakeExternal()
	mem, cond, ret := main.Param(0), main.Param(1), main.Param(2)

	join := w.BasicBlock(ir.Debug{Name: "join"}, s32)
	a := w.BasicBlock(ir.Debug{Name: "a"})
	b := w.BasicBlock(ir.Debug{Name: "b"})

	one := w.Arith(ir.TagAdd, w.LitS32(1), w.LitS32(0), ir.Debug{})
	a.Jump(join, nil, []ir.Def{one}, ir.Debug{})
	b.Jump(join, nil, []ir.Def{w.LitS32(2)}, ir.Debug{})
	join.Jump(ret, nil, []ir.Def{ir.Def(mem), join.Param(0)}, ir.Debug{})
	main.Branch(cond, a, b, ir.Debug{})
	return w
}

// Loop counts i up to n, accumulating the loop-invariant product n*n; the
// smart schedule hoists the mul out of the loop body.
func Loop() *ir.World {
	w := ir.NewWorld("loop")
	s32 := w.PrimType(ir.PrimS32)
	retT := w.Pi(w.MemType(), s32)
	main := w.Continuation(w.Pi(w.MemType(), s32, retT), ir.Debug{Name: "main"})
	main.MakeExternal()
	mem, n, ret := main.Param(0), main.Param(1), main.Param(2)

	head := w.BasicBlock(ir.Debug{Name: "head"}, s32, s32)
	body := w.BasicBlock(ir.Debug{Name: "body"})
	exit := w.BasicBlock(ir.Debug{Name: "exit"})
	i, acc := head.Param(0), head.Param(1)

	main.Jump(head, nil, []ir.Def{w.LitS32(0), w.LitS32(0)}, ir.Debug{})
	head.Branch(w.Cmp(ir.TagCmpLT, i, n, ir.Debug{}), body, exit, ir.Debug{})

	square := w.Arith(ir.TagMul, n, n, ir.Debug{Name: "square"})
	body.Jump(head, nil, []ir.Def{
		w.Arith(ir.TagAdd, i, w.LitS32(1), ir.Debug{}),
		w.Arith(ir.TagAdd, acc, square, ir.Debug{}),
	}, ir.Debug{})
	exit.Jump(ret, nil, []ir.Def{ir.Def(mem), acc}, ir.Debug{})
	return w
}

// Frames spills a value through a stack slot:
// enter -> slot -> store -> load -> leave -> ret.
func Frames() *ir.World {
	w := ir.NewWorld("frames")
	s32 := w.PrimType(ir.PrimS32)
	retT := w.Pi(w.MemType(), s32)
	main := w.Continuation(w.Pi(w.MemType(), s32, retT), ir.Debug{Name: "main"})
	main.MakeExternal()
	mem, v, ret := main.Param(0), main.Param(1), main.Param(2)

	enter := w.Enter(mem, ir.Debug{})
	frame := w.OutFrame(enter)
	slot := w.Slot(s32, frame, 0, ir.Debug{Name: "spill"})
	store := w.Store(w.OutMem(enter), slot, v, ir.Debug{})
	load := w.Load(store, slot, ir.Debug{})
	leave := w.Leave(w.OutMem(load), frame, ir.Debug{})

	main.Jump(ret, nil, []ir.Def{ir.Def(leave), w.OutVal(load)}, ir.Debug{})
	return w
}

// Specialize builds two call sites invoking the same helper with an equal
// specialization key and hlt-blocked continuations; the partial evaluator
// shares one specialization between them.
func Specialize() *ir.World {
	w := ir.NewWorld("specialize")
	s32 := w.PrimType(ir.PrimS32)
	retT := w.Pi(w.MemType(), s32)
	mainT := w.Pi(w.MemType(), w.BoolType(), retT)
	main := w.Continuation(mainT, ir.Debug{Name: "main"})
	main.MakeExternal()
	mem, cond, ret := main.Param(0), main.Param(1), main.Param(2)

	// f(k, out): out(k + k)
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
	return w
}
