// Package transform implements graph rewrites over the ir: specialization
// by call site (partial evaluation), inlining, frame lifting and the
// flow-graph type erasure. Every transform leaves the world consistent and
// reports conservative fallbacks through the world's tracer.
package transform

import (
	"fmt"

	"anvil/internal/analysis"
	"anvil/internal/ir"
)

// mangler clones the body of a scope under a substitution that replaces
// the entry's parameters by specific defs.
type mangler struct {
	scope   *analysis.Scope
	world   *ir.World
	old2new map[ir.Def]ir.Def
}

// Drop clones the scope's entry with args substituted for its parameters.
// A nil arg is a hole: the clone keeps a fresh parameter at that position.
// Defs outside the scope are shared, everything inside is copied.
func Drop(scope *analysis.Scope, typeArgs []*ir.Type, args []ir.Def) *ir.Continuation {
	w := scope.World()
	entry := scope.Entry()
	if len(args) != entry.NumParams() {
		panic(fmt.Sprintf("transform: drop arity mismatch: %d args for %d params",
			len(args), entry.NumParams()))
	}

	var holeTypes []*ir.Type
	for i, arg := range args {
		if arg == nil {
			holeTypes = append(holeTypes, entry.Param(i).Type())
		}
	}
	name := entry.Debug().Name
	if name == "" {
		name = "cont"
	}
	nentry := w.Continuation(w.Pi(holeTypes...), ir.Debug{Name: name + "_d", Loc: entry.Debug().Loc})

	// generics stay opaque to the core: type arguments key specializations
	// but are not substituted into the clone's types
	_ = typeArgs

	m := &mangler{scope: scope, world: w, old2new: make(map[ir.Def]ir.Def)}
	m.old2new[entry] = nentry
	hole := 0
	for i, arg := range args {
		if arg == nil {
			m.old2new[entry.Param(i)] = nentry.Param(hole)
			hole++
		} else {
			m.old2new[entry.Param(i)] = arg
		}
	}
	m.mangleJump(entry, nentry)
	return nentry
}

func (m *mangler) mangle(def ir.Def) ir.Def {
	if nd, ok := m.old2new[def]; ok {
		return nd
	}
	if !m.scope.Contains(def) {
		return def
	}
	switch d := def.(type) {
	case *ir.Continuation:
		nc := m.world.Continuation(d.Type(), d.Debug())
		m.old2new[d] = nc
		for i, p := range d.Params() {
			m.old2new[p] = nc.Param(i)
		}
		m.mangleJump(d, nc)
		return nc
	case *ir.Param:
		m.mangle(d.Continuation())
		return m.old2new[d]
	case *ir.PrimOp:
		ops := make([]ir.Def, d.NumOps())
		for i := range ops {
			ops[i] = m.mangle(d.Op(i))
		}
		nd := m.world.Rebuild(d, ops, d.Type())
		m.old2new[d] = nd
		return nd
	}
	return def
}

func (m *mangler) mangleJump(oc, nc *ir.Continuation) {
	if oc.Empty() {
		return
	}
	callee := m.mangle(oc.Callee())
	args := make([]ir.Def, oc.NumArgs())
	for i := range args {
		args[i] = m.mangle(oc.Arg(i))
	}
	nc.Jump(callee, oc.TypeArgs(), args, oc.JumpDebug())
}
