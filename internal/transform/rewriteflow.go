package transform

import (
	"anvil/internal/ir"
)

// Flow-graph type erasure: task and graph handles produced by the flow
// front-end become plain 32-bit integers in every type, primop and
// continuation, preserving the use graph.

const (
	flowTaskName  = "FlowTask"
	flowGraphName = "FlowGraph"
)

func isFlowHandle(t *ir.Type) bool {
	return t.IsNamed() && (t.Name() == flowTaskName || t.Name() == flowGraphName)
}

func hasFlowHandle(t *ir.Type, seen map[*ir.Type]struct{}) bool {
	if isFlowHandle(t) {
		return true
	}
	if _, ok := seen[t]; ok {
		return false
	}
	seen[t] = struct{}{}
	for _, e := range t.Elems() {
		if e != nil && hasFlowHandle(e, seen) {
			return true
		}
	}
	return false
}

func rewriteFlowType(w *ir.World, t *ir.Type) *ir.Type {
	if isFlowHandle(t) {
		return w.PrimType(ir.PrimS32)
	}
	switch t.Kind() {
	case ir.KindPtr:
		return w.PtrType(rewriteFlowType(w, t.Elem(0)))
	case ir.KindArray:
		return w.ArrayType(rewriteFlowType(w, t.Elem(0)))
	case ir.KindSigma:
		if t.IsNamed() {
			return t
		}
		elems := make([]*ir.Type, t.NumElems())
		for i := range elems {
			elems[i] = rewriteFlowType(w, t.Elem(i))
		}
		return w.Sigma(elems...)
	case ir.KindPi:
		elems := make([]*ir.Type, t.NumElems())
		for i := range elems {
			elems[i] = rewriteFlowType(w, t.Elem(i))
		}
		return w.Pi(elems...)
	default:
		return t
	}
}

type flowRewriter struct {
	world   *ir.World
	old2new map[ir.Def]ir.Def
}

func (r *flowRewriter) instantiate(def ir.Def) ir.Def {
	if nd, ok := r.old2new[def]; ok {
		return nd
	}
	p, ok := def.(*ir.PrimOp)
	if !ok {
		return def
	}
	ops := make([]ir.Def, p.NumOps())
	for i := range ops {
		ops[i] = r.instantiate(p.Op(i))
	}
	nd := r.world.Rebuild(p, ops, rewriteFlowType(r.world, p.Type()))
	r.old2new[p] = nd
	return nd
}

func (r *flowRewriter) rewriteDef(def ir.Def) {
	if _, done := r.old2new[def]; done {
		return
	}
	if _, isCont := def.(*ir.Continuation); isCont {
		return
	}
	for _, op := range def.Ops() {
		r.rewriteDef(op)
	}
	p, ok := def.(*ir.PrimOp)
	if !ok {
		return
	}
	newType := rewriteFlowType(r.world, p.Type())
	if newType != p.Type() {
		ops := make([]ir.Def, p.NumOps())
		for i := range ops {
			ops[i] = r.instantiate(p.Op(i))
		}
		r.old2new[p] = r.world.Rebuild(p, ops, newType)
		for _, use := range p.Uses() {
			r.rewriteDef(use.User)
		}
	} else {
		r.instantiate(p)
	}
}

func (r *flowRewriter) rewriteJump(old, into *ir.Continuation) {
	if old.Empty() {
		return
	}
	callee := r.instantiate(old.Callee())
	args := make([]ir.Def, old.NumArgs())
	for i := range args {
		args[i] = r.instantiate(old.Arg(i))
	}
	into.Jump(callee, old.TypeArgs(), args, old.JumpDebug())
}

// RewriteFlowGraphs replaces every parameter and operand typed FlowTask or
// FlowGraph with s32 throughout the program, rebuilding affected primops
// and continuations.
func RewriteFlowGraphs(w *ir.World) {
	r := &flowRewriter{world: w, old2new: make(map[ir.Def]ir.Def)}
	type pair struct{ neu, old *ir.Continuation }
	var transformed []pair

	for _, cont := range w.Continuations() {
		needs := false
		for _, p := range cont.Params() {
			if hasFlowHandle(p.Type(), make(map[*ir.Type]struct{})) {
				needs = true
				break
			}
		}
		if !needs {
			continue
		}
		ncont := w.Continuation(rewriteFlowType(w, cont.Type()), cont.Debug())
		if cont.IsExternal() {
			ncont.MakeExternal()
			cont.MakeInternal()
		}
		r.old2new[cont] = ncont
		if !cont.IsIntrinsic() {
			for i := range cont.Params() {
				r.old2new[cont.Param(i)] = ncont.Param(i)
			}
			transformed = append(transformed, pair{ncont, cont})
		}
	}

	for _, tp := range transformed {
		for _, p := range tp.old.Params() {
			for _, use := range p.Uses() {
				r.rewriteDef(use.User)
			}
		}
	}
	for _, tp := range transformed {
		r.rewriteJump(tp.old, tp.neu)
	}
	for _, cont := range w.Continuations() {
		if cont.Empty() {
			continue
		}
		if _, isOld := r.old2new[cont]; isOld {
			continue
		}
		rewritten := false
		for _, tp := range transformed {
			if tp.neu == cont {
				rewritten = true
				break
			}
		}
		if rewritten {
			continue
		}
		r.rewriteJump(cont, cont)
	}

	w.Cleanup()
}
