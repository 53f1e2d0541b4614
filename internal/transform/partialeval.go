package transform

import (
	"strconv"
	"strings"

	"anvil/internal/analysis"
	"anvil/internal/ir"
	"anvil/internal/trace"
)

// callKey fingerprints a call site: the type arguments plus the operand
// tuple with holes (empty slots) at the argument positions blocked by hlt.
// Two sites with equal fingerprints share one specialization.
func callKey(typeArgs []*ir.Type, ops []ir.Def) string {
	var sb strings.Builder
	for _, t := range typeArgs {
		sb.WriteByte('t')
		sb.WriteString(strconv.FormatUint(t.GID(), 10))
		sb.WriteByte(',')
	}
	sb.WriteByte('|')
	for _, op := range ops {
		if op == nil {
			sb.WriteByte('_')
		} else {
			sb.WriteString(strconv.FormatUint(op.GID(), 10))
		}
		sb.WriteByte(',')
	}
	return sb.String()
}

type partialEvaluator struct {
	world    *ir.World
	topScope *analysis.Scope
	curScope *analysis.Scope
	topDirty bool
	curDirty bool

	done    map[*ir.Continuation]struct{}
	visited map[*ir.Continuation]struct{}
	queue   []*ir.Continuation
	cache   map[string]*ir.Continuation
}

func newPartialEvaluator(top *analysis.Scope) *partialEvaluator {
	return &partialEvaluator{
		world:    top.World(),
		topScope: top,
		done:     make(map[*ir.Continuation]struct{}),
		visited:  make(map[*ir.Continuation]struct{}),
		cache:    make(map[string]*ir.Continuation),
	}
}

func (pe *partialEvaluator) top() *analysis.Scope {
	if pe.topDirty {
		pe.topDirty = false
		pe.topScope.Update()
	}
	return pe.topScope
}

func (pe *partialEvaluator) cur() *analysis.Scope {
	if pe.curDirty {
		pe.curDirty = false
		pe.curScope.Update()
	}
	return pe.curScope
}

func (pe *partialEvaluator) markDirty() {
	pe.topDirty = true
	pe.curDirty = true
}

func (pe *partialEvaluator) enqueue(c *ir.Continuation) {
	if !pe.top().Contains(c) {
		return
	}
	if _, seen := pe.visited[c]; seen {
		return
	}
	pe.visited[c] = struct{}{}
	pe.queue = append(pe.queue, c)
}

// endOf returns the end continuation of the run marker sitting in c's
// callee position, or nil.
func endOf(c *ir.Continuation) *ir.Continuation {
	p, ok := c.Callee().(*ir.PrimOp)
	if !ok || !p.Tag().IsEvalOp() {
		return nil
	}
	end, _ := p.End().(*ir.Continuation)
	return end
}

func (pe *partialEvaluator) run() {
	pe.enqueue(pe.top().Entry())

	for len(pe.queue) > 0 {
		cont := pe.queue[0]
		pe.queue = pe.queue[1:]

		// eating up a call during eval may expose a fresh run here
		for {
			callee, ok := cont.Callee().(*ir.PrimOp)
			if !ok || callee.Tag() != ir.TagRun {
				break
			}
			pe.curScope = analysis.NewScope(cont)
			pe.curDirty = false
			pe.eval(cont, endOf(cont))
			pe.curScope = nil
			if cont.Callee() == ir.Def(callee) {
				break
			}
		}

		for _, succ := range pe.top().Succs(cont) {
			pe.enqueue(succ)
		}
	}
}

func (pe *partialEvaluator) eval(cur, end *ir.Continuation) {
	tr := pe.world.Tracer()
	if end == nil {
		trace.Warnf(tr, "pe", "no matching end for %s", cur.UniqueName())
	} else {
		trace.Debugf(tr, "pe", "eval: %s -> %s", cur.UniqueName(), end.UniqueName())
	}

	for {
		switch {
		case cur == nil:
			trace.Warnf(tr, "pe", "destination vanished")
			return
		case cur.Empty():
			trace.Warnf(tr, "pe", "empty: %s", cur.UniqueName())
			return
		}
		if _, ok := pe.done[cur]; ok {
			trace.Debugf(tr, "pe", "already done: %s", cur.UniqueName())
			return
		}
		pe.done[cur] = struct{}{}

		var dst *ir.Continuation
		switch callee := cur.Callee().(type) {
		case *ir.PrimOp:
			if callee.Tag() == ir.TagRun {
				dst, _ = callee.Begin().(*ir.Continuation)
			} else if callee.Tag() == ir.TagHlt {
				next, _ := callee.End().(*ir.Continuation)
				cur = next
				continue
			}
		case *ir.Continuation:
			dst = callee
		}

		if dst == nil || dst.Empty() {
			cur = pe.postdom(cur)
			continue
		}

		// build the call fingerprint, nulling hlt-blocked positions
		ops := make([]ir.Def, cur.NumOps())
		ops[0] = dst
		all := true
		for i := 1; i < len(ops); i++ {
			arg := cur.Op(i)
			if p, ok := arg.(*ir.PrimOp); ok && p.Tag() == ir.TagHlt {
				all = false
			} else {
				ops[i] = arg
			}
		}
		key := callKey(cur.TypeArgs(), ops)

		if cached, ok := pe.cache[key]; ok {
			pe.jumpToCached(cur, cached, ops)
			trace.Debugf(tr, "pe", "using cached call: %s", cur.UniqueName())
			return
		}

		args := make([]ir.Def, dst.NumParams())
		for i := range args {
			args[i] = ops[i+1]
		}
		dropped := Drop(analysis.NewScope(dst), cur.TypeArgs(), args)

		pe.markDirty()
		pe.cache[key] = dropped
		pe.jumpToCached(cur, dropped, ops)
		if all {
			// every argument was specialized away: eat the call
			cur.Jump(dropped.Callee(), dropped.TypeArgs(), dropped.Args(), cur.JumpDebug())
			delete(pe.done, cur)
		} else {
			cur = dropped
		}

		if dst == end {
			trace.Debugf(tr, "pe", "end: %s", end.UniqueName())
			return
		}
	}
}

// jumpToCached rewrites the call to target the specialization, passing only
// the arguments left unspecialized (the fingerprint's holes).
func (pe *partialEvaluator) jumpToCached(cur *ir.Continuation, cached *ir.Continuation, ops []ir.Def) {
	var args []ir.Def
	for i := 1; i < len(ops); i++ {
		if ops[i] == nil {
			args = append(args, cur.Arg(i-1))
		}
	}
	cur.Jump(cached, nil, args, cur.JumpDebug())
	pe.markDirty()
}

// postdom falls back to the immediate postdominator: first within the
// current scope, then within the top scope. A missing postdominator is
// logged and ends the walk conservatively.
func (pe *partialEvaluator) postdom(cur *ir.Continuation) *ir.Continuation {
	tr := pe.world.Tracer()
	isValid := func(c *ir.Continuation) *ir.Continuation {
		if c != nil && !c.Empty() {
			trace.Debugf(tr, "pe", "postdom: %s -> %s", cur.UniqueName(), c.UniqueName())
			return c
		}
		return nil
	}

	if pe.curScope != nil && pe.topScope.Entry() != pe.curScope.Entry() {
		if p := isValid(postdomIn(cur, pe.cur())); p != nil {
			return p
		}
	}
	if p := isValid(postdomIn(cur, pe.top())); p != nil {
		return p
	}

	trace.Warnf(tr, "pe", "no postdom found for %s", cur.UniqueName())
	return nil
}

func postdomIn(cur *ir.Continuation, s *analysis.Scope) *ir.Continuation {
	if !s.Contains(cur) {
		return nil
	}
	pd := s.PostDomTree().IDom(cur)
	if pd == nil || pd == cur {
		return nil
	}
	return pd
}

// PartialEvaluation specializes continuations by call site across the whole
// world, driven by run/hlt markers, then strips every remaining marker.
// Running it twice yields a fixed program.
func PartialEvaluation(w *ir.World) {
	w.Cleanup()
	analysis.ForEach(w, func(s *analysis.Scope) {
		newPartialEvaluator(s).run()
	})

	for _, p := range w.PrimOps() {
		if p.Tag().IsEvalOp() {
			ir.Replace(p, p.Begin())
		}
	}
	w.Cleanup()
}
