package transform

import (
	"anvil/internal/analysis"
	"anvil/internal/ir"
	"anvil/internal/trace"
)

const (
	inlineFactor = 4
	inlineOffset = 4
)

// ForceInline repeatedly inlines every call that leaves the scope, up to
// threshold rounds. Sites that remain are logged.
func ForceInline(scope *analysis.Scope, threshold int) {
	for todo := true; todo && threshold != 0; threshold-- {
		todo = false
		rpo := scope.RPO()
		for i := len(rpo) - 1; i >= 0; i-- {
			cont := rpo[i]
			callee, ok := cont.Callee().(*ir.Continuation)
			if !ok || callee.Empty() || scope.Contains(callee) {
				continue
			}
			calleeScope := analysis.NewScope(callee)
			cont.Jump(Drop(calleeScope, cont.TypeArgs(), cont.Args()), nil, nil, cont.JumpDebug())
			todo = true
		}
		if todo {
			scope.Update()
		}
	}

	tr := scope.World().Tracer()
	for _, cont := range scope.RPO() {
		callee, ok := cont.Callee().(*ir.Continuation)
		if ok && !callee.Empty() && !scope.Contains(callee) {
			trace.Warnf(tr, "inliner", "couldn't inline %s at %s",
				callee.UniqueName(), cont.UniqueName())
		}
	}
}

// Inliner replaces calls to small non-recursive continuations by a dropped
// copy of their scope. A callee qualifies when it takes a function argument
// and its scope holds fewer than numParams*4+4 defs; everything else is
// logged and skipped.
func Inliner(w *ir.World) {
	tr := w.Tracer()
	trace.Infof(tr, "inliner", "start")

	scopes := make(map[*ir.Continuation]*analysis.Scope)
	getScope := func(c *ir.Continuation) *analysis.Scope {
		if s, ok := scopes[c]; ok {
			return s
		}
		s := analysis.NewScope(c)
		scopes[c] = s
		return s
	}

	isCandidate := func(c *ir.Continuation) *analysis.Scope {
		if !c.Empty() && c.Type().Order() > 1 {
			s := getScope(c)
			if s.NumDefs() < c.NumParams()*inlineFactor+inlineOffset {
				return s
			}
		}
		return nil
	}

	analysis.ForEach(w, func(scope *analysis.Scope) {
		dirty := false
		rpo := scope.RPO()
		for i := len(rpo) - 1; i >= 0; i-- {
			cont := rpo[i]
			callee, ok := cont.Callee().(*ir.Continuation)
			if !ok || callee.IsIntrinsic() {
				continue
			}
			if callee == scope.Entry() {
				continue // don't inline recursive calls
			}
			trace.Debugf(tr, "inliner", "callee: %s", callee.UniqueName())
			if calleeScope := isCandidate(callee); calleeScope != nil {
				trace.Debugf(tr, "inliner", "- here: %s", cont.UniqueName())
				cont.Jump(Drop(calleeScope, cont.TypeArgs(), cont.Args()), nil, nil, cont.JumpDebug())
				dirty = true
			} else if !callee.Empty() {
				trace.Warnf(tr, "inliner", "not inlining %s at %s",
					callee.UniqueName(), cont.UniqueName())
			}
		}

		if dirty {
			scope.Update()
			if s, ok := scopes[scope.Entry()]; ok {
				s.Update()
			}
		}
	})

	trace.Infof(tr, "inliner", "stop")
	if err := ir.Verify(w); err != nil {
		trace.Warnf(tr, "inliner", "verify: %v", err)
	}
	w.Cleanup()
}
