package transform

import (
	"testing"

	"anvil/internal/ir"
)

func TestRewriteFlowGraphs(t *testing.T) {
	w := ir.NewWorld("flow")
	s32 := w.PrimType(ir.PrimS32)
	task := w.NamedSigma("FlowTask", 0)
	graph := w.NamedSigma("FlowGraph", 0)

	retT := w.Pi(w.MemType(), s32)
	main := w.Continuation(w.Pi(w.MemType(), task, graph, retT), ir.Debug{Name: "main"})
	main.MakeExternal()

	// the task and graph also feed a tuple; extracting from that fresh
	// tuple folds back to the task parameter, which reaches the callee
	pair := w.Tuple([]ir.Def{main.Param(1), main.Param(2)}, ir.Debug{})
	sink := w.Continuation(w.Pi(task), ir.Debug{Name: "sink"})
	sink.Jump(main.Param(3), nil, []ir.Def{main.Param(0), w.LitS32(0)}, ir.Debug{})
	main.Jump(sink, nil, []ir.Def{w.ExtractAt(pair, 0, ir.Debug{})}, ir.Debug{})

	RewriteFlowGraphs(w)

	var ext *ir.Continuation
	for _, c := range w.Externals() {
		ext = c
	}
	if ext == nil {
		t.Fatalf("the external entry must survive the rewrite")
	}
	if ext == main {
		t.Fatalf("the flow-typed entry must be replaced")
	}
	if got := ext.Param(1).Type(); got != s32 {
		t.Fatalf("task parameter must become s32, got %s", got)
	}
	if got := ext.Param(2).Type(); got != s32 {
		t.Fatalf("graph parameter must become s32, got %s", got)
	}

	for _, c := range w.Continuations() {
		for _, p := range c.Params() {
			if p.Type().IsNamed() {
				t.Fatalf("%s still has a flow-typed parameter", c.UniqueName())
			}
		}
	}
	for _, p := range w.PrimOps() {
		if hasFlowHandle(p.Type(), map[*ir.Type]struct{}{}) {
			t.Fatalf("%s still carries a flow type", p.UniqueName())
		}
	}
	if err := ir.Verify(w); err != nil {
		t.Fatalf("verify after rewrite: %v", err)
	}
}
