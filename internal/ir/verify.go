package ir

import (
	"errors"
	"fmt"
)

// Verify checks the structural invariants of a world: operand/use-set
// bijection, operand well-formedness, constness propagation and memory
// linearity. Returns an aggregated error, nil if everything holds.
func Verify(w *World) error {
	var errs []error

	var defs []Def
	for _, p := range w.primops {
		defs = append(defs, p)
	}
	for _, c := range w.conts {
		defs = append(defs, c)
		for _, p := range c.params {
			defs = append(defs, p)
		}
	}

	for _, d := range defs {
		if err := verifyDef(d); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.UniqueName(), err))
		}
	}
	for _, p := range w.primops {
		if err := verifyMemLinearity(p); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.UniqueName(), err))
		}
	}

	return errors.Join(errs...)
}

func verifyDef(d Def) error {
	var errs []error

	for i, op := range d.Ops() {
		if op == nil {
			if _, ok := d.(*Continuation); ok {
				continue
			}
			errs = append(errs, fmt.Errorf("operand %d is nil", i))
			continue
		}
		if _, ok := op.node().uses[Use{Index: i, User: d}]; !ok {
			errs = append(errs, fmt.Errorf("operand %d (%s) lacks the inverse use edge", i, op.UniqueName()))
		}
	}
	for use := range d.node().uses {
		if use.Index >= use.User.NumOps() || use.User.Op(use.Index) != d {
			errs = append(errs, fmt.Errorf("stale use (%s, %d)", use.User.UniqueName(), use.Index))
		}
	}

	if p, ok := d.(*PrimOp); ok {
		if got, want := p.IsConst(), computeConst(p); got != want {
			errs = append(errs, fmt.Errorf("constness out of sync: recorded %v, computed %v", got, want))
		}
	}

	return errors.Join(errs...)
}

// verifyMemLinearity checks that the memory value flowing into a
// memory-effecting primop is not consumed by any other memory op: memory
// forms a linear chain per continuation.
func verifyMemLinearity(p *PrimOp) error {
	if !p.tag.IsMemOp() {
		return nil
	}
	mem := p.Mem()
	consumers := 0
	for use := range mem.node().uses {
		if up, ok := use.User.(*PrimOp); ok && up.tag.IsMemOp() && use.Index == 0 {
			consumers++
		}
	}
	if consumers > 1 {
		return fmt.Errorf("memory value %s consumed by %d memory ops", mem.UniqueName(), consumers)
	}
	return nil
}
