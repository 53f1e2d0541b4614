// Package snapshot encodes a world into a compact binary form for tooling:
// continuation shapes, primop structure and the smart schedule, keyed by
// global ids. The encoding is a structural summary for dumping and
// diffing; it does not round-trip back into a live world.
package snapshot

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"anvil/internal/analysis"
	"anvil/internal/ir"
)

// Module is the serialized form of a world.
type Module struct {
	Name          string         `msgpack:"name"`
	Continuations []Continuation `msgpack:"continuations"`
	PrimOps       []PrimOp       `msgpack:"primops"`
}

// Continuation is the serialized shape of one continuation.
type Continuation struct {
	GID      uint64   `msgpack:"gid"`
	Name     string   `msgpack:"name"`
	Type     string   `msgpack:"type"`
	External bool     `msgpack:"external"`
	Params   []uint64 `msgpack:"params"`
	Jump     []uint64 `msgpack:"jump,omitempty"` // callee first, then args
	Schedule []uint64 `msgpack:"schedule,omitempty"`
}

// PrimOp is the serialized shape of one primop.
type PrimOp struct {
	GID   uint64   `msgpack:"gid"`
	Tag   string   `msgpack:"tag"`
	Type  string   `msgpack:"type"`
	Extra uint64   `msgpack:"extra"`
	Ops   []uint64 `msgpack:"ops"`
}

// Capture summarizes the world, attaching each external scope's smart
// schedule to its continuations.
func Capture(w *ir.World) *Module {
	m := &Module{Name: w.Name()}

	scheduled := make(map[*ir.Continuation][]uint64)
	analysis.ForEach(w, func(s *analysis.Scope) {
		for cont, primops := range analysis.ScheduleSmart(s) {
			ids := make([]uint64, len(primops))
			for i, p := range primops {
				ids[i] = p.GID()
			}
			scheduled[cont] = ids
		}
	})

	for _, c := range w.Continuations() {
		if c.IsIntrinsic() {
			continue
		}
		sc := Continuation{
			GID:      c.GID(),
			Name:     c.UniqueName(),
			Type:     c.Type().String(),
			External: c.IsExternal(),
			Schedule: scheduled[c],
		}
		for _, p := range c.Params() {
			sc.Params = append(sc.Params, p.GID())
		}
		for _, op := range c.Ops() {
			sc.Jump = append(sc.Jump, op.GID())
		}
		m.Continuations = append(m.Continuations, sc)
	}

	for _, p := range w.PrimOps() {
		sp := PrimOp{
			GID:   p.GID(),
			Tag:   p.Tag().String(),
			Type:  p.Type().String(),
			Extra: p.Extra(),
		}
		for _, op := range p.Ops() {
			sp.Ops = append(sp.Ops, op.GID())
		}
		m.PrimOps = append(m.PrimOps, sp)
	}

	return m
}

// Encode captures and marshals the world.
func Encode(w *ir.World) ([]byte, error) {
	data, err := msgpack.Marshal(Capture(w))
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode %s: %w", w.Name(), err)
	}
	return data, nil
}

// Decode unmarshals a module summary.
func Decode(data []byte) (*Module, error) {
	var m Module
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return &m, nil
}
