// Package backend specifies the contract between the compiler core and
// code generators. Back-ends are external collaborators: they consume a
// scheduled scope and emit their own modules, never mutating the ir.
package backend

import (
	"anvil/internal/analysis"
	"anvil/internal/ir"
)

// Emitter is implemented by code generators. The core hands each external
// scope over with its smart schedule; continuations arrive in RPO, each
// with its scheduled primop list, and call shapes are direct tail calls or
// conditional branches through the branch intrinsic.
type Emitter interface {
	// Emit generates code for one scheduled scope and returns the
	// produced module bytes.
	Emit(scope *analysis.Scope, schedule analysis.Schedule) ([]byte, error)
}

// EmitWorld runs an emitter over every external scope of the world.
func EmitWorld(w *ir.World, e Emitter) (map[string][]byte, error) {
	out := make(map[string][]byte)
	var firstErr error
	analysis.ForEach(w, func(s *analysis.Scope) {
		if firstErr != nil {
			return
		}
		module, err := e.Emit(s, analysis.ScheduleSmart(s))
		if err != nil {
			firstErr = err
			return
		}
		out[s.Entry().UniqueName()] = module
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// GPURuntime is the fixed host-runtime surface that generated code calls
// around kernel launches; emitters must produce exactly this sequence.
type GPURuntime interface {
	MallocGPU(size int64) (dev uintptr)
	MemToGPU(host, dev uintptr, size int64)
	MemToHost(dev, host uintptr, size int64)
	FreeGPU(dev uintptr)
	LoadKernel(module, name string)
	SetKernelArg(ptr uintptr)
	SetProblemSize(x, y, z int64)
	LaunchKernel(name string)
	Synchronize()
}
