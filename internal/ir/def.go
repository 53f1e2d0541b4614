package ir

import (
	"fmt"
	"sort"
)

// Loc is an opaque source location tuple carried through unchanged.
type Loc struct {
	File string
	Line int
	Col  int
}

// Debug carries an optional name and location for a node.
type Debug struct {
	Name string
	Loc  Loc
}

// Use identifies one operand edge pointing at a def: the using node and the
// operand index under which the def appears.
type Use struct {
	Index int
	User  Def
}

// Def is the common interface of all graph nodes. It is implemented by
// *PrimOp, *Param and *Continuation.
type Def interface {
	GID() GID
	Tag() NodeTag
	Type() *Type
	World() *World
	NumOps() int
	Op(i int) Def
	Ops() []Def
	NumUses() int
	Uses() []Use
	Debug() Debug
	IsConst() bool
	UniqueName() string

	node() *nodeBase
}

// nodeBase is the shared core of every node: ordered operands, the inverse
// use-set, the global id and the traversal pass token.
type nodeBase struct {
	world *World
	self  Def
	tag   NodeTag
	typ   *Type
	ops   []Def
	uses  map[Use]struct{}
	gid   GID
	dbg   Debug
	pass  uint64
	konst bool
}

func (b *nodeBase) init(w *World, self Def, tag NodeTag, typ *Type, numOps int, dbg Debug) {
	b.world = w
	b.self = self
	b.tag = tag
	b.typ = typ
	b.ops = make([]Def, numOps)
	b.uses = make(map[Use]struct{})
	b.gid = w.nextGID()
	b.dbg = dbg
}

func (b *nodeBase) GID() GID       { return b.gid }
func (b *nodeBase) Tag() NodeTag   { return b.tag }
func (b *nodeBase) Type() *Type    { return b.typ }
func (b *nodeBase) World() *World  { return b.world }
func (b *nodeBase) NumOps() int    { return len(b.ops) }
func (b *nodeBase) Ops() []Def     { return b.ops }
func (b *nodeBase) Debug() Debug   { return b.dbg }
func (b *nodeBase) IsConst() bool  { return b.konst }
func (b *nodeBase) NumUses() int   { return len(b.uses) }
func (b *nodeBase) node() *nodeBase { return b }

func (b *nodeBase) Op(i int) Def {
	if i < 0 || i >= len(b.ops) {
		panic(fmt.Sprintf("ir: operand index %d out of range for %s", i, b.UniqueName()))
	}
	return b.ops[i]
}

// Uses returns a snapshot of the use-set in a deterministic order.
func (b *nodeBase) Uses() []Use {
	uses := make([]Use, 0, len(b.uses))
	for u := range b.uses {
		uses = append(uses, u)
	}
	sort.Slice(uses, func(i, j int) bool {
		if uses[i].User.GID() != uses[j].User.GID() {
			return uses[i].User.GID() < uses[j].User.GID()
		}
		return uses[i].Index < uses[j].Index
	})
	return uses
}

// UniqueName returns the debug name suffixed with the global id.
func (b *nodeBase) UniqueName() string {
	name := b.dbg.Name
	if name == "" {
		name = b.tag.String()
	}
	return fmt.Sprintf("%s_%d", name, b.gid)
}

// setOp registers def as the i-th operand and records the inverse use edge.
func (b *nodeBase) setOp(i int, def Def) {
	if b.ops[i] != nil {
		panic("ir: operand already set")
	}
	if def == nil {
		panic("ir: setting nil operand")
	}
	b.ops[i] = def
	def.node().uses[Use{Index: i, User: b.self}] = struct{}{}
}

// unsetOp clears the i-th operand and removes the inverse use edge.
func (b *nodeBase) unsetOp(i int) {
	def := b.ops[i]
	if def == nil {
		panic("ir: operand not set")
	}
	delete(def.node().uses, Use{Index: i, User: b.self})
	b.ops[i] = nil
}

// unsetOps clears all operands.
func (b *nodeBase) unsetOps() {
	for i, op := range b.ops {
		if op != nil {
			b.unsetOp(i)
		}
	}
}

// visit marks the node with the given pass token and reports whether it had
// already been marked with it.
func (b *nodeBase) visit(pass uint64) bool {
	if b.pass == pass {
		return true
	}
	b.pass = pass
	return false
}

func (b *nodeBase) isVisited(pass uint64) bool { return b.pass == pass }

// Visit marks def with the pass token and reports whether it was already
// marked. Tokens come from World.NewPass.
func Visit(def Def, pass uint64) bool { return def.node().visit(pass) }

// IsVisited reports whether def carries the pass token.
func IsVisited(def Def, pass uint64) bool { return def.node().isVisited(pass) }

// Replace rewires every use of old to point at with. The operand ordering of
// every user is preserved. Replacing a node by itself is a no-op; replacing
// across different types is a programmer error.
func Replace(old, with Def) {
	if old == with {
		return
	}
	if old.Type() != with.Type() {
		panic(fmt.Sprintf("ir: replace type mismatch: %s vs %s", old.Type(), with.Type()))
	}
	w := old.World()
	if p, ok := old.(*PrimOp); ok {
		w.unintern(p)
	}
	for _, use := range old.Uses() {
		ub := use.User.node()
		if up, ok := use.User.(*PrimOp); ok {
			w.unintern(up)
			ub.unsetOp(use.Index)
			ub.setOp(use.Index, with)
			w.reintern(up)
			continue
		}
		ub.unsetOp(use.Index)
		ub.setOp(use.Index, with)
	}
}
