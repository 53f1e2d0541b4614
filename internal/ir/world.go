package ir

import (
	"fmt"
	"math"

	"fortio.org/safecast"
	"golang.org/x/text/unicode/norm"

	"anvil/internal/trace"
)

// World owns every node of one program: it interns primops and types by
// structural identity, assigns global ids, and hands out pass tokens for
// O(1) visited-marking. A World must not be mutated concurrently.
type World struct {
	name   string
	tracer trace.Tracer

	gid  GID
	pass uint64

	primBuckets map[uint64][]*PrimOp
	primops     []*PrimOp
	typeBuckets map[uint64][]*Type
	types       []*Type
	conts       []*Continuation
	branch      *Continuation
}

// NewWorld creates an empty world.
func NewWorld(name string) *World {
	return &World{
		name:        name,
		tracer:      trace.Nop(),
		primBuckets: make(map[uint64][]*PrimOp, 64),
		typeBuckets: make(map[uint64][]*Type, 64),
	}
}

// Name returns the world's name.
func (w *World) Name() string { return w.name }

// Tracer returns the world's tracer (never nil).
func (w *World) Tracer() trace.Tracer { return w.tracer }

// SetTracer installs a tracer for passes to report through.
func (w *World) SetTracer(t trace.Tracer) {
	if t == nil {
		t = trace.Nop()
	}
	w.tracer = t
}

func (w *World) nextGID() GID {
	w.gid++
	return w.gid
}

// NewPass returns a fresh traversal token. A node is visited under a token
// iff its stored token equals it, so no per-traversal reset is needed.
func (w *World) NewPass() uint64 {
	w.pass++
	return w.pass
}

func normDebug(dbg Debug) Debug {
	if dbg.Name != "" {
		dbg.Name = norm.NFC.String(dbg.Name)
	}
	return dbg
}

// ---------------------------------------------------------------------------
// hashing

const (
	fnvOffset uint64 = 14695981039346656037
	fnvPrime  uint64 = 1099511628211
)

func hashU64(h, v uint64) uint64 {
	for i := 0; i < 8; i++ {
		h ^= v & 0xff
		h *= fnvPrime
		v >>= 8
	}
	return h
}

func primHash(tag NodeTag, typ *Type, extra uint64, ops []Def) uint64 {
	h := hashU64(fnvOffset, uint64(tag))
	h = hashU64(h, typ.gid)
	h = hashU64(h, extra)
	for _, op := range ops {
		h = hashU64(h, op.GID())
	}
	return h
}

func sameOps(a []Def, b []Def) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// types

func typeHash(t *Type) uint64 {
	h := hashU64(fnvOffset, uint64(t.kind))
	h = hashU64(h, uint64(t.prim))
	h = hashU64(h, uint64(t.length))
	h = hashU64(h, uint64(t.index))
	if t.cont != nil {
		h = hashU64(h, t.cont.gid)
	}
	for _, e := range t.elems {
		h = hashU64(h, e.gid)
	}
	return h
}

func typeEqual(a, b *Type) bool {
	if a.kind != b.kind || a.prim != b.prim || a.length != b.length ||
		a.index != b.index || a.cont != b.cont || len(a.elems) != len(b.elems) {
		return false
	}
	for i := range a.elems {
		if a.elems[i] != b.elems[i] {
			return false
		}
	}
	return true
}

func (w *World) internType(t *Type) *Type {
	h := typeHash(t)
	for _, other := range w.typeBuckets[h] {
		if typeEqual(t, other) {
			return other
		}
	}
	t.world = w
	t.gid = w.nextGID()
	w.typeBuckets[h] = append(w.typeBuckets[h], t)
	w.types = append(w.types, t)
	return t
}

// VecType returns the primitive type of the given kind and vector length.
func (w *World) VecType(k PrimKind, length int) *Type {
	if length < 1 {
		panic("ir: vector length must be positive")
	}
	return w.internType(&Type{kind: KindPrim, prim: k, length: length})
}

// PrimType returns the scalar primitive type of the given kind.
func (w *World) PrimType(k PrimKind) *Type { return w.VecType(k, 1) }

// BoolType returns the scalar bool type.
func (w *World) BoolType() *Type { return w.PrimType(PrimBool) }

// MemType returns the memory monad type.
func (w *World) MemType() *Type { return w.internType(&Type{kind: KindMem, length: 1}) }

// FrameType returns the stack-frame type.
func (w *World) FrameType() *Type { return w.internType(&Type{kind: KindFrame, length: 1}) }

// PtrType returns the pointer type to elem.
func (w *World) PtrType(elem *Type) *Type {
	return w.internType(&Type{kind: KindPtr, length: 1, elems: []*Type{elem}})
}

// Sigma returns the anonymous tuple type of the given elements.
func (w *World) Sigma(elems ...*Type) *Type {
	return w.internType(&Type{kind: KindSigma, length: 1, elems: append([]*Type(nil), elems...)})
}

// NamedSigma creates a fresh nominal tuple type. Nominal types are equal
// only to themselves and their elements may be set after creation, which
// permits recursive types.
func (w *World) NamedSigma(name string, numElems int) *Type {
	if name == "" {
		panic("ir: named sigma requires a non-empty name")
	}
	t := &Type{world: w, kind: KindSigma, length: 1, name: name, elems: make([]*Type, numElems)}
	t.gid = w.nextGID()
	w.types = append(w.types, t)
	return t
}

// Pi returns the function type with the given parameter types.
func (w *World) Pi(elems ...*Type) *Type {
	return w.internType(&Type{kind: KindPi, length: 1, elems: append([]*Type(nil), elems...)})
}

// ArrayType returns the array type of elem.
func (w *World) ArrayType(elem *Type) *Type {
	return w.internType(&Type{kind: KindArray, length: 1, elems: []*Type{elem}})
}

// Generic returns the generic type with the given index.
func (w *World) Generic(index int) *Type {
	return w.internType(&Type{kind: KindGeneric, length: 1, index: index})
}

// GenericRef returns a generic bound to its scoping continuation.
func (w *World) GenericRef(generic *Type, cont *Continuation) *Type {
	if generic.Kind() != KindGeneric {
		panic("ir: GenericRef requires a generic type")
	}
	return w.internType(&Type{kind: KindGenericRef, length: 1, elems: []*Type{generic}, cont: cont})
}

// Types returns every live type in creation order.
func (w *World) Types() []*Type { return append([]*Type(nil), w.types...) }

// ---------------------------------------------------------------------------
// primop construction

func (w *World) cse(tag NodeTag, typ *Type, extra uint64, ops []Def, dbg Debug) *PrimOp {
	for _, op := range ops {
		if op == nil {
			panic(fmt.Sprintf("ir: nil operand while building %s", tag))
		}
	}
	h := primHash(tag, typ, extra, ops)
	for _, p := range w.primBuckets[h] {
		if p.tag == tag && p.typ == typ && p.extra == extra && sameOps(p.ops, ops) {
			return p
		}
	}
	p := &PrimOp{extra: extra, hash: h}
	p.init(w, p, tag, typ, len(ops), normDebug(dbg))
	for i, op := range ops {
		p.setOp(i, op)
	}
	p.konst = computeConst(p)
	w.primBuckets[h] = append(w.primBuckets[h], p)
	w.primops = append(w.primops, p)
	return p
}

// unintern removes p from the interning table, keeping the node alive until
// cleanup. Used when a replace rewires a primop's structure.
func (w *World) unintern(p *PrimOp) {
	bucket := w.primBuckets[p.hash]
	for i, other := range bucket {
		if other == p {
			w.primBuckets[p.hash] = append(bucket[:i:i], bucket[i+1:]...)
			return
		}
	}
}

// reintern re-inserts p under its current structure. An already canonical
// equivalent keeps winning lookups because it sits earlier in its bucket.
func (w *World) reintern(p *PrimOp) {
	p.hash = primHash(p.tag, p.typ, p.extra, p.ops)
	w.primBuckets[p.hash] = append(w.primBuckets[p.hash], p)
}

func asLit(def Def) (*PrimOp, bool) {
	p, ok := def.(*PrimOp)
	if !ok || p.tag != TagLit {
		return nil, false
	}
	return p, true
}

func maskBits(k PrimKind, bits uint64) uint64 {
	width := k.Bits()
	if width >= 64 {
		return bits
	}
	return bits & ((uint64(1) << width) - 1)
}

// Lit returns the interned literal of type t with the given raw bits.
func (w *World) Lit(t *Type, bits uint64, dbg Debug) *PrimOp {
	if !t.IsPrim() || t.Length() != 1 {
		panic("ir: literal type must be a scalar primitive")
	}
	return w.cse(TagLit, t, maskBits(t.Prim(), bits), nil, dbg)
}

// LitBool returns the bool literal.
func (w *World) LitBool(v bool) *PrimOp {
	bits := uint64(0)
	if v {
		bits = 1
	}
	return w.Lit(w.BoolType(), bits, Debug{})
}

// LitS32 returns the s32 literal.
func (w *World) LitS32(v int32) *PrimOp {
	return w.Lit(w.PrimType(PrimS32), uint64(uint32(v)), Debug{})
}

// LitS64 returns the s64 literal.
func (w *World) LitS64(v int64) *PrimOp {
	return w.Lit(w.PrimType(PrimS64), uint64(v), Debug{})
}

// LitU32 returns the u32 literal.
func (w *World) LitU32(v uint32) *PrimOp {
	return w.Lit(w.PrimType(PrimU32), uint64(v), Debug{})
}

// LitU64 returns the u64 literal.
func (w *World) LitU64(v uint64) *PrimOp {
	return w.Lit(w.PrimType(PrimU64), v, Debug{})
}

// LitF64 returns the f64 literal.
func (w *World) LitF64(v float64) *PrimOp {
	return w.Lit(w.PrimType(PrimF64), math.Float64bits(v), Debug{})
}

// Bottom returns the undefined value of type t.
func (w *World) Bottom(t *Type, dbg Debug) *PrimOp {
	return w.cse(TagBottom, t, 0, nil, dbg)
}

// Arith builds a binary arithmetic, bitwise or shift operation. Operations
// on literals fold at construction; a folding failure (overflow under
// checked signed semantics, division by zero, out-of-range shift) leaves
// the operation unfolded.
func (w *World) Arith(tag NodeTag, a, b Def, dbg Debug) Def {
	if !tag.IsArith() && !tag.IsBit() && !tag.IsShift() {
		panic(fmt.Sprintf("ir: %s is not an arithmetic tag", tag))
	}
	t := a.Type()
	if t != b.Type() {
		panic(fmt.Sprintf("ir: arith operand type mismatch: %s vs %s", a.Type(), b.Type()))
	}
	if la, ok := asLit(a); ok && t.Length() == 1 {
		if lb, ok2 := asLit(b); ok2 {
			if bits, err := foldBin(tag, t.Prim(), la.extra, lb.extra); err == nil {
				return w.Lit(t, bits, dbg)
			}
		}
	}
	return w.cse(tag, t, 0, []Def{a, b}, dbg)
}

// Cmp builds a comparison; the result is a bool of the operands' vector
// length.
func (w *World) Cmp(tag NodeTag, a, b Def, dbg Debug) Def {
	if !tag.IsCmp() {
		panic(fmt.Sprintf("ir: %s is not a comparison tag", tag))
	}
	t := a.Type()
	if t != b.Type() {
		panic(fmt.Sprintf("ir: cmp operand type mismatch: %s vs %s", a.Type(), b.Type()))
	}
	rt := w.VecType(PrimBool, t.Length())
	if la, ok := asLit(a); ok && t.Length() == 1 {
		if lb, ok2 := asLit(b); ok2 {
			if v, err := foldCmp(tag, t.Prim(), la.extra, lb.extra); err == nil {
				bits := uint64(0)
				if v {
					bits = 1
				}
				return w.Lit(rt, bits, dbg)
			}
		}
	}
	return w.cse(tag, rt, 0, []Def{a, b}, dbg)
}

// Select picks a or b by a bool condition. A literal condition folds.
func (w *World) Select(cond, a, b Def, dbg Debug) Def {
	if !cond.Type().IsBool() {
		panic("ir: select condition must be bool")
	}
	if a.Type() != b.Type() {
		panic("ir: select arms must have equal types")
	}
	if lc, ok := asLit(cond); ok {
		if lc.ValueBool() {
			return a
		}
		return b
	}
	return w.cse(TagSelect, a.Type(), 0, []Def{cond, a, b}, dbg)
}

// Tuple builds an aggregate of the given defs; its type is the sigma of
// their types.
func (w *World) Tuple(defs []Def, dbg Debug) Def {
	elems := make([]*Type, len(defs))
	for i, d := range defs {
		elems[i] = d.Type()
	}
	return w.cse(TagTuple, w.Sigma(elems...), 0, defs, dbg)
}

// ArrayAgg builds an array aggregate with the given element type.
func (w *World) ArrayAgg(elem *Type, defs []Def, dbg Debug) Def {
	for _, d := range defs {
		if d.Type() != elem {
			panic("ir: array element type mismatch")
		}
	}
	return w.cse(TagArrayAgg, w.ArrayType(elem), 0, defs, dbg)
}

// Extract projects an element out of an aggregate. Tuple indices must be
// literals; a projection of a fresh aggregate folds to its operand.
func (w *World) Extract(agg, index Def, dbg Debug) Def {
	var elem *Type
	switch agg.Type().Kind() {
	case KindSigma:
		li, ok := asLit(index)
		if !ok {
			panic("ir: tuple extract requires a literal index")
		}
		elem = agg.Type().Elem(int(li.Value()))
	case KindArray:
		elem = agg.Type().Elem(0)
	default:
		panic(fmt.Sprintf("ir: extract from non-aggregate %s", agg.Type()))
	}
	if p, ok := agg.(*PrimOp); ok && (p.tag == TagTuple || p.tag == TagArrayAgg) {
		if li, ok2 := asLit(index); ok2 {
			return p.Op(int(li.Value()))
		}
	}
	return w.cse(TagExtract, elem, 0, []Def{agg, index}, dbg)
}

// ExtractAt is Extract with a u32 literal index.
func (w *World) ExtractAt(agg Def, i int, dbg Debug) Def {
	idx, err := safecast.Conv[uint32](i)
	if err != nil {
		panic(fmt.Errorf("ir: extract index overflow: %w", err))
	}
	return w.Extract(agg, w.LitU32(idx), dbg)
}

// Insert replaces one element of an aggregate, yielding a new aggregate of
// the same type.
func (w *World) Insert(agg, index, val Def, dbg Debug) Def {
	switch agg.Type().Kind() {
	case KindSigma, KindArray:
	default:
		panic(fmt.Sprintf("ir: insert into non-aggregate %s", agg.Type()))
	}
	return w.cse(TagInsert, agg.Type(), 0, []Def{agg, index, val}, dbg)
}

// Lea computes the address of an aggregate element behind a pointer.
func (w *World) Lea(ptr, index Def, dbg Debug) Def {
	pointee := ptr.Type().Pointee()
	var elem *Type
	switch pointee.Kind() {
	case KindArray:
		elem = pointee.Elem(0)
	case KindSigma:
		li, ok := asLit(index)
		if !ok {
			panic("ir: lea into a tuple requires a literal index")
		}
		elem = pointee.Elem(int(li.Value()))
	default:
		panic(fmt.Sprintf("ir: lea into non-aggregate %s", pointee))
	}
	return w.cse(TagLea, w.PtrType(elem), 0, []Def{ptr, index}, dbg)
}

// ---------------------------------------------------------------------------
// memory

// Enter acquires a stack frame; the result is (mem, frame).
func (w *World) Enter(mem Def, dbg Debug) *PrimOp {
	if !mem.Type().IsMem() {
		panic("ir: enter requires a memory operand")
	}
	return w.cse(TagEnter, w.Sigma(w.MemType(), w.FrameType()), 0, []Def{mem}, dbg)
}

// Leave releases a frame; the result is the new memory.
func (w *World) Leave(mem, frame Def, dbg Debug) *PrimOp {
	if !mem.Type().IsMem() || !frame.Type().IsFrame() {
		panic("ir: leave requires (mem, frame) operands")
	}
	return w.cse(TagLeave, w.MemType(), 0, []Def{mem, frame}, dbg)
}

// Slot allocates the index-th slot of a frame; the result is a pointer to
// elem.
func (w *World) Slot(elem *Type, frame Def, index int, dbg Debug) *PrimOp {
	if !frame.Type().IsFrame() {
		panic("ir: slot requires a frame operand")
	}
	idx, err := safecast.Conv[uint64](index)
	if err != nil {
		panic(fmt.Errorf("ir: slot index overflow: %w", err))
	}
	return w.cse(TagSlot, w.PtrType(elem), idx, []Def{frame}, dbg)
}

// Load reads through a pointer; the result is (mem, value).
func (w *World) Load(mem, ptr Def, dbg Debug) *PrimOp {
	if !mem.Type().IsMem() {
		panic("ir: load requires a memory operand")
	}
	return w.cse(TagLoad, w.Sigma(w.MemType(), ptr.Type().Pointee()), 0, []Def{mem, ptr}, dbg)
}

// Store writes through a pointer; the result is the new memory.
func (w *World) Store(mem, ptr, val Def, dbg Debug) *PrimOp {
	if !mem.Type().IsMem() {
		panic("ir: store requires a memory operand")
	}
	if ptr.Type().Pointee() != val.Type() {
		panic(fmt.Sprintf("ir: store type mismatch: %s into %s", val.Type(), ptr.Type()))
	}
	return w.cse(TagStore, w.MemType(), 0, []Def{mem, ptr, val}, dbg)
}

// Alloc allocates heap storage for elem; the result is (mem, ptr).
func (w *World) Alloc(elem *Type, mem Def, dbg Debug) *PrimOp {
	if !mem.Type().IsMem() {
		panic("ir: alloc requires a memory operand")
	}
	return w.cse(TagAlloc, w.Sigma(w.MemType(), w.PtrType(elem)), 0, []Def{mem}, dbg)
}

// OutMem projects the memory component out of a memory-producing def.
// Store and leave already are memory; enter, load and alloc carry it as
// their first tuple element.
func (w *World) OutMem(def Def) Def {
	if def.Type().IsMem() {
		return def
	}
	return w.ExtractAt(def, 0, Debug{})
}

// OutVal projects the value component of a load or alloc.
func (w *World) OutVal(def Def) Def { return w.ExtractAt(def, 1, Debug{}) }

// OutFrame projects the frame component of an enter.
func (w *World) OutFrame(def Def) Def { return w.ExtractAt(def, 1, Debug{}) }

// ---------------------------------------------------------------------------
// evaluation markers

// Run requests specialization from begin until end.
func (w *World) Run(begin, end Def, dbg Debug) *PrimOp {
	return w.cse(TagRun, begin.Type(), 0, []Def{begin, end}, dbg)
}

// Hlt blocks specialization of begin until end.
func (w *World) Hlt(begin, end Def, dbg Debug) *PrimOp {
	return w.cse(TagHlt, begin.Type(), 0, []Def{begin, end}, dbg)
}

// ---------------------------------------------------------------------------
// continuations

// Continuation creates a fresh continuation of the given function type,
// with one parameter per pi element. Continuations are never interned.
func (w *World) Continuation(fnType *Type, dbg Debug) *Continuation {
	if fnType.Kind() != KindPi {
		panic("ir: continuation requires a pi type")
	}
	c := &Continuation{}
	c.init(w, c, TagContinuation, fnType, 0, normDebug(dbg))
	c.konst = true
	for i, elemT := range fnType.Elems() {
		p := &Param{owner: c, index: i}
		p.init(w, p, TagParam, elemT, 0, Debug{})
		c.params = append(c.params, p)
	}
	w.conts = append(w.conts, c)
	return c
}

// BasicBlock creates a continuation of type pi(paramTypes...).
func (w *World) BasicBlock(dbg Debug, paramTypes ...*Type) *Continuation {
	return w.Continuation(w.Pi(paramTypes...), dbg)
}

// Branch returns the branch intrinsic: jumping to it with arguments
// (cond, then, else) is the only conditional control transfer.
func (w *World) Branch() *Continuation {
	if w.branch == nil {
		bb := w.Pi()
		w.branch = w.Continuation(w.Pi(w.BoolType(), bb, bb), Debug{Name: "br"})
		w.branch.intrinsic = IntrinsicBranch
	}
	return w.branch
}

// PrimOps returns every live primop in creation order.
func (w *World) PrimOps() []*PrimOp { return append([]*PrimOp(nil), w.primops...) }

// Continuations returns every live continuation in creation order.
func (w *World) Continuations() []*Continuation {
	return append([]*Continuation(nil), w.conts...)
}

// Externals returns the externally visible continuations.
func (w *World) Externals() []*Continuation {
	var exts []*Continuation
	for _, c := range w.conts {
		if c.external {
			exts = append(exts, c)
		}
	}
	return exts
}

// ---------------------------------------------------------------------------
// cleanup

// Cleanup removes every node not reachable from the external continuations
// and compacts the interning tables. Any scope, dominator, loop or schedule
// data computed before Cleanup is stale afterwards and must be discarded by
// the client.
func (w *World) Cleanup() {
	pass := w.NewPass()
	var stack []Def
	mark := func(d Def) {
		if d != nil && !Visit(d, pass) {
			stack = append(stack, d)
		}
	}
	for _, c := range w.conts {
		if c.external {
			mark(c)
		}
	}
	if w.branch != nil {
		mark(w.branch)
	}
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c, ok := d.(*Continuation); ok {
			for _, p := range c.params {
				mark(p)
			}
		}
		for _, op := range d.Ops() {
			mark(op)
		}
	}

	var livePrims []*PrimOp
	for _, p := range w.primops {
		if IsVisited(p, pass) {
			livePrims = append(livePrims, p)
		} else {
			p.unsetOps()
		}
	}
	w.primops = livePrims
	w.primBuckets = make(map[uint64][]*PrimOp, len(livePrims))
	for _, p := range livePrims {
		p.hash = primHash(p.tag, p.typ, p.extra, p.ops)
		w.primBuckets[p.hash] = append(w.primBuckets[p.hash], p)
	}

	var liveConts []*Continuation
	for _, c := range w.conts {
		if IsVisited(c, pass) {
			liveConts = append(liveConts, c)
		} else {
			c.unsetOps()
		}
	}
	w.conts = liveConts

	w.sweepTypes()
}

func (w *World) sweepTypes() {
	live := make(map[*Type]struct{})
	var mark func(t *Type)
	mark = func(t *Type) {
		if t == nil {
			return
		}
		if _, ok := live[t]; ok {
			return
		}
		live[t] = struct{}{}
		for _, e := range t.elems {
			mark(e)
		}
	}
	for _, p := range w.primops {
		mark(p.typ)
	}
	for _, c := range w.conts {
		mark(c.typ)
		for _, p := range c.params {
			mark(p.typ)
		}
		for _, ta := range c.typeArgs {
			mark(ta)
		}
	}

	var liveTypes []*Type
	for _, t := range w.types {
		if _, ok := live[t]; ok {
			liveTypes = append(liveTypes, t)
		}
	}
	w.types = liveTypes
	w.typeBuckets = make(map[uint64][]*Type, len(liveTypes))
	for _, t := range liveTypes {
		if t.IsNamed() {
			continue
		}
		h := typeHash(t)
		w.typeBuckets[h] = append(w.typeBuckets[h], t)
	}
}
