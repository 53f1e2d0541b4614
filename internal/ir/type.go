package ir

import (
	"fmt"
	"strings"
)

// TypeKind enumerates all supported kinds of types.
type TypeKind uint8

const (
	KindPrim TypeKind = iota
	KindPtr
	KindSigma
	KindPi
	KindArray
	KindMem
	KindFrame
	KindGeneric
	KindGenericRef
)

func (k TypeKind) String() string {
	switch k {
	case KindPrim:
		return "prim"
	case KindPtr:
		return "ptr"
	case KindSigma:
		return "sigma"
	case KindPi:
		return "pi"
	case KindArray:
		return "array"
	case KindMem:
		return "mem"
	case KindFrame:
		return "frame"
	case KindGeneric:
		return "generic"
	case KindGenericRef:
		return "generic_ref"
	default:
		return fmt.Sprintf("TypeKind(%d)", k)
	}
}

// PrimKind enumerates the primitive scalar kinds. Signed integers are the
// non-wrapping family: constant folding aborts on overflow. Unsigned
// integers wrap modulo 2^N.
type PrimKind uint8

const (
	PrimBool PrimKind = iota
	PrimS8
	PrimS16
	PrimS32
	PrimS64
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimF32
	PrimF64
)

func (k PrimKind) String() string {
	switch k {
	case PrimBool:
		return "bool"
	case PrimS8:
		return "s8"
	case PrimS16:
		return "s16"
	case PrimS32:
		return "s32"
	case PrimS64:
		return "s64"
	case PrimU8:
		return "u8"
	case PrimU16:
		return "u16"
	case PrimU32:
		return "u32"
	case PrimU64:
		return "u64"
	case PrimF32:
		return "f32"
	case PrimF64:
		return "f64"
	default:
		return fmt.Sprintf("PrimKind(%d)", k)
	}
}

// Bits returns the storage width of the primitive kind.
func (k PrimKind) Bits() int {
	switch k {
	case PrimBool:
		return 1
	case PrimS8, PrimU8:
		return 8
	case PrimS16, PrimU16:
		return 16
	case PrimS32, PrimU32, PrimF32:
		return 32
	case PrimS64, PrimU64, PrimF64:
		return 64
	}
	return 0
}

// IsSigned reports whether the kind is a signed integer.
func (k PrimKind) IsSigned() bool { return k >= PrimS8 && k <= PrimS64 }

// IsUnsigned reports whether the kind is an unsigned integer.
func (k PrimKind) IsUnsigned() bool { return k >= PrimU8 && k <= PrimU64 }

// IsFloat reports whether the kind is a floating-point type.
func (k PrimKind) IsFloat() bool { return k == PrimF32 || k == PrimF64 }

// Type is a structurally hash-consed type. Two compound types are the same
// object iff their kind and element sequences match pointwise; named sigmas
// are nominal and equal only to themselves.
type Type struct {
	world  *World
	kind   TypeKind
	prim   PrimKind
	length int
	elems  []*Type
	name   string
	index  int
	cont   *Continuation
	gid    GID
}

func (t *Type) Kind() TypeKind { return t.kind }
func (t *Type) GID() GID       { return t.gid }
func (t *Type) World() *World  { return t.world }

// Prim returns the primitive kind; only meaningful for KindPrim.
func (t *Type) Prim() PrimKind { return t.prim }

// Length returns the vector length (1 for scalars).
func (t *Type) Length() int { return t.length }

// Elems returns the element types of a compound type.
func (t *Type) Elems() []*Type { return t.elems }

// NumElems returns the number of element types.
func (t *Type) NumElems() int { return len(t.elems) }

// Elem returns the i-th element type.
func (t *Type) Elem(i int) *Type { return t.elems[i] }

// Name returns the nominal name of a named sigma ("" otherwise).
func (t *Type) Name() string { return t.name }

// IsNamed reports whether t is a nominal (named) sigma.
func (t *Type) IsNamed() bool { return t.kind == KindSigma && t.name != "" }

// Index returns a generic's index.
func (t *Type) Index() int { return t.index }

// ScopeCont returns the scoping continuation of a generic-ref (nil otherwise).
func (t *Type) ScopeCont() *Continuation { return t.cont }

// IsMem reports whether t is the memory monad type.
func (t *Type) IsMem() bool { return t.kind == KindMem }

// IsFrame reports whether t is the stack-frame type.
func (t *Type) IsFrame() bool { return t.kind == KindFrame }

// IsPrim reports whether t is a primitive type.
func (t *Type) IsPrim() bool { return t.kind == KindPrim }

// IsBool reports whether t is a scalar or vector bool.
func (t *Type) IsBool() bool { return t.kind == KindPrim && t.prim == PrimBool }

// IsInt reports whether t is an integer type.
func (t *Type) IsInt() bool {
	return t.kind == KindPrim && (t.prim.IsSigned() || t.prim.IsUnsigned())
}

// Pointee returns the referenced type of a pointer.
func (t *Type) Pointee() *Type {
	if t.kind != KindPtr {
		panic("ir: Pointee on non-pointer type")
	}
	return t.elems[0]
}

// Order returns the function nesting order: primitive data is 0, a function
// type is one more than the highest order among its elements. Named sigmas
// are opaque and report 0, which also keeps recursive nominals finite.
func (t *Type) Order() int {
	switch t.kind {
	case KindPi:
		max := 0
		for _, e := range t.elems {
			if o := e.Order(); o > max {
				max = o
			}
		}
		return 1 + max
	case KindSigma:
		if t.IsNamed() {
			return 0
		}
		max := 0
		for _, e := range t.elems {
			if o := e.Order(); o > max {
				max = o
			}
		}
		return max
	case KindPtr, KindArray:
		return t.elems[0].Order()
	default:
		return 0
	}
}

// SetElem updates an element of a named sigma. Only nominal types are
// mutable; interned structural types never change.
func (t *Type) SetElem(i int, elem *Type) {
	if !t.IsNamed() {
		panic("ir: SetElem on structural type")
	}
	t.elems[i] = elem
}

func (t *Type) String() string {
	switch t.kind {
	case KindPrim:
		if t.length != 1 {
			return fmt.Sprintf("<%d x %s>", t.length, t.prim)
		}
		return t.prim.String()
	case KindPtr:
		return "ptr(" + t.elems[0].String() + ")"
	case KindSigma:
		if t.IsNamed() {
			return t.name
		}
		return "[" + joinTypes(t.elems) + "]"
	case KindPi:
		return "fn(" + joinTypes(t.elems) + ")"
	case KindArray:
		return "array(" + t.elems[0].String() + ")"
	case KindMem:
		return "mem"
	case KindFrame:
		return "frame"
	case KindGeneric:
		return fmt.Sprintf("<%d>", t.index)
	case KindGenericRef:
		return fmt.Sprintf("<%d@%s>", t.elems[0].index, t.cont.UniqueName())
	default:
		return t.kind.String()
	}
}

func joinTypes(elems []*Type) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
