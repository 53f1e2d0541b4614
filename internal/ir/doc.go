// Package ir provides the core intermediate representation of the anvil
// compiler framework: a continuation-passing-style SSA graph of hash-consed
// primitive operations.
//
// The World owns every node. Primops and types are interned by structural
// identity, so building the same operation twice yields the same object.
// Continuations are first-class basic blocks that double as functions;
// control transfer is a tail call stored as the continuation's operand
// sequence (callee first, then arguments). Every node keeps an ordered
// operand list and an unordered use-set that are maintained as a bijection.
//
// The ir layer is designed to be the input for:
// - Scope extraction and CFG analyses (internal/analysis)
// - Instruction scheduling over extracted scopes
// - Graph transforms such as partial evaluation and inlining
//   (internal/transform)
package ir

// GID is a monotonically increasing global node identifier.
type GID = uint64

// NoGID marks the absence of a node (zero is never issued).
const NoGID GID = 0
