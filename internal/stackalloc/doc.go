// Package stackalloc replaces virtual stack slots with concrete frame slots.
//
// Allocate walks the slot table of a unit in id order and asks a
// frame.Builder for storage: Simple slots get a spill slot for their kind,
// Range slots get a raw region, and Alias slots reuse the offset of their
// Simple target with their own kind. Every operand of every instruction is
// then mapped exactly once, and the unit is only updated when the whole
// rewrite succeeded.
package stackalloc
