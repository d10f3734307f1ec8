// Package storage defines the operand model shared by the frame allocator
// and the edge resolver: platform kinds, machine registers, concrete stack
// slots, virtual stack slot requests (Simple, Alias, Range) and the Value
// sum type (Register, Stack, VirtualStack, Shadowed, Const).
//
// Every variant set is closed. Code that switches over Tag or SlotVariant
// treats unknown values as internal errors rather than defaulting silently.
package storage
