// Package moves turns the phi bindings of a unit into explicit copies.
//
// A Resolver handles one predecessor to merge edge: it takes the
// (outgoing, incoming) value pairs of that edge, expands shadowed
// destinations into their register and stack halves, drops copies that
// would not change anything, and orders the rest so that no copy
// overwrites a location a later copy still reads. Cycles are broken
// through the target's reserved scratch register.
//
// ResolveFunc runs a Resolver over every edge into every merge block,
// places the copies and removes the phi bindings.
package moves
