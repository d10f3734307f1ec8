// Package trace records what the allocation pipeline is doing.
//
// # Usage
//
//	framekit alloc --trace=- --trace-level=detail units/*.lir
//
// # Tracers
//
//   - Nop: used when tracing is off
//   - StreamTracer: writes each event as it happens (text or NDJSON)
//   - RingTracer: keeps the last events in memory for crash dumps
//   - MultiTracer: fans out to several tracers
//
// # Scopes
//
//   - ScopeDriver: a whole CLI run over many units
//   - ScopePass: one pipeline stage of one unit (verify, alloc, resolve)
//   - ScopeUnit: per-unit work inside a stage (slot assignment, rewrite)
//   - ScopeEdge: one predecessor to merge edge in the move resolver
//
// Tracers travel through context, together with the current span and the
// unit being compiled, so every event can be attributed to its unit:
//
//	ctx = trace.WithUnit(trace.WithTracer(ctx, tracer), f.Name)
//	ctx, span := trace.StartSpan(ctx, trace.ScopePass, "alloc:"+f.Name)
//	defer span.End("")
//
// When a run fails, RingTracer.DumpUnits replays only the events of the
// failing units.
package trace
