// Package diag defines the diagnostic model shared by the framekit passes.
//
// # Purpose
//
//   - Describe internal consistency violations (unknown slot variants,
//     malformed phi structure, duplicate move destinations, unresolvable
//     cycles) as structured values instead of panics.
//   - Offer light-weight utilities (Reporter, Bag) that let the pipeline
//     collect findings without coupling to rendering.
//
// # Data model
//
// Error is what the passes return. It carries:
//
//   - Code – compact numeric identifier (see codes.go) with a stable ID.
//   - Location – function, block, instruction and slot the error points at.
//   - Values – the offending operands rendered in LIR text syntax.
//   - Msg – a short human oriented message.
//
// Codes implement error, so callers match them with errors.Is:
//
//	if errors.Is(err, diag.ErrPhiKindMismatch) { ... }
//
// Diagnostic is the reporting form of an Error (plus severity and notes)
// and is what Bag stores and Format renders.
//
// None of these failures are user errors: they are meant for compiler
// developers and abort the compilation unit they occur in.
package diag
