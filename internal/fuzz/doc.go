// Package fuzztests houses Go fuzz harnesses for the LIR text reader and
// the storage-assignment pipeline. They guard against panics and hangs on
// arbitrary input and check that every unit the pipeline accepts comes out
// fully concrete, phi-free and with a consistent frame.
package fuzztests
