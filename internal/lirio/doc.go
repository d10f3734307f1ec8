// Package lirio reads and writes LIR units: the line-oriented text form
// printed by lir.Dump, TOML unit files and msgpack packs.
package lirio
