package lir

import (
	"framekit/internal/storage"
)

// ForEachOperand calls fn for every operand of ins that is not illegal, in
// a fixed order: defs, uses, alives, temps, state.
func (ins *Instr) ForEachOperand(fn func(v storage.Value, mode OperandMode)) {
	if ins == nil {
		return
	}
	visit := func(vs []storage.Value, mode OperandMode) {
		for _, v := range vs {
			if !v.IsIllegal() {
				fn(v, mode)
			}
		}
	}
	switch ins.Op {
	case OpLabel:
		visit(ins.Label.Incoming, ModeDef)
	case OpJump:
		visit(ins.Jump.Outgoing, ModeAlive)
	case OpBranch:
		visit([]storage.Value{ins.Branch.Cond}, ModeUse)
	case OpReturn:
		if ins.Return.HasValue {
			visit([]storage.Value{ins.Return.Value}, ModeUse)
		}
	case OpMove:
		visit([]storage.Value{ins.Move.Dst}, ModeDef)
		visit([]storage.Value{ins.Move.Src}, ModeUse)
	case OpGeneric:
		visit(ins.Generic.Defs, ModeDef)
		visit(ins.Generic.Uses, ModeUse)
		visit(ins.Generic.Alives, ModeAlive)
		visit(ins.Generic.Temps, ModeTemp)
		visit(ins.Generic.State, ModeState)
	}
}

// OperandMapper rewrites one operand. It is called exactly once per
// non-illegal operand.
type OperandMapper func(v storage.Value, mode OperandMode) (storage.Value, error)

// MapOperands returns a copy of ins with every operand replaced by fn's
// result. The original instruction and its slices are left untouched.
func (ins Instr) MapOperands(fn OperandMapper) (Instr, error) {
	var firstErr error
	mapOne := func(v storage.Value, mode OperandMode) storage.Value {
		if v.IsIllegal() || firstErr != nil {
			return v
		}
		nv, err := fn(v, mode)
		if err != nil {
			firstErr = err
			return v
		}
		return nv
	}
	mapAll := func(vs []storage.Value, mode OperandMode) []storage.Value {
		if vs == nil {
			return nil
		}
		out := make([]storage.Value, len(vs))
		for i, v := range vs {
			out[i] = mapOne(v, mode)
		}
		return out
	}

	out := ins
	switch ins.Op {
	case OpLabel:
		out.Label.Incoming = mapAll(ins.Label.Incoming, ModeDef)
	case OpJump:
		out.Jump.Outgoing = mapAll(ins.Jump.Outgoing, ModeAlive)
	case OpBranch:
		out.Branch.Cond = mapOne(ins.Branch.Cond, ModeUse)
	case OpReturn:
		if ins.Return.HasValue {
			out.Return.Value = mapOne(ins.Return.Value, ModeUse)
		}
	case OpMove:
		out.Move.Dst = mapOne(ins.Move.Dst, ModeDef)
		out.Move.Src = mapOne(ins.Move.Src, ModeUse)
	case OpGeneric:
		out.Generic.Defs = mapAll(ins.Generic.Defs, ModeDef)
		out.Generic.Uses = mapAll(ins.Generic.Uses, ModeUse)
		out.Generic.Alives = mapAll(ins.Generic.Alives, ModeAlive)
		out.Generic.Temps = mapAll(ins.Generic.Temps, ModeTemp)
		out.Generic.State = mapAll(ins.Generic.State, ModeState)
	}
	if firstErr != nil {
		return ins, firstErr
	}
	return out, nil
}
