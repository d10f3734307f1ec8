package lir

import (
	"errors"
	"fmt"
	"slices"

	"framekit/internal/diag"
	"framekit/internal/storage"
)

// Validate checks the structural invariants the frame allocator and the
// edge resolver rely on. Preds and Succs must be what ComputeEdges derives
// from the terminators; stale edges are reported, not repaired.
// Returns error if any invariant is violated.
func Validate(f *Func) error {
	if f == nil {
		return nil
	}
	var errs []error

	// 1. Block shape: label first, single terminator last
	if err := validateBlockShape(f); err != nil {
		errs = append(errs, err)
	}

	// 2. Branch targets exist
	if err := validateTargets(f); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		// edge-based checks are meaningless on broken blocks
		return errors.Join(errs...)
	}
	if err := validateEdges(f); err != nil {
		return err
	}

	// 3. No critical edges
	if err := validateCriticalEdges(f); err != nil {
		errs = append(errs, err)
	}

	// 4. Phi arrays line up
	if err := validatePhiShape(f); err != nil {
		errs = append(errs, err)
	}

	// 5. Virtual slot table and references
	if err := validateSlots(f); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// validateBlockShape checks that every block starts with a label and ends
// with exactly one terminator.
func validateBlockShape(f *Func) error {
	var errs []error
	loc := diag.At(f.Name)
	if len(f.Blocks) == 0 {
		return diag.Errorf(diag.ErrMalformedBlock, loc, "function has no blocks")
	}
	if f.Block(f.Entry) == nil {
		errs = append(errs, diag.Errorf(diag.ErrBadTarget, loc, "entry bb%d does not exist", f.Entry))
	}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		bloc := loc.InBlock(int32(i))
		if bb.ID != BlockID(i) {
			errs = append(errs, diag.Errorf(diag.ErrMalformedBlock, bloc, "block id bb%d stored at index %d", bb.ID, i))
		}
		if len(bb.Instrs) < 2 {
			errs = append(errs, diag.Errorf(diag.ErrMalformedBlock, bloc, "block needs a label and a terminator"))
			continue
		}
		if bb.Instrs[0].Op != OpLabel {
			errs = append(errs, diag.Errorf(diag.ErrMalformedBlock, bloc.AtInstr(0), "first instruction is %s, want label", bb.Instrs[0].Op))
		}
		last := len(bb.Instrs) - 1
		if !bb.Instrs[last].Op.IsTerminator() {
			errs = append(errs, diag.Errorf(diag.ErrMalformedBlock, bloc.AtInstr(int32(last)), "last instruction is %s, want a terminator", bb.Instrs[last].Op))
		}
		for j := 1; j < last; j++ {
			op := bb.Instrs[j].Op
			if op == OpLabel || op.IsTerminator() {
				errs = append(errs, diag.Errorf(diag.ErrMalformedBlock, bloc.AtInstr(int32(j)), "%s in the middle of a block", op))
			}
		}
	}
	return errors.Join(errs...)
}

// validateTargets checks that all block target IDs exist.
func validateTargets(f *Func) error {
	var errs []error
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		last := bb.Last()
		if last == nil {
			continue
		}
		loc := diag.At(f.Name).InBlock(int32(i)).AtInstr(int32(len(bb.Instrs) - 1))
		for _, s := range last.Successors() {
			if f.Block(s) == nil {
				errs = append(errs, diag.Errorf(diag.ErrBadTarget, loc, "%s target bb%d does not exist", last.Op, s))
			}
		}
		if last.Op == OpBranch && last.Branch.Then == last.Branch.Else {
			errs = append(errs, diag.Errorf(diag.ErrBadTarget, loc, "branch has identical targets bb%d", last.Branch.Then))
		}
	}
	return errors.Join(errs...)
}

// validateEdges compares the stored Preds and Succs with the ones the
// terminators imply, in ComputeEdges order.
func validateEdges(f *Func) error {
	want := &Func{Blocks: make([]Block, len(f.Blocks))}
	for i := range f.Blocks {
		want.Blocks[i] = Block{ID: f.Blocks[i].ID, Instrs: f.Blocks[i].Instrs}
	}
	want.ComputeEdges()
	var errs []error
	for i := range f.Blocks {
		got, exp := &f.Blocks[i], &want.Blocks[i]
		loc := diag.At(f.Name).InBlock(int32(i))
		if !slices.Equal(got.Succs, exp.Succs) {
			errs = append(errs, diag.Errorf(diag.ErrStaleEdges, loc, "succs %v, terminator gives %v", got.Succs, exp.Succs))
		}
		if !slices.Equal(got.Preds, exp.Preds) {
			errs = append(errs, diag.Errorf(diag.ErrStaleEdges, loc, "preds %v, terminators give %v", got.Preds, exp.Preds))
		}
	}
	return errors.Join(errs...)
}

// validateCriticalEdges rejects edges from a multi-successor block into a
// multi-predecessor block.
func validateCriticalEdges(f *Func) error {
	var errs []error
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		if len(bb.Succs) < 2 {
			continue
		}
		for _, s := range bb.Succs {
			if f.Block(s).IsMerge() {
				errs = append(errs, diag.Errorf(diag.ErrCriticalEdge, diag.At(f.Name).InBlock(int32(i)),
					"critical edge bb%d -> bb%d", bb.ID, s))
			}
		}
	}
	return errors.Join(errs...)
}

// validatePhiShape checks that only merges carry incoming values, that every
// predecessor of a merge ends in a jump with the same number of outgoing
// values, and that other jumps carry none.
func validatePhiShape(f *Func) error {
	var errs []error
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		loc := diag.At(f.Name).InBlock(int32(i))
		label := bb.First()
		if !bb.IsMerge() {
			if len(label.Label.Incoming) > 0 {
				errs = append(errs, diag.Errorf(diag.ErrMalformedPhi, loc.AtInstr(0),
					"block with %d predecessor(s) has %d incoming values", len(bb.Preds), len(label.Label.Incoming)))
			}
			continue
		}
		n := len(label.Label.Incoming)
		for _, p := range bb.Preds {
			pred := f.Block(p)
			ploc := diag.At(f.Name).InBlock(int32(p)).AtInstr(int32(len(pred.Instrs) - 1))
			last := pred.Last()
			if last.Op != OpJump {
				errs = append(errs, diag.Errorf(diag.ErrMalformedPhi, ploc,
					"predecessor of merge bb%d ends in %s, want jump", bb.ID, last.Op))
				continue
			}
			if got := len(last.Jump.Outgoing); got != n {
				errs = append(errs, diag.Errorf(diag.ErrPhiCountMismatch, ploc,
					"jump to bb%d carries %d outgoing values, merge expects %d", bb.ID, got, n))
			}
		}
	}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		last := bb.Last()
		if last.Op != OpJump || len(last.Jump.Outgoing) == 0 {
			continue
		}
		if !f.Block(last.Jump.Target).IsMerge() {
			errs = append(errs, diag.Errorf(diag.ErrMalformedPhi,
				diag.At(f.Name).InBlock(int32(i)).AtInstr(int32(len(bb.Instrs)-1)),
				"jump to non-merge bb%d carries outgoing values", last.Jump.Target))
		}
	}
	return errors.Join(errs...)
}

// validateSlots checks that slot ids are dense and every virtual reference
// points into the table.
func validateSlots(f *Func) error {
	var errs []error
	loc := diag.At(f.Name)
	for i, s := range f.Slots {
		if int(s.ID) != i {
			errs = append(errs, diag.Errorf(diag.ErrSlotOutOfRange, loc.ForSlot(int32(i)),
				"slot at index %d has id vs%d", i, s.ID))
		}
	}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			ins.ForEachOperand(func(v storage.Value, mode OperandMode) {
				if !v.IsVirtual() {
					return
				}
				if _, ok := f.Slot(v.VSlot); !ok {
					errs = append(errs, diag.Errorf(diag.ErrSlotOutOfRange,
						loc.InBlock(int32(i)).AtInstr(int32(j)).ForSlot(int32(v.VSlot)),
						"%s operand references unknown slot", mode).WithValues(v))
				}
			})
		}
	}
	return errors.Join(errs...)
}

// CheckConcrete verifies that no operand references a virtual slot anymore.
func CheckConcrete(f *Func) error {
	if f == nil {
		return nil
	}
	var errs []error
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := range bb.Instrs {
			bb.Instrs[j].ForEachOperand(func(v storage.Value, mode OperandMode) {
				if v.IsVirtual() {
					errs = append(errs, diag.Errorf(diag.ErrVirtualRemains,
						diag.At(f.Name).InBlock(int32(i)).AtInstr(int32(j)),
						"%s operand is still virtual", mode).WithValues(v))
				}
			})
		}
	}
	return errors.Join(errs...)
}

// CheckPhisRemoved verifies that no label or jump carries phi values anymore.
func CheckPhisRemoved(f *Func) error {
	if f == nil {
		return nil
	}
	var errs []error
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		if first := bb.First(); first != nil && first.Op == OpLabel && len(first.Label.Incoming) > 0 {
			errs = append(errs, diag.Errorf(diag.ErrPhiRemains, diag.At(f.Name).InBlock(int32(i)).AtInstr(0),
				"label keeps %d incoming values", len(first.Label.Incoming)))
		}
		if last := bb.Last(); last != nil && last.Op == OpJump && len(last.Jump.Outgoing) > 0 {
			errs = append(errs, diag.Errorf(diag.ErrPhiRemains,
				diag.At(f.Name).InBlock(int32(i)).AtInstr(int32(len(bb.Instrs)-1)),
				"jump keeps %d outgoing values", len(last.Jump.Outgoing)))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("phi removal incomplete: %w", errors.Join(errs...))
}
