package lir

import (
	"fmt"

	"framekit/internal/diag"
	"framekit/internal/storage"
)

// PhiOut returns the jump ending a block with exactly one successor.
// The jump's Outgoing values feed the successor's phis.
func PhiOut(f *Func, id BlockID) (*JumpInstr, error) {
	bb := f.Block(id)
	loc := diag.At(funcName(f)).InBlock(int32(id))
	if bb == nil {
		return nil, diag.Errorf(diag.ErrBadTarget, loc, "block does not exist")
	}
	if len(bb.Succs) != 1 {
		return nil, diag.Errorf(diag.ErrNotSingleSucc, loc, "block has %d successors, want 1", len(bb.Succs))
	}
	last := bb.Last()
	if last == nil || last.Op != OpJump {
		op := "nothing"
		if last != nil {
			op = last.Op.String()
		}
		return nil, diag.Errorf(diag.ErrMalformedPhi, loc.AtInstr(int32(len(bb.Instrs)-1)),
			"block ends in %s, want jump", op)
	}
	return &last.Jump, nil
}

// PhiIn returns the label starting a block with more than one predecessor.
// The label's Incoming values are the block's phis.
func PhiIn(f *Func, id BlockID) (*LabelInstr, error) {
	bb := f.Block(id)
	loc := diag.At(funcName(f)).InBlock(int32(id))
	if bb == nil {
		return nil, diag.Errorf(diag.ErrBadTarget, loc, "block does not exist")
	}
	if !bb.IsMerge() {
		return nil, diag.Errorf(diag.ErrMalformedPhi, loc, "block has %d predecessor(s), want more than one", len(bb.Preds))
	}
	first := bb.First()
	if first == nil || first.Op != OpLabel {
		op := "nothing"
		if first != nil {
			op = first.Op.String()
		}
		return nil, diag.Errorf(diag.ErrMalformedPhi, loc.AtInstr(0), "block starts with %s, want label", op)
	}
	return &first.Label, nil
}

// PhiVisitor receives one (incoming, outgoing) pair of an edge.
type PhiVisitor func(incoming, outgoing storage.Value) error

// ForEachPhiValuePair pairs the merge's incoming value i with pred's outgoing
// value i and calls visit for each pair in index order. It does nothing when
// merge has fewer than two predecessors.
func ForEachPhiValuePair(f *Func, merge, pred BlockID, visit PhiVisitor) error {
	mb := f.Block(merge)
	if mb == nil {
		return diag.Errorf(diag.ErrBadTarget, diag.At(funcName(f)).InBlock(int32(merge)), "merge block does not exist")
	}
	if !mb.IsMerge() {
		return nil
	}
	loc := diag.At(funcName(f)).InBlock(int32(pred))
	if !mb.HasPred(pred) {
		return diag.Errorf(diag.ErrNotPredecessor, loc, "bb%d is not a predecessor of bb%d", pred, merge)
	}
	out, err := PhiOut(f, pred)
	if err != nil {
		return err
	}
	if out.Target != merge {
		return diag.Errorf(diag.ErrNotSingleSucc, loc, "single successor is bb%d, want bb%d", out.Target, merge)
	}
	in, err := PhiIn(f, merge)
	if err != nil {
		return err
	}
	if len(in.Incoming) != len(out.Outgoing) {
		return diag.Errorf(diag.ErrPhiCountMismatch, loc,
			"jump carries %d outgoing values, bb%d expects %d", len(out.Outgoing), merge, len(in.Incoming))
	}
	for i := range in.Incoming {
		if err := visit(in.Incoming[i], out.Outgoing[i]); err != nil {
			return err
		}
	}
	return nil
}

// VerifyPhi checks every (incoming, outgoing) pair of every edge into merge:
// the kinds must be equal, or the incoming kind must be the unknown
// reference supertype of a concrete outgoing kind.
func VerifyPhi(f *Func, merge BlockID) error {
	mb := f.Block(merge)
	if mb == nil {
		return diag.Errorf(diag.ErrBadTarget, diag.At(funcName(f)).InBlock(int32(merge)), "merge block does not exist")
	}
	for _, pred := range mb.Preds {
		idx := 0
		err := ForEachPhiValuePair(f, merge, pred, func(in, out storage.Value) error {
			defer func() { idx++ }()
			if storage.PhiCompatible(in.Kind, out.Kind) {
				return nil
			}
			return diag.Errorf(diag.ErrPhiKindMismatch, diag.At(funcName(f)).InBlock(int32(merge)).AtInstr(0),
				"phi %d from bb%d: incoming %s, outgoing %s", idx, pred, in.Kind, out.Kind).WithValues(in, out)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// VerifyAllPhis runs VerifyPhi on every merge block.
func VerifyAllPhis(f *Func) error {
	for _, m := range f.Merges() {
		if err := VerifyPhi(f, m); err != nil {
			return fmt.Errorf("verify phis: %w", err)
		}
	}
	return nil
}

// RemovePhiIn clears the incoming values of a merge block.
func RemovePhiIn(f *Func, id BlockID) error {
	in, err := PhiIn(f, id)
	if err != nil {
		return err
	}
	in.Incoming = nil
	return nil
}

// RemovePhiOut clears the outgoing values of a block's final jump.
func RemovePhiOut(f *Func, id BlockID) error {
	out, err := PhiOut(f, id)
	if err != nil {
		return err
	}
	out.Outgoing = nil
	return nil
}

func funcName(f *Func) string {
	if f == nil {
		return ""
	}
	return f.Name
}
