package moves

import (
	"context"
	"fmt"

	"framekit/internal/diag"
	"framekit/internal/lir"
	"framekit/internal/observ"
	"framekit/internal/storage"
	"framekit/internal/target"
	"framekit/internal/trace"
)

// Options configures ResolveFunc.
type Options struct {
	Target *target.Target

	// Slots resolves phi values that are still virtual. Optional when the
	// unit went through stackalloc first.
	Slots SlotTable

	// VerifyPhis runs lir.VerifyAllPhis before resolving.
	VerifyPhis bool

	Counters *observ.Counters
}

// Edge describes the copies placed for one predecessor to merge edge.
type Edge struct {
	Pred  lir.BlockID
	Merge lir.BlockID
	Moves []lir.Instr

	// EdgeBlock is the block created to host Moves, or NoBlockID when they
	// were placed before the predecessor's jump.
	EdgeBlock lir.BlockID
}

func (e Edge) String() string {
	return fmt.Sprintf("bb%d->bb%d", e.Pred, e.Merge)
}

// ResolveFunc replaces the phi bindings of f with explicit copies. Merge
// blocks are visited in block order and their predecessors in predecessor
// order; every edge is resolved on its own. Copies go right before the
// predecessor's jump, or into a new edge block when the jump is marked
// NoSplice. Afterwards no label or jump carries phi values. f is only
// modified when every edge resolved.
func ResolveFunc(ctx context.Context, f *lir.Func, opts Options) (edges []Edge, err error) {
	if f == nil {
		return nil, fmt.Errorf("moves: nil function")
	}
	if opts.Target == nil {
		return nil, fmt.Errorf("moves: %s: no target", f.Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := trace.StartSpan(ctx, trace.ScopePass, "resolve:"+f.Name)
	defer func() { span.EndErr(err) }()

	if opts.VerifyPhis {
		if err := lir.VerifyAllPhis(f); err != nil {
			return nil, err
		}
	}

	counters := opts.Counters
	if counters == nil {
		counters = &observ.Counters{}
	}
	r := NewResolver(opts.Target, opts.Slots)
	r.SetFrameSize(f.FrameSize)

	merges := f.Merges()
	for _, m := range merges {
		for _, p := range f.Block(m).Preds {
			edge, err := resolveEdge(ctx, f, r, p, m)
			if err != nil {
				return nil, err
			}
			edges = append(edges, edge)
		}
	}

	// Everything below only restructures; all checks are done.
	for _, m := range merges {
		for _, p := range f.Block(m).Preds {
			if err := lir.RemovePhiOut(f, p); err != nil {
				return nil, err
			}
		}
		if err := lir.RemovePhiIn(f, m); err != nil {
			return nil, err
		}
	}
	inserted := 0
	for i := range edges {
		if placeMoves(f, &edges[i]) {
			inserted++
		}
	}
	if inserted > 0 {
		f.ComputeEdges()
	}

	counters.EdgesResolved += len(edges)
	counters.MovesEmitted += r.Stats.Emitted
	counters.MovesElided += r.Stats.Elided
	counters.CyclesBroken += r.Stats.CyclesBroken
	counters.EdgeBlocksInserted += inserted
	span.WithCount("edges", len(edges)).WithCount("moves", r.Stats.Emitted)
	return edges, nil
}

func resolveEdge(ctx context.Context, f *lir.Func, r *Resolver, pred, merge lir.BlockID) (Edge, error) {
	edge := Edge{Pred: pred, Merge: merge, EdgeBlock: lir.NoBlockID}
	_, span := trace.StartSpan(ctx, trace.ScopeEdge, "edge:"+edge.String())
	defer span.End("")

	bb := f.Block(pred)
	r.Reset(diag.At(f.Name).InBlock(int32(pred)).AtInstr(int32(len(bb.Instrs) - 1)))
	err := lir.ForEachPhiValuePair(f, merge, pred, func(in, out storage.Value) error {
		return r.AddMapping(out, in)
	})
	if err != nil {
		return edge, err
	}
	moves, err := r.Resolve()
	if err != nil {
		return edge, err
	}
	edge.Moves = moves
	span.WithCount("moves", len(moves))
	return edge, nil
}

// placeMoves inserts e.Moves and reports whether an edge block was created.
func placeMoves(f *lir.Func, e *Edge) bool {
	if len(e.Moves) == 0 {
		return false
	}
	pred := f.Block(e.Pred)
	jump := pred.Last()
	if !jump.Jump.NoSplice {
		at := len(pred.Instrs) - 1
		instrs := make([]lir.Instr, 0, len(pred.Instrs)+len(e.Moves))
		instrs = append(instrs, pred.Instrs[:at]...)
		instrs = append(instrs, e.Moves...)
		instrs = append(instrs, pred.Instrs[at])
		pred.Instrs = instrs
		return false
	}

	id := f.AddBlock()
	eb := f.Block(id)
	eb.Instrs = make([]lir.Instr, 0, len(e.Moves)+2)
	eb.Instrs = append(eb.Instrs, lir.NewLabel())
	eb.Instrs = append(eb.Instrs, e.Moves...)
	eb.Instrs = append(eb.Instrs, lir.NewJump(e.Merge))
	// AddBlock may have moved the block slice.
	f.Block(e.Pred).Last().Jump.Target = id
	e.EdgeBlock = id
	return true
}
