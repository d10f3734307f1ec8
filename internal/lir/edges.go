package lir

import "slices"

// ComputeEdges rebuilds Preds and Succs of every block from the block
// terminators. Predecessors are listed in ascending block order so that
// every pass iterating them is deterministic.
func (f *Func) ComputeEdges() {
	if f == nil {
		return
	}
	for i := range f.Blocks {
		f.Blocks[i].Preds = nil
		f.Blocks[i].Succs = nil
	}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for _, s := range bb.Last().Successors() {
			if slices.Contains(bb.Succs, s) {
				continue
			}
			bb.Succs = append(bb.Succs, s)
			if succ := f.Block(s); succ != nil {
				succ.Preds = append(succ.Preds, bb.ID)
			}
		}
	}
}

// IsMerge reports whether b has more than one predecessor.
func (b *Block) IsMerge() bool {
	return b != nil && len(b.Preds) > 1
}

// Merges returns the ids of all blocks with more than one predecessor, in block order.
func (f *Func) Merges() []BlockID {
	var out []BlockID
	for i := range f.Blocks {
		if f.Blocks[i].IsMerge() {
			out = append(out, f.Blocks[i].ID)
		}
	}
	return out
}

// AddBlock appends a new empty block and returns its id.
func (f *Func) AddBlock() BlockID {
	id := BlockID(len(f.Blocks))
	f.Blocks = append(f.Blocks, Block{ID: id})
	return id
}
