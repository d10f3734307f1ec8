package lir

import (
	"framekit/internal/storage"
)

type BlockID int32

const NoBlockID BlockID = -1

// OperandMode is the role an operand plays in an instruction.
type OperandMode uint8

const (
	// ModeUse is read at the start of the instruction.
	ModeUse OperandMode = iota
	// ModeAlive is read and must stay intact until the instruction ends.
	ModeAlive
	// ModeTemp is clobbered by the instruction.
	ModeTemp
	// ModeDef is written by the instruction.
	ModeDef
	// ModeState is recorded in safepoint / deoptimization state.
	ModeState
)

func (m OperandMode) String() string {
	switch m {
	case ModeUse:
		return "use"
	case ModeAlive:
		return "alive"
	case ModeTemp:
		return "temp"
	case ModeDef:
		return "def"
	case ModeState:
		return "state"
	default:
		return "unknown"
	}
}

// IsRead reports whether operands in this mode only read their location.
func (m OperandMode) IsRead() bool {
	return m == ModeUse || m == ModeAlive || m == ModeState
}

// Block is a basic block. Its ID equals its index in Func.Blocks.
// Preds and Succs are derived from terminators by Func.ComputeEdges.
type Block struct {
	ID     BlockID
	Instrs []Instr
	Preds  []BlockID
	Succs  []BlockID
}

// Func is one compilation unit: an arena of blocks plus the virtual stack
// slot table whose ids index Slots.
type Func struct {
	Name   string
	Blocks []Block
	Entry  BlockID
	Slots  []storage.VirtualSlot

	// FrameSize is set once the frame has been finalized; 0 before that.
	FrameSize int32
}

// Block returns the block with the given id, or nil.
func (f *Func) Block(id BlockID) *Block {
	if f == nil || id < 0 || int(id) >= len(f.Blocks) {
		return nil
	}
	return &f.Blocks[id]
}

// Slot returns the virtual slot with the given id.
func (f *Func) Slot(id storage.VirtualSlotID) (storage.VirtualSlot, bool) {
	if f == nil || id < 0 || int(id) >= len(f.Slots) {
		return storage.VirtualSlot{}, false
	}
	return f.Slots[id], true
}

// First returns the first instruction of b, or nil.
func (b *Block) First() *Instr {
	if b == nil || len(b.Instrs) == 0 {
		return nil
	}
	return &b.Instrs[0]
}

// Last returns the last instruction of b, or nil.
func (b *Block) Last() *Instr {
	if b == nil || len(b.Instrs) == 0 {
		return nil
	}
	return &b.Instrs[len(b.Instrs)-1]
}

// HasPred reports whether p is a predecessor of b.
func (b *Block) HasPred(p BlockID) bool {
	for _, id := range b.Preds {
		if id == p {
			return true
		}
	}
	return false
}
