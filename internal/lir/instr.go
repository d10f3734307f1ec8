package lir

import (
	"framekit/internal/storage"
)

// Op enumerates instruction kinds in LIR.
type Op uint8

const (
	// OpNop is an empty instruction.
	OpNop Op = iota
	// OpLabel starts every block and carries the incoming phi values.
	OpLabel
	// OpJump is an unconditional jump carrying the outgoing phi values.
	OpJump
	// OpBranch is a two-way conditional branch.
	OpBranch
	// OpReturn leaves the function.
	OpReturn
	// OpMove copies Src into Dst.
	OpMove
	// OpGeneric is any other machine operation.
	OpGeneric
)

func (op Op) String() string {
	switch op {
	case OpNop:
		return "nop"
	case OpLabel:
		return "label"
	case OpJump:
		return "jump"
	case OpBranch:
		return "branch"
	case OpReturn:
		return "return"
	case OpMove:
		return "move"
	case OpGeneric:
		return "op"
	default:
		return "unknown"
	}
}

// IsTerminator reports whether op ends a block.
func (op Op) IsTerminator() bool {
	return op == OpJump || op == OpBranch || op == OpReturn
}

// Instr represents a LIR instruction.
type Instr struct {
	Op Op

	Label   LabelInstr
	Jump    JumpInstr
	Branch  BranchInstr
	Return  ReturnInstr
	Move    MoveInstr
	Generic GenericInstr
}

// LabelInstr holds the incoming phi values of a merge block, index-aligned
// with the outgoing values of every predecessor's jump.
type LabelInstr struct {
	Incoming []storage.Value
}

// JumpInstr is an unconditional jump.
type JumpInstr struct {
	Target   BlockID
	Outgoing []storage.Value

	// NoSplice marks a jump whose position is fixed; copies for this edge
	// go into a fresh edge block instead of before the jump.
	NoSplice bool
}

// BranchInstr is a two-way branch on Cond.
type BranchInstr struct {
	Cond storage.Value
	Then BlockID
	Else BlockID
}

// ReturnInstr leaves the function, optionally with a value.
type ReturnInstr struct {
	HasValue bool
	Value    storage.Value
}

// MoveInstr copies Src into Dst.
type MoveInstr struct {
	Dst storage.Value
	Src storage.Value
}

// GenericInstr is an opaque machine operation described only by its operands.
type GenericInstr struct {
	Name   string
	Defs   []storage.Value
	Uses   []storage.Value
	Alives []storage.Value
	Temps  []storage.Value
	State  []storage.Value
}

// NewLabel returns a label with the given incoming values.
func NewLabel(incoming ...storage.Value) Instr {
	return Instr{Op: OpLabel, Label: LabelInstr{Incoming: incoming}}
}

// NewJump returns a jump to target with the given outgoing values.
func NewJump(target BlockID, outgoing ...storage.Value) Instr {
	return Instr{Op: OpJump, Jump: JumpInstr{Target: target, Outgoing: outgoing}}
}

// NewBranch returns a conditional branch.
func NewBranch(cond storage.Value, then, els BlockID) Instr {
	return Instr{Op: OpBranch, Branch: BranchInstr{Cond: cond, Then: then, Else: els}}
}

// NewReturn returns a return without value.
func NewReturn() Instr {
	return Instr{Op: OpReturn, Return: ReturnInstr{Value: storage.IllegalValue()}}
}

// NewReturnValue returns a return of v.
func NewReturnValue(v storage.Value) Instr {
	return Instr{Op: OpReturn, Return: ReturnInstr{HasValue: true, Value: v}}
}

// NewMove returns a copy from src to dst.
func NewMove(dst, src storage.Value) Instr {
	return Instr{Op: OpMove, Move: MoveInstr{Dst: dst, Src: src}}
}

// NewGeneric returns an opaque operation.
func NewGeneric(name string, defs, uses []storage.Value) Instr {
	return Instr{Op: OpGeneric, Generic: GenericInstr{Name: name, Defs: defs, Uses: uses}}
}

// Successors returns the blocks a terminator transfers control to.
func (ins *Instr) Successors() []BlockID {
	if ins == nil {
		return nil
	}
	switch ins.Op {
	case OpJump:
		return []BlockID{ins.Jump.Target}
	case OpBranch:
		return []BlockID{ins.Branch.Then, ins.Branch.Else}
	}
	return nil
}
