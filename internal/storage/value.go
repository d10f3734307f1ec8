package storage

import (
	"fmt"
	"strings"
)

// Tag distinguishes the forms a Value can take.
type Tag uint8

const (
	// TagIllegal is the zero Value.
	TagIllegal Tag = iota
	// TagRegister is a value in a machine register.
	TagRegister
	// TagStack is a value in a concrete stack slot.
	TagStack
	// TagVirtualStack is a value in a not yet allocated stack slot.
	TagVirtualStack
	// TagShadowed is a value resident in a register and a stack slot at once.
	TagShadowed
	// TagConst is an immediate.
	TagConst
)

func (t Tag) String() string {
	switch t {
	case TagRegister:
		return "register"
	case TagStack:
		return "stack"
	case TagVirtualStack:
		return "virtual-stack"
	case TagShadowed:
		return "shadowed"
	case TagConst:
		return "const"
	default:
		return "illegal"
	}
}

// Value is a physical (or still virtual) operand. Values are comparable;
// the constructors keep unused fields canonical so that == means identity.
//
// A Shadowed value keeps its register half in Reg and its stack half either
// in Slot (concrete) or VSlot (virtual, VSlot != NoVirtualSlot).
type Value struct {
	Tag   Tag
	Kind  Kind
	Reg   Register
	Slot  StackSlot
	VSlot VirtualSlotID
	Imm   int64
}

// IllegalValue returns the empty operand.
func IllegalValue() Value {
	return Value{Tag: TagIllegal, Reg: NoRegister, VSlot: NoVirtualSlot}
}

// Reg returns a register operand.
func Reg(r Register, kind Kind) Value {
	return Value{Tag: TagRegister, Kind: kind, Reg: r, VSlot: NoVirtualSlot}
}

// Stack returns a concrete stack operand.
func Stack(slot StackSlot, kind Kind) Value {
	return Value{Tag: TagStack, Kind: kind, Reg: NoRegister, Slot: slot, VSlot: NoVirtualSlot}
}

// FrameSlot is shorthand for a frame-size relative stack operand.
func FrameSlot(offset int32, kind Kind) Value {
	return Stack(StackSlot{Offset: offset, AddFrameSize: true}, kind)
}

// VStack returns a reference to a virtual stack slot.
func VStack(id VirtualSlotID, kind Kind) Value {
	return Value{Tag: TagVirtualStack, Kind: kind, Reg: NoRegister, VSlot: id}
}

// Shadow pairs a register with a stack half (Stack or VirtualStack).
// The result carries the kind of the stack half.
func Shadow(r Register, stack Value) Value {
	v := Value{Tag: TagShadowed, Kind: stack.Kind, Reg: r, VSlot: NoVirtualSlot}
	switch stack.Tag {
	case TagStack:
		v.Slot = stack.Slot
	case TagVirtualStack:
		v.VSlot = stack.VSlot
	default:
		return IllegalValue()
	}
	return v
}

// Const returns an immediate operand.
func Const(imm int64, kind Kind) Value {
	return Value{Tag: TagConst, Kind: kind, Reg: NoRegister, VSlot: NoVirtualSlot, Imm: imm}
}

// IsIllegal reports whether v is the empty operand.
func (v Value) IsIllegal() bool { return v.Tag == TagIllegal }

// IsRegister reports whether v is a plain register operand.
func (v Value) IsRegister() bool { return v.Tag == TagRegister }

// IsStack reports whether v is a concrete stack operand.
func (v Value) IsStack() bool { return v.Tag == TagStack }

// IsShadowed reports whether v is a register+stack pair.
func (v Value) IsShadowed() bool { return v.Tag == TagShadowed }

// IsConst reports whether v is an immediate.
func (v Value) IsConst() bool { return v.Tag == TagConst }

// IsVirtual reports whether v still references a virtual stack slot,
// directly or through the stack half of a shadow.
func (v Value) IsVirtual() bool {
	switch v.Tag {
	case TagVirtualStack:
		return true
	case TagShadowed:
		return v.VSlot != NoVirtualSlot
	}
	return false
}

// IsLocation reports whether v names storage that can be written.
func (v Value) IsLocation() bool {
	switch v.Tag {
	case TagRegister, TagStack, TagVirtualStack, TagShadowed:
		return true
	}
	return false
}

// RegHalf returns the register half of a shadowed value.
func (v Value) RegHalf() Value {
	if v.Tag != TagShadowed {
		return IllegalValue()
	}
	return Reg(v.Reg, v.Kind)
}

// StackHalf returns the stack half of a shadowed value.
func (v Value) StackHalf() Value {
	if v.Tag != TagShadowed {
		return IllegalValue()
	}
	if v.VSlot != NoVirtualSlot {
		return VStack(v.VSlot, v.Kind)
	}
	return Stack(v.Slot, v.Kind)
}

// WithKind returns v reinterpreted as kind.
func (v Value) WithKind(kind Kind) Value {
	v.Kind = kind
	return v
}

// SameLocation reports whether a and b name the same storage at the same
// address, ignoring kind. Shadowed values match only identical shadows.
func SameLocation(a, b Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case TagRegister:
		return a.Reg == b.Reg
	case TagStack:
		return a.Slot == b.Slot
	case TagVirtualStack:
		return a.VSlot == b.VSlot
	case TagShadowed:
		return a.Reg == b.Reg && a.Slot == b.Slot && a.VSlot == b.VSlot
	}
	return false
}

// Overlaps reports whether writing one of a and b may clobber the other.
// Registers overlap when they are the same register; concrete stack slots
// overlap when their byte ranges intersect within the same frame base.
// Slots on different bases are only comparable once the frame size is
// fixed, see OverlapsInFrame.
func Overlaps(a, b Value) bool {
	return overlaps(a, b, 0, false)
}

// OverlapsInFrame is Overlaps for a frame of frameSize bytes: frame-size
// relative and fixed stack slots are compared at their final offsets.
func OverlapsInFrame(a, b Value, frameSize int32) bool {
	return overlaps(a, b, frameSize, true)
}

// SameLocationInFrame is SameLocation for a frame of frameSize bytes.
func SameLocationInFrame(a, b Value, frameSize int32) bool {
	if a.Tag == TagStack && b.Tag == TagStack {
		return a.Slot.FrameOffset(frameSize) == b.Slot.FrameOffset(frameSize)
	}
	return SameLocation(a, b)
}

func overlaps(a, b Value, frameSize int32, fixed bool) bool {
	if a.Tag == TagShadowed {
		return overlaps(a.RegHalf(), b, frameSize, fixed) || overlaps(a.StackHalf(), b, frameSize, fixed)
	}
	if b.Tag == TagShadowed {
		return overlaps(a, b.RegHalf(), frameSize, fixed) || overlaps(a, b.StackHalf(), frameSize, fixed)
	}
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case TagRegister:
		return a.Reg == b.Reg
	case TagVirtualStack:
		return a.VSlot == b.VSlot
	case TagStack:
		aLo, bLo := a.Slot.Offset, b.Slot.Offset
		if fixed {
			aLo, bLo = a.Slot.FrameOffset(frameSize), b.Slot.FrameOffset(frameSize)
		} else if a.Slot.AddFrameSize != b.Slot.AddFrameSize {
			return false
		}
		aHi := aLo + int32(max(a.Kind.Size(), 1))
		bHi := bLo + int32(max(b.Kind.Size(), 1))
		return aLo < bHi && bLo < aHi
	}
	return false
}

// String renders v in the LIR text syntax, e.g. "r3:i64" or "r1|fs-8:ref".
func (v Value) String() string {
	var sb strings.Builder
	switch v.Tag {
	case TagRegister:
		sb.WriteString(v.Reg.String())
	case TagStack:
		sb.WriteString(v.Slot.String())
	case TagVirtualStack:
		fmt.Fprintf(&sb, "vs%d", v.VSlot)
	case TagShadowed:
		sb.WriteString(v.Reg.String())
		sb.WriteByte('|')
		if v.VSlot != NoVirtualSlot {
			fmt.Fprintf(&sb, "vs%d", v.VSlot)
		} else {
			sb.WriteString(v.Slot.String())
		}
	case TagConst:
		fmt.Fprintf(&sb, "$%d", v.Imm)
	default:
		return "-"
	}
	sb.WriteByte(':')
	sb.WriteString(v.Kind.String())
	return sb.String()
}
