package storage

import "fmt"

// Register is a machine register numbered densely from 0 for each target.
type Register int16

// NoRegister marks the absence of a register.
const NoRegister Register = -1

func (r Register) String() string {
	if r == NoRegister {
		return "r?"
	}
	return fmt.Sprintf("r%d", r)
}

// StackSlot is a resolved frame location. When AddFrameSize is set the
// offset is relative to the end of the frame and the final frame size must
// be added to it; this lets the frame grow without moving earlier slots.
type StackSlot struct {
	Offset       int32
	AddFrameSize bool
}

// FrameOffset returns the offset from the frame pointer once the frame size is known.
func (s StackSlot) FrameOffset(frameSize int32) int32 {
	if s.AddFrameSize {
		return frameSize + s.Offset
	}
	return s.Offset
}

func (s StackSlot) String() string {
	if s.AddFrameSize {
		return fmt.Sprintf("fs%+d", s.Offset)
	}
	return fmt.Sprintf("sp%+d", s.Offset)
}

// VirtualSlotID is the dense index of a virtual stack slot within one compilation.
type VirtualSlotID int32

// NoVirtualSlot marks the absence of a virtual slot.
const NoVirtualSlot VirtualSlotID = -1

// SlotVariant distinguishes virtual stack slot forms.
type SlotVariant uint8

const (
	// SlotSimple holds one value of the slot's kind.
	SlotSimple SlotVariant = iota + 1
	// SlotAlias shares the location of a Simple slot under another kind.
	SlotAlias
	// SlotRange is a raw byte region of explicit size and alignment.
	SlotRange
)

func (v SlotVariant) String() string {
	switch v {
	case SlotSimple:
		return "simple"
	case SlotAlias:
		return "alias"
	case SlotRange:
		return "range"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

// ParseSlotVariant converts a variant name to a SlotVariant.
func ParseSlotVariant(s string) (SlotVariant, error) {
	switch s {
	case "simple":
		return SlotSimple, nil
	case "alias":
		return SlotAlias, nil
	case "range":
		return SlotRange, nil
	default:
		return 0, fmt.Errorf("invalid slot variant: %q (expected: simple|alias|range)", s)
	}
}

// VirtualSlot is an unallocated frame storage request.
type VirtualSlot struct {
	ID      VirtualSlotID
	Variant SlotVariant

	// Simple and Alias.
	Kind Kind

	// Alias only.
	Target VirtualSlotID

	// Range only.
	Size  int
	Align int
}

// NewSimpleSlot returns a Simple slot request.
func NewSimpleSlot(id VirtualSlotID, kind Kind) VirtualSlot {
	return VirtualSlot{ID: id, Variant: SlotSimple, Kind: kind, Target: NoVirtualSlot}
}

// NewAliasSlot returns an Alias of target read and written as kind.
func NewAliasSlot(id, target VirtualSlotID, kind Kind) VirtualSlot {
	return VirtualSlot{ID: id, Variant: SlotAlias, Kind: kind, Target: target}
}

// NewRangeSlot returns a Range slot of size bytes aligned to align.
func NewRangeSlot(id VirtualSlotID, size, align int) VirtualSlot {
	return VirtualSlot{ID: id, Variant: SlotRange, Target: NoVirtualSlot, Size: size, Align: align}
}

func (s VirtualSlot) String() string {
	switch s.Variant {
	case SlotSimple:
		return fmt.Sprintf("vs%d simple %s", s.ID, s.Kind)
	case SlotAlias:
		return fmt.Sprintf("vs%d alias vs%d %s", s.ID, s.Target, s.Kind)
	case SlotRange:
		return fmt.Sprintf("vs%d range size=%d align=%d", s.ID, s.Size, s.Align)
	default:
		return fmt.Sprintf("vs%d %s", s.ID, s.Variant)
	}
}

// SlotTable hands out virtual slots with consecutive ids.
type SlotTable struct {
	slots []VirtualSlot
}

// NewSimple appends a Simple slot and returns its id.
func (t *SlotTable) NewSimple(kind Kind) VirtualSlotID {
	id := t.nextID()
	t.slots = append(t.slots, NewSimpleSlot(id, kind))
	return id
}

// NewAlias appends an Alias slot and returns its id.
func (t *SlotTable) NewAlias(target VirtualSlotID, kind Kind) VirtualSlotID {
	id := t.nextID()
	t.slots = append(t.slots, NewAliasSlot(id, target, kind))
	return id
}

// NewRange appends a Range slot and returns its id.
func (t *SlotTable) NewRange(size, align int) VirtualSlotID {
	id := t.nextID()
	t.slots = append(t.slots, NewRangeSlot(id, size, align))
	return id
}

// Slots returns the table in id order.
func (t *SlotTable) Slots() []VirtualSlot {
	if t == nil {
		return nil
	}
	return t.slots
}

func (t *SlotTable) nextID() VirtualSlotID {
	return VirtualSlotID(len(t.slots))
}
