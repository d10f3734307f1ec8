// Package frame lays out the spill area of one compilation unit's stack frame.
package frame

import (
	"fortio.org/safecast"

	"framekit/internal/diag"
	"framekit/internal/storage"
	"framekit/internal/target"
)

// Builder hands out concrete stack slots for one unit and fixes the final
// frame size.
type Builder interface {
	// AllocateSpillSlot reserves a slot sized and aligned for kind.
	AllocateSpillSlot(kind storage.Kind) (storage.StackSlot, error)
	// AllocateStackMemory reserves a raw region and returns its base.
	AllocateStackMemory(size, align int) (storage.StackSlot, error)
	// CurrentFrameSize is the size of the spill area so far.
	CurrentFrameSize() int32
	// Finish rounds the frame and freezes the layout.
	Finish() (int32, error)
}

// Rewinder is implemented by builders that can drop the allocations made
// after a Mark. Rewinding a finished builder is an error.
type Rewinder interface {
	Mark() Mark
	Rewind(Mark) error
}

// Mark is an opaque position in a builder's allocation history.
type Mark struct {
	entries int
	size    int32
}

// Entry records one allocation made through a Map.
type Entry struct {
	Slot  storage.StackSlot
	Size  int32
	Align int32

	// Kind is illegal for raw regions.
	Kind storage.Kind
}

// Map is the default Builder. The spill area grows downward from the frame
// top, so every slot is frame-size relative with a negative offset and later
// growth never moves an earlier slot.
type Map struct {
	name   string
	target *target.Target

	size      int32
	finished  bool
	frameSize int32
	entries   []Entry
}

var (
	_ Builder  = (*Map)(nil)
	_ Rewinder = (*Map)(nil)
)

// NewMap returns an empty frame for the unit called name.
func NewMap(name string, t *target.Target) *Map {
	return &Map{name: name, target: t}
}

// AllocateSpillSlot implements Builder.
func (m *Map) AllocateSpillSlot(kind storage.Kind) (storage.StackSlot, error) {
	if kind.IsIllegal() {
		return storage.StackSlot{}, diag.Errorf(diag.ErrFrameRequest, diag.At(m.name), "spill slot of illegal kind")
	}
	slot, err := m.allocate(kind.Size(), kind.Align())
	if err != nil {
		return storage.StackSlot{}, err
	}
	m.entries[len(m.entries)-1].Kind = kind
	return slot, nil
}

// AllocateStackMemory implements Builder.
func (m *Map) AllocateStackMemory(size, align int) (storage.StackSlot, error) {
	return m.allocate(size, align)
}

func (m *Map) allocate(size, align int) (storage.StackSlot, error) {
	loc := diag.At(m.name)
	if m.finished {
		return storage.StackSlot{}, diag.Errorf(diag.ErrFrameFinished, loc, "allocation after the frame was finalized")
	}
	if size <= 0 {
		return storage.StackSlot{}, diag.Errorf(diag.ErrFrameRequest, loc, "region size %d must be positive", size)
	}
	if align <= 0 || align&(align-1) != 0 {
		return storage.StackSlot{}, diag.Errorf(diag.ErrFrameRequest, loc, "alignment %d is not a power of two", align)
	}
	if limit := m.stackAlign(); align > limit {
		return storage.StackSlot{}, diag.Errorf(diag.ErrFrameRequest, loc, "alignment %d exceeds stack alignment %d", align, limit)
	}
	sz, err := safecast.Conv[int32](size)
	if err != nil {
		return storage.StackSlot{}, diag.Errorf(diag.ErrFrameRequest, loc, "region size %d: %v", size, err)
	}
	al, err := safecast.Conv[int32](align)
	if err != nil {
		return storage.StackSlot{}, diag.Errorf(diag.ErrFrameRequest, loc, "alignment %d: %v", align, err)
	}
	grown, err := safecast.Conv[int32](roundUp(int64(m.size)+int64(sz), int64(al)))
	if err != nil {
		return storage.StackSlot{}, diag.Errorf(diag.ErrFrameRequest, loc, "frame overflow: %v", err)
	}
	m.size = grown
	slot := storage.StackSlot{Offset: -grown, AddFrameSize: true}
	m.entries = append(m.entries, Entry{Slot: slot, Size: sz, Align: al})
	return slot, nil
}

// Mark implements Rewinder.
func (m *Map) Mark() Mark {
	return Mark{entries: len(m.entries), size: m.size}
}

// Rewind implements Rewinder.
func (m *Map) Rewind(mk Mark) error {
	if mk == m.Mark() {
		return nil
	}
	if m.finished {
		return diag.Errorf(diag.ErrFrameFinished, diag.At(m.name), "rewind after the frame was finalized")
	}
	if mk.entries > len(m.entries) || mk.size > m.size {
		return diag.Errorf(diag.ErrFrameRequest, diag.At(m.name), "rewind to a mark from another frame")
	}
	m.entries = m.entries[:mk.entries]
	m.size = mk.size
	return nil
}

// CurrentFrameSize implements Builder.
func (m *Map) CurrentFrameSize() int32 {
	if m.finished {
		return m.frameSize
	}
	return m.size
}

// Finish implements Builder. The frame is rounded up to the target's stack
// alignment. Calling Finish again returns the same size.
func (m *Map) Finish() (int32, error) {
	if m.finished {
		return m.frameSize, nil
	}
	n, err := safecast.Conv[int32](roundUp(int64(m.size), int64(m.stackAlign())))
	if err != nil {
		return 0, diag.Errorf(diag.ErrFrameRequest, diag.At(m.name), "frame overflow: %v", err)
	}
	m.frameSize = n
	m.finished = true
	return n, nil
}

// Finished reports whether Finish has been called.
func (m *Map) Finished() bool { return m.finished }

// Entries returns the allocations in request order.
func (m *Map) Entries() []Entry { return m.entries }

func (m *Map) stackAlign() int {
	if m.target == nil || m.target.StackAlign <= 0 {
		return 16
	}
	return m.target.StackAlign
}

func roundUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}
