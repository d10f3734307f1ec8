package frame

import (
	"errors"
	"testing"

	"framekit/internal/diag"
	"framekit/internal/storage"
	"framekit/internal/target"
)

func TestMap_SpillSlotsGrowDownward(t *testing.T) {
	m := NewMap("f", target.AMD64())
	tests := []struct {
		kind storage.Kind
		want int32
	}{
		{storage.I64, -8},
		{storage.I8, -9},
		{storage.I32, -16},
		{storage.F64, -24},
		{storage.I16, -26},
	}
	for _, tt := range tests {
		slot, err := m.AllocateSpillSlot(tt.kind)
		if err != nil {
			t.Fatalf("AllocateSpillSlot(%s): %v", tt.kind, err)
		}
		if !slot.AddFrameSize || slot.Offset != tt.want {
			t.Errorf("AllocateSpillSlot(%s) = %s, want fs%d", tt.kind, slot, tt.want)
		}
	}
	if got := m.CurrentFrameSize(); got != 26 {
		t.Errorf("CurrentFrameSize = %d, want 26", got)
	}
	size, err := m.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if size != 32 {
		t.Errorf("Finish = %d, want 32", size)
	}
	if got := (storage.StackSlot{Offset: -8, AddFrameSize: true}).FrameOffset(size); got != 24 {
		t.Errorf("first slot frame offset = %d, want 24", got)
	}
	if len(m.Entries()) != len(tests) {
		t.Errorf("entries = %d, want %d", len(m.Entries()), len(tests))
	}
}

func TestMap_StackMemoryAlignment(t *testing.T) {
	m := NewMap("f", target.AMD64())
	if _, err := m.AllocateSpillSlot(storage.I32); err != nil {
		t.Fatal(err)
	}
	slot, err := m.AllocateStackMemory(20, 16)
	if err != nil {
		t.Fatal(err)
	}
	if slot.Offset != -32 {
		t.Errorf("region base = %s, want fs-32", slot)
	}
	if e := m.Entries()[1]; e.Size != 20 || e.Align != 16 || !e.Kind.IsIllegal() {
		t.Errorf("entry = %+v", e)
	}
}

func TestMap_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		run  func(*Map) error
	}{
		{"illegal_kind", func(m *Map) error { _, err := m.AllocateSpillSlot(storage.Illegal); return err }},
		{"zero_size", func(m *Map) error { _, err := m.AllocateStackMemory(0, 8); return err }},
		{"odd_align", func(m *Map) error { _, err := m.AllocateStackMemory(8, 3); return err }},
		{"over_align", func(m *Map) error { _, err := m.AllocateStackMemory(8, 64); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(NewMap("f", target.AMD64()))
			if !errors.Is(err, diag.ErrFrameRequest) {
				t.Fatalf("err = %v, want ErrFrameRequest", err)
			}
		})
	}
}

func TestMap_FinishFreezes(t *testing.T) {
	m := NewMap("f", target.AMD64())
	size, err := m.Finish()
	if err != nil || size != 0 {
		t.Fatalf("Finish on empty frame = %d, %v", size, err)
	}
	if _, err := m.AllocateSpillSlot(storage.I64); !errors.Is(err, diag.ErrFrameFinished) {
		t.Fatalf("err = %v, want ErrFrameFinished", err)
	}
	again, err := m.Finish()
	if err != nil || again != size {
		t.Fatalf("second Finish = %d, %v", again, err)
	}
	if !m.Finished() {
		t.Error("Finished() = false")
	}
}

func TestMap_Rewind(t *testing.T) {
	m := NewMap("f", target.AMD64())
	first, err := m.AllocateSpillSlot(storage.I64)
	if err != nil {
		t.Fatal(err)
	}
	mark := m.Mark()
	if _, err := m.AllocateStackMemory(32, 16); err != nil {
		t.Fatal(err)
	}
	if err := m.Rewind(mark); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	if m.CurrentFrameSize() != 8 || len(m.Entries()) != 1 || m.Entries()[0].Slot != first {
		t.Fatalf("after rewind: size %d, entries %v", m.CurrentFrameSize(), m.Entries())
	}
	next, err := m.AllocateSpillSlot(storage.I64)
	if err != nil || next.Offset != -16 {
		t.Fatalf("slot after rewind = %v, %v, want fs-16", next, err)
	}

	if _, err := m.Finish(); err != nil {
		t.Fatal(err)
	}
	if err := m.Rewind(m.Mark()); err != nil {
		t.Errorf("empty rewind of a finished frame: %v", err)
	}
	if err := m.Rewind(mark); !errors.Is(err, diag.ErrFrameFinished) {
		t.Errorf("err = %v, want ErrFrameFinished", err)
	}
}
