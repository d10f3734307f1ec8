// Package testkit holds invariant checks shared by tests and fuzz harnesses.
package testkit

import (
	"errors"
	"fmt"

	"fortio.org/safecast"

	"framekit/internal/lir"
	"framekit/internal/stackalloc"
	"framekit/internal/storage"
)

type region struct {
	id     int
	lo, hi int32
}

// CheckFrameInvariants verifies an allocation result against its unit:
//  1. every slot is frame-size relative and lies inside the frame
//  2. simple and range slots honor their alignment and never overlap
//  3. an alias shares its target's offset and carries its own kind
//  4. the frame size is a multiple of stackAlign and was stored on f
func CheckFrameInvariants(f *lir.Func, res *stackalloc.Result, stackAlign int) error {
	if f == nil || res == nil {
		return fmt.Errorf("nil unit or result")
	}
	if len(res.Slots) != len(f.Slots) {
		return fmt.Errorf("%d slots assigned for %d virtual slots", len(res.Slots), len(f.Slots))
	}
	if f.FrameSize != res.FrameSize {
		return fmt.Errorf("unit frame size %d, result %d", f.FrameSize, res.FrameSize)
	}
	align32, err := safecast.Conv[int32](stackAlign)
	if err != nil || align32 <= 0 {
		return fmt.Errorf("bad stack alignment %d", stackAlign)
	}
	if res.FrameSize%align32 != 0 {
		return fmt.Errorf("frame size %d not aligned to %d", res.FrameSize, stackAlign)
	}

	var regions []region
	for i, vs := range f.Slots {
		slot := res.Slots[i]
		if !slot.AddFrameSize || slot.Offset >= 0 {
			return fmt.Errorf("vs%d: %s is not inside the spill area", i, slot)
		}
		var size, align int
		switch vs.Variant {
		case storage.SlotSimple:
			size, align = vs.Kind.Size(), vs.Kind.Align()
			if res.Kinds[i] != vs.Kind {
				return fmt.Errorf("vs%d: kind %s, want %s", i, res.Kinds[i], vs.Kind)
			}
		case storage.SlotRange:
			size, align = vs.Size, vs.Align
		case storage.SlotAlias:
			if res.Slots[vs.Target] != slot {
				return fmt.Errorf("vs%d: alias at %s, target vs%d at %s", i, slot, vs.Target, res.Slots[vs.Target])
			}
			if res.Kinds[i] != vs.Kind {
				return fmt.Errorf("vs%d: alias kind %s, want %s", i, res.Kinds[i], vs.Kind)
			}
			continue
		default:
			return fmt.Errorf("vs%d: unexpected variant %s", i, vs.Variant)
		}
		size32, err := safecast.Conv[int32](size)
		if err != nil {
			return fmt.Errorf("vs%d: size overflow: %w", i, err)
		}
		alignOff, err := safecast.Conv[int32](max(align, 1))
		if err != nil {
			return fmt.Errorf("vs%d: align overflow: %w", i, err)
		}
		if slot.Offset%alignOff != 0 {
			return fmt.Errorf("vs%d: offset %d not aligned to %d", i, slot.Offset, align)
		}
		r := region{id: i, lo: slot.Offset, hi: slot.Offset + size32}
		if r.lo < -res.FrameSize || r.hi > 0 {
			return fmt.Errorf("vs%d: [%d,%d) outside frame of %d bytes", i, r.lo, r.hi, res.FrameSize)
		}
		for _, other := range regions {
			if r.lo < other.hi && other.lo < r.hi {
				return fmt.Errorf("vs%d overlaps vs%d", i, other.id)
			}
		}
		regions = append(regions, r)
	}
	return nil
}

// CheckResolved verifies a unit after move resolution: structurally valid,
// fully concrete and without phi bindings.
func CheckResolved(f *lir.Func) error {
	return errors.Join(lir.Validate(f), lir.CheckConcrete(f), lir.CheckPhisRemoved(f))
}
