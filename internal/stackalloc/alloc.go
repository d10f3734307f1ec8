package stackalloc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"framekit/internal/diag"
	"framekit/internal/frame"
	"framekit/internal/lir"
	"framekit/internal/observ"
	"framekit/internal/storage"
	"framekit/internal/trace"
)

// Options configures one Allocate call.
type Options struct {
	// Counters receives statistics; nil disables counting.
	Counters *observ.Counters
}

// Result is the id -> concrete slot table of one unit.
type Result struct {
	Slots    []storage.StackSlot
	Kinds    []storage.Kind
	Variants []storage.SlotVariant

	FrameSize int32
}

// Lookup returns the concrete slot assigned to id and the kind reads and
// writes through it use. Range slots report an illegal kind.
func (r *Result) Lookup(id storage.VirtualSlotID) (storage.StackSlot, storage.Kind, bool) {
	if r == nil || id < 0 || int(id) >= len(r.Slots) {
		return storage.StackSlot{}, storage.Illegal, false
	}
	return r.Slots[id], r.Kinds[id], true
}

// Concrete replaces a virtual stack reference (or the virtual stack half of
// a shadow) by its assigned slot. Other values are returned unchanged.
func (r *Result) Concrete(v storage.Value) (storage.Value, error) {
	if !v.IsVirtual() {
		return v, nil
	}
	slot, kind, ok := r.Lookup(v.VSlot)
	if !ok {
		return v, diag.Errorf(diag.ErrSlotOutOfRange, diag.NoLocation.ForSlot(int32(v.VSlot)),
			"no concrete slot for virtual slot").WithValues(v)
	}
	if kind.IsIllegal() {
		kind = v.Kind
	}
	stack := storage.Stack(slot, kind)
	if v.IsShadowed() {
		return storage.Shadow(v.Reg, stack), nil
	}
	return stack, nil
}

// WriteLayout prints one line per slot: "vs1 alias -> fs-8 i32".
func (r *Result) WriteLayout(w io.Writer) error {
	if r == nil {
		return nil
	}
	for i := range r.Slots {
		line := "vs" + strconv.Itoa(i) + " " + r.Variants[i].String() + " -> " + r.Slots[i].String()
		if !r.Kinds[i].IsIllegal() {
			line += " " + r.Kinds[i].String()
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "frame %d\n", r.FrameSize)
	return err
}

// Allocate assigns a concrete slot to every virtual slot of f, rewrites every
// operand, finalizes the frame and stores its size in f.FrameSize. On error f
// is left untouched and a builder implementing frame.Rewinder is rewound to
// where it was; any other builder keeps its partial allocations and must not
// be reused.
func Allocate(ctx context.Context, f *lir.Func, fb frame.Builder, opts Options) (res *Result, err error) {
	if f == nil {
		return nil, fmt.Errorf("stackalloc: nil function")
	}
	if fb == nil {
		return nil, fmt.Errorf("stackalloc: %s: nil frame builder", f.Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := trace.StartSpan(ctx, trace.ScopePass, "alloc:"+f.Name)
	defer func() { span.EndErr(err) }()

	if rw, ok := fb.(frame.Rewinder); ok {
		mark := rw.Mark()
		defer func() {
			if err == nil {
				return
			}
			if rerr := rw.Rewind(mark); rerr != nil {
				err = errors.Join(err, rerr)
			}
		}()
	}

	counters := opts.Counters
	if counters == nil {
		counters = &observ.Counters{}
	}

	res, err = assign(ctx, f, fb, counters)
	if err != nil {
		return nil, err
	}
	blocks, rewritten, err := rewrite(ctx, f, res)
	if err != nil {
		return nil, err
	}
	size, err := fb.Finish()
	if err != nil {
		return nil, err
	}
	res.FrameSize = size

	f.Blocks = blocks
	f.FrameSize = size
	counters.OperandsRewritten += rewritten
	span.WithCount("slots", len(res.Slots)).WithCount("operands", rewritten)
	return res, nil
}

// assign fills the slot table. Simple and Range slots are requested from fb
// in id order; aliases are bound afterwards so that an alias may name a
// target with a higher id.
func assign(ctx context.Context, f *lir.Func, fb frame.Builder, counters *observ.Counters) (*Result, error) {
	_, span := trace.StartSpan(ctx, trace.ScopeUnit, "assign")
	defer span.End("")

	n := len(f.Slots)
	res := &Result{
		Slots:    make([]storage.StackSlot, n),
		Kinds:    make([]storage.Kind, n),
		Variants: make([]storage.SlotVariant, n),
	}
	var aliases []int
	for i, s := range f.Slots {
		loc := diag.At(f.Name).ForSlot(int32(i))
		if int(s.ID) != i {
			return nil, diag.Errorf(diag.ErrSlotOutOfRange, loc, "slot at index %d has id vs%d", i, s.ID)
		}
		res.Variants[i] = s.Variant
		switch s.Variant {
		case storage.SlotSimple:
			slot, err := fb.AllocateSpillSlot(s.Kind)
			if err != nil {
				return nil, fmt.Errorf("vs%d: %w", i, err)
			}
			res.Slots[i], res.Kinds[i] = slot, s.Kind
			counters.SlotsAllocated++
		case storage.SlotRange:
			slot, err := fb.AllocateStackMemory(s.Size, s.Align)
			if err != nil {
				return nil, fmt.Errorf("vs%d: %w", i, err)
			}
			res.Slots[i], res.Kinds[i] = slot, storage.Illegal
			counters.RangesAllocated++
		case storage.SlotAlias:
			aliases = append(aliases, i)
		default:
			return nil, diag.Errorf(diag.ErrUnknownSlotVariant, loc, "slot has unknown variant %d", uint8(s.Variant))
		}
	}

	for _, i := range aliases {
		s := f.Slots[i]
		loc := diag.At(f.Name).ForSlot(int32(i))
		target, ok := f.Slot(s.Target)
		if !ok {
			return nil, diag.Errorf(diag.ErrSlotOutOfRange, loc, "alias target vs%d does not exist", s.Target)
		}
		if target.Variant != storage.SlotSimple {
			return nil, diag.Errorf(diag.ErrAliasTarget, loc, "alias target vs%d is %s, want simple", s.Target, target.Variant)
		}
		res.Slots[i], res.Kinds[i] = res.Slots[s.Target], s.Kind
		counters.AliasesResolved++
	}
	span.WithCount("slots", n)
	return res, nil
}

// rewrite maps every operand of every instruction in block then instruction
// order and returns the new block list. f itself is not modified.
func rewrite(ctx context.Context, f *lir.Func, res *Result) ([]lir.Block, int, error) {
	_, span := trace.StartSpan(ctx, trace.ScopeUnit, "rewrite")
	defer span.End("")

	rewritten := 0
	blocks := make([]lir.Block, len(f.Blocks))
	for bi := range f.Blocks {
		src := &f.Blocks[bi]
		dst := &blocks[bi]
		dst.ID = src.ID
		dst.Preds = src.Preds
		dst.Succs = src.Succs
		dst.Instrs = make([]lir.Instr, len(src.Instrs))
		for ii := range src.Instrs {
			loc := diag.At(f.Name).InBlock(int32(bi)).AtInstr(int32(ii))
			ins, err := src.Instrs[ii].MapOperands(func(v storage.Value, mode lir.OperandMode) (storage.Value, error) {
				if !v.IsVirtual() {
					return v, nil
				}
				slotLoc := loc.ForSlot(int32(v.VSlot))
				if v.VSlot < 0 || int(v.VSlot) >= len(res.Variants) {
					return v, diag.Errorf(diag.ErrSlotOutOfRange, slotLoc,
						"%s operand references unknown slot", mode).WithValues(v)
				}
				if res.Variants[v.VSlot] == storage.SlotAlias && (mode == lir.ModeDef || mode == lir.ModeTemp) {
					return v, diag.Errorf(diag.ErrAliasDefinition, slotLoc,
						"alias slot used as %s operand", mode).WithValues(v)
				}
				nv, err := res.Concrete(v)
				if err != nil {
					return v, err
				}
				rewritten++
				return nv, nil
			})
			if err != nil {
				return nil, 0, err
			}
			dst.Instrs[ii] = ins
		}
	}
	span.WithCount("operands", rewritten)
	return blocks, rewritten, nil
}
