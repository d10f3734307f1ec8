package moves

import (
	"fmt"
	"strings"

	"framekit/internal/diag"
	"framekit/internal/lir"
	"framekit/internal/storage"
	"framekit/internal/target"
)

// SlotTable resolves values that still reference virtual stack slots.
type SlotTable interface {
	Concrete(v storage.Value) (storage.Value, error)
}

// Mapping is one pending copy. After expansion neither side is shadowed.
type Mapping struct {
	Src storage.Value
	Dst storage.Value
}

func (m Mapping) String() string {
	return m.Dst.String() + " <- " + m.Src.String()
}

// Stats counts what a Resolver did since it was created.
type Stats struct {
	Emitted      int
	Elided       int
	CyclesBroken int
}

// Resolver orders the copies of one edge. It keeps no state across edges
// other than Stats; call Reset before starting the next edge.
type Resolver struct {
	target *target.Target
	slots  SlotTable
	loc    diag.Location

	// frameSize places frame-size relative and fixed stack slots in one
	// address space once frameFixed is set.
	frameSize  int32
	frameFixed bool

	pending []Mapping
	Stats   Stats
}

// NewResolver returns a resolver for t. slots may be nil when every value
// is already concrete.
func NewResolver(t *target.Target, slots SlotTable) *Resolver {
	return &Resolver{target: t, slots: slots, loc: diag.NoLocation}
}

// SetFrameSize fixes the frame size the copies run in. From then on fs-N and
// sp+M slots are compared by their final offsets, so two spellings of the
// same bytes are seen as one location. It survives Reset.
func (r *Resolver) SetFrameSize(size int32) {
	r.frameSize = size
	r.frameFixed = true
}

func (r *Resolver) overlaps(a, b storage.Value) bool {
	if r.frameFixed {
		return storage.OverlapsInFrame(a, b, r.frameSize)
	}
	return storage.Overlaps(a, b)
}

func (r *Resolver) sameLocation(a, b storage.Value) bool {
	if r.frameFixed {
		return storage.SameLocationInFrame(a, b, r.frameSize)
	}
	return storage.SameLocation(a, b)
}

// Reset drops all pending mappings and sets the location errors refer to.
func (r *Resolver) Reset(loc diag.Location) {
	r.pending = r.pending[:0]
	r.loc = loc
}

// Len returns the number of pending mappings after expansion and elision.
func (r *Resolver) Len() int { return len(r.pending) }

// Mappings returns a copy of the pending mappings in insertion order.
func (r *Resolver) Mappings() []Mapping {
	out := make([]Mapping, len(r.pending))
	copy(out, r.pending)
	return out
}

// AddMapping records that dst must receive the value of src at the end of
// the edge. A shadowed destination becomes two mappings, one per half; a
// shadowed source is read through its register half unless the destination
// is its own stack half.
func (r *Resolver) AddMapping(src, dst storage.Value) error {
	src, err := r.concrete(src, "source")
	if err != nil {
		return err
	}
	dst, err = r.concrete(dst, "destination")
	if err != nil {
		return err
	}
	switch src.Tag {
	case storage.TagRegister, storage.TagStack, storage.TagShadowed, storage.TagConst:
	default:
		return diag.Errorf(diag.ErrBadMoveOperand, r.loc, "cannot copy from %s value", src.Tag).WithValues(src, dst)
	}
	switch dst.Tag {
	case storage.TagRegister, storage.TagStack:
		r.add(src, dst)
	case storage.TagShadowed:
		r.add(src, dst.RegHalf())
		r.add(src, dst.StackHalf())
	default:
		return diag.Errorf(diag.ErrBadMoveOperand, r.loc, "cannot copy into %s value", dst.Tag).WithValues(src, dst)
	}
	return nil
}

func (r *Resolver) concrete(v storage.Value, role string) (storage.Value, error) {
	if !v.IsVirtual() {
		return v, nil
	}
	if r.slots == nil {
		return v, diag.Errorf(diag.ErrBadMoveOperand, r.loc, "%s is still virtual", role).WithValues(v)
	}
	return r.slots.Concrete(v)
}

// add records one plain mapping; dst is a register or a stack slot.
func (r *Resolver) add(src, dst storage.Value) {
	if src.IsShadowed() {
		if dst.IsStack() && r.sameLocation(src.StackHalf(), dst) {
			src = src.StackHalf()
		} else {
			src = src.RegHalf()
		}
	}
	if r.sameLocation(src, dst) && src.Kind.Platform == dst.Kind.Platform {
		r.Stats.Elided++
		return
	}
	r.pending = append(r.pending, Mapping{Src: src, Dst: dst})
}

// Resolve returns the copies realizing every pending mapping in an order
// where no copy overwrites a location a later copy reads. The pending set is
// consumed.
func (r *Resolver) Resolve() ([]lir.Instr, error) {
	if err := r.checkDestinations(); err != nil {
		return nil, err
	}
	pending := r.Mappings()
	r.pending = r.pending[:0]
	out := make([]lir.Instr, 0, len(pending)+1)

	for len(pending) > 0 {
		progress := false
		for i := 0; i < len(pending); {
			if r.isRead(pending, i) {
				i++
				continue
			}
			out = append(out, lir.NewMove(pending[i].Dst, pending[i].Src))
			pending = append(pending[:i], pending[i+1:]...)
			progress = true
		}
		if progress {
			continue
		}
		save, err := r.breakCycle(pending)
		if err != nil {
			return nil, err
		}
		out = append(out, save)
	}
	r.Stats.Emitted += len(out)
	return out, nil
}

// checkDestinations rejects edges writing one location twice.
func (r *Resolver) checkDestinations() error {
	for i := range r.pending {
		for j := i + 1; j < len(r.pending); j++ {
			if r.overlaps(r.pending[i].Dst, r.pending[j].Dst) {
				return diag.Errorf(diag.ErrDuplicateDestination, r.loc,
					"destination written twice").WithValues(r.pending[i].Dst, r.pending[j].Dst)
			}
		}
	}
	return nil
}

// isRead reports whether another pending mapping still reads a location
// pending[i] writes.
func (r *Resolver) isRead(pending []Mapping, i int) bool {
	for j := range pending {
		if j != i && r.overlaps(pending[j].Src, pending[i].Dst) {
			return true
		}
	}
	return false
}

// breakCycle saves the location read by the first blocked mapping into the
// scratch register and redirects every reader of that location to it.
func (r *Resolver) breakCycle(pending []Mapping) (lir.Instr, error) {
	blocked := pending[0]
	var held storage.Value
	for j := 1; j < len(pending); j++ {
		if r.overlaps(pending[j].Src, blocked.Dst) {
			held = pending[j].Src
			break
		}
	}
	if held.IsIllegal() {
		return lir.Instr{}, diag.Errorf(diag.ErrUnresolvedCycle, r.loc, "no progress on %s", blocked)
	}

	kind := held.Kind
	for _, m := range pending {
		if r.sameLocation(m.Src, held) && m.Src.Kind.Size() > kind.Size() {
			kind = m.Src.Kind
		}
	}
	scratch, ok := r.target.ScratchFor(kind)
	if !ok {
		return lir.Instr{}, diag.Errorf(diag.ErrNoScratch, r.loc,
			"no scratch register for %s to break cycle", target.ClassOf(kind)).WithValues(held)
	}
	tmp := storage.Reg(scratch, kind)
	for _, m := range pending {
		if r.overlaps(m.Src, tmp) || r.overlaps(m.Dst, tmp) {
			return lir.Instr{}, diag.Errorf(diag.ErrUnresolvedCycle, r.loc,
				"scratch register %s is busy while breaking cycle: %s", tmp, describe(pending)).WithValues(held)
		}
	}

	for i := range pending {
		if r.sameLocation(pending[i].Src, held) {
			pending[i].Src = storage.Reg(scratch, pending[i].Src.Kind)
		}
	}
	r.Stats.CyclesBroken++
	return lir.NewMove(tmp, held.WithKind(kind)), nil
}

func describe(pending []Mapping) string {
	parts := make([]string, len(pending))
	for i, m := range pending {
		parts[i] = m.String()
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, "; "))
}
