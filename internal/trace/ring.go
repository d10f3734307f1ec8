package trace

import (
	"io"
	"slices"
	"sync"
)

// RingTracer keeps the last events in memory so a failing run can show
// what the failing units were doing.
type RingTracer struct {
	mu     sync.Mutex
	events []Event
	stored uint64 // events ever kept; the slot of the next one is stored % cap
	level  Level
}

// NewRingTracer returns a ring holding capacity events (4096 when <= 0).
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{events: make([]Event, capacity), level: level}
}

// Emit stores a copy of ev, overwriting the oldest event when full.
func (t *RingTracer) Emit(ev *Event) {
	if !admit(t.level, ev) {
		return
	}
	cp := *ev
	if cp.Seq == 0 {
		cp.Seq = NextSeq()
	}
	t.mu.Lock()
	t.events[t.stored%uint64(len(t.events))] = cp
	t.stored++
	t.mu.Unlock()
}

// Snapshot returns the retained events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	size := uint64(len(t.events))
	n := min(t.stored, size)
	out := make([]Event, n)
	first := t.stored - n
	for i := range n {
		out[i] = t.events[(first+i)%size]
	}
	return out
}

// Dropped returns how many events were overwritten.
func (t *RingTracer) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stored - min(t.stored, uint64(len(t.events)))
}

// Dump writes every retained event.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	_, err := t.DumpUnits(w, format, nil)
	return err
}

// DumpUnits writes the retained events of the given units, oldest first,
// and returns how many it wrote. An empty units list writes everything.
func (t *RingTracer) DumpUnits(w io.Writer, format Format, units []string) (int, error) {
	written := 0
	for _, ev := range t.Snapshot() {
		if len(units) > 0 && !slices.Contains(units, ev.Unit) {
			continue
		}
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func (t *RingTracer) Flush() error { return nil }

func (t *RingTracer) Close() error { return nil }

func (t *RingTracer) Level() Level { return t.level }

func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
