package trace

import "errors"

// MultiTracer feeds one event stream to several tracers, as when a run
// streams its trace and also keeps a ring for the failure dump. Its level is
// the most verbose of its tracers; each tracer still filters for itself.
type MultiTracer struct {
	tracers []Tracer
	level   Level
}

func NewMultiTracer(tracers ...Tracer) *MultiTracer {
	t := &MultiTracer{}
	for _, tr := range tracers {
		if tr == nil || !tr.Enabled() {
			continue
		}
		t.tracers = append(t.tracers, tr)
		t.level = max(t.level, tr.Level())
	}
	return t
}

// Emit hands each tracer its own copy; tracers may stamp the event.
func (t *MultiTracer) Emit(ev *Event) {
	for _, tr := range t.tracers {
		cp := *ev
		tr.Emit(&cp)
	}
}

// Ring returns the ring kept for the failure dump, or nil.
func (t *MultiTracer) Ring() *RingTracer {
	for _, tr := range t.tracers {
		if r, ok := tr.(*RingTracer); ok {
			return r
		}
	}
	return nil
}

func (t *MultiTracer) Flush() error { return t.each(Tracer.Flush) }
func (t *MultiTracer) Close() error { return t.each(Tracer.Close) }
func (t *MultiTracer) Level() Level { return t.level }
func (t *MultiTracer) Enabled() bool { return len(t.tracers) > 0 }

func (t *MultiTracer) each(fn func(Tracer) error) error {
	var errs []error
	for _, tr := range t.tracers {
		if err := fn(tr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
