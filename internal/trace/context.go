package trace

import (
	"context"
	"time"
)

type tracerKey struct{}

type scopeKey struct{}

// position is what a context knows about where in the trace it is.
type position struct {
	span uint64
	unit string
}

// WithTracer attaches t to ctx. A nil t detaches tracing.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, tracerKey{}, t)
}

// FromContext returns the tracer carried by ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx != nil {
		if t, ok := ctx.Value(tracerKey{}).(Tracer); ok {
			return t
		}
	}
	return Nop
}

func positionOf(ctx context.Context) position {
	if ctx != nil {
		if p, ok := ctx.Value(scopeKey{}).(position); ok {
			return p
		}
	}
	return position{}
}

// WithUnit marks every event started under ctx as belonging to unit.
func WithUnit(ctx context.Context, unit string) context.Context {
	p := positionOf(ctx)
	p.unit = unit
	return context.WithValue(ctx, scopeKey{}, p)
}

// UnitOf returns the unit ctx was marked with by WithUnit.
func UnitOf(ctx context.Context) string { return positionOf(ctx).unit }

// CurrentSpan returns the id of the innermost span started under ctx.
func CurrentSpan(ctx context.Context) uint64 { return positionOf(ctx).span }

// StartSpan begins a span under the one carried by ctx, tagged with the
// unit of ctx, and returns a context carrying the new span.
func StartSpan(ctx context.Context, scope Scope, name string) (context.Context, *Span) {
	p := positionOf(ctx)
	span := begin(FromContext(ctx), scope, p.unit, name, p.span)
	if span.ID() == 0 {
		return ctx, span
	}
	p.span = span.ID()
	return context.WithValue(ctx, scopeKey{}, p), span
}

// Point emits an instant event under the span and unit of ctx.
func Point(ctx context.Context, scope Scope, name, detail string) {
	t := FromContext(ctx)
	if !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	p := positionOf(ctx)
	t.Emit(&Event{
		Time:     time.Now(),
		Seq:      NextSeq(),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: p.span,
		Unit:     p.unit,
		Name:     name,
		Detail:   detail,
	})
}
