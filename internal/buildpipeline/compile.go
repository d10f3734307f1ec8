package buildpipeline

import (
	"context"
	"fmt"
	"time"

	"framekit/internal/frame"
	"framekit/internal/lir"
	"framekit/internal/moves"
	"framekit/internal/observ"
	"framekit/internal/stackalloc"
	"framekit/internal/target"
	"framekit/internal/trace"
)

// Options configures the per-unit pipeline.
type Options struct {
	Target *target.Target

	// VerifyPhis checks phi kinds before allocation.
	VerifyPhis bool
	// VerifyOutput checks that no virtual operand and no phi state remain.
	VerifyOutput bool

	Progress ProgressSink
}

// UnitResult captures the outcome of one unit. Func is the input unit,
// rewritten in place when Err is nil.
type UnitResult struct {
	Name     string
	Source   string
	Func     *lir.Func
	Layout   *stackalloc.Result
	Edges    []moves.Edge
	Counters observ.Counters
	Timings  Timings
	Timer    *observ.Timer
	Cached   bool
	Err      error
}

// CompileUnit runs verify, alloc, resolve and emit over f. The unit is
// owned by the caller for the duration of the call.
func CompileUnit(ctx context.Context, f *lir.Func, opts Options) (*UnitResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if f == nil {
		return nil, fmt.Errorf("missing unit")
	}
	if opts.Target == nil {
		return nil, fmt.Errorf("%s: missing target", f.Name)
	}
	res := &UnitResult{Name: f.Name, Func: f, Timer: observ.NewTimer()}
	if trace.UnitOf(ctx) != f.Name {
		ctx = trace.WithUnit(ctx, f.Name)
	}
	ctx, span := trace.StartSpan(ctx, trace.ScopeUnit, "unit:"+f.Name)

	err := runStages(ctx, f, opts, res)
	span.WithCount("moves", res.Counters.MovesEmitted).EndErr(err)
	if err != nil {
		res.Err = err
		return res, err
	}
	return res, nil
}

func runStages(ctx context.Context, f *lir.Func, opts Options, res *UnitResult) error {
	stage := func(s Stage, fn func() (string, error)) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		emitStage(opts.Progress, f.Name, s, StatusWorking, nil, 0)
		idx := res.Timer.Begin(string(s))
		start := time.Now()
		note, err := fn()
		elapsed := time.Since(start)
		res.Timer.End(idx, note)
		res.Timings.Set(s, elapsed)
		if err != nil {
			emitStage(opts.Progress, f.Name, s, StatusError, err, elapsed)
			return err
		}
		emitStage(opts.Progress, f.Name, s, StatusDone, nil, elapsed)
		return nil
	}

	if err := stage(StageVerify, func() (string, error) {
		if err := lir.Validate(f); err != nil {
			return "", err
		}
		if opts.VerifyPhis {
			return "phis checked", lir.VerifyAllPhis(f)
		}
		return "", nil
	}); err != nil {
		return err
	}

	if err := stage(StageAlloc, func() (string, error) {
		layout, err := stackalloc.Allocate(ctx, f, frame.NewMap(f.Name, opts.Target), stackalloc.Options{Counters: &res.Counters})
		if err != nil {
			return "", err
		}
		res.Layout = layout
		return fmt.Sprintf("frame %d", layout.FrameSize), nil
	}); err != nil {
		return err
	}

	if err := stage(StageResolve, func() (string, error) {
		edges, err := moves.ResolveFunc(ctx, f, moves.Options{
			Target:   opts.Target,
			Slots:    res.Layout,
			Counters: &res.Counters,
		})
		if err != nil {
			return "", err
		}
		res.Edges = edges
		return fmt.Sprintf("%d edges", len(edges)), nil
	}); err != nil {
		return err
	}

	return stage(StageEmit, func() (string, error) {
		if !opts.VerifyOutput {
			return "", nil
		}
		if err := lir.CheckConcrete(f); err != nil {
			return "", err
		}
		return "output checked", lir.CheckPhisRemoved(f)
	})
}

func emitQueued(sink ProgressSink, units []string) {
	if sink == nil {
		return
	}
	for _, name := range units {
		sink.OnEvent(Event{Unit: name, Stage: StageLoad, Status: StatusQueued})
	}
}

func emitStage(sink ProgressSink, unit string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Unit: unit, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}
