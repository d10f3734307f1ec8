// Package buildpipeline runs the storage-assignment pipeline over many
// units: load, verify, alloc, resolve and emit, with progress events,
// per-unit timings and an optional disk cache.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"framekit/internal/lir"
	"framekit/internal/lirio"
	"framekit/internal/observ"
	"framekit/internal/project"
	"framekit/internal/trace"
)

// Input is one loaded unit and the file it came from.
type Input struct {
	Source string
	Func   *lir.Func
}

// BuildRequest configures a multi-unit run.
type BuildRequest struct {
	Options

	Inputs []Input
	// Jobs bounds the number of units compiled at once; <= 0 means GOMAXPROCS.
	Jobs  int
	Cache *DiskCache
	// Heartbeat emits a run-state trace event at this interval; 0 disables.
	Heartbeat time.Duration
}

// BuildResult holds one entry per input, in input order.
type BuildResult struct {
	Units    []*UnitResult
	Counters observ.Counters
	Timings  Timings
	Elapsed  time.Duration
}

// Failed returns the units that did not compile.
func (r *BuildResult) Failed() []*UnitResult {
	var out []*UnitResult
	for _, u := range r.Units {
		if u.Err != nil {
			out = append(out, u)
		}
	}
	return out
}

// Err joins the errors of every failed unit.
func (r *BuildResult) Err() error {
	var errs []error
	for _, u := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", u.Name, u.Err))
	}
	return errors.Join(errs...)
}

// ListUnitFiles expands paths into unit files. Directories are walked and
// their unit files returned in sorted order; framekit.toml is skipped.
func ListUnitFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		err := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if path == p {
				files = append(files, path)
				return nil
			}
			if d.Name() != project.ManifestName && lirio.IsUnitFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i] < files[j] })
	return files, nil
}

// LoadInputs reads every file. Load errors are fatal for the run.
func LoadInputs(ctx context.Context, files []string, sink ProgressSink) ([]Input, error) {
	_, span := trace.StartSpan(ctx, trace.ScopePass, "load")
	var inputs []Input
	for _, path := range files {
		start := time.Now()
		units, err := lirio.LoadFile(path)
		if err != nil {
			emitStage(sink, path, StageLoad, StatusError, err, time.Since(start))
			span.EndErr(err)
			return nil, err
		}
		for _, f := range units {
			inputs = append(inputs, Input{Source: path, Func: f})
		}
	}
	span.WithCount("units", len(inputs)).End("")
	return inputs, nil
}

// Build compiles every input concurrently. Each unit is owned by exactly
// one goroutine; a failing unit does not stop the others. The returned error
// is reserved for cancellation.
func Build(ctx context.Context, req *BuildRequest) (*BuildResult, error) {
	if req == nil {
		return nil, fmt.Errorf("missing build request")
	}
	if req.Target == nil {
		return nil, fmt.Errorf("missing target")
	}
	start := time.Now()
	ctx, span := trace.StartSpan(ctx, trace.ScopeDriver, "build")

	names := make([]string, len(req.Inputs))
	for i, in := range req.Inputs {
		names[i] = in.Func.Name
	}
	mon := newMonitor(len(names), req.Progress)
	opts := req.Options
	opts.Progress = mon
	emitQueued(mon, names)
	stopBeat := startHeartbeat(ctx, req.Heartbeat, mon)
	defer stopBeat()

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	results := make([]*UnitResult, len(req.Inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(req.Inputs))))
	for i, in := range req.Inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Indices are unique per goroutine; no lock needed.
			results[i] = compileCached(trace.WithUnit(gctx, in.Func.Name), in, req, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.EndErr(err)
		return nil, err
	}

	out := &BuildResult{Units: results, Elapsed: time.Since(start)}
	for _, u := range results {
		out.Counters.Add(&u.Counters)
		out.Timings.Add(u.Timings)
	}
	span.WithCount("units", len(results)).WithCount("failed", len(out.Failed())).End("")
	return out, nil
}

func compileCached(ctx context.Context, in Input, req *BuildRequest, opts Options) *UnitResult {
	var key project.Digest
	if req.Cache != nil {
		k, err := UnitKey(in.Func, req.Target)
		if err == nil {
			key = k
			if payload, ok, err := req.Cache.Get(key); err == nil && ok {
				emitStage(opts.Progress, in.Func.Name, StageEmit, StatusDone, nil, 0)
				return &UnitResult{
					Name:     payload.Name,
					Source:   in.Source,
					Func:     payload.Output,
					Counters: payload.Counters,
					Cached:   true,
				}
			}
		}
	}

	res, err := CompileUnit(ctx, in.Func, opts)
	if res == nil {
		res = &UnitResult{Name: in.Func.Name, Func: in.Func, Err: err}
	}
	res.Source = in.Source
	if err == nil && req.Cache != nil && key != (project.Digest{}) {
		payload := &CachePayload{
			Name:      res.Name,
			Target:    req.Target.Fingerprint(),
			Output:    res.Func,
			FrameSize: res.Func.FrameSize,
			Counters:  res.Counters,
		}
		if perr := req.Cache.Put(key, payload); perr != nil {
			trace.Point(ctx, trace.ScopeUnit, "cache:put", perr.Error())
		}
	}
	return res
}
