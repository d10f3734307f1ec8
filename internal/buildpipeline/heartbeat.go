package buildpipeline

import (
	"context"
	"strconv"
	"time"

	"framekit/internal/trace"
)

// startHeartbeat emits a heartbeat trace event with the run state of m every
// interval until the returned stop is called. A beat on which no unit
// finished while some are in flight counts towards "stalled".
func startHeartbeat(ctx context.Context, interval time.Duration, m *monitor) (stop func()) {
	t := trace.FromContext(ctx)
	if interval <= 0 || !t.Enabled() {
		return func() {}
	}
	quit := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		lastFinished, stalled := -1, 0
		for {
			select {
			case <-quit:
				return
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				st := m.State()
				finished := st.Done + st.Failed
				if finished == lastFinished && st.InFlight > 0 {
					stalled++
				} else {
					stalled = 0
				}
				lastFinished = finished
				t.Emit(beatEvent(now, st, stalled))
			}
		}
	}()
	stopped := false
	return func() {
		if stopped {
			return
		}
		stopped = true
		close(quit)
		<-exited
	}
}

func beatEvent(now time.Time, st RunState, stalled int) *trace.Event {
	extra := map[string]string{
		"done":      strconv.Itoa(st.Done),
		"failed":    strconv.Itoa(st.Failed),
		"in_flight": strconv.Itoa(st.InFlight),
		"total":     strconv.Itoa(st.Total),
	}
	if st.Oldest != "" {
		extra["oldest"] = st.Oldest
		extra["oldest_stage"] = string(st.OldestStage)
	}
	if stalled > 0 {
		extra["stalled"] = strconv.Itoa(stalled)
	}
	return &trace.Event{
		Time:   now,
		Seq:    trace.NextSeq(),
		Kind:   trace.KindHeartbeat,
		Scope:  trace.ScopeDriver,
		Name:   "heartbeat",
		Detail: st.String(),
		Extra:  extra,
	}
}
