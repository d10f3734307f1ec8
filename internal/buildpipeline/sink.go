package buildpipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ChannelSink forwards events into a channel. Sends block, so the reader
// must keep draining until Build returns.
type ChannelSink chan<- Event

func (s ChannelSink) OnEvent(evt Event) {
	if s != nil {
		s <- evt
	}
}

// RunState is a snapshot of a multi-unit run.
type RunState struct {
	Total    int
	Done     int
	Failed   int
	InFlight int

	// Oldest is the in-flight unit that started first, with the stage it is
	// in and how long it has been running.
	Oldest      string
	OldestStage Stage
	OldestFor   time.Duration
}

func (s RunState) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d/%d done", s.Done, s.Total)
	if s.Failed > 0 {
		fmt.Fprintf(&sb, ", %d failed", s.Failed)
	}
	fmt.Fprintf(&sb, ", %d in flight", s.InFlight)
	if s.Oldest != "" {
		fmt.Fprintf(&sb, ", oldest %s in %s for %s", s.Oldest, s.OldestStage, s.OldestFor.Round(time.Millisecond))
	}
	return sb.String()
}

type inFlight struct {
	stage Stage
	since time.Time
}

// monitor tracks which units are running, and in which stage, from the
// progress events of a run, then forwards them to next.
type monitor struct {
	next ProgressSink
	now  func() time.Time

	mu      sync.Mutex
	total   int
	done    int
	failed  int
	running map[string]inFlight
}

func newMonitor(total int, next ProgressSink) *monitor {
	return &monitor{
		next:    next,
		now:     time.Now,
		total:   total,
		running: make(map[string]inFlight),
	}
}

func (m *monitor) OnEvent(evt Event) {
	if evt.Unit != "" {
		m.mu.Lock()
		switch evt.Status {
		case StatusWorking:
			cur, ok := m.running[evt.Unit]
			if !ok {
				cur.since = m.now()
			}
			cur.stage = evt.Stage
			m.running[evt.Unit] = cur
		case StatusError:
			delete(m.running, evt.Unit)
			m.failed++
		case StatusDone:
			if evt.Stage == StageEmit {
				delete(m.running, evt.Unit)
				m.done++
			}
		}
		m.mu.Unlock()
	}
	if m.next != nil {
		m.next.OnEvent(evt)
	}
}

// State returns the current run state.
func (m *monitor) State() RunState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := RunState{Total: m.total, Done: m.done, Failed: m.failed, InFlight: len(m.running)}
	names := make([]string, 0, len(m.running))
	for name := range m.running {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cur := m.running[name]
		if st.Oldest == "" || cur.since.Before(m.running[st.Oldest].since) {
			st.Oldest = name
		}
	}
	if st.Oldest != "" {
		cur := m.running[st.Oldest]
		st.OldestStage = cur.stage
		st.OldestFor = m.now().Sub(cur.since)
	}
	return st
}
