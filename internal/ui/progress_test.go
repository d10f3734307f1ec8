package ui

import (
	"errors"
	"testing"

	"framekit/internal/buildpipeline"
)

func TestApplyEvent_UnitLifecycle(t *testing.T) {
	events := make(chan buildpipeline.Event)
	m := NewProgressModel("alloc", []string{"a", "b"}, events).(*progressModel)

	steps := []struct {
		ev   buildpipeline.Event
		unit int
		want string
	}{
		{buildpipeline.Event{Unit: "a", Stage: buildpipeline.StageVerify, Status: buildpipeline.StatusWorking}, 0, "verifying"},
		{buildpipeline.Event{Unit: "a", Stage: buildpipeline.StageVerify, Status: buildpipeline.StatusDone}, 0, "verifying"},
		{buildpipeline.Event{Unit: "a", Stage: buildpipeline.StageAlloc, Status: buildpipeline.StatusWorking}, 0, "allocating"},
		{buildpipeline.Event{Unit: "b", Stage: buildpipeline.StageVerify, Status: buildpipeline.StatusError, Err: errors.New("x")}, 1, "error"},
		{buildpipeline.Event{Unit: "b", Stage: buildpipeline.StageAlloc, Status: buildpipeline.StatusWorking}, 1, "error"},
		{buildpipeline.Event{Unit: "a", Stage: buildpipeline.StageEmit, Status: buildpipeline.StatusDone}, 0, "done"},
		{buildpipeline.Event{Unit: "zzz", Stage: buildpipeline.StageEmit, Status: buildpipeline.StatusDone}, 0, "done"},
	}
	for i, st := range steps {
		m.applyEvent(st.ev)
		if got := m.items[st.unit].status; got != st.want {
			t.Errorf("step %d: unit %d status = %q, want %q", i, st.unit, got, st.want)
		}
	}
	if got := overallProgress(m.items); got != 1.0 {
		t.Errorf("progress = %v, want 1", got)
	}
}

func TestOverallProgress_Partial(t *testing.T) {
	items := []unitItem{
		{name: "a", status: "allocating", stage: buildpipeline.StageAlloc},
		{name: "b", status: "queued", stage: buildpipeline.StageLoad},
	}
	if got := overallProgress(items); got != 0.2 {
		t.Errorf("progress = %v, want 0.2", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 8, "abcde..."},
		{"abcdef", 3, "abc"},
		{"日本語ユニット", 7, "日本..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
