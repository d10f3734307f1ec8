package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"framekit/internal/diag"
	"framekit/internal/trace"
)

func TestDumpFailure(t *testing.T) {
	ring := trace.NewRingTracer(64, trace.LevelError)
	ctx := trace.WithTracer(context.Background(), ring)
	for _, unit := range []string{"swap", "mismatch"} {
		_, span := trace.StartSpan(trace.WithUnit(ctx, unit), trace.ScopePass, "alloc:"+unit)
		span.End("ok")
	}

	unitErr := diag.Errorf(diag.ErrPhiKindMismatch, diag.At("mismatch").InBlock(3), "kinds differ")
	tests := []struct {
		name    string
		err     error
		want    []string
		notWant []string
	}{
		{
			name:    "located_unit_only",
			err:     &unitsFailedError{failed: 1, total: 2, cause: errors.Join(fmt.Errorf("mismatch: %w", unitErr))},
			want:    []string{"last events of mismatch before failure", "@mismatch"},
			notWant: []string{"@swap"},
		},
		{
			name: "unlocated_error_dumps_all",
			err:  errors.New("disk full"),
			want: []string{"last events before failure", "@mismatch", "@swap"},
		},
		{
			name: "unit_without_events_dumps_all",
			err:  diag.Errorf(diag.ErrPhiKindMismatch, diag.At("other"), "kinds differ"),
			want: []string{"none recorded", "@mismatch", "@swap"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			if err := dumpFailure(&sb, ring, tt.err); err != nil {
				t.Fatal(err)
			}
			out := sb.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("dump lacks %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("dump has %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestUnitsFailedError(t *testing.T) {
	cause := diag.Errorf(diag.ErrPhiKindMismatch, diag.At("mismatch"), "kinds differ")
	err := error(&unitsFailedError{failed: 1, total: 3, cause: cause})
	if got := err.Error(); got != "some units failed: 1 of 3" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, errUnitsFailed) || !errors.Is(err, diag.ErrPhiKindMismatch) {
		t.Errorf("errors.Is lost a wrapped error")
	}
	if got := failedUnits(err); len(got) != 1 || got[0] != "mismatch" {
		t.Errorf("failedUnits = %v", got)
	}
}
