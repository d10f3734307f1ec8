package diag

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type strVal string

func (s strVal) String() string { return string(s) }

func TestError_IsMatchesCode(t *testing.T) {
	err := Errorf(ErrPhiKindMismatch, At("f").InBlock(3), "kinds differ")
	wrapped := fmt.Errorf("resolve: %w", err)
	if !errors.Is(wrapped, ErrPhiKindMismatch) {
		t.Fatal("errors.Is must match the code through wrapping")
	}
	if errors.Is(wrapped, ErrUnresolvedCycle) {
		t.Fatal("errors.Is must not match a different code")
	}
	var ie *Error
	if !errors.As(wrapped, &ie) || ie.Loc.Block != 3 {
		t.Fatalf("errors.As lost the location: %+v", ie)
	}
}

func TestError_MessageIncludesValues(t *testing.T) {
	err := Errorf(ErrPhiKindMismatch, At("swap").InBlock(2).AtInstr(0), "incoming i32 vs outgoing i64").
		WithValues(strVal("r0:i32"), strVal("r1:i64"))
	msg := err.Error()
	for _, want := range []string{"swap:bb2#0", "ICE3002", "r0:i32", "r1:i64"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestCollect_Join(t *testing.T) {
	err := errors.Join(
		Errorf(ErrBadTarget, At("f").InBlock(1), "bad"),
		errors.New("plain"),
	)
	diags := Collect(err)
	if len(diags) != 2 {
		t.Fatalf("len = %d, want 2", len(diags))
	}
	if diags[0].Code != ErrBadTarget || diags[1].Code != UnknownCode {
		t.Errorf("codes = %v,%v", diags[0].Code, diags[1].Code)
	}
}

func TestBag_SortAndDedup(t *testing.T) {
	bag := NewBag(10)
	bag.Add(NewError(ErrBadTarget, At("f").InBlock(2), "b"))
	bag.Add(NewError(ErrBadTarget, At("f").InBlock(1), "a"))
	bag.Add(NewError(ErrBadTarget, At("f").InBlock(1), "a"))
	bag.Dedup()
	bag.Sort()
	if bag.Len() != 2 {
		t.Fatalf("len = %d, want 2", bag.Len())
	}
	if bag.Items()[0].Primary.Block != 1 {
		t.Errorf("first block = %d, want 1", bag.Items()[0].Primary.Block)
	}
	if !bag.HasErrors() {
		t.Error("HasErrors = false")
	}
}

func TestBag_Limit(t *testing.T) {
	bag := NewBag(1)
	if !bag.Add(NewError(ErrBadTarget, NoLocation, "x")) {
		t.Fatal("first add must succeed")
	}
	if bag.Add(NewError(ErrBadTarget, NoLocation, "y")) {
		t.Fatal("second add must be rejected")
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(10)
	r := NewDedupReporter(BagReporter{Bag: bag})
	ReportError(r, ErrCriticalEdge, At("f"), "edge").Emit()
	ReportError(r, ErrCriticalEdge, At("f"), "edge").Emit()
	ReportWarning(r, ErrCriticalEdge, At("f"), "edge").Emit()
	if bag.Len() != 2 {
		t.Errorf("len = %d, want 2", bag.Len())
	}
	if r.Suppressed() != 1 {
		t.Errorf("suppressed = %d, want 1", r.Suppressed())
	}
}

func TestFormat_Plain(t *testing.T) {
	var buf bytes.Buffer
	d := NewError(ErrUnresolvedCycle, At("loop").InBlock(4), "").WithNote(NoLocation, "value r1:i64")
	if err := Format(&buf, []Diagnostic{d}, FormatOptions{Notes: true}); err != nil {
		t.Fatal(err)
	}
	want := "loop:bb4: ERROR ICE4002: Move cycle cannot be broken\n    note: value r1:i64\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		sev   Severity
		name  string
		fails bool
	}{
		{SevInfo, "INFO", false},
		{SevWarning, "WARNING", false},
		{SevError, "ERROR", true},
		{Severity(9), "UNKNOWN", true},
	}
	for _, tt := range tests {
		if got := tt.sev.String(); got != tt.name {
			t.Errorf("String(%d) = %q, want %q", tt.sev, got, tt.name)
		}
		if got := tt.sev.Fails(); got != tt.fails {
			t.Errorf("Fails(%s) = %v", tt.name, got)
		}
		if got := tt.sev.paint("x"); !strings.Contains(got, "x") {
			t.Errorf("paint(%s) = %q", tt.name, got)
		}
	}
}
