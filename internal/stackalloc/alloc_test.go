package stackalloc_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"framekit/internal/diag"
	"framekit/internal/frame"
	"framekit/internal/lir"
	"framekit/internal/lirio"
	"framekit/internal/observ"
	"framekit/internal/stackalloc"
	"framekit/internal/storage"
	"framekit/internal/target"
	"framekit/internal/testkit"
)

const spills = `fn spills
slot vs0 simple i64
slot vs1 alias vs3 i32
slot vs2 range size=24 align=8
slot vs3 simple ref
bb0:
  label
  op store def=vs0:i64 use=r1:i64
  op call use=vs1:i32,vs2:i64 alive=vs0:i64 state=r2|vs3:ref
  branch r0:i64 bb1 bb2
bb1:
  label
  jump bb3 out=vs0:i64
bb2:
  label
  jump bb3 out=r3:i64
bb3:
  label in=r4|vs3:ref
  return vs0:i64
`

func parse(t *testing.T, src string) *lir.Func {
	t.Helper()
	f, err := lirio.ParseFuncString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return f
}

func allocate(t *testing.T, f *lir.Func, counters *observ.Counters) *stackalloc.Result {
	t.Helper()
	res, err := stackalloc.Allocate(context.Background(), f, frame.NewMap(f.Name, target.AMD64()), stackalloc.Options{Counters: counters})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	return res
}

func TestAllocate_Coverage(t *testing.T) {
	f := parse(t, spills)
	res := allocate(t, f, nil)
	if len(res.Slots) != len(f.Slots) {
		t.Fatalf("table has %d entries, want %d", len(res.Slots), len(f.Slots))
	}
	for i := range f.Slots {
		if _, _, ok := res.Lookup(storage.VirtualSlotID(i)); !ok {
			t.Errorf("vs%d has no concrete slot", i)
		}
	}
	if err := lir.CheckConcrete(f); err != nil {
		t.Fatalf("virtual operands remain: %v", err)
	}
	if f.FrameSize != res.FrameSize || f.FrameSize%16 != 0 || f.FrameSize == 0 {
		t.Errorf("frame size = %d (result %d)", f.FrameSize, res.FrameSize)
	}
	if err := testkit.CheckFrameInvariants(f, res, target.AMD64().StackAlign); err != nil {
		t.Error(err)
	}
}

func TestAllocate_Layout(t *testing.T) {
	f := parse(t, spills)
	res := allocate(t, f, nil)
	want := []struct {
		offset int32
		kind   storage.Kind
	}{
		{-8, storage.I64},
		{-40, storage.I32},
		{-32, storage.Illegal},
		{-40, storage.Ref},
	}
	for i, w := range want {
		slot, kind, _ := res.Lookup(storage.VirtualSlotID(i))
		if slot.Offset != w.offset || !slot.AddFrameSize || kind != w.kind {
			t.Errorf("vs%d = %s %s, want fs%d %s", i, slot, kind, w.offset, w.kind)
		}
	}
	if res.FrameSize != 48 {
		t.Errorf("frame size = %d, want 48", res.FrameSize)
	}
}

func TestAllocate_AliasSharesTargetOffset(t *testing.T) {
	f := parse(t, spills)
	res := allocate(t, f, nil)
	alias, aliasKind, _ := res.Lookup(1)
	target, targetKind, _ := res.Lookup(3)
	if alias != target {
		t.Fatalf("alias slot %s, target slot %s", alias, target)
	}
	if aliasKind != storage.I32 || targetKind != storage.Ref {
		t.Fatalf("kinds = %s/%s, want i32/ref", aliasKind, targetKind)
	}
	call := f.Block(0).Instrs[2]
	if got := call.Generic.Uses[0]; got != storage.FrameSlot(-40, storage.I32) {
		t.Errorf("alias use rewritten to %s, want fs-40:i32", got)
	}
}

func TestAllocate_RewritesEveryRole(t *testing.T) {
	f := parse(t, spills)
	counters := &observ.Counters{}
	allocate(t, f, counters)
	want := `fn spills
frame 48
slot vs0 simple i64
slot vs1 alias vs3 i32
slot vs2 range size=24 align=8
slot vs3 simple ref
bb0:
  label
  op store def=fs-8:i64 use=r1:i64
  op call use=fs-40:i32,fs-32:i64 alive=fs-8:i64 state=r2|fs-40:ref
  branch r0:i64 bb1 bb2
bb1:
  label
  jump bb3 out=fs-8:i64
bb2:
  label
  jump bb3 out=r3:i64
bb3:
  label in=r4|fs-40:ref
  return fs-8:i64
`
	if got := f.String(); got != want {
		t.Errorf("rewritten unit:\n%s\nwant:\n%s", got, want)
	}
	if counters.SlotsAllocated != 2 || counters.AliasesResolved != 1 || counters.RangesAllocated != 1 {
		t.Errorf("slot counters = %+v", counters)
	}
	if counters.OperandsRewritten != 8 {
		t.Errorf("operands rewritten = %d, want 8", counters.OperandsRewritten)
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	a, b := parse(t, spills), parse(t, spills)
	allocate(t, a, nil)
	allocate(t, b, nil)
	if a.String() != b.String() {
		t.Fatal("same input produced different layouts")
	}
}

func TestAllocate_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code diag.Code
	}{
		{
			name: "alias_definition",
			src:  "fn f\nslot vs0 simple i64\nslot vs1 alias vs0 i32\nbb0:\n  label\n  op def def=vs1:i32\n  return\n",
			code: diag.ErrAliasDefinition,
		},
		{
			name: "alias_temp",
			src:  "fn f\nslot vs0 simple i64\nslot vs1 alias vs0 i32\nbb0:\n  label\n  op t temp=vs1:i32\n  return\n",
			code: diag.ErrAliasDefinition,
		},
		{
			name: "alias_phi_definition",
			src: "fn f\nslot vs0 simple i64\nslot vs1 alias vs0 i32\nbb0:\n  label\n  branch r0:i64 bb1 bb2\n" +
				"bb1:\n  label\n  jump bb3 out=r1:i32\nbb2:\n  label\n  jump bb3 out=r2:i32\nbb3:\n  label in=vs1:i32\n  return\n",
			code: diag.ErrAliasDefinition,
		},
		{
			name: "alias_of_range",
			src:  "fn f\nslot vs0 range size=8 align=8\nslot vs1 alias vs0 i32\nbb0:\n  label\n  return\n",
			code: diag.ErrAliasTarget,
		},
		{
			name: "alias_of_alias",
			src:  "fn f\nslot vs0 simple i64\nslot vs1 alias vs0 i32\nslot vs2 alias vs1 i8\nbb0:\n  label\n  return\n",
			code: diag.ErrAliasTarget,
		},
		{
			name: "alias_missing_target",
			src:  "fn f\nslot vs0 alias vs5 i32\nbb0:\n  label\n  return\n",
			code: diag.ErrSlotOutOfRange,
		},
		{
			name: "unknown_reference",
			src:  "fn f\nslot vs0 simple i64\nbb0:\n  label\n  return vs4:i64\n",
			code: diag.ErrSlotOutOfRange,
		},
		{
			name: "bad_range",
			src:  "fn f\nslot vs0 range size=0 align=8\nbb0:\n  label\n  return\n",
			code: diag.ErrFrameRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := parse(t, tt.src)
			before := f.String()
			fb := frame.NewMap("f", target.AMD64())
			if _, err := fb.AllocateSpillSlot(storage.I64); err != nil {
				t.Fatal(err)
			}
			_, err := stackalloc.Allocate(context.Background(), f, fb, stackalloc.Options{})
			if !errors.Is(err, tt.code) {
				t.Fatalf("err = %v, want %s", err, tt.code.ID())
			}
			if f.String() != before {
				t.Errorf("failed allocation modified the unit:\n%s", f)
			}
			if fb.CurrentFrameSize() != 8 || len(fb.Entries()) != 1 {
				t.Errorf("frame kept partial allocations: size %d, %d entries", fb.CurrentFrameSize(), len(fb.Entries()))
			}
		})
	}
}

func TestAllocate_UnknownVariantNamesSlot(t *testing.T) {
	f := parse(t, "fn f\nslot vs0 simple i64\nbb0:\n  label\n  return\n")
	f.Slots = append(f.Slots, storage.VirtualSlot{ID: 1, Variant: storage.SlotVariant(9), Target: storage.NoVirtualSlot})
	_, err := stackalloc.Allocate(context.Background(), f, frame.NewMap("f", target.AMD64()), stackalloc.Options{})
	if !errors.Is(err, diag.ErrUnknownSlotVariant) {
		t.Fatalf("err = %v, want ErrUnknownSlotVariant", err)
	}
	var ie *diag.Error
	if !errors.As(err, &ie) || ie.Loc.Slot != 1 {
		t.Fatalf("error does not name vs1: %v", err)
	}
}

func TestAllocate_FinishedFrame(t *testing.T) {
	f := parse(t, "fn f\nslot vs0 simple i64\nbb0:\n  label\n  return vs0:i64\n")
	fb := frame.NewMap("f", target.AMD64())
	if _, err := fb.Finish(); err != nil {
		t.Fatal(err)
	}
	_, err := stackalloc.Allocate(context.Background(), f, fb, stackalloc.Options{})
	if !errors.Is(err, diag.ErrFrameFinished) {
		t.Fatalf("err = %v, want ErrFrameFinished", err)
	}
}

func TestAllocate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := parse(t, spills)
	if _, err := stackalloc.Allocate(ctx, f, frame.NewMap("f", target.AMD64()), stackalloc.Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestResult_WriteLayout(t *testing.T) {
	f := parse(t, spills)
	res := allocate(t, f, nil)
	var sb strings.Builder
	if err := res.WriteLayout(&sb); err != nil {
		t.Fatal(err)
	}
	want := "vs0 simple -> fs-8 i64\nvs1 alias -> fs-40 i32\nvs2 range -> fs-32\nvs3 simple -> fs-40 ref\nframe 48\n"
	if sb.String() != want {
		t.Errorf("layout:\n%s\nwant:\n%s", sb.String(), want)
	}
}
