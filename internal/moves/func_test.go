package moves_test

import (
	"context"
	"errors"
	"testing"

	"framekit/internal/diag"
	"framekit/internal/frame"
	"framekit/internal/lir"
	"framekit/internal/lirio"
	"framekit/internal/moves"
	"framekit/internal/observ"
	"framekit/internal/stackalloc"
	"framekit/internal/storage"
	"framekit/internal/target"
)

func parse(t *testing.T, src string) *lir.Func {
	t.Helper()
	f, err := lirio.ParseFuncString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := lir.Validate(f); err != nil {
		t.Fatalf("fixture invalid: %v", err)
	}
	return f
}

const swapUnit = `fn swap
bb0:
  label
  branch r0:i64 bb1 bb2
bb1:
  label
  jump bb3 out=r2:i64,r1:i64
bb2:
  label
  jump bb3 out=r1:i64,$0:i64
bb3:
  label in=r1:i64,r2:i64
  return r1:i64
`

func TestResolveFunc_InsertsBeforeJump(t *testing.T) {
	f := parse(t, swapUnit)
	counters := &observ.Counters{}
	edges, err := moves.ResolveFunc(context.Background(), f, moves.Options{
		Target:     target.AMD64(),
		VerifyPhis: true,
		Counters:   counters,
	})
	if err != nil {
		t.Fatalf("ResolveFunc: %v", err)
	}
	want := `fn swap
bb0:
  label
  branch r0:i64 bb1 bb2
bb1:
  label
  move r15:i64 <- r1:i64
  move r1:i64 <- r2:i64
  move r2:i64 <- r15:i64
  jump bb3
bb2:
  label
  move r2:i64 <- $0:i64
  jump bb3
bb3:
  label
  return r1:i64
`
	if got := f.String(); got != want {
		t.Errorf("resolved unit:\n%s\nwant:\n%s", got, want)
	}
	if len(edges) != 2 || edges[0].Pred != 1 || edges[1].Pred != 2 || edges[0].EdgeBlock != lir.NoBlockID {
		t.Errorf("edges = %v", edges)
	}
	if err := lir.CheckPhisRemoved(f); err != nil {
		t.Errorf("phi state left: %v", err)
	}
	if err := lir.Validate(f); err != nil {
		t.Errorf("resolved unit invalid: %v", err)
	}
	wantCounters := observ.Counters{EdgesResolved: 2, MovesEmitted: 4, MovesElided: 1, CyclesBroken: 1}
	if *counters != wantCounters {
		t.Errorf("counters = %+v, want %+v", *counters, wantCounters)
	}
}

func TestResolveFunc_NoSpliceEdgeBlock(t *testing.T) {
	f := parse(t, `fn fixed
bb0:
  label
  branch r0:i64 bb1 bb2
bb1:
  label
  jump bb3 out=r2:i64 nosplice
bb2:
  label
  jump bb3 out=r1:i64 nosplice
bb3:
  label in=r1:i64
  return r1:i64
`)
	counters := &observ.Counters{}
	edges, err := moves.ResolveFunc(context.Background(), f, moves.Options{Target: target.AMD64(), Counters: counters})
	if err != nil {
		t.Fatalf("ResolveFunc: %v", err)
	}
	want := `fn fixed
bb0:
  label
  branch r0:i64 bb1 bb2
bb1:
  label
  jump bb4 nosplice
bb2:
  label
  jump bb3 nosplice
bb3:
  label
  return r1:i64
bb4:
  label
  move r1:i64 <- r2:i64
  jump bb3
`
	if got := f.String(); got != want {
		t.Errorf("resolved unit:\n%s\nwant:\n%s", got, want)
	}
	if edges[0].EdgeBlock != 4 || edges[1].EdgeBlock != lir.NoBlockID {
		t.Errorf("edge blocks = %d, %d", edges[0].EdgeBlock, edges[1].EdgeBlock)
	}
	if got := f.Block(3).Preds; len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("bb3 preds = %v, want [2 4]", got)
	}
	if counters.EdgeBlocksInserted != 1 {
		t.Errorf("edge blocks inserted = %d", counters.EdgeBlocksInserted)
	}
	if err := lir.Validate(f); err != nil {
		t.Errorf("resolved unit invalid: %v", err)
	}
}

func TestResolveFunc_ShadowedPhis(t *testing.T) {
	f := parse(t, `fn shadows
bb0:
  label
  branch r0:i64 bb1 bb2
bb1:
  label
  jump bb3 out=r0|sp+8:ref
bb2:
  label
  jump bb3 out=r5:ref
bb3:
  label in=r1|sp+16:ref
  return r1:ref
`)
	if _, err := moves.ResolveFunc(context.Background(), f, moves.Options{Target: target.AMD64(), VerifyPhis: true}); err != nil {
		t.Fatalf("ResolveFunc: %v", err)
	}
	wantBB1 := []string{"label", "move r1:ref <- r0:ref", "move sp+16:ref <- r0:ref", "jump bb3"}
	wantBB2 := []string{"label", "move r1:ref <- r5:ref", "move sp+16:ref <- r5:ref", "jump bb3"}
	for _, tc := range []struct {
		id   lir.BlockID
		want []string
	}{{1, wantBB1}, {2, wantBB2}} {
		bb := f.Block(tc.id)
		if len(bb.Instrs) != len(tc.want) {
			t.Fatalf("bb%d has %d instrs, want %d:\n%s", tc.id, len(bb.Instrs), len(tc.want), f)
		}
		for i := range tc.want {
			if got := lir.FormatInstr(&bb.Instrs[i]); got != tc.want[i] {
				t.Errorf("bb%d#%d = %q, want %q", tc.id, i, got, tc.want[i])
			}
		}
	}
}

func TestResolveFunc_AfterStackAlloc(t *testing.T) {
	f := parse(t, `fn spilled
slot vs0 simple i64
slot vs1 simple i64
bb0:
  label
  branch r0:i64 bb1 bb2
bb1:
  label
  jump bb3 out=vs0:i64,vs1:i64
bb2:
  label
  jump bb3 out=vs1:i64,vs0:i64
bb3:
  label in=vs0:i64,vs1:i64
  return
`)
	ctx := context.Background()
	res, err := stackalloc.Allocate(ctx, f, frame.NewMap(f.Name, target.AMD64()), stackalloc.Options{})
	if err != nil {
		t.Fatal(err)
	}
	counters := &observ.Counters{}
	if _, err := moves.ResolveFunc(ctx, f, moves.Options{Target: target.AMD64(), Slots: res, Counters: counters}); err != nil {
		t.Fatalf("ResolveFunc: %v", err)
	}
	if n := len(f.Block(1).Instrs); n != 2 {
		t.Errorf("identity edge got %d instrs, want label+jump", n)
	}
	if counters.MovesElided != 2 || counters.CyclesBroken != 1 || counters.MovesEmitted != 3 {
		t.Errorf("counters = %+v", counters)
	}
	want := []string{"label", "move r15:i64 <- fs-8:i64", "move fs-8:i64 <- fs-16:i64", "move fs-16:i64 <- r15:i64", "jump bb3"}
	bb := f.Block(2)
	for i := range want {
		if got := lir.FormatInstr(&bb.Instrs[i]); got != want[i] {
			t.Errorf("bb2#%d = %q, want %q", i, got, want[i])
		}
	}
}

func TestResolveFunc_FrameSlotSeenThroughFixedBase(t *testing.T) {
	// vs0 lands at fs-8 in a 16 byte frame, which is sp+8.
	f := parse(t, `fn crossbase
slot vs0 simple i64
bb0:
  label
  branch r0:i64 bb1 bb2
bb1:
  label
  jump bb3 out=r0:i64,sp+8:i64
bb2:
  label
  jump bb3 out=vs0:i64,r1:i64
bb3:
  label in=vs0:i64,r1:i64
  return
`)
	ctx := context.Background()
	res, err := stackalloc.Allocate(ctx, f, frame.NewMap(f.Name, target.AMD64()), stackalloc.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if f.FrameSize != 16 || res.Slots[0] != (storage.StackSlot{Offset: -8, AddFrameSize: true}) {
		t.Fatalf("frame = %d, vs0 = %v", f.FrameSize, res.Slots[0])
	}
	if _, err := moves.ResolveFunc(ctx, f, moves.Options{Target: target.AMD64(), Slots: res}); err != nil {
		t.Fatalf("ResolveFunc: %v", err)
	}
	want := []string{"label", "move r1:i64 <- sp+8:i64", "move fs-8:i64 <- r0:i64", "jump bb3"}
	bb := f.Block(1)
	if len(bb.Instrs) != len(want) {
		t.Fatalf("bb1 = %q", f.String())
	}
	for i := range want {
		if got := lir.FormatInstr(&bb.Instrs[i]); got != want[i] {
			t.Errorf("bb1#%d = %q, want %q", i, got, want[i])
		}
	}
}

func TestResolveFunc_ErrorsLeaveUnitUntouched(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		verify bool
		code   diag.Code
	}{
		{
			name: "kind_mismatch",
			src: "fn f\nbb0:\n  label\n  branch r0:i64 bb1 bb2\nbb1:\n  label\n  jump bb3 out=r1:i32\n" +
				"bb2:\n  label\n  jump bb3 out=r2:i64\nbb3:\n  label in=r3:i64\n  return\n",
			verify: true,
			code:   diag.ErrPhiKindMismatch,
		},
		{
			name: "duplicate_destination_on_second_edge",
			src: "fn f\nbb0:\n  label\n  branch r0:i64 bb1 bb2\nbb1:\n  label\n  jump bb3 out=r1:i64,sp+8:i64\n" +
				"bb2:\n  label\n  jump bb3 out=r1:i64,r2:i64\nbb3:\n  label in=r3|sp+8:i64,sp+8:i64\n  return\n",
			code: diag.ErrDuplicateDestination,
		},
		{
			name: "virtual_without_slots",
			src: "fn f\nslot vs0 simple i64\nbb0:\n  label\n  branch r0:i64 bb1 bb2\nbb1:\n  label\n  jump bb3 out=vs0:i64\n" +
				"bb2:\n  label\n  jump bb3 out=r2:i64\nbb3:\n  label in=r3:i64\n  return\n",
			code: diag.ErrBadMoveOperand,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := parse(t, tt.src)
			before := f.String()
			_, err := moves.ResolveFunc(context.Background(), f, moves.Options{Target: target.AMD64(), VerifyPhis: tt.verify})
			if !errors.Is(err, tt.code) {
				t.Fatalf("err = %v, want %s", err, tt.code.ID())
			}
			if f.String() != before {
				t.Errorf("failed resolution modified the unit:\n%s", f)
			}
		})
	}
}

func TestResolveFunc_NoMerges(t *testing.T) {
	f := parse(t, "fn straight\nbb0:\n  label\n  jump bb1\nbb1:\n  label\n  return\n")
	edges, err := moves.ResolveFunc(context.Background(), f, moves.Options{Target: target.AMD64()})
	if err != nil || len(edges) != 0 {
		t.Fatalf("edges=%v err=%v", edges, err)
	}
}
