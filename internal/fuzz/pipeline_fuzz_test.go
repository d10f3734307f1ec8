package fuzztests

import (
	"context"
	"testing"
	"time"

	"framekit/internal/buildpipeline"
	"framekit/internal/lir"
	"framekit/internal/lirio"
	"framekit/internal/target"
	"framekit/internal/testkit"
)

const maxFuzzInput = 1 << 16 // 64 KiB

// pipelineTimeout bounds one unit; move scheduling must always terminate.
const pipelineTimeout = 5 * time.Second

func clip(input []byte) []byte {
	if len(input) > maxFuzzInput {
		input = input[:maxFuzzInput]
	}
	return append([]byte(nil), input...)
}

// FuzzParseFuncRoundTrip checks that any unit the reader accepts prints
// back to text that parses to the same unit.
func FuzzParseFuncRoundTrip(f *testing.F) {
	addCorpusSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		fn, err := lirio.ParseFuncString(string(clip(input)))
		if err != nil {
			return
		}
		first := fn.String()
		again, err := lirio.ParseFuncString(first)
		if err != nil {
			t.Fatalf("dump does not parse: %v\n%s", err, first)
		}
		if second := again.String(); second != first {
			t.Fatalf("round trip changed the unit:\n%s\nvs\n%s", first, second)
		}
	})
}

// FuzzPipeline runs every accepted unit through allocation and resolution.
func FuzzPipeline(f *testing.F) {
	addCorpusSeeds(f)
	tgt := target.AMD64()
	f.Fuzz(func(t *testing.T, input []byte) {
		fn, err := lirio.ParseFuncString(string(clip(input)))
		if err != nil || lir.Validate(fn) != nil {
			return
		}
		before := fn.String()

		ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
		defer cancel()
		done := make(chan struct{})
		var res *buildpipeline.UnitResult
		go func() {
			defer close(done)
			res, err = buildpipeline.CompileUnit(ctx, fn, buildpipeline.Options{
				Target:       tgt,
				VerifyPhis:   true,
				VerifyOutput: true,
			})
		}()
		select {
		case <-done:
		case <-ctx.Done():
			t.Fatalf("pipeline did not finish within %s on:\n%s", pipelineTimeout, before)
		}

		if err != nil {
			if res != nil && res.Layout == nil && fn.String() != before {
				t.Fatalf("failed allocation modified the unit: %v", err)
			}
			return
		}
		if err := testkit.CheckFrameInvariants(fn, res.Layout, tgt.StackAlign); err != nil {
			t.Fatalf("frame invariants: %v\n%s", err, before)
		}
		if err := testkit.CheckResolved(fn); err != nil {
			t.Fatalf("resolved unit: %v\n%s", err, fn)
		}
	})
}
