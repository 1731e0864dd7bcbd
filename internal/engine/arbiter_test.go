package engine

import (
	"math"
	"testing"

	"github.com/padverb/vizor/internal/param"
)

func newTestArbiter() (*Arbiter, *param.Store) {
	store := param.NewStore(param.DefaultSchema())
	return NewArbiter(store, nil), store
}

func resolvedNum(t *testing.T, store *param.Store, name string) float64 {
	t.Helper()
	v, ok := store.Get(name)
	if !ok {
		t.Fatalf("parameter %q missing from store", name)
	}
	if v.Kind != param.KindNumber {
		t.Fatalf("parameter %q is not numeric", name)
	}
	return v.Num
}

func TestFramesPerStep(t *testing.T) {
	cases := []struct {
		bpm  float64
		want float64
	}{
		{120, 8},  // 0.125s per step * 60fps = 7.5, rounds up
		{60, 15},  // 0.25s per step
		{240, 4},  // 62.5ms per step
		{6000, 1}, // clamped to one whole frame
	}
	for _, c := range cases {
		if got := FramesPerStep(c.bpm); got != c.want {
			t.Fatalf("FramesPerStep(%v)=%v want %v", c.bpm, got, c.want)
		}
	}
}

func TestImmediateRequestAlwaysLandsExactly(t *testing.T) {
	arb, store := newTestArbiter()

	// Regardless of prior state, an immediate request leaves resolved == v.
	arb.Request(Request{Param: "brightness", To: param.Number(1.5), Steps: 4, Source: SourceUI}, 120)
	arb.Advance()
	arb.Request(Request{Param: "brightness", To: param.Number(0.9), Source: SourceUI}, 120)

	if got := resolvedNum(t, store, "brightness"); got != 0.9 {
		t.Fatalf("resolved brightness=%v want 0.9", got)
	}
	if arb.ActiveCount() != 0 {
		t.Fatalf("immediate request must delete the in-flight animation")
	}
}

func TestLowerPriorityRequestIsDroppedSilently(t *testing.T) {
	arb, store := newTestArbiter()

	arb.Request(Request{Param: "amplitude", To: param.Number(2), Steps: 4, Source: SourceMIDI}, 120)
	before := resolvedNum(t, store, "amplitude")

	arb.Request(Request{Param: "amplitude", To: param.Number(0.1), Source: SourcePattern}, 120)

	if got := resolvedNum(t, store, "amplitude"); got != before {
		t.Fatalf("dropped request must have no observable side effect: %v -> %v", before, got)
	}
	src, ok := arb.ActiveSource("amplitude")
	if !ok || src != SourceMIDI {
		t.Fatalf("in-flight animation lost: src=%v ok=%v", src, ok)
	}
}

func TestEqualPriorityReplacesInFlight(t *testing.T) {
	arb, _ := newTestArbiter()

	arb.Request(Request{Param: "speed", To: param.Number(1), Steps: 8, Source: SourceUI}, 120)
	arb.Request(Request{Param: "speed", To: param.Number(0.2), Steps: 8, Source: SourceUI}, 120)

	src, ok := arb.ActiveSource("speed")
	if !ok || src != SourceUI {
		t.Fatalf("replacement animation missing")
	}
	if arb.ActiveCount() != 1 {
		t.Fatalf("at most one animation per parameter, got %d", arb.ActiveCount())
	}
}

func TestPrioritySourceIsMonotonicUntilCancelled(t *testing.T) {
	arb, _ := newTestArbiter()

	order := []Source{SourcePattern, SourceAutomation, SourceUI, SourceMIDI, SourceUI, SourcePattern}
	last := SourcePattern
	for _, src := range order {
		arb.Request(Request{Param: "gamma", To: param.Number(1.2), Steps: 16, Source: src}, 120)
		got, ok := arb.ActiveSource("gamma")
		if !ok {
			t.Fatalf("expected in-flight animation")
		}
		if got < last {
			t.Fatalf("in-flight priority decreased: %v -> %v", last, got)
		}
		last = got
	}

	arb.CancelFor("gamma")
	arb.Request(Request{Param: "gamma", To: param.Number(1.0), Steps: 16, Source: SourcePattern}, 120)
	if got, _ := arb.ActiveSource("gamma"); got != SourcePattern {
		t.Fatalf("explicit cancel must allow lower priority again, got %v", got)
	}
}

func TestAnimationReachesTargetBitForBit(t *testing.T) {
	arb, store := newTestArbiter()

	from := param.Number(0.1)
	target := 0.7
	arb.Request(Request{Param: "contrast", From: &from, To: param.Number(target), Steps: 1, Source: SourceUI}, 120)

	// 1 step at 120 BPM is 8 frames.
	for i := 0; i < 7; i++ {
		arb.Advance()
		if got := resolvedNum(t, store, "contrast"); got == target {
			t.Fatalf("target reached early at frame %d", i+1)
		}
	}
	arb.Advance()
	if got := resolvedNum(t, store, "contrast"); got != target {
		t.Fatalf("completion must be exact: got %v want %v", got, target)
	}
	if arb.ActiveCount() != 0 {
		t.Fatalf("completed animation must be removed")
	}
}

func TestAnimationDurationFrozenAtRequestTime(t *testing.T) {
	arb, store := newTestArbiter()

	from := param.Number(0)
	arb.Request(Request{Param: "vignette", From: &from, To: param.Number(0.8), Steps: 2, Source: SourceUI}, 120)

	// 2 steps at 120 BPM = 16 frames, regardless of any later tempo change.
	for i := 0; i < 16; i++ {
		arb.Advance()
	}
	if got := resolvedNum(t, store, "vignette"); got != 0.8 {
		t.Fatalf("resolved vignette=%v want 0.8", got)
	}
}

func TestNegativeStepsTreatedAsImmediate(t *testing.T) {
	arb, store := newTestArbiter()
	arb.Request(Request{Param: "saturation", To: param.Number(1.1), Steps: -3, Source: SourceUI}, 120)
	if got := resolvedNum(t, store, "saturation"); got != 1.1 {
		t.Fatalf("negative step count must apply immediately, got %v", got)
	}
}

func TestUnknownParameterIsNoOp(t *testing.T) {
	arb, _ := newTestArbiter()
	arb.Request(Request{Param: "doesNotExist", To: param.Number(1), Source: SourceMIDI}, 120)
	if arb.ActiveCount() != 0 {
		t.Fatalf("unknown parameter must not create animations")
	}
}

func TestNonNumericSnapsOnlyAtCompletion(t *testing.T) {
	arb, store := newTestArbiter()

	arb.Request(Request{Param: "pattern", To: param.Text("ripples"), Steps: 1, Source: SourcePattern}, 120)
	for i := 0; i < 7; i++ {
		arb.Advance()
		v, _ := store.Get("pattern")
		if v.Text != "plasma" {
			t.Fatalf("text parameter must not expose intermediate values, got %q", v.Text)
		}
	}
	arb.Advance()
	v, _ := store.Get("pattern")
	if v.Text != "ripples" {
		t.Fatalf("text parameter must snap at completion, got %q", v.Text)
	}
}

func TestCancelRetainsLastWrittenValue(t *testing.T) {
	arb, store := newTestArbiter()

	from := param.Number(0)
	arb.Request(Request{Param: "frequency", From: &from, To: param.Number(8), Steps: 1, Source: SourceUI}, 120)
	arb.Advance()
	arb.Advance()
	mid := resolvedNum(t, store, "frequency")
	if mid == 0 || mid == 8 {
		t.Fatalf("expected mid-flight value, got %v", mid)
	}

	arb.CancelFor("frequency")
	arb.Advance()
	if got := resolvedNum(t, store, "frequency"); got != mid {
		t.Fatalf("cancel must not touch resolved state: %v -> %v", mid, got)
	}

	arb.Request(Request{Param: "frequency", To: param.Number(8), Steps: 1, Source: SourceUI}, 120)
	arb.CancelAll()
	if arb.ActiveCount() != 0 {
		t.Fatalf("cancelAll must drop every animation")
	}
}

func TestLerpMidpointIsHalfway(t *testing.T) {
	arb, store := newTestArbiter()

	from := param.Number(0)
	arb.Request(Request{Param: "swirl", From: &from, To: param.Number(1), Steps: 1, Source: SourceUI}, 120)
	for i := 0; i < 4; i++ { // 4 of 8 frames
		arb.Advance()
	}
	if got := resolvedNum(t, store, "swirl"); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("half-way progress: got %v want 0.5", got)
	}
}
