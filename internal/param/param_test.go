package param

import (
	"math"
	"testing"
)

func TestValueEqualComparesColorListsStructurally(t *testing.T) {
	a := Colors(ColorStop{Pos: 0, RGB: [3]uint8{1, 2, 3}}, ColorStop{Pos: 1, RGB: [3]uint8{4, 5, 6}})
	b := Colors(ColorStop{Pos: 0, RGB: [3]uint8{1, 2, 3}}, ColorStop{Pos: 1, RGB: [3]uint8{4, 5, 6}})
	if !a.Equal(b) {
		t.Fatalf("identical color lists should be equal")
	}
	b.Colors[1].RGB[0] = 9
	if a.Equal(b) {
		t.Fatalf("differing color lists should not be equal")
	}
	if a.Equal(Number(1)) {
		t.Fatalf("mixed kinds should not be equal")
	}
}

func TestLerpNumberLandsExactly(t *testing.T) {
	from, to := Number(0.1), Number(0.3)
	got := Lerp(from, to, 1.0)
	if got.Num != to.Num {
		t.Fatalf("lerp at t=1 must return target bit-for-bit: got %v want %v", got.Num, to.Num)
	}
	mid := Lerp(from, to, 0.5)
	if math.Abs(mid.Num-0.2) > 1e-12 {
		t.Fatalf("lerp midpoint: got %v", mid.Num)
	}
}

func TestLerpNonNumericHoldsUntilComplete(t *testing.T) {
	from, to := Text("plasma"), Text("waves")
	if got := Lerp(from, to, 0.99); got.Text != "plasma" {
		t.Fatalf("text must hold start value mid-flight, got %q", got.Text)
	}
	if got := Lerp(from, to, 1.0); got.Text != "waves" {
		t.Fatalf("text must snap at completion, got %q", got.Text)
	}
}

func TestScaleMIDICoversDeclaredRange(t *testing.T) {
	spec := Spec{Name: "brightness", Kind: KindNumber, Min: 0.5, Max: 2.5}
	if got := spec.ScaleMIDI(0); got != 0.5 {
		t.Fatalf("cc 0: got %v want 0.5", got)
	}
	if got := spec.ScaleMIDI(127); got != 2.5 {
		t.Fatalf("cc 127: got %v want 2.5", got)
	}
	if got := spec.ScaleMIDI(64); math.Abs(got-1.5079) > 1e-3 {
		t.Fatalf("cc 64: got %v", got)
	}
}

func TestMidpointUsesDeclaredRange(t *testing.T) {
	spec := Spec{Name: "gamma", Kind: KindNumber, Min: 0.1, Max: 3}
	if got := spec.Midpoint(); math.Abs(got-1.55) > 1e-12 {
		t.Fatalf("midpoint: got %v want 1.55", got)
	}
}

func TestStoreSeedsDefaultsAndIgnoresUnknown(t *testing.T) {
	st := NewStore(DefaultSchema())
	v, ok := st.Get("frequency")
	if !ok || v.Num != 6 {
		t.Fatalf("frequency default: got %v ok=%v", v, ok)
	}
	st.Set("notAParameter", Number(1))
	if _, ok := st.Get("notAParameter"); ok {
		t.Fatalf("unknown parameter must not be stored")
	}
}

func TestSnapshotIsDetachedCopy(t *testing.T) {
	st := NewStore(DefaultSchema())
	snap := st.Snapshot()
	st.Set("brightness", Number(2.0))
	if snap.Num("brightness", -1) == 2.0 {
		t.Fatalf("snapshot must not observe later writes")
	}
	if got := snap.Str("pattern", ""); got != "plasma" {
		t.Fatalf("snapshot pattern: got %q", got)
	}
}
