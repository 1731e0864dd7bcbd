package analyzer

import (
	"math"
	"testing"
)

func TestAverage(t *testing.T) {
	vals := []float64{0.2, 0.4, 0.6, 0.8}
	want := 0.5
	if got := average(vals); math.Abs(got-want) > 1e-6 {
		t.Fatalf("average=%f want=%f", got, want)
	}
}

func TestNextPow2(t *testing.T) {
	cases := map[int]int{
		0:   1,
		1:   1,
		2:   2,
		3:   4,
		5:   8,
		16:  16,
		31:  32,
		257: 512,
	}
	for input, want := range cases {
		if got := nextPow2(input); got != want {
			t.Fatalf("nextPow2(%d)=%d want=%d", input, got, want)
		}
	}
}

func TestDynamicsWithLowPeakReturnsValue(t *testing.T) {
	if got := dynamics(0.5, 0.0); got != 0.5 {
		t.Fatalf("dynamics for zero peak: got=%f want=0.5", got)
	}
}

func TestGateSilencesWeakSignals(t *testing.T) {
	f := Features{Bass: 0.05, Mid: 0.05, Treble: 0.05, Overall: 0.05, IsDrop: true}
	gated := f.Gate(0.1)
	if gated.Bass != 0 || gated.Overall != 0 {
		t.Fatalf("expected gated silence, got %+v", gated)
	}
	if gated.IsDrop {
		t.Fatalf("drop flag should clear when all bands are silent")
	}
}

func TestAnalyzeSineConcentratesEnergyInOneBand(t *testing.T) {
	a := New(Config{SampleRate: 44_100})

	// 100 Hz sine lands squarely in the bass band.
	samples := make([]float32, 2048)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 100 * float64(i) / 44_100))
	}

	var feat Features
	for i := 0; i < 5; i++ {
		feat = a.Analyze(samples, 1.0/60)
	}
	if feat.Bass <= feat.Treble {
		t.Fatalf("bass=%f should exceed treble=%f for a 100 Hz tone", feat.Bass, feat.Treble)
	}
}

func TestAnalyzeEmptyInputIsSilent(t *testing.T) {
	a := New(Config{})
	if got := a.Analyze(nil, 0.016); got != (Features{}) {
		t.Fatalf("expected zero features, got %+v", got)
	}
}
