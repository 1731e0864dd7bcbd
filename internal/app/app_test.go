package app

import (
	"testing"

	"github.com/padverb/vizor/internal/analyzer"
	"github.com/padverb/vizor/internal/engine"
)

func TestStatusBarPadsAndTruncates(t *testing.T) {
	if got := statusBar("abc", 5); got != "abc  " {
		t.Fatalf("padded = %q", got)
	}
	if got := statusBar("abcdef", 4); got != "abcd" {
		t.Fatalf("truncated = %q", got)
	}
	if got := statusBar("abc", 0); got != "abc" {
		t.Fatalf("zero width = %q", got)
	}
}

func TestReactiveMapperDrivesZoomPulse(t *testing.T) {
	eng := engine.New(engine.Options{})
	m := newReactiveMapper(eng)

	m.Apply(analyzer.Features{BeatStrength: 1.0})

	v, ok := eng.Resolved("zoomPulse")
	if !ok {
		t.Fatalf("zoomPulse missing from resolved state")
	}
	if v.Num <= 0 {
		t.Fatalf("a full-strength beat should raise zoomPulse, got %f", v.Num)
	}
}

func TestReactiveMapperReleasesAfterSilence(t *testing.T) {
	eng := engine.New(engine.Options{})
	m := newReactiveMapper(eng)

	m.Apply(analyzer.Features{BeatStrength: 1.0})
	peak, _ := eng.Resolved("zoomPulse")
	for i := 0; i < 30; i++ {
		m.Apply(analyzer.Features{})
	}
	settled, _ := eng.Resolved("zoomPulse")
	if settled.Num >= peak.Num {
		t.Fatalf("zoomPulse should decay after the beat: peak=%f settled=%f", peak.Num, settled.Num)
	}
}

func TestFakeGeneratorStaysInRange(t *testing.T) {
	f := newFakeGenerator()
	for i := 0; i < 100; i++ {
		feat := f.Next(1.0 / 60)
		for name, v := range map[string]float64{
			"bass": feat.Bass, "mid": feat.Mid, "treble": feat.Treble,
			"overall": feat.Overall, "beat": feat.BeatStrength,
		} {
			if v < 0 || v > 1 {
				t.Fatalf("%s out of range: %f", name, v)
			}
		}
	}
}
