package render

import (
	"math"
	"testing"

	"github.com/padverb/vizor/internal/analyzer"
	"github.com/padverb/vizor/internal/param"
)

func TestViewFromSnapshotUsesStoreValues(t *testing.T) {
	store := param.NewStore(param.DefaultSchema())
	store.Set("brightness", param.Number(1.5))
	store.Set("pattern", param.Text("ripples"))

	v := ViewFromSnapshot(store.Snapshot(), 2.0)
	if v.Brightness != 1.5 {
		t.Fatalf("brightness=%f want 1.5", v.Brightness)
	}
	if v.Pattern != "ripples" {
		t.Fatalf("pattern=%q want ripples", v.Pattern)
	}
	if v.Time != 2.0 {
		t.Fatalf("time=%f want 2.0", v.Time)
	}
}

func TestStopColorInterpolatesBetweenStops(t *testing.T) {
	v := View{Stops: []param.ColorStop{
		{Pos: 0, RGB: [3]uint8{0, 0, 0}},
		{Pos: 1, RGB: [3]uint8{255, 0, 0}},
	}}

	r, g, b, ok := v.StopColor(0.5)
	if !ok {
		t.Fatalf("expected gradient sample")
	}
	if math.Abs(r-0.5) > 1e-9 || g != 0 || b != 0 {
		t.Fatalf("StopColor(0.5)=(%f,%f,%f)", r, g, b)
	}

	if _, _, _, ok := (View{}).StopColor(0.5); ok {
		t.Fatalf("empty stop list should not produce a color")
	}
}

func TestRenderProducesRequestedDimensions(t *testing.T) {
	r, err := New(32, 8, "box", "eco", false, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	store := param.NewStore(param.DefaultSchema())
	frame := r.Render(ViewFromSnapshot(store.Snapshot(), 0.5), analyzer.Features{}, 60)

	if len(frame.Lines) != 8 {
		t.Fatalf("got %d lines, want 8", len(frame.Lines))
	}
	for i, line := range frame.Lines {
		if got := len([]rune(line)); got != 32 {
			t.Fatalf("line %d has %d runes, want 32", i, got)
		}
	}
}

func TestUnknownPatternFallsBackToPlasma(t *testing.T) {
	entry, name := lookupPattern("does-not-exist")
	if name != "plasma" || entry.fn == nil {
		t.Fatalf("fallback pattern=%q", name)
	}
}

func TestUnknownPaletteFallsBackToDefault(t *testing.T) {
	if len(Palette("nope")) != len(Palette("default")) {
		t.Fatalf("unknown palette should return default ramp")
	}
}

func TestGrayscaleMapsToANSIGrayscaleRamp(t *testing.T) {
	if got := rgbToANSI(0.5, 0.5, 0.5); got < 232 || got > 255 {
		t.Fatalf("rgbToANSI gray = %d, want 232..255", got)
	}
	if got := rgbToANSI(1, 0, 0); got < 16 || got > 231 {
		t.Fatalf("rgbToANSI red = %d, want color cube", got)
	}
}
