package render

import (
	"math"

	"github.com/padverb/vizor/internal/param"
)

// View is the flattened parameter state a single frame is drawn from.
// It is built once per frame from a store snapshot so the hot sampling
// loop never touches maps.
type View struct {
	Frequency        float64
	Amplitude        float64
	ScaleSize        float64
	Brightness       float64
	Contrast         float64
	Saturation       float64
	Gamma            float64
	ColorShift       float64
	NoiseStrength    float64
	NoiseScale       float64
	Vignette         float64
	VignetteSoftness float64
	GlyphSharpness   float64
	Swirl            float64
	ZoomPulse        float64
	Pattern          string
	ColorMode        string
	Stops            []param.ColorStop
	Time             float64
}

// ViewFromSnapshot resolves the named parameters, falling back to the
// schema defaults for anything missing from the snapshot.
func ViewFromSnapshot(s param.Snapshot, t float64) View {
	return View{
		Frequency:        s.Num("frequency", 6),
		Amplitude:        s.Num("amplitude", 0.4),
		ScaleSize:        s.Num("scaleSize", 1),
		Brightness:       s.Num("brightness", 0.6),
		Contrast:         s.Num("contrast", 0.8),
		Saturation:       s.Num("saturation", 0.9),
		Gamma:            s.Num("gamma", 1),
		ColorShift:       s.Num("colorShift", 0),
		NoiseStrength:    s.Num("noiseStrength", 0.1),
		NoiseScale:       s.Num("noiseScale", 0.006),
		Vignette:         s.Num("vignette", 0.25),
		VignetteSoftness: s.Num("vignetteSoftness", 0.55),
		GlyphSharpness:   s.Num("glyphSharpness", 1),
		Swirl:            s.Num("swirl", 0.4),
		ZoomPulse:        s.Num("zoomPulse", 0),
		Pattern:          s.Str("pattern", "plasma"),
		ColorMode:        s.Str("colorMode", "chromatic"),
		Stops:            s.Stops("colorStops"),
		Time:             t,
	}
}

// StopColor samples the view's color stop gradient at position u in [0,1].
// Returns false when the view carries fewer than two stops.
func (v View) StopColor(u float64) (float64, float64, float64, bool) {
	stops := v.Stops
	if len(stops) < 2 {
		return 0, 0, 0, false
	}
	if u <= stops[0].Pos {
		c := stops[0].RGB
		return float64(c[0]) / 255, float64(c[1]) / 255, float64(c[2]) / 255, true
	}
	for i := 1; i < len(stops); i++ {
		if u <= stops[i].Pos {
			lo, hi := stops[i-1], stops[i]
			span := hi.Pos - lo.Pos
			f := 0.0
			if span > 0 {
				f = (u - lo.Pos) / span
			}
			r := lerp(float64(lo.RGB[0]), float64(hi.RGB[0]), f) / 255
			g := lerp(float64(lo.RGB[1]), float64(hi.RGB[1]), f) / 255
			b := lerp(float64(lo.RGB[2]), float64(hi.RGB[2]), f) / 255
			return r, g, b, true
		}
	}
	c := stops[len(stops)-1].RGB
	return float64(c[0]) / 255, float64(c[1]) / 255, float64(c[2]) / 255, true
}

// NormShift maps the colorShift parameter (radians) onto [0,1).
func (v View) NormShift() float64 {
	shift := math.Mod(v.ColorShift/(2*math.Pi), 1.0)
	if shift < 0 {
		shift += 1.0
	}
	return shift
}
