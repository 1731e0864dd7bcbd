package param

import (
	"math"
	"sort"
)

// Spec declares one control parameter: its kind, numeric range and default.
// Min/Max only apply to numbers.
type Spec struct {
	Name    string
	Kind    Kind
	Min     float64
	Max     float64
	Default Value
}

// Midpoint returns the center of the declared range, used as the default
// value for freshly added keyframes. Non-numeric specs return 0.
func (s Spec) Midpoint() float64 {
	if s.Kind != KindNumber {
		return 0
	}
	return (s.Min + s.Max) / 2
}

// ScaleMIDI maps a 7-bit controller value (0..127) into the declared range.
func (s Spec) ScaleMIDI(value uint8) float64 {
	if value > 127 {
		value = 127
	}
	return s.Min + float64(value)/127.0*(s.Max-s.Min)
}

// ClampTo limits a scalar to the declared range.
func (s Spec) ClampTo(v float64) float64 {
	return Clamp(v, s.Min, s.Max)
}

// Schema is the closed set of parameters the engine animates.
type Schema map[string]Spec

// Lookup returns the spec for name.
func (sc Schema) Lookup(name string) (Spec, bool) {
	s, ok := sc[name]
	return s, ok
}

// Names returns all parameter names sorted.
func (sc Schema) Names() []string {
	names := make([]string, 0, len(sc))
	for name := range sc {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func number(name string, min, max, def float64) Spec {
	return Spec{Name: name, Kind: KindNumber, Min: min, Max: max, Default: Number(def)}
}

func text(name, def string) Spec {
	return Spec{Name: name, Kind: KindText, Default: Text(def)}
}

// DefaultSchema declares the visual parameters the renderer consumes.
// Defaults match a calm idle frame.
func DefaultSchema() Schema {
	specs := []Spec{
		number("frequency", 0.1, 20, 6),
		number("amplitude", 0, 3, 0.4),
		number("speed", 0, 2, 0.05),
		number("scaleSize", 0.1, 4, 1),
		number("brightness", 0, 2.2, 0.6),
		number("contrast", 0.2, 2, 0.8),
		number("saturation", 0, 1.5, 0.9),
		number("gamma", 0.1, 3, 1),
		number("colorShift", 0, 2*math.Pi, 0),
		number("noiseStrength", 0, 1.5, 0.1),
		number("noiseScale", 0.001, 0.02, 0.006),
		number("vignette", 0, 1, 0.25),
		number("vignetteSoftness", 0, 1, 0.55),
		number("glyphSharpness", 0.2, 3, 1),
		number("swirl", 0, 1.5, 0.4),
		number("zoomPulse", 0, 2, 0),
		text("pattern", "plasma"),
		text("colorMode", "chromatic"),
		{
			Name: "colorStops",
			Kind: KindColorList,
			Default: Colors(
				ColorStop{Pos: 0, RGB: [3]uint8{16, 24, 64}},
				ColorStop{Pos: 1, RGB: [3]uint8{240, 180, 60}},
			),
		},
	}

	sc := make(Schema, len(specs))
	for _, s := range specs {
		sc[s.Name] = s
	}
	return sc
}
