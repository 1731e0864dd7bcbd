package render

import (
	"math"
	"sort"
)

type patternFunc func(x, y float64, v View) float64

type patternEntry struct {
	fn        patternFunc
	detailMix float64
}

var patternRegistry = map[string]patternEntry{
	"plasma":  {patternPlasma, 0.25},
	"waves":   {patternWaves, 0.15},
	"ripples": {patternRipples, 0.2},
	"nebula":  {patternNebula, 0.45},
	"noise":   {patternNoise, 0.0},
}

// PatternNames returns the available pattern identifiers, sorted.
func PatternNames() []string {
	names := make([]string, 0, len(patternRegistry))
	for name := range patternRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupPattern(name string) (patternEntry, string) {
	if entry, ok := patternRegistry[name]; ok {
		return entry, name
	}
	return patternRegistry["plasma"], "plasma"
}

func patternPlasma(x, y float64, v View) float64 {
	t := v.Time
	v1 := math.Sin((x*3.4 + t*1.2) * 0.9)
	v2 := math.Sin((y*4.1 - t*0.7) * 1.1)
	v3 := math.Sin((x+y)*2.3 + t*1.7)
	return (v1 + v2 + v3) / 3.0
}

func patternWaves(x, y float64, v View) float64 {
	freq := v.Frequency * 0.6
	t := v.Time
	return math.Sin((x+t*0.8)*freq) * math.Cos((y-t*0.5)*freq*1.1)
}

func patternRipples(x, y float64, v View) float64 {
	r := math.Hypot(x, y)
	theta := math.Atan2(y, x)
	t := v.Time
	return math.Sin(r*v.Frequency*1.6 - t*2.2 + math.Sin(theta*3+t)*0.5)
}

func patternNebula(x, y float64, v View) float64 {
	t := v.Time
	base := patternPlasma(x*0.8, y*0.8, v)
	swirl := math.Sin((x-y)*1.5 + t*0.9)
	noise := fractalNoise(x*1.2+t*0.1, y*1.2-t*0.15)
	return base*0.6 + swirl*0.2 + noise*0.6
}

func patternNoise(x, y float64, v View) float64 {
	t := v.Time
	scale := math.Max(0.001, v.NoiseScale*60.0)
	return fractalNoise((x+v.ColorShift)*scale+t*0.2, (y-v.ColorShift)*scale-t*0.18)
}

// noiseOctaves is adjusted by the quality preset; fewer octaves keeps
// eco mode usable on small boards.
var noiseOctaves = 4

func setNoiseProfile(q qualityMode) {
	switch q {
	case qualityEco:
		noiseOctaves = 2
	case qualityBalanced:
		noiseOctaves = 3
	default:
		noiseOctaves = 4
	}
}

func fractalNoise(x, y float64) float64 {
	amp := 0.5
	freq := 1.0
	total := 0.0
	sumAmp := 0.0

	for i := 0; i < noiseOctaves; i++ {
		total += valueNoise2(x*freq, y*freq) * amp
		sumAmp += amp
		amp *= 0.5
		freq *= 2.0
	}

	if sumAmp == 0 {
		return 0
	}
	return (total/sumAmp)*2.0 - 1.0
}

func valueNoise2(x, y float64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	x1 := x0 + 1.0
	y1 := y0 + 1.0

	sx := smoothstep(x - x0)
	sy := smoothstep(y - y0)

	n00 := hash2(x0, y0)
	n10 := hash2(x1, y0)
	n01 := hash2(x0, y1)
	n11 := hash2(x1, y1)

	ix0 := lerp(n00, n10, sx)
	ix1 := lerp(n01, n11, sx)

	return lerp(ix0, ix1, sy)
}

func hash2(x, y float64) float64 {
	return frac(math.Sin(x*127.1+y*311.7) * 43758.5453123)
}

func smoothstep(v float64) float64 {
	return v * v * (3 - 2*v)
}

func frac(v float64) float64 {
	return v - math.Floor(v)
}
