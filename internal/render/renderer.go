package render

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/padverb/vizor/internal/analyzer"
)

type colorMode string
type qualityMode string
type backendMode int

const (
	colorModeChromatic colorMode = "chromatic"
	colorModeFire      colorMode = "fire"
	colorModeAurora    colorMode = "aurora"
	colorModeMono      colorMode = "mono"
	colorModeStops     colorMode = "stops"

	qualityHigh     qualityMode = "high"
	qualityBalanced qualityMode = "balanced"
	qualityEco      qualityMode = "eco"
)

const (
	backendANSI backendMode = iota
	backendSDL
)

// ErrRendererQuit is returned from Frame.Present when the render backend
// asks the host loop to shut down.
var ErrRendererQuit = errors.New("renderer requested quit")

var colorModeNames = []string{
	string(colorModeChromatic),
	string(colorModeFire),
	string(colorModeAurora),
	string(colorModeMono),
	string(colorModeStops),
}

var qualityModeNames = []string{
	string(qualityHigh),
	string(qualityBalanced),
	string(qualityEco),
}

// ColorModeNames returns the supported color modes.
func ColorModeNames() []string {
	out := make([]string, len(colorModeNames))
	copy(out, colorModeNames)
	sort.Strings(out)
	return out
}

// QualityModeNames returns the supported quality modes.
func QualityModeNames() []string {
	out := make([]string, len(qualityModeNames))
	copy(out, qualityModeNames)
	sort.Strings(out)
	return out
}

func parseColorMode(name string) colorMode {
	switch strings.ToLower(name) {
	case "fire":
		return colorModeFire
	case "aurora", "cool":
		return colorModeAurora
	case "mono", "monochrome", "bw", "gray":
		return colorModeMono
	case "stops", "gradient", "custom":
		return colorModeStops
	default:
		return colorModeChromatic
	}
}

func parseQualityMode(name string) qualityMode {
	switch strings.ToLower(name) {
	case "eco", "low", "pi":
		return qualityEco
	case "balanced", "medium", "mid":
		return qualityBalanced
	case "high", "full", "max":
		return qualityHigh
	default:
		return qualityBalanced
	}
}

// Renderer converts a parameter view into terminal or SDL frames. Which
// pattern and color mode get drawn comes from the view each frame, so a
// sequencer step that changes the pattern parameter takes effect on the
// very next frame.
type Renderer struct {
	width         int
	height        int
	palette       []rune
	paletteName   string
	quality       qualityMode
	mode          backendMode
	colorOnAudio  bool
	useANSI       bool
	sdl           *sdlState
	xCoords       []float64
	yCoords       []float64
	statusBuilder strings.Builder
}

// Frame contains the rendered lines and optional status text. For the
// SDL backend Lines is empty and Present pushes the pixel buffer.
type Frame struct {
	Lines   []string
	Status  string
	Present func(status string) error
}

var (
	resetANSI       = "\x1b[0m"
	precomputedANSI [256]string
)

func init() {
	for i := range precomputedANSI {
		precomputedANSI[i] = "\x1b[38;5;" + strconv.Itoa(i) + "m"
	}
}

// New creates a Renderer drawing to the terminal.
func New(width, height int, paletteName, qualityName string, colorOnAudio, useANSI bool) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d height=%d", width, height)
	}

	r := &Renderer{
		width:        width,
		height:       height,
		colorOnAudio: colorOnAudio,
		useANSI:      useANSI,
		mode:         backendANSI,
	}
	r.SetQuality(qualityName)
	r.SetPalette(paletteName)

	return r, nil
}

// NewSDL creates a Renderer drawing into an SDL window. Only available
// when built with the sdl tag.
func NewSDL(width, height int, qualityName string, colorOnAudio bool) (*Renderer, error) {
	r, err := New(width, height, "default", qualityName, colorOnAudio, false)
	if err != nil {
		return nil, err
	}
	if err := r.initSDL(width, height); err != nil {
		return nil, err
	}
	return r, nil
}

// SetPalette switches the glyph ramp.
func (r *Renderer) SetPalette(name string) {
	if name == "" {
		name = "default"
	}
	r.palette = Palette(name)
	r.paletteName = name
}

// SetQuality updates the renderer quality preset.
func (r *Renderer) SetQuality(name string) {
	if name == "" {
		name = string(qualityBalanced)
	}
	r.quality = parseQualityMode(name)
	setNoiseProfile(r.quality)
}

// SetColorOnAudio toggles audio-gated color output.
func (r *Renderer) SetColorOnAudio(on bool) { r.colorOnAudio = on }

// Resize updates the framebuffer dimensions.
func (r *Renderer) Resize(width, height int) {
	changed := false
	if width > 0 && r.width != width {
		r.width = width
		changed = true
	}
	if height > 0 && r.height != height {
		r.height = height
		changed = true
	}
	if changed {
		r.xCoords = nil
		r.yCoords = nil
		r.resizeSDL()
	}
}

func (r *Renderer) PaletteName() string { return r.paletteName }
func (r *Renderer) QualityName() string { return string(r.quality) }
func (r *Renderer) ColorOnAudio() bool  { return r.colorOnAudio }
func (r *Renderer) Windowed() bool      { return r.windowedSDL() }

// Close releases backend resources.
func (r *Renderer) Close() error {
	return r.closeSDL()
}

// Render generates a frame from the parameter view and audio features.
func (r *Renderer) Render(v View, feat analyzer.Features, fps float64) Frame {
	if r.width <= 0 || r.height <= 0 {
		return Frame{}
	}

	activation := r.audioActivation(feat)
	ctx := r.buildFrameParams(v)

	scale := v.ScaleSize
	if scale <= 0 {
		scale = 1
	}

	r.ensureCoordinateCache(r.width, r.height)

	if r.mode == backendSDL {
		return r.renderSDL(v, feat, fps, ctx, activation, r.xCoords, r.yCoords, scale)
	}

	width := r.width
	height := r.height
	useANSI := r.useANSI
	xCoords := r.xCoords
	yCoords := r.yCoords

	lines := make([]string, height)

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > height {
		numWorkers = height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	rowJobs := make(chan int, numWorkers)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rowJobs {
				var builder strings.Builder
				builder.Grow(width * 8)
				lastColor := -1
				vy := yCoords[y] * scale
				for x := 0; x < width; x++ {
					vx := xCoords[x] * scale
					px := r.samplePixel(vx, vy, v, ctx, feat, activation)
					if useANSI {
						fg := hsvOrStops(v, ctx, px)
						if fg != lastColor {
							builder.WriteString(colorCode(fg))
							lastColor = fg
						}
					}
					builder.WriteRune(px.glyph)
				}
				if useANSI {
					builder.WriteString(resetANSI)
				}
				lines[y] = builder.String()
			}
		}()
	}

	for y := 0; y < height; y++ {
		rowJobs <- y
	}
	close(rowJobs)
	wg.Wait()

	return Frame{
		Lines:  lines,
		Status: r.buildStatus(v, feat, fps),
	}
}

type pixel struct {
	glyph   rune
	h, s, v float64
}

func (r *Renderer) samplePixel(vx, vy float64, v View, ctx frameParams, feat analyzer.Features, activation float64) pixel {
	baseX := vx * ctx.zoom
	baseY := vy * ctx.zoom

	rotX := baseX*ctx.cosRot - baseY*ctx.sinRot
	rotY := baseX*ctx.sinRot + baseY*ctx.cosRot

	radius := math.Hypot(rotX, rotY)
	angle := math.Atan2(rotY, rotX)
	if ctx.swirlStrength != 0 {
		strength := ctx.swirlStrength
		switch ctx.quality {
		case qualityEco:
			strength *= 0.55
		case qualityBalanced:
			strength *= 0.85
		}
		atten := math.Exp(-radius * 1.6)
		angle += strength * atten * math.Sin(ctx.time*1.5+radius*2.3)
		radius += strength * 0.12 * math.Sin(ctx.time*1.15+angle*1.4)
	}

	distortedX := radius * math.Cos(angle)
	distortedY := radius * math.Sin(angle)

	if ctx.warpStrength > 0 {
		warp := fractalNoise((vx+ctx.time*0.15)/ctx.noiseScale, (vy-ctx.time*0.12)/ctx.noiseScale)
		strength := ctx.warpStrength
		switch ctx.quality {
		case qualityEco:
			strength *= 0.35
		case qualityBalanced:
			strength *= 0.7
		}
		distortedX += warp * strength
		distortedY += warp * strength
	}

	patternValue := ctx.pattern(distortedX, distortedY, v)
	combined := patternValue
	if ctx.detailWeight > 0 {
		detail := fractalNoise(distortedX*2+ctx.time*0.4, distortedY*2-ctx.time*0.3)
		combined = patternValue*(1-ctx.detailWeight) + detail*ctx.detailWeight
	}
	combined = clampFloat(combined, -1.0, 1.0)

	brightness := (combined*ctx.amplitude + 1.0) * 0.5
	brightness = clamp01(brightness)
	switch ctx.quality {
	case qualityEco:
		brightness = brightness * (0.7 + brightness*0.3)
	default:
		brightness = math.Pow(brightness, ctx.invGamma)
		brightness = math.Pow(brightness, ctx.invContrast)
	}
	brightness = clamp01(brightness * ctx.brightnessScale)

	if r.colorOnAudio {
		brightness = clamp01(lerp(0.04, brightness, activation))
	}

	if ctx.vignette > 0 {
		dist := math.Min(1.0, math.Hypot(vx, vy)*2.0)
		vig := clamp01(1.0 - ctx.vignette*math.Pow(dist, 1.2))
		brightness *= lerp(1.0, vig, 1.0-ctx.vignetteSoft)
	}

	brightness = clamp01(brightness)

	var glyphValue float64
	if ctx.quality == qualityEco {
		glyphValue = brightness
	} else {
		glyphValue = math.Pow(brightness, ctx.glyphSharpness)
	}
	index := clampInt(int(glyphValue*float64(len(r.palette)-1)+0.5), 0, len(r.palette)-1)

	px := pixel{glyph: r.palette[index]}
	px.h, px.s, px.v = r.colorFromMode(combined, brightness, v, ctx, feat, activation)
	return px
}

type frameParams struct {
	time            float64
	zoom            float64
	sinRot          float64
	cosRot          float64
	noiseScale      float64
	warpStrength    float64
	detailWeight    float64
	amplitude       float64
	invGamma        float64
	invContrast     float64
	brightnessScale float64
	vignette        float64
	vignetteSoft    float64
	glyphSharpness  float64
	swirlStrength   float64
	pattern         patternFunc
	patternName     string
	color           colorMode
	quality         qualityMode
}

func (r *Renderer) buildFrameParams(v View) frameParams {
	entry, patternName := lookupPattern(strings.ToLower(v.Pattern))

	zoom := 1.0 + v.ZoomPulse*0.35*math.Sin(v.Time*2.1)
	sinRot, cosRot := math.Sincos(v.Time * 0.2)
	noiseScale := math.Max(0.001, v.NoiseScale*40.0)
	warpStrength := v.NoiseStrength * 0.35
	detailWeight := clampFloat(entry.detailMix*v.NoiseStrength, 0.0, 1.0)
	swirlStrength := v.Swirl * (0.5 + v.ZoomPulse*0.5)

	switch r.quality {
	case qualityEco:
		zoom = lerp(1.0, zoom, 0.6)
		detailWeight *= 0.35
		warpStrength *= 0.6
		swirlStrength *= 0.7
	case qualityBalanced:
		detailWeight *= 0.75
		warpStrength *= 0.85
		swirlStrength *= 0.9
	}

	return frameParams{
		time:            v.Time,
		zoom:            zoom,
		sinRot:          sinRot,
		cosRot:          cosRot,
		noiseScale:      noiseScale,
		warpStrength:    warpStrength,
		detailWeight:    detailWeight,
		amplitude:       clampFloat(v.Amplitude, 0.0, 3.0),
		invGamma:        1.0 / math.Max(0.1, v.Gamma),
		invContrast:     1.0 / math.Max(0.2, v.Contrast),
		brightnessScale: clampFloat(v.Brightness, 0.0, 3.0),
		vignette:        clampFloat(v.Vignette, 0.0, 1.0),
		vignetteSoft:    clamp01(v.VignetteSoftness),
		glyphSharpness:  math.Max(0.2, v.GlyphSharpness),
		swirlStrength:   swirlStrength,
		pattern:         entry.fn,
		patternName:     patternName,
		color:           parseColorMode(v.ColorMode),
		quality:         r.quality,
	}
}

func (r *Renderer) colorFromMode(base, brightness float64, v View, ctx frameParams, feat analyzer.Features, activation float64) (float64, float64, float64) {
	baseNorm := clamp01((base + 1.0) * 0.5)
	shift := v.NormShift()

	var h, s, val float64
	switch ctx.color {
	case colorModeFire:
		h = clamp01(0.02 + baseNorm*0.08 + shift*0.1)
		s = clamp01(0.7 + brightness*0.25)
		val = clamp01(0.35 + brightness*0.8 + baseNorm*0.2)
	case colorModeAurora:
		h = clamp01(0.45 + baseNorm*0.25 + shift*0.3)
		s = clamp01(0.45 + v.Saturation*0.45)
		val = clamp01(0.28 + brightness*0.85 + baseNorm*0.12)
	case colorModeMono:
		h = shift
		s = 0.0
		val = clamp01(brightness)
	case colorModeStops:
		// hue resolved later from the stop gradient; carry brightness
		h = math.Mod(baseNorm+shift, 1.0)
		s = clamp01(v.Saturation)
		val = clamp01(brightness)
	default:
		h = clamp01(shift + baseNorm*0.35)
		s = clamp01(0.35 + v.Saturation*0.5)
		val = clamp01(brightness*0.9 + baseNorm*0.2)
	}

	if r.colorOnAudio {
		if feat.IsDrop {
			activation = clamp01(activation + 0.2)
		}
		s = clamp01(s * activation)
		val = clamp01(0.05 + val*activation)
		if activation < 0.08 {
			s = 0
		}
	}

	return h, s, val
}

// hsvOrStops maps a sampled pixel to an ANSI color index, routing
// through the stop gradient when the view's color mode asks for it.
func hsvOrStops(v View, ctx frameParams, px pixel) int {
	if ctx.color == colorModeStops {
		if rr, gg, bb, ok := v.StopColor(px.h); ok {
			return rgbToANSI(rr*px.v, gg*px.v, bb*px.v)
		}
	}
	return hsvToANSI(px.h, px.s, px.v)
}

// pixelRGB resolves a sampled pixel to linear RGB for the SDL backend.
func pixelRGB(v View, ctx frameParams, px pixel) (float64, float64, float64) {
	if ctx.color == colorModeStops {
		if rr, gg, bb, ok := v.StopColor(px.h); ok {
			return rr * px.v, gg * px.v, bb * px.v
		}
	}
	return hsvToRGB(px.h, px.s, px.v)
}

func colorCode(index int) string {
	if index < 0 {
		index = 0
	} else if index >= len(precomputedANSI) {
		index = len(precomputedANSI) - 1
	}
	return precomputedANSI[index]
}

func hsvToANSI(h, s, v float64) int {
	r, g, b := hsvToRGB(h, s, v)
	return rgbToANSI(r, g, b)
}

func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	h = clamp01(h)
	s = clamp01(s)
	v = clamp01(v)

	if s == 0 {
		return v, v, v
	}

	hv := h * 6.0
	i := math.Floor(hv)
	f := hv - i
	p := v * (1.0 - s)
	q := v * (1.0 - s*f)
	t := v * (1.0 - s*(1.0-f))

	switch int(i) % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

func rgbToANSI(r, g, b float64) int {
	r = clamp01(r)
	g = clamp01(g)
	b = clamp01(b)

	// Grayscale palette for low saturation/contrast
	if math.Abs(r-g) < 0.02 && math.Abs(g-b) < 0.02 {
		gray := int(clampFloat(math.Round(r*23), 0, 23))
		return 232 + gray
	}

	ri := int(clampFloat(r*5+0.5, 0, 5))
	gi := int(clampFloat(g*5+0.5, 0, 5))
	bi := int(clampFloat(b*5+0.5, 0, 5))

	return 16 + 36*ri + 6*gi + bi
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

func (r *Renderer) audioActivation(feat analyzer.Features) float64 {
	if !r.colorOnAudio {
		return 1.0
	}
	base := feat.Overall*1.45 + feat.BeatStrength*0.6
	if feat.IsDrop {
		base += 0.3
	}
	return clamp01(base)
}

func (r *Renderer) ensureCoordinateCache(width, height int) {
	if len(r.xCoords) != width {
		r.xCoords = make([]float64, width)
		if width > 1 {
			scale := 1.0 / float64(width)
			for x := range r.xCoords {
				r.xCoords[x] = float64(x)*scale - 0.5
			}
		}
	}
	if len(r.yCoords) != height {
		r.yCoords = make([]float64, height)
		if height > 1 {
			scale := 1.0 / float64(height)
			for y := range r.yCoords {
				r.yCoords[y] = float64(y)*scale - 0.5
			}
		}
	}
}

func (r *Renderer) buildStatus(v View, feat analyzer.Features, fps float64) string {
	builder := &r.statusBuilder
	builder.Reset()
	builder.Grow(128)
	builder.WriteString(strings.ToUpper(v.ColorMode))
	builder.WriteString(" | palette=")
	builder.WriteString(r.paletteName)
	builder.WriteString(" pattern=")
	builder.WriteString(v.Pattern)
	builder.WriteString(" quality=")
	builder.WriteString(r.QualityName())
	if r.colorOnAudio {
		builder.WriteString(" col=AUDIO")
	}
	builder.WriteString(" | bass ")
	appendFloat(builder, feat.Bass, 2)
	builder.WriteString(" beat ")
	appendFloat(builder, feat.BeatStrength, 2)
	builder.WriteString(" fps ")
	appendFloat(builder, fps, 1)
	return builder.String()
}

func appendFloat(builder *strings.Builder, value float64, precision int) {
	var buf [32]byte
	b := strconv.AppendFloat(buf[:0], value, 'f', precision, 64)
	builder.Write(b)
}
