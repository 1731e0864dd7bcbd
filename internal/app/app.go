// Package app hosts the frame loop: it advances the engine, renders the
// resolved parameter state, and feeds keyboard and audio input back in.
package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/padverb/vizor/internal/analyzer"
	"github.com/padverb/vizor/internal/audio"
	"github.com/padverb/vizor/internal/engine"
	"github.com/padverb/vizor/internal/param"
	"github.com/padverb/vizor/internal/render"
	"golang.org/x/term"
)

// Config configures the application runtime.
type Config struct {
	Engine        *engine.Engine
	DeviceName    string
	Width         int
	Height        int
	TargetFPS     float64
	RingSize      int
	DisableAudio  bool
	AudioReactive bool
	NoiseFloor    float64
	ShowStatusBar bool
	Palette       string
	Quality       string
	UseSDL        bool
	UseANSI       bool
	ProfilePath   string
	Log           *log.Logger
}

type inputEvent struct {
	kind    inputKind
	pattern string
}

type inputKind int

const (
	inputRandomize inputKind = iota
	inputTransport
	inputBPMUp
	inputBPMDown
	inputPattern
	inputQuit
)

// App ties together the engine, audio capture, analysis, and rendering.
type App struct {
	cfg          Config
	eng          *engine.Engine
	renderer     *render.Renderer
	capture      *audio.Capture
	analyzer     *analyzer.Analyzer
	fake         *fakeGenerator
	reactive     *reactiveMapper
	prof         *profiler
	log          *log.Logger
	deviceLabel  string
	width        int
	height       int
	renderHeight int
	inputEvents  chan inputEvent
	rng          *rand.Rand
	time         float64
	last         time.Time
}

// New constructs the application using the provided configuration.
func New(cfg Config) (*App, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 60
	}
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stderr, "", log.LstdFlags)
	}
	if cfg.Width <= 0 {
		cfg.Width = 80
	}
	if cfg.Height <= 0 {
		cfg.Height = 24
	}
	renderHeight := cfg.Height
	if cfg.ShowStatusBar && renderHeight > 1 {
		renderHeight--
	}

	var (
		renderer *render.Renderer
		err      error
	)
	if cfg.UseSDL {
		renderer, err = render.NewSDL(cfg.Width, cfg.Height, cfg.Quality, cfg.AudioReactive)
	} else {
		renderer, err = render.New(cfg.Width, renderHeight, cfg.Palette, cfg.Quality, cfg.AudioReactive, cfg.UseANSI)
	}
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:          cfg,
		eng:          cfg.Engine,
		renderer:     renderer,
		log:          cfg.Log,
		width:        cfg.Width,
		height:       cfg.Height,
		renderHeight: renderHeight,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		prof:         newProfiler(cfg.ProfilePath, cfg.Log),
	}

	if cfg.DisableAudio {
		if cfg.AudioReactive {
			a.fake = newFakeGenerator()
			a.log.Println("audio disabled, using synthetic generator")
		}
	} else if cfg.AudioReactive {
		capture, err := audio.NewCapture(audio.Config{
			DeviceName: cfg.DeviceName,
			RingSize:   cfg.RingSize,
			Channels:   2,
		})
		if err != nil {
			return nil, fmt.Errorf("audio capture: %w", err)
		}
		a.capture = capture
		a.analyzer = analyzer.New(analyzer.Config{
			SampleRate: capture.SampleRate(),
		})
		if info := capture.Device(); info != nil {
			a.deviceLabel = info.Name
			a.log.Printf("audio capture started on %q @ %.0f Hz", info.Name, capture.SampleRate())
		}
	}
	if cfg.AudioReactive {
		a.reactive = newReactiveMapper(a.eng)
	}

	a.last = time.Now()
	return a, nil
}

// Run starts the render loop until context cancellation.
func (a *App) Run(ctx context.Context) error {
	frameDuration := time.Duration(float64(time.Second) / a.cfg.TargetFPS)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	if !a.renderer.Windowed() {
		enterAltScreen()
		clearScreen()
		hideCursor()
		defer func() {
			showCursor()
			exitAltScreen()
		}()
	}

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()
	a.startInputListener(inputCtx)
	a.ensureDimensions()

	for {
		select {
		case <-ctx.Done():
			moveCursorHome()
			return ctx.Err()
		case evt, ok := <-a.inputEvents:
			if !ok {
				a.inputEvents = nil
				continue
			}
			if quit := a.handleInput(evt); quit {
				moveCursorHome()
				return nil
			}
		case <-ticker.C:
			if err := a.step(); err != nil {
				if err == render.ErrRendererQuit {
					return nil
				}
				return err
			}
		}
	}
}

// Close releases held resources.
func (a *App) Close() error {
	a.eng.Stop()
	if a.prof != nil {
		_ = a.prof.Close()
	}
	if err := a.renderer.Close(); err != nil {
		return err
	}
	if a.capture != nil {
		return a.capture.Close()
	}
	return nil
}

func (a *App) step() error {
	a.ensureDimensions()
	a.prof.beginFrame()

	now := time.Now()
	delta := now.Sub(a.last).Seconds()
	if delta <= 0 {
		delta = 1.0 / a.cfg.TargetFPS
	}
	a.last = now

	var features analyzer.Features
	if a.capture != nil && a.analyzer != nil {
		features = a.analyzer.Analyze(a.capture.Samples(), delta).Gate(a.cfg.NoiseFloor)
	} else if a.fake != nil {
		features = a.fake.Next(delta)
	}
	if a.reactive != nil {
		a.reactive.Apply(features)
	}
	a.prof.markSection("audio")

	a.eng.Advance()
	snap := a.eng.Snapshot()
	a.prof.markSection("advance")

	a.time += snap.Num("speed", 0.05) * delta * 60
	view := render.ViewFromSnapshot(snap, a.time)

	fps := 1.0 / delta
	frame := a.renderer.Render(view, features, fps)
	a.prof.markSection("render")

	statusText := a.transportStatus() + " | " + frame.Status
	if a.deviceLabel != "" {
		statusText += " | mic=" + a.deviceLabel
	}

	if frame.Present != nil {
		if err := frame.Present(statusText); err != nil {
			return err
		}
	} else {
		moveCursorHome()
		for _, line := range frame.Lines {
			fmt.Println(line)
		}
		if a.cfg.ShowStatusBar {
			fmt.Println(statusBar(statusText, a.width))
		}
	}
	a.prof.endFrame()
	return nil
}

func (a *App) transportStatus() string {
	state := "stopped"
	if a.eng.Playing() {
		state = fmt.Sprintf("step %d/%d loop %d", a.eng.CurrentStep()+1, a.eng.StepCount(), a.eng.LoopCount())
	}
	return fmt.Sprintf("%.0f bpm %s", a.eng.BPM(), state)
}

func (a *App) handleInput(evt inputEvent) bool {
	switch evt.kind {
	case inputQuit:
		return true
	case inputTransport:
		if a.eng.Playing() {
			a.eng.Stop()
			a.log.Println("transport stopped")
		} else {
			a.eng.Play()
			a.log.Println("transport playing")
		}
	case inputBPMUp:
		if err := a.eng.SetBPM(a.eng.BPM() + 5); err != nil {
			a.log.Printf("bpm: %v", err)
		}
	case inputBPMDown:
		if err := a.eng.SetBPM(a.eng.BPM() - 5); err != nil {
			a.log.Printf("bpm: %v", err)
		}
	case inputPattern:
		a.eng.LoadPattern(evt.pattern)
	case inputRandomize:
		a.randomizeVisuals()
	}
	return false
}

func (a *App) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		a.log.Printf("keyboard input disabled: %v", err)
		a.inputEvents = nil
		return
	}

	events := make(chan inputEvent, 16)
	a.inputEvents = events

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}

			var evt inputEvent
			switch {
			case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC || char == 'q' || char == 'Q':
				events <- inputEvent{kind: inputQuit}
				return
			case key == keyboard.KeySpace:
				evt = inputEvent{kind: inputTransport}
			case char == '+' || char == '=':
				evt = inputEvent{kind: inputBPMUp}
			case char == '-' || char == '_':
				evt = inputEvent{kind: inputBPMDown}
			case char == 'r' || char == 'R':
				evt = inputEvent{kind: inputRandomize}
			case char >= '1' && char <= '8':
				evt = inputEvent{kind: inputPattern, pattern: "bank-" + string('a'+char-'1')}
			default:
				continue
			}
			select {
			case events <- evt:
			default:
			}
		}
	}()
}

// randomizeVisuals submits ramped UI requests for a handful of visual
// parameters plus a fresh pattern and color mode.
func (a *App) randomizeVisuals() {
	schema := param.DefaultSchema()
	randomized := []string{"frequency", "amplitude", "colorShift", "swirl", "noiseStrength"}
	for _, name := range randomized {
		spec, ok := schema.Lookup(name)
		if !ok {
			continue
		}
		target := spec.Min + a.rng.Float64()*(spec.Max-spec.Min)
		a.eng.RequestChange(name, nil, param.Number(target), 2, engine.SourceUI)
	}

	patterns := render.PatternNames()
	a.eng.RequestChange("pattern", nil, param.Text(patterns[a.rng.Intn(len(patterns))]), 0, engine.SourceUI)
	modes := render.ColorModeNames()
	a.eng.RequestChange("colorMode", nil, param.Text(modes[a.rng.Intn(len(modes))]), 0, engine.SourceUI)

	a.log.Println("randomized visuals")
}

func (a *App) ensureDimensions() {
	if a.renderer.Windowed() {
		return
	}
	fd := int(os.Stdout.Fd())
	if fd < 0 {
		return
	}
	w, h, err := term.GetSize(fd)
	if err != nil || w <= 0 || h <= 0 {
		return
	}

	renderHeight := h
	if a.cfg.ShowStatusBar && renderHeight > 1 {
		renderHeight--
	}
	if renderHeight <= 0 {
		renderHeight = 1
	}

	if w == a.width && h == a.height && renderHeight == a.renderHeight {
		return
	}

	a.width = w
	a.height = h
	a.renderHeight = renderHeight
	a.renderer.Resize(w, renderHeight)
}

func statusBar(text string, width int) string {
	if width <= 0 {
		return text
	}
	if len(text) >= width {
		return text[:width]
	}
	return text + strings.Repeat(" ", width-len(text))
}

func clearScreen() {
	fmt.Print("\x1b[2J")
	moveCursorHome()
}

func moveCursorHome() {
	fmt.Print("\x1b[H")
}

func hideCursor() {
	fmt.Print("\x1b[?25l")
}

func showCursor() {
	fmt.Print("\x1b[?25h")
}

func enterAltScreen() {
	fmt.Print("\x1b[?1049h")
}

func exitAltScreen() {
	fmt.Print("\x1b[?1049l\x1b[0m")
}
