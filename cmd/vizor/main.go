package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/padverb/vizor/internal/app"
	"github.com/padverb/vizor/internal/audio"
	"github.com/padverb/vizor/internal/config"
	"github.com/padverb/vizor/internal/engine"
	"github.com/padverb/vizor/internal/midi"
	"github.com/padverb/vizor/internal/param"
	"github.com/padverb/vizor/internal/project"
	"github.com/padverb/vizor/internal/web"
	"golang.org/x/term"
)

func main() {
	var (
		width         = flag.Int("width", 80, "Frame width in cells (overridden by terminal size)")
		height        = flag.Int("height", 24, "Frame height in cells (overridden by terminal size)")
		targetFPS     = flag.Float64("fps", 0, "Target frames per second (0 = from config)")
		bpm           = flag.Float64("bpm", 0, "Initial tempo (0 = engine default)")
		projectName   = flag.String("project", "", "Project to load at startup")
		palette       = flag.String("palette", "default", "Glyph palette (default|box|lines|spark|dots)")
		quality       = flag.String("quality", "balanced", "Render quality (high|balanced|eco)")
		useSDL        = flag.Bool("sdl", false, "Render into an SDL window instead of the terminal")
		noColor       = flag.Bool("no-color", false, "Disable ANSI color output")
		noStatus      = flag.Bool("no-status", false, "Hide the status bar")
		midiPort      = flag.String("midi-port", "", "MIDI input port (substring match, overrides config)")
		noMIDI        = flag.Bool("no-midi", false, "Disable MIDI input")
		listMIDI      = flag.Bool("list-midi-ports", false, "List MIDI input ports and exit")
		webPort       = flag.Int("web-port", 0, "Web control port (0 = from config, -1 = disabled)")
		audioReactive = flag.Bool("audio-reactive", false, "Map audio features onto visual parameters")
		noAudio       = flag.Bool("no-audio", false, "Use a synthetic feature generator instead of capture")
		deviceName    = flag.String("audio-device", "", "PortAudio device name (substring match)")
		noiseFloor    = flag.Float64("noise-floor", 0.04, "Feature noise floor for audio-reactive mode")
		listDevs      = flag.Bool("list-audio-devices", false, "List audio input devices and exit")
		profilePath   = flag.String("profile", "", "Write per-frame timing CSV to this path")
		debug         = flag.Bool("debug", false, "Enable verbose logging")
	)

	flag.Parse()

	logger := log.New(os.Stderr, "[vizor] ", log.LstdFlags)
	if !*debug {
		logger.SetFlags(0)
	}

	if *listMIDI {
		ports := midi.Ports()
		if len(ports) == 0 {
			fmt.Println("no MIDI input ports found")
			return
		}
		fmt.Println("MIDI input ports:")
		for _, p := range ports {
			fmt.Printf("- %s\n", p)
		}
		return
	}

	if *listDevs {
		if err := audio.Initialize(); err != nil {
			logger.Fatalf("initialize PortAudio: %v", err)
		}
		defer audio.Terminate()
		devices, err := audio.ListDevices()
		if err != nil {
			logger.Fatalf("list devices: %v", err)
		}
		fmt.Println("audio input devices:")
		for _, dev := range devices {
			if dev.MaxInput == 0 {
				continue
			}
			marker := ""
			if dev.IsDefaultInput {
				marker = " (default)"
			}
			fmt.Printf("- %s [%s]%s inputs:%d sample:%.0f Hz\n",
				dev.Name, dev.HostAPI, marker, dev.MaxInput, dev.DefaultSampleHz)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *targetFPS <= 0 {
		*targetFPS = cfg.TargetFPS
	}
	if *targetFPS <= 0 {
		*targetFPS = 60
	}
	if *webPort == 0 {
		*webPort = cfg.WebPort
	}
	if *palette == "default" && cfg.Render.Palette != "" {
		*palette = cfg.Render.Palette
	}
	if cfg.Render.UseANSI != nil && !*noColor {
		*noColor = !*cfg.Render.UseANSI
	}

	if !*useSDL {
		if fd := int(os.Stdout.Fd()); fd >= 0 {
			if w, h, err := term.GetSize(fd); err == nil {
				if w > 0 {
					*width = w
				}
				if h > 0 {
					*height = h
				}
			}
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var engineLog *log.Logger
	if *debug {
		engineLog = logger
	}
	eng := engine.New(engine.Options{
		Logger:            engineLog,
		SubStepAutomation: cfg.SubStepAutomation,
	})
	if *bpm > 0 {
		if err := eng.SetBPM(*bpm); err != nil {
			logger.Fatalf("bpm: %v", err)
		}
	}
	if cfg.Render.ColorMode != "" {
		eng.RequestChange("colorMode", nil, param.Text(cfg.Render.ColorMode), 0, engine.SourceUI)
	}

	if *projectName == "" {
		*projectName = cfg.LastProject
	}
	if *projectName != "" {
		state, err := project.Load(*projectName)
		if err != nil {
			logger.Fatalf("load project %q: %v", *projectName, err)
		}
		if err := eng.ImportProject(state); err != nil {
			logger.Fatalf("import project %q: %v", *projectName, err)
		}
		logger.Printf("loaded project %q", *projectName)
	}

	if !*noMIDI && (cfg.MIDI.AutoConnect || *midiPort != "") {
		port := *midiPort
		if port == "" {
			port = cfg.MIDI.PortName
		}
		input, err := midi.Open(port, eng, midi.Bindings{
			CC:    cfg.CCMap(),
			Notes: cfg.NoteMap(),
		}, logger)
		if err != nil {
			logger.Printf("MIDI input disabled: %v", err)
		} else {
			defer input.Close()
		}
	}

	if *webPort > 0 {
		server := web.NewServer(eng, logger)
		go func() {
			if err := server.Start(*webPort); err != nil {
				logger.Printf("web server stopped: %v", err)
			}
		}()
	}

	if *audioReactive && !*noAudio {
		if err := audio.Initialize(); err != nil {
			logger.Fatalf("initialize PortAudio: %v", err)
		}
		defer audio.Terminate()
	}

	a, err := app.New(app.Config{
		Engine:        eng,
		DeviceName:    *deviceName,
		Width:         *width,
		Height:        *height,
		TargetFPS:     *targetFPS,
		DisableAudio:  *noAudio,
		AudioReactive: *audioReactive,
		NoiseFloor:    *noiseFloor,
		ShowStatusBar: !*noStatus,
		Palette:       *palette,
		Quality:       *quality,
		UseSDL:        *useSDL,
		UseANSI:       !*noColor,
		ProfilePath:   *profilePath,
		Log:           logger,
	})
	if err != nil {
		logger.Fatalf("failed to create app: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "cleanup error: %v\n", err)
		}
	}()

	if err := a.Run(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nExiting...")
			return
		}
		logger.Fatalf("runtime error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
}
