package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// CCBinding maps one continuous controller to a parameter.
type CCBinding struct {
	Controller uint8  `json:"controller"`
	Param      string `json:"param"`
}

// NoteTrigger loads a pattern when a note fires.
type NoteTrigger struct {
	Note    uint8  `json:"note"`
	Pattern string `json:"pattern"`
}

// MIDIConfig selects the input port and its bindings.
type MIDIConfig struct {
	PortName     string        `json:"portName,omitempty"`
	AutoConnect  bool          `json:"autoConnect"`
	CCBindings   []CCBinding   `json:"ccBindings,omitempty"`
	NoteTriggers []NoteTrigger `json:"noteTriggers,omitempty"`
}

// RenderConfig stores renderer preferences.
type RenderConfig struct {
	Palette   string `json:"palette,omitempty"`
	ColorMode string `json:"colorMode,omitempty"`
	UseANSI   *bool  `json:"useANSI,omitempty"`
}

// Config is the persisted application configuration.
type Config struct {
	MIDI              MIDIConfig   `json:"midi"`
	Render            RenderConfig `json:"render,omitempty"`
	WebPort           int          `json:"webPort,omitempty"`
	TargetFPS         float64      `json:"targetFPS,omitempty"`
	SubStepAutomation bool         `json:"subStepAutomation,omitempty"`
	LastProject       string       `json:"lastProject,omitempty"`
}

// DefaultConfig returns sensible defaults: sixteen CCs mapped to the most
// useful numeric parameters, eight note pads mapped to bank patterns.
func DefaultConfig() *Config {
	cfg := &Config{
		MIDI: MIDIConfig{
			AutoConnect: true,
			CCBindings: []CCBinding{
				{Controller: 1, Param: "brightness"},
				{Controller: 2, Param: "contrast"},
				{Controller: 3, Param: "saturation"},
				{Controller: 4, Param: "colorShift"},
				{Controller: 5, Param: "frequency"},
				{Controller: 6, Param: "amplitude"},
				{Controller: 7, Param: "speed"},
				{Controller: 8, Param: "scaleSize"},
				{Controller: 9, Param: "noiseStrength"},
				{Controller: 10, Param: "swirl"},
				{Controller: 11, Param: "vignette"},
				{Controller: 12, Param: "gamma"},
			},
		},
		WebPort:   8422,
		TargetFPS: 60,
	}
	for i := uint8(0); i < 8; i++ {
		cfg.MIDI.NoteTriggers = append(cfg.MIDI.NoteTriggers, NoteTrigger{
			Note:    36 + i,
			Pattern: bankPatternName(int(i)),
		})
	}
	return cfg
}

func bankPatternName(i int) string {
	return "bank-" + string(rune('a'+i))
}

// Dir returns the config directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "vizor"), nil
}

// Path returns the full path to config.json.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := Path()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// CCMap flattens the CC bindings for the MIDI input.
func (c *Config) CCMap() map[uint8]string {
	m := make(map[uint8]string, len(c.MIDI.CCBindings))
	for _, b := range c.MIDI.CCBindings {
		m[b.Controller] = b.Param
	}
	return m
}

// NoteMap flattens the note triggers for the MIDI input.
func (c *Config) NoteMap() map[uint8]string {
	m := make(map[uint8]string, len(c.MIDI.NoteTriggers))
	for _, t := range c.MIDI.NoteTriggers {
		m[t.Note] = t.Pattern
	}
	return m
}
