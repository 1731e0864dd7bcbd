package config

import (
	"testing"
)

func TestLoadReturnsDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.MIDI.AutoConnect {
		t.Fatalf("default config should auto-connect MIDI")
	}
	if cfg.WebPort == 0 {
		t.Fatalf("default config should carry a web port")
	}
	if len(cfg.MIDI.NoteTriggers) != 8 {
		t.Fatalf("expected 8 note triggers, got %d", len(cfg.MIDI.NoteTriggers))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.MIDI.PortName = "Launchpad"
	cfg.WebPort = 9001
	cfg.SubStepAutomation = true
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.MIDI.PortName != "Launchpad" || got.WebPort != 9001 || !got.SubStepAutomation {
		t.Fatalf("round trip lost fields: %+v", got)
	}
}

func TestBindingMapsFlatten(t *testing.T) {
	cfg := DefaultConfig()

	cc := cfg.CCMap()
	if cc[1] != "brightness" {
		t.Fatalf("CC 1 should bind brightness, got %q", cc[1])
	}
	notes := cfg.NoteMap()
	if notes[36] != "bank-a" {
		t.Fatalf("note 36 should trigger bank-a, got %q", notes[36])
	}
}
