// Package project persists engine state as named JSON files under the
// user config directory.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/padverb/vizor/internal/config"
	"github.com/padverb/vizor/internal/engine"
)

// dir returns the projects directory, creating it if needed.
func dir() (string, error) {
	base, err := config.Dir()
	if err != nil {
		return "", err
	}
	d := filepath.Join(base, "projects")
	if err := os.MkdirAll(d, 0755); err != nil {
		return "", err
	}
	return d, nil
}

func pathFor(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("project name is empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("invalid project name %q", name)
	}
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, name+".json"), nil
}

// Save writes the project state under the given name.
func Save(name string, state engine.ProjectState) error {
	path, err := pathFor(name)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding project: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Load reads the named project state from disk.
func Load(name string) (engine.ProjectState, error) {
	var state engine.ProjectState
	path, err := pathFor(name)
	if err != nil {
		return state, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return state, err
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("decoding project %q: %w", name, err)
	}
	return state, nil
}

// List returns the saved project names, sorted.
func List() ([]string, error) {
	d, err := dir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a saved project.
func Delete(name string) error {
	path, err := pathFor(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}
