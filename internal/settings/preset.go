// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dotandev/tabletd/internal/errors"
	"github.com/dotandev/tabletd/internal/logger"
)

const presetExt = ".json"

// Preset is a named, saved Settings value.
type Preset struct {
	Name     string
	Settings *Settings
}

// PresetManager serves the presets stored as JSON files in one directory.
type PresetManager struct {
	dir string

	mu      sync.RWMutex
	presets map[string]*Preset
}

func NewPresetManager(dir string) *PresetManager {
	return &PresetManager{dir: dir, presets: make(map[string]*Preset)}
}

// Refresh rereads the preset directory. Unreadable presets are logged
// and skipped.
func (m *PresetManager) Refresh() error {
	log := logger.For("Presets")

	entries, err := os.ReadDir(m.dir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading preset directory: %w", err)
	}

	presets := make(map[string]*Preset, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != presetExt {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		s, err := Load(path)
		if err != nil {
			log.Warn("Skipping preset", "path", path, "error", err)
			continue
		}
		name := strings.TrimSuffix(entry.Name(), presetExt)
		presets[name] = &Preset{Name: name, Settings: s}
	}

	m.mu.Lock()
	m.presets = presets
	m.mu.Unlock()
	return nil
}

// Names returns the preset names in sorted order.
func (m *PresetManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.presets))
	for name := range m.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Find returns the named preset.
func (m *PresetManager) Find(name string) (*Preset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.presets[name]
	if !ok {
		return nil, errors.WrapPresetNotFound(name)
	}
	return p, nil
}

// Save stores s as a preset, replacing any preset of the same name.
func (m *PresetManager) Save(name string, s *Settings) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := Save(filepath.Join(m.dir, name+presetExt), s); err != nil {
		return err
	}
	return m.Refresh()
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("preset name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid preset name %q", name)
	}
	return nil
}
