// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dotandev/tabletd/internal/errors"
)

// Load reads a settings file. A missing file returns an error satisfying
// os.IsNotExist; undecodable content returns ErrSettingsCorrupt.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data, path)
}

// Decode parses settings JSON. path is only used in errors.
func Decode(data []byte, path string) (*Settings, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var s Settings
	if err := dec.Decode(&s); err != nil {
		return nil, errors.WrapSettingsCorrupt(path, err)
	}
	if s.Profiles == nil {
		s.Profiles = []*Profile{}
	}
	if s.Tools == nil {
		s.Tools = []*PluginSettingStore{}
	}
	for i, p := range s.Profiles {
		if p == nil {
			return nil, errors.WrapSettingsCorrupt(path, fmt.Errorf("profile %d is null", i))
		}
	}
	return &s, nil
}

// Save writes s to path through a temporary file and a rename.
func Save(path string, s *Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing settings file: %w", err)
	}
	return nil
}

// Recover moves the unreadable file at path into backupDir and writes
// defaults in its place. It returns the backup path.
func Recover(path, backupDir string, defaults *Settings) (string, error) {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102T150405.000000000")
	backup := filepath.Join(backupDir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
	if err := os.Rename(path, backup); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("backing up settings: %w", err)
	}

	if err := Save(path, defaults); err != nil {
		return backup, err
	}
	return backup, nil
}
