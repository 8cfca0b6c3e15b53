// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
)

// AppInfo is the set of directories and files the daemon works with.
type AppInfo struct {
	AppDataDirectory       string `json:"appDataDirectory"`
	ConfigurationDirectory string `json:"configurationDirectory"`
	SettingsFile           string `json:"settingsFile"`
	PluginDirectory        string `json:"pluginDirectory"`
	PresetDirectory        string `json:"presetDirectory"`
	TemporaryDirectory     string `json:"temporaryDirectory"`
	CacheDirectory         string `json:"cacheDirectory"`
	BackupDirectory        string `json:"backupDirectory"`
	TrashDirectory         string `json:"trashDirectory"`
	JournalFile            string `json:"journalFile"`
}

// NewAppInfo lays out every path under root. The temporary and trash
// directories share the plugin directory's filesystem so installs and
// uninstalls can rename instead of copy.
func NewAppInfo(root string) *AppInfo {
	return &AppInfo{
		AppDataDirectory:       root,
		ConfigurationDirectory: filepath.Join(root, "Configurations"),
		SettingsFile:           filepath.Join(root, "settings.json"),
		PluginDirectory:        filepath.Join(root, "Plugins"),
		PresetDirectory:        filepath.Join(root, "Presets"),
		TemporaryDirectory:     filepath.Join(root, "Temp"),
		CacheDirectory:         filepath.Join(root, "Cache"),
		BackupDirectory:        filepath.Join(root, "Backup"),
		TrashDirectory:         filepath.Join(root, "Trash"),
		JournalFile:            filepath.Join(root, "journal.db"),
	}
}

// EnsureDirectories creates the persistent directories. Temporary and
// trash directories are created on demand.
func (a *AppInfo) EnsureDirectories() error {
	for _, dir := range []string{
		a.AppDataDirectory,
		a.ConfigurationDirectory,
		a.PluginDirectory,
		a.PresetDirectory,
		a.CacheDirectory,
		a.BackupDirectory,
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
