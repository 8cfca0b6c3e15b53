// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	tderrors "github.com/dotandev/tabletd/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotEmpty(t, cfg.AppDataDir)
	assert.Equal(t, "127.0.0.1:43701", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TABLETD_LISTEN", "")
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().ListenAddr, cfg.ListenAddr)
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tabletd.toml")
	content := `
app_data_dir = "/var/lib/tabletd"
listen_addr = "127.0.0.1:9000"
log_level = "debug"
tracing = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/tabletd", cfg.AppDataDir)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Tracing)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tabletd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`listen_addr = "127.0.0.1:9000"`), 0644))

	t.Setenv("TABLETD_LISTEN", "127.0.0.1:9100")
	t.Setenv("TABLETD_LOG_JSON", "true")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", cfg.ListenAddr)
	assert.True(t, cfg.LogJSON)
}

func TestInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabletd.toml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr = ["), 0644))

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tderrors.ErrConfig))
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty app data", func(c *Config) { c.AppDataDir = "" }, true},
		{"bad listen address", func(c *Config) { c.ListenAddr = "nohostport" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"warning level", func(c *Config) { c.LogLevel = "warning" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tabletd.toml")
	cfg := DefaultConfig()
	cfg.AppDataDir = "/srv/tabletd"
	cfg.AuthToken = "secret"

	require.NoError(t, cfg.Save(path))

	t.Setenv("TABLETD_AUTH_TOKEN", "")
	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/tabletd", loaded.AppDataDir)
	assert.Equal(t, "secret", loaded.AuthToken)
}

func TestAppInfoLayout(t *testing.T) {
	root := t.TempDir()
	info := NewAppInfo(root)

	assert.Equal(t, filepath.Join(root, "Plugins"), info.PluginDirectory)
	assert.Equal(t, filepath.Join(root, "Trash"), info.TrashDirectory)
	assert.Equal(t, filepath.Join(root, "settings.json"), info.SettingsFile)

	require.NoError(t, info.EnsureDirectories())
	for _, dir := range []string{info.PluginDirectory, info.PresetDirectory, info.BackupDirectory} {
		st, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, st.IsDir())
	}
	_, err := os.Stat(info.TrashDirectory)
	assert.True(t, os.IsNotExist(err))
}
