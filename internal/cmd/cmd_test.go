// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dotandev/tabletd/internal/config"
	"github.com/dotandev/tabletd/internal/daemon"
	"github.com/dotandev/tabletd/internal/hub"
	"github.com/dotandev/tabletd/internal/journal"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points configuration and app data at temporary locations.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TABLETD_CONFIG", filepath.Join(dir, "tabletd.toml"))
	t.Setenv("TABLETD_APPDATA", filepath.Join(dir, "data"))
	t.Setenv("TABLETD_AUTH_TOKEN", "")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ConfigFlag, LogLevelFlag = "", ""
	clientAddr, clientToken = "", ""
	tabletsDetect, settingsPersist, configForce = false, false, false
	journalPlugin, journalAction, journalLimit = "", "", 50

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// startDaemon serves a daemon with one simulated CTL-480 and returns its
// control address.
func startDaemon(t *testing.T) string {
	t.Helper()
	ep := &hub.MemoryEndpoint{
		Vendor: 0x56A, Product: 0x30E, DevicePath: "/dev/hidraw0", ReportLength: 8,
		Strings: map[byte]string{2: "CTL-480"},
	}
	d, err := daemon.New(daemon.Options{Info: config.NewAppInfo(t.TempDir()), Hub: hub.NewMemory(ep)})
	require.NoError(t, err)
	d.Start()
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	require.NoError(t, d.Initialize(context.Background()))

	handler, err := daemon.NewServer(d, "").Handler()
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestCommandTree(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{
		"config", "daemon", "debug", "device-string", "diagnostics", "journal",
		"log", "plugin", "preset", "settings", "tablets", "version",
	} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "tabletd version dev\n", out)
}

func TestInvalidConfigFails(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "tabletd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`listen_addr = "nope"`), 0o644))

	_, err := run(t, "version", "--config", path)
	assert.Error(t, err)

	_, err = run(t, "version", "--config", filepath.Join(dir, "missing.toml"))
	assert.NoError(t, err)
}

func TestConfigInitAndShow(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "tabletd.toml")

	out, err := run(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = run(t, "config", "init", "--config", path)
	assert.Error(t, err)

	out, err = run(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "listen_addr")
}

func TestClientCommands(t *testing.T) {
	isolate(t)
	addr := startDaemon(t)

	out, err := run(t, "tablets", "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Wacom CTL-480")

	out, err = run(t, "tablets", "--detect", "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "1024 pressure levels")

	out, err = run(t, "plugin", "list", "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "No plugins installed")

	_, err = run(t, "plugin", "uninstall", "Nope", "--addr", addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugin not found")

	out, err = run(t, "plugin", "types", "output-mode", "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "tabletd.output.AbsoluteMode")

	out, err = run(t, "settings", "get", "--addr", addr)
	require.NoError(t, err)
	var s map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Len(t, s["profiles"], 1)

	out, err = run(t, "device-string", "0x056a", "0x030e", "2", "--addr", addr)
	require.NoError(t, err)
	assert.Equal(t, "CTL-480\n", out)

	_, err = run(t, "debug", "maybe", "--addr", addr)
	assert.Error(t, err)
	_, err = run(t, "debug", "on", "--addr", addr)
	assert.NoError(t, err)

	_, err = run(t, "preset", "save", "mine", "--addr", addr)
	require.NoError(t, err)
	out, err = run(t, "preset", "list", "--addr", addr)
	require.NoError(t, err)
	assert.Equal(t, "mine\n", out)
}

func TestClientUnreachable(t *testing.T) {
	isolate(t)
	_, err := run(t, "tablets", "--addr", "127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon unreachable")
}

func TestJournalCommand(t *testing.T) {
	dir := isolate(t)
	info := config.NewAppInfo(filepath.Join(dir, "data"))

	j, err := journal.Open(info.JournalFile)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), journal.ActionInstall, "Smoothing", "/plugins/Smoothing", nil))
	require.NoError(t, j.Record(context.Background(), journal.ActionLoad, "Other", "", nil))
	require.NoError(t, j.Close())

	out, err := run(t, "journal", "--plugin", "Smoothing")
	require.NoError(t, err)
	assert.Contains(t, out, "install")
	assert.Contains(t, out, "Smoothing")
	assert.NotContains(t, out, "Other")

	out, err = run(t, "journal", "prune", "--older-than", "1h")
	require.NoError(t, err)
	assert.Equal(t, "Removed 0 entries\n", out)
}

func TestRunDaemonSimulated(t *testing.T) {
	dir := t.TempDir()
	c := config.DefaultConfig()
	c.AppDataDir = dir
	c.ListenAddr = "127.0.0.1:0"

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, runDaemon(ctx, c, true))

	info := c.AppInfo()
	assert.DirExists(t, info.PluginDirectory)
	assert.FileExists(t, info.JournalFile)

	j, err := journal.Open(info.JournalFile)
	require.NoError(t, err)
	defer j.Close()
	entries, err := j.Search(context.Background(), journal.Query{Action: journal.ActionClean})
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestLevelColorPlainWithoutTerminal(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	assert.Equal(t, "WARN ", levelColor("WARN").Sprintf("%-5s", "WARN"))
	assert.Equal(t, "INFO ", levelColor("INFO").Sprintf("%-5s", "INFO"))
}
