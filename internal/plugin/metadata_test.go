// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupportsDriver(t *testing.T) {
	tests := []struct {
		supported string
		driver    string
		want      bool
	}{
		{"", "0.6.4", true},
		{"0.6.0", "0.6.4", true},
		{"0.6.0", "0.7.0", false},
		{"v0.6", "v0.6.1", true},
		{">= 0.5, < 0.7", "0.6.4", true},
		{">= 0.7", "0.6.4", false},
		{"0.6.0", "dev", false},
		{"garbage", "0.6.0", false},
	}
	for _, tt := range tests {
		m := Metadata{SupportedDriverVersion: tt.supported}
		assert.Equal(t, tt.want, m.SupportsDriver(tt.driver), "supported=%q driver=%q", tt.supported, tt.driver)
	}
}

func TestNewerThan(t *testing.T) {
	v := func(s string) Metadata { return Metadata{PluginVersion: s} }

	assert.True(t, v("1.1.0").NewerThan(v("1.0.9")))
	assert.False(t, v("1.0.0").NewerThan(v("1.0.0")))
	assert.False(t, v("bad").NewerThan(v("1.0.0")))
	assert.True(t, v("1.0.0").NewerThan(v("bad")))
}

func TestMetadataReadWrite(t *testing.T) {
	dir := t.TempDir()
	m := Metadata{Name: "Curve", Owner: "ink", PluginVersion: "1.0.0", DownloadURL: "https://example.invalid/c.zip"}
	require.NoError(t, WriteMetadata(dir, m))

	got, err := ReadMetadata(dir)
	require.NoError(t, err)
	assert.Equal(t, m, *got)

	_, err = ReadMetadata(t.TempDir())
	assert.Error(t, err)
}

func TestMetadataNames(t *testing.T) {
	assert.Equal(t, "a_b", Metadata{Name: "a/b"}.DirectoryName())
	assert.Equal(t, "plugin", Metadata{Name: ".."}.DirectoryName())
	assert.True(t, Metadata{Name: "Curve", Owner: "Ink"}.Same(Metadata{Name: "curve", Owner: "ink"}))
	assert.Error(t, Metadata{DownloadURL: "x"}.Validate())
}
