// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package tablet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBuiltinConfigurations(t *testing.T) {
	configs := LoadConfigurations("")
	require.NotEmpty(t, configs)

	names := make([]string, len(configs))
	for i, c := range configs {
		names[i] = c.Name
	}
	assert.Contains(t, names, "Wacom CTL-480")
	assert.Contains(t, names, "Wacom PTZ-630")
	assert.IsNonDecreasing(t, names)
}

func TestUserConfigurationOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	override := `name: Wacom CTL-480
specifications:
  digitizer: {width: 1, height: 1, maxX: 100, maxY: 100}
  pen: {maxPressure: 2047, buttons: 2}
digitizerIdentifiers:
  - vendorId: 0x056A
    productId: 0x030E
    reportParser: custom.Parser
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ctl480.yaml"), []byte(override), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [unterminated"), 0o644))

	configs := LoadConfigurations(dir)

	var found *Configuration
	count := 0
	for _, c := range configs {
		if c.Name == "Wacom CTL-480" {
			found = c
			count++
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, 1, count)
	assert.Equal(t, "custom.Parser", found.DigitizerIdentifiers[0].ReportParser)
	assert.EqualValues(t, 2047, found.Specifications.Pen.MaxPressure)
}

func TestParseConfigurationValidates(t *testing.T) {
	_, err := ParseConfiguration([]byte("name: \"\"\n"))
	assert.Error(t, err)

	_, err = ParseConfiguration([]byte("name: NoIdentifiers\n"))
	assert.Error(t, err)

	_, err = ParseConfiguration([]byte("name: NoParser\ndigitizerIdentifiers:\n  - vendorId: 1\n    productId: 2\n"))
	assert.Error(t, err)
}

func TestIdentifierMatches(t *testing.T) {
	ep := newFakeEndpoint(0x056A, 0x030E, 8)

	assert.True(t, Identifier{VendorID: 0x056A, ProductID: 0x030E, InputReportLength: 8}.Matches(ep))
	assert.True(t, Identifier{VendorID: 0x056A, ProductID: 0x030E}.Matches(ep), "zero length matches any")
	assert.False(t, Identifier{VendorID: 0x056A, ProductID: 0x030E, InputReportLength: 10}.Matches(ep))
	assert.False(t, Identifier{VendorID: 0x28BD, ProductID: 0x030E}.Matches(ep))
}

func TestDescribeEndpoint(t *testing.T) {
	info := Describe(newFakeEndpoint(0x056A, 0x00B1, 10))
	assert.Equal(t, "056A:00B1 /dev/fake", info.String())
	assert.Equal(t, 10, info.InputReportLength)
}
