// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-version"
)

// MetadataFile records where a downloaded plugin came from.
const MetadataFile = "metadata.json"

// Metadata describes a downloadable plugin.
type Metadata struct {
	Name                   string `json:"name"`
	Owner                  string `json:"owner"`
	Description            string `json:"description,omitempty"`
	PluginVersion          string `json:"pluginVersion"`
	SupportedDriverVersion string `json:"supportedDriverVersion,omitempty"`
	RepositoryURL          string `json:"repositoryUrl,omitempty"`
	DownloadURL            string `json:"downloadUrl"`
	SHA256                 string `json:"sha256,omitempty"`
	LicenseIdentifier      string `json:"licenseIdentifier,omitempty"`
}

// DirectoryName is the plugin root entry the plugin installs into.
func (m Metadata) DirectoryName() string {
	return fsName(m.Name)
}

// Validate checks the fields a download needs.
func (m Metadata) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("plugin metadata has no name")
	}
	if m.DownloadURL == "" {
		return fmt.Errorf("plugin %s has no download URL", m.Name)
	}
	return nil
}

// Same reports whether other describes the same plugin, ignoring version.
func (m Metadata) Same(other Metadata) bool {
	return strings.EqualFold(m.Name, other.Name) && strings.EqualFold(m.Owner, other.Owner)
}

// NewerThan reports whether m carries a higher plugin version than other.
// Unparseable versions are never newer.
func (m Metadata) NewerThan(other Metadata) bool {
	mine, err := parseVersion(m.PluginVersion)
	if err != nil {
		return false
	}
	theirs, err := parseVersion(other.PluginVersion)
	if err != nil {
		return true
	}
	return mine.GreaterThan(theirs)
}

// SupportsDriver reports whether the plugin can run on driver. The
// supported version is either a constraint such as ">= 0.6, < 0.7" or a
// plain version, which matches any driver with the same major and minor
// version. An empty field supports every driver.
func (m Metadata) SupportsDriver(driver string) bool {
	if strings.TrimSpace(m.SupportedDriverVersion) == "" {
		return true
	}
	dv, err := parseVersion(driver)
	if err != nil {
		return false
	}

	if strings.ContainsAny(m.SupportedDriverVersion, "<>=~!,") {
		c, err := version.NewConstraint(m.SupportedDriverVersion)
		if err != nil {
			return false
		}
		return c.Check(dv)
	}

	sv, err := parseVersion(m.SupportedDriverVersion)
	if err != nil {
		return false
	}
	want, have := sv.Segments(), dv.Segments()
	return want[0] == have[0] && want[1] == have[1]
}

func parseVersion(s string) (*version.Version, error) {
	return version.NewVersion(strings.TrimPrefix(strings.TrimSpace(s), "v"))
}

// ReadMetadata loads dir/metadata.json.
func ReadMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, err
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", MetadataFile, err)
	}
	return &m, nil
}

// WriteMetadata stores m as dir/metadata.json.
func WriteMetadata(dir string, m Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, MetadataFile), data, 0o644)
}

// Update pairs an installed plugin with a newer available release.
type Update struct {
	Directory string   `json:"directory"`
	Installed Metadata `json:"installed"`
	Available Metadata `json:"available"`
}
