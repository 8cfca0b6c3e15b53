// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package tablet

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dotandev/tabletd/internal/logger"
	"gopkg.in/yaml.v3"
)

//go:embed configurations/*.yaml
var builtinConfigurations embed.FS

// Configuration describes one supported hardware model.
type Configuration struct {
	Name                 string            `yaml:"name" json:"name"`
	Specifications       Specifications    `yaml:"specifications" json:"specifications"`
	DigitizerIdentifiers []Identifier      `yaml:"digitizerIdentifiers" json:"digitizerIdentifiers"`
	AuxiliaryIdentifiers []Identifier      `yaml:"auxiliaryIdentifiers,omitempty" json:"auxiliaryIdentifiers,omitempty"`
	Attributes           map[string]string `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// Specifications are the physical capabilities of a model.
type Specifications struct {
	Digitizer        Digitizer `yaml:"digitizer" json:"digitizer"`
	Pen              Pen       `yaml:"pen" json:"pen"`
	AuxiliaryButtons int       `yaml:"auxiliaryButtons,omitempty" json:"auxiliaryButtons,omitempty"`
}

// Digitizer is the active area in millimetres and device units.
type Digitizer struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
	MaxX   float64 `yaml:"maxX" json:"maxX"`
	MaxY   float64 `yaml:"maxY" json:"maxY"`
}

type Pen struct {
	MaxPressure uint32 `yaml:"maxPressure" json:"maxPressure"`
	Buttons     int    `yaml:"buttons" json:"buttons"`
}

// Identifier matches an endpoint to a configuration and names the parser
// type used to decode its reports.
type Identifier struct {
	VendorID          int    `yaml:"vendorId" json:"vendorId"`
	ProductID         int    `yaml:"productId" json:"productId"`
	InputReportLength int    `yaml:"inputReportLength,omitempty" json:"inputReportLength,omitempty"`
	ReportParser      string `yaml:"reportParser" json:"reportParser"`
}

// Matches reports whether ep is described by the identifier. A zero
// InputReportLength matches any length.
func (id Identifier) Matches(ep Endpoint) bool {
	if ep.VendorID() != id.VendorID || ep.ProductID() != id.ProductID {
		return false
	}
	return id.InputReportLength == 0 || id.InputReportLength == ep.InputReportLength()
}

// Validate checks the fields detection relies on.
func (c *Configuration) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("configuration name cannot be empty")
	}
	if len(c.DigitizerIdentifiers) == 0 {
		return fmt.Errorf("configuration %s has no digitizer identifiers", c.Name)
	}
	for i, id := range c.DigitizerIdentifiers {
		if id.ReportParser == "" {
			return fmt.Errorf("configuration %s identifier %d has no report parser", c.Name, i)
		}
	}
	return nil
}

// ParseConfiguration decodes one YAML document.
func ParseConfiguration(data []byte) (*Configuration, error) {
	var cfg Configuration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigurations returns the built-in configurations overlaid with any
// *.yaml files in dir. A user file whose name matches a built-in replaces
// it. Invalid files are logged and skipped.
func LoadConfigurations(dir string) []*Configuration {
	byName := make(map[string]*Configuration)

	loadFS(builtinConfigurations, "configurations", byName)
	if dir != "" {
		if _, err := os.Stat(dir); err == nil {
			loadFS(os.DirFS(dir), ".", byName)
		}
	}

	out := make([]*Configuration, 0, len(byName))
	for _, cfg := range byName {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func loadFS(fsys fs.FS, root string, into map[string]*Configuration) {
	log := logger.For("Configurations")

	matches, err := fs.Glob(fsys, filepath.ToSlash(filepath.Join(root, "*.yaml")))
	if err != nil {
		log.Error("Failed to scan configurations", "error", err)
		return
	}
	for _, path := range matches {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			log.Warn("Failed to read configuration", "path", path, "error", err)
			continue
		}
		cfg, err := ParseConfiguration(data)
		if err != nil {
			log.Warn("Invalid configuration", "path", path, "error", err)
			continue
		}
		into[cfg.Name] = cfg
	}
}
