// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package updater fetches the plugin repository catalog and caches it in
// the daemon's cache directory.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dotandev/tabletd/internal/errors"
	"github.com/dotandev/tabletd/internal/logger"
	"github.com/dotandev/tabletd/internal/plugin"
)

const (
	// CatalogFile is fetched relative to the repository URL and is also
	// the name of the cached copy.
	CatalogFile = "catalog.json"
	// CheckInterval is how long a cached catalog is considered fresh.
	CheckInterval = 24 * time.Hour
	// RequestTimeout bounds one catalog request.
	RequestTimeout = 10 * time.Second

	envNoCheck = "TABLETD_NO_UPDATE_CHECK"
)

// Catalog is the repository index.
type Catalog struct {
	Plugins []plugin.Metadata `json:"plugins"`
}

type cache struct {
	LastCheck time.Time `json:"last_check"`
	Catalog   Catalog   `json:"catalog"`
}

// Checker serves the plugin catalog for one repository.
type Checker struct {
	baseURL       string
	cacheDir      string
	driverVersion string
	client        *http.Client
	now           func() time.Time
	log           *slog.Logger
}

func NewChecker(baseURL, cacheDir, driverVersion string) *Checker {
	return &Checker{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		cacheDir:      cacheDir,
		driverVersion: driverVersion,
		client:        &http.Client{Timeout: RequestTimeout},
		now:           time.Now,
		log:           logger.For("Updater"),
	}
}

// Catalog returns the cached catalog while it is fresh and refetches it
// otherwise. A failed fetch falls back to a stale cache when one exists.
// Setting TABLETD_NO_UPDATE_CHECK keeps the checker offline.
func (c *Checker) Catalog(ctx context.Context) (Catalog, error) {
	cached, cacheErr := c.readCache()
	if cacheErr == nil && c.now().Sub(cached.LastCheck) < CheckInterval {
		return cached.Catalog, nil
	}
	if os.Getenv(envNoCheck) != "" || c.baseURL == "" {
		if cacheErr == nil {
			return cached.Catalog, nil
		}
		return Catalog{}, fmt.Errorf("plugin repository unavailable offline")
	}

	fresh, err := c.fetch(ctx)
	if err != nil {
		if cacheErr == nil {
			c.log.Warn("Using stale plugin catalog", "error", err)
			return cached.Catalog, nil
		}
		return Catalog{}, err
	}
	if err := c.writeCache(fresh); err != nil {
		c.log.Debug("Failed to cache plugin catalog", "error", err)
	}
	return fresh, nil
}

// Compatible returns the catalog entries supporting the running driver.
func (c *Checker) Compatible(ctx context.Context) ([]plugin.Metadata, error) {
	catalog, err := c.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	var out []plugin.Metadata
	for _, m := range catalog.Plugins {
		if c.driverVersion == "" || m.SupportsDriver(c.driverVersion) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Find returns the newest compatible release of the named plugin.
func (c *Checker) Find(ctx context.Context, name string) (plugin.Metadata, error) {
	compatible, err := c.Compatible(ctx)
	if err != nil {
		return plugin.Metadata{}, err
	}
	var best *plugin.Metadata
	for i := range compatible {
		m := compatible[i]
		if !strings.EqualFold(m.Name, name) {
			continue
		}
		if best == nil || m.NewerThan(*best) {
			best = &m
		}
	}
	if best == nil {
		return plugin.Metadata{}, errors.WrapPluginNotFound(name)
	}
	return *best, nil
}

func (c *Checker) fetch(ctx context.Context) (Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+CatalogFile, nil)
	if err != nil {
		return Catalog{}, err
	}
	req.Header.Set("User-Agent", "tabletd/"+c.driverVersion)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Catalog{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Catalog{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Catalog{}, err
	}
	var catalog Catalog
	if err := json.Unmarshal(body, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("parsing plugin catalog: %w", err)
	}

	valid := catalog.Plugins[:0]
	for _, m := range catalog.Plugins {
		if err := m.Validate(); err != nil {
			c.log.Debug("Skipping catalog entry", "error", err)
			continue
		}
		valid = append(valid, m)
	}
	catalog.Plugins = valid
	return catalog, nil
}

func (c *Checker) cachePath() string {
	return filepath.Join(c.cacheDir, CatalogFile)
}

func (c *Checker) readCache() (cache, error) {
	var data cache
	raw, err := os.ReadFile(c.cachePath())
	if err != nil {
		return data, err
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, err
	}
	return data, nil
}

func (c *Checker) writeCache(catalog Catalog) error {
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(cache{LastCheck: c.now(), Catalog: catalog})
	if err != nil {
		return err
	}
	return os.WriteFile(c.cachePath(), raw, 0o644)
}
