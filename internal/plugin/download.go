// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// DownloadTimeout bounds a single plugin download.
const DownloadTimeout = 2 * time.Minute

// Downloader fetches a plugin's content into a staging directory.
type Downloader interface {
	Download(ctx context.Context, m Metadata, dest string) error
}

// HTTPDownloader downloads plugin archives over HTTP(S). Zip archives are
// extracted into the destination; anything else is stored as a single
// module file.
type HTTPDownloader struct {
	Client    *http.Client
	UserAgent string
}

func (d *HTTPDownloader) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return &http.Client{Timeout: DownloadTimeout}
}

func (d *HTTPDownloader) Download(ctx context.Context, m Metadata, dest string) error {
	if err := m.Validate(); err != nil {
		return err
	}
	u, err := url.Parse(m.DownloadURL)
	if err != nil {
		return fmt.Errorf("invalid download URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}

	resp, err := d.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = m.DirectoryName() + ".zip"
	}
	file := filepath.Join(dest, fsName(name))

	if err := d.save(resp.Body, file, m.SHA256); err != nil {
		os.Remove(file)
		return err
	}

	if strings.EqualFold(filepath.Ext(file), ".zip") {
		defer os.Remove(file)
		return extractZip(file, dest)
	}
	return nil
}

func (d *HTTPDownloader) save(r io.Reader, file, checksum string) error {
	out, err := os.Create(file)
	if err != nil {
		return err
	}
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, h), r); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if checksum != "" {
		if got := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(got, checksum) {
			return fmt.Errorf("checksum mismatch: expected %s, got %s", checksum, got)
		}
	}
	return nil
}
