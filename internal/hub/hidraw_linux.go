// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package hub

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dotandev/tabletd/internal/eventbus"
	"github.com/dotandev/tabletd/internal/logger"
	"github.com/dotandev/tabletd/internal/tablet"
	"github.com/fsnotify/fsnotify"
)

const hidrawPrefix = "hidraw"

// NewPlatform returns the hub for the running platform.
func NewPlatform() (Hub, error) {
	return NewHidraw("/dev", "/sys/class/hidraw")
}

// Hidraw enumerates /dev/hidraw* nodes and watches devDir for hotplug.
type Hidraw struct {
	devDir string
	sysDir string

	watcher *fsnotify.Watcher
	bus     *eventbus.EventBus
	log     *slog.Logger

	mu        sync.RWMutex
	endpoints map[string]*hidrawEndpoint
	closed    bool

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewHidraw scans devDir and starts watching it. sysDir is the sysfs
// hidraw class directory.
func NewHidraw(devDir, sysDir string) (*Hidraw, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating device watcher: %w", err)
	}
	if err := w.Add(devDir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", devDir, err)
	}

	h := &Hidraw{
		devDir:    devDir,
		sysDir:    sysDir,
		watcher:   w,
		bus:       eventbus.New(),
		log:       logger.For("Hidraw"),
		endpoints: make(map[string]*hidrawEndpoint),
		closeCh:   make(chan struct{}),
	}
	h.scan()

	h.wg.Add(1)
	go h.watch()
	return h, nil
}

func (h *Hidraw) scan() {
	entries, err := os.ReadDir(h.devDir)
	if err != nil {
		h.log.Error("Failed to list devices", "dir", h.devDir, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), hidrawPrefix) {
			continue
		}
		if ep, err := h.probe(entry.Name()); err == nil {
			h.endpoints[ep.path] = ep
		} else {
			h.log.Debug("Skipping device", "device", entry.Name(), "error", err)
		}
	}
}

func (h *Hidraw) probe(name string) (*hidrawEndpoint, error) {
	sys := filepath.Join(h.sysDir, name, "device")
	uevent, err := os.ReadFile(filepath.Join(sys, "uevent"))
	if err != nil {
		return nil, err
	}
	info, err := ParseUevent(uevent)
	if err != nil {
		return nil, err
	}
	length := 0
	if desc, err := os.ReadFile(filepath.Join(sys, "report_descriptor")); err == nil {
		length = InputReportLength(desc)
	}
	return &hidrawEndpoint{
		info:   info,
		path:   filepath.Join(h.devDir, name),
		sys:    sys,
		length: length,
		log:    h.log,
		subs:   make(map[int]func([]byte)),
	}, nil
}

func (h *Hidraw) watch() {
	defer h.wg.Done()
	for {
		select {
		case <-h.closeCh:
			return
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			h.handle(ev)
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.log.Warn("Device watcher error", "error", err)
		}
	}
}

func (h *Hidraw) handle(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if !strings.HasPrefix(name, hidrawPrefix) {
		return
	}

	var out Event
	h.mu.Lock()
	switch {
	case ev.Has(fsnotify.Create):
		if _, exists := h.endpoints[ev.Name]; exists {
			break
		}
		ep, err := h.probe(name)
		if err != nil {
			h.log.Debug("Skipping device", "device", name, "error", err)
			break
		}
		h.endpoints[ep.path] = ep
		out.Additions = append(out.Additions, ep)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if ep, exists := h.endpoints[ev.Name]; exists {
			delete(h.endpoints, ev.Name)
			ep.stop()
			out.Removals = append(out.Removals, ep)
		}
	}
	h.mu.Unlock()

	if !out.Empty() {
		h.log.Info("Devices changed", "added", len(out.Additions), "removed", len(out.Removals))
		h.bus.Emit(eventbus.TopicHubChanged, out)
	}
}

func (h *Hidraw) Endpoints() []tablet.Endpoint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	paths := make([]string, 0, len(h.endpoints))
	for p := range h.endpoints {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := make([]tablet.Endpoint, 0, len(paths))
	for _, p := range paths {
		out = append(out, h.endpoints[p])
	}
	return out
}

func (h *Hidraw) Subscribe(fn func(Event)) (cancel func()) {
	return h.bus.On(eventbus.TopicHubChanged, func(payload any) {
		if ev, ok := payload.(Event); ok {
			fn(ev)
		}
	})
}

func (h *Hidraw) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for _, ep := range h.endpoints {
		ep.stop()
	}
	h.mu.Unlock()

	close(h.closeCh)
	err := h.watcher.Close()
	h.wg.Wait()
	return err
}

type hidrawEndpoint struct {
	info   DeviceInfo
	path   string
	sys    string
	length int
	log    *slog.Logger

	rawClone atomic.Bool

	mu     sync.Mutex
	subs   map[int]func([]byte)
	nextID int
	file   *os.File
}

func (e *hidrawEndpoint) VendorID() int            { return e.info.VendorID }
func (e *hidrawEndpoint) ProductID() int           { return e.info.ProductID }
func (e *hidrawEndpoint) Path() string             { return e.path }
func (e *hidrawEndpoint) PhysicalID() string       { return e.info.Physical() }
func (e *hidrawEndpoint) InputReportLength() int   { return e.length }
func (e *hidrawEndpoint) RawClone() bool           { return e.rawClone.Load() }
func (e *hidrawEndpoint) SetRawClone(enabled bool) { e.rawClone.Store(enabled) }

// usbStrings maps the conventional iManufacturer, iProduct and
// iSerialNumber indices to the sysfs attributes of the parent USB device.
var usbStrings = map[byte]string{1: "manufacturer", 2: "product", 3: "serial"}

func (e *hidrawEndpoint) DeviceString(index byte) (string, error) {
	attr, ok := usbStrings[index]
	if !ok {
		return "", fmt.Errorf("string descriptor %d is not exposed by hidraw", index)
	}
	// Concatenated rather than joined: the kernel must resolve ".." after
	// following the device symlink.
	data, err := os.ReadFile(e.sys + "/../../" + attr)
	if err != nil {
		return "", fmt.Errorf("reading %s of %s: %w", attr, e.path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (e *hidrawEndpoint) Subscribe(fn func(data []byte)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	if e.file == nil {
		e.open()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.subs, id)
			if len(e.subs) == 0 {
				e.closeFile()
			}
		})
	}
}

// open starts the reader. Called with e.mu held.
func (e *hidrawEndpoint) open() {
	f, err := os.Open(e.path)
	if err != nil {
		e.log.Error("Failed to open device", "path", e.path, "error", err)
		return
	}
	e.file = f
	go e.read(f)
}

func (e *hidrawEndpoint) read(f *os.File) {
	size := max(e.length, 64)
	for {
		buf := make([]byte, size)
		n, err := f.Read(buf)
		if n > 0 {
			e.deliver(buf[:n])
		}
		if err != nil {
			e.mu.Lock()
			if e.file == f {
				e.log.Debug("Device read ended", "path", e.path, "error", err)
				e.closeFile()
			}
			e.mu.Unlock()
			return
		}
	}
}

func (e *hidrawEndpoint) deliver(data []byte) {
	e.mu.Lock()
	subs := make([]func([]byte), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()
	for _, fn := range subs {
		fn(data)
	}
}

// closeFile stops the reader. Called with e.mu held.
func (e *hidrawEndpoint) closeFile() {
	if e.file != nil {
		e.file.Close()
		e.file = nil
	}
}

func (e *hidrawEndpoint) stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeFile()
}
