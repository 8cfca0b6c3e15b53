// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dotandev/tabletd/internal/component"
	"github.com/dotandev/tabletd/internal/logger"
	"github.com/dotandev/tabletd/internal/plugin"
	"github.com/dotandev/tabletd/internal/settings"
	"github.com/dotandev/tabletd/internal/tablet"
	"github.com/dotandev/tabletd/internal/telemetry"
	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"go.opentelemetry.io/otel/attribute"
)

// ServiceName is the JSON-RPC service methods are registered under.
const ServiceName = "Daemon"

// Server exposes a Daemon over JSON-RPC 2.0.
type Server struct {
	daemon    *Daemon
	authToken string
}

// Empty is the argument and reply of methods without either.
type Empty struct{}

// TabletsReply lists detected tablet configurations.
type TabletsReply struct {
	Tablets []*tablet.Configuration `json:"tablets"`
}

// SettingsReply carries the active settings.
type SettingsReply struct {
	Settings *settings.Settings `json:"settings"`
}

// SetSettingsArgs replaces the active settings. Persist also writes them
// to the settings file.
type SetSettingsArgs struct {
	Settings *settings.Settings `json:"settings"`
	Persist  bool               `json:"persist"`
}

// PresetsReply lists saved preset names.
type PresetsReply struct {
	Presets []string `json:"presets"`
}

// PresetArgs names a preset. SavePreset stores Settings, or the active
// settings when Settings is nil.
type PresetArgs struct {
	Name     string             `json:"name"`
	Settings *settings.Settings `json:"settings,omitempty"`
}

type InstallArgs struct {
	Path string `json:"path"`
}

type UninstallArgs struct {
	Directory string `json:"directory"`
}

// DownloadArgs selects a release either by full metadata or by catalog
// name.
type DownloadArgs struct {
	Name     string           `json:"name,omitempty"`
	Metadata *plugin.Metadata `json:"metadata,omitempty"`
}

// ResultReply reports whether a plugin operation changed anything.
type ResultReply struct {
	OK bool `json:"ok"`
}

type DebugArgs struct {
	Enabled bool `json:"enabled"`
}

type DebugReportsReply struct {
	Reports []tablet.DebugReport `json:"reports"`
}

type DeviceStringArgs struct {
	VendorID  int  `json:"vendorId"`
	ProductID int  `json:"productId"`
	Index     byte `json:"index"`
}

type DeviceStringReply struct {
	Value string `json:"value"`
}

type LogReply struct {
	Messages []logger.Message `json:"messages"`
}

type PluginsReply struct {
	Plugins []plugin.Info `json:"plugins"`
}

type TypesArgs struct {
	Category component.Category `json:"category"`
}

type TypesReply struct {
	Types []component.Export `json:"types"`
}

type DefaultsArgs struct {
	Path string `json:"path"`
}

type DefaultsReply struct {
	Store *settings.PluginSettingStore `json:"store"`
}

type UpdatesReply struct {
	Updates []plugin.Update `json:"updates"`
}

// NewServer wraps d. An empty authToken disables authentication.
func NewServer(d *Daemon, authToken string) *Server {
	return &Server{daemon: d, authToken: authToken}
}

// authenticate validates the authorization token
func (s *Server) authenticate(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		return false
	}

	if strings.HasPrefix(auth, "Bearer ") {
		token := strings.TrimPrefix(auth, "Bearer ")
		return token == s.authToken
	}

	return auth == s.authToken
}

func (s *Server) call(r *http.Request, method string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) (err error) {
	if !s.authenticate(r) {
		return fmt.Errorf("unauthorized")
	}

	ctx, span := telemetry.Start(r.Context(), "rpc_"+method, attrs...)
	defer func() { telemetry.End(span, err) }()

	logger.Logger.Debug("Processing RPC", "method", method)
	if err = fn(ctx); err != nil {
		logger.Logger.Warn("RPC failed", "method", method, "error", err)
	}
	return err
}

func (s *Server) Initialize(r *http.Request, _ *Empty, _ *Empty) error {
	return s.call(r, "initialize", s.daemon.Initialize)
}

func (s *Server) GetTablets(r *http.Request, _ *Empty, reply *TabletsReply) error {
	return s.call(r, "get_tablets", func(context.Context) error {
		reply.Tablets = s.daemon.Tablets()
		return nil
	})
}

func (s *Server) DetectTablets(r *http.Request, _ *Empty, reply *TabletsReply) error {
	return s.call(r, "detect_tablets", func(ctx context.Context) (err error) {
		reply.Tablets, err = s.daemon.DetectTablets(ctx)
		return err
	})
}

func (s *Server) GetSettings(r *http.Request, _ *Empty, reply *SettingsReply) error {
	return s.call(r, "get_settings", func(ctx context.Context) (err error) {
		reply.Settings, err = s.daemon.Settings(ctx)
		return err
	})
}

func (s *Server) SetSettings(r *http.Request, args *SetSettingsArgs, _ *Empty) error {
	return s.call(r, "set_settings", func(ctx context.Context) error {
		if args.Persist {
			return s.daemon.ApplyAndSaveSettings(ctx, args.Settings)
		}
		return s.daemon.ApplySettings(ctx, args.Settings)
	}, attribute.Bool("settings.persist", args.Persist))
}

func (s *Server) ResetSettings(r *http.Request, _ *Empty, _ *Empty) error {
	return s.call(r, "reset_settings", s.daemon.ResetSettings)
}

func (s *Server) GetPresets(r *http.Request, _ *Empty, reply *PresetsReply) error {
	return s.call(r, "get_presets", func(ctx context.Context) (err error) {
		reply.Presets, err = s.daemon.Presets(ctx)
		return err
	})
}

func (s *Server) SetPreset(r *http.Request, args *PresetArgs, _ *Empty) error {
	return s.call(r, "set_preset", func(ctx context.Context) error {
		return s.daemon.ApplyPreset(ctx, args.Name)
	}, attribute.String("preset.name", args.Name))
}

func (s *Server) SavePreset(r *http.Request, args *PresetArgs, _ *Empty) error {
	return s.call(r, "save_preset", func(ctx context.Context) error {
		preset := args.Settings
		if preset == nil {
			current, err := s.daemon.Settings(ctx)
			if err != nil {
				return err
			}
			preset = current
		}
		return s.daemon.SavePreset(ctx, args.Name, preset)
	}, attribute.String("preset.name", args.Name))
}

func (s *Server) LoadPlugins(r *http.Request, _ *Empty, _ *Empty) error {
	return s.call(r, "load_plugins", s.daemon.LoadPlugins)
}

func (s *Server) InstallPlugin(r *http.Request, args *InstallArgs, reply *ResultReply) error {
	return s.call(r, "install_plugin", func(ctx context.Context) (err error) {
		reply.OK, err = s.daemon.InstallPlugin(ctx, args.Path)
		return err
	}, attribute.String("plugin.archive", args.Path))
}

func (s *Server) UninstallPlugin(r *http.Request, args *UninstallArgs, reply *ResultReply) error {
	return s.call(r, "uninstall_plugin", func(ctx context.Context) (err error) {
		reply.OK, err = s.daemon.UninstallPlugin(ctx, args.Directory)
		return err
	}, attribute.String("plugin.directory", args.Directory))
}

func (s *Server) DownloadPlugin(r *http.Request, args *DownloadArgs, reply *ResultReply) error {
	return s.call(r, "download_plugin", func(ctx context.Context) (err error) {
		if args.Metadata != nil {
			reply.OK, err = s.daemon.DownloadPlugin(ctx, *args.Metadata)
		} else {
			reply.OK, err = s.daemon.DownloadPluginByName(ctx, args.Name)
		}
		return err
	})
}

func (s *Server) SetTabletDebug(r *http.Request, args *DebugArgs, _ *Empty) error {
	return s.call(r, "set_tablet_debug", func(ctx context.Context) error {
		return s.daemon.SetTabletDebug(ctx, args.Enabled)
	}, attribute.Bool("debug.enabled", args.Enabled))
}

func (s *Server) GetDebugReports(r *http.Request, _ *Empty, reply *DebugReportsReply) error {
	return s.call(r, "get_debug_reports", func(context.Context) error {
		reply.Reports = s.daemon.DebugReports()
		return nil
	})
}

func (s *Server) RequestDeviceString(r *http.Request, args *DeviceStringArgs, reply *DeviceStringReply) error {
	return s.call(r, "request_device_string", func(context.Context) (err error) {
		reply.Value, err = s.daemon.RequestDeviceString(args.VendorID, args.ProductID, args.Index)
		return err
	}, attribute.Int("device.vendor_id", args.VendorID), attribute.Int("device.product_id", args.ProductID))
}

func (s *Server) GetCurrentLog(r *http.Request, _ *Empty, reply *LogReply) error {
	return s.call(r, "get_current_log", func(context.Context) error {
		reply.Messages = s.daemon.CurrentLog()
		return nil
	})
}

func (s *Server) GetDiagnostics(r *http.Request, _ *Empty, reply *Diagnostics) error {
	return s.call(r, "get_diagnostics", func(ctx context.Context) (err error) {
		*reply, err = s.daemon.Diagnostics(ctx)
		return err
	})
}

func (s *Server) GetPlugins(r *http.Request, _ *Empty, reply *PluginsReply) error {
	return s.call(r, "get_plugins", func(context.Context) error {
		reply.Plugins = s.daemon.Plugins()
		return nil
	})
}

func (s *Server) GetMatchingTypes(r *http.Request, args *TypesArgs, reply *TypesReply) error {
	return s.call(r, "get_matching_types", func(context.Context) error {
		reply.Types = s.daemon.MatchingTypes(args.Category)
		return nil
	}, attribute.String("component.category", string(args.Category)))
}

func (s *Server) GetDefaults(r *http.Request, args *DefaultsArgs, reply *DefaultsReply) error {
	return s.call(r, "get_defaults", func(context.Context) (err error) {
		reply.Store, err = s.daemon.DefaultSettings(args.Path)
		return err
	}, attribute.String("component.path", args.Path))
}

func (s *Server) CheckPluginUpdates(r *http.Request, _ *Empty, reply *UpdatesReply) error {
	return s.call(r, "check_plugin_updates", func(ctx context.Context) (err error) {
		reply.Updates, err = s.daemon.CheckPluginUpdates(ctx)
		return err
	})
}

// Handler returns the HTTP handler serving /rpc and /health.
func (s *Server) Handler() (http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	server.RegisterCodec(json2.NewCodec(), "application/json;charset=UTF-8")

	if err := server.RegisterService(s, ServiceName); err != nil {
		return nil, fmt.Errorf("failed to register service: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/rpc", server)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"state":  string(s.daemon.State()),
		})
	})
	return mux, nil
}

// Start serves the control surface on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Logger.Info("Starting JSON-RPC server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("control surface: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Logger.Info("Shutting down JSON-RPC server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
