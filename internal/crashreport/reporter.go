// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

// Package crashreport sends opt-in crash reports when the daemon or a
// plugin component panics.
//
// Reports go to Sentry when a DSN is configured and are POSTed as JSON to
// an HTTPS endpoint when one is configured. Nothing is sent unless the user
// opts in through crash_reporting in tabletd.toml or TABLETD_CRASH_REPORTING.
// Reports carry the panic message, stack, platform and daemon version only;
// no settings, device strings or input reports.
package crashreport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/dotandev/tabletd/internal/logger"
	"github.com/getsentry/sentry-go"
)

const (
	timeout = 5 * time.Second

	envOptIn     = "TABLETD_CRASH_REPORTING"
	envEndpoint  = "TABLETD_CRASH_ENDPOINT"
	envSentryDSN = "TABLETD_SENTRY_DSN"
)

// Report is the JSON body delivered to the endpoint.
type Report struct {
	Version   string `json:"version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	GoVersion string `json:"go_version"`
	Time      string `json:"time"`
	Message   string `json:"message"`
	Stack     string `json:"stack,omitempty"`
	// Source names where the panic was caught, e.g. "control-loop" or a
	// component type path.
	Source string `json:"source,omitempty"`
}

// Config mirrors the crash_* keys of tabletd.toml.
type Config struct {
	Enabled   bool
	SentryDSN string
	Endpoint  string
	Version   string
}

// Reporter dispatches reports to the configured sinks.
type Reporter struct {
	cfg    Config
	client *http.Client
	sentry bool
	log    *slog.Logger
}

// New resolves environment overrides and initializes Sentry when a DSN is
// present.
func New(cfg Config) *Reporter {
	if dsn := os.Getenv(envSentryDSN); dsn != "" {
		cfg.SentryDSN = dsn
	}
	if ep := os.Getenv(envEndpoint); ep != "" {
		cfg.Endpoint = ep
	}

	r := &Reporter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    logger.For("CrashReport"),
	}
	if cfg.SentryDSN != "" && r.Enabled() {
		err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Release: "tabletd@" + cfg.Version})
		if err != nil {
			r.log.Warn("Sentry disabled", "error", err)
		} else {
			r.sentry = true
		}
	}
	return r
}

// Enabled reports whether the user opted in. The environment wins over
// the config file.
func (r *Reporter) Enabled() bool {
	if r == nil {
		return false
	}
	switch os.Getenv(envOptIn) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return r.cfg.Enabled
}

// Send delivers a report for err to every sink. It is a no-op when
// reporting is disabled or no sink is configured.
func (r *Reporter) Send(ctx context.Context, err error, stack []byte, source string) error {
	if !r.Enabled() {
		return nil
	}
	rep := r.build(err, stack, source)

	var errs []error
	if r.sentry {
		r.toSentry(rep)
	}
	if r.cfg.Endpoint != "" {
		if sendErr := r.toEndpoint(ctx, rep); sendErr != nil {
			errs = append(errs, sendErr)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("sending crash report: %w", err)
	}
	return nil
}

func (r *Reporter) toSentry(rep Report) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("os", rep.OS)
		scope.SetTag("arch", rep.Arch)
		scope.SetTag("source", rep.Source)
		scope.SetExtra("stack", rep.Stack)
		sentry.CaptureMessage(rep.Message)
	})
	sentry.Flush(timeout)
}

func (r *Reporter) toEndpoint(ctx context.Context, rep Report) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tabletd/"+r.cfg.Version)

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("crash endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (r *Reporter) build(err error, stack []byte, source string) Report {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	goVersion := runtime.Version()
	if bi, ok := debug.ReadBuildInfo(); ok {
		goVersion = bi.GoVersion
	}
	return Report{
		Version:   r.cfg.Version,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		GoVersion: goVersion,
		Time:      time.Now().UTC().Format(time.RFC3339),
		Message:   msg,
		Stack:     string(stack),
		Source:    source,
	}
}

// panicError converts a recovered value to an error.
func panicError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("%v", v)
}

// HandlePanic is deferred at the top of main. It reports an in-flight
// panic and re-panics so the process still exits non-zero.
func (r *Reporter) HandlePanic(ctx context.Context, source string) {
	v := recover()
	if v == nil {
		return
	}
	_ = r.Send(ctx, panicError(v), debug.Stack(), source)
	panic(v)
}

// Recover is deferred around work that must not take the daemon down,
// such as a control-loop task running plugin code. It logs and reports
// the panic and stores it in *err when err is non-nil.
func (r *Reporter) Recover(ctx context.Context, source string, err *error) {
	v := recover()
	if v == nil {
		return
	}
	perr := fmt.Errorf("panic in %s: %w", source, panicError(v))
	stack := debug.Stack()
	logger.For("CrashReport").Error("Recovered panic", "source", source, "error", perr)
	if r != nil {
		if sendErr := r.Send(ctx, perr, stack, source); sendErr != nil {
			r.log.Warn("Crash report not delivered", "error", sendErr)
		}
	}
	if err != nil {
		*err = perr
	}
}
