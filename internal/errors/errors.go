// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison with errors.Is
var (
	ErrDeviceNotFound      = errors.New("device not found")
	ErrTypeNotFound        = errors.New("component type not found")
	ErrIncompatibleType    = errors.New("component type is incompatible")
	ErrUnsupportedArchive  = errors.New("unsupported archive type")
	ErrPluginNotFound      = errors.New("plugin not found")
	ErrPresetNotFound      = errors.New("preset not found")
	ErrSettingsCorrupt     = errors.New("settings file is corrupt")
	ErrPlatformUnsupported = errors.New("platform is not supported")
	ErrDownloadFailed      = errors.New("plugin download failed")
	ErrDaemonStopped       = errors.New("daemon is not running")
	ErrConfig              = errors.New("invalid configuration")
)

// Wrap functions for consistent error wrapping
func WrapDeviceNotFound(vendorID, productID int) error {
	return fmt.Errorf("%w (%04X:%04X)", ErrDeviceNotFound, vendorID, productID)
}

func WrapTypeNotFound(path string) error {
	return fmt.Errorf("%w: %s", ErrTypeNotFound, path)
}

func WrapIncompatibleType(path, category string) error {
	return fmt.Errorf("%w: %s does not provide %s", ErrIncompatibleType, path, category)
}

func WrapUnsupportedArchive(ext string) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedArchive, ext)
}

func WrapPluginNotFound(dir string) error {
	return fmt.Errorf("%w: %s", ErrPluginNotFound, dir)
}

func WrapPresetNotFound(name string) error {
	return fmt.Errorf("%w: %s", ErrPresetNotFound, name)
}

func WrapSettingsCorrupt(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSettingsCorrupt, path, err)
}

func WrapPlatformUnsupported(goos string) error {
	return fmt.Errorf("%w: %s", ErrPlatformUnsupported, goos)
}

func WrapDownloadFailed(name string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDownloadFailed, name, err)
}

func WrapConfigError(msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrConfig, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrConfig, msg, err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// Join wraps the given errors, discarding nils.
func Join(errs ...error) error { return errors.Join(errs...) }
