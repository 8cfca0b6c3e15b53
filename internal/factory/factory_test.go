// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package factory

import (
	"errors"
	"testing"

	"github.com/dotandev/tabletd/internal/component"
	terrors "github.com/dotandev/tabletd/internal/errors"
	"github.com/dotandev/tabletd/internal/settings"
	"github.com/dotandev/tabletd/internal/tablet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource []component.Export

func (s staticSource) Exports() []component.Export { return s }

func (s staticSource) Lookup(path string) (component.Export, bool) {
	for _, e := range s {
		if e.Path == path {
			return e, true
		}
	}
	return component.Export{}, false
}

type greeter interface{ Greeting() string }

type scaler struct {
	Factor float64 `json:"factor"`
	Label  string  `json:"label"`
	device *tablet.InputDevice
	closed bool
}

func (s *scaler) Greeting() string { return s.Label }
func (s *scaler) Close() error     { s.closed = true; return nil }

var lastBuilt *scaler

func testSource() staticSource {
	return staticSource{
		{
			Path:        "test.Scaler",
			DisplayName: "Scaler",
			Categories:  []component.Category{component.CategoryFilter},
			Defaults:    component.MustValues(map[string]any{"factor": 1.5, "label": "default"}),
			New: func(args component.Args) (any, error) {
				s := &scaler{device: args.Device}
				if err := args.Settings.Bind(s); err != nil {
					return nil, err
				}
				lastBuilt = s
				return s, nil
			},
		},
		{
			Path:       "test.Failing",
			Categories: []component.Category{component.CategoryFilter},
			New:        func(component.Args) (any, error) { return nil, errors.New("no hardware") },
		},
		{
			Path:       "test.Panicking",
			Categories: []component.Category{component.CategoryTool},
			New:        func(component.Args) (any, error) { panic("plugin bug") },
		},
		{
			Path:       "test.Mode",
			Categories: []component.Category{component.CategoryOutputMode},
			New:        func(component.Args) (any, error) { return "not a greeter", nil },
		},
	}
}

func TestConstructBindsSettingsAndDevice(t *testing.T) {
	f := New(testSource())
	dev := tablet.NewInputDevice(&tablet.Configuration{Name: "T"}, nil)
	store := settings.NewStore("test.Scaler", component.MustValues(map[string]any{"label": "custom"}))

	g := Construct[greeter](f, component.CategoryFilter, store, dev)
	require.NotNil(t, g)
	s := g.(*scaler)
	assert.Equal(t, "custom", s.Label)
	assert.Equal(t, 1.5, s.Factor, "defaults fill unset properties")
	assert.Same(t, dev, s.device)
}

func TestConstructReturnsZeroOnFailure(t *testing.T) {
	f := New(testSource())

	disabled := settings.NewStore("test.Scaler", nil)
	disabled.Enable = false

	assert.Nil(t, Construct[greeter](f, component.CategoryFilter, nil, nil))
	assert.Nil(t, Construct[greeter](f, component.CategoryFilter, disabled, nil))
	assert.Nil(t, Construct[greeter](f, component.CategoryFilter, settings.NewStore("test.Missing", nil), nil))
	assert.Nil(t, Construct[greeter](f, component.CategoryOutputMode, settings.NewStore("test.Scaler", nil), nil))
	assert.Nil(t, Construct[greeter](f, component.CategoryFilter, settings.NewStore("test.Failing", nil), nil))
	assert.Nil(t, Construct[greeter](f, component.CategoryOutputMode, settings.NewStore("test.Mode", nil), nil))
	assert.NotPanics(t, func() {
		assert.Nil(t, Construct[greeter](f, component.CategoryTool, settings.NewStore("test.Panicking", nil), nil))
	})
}

func TestConstructClosesWrongInterface(t *testing.T) {
	f := New(testSource())
	type other interface{ Unrelated() }

	assert.Nil(t, Construct[other](f, component.CategoryFilter, settings.NewStore("test.Scaler", nil), nil))
	require.NotNil(t, lastBuilt)
	assert.True(t, lastBuilt.closed)
}

func TestNewReportsErrors(t *testing.T) {
	f := New(testSource())

	_, err := f.New(component.CategoryFilter, settings.NewStore("test.Missing", nil), nil)
	assert.ErrorIs(t, err, terrors.ErrTypeNotFound)

	_, err = f.New(component.CategoryTool, settings.NewStore("test.Scaler", nil), nil)
	assert.ErrorIs(t, err, terrors.ErrIncompatibleType)
}

func TestMetadataQueries(t *testing.T) {
	f := New(testSource())

	store, err := f.DefaultSettings("test.Scaler")
	require.NoError(t, err)
	assert.True(t, store.Enable)
	v, ok := store.Get("factor")
	require.True(t, ok)
	assert.JSONEq(t, `1.5`, string(v))

	_, err = f.DefaultSettings("test.Missing")
	assert.ErrorIs(t, err, terrors.ErrTypeNotFound)

	filters := f.MatchingTypes(component.CategoryFilter)
	require.Len(t, filters, 2)
	assert.Equal(t, "test.Failing", filters[0].Path)
	assert.Equal(t, "test.Scaler", filters[1].Path)
	assert.Empty(t, f.MatchingTypes(component.CategoryBinding))

	assert.Equal(t, "Scaler", f.DisplayName(settings.NewStore("test.Scaler", nil)))
	assert.Equal(t, "test.Failing", f.DisplayName(settings.NewStore("test.Failing", nil)))
	assert.Equal(t, "gone.Type", f.DisplayName(settings.NewStore("gone.Type", nil)))

	e, err := f.Describe("test.Mode")
	require.NoError(t, err)
	assert.True(t, e.Is(component.CategoryOutputMode))
}
