// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package crashreport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collector(t *testing.T, status int) (*httptest.Server, *[]Report) {
	t.Helper()
	var got []Report
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rep Report
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rep))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		got = append(got, rep)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestEnabled(t *testing.T) {
	tests := []struct {
		env    string
		config bool
		want   bool
	}{
		{"", false, false},
		{"", true, true},
		{"true", false, true},
		{"1", false, true},
		{"false", true, false},
		{"0", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv(envOptIn, tt.env)
			assert.Equal(t, tt.want, New(Config{Enabled: tt.config}).Enabled())
		})
	}

	var nilReporter *Reporter
	assert.False(t, nilReporter.Enabled())
}

func TestSendPostsReport(t *testing.T) {
	t.Setenv(envOptIn, "")
	srv, got := collector(t, http.StatusAccepted)

	r := New(Config{Enabled: true, Endpoint: srv.URL, Version: "0.4.0"})
	require.NoError(t, r.Send(context.Background(), errors.New("nil map write"), []byte("goroutine 1"), "control-loop"))

	require.Len(t, *got, 1)
	rep := (*got)[0]
	assert.Equal(t, "nil map write", rep.Message)
	assert.Equal(t, "control-loop", rep.Source)
	assert.Equal(t, "0.4.0", rep.Version)
	assert.Equal(t, runtime.GOOS, rep.OS)
	assert.Equal(t, "goroutine 1", rep.Stack)
}

func TestSendDisabledSendsNothing(t *testing.T) {
	t.Setenv(envOptIn, "")
	srv, got := collector(t, http.StatusOK)

	r := New(Config{Enabled: false, Endpoint: srv.URL})
	require.NoError(t, r.Send(context.Background(), errors.New("boom"), nil, ""))
	assert.Empty(t, *got)
}

func TestSendReportsEndpointFailure(t *testing.T) {
	t.Setenv(envOptIn, "")
	srv, _ := collector(t, http.StatusInternalServerError)

	r := New(Config{Enabled: true, Endpoint: srv.URL})
	err := r.Send(context.Background(), errors.New("boom"), nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestEndpointFromEnvironment(t *testing.T) {
	t.Setenv(envOptIn, "1")
	srv, got := collector(t, http.StatusOK)
	t.Setenv(envEndpoint, srv.URL)

	require.NoError(t, New(Config{}).Send(context.Background(), errors.New("boom"), nil, ""))
	assert.Len(t, *got, 1)
}

func TestRecoverStoresPanic(t *testing.T) {
	t.Setenv(envOptIn, "")
	srv, got := collector(t, http.StatusOK)
	r := New(Config{Enabled: true, Endpoint: srv.URL})

	run := func() (err error) {
		defer r.Recover(context.Background(), "tabletd.filters.Broken", &err)
		panic("index out of range")
	}

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in tabletd.filters.Broken")
	require.Len(t, *got, 1)
	assert.Equal(t, "tabletd.filters.Broken", (*got)[0].Source)
}

func TestRecoverWithoutPanic(t *testing.T) {
	var r *Reporter
	run := func() (err error) {
		defer r.Recover(context.Background(), "control-loop", &err)
		return nil
	}
	assert.NoError(t, run())
}

func TestHandlePanicRepanics(t *testing.T) {
	t.Setenv(envOptIn, "")
	srv, got := collector(t, http.StatusOK)
	r := New(Config{Enabled: true, Endpoint: srv.URL})

	assert.PanicsWithValue(t, "fatal", func() {
		defer r.HandlePanic(context.Background(), "main")
		panic("fatal")
	})
	assert.Len(t, *got, 1)
}
