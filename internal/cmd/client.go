// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dotandev/tabletd/internal/daemon"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/spf13/cobra"
)

// clientTimeout covers plugin downloads, the slowest control call.
const clientTimeout = 3 * time.Minute

var (
	clientAddr  string
	clientToken string
)

// call invokes method on the running daemon.
func call(ctx context.Context, method string, args, reply any) error {
	addr := clientAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	token := clientToken
	if token == "" {
		token = cfg.AuthToken
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}

	body, err := json2.EncodeClientRequest(daemon.ServiceName+"."+method, args)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr+"/rpc", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: clientTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", addr, err)
	}
	defer resp.Body.Close()
	return json2.DecodeClientResponse(resp.Body, reply)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// addClientFlags gives a command group the daemon address and token flags.
func addClientFlags(c *cobra.Command) {
	c.PersistentFlags().StringVar(&clientAddr, "addr", "", "Daemon control address (default from config)")
	c.PersistentFlags().StringVar(&clientToken, "token", "", "Daemon authentication token (default from config)")
}
