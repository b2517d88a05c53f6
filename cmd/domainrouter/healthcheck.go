package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newHealthcheckCmd(g *globalOptions) *cobra.Command {
	var (
		target  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe /healthz of a running server (for container HEALTHCHECK)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				target = g.cfg.Server.Listen
			}
			u, err := deriveHealthzURL(target)
			if err != nil {
				return err
			}
			if err := runHealthcheck(u, timeout); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "url", "", "health URL or listen address (default server.listen)")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
	return cmd
}

// deriveHealthzURL accepts a full URL, a listen address ("host:port",
// ":port") or a bare port. Wildcard hosts are checked on loopback.
func deriveHealthzURL(in string) (string, error) {
	in = strings.TrimSpace(in)
	if in == "" {
		return "", errors.New("empty health check target")
	}

	if strings.Contains(in, "://") {
		u, err := url.Parse(in)
		if err != nil {
			return "", fmt.Errorf("invalid health check URL %q: %w", in, err)
		}
		if u.Host == "" {
			return "", fmt.Errorf("invalid health check URL %q: missing host", in)
		}
		if u.Path == "" || u.Path == "/" {
			u.Path = "/healthz"
		}
		return u.String(), nil
	}

	host, port := "", in
	if strings.Contains(in, ":") {
		h, p, err := net.SplitHostPort(in)
		if err != nil {
			return "", fmt.Errorf("invalid listen address %q: %w", in, err)
		}
		host, port = h, p
	}
	switch host {
	case "", "0.0.0.0":
		host = "127.0.0.1"
	case "::":
		host = "::1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/healthz", nil
}

func runHealthcheck(u string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(u)
	if err != nil {
		return fmt.Errorf("healthcheck %s: %w", u, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck %s: unexpected status %d", u, resp.StatusCode)
	}
	return nil
}
