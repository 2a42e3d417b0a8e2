// Package console talks to the management console at the network level.
// Registration itself happens inside the scanner container; this client only
// answers "can this host reach the console at all".
package console

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

type Client struct {
	host   string
	port   int
	dialTO time.Duration
	http   *retryablehttp.Client
	logger *slog.Logger
}

// NewClient builds a console client. The workflow never retries on its own,
// so the HTTP client's built-in retries are capped low.
func NewClient(host string, port int, dialTimeout time.Duration, logger *slog.Logger) *Client {
	hc := retryablehttp.NewClient()
	hc.RetryMax = 2
	hc.RetryWaitMin = 100 * time.Millisecond
	hc.RetryWaitMax = 500 * time.Millisecond
	hc.Logger = nil
	hc.HTTPClient.Timeout = dialTimeout
	// Consoles ship self-signed certificates; this probe checks liveness,
	// not identity.
	hc.HTTPClient.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	return &Client{
		host:   host,
		port:   port,
		dialTO: dialTimeout,
		http:   hc,
		logger: logger,
	}
}

// Addr returns the console endpoint as host:port.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Reachable probes the console with a plain TCP dial.
func (c *Client) Reachable(ctx context.Context) error {
	dialer := &net.Dialer{Timeout: c.dialTO}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		return fmt.Errorf("dial console %s: %w", c.Addr(), err)
	}
	conn.Close()
	return nil
}

// Healthz probes the console over HTTPS. Any HTTP response counts as alive;
// the console is not expected to expose an unauthenticated API here.
func (c *Client) Healthz(ctx context.Context) error {
	req, err := retryablehttp.NewRequest(http.MethodGet, "https://"+c.Addr()+"/", nil)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("console https probe %s: %w", c.Addr(), err)
	}
	resp.Body.Close()

	c.logger.Debug("console https probe", "addr", c.Addr(), "status", resp.StatusCode)
	return nil
}
