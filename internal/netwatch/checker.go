// Package netwatch assesses network reachability. A Checker answers one-shot
// queries; a Watcher polls a Checker and streams changes to subscribers.
package netwatch

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Status is the reachability assessment.
type Status int

const (
	Disconnected Status = iota
	Connected
)

func (s Status) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Checker answers a one-shot reachability query.
type Checker interface {
	Check(ctx context.Context) Status
}

const defaultProbeTimeout = 3 * time.Second

// HTTPChecker probes an HTTP(S) address. Any completed round trip counts as
// connected; the response status is irrelevant since a 500 still proves the
// network path works.
type HTTPChecker struct {
	client    *http.Client
	probeURL  string
	userAgent string
}

// CheckerOption mutates HTTPChecker configuration.
type CheckerOption func(*HTTPChecker)

// WithProbeTimeout bounds each probe attempt.
func WithProbeTimeout(d time.Duration) CheckerOption {
	return func(c *HTTPChecker) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithUserAgent sets the probe's User-Agent header.
func WithUserAgent(ua string) CheckerOption {
	return func(c *HTTPChecker) {
		c.userAgent = ua
	}
}

// NewHTTPChecker constructs a checker probing the given address.
func NewHTTPChecker(probeURL string, opts ...CheckerOption) *HTTPChecker {
	c := &HTTPChecker{
		client:   &http.Client{Timeout: defaultProbeTimeout},
		probeURL: probeURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check implements Checker.
func (c *HTTPChecker) Check(ctx context.Context) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.probeURL, nil)
	if err != nil {
		logrus.Debugf("reachability probe request failed: %v", err)
		return Disconnected
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		logrus.Debugf("reachability probe failed: %v", err)
		return Disconnected
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return Connected
}
