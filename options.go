package ingrain

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option func(*Client) error

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) error {
		if l == nil {
			return errors.New("ingrain: nil logger")
		}
		c.logger = l
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for both servers.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("ingrain: nil http client")
		}
		c.httpClient = hc
		return nil
	}
}

// WithTimeout bounds every request attempt. Zero means no client-side
// limit; the caller's context still applies.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return errors.New("ingrain: negative timeout")
		}
		c.timeout = d
		return nil
	}
}

// WithRetries retries embedding, classification and model metadata calls
// up to n more times, waiting delay between attempts. Model loading,
// unloading and health checks are never retried.
func WithRetries(n uint, delay time.Duration) Option {
	return func(c *Client) error {
		if delay < 0 {
			return errors.New("ingrain: negative retry delay")
		}
		c.retries = n
		c.retryDelay = delay
		return nil
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		c.userAgent = ua
		return nil
	}
}

// WithMetrics records request counts and latencies on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) error {
		m, err := newClientMetrics(reg)
		if err != nil {
			return err
		}
		c.metrics = m
		return nil
	}
}

// WithTracing wraps the HTTP transport with OpenTelemetry instrumentation
// using the global tracer provider.
func WithTracing() Option {
	return func(c *Client) error {
		c.tracing = true
		return nil
	}
}
