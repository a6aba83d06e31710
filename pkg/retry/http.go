package retry

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
)

type HTTPRetryConfig struct {
	RetryConfig     *RetryConfig
	Timeout         time.Duration
	IdleConnTimeout time.Duration
	// MaxResponseSize caps how much of a retried response body is kept for
	// the error message.
	MaxResponseSize int64
}

func DefaultHTTPRetryConfig() *HTTPRetryConfig {
	return &HTTPRetryConfig{
		RetryConfig:     DefaultRetryConfig(),
		Timeout:         10 * time.Second,
		IdleConnTimeout: 30 * time.Second,
		MaxResponseSize: 4096,
	}
}

func (c *HTTPRetryConfig) Validate() error {
	switch {
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive")
	case c.IdleConnTimeout <= 0:
		return fmt.Errorf("idleConnTimeout must be positive")
	case c.MaxResponseSize < 0:
		return fmt.Errorf("maxResponseSize must be >= 0")
	case c.RetryConfig == nil:
		return fmt.Errorf("retry config is required")
	}
	return c.RetryConfig.Validate()
}

// StatusError is a response whose status code is configured as retryable.
type StatusError struct {
	StatusCode int
	Preview    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received retryable status code: %d, body preview: %q", e.StatusCode, e.Preview)
}

// HTTPClient retries transport errors and the StatusCodes of its policy.
type HTTPClient struct {
	client *http.Client
	config *HTTPRetryConfig
	logger logging.Logger
}

func NewHTTPClient(cfg *HTTPRetryConfig, logger logging.Logger) (*HTTPClient, error) {
	if cfg == nil {
		cfg = DefaultHTTPRetryConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid HTTP retry config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	transport := &http.Transport{
		IdleConnTimeout: cfg.IdleConnTimeout,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout / 2,
			KeepAlive: cfg.IdleConnTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.Timeout / 2,
		ResponseHeaderTimeout: cfg.Timeout / 2,
	}
	return &HTTPClient{
		client: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		config: cfg,
		logger: logger,
	}, nil
}

// DoWithRetry sends req until it gets a non-retryable response. The request
// body is buffered so every attempt replays it. The caller closes the body
// of the returned response.
func (c *HTTPClient) DoWithRetry(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil && req.GetBody == nil {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("error reading request body: %w", err)
		}
		_ = req.Body.Close()
		body = data
	}

	attempt := func() (*http.Response, error) {
		clone := req.Clone(req.Context())
		switch {
		case req.GetBody != nil:
			rc, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to get request body: %w", err)
			}
			clone.Body = rc
		case body != nil:
			clone.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := c.client.Do(clone)
		if err != nil {
			return nil, fmt.Errorf("http request failed: %w", err)
		}
		if slices.Contains(c.config.RetryConfig.StatusCodes, resp.StatusCode) {
			preview, _ := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseSize))
			_ = resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode, Preview: truncate(string(preview), 200)}
		}
		return resp, nil
	}
	return Retry(req.Context(), attempt, c.config.RetryConfig, c.logger)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (c *HTTPClient) Close() {
	c.client.CloseIdleConnections()
}
