package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/retry"
)

// WebhookChannel POSTs each alert as JSON, retrying transient failures.
type WebhookChannel struct {
	url    string
	client *retry.HTTPClient
}

func NewWebhookChannel(url string, client *retry.HTTPClient) (*WebhookChannel, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if client == nil {
		var err error
		if client, err = retry.NewHTTPClient(nil, nil); err != nil {
			return nil, err
		}
	}
	return &WebhookChannel{url: url, client: client}, nil
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Send(ctx context.Context, a types.QueueAlert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.DoWithRetry(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *WebhookChannel) Close() {
	c.client.Close()
}
