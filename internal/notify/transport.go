package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nicholas-fedor/shoutrrr"
)

// Transport posts a JSON payload to a webhook URL.
type Transport interface {
	PostJSON(ctx context.Context, url string, payload any) error
}

// HTTPTransport is the resty-backed Transport.
type HTTPTransport struct {
	client *resty.Client
}

// NewHTTPTransport creates a transport whose requests give up after
// timeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "diskmind")
	return &HTTPTransport{client: client}
}

func (t *HTTPTransport) PostJSON(ctx context.Context, url string, payload any) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(url)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	return nil
}

// Sender abstracts shoutrrr so the dispatcher can be tested without
// hitting real services.
type Sender interface {
	Send(shoutrrrURL, message string) error
}

// ShoutrrrSender dispatches via the Shoutrrr library.
type ShoutrrrSender struct{}

func (ShoutrrrSender) Send(url, message string) error {
	return shoutrrr.Send(url, message)
}

// sendWithContext bounds a Sender call by ctx. Shoutrrr has no context
// support, so a timed-out send keeps running in the background.
func sendWithContext(ctx context.Context, s Sender, url, message string) error {
	done := make(chan error, 1)
	go func() { done <- s.Send(url, message) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
