package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/liveview/liveview/internal/telemetry"
)

const maxRetries = 2

// HTTPClient is the shared fetch-and-decode layer: bounded retries on
// 5xx and transport errors, fail-fast on 4xx, ErrRateLimited on 429.
type HTTPClient struct {
	client  *http.Client
	headers map[string]string
}

func NewHTTPClient(timeout time.Duration, headers map[string]string) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		headers: headers,
	}
}

// GetJSON fetches url and decodes the body into out.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		err := c.getOnce(ctx, url, out)
		if err == nil {
			return nil
		}
		lastErr = err

		// retry only transport failures and 5xx
		var re *retryableError
		if !errors.As(err, &re) {
			return err
		}
		telemetry.Debugf("provider: retrying %s after %v (attempt %d)", url, err, attempt+1)
	}
	return lastErr
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (c *HTTPClient) getOnce(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return &retryableError{fmt.Errorf("http get: %w", err)}
	}
	defer resp.Body.Close()

	telemetry.Debugf("provider: GET %s -> %d (%s)", url, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return &retryableError{fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)}
	default:
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	return nil
}
