package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const maxAttempts = 3

// httpJSON is the transport shared by the provider clients: an optional
// limiter, a retry on 429 with exponential backoff, and JSON decoding.
type httpJSON struct {
	client  *http.Client
	limiter *rate.Limiter
	backoff time.Duration
}

func newHTTPJSON(timeout time.Duration, limiter *rate.Limiter) httpJSON {
	return httpJSON{
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		backoff: time.Second,
	}
}

func (h httpJSON) get(ctx context.Context, url string, out interface{}) error {
	return h.do(ctx, http.MethodGet, url, nil, out)
}

func (h httpJSON) post(ctx context.Context, url string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return h.do(ctx, http.MethodPost, url, payload, out)
}

func (h httpJSON) do(ctx context.Context, method, url string, payload []byte, out interface{}) error {
	var resp *http.Response
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if h.limiter != nil {
			if err := h.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err = h.client.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, url, err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()
		if attempt == maxAttempts-1 {
			return fmt.Errorf("%s %s: rate limited", method, url)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.backoff << uint(attempt)):
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
