package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond
	defaultErrorLabel = "API"
)

// Options tune a single FetchJSON call.
type Options struct {
	// Headers are merged over the default accept header; caller values win.
	Headers map[string]string
	// MaxRetries is the total number of underlying calls, not extra retries.
	MaxRetries int
	// BaseDelay is doubled per attempt: delay before attempt n+1 is
	// BaseDelay * 2^n.
	BaseDelay time.Duration
	// ErrorLabel prefixes upstream error messages, e.g. "Kaspa API".
	ErrorLabel string
}

// Fetcher issues JSON-over-HTTP calls with exponential backoff. Every chain
// adapter shares this primitive. Sleep is a struct field so tests can record
// delays instead of elapsing them.
type Fetcher struct {
	Client *http.Client
	Sleep  func(ctx context.Context, d time.Duration) error
}

func New() *Fetcher {
	return &Fetcher{
		Client: &http.Client{Timeout: 30 * time.Second},
		Sleep:  Sleep,
	}
}

// Sleep elapses d or returns early with the context error on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FetchJSON GETs url and decodes the 2xx JSON body into out, retrying
// transient failures with exponential backoff.
//
// Failure classification per attempt:
//   - transport error: retried; if attempts run out the last transport error
//     is returned unchanged, message preserved verbatim.
//   - HTTP 429: retried; if the final failure was a 429 the caller gets the
//     generic "{label} request failed after retries".
//   - any other non-2xx: retried; if attempts run out the specific
//     "{label} error: {status} {statusText}" is returned.
//
// The generic-vs-specific split on 429 is deliberate; callers key off the
// distinct messages.
func (f *Fetcher) FetchJSON(ctx context.Context, url string, out any, opts Options) error {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	label := opts.ErrorLabel
	if label == "" {
		label = defaultErrorLabel
	}

	var lastErr error
	lastWasRateLimit := false

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errors.Wrap(err, "failed to build request")
		}
		req.Header.Set("accept", "application/json")
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}

		resp, err := f.Client.Do(req)
		if err != nil {
			lastErr = err
			lastWasRateLimit = false
			if attempt < maxRetries-1 {
				if err := f.Sleep(ctx, baseDelay<<attempt); err != nil {
					return err
				}
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("%s request failed after retries", label)
			lastWasRateLimit = true
			if attempt < maxRetries-1 {
				if err := f.Sleep(ctx, baseDelay<<attempt); err != nil {
					return err
				}
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%s error: %d %s", label, resp.StatusCode, http.StatusText(resp.StatusCode))
			lastWasRateLimit = false
			if attempt < maxRetries-1 {
				if err := f.Sleep(ctx, baseDelay<<attempt); err != nil {
					return err
				}
			}
			continue
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return errors.Wrap(err, "failed to decode response")
		}
		return nil
	}

	if lastWasRateLimit {
		return fmt.Errorf("%s request failed after retries", label)
	}
	return lastErr
}
