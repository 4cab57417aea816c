// Package client implements the fetch orchestrator used by awakenctl: it
// prefers the server's streaming proxy, falls back to the buffered proxy on
// transient failure, and retries the buffered path with exponential backoff
// while accumulating user-visible warnings.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"awakenfetch/pkg/integrations/fetch"
	"awakenfetch/pkg/types/chains"
)

var ErrInvalidClientConfig = errors.New("invalid client config")

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 1500 * time.Millisecond
	defaultCacheTTL   = 5 * time.Minute
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries int
	baseDelay  time.Duration
	cache      *gocache.Cache
	onProgress func(batch []chains.Transaction)
	fromDate   *time.Time
	toDate     *time.Time

	mu    sync.Mutex
	state State
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithBaseDelay overrides the 1.5s first-retry delay; tests shrink it.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = d
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = gocache.New(ttl, 2*ttl)
	}
}

// WithProgress registers a callback fired once per streamed batch.
func WithProgress(fn func(batch []chains.Transaction)) Option {
	return func(c *Client) {
		c.onProgress = fn
	}
}

// WithDateRange narrows every fetch to the inclusive window.
func WithDateRange(from, to *time.Time) Option {
	return func(c *Client) {
		c.fromDate = from
		c.toDate = to
	}
}

func (c *Client) IsValid() error {
	switch {
	case c.baseURL == "":
		return errors.Wrap(ErrInvalidClientConfig, "base URL cannot be empty")
	case c.logger == nil:
		return errors.Wrap(ErrInvalidClientConfig, "logger cannot be nil")
	default:
		return nil
	}
}

func New(opts ...Option) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		cache:      gocache.New(defaultCacheTTL, 2*defaultCacheTTL),
		state:      State{Status: StatusIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.IsValid(); err != nil {
		return nil, err
	}
	return c, nil
}

// FetchTransactions runs one full fetch: streaming first, buffered fallback
// with up to 3 backoff retries. Each invocation owns its warning accumulator
// and retry counter.
func (c *Client) FetchTransactions(ctx context.Context, chainID, address string) ([]chains.Transaction, error) {
	c.setState(State{Status: StatusLoading})

	cacheKey := chainID + ":" + address
	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey); ok {
			txs := cached.([]chains.Transaction)
			c.succeed(txs)
			return txs, nil
		}
	}

	txs, err := c.fetchStreaming(ctx, chainID, address)
	if err == nil {
		c.finish(cacheKey, txs)
		return txs, nil
	}
	if !retryable(err) {
		c.fail(err)
		return nil, err
	}
	if ctx.Err() != nil {
		c.fail(ctx.Err())
		return nil, ctx.Err()
	}
	c.logger.Warn("streaming fetch failed, falling back to buffered", "chain", chainID, "error", err)
	c.setStatus(StatusLoading)

	for retry := 0; ; retry++ {
		txs, err = c.fetchBuffered(ctx, chainID, address)
		if err == nil {
			c.finish(cacheKey, txs)
			return txs, nil
		}
		if !retryable(err) || retry == c.maxRetries {
			// exhausted or terminal; the last error message survives verbatim
			c.fail(err)
			return nil, err
		}

		n := retry + 1
		c.addWarning(fmt.Sprintf("Retry %d/%d: %s", n, c.maxRetries, err.Error()))
		c.logger.Warn("buffered fetch failed, retrying",
			"chain", chainID, "retry", n, "error", err)

		if serr := fetch.Sleep(ctx, c.baseDelay<<retry); serr != nil {
			c.fail(serr)
			return nil, serr
		}
	}
}

// Reset returns the client to idle and clears any accumulated state.
func (c *Client) Reset() {
	c.setState(State{Status: StatusIdle})
}

type streamMessage struct {
	Type         string               `json:"type"`
	Transactions []chains.Transaction `json:"transactions"`
	Total        int                  `json:"total"`
	Error        string               `json:"error"`
}

func (c *Client) fetchStreaming(ctx context.Context, chainID, address string) ([]chains.Transaction, error) {
	resp, err := c.get(ctx, c.proxyURL(chainID, address, true))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(resp)
	}
	c.setStatus(StatusStreaming)

	var all []chains.Transaction
	done := false

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg streamMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return nil, errors.Wrap(err, "malformed stream message")
		}
		switch msg.Type {
		case "batch":
			all = append(all, msg.Transactions...)
			if c.onProgress != nil {
				c.onProgress(msg.Transactions)
			}
		case "done":
			done = true
		case "error":
			return nil, &upstreamError{message: msg.Error}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !done {
		return nil, &upstreamError{message: "stream ended before completion"}
	}
	return all, nil
}

func (c *Client) fetchBuffered(ctx context.Context, chainID, address string) ([]chains.Transaction, error) {
	resp, err := c.get(ctx, c.proxyURL(chainID, address, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(resp)
	}

	var body struct {
		Transactions []chains.Transaction `json:"transactions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "failed to decode response")
	}
	return body.Transactions, nil
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")
	return c.httpClient.Do(req)
}

func (c *Client) proxyURL(chainID, address string, stream bool) string {
	u := c.baseURL + "/api/proxy/" + url.PathEscape(chainID)
	if stream {
		u += "/stream"
	}
	q := url.Values{}
	q.Set("address", address)
	if c.fromDate != nil {
		q.Set("fromDate", c.fromDate.UTC().Format(time.RFC3339))
	}
	if c.toDate != nil {
		q.Set("toDate", c.toDate.UTC().Format(time.RFC3339))
	}
	return u + "?" + q.Encode()
}

func (c *Client) finish(cacheKey string, txs []chains.Transaction) {
	if c.cache != nil {
		c.cache.SetDefault(cacheKey, txs)
	}
	c.succeed(txs)
}

// httpError is a non-2xx proxy response carrying the server's error message.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

// upstreamError is an in-band stream failure; the adapter failed after the
// stream had already committed a 200, so it counts as transient.
type upstreamError struct {
	message string
}

func (e *upstreamError) Error() string { return e.message }

func newHTTPError(resp *http.Response) *httpError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return &httpError{status: resp.StatusCode, message: body.Error}
	}
	return &httpError{
		status:  resp.StatusCode,
		message: fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}

// retryable classifies a failure as transient: HTTP 429/502, an in-band
// stream error, or a network-level failure. Anything else (validation 400s
// in particular) is terminal.
func retryable(err error) bool {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		return httpErr.status == http.StatusTooManyRequests ||
			httpErr.status == http.StatusBadGateway
	}
	var streamErr *upstreamError
	if errors.As(err, &streamErr) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// transport-level failure
	return true
}
