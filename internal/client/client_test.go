package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awakenfetch/pkg/types/chains"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithBaseURL(baseURL),
		WithLogger(testLogger()),
		WithBaseDelay(time.Millisecond),
	}
	c, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func writeNDJSON(w http.ResponseWriter, messages ...any) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for _, msg := range messages {
		enc.Encode(msg)
	}
}

func sampleBatch(n int) []chains.Transaction {
	batch := make([]chains.Transaction, n)
	for i := range batch {
		qty := float64(i + 1)
		batch[i] = chains.Transaction{
			Date:             time.Date(2024, 3, 7, 10, i, 0, 0, time.UTC),
			Type:             chains.TypeReceive,
			ReceivedQuantity: &qty,
			ReceivedCurrency: "KAS",
			TxHash:           fmt.Sprintf("tx-%d", i),
		}
	}
	return batch
}

type jsonMap = map[string]any

func TestFetchTransactions_StreamingSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/stream"))
		writeNDJSON(w,
			jsonMap{"type": "batch", "transactions": sampleBatch(2)},
			jsonMap{"type": "batch", "transactions": sampleBatch(1)},
			jsonMap{"type": "done", "total": 3},
		)
	}))
	defer server.Close()

	var progressSizes []int
	c := newTestClient(t, server.URL, WithProgress(func(batch []chains.Transaction) {
		progressSizes = append(progressSizes, len(batch))
	}))

	txs, err := c.FetchTransactions(context.Background(), "kaspa", "addr-1")
	require.NoError(t, err)
	assert.Len(t, txs, 3)
	assert.Equal(t, []int{2, 1}, progressSizes)

	state := c.State()
	assert.Equal(t, StatusSuccess, state.Status)
	assert.Equal(t, 3, state.Total)
	assert.Empty(t, state.Warnings)
	assert.Zero(t, state.RetryCount)

	// dates deserialized from ISO-8601
	assert.Equal(t, time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC), txs[0].Date)
}

func TestFetchTransactions_StreamRateLimited_FallsBackOnce(t *testing.T) {
	var streamCalls, bufferedCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/stream") {
			streamCalls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(jsonMap{"error": "rate limit exceeded"})
			return
		}
		if bufferedCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(jsonMap{"error": "rate limit exceeded"})
			return
		}
		json.NewEncoder(w).Encode(jsonMap{"transactions": sampleBatch(2)})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	txs, err := c.FetchTransactions(context.Background(), "kaspa", "addr-2")
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	assert.Equal(t, int32(1), streamCalls.Load(), "the stream is never retried")
	assert.Equal(t, int32(2), bufferedCalls.Load())

	state := c.State()
	assert.Equal(t, StatusSuccess, state.Status)
	assert.Equal(t, 1, state.RetryCount)
	require.Len(t, state.Warnings, 1)
	assert.Contains(t, state.Warnings[0], "Retry 1/3")
}

func TestFetchTransactions_ValidationErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(jsonMap{"error": "Invalid Kaspa address: nope"})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.FetchTransactions(context.Background(), "kaspa", "nope")
	require.Error(t, err)
	assert.Equal(t, "Invalid Kaspa address: nope", err.Error())
	assert.Equal(t, int32(1), calls.Load())

	state := c.State()
	assert.Equal(t, StatusError, state.Status)
	assert.Equal(t, "Invalid Kaspa address: nope", state.LastError)
	assert.False(t, state.CanRetry)
	assert.Empty(t, state.Warnings)
}

func TestFetchTransactions_BufferedRetriesExhausted(t *testing.T) {
	var bufferedCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/stream") {
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(jsonMap{"error": "upstream unavailable"})
			return
		}
		bufferedCalls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(jsonMap{"error": "upstream unavailable"})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	start := time.Now()
	_, err := c.FetchTransactions(context.Background(), "kaspa", "addr-3")
	require.Error(t, err)
	assert.Equal(t, "upstream unavailable", err.Error())

	// initial attempt plus 3 retries
	assert.Equal(t, int32(4), bufferedCalls.Load())

	state := c.State()
	assert.Equal(t, StatusError, state.Status)
	assert.False(t, state.CanRetry)
	assert.Equal(t, 3, state.RetryCount)
	require.Len(t, state.Warnings, 3)
	assert.Contains(t, state.Warnings[0], "Retry 1/3")
	assert.Contains(t, state.Warnings[1], "Retry 2/3")
	assert.Contains(t, state.Warnings[2], "Retry 3/3")

	// backoff doubles: 1ms + 2ms + 4ms with the shrunken base delay
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchTransactions_NetworkErrorPreservedVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.FetchTransactions(context.Background(), "kaspa", "addr-4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	state := c.State()
	assert.Equal(t, StatusError, state.Status)
	assert.Equal(t, err.Error(), state.LastError)
}

func TestFetchTransactions_InBandStreamErrorFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/stream") {
			writeNDJSON(w,
				jsonMap{"type": "batch", "transactions": sampleBatch(1)},
				jsonMap{"type": "error", "error": "Kaspa API request failed after retries"},
			)
			return
		}
		json.NewEncoder(w).Encode(jsonMap{"transactions": sampleBatch(3)})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	txs, err := c.FetchTransactions(context.Background(), "kaspa", "addr-5")
	require.NoError(t, err)

	// the partial stream result is discarded; the buffered result wins
	assert.Len(t, txs, 3)
	assert.Equal(t, StatusSuccess, c.State().Status)
}

func TestFetchTransactions_CancellationStopsRetries(t *testing.T) {
	var bufferedCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/stream") {
			bufferedCalls.Add(1)
		}
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(jsonMap{"error": "upstream unavailable"})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := newTestClient(t, server.URL, WithBaseDelay(200*time.Millisecond))

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := c.FetchTransactions(ctx, "kaspa", "addr-6")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, bufferedCalls.Load(), int32(2), "no further retries after cancellation")
}

func TestFetchTransactions_CacheHitSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeNDJSON(w,
			jsonMap{"type": "batch", "transactions": sampleBatch(1)},
			jsonMap{"type": "done", "total": 1},
		)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	_, err := c.FetchTransactions(context.Background(), "kaspa", "addr-7")
	require.NoError(t, err)
	first := calls.Load()

	txs, err := c.FetchTransactions(context.Background(), "kaspa", "addr-7")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, first, calls.Load())
	assert.Equal(t, StatusSuccess, c.State().Status)
}

func TestReset(t *testing.T) {
	c := newTestClient(t, "http://localhost:0")
	c.fail(fmt.Errorf("boom"))
	require.Equal(t, StatusError, c.State().Status)

	c.Reset()
	state := c.State()
	assert.Equal(t, StatusIdle, state.Status)
	assert.Empty(t, state.Warnings)
	assert.Empty(t, state.LastError)
	assert.Zero(t, state.RetryCount)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "streaming", StatusStreaming.String())
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "error", StatusError.String())
}
