package controller

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"awakenfetch/pkg/types/chains"
)

type batchMessage struct {
	Type         string               `json:"type"`
	Transactions []chains.Transaction `json:"transactions"`
}

type doneMessage struct {
	Type  string `json:"type"`
	Total int    `json:"total"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// StreamTransactions relays adapter progress as newline-delimited JSON
// @Summary Streaming transaction proxy
// @Description Emits one batch message per upstream page, then a done message.
// @Description Once the stream starts, failures arrive in-band as error
// @Description messages, never as an HTTP error status.
// @Tags proxy
// @Produce application/x-ndjson
// @Param chain path string true "Chain id"
// @Param address query string true "Wallet address"
// @Param fromDate query string false "Inclusive lower bound (RFC3339 or YYYY-MM-DD)"
// @Param toDate query string false "Inclusive upper bound"
// @Success 200 {string} string "NDJSON stream"
// @Failure 400 {object} APIError
// @Router /api/proxy/{chain}/stream [get]
func (c *Controller) StreamTransactions(ctx *gin.Context) {
	req, msg := c.resolveRequest(ctx)
	if req == nil {
		badRequest(ctx, msg)
		return
	}

	ctx.Header("Content-Type", "application/x-ndjson")
	ctx.Header("Cache-Control", "no-cache")

	// The adapter paginates sequentially in its own goroutine; each progress
	// callback becomes one wire message, so batch order matches upstream page
	// order without shared state.
	msgCh := make(chan any, 16)
	go func() {
		defer close(msgCh)

		delivered := 0
		batches := 0
		req.opts.OnProgress = func(page []chains.Transaction) {
			batches++
			delivered += len(page)
			msgCh <- batchMessage{Type: "batch", Transactions: nonNil(page)}
		}

		txs, err := req.adapter.FetchTransactions(ctx.Request.Context(), req.address, req.opts)
		if err != nil {
			c.logger.Warn("adapter fetch failed mid-stream",
				"chain", req.adapter.ChainID(), "error", err)
			msgCh <- errorMessage{Type: "error", Error: err.Error()}
			return
		}
		if batches == 0 {
			// adapter never reported progress; deliver one synthetic batch
			msgCh <- batchMessage{Type: "batch", Transactions: nonNil(txs)}
			delivered = len(txs)
		}
		msgCh <- doneMessage{Type: "done", Total: delivered}
	}()

	ctx.Stream(func(w io.Writer) bool {
		msg, ok := <-msgCh
		if !ok {
			return false
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return false
		}
		w.Write(data)
		w.Write([]byte("\n"))
		return true
	})
}

func nonNil(txs []chains.Transaction) []chains.Transaction {
	if txs == nil {
		return []chains.Transaction{}
	}
	return txs
}
