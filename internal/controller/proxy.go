package controller

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"awakenfetch/pkg/awakencsv"
	"awakenfetch/pkg/types/chains"
)

// proxyRequest is a validated, ready-to-run fetch against one chain adapter.
type proxyRequest struct {
	adapter chains.Adapter
	address string
	opts    *chains.FetchOptions
}

// resolveRequest runs the shared pre-I/O validation for the proxy endpoints:
// known chain, present and valid address, parsable date bounds. The returned
// message is safe to surface to the client as-is.
func (c *Controller) resolveRequest(ctx *gin.Context) (*proxyRequest, string) {
	chainID := ctx.Param("chain")
	adapter, ok := c.registry.Get(chainID)
	if !ok {
		return nil, "unknown chain: " + chainID
	}

	address := ctx.Query("address")
	if address == "" {
		return nil, "address is required"
	}
	if !adapter.ValidateAddress(address) {
		return nil, fmt.Sprintf("Invalid %s address: %s", adapter.ChainName(), address)
	}

	opts := &chains.FetchOptions{}
	if raw := ctx.Query("fromDate"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return nil, "invalid fromDate: " + raw
		}
		opts.FromDate = &t
	}
	if raw := ctx.Query("toDate"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return nil, "invalid toDate: " + raw
		}
		opts.ToDate = &t
	}

	return &proxyRequest{adapter: adapter, address: address, opts: opts}, ""
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ListChains returns the registered chain ids
// @Summary List supported chains
// @Tags proxy
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/chains [get]
func (c *Controller) ListChains(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"chains": c.registry.ChainIDs()})
}

// ProxyTransactions fetches the full wallet history in one response
// @Summary Buffered transaction proxy
// @Description Drives the chain adapter once and returns the complete result
// @Tags proxy
// @Produce json
// @Param chain path string true "Chain id"
// @Param address query string true "Wallet address"
// @Param fromDate query string false "Inclusive lower bound (RFC3339 or YYYY-MM-DD)"
// @Param toDate query string false "Inclusive upper bound"
// @Success 200 {object} map[string][]chains.Transaction
// @Failure 400 {object} APIError
// @Failure 502 {object} APIError
// @Router /api/proxy/{chain} [get]
func (c *Controller) ProxyTransactions(ctx *gin.Context) {
	req, msg := c.resolveRequest(ctx)
	if req == nil {
		badRequest(ctx, msg)
		return
	}

	txs, err := c.safeFetch(ctx, req)
	if err != nil {
		c.logger.Warn("adapter fetch failed",
			"chain", req.adapter.ChainID(), "error", err)
		badGateway(ctx, err.Error())
		return
	}
	if txs == nil {
		txs = []chains.Transaction{}
	}

	ctx.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// ExportTransactions fetches the history and returns it as an Awaken CSV file
// @Summary CSV export
// @Tags proxy
// @Produce text/csv
// @Param chain path string true "Chain id"
// @Param address query string true "Wallet address"
// @Success 200 {file} file
// @Failure 400 {object} APIError
// @Failure 502 {object} APIError
// @Router /api/proxy/{chain}/export [get]
func (c *Controller) ExportTransactions(ctx *gin.Context) {
	req, msg := c.resolveRequest(ctx)
	if req == nil {
		badRequest(ctx, msg)
		return
	}

	txs, err := c.safeFetch(ctx, req)
	if err != nil {
		badGateway(ctx, err.Error())
		return
	}

	filename := awakencsv.Filename(req.adapter.ChainID(), req.address, time.Now(), false)
	data := req.adapter.ToAwakenCSV(txs)

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	ctx.Data(http.StatusOK, "text/csv", []byte(data))
}

// safeFetch shields the response path from a panicking adapter; a recovered
// non-error value surfaces as the opaque "Unknown error occurred".
func (c *Controller) safeFetch(ctx *gin.Context, req *proxyRequest) (txs []chains.Transaction, err error) {
	defer func() {
		if r := recover(); r != nil {
			if recovered, ok := r.(error); ok {
				err = recovered
				return
			}
			err = fmt.Errorf("Unknown error occurred")
		}
	}()
	return req.adapter.FetchTransactions(ctx.Request.Context(), req.address, req.opts)
}
