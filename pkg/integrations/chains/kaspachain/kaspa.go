package kaspachain

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"awakenfetch/pkg/awakencsv"
	"awakenfetch/pkg/integrations/fetch"
	"awakenfetch/pkg/types/chains"
)

var (
	_ chains.Adapter = (*Adapter)(nil)

	addressPattern = regexp.MustCompile(`^kaspa:[a-z0-9]{61,63}$`)
)

const (
	pageSize     = 500
	sompiPerKas  = 1e8
	currencyCode = "KAS"
)

// Adapter fetches wallet history from the public Kaspa REST API.
type Adapter struct {
	BaseURL string
	Fetcher *fetch.Fetcher
}

func New() *Adapter {
	return &Adapter{
		BaseURL: "https://api.kaspa.org",
		Fetcher: fetch.New(),
	}
}

func (a *Adapter) ChainID() string   { return "kaspa" }
func (a *Adapter) ChainName() string { return "Kaspa" }

func (a *Adapter) ValidateAddress(address string) bool {
	return addressPattern.MatchString(strings.ToLower(strings.TrimSpace(address)))
}

func (a *Adapter) ExplorerURL(txHash string) string {
	return "https://explorer.kaspa.org/txs/" + txHash
}

func (a *Adapter) ToAwakenCSV(txs []chains.Transaction) string {
	return awakencsv.GenerateStandardCSV(txs)
}

type rawOutpoint struct {
	PreviousOutpointAddress string `json:"previous_outpoint_address"`
	PreviousOutpointAmount  int64  `json:"previous_outpoint_amount"`
}

type rawOutput struct {
	ScriptPublicKeyAddress string `json:"script_public_key_address"`
	Amount                 int64  `json:"amount"`
}

type rawTransaction struct {
	TransactionID string        `json:"transaction_id"`
	BlockTime     int64         `json:"block_time"` // milliseconds
	IsAccepted    bool          `json:"is_accepted"`
	Mass          string        `json:"mass"`
	Inputs        []rawOutpoint `json:"inputs"`
	Outputs       []rawOutput   `json:"outputs"`
}

type countResponse struct {
	Total int `json:"total"`
}

// FetchTransactions pages through the address history and maps accepted
// transactions involving the address into canonical form, sorted ascending
// by timestamp.
func (a *Adapter) FetchTransactions(ctx context.Context, address string, opts *chains.FetchOptions) ([]chains.Transaction, error) {
	if !a.ValidateAddress(address) {
		return nil, fmt.Errorf("Invalid Kaspa address: %s", address)
	}
	address = strings.ToLower(strings.TrimSpace(address))

	if opts != nil && opts.OnEstimatedTotal != nil {
		var count countResponse
		url := fmt.Sprintf("%s/addresses/%s/transactions-count", a.BaseURL, address)
		if err := a.Fetcher.FetchJSON(ctx, url, &count, a.fetchOptions()); err == nil {
			opts.OnEstimatedTotal(count.Total)
		}
	}

	var all []chains.Transaction
	for offset := 0; ; offset += pageSize {
		url := fmt.Sprintf("%s/addresses/%s/full-transactions?limit=%d&offset=%d&resolve_previous_outpoints=light",
			a.BaseURL, address, pageSize, offset)

		var page []rawTransaction
		if err := a.Fetcher.FetchJSON(ctx, url, &page, a.fetchOptions()); err != nil {
			return nil, err
		}

		batch := make([]chains.Transaction, 0, len(page))
		for _, raw := range page {
			tx, ok := a.mapTransaction(address, raw, opts)
			if ok {
				batch = append(batch, tx)
			}
		}

		if opts != nil && opts.OnProgress != nil && len(batch) > 0 {
			opts.OnProgress(batch)
		}
		all = append(all, batch...)

		if len(page) < pageSize {
			break
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Date.Before(all[j].Date)
	})
	return all, nil
}

func (a *Adapter) fetchOptions() fetch.Options {
	return fetch.Options{ErrorLabel: "Kaspa API"}
}

// mapTransaction classifies one UTXO transaction relative to the queried
// address. The net of inputs owned by the address against change returned to
// it decides send vs receive; the implied fee lands on the sender only.
func (a *Adapter) mapTransaction(address string, raw rawTransaction, opts *chains.FetchOptions) (chains.Transaction, bool) {
	if !raw.IsAccepted {
		return chains.Transaction{}, false
	}

	ts := time.UnixMilli(raw.BlockTime).UTC()
	if !opts.InRange(ts) {
		return chains.Transaction{}, false
	}

	var inputsFromAddr, inputsTotal, outputsToAddr, outputsTotal int64
	for _, in := range raw.Inputs {
		inputsTotal += in.PreviousOutpointAmount
		if in.PreviousOutpointAddress == address {
			inputsFromAddr += in.PreviousOutpointAmount
		}
	}
	for _, out := range raw.Outputs {
		outputsTotal += out.Amount
		if out.ScriptPublicKeyAddress == address {
			outputsToAddr += out.Amount
		}
	}

	if inputsFromAddr == 0 && outputsToAddr == 0 {
		return chains.Transaction{}, false
	}

	tx := chains.Transaction{
		Date:   ts,
		TxHash: raw.TransactionID,
	}

	if inputsFromAddr > 0 {
		fee := float64(inputsTotal-outputsTotal) / sompiPerKas
		sent := float64(inputsFromAddr-outputsToAddr)/sompiPerKas - fee
		if sent < 0 {
			sent = 0
		}
		tx.Type = chains.TypeSend
		tx.SentQuantity = &sent
		tx.SentCurrency = currencyCode
		if fee > 0 {
			tx.FeeAmount = &fee
			tx.FeeCurrency = currencyCode
		}
	} else {
		received := float64(outputsToAddr) / sompiPerKas
		tx.Type = chains.TypeReceive
		tx.ReceivedQuantity = &received
		tx.ReceivedCurrency = currencyCode
	}

	return tx, true
}
