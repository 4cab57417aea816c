package ethchain

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"awakenfetch/pkg/awakencsv"
	"awakenfetch/pkg/integrations/fetch"
	"awakenfetch/pkg/types/chains"
)

var (
	_ chains.Adapter = (*Adapter)(nil)

	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

const (
	pageSize     = 200
	weiPerEther  = 1e18
	currencyCode = "ETH"
)

// Adapter fetches wallet history from an Etherscan-compatible API.
type Adapter struct {
	BaseURL string
	APIKey  string
	Fetcher *fetch.Fetcher
}

func New() *Adapter {
	return &Adapter{
		BaseURL: "https://api.etherscan.io/api",
		APIKey:  os.Getenv("ETHERSCAN_API_KEY"),
		Fetcher: fetch.New(),
	}
}

func (a *Adapter) ChainID() string   { return "ethereum" }
func (a *Adapter) ChainName() string { return "Ethereum" }

func (a *Adapter) ValidateAddress(address string) bool {
	return addressPattern.MatchString(strings.TrimSpace(address))
}

func (a *Adapter) ExplorerURL(txHash string) string {
	return "https://etherscan.io/tx/" + txHash
}

func (a *Adapter) ToAwakenCSV(txs []chains.Transaction) string {
	return awakencsv.GenerateStandardCSV(txs)
}

type txListResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Result  []rawTx `json:"result"`
}

type rawTx struct {
	TimeStamp    string `json:"timeStamp"`
	Hash         string `json:"hash"`
	From         string `json:"from"`
	To           string `json:"to"`
	Value        string `json:"value"`
	GasUsed      string `json:"gasUsed"`
	GasPrice     string `json:"gasPrice"`
	IsError      string `json:"isError"`
	FunctionName string `json:"functionName"`
}

// classification decision table: function-name prefix first, then known
// contract addresses, then plain transfer direction.
var functionTypes = []struct {
	prefix string
	txType string
}{
	{"approve", chains.TypeApproval},
	{"addliquidity", chains.TypeLPAdd},
	{"removeliquidity", chains.TypeLPRemove},
	{"stake", chains.TypeStake},
	{"deposit", chains.TypeStake},
	{"unstake", chains.TypeUnstake},
	{"withdraw", chains.TypeUnstake},
	{"claim", chains.TypeClaim},
	{"getreward", chains.TypeClaim},
	{"swap", chains.TypeTrade},
	{"bridge", chains.TypeBridge},
}

var bridgeContracts = map[string]struct{}{
	"0x99c9fc46f92e8a1c0dec1b1747d010903e884be1": {}, // Optimism gateway
	"0xa0c68c638235ee32657e8f720a23cec1bfc77c77": {}, // Polygon bridge
	"0x3ee18b2214aff97000d974cf647e7c347e8fa585": {}, // Wormhole
}

// FetchTransactions pages through account/txlist and maps successful
// transactions involving the address into canonical form. Etherscan filters
// by block, not time, so the date window applies locally.
func (a *Adapter) FetchTransactions(ctx context.Context, address string, opts *chains.FetchOptions) ([]chains.Transaction, error) {
	if !a.ValidateAddress(address) {
		return nil, fmt.Errorf("Invalid Ethereum address: %s", address)
	}
	address = strings.ToLower(strings.TrimSpace(address))

	var all []chains.Transaction
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s?module=account&action=txlist&address=%s&startblock=0&endblock=99999999&page=%d&offset=%d&sort=asc",
			a.BaseURL, address, page, pageSize)
		if a.APIKey != "" {
			url += "&apikey=" + a.APIKey
		}

		var resp txListResponse
		if err := a.Fetcher.FetchJSON(ctx, url, &resp, fetch.Options{ErrorLabel: "Etherscan"}); err != nil {
			return nil, err
		}
		if resp.Status != "1" && resp.Message != "No transactions found" {
			return nil, fmt.Errorf("Etherscan error: %s", resp.Message)
		}

		batch := make([]chains.Transaction, 0, len(resp.Result))
		for _, raw := range resp.Result {
			tx, ok := a.mapTransaction(address, raw, opts)
			if ok {
				batch = append(batch, tx)
			}
		}

		if opts != nil && opts.OnProgress != nil && len(batch) > 0 {
			opts.OnProgress(batch)
		}
		all = append(all, batch...)

		if len(resp.Result) < pageSize {
			break
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Date.Before(all[j].Date)
	})
	return all, nil
}

func (a *Adapter) mapTransaction(address string, raw rawTx, opts *chains.FetchOptions) (chains.Transaction, bool) {
	if raw.IsError == "1" {
		return chains.Transaction{}, false
	}

	from := strings.ToLower(raw.From)
	to := strings.ToLower(raw.To)
	if from != address && to != address {
		return chains.Transaction{}, false
	}

	unix, err := strconv.ParseInt(raw.TimeStamp, 10, 64)
	if err != nil {
		return chains.Transaction{}, false
	}
	ts := time.Unix(unix, 0).UTC()
	if !opts.InRange(ts) {
		return chains.Transaction{}, false
	}

	value := weiToEther(raw.Value)
	sender := from == address

	tx := chains.Transaction{
		Date:   ts,
		Type:   classify(raw, sender),
		TxHash: raw.Hash,
	}

	if sender {
		tx.SentQuantity = &value
		tx.SentCurrency = currencyCode
		if fee := txFee(raw); fee > 0 {
			tx.FeeAmount = &fee
			tx.FeeCurrency = currencyCode
		}
	} else {
		tx.ReceivedQuantity = &value
		tx.ReceivedCurrency = currencyCode
	}

	return tx, true
}

func classify(raw rawTx, sender bool) string {
	name := strings.ToLower(raw.FunctionName)
	if idx := strings.IndexByte(name, '('); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(name)
	for _, entry := range functionTypes {
		if strings.HasPrefix(name, entry.prefix) {
			return entry.txType
		}
	}
	if _, ok := bridgeContracts[strings.ToLower(raw.To)]; ok {
		return chains.TypeBridge
	}
	if sender {
		return chains.TypeSend
	}
	return chains.TypeReceive
}

// txFee is gasUsed*gasPrice in ether, charged to the sender only.
func txFee(raw rawTx) float64 {
	gasUsed, ok1 := new(big.Int).SetString(raw.GasUsed, 10)
	gasPrice, ok2 := new(big.Int).SetString(raw.GasPrice, 10)
	if !ok1 || !ok2 {
		return 0
	}
	wei := new(big.Int).Mul(gasUsed, gasPrice)
	fee, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(weiPerEther)).Float64()
	return fee
}

func weiToEther(value string) float64 {
	wei, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return 0
	}
	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(weiPerEther)).Float64()
	return eth
}
