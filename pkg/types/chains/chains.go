package chains

import (
	"context"
	"time"
)

// Transaction types understood by the Awaken importer.
const (
	TypeSend     = "send"
	TypeReceive  = "receive"
	TypeTrade    = "trade"
	TypeLPAdd    = "lp_add"
	TypeLPRemove = "lp_remove"
	TypeStake    = "stake"
	TypeUnstake  = "unstake"
	TypeClaim    = "claim"
	TypeBridge   = "bridge"
	TypeApproval = "approval"
	TypeOther    = "other"
)

// Perpetual transaction tags.
const (
	TagOpenPosition   = "open_position"
	TagClosePosition  = "close_position"
	TagFundingPayment = "funding_payment"
)

// AssetEntry is one extra sent/received leg on a multi-asset transaction.
type AssetEntry struct {
	Quantity   float64  `json:"quantity"`
	Currency   string   `json:"currency"`
	FiatAmount *float64 `json:"fiatAmount,omitempty"`
}

// Transaction is the chain-agnostic record every adapter produces.
// Quantities use pointers so an absent value is distinguishable from zero;
// the CSV engine renders absent fields as empty columns. Immutable once
// returned by an adapter.
type Transaction struct {
	Date               time.Time    `json:"date"`
	Type               string       `json:"type"`
	SentQuantity       *float64     `json:"sentQuantity,omitempty"`
	SentCurrency       string       `json:"sentCurrency,omitempty"`
	SentFiatAmount     *float64     `json:"sentFiatAmount,omitempty"`
	ReceivedQuantity   *float64     `json:"receivedQuantity,omitempty"`
	ReceivedCurrency   string       `json:"receivedCurrency,omitempty"`
	ReceivedFiatAmount *float64     `json:"receivedFiatAmount,omitempty"`
	FeeAmount          *float64     `json:"feeAmount,omitempty"`
	FeeCurrency        string       `json:"feeCurrency,omitempty"`
	TxHash             string       `json:"txHash,omitempty"`
	Notes              string       `json:"notes,omitempty"`
	Tag                string       `json:"tag,omitempty"`
	AdditionalSent     []AssetEntry `json:"additionalSent,omitempty"`
	AdditionalReceived []AssetEntry `json:"additionalReceived,omitempty"`
}

// MultiAsset reports whether the transaction carries extra sent or received
// legs beyond the primary pair.
func (t Transaction) MultiAsset() bool {
	return len(t.AdditionalSent) > 0 || len(t.AdditionalReceived) > 0
}

// PerpTransaction is one perpetual-futures ledger entry. PnL keeps its sign;
// a losing close is negative.
type PerpTransaction struct {
	Date         time.Time `json:"date"`
	Asset        string    `json:"asset"`
	Amount       float64   `json:"amount"`
	Fee          *float64  `json:"fee,omitempty"`
	PnL          float64   `json:"pnl"`
	PaymentToken string    `json:"paymentToken"`
	Notes        string    `json:"notes,omitempty"`
	TxHash       string    `json:"txHash,omitempty"`
	Tag          string    `json:"tag"`
}

// FetchOptions narrows and instruments a FetchTransactions call. FromDate and
// ToDate are inclusive. OnProgress fires once per upstream page, in fetch
// order, before the call returns. OnEstimatedTotal fires at most once with an
// upstream-reported transaction count when the chain exposes one.
type FetchOptions struct {
	FromDate         *time.Time
	ToDate           *time.Time
	OnProgress       func(batch []Transaction)
	OnEstimatedTotal func(total int)
}

// InRange reports whether ts falls inside the configured date window.
func (o *FetchOptions) InRange(ts time.Time) bool {
	if o == nil {
		return true
	}
	if o.FromDate != nil && ts.Before(*o.FromDate) {
		return false
	}
	if o.ToDate != nil && ts.After(*o.ToDate) {
		return false
	}
	return true
}

// Adapter is the uniform per-chain contract consumed by the proxy layer.
// One concrete implementation exists per supported chain; implementations
// are registered in a lookup table keyed by chain id.
type Adapter interface {
	ChainID() string
	ChainName() string
	ValidateAddress(address string) bool
	FetchTransactions(ctx context.Context, address string, opts *FetchOptions) ([]Transaction, error)
	ToAwakenCSV(txs []Transaction) string
	ExplorerURL(txHash string) string
}
