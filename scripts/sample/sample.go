// Generates demo CSV exports with synthetic transactions, useful for
// checking the output against the Awaken importer without hitting a chain.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"awakenfetch/pkg/awakencsv"
	"awakenfetch/pkg/types/chains"
)

func ptr(v float64) *float64 { return &v }

func main() {
	start := time.Now().UTC().AddDate(0, 0, -7)

	txs := []chains.Transaction{
		{
			Date:             start,
			Type:             chains.TypeReceive,
			ReceivedQuantity: ptr(1250.5),
			ReceivedCurrency: "KAS",
			TxHash:           "demo-receive",
			Notes:            "mining payout",
		},
		{
			Date:         start.AddDate(0, 0, 1),
			Type:         chains.TypeSend,
			SentQuantity: ptr(400),
			SentCurrency: "KAS",
			FeeAmount:    ptr(0.0002),
			FeeCurrency:  "KAS",
			TxHash:       "demo-send",
		},
		{
			Date:             start.AddDate(0, 0, 3),
			Type:             chains.TypeLPRemove,
			SentQuantity:     ptr(10),
			SentCurrency:     "LP-KAS-USDC",
			ReceivedQuantity: ptr(500),
			ReceivedCurrency: "KAS",
			AdditionalReceived: []chains.AssetEntry{
				{Quantity: 52.1, Currency: "USDC", FiatAmount: ptr(52.1)},
			},
			TxHash: "demo-lp-remove",
		},
	}

	perps := []chains.PerpTransaction{
		{
			Date:         start.AddDate(0, 0, 2),
			Asset:        "KAS-PERP",
			Amount:       10000,
			Fee:          ptr(2.4),
			PnL:          0,
			PaymentToken: "USDC",
			Tag:          chains.TagOpenPosition,
			TxHash:       "demo-open",
		},
		{
			Date:         start.AddDate(0, 0, 5),
			Asset:        "KAS-PERP",
			Amount:       10000,
			Fee:          ptr(2.4),
			PnL:          -38.25,
			PaymentToken: "USDC",
			Tag:          chains.TagClosePosition,
			TxHash:       "demo-close",
		},
	}

	now := time.Now()
	standard := awakencsv.Filename("kaspa", "demoaddr", now, false)
	perp := awakencsv.Filename("kaspa", "demoaddr", now, true)

	if err := os.WriteFile(standard, []byte(awakencsv.GenerateStandardCSV(txs)), 0o644); err != nil {
		log.Fatal("Failed to write standard CSV:", err)
	}
	if err := os.WriteFile(perp, []byte(awakencsv.GeneratePerpCSV(perps)), 0o644); err != nil {
		log.Fatal("Failed to write perp CSV:", err)
	}

	fmt.Println("wrote", standard)
	fmt.Println("wrote", perp)
}
