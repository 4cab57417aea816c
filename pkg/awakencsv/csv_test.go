package awakencsv

import (
	"encoding/csv"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awakenfetch/pkg/types/chains"
)

func ptr(v float64) *float64 { return &v }

var testDate = time.Date(2024, 3, 7, 14, 30, 5, 0, time.UTC)

func TestGenerateStandardCSV_FixedColumns(t *testing.T) {
	txs := []chains.Transaction{
		{
			Date:             testDate,
			Type:             chains.TypeReceive,
			ReceivedQuantity: ptr(1.5),
			ReceivedCurrency: "KAS",
			TxHash:           "abc123",
			Notes:            "payout",
		},
		{
			Date:         testDate.Add(time.Hour),
			Type:         chains.TypeSend,
			SentQuantity: ptr(0.25),
			SentCurrency: "KAS",
			FeeAmount:    ptr(0.0001),
			FeeCurrency:  "KAS",
		},
	}

	out := GenerateStandardCSV(txs)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)

	assert.Equal(t,
		"Date,Received Quantity,Received Currency,Received Fiat Amount,"+
			"Sent Quantity,Sent Currency,Sent Fiat Amount,"+
			"Fee Amount,Fee Currency,Transaction Hash,Notes,Tag",
		lines[0])
	assert.Equal(t, "03/07/2024 14:30:05,1.5,KAS,,,,,,,abc123,payout,", lines[1])
	assert.Equal(t, "03/07/2024 15:30:05,,,,0.25,KAS,,0.0001,KAS,,,", lines[2])
}

func TestGenerateStandardCSV_HeaderOnly(t *testing.T) {
	out := GenerateStandardCSV(nil)
	assert.False(t, strings.Contains(out, "\n"))
	assert.Equal(t, 12, len(strings.Split(out, ",")))
}

func TestGenerateStandardCSV_MultiAssetWidening(t *testing.T) {
	txs := []chains.Transaction{
		{
			// plain transaction, still widened
			Date:             testDate,
			Type:             chains.TypeReceive,
			ReceivedQuantity: ptr(2),
			ReceivedCurrency: "ETH",
		},
		{
			Date:             testDate,
			Type:             chains.TypeLPRemove,
			ReceivedQuantity: ptr(100),
			ReceivedCurrency: "USDC",
			AdditionalReceived: []chains.AssetEntry{
				{Quantity: 0.05, Currency: "ETH"},
				{Quantity: 1.25, Currency: "CRV", FiatAmount: ptr(1.02)},
			},
			SentQuantity: ptr(10),
			SentCurrency: "LP-TOKEN",
		},
	}

	out := GenerateStandardCSV(txs)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)

	header := strings.Split(lines[0], ",")
	// N = 3 => Date + 3*6 numbered columns + 5 tail columns
	require.Len(t, header, 1+3*6+5)
	assert.Equal(t, "Received Quantity 1", header[1])
	assert.Equal(t, "Sent Fiat Amount 1", header[6])
	assert.Equal(t, "Received Quantity 3", header[13])
	assert.Equal(t, "Fee Amount", header[19])
	assert.Equal(t, "Tag", header[23])

	for _, line := range lines[1:] {
		assert.Len(t, strings.Split(line, ","), len(header))
	}

	widened := strings.Split(lines[2], ",")
	assert.Equal(t, "100", widened[1])   // Received Quantity 1
	assert.Equal(t, "USDC", widened[2])  // Received Currency 1
	assert.Equal(t, "10", widened[4])    // Sent Quantity 1
	assert.Equal(t, "0.05", widened[7])  // Received Quantity 2
	assert.Equal(t, "ETH", widened[8])   // Received Currency 2
	assert.Equal(t, "1.25", widened[13]) // Received Quantity 3
	assert.Equal(t, "1.02", widened[15]) // Received Fiat Amount 3

	plain := strings.Split(lines[1], ",")
	assert.Equal(t, "2", plain[1])
	assert.Equal(t, "", plain[7]) // unused numbered slot stays empty
}

func TestFormatQuantity(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{5.5, "5.5"},
		{-5.5, "5.5"},
		{1.00000000, "1"},
		{0.123456789, "0.12345679"},
		{1.10000000, "1.1"},
		{12345, "12345"},
		{0.00000001, "0.00000001"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatQuantity(&tc.in), "input %v", tc.in)
	}
	assert.Equal(t, "", FormatQuantity(nil))
}

func TestFormatQuantity_Idempotent(t *testing.T) {
	for _, v := range []float64{5.5, -5.5, 0.12345678901, 42, 0} {
		once := FormatQuantity(&v)
		parsed, err := strconv.ParseFloat(once, 64)
		require.NoError(t, err)
		assert.Equal(t, once, FormatQuantity(&parsed))
	}
}

func TestFormatQuantity_NegativeEqualsPositive(t *testing.T) {
	neg, pos := -5.5, 5.5
	assert.Equal(t, FormatQuantity(&pos), FormatQuantity(&neg))
}

func TestFormatSigned_KeepsSign(t *testing.T) {
	assert.Equal(t, "-12.5", FormatSigned(-12.5))
	assert.Equal(t, "12.5", FormatSigned(12.5))
	assert.Equal(t, "0", FormatSigned(0))
}

func TestEscapeField_RoundTrip(t *testing.T) {
	inputs := []string{
		"plain",
		"with, comma",
		`with "quotes"`,
		"with\nnewline",
		`everything, "at" once` + "\nand more",
	}
	for _, in := range inputs {
		row := joinRow([]string{in, "second"})
		r := csv.NewReader(strings.NewReader(row))
		record, err := r.Read()
		require.NoError(t, err)
		assert.Equal(t, in, record[0])
		assert.Equal(t, "second", record[1])
	}
}

func TestFormatDate_UTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	local := time.Date(2024, 1, 1, 2, 0, 0, 0, loc)
	assert.Equal(t, "12/31/2023 21:00:00", FormatDate(local))
}

func TestGeneratePerpCSV(t *testing.T) {
	txs := []chains.PerpTransaction{
		{
			Date:         testDate,
			Asset:        "BTC-PERP",
			Amount:       0.5,
			Fee:          ptr(1.2),
			PnL:          -320.55,
			PaymentToken: "USDC",
			TxHash:       "0xdeadbeef",
			Tag:          chains.TagClosePosition,
		},
	}

	out := GeneratePerpCSV(txs)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Date,Asset,Amount,Fee,P&L,Payment Token,Notes,Transaction Hash,Tag", lines[0])
	assert.Equal(t, "03/07/2024 14:30:05,BTC-PERP,0.5,1.2,-320.55,USDC,,0xdeadbeef,close_position", lines[1])
}

func TestGeneratePerpCSV_HeaderOnly(t *testing.T) {
	out := GeneratePerpCSV(nil)
	assert.Equal(t, "Date,Asset,Amount,Fee,P&L,Payment Token,Notes,Transaction Hash,Tag", out)
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	assert.Equal(t,
		"awakenfetch_kaspa_kaspa:qr_20240307.csv",
		Filename("KASPA", "kaspa:qr1234567890", now, false))
	assert.Equal(t,
		"awakenfetch_ethereum_0x123456_20240307_perps.csv",
		Filename("ethereum", "0x1234567890abcdef", now, true))
	assert.Equal(t,
		"awakenfetch_eth_short_20240307.csv",
		Filename("eth", "short", now, false))
}
