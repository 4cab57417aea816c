// Package awakencsv renders canonical transactions as the CSV dialects the
// Awaken importer parses by fixed column position. The importer is strict
// about header strings, column order, and number formatting, so rows are
// built by hand instead of through encoding/csv (which appends a record
// terminator after every row and quotes leading whitespace).
package awakencsv

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"awakenfetch/pkg/types/chains"
)

var standardHeader = []string{
	"Date",
	"Received Quantity", "Received Currency", "Received Fiat Amount",
	"Sent Quantity", "Sent Currency", "Sent Fiat Amount",
	"Fee Amount", "Fee Currency", "Transaction Hash", "Notes", "Tag",
}

var perpHeader = []string{
	"Date", "Asset", "Amount", "Fee", "P&L",
	"Payment Token", "Notes", "Transaction Hash", "Tag",
}

// GenerateStandardCSV renders the batch in the standard 12-column dialect,
// or the numbered multi-asset dialect when any transaction in the batch
// carries additional sent/received legs. Every row in a widened batch uses
// the same header width; unused numbered slots stay empty.
func GenerateStandardCSV(txs []chains.Transaction) string {
	width := assetWidth(txs)
	if width <= 1 {
		return generateFixedCSV(txs)
	}
	return generateWidenedCSV(txs, width)
}

// GeneratePerpCSV renders perpetual-futures entries in the fixed 9-column
// dialect. P&L keeps its sign; everything else is rendered unsigned.
func GeneratePerpCSV(txs []chains.PerpTransaction) string {
	lines := make([]string, 0, len(txs)+1)
	lines = append(lines, joinRow(perpHeader))
	for _, tx := range txs {
		row := []string{
			FormatDate(tx.Date),
			tx.Asset,
			FormatQuantity(&tx.Amount),
			formatOptional(tx.Fee),
			FormatSigned(tx.PnL),
			tx.PaymentToken,
			tx.Notes,
			tx.TxHash,
			tx.Tag,
		}
		lines = append(lines, joinRow(row))
	}
	return strings.Join(lines, "\n")
}

// assetWidth is the widened slot count N: the max over the batch of
// max(1+|additionalSent|, 1+|additionalReceived|). 1 means no widening.
func assetWidth(txs []chains.Transaction) int {
	width := 1
	for _, tx := range txs {
		if n := 1 + len(tx.AdditionalSent); n > width {
			width = n
		}
		if n := 1 + len(tx.AdditionalReceived); n > width {
			width = n
		}
	}
	return width
}

func generateFixedCSV(txs []chains.Transaction) string {
	lines := make([]string, 0, len(txs)+1)
	lines = append(lines, joinRow(standardHeader))
	for _, tx := range txs {
		row := []string{
			FormatDate(tx.Date),
			FormatQuantity(tx.ReceivedQuantity),
			tx.ReceivedCurrency,
			FormatQuantity(tx.ReceivedFiatAmount),
			FormatQuantity(tx.SentQuantity),
			tx.SentCurrency,
			FormatQuantity(tx.SentFiatAmount),
		}
		row = append(row, tailColumns(tx)...)
		lines = append(lines, joinRow(row))
	}
	return strings.Join(lines, "\n")
}

func generateWidenedCSV(txs []chains.Transaction, width int) string {
	header := make([]string, 0, 1+width*6+5)
	header = append(header, "Date")
	for i := 1; i <= width; i++ {
		n := strconv.Itoa(i)
		header = append(header,
			"Received Quantity "+n, "Received Currency "+n, "Received Fiat Amount "+n,
			"Sent Quantity "+n, "Sent Currency "+n, "Sent Fiat Amount "+n,
		)
	}
	header = append(header, "Fee Amount", "Fee Currency", "Transaction Hash", "Notes", "Tag")

	lines := make([]string, 0, len(txs)+1)
	lines = append(lines, joinRow(header))

	for _, tx := range txs {
		row := make([]string, 0, len(header))
		row = append(row, FormatDate(tx.Date))
		for i := 0; i < width; i++ {
			row = append(row, receivedSlot(tx, i)...)
			row = append(row, sentSlot(tx, i)...)
		}
		row = append(row, tailColumns(tx)...)
		lines = append(lines, joinRow(row))
	}
	return strings.Join(lines, "\n")
}

// receivedSlot fills slot i (0-based): slot 0 comes from the primary fields,
// later slots positionally from AdditionalReceived.
func receivedSlot(tx chains.Transaction, i int) []string {
	if i == 0 {
		return []string{FormatQuantity(tx.ReceivedQuantity), tx.ReceivedCurrency, FormatQuantity(tx.ReceivedFiatAmount)}
	}
	if i-1 < len(tx.AdditionalReceived) {
		entry := tx.AdditionalReceived[i-1]
		return []string{FormatQuantity(&entry.Quantity), entry.Currency, formatOptional(entry.FiatAmount)}
	}
	return []string{"", "", ""}
}

func sentSlot(tx chains.Transaction, i int) []string {
	if i == 0 {
		return []string{FormatQuantity(tx.SentQuantity), tx.SentCurrency, FormatQuantity(tx.SentFiatAmount)}
	}
	if i-1 < len(tx.AdditionalSent) {
		entry := tx.AdditionalSent[i-1]
		return []string{FormatQuantity(&entry.Quantity), entry.Currency, formatOptional(entry.FiatAmount)}
	}
	return []string{"", "", ""}
}

func tailColumns(tx chains.Transaction) []string {
	return []string{
		FormatQuantity(tx.FeeAmount),
		tx.FeeCurrency,
		tx.TxHash,
		tx.Notes,
		tx.Tag,
	}
}

// FormatDate renders the instant as MM/DD/YYYY HH:MM:SS, always in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format("01/02/2006 15:04:05")
}

// FormatQuantity renders an optional quantity: nil becomes the empty string,
// anything else is made non-negative, rounded to at most 8 decimal places,
// and stripped of trailing zero digits and a trailing decimal point.
func FormatQuantity(v *float64) string {
	if v == nil {
		return ""
	}
	return trimDecimal(decimal.NewFromFloat(*v).Abs().Round(8))
}

// FormatSigned is FormatQuantity without the sign strip, used for P&L.
func FormatSigned(v float64) string {
	return trimDecimal(decimal.NewFromFloat(v).Round(8))
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return FormatQuantity(v)
}

func trimDecimal(d decimal.Decimal) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	if s == "" || s == "-0" || s == "-" {
		return "0"
	}
	return s
}

// joinRow escapes and comma-joins one record. A field is quoted only when it
// contains a comma, a double quote, or a newline; embedded quotes double.
func joinRow(fields []string) string {
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = escapeField(f)
	}
	return strings.Join(escaped, ",")
}

func escapeField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
