package statement

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind says which way money moved: out of the bank account (Payment) or into
// it (Receipt). The values double as Tally voucher type names.
type Kind string

const (
	KindPayment Kind = "Payment"
	KindReceipt Kind = "Receipt"
)

// ParseKind validates a voucher kind received from a client.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPayment, KindReceipt:
		return Kind(s), nil
	}
	return "", fmt.Errorf("invalid voucher kind %q", s)
}

// Record is one normalized statement transaction. Immutable once parsed;
// Amount is always positive, Kind carries the direction.
type Record struct {
	Date      time.Time
	Narration string
	Amount    decimal.Decimal
	Kind      Kind
}

// DateText returns the record date normalized to YYYY-MM-DD.
func (r Record) DateText() string {
	return r.Date.Format("2006-01-02")
}

// Date layouts seen in bank exports. Tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02-01-2006",
	"02-Jan-2006",
	"02 Jan 2006",
}

// ParseRow converts data row i of a statement table into a Record.
// Row numbering in errors is 1-based to match what a user sees in a
// spreadsheet under the header row.
func ParseRow(t *Table, i int) (Record, error) {
	rowNum := i + 1

	date, err := parseDate(t.Cell(i, ColDate))
	if err != nil {
		return Record{}, &RowParseError{Row: rowNum, Reason: err.Error()}
	}

	narration := strings.TrimSpace(t.Cell(i, ColNarration))

	amount, kind, err := parseAmount(t.Cell(i, ColWithdrawal), t.Cell(i, ColDeposit))
	if err != nil {
		return Record{}, &RowParseError{Row: rowNum, Reason: err.Error()}
	}

	return Record{Date: date, Narration: narration, Amount: amount, Kind: kind}, nil
}

func parseDate(cell string) (time.Time, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseAmount picks the transaction side. A positive Withdrawal wins and
// makes the row a Payment; otherwise a positive Deposit makes it a Receipt.
// A zero or blank cell falls through so the Amount > 0 invariant holds.
func parseAmount(withdrawal, deposit string) (decimal.Decimal, Kind, error) {
	if amt, ok := parsePositiveDecimal(withdrawal); ok {
		return amt, KindPayment, nil
	}
	if amt, ok := parsePositiveDecimal(deposit); ok {
		return amt, KindReceipt, nil
	}
	return decimal.Decimal{}, "", fmt.Errorf("neither Withdrawal %q nor Deposit %q is a positive amount", withdrawal, deposit)
}

func parsePositiveDecimal(cell string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return decimal.Decimal{}, false
	}
	// Strip thousands separators some exports include.
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}
