// Package voucher assembles balanced double-entry vouchers from resolved
// statement records.
package voucher

import (
	"fmt"

	"github.com/anayak/bank2tally/internal/statement"
	"github.com/shopspring/decimal"
)

// DefaultBankLedger is the bank ledger label used when a client supplies
// none.
const DefaultBankLedger = "Bank A/C"

// Entry is one side of a double-entry posting. Amount is signed and rendered
// with exactly two decimals on the wire.
type Entry struct {
	LedgerName       string
	IsDeemedPositive bool
	Amount           decimal.Decimal
}

// AmountText renders the entry amount with two decimal digits.
func (e Entry) AmountText() string {
	return e.Amount.StringFixed(2)
}

// Voucher is a transient projection of a resolved transaction plus the bank
// ledger: two entries that net to zero, ready for XML encoding.
type Voucher struct {
	Date        string // YYYY-MM-DD
	Kind        statement.Kind
	Narration   string
	PartyLedger string
	Entries     [2]Entry
}

// FromRecord pairs a parsed record with its resolved ledger and the bank
// ledger. The sign convention is a wire contract with the Tally importer:
//
//	Payment: ledger entry deemed positive, amount -|amt|; bank entry +|amt|
//	Receipt: ledger entry +|amt|; bank entry deemed positive, amount -|amt|
func FromRecord(rec statement.Record, ledger, bankLedger string) (Voucher, error) {
	if !rec.Amount.IsPositive() {
		return Voucher{}, fmt.Errorf("voucher amount must be positive, got %s", rec.Amount)
	}
	if ledger == "" {
		return Voucher{}, fmt.Errorf("ledger name is required")
	}
	if bankLedger == "" {
		bankLedger = DefaultBankLedger
	}

	amt := rec.Amount.Round(2)

	var ledgerEntry, bankEntry Entry
	switch rec.Kind {
	case statement.KindPayment:
		ledgerEntry = Entry{LedgerName: ledger, IsDeemedPositive: true, Amount: amt.Neg()}
		bankEntry = Entry{LedgerName: bankLedger, IsDeemedPositive: false, Amount: amt}
	case statement.KindReceipt:
		ledgerEntry = Entry{LedgerName: ledger, IsDeemedPositive: false, Amount: amt}
		bankEntry = Entry{LedgerName: bankLedger, IsDeemedPositive: true, Amount: amt.Neg()}
	default:
		return Voucher{}, fmt.Errorf("invalid voucher kind %q", rec.Kind)
	}

	return Voucher{
		Date:        rec.DateText(),
		Kind:        rec.Kind,
		Narration:   rec.Narration,
		PartyLedger: bankLedger,
		Entries:     [2]Entry{ledgerEntry, bankEntry},
	}, nil
}

// Balanced reports whether the two entries net to zero with opposing
// deemed-positive flags.
func (v Voucher) Balanced() bool {
	return v.Entries[0].Amount.Add(v.Entries[1].Amount).IsZero() &&
		v.Entries[0].IsDeemedPositive != v.Entries[1].IsDeemedPositive
}
