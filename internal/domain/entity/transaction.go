package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is the tender type reported by the POS.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCredit PaymentMethod = "credit"
	PaymentDebit  PaymentMethod = "debit"
	PaymentMobile PaymentMethod = "mobile"
)

// PaymentMethods lists every recognized tender type, in reporting order.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentCredit, PaymentDebit, PaymentMobile}

// Valid reports whether m is one of the recognized tender types.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCredit, PaymentDebit, PaymentMobile:
		return true
	}
	return false
}

// Transaction is one POS-reported sale, refund, or void.
//
// Transactions are immutable once stored. Corrections arrive as new
// transactions carrying refund/void flags, never as in-place edits.
// TransactionID is the identity key used for deduplication.
type Transaction struct {
	ID             int64           `json:"id"`
	TransactionID  string          `json:"transaction_id"`
	OccurredAt     time.Time       `json:"transaction_datetime"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	IsRefund       bool            `json:"is_refund"`
	IsVoid         bool            `json:"is_void"`
	BatchID        string          `json:"batch_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Date returns the calendar date the transaction belongs to.
func (t *Transaction) Date() time.Time {
	y, m, d := t.OccurredAt.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.OccurredAt.Location())
}

// EqualValues reports whether two transactions carry identical field values,
// ignoring storage identity (row id, batch id, created_at). Used to tell an
// idempotent re-import apart from a conflicting duplicate.
func (t *Transaction) EqualValues(other *Transaction) bool {
	if other == nil {
		return false
	}
	return t.TransactionID == other.TransactionID &&
		t.OccurredAt.Equal(other.OccurredAt) &&
		t.PaymentMethod == other.PaymentMethod &&
		t.GrossAmount.Equal(other.GrossAmount) &&
		t.TaxAmount.Equal(other.TaxAmount) &&
		t.NetAmount.Equal(other.NetAmount) &&
		t.DiscountAmount.Equal(other.DiscountAmount) &&
		t.IsRefund == other.IsRefund &&
		t.IsVoid == other.IsVoid
}

// DiffFields lists the names of fields that differ between two transactions
// with the same TransactionID. Used in conflict reports.
func (t *Transaction) DiffFields(other *Transaction) []string {
	var diffs []string
	if !t.OccurredAt.Equal(other.OccurredAt) {
		diffs = append(diffs, "transaction_datetime")
	}
	if t.PaymentMethod != other.PaymentMethod {
		diffs = append(diffs, "payment_method")
	}
	if !t.GrossAmount.Equal(other.GrossAmount) {
		diffs = append(diffs, "gross_amount")
	}
	if !t.TaxAmount.Equal(other.TaxAmount) {
		diffs = append(diffs, "tax_amount")
	}
	if !t.NetAmount.Equal(other.NetAmount) {
		diffs = append(diffs, "net_amount")
	}
	if !t.DiscountAmount.Equal(other.DiscountAmount) {
		diffs = append(diffs, "discount_amount")
	}
	if t.IsRefund != other.IsRefund {
		diffs = append(diffs, "is_refund")
	}
	if t.IsVoid != other.IsVoid {
		diffs = append(diffs, "is_void")
	}
	return diffs
}
