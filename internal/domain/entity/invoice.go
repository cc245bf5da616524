package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// VerificationState tracks the outcome of MOF verification for an invoice.
type VerificationState string

const (
	VerificationUnverified VerificationState = "unverified"
	VerificationVerified   VerificationState = "verified"
	VerificationFailed     VerificationState = "verification_failed"
)

// Invoice represents one Taiwan e-invoice (電子發票) accepted from a QR pair.
//
// Invoice rows are append-only: a correction never edits an existing row, it
// inserts a new row whose Supersedes field points at the replaced record.
type Invoice struct {
	ID            int64      `json:"id"`
	InvoiceNumber string     `json:"invoice_number"` // 2 uppercase letters + 8 digits
	InvoiceDate   time.Time  `json:"invoice_date"`
	RandomCode    string     `json:"random_code"` // exactly 4 characters
	SellerID      string     `json:"seller_id"`
	BuyerID       string     `json:"buyer_id,omitempty"` // blank unless B2B (統編)
	SalesAmount   int64      `json:"sales_amount"`       // whole NTD
	TaxAmount     int64      `json:"tax_amount"`
	TotalAmount   int64      `json:"total_amount"`
	Category      string     `json:"category,omitempty"`
	Items         []InvoiceItem `json:"items,omitempty"`

	VerificationState VerificationState `json:"verification_state"`

	// Raw QR payloads as captured, kept for manual correction context.
	RawQRLeft  string `json:"raw_qr_left"`
	RawQRRight string `json:"raw_qr_right"`

	Supersedes int64     `json:"supersedes,omitempty"` // 0 when this is the first record
	CreatedAt  time.Time `json:"created_at"`
}

// InvoiceItem is a line item recovered from the QR payload.
// Item recovery is best-effort; an invoice with zero items is still valid.
type InvoiceItem struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal returns quantity * unit price.
func (it InvoiceItem) Subtotal() decimal.Decimal {
	return it.Quantity.Mul(it.UnitPrice)
}
