package einvoice

import (
	"fmt"
	"time"

	"github.com/yuchilin/storeledger/internal/domain/entity"
)

// emptyBuyerID is how B2C invoices encode "no buyer tax ID" in the payload.
const emptyBuyerID = "00000000"

// Validator enforces the format and arithmetic invariants on a parsed
// candidate and produces the canonical Invoice entity. Invalid candidates are
// never turned into the entity type.
//
// Failures are typed, and values are never silently coerced: a negative tax
// is a rejection, not a clamp to zero.
type Validator struct {
	now func() time.Time
}

// NewValidator creates a validator. now supplies "today" for the
// date invariant; nil defaults to time.Now.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

// Validate checks a parsed candidate and returns the accepted Invoice.
// The raw QR payloads are carried on the entity for manual-correction context.
func (v *Validator) Validate(p *ParsedInvoice, qrLeft, qrRight string) (*entity.Invoice, error) {
	if p == nil {
		return nil, &entity.FormatError{Reason: "nil invoice candidate"}
	}

	if !invoiceNumberRE.MatchString(p.InvoiceNumber) {
		return nil, &entity.FormatError{
			Field:  "invoice_number",
			Reason: "expected 2 uppercase letters followed by 8 digits",
			Raw:    p.InvoiceNumber,
		}
	}
	if len(p.RandomCode) != 4 {
		return nil, &entity.FormatError{
			Field:  "random_code",
			Reason: "expected exactly 4 characters",
			Raw:    p.RandomCode,
		}
	}
	if !taxIDRE.MatchString(p.SellerID) {
		return nil, &entity.FormatError{
			Field:  "seller_id",
			Reason: "expected 8-digit tax ID",
			Raw:    p.SellerID,
		}
	}

	if p.TaxAmount < 0 {
		return nil, &entity.ArithmeticMismatchError{
			Identity: "tax_amount >= 0",
			Detail:   fmt.Sprintf("tax_amount=%d", p.TaxAmount),
		}
	}
	if p.TotalAmount != p.SalesAmount+p.TaxAmount {
		return nil, &entity.ArithmeticMismatchError{
			Identity: "total_amount == sales_amount + tax_amount",
			Detail: fmt.Sprintf("total=%d sales=%d tax=%d",
				p.TotalAmount, p.SalesAmount, p.TaxAmount),
		}
	}

	today := dateOnly(v.now())
	if dateOnly(p.InvoiceDate).After(today) {
		return nil, &entity.FutureDateError{
			Field: "invoice_date",
			Date:  p.InvoiceDate,
			Today: today,
		}
	}

	buyerID := p.BuyerID
	if buyerID == emptyBuyerID {
		buyerID = ""
	}

	return &entity.Invoice{
		InvoiceNumber:     p.InvoiceNumber,
		InvoiceDate:       dateOnly(p.InvoiceDate),
		RandomCode:        p.RandomCode,
		SellerID:          p.SellerID,
		BuyerID:           buyerID,
		SalesAmount:       p.SalesAmount,
		TaxAmount:         p.TaxAmount,
		TotalAmount:       p.TotalAmount,
		Items:             p.Items,
		VerificationState: entity.VerificationUnverified,
		RawQRLeft:         qrLeft,
		RawQRRight:        qrRight,
	}, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
