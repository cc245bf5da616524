package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yuchilin/storeledger/internal/domain/entity"
)

// Normalizer converts batch records into Transaction candidates, enforcing
// the row-level invariants. An invalid row never becomes a Transaction.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a normalizer. now supplies "today" for the date
// invariant; nil defaults to time.Now.
func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// Normalize validates one record and builds its Transaction candidate.
func (n *Normalizer) Normalize(rec Record) (*entity.Transaction, error) {
	id := rec.Fields[ColTransactionID]
	if id == "" {
		return nil, &entity.FormatError{Field: ColTransactionID, Reason: "missing value"}
	}

	occurredAt, err := parseDateTime(rec.Fields[ColTransactionDate], rec.Fields[ColTransactionTime])
	if err != nil {
		return nil, err
	}

	method := entity.PaymentMethod(strings.ToLower(rec.Fields[ColPaymentMethod]))
	if !method.Valid() {
		return nil, &entity.FormatError{
			Field:  ColPaymentMethod,
			Reason: "expected one of cash, credit, debit, mobile",
			Raw:    rec.Fields[ColPaymentMethod],
		}
	}

	gross, err := parseAmount(ColGrossAmount, rec.Fields[ColGrossAmount], false)
	if err != nil {
		return nil, err
	}
	tax, err := parseAmount(ColTaxAmount, rec.Fields[ColTaxAmount], false)
	if err != nil {
		return nil, err
	}
	net, err := parseAmount(ColNetAmount, rec.Fields[ColNetAmount], false)
	if err != nil {
		return nil, err
	}
	discount, err := parseAmount(ColDiscountAmount, rec.Fields[ColDiscountAmount], true)
	if err != nil {
		return nil, err
	}

	isRefund, err := parseFlag(ColIsRefund, rec.Fields[ColIsRefund])
	if err != nil {
		return nil, err
	}
	isVoid, err := parseFlag(ColIsVoid, rec.Fields[ColIsVoid])
	if err != nil {
		return nil, err
	}

	if discount.IsNegative() {
		return nil, &entity.FormatError{
			Field:  ColDiscountAmount,
			Reason: "must not be negative",
			Raw:    discount.String(),
		}
	}
	if !net.Equal(gross.Add(tax).Sub(discount)) {
		return nil, &entity.ArithmeticMismatchError{
			Identity: "net_amount == gross_amount + tax_amount - discount_amount",
			Detail: fmt.Sprintf("net=%s gross=%s tax=%s discount=%s",
				net, gross, tax, discount),
		}
	}
	if isRefund && net.IsPositive() {
		return nil, &entity.ArithmeticMismatchError{
			Identity: "is_refund implies net_amount <= 0",
			Detail:   fmt.Sprintf("net=%s", net),
		}
	}

	today := truncateToDay(n.now())
	if truncateToDay(occurredAt).After(today) {
		return nil, &entity.FutureDateError{
			Field: ColTransactionDate,
			Date:  occurredAt,
			Today: today,
		}
	}

	return &entity.Transaction{
		TransactionID:  id,
		OccurredAt:     occurredAt,
		PaymentMethod:  method,
		GrossAmount:    gross,
		TaxAmount:      tax,
		NetAmount:      net,
		DiscountAmount: discount,
		IsRefund:       isRefund,
		IsVoid:         isVoid,
	}, nil
}

func parseDateTime(dateStr, timeStr string) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, &entity.FormatError{Field: ColTransactionDate, Reason: "missing value"}
	}
	// POS exports use both dash and slash separators.
	normalized := strings.ReplaceAll(dateStr, "/", "-")
	day, err := time.ParseInLocation("2006-01-02", normalized, time.Local)
	if err != nil {
		return time.Time{}, &entity.FormatError{
			Field:  ColTransactionDate,
			Reason: "expected YYYY-MM-DD",
			Raw:    dateStr,
		}
	}
	if timeStr == "" {
		return day, nil
	}
	layout := "15:04:05"
	if strings.Count(timeStr, ":") == 1 {
		layout = "15:04"
	}
	clock, err := time.ParseInLocation(layout, timeStr, time.Local)
	if err != nil {
		return time.Time{}, &entity.FormatError{
			Field:  ColTransactionTime,
			Reason: "expected HH:MM or HH:MM:SS",
			Raw:    timeStr,
		}
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, time.Local), nil
}

func parseAmount(field, raw string, blankIsZero bool) (decimal.Decimal, error) {
	if raw == "" {
		if blankIsZero {
			return decimal.Zero, nil
		}
		return decimal.Decimal{}, &entity.FormatError{Field: field, Reason: "missing value"}
	}
	v, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return decimal.Decimal{}, &entity.FormatError{Field: field, Reason: "not a number", Raw: raw}
	}
	return v, nil
}

func parseFlag(field, raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "", "false", "0", "no", "n":
		return false, nil
	case "true", "1", "yes", "y":
		return true, nil
	}
	return false, &entity.FormatError{Field: field, Reason: "expected a boolean", Raw: raw}
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
