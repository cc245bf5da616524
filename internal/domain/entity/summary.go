package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySummary is the derived per-day aggregate over a store's transactions.
//
// Summaries are never authored directly: the reconciliation engine recomputes
// the whole row whenever the underlying transaction set changes. Only an
// explicit close action supplies ActualCash and marks the day reconciled.
type DailySummary struct {
	ID          int64     `json:"id"`
	SummaryDate time.Time `json:"summary_date"`

	TotalSales       decimal.Decimal `json:"total_sales"`
	TotalTax         decimal.Decimal `json:"total_tax"`
	TransactionCount int             `json:"transaction_count"`
	// AverageTicket is nil for a day with zero transactions.
	AverageTicket *decimal.Decimal `json:"average_ticket,omitempty"`

	MethodSubtotals map[PaymentMethod]decimal.Decimal `json:"method_subtotals"`

	RefundCount  int             `json:"refund_count"`
	RefundAmount decimal.Decimal `json:"refund_amount"`

	ExpectedCash    decimal.Decimal  `json:"expected_cash"`
	ActualCash      *decimal.Decimal `json:"actual_cash,omitempty"`
	CashDiscrepancy *decimal.Decimal `json:"cash_discrepancy,omitempty"`

	IsReconciled bool       `json:"is_reconciled"`
	ReconciledAt *time.Time `json:"reconciled_at,omitempty"`
	ReconciledBy string     `json:"reconciled_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Subtotal returns the net subtotal for a tender type, zero when absent.
func (s *DailySummary) Subtotal(m PaymentMethod) decimal.Decimal {
	if s.MethodSubtotals == nil {
		return decimal.Zero
	}
	if v, ok := s.MethodSubtotals[m]; ok {
		return v
	}
	return decimal.Zero
}
