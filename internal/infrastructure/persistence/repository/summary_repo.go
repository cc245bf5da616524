package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/yuchilin/storeledger/internal/application/port"
	"github.com/yuchilin/storeledger/internal/domain/entity"
)

// SummaryRepository implements port.SummaryRepository. Per-method subtotals
// are stored as a JSON column keyed by tender type; the whole row is replaced
// on every recompute.
type SummaryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSummaryRepository creates a new summary repository
func NewSummaryRepository(db *sql.DB, logger *zap.Logger) port.SummaryRepository {
	return &SummaryRepository{
		db:     db,
		logger: logger,
	}
}

const summaryColumns = `
	id, summary_date, total_sales, total_tax, transaction_count,
	average_ticket, method_subtotals, refund_count, refund_amount,
	expected_cash, actual_cash, cash_discrepancy,
	is_reconciled, reconciled_at, reconciled_by, created_at, updated_at
`

// Upsert replaces the summary row for its date wholesale.
func (r *SummaryRepository) Upsert(ctx context.Context, summary *entity.DailySummary) error {
	subtotals := make(map[string]string, len(summary.MethodSubtotals))
	for m, v := range summary.MethodSubtotals {
		subtotals[string(m)] = v.String()
	}
	subtotalsJSON, err := json.Marshal(subtotals)
	if err != nil {
		return fmt.Errorf("failed to encode method subtotals: %w", err)
	}

	query := `
		INSERT INTO daily_summaries (
			summary_date, total_sales, total_tax, transaction_count,
			average_ticket, method_subtotals, refund_count, refund_amount,
			expected_cash, actual_cash, cash_discrepancy,
			is_reconciled, reconciled_at, reconciled_by, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(summary_date) DO UPDATE SET
			total_sales = excluded.total_sales,
			total_tax = excluded.total_tax,
			transaction_count = excluded.transaction_count,
			average_ticket = excluded.average_ticket,
			method_subtotals = excluded.method_subtotals,
			refund_count = excluded.refund_count,
			refund_amount = excluded.refund_amount,
			expected_cash = excluded.expected_cash,
			actual_cash = excluded.actual_cash,
			cash_discrepancy = excluded.cash_discrepancy,
			is_reconciled = excluded.is_reconciled,
			reconciled_at = excluded.reconciled_at,
			reconciled_by = excluded.reconciled_by,
			updated_at = excluded.updated_at
	`

	_, err = getExecutor(ctx, r.db).ExecContext(ctx, query,
		summary.SummaryDate.Format("2006-01-02"),
		summary.TotalSales.String(),
		summary.TotalTax.String(),
		summary.TransactionCount,
		nullableDecimal(summary.AverageTicket),
		string(subtotalsJSON),
		summary.RefundCount,
		summary.RefundAmount.String(),
		summary.ExpectedCash.String(),
		nullableDecimal(summary.ActualCash),
		nullableDecimal(summary.CashDiscrepancy),
		summary.IsReconciled,
		nullableTime(summary.ReconciledAt),
		summary.ReconciledBy,
		summary.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		r.logger.Error("Failed to upsert summary",
			zap.String("summary_date", summary.SummaryDate.Format("2006-01-02")),
			zap.Error(err))
		return fmt.Errorf("failed to upsert summary: %w", err)
	}
	return nil
}

// GetByDate retrieves the stored summary for a date, or nil when absent.
func (r *SummaryRepository) GetByDate(ctx context.Context, day time.Time) (*entity.DailySummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM daily_summaries WHERE summary_date = ?`

	summary, err := r.scanSummary(getExecutor(ctx, r.db).QueryRowContext(ctx, query,
		day.Format("2006-01-02")))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get summary",
			zap.String("summary_date", day.Format("2006-01-02")),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	return summary, nil
}

// ListByDateRange retrieves summaries with summary_date in [from, to].
func (r *SummaryRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]*entity.DailySummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM daily_summaries
		WHERE summary_date >= ? AND summary_date <= ?
		ORDER BY summary_date
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query,
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		r.logger.Error("Failed to list summaries", zap.Error(err))
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*entity.DailySummary
	for rows.Next() {
		summary, err := r.scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func (r *SummaryRepository) scanSummary(row rowScanner) (*entity.DailySummary, error) {
	var (
		summary       entity.DailySummary
		date          string
		totalSales    string
		totalTax      string
		avgTicket     sql.NullString
		subtotalsJSON string
		refundAmount  string
		expectedCash  string
		actualCash    sql.NullString
		discrepancy   sql.NullString
		reconciledAt  sql.NullString
		updatedAt     string
	)
	err := row.Scan(
		&summary.ID,
		&date,
		&totalSales,
		&totalTax,
		&summary.TransactionCount,
		&avgTicket,
		&subtotalsJSON,
		&summary.RefundCount,
		&refundAmount,
		&expectedCash,
		&actualCash,
		&discrepancy,
		&summary.IsReconciled,
		&reconciledAt,
		&summary.ReconciledBy,
		&summary.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if summary.SummaryDate, err = time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid summary_date %q: %w", date, err)
	}
	if summary.TotalSales, err = decimal.NewFromString(totalSales); err != nil {
		return nil, fmt.Errorf("invalid total_sales %q: %w", totalSales, err)
	}
	if summary.TotalTax, err = decimal.NewFromString(totalTax); err != nil {
		return nil, fmt.Errorf("invalid total_tax %q: %w", totalTax, err)
	}
	if summary.AverageTicket, err = parseNullDecimal(avgTicket); err != nil {
		return nil, fmt.Errorf("invalid average_ticket: %w", err)
	}

	var subtotals map[string]string
	if err := json.Unmarshal([]byte(subtotalsJSON), &subtotals); err != nil {
		return nil, fmt.Errorf("invalid method_subtotals column: %w", err)
	}
	summary.MethodSubtotals = make(map[entity.PaymentMethod]decimal.Decimal, len(subtotals))
	for m, v := range subtotals {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid subtotal for %s: %w", m, err)
		}
		summary.MethodSubtotals[entity.PaymentMethod(m)] = d
	}

	if summary.RefundAmount, err = decimal.NewFromString(refundAmount); err != nil {
		return nil, fmt.Errorf("invalid refund_amount %q: %w", refundAmount, err)
	}
	if summary.ExpectedCash, err = decimal.NewFromString(expectedCash); err != nil {
		return nil, fmt.Errorf("invalid expected_cash %q: %w", expectedCash, err)
	}
	if summary.ActualCash, err = parseNullDecimal(actualCash); err != nil {
		return nil, fmt.Errorf("invalid actual_cash: %w", err)
	}
	if summary.CashDiscrepancy, err = parseNullDecimal(discrepancy); err != nil {
		return nil, fmt.Errorf("invalid cash_discrepancy: %w", err)
	}
	if reconciledAt.Valid {
		t, err := time.Parse(time.RFC3339, reconciledAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid reconciled_at %q: %w", reconciledAt.String, err)
		}
		summary.ReconciledAt = &t
	}
	if summary.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}
	return &summary, nil
}

func nullableDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseNullDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Verify interface compliance
var _ port.SummaryRepository = (*SummaryRepository)(nil)
