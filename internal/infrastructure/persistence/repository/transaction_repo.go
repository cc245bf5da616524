package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/yuchilin/storeledger/internal/application/port"
	"github.com/yuchilin/storeledger/internal/domain/entity"
)

// TransactionRepository implements port.TransactionRepository. Amounts are
// stored as TEXT and round-tripped through shopspring/decimal so no value
// ever passes through a float.
type TransactionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sql.DB, logger *zap.Logger) port.TransactionRepository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

const transactionColumns = `
	id, transaction_id, occurred_at, payment_method,
	gross_amount, tax_amount, net_amount, discount_amount,
	is_refund, is_void, batch_id, created_at
`

// Create inserts a new transaction row. Rows are immutable; there is no
// update counterpart.
func (r *TransactionRepository) Create(ctx context.Context, txn *entity.Transaction) error {
	query := `
		INSERT INTO transactions (
			transaction_id, occurred_at, transaction_date, payment_method,
			gross_amount, tax_amount, net_amount, discount_amount,
			is_refund, is_void, batch_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		txn.TransactionID,
		txn.OccurredAt.Format(time.RFC3339),
		txn.Date().Format("2006-01-02"),
		string(txn.PaymentMethod),
		txn.GrossAmount.String(),
		txn.TaxAmount.String(),
		txn.NetAmount.String(),
		txn.DiscountAmount.String(),
		txn.IsRefund,
		txn.IsVoid,
		txn.BatchID,
	)
	if err != nil {
		r.logger.Error("Failed to create transaction",
			zap.String("transaction_id", txn.TransactionID),
			zap.Error(err))
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	txn.ID = id
	return nil
}

// GetByTransactionID retrieves a transaction by its POS identity key, or nil
// when unseen.
func (r *TransactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*entity.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = ?`

	txn, err := r.scanTransaction(getExecutor(ctx, r.db).QueryRowContext(ctx, query, transactionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get transaction",
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// ListByDate retrieves every transaction on one calendar date.
func (r *TransactionRepository) ListByDate(ctx context.Context, day time.Time) ([]*entity.Transaction, error) {
	return r.ListByDateRange(ctx, day, day)
}

// ListByDateRange retrieves transactions occurring on calendar dates in
// [from, to]. Rows are bucketed by the stored transaction_date, so a day's
// membership does not depend on the zone the bounds were parsed in.
func (r *TransactionRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE transaction_date >= ? AND transaction_date <= ?
		ORDER BY transaction_date, occurred_at, transaction_id
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query,
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		r.logger.Error("Failed to list transactions", zap.Error(err))
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*entity.Transaction
	for rows.Next() {
		txn, err := r.scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func (r *TransactionRepository) scanTransaction(row rowScanner) (*entity.Transaction, error) {
	var (
		txn        entity.Transaction
		occurredAt string
		method     string
		gross      string
		tax        string
		net        string
		discount   string
	)
	err := row.Scan(
		&txn.ID,
		&txn.TransactionID,
		&occurredAt,
		&method,
		&gross,
		&tax,
		&net,
		&discount,
		&txn.IsRefund,
		&txn.IsVoid,
		&txn.BatchID,
		&txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.OccurredAt, err = time.Parse(time.RFC3339, occurredAt)
	if err != nil {
		return nil, fmt.Errorf("invalid occurred_at %q: %w", occurredAt, err)
	}
	txn.PaymentMethod = entity.PaymentMethod(method)
	if txn.GrossAmount, err = decimal.NewFromString(gross); err != nil {
		return nil, fmt.Errorf("invalid gross_amount %q: %w", gross, err)
	}
	if txn.TaxAmount, err = decimal.NewFromString(tax); err != nil {
		return nil, fmt.Errorf("invalid tax_amount %q: %w", tax, err)
	}
	if txn.NetAmount, err = decimal.NewFromString(net); err != nil {
		return nil, fmt.Errorf("invalid net_amount %q: %w", net, err)
	}
	if txn.DiscountAmount, err = decimal.NewFromString(discount); err != nil {
		return nil, fmt.Errorf("invalid discount_amount %q: %w", discount, err)
	}
	return &txn, nil
}

// Verify interface compliance
var _ port.TransactionRepository = (*TransactionRepository)(nil)
