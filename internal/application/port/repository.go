package port

import (
	"context"
	"time"

	"github.com/yuchilin/storeledger/internal/domain/entity"
)

// InvoiceRepository defines persistence operations for Invoice.
// Invoices are append-only: no delete, corrections supersede.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id int64) (*entity.Invoice, error)
	// GetByNumber returns the latest (non-superseded) record for a number,
	// or nil when unseen.
	GetByNumber(ctx context.Context, invoiceNumber string) (*entity.Invoice, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]*entity.Invoice, error)
	UpdateVerificationState(ctx context.Context, id int64, state entity.VerificationState) error
}

// TransactionRepository defines persistence operations for Transaction.
// Stored transactions are immutable; there is no update operation.
type TransactionRepository interface {
	Create(ctx context.Context, txn *entity.Transaction) error
	GetByTransactionID(ctx context.Context, transactionID string) (*entity.Transaction, error)
	ListByDate(ctx context.Context, day time.Time) ([]*entity.Transaction, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]*entity.Transaction, error)
}

// SummaryRepository defines persistence operations for DailySummary.
// The whole row is replaced on recompute, never patched field by field.
type SummaryRepository interface {
	Upsert(ctx context.Context, summary *entity.DailySummary) error
	GetByDate(ctx context.Context, day time.Time) (*entity.DailySummary, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]*entity.DailySummary, error)
}

// AuditRepository is the append-only reconciliation trail. It deliberately
// exposes no update or delete.
type AuditRepository interface {
	Append(ctx context.Context, audit *entity.ReconciliationAudit) error
	ListByDate(ctx context.Context, day time.Time) ([]*entity.ReconciliationAudit, error)
}

// TransactionManager executes a function within a storage transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
