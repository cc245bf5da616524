package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yuchilin/storeledger/internal/application/port"
	"github.com/yuchilin/storeledger/internal/domain/entity"
)

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

const invoiceColumns = `
	id, invoice_number, invoice_date, random_code, seller_id, buyer_id,
	sales_amount, tax_amount, total_amount, category, items,
	verification_state, raw_qr_left, raw_qr_right, supersedes, created_at
`

// Create inserts a new invoice row. Line items are stored as a JSON column;
// they are display data, never queried individually.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	items, err := json.Marshal(invoice.Items)
	if err != nil {
		return fmt.Errorf("failed to encode invoice items: %w", err)
	}

	query := `
		INSERT INTO invoices (
			invoice_number, invoice_date, random_code, seller_id, buyer_id,
			sales_amount, tax_amount, total_amount, category, items,
			verification_state, raw_qr_left, raw_qr_right, supersedes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var supersedes interface{}
	if invoice.Supersedes != 0 {
		supersedes = invoice.Supersedes
	}

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		invoice.InvoiceNumber,
		invoice.InvoiceDate.Format("2006-01-02"),
		invoice.RandomCode,
		invoice.SellerID,
		invoice.BuyerID,
		invoice.SalesAmount,
		invoice.TaxAmount,
		invoice.TotalAmount,
		invoice.Category,
		string(items),
		string(invoice.VerificationState),
		invoice.RawQRLeft,
		invoice.RawQRRight,
		supersedes,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	invoice.ID = id
	return nil
}

// GetByID retrieves an invoice by its row ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

	invoice, err := r.scanInvoice(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// GetByNumber retrieves the latest non-superseded record for an invoice
// number, or nil when the number has not been seen.
func (r *InvoiceRepository) GetByNumber(ctx context.Context, invoiceNumber string) (*entity.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE invoice_number = ?
		  AND id NOT IN (SELECT supersedes FROM invoices WHERE supersedes IS NOT NULL)
		ORDER BY id DESC
		LIMIT 1
	`

	invoice, err := r.scanInvoice(getExecutor(ctx, r.db).QueryRowContext(ctx, query, invoiceNumber))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice by number",
			zap.String("invoice_number", invoiceNumber),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// ListByDateRange retrieves invoices with invoice_date in [from, to],
// superseded rows excluded.
func (r *InvoiceRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]*entity.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE invoice_date >= ? AND invoice_date <= ?
		  AND id NOT IN (SELECT supersedes FROM invoices WHERE supersedes IS NOT NULL)
		ORDER BY invoice_date, invoice_number
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query,
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		invoice, err := r.scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// UpdateVerificationState records the outcome of an MOF lookup. This is the
// only mutable column on an invoice row.
func (r *InvoiceRepository) UpdateVerificationState(ctx context.Context, id int64, state entity.VerificationState) error {
	query := `UPDATE invoices SET verification_state = ? WHERE id = ?`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, string(state), id)
	if err != nil {
		r.logger.Error("Failed to update verification state",
			zap.Int64("id", id),
			zap.String("state", string(state)),
			zap.Error(err))
		return fmt.Errorf("failed to update verification state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("invoice %d not found", id)
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *InvoiceRepository) scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var (
		invoice    entity.Invoice
		date       string
		items      string
		state      string
		supersedes sql.NullInt64
	)
	err := row.Scan(
		&invoice.ID,
		&invoice.InvoiceNumber,
		&date,
		&invoice.RandomCode,
		&invoice.SellerID,
		&invoice.BuyerID,
		&invoice.SalesAmount,
		&invoice.TaxAmount,
		&invoice.TotalAmount,
		&invoice.Category,
		&items,
		&state,
		&invoice.RawQRLeft,
		&invoice.RawQRRight,
		&supersedes,
		&invoice.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	invoice.InvoiceDate, err = time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice_date %q: %w", date, err)
	}
	if items != "" && items != "null" {
		if err := json.Unmarshal([]byte(items), &invoice.Items); err != nil {
			return nil, fmt.Errorf("invalid items column: %w", err)
		}
	}
	invoice.VerificationState = entity.VerificationState(state)
	if supersedes.Valid {
		invoice.Supersedes = supersedes.Int64
	}
	return &invoice, nil
}

// Verify interface compliance
var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
