package service

import (
	"context"
	"time"

	"github.com/yuchilin/storeledger/internal/application/port"
	"github.com/yuchilin/storeledger/internal/domain/entity"
)

// Mock repositories

type mockInvoiceRepo struct {
	createFunc      func(ctx context.Context, invoice *entity.Invoice) error
	getByNumberFunc func(ctx context.Context, number string) (*entity.Invoice, error)
	listFunc        func(ctx context.Context, from, to time.Time) ([]*entity.Invoice, error)
	updateStateFunc func(ctx context.Context, id int64, state entity.VerificationState) error
}

func (m *mockInvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, invoice)
	}
	invoice.ID = 1
	return nil
}

func (m *mockInvoiceRepo) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	return nil, nil
}

func (m *mockInvoiceRepo) GetByNumber(ctx context.Context, number string) (*entity.Invoice, error) {
	if m.getByNumberFunc != nil {
		return m.getByNumberFunc(ctx, number)
	}
	return nil, nil
}

func (m *mockInvoiceRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]*entity.Invoice, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, from, to)
	}
	return nil, nil
}

func (m *mockInvoiceRepo) UpdateVerificationState(ctx context.Context, id int64, state entity.VerificationState) error {
	if m.updateStateFunc != nil {
		return m.updateStateFunc(ctx, id, state)
	}
	return nil
}

type mockTransactionRepo struct {
	createFunc  func(ctx context.Context, txn *entity.Transaction) error
	getByIDFunc func(ctx context.Context, transactionID string) (*entity.Transaction, error)
	listByDate  func(ctx context.Context, day time.Time) ([]*entity.Transaction, error)
	stored      []*entity.Transaction
}

func (m *mockTransactionRepo) Create(ctx context.Context, txn *entity.Transaction) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, txn)
	}
	txn.ID = int64(len(m.stored) + 1)
	m.stored = append(m.stored, txn)
	return nil
}

func (m *mockTransactionRepo) GetByTransactionID(ctx context.Context, transactionID string) (*entity.Transaction, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, transactionID)
	}
	for _, txn := range m.stored {
		if txn.TransactionID == transactionID {
			return txn, nil
		}
	}
	return nil, nil
}

func (m *mockTransactionRepo) ListByDate(ctx context.Context, day time.Time) ([]*entity.Transaction, error) {
	if m.listByDate != nil {
		return m.listByDate(ctx, day)
	}
	var txns []*entity.Transaction
	for _, txn := range m.stored {
		if txn.Date().Equal(day) {
			txns = append(txns, txn)
		}
	}
	return txns, nil
}

func (m *mockTransactionRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]*entity.Transaction, error) {
	var txns []*entity.Transaction
	for _, txn := range m.stored {
		d := txn.Date()
		if !d.Before(from) && !d.After(to) {
			txns = append(txns, txn)
		}
	}
	return txns, nil
}

type mockSummaryRepo struct {
	upsertFunc func(ctx context.Context, summary *entity.DailySummary) error
	byDate     map[string]*entity.DailySummary
}

func newMockSummaryRepo() *mockSummaryRepo {
	return &mockSummaryRepo{byDate: make(map[string]*entity.DailySummary)}
}

func (m *mockSummaryRepo) Upsert(ctx context.Context, summary *entity.DailySummary) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, summary)
	}
	copied := *summary
	m.byDate[summary.SummaryDate.Format("2006-01-02")] = &copied
	return nil
}

func (m *mockSummaryRepo) GetByDate(ctx context.Context, day time.Time) (*entity.DailySummary, error) {
	if s, ok := m.byDate[day.Format("2006-01-02")]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (m *mockSummaryRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]*entity.DailySummary, error) {
	var summaries []*entity.DailySummary
	for _, s := range m.byDate {
		if !s.SummaryDate.Before(from) && !s.SummaryDate.After(to) {
			summaries = append(summaries, s)
		}
	}
	return summaries, nil
}

type mockAuditRepo struct {
	entries []*entity.ReconciliationAudit
}

func (m *mockAuditRepo) Append(ctx context.Context, audit *entity.ReconciliationAudit) error {
	m.entries = append(m.entries, audit)
	return nil
}

func (m *mockAuditRepo) ListByDate(ctx context.Context, day time.Time) ([]*entity.ReconciliationAudit, error) {
	var audits []*entity.ReconciliationAudit
	for _, a := range m.entries {
		if a.SummaryDate.Equal(day) {
			audits = append(audits, a)
		}
	}
	return audits, nil
}

// mockTxManager runs the function directly; storage transactionality is not
// under test here.
type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockVerifier struct {
	outcome port.VerificationOutcome
	calls   int
}

func (m *mockVerifier) Verify(ctx context.Context, invoiceNumber string, invoiceDate time.Time, randomCode string) port.VerificationOutcome {
	m.calls++
	return m.outcome
}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}
