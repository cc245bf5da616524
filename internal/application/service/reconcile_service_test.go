package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuchilin/storeledger/internal/domain/entity"
)

var testDay = time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)

func reconcileNow() time.Time {
	return time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC)
}

func dayTxn(id string, method entity.PaymentMethod, net int64, isRefund, isVoid bool) *entity.Transaction {
	return &entity.Transaction{
		TransactionID: id,
		OccurredAt:    testDay.Add(10 * time.Hour),
		PaymentMethod: method,
		NetAmount:     decimal.NewFromInt(net),
		IsRefund:      isRefund,
		IsVoid:        isVoid,
	}
}

func newTestReconcileService(txns []*entity.Transaction, cfg ReconcileConfig) (ReconcileService, *mockSummaryRepo, *mockAuditRepo) {
	txnRepo := &mockTransactionRepo{stored: txns}
	summaryRepo := newMockSummaryRepo()
	auditRepo := &mockAuditRepo{}
	svc := NewReconcileService(txnRepo, summaryRepo, auditRepo, &mockTxManager{},
		NewDateLocks(), cfg, nopLogger{}, reconcileNow)
	return svc, summaryRepo, auditRepo
}

func TestReconcileService_Recompute(t *testing.T) {
	t.Run("aggregates a mixed day", func(t *testing.T) {
		txns := []*entity.Transaction{
			dayTxn("TXN-001", entity.PaymentCredit, 300, false, false),
			dayTxn("TXN-002", entity.PaymentCash, -50, true, false),
		}
		txns[0].TaxAmount = decimal.NewFromInt(14)
		txns[1].TaxAmount = decimal.NewFromInt(-2)
		svc, _, _ := newTestReconcileService(txns, ReconcileConfig{})

		summary, err := svc.Recompute(context.Background(), testDay)
		require.NoError(t, err)
		assert.True(t, summary.TotalSales.Equal(decimal.NewFromInt(250)))
		assert.True(t, summary.TotalTax.Equal(decimal.NewFromInt(12)))
		assert.Equal(t, 2, summary.TransactionCount)
		assert.True(t, summary.Subtotal(entity.PaymentCredit).Equal(decimal.NewFromInt(300)))
		assert.True(t, summary.Subtotal(entity.PaymentCash).Equal(decimal.NewFromInt(-50)))
		assert.True(t, summary.Subtotal(entity.PaymentDebit).IsZero())
		assert.Equal(t, 1, summary.RefundCount)
		assert.True(t, summary.RefundAmount.Equal(decimal.NewFromInt(50)))
		assert.True(t, summary.ExpectedCash.Equal(decimal.NewFromInt(-50)))
		require.NotNil(t, summary.AverageTicket)
		assert.True(t, summary.AverageTicket.Equal(decimal.NewFromInt(125)))
		assert.False(t, summary.IsReconciled)
	})

	t.Run("starting float reduces expected cash", func(t *testing.T) {
		txns := []*entity.Transaction{
			dayTxn("TXN-001", entity.PaymentCash, 500, false, false),
		}
		svc, _, _ := newTestReconcileService(txns,
			ReconcileConfig{StartingFloat: decimal.NewFromInt(3000)})

		summary, err := svc.Recompute(context.Background(), testDay)
		require.NoError(t, err)
		assert.True(t, summary.ExpectedCash.Equal(decimal.NewFromInt(-2500)))
	})

	t.Run("void transactions are excluded everywhere", func(t *testing.T) {
		txns := []*entity.Transaction{
			dayTxn("TXN-001", entity.PaymentCash, 100, false, false),
			dayTxn("TXN-002", entity.PaymentCash, 999, false, true),
		}
		svc, _, _ := newTestReconcileService(txns, ReconcileConfig{})

		summary, err := svc.Recompute(context.Background(), testDay)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.TransactionCount)
		assert.True(t, summary.TotalSales.Equal(decimal.NewFromInt(100)))
	})

	t.Run("empty day yields zero sums and nil average", func(t *testing.T) {
		svc, _, _ := newTestReconcileService(nil, ReconcileConfig{})

		summary, err := svc.Recompute(context.Background(), testDay)
		require.NoError(t, err)
		assert.Zero(t, summary.TransactionCount)
		assert.True(t, summary.TotalSales.IsZero())
		assert.Nil(t, summary.AverageTicket)
		for _, m := range entity.PaymentMethods {
			assert.True(t, summary.Subtotal(m).IsZero())
		}
	})

	t.Run("refund-only day is valid with negative sales", func(t *testing.T) {
		txns := []*entity.Transaction{
			dayTxn("TXN-001", entity.PaymentCash, -80, true, false),
		}
		svc, _, _ := newTestReconcileService(txns, ReconcileConfig{})

		summary, err := svc.Recompute(context.Background(), testDay)
		require.NoError(t, err)
		assert.True(t, summary.TotalSales.Equal(decimal.NewFromInt(-80)))
		assert.Equal(t, 1, summary.RefundCount)
	})

	t.Run("recompute is deterministic", func(t *testing.T) {
		txns := []*entity.Transaction{
			dayTxn("TXN-001", entity.PaymentCredit, 300, false, false),
			dayTxn("TXN-002", entity.PaymentCash, -50, true, false),
		}
		svc, _, _ := newTestReconcileService(txns, ReconcileConfig{})

		first, err := svc.Recompute(context.Background(), testDay)
		require.NoError(t, err)
		second, err := svc.Recompute(context.Background(), testDay)
		require.NoError(t, err)
		assert.True(t, first.TotalSales.Equal(second.TotalSales))
		assert.Equal(t, first.TransactionCount, second.TransactionCount)
	})

	t.Run("recompute after close keeps the count and moves the discrepancy", func(t *testing.T) {
		txnRepo := &mockTransactionRepo{stored: []*entity.Transaction{
			dayTxn("TXN-001", entity.PaymentCash, 100, false, false),
		}}
		summaryRepo := newMockSummaryRepo()
		svc := NewReconcileService(txnRepo, summaryRepo, &mockAuditRepo{}, &mockTxManager{},
			NewDateLocks(), ReconcileConfig{AlertThreshold: decimal.NewFromInt(1000)}, nopLogger{}, reconcileNow)

		_, err := svc.Close(context.Background(), testDay, decimal.NewFromInt(100), "alice")
		require.NoError(t, err)

		// A late import changes the day's cash intake.
		require.NoError(t, txnRepo.Create(context.Background(),
			dayTxn("TXN-002", entity.PaymentCash, 40, false, false)))

		summary, err := svc.Recompute(context.Background(), testDay)
		require.NoError(t, err)
		assert.True(t, summary.IsReconciled)
		require.NotNil(t, summary.ActualCash)
		assert.True(t, summary.ActualCash.Equal(decimal.NewFromInt(100)))
		require.NotNil(t, summary.CashDiscrepancy)
		assert.True(t, summary.CashDiscrepancy.Equal(decimal.NewFromInt(-40)))
	})
}

func TestReconcileService_CloseAndReopen(t *testing.T) {
	mixedDay := func() []*entity.Transaction {
		return []*entity.Transaction{
			dayTxn("TXN-001", entity.PaymentCredit, 300, false, false),
			dayTxn("TXN-002", entity.PaymentCash, -50, true, false),
		}
	}

	t.Run("close records count, discrepancy, and audit", func(t *testing.T) {
		svc, summaryRepo, auditRepo := newTestReconcileService(mixedDay(),
			ReconcileConfig{AlertThreshold: decimal.NewFromInt(1000)})

		result, err := svc.Close(context.Background(), testDay, decimal.NewFromInt(250), "alice")
		require.NoError(t, err)
		summary := result.Summary
		assert.True(t, summary.IsReconciled)
		assert.Equal(t, "alice", summary.ReconciledBy)
		require.NotNil(t, summary.ReconciledAt)
		require.NotNil(t, summary.CashDiscrepancy)
		// actual 250 against expected -50
		assert.True(t, summary.CashDiscrepancy.Equal(decimal.NewFromInt(300)))
		assert.False(t, result.Alert)

		stored, err := summaryRepo.GetByDate(context.Background(), testDay)
		require.NoError(t, err)
		assert.True(t, stored.IsReconciled)

		require.Len(t, auditRepo.entries, 1)
		assert.Equal(t, entity.AuditActionClose, auditRepo.entries[0].Action)
		assert.Equal(t, "alice", auditRepo.entries[0].Actor)
		require.NotNil(t, auditRepo.entries[0].NewDiscrepancy)
		assert.True(t, auditRepo.entries[0].NewDiscrepancy.Equal(decimal.NewFromInt(300)))
		assert.Nil(t, auditRepo.entries[0].PriorDiscrepancy)
		assert.NotEmpty(t, auditRepo.entries[0].ID)
	})

	t.Run("discrepancy over threshold raises the alert flag", func(t *testing.T) {
		svc, _, _ := newTestReconcileService(mixedDay(),
			ReconcileConfig{AlertThreshold: decimal.NewFromInt(100)})

		result, err := svc.Close(context.Background(), testDay, decimal.NewFromInt(250), "alice")
		require.NoError(t, err)
		assert.True(t, result.Alert)
	})

	t.Run("re-close audits a reopen then a close", func(t *testing.T) {
		svc, _, auditRepo := newTestReconcileService(mixedDay(),
			ReconcileConfig{AlertThreshold: decimal.NewFromInt(1000)})

		_, err := svc.Close(context.Background(), testDay, decimal.NewFromInt(250), "alice")
		require.NoError(t, err)
		result, err := svc.Close(context.Background(), testDay, decimal.NewFromInt(-50), "bob")
		require.NoError(t, err)

		require.NotNil(t, result.Summary.CashDiscrepancy)
		assert.True(t, result.Summary.CashDiscrepancy.IsZero())

		require.Len(t, auditRepo.entries, 3)
		assert.Equal(t, entity.AuditActionClose, auditRepo.entries[0].Action)
		assert.Equal(t, entity.AuditActionReopen, auditRepo.entries[1].Action)
		assert.Equal(t, entity.AuditActionClose, auditRepo.entries[2].Action)
		require.NotNil(t, auditRepo.entries[2].PriorDiscrepancy)
		assert.True(t, auditRepo.entries[2].PriorDiscrepancy.Equal(decimal.NewFromInt(300)))
	})

	t.Run("reopen clears reconciled state and audits", func(t *testing.T) {
		svc, summaryRepo, auditRepo := newTestReconcileService(mixedDay(),
			ReconcileConfig{AlertThreshold: decimal.NewFromInt(1000)})

		_, err := svc.Close(context.Background(), testDay, decimal.NewFromInt(250), "alice")
		require.NoError(t, err)

		summary, err := svc.Reopen(context.Background(), testDay, "bob")
		require.NoError(t, err)
		assert.False(t, summary.IsReconciled)
		assert.Nil(t, summary.ActualCash)
		assert.Nil(t, summary.CashDiscrepancy)
		assert.Nil(t, summary.ReconciledAt)
		assert.Empty(t, summary.ReconciledBy)

		stored, err := summaryRepo.GetByDate(context.Background(), testDay)
		require.NoError(t, err)
		assert.False(t, stored.IsReconciled)

		require.Len(t, auditRepo.entries, 2)
		assert.Equal(t, entity.AuditActionReopen, auditRepo.entries[1].Action)
		require.NotNil(t, auditRepo.entries[1].PriorDiscrepancy)
	})

	t.Run("reopening an open day errors", func(t *testing.T) {
		svc, _, _ := newTestReconcileService(mixedDay(), ReconcileConfig{})
		_, err := svc.Reopen(context.Background(), testDay, "bob")
		assert.Error(t, err)
	})

	t.Run("audit trail reads back in order", func(t *testing.T) {
		svc, _, _ := newTestReconcileService(mixedDay(),
			ReconcileConfig{AlertThreshold: decimal.NewFromInt(1000)})

		_, err := svc.Close(context.Background(), testDay, decimal.NewFromInt(250), "alice")
		require.NoError(t, err)
		_, err = svc.Reopen(context.Background(), testDay, "bob")
		require.NoError(t, err)

		audits, err := svc.Audits(context.Background(), testDay)
		require.NoError(t, err)
		require.Len(t, audits, 2)
		assert.Equal(t, entity.AuditActionClose, audits[0].Action)
		assert.Equal(t, entity.AuditActionReopen, audits[1].Action)
	})
}
