package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yuchilin/storeledger/internal/application/port"
	"github.com/yuchilin/storeledger/internal/domain/entity"
)

// ReconcileConfig carries the per-store drawer parameters.
type ReconcileConfig struct {
	// StartingFloat is the opening cash placed in the drawer each day.
	StartingFloat decimal.Decimal
	// AlertThreshold flags a closure whose absolute discrepancy exceeds it.
	AlertThreshold decimal.Decimal
}

// CloseResult is the outcome of closing a day.
type CloseResult struct {
	Summary *entity.DailySummary `json:"summary"`
	// Alert is set when the absolute cash discrepancy exceeds the
	// configured threshold. The closure still succeeds.
	Alert bool `json:"alert"`
}

// ReconcileService recomputes daily summaries and runs the close/reopen
// lifecycle.
type ReconcileService interface {
	// Recompute rebuilds the summary for a day from its stored transactions
	// and persists it. A reconciled day keeps its actual cash count; only
	// the derived figures and the discrepancy move.
	Recompute(ctx context.Context, day time.Time) (*entity.DailySummary, error)
	ListSummaries(ctx context.Context, from, to time.Time) ([]*entity.DailySummary, error)
	ListTransactions(ctx context.Context, from, to time.Time) ([]*entity.Transaction, error)
	// Close records the counted drawer cash and marks the day reconciled.
	// Closing an already-closed day re-counts: the prior state is preserved
	// in the audit trail, never overwritten silently.
	Close(ctx context.Context, day time.Time, actualCash decimal.Decimal, actor string) (*CloseResult, error)
	// Reopen clears the reconciled state of a closed day.
	Reopen(ctx context.Context, day time.Time, actor string) (*entity.DailySummary, error)
	Audits(ctx context.Context, day time.Time) ([]*entity.ReconciliationAudit, error)
}

type reconcileServiceImpl struct {
	transactionRepo port.TransactionRepository
	summaryRepo     port.SummaryRepository
	auditRepo       port.AuditRepository
	txManager       port.TransactionManager
	dateLocks       *DateLocks
	cfg             ReconcileConfig
	logger          Logger
	now             func() time.Time
}

// NewReconcileService creates a new ReconcileService. dateLocks must be the
// same instance the import service uses. now may be nil, defaulting to
// time.Now.
func NewReconcileService(
	transactionRepo port.TransactionRepository,
	summaryRepo port.SummaryRepository,
	auditRepo port.AuditRepository,
	txManager port.TransactionManager,
	dateLocks *DateLocks,
	cfg ReconcileConfig,
	logger Logger,
	now func() time.Time,
) ReconcileService {
	if now == nil {
		now = time.Now
	}
	return &reconcileServiceImpl{
		transactionRepo: transactionRepo,
		summaryRepo:     summaryRepo,
		auditRepo:       auditRepo,
		txManager:       txManager,
		dateLocks:       dateLocks,
		cfg:             cfg,
		logger:          logger,
		now:             now,
	}
}

// buildSummary derives the aggregate for one day from its transactions.
// Voided transactions are excluded from every figure. The computation is
// pure: same transactions in, same summary out.
func buildSummary(day time.Time, txns []*entity.Transaction, startingFloat decimal.Decimal) *entity.DailySummary {
	s := &entity.DailySummary{
		SummaryDate:     truncateDay(day),
		MethodSubtotals: make(map[entity.PaymentMethod]decimal.Decimal, len(entity.PaymentMethods)),
	}
	for _, m := range entity.PaymentMethods {
		s.MethodSubtotals[m] = decimal.Zero
	}

	for _, txn := range txns {
		if txn.IsVoid {
			continue
		}
		s.TotalSales = s.TotalSales.Add(txn.NetAmount)
		s.TotalTax = s.TotalTax.Add(txn.TaxAmount)
		s.TransactionCount++
		s.MethodSubtotals[txn.PaymentMethod] = s.MethodSubtotals[txn.PaymentMethod].Add(txn.NetAmount)
		if txn.IsRefund {
			s.RefundCount++
			s.RefundAmount = s.RefundAmount.Add(txn.NetAmount.Abs())
		}
	}

	if s.TransactionCount > 0 {
		avg := s.TotalSales.DivRound(decimal.NewFromInt(int64(s.TransactionCount)), 2)
		s.AverageTicket = &avg
	}
	// Expected drawer contents beyond the opening float: net cash taken in,
	// already reduced by cash refunds.
	s.ExpectedCash = s.MethodSubtotals[entity.PaymentCash].Sub(startingFloat)
	return s
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (s *reconcileServiceImpl) Recompute(ctx context.Context, day time.Time) (*entity.DailySummary, error) {
	day = truncateDay(day)
	unlock := s.dateLocks.Lock(day)
	defer unlock()

	var result *entity.DailySummary
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		result, err = s.recomputeLocked(txCtx, day)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// recomputeLocked rebuilds and stores the summary for day. The caller holds
// the date lock and a storage transaction.
func (s *reconcileServiceImpl) recomputeLocked(ctx context.Context, day time.Time) (*entity.DailySummary, error) {
	txns, err := s.transactionRepo.ListByDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", day.Format("2006-01-02"), err)
	}

	summary := buildSummary(day, txns, s.cfg.StartingFloat)

	prior, err := s.summaryRepo.GetByDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load summary for %s: %w", day.Format("2006-01-02"), err)
	}
	if prior != nil {
		summary.ID = prior.ID
		summary.CreatedAt = prior.CreatedAt
		if prior.IsReconciled {
			// The counted cash stands; the discrepancy tracks the new
			// expected figure.
			summary.IsReconciled = true
			summary.ActualCash = prior.ActualCash
			summary.ReconciledAt = prior.ReconciledAt
			summary.ReconciledBy = prior.ReconciledBy
			if prior.ActualCash != nil {
				d := prior.ActualCash.Sub(summary.ExpectedCash)
				summary.CashDiscrepancy = &d
			}
		}
	}
	summary.UpdatedAt = s.now()

	if err := s.summaryRepo.Upsert(ctx, summary); err != nil {
		return nil, fmt.Errorf("store summary for %s: %w", day.Format("2006-01-02"), err)
	}
	return summary, nil
}

func (s *reconcileServiceImpl) ListSummaries(ctx context.Context, from, to time.Time) ([]*entity.DailySummary, error) {
	return s.summaryRepo.ListByDateRange(ctx, truncateDay(from), truncateDay(to))
}

func (s *reconcileServiceImpl) ListTransactions(ctx context.Context, from, to time.Time) ([]*entity.Transaction, error) {
	return s.transactionRepo.ListByDateRange(ctx, truncateDay(from), truncateDay(to))
}

func (s *reconcileServiceImpl) Close(ctx context.Context, day time.Time, actualCash decimal.Decimal, actor string) (*CloseResult, error) {
	day = truncateDay(day)
	unlock := s.dateLocks.Lock(day)
	defer unlock()

	var result *CloseResult
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		summary, err := s.recomputeLocked(txCtx, day)
		if err != nil {
			return err
		}

		priorDiscrepancy := summary.CashDiscrepancy
		if summary.IsReconciled {
			// A re-close is a correction: leave a reopen entry so the
			// trail shows the earlier count being withdrawn.
			reopenAudit := &entity.ReconciliationAudit{
				ID:               uuid.New().String(),
				SummaryDate:      day,
				Action:           entity.AuditActionReopen,
				Actor:            actor,
				PriorDiscrepancy: priorDiscrepancy,
				CreatedAt:        s.now(),
			}
			if err := s.auditRepo.Append(txCtx, reopenAudit); err != nil {
				return fmt.Errorf("append reopen audit: %w", err)
			}
		}

		discrepancy := actualCash.Sub(summary.ExpectedCash)
		closedAt := s.now()
		summary.ActualCash = &actualCash
		summary.CashDiscrepancy = &discrepancy
		summary.IsReconciled = true
		summary.ReconciledAt = &closedAt
		summary.ReconciledBy = actor
		summary.UpdatedAt = closedAt
		if err := s.summaryRepo.Upsert(txCtx, summary); err != nil {
			return fmt.Errorf("store summary for %s: %w", day.Format("2006-01-02"), err)
		}

		closeAudit := &entity.ReconciliationAudit{
			ID:               uuid.New().String(),
			SummaryDate:      day,
			Action:           entity.AuditActionClose,
			Actor:            actor,
			PriorDiscrepancy: priorDiscrepancy,
			NewDiscrepancy:   &discrepancy,
			CreatedAt:        closedAt,
		}
		if err := s.auditRepo.Append(txCtx, closeAudit); err != nil {
			return fmt.Errorf("append close audit: %w", err)
		}

		alert := discrepancy.Abs().GreaterThan(s.cfg.AlertThreshold)
		if alert {
			s.logger.Warn("Cash discrepancy over threshold",
				"summary_date", day.Format("2006-01-02"),
				"discrepancy", discrepancy.String(),
				"threshold", s.cfg.AlertThreshold.String(),
				"actor", actor)
		}
		result = &CloseResult{Summary: summary, Alert: alert}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Day closed",
		"summary_date", day.Format("2006-01-02"),
		"actor", actor,
		"actual_cash", actualCash.String())
	return result, nil
}

func (s *reconcileServiceImpl) Reopen(ctx context.Context, day time.Time, actor string) (*entity.DailySummary, error) {
	day = truncateDay(day)
	unlock := s.dateLocks.Lock(day)
	defer unlock()

	var result *entity.DailySummary
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		summary, err := s.summaryRepo.GetByDate(txCtx, day)
		if err != nil {
			return fmt.Errorf("load summary for %s: %w", day.Format("2006-01-02"), err)
		}
		if summary == nil || !summary.IsReconciled {
			return fmt.Errorf("summary for %s is not reconciled", day.Format("2006-01-02"))
		}

		priorDiscrepancy := summary.CashDiscrepancy
		summary.ActualCash = nil
		summary.CashDiscrepancy = nil
		summary.IsReconciled = false
		summary.ReconciledAt = nil
		summary.ReconciledBy = ""
		summary.UpdatedAt = s.now()
		if err := s.summaryRepo.Upsert(txCtx, summary); err != nil {
			return fmt.Errorf("store summary for %s: %w", day.Format("2006-01-02"), err)
		}

		audit := &entity.ReconciliationAudit{
			ID:               uuid.New().String(),
			SummaryDate:      day,
			Action:           entity.AuditActionReopen,
			Actor:            actor,
			PriorDiscrepancy: priorDiscrepancy,
			CreatedAt:        s.now(),
		}
		if err := s.auditRepo.Append(txCtx, audit); err != nil {
			return fmt.Errorf("append reopen audit: %w", err)
		}
		result = summary
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Day reopened", "summary_date", day.Format("2006-01-02"), "actor", actor)
	return result, nil
}

func (s *reconcileServiceImpl) Audits(ctx context.Context, day time.Time) ([]*entity.ReconciliationAudit, error) {
	return s.auditRepo.ListByDate(ctx, truncateDay(day))
}

// Verify interface compliance
var _ ReconcileService = (*reconcileServiceImpl)(nil)
