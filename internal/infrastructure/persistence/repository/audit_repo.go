package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yuchilin/storeledger/internal/application/port"
	"github.com/yuchilin/storeledger/internal/domain/entity"
)

// AuditRepository implements port.AuditRepository. The table is an
// append-only log: this type exposes no update or delete.
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts a new audit entry.
func (r *AuditRepository) Append(ctx context.Context, audit *entity.ReconciliationAudit) error {
	query := `
		INSERT INTO reconciliation_audits (
			id, summary_date, action, actor,
			prior_discrepancy, new_discrepancy, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		audit.ID,
		audit.SummaryDate.Format("2006-01-02"),
		string(audit.Action),
		audit.Actor,
		nullableDecimal(audit.PriorDiscrepancy),
		nullableDecimal(audit.NewDiscrepancy),
		audit.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("summary_date", audit.SummaryDate.Format("2006-01-02")),
			zap.String("action", string(audit.Action)),
			zap.Error(err))
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListByDate retrieves the audit trail for a date, oldest first.
func (r *AuditRepository) ListByDate(ctx context.Context, day time.Time) ([]*entity.ReconciliationAudit, error) {
	query := `
		SELECT id, summary_date, action, actor,
			prior_discrepancy, new_discrepancy, created_at
		FROM reconciliation_audits
		WHERE summary_date = ?
		ORDER BY created_at, id
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, day.Format("2006-01-02"))
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var audits []*entity.ReconciliationAudit
	for rows.Next() {
		var (
			audit     entity.ReconciliationAudit
			date      string
			action    string
			prior     sql.NullString
			next      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&audit.ID, &date, &action, &audit.Actor, &prior, &next, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if audit.SummaryDate, err = time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("invalid summary_date %q: %w", date, err)
		}
		audit.Action = entity.AuditAction(action)
		if audit.PriorDiscrepancy, err = parseNullDecimal(prior); err != nil {
			return nil, fmt.Errorf("invalid prior_discrepancy: %w", err)
		}
		if audit.NewDiscrepancy, err = parseNullDecimal(next); err != nil {
			return nil, fmt.Errorf("invalid new_discrepancy: %w", err)
		}
		if audit.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
		}
		audits = append(audits, &audit)
	}
	return audits, rows.Err()
}

// Verify interface compliance
var _ port.AuditRepository = (*AuditRepository)(nil)
