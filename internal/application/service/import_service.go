package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yuchilin/storeledger/internal/application/port"
	"github.com/yuchilin/storeledger/internal/domain/entity"
	"github.com/yuchilin/storeledger/internal/importer"
)

// RowError reports one rejected batch row with enough context for manual
// correction: its index, the precise reason, and the original cell values.
type RowError struct {
	Row    int               `json:"row"`
	Reason string            `json:"reason"`
	Raw    map[string]string `json:"raw"`
}

// Conflict reports a row whose transaction_id is already stored with
// different field values. The stored record wins; nothing is merged.
type Conflict struct {
	Row           int               `json:"row"`
	TransactionID string            `json:"transaction_id"`
	Fields        []string          `json:"fields"`
	Raw           map[string]string `json:"raw"`
}

// ImportReport summarizes one batch import. Per-row failures never abort the
// batch; only batch-level structural errors do.
type ImportReport struct {
	BatchID    string     `json:"batch_id"`
	Source     string     `json:"source"`
	Accepted   int        `json:"accepted"`
	Duplicates int        `json:"duplicates"`
	Conflicts  []Conflict `json:"conflicts,omitempty"`
	RowErrors  []RowError `json:"row_errors,omitempty"`
}

// ImportService ingests POS transaction batch files.
type ImportService interface {
	ImportFile(ctx context.Context, filename string, r io.Reader) (*ImportReport, error)
}

// pendingRow is a normalized row awaiting the dedup decision.
type pendingRow struct {
	row int
	txn *entity.Transaction
	raw map[string]string
}

type importServiceImpl struct {
	transactionRepo port.TransactionRepository
	txManager       port.TransactionManager
	normalizer      *importer.Normalizer
	dateLocks       *DateLocks
	logger          Logger
}

// NewImportService creates a new ImportService. dateLocks must be the same
// instance the reconciliation service uses.
func NewImportService(
	transactionRepo port.TransactionRepository,
	txManager port.TransactionManager,
	normalizer *importer.Normalizer,
	dateLocks *DateLocks,
	logger Logger,
) ImportService {
	return &importServiceImpl{
		transactionRepo: transactionRepo,
		txManager:       txManager,
		normalizer:      normalizer,
		dateLocks:       dateLocks,
		logger:          logger,
	}
}

// ImportFile reads a CSV or XLSX batch and merges it into the stored set.
// Re-importing an identical file is a no-op.
func (s *importServiceImpl) ImportFile(ctx context.Context, filename string, r io.Reader) (*ImportReport, error) {
	var (
		batch *importer.Batch
		err   error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		batch, err = importer.ReadCSV(r, filename)
	case ".xlsx":
		batch, err = importer.ReadXLSX(r, filename)
	default:
		return nil, &entity.FormatError{
			Field:  "batch",
			Reason: "unsupported file type, expected .csv or .xlsx",
			Raw:    filename,
		}
	}
	if err != nil {
		s.logger.Error("Batch rejected", "source", filename, "error", err)
		return nil, err
	}

	report := &ImportReport{
		BatchID: uuid.New().String(),
		Source:  filename,
	}

	// Normalize every row first so the lock set covers all touched dates.
	var rows []pendingRow
	var days []time.Time
	for _, rec := range batch.Records {
		txn, err := s.normalizer.Normalize(rec)
		if err != nil {
			report.RowErrors = append(report.RowErrors, RowError{
				Row:    rec.Index,
				Reason: err.Error(),
				Raw:    rec.Fields,
			})
			continue
		}
		txn.BatchID = report.BatchID
		rows = append(rows, pendingRow{row: rec.Index, txn: txn, raw: rec.Fields})
		days = append(days, txn.Date())
	}

	unlock := s.dateLocks.LockAll(days)
	defer unlock()

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, row := range rows {
			existing, err := s.transactionRepo.GetByTransactionID(txCtx, row.txn.TransactionID)
			if err != nil {
				return fmt.Errorf("lookup transaction %s: %w", row.txn.TransactionID, err)
			}
			disposition, dupErr := importer.Dedupe(row.txn, existing)
			switch disposition {
			case importer.DispositionNew:
				if err := s.transactionRepo.Create(txCtx, row.txn); err != nil {
					return fmt.Errorf("store transaction %s: %w", row.txn.TransactionID, err)
				}
				report.Accepted++
			case importer.DispositionDuplicate:
				report.Duplicates++
			case importer.DispositionConflict:
				report.Conflicts = append(report.Conflicts, Conflict{
					Row:           row.row,
					TransactionID: row.txn.TransactionID,
					Fields:        existing.DiffFields(row.txn),
					Raw:           row.raw,
				})
				s.logger.Warn("Conflicting duplicate transaction",
					"transaction_id", row.txn.TransactionID,
					"source", filename,
					"error", dupErr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Batch imported",
		"batch_id", report.BatchID,
		"source", filename,
		"accepted", report.Accepted,
		"duplicates", report.Duplicates,
		"conflicts", len(report.Conflicts),
		"row_errors", len(report.RowErrors))
	return report, nil
}

// Verify interface compliance
var _ ImportService = (*importServiceImpl)(nil)
