// Package importer turns exported POS transaction batches into validated
// Transaction candidates and decides how each candidate merges against the
// already-stored set.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/yuchilin/storeledger/internal/domain/entity"
)

// Column names of the POS export contract. Unknown columns are ignored;
// a missing required column rejects the whole batch before any row runs.
const (
	ColTransactionID   = "transaction_id"
	ColTransactionDate = "transaction_date"
	ColTransactionTime = "transaction_time"
	ColPaymentMethod   = "payment_method"
	ColGrossAmount     = "gross_amount"
	ColTaxAmount       = "tax_amount"
	ColNetAmount       = "net_amount"
	ColDiscountAmount  = "discount_amount"
	ColIsRefund        = "is_refund"
	ColIsVoid          = "is_void"
)

// RequiredColumns lists every column the contract demands.
var RequiredColumns = []string{
	ColTransactionID,
	ColTransactionDate,
	ColTransactionTime,
	ColPaymentMethod,
	ColGrossAmount,
	ColTaxAmount,
	ColNetAmount,
	ColDiscountAmount,
	ColIsRefund,
	ColIsVoid,
}

// Record is one data row of a batch, keyed by recognized column name.
// Index is 1-based and counts data rows (the header is row 0).
type Record struct {
	Index  int
	Fields map[string]string
}

// Batch is a fully read, structurally valid tabular export.
type Batch struct {
	SourceName string
	Records    []Record
}

// ReadCSV reads a batch from CSV. The header row is matched
// case-insensitively and tolerates a UTF-8 BOM and full-width spaces.
func ReadCSV(r io.Reader, sourceName string) (*Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, &entity.FormatError{
			Field:  "batch",
			Reason: fmt.Sprintf("unreadable CSV: %v", err),
			Raw:    sourceName,
		}
	}
	return buildBatch(rows, sourceName)
}

// ReadXLSX reads a batch from the first sheet of an Excel workbook.
func ReadXLSX(r io.Reader, sourceName string) (*Batch, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &entity.FormatError{
			Field:  "batch",
			Reason: fmt.Sprintf("unreadable workbook: %v", err),
			Raw:    sourceName,
		}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &entity.FormatError{Field: "batch", Reason: "workbook has no sheets", Raw: sourceName}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &entity.FormatError{
			Field:  "batch",
			Reason: fmt.Sprintf("failed to read sheet %s: %v", sheets[0], err),
			Raw:    sourceName,
		}
	}
	return buildBatch(rows, sourceName)
}

func buildBatch(rows [][]string, sourceName string) (*Batch, error) {
	if len(rows) == 0 {
		return nil, &entity.FormatError{Field: "batch", Reason: "empty file", Raw: sourceName}
	}

	// Map recognized columns to their positions; unknown columns are ignored.
	positions := make(map[string]int, len(RequiredColumns))
	for i, name := range rows[0] {
		normalized := strings.ToLower(normalizeCell(name))
		if _, known := positions[normalized]; !known {
			positions[normalized] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := positions[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &entity.FormatError{
			Field:  "batch",
			Reason: fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")),
			Raw:    sourceName,
		}
	}

	if len(rows) == 1 {
		return nil, &entity.FormatError{Field: "batch", Reason: "no data rows", Raw: sourceName}
	}

	batch := &Batch{SourceName: sourceName}
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		fields := make(map[string]string, len(RequiredColumns))
		for _, col := range RequiredColumns {
			pos := positions[col]
			if pos < len(row) {
				fields[col] = normalizeCell(row[pos])
			} else {
				fields[col] = ""
			}
		}
		batch.Records = append(batch.Records, Record{Index: i + 1, Fields: fields})
	}
	if len(batch.Records) == 0 {
		return nil, &entity.FormatError{Field: "batch", Reason: "no data rows", Raw: sourceName}
	}
	return batch, nil
}

// normalizeCell strips surrounding whitespace, the UTF-8 BOM, and full-width
// spaces POS exports like to pad cells with.
func normalizeCell(s string) string {
	s = strings.ReplaceAll(s, "\uFEFF", "")
	s = strings.ReplaceAll(s, "　", "")
	return strings.TrimSpace(s)
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if normalizeCell(cell) != "" {
			return false
		}
	}
	return true
}
