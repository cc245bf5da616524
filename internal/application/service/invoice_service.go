package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yuchilin/storeledger/internal/application/port"
	"github.com/yuchilin/storeledger/internal/domain/entity"
	"github.com/yuchilin/storeledger/internal/einvoice"
)

// ScanResult is the outcome of ingesting one scanned QR pair.
type ScanResult struct {
	Invoice *entity.Invoice `json:"invoice"`
	// Duplicate is true when the invoice number was already stored; the
	// existing record is returned and nothing is inserted twice.
	Duplicate bool `json:"duplicate"`
}

// InvoiceService ingests scanned e-invoice QR pairs and manages their
// verification state. Parsing and validation are synchronous and stateless;
// MOF verification is a separate, best-effort step.
type InvoiceService interface {
	ScanQRPair(ctx context.Context, qrLeft, qrRight string) (*ScanResult, error)
	GetByNumber(ctx context.Context, invoiceNumber string) (*entity.Invoice, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]*entity.Invoice, error)
	// VerifyInvoice asks the MOF platform about a stored invoice and records
	// the outcome. An unavailable platform leaves the state untouched.
	VerifyInvoice(ctx context.Context, invoiceNumber string) (*entity.Invoice, error)
}

type invoiceServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	verifier    port.InvoiceVerifier
	validator   *einvoice.Validator
	txManager   port.TransactionManager
	logger      Logger
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(
	invoiceRepo port.InvoiceRepository,
	verifier port.InvoiceVerifier,
	validator *einvoice.Validator,
	txManager port.TransactionManager,
	logger Logger,
) InvoiceService {
	return &invoiceServiceImpl{
		invoiceRepo: invoiceRepo,
		verifier:    verifier,
		validator:   validator,
		txManager:   txManager,
		logger:      logger,
	}
}

// ScanQRPair parses, validates, and stores one captured QR pair.
// A structurally valid but previously stored invoice number is reported as a
// duplicate; the stored record is returned unchanged.
func (s *invoiceServiceImpl) ScanQRPair(ctx context.Context, qrLeft, qrRight string) (*ScanResult, error) {
	parsed, err := einvoice.Parse(qrLeft, qrRight)
	if err != nil {
		s.logger.Error("Failed to parse QR pair", "error", err)
		return nil, err
	}

	invoice, err := s.validator.Validate(parsed, qrLeft, qrRight)
	if err != nil {
		s.logger.Error("Invoice candidate rejected",
			"invoice_number", parsed.InvoiceNumber, "error", err)
		return nil, err
	}

	var result *ScanResult
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.invoiceRepo.GetByNumber(txCtx, invoice.InvoiceNumber)
		if err != nil {
			return fmt.Errorf("lookup invoice %s: %w", invoice.InvoiceNumber, err)
		}
		if existing != nil {
			s.logger.Info("Duplicate invoice reported",
				"invoice_number", invoice.InvoiceNumber)
			result = &ScanResult{Invoice: existing, Duplicate: true}
			return nil
		}
		if err := s.invoiceRepo.Create(txCtx, invoice); err != nil {
			return fmt.Errorf("store invoice %s: %w", invoice.InvoiceNumber, err)
		}
		result = &ScanResult{Invoice: invoice}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Duplicate {
		s.logger.Info("Invoice accepted",
			"invoice_number", invoice.InvoiceNumber,
			"invoice_date", invoice.InvoiceDate.Format("2006-01-02"),
			"total_amount", invoice.TotalAmount)
	}
	return result, nil
}

func (s *invoiceServiceImpl) GetByNumber(ctx context.Context, invoiceNumber string) (*entity.Invoice, error) {
	return s.invoiceRepo.GetByNumber(ctx, invoiceNumber)
}

func (s *invoiceServiceImpl) ListByDateRange(ctx context.Context, from, to time.Time) ([]*entity.Invoice, error) {
	return s.invoiceRepo.ListByDateRange(ctx, from, to)
}

// VerifyInvoice records the MOF verification outcome for a stored invoice.
// Only the verification state moves; invoice content never changes based on
// the platform's answer.
func (s *invoiceServiceImpl) VerifyInvoice(ctx context.Context, invoiceNumber string) (*entity.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByNumber(ctx, invoiceNumber)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, fmt.Errorf("invoice %s not found", invoiceNumber)
	}

	outcome := s.verifier.Verify(ctx, invoice.InvoiceNumber, invoice.InvoiceDate, invoice.RandomCode)

	var state entity.VerificationState
	switch outcome {
	case port.OutcomeVerified:
		state = entity.VerificationVerified
	case port.OutcomeNotFound:
		state = entity.VerificationFailed
	default:
		// Platform unreachable: stay unverified, never block on it.
		s.logger.Warn("MOF verification unavailable",
			"invoice_number", invoice.InvoiceNumber)
		return invoice, nil
	}

	if err := s.invoiceRepo.UpdateVerificationState(ctx, invoice.ID, state); err != nil {
		return nil, fmt.Errorf("update verification state: %w", err)
	}
	invoice.VerificationState = state

	s.logger.Info("Invoice verification recorded",
		"invoice_number", invoice.InvoiceNumber,
		"state", string(state))
	return invoice, nil
}

// Verify interface compliance
var _ InvoiceService = (*invoiceServiceImpl)(nil)
