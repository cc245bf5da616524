package port

import (
	"context"
	"time"
)

// VerificationOutcome is the tri-state result of an MOF lookup. The outcome
// only ever moves an invoice's verification state; it never alters content.
type VerificationOutcome string

const (
	OutcomeVerified    VerificationOutcome = "verified"
	OutcomeNotFound    VerificationOutcome = "not_found"
	OutcomeUnavailable VerificationOutcome = "unavailable"
)

// InvoiceVerifier checks an invoice against the Ministry of Finance
// e-invoice platform. Implementations are best-effort: network failures and
// timeouts surface as OutcomeUnavailable, never as errors that could block
// ingestion.
type InvoiceVerifier interface {
	Verify(ctx context.Context, invoiceNumber string, invoiceDate time.Time, randomCode string) VerificationOutcome
}
