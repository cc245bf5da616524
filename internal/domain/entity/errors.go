package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error taxonomy for ingestion and reconciliation. Classification sentinels
// support errors.Is; the struct types carry the offending content so a
// rejection can be corrected manually without re-deriving context.
var (
	// ErrFormat marks a structural parse failure. Unrecoverable for that record.
	ErrFormat = errors.New("format error")

	// ErrArithmeticMismatch marks a computed identity that does not hold.
	ErrArithmeticMismatch = errors.New("arithmetic mismatch")

	// ErrFutureDate marks a record dated after today.
	ErrFutureDate = errors.New("future date")

	// ErrDuplicateRecord marks an already-seen identity with identical values.
	// Idempotent no-op, reported but not treated as a failure.
	ErrDuplicateRecord = errors.New("duplicate record")

	// ErrConflictingDuplicate marks an already-seen identity with differing
	// values. Requires manual resolution, never auto-merged.
	ErrConflictingDuplicate = errors.New("conflicting duplicate")

	// ErrVerificationUnavailable marks an external verification failure.
	// Degrades verification state only, never blocks ingestion.
	ErrVerificationUnavailable = errors.New("verification unavailable")
)

// FormatError describes a structural parse failure for one record.
type FormatError struct {
	Field  string
	Reason string
	Raw    string
}

func (e *FormatError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("format error: %s", e.Reason)
	}
	return fmt.Sprintf("format error: %s: %s", e.Field, e.Reason)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

// ArithmeticMismatchError describes a failed arithmetic identity.
type ArithmeticMismatchError struct {
	Identity string // the identity that failed, e.g. "total_amount == sales_amount + tax_amount"
	Detail   string
}

func (e *ArithmeticMismatchError) Error() string {
	return fmt.Sprintf("arithmetic mismatch: %s (%s)", e.Identity, e.Detail)
}

func (e *ArithmeticMismatchError) Unwrap() error { return ErrArithmeticMismatch }

// FutureDateError describes a date invariant violation.
type FutureDateError struct {
	Field string
	Date  time.Time
	Today time.Time
}

func (e *FutureDateError) Error() string {
	return fmt.Sprintf("future date: %s %s is after %s",
		e.Field, e.Date.Format("2006-01-02"), e.Today.Format("2006-01-02"))
}

func (e *FutureDateError) Unwrap() error { return ErrFutureDate }

// DuplicateRecordError reports an identical, already-stored record.
type DuplicateRecordError struct {
	Kind string // "invoice" or "transaction"
	Key  string
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("duplicate %s: %s", e.Kind, e.Key)
}

func (e *DuplicateRecordError) Unwrap() error { return ErrDuplicateRecord }

// ConflictingDuplicateError reports a stored record whose identity matches a
// new record but whose values differ.
type ConflictingDuplicateError struct {
	TransactionID string
	Fields        []string // names of the differing fields
}

func (e *ConflictingDuplicateError) Error() string {
	return fmt.Sprintf("conflicting duplicate transaction %s: fields differ: %s",
		e.TransactionID, strings.Join(e.Fields, ", "))
}

func (e *ConflictingDuplicateError) Unwrap() error { return ErrConflictingDuplicate }
