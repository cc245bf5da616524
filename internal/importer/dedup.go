package importer

import "github.com/yuchilin/storeledger/internal/domain/entity"

// Disposition is the merge decision for one candidate against the stored set.
type Disposition int

const (
	// DispositionNew means no stored transaction shares the identity.
	DispositionNew Disposition = iota
	// DispositionDuplicate means an identical transaction is already stored;
	// re-importing it is a no-op.
	DispositionDuplicate
	// DispositionConflict means the identity is taken by a transaction with
	// different values. The stored record wins; the conflict is surfaced for
	// manual resolution.
	DispositionConflict
)

// Dedupe decides how a candidate merges against the stored transaction with
// the same transaction_id (existing may be nil). For conflicts the returned
// error describes the differing fields; it is a report, never auto-resolved.
func Dedupe(candidate, existing *entity.Transaction) (Disposition, error) {
	if existing == nil {
		return DispositionNew, nil
	}
	if candidate.EqualValues(existing) {
		return DispositionDuplicate, &entity.DuplicateRecordError{
			Kind: "transaction",
			Key:  candidate.TransactionID,
		}
	}
	return DispositionConflict, &entity.ConflictingDuplicateError{
		TransactionID: candidate.TransactionID,
		Fields:        existing.DiffFields(candidate),
	}
}
