package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuditAction is a reconciliation lifecycle action.
type AuditAction string

const (
	AuditActionClose  AuditAction = "close"
	AuditActionReopen AuditAction = "reopen"
)

// ReconciliationAudit is one entry in the append-only close/reopen trail.
// The trail is strictly growing: no update or delete operation exists for it,
// even internally.
type ReconciliationAudit struct {
	ID          string      `json:"id"` // uuid
	SummaryDate time.Time   `json:"summary_date"`
	Action      AuditAction `json:"action"`
	Actor       string      `json:"actor"`

	PriorDiscrepancy *decimal.Decimal `json:"prior_discrepancy,omitempty"`
	NewDiscrepancy   *decimal.Decimal `json:"new_discrepancy,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
