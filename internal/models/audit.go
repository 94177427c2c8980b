package models

import "github.com/bytedance/sonic"

// Audit actions.
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionSubmit  = "adjustment_submit"
	ActionEdit    = "adjustment_edit"
	ActionConfirm = "adjustment_confirm"
	ActionReject  = "adjustment_reject"
	ActionSync    = "ledger_sync"
)

// Audited entity types.
const (
	EntityDeal       = "deal"
	EntityPayout     = "payout"
	EntityEvent      = "event"
	EntityAdjustment = "adjustment"
	EntityLedger     = "ledger"
)

// AuditEntry is one append-only change record.
// Previous and Next hold JSON snapshots and may be empty.
type AuditEntry struct {
	ID          string
	Action      string
	EntityType  string
	EntityID    string
	Previous    string
	Next        string
	Description string
	Actor       string
	CreatedAt   int64
}

// Snapshot renders v as JSON for AuditEntry.Previous and Next. It returns ""
// for nil or unencodable values.
func Snapshot(v any) string {
	if v == nil {
		return ""
	}
	s, err := sonic.MarshalString(v)
	if err != nil {
		return ""
	}
	return s
}
