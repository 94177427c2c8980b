package models

import "github.com/shopspring/decimal"

// AssignmentStatus is the confirmation state of a payout row.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentConfirmed AssignmentStatus = "confirmed"
)

// Event is one source residual line: a merchant's net residual for a month.
type Event struct {
	ID string

	// DealID is the internal deal ID once the event has been assigned.
	DealID string

	MID          string
	MerchantName string
	Month        string
	Category     PayoutCategory

	NetResidual decimal.Decimal

	CreatedAt int64
}

// Payout is one participant's allocation for one event within one deal.
// Amount is always BaseAmount × Split / 100.
type Payout struct {
	ID string

	// DealShortID references Deal.ShortID, not Deal.ID.
	DealShortID string

	EventID      string
	MID          string
	MerchantName string
	Month        string
	Category     PayoutCategory

	PartnerID   string
	PartnerName string
	Role        string

	Split      decimal.Decimal
	Amount     decimal.Decimal
	BaseAmount decimal.Decimal

	Status AssignmentStatus

	Paid   bool
	PaidAt int64

	// LedgerRecordID is the external ledger record this payout was last
	// synced to. Empty until the first sync.
	LedgerRecordID string

	CreatedAt int64
	UpdatedAt int64
}
