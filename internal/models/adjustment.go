package models

import "github.com/shopspring/decimal"

// AdjustmentStatus is the lifecycle state of an adjustment record.
type AdjustmentStatus string

const (
	AdjustmentPending   AdjustmentStatus = "pending"
	AdjustmentConfirmed AdjustmentStatus = "confirmed"
	AdjustmentRejected  AdjustmentStatus = "rejected"
)

// AdjustmentKind classifies the sign of an adjustment delta.
type AdjustmentKind string

const (
	KindClawback   AdjustmentKind = "clawback"
	KindAdditional AdjustmentKind = "additional"
)

// Adjustment is one participant's proposed split change within a batch.
type Adjustment struct {
	ID string

	// GroupID identifies the submission batch. Records written before group
	// IDs existed have an empty GroupID.
	GroupID string

	DealID      string
	DealShortID string
	MID         string

	PartnerID   string
	PartnerName string

	OldSplit   decimal.Decimal
	NewSplit   decimal.Decimal
	BaseAmount decimal.Decimal

	// Delta is BaseAmount × (NewSplit - OldSplit) / 100.
	Delta decimal.Decimal
	Kind  AdjustmentKind

	Note   string
	Status AdjustmentStatus

	// Reason is the operator's rejection reason, if any.
	Reason string

	CreatedAt  int64
	ResolvedAt int64
}

// AdjustmentGroup is the read-side projection of adjustments submitted
// together. It is never stored.
type AdjustmentGroup struct {
	Key         string
	GroupID     string
	DealID      string
	DealShortID string
	MID         string
	Status      AdjustmentStatus
	Note        string
	CreatedAt   int64
	TotalDelta  decimal.Decimal
	Adjustments []Adjustment
}
