// Package api defines the RPC messages and Connect bindings of the residuals
// service.
package api

import "github.com/shopspring/decimal"

// Participant is a deal participant on the wire.
type Participant struct {
	PartnerID string          `json:"partner_id"`
	Name      string          `json:"name,omitempty"`
	Role      string          `json:"role,omitempty"`
	Email     string          `json:"email,omitempty"`
	Split     decimal.Decimal `json:"split_pct"`
}

// Deal is a deal summary.
type Deal struct {
	ID           string          `json:"id"`
	ShortID      string          `json:"short_id"`
	MID          string          `json:"mid"`
	MerchantName string          `json:"merchant_name,omitempty"`
	Category     string          `json:"category"`
	Participants []Participant   `json:"participants"`
	NetResidual  decimal.Decimal `json:"net_residual"`
	CreatedAt    int64           `json:"created_at"`
	UpdatedAt    int64           `json:"updated_at"`
}

// Payout is one participant's allocation for one event.
type Payout struct {
	ID             string          `json:"id"`
	DealShortID    string          `json:"deal_id"`
	EventID        string          `json:"event_id"`
	MID            string          `json:"mid"`
	Month          string          `json:"month,omitempty"`
	PartnerID      string          `json:"partner_id"`
	PartnerName    string          `json:"partner_name,omitempty"`
	Role           string          `json:"role,omitempty"`
	Split          decimal.Decimal `json:"split_pct"`
	Amount         decimal.Decimal `json:"amount"`
	BaseAmount     decimal.Decimal `json:"base_amount"`
	Status         string          `json:"status"`
	Paid           bool            `json:"paid"`
	PaidAt         int64           `json:"paid_at,omitempty"`
	LedgerRecordID string          `json:"ledger_record_id,omitempty"`
}

// PartnerTotal sums a partner's payouts within a deal.
type PartnerTotal struct {
	PartnerID   string          `json:"partner_id"`
	PartnerName string          `json:"partner_name,omitempty"`
	Earned      decimal.Decimal `json:"earned"`
	Paid        decimal.Decimal `json:"paid"`
	Unpaid      decimal.Decimal `json:"unpaid"`
	Payouts     int             `json:"payouts"`
}

// Adjustment is one adjustment record.
type Adjustment struct {
	ID          string          `json:"id"`
	GroupID     string          `json:"group_id,omitempty"`
	DealID      string          `json:"deal_id"`
	DealShortID string          `json:"deal_short_id"`
	MID         string          `json:"mid"`
	PartnerID   string          `json:"partner_id"`
	PartnerName string          `json:"partner_name,omitempty"`
	OldSplit    decimal.Decimal `json:"old_split_pct"`
	NewSplit    decimal.Decimal `json:"new_split_pct"`
	BaseAmount  decimal.Decimal `json:"base_amount"`
	Delta       decimal.Decimal `json:"delta"`
	Kind        string          `json:"kind"`
	Note        string          `json:"note,omitempty"`
	Status      string          `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	CreatedAt   int64           `json:"created_at"`
	ResolvedAt  int64           `json:"resolved_at,omitempty"`
}

// AdjustmentGroup is adjustments submitted together.
type AdjustmentGroup struct {
	Key         string          `json:"key"`
	GroupID     string          `json:"group_id,omitempty"`
	DealID      string          `json:"deal_id"`
	DealShortID string          `json:"deal_short_id"`
	MID         string          `json:"mid"`
	Status      string          `json:"status"`
	Note        string          `json:"note,omitempty"`
	CreatedAt   int64           `json:"created_at"`
	TotalDelta  decimal.Decimal `json:"total_delta"`
	Adjustments []Adjustment    `json:"adjustments"`
}

// AuditEntry is one change history record.
type AuditEntry struct {
	ID          string `json:"id"`
	Action      string `json:"action"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id,omitempty"`
	Previous    string `json:"previous,omitempty"`
	Next        string `json:"next,omitempty"`
	Description string `json:"description"`
	Actor       string `json:"actor,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// Orphan is a ledger record with no local payout.
type Orphan struct {
	RecordID string `json:"record_id"`
	PayoutID string `json:"payout_id"`
	MID      string `json:"mid,omitempty"`
	Partner  string `json:"partner,omitempty"`
	Amount   string `json:"amount,omitempty"`
}

// Adjustment service

type SubmitAdjustmentRequest struct {
	// DealID accepts the internal or short deal ID.
	DealID string `json:"deal_id"`
	// Participants is the full replacement set. Legacy field spellings are
	// accepted.
	Participants []map[string]any `json:"participants"`
	Note         string           `json:"note,omitempty"`
}

type EditAdjustmentRequest struct {
	GroupID      string           `json:"group_id"`
	Participants []map[string]any `json:"participants"`
	Note         string           `json:"note,omitempty"`
}

type SubmitAdjustmentResponse struct {
	Success         bool         `json:"success"`
	GroupID         string       `json:"group_id,omitempty"`
	Created         int          `json:"created"`
	Adjustments     []Adjustment `json:"adjustments"`
	UnknownPartners []string     `json:"unknown_partners,omitempty"`
}

type ConfirmAdjustmentsRequest struct {
	IDs []string `json:"ids"`
}

type RejectAdjustmentsRequest struct {
	IDs    []string `json:"ids"`
	Reason string   `json:"reason,omitempty"`
}

type TransitionResponse struct {
	Success        bool     `json:"success"`
	Confirmed      int      `json:"confirmed"`
	Rejected       int      `json:"rejected"`
	Skipped        int      `json:"skipped"`
	PayoutsUpdated int      `json:"payouts_updated"`
	Errors         []string `json:"errors,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

type ListAdjustmentsRequest struct {
	DealID  string `json:"deal_id,omitempty"`
	GroupID string `json:"group_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Offset  int    `json:"offset,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type ListAdjustmentsResponse struct {
	Adjustments []Adjustment `json:"adjustments"`
}

type ListAdjustmentGroupsResponse struct {
	Groups []AdjustmentGroup `json:"groups"`
}

// Deal service

type EventInput struct {
	MID          string          `json:"mid"`
	MerchantName string          `json:"merchant_name,omitempty"`
	Month        string          `json:"month"`
	Category     string          `json:"category"`
	NetResidual  decimal.Decimal `json:"net_residual"`
}

type CreateEventsRequest struct {
	Events []EventInput `json:"events"`
}

type CreateEventsResponse struct {
	Success  bool     `json:"success"`
	EventIDs []string `json:"event_ids"`
}

type AssignEventsRequest struct {
	EventIDs     []string         `json:"event_ids"`
	MerchantName string           `json:"merchant_name,omitempty"`
	Participants []map[string]any `json:"participants"`
}

type AssignEventsResponse struct {
	Success         bool     `json:"success"`
	DealID          string   `json:"deal_id"`
	DealShortID     string   `json:"deal_short_id"`
	DealCreated     bool     `json:"deal_created"`
	PayoutsCreated  int      `json:"payouts_created"`
	UnknownPartners []string `json:"unknown_partners,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

type DealRequest struct {
	DealID string `json:"deal_id"`
}

type GetDealResponse struct {
	Deal    Deal           `json:"deal"`
	Payouts []Payout       `json:"payouts"`
	Totals  []PartnerTotal `json:"totals"`
}

type ListDealsRequest struct {
	Offset int `json:"offset,omitempty"`
	Limit  int `json:"limit,omitempty"`
}

type ListDealsResponse struct {
	Deals []Deal `json:"deals"`
}

type UpdateParticipantsRequest struct {
	DealID       string           `json:"deal_id"`
	Participants []map[string]any `json:"participants"`
}

type ChangeMIDRequest struct {
	DealID string `json:"deal_id"`
	MID    string `json:"mid"`
}

// CascadeResponse reports the rows a deal-level change touched.
type CascadeResponse struct {
	Success        bool     `json:"success"`
	DealID         string   `json:"deal_id"`
	PayoutsUpdated int      `json:"payouts_updated"`
	PayoutsCreated int      `json:"payouts_created"`
	PayoutsDeleted int      `json:"payouts_deleted"`
	EventsUpdated  int      `json:"events_updated"`
	EventsDeleted  int      `json:"events_deleted"`
	Warnings       []string `json:"warnings,omitempty"`
}

type ConfirmDealResponse struct {
	Success          bool     `json:"success"`
	PayoutsConfirmed int      `json:"payouts_confirmed"`
	Warnings         []string `json:"warnings,omitempty"`
}

type MarkPaidRequest struct {
	PayoutIDs []string `json:"payout_ids"`
	Paid      bool     `json:"paid"`
}

type MarkPaidResponse struct {
	Success  bool     `json:"success"`
	Updated  int      `json:"updated"`
	Warnings []string `json:"warnings,omitempty"`
}

type UpsertPartnerRequest struct {
	PartnerID string `json:"partner_id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
}

type UpsertPartnerResponse struct {
	Success bool `json:"success"`
}

type ListAuditRequest struct {
	EntityID   string `json:"entity_id,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	Query      string `json:"query,omitempty"`
	Offset     int    `json:"offset,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type ListAuditResponse struct {
	Entries []AuditEntry `json:"entries"`
}

// Sync service

type SyncRequest struct {
	MID       string   `json:"mid,omitempty"`
	PayoutIDs []string `json:"payout_ids,omitempty"`
}

type SyncResponse struct {
	Success    bool     `json:"success"`
	Created    int      `json:"created"`
	Updated    int      `json:"updated"`
	Deleted    int      `json:"deleted"`
	Unchanged  int      `json:"unchanged"`
	Duplicates int      `json:"duplicates"`
	Orphans    []Orphan `json:"orphans,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

type ListOrphansResponse struct {
	Orphans []Orphan `json:"orphans"`
}

type DeleteOrphansRequest struct {
	RecordIDs []string `json:"record_ids"`
}

type DeleteOrphansResponse struct {
	Success bool     `json:"success"`
	Deleted int      `json:"deleted"`
	Errors  []string `json:"errors,omitempty"`
}
