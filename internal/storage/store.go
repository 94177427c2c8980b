// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/mmynk/residuals/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness rule.
	ErrConflict = errors.New("conflict")
)

// DefaultPageSize is the server-side page ceiling applied when a store is not
// configured otherwise. Callers that need every row must paginate.
const DefaultPageSize = 1000

// ShortIDPrefix starts every deal short ID.
const ShortIDPrefix = "D-"

// PayoutFilter selects payout rows. Zero-valued fields do not filter.
type PayoutFilter struct {
	IDs         []string
	DealShortID string
	MID         string
	EventID     string
	PartnerID   string
	Status      models.AssignmentStatus

	// Offset and Limit page through results ordered by ID. A Limit of zero or
	// above the store's page size is clamped to the page size.
	Offset int
	Limit  int
}

// AdjustmentFilter selects adjustment records. Results are ordered newest first.
type AdjustmentFilter struct {
	IDs     []string
	DealID  string
	GroupID string
	Status  models.AdjustmentStatus
	Offset  int
	Limit   int
}

// AuditFilter selects audit entries. Query matches the description or the
// entity ID as a case-insensitive substring. Results are ordered newest first.
type AuditFilter struct {
	EntityID   string
	EntityType string
	Query      string
	Offset     int
	Limit      int
}

// Store defines the interface for the relational row store.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the reconciliation and workflow layers.
type Store interface {
	// PageSize returns the maximum number of rows a list call returns.
	PageSize() int

	// InTx runs fn against a Store whose writes commit together when fn
	// returns nil and are discarded otherwise. Nested calls join the
	// enclosing transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error

	// CreateDeal persists a new deal, assigning ID, ShortID and timestamps
	// when unset. Returns ErrConflict if (MID, Category) is already taken.
	CreateDeal(ctx context.Context, deal *models.Deal) error
	GetDeal(ctx context.Context, dealID string) (*models.Deal, error)
	GetDealByShortID(ctx context.Context, shortID string) (*models.Deal, error)
	// FindDeal returns the deal for (mid, category) or ErrNotFound.
	FindDeal(ctx context.Context, mid string, category models.PayoutCategory) (*models.Deal, error)
	ListDeals(ctx context.Context, offset, limit int) ([]*models.Deal, error)
	// UpdateDeal replaces the deal's MID, merchant name, participants and
	// net residual.
	UpdateDeal(ctx context.Context, deal *models.Deal) error
	DeleteDeal(ctx context.Context, dealID string) error

	CreateEvents(ctx context.Context, events []*models.Event) error
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	ListEventsByDeal(ctx context.Context, dealID string) ([]*models.Event, error)
	// AssignEvents links events to a deal and stamps the deal's MID on them.
	AssignEvents(ctx context.Context, eventIDs []string, dealID, mid string) error
	UpdateEventsMID(ctx context.Context, dealID, mid string) (int, error)
	DeleteEventsByDeal(ctx context.Context, dealID string) (int, error)

	// CreatePayouts inserts rows in one transaction, assigning IDs and timestamps.
	CreatePayouts(ctx context.Context, payouts []*models.Payout) error
	GetPayout(ctx context.Context, payoutID string) (*models.Payout, error)
	ListPayouts(ctx context.Context, filter PayoutFilter) ([]*models.Payout, error)
	// UpdatePayout replaces the mutable allocation fields of one payout.
	UpdatePayout(ctx context.Context, payout *models.Payout) error
	SetPayoutStatus(ctx context.Context, payoutIDs []string, status models.AssignmentStatus) (int, error)
	SetPayoutsPaid(ctx context.Context, payoutIDs []string, paid bool, paidAt int64) (int, error)
	SetPayoutLedgerID(ctx context.Context, payoutID, recordID string) error
	UpdatePayoutsMID(ctx context.Context, dealShortID, mid string) (int, error)
	DeletePayoutsByDeal(ctx context.Context, dealShortID string) (int, error)

	// CreateAdjustments inserts records in one transaction.
	CreateAdjustments(ctx context.Context, adjustments []*models.Adjustment) error
	GetAdjustment(ctx context.Context, adjustmentID string) (*models.Adjustment, error)
	ListAdjustments(ctx context.Context, filter AdjustmentFilter) ([]*models.Adjustment, error)
	// ResolveAdjustment moves a pending record to status. Returns ErrConflict
	// if the record is no longer pending.
	ResolveAdjustment(ctx context.Context, adjustmentID string, status models.AdjustmentStatus, reason string, at int64) error
	// ReplacePendingGroup deletes the group's pending records and inserts the
	// replacements in one transaction.
	ReplacePendingGroup(ctx context.Context, groupID string, replacements []*models.Adjustment) error

	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]*models.AuditEntry, error)

	UpsertPartner(ctx context.Context, partner *models.Partner) error
	GetPartner(ctx context.Context, partnerID string) (*models.Partner, error)

	// Close releases any resources held by the store.
	Close() error
}

// AllPayouts pages through ListPayouts until a short page is returned.
func AllPayouts(ctx context.Context, s Store, filter PayoutFilter) ([]*models.Payout, error) {
	pageSize := s.PageSize()
	filter.Limit = pageSize
	filter.Offset = 0

	var all []*models.Payout
	for {
		page, err := s.ListPayouts(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
		filter.Offset += len(page)
	}
}

// LookupDeal resolves a deal by internal ID or short ID.
func LookupDeal(ctx context.Context, s Store, id string) (*models.Deal, error) {
	if strings.HasPrefix(id, ShortIDPrefix) {
		return s.GetDealByShortID(ctx, id)
	}
	return s.GetDeal(ctx, id)
}
