// Package cascade propagates deal-level changes to every row that depends on
// the deal: payouts (keyed by deal short ID) and source events (keyed by deal
// internal ID).
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmynk/residuals/internal/calculator"
	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/outbox"
	"github.com/mmynk/residuals/internal/participant"
	"github.com/mmynk/residuals/internal/reconcile"
	"github.com/mmynk/residuals/internal/storage"
)

var (
	// ErrMIDConflict is returned when another deal already owns a merchant ID.
	ErrMIDConflict = errors.New("merchant ID already belongs to another deal")

	// ErrEmptyMID is returned when a merchant ID change carries no value.
	ErrEmptyMID = errors.New("merchant ID is required")
)

// MIDConflictError names the deal that already owns the merchant ID.
type MIDConflictError struct {
	MID          string
	Category     models.PayoutCategory
	DealID       string
	DealShortID  string
	MerchantName string
}

func (e *MIDConflictError) Error() string {
	name := e.MerchantName
	if name == "" {
		name = "unnamed merchant"
	}
	return fmt.Sprintf("MID %s is already used by %s deal %s (%s)", e.MID, e.Category, e.DealShortID, name)
}

func (e *MIDConflictError) Unwrap() error { return ErrMIDConflict }

// Rebuilder replaces a deal's payouts wholesale.
type Rebuilder interface {
	RebuildDealPayouts(ctx context.Context, deal *models.Deal) (*reconcile.Rebuild, error)
}

// Updater applies deal changes and their cascades.
type Updater struct {
	store     storage.Store
	payouts   Rebuilder
	publisher outbox.Publisher
	directory *participant.Directory
	now       func() time.Time
}

// Option configures an Updater.
type Option func(*Updater)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(u *Updater) { u.now = now }
}

// WithDirectory fills missing participant names from the partner directory.
func WithDirectory(d *participant.Directory) Option {
	return func(u *Updater) { u.directory = d }
}

// New creates an Updater.
func New(store storage.Store, payouts Rebuilder, publisher outbox.Publisher, opts ...Option) *Updater {
	u := &Updater{store: store, payouts: payouts, publisher: publisher, now: time.Now}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Result counts the rows a cascade touched.
type Result struct {
	DealID         string
	DealShortID    string
	PayoutsUpdated int
	PayoutsCreated int
	PayoutsDeleted int
	EventsUpdated  int
	EventsDeleted  int
	// Warnings are best-effort side effect failures such as ledger sync errors.
	Warnings []string
}

// ChangeMID moves a deal to a new merchant ID and rewrites the MID on every
// payout and event of the deal. If another deal of the same category owns
// the MID, it fails with a *MIDConflictError and nothing is written.
func (u *Updater) ChangeMID(ctx context.Context, dealID, newMID, actor string) (*Result, error) {
	mid := strings.TrimSpace(newMID)
	if mid == "" {
		return nil, ErrEmptyMID
	}

	deal, err := storage.LookupDeal(ctx, u.store, dealID)
	if err != nil {
		return nil, err
	}
	result := &Result{DealID: deal.ID, DealShortID: deal.ShortID}
	if deal.MID == mid {
		return result, nil
	}

	owner, err := u.store.FindDeal(ctx, mid, deal.Category)
	switch {
	case err == nil && owner.ID != deal.ID:
		return nil, &MIDConflictError{
			MID:          mid,
			Category:     owner.Category,
			DealID:       owner.ID,
			DealShortID:  owner.ShortID,
			MerchantName: owner.MerchantName,
		}
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("failed to check MID %s: %w", mid, err)
	}

	payoutIDs, err := u.payoutIDs(ctx, deal.ShortID)
	if err != nil {
		return nil, err
	}

	oldMID := deal.MID
	deal.MID = mid
	err = u.store.InTx(ctx, func(tx storage.Store) error {
		var err error
		if err = tx.UpdateDeal(ctx, deal); err != nil {
			return fmt.Errorf("failed to update deal: %w", err)
		}
		if result.PayoutsUpdated, err = tx.UpdatePayoutsMID(ctx, deal.ShortID, mid); err != nil {
			return fmt.Errorf("failed to update payout MIDs: %w", err)
		}
		if result.EventsUpdated, err = tx.UpdateEventsMID(ctx, deal.ID, mid); err != nil {
			return fmt.Errorf("failed to update event MIDs: %w", err)
		}
		return nil
	})
	if err != nil {
		deal.MID = oldMID
		return nil, err
	}

	u.audit(ctx, &models.AuditEntry{
		Action:      models.ActionUpdate,
		EntityType:  models.EntityDeal,
		EntityID:    deal.ID,
		Previous:    models.Snapshot(map[string]string{"mid": oldMID}),
		Next:        models.Snapshot(map[string]string{"mid": mid}),
		Description: fmt.Sprintf("Changed MID of deal %s from %s to %s (%d payouts, %d events)", deal.ShortID, oldMID, mid, result.PayoutsUpdated, result.EventsUpdated),
		Actor:       actor,
	})
	slog.Info("Deal MID changed", "deal_id", deal.ShortID, "from", oldMID, "to", mid, "payouts", result.PayoutsUpdated, "events", result.EventsUpdated)

	result.Warnings = u.publisher.Publish(ctx, outbox.PayoutsChanged{PayoutIDs: payoutIDs, Reason: "mid_change"})
	return result, nil
}

// DeleteDeal deletes the deal's payouts, events and row in one transaction.
// Deleted payouts are published so the ledger sync reports their records as
// orphans.
func (u *Updater) DeleteDeal(ctx context.Context, dealID, actor string) (*Result, error) {
	deal, err := storage.LookupDeal(ctx, u.store, dealID)
	if err != nil {
		return nil, err
	}
	result := &Result{DealID: deal.ID, DealShortID: deal.ShortID}

	payoutIDs, err := u.payoutIDs(ctx, deal.ShortID)
	if err != nil {
		return nil, err
	}
	err = u.store.InTx(ctx, func(tx storage.Store) error {
		var err error
		if result.PayoutsDeleted, err = tx.DeletePayoutsByDeal(ctx, deal.ShortID); err != nil {
			return fmt.Errorf("failed to delete payouts: %w", err)
		}
		if result.EventsDeleted, err = tx.DeleteEventsByDeal(ctx, deal.ID); err != nil {
			return fmt.Errorf("failed to delete events: %w", err)
		}
		if err := tx.DeleteDeal(ctx, deal.ID); err != nil {
			return fmt.Errorf("failed to delete deal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.audit(ctx, &models.AuditEntry{
		Action:      models.ActionDelete,
		EntityType:  models.EntityDeal,
		EntityID:    deal.ID,
		Previous:    models.Snapshot(deal),
		Description: fmt.Sprintf("Deleted deal %s (MID %s) with %d payouts and %d events", deal.ShortID, deal.MID, result.PayoutsDeleted, result.EventsDeleted),
		Actor:       actor,
	})
	slog.Info("Deal deleted", "deal_id", deal.ShortID, "payouts", result.PayoutsDeleted, "events", result.EventsDeleted)

	result.Warnings = u.publisher.Publish(ctx, outbox.PayoutsChanged{PayoutIDs: payoutIDs, Reason: "deal_delete"})
	return result, nil
}

// ReplaceParticipants swaps the deal's participant set, which must total
// exactly 100%, and rebuilds every payout of the deal from it.
func (u *Updater) ReplaceParticipants(ctx context.Context, dealID string, raws []participant.Raw, actor string) (*Result, error) {
	parts, err := participant.NormalizeAll(raws)
	if err != nil {
		return nil, err
	}
	if err := calculator.ValidateExact(parts); err != nil {
		return nil, err
	}

	deal, err := storage.LookupDeal(ctx, u.store, dealID)
	if err != nil {
		return nil, err
	}
	if u.directory != nil {
		if _, err := u.directory.Enrich(ctx, parts); err != nil {
			return nil, err
		}
	}

	previous := deal.Participants
	deal.Participants = parts
	if err := u.store.UpdateDeal(ctx, deal); err != nil {
		return nil, fmt.Errorf("failed to update deal participants: %w", err)
	}

	rebuild, err := u.payouts.RebuildDealPayouts(ctx, deal)
	if err != nil {
		deal.Participants = previous
		if restoreErr := u.store.UpdateDeal(ctx, deal); restoreErr != nil {
			slog.Error("Failed to restore deal participants", "deal_id", deal.ShortID, "error", restoreErr)
		}
		return nil, err
	}
	result := &Result{
		DealID:         deal.ID,
		DealShortID:    deal.ShortID,
		PayoutsDeleted: len(rebuild.Removed),
		PayoutsCreated: len(rebuild.Created),
	}

	u.audit(ctx, &models.AuditEntry{
		Action:      models.ActionUpdate,
		EntityType:  models.EntityDeal,
		EntityID:    deal.ID,
		Previous:    models.Snapshot(previous),
		Next:        models.Snapshot(parts),
		Description: fmt.Sprintf("Replaced participants of deal %s (%d payouts rebuilt)", deal.ShortID, result.PayoutsCreated),
		Actor:       actor,
	})

	result.Warnings = u.publisher.Publish(ctx, outbox.PayoutsChanged{PayoutIDs: rebuild.ChangedIDs(), Reason: "participants_replace"})
	return result, nil
}

func (u *Updater) payoutIDs(ctx context.Context, dealShortID string) ([]string, error) {
	rows, err := storage.AllPayouts(ctx, u.store, storage.PayoutFilter{DealShortID: dealShortID})
	if err != nil {
		return nil, fmt.Errorf("failed to load payouts: %w", err)
	}
	ids := make([]string, len(rows))
	for i, p := range rows {
		ids[i] = p.ID
	}
	return ids, nil
}

func (u *Updater) audit(ctx context.Context, entry *models.AuditEntry) {
	entry.CreatedAt = u.now().Unix()
	if err := u.store.AppendAudit(ctx, entry); err != nil {
		slog.Warn("Failed to write audit entry", "action", entry.Action, "entity_id", entry.EntityID, "error", err)
	}
}
