// Package outbox carries "payouts changed" notifications from core mutations
// to the ledger sync.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mmynk/residuals/internal/reconcile"
)

// PayoutsChanged names payouts that were created, updated or deleted.
type PayoutsChanged struct {
	PayoutIDs []string
	// Reason is a short label for logs, e.g. "adjustment_confirm".
	Reason string
}

// Publisher delivers change notifications. Publish returns warnings for the
// caller to surface; a failed delivery never undoes the mutation that
// triggered it.
type Publisher interface {
	Publish(ctx context.Context, event PayoutsChanged) []string
}

// Syncer is the part of the reconciler the inline publisher needs.
type Syncer interface {
	SyncPayouts(ctx context.Context, payoutIDs []string) (*reconcile.Result, error)
}

// Inline syncs changed payouts synchronously within the request.
type Inline struct {
	syncer Syncer
}

// NewInline creates a publisher that syncs through s.
func NewInline(s Syncer) *Inline {
	return &Inline{syncer: s}
}

func (p *Inline) Publish(ctx context.Context, event PayoutsChanged) []string {
	if len(event.PayoutIDs) == 0 {
		return nil
	}
	result, err := p.syncer.SyncPayouts(ctx, event.PayoutIDs)
	if errors.Is(err, reconcile.ErrLedgerDisabled) {
		slog.Debug("Ledger sync skipped", "reason", event.Reason, "payouts", len(event.PayoutIDs))
		return nil
	}
	if err != nil {
		slog.Warn("Ledger sync failed", "reason", event.Reason, "payouts", len(event.PayoutIDs), "error", err)
		return []string{"ledger sync failed: " + err.Error()}
	}
	if len(result.Errors) > 0 {
		slog.Warn("Ledger sync finished with errors", "reason", event.Reason, "errors", result.Errors)
	}
	return result.Errors
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Publish(context.Context, PayoutsChanged) []string { return nil }

// Recorder keeps notifications in memory.
type Recorder struct {
	mu     sync.Mutex
	events []PayoutsChanged
}

func (r *Recorder) Publish(_ context.Context, event PayoutsChanged) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns the recorded notifications.
func (r *Recorder) Events() []PayoutsChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PayoutsChanged(nil), r.events...)
}

// PayoutIDs returns every recorded payout ID in publish order.
func (r *Recorder) PayoutIDs() []string {
	var ids []string
	for _, e := range r.Events() {
		ids = append(ids, e.PayoutIDs...)
	}
	return ids
}
