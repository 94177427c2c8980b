// Package reconcile keeps payout rows consistent with their deals and mirrors
// them to the external ledger.
//
// Local reconciliation creates, rebuilds and cascades payout rows. Remote
// reconciliation diffs payouts against ledger records, collapses duplicate
// records and reports orphans without deleting them.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mmynk/residuals/internal/ledger"
	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/storage"
)

// ErrLedgerDisabled is returned by remote operations when no ledger is configured.
var ErrLedgerDisabled = errors.New("ledger sync is not configured")

// Reconciler owns the ledger sync client.
type Reconciler struct {
	store storage.Store
	sync  *ledger.SyncClient
	now   func() time.Time
}

// New creates a Reconciler. sync may be nil, in which case only local
// reconciliation is available.
func New(store storage.Store, sync *ledger.SyncClient) *Reconciler {
	return &Reconciler{store: store, sync: sync, now: time.Now}
}

// WithStore returns a copy of r that reads and writes through store, such as
// a transaction handed out by storage.Store.InTx.
func (r *Reconciler) WithStore(store storage.Store) *Reconciler {
	c := *r
	c.store = store
	return &c
}

// LedgerEnabled reports whether remote reconciliation is available.
func (r *Reconciler) LedgerEnabled() bool {
	return r.sync != nil
}

func (r *Reconciler) audit(ctx context.Context, entry *models.AuditEntry) {
	entry.CreatedAt = r.now().Unix()
	if err := r.store.AppendAudit(ctx, entry); err != nil {
		slog.Warn("Failed to write audit entry", "action", entry.Action, "entity_id", entry.EntityID, "error", err)
	}
}
