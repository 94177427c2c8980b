// Package workflow runs split-change adjustments through their lifecycle:
//
//	(none) --submit--> pending --confirm--> confirmed
//	                      |
//	                      +----reject-----> rejected
//	                      |
//	                      +----edit-------> pending
//
// Submitting updates the deal's participants immediately but leaves payouts
// alone. Confirming cascades the deal's participants into its payouts and
// publishes the touched payouts for ledger sync. Rejecting restores the old
// splits on the deal and never touches payouts.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/outbox"
	"github.com/mmynk/residuals/internal/participant"
	"github.com/mmynk/residuals/internal/storage"
)

var (
	// ErrNotPending is returned when a transition targets a record that has
	// already been confirmed or rejected.
	ErrNotPending = errors.New("adjustment is not pending")

	// ErrEmptyTargets is returned when a submit or edit carries no participants.
	ErrEmptyTargets = errors.New("no participants given")
)

// PayoutCascader applies a deal's participants to its payout rows.
type PayoutCascader interface {
	CascadeParticipants(ctx context.Context, deal *models.Deal) ([]string, error)
}

// Workflow is the adjustment state machine.
type Workflow struct {
	store     storage.Store
	payouts   PayoutCascader
	publisher outbox.Publisher
	directory *participant.Directory
	now       func() time.Time
	newID     func() string
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithDirectory fills missing participant names from the partner directory.
func WithDirectory(d *participant.Directory) Option {
	return func(w *Workflow) { w.directory = d }
}

// WithGroupIDs overrides the group ID generator.
func WithGroupIDs(newID func() string) Option {
	return func(w *Workflow) { w.newID = newID }
}

// New creates a Workflow.
func New(store storage.Store, payouts PayoutCascader, publisher outbox.Publisher, opts ...Option) *Workflow {
	w := &Workflow{
		store:     store,
		payouts:   payouts,
		publisher: publisher,
		now:       time.Now,
		newID:     newGroupID,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Workflow) audit(ctx context.Context, entry *models.AuditEntry) {
	entry.CreatedAt = w.now().Unix()
	if err := w.store.AppendAudit(ctx, entry); err != nil {
		slog.Warn("Failed to write audit entry", "action", entry.Action, "entity_id", entry.EntityID, "error", err)
	}
}

func describeChange(a *models.Adjustment) string {
	name := a.PartnerName
	if name == "" {
		name = a.PartnerID
	}
	return fmt.Sprintf("%s %s%% -> %s%% (%s $%s)",
		name, a.OldSplit.String(), a.NewSplit.String(), a.Kind, a.Delta.StringFixed(2))
}
