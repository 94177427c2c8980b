package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/residuals/internal/metrics"
	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/outbox"
	"github.com/mmynk/residuals/internal/storage"
)

// TransitionResult reports a batch confirm or reject. Each record moves
// independently: failures are listed in Errors and do not undo the records
// that succeeded.
type TransitionResult struct {
	Confirmed      int
	Rejected       int
	Skipped        int
	PayoutsUpdated int
	Errors         []string
	// Warnings are best-effort side effect failures such as ledger sync errors.
	Warnings []string
}

// Confirm finalizes pending adjustments, applies each affected deal's
// participants to its payouts, marks those payouts confirmed and publishes
// them for ledger sync. An empty id list is a no-op.
func (w *Workflow) Confirm(ctx context.Context, ids []string, actor string) (*TransitionResult, error) {
	result := &TransitionResult{}
	if len(ids) == 0 {
		return result, nil
	}

	confirmed := w.resolve(ctx, ids, models.AdjustmentConfirmed, "", actor, result)
	result.Confirmed = len(confirmed)

	var changed []string
	for _, dealID := range dealOrder(confirmed) {
		payoutIDs, err := w.applyToPayouts(ctx, dealID, partnersOf(confirmed, dealID))
		if err != nil {
			slog.Error("Failed to apply adjustments to payouts", "deal_id", dealID, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("deal %s: %v", dealID, err))
		}
		changed = append(changed, payoutIDs...)
	}
	result.PayoutsUpdated = len(changed)

	result.Warnings = w.publisher.Publish(ctx, outbox.PayoutsChanged{PayoutIDs: changed, Reason: models.ActionConfirm})
	slog.Info("Adjustments confirmed",
		"confirmed", result.Confirmed,
		"skipped", result.Skipped,
		"payouts", result.PayoutsUpdated,
		"errors", len(result.Errors),
	)
	return result, nil
}

// Reject discards pending adjustments and restores the old splits on the
// deal. Payouts are never touched. An empty id list is a no-op.
func (w *Workflow) Reject(ctx context.Context, ids []string, reason, actor string) (*TransitionResult, error) {
	result := &TransitionResult{}
	if len(ids) == 0 {
		return result, nil
	}

	rejected := w.resolve(ctx, ids, models.AdjustmentRejected, reason, actor, result)
	result.Rejected = len(rejected)

	for _, dealID := range dealOrder(rejected) {
		if err := w.restoreDeal(ctx, dealID, rejected); err != nil {
			slog.Error("Failed to restore deal splits", "deal_id", dealID, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("deal %s: %v", dealID, err))
		}
	}

	slog.Info("Adjustments rejected", "rejected", result.Rejected, "skipped", result.Skipped, "errors", len(result.Errors))
	return result, nil
}

// resolve moves each pending record to status and returns the records that
// moved. Records no longer pending are counted as skipped, missing records
// are reported as errors.
func (w *Workflow) resolve(ctx context.Context, ids []string, status models.AdjustmentStatus, reason, actor string, result *TransitionResult) []*models.Adjustment {
	var moved []*models.Adjustment
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		rec, err := w.store.GetAdjustment(ctx, id)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("adjustment %s: %v", id, err))
			continue
		}

		at := w.now().Unix()
		err = w.store.ResolveAdjustment(ctx, id, status, reason, at)
		if errors.Is(err, storage.ErrConflict) {
			slog.Info("Adjustment already resolved", "adjustment_id", id, "status", rec.Status)
			result.Skipped++
			continue
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("adjustment %s: %v", id, err))
			continue
		}

		previous := models.Snapshot(rec)
		rec.Status = status
		rec.Reason = reason
		rec.ResolvedAt = at
		moved = append(moved, rec)

		action, verb := models.ActionConfirm, "Confirmed"
		if status == models.AdjustmentRejected {
			action, verb = models.ActionReject, "Rejected"
		}
		desc := fmt.Sprintf("%s adjustment for deal %s: %s", verb, rec.DealShortID, describeChange(rec))
		if reason != "" {
			desc += " | reason: " + reason
		}
		w.audit(ctx, &models.AuditEntry{
			Action:      action,
			EntityType:  models.EntityAdjustment,
			EntityID:    rec.ID,
			Previous:    previous,
			Next:        models.Snapshot(rec),
			Description: desc,
			Actor:       actor,
		})
	}
	metrics.AdjustmentTransitions.WithLabelValues(string(status)).Add(float64(len(moved)))
	return moved
}

// applyToPayouts cascades the deal's participants into its payouts and marks
// the payouts of the adjusted partners confirmed. It returns every payout ID
// it changed.
func (w *Workflow) applyToPayouts(ctx context.Context, dealID string, partners map[string]bool) ([]string, error) {
	deal, err := w.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}

	touched, err := w.payouts.CascadeParticipants(ctx, deal)
	if err != nil {
		return touched, err
	}

	rows, err := storage.AllPayouts(ctx, w.store, storage.PayoutFilter{DealShortID: deal.ShortID})
	if err != nil {
		return touched, fmt.Errorf("failed to load payouts: %w", err)
	}

	changed := make(map[string]bool, len(touched))
	for _, id := range touched {
		changed[id] = true
	}
	var confirm []string
	for _, p := range rows {
		if partners[p.PartnerID] || changed[p.ID] {
			confirm = append(confirm, p.ID)
		}
	}
	if _, err := w.store.SetPayoutStatus(ctx, confirm, models.AssignmentConfirmed); err != nil {
		return touched, fmt.Errorf("failed to confirm payouts: %w", err)
	}
	return confirm, nil
}

// restoreDeal puts each rejected partner back on its old split, unless the
// deal has since moved that partner to a different split.
func (w *Workflow) restoreDeal(ctx context.Context, dealID string, rejected []*models.Adjustment) error {
	deal, err := w.store.GetDeal(ctx, dealID)
	if err != nil {
		return err
	}

	var records []*models.Adjustment
	for _, r := range rejected {
		if r.DealID != dealID {
			continue
		}
		current, ok := deal.Participant(r.PartnerID)
		if ok && !current.Split.Equal(r.NewSplit) {
			continue
		}
		if !ok && !r.NewSplit.IsZero() {
			continue
		}
		records = append(records, r)
	}
	if len(records) == 0 {
		return nil
	}

	deal.Participants = revertSplits(deal.Participants, records)
	if err := w.store.UpdateDeal(ctx, deal); err != nil {
		return fmt.Errorf("failed to update deal: %w", err)
	}
	return nil
}

func dealOrder(records []*models.Adjustment) []string {
	var order []string
	seen := make(map[string]bool)
	for _, r := range records {
		if !seen[r.DealID] {
			seen[r.DealID] = true
			order = append(order, r.DealID)
		}
	}
	return order
}

func partnersOf(records []*models.Adjustment, dealID string) map[string]bool {
	out := make(map[string]bool)
	for _, r := range records {
		if r.DealID == dealID {
			out[r.PartnerID] = true
		}
	}
	return out
}
