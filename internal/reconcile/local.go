package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mmynk/residuals/internal/calculator"
	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/storage"
)

func pairKey(eventID, partnerID string) string {
	return eventID + "|" + partnerID
}

// MaterializeEvents creates one pending payout per active participant for
// each event. Pairs of (event, partner) that already have a payout are left
// untouched. It returns the created payouts.
func (r *Reconciler) MaterializeEvents(ctx context.Context, deal *models.Deal, events []*models.Event) ([]*models.Payout, error) {
	existing, err := storage.AllPayouts(ctx, r.store, storage.PayoutFilter{DealShortID: deal.ShortID})
	if err != nil {
		return nil, fmt.Errorf("failed to load payouts for deal %s: %w", deal.ShortID, err)
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[pairKey(p.EventID, p.PartnerID)] = true
	}

	var created []*models.Payout
	for _, ev := range events {
		for _, part := range deal.Participants {
			if !part.Active() || have[pairKey(ev.ID, part.PartnerID)] {
				continue
			}
			have[pairKey(ev.ID, part.PartnerID)] = true
			created = append(created, newPayout(deal, ev, part, models.AssignmentPending))
		}
	}
	if len(created) == 0 {
		return nil, nil
	}
	if err := r.store.CreatePayouts(ctx, created); err != nil {
		return nil, fmt.Errorf("failed to create payouts for deal %s: %w", deal.ShortID, err)
	}
	slog.Info("Materialized payouts", "deal_id", deal.ShortID, "events", len(events), "payouts", len(created))
	return created, nil
}

func newPayout(deal *models.Deal, ev *models.Event, part models.Participant, status models.AssignmentStatus) *models.Payout {
	return &models.Payout{
		DealShortID:  deal.ShortID,
		EventID:      ev.ID,
		MID:          deal.MID,
		MerchantName: firstNonEmpty(ev.MerchantName, deal.MerchantName),
		Month:        ev.Month,
		Category:     deal.Category,
		PartnerID:    part.PartnerID,
		PartnerName:  part.Name,
		Role:         part.Role,
		Split:        part.Split,
		Amount:       calculator.ComputeAmount(ev.NetResidual, part.Split),
		BaseAmount:   ev.NetResidual,
		Status:       status,
	}
}

// Rebuild is the outcome of replacing a deal's payouts wholesale.
type Rebuild struct {
	Removed []string
	Created []*models.Payout
}

// ChangedIDs returns every payout ID the rebuild removed or created.
func (b *Rebuild) ChangedIDs() []string {
	ids := append([]string(nil), b.Removed...)
	for _, p := range b.Created {
		ids = append(ids, p.ID)
	}
	return ids
}

// RebuildDealPayouts deletes every payout of the deal and recreates them from
// the current participant set against each linked event. Events whose
// payouts were all confirmed get confirmed replacements. The delete and the
// inserts commit together, so a failed rebuild keeps the old payouts.
func (r *Reconciler) RebuildDealPayouts(ctx context.Context, deal *models.Deal) (*Rebuild, error) {
	var rebuild *Rebuild
	err := r.store.InTx(ctx, func(tx storage.Store) error {
		var err error
		rebuild, err = rebuildPayouts(ctx, tx, deal)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Rebuilt deal payouts", "deal_id", deal.ShortID, "removed", len(rebuild.Removed), "created", len(rebuild.Created))
	return rebuild, nil
}

func rebuildPayouts(ctx context.Context, store storage.Store, deal *models.Deal) (*Rebuild, error) {
	existing, err := storage.AllPayouts(ctx, store, storage.PayoutFilter{DealShortID: deal.ShortID})
	if err != nil {
		return nil, fmt.Errorf("failed to load payouts for deal %s: %w", deal.ShortID, err)
	}
	events, err := store.ListEventsByDeal(ctx, deal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events for deal %s: %w", deal.ShortID, err)
	}

	confirmed := make(map[string]bool)
	rebuild := &Rebuild{}
	for _, p := range existing {
		rebuild.Removed = append(rebuild.Removed, p.ID)
		if c, seen := confirmed[p.EventID]; !seen || c {
			confirmed[p.EventID] = p.Status == models.AssignmentConfirmed
		}
	}

	if _, err := store.DeletePayoutsByDeal(ctx, deal.ShortID); err != nil {
		return nil, fmt.Errorf("failed to delete payouts for deal %s: %w", deal.ShortID, err)
	}

	for _, ev := range events {
		status := models.AssignmentPending
		if confirmed[ev.ID] {
			status = models.AssignmentConfirmed
		}
		for _, part := range deal.Participants {
			if part.Active() {
				rebuild.Created = append(rebuild.Created, newPayout(deal, ev, part, status))
			}
		}
	}
	if len(rebuild.Created) > 0 {
		if err := store.CreatePayouts(ctx, rebuild.Created); err != nil {
			return nil, fmt.Errorf("failed to recreate payouts for deal %s: %w", deal.ShortID, err)
		}
	}
	return rebuild, nil
}

// CascadeParticipants applies the deal's current participant splits to its
// existing payouts, one event at a time. Payouts are matched to participants
// by partner ID, then by closest split for legacy rows without one. Matched
// rows are updated in place, unmatched rows are zeroed rather than deleted
// and new active participants get new rows. It returns the touched payout IDs.
func (r *Reconciler) CascadeParticipants(ctx context.Context, deal *models.Deal) ([]string, error) {
	existing, err := storage.AllPayouts(ctx, r.store, storage.PayoutFilter{DealShortID: deal.ShortID})
	if err != nil {
		return nil, fmt.Errorf("failed to load payouts for deal %s: %w", deal.ShortID, err)
	}

	var eventOrder []string
	byEvent := make(map[string][]*models.Payout)
	for _, p := range existing {
		if _, ok := byEvent[p.EventID]; !ok {
			eventOrder = append(eventOrder, p.EventID)
		}
		byEvent[p.EventID] = append(byEvent[p.EventID], p)
	}

	var touched []string
	var created []*models.Payout
	for _, eventID := range eventOrder {
		updates, additions := cascadeEvent(deal, byEvent[eventID])
		for _, p := range updates {
			if err := r.store.UpdatePayout(ctx, p); err != nil {
				return touched, fmt.Errorf("failed to update payout %s: %w", p.ID, err)
			}
			touched = append(touched, p.ID)
		}
		created = append(created, additions...)
	}

	if len(created) > 0 {
		if err := r.store.CreatePayouts(ctx, created); err != nil {
			return touched, fmt.Errorf("failed to create payouts for deal %s: %w", deal.ShortID, err)
		}
		for _, p := range created {
			touched = append(touched, p.ID)
		}
	}

	slog.Info("Cascaded participants to payouts", "deal_id", deal.ShortID, "payouts", len(touched))
	return touched, nil
}

// cascadeEvent matches the deal's participants to the payouts of one event.
// It returns the payouts that changed and the payouts to create.
func cascadeEvent(deal *models.Deal, group []*models.Payout) (updates, additions []*models.Payout) {
	unmatched := append([]*models.Payout(nil), group...)
	take := func(i int) *models.Payout {
		p := unmatched[i]
		unmatched = append(unmatched[:i], unmatched[i+1:]...)
		return p
	}

	ref := group[0]
	for _, part := range deal.Participants {
		idx := -1
		for i, p := range unmatched {
			if p.PartnerID != "" && p.PartnerID == part.PartnerID {
				idx = i
				break
			}
		}
		if idx < 0 {
			idx = closestLegacy(unmatched, part)
		}

		if idx < 0 {
			if part.Active() {
				ev := &models.Event{ID: ref.EventID, MerchantName: ref.MerchantName, Month: ref.Month, NetResidual: ref.BaseAmount}
				p := newPayout(deal, ev, part, ref.Status)
				additions = append(additions, p)
			}
			continue
		}

		p := take(idx)
		if applyParticipant(p, part) {
			updates = append(updates, p)
		}
	}

	for _, p := range unmatched {
		if p.Split.IsZero() && p.Amount.IsZero() {
			continue
		}
		p.Split = decimal.Zero
		p.Amount = decimal.Zero
		updates = append(updates, p)
	}
	return updates, additions
}

// closestLegacy returns the index of the payout without a partner ID whose
// split is nearest to part's, or -1.
func closestLegacy(payouts []*models.Payout, part models.Participant) int {
	best := -1
	for i, p := range payouts {
		if p.PartnerID != "" {
			continue
		}
		if best < 0 || p.Split.Sub(part.Split).Abs().LessThan(payouts[best].Split.Sub(part.Split).Abs()) {
			best = i
		}
	}
	return best
}

// applyParticipant copies the participant onto the payout and recomputes the
// amount. It reports whether anything changed.
func applyParticipant(p *models.Payout, part models.Participant) bool {
	amount := calculator.ComputeAmount(p.BaseAmount, part.Split)
	changed := p.PartnerID != part.PartnerID ||
		(part.Name != "" && p.PartnerName != part.Name) ||
		(part.Role != "" && p.Role != part.Role) ||
		!p.Split.Equal(part.Split) ||
		!p.Amount.Equal(amount)
	if !changed {
		return false
	}
	p.PartnerID = part.PartnerID
	if part.Name != "" {
		p.PartnerName = part.Name
	}
	if part.Role != "" {
		p.Role = part.Role
	}
	p.Split = part.Split
	p.Amount = amount
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
