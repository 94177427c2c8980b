package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/residuals/internal/calculator"
	"github.com/mmynk/residuals/internal/metrics"
	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/participant"
	"github.com/mmynk/residuals/internal/storage"
)

func newGroupID() string {
	return uuid.New().String()
}

// SubmitRequest proposes a full replacement participant set for a deal.
type SubmitRequest struct {
	// DealID is the deal's internal or short ID.
	DealID       string
	Participants []participant.Raw
	Note         string
	Actor        string
}

// EditRequest replaces the proposal of a pending group.
type EditRequest struct {
	GroupID      string
	Participants []participant.Raw
	Note         string
	Actor        string
}

// SubmitResult describes the pending records written by a submit or edit.
// A submit that changes no split writes nothing and returns no records.
type SubmitResult struct {
	GroupID     string
	DealID      string
	Adjustments []*models.Adjustment
	// UnknownPartners lists partner IDs missing from the partner directory.
	UnknownPartners []string
}

// Submit validates the new participant set, records one pending adjustment
// per participant whose split changed and updates the deal's participants.
// Payouts are not touched until the adjustments are confirmed.
func (w *Workflow) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	parts, err := w.prepare(req.Participants)
	if err != nil {
		return nil, err
	}

	deal, err := storage.LookupDeal(ctx, w.store, req.DealID)
	if err != nil {
		return nil, err
	}
	fillFromDeal(parts, deal.Participants)

	result := &SubmitResult{DealID: deal.ID}
	if result.UnknownPartners, err = w.enrich(ctx, parts); err != nil {
		return nil, err
	}

	changes := calculator.DiffSplits(deal.NetResidual, deal.Participants, parts)
	if len(changes) == 0 {
		slog.Info("Adjustment submit changed no splits", "deal_id", deal.ShortID)
		return result, nil
	}

	result.GroupID = w.newID()
	result.Adjustments = w.buildAdjustments(deal, result.GroupID, req.Note, changes)

	previous := deal.Participants
	deal.Participants = parts
	if err := w.store.UpdateDeal(ctx, deal); err != nil {
		return nil, fmt.Errorf("failed to update deal participants: %w", err)
	}
	if err := w.store.CreateAdjustments(ctx, result.Adjustments); err != nil {
		deal.Participants = previous
		if rerr := w.store.UpdateDeal(ctx, deal); rerr != nil {
			slog.Error("Failed to restore deal participants", "deal_id", deal.ShortID, "error", rerr)
		}
		return nil, fmt.Errorf("failed to record adjustments: %w", err)
	}

	metrics.AdjustmentTransitions.WithLabelValues(string(models.AdjustmentPending)).Add(float64(len(result.Adjustments)))
	w.audit(ctx, &models.AuditEntry{
		Action:      models.ActionSubmit,
		EntityType:  models.EntityAdjustment,
		EntityID:    result.GroupID,
		Previous:    models.Snapshot(previous),
		Next:        models.Snapshot(parts),
		Description: describeGroup("Submitted", deal, result.Adjustments, req.Note),
		Actor:       req.Actor,
	})
	slog.Info("Adjustment submitted", "deal_id", deal.ShortID, "group_id", result.GroupID, "records", len(result.Adjustments))
	return result, nil
}

// Edit replaces a pending group's proposal. The group keeps its ID and the
// deal's participants are recomputed from the splits in force before the
// group was submitted.
func (w *Workflow) Edit(ctx context.Context, req EditRequest) (*SubmitResult, error) {
	parts, err := w.prepare(req.Participants)
	if err != nil {
		return nil, err
	}

	records, err := w.groupRecords(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Status != models.AdjustmentPending {
			return nil, fmt.Errorf("group %s: %w", req.GroupID, ErrNotPending)
		}
	}

	deal, err := w.store.GetDeal(ctx, records[0].DealID)
	if err != nil {
		return nil, err
	}
	baseline := revertSplits(deal.Participants, records)
	fillFromDeal(parts, baseline)

	result := &SubmitResult{GroupID: req.GroupID, DealID: deal.ID}
	if result.UnknownPartners, err = w.enrich(ctx, parts); err != nil {
		return nil, err
	}

	changes := calculator.DiffSplits(deal.NetResidual, baseline, parts)
	result.Adjustments = w.buildAdjustments(deal, req.GroupID, req.Note, changes)

	if err := w.store.ReplacePendingGroup(ctx, req.GroupID, result.Adjustments); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("group %s: %w", req.GroupID, ErrNotPending)
		}
		return nil, fmt.Errorf("failed to replace adjustments: %w", err)
	}

	previous := deal.Participants
	deal.Participants = parts
	if err := w.store.UpdateDeal(ctx, deal); err != nil {
		return nil, fmt.Errorf("failed to update deal participants: %w", err)
	}

	w.audit(ctx, &models.AuditEntry{
		Action:      models.ActionEdit,
		EntityType:  models.EntityAdjustment,
		EntityID:    req.GroupID,
		Previous:    models.Snapshot(previous),
		Next:        models.Snapshot(parts),
		Description: describeGroup("Edited", deal, result.Adjustments, req.Note),
		Actor:       req.Actor,
	})
	slog.Info("Adjustment edited", "deal_id", deal.ShortID, "group_id", req.GroupID, "records", len(result.Adjustments))
	return result, nil
}

// prepare normalizes every participant before anything is written, so a
// missing partner identifier aborts the whole request.
func (w *Workflow) prepare(raws []participant.Raw) ([]models.Participant, error) {
	if len(raws) == 0 {
		return nil, ErrEmptyTargets
	}
	parts, err := participant.NormalizeAll(raws)
	if err != nil {
		return nil, err
	}
	if err := calculator.ValidateExact(parts); err != nil {
		return nil, err
	}
	return parts, nil
}

func (w *Workflow) enrich(ctx context.Context, parts []models.Participant) ([]string, error) {
	if w.directory == nil {
		return nil, nil
	}
	return w.directory.Enrich(ctx, parts)
}

func (w *Workflow) groupRecords(ctx context.Context, groupID string) ([]*models.Adjustment, error) {
	records, err := w.store.ListAdjustments(ctx, storage.AdjustmentFilter{GroupID: groupID, Limit: w.store.PageSize()})
	if err != nil {
		return nil, fmt.Errorf("failed to load group %s: %w", groupID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("adjustment group %w: %s", storage.ErrNotFound, groupID)
	}
	return records, nil
}

func (w *Workflow) buildAdjustments(deal *models.Deal, groupID, note string, changes []calculator.SplitChange) []*models.Adjustment {
	now := w.now().Unix()
	out := make([]*models.Adjustment, 0, len(changes))
	for _, c := range changes {
		out = append(out, &models.Adjustment{
			GroupID:     groupID,
			DealID:      deal.ID,
			DealShortID: deal.ShortID,
			MID:         deal.MID,
			PartnerID:   c.PartnerID,
			PartnerName: c.PartnerName,
			OldSplit:    c.OldSplit,
			NewSplit:    c.NewSplit,
			BaseAmount:  deal.NetResidual,
			Delta:       c.Delta,
			Kind:        c.Kind,
			Note:        note,
			Status:      models.AdjustmentPending,
			CreatedAt:   now,
		})
	}
	return out
}

// fillFromDeal copies names and roles onto participants that arrived without
// them.
func fillFromDeal(parts, known []models.Participant) {
	byID := make(map[string]models.Participant, len(known))
	for _, p := range known {
		byID[p.PartnerID] = p
	}
	for i := range parts {
		k, ok := byID[parts[i].PartnerID]
		if !ok {
			continue
		}
		if parts[i].Name == "" {
			parts[i].Name = k.Name
		}
		if parts[i].Role == "" {
			parts[i].Role = k.Role
		}
		if parts[i].Email == "" {
			parts[i].Email = k.Email
		}
	}
}

// revertSplits returns current with each record's partner set back to its
// old split. Partners the records added are dropped and partners they
// removed are restored.
func revertSplits(current []models.Participant, records []*models.Adjustment) []models.Participant {
	old := make(map[string]*models.Adjustment, len(records))
	for _, r := range records {
		old[r.PartnerID] = r
	}

	var out []models.Participant
	seen := make(map[string]bool, len(current))
	for _, p := range current {
		seen[p.PartnerID] = true
		r, ok := old[p.PartnerID]
		if !ok {
			out = append(out, p)
			continue
		}
		if r.OldSplit.IsZero() {
			continue
		}
		p.Split = r.OldSplit
		out = append(out, p)
	}
	for _, r := range records {
		if seen[r.PartnerID] || r.OldSplit.IsZero() {
			continue
		}
		out = append(out, models.Participant{PartnerID: r.PartnerID, Name: r.PartnerName, Split: r.OldSplit})
	}
	return out
}

func describeGroup(verb string, deal *models.Deal, adjustments []*models.Adjustment, note string) string {
	total := decimal.Zero
	parts := make([]string, 0, len(adjustments))
	for _, a := range adjustments {
		total = total.Add(a.Delta)
		parts = append(parts, describeChange(a))
	}
	desc := fmt.Sprintf("%s %d split changes for deal %s (MID %s, net $%s): %s",
		verb, len(adjustments), deal.ShortID, deal.MID, total.StringFixed(2), strings.Join(parts, "; "))
	if note != "" {
		desc += " | note: " + note
	}
	return desc
}
