package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/storage"
)

// List returns adjustment records, newest first.
func (w *Workflow) List(ctx context.Context, filter storage.AdjustmentFilter) ([]*models.Adjustment, error) {
	records, err := w.store.ListAdjustments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list adjustments: %w", err)
	}
	return records, nil
}

// ListGroups returns the records matching filter folded into groups.
func (w *Workflow) ListGroups(ctx context.Context, filter storage.AdjustmentFilter) ([]models.AdjustmentGroup, error) {
	records, err := w.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return Group(records), nil
}

// GroupKey identifies the group a record belongs to. Records with a group ID
// use it; older records without one fall back to (deal, minute, status).
func GroupKey(a *models.Adjustment) string {
	if a.GroupID != "" {
		return a.GroupID
	}
	return fmt.Sprintf("%s|%d|%s", a.DealID, a.CreatedAt/60, a.Status)
}

// Group folds records into groups ordered newest first. A group is pending
// while any member is pending, rejected when every member is rejected and
// confirmed otherwise.
func Group(records []*models.Adjustment) []models.AdjustmentGroup {
	var order []string
	groups := make(map[string]*models.AdjustmentGroup)
	for _, a := range records {
		key := GroupKey(a)
		g, ok := groups[key]
		if !ok {
			g = &models.AdjustmentGroup{
				Key:         key,
				GroupID:     a.GroupID,
				DealID:      a.DealID,
				DealShortID: a.DealShortID,
				MID:         a.MID,
				Note:        a.Note,
				CreatedAt:   a.CreatedAt,
				TotalDelta:  decimal.Zero,
			}
			groups[key] = g
			order = append(order, key)
		}
		if a.CreatedAt < g.CreatedAt {
			g.CreatedAt = a.CreatedAt
		}
		g.TotalDelta = g.TotalDelta.Add(a.Delta)
		g.Adjustments = append(g.Adjustments, *a)
	}

	out := make([]models.AdjustmentGroup, 0, len(order))
	for _, key := range order {
		g := groups[key]
		g.Status = groupStatus(g.Adjustments)
		out = append(out, *g)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

func groupStatus(records []models.Adjustment) models.AdjustmentStatus {
	rejected := 0
	for _, a := range records {
		switch a.Status {
		case models.AdjustmentPending:
			return models.AdjustmentPending
		case models.AdjustmentRejected:
			rejected++
		}
	}
	if rejected == len(records) {
		return models.AdjustmentRejected
	}
	return models.AdjustmentConfirmed
}
