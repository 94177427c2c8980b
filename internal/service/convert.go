package service

import (
	"github.com/mmynk/residuals/internal/calculator"
	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/participant"
	"github.com/mmynk/residuals/internal/reconcile"
	"github.com/mmynk/residuals/pkg/api"
)

func toRaws(in []map[string]any) []participant.Raw {
	out := make([]participant.Raw, len(in))
	for i, m := range in {
		out[i] = participant.Raw(m)
	}
	return out
}

func toAPIParticipants(parts []models.Participant) []api.Participant {
	out := make([]api.Participant, len(parts))
	for i, p := range parts {
		out[i] = api.Participant{
			PartnerID: p.PartnerID,
			Name:      p.Name,
			Role:      p.Role,
			Email:     p.Email,
			Split:     p.Split,
		}
	}
	return out
}

func toAPIDeal(d *models.Deal) api.Deal {
	return api.Deal{
		ID:           d.ID,
		ShortID:      d.ShortID,
		MID:          d.MID,
		MerchantName: d.MerchantName,
		Category:     string(d.Category),
		Participants: toAPIParticipants(d.Participants),
		NetResidual:  d.NetResidual,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func toAPIPayouts(payouts []*models.Payout) []api.Payout {
	out := make([]api.Payout, len(payouts))
	for i, p := range payouts {
		out[i] = api.Payout{
			ID:             p.ID,
			DealShortID:    p.DealShortID,
			EventID:        p.EventID,
			MID:            p.MID,
			Month:          p.Month,
			PartnerID:      p.PartnerID,
			PartnerName:    p.PartnerName,
			Role:           p.Role,
			Split:          p.Split,
			Amount:         p.Amount,
			BaseAmount:     p.BaseAmount,
			Status:         string(p.Status),
			Paid:           p.Paid,
			PaidAt:         p.PaidAt,
			LedgerRecordID: p.LedgerRecordID,
		}
	}
	return out
}

func toAPITotals(totals []calculator.PartnerTotal) []api.PartnerTotal {
	out := make([]api.PartnerTotal, len(totals))
	for i, t := range totals {
		out[i] = api.PartnerTotal(t)
	}
	return out
}

func toAPIAdjustment(a *models.Adjustment) api.Adjustment {
	return api.Adjustment{
		ID:          a.ID,
		GroupID:     a.GroupID,
		DealID:      a.DealID,
		DealShortID: a.DealShortID,
		MID:         a.MID,
		PartnerID:   a.PartnerID,
		PartnerName: a.PartnerName,
		OldSplit:    a.OldSplit,
		NewSplit:    a.NewSplit,
		BaseAmount:  a.BaseAmount,
		Delta:       a.Delta,
		Kind:        string(a.Kind),
		Note:        a.Note,
		Status:      string(a.Status),
		Reason:      a.Reason,
		CreatedAt:   a.CreatedAt,
		ResolvedAt:  a.ResolvedAt,
	}
}

func toAPIAdjustments(records []*models.Adjustment) []api.Adjustment {
	out := make([]api.Adjustment, len(records))
	for i, a := range records {
		out[i] = toAPIAdjustment(a)
	}
	return out
}

func toAPIGroups(groups []models.AdjustmentGroup) []api.AdjustmentGroup {
	out := make([]api.AdjustmentGroup, len(groups))
	for i, g := range groups {
		adjustments := make([]api.Adjustment, len(g.Adjustments))
		for j := range g.Adjustments {
			adjustments[j] = toAPIAdjustment(&g.Adjustments[j])
		}
		out[i] = api.AdjustmentGroup{
			Key:         g.Key,
			GroupID:     g.GroupID,
			DealID:      g.DealID,
			DealShortID: g.DealShortID,
			MID:         g.MID,
			Status:      string(g.Status),
			Note:        g.Note,
			CreatedAt:   g.CreatedAt,
			TotalDelta:  g.TotalDelta,
			Adjustments: adjustments,
		}
	}
	return out
}

func toAPIAudit(entries []*models.AuditEntry) []api.AuditEntry {
	out := make([]api.AuditEntry, len(entries))
	for i, e := range entries {
		out[i] = api.AuditEntry(*e)
	}
	return out
}

func toAPIOrphans(orphans []reconcile.Orphan) []api.Orphan {
	out := make([]api.Orphan, len(orphans))
	for i, o := range orphans {
		out[i] = api.Orphan(o)
	}
	return out
}

func toSyncResponse(r *reconcile.Result) *api.SyncResponse {
	return &api.SyncResponse{
		Success:    len(r.Errors) == 0,
		Created:    r.Created,
		Updated:    r.Updated,
		Deleted:    r.Deleted,
		Unchanged:  r.Unchanged,
		Duplicates: r.Duplicates,
		Orphans:    toAPIOrphans(r.Orphans),
		Errors:     r.Errors,
	}
}
