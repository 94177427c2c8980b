package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/residuals/internal/models"
)

// PartnerTotal summarizes one partner's payouts.
type PartnerTotal struct {
	PartnerID   string
	PartnerName string
	Earned      decimal.Decimal
	Paid        decimal.Decimal
	Unpaid      decimal.Decimal
	Payouts     int
}

// TotalsByPartner aggregates payouts per partner, split into paid and unpaid.
// The result is ordered by partner ID.
func TotalsByPartner(payouts []*models.Payout) []PartnerTotal {
	totals := make(map[string]*PartnerTotal)
	for _, p := range payouts {
		t, ok := totals[p.PartnerID]
		if !ok {
			t = &PartnerTotal{PartnerID: p.PartnerID, PartnerName: p.PartnerName}
			totals[p.PartnerID] = t
		}
		t.Payouts++
		t.Earned = t.Earned.Add(p.Amount)
		if p.Paid {
			t.Paid = t.Paid.Add(p.Amount)
		} else {
			t.Unpaid = t.Unpaid.Add(p.Amount)
		}
	}

	out := make([]PartnerTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartnerID < out[j].PartnerID })
	return out
}
