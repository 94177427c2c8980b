package models

import "github.com/shopspring/decimal"

// PayoutCategory distinguishes the kinds of merchant payouts a deal can cover.
type PayoutCategory string

const (
	CategoryResidual PayoutCategory = "residual"
	CategoryBonus    PayoutCategory = "bonus"
	CategoryTrueUp   PayoutCategory = "trueup"
)

// Valid reports whether c is a known category.
func (c PayoutCategory) Valid() bool {
	switch c {
	case CategoryResidual, CategoryBonus, CategoryTrueUp:
		return true
	}
	return false
}

// Deal is one merchant arrangement for one payout category.
// At most one deal exists per (MID, Category).
type Deal struct {
	// ID is the internal identifier (UUID format). Events reference it.
	ID string

	// ShortID is the external-friendly identifier. Payouts reference it.
	ShortID string

	// MID is the merchant identifier.
	MID string

	// MerchantName is the display name of the merchant.
	MerchantName string

	Category PayoutCategory

	// Participants is the ordered split table.
	Participants []Participant

	// NetResidual is the cached base amount adjustments are computed against.
	// It is the sum of the net residual of every linked event.
	NetResidual decimal.Decimal

	CreatedAt int64
	UpdatedAt int64
}

// Participant returns the participant with the given partner ID.
func (d *Deal) Participant(partnerID string) (Participant, bool) {
	for _, p := range d.Participants {
		if p.PartnerID == partnerID {
			return p, true
		}
	}
	return Participant{}, false
}

// Participant is one partner's share of a deal.
type Participant struct {
	// PartnerID is the external partner identifier. Required.
	PartnerID string `json:"partner_id"`

	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`

	// Split is the share of the base amount, 0-100.
	Split decimal.Decimal `json:"split_pct"`
}

// Active reports whether the participant receives a non-zero share.
func (p Participant) Active() bool {
	return p.Split.IsPositive()
}
