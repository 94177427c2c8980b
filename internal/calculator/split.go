// Package calculator converts split percentages into dollar allocations.
package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/residuals/internal/models"
)

// ErrSplitSum is returned when participant splits do not add up to an
// acceptable total.
var ErrSplitSum = errors.New("split percentages do not sum to an acceptable total")

var (
	hundred = decimal.NewFromInt(100)

	// IntakeMin and IntakeMax bound the split total accepted when a deal is
	// first assigned.
	IntakeMin = decimal.NewFromInt(80)
	IntakeMax = decimal.NewFromInt(105)
)

// SplitSumError reports the offending total and the accepted range.
type SplitSumError struct {
	Sum decimal.Decimal
	Min decimal.Decimal
	Max decimal.Decimal
}

func (e *SplitSumError) Error() string {
	if e.Min.Equal(e.Max) {
		return fmt.Sprintf("split percentages sum to %s%%, must equal %s%%", e.Sum.String(), e.Min.String())
	}
	return fmt.Sprintf("split percentages sum to %s%%, must be between %s%% and %s%%",
		e.Sum.String(), e.Min.String(), e.Max.String())
}

func (e *SplitSumError) Unwrap() error { return ErrSplitSum }

// ComputeAmount returns base × splitPct / 100.
func ComputeAmount(base, splitPct decimal.Decimal) decimal.Decimal {
	return base.Mul(splitPct).Div(hundred)
}

// ComputeDelta returns base × (newPct - oldPct) / 100.
func ComputeDelta(base, oldPct, newPct decimal.Decimal) decimal.Decimal {
	return base.Mul(newPct.Sub(oldPct)).Div(hundred)
}

// Classify maps a delta to its adjustment kind. A zero delta has no kind.
func Classify(delta decimal.Decimal) models.AdjustmentKind {
	switch delta.Sign() {
	case -1:
		return models.KindClawback
	case 1:
		return models.KindAdditional
	}
	return ""
}

// SumSplits returns the total split percentage across participants.
func SumSplits(participants []models.Participant) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range participants {
		sum = sum.Add(p.Split)
	}
	return sum
}

// ValidateIntake accepts split totals within [IntakeMin, IntakeMax]. It is
// used for the first assignment of events to a deal.
func ValidateIntake(participants []models.Participant) error {
	sum := SumSplits(participants)
	if sum.LessThan(IntakeMin) || sum.GreaterThan(IntakeMax) {
		return &SplitSumError{Sum: sum, Min: IntakeMin, Max: IntakeMax}
	}
	return nil
}

// ValidateExact requires the split total to be exactly 100. It gates
// adjustments and participant edits.
func ValidateExact(participants []models.Participant) error {
	sum := SumSplits(participants)
	if !sum.Equal(hundred) {
		return &SplitSumError{Sum: sum, Min: hundred, Max: hundred}
	}
	return nil
}

// Allocate computes each participant's amount of base, keyed by partner ID.
func Allocate(base decimal.Decimal, participants []models.Participant) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(participants))
	for _, p := range participants {
		out[p.PartnerID] = out[p.PartnerID].Add(ComputeAmount(base, p.Split))
	}
	return out
}

// SplitChange is one participant's old and new split.
type SplitChange struct {
	PartnerID   string
	PartnerName string
	OldSplit    decimal.Decimal
	NewSplit    decimal.Decimal
	Delta       decimal.Decimal
	Kind        models.AdjustmentKind
}

// DiffSplits compares two participant sets by partner ID and returns the
// participants whose split changed, in the order they appear in next followed
// by participants dropped from prev. Unchanged participants are omitted.
func DiffSplits(base decimal.Decimal, prev, next []models.Participant) []SplitChange {
	prevByID := make(map[string]models.Participant, len(prev))
	for _, p := range prev {
		prevByID[p.PartnerID] = p
	}

	var changes []SplitChange
	seen := make(map[string]bool, len(next))
	for _, p := range next {
		seen[p.PartnerID] = true
		old := prevByID[p.PartnerID].Split
		if old.Equal(p.Split) {
			continue
		}
		delta := ComputeDelta(base, old, p.Split)
		changes = append(changes, SplitChange{
			PartnerID:   p.PartnerID,
			PartnerName: p.Name,
			OldSplit:    old,
			NewSplit:    p.Split,
			Delta:       delta,
			Kind:        Classify(delta),
		})
	}

	// Dropped participants go to zero
	for _, p := range prev {
		if seen[p.PartnerID] || p.Split.IsZero() {
			continue
		}
		delta := ComputeDelta(base, p.Split, decimal.Zero)
		changes = append(changes, SplitChange{
			PartnerID:   p.PartnerID,
			PartnerName: p.Name,
			OldSplit:    p.Split,
			NewSplit:    decimal.Zero,
			Delta:       delta,
			Kind:        Classify(delta),
		})
	}

	return changes
}
