// Package participant maps heterogeneous participant records onto the
// canonical models.Participant shape.
package participant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/residuals/internal/models"
)

// ErrMissingPartnerIdentifier is returned when no alias yields a partner ID.
var ErrMissingPartnerIdentifier = errors.New("participant is missing a partner identifier")

// ErrInvalidParticipant is returned for malformed splits and duplicated partners.
var ErrInvalidParticipant = errors.New("invalid participant")

// MissingPartnerIdentifierError names the participant that failed so an
// operator can find it.
type MissingPartnerIdentifierError struct {
	Name string
}

func (e *MissingPartnerIdentifierError) Error() string {
	if e.Name == "" {
		return "participant (unnamed) is missing a partner identifier"
	}
	return fmt.Sprintf("participant %q is missing a partner identifier", e.Name)
}

func (e *MissingPartnerIdentifierError) Unwrap() error { return ErrMissingPartnerIdentifier }

// Alias lists, highest priority first.
var (
	PartnerIDAliases = []string{"partner_id", "partnerId", "external_partner_id", "agent_id", "agentId", "airtable_id", "ledger_id"}
	NameAliases      = []string{"name", "partner_name", "partnerName", "agent_name", "agentName", "display_name"}
	RoleAliases      = []string{"role", "partner_role", "partnerRole", "agent_role", "type"}
	EmailAliases     = []string{"email", "partner_email", "partnerEmail", "agent_email"}
	SplitAliases     = []string{"split_pct", "splitPct", "split", "percentage", "percent"}
)

// Raw is an untyped participant record as received from callers.
type Raw map[string]any

// Normalize converts a raw record into a canonical participant. It fails with
// a *MissingPartnerIdentifierError if no partner ID alias is populated.
func Normalize(raw Raw) (models.Participant, error) {
	p := models.Participant{
		PartnerID: lookup(raw, PartnerIDAliases),
		Name:      lookup(raw, NameAliases),
		Role:      lookup(raw, RoleAliases),
		Email:     lookup(raw, EmailAliases),
	}
	if p.PartnerID == "" {
		return models.Participant{}, &MissingPartnerIdentifierError{Name: p.Name}
	}

	split, err := lookupDecimal(raw, SplitAliases)
	if err != nil {
		return models.Participant{}, fmt.Errorf("participant %q: %w: %v", p.PartnerID, ErrInvalidParticipant, err)
	}
	if split.IsNegative() || split.GreaterThan(decimal.NewFromInt(100)) {
		return models.Participant{}, fmt.Errorf("participant %q: %w: split %s%% out of range 0-100", p.PartnerID, ErrInvalidParticipant, split.String())
	}
	p.Split = split
	return p, nil
}

// NormalizeAll normalizes every record, failing on the first invalid one.
// A duplicated partner ID is rejected.
func NormalizeAll(raws []Raw) ([]models.Participant, error) {
	out := make([]models.Participant, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for _, raw := range raws {
		p, err := Normalize(raw)
		if err != nil {
			return nil, err
		}
		if seen[p.PartnerID] {
			return nil, fmt.Errorf("%w: partner %q listed more than once", ErrInvalidParticipant, p.PartnerID)
		}
		seen[p.PartnerID] = true
		out = append(out, p)
	}
	return out, nil
}

// FromParticipant renders a canonical participant as a Raw record.
func FromParticipant(p models.Participant) Raw {
	return Raw{
		"partner_id": p.PartnerID,
		"name":       p.Name,
		"role":       p.Role,
		"email":      p.Email,
		"split_pct":  p.Split.String(),
	}
}

func lookup(raw Raw, aliases []string) string {
	for _, key := range aliases {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(stringify(v))
		if s != "" {
			return s
		}
	}
	return ""
}

func lookupDecimal(raw Raw, aliases []string) (decimal.Decimal, error) {
	for _, key := range aliases {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case decimal.Decimal:
			return n, nil
		case float64:
			return decimal.NewFromFloat(n), nil
		case float32:
			return decimal.NewFromFloat32(n), nil
		case int:
			return decimal.NewFromInt(int64(n)), nil
		case int64:
			return decimal.NewFromInt(n), nil
		}
		s := strings.TrimSuffix(strings.TrimSpace(stringify(v)), "%")
		if s == "" {
			continue
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid split %q: %w", s, err)
		}
		return d, nil
	}
	return decimal.Zero, nil
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case float64:
		return decimal.NewFromFloat(s).String()
	default:
		return fmt.Sprint(v)
	}
}
