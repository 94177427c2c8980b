package participant

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_EachAliasAlone(t *testing.T) {
	for _, alias := range PartnerIDAliases {
		t.Run(alias, func(t *testing.T) {
			p, err := Normalize(Raw{alias: "rec123", "agent_name": "Ada", "split": 25.5})
			require.NoError(t, err)
			assert.Equal(t, "rec123", p.PartnerID)
			assert.Equal(t, "Ada", p.Name)
			assert.True(t, p.Split.Equal(decimal.RequireFromString("25.5")), "split = %s", p.Split)
		})
	}
}

func TestNormalize_MissingIdentifier(t *testing.T) {
	raws := []Raw{
		{"name": "Ada Lovelace", "split_pct": 50},
		{"name": "Ada Lovelace", "partner_id": "", "agent_id": "   "},
		{"partner_name": "Ada Lovelace", "partnerId": nil},
	}
	for _, raw := range raws {
		_, err := Normalize(raw)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingPartnerIdentifier))

		var missing *MissingPartnerIdentifierError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "Ada Lovelace", missing.Name)
	}
}

func TestNormalize_AliasPriority(t *testing.T) {
	p, err := Normalize(Raw{
		"agent_id":     "legacy",
		"partner_id":   "canonical",
		"partner_role": "agent",
		"role":         "",
		"email":        "a@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "canonical", p.PartnerID)
	assert.Equal(t, "agent", p.Role, "blank higher-priority alias falls through")
	assert.Equal(t, "a@example.com", p.Email)
}

func TestNormalize_SplitFormats(t *testing.T) {
	tests := []struct {
		raw     Raw
		want    string
		wantErr bool
	}{
		{raw: Raw{"partner_id": "x", "split_pct": "60"}, want: "60"},
		{raw: Raw{"partner_id": "x", "percentage": "12.5%"}, want: "12.5"},
		{raw: Raw{"partner_id": "x", "splitPct": 40}, want: "40"},
		{raw: Raw{"partner_id": "x"}, want: "0"},
		{raw: Raw{"partner_id": "x", "split": "abc"}, wantErr: true},
		{raw: Raw{"partner_id": "x", "split": 101}, wantErr: true},
		{raw: Raw{"partner_id": "x", "split": -1}, wantErr: true},
	}
	for _, tt := range tests {
		p, err := Normalize(tt.raw)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidParticipant, "raw %v", tt.raw)
			continue
		}
		require.NoError(t, err)
		assert.True(t, p.Split.Equal(decimal.RequireFromString(tt.want)), "raw %v: split = %s", tt.raw, p.Split)
	}
}

func TestNormalizeAll(t *testing.T) {
	t.Run("stops at first missing identifier", func(t *testing.T) {
		_, err := NormalizeAll([]Raw{
			{"partner_id": "a", "split": 50},
			{"name": "Nobody", "split": 50},
		})
		assert.ErrorIs(t, err, ErrMissingPartnerIdentifier)
	})

	t.Run("rejects duplicate partners", func(t *testing.T) {
		_, err := NormalizeAll([]Raw{
			{"partner_id": "a", "split": 50},
			{"agent_id": "a", "split": 50},
		})
		assert.ErrorIs(t, err, ErrInvalidParticipant)
	})

	t.Run("round trips canonical records", func(t *testing.T) {
		in, err := NormalizeAll([]Raw{{"partnerId": "a", "name": "A", "split": "100"}})
		require.NoError(t, err)
		out, err := Normalize(FromParticipant(in[0]))
		require.NoError(t, err)
		assert.Equal(t, in[0].PartnerID, out.PartnerID)
		assert.True(t, in[0].Split.Equal(out.Split))
	})
}
