package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/residuals/internal/ledger"
	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/pkg/api"
)

func adjustmentIDs(adjustments []api.Adjustment) []string {
	ids := make([]string, len(adjustments))
	for i, a := range adjustments {
		ids[i] = a.ID
	}
	return ids
}

func payoutAmounts(t *testing.T, env *testEnv, shortID string) map[string]string {
	t.Helper()
	deal, err := env.deals.GetDeal(context.Background(), connect.NewRequest(&api.DealRequest{DealID: shortID}))
	require.NoError(t, err)
	out := make(map[string]string)
	for _, p := range deal.Msg.Payouts {
		out[p.PartnerID] = p.Amount.StringFixed(2)
	}
	return out
}

func TestAdjustmentLifecycle(t *testing.T) {
	env := setupTestServer(t, true)
	ctx := context.Background()
	shortID := env.seedDeal(t, "12345", []map[string]any{split("recA", 60), split("recB", 40)}, "1000")
	_, err := env.deals.ConfirmDeal(ctx, connect.NewRequest(&api.DealRequest{DealID: shortID}))
	require.NoError(t, err)
	require.Len(t, env.ledger.Records(), 2)

	submitted, err := env.adjustments.Submit(ctx, connect.NewRequest(&api.SubmitAdjustmentRequest{
		DealID: shortID,
		Participants: []map[string]any{
			split("recA", 50),
			{"agentId": "recB", "percent": "50"},
		},
		Note: "renegotiated",
	}))
	require.NoError(t, err)
	assert.True(t, submitted.Msg.Success)
	assert.NotEmpty(t, submitted.Msg.GroupID)
	require.Equal(t, 2, submitted.Msg.Created)

	deltas := make(map[string]string)
	for _, a := range submitted.Msg.Adjustments {
		assert.Equal(t, string(models.AdjustmentPending), a.Status)
		deltas[a.PartnerID] = a.Delta.StringFixed(2)
	}
	assert.Equal(t, map[string]string{"recA": "-100.00", "recB": "100.00"}, deltas)

	// Payouts and the ledger are untouched until confirmation.
	assert.Equal(t, map[string]string{"recA": "600.00", "recB": "400.00"}, payoutAmounts(t, env, shortID))

	confirmed, err := env.adjustments.Confirm(ctx, connect.NewRequest(&api.ConfirmAdjustmentsRequest{
		IDs: adjustmentIDs(submitted.Msg.Adjustments),
	}))
	require.NoError(t, err)
	assert.True(t, confirmed.Msg.Success)
	assert.Equal(t, 2, confirmed.Msg.Confirmed)
	assert.Equal(t, 2, confirmed.Msg.PayoutsUpdated)
	assert.Empty(t, confirmed.Msg.Warnings)

	assert.Equal(t, map[string]string{"recA": "500.00", "recB": "500.00"}, payoutAmounts(t, env, shortID))

	records := env.ledger.Records()
	require.Len(t, records, 2, "confirmation updates ledger records in place")
	for _, r := range records {
		assert.Equal(t, 500.0, r.Fields[ledger.FieldAmount])
	}

	again, err := env.adjustments.Confirm(ctx, connect.NewRequest(&api.ConfirmAdjustmentsRequest{
		IDs: adjustmentIDs(submitted.Msg.Adjustments),
	}))
	require.NoError(t, err)
	assert.Zero(t, again.Msg.Confirmed)
	assert.Equal(t, 2, again.Msg.Skipped)

	groups, err := env.adjustments.ListGroups(ctx, connect.NewRequest(&api.ListAdjustmentsRequest{}))
	require.NoError(t, err)
	require.Len(t, groups.Msg.Groups, 1)
	assert.Equal(t, submitted.Msg.GroupID, groups.Msg.Groups[0].GroupID)
	assert.Equal(t, string(models.AdjustmentConfirmed), groups.Msg.Groups[0].Status)
	assert.Equal(t, "renegotiated", groups.Msg.Groups[0].Note)
	assert.True(t, groups.Msg.Groups[0].TotalDelta.IsZero())
}

func TestSubmit_Validation(t *testing.T) {
	env := setupTestServer(t, false)
	ctx := context.Background()
	shortID := env.seedDeal(t, "12345", []map[string]any{split("recA", 60), split("recB", 40)}, "1000")

	tests := []struct {
		name         string
		dealID       string
		participants []map[string]any
		want         connect.Code
	}{
		{"missing deal ID", "", []map[string]any{split("recA", 100)}, connect.CodeInvalidArgument},
		{"no participants", shortID, nil, connect.CodeInvalidArgument},
		{"total 99", shortID, []map[string]any{split("recA", 59), split("recB", 40)}, connect.CodeInvalidArgument},
		{"total 101", shortID, []map[string]any{split("recA", 61), split("recB", 40)}, connect.CodeInvalidArgument},
		{"missing partner ID", shortID, []map[string]any{split("recA", 60), {"name": "Bob", "split_pct": 40}}, connect.CodeInvalidArgument},
		{"unknown deal", "D-NOPE", []map[string]any{split("recA", 100)}, connect.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.adjustments.Submit(ctx, connect.NewRequest(&api.SubmitAdjustmentRequest{
				DealID:       tt.dealID,
				Participants: tt.participants,
			}))
			assert.Equal(t, tt.want, codeOf(t, err))
		})
	}

	list, err := env.adjustments.List(ctx, connect.NewRequest(&api.ListAdjustmentsRequest{}))
	require.NoError(t, err)
	assert.Empty(t, list.Msg.Adjustments, "failed submits write nothing")

	_, err = env.adjustments.List(ctx, connect.NewRequest(&api.ListAdjustmentsRequest{Status: "approved"}))
	assert.Equal(t, connect.CodeInvalidArgument, codeOf(t, err))
}

func TestReject(t *testing.T) {
	env := setupTestServer(t, false)
	ctx := context.Background()
	shortID := env.seedDeal(t, "12345", []map[string]any{split("recA", 60), split("recB", 40)}, "1000")

	submitted, err := env.adjustments.Submit(ctx, connect.NewRequest(&api.SubmitAdjustmentRequest{
		DealID:       shortID,
		Participants: []map[string]any{split("recA", 70), split("recB", 30)},
	}))
	require.NoError(t, err)

	rejected, err := env.adjustments.Reject(ctx, connect.NewRequest(&api.RejectAdjustmentsRequest{
		IDs:    adjustmentIDs(submitted.Msg.Adjustments),
		Reason: "not agreed",
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, rejected.Msg.Rejected)

	deal, err := env.deals.GetDeal(ctx, connect.NewRequest(&api.DealRequest{DealID: shortID}))
	require.NoError(t, err)
	assert.True(t, dec("60").Equal(deal.Msg.Deal.Participants[0].Split))
	assert.True(t, dec("40").Equal(deal.Msg.Deal.Participants[1].Split))
	assert.Equal(t, map[string]string{"recA": "600.00", "recB": "400.00"}, payoutAmounts(t, env, shortID))

	list, err := env.adjustments.List(ctx, connect.NewRequest(&api.ListAdjustmentsRequest{Status: string(models.AdjustmentRejected)}))
	require.NoError(t, err)
	require.Len(t, list.Msg.Adjustments, 2)
	assert.Equal(t, "not agreed", list.Msg.Adjustments[0].Reason)

	// A rejected group can no longer be edited.
	_, err = env.adjustments.Edit(ctx, connect.NewRequest(&api.EditAdjustmentRequest{
		GroupID:      submitted.Msg.GroupID,
		Participants: []map[string]any{split("recA", 55), split("recB", 45)},
	}))
	assert.Equal(t, connect.CodeFailedPrecondition, codeOf(t, err))
}

func TestEdit(t *testing.T) {
	env := setupTestServer(t, false)
	ctx := context.Background()
	shortID := env.seedDeal(t, "12345", []map[string]any{split("recA", 60), split("recB", 40)}, "1000")

	submitted, err := env.adjustments.Submit(ctx, connect.NewRequest(&api.SubmitAdjustmentRequest{
		DealID:       shortID,
		Participants: []map[string]any{split("recA", 50), split("recB", 50)},
	}))
	require.NoError(t, err)

	edited, err := env.adjustments.Edit(ctx, connect.NewRequest(&api.EditAdjustmentRequest{
		GroupID:      submitted.Msg.GroupID,
		Participants: []map[string]any{split("recA", 55), split("recB", 45)},
		Note:         "split the difference",
	}))
	require.NoError(t, err)
	assert.Equal(t, submitted.Msg.GroupID, edited.Msg.GroupID)
	require.Equal(t, 2, edited.Msg.Created)

	pending, err := env.adjustments.List(ctx, connect.NewRequest(&api.ListAdjustmentsRequest{GroupID: submitted.Msg.GroupID}))
	require.NoError(t, err)
	require.Len(t, pending.Msg.Adjustments, 2, "edit replaces the group in place")
	for _, a := range pending.Msg.Adjustments {
		if a.PartnerID == "recA" {
			assert.True(t, dec("60").Equal(a.OldSplit), "baseline is the split before the submit")
			assert.True(t, dec("55").Equal(a.NewSplit))
		}
	}

	_, err = env.adjustments.Confirm(ctx, connect.NewRequest(&api.ConfirmAdjustmentsRequest{IDs: adjustmentIDs(edited.Msg.Adjustments)}))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"recA": "550.00", "recB": "450.00"}, payoutAmounts(t, env, shortID))

	_, err = env.adjustments.Edit(ctx, connect.NewRequest(&api.EditAdjustmentRequest{GroupID: "missing", Participants: []map[string]any{split("recA", 100)}}))
	assert.Equal(t, connect.CodeNotFound, codeOf(t, err))

	_, err = env.adjustments.Edit(ctx, connect.NewRequest(&api.EditAdjustmentRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, codeOf(t, err))
}
