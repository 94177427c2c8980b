package workflow_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/residuals/internal/calculator"
	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/outbox"
	"github.com/mmynk/residuals/internal/participant"
	"github.com/mmynk/residuals/internal/reconcile"
	"github.com/mmynk/residuals/internal/storage"
	"github.com/mmynk/residuals/internal/storage/sqlite"
	"github.com/mmynk/residuals/internal/workflow"
)

var clock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *sqlite.SQLiteStore
	recorder  *outbox.Recorder
	workflow  *workflow.Workflow
	deal      *models.Deal
	payoutIDs []string
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newFixture creates deal D with A at 60% and B at 40% over one $1000 event.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	deal := &models.Deal{
		MID:      "12345",
		Category: models.CategoryResidual,
		Participants: []models.Participant{
			{PartnerID: "recA", Name: "Alice", Split: dec("60")},
			{PartnerID: "recB", Name: "Bob", Split: dec("40")},
		},
		NetResidual: dec("1000"),
	}
	require.NoError(t, store.CreateDeal(ctx, deal))

	ev := &models.Event{MID: "12345", Month: "2024-04", Category: models.CategoryResidual, NetResidual: dec("1000")}
	require.NoError(t, store.CreateEvents(ctx, []*models.Event{ev}))
	require.NoError(t, store.AssignEvents(ctx, []string{ev.ID}, deal.ID, deal.MID))

	rec := reconcile.New(store, nil)
	payouts, err := rec.MaterializeEvents(ctx, deal, []*models.Event{ev})
	require.NoError(t, err)

	recorder := &outbox.Recorder{}
	f := &fixture{
		store:    store,
		recorder: recorder,
		workflow: workflow.New(store, rec, recorder, workflow.WithClock(func() time.Time { return clock })),
		deal:     deal,
	}
	for _, p := range payouts {
		f.payoutIDs = append(f.payoutIDs, p.ID)
	}
	return f
}

func raws(pairs ...string) []participant.Raw {
	var out []participant.Raw
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, participant.Raw{"partner_id": pairs[i], "split_pct": pairs[i+1]})
	}
	return out
}

func (f *fixture) payoutsByPartner(t *testing.T) map[string]*models.Payout {
	t.Helper()
	rows, err := storage.AllPayouts(context.Background(), f.store, storage.PayoutFilter{DealShortID: f.deal.ShortID})
	require.NoError(t, err)
	out := make(map[string]*models.Payout)
	for _, p := range rows {
		out[p.PartnerID] = p
	}
	return out
}

func adjustmentIDs(adjs []*models.Adjustment) []string {
	ids := make([]string, len(adjs))
	for i, a := range adjs {
		ids[i] = a.ID
	}
	return ids
}

func TestSubmitAndConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	submitted, err := f.workflow.Submit(ctx, workflow.SubmitRequest{
		DealID:       f.deal.ShortID,
		Participants: raws("recA", "50", "recB", "50"),
		Note:         "rebalance",
		Actor:        "ops@example.com",
	})
	require.NoError(t, err)
	require.Len(t, submitted.Adjustments, 2)
	assert.NotEmpty(t, submitted.GroupID)

	a, b := submitted.Adjustments[0], submitted.Adjustments[1]
	assert.Equal(t, "recA", a.PartnerID)
	assert.Equal(t, "Alice", a.PartnerName, "name carried over from the deal")
	assert.True(t, a.Delta.Equal(dec("-100")), "A delta = %s", a.Delta)
	assert.Equal(t, models.KindClawback, a.Kind)
	assert.True(t, b.Delta.Equal(dec("100")), "B delta = %s", b.Delta)
	assert.Equal(t, models.KindAdditional, b.Kind)

	t.Run("submit updates the deal but not payouts", func(t *testing.T) {
		deal, err := f.store.GetDeal(ctx, f.deal.ID)
		require.NoError(t, err)
		p, _ := deal.Participant("recA")
		assert.True(t, p.Split.Equal(dec("50")))

		payouts := f.payoutsByPartner(t)
		assert.True(t, payouts["recA"].Amount.Equal(dec("600")))
		assert.Equal(t, models.AssignmentPending, payouts["recA"].Status)
		assert.Empty(t, f.recorder.Events())
	})

	t.Run("confirm applies splits to payouts", func(t *testing.T) {
		result, err := f.workflow.Confirm(ctx, adjustmentIDs(submitted.Adjustments), "ops@example.com")
		require.NoError(t, err)
		assert.Equal(t, 2, result.Confirmed)
		assert.Empty(t, result.Errors)
		assert.Equal(t, 2, result.PayoutsUpdated)

		payouts := f.payoutsByPartner(t)
		assert.True(t, payouts["recA"].Split.Equal(dec("50")))
		assert.True(t, payouts["recA"].Amount.Equal(dec("500")), "A amount = %s", payouts["recA"].Amount)
		assert.True(t, payouts["recB"].Amount.Equal(dec("500")), "B amount = %s", payouts["recB"].Amount)
		assert.Equal(t, models.AssignmentConfirmed, payouts["recB"].Status)

		for _, id := range adjustmentIDs(submitted.Adjustments) {
			adj, err := f.store.GetAdjustment(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, models.AdjustmentConfirmed, adj.Status)
			assert.Equal(t, clock.Unix(), adj.ResolvedAt)
		}
		assert.ElementsMatch(t, f.payoutIDs, f.recorder.PayoutIDs())
	})

	t.Run("confirming again skips", func(t *testing.T) {
		result, err := f.workflow.Confirm(ctx, adjustmentIDs(submitted.Adjustments), "ops@example.com")
		require.NoError(t, err)
		assert.Zero(t, result.Confirmed)
		assert.Equal(t, 2, result.Skipped)
	})

	t.Run("audit history", func(t *testing.T) {
		entries, err := f.store.ListAudit(ctx, storage.AuditFilter{EntityType: models.EntityAdjustment})
		require.NoError(t, err)
		assert.Len(t, entries, 3, "one submit entry plus one per confirmed record")
	})
}

func TestSubmit_SplitSumGate(t *testing.T) {
	tests := []struct {
		name    string
		splits  []string
		wantErr bool
	}{
		{"sum of 99 rejected", []string{"recA", "59", "recB", "40"}, true},
		{"sum of 101 rejected", []string{"recA", "61", "recB", "40"}, true},
		{"sum of 100 accepted", []string{"recA", "70", "recB", "30"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.workflow.Submit(context.Background(), workflow.SubmitRequest{
				DealID:       f.deal.ID,
				Participants: raws(tt.splits...),
			})
			if tt.wantErr {
				assert.ErrorIs(t, err, calculator.ErrSplitSum)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSubmit_MissingPartnerIdentifierWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.workflow.Submit(ctx, workflow.SubmitRequest{
		DealID: f.deal.ID,
		Participants: []participant.Raw{
			{"partner_id": "recA", "split_pct": 50},
			{"name": "Carol", "split_pct": 50},
		},
	})
	require.ErrorIs(t, err, participant.ErrMissingPartnerIdentifier)
	assert.Contains(t, err.Error(), "Carol")

	deal, err := f.store.GetDeal(ctx, f.deal.ID)
	require.NoError(t, err)
	assert.Len(t, deal.Participants, 2)
	p, _ := deal.Participant("recA")
	assert.True(t, p.Split.Equal(dec("60")))

	records, err := f.store.ListAdjustments(ctx, storage.AdjustmentFilter{DealID: f.deal.ID})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSubmit_NoChange(t *testing.T) {
	f := newFixture(t)
	result, err := f.workflow.Submit(context.Background(), workflow.SubmitRequest{
		DealID:       f.deal.ID,
		Participants: raws("recA", "60", "recB", "40"),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Adjustments)
	assert.Empty(t, result.GroupID)

	_, err = f.workflow.Submit(context.Background(), workflow.SubmitRequest{DealID: f.deal.ID})
	assert.ErrorIs(t, err, workflow.ErrEmptyTargets)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	submitted, err := f.workflow.Submit(ctx, workflow.SubmitRequest{
		DealID:       f.deal.ID,
		Participants: raws("recA", "50", "recB", "50"),
	})
	require.NoError(t, err)
	before := f.payoutsByPartner(t)

	result, err := f.workflow.Reject(ctx, adjustmentIDs(submitted.Adjustments), "wrong deal", "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rejected)
	assert.Empty(t, result.Errors)

	for _, id := range adjustmentIDs(submitted.Adjustments) {
		adj, err := f.store.GetAdjustment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.AdjustmentRejected, adj.Status)
		assert.Equal(t, "wrong deal", adj.Reason)
		assert.Equal(t, clock.Unix(), adj.ResolvedAt)
	}

	after := f.payoutsByPartner(t)
	for partner, p := range before {
		assert.True(t, p.Amount.Equal(after[partner].Amount), "payout for %s must not change", partner)
		assert.Equal(t, p.Status, after[partner].Status)
	}
	assert.Empty(t, f.recorder.Events())

	deal, err := f.store.GetDeal(ctx, f.deal.ID)
	require.NoError(t, err)
	a, _ := deal.Participant("recA")
	assert.True(t, a.Split.Equal(dec("60")), "deal split restored, got %s", a.Split)
}

func TestEmptyTargetsAreNoOps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	confirmed, err := f.workflow.Confirm(ctx, nil, "ops")
	require.NoError(t, err)
	assert.Equal(t, workflow.TransitionResult{}, *confirmed)

	rejected, err := f.workflow.Reject(ctx, []string{}, "", "ops")
	require.NoError(t, err)
	assert.Equal(t, workflow.TransitionResult{}, *rejected)
}

func TestEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	submitted, err := f.workflow.Submit(ctx, workflow.SubmitRequest{
		DealID:       f.deal.ID,
		Participants: raws("recA", "50", "recB", "50"),
	})
	require.NoError(t, err)

	edited, err := f.workflow.Edit(ctx, workflow.EditRequest{
		GroupID:      submitted.GroupID,
		Participants: raws("recA", "70", "recB", "30"),
		Note:         "typo",
	})
	require.NoError(t, err)
	assert.Equal(t, submitted.GroupID, edited.GroupID)
	require.Len(t, edited.Adjustments, 2)
	assert.True(t, edited.Adjustments[0].OldSplit.Equal(dec("60")), "baseline is the pre-submit split")
	assert.True(t, edited.Adjustments[0].Delta.Equal(dec("100")))

	records, err := f.store.ListAdjustments(ctx, storage.AdjustmentFilter{GroupID: submitted.GroupID})
	require.NoError(t, err)
	assert.Len(t, records, 2, "edit replaces the pending records")

	deal, err := f.store.GetDeal(ctx, f.deal.ID)
	require.NoError(t, err)
	a, _ := deal.Participant("recA")
	assert.True(t, a.Split.Equal(dec("70")))

	_, err = f.workflow.Confirm(ctx, []string{records[0].ID}, "ops")
	require.NoError(t, err)
	_, err = f.workflow.Edit(ctx, workflow.EditRequest{GroupID: submitted.GroupID, Participants: raws("recA", "60", "recB", "40")})
	assert.ErrorIs(t, err, workflow.ErrNotPending)

	_, err = f.workflow.Edit(ctx, workflow.EditRequest{GroupID: "missing", Participants: raws("recA", "60", "recB", "40")})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
