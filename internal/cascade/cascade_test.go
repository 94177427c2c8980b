package cascade_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/residuals/internal/calculator"
	"github.com/mmynk/residuals/internal/cascade"
	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/outbox"
	"github.com/mmynk/residuals/internal/participant"
	"github.com/mmynk/residuals/internal/reconcile"
	"github.com/mmynk/residuals/internal/storage"
	"github.com/mmynk/residuals/internal/storage/sqlite"
)

type fixture struct {
	store    *sqlite.SQLiteStore
	rec      *reconcile.Reconciler
	recorder *outbox.Recorder
	updater  *cascade.Updater
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rec := reconcile.New(store, nil)
	recorder := &outbox.Recorder{}
	return &fixture{
		store:    store,
		rec:      rec,
		recorder: recorder,
		updater:  cascade.New(store, rec, recorder),
	}
}

func (f *fixture) seedDeal(t *testing.T, mid, merchant string, months ...string) (*models.Deal, []*models.Event) {
	t.Helper()
	ctx := context.Background()

	deal := &models.Deal{
		MID:          mid,
		MerchantName: merchant,
		Category:     models.CategoryResidual,
		Participants: []models.Participant{
			{PartnerID: "recA", Name: "Alice", Split: decimal.NewFromInt(60)},
			{PartnerID: "recB", Name: "Bob", Split: decimal.NewFromInt(40)},
		},
	}
	require.NoError(t, f.store.CreateDeal(ctx, deal))

	var events []*models.Event
	var ids []string
	for _, m := range months {
		events = append(events, &models.Event{MID: mid, Month: m, Category: models.CategoryResidual, NetResidual: decimal.NewFromInt(100)})
	}
	require.NoError(t, f.store.CreateEvents(ctx, events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
		ev.DealID = deal.ID
	}
	require.NoError(t, f.store.AssignEvents(ctx, ids, deal.ID, mid))

	_, err := f.rec.MaterializeEvents(ctx, deal, events)
	require.NoError(t, err)
	return deal, events
}

func (f *fixture) payouts(t *testing.T, dealShortID string) []*models.Payout {
	t.Helper()
	rows, err := storage.AllPayouts(context.Background(), f.store, storage.PayoutFilter{DealShortID: dealShortID})
	require.NoError(t, err)
	return rows
}

func TestChangeMID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, _ := f.seedDeal(t, "12345", "Joe's Pizza", "2024-01", "2024-02")
	e, _ := f.seedDeal(t, "55555", "Corner Deli", "2024-01")

	t.Run("cascades to payouts and events", func(t *testing.T) {
		result, err := f.updater.ChangeMID(ctx, d.ID, "67890", "ops")
		require.NoError(t, err)
		assert.Equal(t, 4, result.PayoutsUpdated)
		assert.Equal(t, 2, result.EventsUpdated)

		for _, p := range f.payouts(t, d.ShortID) {
			assert.Equal(t, "67890", p.MID)
		}
		events, err := f.store.ListEventsByDeal(ctx, d.ID)
		require.NoError(t, err)
		for _, ev := range events {
			assert.Equal(t, "67890", ev.MID)
		}
		for _, p := range f.payouts(t, e.ShortID) {
			assert.Equal(t, "55555", p.MID, "other deals untouched")
		}
		assert.Len(t, f.recorder.PayoutIDs(), 4)
	})

	t.Run("conflict names the owning deal and writes nothing", func(t *testing.T) {
		_, err := f.updater.ChangeMID(ctx, d.ShortID, "55555", "ops")
		require.ErrorIs(t, err, cascade.ErrMIDConflict)

		var conflict *cascade.MIDConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, e.ShortID, conflict.DealShortID)
		assert.Contains(t, err.Error(), "Corner Deli")

		deal, err := f.store.GetDeal(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, "67890", deal.MID)
		for _, p := range f.payouts(t, d.ShortID) {
			assert.Equal(t, "67890", p.MID)
		}
	})

	t.Run("same MID is a no-op", func(t *testing.T) {
		result, err := f.updater.ChangeMID(ctx, d.ID, " 67890 ", "ops")
		require.NoError(t, err)
		assert.Zero(t, result.PayoutsUpdated)
	})

	t.Run("leading zeros are kept", func(t *testing.T) {
		_, err := f.updater.ChangeMID(ctx, d.ID, "0067890", "ops")
		require.NoError(t, err)
		deal, err := f.store.GetDeal(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, "0067890", deal.MID)
	})

	t.Run("empty MID rejected", func(t *testing.T) {
		_, err := f.updater.ChangeMID(ctx, d.ID, "  ", "ops")
		assert.ErrorIs(t, err, cascade.ErrEmptyMID)
	})
}

func TestDeleteDeal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, events := f.seedDeal(t, "777", "Bakery", "2024-01", "2024-02", "2024-03")
	keep, _ := f.seedDeal(t, "888", "Florist", "2024-01")

	result, err := f.updater.DeleteDeal(ctx, d.ShortID, "ops")
	require.NoError(t, err)
	assert.Equal(t, 6, result.PayoutsDeleted)
	assert.Equal(t, 3, result.EventsDeleted)

	_, err = f.store.GetDeal(ctx, d.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.store.GetEvent(ctx, events[0].ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, f.payouts(t, d.ShortID))
	assert.Len(t, f.payouts(t, keep.ShortID), 2)

	assert.Len(t, f.recorder.PayoutIDs(), 6, "deleted payouts are published for orphan reporting")

	audit, err := f.store.ListAudit(ctx, storage.AuditFilter{EntityID: d.ID})
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, models.ActionDelete, audit[0].Action)

	_, err = f.updater.DeleteDeal(ctx, d.ID, "ops")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReplaceParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, _ := f.seedDeal(t, "321", "Garage", "2024-01", "2024-02")

	_, err := f.updater.ReplaceParticipants(ctx, d.ID, []participant.Raw{
		{"partner_id": "recA", "split_pct": 50},
		{"partner_id": "recC", "split_pct": 45},
	}, "ops")
	require.ErrorIs(t, err, calculator.ErrSplitSum)

	_, err = f.updater.ReplaceParticipants(ctx, d.ID, []participant.Raw{
		{"partner_id": "recA", "split_pct": 50},
		{"name": "Nobody", "split_pct": 50},
	}, "ops")
	require.ErrorIs(t, err, participant.ErrMissingPartnerIdentifier)

	result, err := f.updater.ReplaceParticipants(ctx, d.ID, []participant.Raw{
		{"agent_id": "recA", "agent_name": "Alice", "percentage": "50"},
		{"partnerId": "recC", "partnerName": "Carol", "split": 50},
	}, "ops")
	require.NoError(t, err)
	assert.Equal(t, 4, result.PayoutsDeleted)
	assert.Equal(t, 4, result.PayoutsCreated)

	rows := f.payouts(t, d.ShortID)
	require.Len(t, rows, 4)
	for _, p := range rows {
		assert.NotEqual(t, "recB", p.PartnerID)
		assert.True(t, p.Amount.Equal(decimal.NewFromInt(50)), "amount = %s", p.Amount)
	}
	assert.Len(t, f.recorder.PayoutIDs(), 8)
}

type failingRebuilder struct{}

func (failingRebuilder) RebuildDealPayouts(context.Context, *models.Deal) (*reconcile.Rebuild, error) {
	return nil, errors.New("disk full")
}

func TestReplaceParticipants_FailedRebuildRestoresDeal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, _ := f.seedDeal(t, "322", "Bakery", "2024-01")
	updater := cascade.New(f.store, failingRebuilder{}, f.recorder)

	_, err := updater.ReplaceParticipants(ctx, d.ID, []participant.Raw{
		{"partner_id": "recC", "split_pct": 100},
	}, "ops")
	require.Error(t, err)

	got, err := f.store.GetDeal(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, got.Participants, 2)
	assert.Equal(t, "recA", got.Participants[0].PartnerID)
	assert.Equal(t, "recB", got.Participants[1].PartnerID)
	assert.Len(t, f.payouts(t, d.ShortID), 2)
	assert.Empty(t, f.recorder.PayoutIDs())
}
