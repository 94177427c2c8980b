package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/reconcile"
	"github.com/mmynk/residuals/internal/storage"
)

var errDiskFull = errors.New("disk full")

// failingInserts refuses payout inserts, including inside transactions.
type failingInserts struct {
	storage.Store
}

func (s failingInserts) CreatePayouts(context.Context, []*models.Payout) error {
	return errDiskFull
}

func (s failingInserts) InTx(ctx context.Context, fn func(tx storage.Store) error) error {
	return s.Store.InTx(ctx, func(tx storage.Store) error {
		return fn(failingInserts{tx})
	})
}

func byPartner(payouts []*models.Payout) map[string]*models.Payout {
	out := make(map[string]*models.Payout, len(payouts))
	for _, p := range payouts {
		out[p.PartnerID] = p
	}
	return out
}

func TestMaterializeEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deal, payouts := f.seedDeal(t, "00042", participants("recA", "60", "recB", "40", "recC", "0"), "1000", "250")
	require.Len(t, payouts, 4, "one row per active participant per event")

	for _, p := range payouts {
		assert.Equal(t, models.AssignmentPending, p.Status)
		assert.Equal(t, "00042", p.MID)
		assert.True(t, p.Amount.Equal(p.BaseAmount.Mul(p.Split).Div(dec("100"))))
		assert.NotEqual(t, "recC", p.PartnerID)
	}

	events, err := f.store.ListEventsByDeal(ctx, deal.ID)
	require.NoError(t, err)
	again, err := f.rec.MaterializeEvents(ctx, deal, events)
	require.NoError(t, err)
	assert.Empty(t, again, "existing (event, partner) pairs are not duplicated")
}

func TestCascadeParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deal, _ := f.seedDeal(t, "777", participants("recA", "60", "recB", "40"), "1000")

	t.Run("split change updates rows in place", func(t *testing.T) {
		deal.Participants = participants("recA", "50", "recB", "50")
		touched, err := f.rec.CascadeParticipants(ctx, deal)
		require.NoError(t, err)
		assert.Len(t, touched, 2)

		rows, err := storage.AllPayouts(ctx, f.store, storage.PayoutFilter{DealShortID: deal.ShortID})
		require.NoError(t, err)
		got := byPartner(rows)
		assert.True(t, got["recA"].Amount.Equal(dec("500")), "A amount = %s", got["recA"].Amount)
		assert.True(t, got["recB"].Amount.Equal(dec("500")), "B amount = %s", got["recB"].Amount)
	})

	t.Run("removed participant is zeroed and new one added", func(t *testing.T) {
		deal.Participants = participants("recA", "50", "recC", "50")
		_, err := f.rec.CascadeParticipants(ctx, deal)
		require.NoError(t, err)

		rows, err := storage.AllPayouts(ctx, f.store, storage.PayoutFilter{DealShortID: deal.ShortID})
		require.NoError(t, err)
		require.Len(t, rows, 3)
		got := byPartner(rows)
		assert.True(t, got["recB"].Split.IsZero())
		assert.True(t, got["recB"].Amount.IsZero())
		assert.True(t, got["recC"].Amount.Equal(dec("500")))
	})

	t.Run("unchanged participants touch nothing", func(t *testing.T) {
		touched, err := f.rec.CascadeParticipants(ctx, deal)
		require.NoError(t, err)
		assert.Empty(t, touched)
	})
}

func TestCascadeParticipants_LegacyRowsMatchByClosestSplit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deal := &models.Deal{MID: "9", Category: models.CategoryBonus, Participants: participants("recA", "70", "recB", "30")}
	require.NoError(t, f.store.CreateDeal(ctx, deal))

	legacy := []*models.Payout{
		{DealShortID: deal.ShortID, EventID: "ev1", MID: "9", PartnerName: "Old A", Split: dec("65"), Amount: dec("65"), BaseAmount: dec("100")},
		{DealShortID: deal.ShortID, EventID: "ev1", MID: "9", PartnerName: "Old B", Split: dec("35"), Amount: dec("35"), BaseAmount: dec("100")},
	}
	require.NoError(t, f.store.CreatePayouts(ctx, legacy))

	_, err := f.rec.CascadeParticipants(ctx, deal)
	require.NoError(t, err)

	a, err := f.store.GetPayout(ctx, legacy[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "recA", a.PartnerID, "65 percent row adopts the 70 percent participant")
	assert.True(t, a.Amount.Equal(dec("70")))

	b, err := f.store.GetPayout(ctx, legacy[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "recB", b.PartnerID)
}

func TestRebuildDealPayouts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deal, payouts := f.seedDeal(t, "555", participants("recA", "50", "recB", "50"), "200", "400")
	_, err := f.store.SetPayoutStatus(ctx, payoutIDs(payouts), models.AssignmentConfirmed)
	require.NoError(t, err)

	deal.Participants = participants("recA", "25", "recB", "25", "recC", "50")
	rebuild, err := f.rec.RebuildDealPayouts(ctx, deal)
	require.NoError(t, err)
	assert.Len(t, rebuild.Removed, 4)
	assert.Len(t, rebuild.Created, 6)
	assert.Len(t, rebuild.ChangedIDs(), 10)

	rows, err := storage.AllPayouts(ctx, f.store, storage.PayoutFilter{DealShortID: deal.ShortID})
	require.NoError(t, err)
	require.Len(t, rows, 6)
	for _, p := range rows {
		assert.Equal(t, models.AssignmentConfirmed, p.Status)
		assert.True(t, p.Amount.Equal(p.BaseAmount.Mul(p.Split).Div(dec("100"))))
	}
}

func TestRebuildDealPayouts_FailedInsertKeepsPayouts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deal, payouts := f.seedDeal(t, "556", participants("recA", "50", "recB", "50"), "200")
	deal.Participants = participants("recA", "100")

	rec := reconcile.New(failingInserts{f.store}, nil)
	_, err := rec.RebuildDealPayouts(ctx, deal)
	require.ErrorIs(t, err, errDiskFull)

	rows, err := storage.AllPayouts(ctx, f.store, storage.PayoutFilter{DealShortID: deal.ShortID})
	require.NoError(t, err)
	assert.ElementsMatch(t, payoutIDs(payouts), payoutIDs(rows))
}
