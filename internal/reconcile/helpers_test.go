package reconcile_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/residuals/internal/ledger"
	"github.com/mmynk/residuals/internal/ledger/ledgertest"
	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/reconcile"
	"github.com/mmynk/residuals/internal/storage/sqlite"
)

type fixture struct {
	store  *sqlite.SQLiteStore
	ledger *ledgertest.Ledger
	rec    *reconcile.Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fake := ledgertest.New()
	return &fixture{
		store:  store,
		ledger: fake,
		rec:    reconcile.New(store, ledger.NewSyncClient(fake, 0)),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func participants(pairs ...string) []models.Participant {
	var out []models.Participant
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.Participant{PartnerID: pairs[i], Name: "Partner " + pairs[i], Split: dec(pairs[i+1])})
	}
	return out
}

// seedDeal creates a deal with one event per base amount and materializes
// its payouts.
func (f *fixture) seedDeal(t *testing.T, mid string, parts []models.Participant, bases ...string) (*models.Deal, []*models.Payout) {
	t.Helper()
	ctx := context.Background()

	deal := &models.Deal{MID: mid, MerchantName: "Merchant " + mid, Category: models.CategoryResidual, Participants: parts}
	var events []*models.Event
	total := decimal.Zero
	for i, b := range bases {
		events = append(events, &models.Event{
			MID:         mid,
			Month:       []string{"2024-01", "2024-02", "2024-03"}[i%3],
			Category:    models.CategoryResidual,
			NetResidual: dec(b),
		})
		total = total.Add(dec(b))
	}
	deal.NetResidual = total
	require.NoError(t, f.store.CreateDeal(ctx, deal))
	require.NoError(t, f.store.CreateEvents(ctx, events))

	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
		ev.DealID = deal.ID
	}
	require.NoError(t, f.store.AssignEvents(ctx, ids, deal.ID, mid))

	payouts, err := f.rec.MaterializeEvents(ctx, deal, events)
	require.NoError(t, err)
	return deal, payouts
}

func payoutIDs(payouts []*models.Payout) []string {
	ids := make([]string, len(payouts))
	for i, p := range payouts {
		ids[i] = p.ID
	}
	return ids
}
