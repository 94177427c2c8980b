package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/residuals/internal/cascade"
	"github.com/mmynk/residuals/internal/ledger"
	"github.com/mmynk/residuals/internal/ledger/ledgertest"
	"github.com/mmynk/residuals/internal/middleware"
	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/outbox"
	"github.com/mmynk/residuals/internal/participant"
	"github.com/mmynk/residuals/internal/reconcile"
	"github.com/mmynk/residuals/internal/storage/sqlite"
	"github.com/mmynk/residuals/internal/workflow"
	"github.com/mmynk/residuals/pkg/api"
)

// testAuthInterceptor returns a Connect interceptor that sets a test operator in the context.
func testAuthInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			return next(middleware.WithOperator(ctx, "ops-test", "ops@example.com"), req)
		}
	}
}

type testEnv struct {
	store       *sqlite.SQLiteStore
	ledger      *ledgertest.Ledger
	deals       *api.DealServiceClient
	adjustments *api.AdjustmentServiceClient
	sync        *api.SyncServiceClient
}

// setupTestServer wires every service against a temp SQLite database. With
// withLedger, payout changes sync to an in-memory ledger.
func setupTestServer(t *testing.T, withLedger bool) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := &testEnv{store: store}
	var syncClient *ledger.SyncClient
	if withLedger {
		env.ledger = ledgertest.New()
		syncClient = ledger.NewSyncClient(env.ledger, 0)
	}

	rec := reconcile.New(store, syncClient)
	publisher := outbox.NewInline(rec)
	directory := participant.NewDirectory(store, participant.NewCache[string, *models.Partner](16, time.Minute, time.Now))
	flow := workflow.New(store, rec, publisher, workflow.WithDirectory(directory))
	updater := cascade.New(store, rec, publisher, cascade.WithDirectory(directory))

	authInterceptor := connect.WithInterceptors(testAuthInterceptor())
	mux := http.NewServeMux()
	mux.Handle(api.NewDealServiceHandler(NewDealService(store, rec, updater, publisher, directory), authInterceptor))
	mux.Handle(api.NewAdjustmentServiceHandler(NewAdjustmentService(flow), authInterceptor))
	mux.Handle(api.NewSyncServiceHandler(NewSyncService(rec), authInterceptor))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	env.deals = api.NewDealServiceClient(http.DefaultClient, server.URL)
	env.adjustments = api.NewAdjustmentServiceClient(http.DefaultClient, server.URL)
	env.sync = api.NewSyncServiceClient(http.DefaultClient, server.URL)
	return env
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedDeal creates one event per net residual for mid and assigns them to a
// new deal with the given participants. It returns the deal's short ID.
func (e *testEnv) seedDeal(t *testing.T, mid string, participants []map[string]any, residuals ...string) string {
	t.Helper()
	ctx := context.Background()

	inputs := make([]api.EventInput, len(residuals))
	for i, r := range residuals {
		inputs[i] = api.EventInput{MID: mid, MerchantName: "Merchant " + mid, Month: "2024-04", NetResidual: dec(r)}
	}
	created, err := e.deals.CreateEvents(ctx, connect.NewRequest(&api.CreateEventsRequest{Events: inputs}))
	require.NoError(t, err)

	assigned, err := e.deals.AssignEvents(ctx, connect.NewRequest(&api.AssignEventsRequest{
		EventIDs:     created.Msg.EventIDs,
		Participants: participants,
	}))
	require.NoError(t, err)
	require.True(t, assigned.Msg.DealCreated)
	return assigned.Msg.DealShortID
}

func split(partnerID string, pct any) map[string]any {
	return map[string]any{"partner_id": partnerID, "split_pct": pct}
}

func codeOf(t *testing.T, err error) connect.Code {
	t.Helper()
	require.Error(t, err)
	return connect.CodeOf(err)
}
