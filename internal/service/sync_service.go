package service

import (
	"context"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/residuals/internal/reconcile"
	"github.com/mmynk/residuals/pkg/api"
)

// SyncService exposes on-demand ledger reconciliation and the operator
// pathway for orphaned ledger records.
type SyncService struct {
	reconciler *reconcile.Reconciler
}

var _ api.SyncServiceHandler = (*SyncService)(nil)

// NewSyncService creates a new SyncService.
func NewSyncService(rec *reconcile.Reconciler) *SyncService {
	return &SyncService{reconciler: rec}
}

func scopeOf(msg *api.SyncRequest) reconcile.Scope {
	return reconcile.Scope{PayoutIDs: msg.PayoutIDs, MID: msg.MID}
}

func (s *SyncService) SyncNow(ctx context.Context, req *connect.Request[api.SyncRequest]) (*connect.Response[api.SyncResponse], error) {
	scope := scopeOf(req.Msg)
	slog.Info("Ledger sync requested", "scope", scope.String())

	result, err := s.reconciler.Sync(ctx, scope)
	if err != nil {
		return nil, toConnectError("SyncNow", err)
	}
	return connect.NewResponse(toSyncResponse(result)), nil
}

// ListOrphans plans a sync without writing and returns the ledger records
// that have no local payout.
func (s *SyncService) ListOrphans(ctx context.Context, req *connect.Request[api.SyncRequest]) (*connect.Response[api.ListOrphansResponse], error) {
	plan, err := s.reconciler.Plan(ctx, scopeOf(req.Msg))
	if err != nil {
		return nil, toConnectError("ListOrphans", err)
	}
	return connect.NewResponse(&api.ListOrphansResponse{Orphans: toAPIOrphans(plan.Orphans)}), nil
}

func (s *SyncService) DeleteOrphans(ctx context.Context, req *connect.Request[api.DeleteOrphansRequest]) (*connect.Response[api.DeleteOrphansResponse], error) {
	if len(req.Msg.RecordIDs) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%w: no record IDs given", errInvalidRequest))
	}
	result, err := s.reconciler.DeleteOrphans(ctx, req.Msg.RecordIDs)
	if err != nil {
		return nil, toConnectError("DeleteOrphans", err)
	}
	return connect.NewResponse(&api.DeleteOrphansResponse{
		Success: len(result.Errors) == 0,
		Deleted: result.Deleted,
		Errors:  result.Errors,
	}), nil
}
