package service

import (
	"context"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/residuals/internal/middleware"
	"github.com/mmynk/residuals/internal/models"
	"github.com/mmynk/residuals/internal/storage"
	"github.com/mmynk/residuals/internal/workflow"
	"github.com/mmynk/residuals/pkg/api"
)

// AdjustmentService implements the Connect AdjustmentService on top of the
// adjustment workflow.
type AdjustmentService struct {
	workflow *workflow.Workflow
}

var _ api.AdjustmentServiceHandler = (*AdjustmentService)(nil)

// NewAdjustmentService creates a new AdjustmentService.
func NewAdjustmentService(w *workflow.Workflow) *AdjustmentService {
	return &AdjustmentService{workflow: w}
}

func (s *AdjustmentService) Submit(ctx context.Context, req *connect.Request[api.SubmitAdjustmentRequest]) (*connect.Response[api.SubmitAdjustmentResponse], error) {
	if req.Msg.DealID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%w: deal_id is required", errInvalidRequest))
	}
	slog.Info("Submitting adjustment", "deal_id", req.Msg.DealID, "participants", len(req.Msg.Participants))

	result, err := s.workflow.Submit(ctx, workflow.SubmitRequest{
		DealID:       req.Msg.DealID,
		Participants: toRaws(req.Msg.Participants),
		Note:         req.Msg.Note,
		Actor:        middleware.GetOperatorID(ctx),
	})
	if err != nil {
		return nil, toConnectError("Submit", err)
	}
	return connect.NewResponse(toSubmitResponse(result)), nil
}

func (s *AdjustmentService) Edit(ctx context.Context, req *connect.Request[api.EditAdjustmentRequest]) (*connect.Response[api.SubmitAdjustmentResponse], error) {
	if req.Msg.GroupID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%w: group_id is required", errInvalidRequest))
	}
	slog.Info("Editing adjustment group", "group_id", req.Msg.GroupID)

	result, err := s.workflow.Edit(ctx, workflow.EditRequest{
		GroupID:      req.Msg.GroupID,
		Participants: toRaws(req.Msg.Participants),
		Note:         req.Msg.Note,
		Actor:        middleware.GetOperatorID(ctx),
	})
	if err != nil {
		return nil, toConnectError("Edit", err)
	}
	return connect.NewResponse(toSubmitResponse(result)), nil
}

func toSubmitResponse(r *workflow.SubmitResult) *api.SubmitAdjustmentResponse {
	return &api.SubmitAdjustmentResponse{
		Success:         true,
		GroupID:         r.GroupID,
		Created:         len(r.Adjustments),
		Adjustments:     toAPIAdjustments(r.Adjustments),
		UnknownPartners: r.UnknownPartners,
	}
}

func (s *AdjustmentService) Confirm(ctx context.Context, req *connect.Request[api.ConfirmAdjustmentsRequest]) (*connect.Response[api.TransitionResponse], error) {
	result, err := s.workflow.Confirm(ctx, req.Msg.IDs, middleware.GetOperatorID(ctx))
	if err != nil {
		return nil, toConnectError("Confirm", err)
	}
	return connect.NewResponse(toTransitionResponse(result)), nil
}

func (s *AdjustmentService) Reject(ctx context.Context, req *connect.Request[api.RejectAdjustmentsRequest]) (*connect.Response[api.TransitionResponse], error) {
	result, err := s.workflow.Reject(ctx, req.Msg.IDs, req.Msg.Reason, middleware.GetOperatorID(ctx))
	if err != nil {
		return nil, toConnectError("Reject", err)
	}
	return connect.NewResponse(toTransitionResponse(result)), nil
}

func toTransitionResponse(r *workflow.TransitionResult) *api.TransitionResponse {
	return &api.TransitionResponse{
		Success:        len(r.Errors) == 0,
		Confirmed:      r.Confirmed,
		Rejected:       r.Rejected,
		Skipped:        r.Skipped,
		PayoutsUpdated: r.PayoutsUpdated,
		Errors:         r.Errors,
		Warnings:       r.Warnings,
	}
}

func (s *AdjustmentService) List(ctx context.Context, req *connect.Request[api.ListAdjustmentsRequest]) (*connect.Response[api.ListAdjustmentsResponse], error) {
	filter, err := adjustmentFilter(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	records, err := s.workflow.List(ctx, filter)
	if err != nil {
		return nil, toConnectError("List", err)
	}
	return connect.NewResponse(&api.ListAdjustmentsResponse{Adjustments: toAPIAdjustments(records)}), nil
}

func (s *AdjustmentService) ListGroups(ctx context.Context, req *connect.Request[api.ListAdjustmentsRequest]) (*connect.Response[api.ListAdjustmentGroupsResponse], error) {
	filter, err := adjustmentFilter(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	groups, err := s.workflow.ListGroups(ctx, filter)
	if err != nil {
		return nil, toConnectError("ListGroups", err)
	}
	return connect.NewResponse(&api.ListAdjustmentGroupsResponse{Groups: toAPIGroups(groups)}), nil
}

func adjustmentFilter(msg *api.ListAdjustmentsRequest) (storage.AdjustmentFilter, error) {
	status := models.AdjustmentStatus(msg.Status)
	switch status {
	case "", models.AdjustmentPending, models.AdjustmentConfirmed, models.AdjustmentRejected:
	default:
		return storage.AdjustmentFilter{}, fmt.Errorf("%w: unknown status %q", errInvalidRequest, msg.Status)
	}
	if msg.Offset < 0 || msg.Limit < 0 {
		return storage.AdjustmentFilter{}, fmt.Errorf("%w: offset and limit must not be negative", errInvalidRequest)
	}
	return storage.AdjustmentFilter{
		DealID:  msg.DealID,
		GroupID: msg.GroupID,
		Status:  status,
		Offset:  msg.Offset,
		Limit:   msg.Limit,
	}, nil
}
