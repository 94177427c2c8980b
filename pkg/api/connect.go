package api

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// Fully-qualified service names.
const (
	AdjustmentServiceName = "residuals.v1.AdjustmentService"
	DealServiceName       = "residuals.v1.DealService"
	SyncServiceName       = "residuals.v1.SyncService"
)

// Procedure paths.
const (
	AdjustmentServiceSubmitProcedure     = "/" + AdjustmentServiceName + "/Submit"
	AdjustmentServiceEditProcedure       = "/" + AdjustmentServiceName + "/Edit"
	AdjustmentServiceConfirmProcedure    = "/" + AdjustmentServiceName + "/Confirm"
	AdjustmentServiceRejectProcedure     = "/" + AdjustmentServiceName + "/Reject"
	AdjustmentServiceListProcedure       = "/" + AdjustmentServiceName + "/List"
	AdjustmentServiceListGroupsProcedure = "/" + AdjustmentServiceName + "/ListGroups"

	DealServiceCreateEventsProcedure       = "/" + DealServiceName + "/CreateEvents"
	DealServiceAssignEventsProcedure       = "/" + DealServiceName + "/AssignEvents"
	DealServiceGetDealProcedure            = "/" + DealServiceName + "/GetDeal"
	DealServiceListDealsProcedure          = "/" + DealServiceName + "/ListDeals"
	DealServiceUpdateParticipantsProcedure = "/" + DealServiceName + "/UpdateParticipants"
	DealServiceChangeMIDProcedure          = "/" + DealServiceName + "/ChangeMID"
	DealServiceDeleteDealProcedure         = "/" + DealServiceName + "/DeleteDeal"
	DealServiceConfirmDealProcedure        = "/" + DealServiceName + "/ConfirmDeal"
	DealServiceMarkPaidProcedure           = "/" + DealServiceName + "/MarkPaid"
	DealServiceListAuditProcedure          = "/" + DealServiceName + "/ListAudit"
	DealServiceUpsertPartnerProcedure      = "/" + DealServiceName + "/UpsertPartner"

	SyncServiceSyncNowProcedure       = "/" + SyncServiceName + "/SyncNow"
	SyncServiceListOrphansProcedure   = "/" + SyncServiceName + "/ListOrphans"
	SyncServiceDeleteOrphansProcedure = "/" + SyncServiceName + "/DeleteOrphans"
)

func handle[Req, Res any](mux *http.ServeMux, procedure string, fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error), opts []connect.HandlerOption) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
}

// AdjustmentServiceHandler is implemented by the adjustment workflow service.
type AdjustmentServiceHandler interface {
	Submit(context.Context, *connect.Request[SubmitAdjustmentRequest]) (*connect.Response[SubmitAdjustmentResponse], error)
	Edit(context.Context, *connect.Request[EditAdjustmentRequest]) (*connect.Response[SubmitAdjustmentResponse], error)
	Confirm(context.Context, *connect.Request[ConfirmAdjustmentsRequest]) (*connect.Response[TransitionResponse], error)
	Reject(context.Context, *connect.Request[RejectAdjustmentsRequest]) (*connect.Response[TransitionResponse], error)
	List(context.Context, *connect.Request[ListAdjustmentsRequest]) (*connect.Response[ListAdjustmentsResponse], error)
	ListGroups(context.Context, *connect.Request[ListAdjustmentsRequest]) (*connect.Response[ListAdjustmentGroupsResponse], error)
}

// NewAdjustmentServiceHandler builds an HTTP handler for svc and returns the
// path to mount it on.
func NewAdjustmentServiceHandler(svc AdjustmentServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	handle(mux, AdjustmentServiceSubmitProcedure, svc.Submit, opts)
	handle(mux, AdjustmentServiceEditProcedure, svc.Edit, opts)
	handle(mux, AdjustmentServiceConfirmProcedure, svc.Confirm, opts)
	handle(mux, AdjustmentServiceRejectProcedure, svc.Reject, opts)
	handle(mux, AdjustmentServiceListProcedure, svc.List, opts)
	handle(mux, AdjustmentServiceListGroupsProcedure, svc.ListGroups, opts)
	return "/" + AdjustmentServiceName + "/", mux
}

// DealServiceHandler is implemented by the deal service.
type DealServiceHandler interface {
	CreateEvents(context.Context, *connect.Request[CreateEventsRequest]) (*connect.Response[CreateEventsResponse], error)
	AssignEvents(context.Context, *connect.Request[AssignEventsRequest]) (*connect.Response[AssignEventsResponse], error)
	GetDeal(context.Context, *connect.Request[DealRequest]) (*connect.Response[GetDealResponse], error)
	ListDeals(context.Context, *connect.Request[ListDealsRequest]) (*connect.Response[ListDealsResponse], error)
	UpdateParticipants(context.Context, *connect.Request[UpdateParticipantsRequest]) (*connect.Response[CascadeResponse], error)
	ChangeMID(context.Context, *connect.Request[ChangeMIDRequest]) (*connect.Response[CascadeResponse], error)
	DeleteDeal(context.Context, *connect.Request[DealRequest]) (*connect.Response[CascadeResponse], error)
	ConfirmDeal(context.Context, *connect.Request[DealRequest]) (*connect.Response[ConfirmDealResponse], error)
	MarkPaid(context.Context, *connect.Request[MarkPaidRequest]) (*connect.Response[MarkPaidResponse], error)
	ListAudit(context.Context, *connect.Request[ListAuditRequest]) (*connect.Response[ListAuditResponse], error)
	UpsertPartner(context.Context, *connect.Request[UpsertPartnerRequest]) (*connect.Response[UpsertPartnerResponse], error)
}

// NewDealServiceHandler builds an HTTP handler for svc and returns the path
// to mount it on.
func NewDealServiceHandler(svc DealServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	handle(mux, DealServiceCreateEventsProcedure, svc.CreateEvents, opts)
	handle(mux, DealServiceAssignEventsProcedure, svc.AssignEvents, opts)
	handle(mux, DealServiceGetDealProcedure, svc.GetDeal, opts)
	handle(mux, DealServiceListDealsProcedure, svc.ListDeals, opts)
	handle(mux, DealServiceUpdateParticipantsProcedure, svc.UpdateParticipants, opts)
	handle(mux, DealServiceChangeMIDProcedure, svc.ChangeMID, opts)
	handle(mux, DealServiceDeleteDealProcedure, svc.DeleteDeal, opts)
	handle(mux, DealServiceConfirmDealProcedure, svc.ConfirmDeal, opts)
	handle(mux, DealServiceMarkPaidProcedure, svc.MarkPaid, opts)
	handle(mux, DealServiceListAuditProcedure, svc.ListAudit, opts)
	handle(mux, DealServiceUpsertPartnerProcedure, svc.UpsertPartner, opts)
	return "/" + DealServiceName + "/", mux
}

// SyncServiceHandler is implemented by the ledger sync service.
type SyncServiceHandler interface {
	SyncNow(context.Context, *connect.Request[SyncRequest]) (*connect.Response[SyncResponse], error)
	ListOrphans(context.Context, *connect.Request[SyncRequest]) (*connect.Response[ListOrphansResponse], error)
	DeleteOrphans(context.Context, *connect.Request[DeleteOrphansRequest]) (*connect.Response[DeleteOrphansResponse], error)
}

// NewSyncServiceHandler builds an HTTP handler for svc and returns the path
// to mount it on.
func NewSyncServiceHandler(svc SyncServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	handle(mux, SyncServiceSyncNowProcedure, svc.SyncNow, opts)
	handle(mux, SyncServiceListOrphansProcedure, svc.ListOrphans, opts)
	handle(mux, SyncServiceDeleteOrphansProcedure, svc.DeleteOrphans, opts)
	return "/" + SyncServiceName + "/", mux
}

func newClient[Req, Res any](httpClient connect.HTTPClient, baseURL, procedure string, opts []connect.ClientOption) *connect.Client[Req, Res] {
	return connect.NewClient[Req, Res](httpClient, strings.TrimRight(baseURL, "/")+procedure, opts...)
}

// AdjustmentServiceClient calls the adjustment service.
type AdjustmentServiceClient struct {
	submit     *connect.Client[SubmitAdjustmentRequest, SubmitAdjustmentResponse]
	edit       *connect.Client[EditAdjustmentRequest, SubmitAdjustmentResponse]
	confirm    *connect.Client[ConfirmAdjustmentsRequest, TransitionResponse]
	reject     *connect.Client[RejectAdjustmentsRequest, TransitionResponse]
	list       *connect.Client[ListAdjustmentsRequest, ListAdjustmentsResponse]
	listGroups *connect.Client[ListAdjustmentsRequest, ListAdjustmentGroupsResponse]
}

// NewAdjustmentServiceClient creates a client for the service at baseURL.
func NewAdjustmentServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AdjustmentServiceClient {
	opts = clientOptions(opts)
	return &AdjustmentServiceClient{
		submit:     newClient[SubmitAdjustmentRequest, SubmitAdjustmentResponse](httpClient, baseURL, AdjustmentServiceSubmitProcedure, opts),
		edit:       newClient[EditAdjustmentRequest, SubmitAdjustmentResponse](httpClient, baseURL, AdjustmentServiceEditProcedure, opts),
		confirm:    newClient[ConfirmAdjustmentsRequest, TransitionResponse](httpClient, baseURL, AdjustmentServiceConfirmProcedure, opts),
		reject:     newClient[RejectAdjustmentsRequest, TransitionResponse](httpClient, baseURL, AdjustmentServiceRejectProcedure, opts),
		list:       newClient[ListAdjustmentsRequest, ListAdjustmentsResponse](httpClient, baseURL, AdjustmentServiceListProcedure, opts),
		listGroups: newClient[ListAdjustmentsRequest, ListAdjustmentGroupsResponse](httpClient, baseURL, AdjustmentServiceListGroupsProcedure, opts),
	}
}

func (c *AdjustmentServiceClient) Submit(ctx context.Context, req *connect.Request[SubmitAdjustmentRequest]) (*connect.Response[SubmitAdjustmentResponse], error) {
	return c.submit.CallUnary(ctx, req)
}

func (c *AdjustmentServiceClient) Edit(ctx context.Context, req *connect.Request[EditAdjustmentRequest]) (*connect.Response[SubmitAdjustmentResponse], error) {
	return c.edit.CallUnary(ctx, req)
}

func (c *AdjustmentServiceClient) Confirm(ctx context.Context, req *connect.Request[ConfirmAdjustmentsRequest]) (*connect.Response[TransitionResponse], error) {
	return c.confirm.CallUnary(ctx, req)
}

func (c *AdjustmentServiceClient) Reject(ctx context.Context, req *connect.Request[RejectAdjustmentsRequest]) (*connect.Response[TransitionResponse], error) {
	return c.reject.CallUnary(ctx, req)
}

func (c *AdjustmentServiceClient) List(ctx context.Context, req *connect.Request[ListAdjustmentsRequest]) (*connect.Response[ListAdjustmentsResponse], error) {
	return c.list.CallUnary(ctx, req)
}

func (c *AdjustmentServiceClient) ListGroups(ctx context.Context, req *connect.Request[ListAdjustmentsRequest]) (*connect.Response[ListAdjustmentGroupsResponse], error) {
	return c.listGroups.CallUnary(ctx, req)
}

// DealServiceClient calls the deal service.
type DealServiceClient struct {
	createEvents       *connect.Client[CreateEventsRequest, CreateEventsResponse]
	assignEvents       *connect.Client[AssignEventsRequest, AssignEventsResponse]
	getDeal            *connect.Client[DealRequest, GetDealResponse]
	listDeals          *connect.Client[ListDealsRequest, ListDealsResponse]
	updateParticipants *connect.Client[UpdateParticipantsRequest, CascadeResponse]
	changeMID          *connect.Client[ChangeMIDRequest, CascadeResponse]
	deleteDeal         *connect.Client[DealRequest, CascadeResponse]
	confirmDeal        *connect.Client[DealRequest, ConfirmDealResponse]
	markPaid           *connect.Client[MarkPaidRequest, MarkPaidResponse]
	listAudit          *connect.Client[ListAuditRequest, ListAuditResponse]
	upsertPartner      *connect.Client[UpsertPartnerRequest, UpsertPartnerResponse]
}

// NewDealServiceClient creates a client for the service at baseURL.
func NewDealServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *DealServiceClient {
	opts = clientOptions(opts)
	return &DealServiceClient{
		createEvents:       newClient[CreateEventsRequest, CreateEventsResponse](httpClient, baseURL, DealServiceCreateEventsProcedure, opts),
		assignEvents:       newClient[AssignEventsRequest, AssignEventsResponse](httpClient, baseURL, DealServiceAssignEventsProcedure, opts),
		getDeal:            newClient[DealRequest, GetDealResponse](httpClient, baseURL, DealServiceGetDealProcedure, opts),
		listDeals:          newClient[ListDealsRequest, ListDealsResponse](httpClient, baseURL, DealServiceListDealsProcedure, opts),
		updateParticipants: newClient[UpdateParticipantsRequest, CascadeResponse](httpClient, baseURL, DealServiceUpdateParticipantsProcedure, opts),
		changeMID:          newClient[ChangeMIDRequest, CascadeResponse](httpClient, baseURL, DealServiceChangeMIDProcedure, opts),
		deleteDeal:         newClient[DealRequest, CascadeResponse](httpClient, baseURL, DealServiceDeleteDealProcedure, opts),
		confirmDeal:        newClient[DealRequest, ConfirmDealResponse](httpClient, baseURL, DealServiceConfirmDealProcedure, opts),
		markPaid:           newClient[MarkPaidRequest, MarkPaidResponse](httpClient, baseURL, DealServiceMarkPaidProcedure, opts),
		listAudit:          newClient[ListAuditRequest, ListAuditResponse](httpClient, baseURL, DealServiceListAuditProcedure, opts),
		upsertPartner:      newClient[UpsertPartnerRequest, UpsertPartnerResponse](httpClient, baseURL, DealServiceUpsertPartnerProcedure, opts),
	}
}

func (c *DealServiceClient) CreateEvents(ctx context.Context, req *connect.Request[CreateEventsRequest]) (*connect.Response[CreateEventsResponse], error) {
	return c.createEvents.CallUnary(ctx, req)
}

func (c *DealServiceClient) AssignEvents(ctx context.Context, req *connect.Request[AssignEventsRequest]) (*connect.Response[AssignEventsResponse], error) {
	return c.assignEvents.CallUnary(ctx, req)
}

func (c *DealServiceClient) GetDeal(ctx context.Context, req *connect.Request[DealRequest]) (*connect.Response[GetDealResponse], error) {
	return c.getDeal.CallUnary(ctx, req)
}

func (c *DealServiceClient) ListDeals(ctx context.Context, req *connect.Request[ListDealsRequest]) (*connect.Response[ListDealsResponse], error) {
	return c.listDeals.CallUnary(ctx, req)
}

func (c *DealServiceClient) UpdateParticipants(ctx context.Context, req *connect.Request[UpdateParticipantsRequest]) (*connect.Response[CascadeResponse], error) {
	return c.updateParticipants.CallUnary(ctx, req)
}

func (c *DealServiceClient) ChangeMID(ctx context.Context, req *connect.Request[ChangeMIDRequest]) (*connect.Response[CascadeResponse], error) {
	return c.changeMID.CallUnary(ctx, req)
}

func (c *DealServiceClient) DeleteDeal(ctx context.Context, req *connect.Request[DealRequest]) (*connect.Response[CascadeResponse], error) {
	return c.deleteDeal.CallUnary(ctx, req)
}

func (c *DealServiceClient) ConfirmDeal(ctx context.Context, req *connect.Request[DealRequest]) (*connect.Response[ConfirmDealResponse], error) {
	return c.confirmDeal.CallUnary(ctx, req)
}

func (c *DealServiceClient) MarkPaid(ctx context.Context, req *connect.Request[MarkPaidRequest]) (*connect.Response[MarkPaidResponse], error) {
	return c.markPaid.CallUnary(ctx, req)
}

func (c *DealServiceClient) ListAudit(ctx context.Context, req *connect.Request[ListAuditRequest]) (*connect.Response[ListAuditResponse], error) {
	return c.listAudit.CallUnary(ctx, req)
}

func (c *DealServiceClient) UpsertPartner(ctx context.Context, req *connect.Request[UpsertPartnerRequest]) (*connect.Response[UpsertPartnerResponse], error) {
	return c.upsertPartner.CallUnary(ctx, req)
}

// SyncServiceClient calls the ledger sync service.
type SyncServiceClient struct {
	syncNow       *connect.Client[SyncRequest, SyncResponse]
	listOrphans   *connect.Client[SyncRequest, ListOrphansResponse]
	deleteOrphans *connect.Client[DeleteOrphansRequest, DeleteOrphansResponse]
}

// NewSyncServiceClient creates a client for the service at baseURL.
func NewSyncServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *SyncServiceClient {
	opts = clientOptions(opts)
	return &SyncServiceClient{
		syncNow:       newClient[SyncRequest, SyncResponse](httpClient, baseURL, SyncServiceSyncNowProcedure, opts),
		listOrphans:   newClient[SyncRequest, ListOrphansResponse](httpClient, baseURL, SyncServiceListOrphansProcedure, opts),
		deleteOrphans: newClient[DeleteOrphansRequest, DeleteOrphansResponse](httpClient, baseURL, SyncServiceDeleteOrphansProcedure, opts),
	}
}

func (c *SyncServiceClient) SyncNow(ctx context.Context, req *connect.Request[SyncRequest]) (*connect.Response[SyncResponse], error) {
	return c.syncNow.CallUnary(ctx, req)
}

func (c *SyncServiceClient) ListOrphans(ctx context.Context, req *connect.Request[SyncRequest]) (*connect.Response[ListOrphansResponse], error) {
	return c.listOrphans.CallUnary(ctx, req)
}

func (c *SyncServiceClient) DeleteOrphans(ctx context.Context, req *connect.Request[DeleteOrphansRequest]) (*connect.Response[DeleteOrphansResponse], error) {
	return c.deleteOrphans.CallUnary(ctx, req)
}
